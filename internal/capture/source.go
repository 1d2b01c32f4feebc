package capture

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/roach88/cartsync/internal/connection"
)

// ErrSourceUnavailable marks a source that could not be opened. It is
// terminal for the producer but not for the session.
var ErrSourceUnavailable = errors.New("capture: source unavailable")

// Source yields frames. Open is called once before the first Next, and Close
// once when the producer stops.
type Source interface {
	Open(ctx context.Context) error
	Next(ctx context.Context) (connection.Frame, error)
	Close() error
}

var imageTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
}

// DirSource cycles through the images of a directory in name order,
// encoding each as a base64 data URL.
type DirSource struct {
	dir string

	mu     sync.Mutex
	frames []connection.Frame
	next   int
}

func NewDirSource(dir string) *DirSource {
	return &DirSource{dir: dir}
}

// Open reads and encodes every image up front. A missing directory or one
// without images fails with ErrSourceUnavailable.
func (s *DirSource) Open(ctx context.Context) error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if _, ok := imageTypes[strings.ToLower(filepath.Ext(e.Name()))]; ok {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	if len(names) == 0 {
		return fmt.Errorf("%w: no images in %s", ErrSourceUnavailable, s.dir)
	}

	frames := make([]connection.Frame, 0, len(names))
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return err
		}
		data, err := os.ReadFile(filepath.Join(s.dir, name))
		if err != nil {
			return fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
		}
		frames = append(frames, connection.Frame{Image: DataURL(name, data)})
	}

	s.mu.Lock()
	s.frames = frames
	s.next = 0
	s.mu.Unlock()
	return nil
}

// Next returns the next frame, wrapping around at the end.
func (s *DirSource) Next(ctx context.Context) (connection.Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.frames) == 0 {
		return connection.Frame{}, errors.New("capture: source not open")
	}
	f := s.frames[s.next]
	s.next = (s.next + 1) % len(s.frames)
	return f, nil
}

// Close releases the encoded frames.
func (s *DirSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames = nil
	s.next = 0
	return nil
}

// DataURL encodes data as data:<mime>;base64,<...> using the extension of
// name to pick the mime type.
func DataURL(name string, data []byte) string {
	mime, ok := imageTypes[strings.ToLower(filepath.Ext(name))]
	if !ok {
		mime = "application/octet-stream"
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}
