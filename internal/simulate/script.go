// Package simulate is a scripted stand-in for the vision backend. It accepts
// the same websocket traffic as the real detector and answers every frame
// with an update priced from the catalog.
package simulate

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"
)

// Script is a YAML sequence of detection results, one consumed per frame.
//
//	name: two toddies then empty
//	loop: true
//	frames:
//	  - detections: {toddy-750g: 2}
//	    repeat: 40
//	  - detections: {}
//	    repeat: 20
type Script struct {
	Name   string        `yaml:"name"`
	Loop   bool          `yaml:"loop"`
	Frames []ScriptFrame `yaml:"frames"`
}

// ScriptFrame maps detector class names to counts. Repeat is how many
// consecutive frames produce it (default 1).
type ScriptFrame struct {
	Detections map[string]int `yaml:"detections"`
	Repeat     int            `yaml:"repeat"`
}

// LoadScript reads and validates a script file.
func LoadScript(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read script: %w", err)
	}
	return ParseScript(data)
}

// ParseScript decodes a script, rejecting unknown fields.
func ParseScript(data []byte) (*Script, error) {
	var s Script
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("parse script: %w", err)
	}
	if err := s.validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

func (s *Script) validate() error {
	if len(s.Frames) == 0 {
		return errors.New("script: at least one frame is required")
	}
	for i, f := range s.Frames {
		if f.Repeat < 0 {
			return fmt.Errorf("script: frames[%d]: repeat must be >= 0", i)
		}
		for class, n := range f.Detections {
			if class == "" {
				return fmt.Errorf("script: frames[%d]: empty class name", i)
			}
			if n < 0 {
				return fmt.Errorf("script: frames[%d]: negative count for %s", i, class)
			}
		}
	}
	return nil
}

// DefaultScript shows a few catalog products arriving and leaving.
func DefaultScript() *Script {
	return &Script{
		Name: "default",
		Loop: true,
		Frames: []ScriptFrame{
			{Detections: map[string]int{}, Repeat: 20},
			{Detections: map[string]int{"toddy-750g": 1}, Repeat: 40},
			{Detections: map[string]int{"toddy-750g": 1, "ketchup-kris-200g": 2}, Repeat: 60},
			{Detections: map[string]int{"ketchup-kris-200g": 2}, Repeat: 40},
			{Detections: map[string]int{}, Repeat: 120},
		},
	}
}

// Player walks a script. Each connection gets its own Player.
type Player struct {
	mu     sync.Mutex
	script *Script
	frame  int
	served int
}

func NewPlayer(s *Script) *Player {
	return &Player{script: s}
}

// Next returns the detections for the next frame. After the last frame a
// looping script starts over and a non-looping one repeats its last frame.
func (p *Player) Next() map[string]int {
	p.mu.Lock()
	defer p.mu.Unlock()

	f := p.script.Frames[p.frame]
	p.served++
	if p.served >= repeatOf(f) {
		p.served = 0
		switch {
		case p.frame+1 < len(p.script.Frames):
			p.frame++
		case p.script.Loop:
			p.frame = 0
		default:
			p.served = repeatOf(f)
		}
	}
	return f.Detections
}

func repeatOf(f ScriptFrame) int {
	if f.Repeat <= 0 {
		return 1
	}
	return f.Repeat
}

// classes returns the detected class names in sorted order.
func classes(detections map[string]int) []string {
	names := make([]string, 0, len(detections))
	for name := range detections {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
