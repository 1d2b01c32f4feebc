package simulate

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/roach88/cartsync/internal/connection"
	"github.com/roach88/cartsync/internal/logger"
	"github.com/roach88/cartsync/internal/transport"
)

const writeTimeout = 5 * time.Second

// Server answers frames with scripted, catalog-priced updates.
type Server struct {
	script   *Script
	pricer   Pricer
	upgrader websocket.Upgrader
	log      *logger.Entry

	clients atomic.Int64
	frames  atomic.Uint64
}

type Option func(*Server)

func WithLogger(l *logger.Log) Option {
	return func(s *Server) { s.log = l.WithComponent("simulate") }
}

// NewServer creates a server. A nil script uses DefaultScript.
func NewServer(script *Script, pricer Pricer, opts ...Option) *Server {
	if script == nil {
		script = DefaultScript()
	}
	s := &Server{
		script: script,
		pricer: pricer,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1 << 16,
			WriteBufferSize: 1 << 12,
			CheckOrigin: func(*http.Request) bool { return true },
		},
		log: logger.GetLogger().WithComponent("simulate"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Clients returns the number of open connections.
func (s *Server) Clients() int64 {
	return s.clients.Load()
}

// Frames returns how many frames have been answered.
func (s *Server) Frames() uint64 {
	return s.frames.Load()
}

// ServeHTTP upgrades the request and serves the connection until it closes.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.WithError(err).Warn("websocket upgrade failed")
		return
	}
	defer conn.Close()

	s.clients.Add(1)
	defer s.clients.Add(-1)

	log := s.log.WithField("remote", r.RemoteAddr)
	log.Info("client connected")

	player := NewPlayer(s.script)
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			log.WithError(err).Info("client disconnected")
			return
		}
		reply, ok := s.handle(r.Context(), player, msg)
		if !ok {
			continue
		}
		conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := conn.WriteMessage(websocket.TextMessage, reply); err != nil {
			log.WithError(err).Warn("write failed")
			return
		}
	}
}

// handle returns the reply to one inbound message, if any.
func (s *Server) handle(ctx context.Context, player *Player, msg []byte) ([]byte, bool) {
	var env transport.Envelope
	if err := json.Unmarshal(msg, &env); err != nil {
		return errorEnvelope(fmt.Sprintf("undecodable message: %v", err)), true
	}
	if env.Event != transport.EventFrame {
		s.log.WithField("event", env.Event).Debug("ignoring event")
		return nil, false
	}

	var f connection.Frame
	if err := json.Unmarshal(env.Data, &f); err != nil {
		return errorEnvelope(fmt.Sprintf("undecodable frame: %v", err)), true
	}
	if err := checkImage(f.Image); err != nil {
		return errorEnvelope(err.Error()), true
	}

	s.frames.Add(1)
	update, err := BuildUpdate(ctx, player.Next(), s.pricer)
	if err != nil {
		s.log.WithError(err).Error("pricing failed")
		return errorEnvelope("pricing failed"), true
	}
	data, err := json.Marshal(update)
	if err != nil {
		return errorEnvelope("encode update failed"), true
	}
	out, _ := json.Marshal(transport.Envelope{Event: transport.EventUpdate, Data: data})
	return out, true
}

// checkImage accepts a base64 data URL, or bare base64.
func checkImage(image string) error {
	if image == "" {
		return errors.New("undecodable frame: empty image")
	}
	payload := image
	if strings.HasPrefix(image, "data:") {
		i := strings.IndexByte(image, ',')
		if i < 0 {
			return errors.New("undecodable frame: data url without payload")
		}
		payload = image[i+1:]
	}
	if _, err := base64.StdEncoding.DecodeString(payload); err != nil {
		return fmt.Errorf("undecodable frame: %v", err)
	}
	return nil
}

func errorEnvelope(message string) []byte {
	data, _ := json.Marshal(map[string]string{"message": message})
	out, _ := json.Marshal(transport.Envelope{Event: transport.EventError, Data: data})
	return out
}
