// Package transport is the websocket client to the vision backend.
//
// Frames go out as {"event":"frame","data":{"image":...}}; updates and
// backend errors come back in the same envelope. Every lifecycle change is
// reported to the Handler as a connection.Signal, and the client redials
// forever with exponential backoff.
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"

	"github.com/roach88/cartsync/internal/connection"
	"github.com/roach88/cartsync/internal/logger"
)

// Envelope event names.
const (
	EventUpdate = "update"
	EventError  = "error"
	EventFrame  = "frame"
)

// ErrNotConnected is returned by SendFrame when no connection is open.
var ErrNotConnected = errors.New("transport: not connected")

// Envelope is the wire format in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Handler receives decoded traffic. engine.Engine satisfies it.
type Handler interface {
	EnqueueUpdate(payload []byte) bool
	EnqueueSignal(sig connection.Signal) bool
}

// Config holds the connection parameters. Zero durations take defaults.
type Config struct {
	URL              string
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
	PingInterval     time.Duration
	InitialBackoff   time.Duration
	MaxBackoff       time.Duration
}

const (
	DefaultHandshakeTimeout = 10 * time.Second
	DefaultWriteTimeout     = 5 * time.Second
	DefaultPingInterval     = 20 * time.Second
	DefaultInitialBackoff   = time.Second
	DefaultMaxBackoff       = 5 * time.Second
)

func (c Config) withDefaults() Config {
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = DefaultWriteTimeout
	}
	if c.PingInterval <= 0 {
		c.PingInterval = DefaultPingInterval
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = DefaultInitialBackoff
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = DefaultMaxBackoff
	}
	return c
}

// Client maintains one websocket connection at a time.
type Client struct {
	cfg        Config
	handler    Handler // set by Run
	header     http.Header
	dialer     *websocket.Dialer
	newBackOff func() backoff.BackOff
	log        *logger.Entry

	mu   sync.Mutex // guards conn and data writes
	conn *websocket.Conn
}

// Option configures a Client.
type Option func(*Client)

// WithBackOff replaces the exponential retry policy.
func WithBackOff(f func() backoff.BackOff) Option {
	return func(c *Client) { c.newBackOff = f }
}

// WithHeader adds request headers to the handshake.
func WithHeader(h http.Header) Option {
	return func(c *Client) { c.header = h }
}

func WithLogger(l *logger.Log) Option {
	return func(c *Client) { c.log = l.WithComponent("transport") }
}

// New creates a client. Run must be called to connect.
func New(cfg Config, opts ...Option) *Client {
	cfg = cfg.withDefaults()
	c := &Client{
		cfg: cfg,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: cfg.HandshakeTimeout,
		},
		log: logger.GetLogger().WithComponent("transport"),
	}
	c.newBackOff = func() backoff.BackOff {
		b := backoff.NewExponentialBackOff()
		b.InitialInterval = cfg.InitialBackoff
		b.MaxInterval = cfg.MaxBackoff
		b.MaxElapsedTime = 0
		b.Reset()
		return b
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run dials, reads until the connection drops, and redials, until ctx is
// cancelled. Traffic and lifecycle signals go to h. It returns ctx.Err(), or
// an error if the backoff policy gives up. Run must not be called twice.
func (c *Client) Run(ctx context.Context, h Handler) error {
	c.handler = h
	log := c.log.WithField("url", c.cfg.URL)
	bo := c.newBackOff()
	attempt := 0
	connectedBefore := false

	for {
		attempt++
		c.signal(connection.Signal{Kind: connection.SignalConnecting, Attempt: attempt})

		log.WithField("attempt", attempt).Debug("connecting to websocket")
		conn, _, err := c.dialer.DialContext(ctx, c.cfg.URL, c.header)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.WithError(err).WithField("attempt", attempt).Warn("failed to connect websocket, retrying")
			c.signal(connection.Signal{Kind: connection.SignalConnectError, Message: err.Error()})
		} else {
			bo.Reset()
			// Publish the connection before signalling so a gate that opens
			// on connect can write immediately.
			c.mu.Lock()
			c.conn = conn
			c.mu.Unlock()
			if connectedBefore {
				c.signal(connection.Signal{Kind: connection.SignalReconnect, Attempt: attempt})
			} else {
				c.signal(connection.Signal{Kind: connection.SignalConnect})
			}
			log.WithField("attempt", attempt).Info("websocket connected")
			connectedBefore = true
			attempt = 0

			err = c.serve(ctx, conn)
			if ctx.Err() != nil {
				c.signal(connection.Signal{Kind: connection.SignalDisconnect, Message: "client stopped"})
				return ctx.Err()
			}
			log.WithError(err).Warn("websocket read error, reconnecting")
			c.signal(connection.Signal{Kind: connection.SignalDisconnect, Message: disconnectReason(err)})
		}

		wait := bo.NextBackOff()
		if wait == backoff.Stop {
			return fmt.Errorf("transport: giving up after %d attempts: %w", attempt, err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

// serve reads messages until the connection fails or ctx is cancelled, then
// clears and closes conn.
func (c *Client) serve(ctx context.Context, conn *websocket.Conn) error {
	done := make(chan struct{})
	defer func() {
		close(done)
		c.mu.Lock()
		c.conn = nil
		c.mu.Unlock()
		conn.Close()
	}()

	go func() {
		ticker := time.NewTicker(c.cfg.PingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				// Unblocks ReadMessage.
				conn.Close()
				return
			case <-ticker.C:
				deadline := time.Now().Add(c.cfg.WriteTimeout)
				if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
					c.log.WithError(err).Debug("ping failed")
				}
			}
		}
	}()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		c.dispatch(msg)
	}
}

func (c *Client) dispatch(msg []byte) {
	var env Envelope
	if err := json.Unmarshal(msg, &env); err != nil {
		c.log.WithError(err).WithField("bytes", len(msg)).Warn("undecodable message ignored")
		return
	}

	switch env.Event {
	case EventUpdate:
		c.handler.EnqueueUpdate(env.Data)
	case EventError:
		var body struct {
			Message string `json:"message"`
		}
		if err := json.Unmarshal(env.Data, &body); err != nil {
			c.log.WithError(err).Debug("error event without message body")
		}
		c.signal(connection.Signal{Kind: connection.SignalError, Message: body.Message})
	default:
		c.log.WithField("event", env.Event).Debug("unhandled event ignored")
	}
}

func (c *Client) signal(sig connection.Signal) {
	if !c.handler.EnqueueSignal(sig) {
		c.log.WithField("signal", sig.String()).Debug("signal dropped, session stopped")
	}
}

// SendFrame writes one frame envelope. It implements connection.Sender.
func (c *Client) SendFrame(ctx context.Context, f connection.Frame) error {
	data, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("marshal frame: %w", err)
	}
	msg, err := json.Marshal(Envelope{Event: EventFrame, Data: data})
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return ErrNotConnected
	}

	deadline := time.Now().Add(c.cfg.WriteTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := c.conn.SetWriteDeadline(deadline); err != nil {
		return fmt.Errorf("set write deadline: %w", err)
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

// Connected reports whether a connection is currently open.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

func disconnectReason(err error) string {
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		if ce.Text != "" {
			return fmt.Sprintf("closed by server (%d): %s", ce.Code, ce.Text)
		}
		return fmt.Sprintf("closed by server (%d)", ce.Code)
	}
	if err == nil {
		return "connection closed"
	}
	return err.Error()
}
