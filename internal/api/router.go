// Package api serves the session view and checkout commands over HTTP.
package api

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/roach88/cartsync/internal/checkout"
	"github.com/roach88/cartsync/internal/engine"
	"github.com/roach88/cartsync/internal/logger"
	"github.com/roach88/cartsync/internal/metrics"
	"github.com/roach88/cartsync/internal/telemetry"
)

// Session is the part of the engine the API needs.
type Session interface {
	View() engine.View
	SubmitCommand(ctx context.Context, op checkout.Op) (engine.CommandResult, error)
}

type Server struct {
	session        Session
	metrics        *metrics.Metrics
	log            *logger.Log
	commandTimeout time.Duration
}

type Option func(*Server)

// WithMetrics exposes m on GET /metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

func WithLogger(l *logger.Log) Option {
	return func(s *Server) {
		s.log = l
	}
}

// WithCommandTimeout bounds how long a POST waits for the engine.
func WithCommandTimeout(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.commandTimeout = d
		}
	}
}

func NewServer(session Session, opts ...Option) *Server {
	s := &Server{
		session:        session,
		log:            logger.GetLogger(),
		commandTimeout: 2 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Router builds the gin engine with every route registered.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), telemetry.Middleware(s.log))

	r.GET("/health", s.health)
	if s.metrics != nil {
		r.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	}

	r.GET("/view", s.view)
	r.GET("/cart", s.cart)
	r.GET("/connection", s.connection)

	co := r.Group("/checkout")
	{
		co.GET("", s.checkout)
		co.POST("/invoice", s.command(checkout.OpOpenInvoice))
		co.POST("/cancel", s.command(checkout.OpCancelInvoice))
		co.POST("/payment", s.command(checkout.OpOpenPaymentRequest))
		co.POST("/back", s.command(checkout.OpBackToInvoice))
		co.POST("/confirm", s.command(checkout.OpConfirmPayment))
		co.GET("/payment/payload", s.paymentPayload)
	}
	return r
}
