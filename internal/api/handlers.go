package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/roach88/cartsync/internal/checkout"
	"github.com/roach88/cartsync/internal/engine"
	"github.com/roach88/cartsync/internal/logger"
)

// Error codes outside the checkout rejection codes.
const (
	CodeNoPaymentRequest = "NO_PAYMENT_REQUEST"
	CodeSessionStopped   = "SESSION_STOPPED"
	CodeTimeout          = "TIMEOUT"
	CodeInternal         = "INTERNAL"
)

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

// CommandResponse is returned by every successful checkout POST.
type CommandResponse struct {
	Phase    checkout.Phase      `json:"phase"`
	Checkout engine.CheckoutView `json:"checkout"`
}

func abort(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, errorResponse{Error: errorBody{Code: code, Message: message}})
}

func (s *Server) health(c *gin.Context) {
	v := s.session.View()
	c.JSON(http.StatusOK, gin.H{
		"status":     "ok",
		"seq":        v.Seq,
		"connection": v.Connection.Status,
	})
}

func (s *Server) view(c *gin.Context) {
	c.JSON(http.StatusOK, s.session.View())
}

func (s *Server) cart(c *gin.Context) {
	c.JSON(http.StatusOK, s.session.View().Cart)
}

func (s *Server) connection(c *gin.Context) {
	c.JSON(http.StatusOK, s.session.View().Connection)
}

func (s *Server) checkout(c *gin.Context) {
	c.JSON(http.StatusOK, s.session.View().Checkout)
}

func (s *Server) paymentPayload(c *gin.Context) {
	p := s.session.View().Checkout.Payment
	if p == nil {
		abort(c, http.StatusNotFound, CodeNoPaymentRequest, "no payment request is open")
		return
	}
	c.JSON(http.StatusOK, p.Payload)
}

func (s *Server) command(op checkout.Op) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), s.commandTimeout)
		defer cancel()

		res, err := s.session.SubmitCommand(ctx, op)
		if err != nil {
			s.commandFailed(c, op, err)
			return
		}
		c.JSON(http.StatusOK, CommandResponse{Phase: res.Phase, Checkout: res.Checkout})
	}
}

func (s *Server) commandFailed(c *gin.Context, op checkout.Op, err error) {
	var te *checkout.TransitionError
	switch {
	case errors.As(err, &te):
		abort(c, http.StatusConflict, string(te.Code), te.Message)
	case errors.Is(err, engine.ErrStopped):
		abort(c, http.StatusServiceUnavailable, CodeSessionStopped, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		abort(c, http.StatusGatewayTimeout, CodeTimeout, "checkout command timed out")
	default:
		s.log.WithComponent("api").WithFields(logger.Fields{
			"op": string(op),
		}).WithError(err).Error("Checkout command failed")
		abort(c, http.StatusInternalServerError, CodeInternal, err.Error())
	}
}
