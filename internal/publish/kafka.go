package publish

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/roach88/cartsync/internal/engine"
	"github.com/roach88/cartsync/internal/logger"
	"github.com/roach88/cartsync/internal/metrics"
)

// MessageWriter is the part of *kafka.Writer the publisher uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// CheckoutEvent is the message value for one phase change.
type CheckoutEvent struct {
	Phase         string    `json:"phase"`
	Previous      string    `json:"previous"`
	InvoiceNumber string    `json:"invoice_number,omitempty"`
	InvoiceID     string    `json:"invoice_id,omitempty"`
	Total         string    `json:"total,omitempty"`
	At            time.Time `json:"at"`
}

// NewKafkaWriter returns an async writer. Delivery failures are reported to
// the logger through the completion callback.
func NewKafkaWriter(brokers []string, topic string, l *logger.Log) *kafka.Writer {
	log := l.WithComponent("kafka_publisher")
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireOne,
		Async:        true,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				log.WithError(err).WithField("messages", len(messages)).Warn("checkout events not delivered")
			}
		},
	}
}

// KafkaPublisher emits a CheckoutEvent for every checkout phase change.
type KafkaPublisher struct {
	writer  MessageWriter
	log     *logger.Entry
	metrics *metrics.Metrics
}

type KafkaOption func(*KafkaPublisher)

func WithKafkaLogger(l *logger.Log) KafkaOption {
	return func(p *KafkaPublisher) { p.log = l.WithComponent("kafka_publisher") }
}

func WithKafkaMetrics(m *metrics.Metrics) KafkaOption {
	return func(p *KafkaPublisher) { p.metrics = m }
}

func NewKafkaPublisher(w MessageWriter, opts ...KafkaOption) *KafkaPublisher {
	p := &KafkaPublisher{
		writer: w,
		log:    logger.GetLogger().WithComponent("kafka_publisher"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Notify implements engine.Observer. Only checkout changes are published.
func (p *KafkaPublisher) Notify(ctx context.Context, n engine.Notification) {
	if !n.CheckoutChanged {
		return
	}

	ev := NewCheckoutEvent(n)
	data, err := json.Marshal(ev)
	if err != nil {
		p.metrics.PublishFailed("kafka")
		p.log.WithError(err).Error("marshal checkout event")
		return
	}

	key := ev.InvoiceNumber
	if key == "" {
		key = "idle"
	}
	msg := kafka.Message{Key: []byte(key), Value: data, Time: ev.At}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.metrics.PublishFailed("kafka")
		p.log.WithError(err).WithFields(logger.Fields{
			"phase": ev.Phase,
			"key":   key,
		}).Warn("checkout event not published")
	}
}

// Close flushes and closes the writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// NewCheckoutEvent describes the phase change carried by n.
func NewCheckoutEvent(n engine.Notification) CheckoutEvent {
	co := n.View.Checkout
	ev := CheckoutEvent{
		Phase:    co.Phase.String(),
		Previous: n.PreviousPhase.String(),
		At:       n.View.UpdatedAt,
	}
	if co.Invoice != nil {
		ev.InvoiceNumber = co.Invoice.Number
		ev.Total = co.Invoice.Total
	}
	if co.Payment != nil {
		ev.InvoiceID = co.Payment.InvoiceID
	}
	return ev
}
