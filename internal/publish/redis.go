package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/roach88/cartsync/internal/engine"
	"github.com/roach88/cartsync/internal/logger"
	"github.com/roach88/cartsync/internal/metrics"
)

// RedisConfig names the mirror key and channel.
type RedisConfig struct {
	Key     string
	Channel string
	TTL     time.Duration // zero keeps the key forever
	Timeout time.Duration // per write, default 500ms
}

// RedisMirror writes the latest View to Redis.
//
// Notify only hands the view over; Run performs the writes. When writes fall
// behind, intermediate views are skipped and the newest one wins.
type RedisMirror struct {
	client  redis.Cmdable
	cfg     RedisConfig
	pending chan engine.View
	log     *logger.Entry
	metrics *metrics.Metrics
}

type RedisOption func(*RedisMirror)

func WithRedisLogger(l *logger.Log) RedisOption {
	return func(m *RedisMirror) { m.log = l.WithComponent("redis_mirror") }
}

func WithRedisMetrics(mt *metrics.Metrics) RedisOption {
	return func(m *RedisMirror) { m.metrics = mt }
}

func NewRedisMirror(client redis.Cmdable, cfg RedisConfig, opts ...RedisOption) *RedisMirror {
	if cfg.Key == "" {
		cfg.Key = "cartsync:view"
	}
	if cfg.Channel == "" {
		cfg.Channel = "cartsync:updates"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 500 * time.Millisecond
	}
	m := &RedisMirror{
		client:  client,
		cfg:     cfg,
		pending: make(chan engine.View, 1),
		log:     logger.GetLogger().WithComponent("redis_mirror"),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Notify implements engine.Observer.
func (m *RedisMirror) Notify(_ context.Context, n engine.Notification) {
	for {
		select {
		case m.pending <- n.View:
			return
		default:
		}
		// Drop the stale view and retry.
		select {
		case <-m.pending:
		default:
		}
	}
}

// Run writes views as they arrive until ctx is cancelled.
func (m *RedisMirror) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case v := <-m.pending:
			if err := m.Write(ctx, v); err != nil {
				m.metrics.PublishFailed("redis")
				m.log.WithError(err).WithField("seq", v.Seq).Warn("mirror write failed")
			}
		}
	}
}

// Write stores v under the key and publishes it on the channel.
func (m *RedisMirror) Write(ctx context.Context, v engine.View) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal view: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, m.cfg.Timeout)
	defer cancel()

	_, err = m.client.Pipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, m.cfg.Key, data, m.cfg.TTL)
		p.Publish(ctx, m.cfg.Channel, data)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis pipeline: %w", err)
	}
	return nil
}
