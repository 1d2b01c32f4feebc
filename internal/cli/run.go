package cli

import (
	"context"
	"errors"
	"net/http"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/cartsync/internal/api"
	"github.com/roach88/cartsync/internal/capture"
	"github.com/roach88/cartsync/internal/checkout"
	"github.com/roach88/cartsync/internal/config"
	"github.com/roach88/cartsync/internal/connection"
	"github.com/roach88/cartsync/internal/engine"
	"github.com/roach88/cartsync/internal/logger"
	"github.com/roach88/cartsync/internal/metrics"
	"github.com/roach88/cartsync/internal/publish"
	"github.com/roach88/cartsync/internal/telemetry"
	"github.com/roach88/cartsync/internal/transport"
)

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run a checkout session",
		Long: `Connect to the recognition backend and keep a live cart.

The session streams frames from the capture directory (when enabled),
reconciles incoming updates into the cart and serves the HTTP API for
the checkout flow. The view can be mirrored to Redis and checkout phase
changes published to Kafka.

Stops on SIGINT or SIGTERM.

Examples:
  cartsync run
  cartsync run --config cartsync.yaml
  CARTSYNC_TRANSPORT_URL=ws://backend:5000/ws cartsync run`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := rootOpts.loadConfig()
			if err != nil {
				return err
			}
			ctx, stop := signalContext(cmd)
			defer stop()
			return runSession(ctx, cfg, logger.GetLogger())
		},
	}
}

func runSession(ctx context.Context, cfg *config.Config, log *logger.Log) error {
	entry := log.WithComponent("run").WithFields(logger.Fields{
		"app":         cfg.App.Name,
		"environment": cfg.App.Environment,
	})

	shutdownTracing, err := telemetry.Init(ctx, telemetry.Config{
		Enabled:        cfg.Tracing.Enabled,
		Endpoint:       cfg.Tracing.Endpoint,
		Insecure:       cfg.Tracing.Insecure,
		ServiceName:    cfg.Tracing.ServiceName,
		ServiceVersion: Version,
		SampleRatio:    cfg.Tracing.SampleRatio,
	})
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to start tracing", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			entry.WithError(err).Warn("tracing shutdown")
		}
	}()

	m := metrics.New()
	client := transport.New(transport.Config{
		URL:              cfg.Transport.URL,
		HandshakeTimeout: cfg.Transport.HandshakeTimeout.Std(),
		PingInterval:     cfg.Transport.PingInterval.Std(),
		InitialBackoff:   cfg.Transport.InitialBackoff.Std(),
		MaxBackoff:       cfg.Transport.MaxBackoff.Std(),
	}, transport.WithLogger(log))

	gate := connection.NewGate(client,
		connection.WithMaxRate(cfg.Capture.MaxFPS),
		connection.WithGateMetrics(m),
		connection.WithGateLogger(log),
	)

	opts := []engine.Option{
		engine.WithRetentionWindow(cfg.Reconcile.RetentionWindow.Std()),
		engine.WithGate(gate),
		engine.WithMetrics(m),
		engine.WithLogger(log),
		engine.WithIDGenerator(checkout.UUIDv7Generator{}),
	}

	var mirror *publish.RedisMirror
	if cfg.Redis.Enabled {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		mirror = publish.NewRedisMirror(rdb, publish.RedisConfig{
			Key:     cfg.Redis.Key,
			Channel: cfg.Redis.Channel,
			TTL:     cfg.Redis.TTL.Std(),
		}, publish.WithRedisLogger(log), publish.WithRedisMetrics(m))
		opts = append(opts, engine.WithObserver(mirror))
		entry.WithField("addr", cfg.Redis.Addr).Info("mirroring view to redis")
	}

	if cfg.Kafka.Enabled {
		w := publish.NewKafkaWriter(cfg.Kafka.Brokers, cfg.Kafka.Topic, log)
		kp := publish.NewKafkaPublisher(w, publish.WithKafkaLogger(log), publish.WithKafkaMetrics(m))
		defer func() {
			if err := kp.Close(); err != nil {
				entry.WithError(err).Warn("kafka writer close")
			}
		}()
		opts = append(opts, engine.WithObserver(kp))
		entry.WithField("topic", cfg.Kafka.Topic).Info("publishing checkout events to kafka")
	}

	session := engine.New(opts...)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return session.Run(gctx) })
	g.Go(func() error { return client.Run(gctx, session) })

	if mirror != nil {
		g.Go(func() error { return mirror.Run(gctx) })
	}

	if cfg.Capture.Enabled {
		producer := capture.NewProducer(
			capture.NewDirSource(cfg.Capture.SourceDir),
			gate,
			capture.WithInterval(cfg.Capture.Interval.Std()),
			capture.WithLogger(log),
		)
		g.Go(func() error {
			// A dead source leaves the session usable without frames.
			if err := producer.Run(gctx); err != nil {
				entry.WithError(err).Error("capture disabled")
			}
			return nil
		})
	}

	if cfg.API.Enabled {
		srv := &http.Server{
			Addr:    cfg.API.Addr,
			Handler: api.NewServer(session, api.WithMetrics(m), api.WithLogger(log)).Router(),
		}
		g.Go(func() error { return serveHTTP(gctx, srv, entry) })
	}

	entry.WithField("url", cfg.Transport.URL).Info("session started")
	err = g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		return WrapExitError(ExitFailure, "session failed", err)
	}
	entry.Info("session stopped")
	return nil
}
