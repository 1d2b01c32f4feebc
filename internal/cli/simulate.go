package cli

import (
	"context"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/roach88/cartsync/internal/catalog"
	"github.com/roach88/cartsync/internal/config"
	"github.com/roach88/cartsync/internal/logger"
	"github.com/roach88/cartsync/internal/simulate"
)

// SimulateOptions holds flags for the simulate command.
type SimulateOptions struct {
	*RootOptions
	Addr   string
	Script string
	NoSeed bool
}

// NewSimulateCommand creates the simulate command.
func NewSimulateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SimulateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Serve a scripted recognition backend",
		Long: `Serve a websocket endpoint at /ws that answers every frame with an
update priced from the catalog, following a detection script.

The catalog is seeded with the sample products unless --no-seed is set.

Examples:
  cartsync simulate
  cartsync simulate --addr :5000 --script demo.yaml`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			if opts.Addr != "" {
				cfg.Simulate.Addr = opts.Addr
			}
			if opts.Script != "" {
				cfg.Simulate.Script = opts.Script
			}
			ctx, stop := signalContext(cmd)
			defer stop()
			return runSimulator(ctx, cfg, !opts.NoSeed, logger.GetLogger())
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", "", "listen address (default: simulate.addr)")
	cmd.Flags().StringVar(&opts.Script, "script", "", "detection script (default: built-in)")
	cmd.Flags().BoolVar(&opts.NoSeed, "no-seed", false, "do not seed the catalog with sample products")

	return cmd
}

func runSimulator(ctx context.Context, cfg *config.Config, seed bool, log *logger.Log) error {
	entry := log.WithComponent("simulate")

	store, err := catalog.Open(cfg.Simulate.CatalogPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open catalog", err)
	}
	defer store.Close()

	if seed {
		n, err := store.Seed(ctx, catalog.SampleProducts())
		if err != nil {
			return WrapExitError(ExitFailure, "failed to seed catalog", err)
		}
		entry.WithField("products", n).Info("catalog seeded")
	}

	script := simulate.DefaultScript()
	if cfg.Simulate.Script != "" {
		script, err = simulate.LoadScript(cfg.Simulate.Script)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to load script", err)
		}
	}

	mux := http.NewServeMux()
	mux.Handle("/ws", simulate.NewServer(script, store, simulate.WithLogger(log)))
	srv := &http.Server{Addr: cfg.Simulate.Addr, Handler: mux}

	entry.WithFields(logger.Fields{
		"script":  script.Name,
		"catalog": cfg.Simulate.CatalogPath,
	}).Info("simulator ready")

	if err := serveHTTP(ctx, srv, entry); err != nil {
		return WrapExitError(ExitFailure, "simulator failed", err)
	}
	return nil
}
