package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/contactgraph/internal/reconcile"
	"github.com/roach88/contactgraph/internal/server"
	"github.com/roach88/contactgraph/internal/telemetry"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Addr string
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Long: `Start the contactgraph HTTP API.

Routes:
  POST /api/identify               reconcile {"email", "phoneNumber"}
  GET  /api/contacts/{id}/identity  identity containing a contact
  GET  /api/health                 liveness
  GET  /api/ready                  readiness (pings the store)

The server stops gracefully on SIGINT or SIGTERM.

Examples:
  contactgraph serve --addr :8080 --db ./contactgraph.db
  contactgraph serve --driver postgres --dsn postgres://localhost/contacts`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", "", "listen address (default :8080)")

	return cmd
}

func runServe(opts *ServeOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	cfg := opts.Config
	logger := opts.Logger

	shutdownTracing, err := telemetry.Setup(ctx, cfg.Otel)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to set up tracing", err)
	}
	defer func() {
		if err := shutdownTracing(context.WithoutCancel(ctx)); err != nil {
			logger.Error().Err(err).Msg("error flushing traces")
		}
	}()

	st, err := openStore(ctx, cfg.Store, logger)
	if err != nil {
		return err
	}
	defer closeStore(st, logger)

	eng := reconcile.New(st, reconcile.WithLogger(logger))
	srv := server.New(eng, st, server.Config{
		Addr:         cfg.Server.Addr,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}, server.WithLogger(logger))

	logger.Info().
		Str("addr", cfg.Server.Addr).
		Str("driver", cfg.Store.Driver).
		Bool("tracing", cfg.Otel.Enabled).
		Msg("contactgraph starting")
	fmt.Fprintf(cmd.OutOrStdout(), "Listening on %s. Press Ctrl-C to stop.\n", cfg.Server.Addr)

	if err := srv.ListenAndServe(ctx); err != nil {
		return WrapExitError(ExitFailure, "server error", err)
	}

	logger.Info().Msg("contactgraph stopped gracefully")
	return nil
}
