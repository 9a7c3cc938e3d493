package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/conduit-lang/relations/internal/cli/ui"
	"github.com/conduit-lang/relations/internal/config"
	"github.com/conduit-lang/relations/internal/web/api"
	"github.com/conduit-lang/relations/internal/web/profiling"
	"github.com/conduit-lang/relations/internal/web/server"
)

// NewServeCommand creates the serve command
func NewServeCommand(app *App) *cobra.Command {
	var (
		addr    string
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the relation API over HTTP",
		Long: `Open a store for every configured engine and serve the relation API until
interrupted. On SIGINT or SIGTERM the server drains in-flight requests and
closes the stores.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.Load(); err != nil {
				fmt.Fprint(cmd.ErrOrStderr(), ui.ConfigError(err.Error(), app.NoColor))
				return err
			}
			if addr == "" {
				addr = app.Config.HTTP.Address
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return serve(ctx, app, addr, timeout)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default: http.address from the config)")
	cmd.Flags().DurationVar(&timeout, "shutdown-timeout", 30*time.Second, "time allowed to drain requests on shutdown")
	return cmd
}

func serve(ctx context.Context, app *App, addr string, timeout time.Duration) error {
	stores, err := config.OpenStores(ctx, app.Config, app.Schema, app.Logger)
	if err != nil {
		return err
	}

	a := api.New(app.Schema, stores.Set, app.Logger)
	if app.Config.HTTP.Pprof {
		a.WithProfiling(profiling.DefaultConfig())
	}
	handler := a.Routes()
	cfg := server.DefaultConfig(handler)
	cfg.Address = addr

	srv, err := server.New(cfg)
	if err != nil {
		stores.Close()
		return err
	}

	gs := server.NewGracefulShutdown(srv, timeout, app.Logger)
	gs.RegisterHook(func(ctx context.Context) error {
		app.Logger.Info("closing stores")
		return stores.Close()
	})

	if err := srv.Listen(); err != nil {
		stores.Close()
		return err
	}
	app.Logger.Info("serving relation API", zap.String("addr", srv.Addr()), zap.Strings("engines", app.Schema.Engines()))

	return gs.Run(ctx)
}
