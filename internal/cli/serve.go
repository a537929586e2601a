package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/claimdesk/internal/auth"
	"github.com/JonMunkholm/claimdesk/internal/core"
	"github.com/JonMunkholm/claimdesk/internal/metrics"
	"github.com/JonMunkholm/claimdesk/internal/telemetry"
	"github.com/JonMunkholm/claimdesk/internal/web"
)

func (a *app) serveCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the web server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.serve(cmd.Context())
		},
	}
	cmd.Flags().String("host", "", "interface to bind; also SERVER_HOST")
	cmd.Flags().String("port", "", "port to listen on; also SERVER_PORT")
	a.bindFlags(cmd, map[string]string{"SERVER_HOST": "host", "SERVER_PORT": "port"})
	return cmd
}

func (a *app) serve(ctx context.Context) error {
	cfg := a.cfg
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := telemetry.Init(cfg.Metrics, a.version); err != nil {
		slog.Warn("error reporting disabled", "error", err)
	}
	defer telemetry.Flush(2 * time.Second)

	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"driver", cfg.Database.Driver,
		"import_policy", cfg.Import.Policy,
		"rate_limit_enabled", cfg.Rate.Enabled,
	)

	st, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	opts := core.OptionsFromConfig(cfg)
	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		if m, err = metrics.New(prometheus.NewRegistry()); err != nil {
			return err
		}
		opts.Observer = m
	}

	service := core.NewService(st, opts)
	server := web.NewServer(cfg, service, auth.NewManager(st, cfg.Security), m)

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down...")
	if status := service.ImportStatus(); status.Running {
		slog.Info("waiting for import to complete", "import_id", status.ImportID)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
		return err
	}
	return <-errCh
}
