package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/hashicorp/go-plugin"
	"github.com/spf13/cobra"

	"provhost/internal/bootstrap"
	"provhost/internal/platform/config"
	"provhost/internal/platform/logging"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type globalOptions struct {
	root        string
	logLevel    string
	logJSON     bool
	metricsAddr string
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:           "provhost",
		Short:         "Install, load and verify provider plugins",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.root, "root", defaultRoot(), "data directory for providers, settings and the database")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level: trace|debug|info|warn|error (overrides config.yaml)")
	root.PersistentFlags().BoolVar(&opts.logJSON, "log-json", false, "emit JSON logs")
	root.PersistentFlags().StringVar(&opts.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address while the command runs")

	root.AddCommand(newRepoCmd(opts))
	root.AddCommand(newProviderCmd(opts))
	root.AddCommand(newPrefsCmd(opts))
	root.AddCommand(newTestCmd(opts))
	return root
}

func defaultRoot() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "provhost")
	}
	return ".provhost"
}

// withApp builds the application, runs fn under a signal-aware context and
// tears down plugin processes afterwards.
func withApp(opts *globalOptions, fn func(ctx context.Context, app *bootstrap.App) error) error {
	cfg, err := config.New(opts.root)
	if err != nil {
		return err
	}
	level := cfg.LogLevel
	if opts.logLevel != "" {
		level = opts.logLevel
	}
	logger := logging.New(logging.Options{Level: level, JSON: opts.logJSON})

	app, err := bootstrap.New(cfg, logger)
	if err != nil {
		return err
	}
	defer app.Close()
	defer plugin.CleanupClients()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if opts.metricsAddr != "" {
		server := &http.Server{Addr: opts.metricsAddr, Handler: metricsMux(app), ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server failed", "addr", opts.metricsAddr, "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = server.Shutdown(shutdownCtx)
		}()
	}
	return fn(ctx, app)
}

func metricsMux(app *bootstrap.App) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", app.Metrics.Handler())
	return mux
}
