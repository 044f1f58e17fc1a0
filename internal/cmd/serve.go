package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/c2tech/dashauth/internal/httpapi"
	"github.com/c2tech/dashauth/internal/logging"
	"github.com/c2tech/dashauth/metrics/export/prometheus"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the auth HTTP server",
	Long: `Start the HTTP server exposing the login, logout, identity and company
endpoints. The server drains connections on SIGINT or SIGTERM.

Example:
  dashauth serve --config /etc/dashauth.yaml
  dashauth serve --address :9090`,
	RunE: runServe,
}

var serveAddress string

func init() {
	serveCmd.Flags().StringVar(&serveAddress, "address", "", "listen address (overrides server.address)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := loadConfig(configPath, nil)
	if err != nil {
		return err
	}
	if serveAddress != "" {
		cfg.Server.Address = serveAddress
	}

	log, err := logging.New(cfg.Log, cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	store, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("open %s store: %w", cfg.Store.Driver, err)
	}
	defer closeStore()

	engine, closeEngine, err := buildEngine(ctx, cfg, store, log, true)
	if err != nil {
		return err
	}
	defer closeEngine()

	opts := httpapi.Options{TrustProxy: cfg.Server.TrustProxy, Log: log}
	if cfg.Server.Metrics {
		collector, err := prometheus.NewCollector(engine)
		if err != nil {
			return err
		}
		opts.Metrics = collector.Handler()
	}

	srv := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      httpapi.NewRouter(engine, opts),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- srv.ListenAndServe()
	}()

	log.WithFields(logrus.Fields{
		"address": cfg.Server.Address,
		"store":   cfg.Store.Driver,
		"limiter": string(cfg.Auth.RateLimit.Backend),
	}).Info("dashauth listening")

	select {
	case err := <-serverErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown error: %w", err)
		}
		return nil
	}
}
