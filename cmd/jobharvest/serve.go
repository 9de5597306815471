package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/use-agent/jobharvest/api"
	"github.com/use-agent/jobharvest/cache"
)

var (
	serveHost    string
	servePort    int
	serveCookies string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the REST API server",
	Long: `Start an HTTP server exposing POST /api/v1/harvest and GET /api/v1/health.

All requests share one browser; harvests run one at a time in arrival order.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "", "Address to bind (default from config, 0.0.0.0)")
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Port to listen on (default from config, 8080)")
	serveCmd.Flags().StringVar(&serveCookies, "cookies", "", "Cookie file or header applied to every harvest tab")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("host") {
		cfg.Server.Host = serveHost
	}
	if cmd.Flags().Changed("port") {
		cfg.Server.Port = servePort
	}
	initLogger(cfg.Log)
	slog.Info("jobharvest starting",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"mode", cfg.Server.Mode,
		"auth", cfg.Auth.Enabled && len(cfg.Auth.APIKeys) > 0,
	)
	if cfg.Auth.Enabled && len(cfg.Auth.APIKeys) == 0 {
		slog.Warn("auth enabled but JOBHARVEST_API_KEYS is empty, API is open")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	source, b, err := launchSource(cfg, serveCookies)
	if err != nil {
		return err
	}
	defer b.Close()

	// The classifier is only built when a key is configured; requests with
	// ai=true are served without enrichment otherwise.
	withAI := cfg.AI.APIKey != ""
	r, cleanup, err := newRunner(ctx, cfg, source, withAI)
	if err != nil {
		return err
	}
	defer cleanup()

	cc := cache.New(cfg.Cache.MaxEntries)
	defer cc.Close()

	router := api.NewRouter(r, cfg, cc, time.Now())
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("HTTP server: %w", err)
		}
	case <-ctx.Done():
		slog.Info("shutdown signal received")
	}

	// A harvest can outlive this window; its tab is closed with the browser.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server forced shutdown", "error", err)
	} else {
		slog.Info("HTTP server drained gracefully")
	}

	slog.Info("jobharvest stopped")
	return nil
}
