package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	httphandler "github.com/iniwap/AIWriteX/internal/adapter/driving/http"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the publish API",
	Long: `Serve the publish API, the publish history and Prometheus metrics over HTTP
until interrupted. The listen address defaults to WXPUB_LISTEN_ADDR.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

var serveAddr string

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides WXPUB_LISTEN_ADDR)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(_ *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.cfg.ValidateForPublishing(); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}

	addr := a.cfg.ListenAddr
	if serveAddr != "" {
		addr = serveAddr
	}

	logger := slog.Default()
	h := httphandler.NewHandler(a.service, a.recorder.Handler(), logger)

	srv := &http.Server{
		Addr:              addr,
		Handler:           httphandler.NewServeMux(h, logger),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		// A publish request runs the whole batch, polling included.
		WriteTimeout: 10 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server starting", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
	}
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http server shutdown error", "error", err)
	}

	slog.Info("shutdown complete")
	return nil
}
