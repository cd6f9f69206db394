// support-desk serves the IT support form and JSON API.
//
// Examples:
//
//	export GEMINI_API_KEY=...
//	go run ./cmd/support-desk -config support-desk.toml
//
//	SUPPORT_DESK_PROVIDER=dummy go run ./cmd/support-desk
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/Protocol-Lattice/go-support-desk/src/bootstrap"
	"github.com/Protocol-Lattice/go-support-desk/src/config"
	"github.com/Protocol-Lattice/go-support-desk/src/logging"
	"github.com/Protocol-Lattice/go-support-desk/src/server"
)

var flagConfig = flag.String("config", os.Getenv(config.EnvPrefix+"CONFIG"), "Path to a TOML config file")

func main() {
	flag.Parse()

	cfg, err := config.Load(*flagConfig)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("support-desk stopped", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	reg := prometheus.NewRegistry()
	rt, err := bootstrap.Build(ctx, cfg, logger, reg)
	if err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	defer func() {
		if err := rt.Close(context.WithoutCancel(ctx)); err != nil {
			logger.Warn("shutdown cleanup failed", zap.Error(err))
		}
	}()

	gin.SetMode(gin.ReleaseMode)
	router := server.NewRouter(rt.Service, server.Options{
		Logger:         logger,
		APIKeys:        rt.APIKeys,
		CORSOrigins:    cfg.Server.CORSOrigins,
		MaxUploadBytes: cfg.Attachments.MaxBytes,
		Gatherer:       reg,
	})

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: cfg.Server.ReadTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", cfg.Server.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Server.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
