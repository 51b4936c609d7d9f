package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"portal-auth/backend/internal/config"
	"portal-auth/backend/internal/logger"
	"portal-auth/backend/internal/server"
	"portal-auth/backend/internal/telemetry"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log, err := logger.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()
	zap.ReplaceGlobals(log)

	if err := run(cfg, log); err != nil {
		log.Fatal("server exited", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := build(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer app.close(log)

	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	deps := server.RouterDeps{
		Auth:        app.auth,
		Metadata:    app.metadata,
		Tokens:      app.tokens,
		Checker:     app.checker,
		Metrics:     app.httpMetrics,
		RateLimiter: app.limiter,
		CORSOrigins: cfg.CORSOrigins(),
		Logger:      log,

		TrustedProxies: cfg.TrustedProxyList(),
	}
	if app.devOTP != nil {
		deps.DevOTP = app.devOTP.Get
	}
	router := server.NewRouter(deps)
	httpSrv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 2)
	go func() {
		log.Info("HTTP server listening", zap.String("addr", cfg.HTTPAddr))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http serve: %w", err)
		}
	}()

	var stopGRPC func()
	if cfg.GRPCAddr != "" {
		lis, err := net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			return fmt.Errorf("grpc listen: %w", err)
		}
		grpcSrv := server.NewGRPCServer(server.GRPCDeps{
			Checker: app.checker,
			Tokens:  app.tokens,
			Logger:  log,
		})
		stopGRPC = grpcSrv.GracefulStop
		go func() {
			log.Info("gRPC health server listening", zap.String("addr", cfg.GRPCAddr))
			if err := grpcSrv.Serve(lis); err != nil {
				errCh <- fmt.Errorf("grpc serve: %w", err)
			}
		}()
	}

	var serveErr error
	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case serveErr = <-errCh:
		log.Error("server failed", zap.Error(serveErr))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Warn("http shutdown", zap.Error(err))
	}
	if stopGRPC != nil {
		stopGRPC()
	}
	// Let in-flight async auth events finish before the providers flush.
	time.Sleep(telemetry.ShutdownDrainDuration)
	log.Info("server stopped")
	return serveErr
}
