package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/Gobusters/ectologger/zapadapter"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/Ramsey-B/clover/config"
	"github.com/Ramsey-B/clover/pkg/middleware"
	"github.com/Ramsey-B/clover/pkg/startup"
	"github.com/Ramsey-B/clover/pkg/tracing"
	"github.com/Ramsey-B/clover/pkg/tracing/exporters"
)

var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger, sync, err := newLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer sync()

	if err := run(cfg, logger); err != nil {
		logger.WithError(err).Error("clover stopped with an error")
		sync()
		os.Exit(1)
	}
}

func newLogger(cfg *config.Config) (ectologger.Logger, func(), error) {
	zapConfig := zap.NewProductionConfig()
	if cfg.PrettyLogs {
		zapConfig = zap.NewDevelopmentConfig()
	}
	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, nil, err
	}
	zapConfig.Level = zap.NewAtomicLevelAt(level)

	zapLogger, err := zapConfig.Build()
	if err != nil {
		return nil, nil, err
	}
	zapLogger = zapLogger.With(zap.String("app", cfg.AppName), zap.String("version", version))
	return zapadapter.NewZapEctoLogger(zapLogger, nil), func() { _ = zapLogger.Sync() }, nil
}

func newTracerProvider(ctx context.Context, cfg *config.Config, logger ectologger.Logger) (*sdktrace.TracerProvider, error) {
	exporter, err := exporters.NewSpanExporter(ctx, exporters.OTLPConfig{
		Enabled:  cfg.OTLPEnabled,
		Endpoint: cfg.OTLPEndpoint,
		Protocol: cfg.OTLPProtocol,
		Insecure: cfg.OTLPInsecure,
	}, logger)
	if err != nil {
		return nil, err
	}

	provider := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))
	tracing.SetTracer(provider.Tracer(cfg.AppName))
	return provider, nil
}

func run(cfg *config.Config, logger ectologger.Logger) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	provider, err := newTracerProvider(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("tracing: %w", err)
	}
	defer func() {
		shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		defer done()
		_ = provider.Shutdown(shutdownCtx)
	}()

	app := newApp(cfg, logger)
	boot := startup.NewStartup(logger, cfg.StartupMaxAttempts)
	app.registerDependencies(boot)
	if err := boot.Start(ctx); err != nil {
		_ = boot.Stop(context.Background())
		return err
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = middleware.Error(logger)
	e.Use(echomiddleware.Recover())
	e.Use(otelecho.Middleware(cfg.AppName))
	e.Use(middleware.Context())
	e.Use(middleware.Logger(logger))
	e.Use(echomiddleware.CORSWithConfig(echomiddleware.CORSConfig{
		AllowOrigins: cfg.AllowOrigins,
		AllowMethods: cfg.AllowMethods,
	}))
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	if err := app.registerRoutes(ctx, e); err != nil {
		_ = boot.Stop(context.Background())
		return err
	}
	app.health.SetReady(true)

	server := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.Port),
		Handler:           e,
		ReadTimeout:       time.Duration(cfg.HttpServerReadTimeoutSeconds) * time.Second,
		WriteTimeout:      time.Duration(cfg.HttpServerWriteTimeoutSeconds) * time.Second,
		IdleTimeout:       time.Duration(cfg.HttpServerIdleTimeoutSeconds) * time.Second,
		ReadHeaderTimeout: time.Duration(cfg.ReadHeaderTimeoutSeconds) * time.Second,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Infof("Listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case err = <-serverErr:
		logger.WithError(err).Error("HTTP server failed")
	}

	app.health.SetReady(false)
	shutdownCtx, done := context.WithTimeout(context.Background(), 30*time.Second)
	defer done()
	if shutdownErr := server.Shutdown(shutdownCtx); shutdownErr != nil {
		logger.WithError(shutdownErr).Warn("HTTP server did not shut down cleanly")
	}
	if stopErr := boot.Stop(shutdownCtx); stopErr != nil && err == nil {
		err = stopErr
	}
	return err
}
