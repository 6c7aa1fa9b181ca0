// Package app wires the process: configuration, loggers, the directory,
// the hub, and the HTTP server, with graceful shutdown on context cancel.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	server "plaza/server"
	"plaza/server/internal/directory"
	"plaza/server/internal/identity"
	servernet "plaza/server/internal/net"
	"plaza/server/internal/net/ws"
	"plaza/server/internal/proximity"
	"plaza/server/internal/telemetry"
	"plaza/server/logging"
	"plaza/server/logging/sinks"
)

// Run assembles the server from cfg and serves until ctx is cancelled.
func Run(ctx context.Context, cfg Config) error {
	zapLogger, closeLogger, err := buildLogger(cfg)
	if err != nil {
		return err
	}
	defer closeLogger()
	logger := telemetry.WrapZap(zapLogger.Sugar())

	router := buildEventRouter(cfg)
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if cerr := router.Close(closeCtx); cerr != nil {
			logger.Printf("event router close: %v", cerr)
		}
	}()

	// Every domain event carries the service name so aggregated sinks can
	// tell plaza records apart from neighbouring processes.
	events := logging.WithFields(router, map[string]any{"service": "plaza"})

	dir, closeDir, err := buildDirectory(cfg)
	if err != nil {
		return err
	}
	defer closeDir()

	registry := identity.NewRegistry()
	var verifier identity.Verifier
	if cfg.JWTSecret != "" {
		verifier = identity.NewJWTVerifier([]byte(cfg.JWTSecret))
	}
	resolver := identity.NewResolver(verifier, registry, cfg.AllowGuests)

	store := server.NewStore(proximity.NewEngine(cfg.proximityRadius()), cfg.maxOccupancy())
	gateway := ws.NewGateway(logger, events)
	hub := server.NewHub(server.HubConfig{
		Store:      store,
		Directory:  dir,
		Identities: registry,
		Gateway:    gateway,
		Logger:     logger,
		Publisher:  events,
	})

	wsHandler := ws.NewHandler(hub, gateway, ws.HandlerConfig{
		Resolver:  resolver,
		Logger:    logger,
		Publisher: events,
	})
	handler := servernet.NewHTTPHandler(hub, wsHandler, servernet.HTTPHandlerConfig{
		Logger:     logger,
		EventStats: router.Stats,
	})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Printf("listening on %s", cfg.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Printf("server stopped")
	return nil
}

// buildLogger produces the process logger: console output always, plus a
// rotating JSON file when PLAZA_LOG_PATH is set.
func buildLogger(cfg Config) (*zap.Logger, func(), error) {
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	consoleCore := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderCfg),
		zapcore.Lock(os.Stdout),
		zapcore.InfoLevel,
	)

	cores := []zapcore.Core{consoleCore}
	closer := func() {}
	if cfg.LogPath != "" {
		rotator := &lumberjack.Logger{
			Filename:   cfg.LogPath,
			MaxSize:    50,
			MaxBackups: 5,
			MaxAge:     14,
			Compress:   true,
		}
		cores = append(cores, zapcore.NewCore(
			zapcore.NewJSONEncoder(encoderCfg),
			zapcore.AddSync(rotator),
			zapcore.InfoLevel,
		))
		closer = func() { rotator.Close() }
	}

	logger := zap.New(zapcore.NewTee(cores...))
	return logger, func() {
		logger.Sync()
		closer()
	}, nil
}

// buildEventRouter assembles the structured event pipeline from the
// configured sink names. Unknown names are ignored.
func buildEventRouter(cfg Config) *logging.Router {
	logCfg := logging.DefaultConfig()
	logCfg.EnabledSinks = cfg.EventSinks
	if cfg.EventLogPath != "" {
		logCfg.JSON.FilePath = cfg.EventLogPath
	}

	var named []logging.NamedSink
	if logCfg.HasSink("console") {
		named = append(named, logging.NamedSink{Name: "console", Sink: sinks.NewConsole(os.Stdout)})
	}
	if logCfg.HasSink("json") && logCfg.JSON.FilePath != "" {
		named = append(named, logging.NamedSink{Name: "json", Sink: sinks.NewJSONFile(logCfg.JSON)})
	}
	return logging.NewRouter(nil, logCfg, named)
}

// buildDirectory picks the realm directory backend: sqlite when a database
// path is configured, otherwise an empty in-memory directory that standalone
// deployments can seed through the webhook-adjacent admin tooling.
func buildDirectory(cfg Config) (directory.Directory, func(), error) {
	if cfg.DBPath == "" {
		return directory.NewStatic(), func() {}, nil
	}
	db, err := directory.OpenSQLite(cfg.DBPath)
	if err != nil {
		return nil, nil, fmt.Errorf("open directory: %w", err)
	}
	return db, func() { db.Close() }, nil
}
