package main

import (
	"context"
	"errors"
	"io"
	"os"

	"github.com/genricoloni/nowplaying/internal/config"
	"github.com/genricoloni/nowplaying/internal/domain"
	"github.com/genricoloni/nowplaying/internal/engine"
	"github.com/genricoloni/nowplaying/internal/manager"
	"github.com/genricoloni/nowplaying/internal/platform"
	"github.com/genricoloni/nowplaying/internal/watcher"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// configPath is the --config flag value; empty searches the default locations
type configPath string

// oneShot marks applications that answer a single query and exit
type oneShot bool

// coreOptions provides configuration, logging, the platform backend and the manager
var coreOptions = fx.Options(
	fx.Provide(
		func() configPath { return "" },
		func() oneShot { return false },
		newConfig,
		newLogger,
		platform.NewBackend,
		newManager,
	),
	fx.Invoke(registerBackendHooks),
)

// AppOptions wires the long-running watch application
var AppOptions = fx.Options(
	coreOptions,
	fx.Provide(
		newWatcher,
		newSink,
		newEngine,
	),
	fx.Invoke(registerHooks),
)

func newConfig(path configPath) (*config.AppConfig, error) {
	return config.Load(string(path))
}

// newLogger creates a zap logger configured by log.level and log.mode.
// One-shot queries keep stderr quiet: the default info level becomes warn.
func newLogger(cfg *config.AppConfig, shot oneShot) (*zap.Logger, error) {
	zcfg := zap.NewProductionConfig()
	if cfg.GetLogMode() == config.ModeDevelopment {
		zcfg = zap.NewDevelopmentConfig()
	}
	level := cfg.GetLogLevel()
	if shot && level == zapcore.InfoLevel {
		level = zapcore.WarnLevel
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)

	logger, err := zcfg.Build()
	if err != nil {
		return nil, err
	}
	cfg.LogLoaded(logger)
	return logger, nil
}

func newManager(logger *zap.Logger, backend domain.Backend) *manager.Manager {
	return manager.New(logger, backend)
}

func newWatcher(logger *zap.Logger, cfg *config.AppConfig, backend domain.Backend, mgr *manager.Manager) *watcher.Watcher {
	return watcher.New(logger, backend, mgr, watcher.WithInterval(cfg.GetPollInterval()))
}

func newSink() engine.Sink {
	return newJSONSink(os.Stdout)
}

func newEngine(logger *zap.Logger, cfg *config.AppConfig, w *watcher.Watcher, sink engine.Sink, shutdowner fx.Shutdowner) *engine.Engine {
	return engine.NewEngine(logger, cfg, w, sink,
		engine.WithFatalHandler(func(error) {
			if err := shutdowner.Shutdown(fx.ExitCode(1)); err != nil {
				logger.Error("Failed to request shutdown", zap.Error(err))
			}
		}))
}

// registerBackendHooks closes backends that hold a native connection
func registerBackendHooks(lc fx.Lifecycle, logger *zap.Logger, backend domain.Backend) {
	closer, ok := backend.(io.Closer)
	if !ok {
		return
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			if err := closer.Close(); err != nil {
				logger.Warn("Failed to close media backend", zap.Error(err))
			}
			return nil
		},
	})
}

// registerHooks sets up application lifecycle hooks
func registerHooks(lc fx.Lifecycle, logger *zap.Logger, eng *engine.Engine) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			logger.Info("nowplaying watcher started")
			return eng.Start(ctx)
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("Shutting down")
			err := eng.Stop(ctx)
			if errors.Is(err, context.DeadlineExceeded) {
				logger.Warn("Engine did not stop in time")
			}
			return err
		},
	})
}
