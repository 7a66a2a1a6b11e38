package engine

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/genricoloni/nowplaying/internal/domain"
	"go.uber.org/zap"
)

// Runner follows the active media session until ctx ends or it fails
type Runner interface {
	Run(ctx context.Context, onChange func(domain.MediaProps)) error
}

// Sink receives every delivered media change
type Sink interface {
	Publish(props domain.MediaProps) error
}

// Engine keeps a watcher running for the lifetime of the application.
// Retryable failures (no session, backend unavailable) restart the watcher
// with exponential backoff; anything else stops the engine.
type Engine struct {
	logger  *zap.Logger
	cfg     domain.Config
	runner  Runner
	sink    Sink
	onFatal func(error)

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

// Option customizes an Engine
type Option func(*Engine)

// WithFatalHandler is called once when the engine gives up
func WithFatalHandler(fn func(error)) Option {
	return func(e *Engine) {
		e.onFatal = fn
	}
}

// NewEngine creates a new orchestration engine
func NewEngine(logger *zap.Logger, cfg domain.Config, runner Runner, sink Sink, opts ...Option) *Engine {
	e := &Engine{
		logger:  logger,
		cfg:     cfg,
		runner:  runner,
		sink:    sink,
		onFatal: func(error) {},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Start launches the engine's watch loop in a goroutine.
// It returns immediately (non-blocking).
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.done != nil {
		return nil
	}

	e.logger.Info("Engine starting...")

	// The loop outlives the start context, which fx cancels once startup completes
	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	e.cancel = cancel
	e.done = make(chan struct{})

	go e.runLoop(loopCtx)
	return nil
}

func (e *Engine) runLoop(ctx context.Context) {
	defer close(e.done)

	err := e.watchWithRetry(ctx)
	if err == nil || errors.Is(err, context.Canceled) {
		e.logger.Info("Engine loop stopped")
		return
	}

	e.logger.Error("Engine loop failed permanently", zap.Error(err))
	e.mu.Lock()
	e.err = err
	e.mu.Unlock()
	e.onFatal(err)
}

func (e *Engine) watchWithRetry(ctx context.Context) error {
	policy := e.cfg.GetRetryPolicy()

	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = policy.InitialInterval
	exp.MaxInterval = policy.MaxInterval
	exp.MaxElapsedTime = policy.MaxElapsed
	exp.Reset()

	operation := func() error {
		started := time.Now()
		err := e.runner.Run(ctx, e.publish)
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		if err == nil || !domain.Retryable(err) {
			return backoff.Permanent(err)
		}
		// A watcher that ran for a while earns a fresh backoff schedule
		if time.Since(started) > policy.MaxInterval {
			exp.Reset()
		}
		return err
	}

	notify := func(err error, wait time.Duration) {
		e.logger.Warn("Watcher stopped, retrying",
			zap.Error(err),
			zap.Duration("retryIn", wait))
	}

	return backoff.RetryNotify(operation, backoff.WithContext(exp, ctx), notify)
}

func (e *Engine) publish(props domain.MediaProps) {
	if err := e.sink.Publish(props); err != nil {
		e.logger.Error("Failed to publish media change",
			zap.String("title", props.Title),
			zap.Error(err))
	}
}

// Stop cancels the watch loop and waits for it to release its subscriptions
func (e *Engine) Stop(ctx context.Context) error {
	e.mu.Lock()
	cancel, done := e.cancel, e.done
	e.mu.Unlock()
	if done == nil {
		return nil
	}

	e.logger.Info("Engine stopping...")
	cancel()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Err returns why the engine gave up, if it did
func (e *Engine) Err() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.err
}
