// Package watcher delivers MediaProps to a callback whenever the active
// session's normalized metadata changes.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/genricoloni/nowplaying/internal/domain"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// DefaultInterval is the poll tick for sessions without push notifications
const DefaultInterval = 1000 * time.Millisecond

var errSessionChanged = errors.New("active session changed")

// Fetcher reads normalized metadata from a resolved session
type Fetcher interface {
	MediaPropsOf(ctx context.Context, sess domain.Session) (domain.MediaProps, error)
}

// Watcher follows the active session of a backend. A Watcher can be run
// several times; every run owns its own snapshot.
type Watcher struct {
	logger   *zap.Logger
	backend  domain.Backend
	fetcher  Fetcher
	interval time.Duration
	onError  func(error)
}

// Option customizes a Watcher
type Option func(*Watcher)

// WithInterval sets the poll tick used for sessions that cannot push changes
func WithInterval(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.interval = d
		}
	}
}

// WithErrorHandler receives per-tick failures. They never stop the watcher.
func WithErrorHandler(fn func(error)) Option {
	return func(w *Watcher) {
		w.onError = fn
	}
}

// New creates a Watcher over backend, reading metadata through fetcher
func New(logger *zap.Logger, backend domain.Backend, fetcher Fetcher, opts ...Option) *Watcher {
	w := &Watcher{
		logger:   logger.With(zap.String("component", "watcher")),
		backend:  backend,
		fetcher:  fetcher,
		interval: DefaultInterval,
		onError:  func(error) {},
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// run is the state shared by the sessions followed during one Run
type run struct {
	sessionChanged chan struct{}
	notifierLost   <-chan struct{}
	dedup          Deduper
	onChange       func(domain.MediaProps)
}

// Run blocks until ctx is cancelled or the watcher cannot (re)establish its
// subscriptions. onChange runs on the watcher goroutine, once for the
// baseline and then once per change. Every native subscription is released
// before Run returns, including when onChange panics.
//
// When the backend signals session changes, a session that disappears is
// reported through the error handler and the watcher waits for the next
// one, keeping its snapshot.
func (w *Watcher) Run(ctx context.Context, onChange func(domain.MediaProps)) (err error) {
	r := &run{sessionChanged: make(chan struct{}, 1), onChange: onChange}
	notified := false
	if n, ok := w.backend.(domain.SessionNotifier); ok {
		sub, subErr := n.NotifySessionChanges(handoff(r.sessionChanged))
		if subErr != nil {
			return fmt.Errorf("subscribe to session changes: %w", subErr)
		}
		defer func() {
			err = multierr.Append(err, sub.Unsubscribe())
		}()
		r.notifierLost = lostOf(sub)
		notified = true
	}

	w.logger.Info("Watcher started",
		zap.String("backend", w.backend.Name()),
		zap.Duration("interval", w.interval))

	followed := false
	for {
		followErr := w.follow(ctx, r)
		switch {
		case errors.Is(followErr, errSessionChanged):
			w.logger.Info("Active session changed, re-resolving")
		case notified && followed && errors.Is(followErr, domain.ErrNoActiveSession):
			w.logger.Info("Active session gone, waiting for a new one")
			w.onError(followErr)
			if waitErr := w.awaitSession(ctx, r); waitErr != nil {
				w.logger.Info("Watcher stopped", zap.Error(waitErr))
				return waitErr
			}
		default:
			w.logger.Info("Watcher stopped", zap.Error(followErr))
			return followErr
		}
		followed = true
	}
}

// awaitSession blocks until the backend signals that a session may be
// available again
func (w *Watcher) awaitSession(ctx context.Context, r *run) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-r.notifierLost:
		return fmt.Errorf("%w: session change subscription lost", domain.ErrBackendUnavailable)
	case <-r.sessionChanged:
		return nil
	}
}

// follow watches one session until ctx ends, the backend signals a session
// change (errSessionChanged) or a subscription cannot be established or is lost
func (w *Watcher) follow(ctx context.Context, r *run) (err error) {
	sess, err := w.backend.ActiveSession(ctx)
	if err != nil {
		return fmt.Errorf("resolve active session: %w", err)
	}

	ticks := make(chan struct{}, 1)
	var poll <-chan time.Time
	var sessionLost <-chan struct{}

	if sub, ok := sess.(domain.Subscriber); ok {
		token, subErr := sub.Subscribe(handoff(ticks))
		if subErr != nil {
			return fmt.Errorf("subscribe to session %s: %w", sess.ID(), subErr)
		}
		defer func() {
			err = multierr.Append(err, token.Unsubscribe())
		}()
		sessionLost = lostOf(token)
		w.logger.Debug("Following session by notification", zap.String("session", sess.ID()))
	} else {
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()
		poll = ticker.C
		w.logger.Debug("Following session by polling", zap.String("session", sess.ID()))
	}

	w.tick(ctx, sess, &r.dedup, r.onChange)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-r.notifierLost:
			return fmt.Errorf("%w: session change subscription lost", domain.ErrBackendUnavailable)
		case <-sessionLost:
			return fmt.Errorf("%w: subscription to session %s lost", domain.ErrBackendUnavailable, sess.ID())
		case <-r.sessionChanged:
			return errSessionChanged
		case <-ticks:
			w.tick(ctx, sess, &r.dedup, r.onChange)
		case <-poll:
			w.tick(ctx, sess, &r.dedup, r.onChange)
		}
	}
}

// tick fetches once and delivers on change. Failures are reported and leave
// the snapshot untouched.
func (w *Watcher) tick(ctx context.Context, sess domain.Session, dedup *Deduper, onChange func(domain.MediaProps)) {
	props, err := w.fetcher.MediaPropsOf(ctx, sess)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		w.logger.Warn("Failed to fetch media properties",
			zap.String("session", sess.ID()),
			zap.Error(err))
		w.onError(err)
		return
	}

	if !dedup.Changed(props) {
		return
	}

	w.logger.Info("Media change detected",
		zap.String("session", sess.ID()),
		zap.String("title", props.Title),
		zap.String("artist", props.Artist),
		zap.Uint64("fingerprint", props.Fingerprint()))

	onChange(props)
	dedup.Commit(props)
}

// handoff returns a native callback that never blocks: it leaves at most one
// pending signal for the watcher goroutine
func handoff(ch chan<- struct{}) func() {
	return func() {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// lostOf returns the channel closed when sub ends on its own, or nil
func lostOf(sub domain.Subscription) <-chan struct{} {
	if r, ok := sub.(domain.Revocable); ok {
		return r.Lost()
	}
	return nil
}

// Handle controls a watcher started with Start
type Handle struct {
	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

// Start runs the watcher on its own goroutine
func (w *Watcher) Start(ctx context.Context, onChange func(domain.MediaProps)) *Handle {
	ctx, cancel := context.WithCancel(ctx)
	h := &Handle{cancel: cancel, done: make(chan struct{})}
	go func() {
		defer close(h.done)
		h.err = w.Run(ctx, onChange)
	}()
	return h
}

// Stop cancels the watcher and waits until its subscriptions are released.
// It must not be called from the onChange callback.
func (h *Handle) Stop() error {
	h.cancel()
	<-h.done
	return h.Err()
}

// Done is closed when the watcher has returned
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Err returns why the watcher ended. Cancellation is not an error.
func (h *Handle) Err() error {
	select {
	case <-h.done:
	default:
		return nil
	}
	if errors.Is(h.err, context.Canceled) {
		return nil
	}
	return h.err
}
