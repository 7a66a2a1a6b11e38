// Package manager implements the caller-facing media manager on top of a
// platform backend. Blocking and non-blocking calls share one implementation.
package manager

import (
	"context"
	"errors"
	"time"

	"github.com/genricoloni/nowplaying/internal/domain"
	"github.com/genricoloni/nowplaying/internal/normalize"
	"github.com/genricoloni/nowplaying/internal/status"
	"go.uber.org/zap"
)

var (
	_ domain.MediaManager      = (*Manager)(nil)
	_ domain.AsyncMediaManager = (*Manager)(nil)
)

// Manager resolves the active session on every call and normalizes what it reads.
// It holds no per-call state and is safe for concurrent use.
type Manager struct {
	logger     *zap.Logger
	backend    domain.Backend
	normalizer *normalize.Normalizer
	resolver   *status.Resolver
	now        func() time.Time
}

// Option customizes a Manager
type Option func(*Manager)

// WithClock overrides the wall clock used to reconcile timeline timestamps
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// New creates a manager over backend
func New(logger *zap.Logger, backend domain.Backend, opts ...Option) *Manager {
	m := &Manager{
		logger:     logger.With(zap.String("backend", backend.Name())),
		backend:    backend,
		normalizer: normalize.New(logger),
		resolver:   status.NewResolver(logger),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Backend returns the backend the manager reads from
func (m *Manager) Backend() domain.Backend {
	return m.backend
}

// CurrentlyPlaying returns normalized metadata of the active session
func (m *Manager) CurrentlyPlaying(ctx context.Context) (domain.MediaProps, error) {
	sess, err := m.backend.ActiveSession(ctx)
	if err != nil {
		return domain.NewMediaProps(), err
	}
	return m.MediaPropsOf(ctx, sess)
}

// PlayerStatus returns the transport state of the active session
func (m *Manager) PlayerStatus(ctx context.Context) (domain.PlayerStatus, error) {
	sess, err := m.backend.ActiveSession(ctx)
	if err != nil {
		return domain.PlayerStatus{}, err
	}
	return m.StatusOf(ctx, sess)
}

// Timeline returns the timeline carried by the current status.
// Fails with ErrNoTimeline when the status is None or carries no timeline.
func (m *Manager) Timeline(ctx context.Context) (domain.TimelineProps, error) {
	st, err := m.PlayerStatus(ctx)
	if err != nil {
		return domain.TimelineProps{}, err
	}
	if st.State == domain.StateNone || st.Timeline == nil {
		return domain.TimelineProps{}, domain.ErrNoTimeline
	}
	return *st.Timeline, nil
}

// Snapshot reads metadata and status from a single session resolution
func (m *Manager) Snapshot(ctx context.Context) (domain.MediaProps, domain.PlayerStatus, error) {
	sess, err := m.backend.ActiveSession(ctx)
	if err != nil {
		return domain.NewMediaProps(), domain.PlayerStatus{}, err
	}
	props, err := m.MediaPropsOf(ctx, sess)
	if err != nil {
		return props, domain.PlayerStatus{}, err
	}
	st, err := m.StatusOf(ctx, sess)
	if err != nil {
		return props, domain.PlayerStatus{}, err
	}
	return props, st, nil
}

// CurrentlyPlayingAsync is the non-blocking form of CurrentlyPlaying
func (m *Manager) CurrentlyPlayingAsync(ctx context.Context) domain.Awaitable[domain.MediaProps] {
	return Go(ctx, m.CurrentlyPlaying)
}

// PlayerStatusAsync is the non-blocking form of PlayerStatus
func (m *Manager) PlayerStatusAsync(ctx context.Context) domain.Awaitable[domain.PlayerStatus] {
	return Go(ctx, m.PlayerStatus)
}

// TimelineAsync is the non-blocking form of Timeline
func (m *Manager) TimelineAsync(ctx context.Context) domain.Awaitable[domain.TimelineProps] {
	return Go(ctx, m.Timeline)
}

// MediaPropsOf reads and normalizes metadata from an already resolved session
func (m *Manager) MediaPropsOf(ctx context.Context, sess domain.Session) (domain.MediaProps, error) {
	bag, err := sess.Properties(ctx)
	if err != nil {
		return domain.NewMediaProps(), nativeError("read media properties", err)
	}
	return m.normalizer.MediaProps(bag)
}

// StatusOf resolves the transport state of an already resolved session
func (m *Manager) StatusOf(ctx context.Context, sess domain.Session) (domain.PlayerStatus, error) {
	raw, err := sess.PlaybackStatus(ctx)
	if err != nil {
		return domain.PlayerStatus{}, nativeError("read playback status", err)
	}
	return m.resolver.Resolve(ctx, raw, func(ctx context.Context) (domain.TimelineProps, error) {
		return m.timelineOf(ctx, sess)
	})
}

func (m *Manager) timelineOf(ctx context.Context, sess domain.Session) (domain.TimelineProps, error) {
	raw, err := sess.Timeline(ctx)
	if err != nil {
		return domain.TimelineProps{}, nativeError("read timeline", err)
	}
	return m.normalizer.Timeline(raw, m.now())
}

// nativeError keeps taxonomy errors as they are and wraps anything else as a native call failure
func nativeError(op string, err error) error {
	for _, kind := range []error{
		domain.ErrNoActiveSession,
		domain.ErrBackendUnavailable,
		domain.ErrUnknownStatus,
		domain.ErrNoTimeline,
		domain.ErrNativeCall,
	} {
		if errors.Is(err, kind) {
			return err
		}
	}
	return domain.NewNativeCallError(op, err)
}
