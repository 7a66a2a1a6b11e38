// Package smtc adapts the Windows Global System Media Transport Controls
// session manager to the domain backend interfaces.
package smtc

import (
	"context"
	"fmt"
	"sync"

	"github.com/genricoloni/nowplaying/internal/domain"
	"github.com/genricoloni/nowplaying/internal/status"
	"go.uber.org/zap"
)

var (
	_ domain.Backend         = (*Backend)(nil)
	_ domain.SessionNotifier = (*Backend)(nil)
	_ domain.Session         = (*Session)(nil)
	_ domain.Subscriber      = (*Session)(nil)
	_ domain.PropertyBag     = mediaProperties{}
	_ domain.RawTimeline     = timeline{}
)

// Backend serves the system's current media session
type Backend struct {
	logger  *zap.Logger
	manager NativeManager
}

// NewBackend creates a backend over an activated session manager
func NewBackend(logger *zap.Logger, manager NativeManager) *Backend {
	return &Backend{
		logger:  logger.With(zap.String("backend", "smtc")),
		manager: manager,
	}
}

// Name implements domain.Backend
func (b *Backend) Name() string {
	return "smtc"
}

// ActiveSession implements domain.Backend
func (b *Backend) ActiveSession(ctx context.Context) (domain.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	native, err := b.manager.CurrentSession()
	if err != nil {
		return nil, fmt.Errorf("%w: get current session: %v", domain.ErrBackendUnavailable, err)
	}
	if native == nil {
		return nil, domain.ErrNoActiveSession
	}

	id, err := native.SourceAppUserModelID()
	if err != nil {
		b.logger.Debug("Session has no source app id", zap.Error(err))
		id = "unknown"
	}
	return &Session{id: id, native: native}, nil
}

// NotifySessionChanges registers notify for CurrentSessionChanged
func (b *Backend) NotifySessionChanges(notify func()) (domain.Subscription, error) {
	token, err := b.manager.OnCurrentSessionChanged(notify)
	if err != nil {
		return nil, domain.NewNativeCallError("add CurrentSessionChanged", err)
	}
	return &registration{remove: func() error {
		return b.manager.RemoveCurrentSessionChanged(token)
	}}, nil
}

// Session is the current GSMTC session. It pushes MediaPropertiesChanged.
type Session struct {
	id     string
	native NativeSession
}

// ID returns the source application's AppUserModelID
func (s *Session) ID() string {
	return s.id
}

// Properties implements domain.Session
func (s *Session) Properties(ctx context.Context) (domain.PropertyBag, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	props, err := s.native.TryGetMediaProperties()
	if err != nil {
		return nil, domain.NewNativeCallError("TryGetMediaPropertiesAsync", err)
	}
	if props == nil {
		return nil, domain.NewNativeCallError("TryGetMediaPropertiesAsync", fmt.Errorf("no media properties"))
	}
	return mediaProperties{props}, nil
}

// PlaybackStatus implements domain.Session
func (s *Session) PlaybackStatus(ctx context.Context) (domain.RawStatus, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	st, err := s.native.PlaybackStatus()
	if err != nil {
		return nil, domain.NewNativeCallError("GetPlaybackInfo", err)
	}
	return status.SMTC(st), nil
}

// Timeline implements domain.Session
func (s *Session) Timeline(ctx context.Context) (domain.RawTimeline, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	tl, err := s.native.TimelineProperties()
	if err != nil {
		return nil, domain.NewNativeCallError("GetTimelineProperties", err)
	}
	if tl == nil {
		return nil, domain.NewNativeCallError("GetTimelineProperties", fmt.Errorf("no timeline properties"))
	}
	return timeline{tl}, nil
}

// Subscribe registers notify for MediaPropertiesChanged
func (s *Session) Subscribe(notify func()) (domain.Subscription, error) {
	token, err := s.native.OnMediaPropertiesChanged(notify)
	if err != nil {
		return nil, domain.NewNativeCallError("add MediaPropertiesChanged", err)
	}
	return &registration{remove: func() error {
		return s.native.RemoveMediaPropertiesChanged(token)
	}}, nil
}

// registration removes a native handler exactly once
type registration struct {
	once   sync.Once
	remove func() error
	err    error
}

func (r *registration) Unsubscribe() error {
	r.once.Do(func() {
		r.err = r.remove()
	})
	return r.err
}

// mediaProperties adapts the single-string artist fields to lists
type mediaProperties struct {
	NativeMediaProperties
}

func (p mediaProperties) Artists() ([]string, error) {
	return single(p.Artist())
}

func (p mediaProperties) AlbumArtists() ([]string, error) {
	return single(p.AlbumArtist())
}

func single(s string, err error) ([]string, error) {
	if err != nil || s == "" {
		return nil, err
	}
	return []string{s}, nil
}

type timeline struct {
	NativeTimeline
}

func (t timeline) Unit() domain.TimeUnit       { return domain.UnitTicks }
func (t timeline) Base() domain.TimeBase       { return domain.BaseFiletime }
func (t timeline) MinSeek() (int64, error)     { return t.MinSeekTime() }
func (t timeline) MaxSeek() (int64, error)     { return t.MaxSeekTime() }
func (t timeline) LastUpdated() (int64, error) { return t.LastUpdatedTime() }
