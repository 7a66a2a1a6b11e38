// Package mpris reads media sessions from MPRIS players on the D-Bus session bus.
package mpris

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/genricoloni/nowplaying/internal/domain"
	"github.com/genricoloni/nowplaying/internal/status"
	"github.com/godbus/dbus/v5"
	"go.uber.org/zap"
)

var (
	_ domain.Backend         = (*Backend)(nil)
	_ domain.SessionNotifier = (*Backend)(nil)
	_ domain.Revocable       = (*nameWatch)(nil)
)

// Dialer opens a bus connection
type Dialer func() (DBusClient, error)

// Backend resolves the active MPRIS player. The bus connection is opened on
// first use and kept until Close.
type Backend struct {
	logger *zap.Logger
	dial   Dialer
	now    func() time.Time

	mu   sync.Mutex
	conn DBusClient
}

// Option customizes a Backend
type Option func(*Backend)

// WithDialer replaces the session bus dialer
func WithDialer(d Dialer) Option {
	return func(b *Backend) {
		b.dial = d
	}
}

// WithClock overrides the clock used to stamp position samples
func WithClock(now func() time.Time) Option {
	return func(b *Backend) {
		b.now = now
	}
}

// NewBackend creates an MPRIS backend on the session bus
func NewBackend(logger *zap.Logger, opts ...Option) *Backend {
	b := &Backend{
		logger: logger.With(zap.String("backend", "mpris")),
		dial: func() (DBusClient, error) {
			return NewStdDBusClient()
		},
		now: time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Name implements domain.Backend
func (b *Backend) Name() string {
	return "mpris"
}

func (b *Backend) client() (DBusClient, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.conn != nil {
		return b.conn, nil
	}
	conn, err := b.dial()
	if err != nil {
		b.logger.Error("Failed to connect to session bus", zap.Error(err))
		return nil, fmt.Errorf("%w: session bus connection failed: %v", domain.ErrBackendUnavailable, err)
	}
	b.conn = conn
	return conn, nil
}

// discard drops conn when err shows the connection has ended, so the next
// call dials again
func (b *Backend) discard(conn DBusClient, err error) {
	if !errors.Is(err, dbus.ErrClosed) {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.conn != conn {
		return
	}
	b.logger.Warn("Session bus connection closed, reconnecting on next use")
	if closeErr := conn.Close(); closeErr != nil {
		b.logger.Debug("Failed to close stale bus connection", zap.Error(closeErr))
	}
	b.conn = nil
}

// Close releases the bus connection. The backend reconnects on next use.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.conn == nil {
		return nil
	}
	err := b.conn.Close()
	b.conn = nil
	return err
}

// ActiveSession picks the first playing player, else the first paused one,
// else the first player by bus name.
func (b *Backend) ActiveSession(ctx context.Context) (domain.Session, error) {
	conn, err := b.client()
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	names, err := conn.ListNames()
	if err != nil {
		b.discard(conn, err)
		return nil, fmt.Errorf("%w: failed to list bus names: %v", domain.ErrBackendUnavailable, err)
	}

	var players []string
	for _, name := range names {
		if strings.HasPrefix(name, playerNamePrefix) {
			players = append(players, name)
		}
	}
	if len(players) == 0 {
		return nil, domain.ErrNoActiveSession
	}
	slices.Sort(players)

	chosen, paused := "", ""
	for _, name := range players {
		st, err := readStatus(conn, name)
		if err != nil {
			b.logger.Debug("Skipping player with unreadable status",
				zap.String("player", name),
				zap.Error(err))
			continue
		}
		if st == status.MPRISPlaying {
			chosen = name
			break
		}
		if st == status.MPRISPaused && paused == "" {
			paused = name
		}
	}
	if chosen == "" {
		chosen = paused
	}
	if chosen == "" {
		chosen = players[0]
	}

	owner, err := conn.GetNameOwner(chosen)
	if err != nil {
		// The player quit between listing and selection
		b.logger.Debug("Player vanished during selection", zap.String("player", chosen), zap.Error(err))
		return nil, domain.ErrNoActiveSession
	}

	b.logger.Debug("Resolved active player",
		zap.String("player", chosen),
		zap.String("unique", owner),
		zap.Int("candidates", len(players)))

	return &Session{conn: conn, name: chosen, owner: owner, now: b.now}, nil
}

// NotifySessionChanges calls notify when a player appears, disappears or
// changes its playback status, any of which can change the active player.
// notify runs on the signal goroutine.
func (b *Backend) NotifySessionChanges(notify func()) (domain.Subscription, error) {
	conn, err := b.client()
	if err != nil {
		return nil, err
	}
	w := newNameWatch(b.logger, conn, notify)
	if err := w.start(); err != nil {
		b.discard(conn, err)
		return nil, fmt.Errorf("%w: %v", domain.ErrBackendUnavailable, err)
	}
	return w, nil
}
