package domain

import (
	"context"
	"time"
)

// Backend is the per-platform session provider.
// Exactly one implementation is selected at build time.
type Backend interface {
	// Name identifies the backend in logs (e.g., "mpris", "smtc")
	Name() string

	// ActiveSession resolves the current media session.
	// Fails with ErrNoActiveSession or ErrBackendUnavailable.
	ActiveSession(ctx context.Context) (Session, error)
}

// SessionNotifier is implemented by backends that signal when the active session changes
type SessionNotifier interface {
	// NotifySessionChanges calls notify, possibly from a foreign goroutine,
	// whenever the active session may have changed
	NotifySessionChanges(notify func()) (Subscription, error)
}

// Session is a borrowed handle on the active media source
type Session interface {
	// ID identifies the session in logs
	ID() string

	// Properties reads the raw metadata bag. An error means the whole bag is unreadable.
	Properties(ctx context.Context) (PropertyBag, error)

	// PlaybackStatus reads the raw transport state
	PlaybackStatus(ctx context.Context) (RawStatus, error)

	// Timeline reads the raw timeline sample
	Timeline(ctx context.Context) (RawTimeline, error)
}

// Subscriber is implemented by push-based sessions.
// Sessions that do not implement it are polled.
type Subscriber interface {
	// Subscribe calls notify, possibly from a foreign goroutine, when media properties change
	Subscribe(notify func()) (Subscription, error)
}

// Subscription is a registered native event handler
type Subscription interface {
	// Unsubscribe releases the native registration. Calling it twice is a no-op.
	Unsubscribe() error
}

// Revocable is implemented by subscriptions the native layer can end on its
// own, for example when the bus connection drops
type Revocable interface {
	// Lost is closed once the registration has ended without Unsubscribe
	Lost() <-chan struct{}
}

// PropertyBag exposes native metadata with independently fallible accessors
type PropertyBag interface {
	Artists() ([]string, error)
	Title() (string, error)
	AlbumArtists() ([]string, error)
	AlbumTitle() (string, error)
	Subtitle() (string, error)
	AlbumTrackCount() (int32, error)
	TrackNumber() (int32, error)
}

// RawStatus is a backend transport value that can be classified into a State
type RawStatus interface {
	// Classify maps the raw value to a State, or fails with ErrUnknownStatus
	Classify() (State, error)
	String() string
}

// TimeUnit is the unit a backend reports timeline values in
type TimeUnit int

const (
	UnitSeconds      TimeUnit = iota
	UnitMicroseconds          // MPRIS
	UnitTicks                 // 100 ns, WinRT TimeSpan/DateTime
)

// TimeBase is the reference point of a RawTimeline's LastUpdated value
type TimeBase int

const (
	// BaseUnixEpoch counts units since 1970-01-01 UTC
	BaseUnixEpoch TimeBase = iota
	// BaseFiletime counts units since 1601-01-01 UTC
	BaseFiletime
	// BaseElapsed counts units elapsed since the sample was taken
	BaseElapsed
)

// RawTimeline is a native timeline sample with a declared unit and time base.
// Offsets are relative to the start of the media.
type RawTimeline interface {
	Unit() TimeUnit
	Base() TimeBase
	MinSeek() (int64, error)
	MaxSeek() (int64, error)
	Position() (int64, error)
	StartTime() (int64, error)
	EndTime() (int64, error)
	LastUpdated() (int64, error)
}

// MediaManager is the blocking caller-facing contract
type MediaManager interface {
	// CurrentlyPlaying returns normalized metadata of the active session
	CurrentlyPlaying(ctx context.Context) (MediaProps, error)

	// PlayerStatus returns the transport state with an optional timeline
	PlayerStatus(ctx context.Context) (PlayerStatus, error)

	// Timeline returns the timeline or fails with ErrNoTimeline
	Timeline(ctx context.Context) (TimelineProps, error)
}

// Awaitable is the result of a non-blocking call
type Awaitable[T any] interface {
	// Done is closed once the result is ready
	Done() <-chan struct{}

	// Await suspends until the result is ready or ctx ends
	Await(ctx context.Context) (T, error)
}

// AsyncMediaManager is the non-blocking form of MediaManager
type AsyncMediaManager interface {
	CurrentlyPlayingAsync(ctx context.Context) Awaitable[MediaProps]
	PlayerStatusAsync(ctx context.Context) Awaitable[PlayerStatus]
	TimelineAsync(ctx context.Context) Awaitable[TimelineProps]
}

// Config defines the interface for application configuration
type Config interface {
	// GetPollInterval returns the watcher tick for poll-based backends
	GetPollInterval() time.Duration

	// GetRetryPolicy returns the backoff used when the watcher must be restarted
	GetRetryPolicy() RetryPolicy
}

// RetryPolicy bounds the exponential backoff around watcher restarts
type RetryPolicy struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	// MaxElapsed of zero retries forever
	MaxElapsed time.Duration
}
