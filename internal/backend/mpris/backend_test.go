package mpris

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/genricoloni/nowplaying/internal/backend/mpris/mocks"
	"github.com/genricoloni/nowplaying/internal/domain"
	"github.com/genricoloni/nowplaying/internal/manager"
	"github.com/genricoloni/nowplaying/internal/normalize"
	"github.com/godbus/dbus/v5"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"
)

const (
	spotify = "org.mpris.MediaPlayer2.spotify"
	vlc     = "org.mpris.MediaPlayer2.vlc"
	mpv     = "org.mpris.MediaPlayer2.mpv"
)

func dialMock(m DBusClient) Option {
	return WithDialer(func() (DBusClient, error) { return m, nil })
}

func expectStatus(m *mocks.MockDBusClient, player, st string) {
	m.EXPECT().GetProperty(player, objectPath, propStatus).
		Return(dbus.MakeVariant(st), nil).AnyTimes()
}

func expectMetadata(m *mocks.MockDBusClient, player string, meta map[string]dbus.Variant) {
	m.EXPECT().GetProperty(player, objectPath, propMetadata).
		Return(dbus.MakeVariant(meta), nil).AnyTimes()
}

// TestActiveSession_Selection verifies the Playing > Paused > first-name preference
func TestActiveSession_Selection(t *testing.T) {
	tests := []struct {
		name     string
		names    []string
		statuses map[string]string
		want     string
	}{
		{
			name:     "Playing wins over earlier paused",
			names:    []string{"org.freedesktop.DBus", vlc, spotify},
			statuses: map[string]string{spotify: "Playing", vlc: "Paused"},
			want:     spotify,
		},
		{
			name:     "Paused wins over stopped",
			names:    []string{mpv, spotify, vlc},
			statuses: map[string]string{mpv: "Stopped", spotify: "Stopped", vlc: "Paused"},
			want:     vlc,
		},
		{
			name:     "First paused by name",
			names:    []string{vlc, spotify},
			statuses: map[string]string{spotify: "Paused", vlc: "Paused"},
			want:     spotify,
		},
		{
			name:     "All stopped picks first by name",
			names:    []string{vlc, mpv, ":1.42"},
			statuses: map[string]string{mpv: "Stopped", vlc: "Stopped"},
			want:     mpv,
		},
		{
			name:     "Unreadable status is skipped",
			names:    []string{mpv, vlc},
			statuses: map[string]string{vlc: "Playing"},
			want:     vlc,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			mockClient := mocks.NewMockDBusClient(ctrl)

			mockClient.EXPECT().ListNames().Return(tt.names, nil)
			for _, name := range tt.names {
				if st, ok := tt.statuses[name]; ok {
					expectStatus(mockClient, name, st)
				} else if strings.HasPrefix(name, playerNamePrefix) {
					mockClient.EXPECT().GetProperty(name, objectPath, propStatus).
						Return(dbus.Variant{}, fmt.Errorf("org.freedesktop.DBus.Error.NoReply")).AnyTimes()
				}
			}
			mockClient.EXPECT().GetNameOwner(tt.want).Return(":1.100", nil)

			b := NewBackend(zap.NewNop(), dialMock(mockClient))
			sess, err := b.ActiveSession(context.Background())
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if sess.ID() != tt.want {
				t.Errorf("Expected %s, got %s", tt.want, sess.ID())
			}
			if owner := sess.(*Session).Owner(); owner != ":1.100" {
				t.Errorf("Owner: expected :1.100, got %s", owner)
			}
		})
	}
}

func TestActiveSession_Errors(t *testing.T) {
	t.Run("No players", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		mockClient := mocks.NewMockDBusClient(ctrl)
		mockClient.EXPECT().ListNames().Return([]string{"org.freedesktop.DBus", ":1.7"}, nil)

		_, err := NewBackend(zap.NewNop(), dialMock(mockClient)).ActiveSession(context.Background())
		if !errors.Is(err, domain.ErrNoActiveSession) {
			t.Errorf("Expected ErrNoActiveSession, got %v", err)
		}
	})

	t.Run("Bus unreachable", func(t *testing.T) {
		dials := 0
		b := NewBackend(zap.NewNop(), WithDialer(func() (DBusClient, error) {
			dials++
			return nil, errors.New("dial unix /run/user/1000/bus: connect: no such file or directory")
		}))
		for i := 0; i < 2; i++ {
			_, err := b.ActiveSession(context.Background())
			if !errors.Is(err, domain.ErrBackendUnavailable) {
				t.Errorf("Expected ErrBackendUnavailable, got %v", err)
			}
		}
		if dials != 2 {
			t.Errorf("Expected a reconnect attempt per call, got %d dials", dials)
		}
	})

	t.Run("ListNames fails", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		mockClient := mocks.NewMockDBusClient(ctrl)
		mockClient.EXPECT().ListNames().Return(nil, errors.New("connection closed"))

		_, err := NewBackend(zap.NewNop(), dialMock(mockClient)).ActiveSession(context.Background())
		if !errors.Is(err, domain.ErrBackendUnavailable) {
			t.Errorf("Expected ErrBackendUnavailable, got %v", err)
		}
	})

	t.Run("Closed connection is dialled again", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		stale := mocks.NewMockDBusClient(ctrl)
		stale.EXPECT().ListNames().Return(nil, dbus.ErrClosed)
		stale.EXPECT().Close().Return(nil)
		fresh := mocks.NewMockDBusClient(ctrl)
		fresh.EXPECT().ListNames().Return([]string{"org.freedesktop.DBus"}, nil)

		clients := []DBusClient{stale, fresh}
		dials := 0
		b := NewBackend(zap.NewNop(), WithDialer(func() (DBusClient, error) {
			c := clients[dials]
			dials++
			return c, nil
		}))

		_, err := b.ActiveSession(context.Background())
		if !errors.Is(err, domain.ErrBackendUnavailable) {
			t.Errorf("Expected ErrBackendUnavailable, got %v", err)
		}
		_, err = b.ActiveSession(context.Background())
		if !errors.Is(err, domain.ErrNoActiveSession) {
			t.Errorf("Expected ErrNoActiveSession from the new connection, got %v", err)
		}
		if dials != 2 {
			t.Errorf("Expected 2 dials, got %d", dials)
		}
	})

	t.Run("Player quits during selection", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		mockClient := mocks.NewMockDBusClient(ctrl)
		mockClient.EXPECT().ListNames().Return([]string{spotify}, nil)
		expectStatus(mockClient, spotify, "Playing")
		mockClient.EXPECT().GetNameOwner(spotify).Return("", errors.New("org.freedesktop.DBus.Error.NameHasNoOwner"))

		_, err := NewBackend(zap.NewNop(), dialMock(mockClient)).ActiveSession(context.Background())
		if !errors.Is(err, domain.ErrNoActiveSession) {
			t.Errorf("Expected ErrNoActiveSession, got %v", err)
		}
	})
}

func TestBackend_Close(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockClient := mocks.NewMockDBusClient(ctrl)
	mockClient.EXPECT().ListNames().Return(nil, nil)
	mockClient.EXPECT().Close().Return(nil).Times(1)

	b := NewBackend(zap.NewNop(), dialMock(mockClient))
	if err := b.Close(); err != nil {
		t.Fatalf("Close before first use: %v", err)
	}
	_, _ = b.ActiveSession(context.Background())
	if err := b.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := b.Close(); err != nil {
		t.Fatalf("Second close: %v", err)
	}
}

// steppingClock returns start, then advances by step on every call
func steppingClock(start time.Time, step time.Duration) func() time.Time {
	next := start
	return func() time.Time {
		now := next
		next = next.Add(step)
		return now
	}
}

func singlePlayer(t *testing.T, st string, meta map[string]dbus.Variant) *mocks.MockDBusClient {
	t.Helper()
	ctrl := gomock.NewController(t)
	mockClient := mocks.NewMockDBusClient(ctrl)
	mockClient.EXPECT().ListNames().Return([]string{spotify}, nil).AnyTimes()
	mockClient.EXPECT().GetNameOwner(spotify).Return(":1.100", nil).AnyTimes()
	expectStatus(mockClient, spotify, st)
	if meta != nil {
		expectMetadata(mockClient, spotify, meta)
	}
	return mockClient
}

// TestManagerOverMPRIS runs the manager against a mocked bus
func TestManagerOverMPRIS(t *testing.T) {
	fixedNow := time.Unix(1_700_000_000, 0)
	meta := map[string]dbus.Variant{
		"xesam:title":       dbus.MakeVariant("Stairway to Heaven"),
		"xesam:artist":      dbus.MakeVariant([]string{"Led Zeppelin", "Jimmy Page"}),
		"xesam:albumArtist": dbus.MakeVariant([]string{"Led Zeppelin"}),
		"xesam:album":       dbus.MakeVariant("Led Zeppelin IV"),
		"xesam:url":         dbus.MakeVariant("file:///music/04.flac"),
		"xesam:trackNumber": dbus.MakeVariant(int32(4)),
		"mpris:length":      dbus.MakeVariant(int64(482_000_000)),
	}

	t.Run("Currently playing", func(t *testing.T) {
		b := NewBackend(zap.NewNop(), dialMock(singlePlayer(t, "Playing", meta)))
		props, err := manager.New(zap.NewNop(), b).CurrentlyPlaying(context.Background())
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		want := domain.MediaProps{
			Artist:          "Led Zeppelin, Jimmy Page",
			Title:           "Stairway to Heaven",
			AlbumArtist:     "Led Zeppelin",
			AlbumTitle:      "Led Zeppelin IV",
			Subtitle:        "file:///music/04.flac",
			AlbumTrackCount: -1,
			TrackNumber:     4,
		}
		if props != want {
			t.Errorf("Props mismatch:\nwant %+v\ngot  %+v", want, props)
		}
	})

	t.Run("Status with reconciled timeline", func(t *testing.T) {
		mockClient := singlePlayer(t, "Paused", meta)
		mockClient.EXPECT().GetProperty(spotify, objectPath, propPosition).
			Return(dbus.MakeVariant(int64(61_500_000)), nil)

		// Sample taken 3s before the accessor reads its age
		b := NewBackend(zap.NewNop(), dialMock(mockClient),
			WithClock(steppingClock(fixedNow.Add(-10*time.Second), 3*time.Second)))
		mgr := manager.New(zap.NewNop(), b, manager.WithClock(func() time.Time { return fixedNow }))

		st, err := mgr.PlayerStatus(context.Background())
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if st.State != domain.StatePaused || st.Timeline == nil {
			t.Fatalf("Expected Paused with timeline, got %s", st)
		}
		want := domain.TimelineProps{
			MinSeek:    0,
			MaxSeek:    482,
			Position:   61,
			Started:    0,
			Ended:      482,
			LastUpdate: fixedNow.Unix() - 3,
		}
		if *st.Timeline != want {
			t.Errorf("Timeline mismatch:\nwant %+v\ngot  %+v", want, *st.Timeline)
		}
	})

	t.Run("Position unsupported", func(t *testing.T) {
		mockClient := singlePlayer(t, "Playing", meta)
		mockClient.EXPECT().GetProperty(spotify, objectPath, propPosition).
			Return(dbus.Variant{}, errors.New("org.freedesktop.DBus.Error.NotSupported"))

		b := NewBackend(zap.NewNop(), dialMock(mockClient))
		tl, err := manager.New(zap.NewNop(), b).Timeline(context.Background())
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if tl.Position != 0 || tl.MaxSeek != 482 {
			t.Errorf("Expected position fallback with known length, got %+v", tl)
		}
	})

	t.Run("Stopped has no timeline", func(t *testing.T) {
		b := NewBackend(zap.NewNop(), dialMock(singlePlayer(t, "Stopped", nil)))
		_, err := manager.New(zap.NewNop(), b).Timeline(context.Background())
		if !errors.Is(err, domain.ErrNoTimeline) {
			t.Errorf("Expected ErrNoTimeline, got %v", err)
		}
	})

	t.Run("Unknown status", func(t *testing.T) {
		b := NewBackend(zap.NewNop(), dialMock(singlePlayer(t, "Buffering", nil)))
		_, err := manager.New(zap.NewNop(), b).PlayerStatus(context.Background())
		if !errors.Is(err, domain.ErrUnknownStatus) {
			t.Errorf("Expected ErrUnknownStatus, got %v", err)
		}
	})
}

// TestSessionProperties covers the metadata read and its robustness
func TestSessionProperties(t *testing.T) {
	tests := []struct {
		name        string
		variant     dbus.Variant
		err         error
		expectError bool
		wantTitle   string
	}{
		{
			name:      "Success - Valid Metadata",
			variant:   dbus.MakeVariant(map[string]dbus.Variant{"xesam:title": dbus.MakeVariant("Roygbiv")}),
			wantTitle: "Roygbiv",
		},
		{
			name:        "DBus Error - Connection Fail",
			variant:     dbus.MakeVariant(""),
			err:         fmt.Errorf("connection timeout"),
			expectError: true,
		},
		{
			name:    "Invalid Data - Metadata is Int not Map",
			variant: dbus.MakeVariant(12345),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			mockClient := mocks.NewMockDBusClient(ctrl)
			mockClient.EXPECT().GetProperty(spotify, objectPath, propMetadata).Return(tt.variant, tt.err)

			sess := &Session{conn: mockClient, name: spotify, now: time.Now}
			bag, err := sess.Properties(context.Background())

			if tt.expectError {
				if !errors.Is(err, domain.ErrNativeCall) {
					t.Errorf("Expected ErrNativeCall, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			title, _ := bag.Title()
			if title != tt.wantTitle {
				t.Errorf("Title mismatch: want %q, got %q", tt.wantTitle, title)
			}
		})
	}
}

func TestMetadataAccessors(t *testing.T) {
	meta := metadata{
		"xesam:artist":      dbus.MakeVariant("Single String Artist"),
		"xesam:albumArtist": dbus.MakeVariant(42),
		"xesam:trackNumber": dbus.MakeVariant(uint32(7)),
		"mpris:length":      dbus.MakeVariant(uint64(1_000_000)),
	}

	if artists, err := meta.Artists(); err != nil || len(artists) != 1 || artists[0] != "Single String Artist" {
		t.Errorf("Artists: got %v, %v", artists, err)
	}
	if _, err := meta.AlbumArtists(); err == nil {
		t.Error("AlbumArtists: expected type error")
	}
	if _, err := meta.Title(); err == nil {
		t.Error("Title: expected missing key error")
	}
	if n, err := meta.TrackNumber(); err != nil || n != 7 {
		t.Errorf("TrackNumber: got %d, %v", n, err)
	}
	if n, err := meta.integer(keyLength); err != nil || n != 1_000_000 {
		t.Errorf("Length: got %d, %v", n, err)
	}
	if _, err := meta.AlbumTrackCount(); !errors.Is(err, domain.ErrFieldUnsupported) {
		t.Errorf("AlbumTrackCount: expected ErrFieldUnsupported, got %v", err)
	}
}

func TestSession_CancelledContext(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockClient := mocks.NewMockDBusClient(ctrl)
	sess := &Session{conn: mockClient, name: spotify, now: time.Now}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := sess.Properties(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Properties: expected context.Canceled, got %v", err)
	}
	if _, err := sess.PlaybackStatus(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("PlaybackStatus: expected context.Canceled, got %v", err)
	}
	if _, err := sess.Timeline(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Timeline: expected context.Canceled, got %v", err)
	}
}

func TestMetadata_TrackNumberOutOfRange(t *testing.T) {
	tests := []struct {
		name  string
		value interface{}
	}{
		{"Above int32", int64(math.MaxInt32) + 1},
		{"Below int32", int64(math.MinInt32) - 1},
		{"Huge unsigned", uint64(math.MaxUint64)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			meta := metadata{
				"xesam:title":       dbus.MakeVariant("Windowlicker"),
				"xesam:trackNumber": dbus.MakeVariant(tt.value),
			}
			if n, err := meta.TrackNumber(); err == nil {
				t.Errorf("Expected a field error, got %d", n)
			}

			props, err := normalize.New(zap.NewNop()).MediaProps(meta)
			if err != nil {
				t.Fatalf("MediaProps: %v", err)
			}
			if props.TrackNumber != -1 {
				t.Errorf("Expected TrackNumber to fall back to -1, got %d", props.TrackNumber)
			}
			if props.Title != "Windowlicker" {
				t.Errorf("Other fields must survive, got title %q", props.Title)
			}
		})
	}
}
