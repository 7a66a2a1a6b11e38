package manager

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/genricoloni/nowplaying/internal/backend/memory"
	"github.com/genricoloni/nowplaying/internal/domain"
	"github.com/genricoloni/nowplaying/internal/status"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var fixedNow = time.Unix(1_700_000_000, 0)

func newTestManager(b *memory.Backend) *Manager {
	return New(zap.NewNop(), b, WithClock(func() time.Time { return fixedNow }))
}

func playingSession() *memory.Session {
	sess := memory.NewSession("org.mpris.MediaPlayer2.test", &memory.Bag{
		ArtistNames:      []string{"Massive Attack"},
		TrackTitle:       "Teardrop",
		AlbumArtistNames: []string{"Massive Attack"},
		Album:            "Mezzanine",
		Number:           3,
		Missing:          []string{"album_track_count", "subtitle"},
	})
	sess.SetStatus(status.MPRISPlaying, nil)
	sess.SetTimeline(&memory.Timeline{
		TimeUnit: domain.UnitMicroseconds,
		TimeBase: domain.BaseElapsed,
		Max:      330_000_000,
		Pos:      61_000_000,
		End:      330_000_000,
	}, nil)
	return sess
}

func TestManager_CurrentlyPlaying(t *testing.T) {
	b := memory.New()
	b.SetSession(playingSession())
	m := newTestManager(b)

	props, err := m.CurrentlyPlaying(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.MediaProps{
		Artist:          "Massive Attack",
		Title:           "Teardrop",
		AlbumArtist:     "Massive Attack",
		AlbumTitle:      "Mezzanine",
		AlbumTrackCount: -1,
		TrackNumber:     3,
	}, props)

	again, err := m.CurrentlyPlaying(context.Background())
	require.NoError(t, err)
	assert.Equal(t, props, again, "unchanged backend must yield equal values")
}

func TestManager_Errors(t *testing.T) {
	tests := []struct {
		name  string
		setup func(*memory.Backend)
		want  error
	}{
		{
			name:  "No session",
			setup: func(b *memory.Backend) {},
			want:  domain.ErrNoActiveSession,
		},
		{
			name:  "Backend unreachable",
			setup: func(b *memory.Backend) { b.SetError(domain.ErrBackendUnavailable) },
			want:  domain.ErrBackendUnavailable,
		},
		{
			name: "Bag unreadable",
			setup: func(b *memory.Backend) {
				sess := playingSession()
				sess.Script(memory.Step{Err: errors.New("dbus: no reply")})
				b.SetSession(sess)
			},
			want: domain.ErrNativeCall,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := memory.New()
			tt.setup(b)
			_, err := newTestManager(b).CurrentlyPlaying(context.Background())
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestManager_PlayerStatus(t *testing.T) {
	b := memory.New()
	sess := playingSession()
	b.SetSession(sess)
	m := newTestManager(b)

	st, err := m.PlayerStatus(context.Background())
	require.NoError(t, err)
	assert.True(t, st.Equal(domain.StatusPlaying(&domain.TimelineProps{
		MaxSeek:    330,
		Position:   61,
		Ended:      330,
		LastUpdate: fixedNow.Unix(),
	})), "got %s", st)

	sess.SetStatus(status.MPRIS("Buffering"), nil)
	_, err = m.PlayerStatus(context.Background())
	assert.ErrorIs(t, err, domain.ErrUnknownStatus)

	sess.SetStatus(nil, errors.New("property not found"))
	_, err = m.PlayerStatus(context.Background())
	assert.ErrorIs(t, err, domain.ErrNativeCall)
}

func TestManager_Timeline(t *testing.T) {
	t.Run("None status has no timeline", func(t *testing.T) {
		b := memory.New()
		sess := playingSession()
		sess.SetStatus(status.MPRISStopped, nil)
		b.SetSession(sess)

		_, err := newTestManager(b).Timeline(context.Background())
		assert.ErrorIs(t, err, domain.ErrNoTimeline)
	})

	t.Run("Timeline fetch failure", func(t *testing.T) {
		b := memory.New()
		sess := playingSession()
		sess.SetStatus(status.SMTCPaused, nil)
		sess.SetTimeline(nil, errors.New("timeline properties unavailable"))
		b.SetSession(sess)
		m := newTestManager(b)

		st, err := m.PlayerStatus(context.Background())
		require.NoError(t, err)
		assert.Equal(t, domain.StatePaused, st.State)
		assert.Nil(t, st.Timeline)

		_, err = m.Timeline(context.Background())
		assert.ErrorIs(t, err, domain.ErrNoTimeline)
	})

	t.Run("Timeline available", func(t *testing.T) {
		b := memory.New()
		b.SetSession(playingSession())

		tl, err := newTestManager(b).Timeline(context.Background())
		require.NoError(t, err)
		assert.Equal(t, int64(61), tl.Position)
		assert.Equal(t, fixedNow.Unix(), tl.LastUpdate)
	})
}

func TestManager_AsyncMatchesSync(t *testing.T) {
	ctx := context.Background()
	scenarios := map[string]func(*memory.Backend){
		"Playing": func(b *memory.Backend) { b.SetSession(playingSession()) },
		"Stopped": func(b *memory.Backend) {
			sess := playingSession()
			sess.SetStatus(status.MPRISStopped, nil)
			b.SetSession(sess)
		},
		"No session": func(b *memory.Backend) {},
	}

	for name, setup := range scenarios {
		t.Run(name, func(t *testing.T) {
			b := memory.New()
			setup(b)
			m := newTestManager(b)

			props, propsErr := m.CurrentlyPlaying(ctx)
			aProps, aPropsErr := m.CurrentlyPlayingAsync(ctx).Await(ctx)
			assert.Equal(t, props, aProps)
			assert.Equal(t, propsErr, aPropsErr)

			st, stErr := m.PlayerStatus(ctx)
			aSt, aStErr := m.PlayerStatusAsync(ctx).Await(ctx)
			assert.True(t, st.Equal(aSt), "sync %s, async %s", st, aSt)
			assert.Equal(t, stErr, aStErr)

			tl, tlErr := m.Timeline(ctx)
			aTl, aTlErr := m.TimelineAsync(ctx).Await(ctx)
			assert.Equal(t, tl, aTl)
			assert.Equal(t, tlErr, aTlErr)
		})
	}
}

func TestManager_Snapshot(t *testing.T) {
	b := memory.New()
	b.SetSession(playingSession())

	props, st, err := newTestManager(b).Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Teardrop", props.Title)
	assert.Equal(t, domain.StatePlaying, st.State)
	assert.Equal(t, 1, b.Resolves(), "snapshot resolves the session once")
}

func TestFuture_AwaitHonorsContext(t *testing.T) {
	release := make(chan struct{})
	f := Go(context.Background(), func(context.Context) (int, error) {
		<-release
		return 42, nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := f.Await(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	close(release)
	<-f.Done()
	v, err := f.Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 42, v)
}
