package mpris

import (
	"context"
	"fmt"
	"time"

	"github.com/genricoloni/nowplaying/internal/domain"
	"github.com/genricoloni/nowplaying/internal/status"
	"github.com/godbus/dbus/v5"
)

const (
	objectPath       = "/org/mpris/MediaPlayer2"
	playerInterface  = "org.mpris.MediaPlayer2.Player"
	propMetadata     = playerInterface + ".Metadata"
	propStatus       = playerInterface + ".PlaybackStatus"
	propPosition     = playerInterface + ".Position"
	playerNamePrefix = "org.mpris.MediaPlayer2."
)

var _ domain.Session = (*Session)(nil)

// Session is one MPRIS player. MPRIS sessions have no property-change
// subscription of their own and are polled by the watcher.
type Session struct {
	conn  DBusClient
	name  string
	owner string
	now   func() time.Time
}

// ID returns the player's well-known bus name
func (s *Session) ID() string {
	return s.name
}

// Owner returns the unique bus name that owned the player when it was resolved
func (s *Session) Owner() string {
	return s.owner
}

// Properties reads the Metadata property. A player that reports something
// other than a map is treated as having no metadata.
func (s *Session) Properties(ctx context.Context) (domain.PropertyBag, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return readMetadata(s.conn, s.name)
}

// PlaybackStatus reads the PlaybackStatus property
func (s *Session) PlaybackStatus(ctx context.Context) (domain.RawStatus, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return readStatus(s.conn, s.name)
}

// Timeline samples the playback position. The metadata read must succeed;
// a player without Position support yields a sample whose position fails.
func (s *Session) Timeline(ctx context.Context) (domain.RawTimeline, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	meta, err := readMetadata(s.conn, s.name)
	if err != nil {
		return nil, err
	}

	p := &progress{now: s.now, sampledAt: s.now()}
	p.length, p.lengthErr = meta.integer(keyLength)
	p.position, p.positionErr = readPosition(s.conn, s.name)
	return p, nil
}

func readMetadata(conn DBusClient, name string) (metadata, error) {
	variant, err := conn.GetProperty(name, objectPath, propMetadata)
	if err != nil {
		return nil, domain.NewNativeCallError("get "+propMetadata, err)
	}
	// Some players may return nil or unexpected types if not playing anything
	meta, ok := variant.Value().(map[string]dbus.Variant)
	if !ok {
		return metadata{}, nil
	}
	return metadata(meta), nil
}

func readStatus(conn DBusClient, name string) (status.MPRIS, error) {
	variant, err := conn.GetProperty(name, objectPath, propStatus)
	if err != nil {
		return "", domain.NewNativeCallError("get "+propStatus, err)
	}
	st, ok := variant.Value().(string)
	if !ok {
		return "", domain.NewNativeCallError("get "+propStatus,
			fmt.Errorf("invalid playback status format %T", variant.Value()))
	}
	return status.MPRIS(st), nil
}

func readPosition(conn DBusClient, name string) (int64, error) {
	variant, err := conn.GetProperty(name, objectPath, propPosition)
	if err != nil {
		return 0, err
	}
	pos, ok := asInt64(variant.Value())
	if !ok {
		return 0, fmt.Errorf("invalid position format %T", variant.Value())
	}
	return pos, nil
}

// progress is a position sample in microseconds. Its LastUpdated value is
// the time elapsed since the sample was taken.
type progress struct {
	now         func() time.Time
	sampledAt   time.Time
	length      int64
	lengthErr   error
	position    int64
	positionErr error
}

func (p *progress) Unit() domain.TimeUnit       { return domain.UnitMicroseconds }
func (p *progress) Base() domain.TimeBase       { return domain.BaseElapsed }
func (p *progress) MinSeek() (int64, error)     { return 0, nil }
func (p *progress) MaxSeek() (int64, error)     { return p.length, p.lengthErr }
func (p *progress) Position() (int64, error)    { return p.position, p.positionErr }
func (p *progress) StartTime() (int64, error)   { return 0, nil }
func (p *progress) EndTime() (int64, error)     { return p.length, p.lengthErr }
func (p *progress) LastUpdated() (int64, error) { return p.now().Sub(p.sampledAt).Microseconds(), nil }
