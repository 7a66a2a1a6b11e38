package domain

import (
	"fmt"
	"strconv"

	"github.com/cespare/xxhash/v2"
)

// State is the transport state of the active media session
type State int

const (
	// StateNone means no media is loaded (stopped, closed, opening or changing)
	StateNone State = iota
	// StatePlaying indicates the media is currently playing
	StatePlaying
	// StatePaused indicates the media is paused
	StatePaused
)

func (s State) String() string {
	switch s {
	case StateNone:
		return "None"
	case StatePlaying:
		return "Playing"
	case StatePaused:
		return "Paused"
	default:
		return "State(" + strconv.Itoa(int(s)) + ")"
	}
}

// MarshalText renders the state by name in JSON output
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// MediaProps contains normalized metadata about the currently playing media.
// Missing text fields are empty and missing numeric fields are -1.
type MediaProps struct {
	Artist      string `json:"artist"`
	Title       string `json:"title"`
	AlbumArtist string `json:"album_artist"`
	AlbumTitle  string `json:"album_title"`
	// Subtitle is backend defined. MPRIS carries the track URL here.
	Subtitle        string `json:"subtitle"`
	AlbumTrackCount int32  `json:"album_track_count"`
	TrackNumber     int32  `json:"track_number"`
}

// NewMediaProps returns MediaProps with every field at its "absent" default
func NewMediaProps() MediaProps {
	return MediaProps{
		AlbumTrackCount: -1,
		TrackNumber:     -1,
	}
}

// IsEmpty reports whether no field carries a value
func (p MediaProps) IsEmpty() bool {
	return p == NewMediaProps()
}

// Fingerprint returns a stable hash of all fields, handy as a log correlation id
func (p MediaProps) Fingerprint() uint64 {
	return xxhash.Sum64String(fmt.Sprintf("%s\x00%s\x00%s\x00%s\x00%s\x00%d\x00%d",
		p.Artist,
		p.Title,
		p.AlbumArtist,
		p.AlbumTitle,
		p.Subtitle,
		p.AlbumTrackCount,
		p.TrackNumber,
	))
}

// TimelineProps holds seek bounds and position in seconds. MinSeek through Ended
// are offsets from the start of the media, LastUpdate is Unix epoch seconds.
type TimelineProps struct {
	MinSeek    int64 `json:"min_seek"`
	MaxSeek    int64 `json:"max_seek"`
	Position   int64 `json:"position"`
	Started    int64 `json:"started"`
	Ended      int64 `json:"ended"`
	LastUpdate int64 `json:"last_update"`
}

// InBounds reports whether MinSeek <= Position <= MaxSeek.
// Backends may transiently report values outside the bounds.
func (t TimelineProps) InBounds() bool {
	return t.MinSeek <= t.Position && t.Position <= t.MaxSeek
}

// PlayerStatus is the transport state plus an optional timeline snapshot.
// A Playing or Paused status with a nil Timeline means the timeline could not be read.
type PlayerStatus struct {
	State    State          `json:"state"`
	Timeline *TimelineProps `json:"timeline,omitempty"`
}

// StatusNone returns the status reported when no media is loaded
func StatusNone() PlayerStatus {
	return PlayerStatus{State: StateNone}
}

// StatusPlaying returns a Playing status carrying tl (may be nil)
func StatusPlaying(tl *TimelineProps) PlayerStatus {
	return PlayerStatus{State: StatePlaying, Timeline: tl}
}

// StatusPaused returns a Paused status carrying tl (may be nil)
func StatusPaused(tl *TimelineProps) PlayerStatus {
	return PlayerStatus{State: StatePaused, Timeline: tl}
}

// Equal compares two statuses by value, including the timeline contents
func (s PlayerStatus) Equal(o PlayerStatus) bool {
	if s.State != o.State {
		return false
	}
	if s.Timeline == nil || o.Timeline == nil {
		return s.Timeline == nil && o.Timeline == nil
	}
	return *s.Timeline == *o.Timeline
}

func (s PlayerStatus) String() string {
	if s.State == StateNone {
		return s.State.String()
	}
	if s.Timeline == nil {
		return s.State.String() + "(no timeline)"
	}
	return fmt.Sprintf("%s(%d/%d)", s.State, s.Timeline.Position, s.Timeline.MaxSeek)
}
