package memory

import (
	"slices"

	"github.com/genricoloni/nowplaying/internal/domain"
)

var (
	_ domain.PropertyBag = (*Bag)(nil)
	_ domain.RawTimeline = (*Timeline)(nil)
)

// Bag is a property bag with plain fields. Accessors for field names listed
// in Missing fail with ErrFieldUnsupported.
type Bag struct {
	ArtistNames      []string
	TrackTitle       string
	AlbumArtistNames []string
	Album            string
	SubtitleText     string
	TrackCount       int32
	Number           int32
	Missing          []string
}

// Track returns a bag with one artist and a title. Numeric fields are missing.
func Track(artist, title string) *Bag {
	return &Bag{
		ArtistNames: []string{artist},
		TrackTitle:  title,
		Missing:     []string{"album_track_count", "track_number"},
	}
}

func (b *Bag) check(field string) error {
	if slices.Contains(b.Missing, field) {
		return domain.ErrFieldUnsupported
	}
	return nil
}

func (b *Bag) Artists() ([]string, error)      { return b.ArtistNames, b.check("artist") }
func (b *Bag) Title() (string, error)          { return b.TrackTitle, b.check("title") }
func (b *Bag) AlbumArtists() ([]string, error) { return b.AlbumArtistNames, b.check("album_artist") }
func (b *Bag) AlbumTitle() (string, error)     { return b.Album, b.check("album_title") }
func (b *Bag) Subtitle() (string, error)       { return b.SubtitleText, b.check("subtitle") }
func (b *Bag) AlbumTrackCount() (int32, error) { return b.TrackCount, b.check("album_track_count") }
func (b *Bag) TrackNumber() (int32, error)     { return b.Number, b.check("track_number") }

// Timeline is a raw timeline sample with every accessor succeeding
type Timeline struct {
	TimeUnit   domain.TimeUnit
	TimeBase   domain.TimeBase
	Min        int64
	Max        int64
	Pos        int64
	Start      int64
	End        int64
	LastUpdate int64
}

func (t *Timeline) Unit() domain.TimeUnit       { return t.TimeUnit }
func (t *Timeline) Base() domain.TimeBase       { return t.TimeBase }
func (t *Timeline) MinSeek() (int64, error)     { return t.Min, nil }
func (t *Timeline) MaxSeek() (int64, error)     { return t.Max, nil }
func (t *Timeline) Position() (int64, error)    { return t.Pos, nil }
func (t *Timeline) StartTime() (int64, error)   { return t.Start, nil }
func (t *Timeline) EndTime() (int64, error)     { return t.End, nil }
func (t *Timeline) LastUpdated() (int64, error) { return t.LastUpdate, nil }
