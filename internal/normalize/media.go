// Package normalize converts native property bags and timeline samples into
// the shared domain model. Field-level failures fall back to defaults and are
// never returned; only an unreadable bag is an error.
package normalize

import (
	"strings"

	"github.com/genricoloni/nowplaying/internal/domain"
	"go.uber.org/zap"
)

const listSeparator = ", "

// Normalizer turns raw backend data into domain values
type Normalizer struct {
	logger *zap.Logger
}

// New creates a Normalizer that reports absorbed field errors at debug level
func New(logger *zap.Logger) *Normalizer {
	return &Normalizer{logger: logger}
}

// MediaProps builds a fresh MediaProps from bag. Each field is read independently.
func (n *Normalizer) MediaProps(bag domain.PropertyBag) (domain.MediaProps, error) {
	if bag == nil {
		return domain.NewMediaProps(), domain.NewNativeCallError("read properties", errNilBag)
	}

	props := domain.NewMediaProps()
	props.Artist = n.list("artist", bag.Artists)
	props.Title = n.text("title", bag.Title)
	props.AlbumArtist = n.list("album_artist", bag.AlbumArtists)
	props.AlbumTitle = n.text("album_title", bag.AlbumTitle)
	props.Subtitle = n.text("subtitle", bag.Subtitle)
	props.AlbumTrackCount = n.number("album_track_count", bag.AlbumTrackCount)
	props.TrackNumber = n.number("track_number", bag.TrackNumber)
	return props, nil
}

func (n *Normalizer) text(field string, get func() (string, error)) string {
	v, err := get()
	if err != nil {
		n.absorbed(field, err)
		return ""
	}
	return v
}

func (n *Normalizer) list(field string, get func() ([]string, error)) string {
	v, err := get()
	if err != nil {
		n.absorbed(field, err)
		return ""
	}
	return strings.Join(v, listSeparator)
}

func (n *Normalizer) number(field string, get func() (int32, error)) int32 {
	v, err := get()
	if err != nil {
		n.absorbed(field, err)
		return -1
	}
	return v
}

func (n *Normalizer) absorbed(field string, err error) {
	n.logger.Debug("Field unavailable, using default",
		zap.String("field", field),
		zap.Error(err))
}
