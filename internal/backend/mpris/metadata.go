package mpris

import (
	"fmt"
	"math"

	"github.com/genricoloni/nowplaying/internal/domain"
	"github.com/godbus/dbus/v5"
)

// Metadata keys of the org.mpris.MediaPlayer2.Player.Metadata map
const (
	keyArtist      = "xesam:artist"
	keyTitle       = "xesam:title"
	keyAlbumArtist = "xesam:albumArtist"
	keyAlbum       = "xesam:album"
	keyURL         = "xesam:url"
	keyTrackNumber = "xesam:trackNumber"
	keyLength      = "mpris:length"
)

var _ domain.PropertyBag = metadata(nil)

// metadata adapts a raw MPRIS metadata map to domain.PropertyBag.
// Players are free to omit any key or to send loosely typed values.
type metadata map[string]dbus.Variant

func (m metadata) lookup(key string) (any, error) {
	v, ok := m[key]
	if !ok {
		return nil, fmt.Errorf("metadata key %s not set", key)
	}
	return v.Value(), nil
}

func (m metadata) text(key string) (string, error) {
	v, err := m.lookup(key)
	if err != nil {
		return "", err
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("metadata key %s: unexpected type %T", key, v)
	}
	return s, nil
}

// list accepts the documented "as" type and, for non-compliant players, a bare string
func (m metadata) list(key string) ([]string, error) {
	v, err := m.lookup(key)
	if err != nil {
		return nil, err
	}
	switch vals := v.(type) {
	case []string:
		return vals, nil
	case string:
		return []string{vals}, nil
	default:
		return nil, fmt.Errorf("metadata key %s: unexpected type %T", key, v)
	}
}

func (m metadata) integer(key string) (int64, error) {
	v, err := m.lookup(key)
	if err != nil {
		return 0, err
	}
	n, ok := asInt64(v)
	if !ok {
		return 0, fmt.Errorf("metadata key %s: unexpected type %T", key, v)
	}
	return n, nil
}

func (m metadata) Artists() ([]string, error)      { return m.list(keyArtist) }
func (m metadata) Title() (string, error)          { return m.text(keyTitle) }
func (m metadata) AlbumArtists() ([]string, error) { return m.list(keyAlbumArtist) }
func (m metadata) AlbumTitle() (string, error)     { return m.text(keyAlbum) }
func (m metadata) Subtitle() (string, error)       { return m.text(keyURL) }

// AlbumTrackCount is not part of the MPRIS metadata vocabulary
func (m metadata) AlbumTrackCount() (int32, error) {
	return 0, fmt.Errorf("%w: album track count", domain.ErrFieldUnsupported)
}

func (m metadata) TrackNumber() (int32, error) {
	n, err := m.integer(keyTrackNumber)
	if err != nil {
		return 0, err
	}
	if n < math.MinInt32 || n > math.MaxInt32 {
		return 0, fmt.Errorf("metadata key %s: %d out of range", keyTrackNumber, n)
	}
	return int32(n), nil
}

// asInt64 widens the integer types players use for numeric metadata
func asInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case uint64:
		if n > math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	case int32:
		return int64(n), true
	case uint32:
		return int64(n), true
	case int16:
		return int64(n), true
	case uint16:
		return int64(n), true
	case byte:
		return int64(n), true
	case int:
		return int64(n), true
	case float64:
		return int64(n), true
	default:
		return 0, false
	}
}
