package normalize

import (
	"errors"
	"time"

	"github.com/genricoloni/nowplaying/internal/domain"
	"go.uber.org/zap"
)

const (
	microsPerSecond = 1_000_000
	ticksPerSecond  = 10_000_000

	// filetimeEpochOffset is the number of seconds between 1601-01-01 and 1970-01-01 UTC
	filetimeEpochOffset = 11644473600
)

var (
	errNilBag      = errors.New("property bag is nil")
	errNilTimeline = errors.New("timeline sample is nil")
)

// Timeline builds TimelineProps in seconds from a raw sample observed at now.
// LastUpdate is always converted to Unix epoch seconds.
func (n *Normalizer) Timeline(raw domain.RawTimeline, now time.Time) (domain.TimelineProps, error) {
	if raw == nil {
		return domain.TimelineProps{}, domain.NewNativeCallError("read timeline", errNilTimeline)
	}

	unit := raw.Unit()
	var tl domain.TimelineProps
	tl.MinSeek = ToSeconds(n.offset("min_seek", raw.MinSeek), unit)
	tl.MaxSeek = ToSeconds(n.offset("max_seek", raw.MaxSeek), unit)
	tl.Position = ToSeconds(n.offset("position", raw.Position), unit)
	tl.Started = ToSeconds(n.offset("started", raw.StartTime), unit)
	tl.Ended = ToSeconds(n.offset("ended", raw.EndTime), unit)

	if v, err := raw.LastUpdated(); err != nil {
		n.absorbed("last_update", err)
	} else {
		tl.LastUpdate = EpochSeconds(v, unit, raw.Base(), now)
	}

	if !tl.InBounds() {
		n.logger.Debug("Timeline position outside seek bounds",
			zap.Int64("position", tl.Position),
			zap.Int64("min", tl.MinSeek),
			zap.Int64("max", tl.MaxSeek))
	}
	return tl, nil
}

func (n *Normalizer) offset(field string, get func() (int64, error)) int64 {
	v, err := get()
	if err != nil {
		n.absorbed(field, err)
		return 0
	}
	return v
}

// ToSeconds rescales v from unit to whole seconds, truncating toward zero
func ToSeconds(v int64, unit domain.TimeUnit) int64 {
	switch unit {
	case domain.UnitMicroseconds:
		return v / microsPerSecond
	case domain.UnitTicks:
		return v / ticksPerSecond
	default:
		return v
	}
}

// EpochSeconds converts a LastUpdated value to Unix epoch seconds.
// Elapsed values are anchored to now.
func EpochSeconds(v int64, unit domain.TimeUnit, base domain.TimeBase, now time.Time) int64 {
	secs := ToSeconds(v, unit)
	switch base {
	case domain.BaseFiletime:
		return secs - filetimeEpochOffset
	case domain.BaseElapsed:
		return now.Unix() - secs
	default:
		return secs
	}
}
