// Package status derives PlayerStatus from raw backend transport values
package status

import (
	"context"
	"fmt"

	"github.com/genricoloni/nowplaying/internal/domain"
	"go.uber.org/zap"
)

// TimelineFunc fetches the timeline for the session whose status is being resolved
type TimelineFunc func(ctx context.Context) (domain.TimelineProps, error)

// Resolver maps raw transport values to PlayerStatus
type Resolver struct {
	logger *zap.Logger
}

// NewResolver creates a new status resolver
func NewResolver(logger *zap.Logger) *Resolver {
	return &Resolver{logger: logger}
}

// Resolve classifies raw and, for Playing/Paused, attaches the timeline.
// A failing timeline fetch leaves the timeline nil instead of failing the call.
func (r *Resolver) Resolve(ctx context.Context, raw domain.RawStatus, timeline TimelineFunc) (domain.PlayerStatus, error) {
	if raw == nil {
		return domain.PlayerStatus{}, fmt.Errorf("%w: no status reported", domain.ErrUnknownStatus)
	}

	state, err := raw.Classify()
	if err != nil {
		return domain.PlayerStatus{}, err
	}

	switch state {
	case domain.StateNone:
		return domain.StatusNone(), nil
	case domain.StatePlaying:
		return domain.StatusPlaying(r.fetch(ctx, raw, timeline)), nil
	case domain.StatePaused:
		return domain.StatusPaused(r.fetch(ctx, raw, timeline)), nil
	default:
		return domain.PlayerStatus{}, fmt.Errorf("%w: %s classified as %s", domain.ErrUnknownStatus, raw, state)
	}
}

func (r *Resolver) fetch(ctx context.Context, raw domain.RawStatus, timeline TimelineFunc) *domain.TimelineProps {
	if timeline == nil {
		return nil
	}
	tl, err := timeline(ctx)
	if err != nil {
		r.logger.Warn("Timeline unavailable, status carries none",
			zap.Stringer("status", raw),
			zap.Error(err))
		return nil
	}
	return &tl
}
