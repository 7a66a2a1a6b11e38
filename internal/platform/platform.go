// Package platform selects the media backend for the running OS.
// Exactly one of the backend_*.go files is compiled in.
package platform

import (
	"context"
	"fmt"

	"github.com/genricoloni/nowplaying/internal/domain"
)

var _ domain.Backend = (*Unavailable)(nil)

// Unavailable is served when the platform backend cannot be used.
// Every call fails with the reason marked as ErrUnsupportedPlatform, so
// callers stop retrying.
type Unavailable struct {
	reason error
}

// NewUnavailable creates a backend that always fails with reason
func NewUnavailable(reason error) *Unavailable {
	return &Unavailable{reason: reason}
}

// Name implements domain.Backend
func (u *Unavailable) Name() string {
	return "unavailable"
}

// ActiveSession implements domain.Backend
func (u *Unavailable) ActiveSession(ctx context.Context) (domain.Session, error) {
	return nil, fmt.Errorf("%w: %w", domain.ErrUnsupportedPlatform, u.reason)
}
