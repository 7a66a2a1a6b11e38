//go:build linux
// +build linux

package platform

import (
	"github.com/genricoloni/nowplaying/internal/backend/mpris"
	"github.com/genricoloni/nowplaying/internal/domain"
	"go.uber.org/zap"
)

// NewBackend returns the MPRIS backend. The session bus is dialed lazily,
// so a missing bus surfaces as ErrBackendUnavailable on first use.
func NewBackend(logger *zap.Logger) domain.Backend {
	logger.Info("Using MPRIS media backend")
	return mpris.NewBackend(logger)
}
