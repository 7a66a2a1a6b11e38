//go:build !linux && !windows
// +build !linux,!windows

package platform

import (
	"fmt"
	"runtime"

	"github.com/genricoloni/nowplaying/internal/domain"
	"go.uber.org/zap"
)

// NewBackend returns Unavailable: there is no media session backend for this platform
func NewBackend(logger *zap.Logger) domain.Backend {
	logger.Warn("Media sessions are not supported on this platform", zap.String("os", runtime.GOOS))
	return NewUnavailable(fmt.Errorf("%w: no media session backend for %s", domain.ErrBackendUnavailable, runtime.GOOS))
}
