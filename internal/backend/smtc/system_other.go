//go:build !windows
// +build !windows

package smtc

import (
	"fmt"

	"github.com/genricoloni/nowplaying/internal/domain"
	"go.uber.org/zap"
)

// SystemManager is only available on Windows
func SystemManager(logger *zap.Logger) (NativeManager, error) {
	return nil, fmt.Errorf("%w: GSMTC is only available on Windows", domain.ErrBackendUnavailable)
}
