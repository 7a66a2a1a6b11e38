//go:build windows
// +build windows

package smtc

import (
	"fmt"

	"github.com/genricoloni/nowplaying/internal/domain"
	"go.uber.org/zap"
	"golang.org/x/sys/windows"
)

// SystemManager returns the session manager of the running system.
// The WinRT runtime is probed through combase.dll; activating
// GlobalSystemMediaTransportControlsSessionManager is not implemented, so
// the result is always ErrBackendUnavailable with the probe outcome.
func SystemManager(logger *zap.Logger) (NativeManager, error) {
	combase := windows.NewLazySystemDLL("combase.dll")
	if err := combase.Load(); err != nil {
		return nil, fmt.Errorf("%w: load combase.dll: %v", domain.ErrBackendUnavailable, err)
	}
	if err := combase.NewProc("RoGetActivationFactory").Find(); err != nil {
		return nil, fmt.Errorf("%w: WinRT activation unavailable: %v", domain.ErrBackendUnavailable, err)
	}

	logger.Warn("WinRT runtime present but session manager activation is not implemented")
	return nil, fmt.Errorf("%w: GlobalSystemMediaTransportControlsSessionManager activation not implemented", domain.ErrBackendUnavailable)
}
