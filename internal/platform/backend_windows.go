//go:build windows
// +build windows

package platform

import (
	"github.com/genricoloni/nowplaying/internal/backend/smtc"
	"github.com/genricoloni/nowplaying/internal/domain"
	"go.uber.org/zap"
)

// NewBackend returns the GSMTC backend, or Unavailable when the session
// manager cannot be activated
func NewBackend(logger *zap.Logger) domain.Backend {
	manager, err := smtc.SystemManager(logger)
	if err != nil {
		logger.Warn("GSMTC session manager unavailable", zap.Error(err))
		return NewUnavailable(err)
	}
	logger.Info("Using GSMTC media backend")
	return smtc.NewBackend(logger, manager)
}
