package platform

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"testing"

	"github.com/genricoloni/nowplaying/internal/domain"
	"go.uber.org/zap"
)

func TestNewBackend_MatchesOS(t *testing.T) {
	b := NewBackend(zap.NewNop())

	want := map[string]string{"linux": "mpris", "windows": "unavailable"}[runtime.GOOS]
	if want == "" {
		want = "unavailable"
	}
	if b.Name() != want {
		t.Errorf("Expected %s backend on %s, got %s", want, runtime.GOOS, b.Name())
	}
}

func TestUnavailable(t *testing.T) {
	reason := fmt.Errorf("%w: no session bus", domain.ErrBackendUnavailable)
	b := NewUnavailable(reason)

	_, err := b.ActiveSession(context.Background())
	if !errors.Is(err, domain.ErrBackendUnavailable) {
		t.Errorf("Expected ErrBackendUnavailable, got %v", err)
	}
	if !errors.Is(err, domain.ErrUnsupportedPlatform) {
		t.Errorf("Expected ErrUnsupportedPlatform, got %v", err)
	}
	if domain.Retryable(err) {
		t.Error("An unavailable platform never recovers and must not be retried")
	}
}
