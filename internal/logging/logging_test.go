package logging

import (
	"testing"

	"community-energy/internal/config"

	"go.uber.org/zap"
)

func TestNew(t *testing.T) {
	l, err := New(config.LogConfig{Level: "warn", Development: true})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if l.Core().Enabled(zap.InfoLevel) {
		t.Error("info enabled at warn level")
	}
	if !l.Core().Enabled(zap.WarnLevel) {
		t.Error("warn disabled at warn level")
	}
	if _, err := New(config.LogConfig{Level: "loud"}); err == nil {
		t.Error("expected error for unknown level")
	}
}
