package internal

import (
	"io"
	"log/slog"
	"testing"
)

func TestSetup_RequiresConfig(t *testing.T) {
	if _, _, err := setup(nil); err == nil {
		t.Fatal("setup without config should fail")
	}
}

func TestSetup_UsesProvidedLogger(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := NewDefaultConfig()

	gotCfg, gotLogger, err := setup([]Option{WithConfig(cfg), WithLogger(logger)})
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	if gotCfg != cfg {
		t.Error("config not passed through")
	}
	if gotLogger != logger {
		t.Error("provided logger was replaced")
	}
}
