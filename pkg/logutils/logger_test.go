package logutils

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestNew_DefaultLevel(t *testing.T) {
	logger, closer, err := New("", "")
	defer closer()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if logger.GetLevel() != zerolog.InfoLevel {
		t.Errorf("level = %v, want info", logger.GetLevel())
	}
}

func TestNew_InvalidLevel(t *testing.T) {
	_, closer, err := New("shouting", "")
	defer closer()
	if err == nil {
		t.Fatal("expected error for unknown level")
	}
}

func TestNew_FileSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "itemsmith.log")

	logger, closer, err := New("debug", path)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	logger.Info().Str("component", "test").Msg("hello")
	closer()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), `"component":"test"`) {
		t.Errorf("log output = %q, want JSON field", string(data))
	}
}
