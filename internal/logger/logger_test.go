package logger

import (
	"bytes"
	"os"
	"strings"
	"testing"

	"github.com/noxchat/noxd/internal/config"
)

// captureOutput redirects stdout to a buffer during f()
func captureOutput(t *testing.T, f func()) string {
	t.Helper()

	old := os.Stdout
	r, w, _ := os.Pipe()
	os.Stdout = w

	f()

	_ = w.Close()
	os.Stdout = old

	var buf bytes.Buffer
	_, _ = buf.ReadFrom(r)
	_ = r.Close()

	return buf.String()
}

func TestLogger_TextFormat(t *testing.T) {
	cfg := &config.Config{}
	cfg.Log.Level = "debug"
	cfg.Log.Format = "text"
	cfg.Log.Component = "test"

	out := captureOutput(t, func() {
		InitFromConfig(cfg)
		Info("hello noxd", "key", "value")
	})

	if !strings.Contains(out, "hello noxd") {
		t.Errorf("expected message, got: %s", out)
	}
	if !strings.Contains(out, "component=test") {
		t.Errorf("expected component field, got: %s", out)
	}
	if !strings.Contains(out, "key=value") {
		t.Errorf("expected structured field, got: %s", out)
	}
}

func TestLogger_JSONFormat(t *testing.T) {
	cfg := &config.Config{}
	cfg.Log.Level = "info"
	cfg.Log.Format = "json"
	cfg.Log.Component = "json_test"

	out := captureOutput(t, func() {
		InitFromConfig(cfg)
		Info("structured", "key", "value")
	})

	if !strings.Contains(out, `"msg":"structured"`) {
		t.Errorf("expected json message, got: %s", out)
	}
	if !strings.Contains(out, `"component":"json_test"`) {
		t.Errorf("expected component attribute, got: %s", out)
	}
}

func TestLogger_LevelFiltering(t *testing.T) {
	cfg := &config.Config{}
	cfg.Log.Level = "warn"
	cfg.Log.Format = "text"

	out := captureOutput(t, func() {
		InitFromConfig(cfg)
		Debug("too quiet")
		Info("still too quiet")
		Warn("loud enough")
	})

	if strings.Contains(out, "too quiet") {
		t.Errorf("debug/info should be filtered at warn level, got: %s", out)
	}
	if !strings.Contains(out, "loud enough") {
		t.Errorf("expected warn message, got: %s", out)
	}
}

func TestLogger_DefaultWhenUninitialized(t *testing.T) {
	mu.Lock()
	logger = nil
	mu.Unlock()

	if L() == nil {
		t.Fatal("L() must never return nil")
	}
}
