package logging

import (
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Adlikkk/gamehost-one/internal/config"
)

func TestSplitComponent(t *testing.T) {
	tests := []struct {
		msg       string
		component string
		rest      string
	}{
		{"[Backup] backup complete", "Backup", "backup complete"},
		{"[Process] Started server s1 (pid 42)", "Process", "Started server s1 (pid 42)"},
		{"no prefix here", "", "no prefix here"},
		{"[] odd", "", "[] odd"},
		{"[unclosed prefix", "", "[unclosed prefix"},
	}
	for _, tt := range tests {
		component, rest := splitComponent(tt.msg)
		if component != tt.component || rest != tt.rest {
			t.Errorf("splitComponent(%q) = (%q, %q), want (%q, %q)",
				tt.msg, component, rest, tt.component, tt.rest)
		}
	}
}

func TestInitBridgesStdlibLogWithComponent(t *testing.T) {
	root := t.TempDir()
	logPath := filepath.Join(root, "app.log")

	if _, err := Init(config.LoggingConfig{
		Level:      "info",
		Format:     "json",
		File:       logPath,
		MaxSize:    10,
		MaxBackups: 1,
		MaxAge:     1,
	}); err != nil {
		t.Fatalf("failed to init logger: %v", err)
	}
	defer Close()

	log.Printf("[Backup] Backup 20240101_000000 complete")
	L().Info("direct_entry", "key", "value")

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}
	out := string(data)
	if !strings.Contains(out, `"component":"Backup"`) {
		t.Errorf("bridged entry missing component attribute:\n%s", out)
	}
	if !strings.Contains(out, "Backup 20240101_000000 complete") {
		t.Errorf("bridged entry missing message:\n%s", out)
	}
	if !strings.Contains(out, "direct_entry") {
		t.Errorf("direct entry missing:\n%s", out)
	}
}

func TestCloseWithoutFileIsNoop(t *testing.T) {
	if _, err := Init(config.LoggingConfig{Level: "warn"}); err != nil {
		t.Fatalf("failed to init logger: %v", err)
	}
	if err := Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := Close(); err != nil {
		t.Fatalf("second Close failed: %v", err)
	}
}
