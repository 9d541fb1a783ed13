package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", t.TempDir())

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ListenAddr != DefaultListenAddr {
		t.Errorf("listen addr = %q", cfg.ListenAddr)
	}
	if cfg.Retention.MaxAge.Duration != DefaultMaxAge {
		t.Errorf("max age = %v", cfg.Retention.MaxAge.Duration)
	}
}

func TestLoadConfigPartialFileFillsGaps(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", t.TempDir())

	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
storage_dir = "` + dir + `"
listen_addr = "127.0.0.1:9000"

[retention]
max_age = "168h"
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ListenAddr != "127.0.0.1:9000" {
		t.Errorf("listen addr = %q", cfg.ListenAddr)
	}
	if cfg.Retention.MaxAge.Duration != 168*time.Hour {
		t.Errorf("max age = %v", cfg.Retention.MaxAge.Duration)
	}
	if cfg.Retention.SweepInterval.Duration != DefaultSweepInterval {
		t.Errorf("sweep interval not defaulted: %v", cfg.Retention.SweepInterval.Duration)
	}
	if cfg.DBPath() != filepath.Join(dir, "places.db") {
		t.Errorf("db path = %q", cfg.DBPath())
	}
}

func TestSaveTemplateConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	cfg := &Config{StorageDir: dir}
	if err := cfg.SaveTemplateConfig(path); err != nil {
		t.Fatalf("save template: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(data), dir) {
		t.Error("template should carry the storage directory")
	}
	if !strings.Contains(string(data), "[retention]") {
		t.Error("template should carry the retention section")
	}
}

func TestDurationRoundTrip(t *testing.T) {
	var d Duration
	if err := d.UnmarshalText([]byte("90m")); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if d.Duration != 90*time.Minute {
		t.Errorf("parsed %v", d.Duration)
	}
	text, err := d.MarshalText()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(text) != "1h30m0s" {
		t.Errorf("marshaled %q", text)
	}
}
