package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad_MissingConfigFallsBackToDefaults(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	cfg, err := Load(filepath.Join(home, "does-not-exist.toml"))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.StoreURL != defaultStoreURL || cfg.Feed != "websocket" || cfg.PollInterval != 2*time.Second {
		t.Fatalf("cfg = %+v", cfg)
	}
	if !cfg.OneCubePerVisitor {
		t.Fatalf("OneCubePerVisitor should default to true")
	}
	if cfg.SaveTimeout != 0 {
		t.Fatalf("SaveTimeout = %v, want 0", cfg.SaveTimeout)
	}

	wantLogPath, err := expandPath(defaultLogPath)
	if err != nil {
		t.Fatalf("expandPath(defaultLogPath) returned error: %v", err)
	}
	if cfg.LogPath != wantLogPath {
		t.Fatalf("LogPath = %q, want %q", cfg.LogPath, wantLogPath)
	}
}

func TestLoad_ParsesAndTrimsConfig(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(`
store_url = "  https://cubes.example  "
feed = "POLL"
poll_interval = 5
log_path = "  ~/logs/cs.log  "
log_level = "DEBUG"
log_format = "json"
one_cube_per_visitor = false
save_timeout = 15
metrics_addr = " 127.0.0.1:9464 "
tracing = "stdout"
`), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.StoreURL != "https://cubes.example" {
		t.Fatalf("StoreURL = %q", cfg.StoreURL)
	}
	if cfg.Feed != "poll" || cfg.PollInterval != 5*time.Second {
		t.Fatalf("feed = %q every %v", cfg.Feed, cfg.PollInterval)
	}
	if !strings.HasPrefix(cfg.LogPath, home) {
		t.Fatalf("LogPath = %q, want it under HOME %q", cfg.LogPath, home)
	}
	if cfg.LogLevel != "debug" || cfg.LogFormat != "json" {
		t.Fatalf("log = %q/%q", cfg.LogLevel, cfg.LogFormat)
	}
	if cfg.OneCubePerVisitor {
		t.Fatalf("OneCubePerVisitor = true, want false")
	}
	if cfg.SaveTimeout != 15*time.Second {
		t.Fatalf("SaveTimeout = %v", cfg.SaveTimeout)
	}
	if cfg.MetricsAddr != "127.0.0.1:9464" || cfg.Tracing != "stdout" {
		t.Fatalf("metrics=%q tracing=%q", cfg.MetricsAddr, cfg.Tracing)
	}
}

func TestLoad_EmptyValuesUseDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(`
store_url = "   "
feed = ""
poll_interval = -3
log_path = ""
`), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.StoreURL != defaultStoreURL || cfg.Feed != defaultFeed || cfg.PollInterval != defaultPollInterval {
		t.Fatalf("cfg = %+v", cfg)
	}
	wantLogPath, err := expandPath(defaultLogPath)
	if err != nil {
		t.Fatalf("expandPath(defaultLogPath) returned error: %v", err)
	}
	if cfg.LogPath != wantLogPath {
		t.Fatalf("LogPath = %q, want %q", cfg.LogPath, wantLogPath)
	}
}

func TestLoad_InvalidValuesFail(t *testing.T) {
	tests := map[string]string{
		"bad toml":    `store_url = [`,
		"bad feed":    `feed = "carrier-pigeon"`,
		"bad tracing": `tracing = "otlp"`,
		"bad format":  `log_format = "xml"`,
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.toml")
			if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
				t.Fatalf("WriteFile: %v", err)
			}
			if _, err := Load(path); err == nil {
				t.Fatalf("Load returned nil error for %q", body)
			}
		})
	}
}

func TestLoad_InvalidTOMLMentionsParse(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(`feed = [`), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	_, err := Load(path)
	if err == nil || !strings.Contains(err.Error(), "parse config") {
		t.Fatalf("Load error = %v, want it to mention parse config", err)
	}
}

func TestExpandPath_ExpandsTildeAndReturnsAbs(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	got, err := expandPath("~/a/b")
	if err != nil {
		t.Fatalf("expandPath returned error: %v", err)
	}
	want := filepath.Join(home, "a/b")
	if got != want {
		t.Fatalf("expandPath = %q, want %q", got, want)
	}
}

func TestExpandPath_EmptyErrors(t *testing.T) {
	if _, err := expandPath("   "); err == nil {
		t.Fatalf("expandPath returned nil error, want error")
	}
}
