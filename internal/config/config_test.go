package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func TestLoadExpandsEnvVars(t *testing.T) {
	t.Setenv("GLOWD_TEST_TOKEN", "secret-token")

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
listen:
  port: 9090
plex:
  url: https://plex.local:32400
  token: ${GLOWD_TEST_TOKEN}
router:
  model: llama-3.1-8b-instant
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Listen.Port != 9090 {
		t.Errorf("port = %d, want 9090", cfg.Listen.Port)
	}
	if cfg.Plex.Token != "secret-token" {
		t.Errorf("token = %q, env var not expanded", cfg.Plex.Token)
	}
	// Defaults survive partial config.
	if cfg.Router.TimeoutSec != 5 {
		t.Errorf("router timeout = %d, want default 5", cfg.Router.TimeoutSec)
	}
	if cfg.Tasks.MaxRecent != 20 {
		t.Errorf("max recent = %d, want default 20", cfg.Tasks.MaxRecent)
	}
}

func TestFindConfigExplicitMustExist(t *testing.T) {
	if _, err := FindConfig("/nonexistent/config.yaml"); err == nil {
		t.Error("FindConfig accepted a missing explicit path")
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{in: "", want: slog.LevelInfo},
		{in: "info", want: slog.LevelInfo},
		{in: "TRACE", want: LevelTrace},
		{in: "debug", want: slog.LevelDebug},
		{in: "warn", want: slog.LevelWarn},
		{in: "warning", want: slog.LevelWarn},
		{in: "error", want: slog.LevelError},
		{in: " info ", want: slog.LevelInfo},
		{in: "verbose", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLogLevel(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Errorf("ParseLogLevel(%q) succeeded, want error", tt.in)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseLogLevel(%q): %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ParseLogLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}
