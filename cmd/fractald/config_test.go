package main

import (
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadConfig_SnapshotIntervalValidation(t *testing.T) {
	tests := []struct {
		name        string
		args        []string
		envVars     map[string]string
		expectError bool
		errorSubstr string
	}{
		{
			name: "valid snapshot interval from flag",
			args: []string{"-snapshot-interval", "30s"},
		},
		{
			name:        "zero snapshot interval from flag",
			args:        []string{"-snapshot-interval", "0s"},
			expectError: true,
			errorSubstr: "snapshot interval must be positive",
		},
		{
			name:        "negative snapshot interval from flag",
			args:        []string{"-snapshot-interval", "-5s"},
			expectError: true,
			errorSubstr: "snapshot interval must be positive",
		},
		{
			name:    "valid snapshot interval from env",
			envVars: map[string]string{"FRACTALD_SNAPSHOT_INTERVAL": "30s"},
		},
		{
			name:        "zero snapshot interval from env",
			envVars:     map[string]string{"FRACTALD_SNAPSHOT_INTERVAL": "0s"},
			expectError: true,
			errorSubstr: "FRACTALD_SNAPSHOT_INTERVAL must be positive",
		},
		{
			name:        "invalid snapshot interval format from flag",
			args:        []string{"-snapshot-interval", "soon"},
			expectError: true,
			errorSubstr: "invalid snapshot interval",
		},
		{
			name:        "invalid snapshot interval format from env",
			envVars:     map[string]string{"FRACTALD_SNAPSHOT_INTERVAL": "soon"},
			expectError: true,
			errorSubstr: "invalid FRACTALD_SNAPSHOT_INTERVAL",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.envVars {
				t.Setenv(k, v)
			}

			cfg, err := LoadConfig(tt.args)

			if tt.expectError {
				if err == nil {
					t.Errorf("expected error containing %q, got nil", tt.errorSubstr)
				} else if !strings.Contains(err.Error(), tt.errorSubstr) {
					t.Errorf("expected error containing %q, got %q", tt.errorSubstr, err.Error())
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if cfg.SnapshotInterval != 30*time.Second {
				t.Errorf("expected interval 30s, got %v", cfg.SnapshotInterval)
			}
		})
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Addr != defaultAddr {
		t.Errorf("expected addr %s, got %s", defaultAddr, cfg.Addr)
	}
	if cfg.BaseURL != "http://"+defaultAddr {
		t.Errorf("expected base url derived from addr, got %s", cfg.BaseURL)
	}
	if cfg.Persist != "off" {
		t.Errorf("expected persist off, got %s", cfg.Persist)
	}
	if cfg.SnapshotInterval != defaultSnapshotInterval {
		t.Errorf("expected default interval, got %v", cfg.SnapshotInterval)
	}
	if cfg.PeersPath != "" {
		t.Errorf("expected no peers file, got %s", cfg.PeersPath)
	}
	if cfg.HolderID == "" {
		t.Error("expected a default holder id")
	}
	if !filepath.IsAbs(cfg.DBPath) {
		t.Errorf("expected absolute db path, got %s", cfg.DBPath)
	}
}

func TestLoadConfig_AddrFromEnv(t *testing.T) {
	t.Setenv("FRACTALD_PORT", "9999")
	cfg, err := LoadConfig(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Addr != "127.0.0.1:9999" {
		t.Errorf("expected port from env, got %s", cfg.Addr)
	}

	t.Setenv("FRACTALD_ADDR", "0.0.0.0:7000")
	cfg, err = LoadConfig([]string{"-base-url", "https://fractal.example/"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Addr != "0.0.0.0:7000" {
		t.Errorf("expected FRACTALD_ADDR to win over FRACTALD_PORT, got %s", cfg.Addr)
	}
	if cfg.BaseURL != "https://fractal.example" {
		t.Errorf("expected trimmed base url, got %s", cfg.BaseURL)
	}
}

func TestLoadConfig_PersistValidation(t *testing.T) {
	tests := []struct {
		name        string
		args        []string
		want        string
		errorSubstr string
	}{
		{name: "sqlite alias", args: []string{"-persist", "sqlite3"}, want: "sqlite"},
		{name: "fs alias", args: []string{"-persist", "files"}, want: "fs"},
		{name: "none", args: []string{"-persist", "none"}, want: "off"},
		{name: "redis with addr", args: []string{"-persist", "redis", "-redis-addr", "localhost:6379"}, want: "redis"},
		{name: "redis without addr", args: []string{"-persist", "redis"}, errorSubstr: "requires redis-addr"},
		{name: "unknown", args: []string{"-persist", "s3"}, errorSubstr: "unsupported persist mode"},
		{name: "bad log level", args: []string{"-log-level", "loud"}, errorSubstr: "unsupported log level"},
		{name: "bad log format", args: []string{"-log-format", "xml"}, errorSubstr: "unsupported log format"},
		{name: "bad peer ttl", args: []string{"-peer-ttl", "0s"}, errorSubstr: "peer ttl must be positive"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := LoadConfig(tt.args)
			if tt.errorSubstr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.errorSubstr) {
					t.Fatalf("expected error containing %q, got %v", tt.errorSubstr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if cfg.Persist != tt.want {
				t.Errorf("expected persist %s, got %s", tt.want, cfg.Persist)
			}
		})
	}
}

func TestLoadConfig_RelativePaths(t *testing.T) {
	cfg, err := LoadConfig([]string{"-peers", "peers.yaml", "-storage-dir", "data"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !filepath.IsAbs(cfg.PeersPath) || filepath.Base(cfg.PeersPath) != "peers.yaml" {
		t.Errorf("expected absolute peers path, got %s", cfg.PeersPath)
	}
	if !filepath.IsAbs(cfg.StorageDir) || filepath.Base(cfg.StorageDir) != "data" {
		t.Errorf("expected absolute storage dir, got %s", cfg.StorageDir)
	}
}

func TestNewLogger(t *testing.T) {
	for _, format := range []string{"json", "console"} {
		logger, err := newLogger("debug", format)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", format, err)
		}
		logger.Debug("logger_test")
	}
	if _, err := newLogger("verbose", "json"); err == nil {
		t.Error("expected error for unknown level")
	}
}
