package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv(PathEnvVar, "")
	chdir(t, t.TempDir())

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != 8000 {
		t.Fatalf("port: got %d, want 8000", cfg.Server.Port)
	}
	if cfg.Library.RootDir != "data" {
		t.Fatalf("root dir: got %q", cfg.Library.RootDir)
	}
	if cfg.Detector.MaxImageBytes != 2<<20 {
		t.Fatalf("max image bytes: got %d", cfg.Detector.MaxImageBytes)
	}
}

func TestLoad_FileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "emotune.yaml")
	body := "server:\n  port: 9100\nlibrary:\n  root_dir: /srv/music\ncatalog:\n  refresh_interval: 1m\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("EMOTUNE_SERVER_PORT", "9200")
	t.Setenv("EMOTUNE_LIBRARY_EXTENSIONS", ".mp3, .ogg")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != 9200 {
		t.Fatalf("env should win over file: got %d", cfg.Server.Port)
	}
	if cfg.Library.RootDir != "/srv/music" {
		t.Fatalf("root dir from file: got %q", cfg.Library.RootDir)
	}
	if cfg.Catalog.RefreshInterval != time.Minute {
		t.Fatalf("refresh interval: got %v", cfg.Catalog.RefreshInterval)
	}
	if got := strings.Join(cfg.Library.Extensions, "|"); got != ".mp3|.ogg" {
		t.Fatalf("extensions: got %q", got)
	}
}

func TestLoad_LegacyDataDir(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv(PathEnvVar, "")
	t.Setenv(LegacyDataDirEnvVar, "/legacy/music")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Library.RootDir != "/legacy/music" {
		t.Fatalf("root dir: got %q", cfg.Library.RootDir)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "defaults are valid", mutate: func(c *Config) {}},
		{name: "bad port", mutate: func(c *Config) { c.Server.Port = 0 }, wantErr: "server.port"},
		{name: "empty root", mutate: func(c *Config) { c.Library.RootDir = " " }, wantErr: "library.root_dir"},
		{name: "half oauth", mutate: func(c *Config) { c.Detector.ClientID = "id" }, wantErr: "client_secret"},
		{name: "negative refresh", mutate: func(c *Config) { c.Catalog.RefreshInterval = -time.Second }, wantErr: "refresh_interval"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestEnvTransform(t *testing.T) {
	tests := map[string]string{
		"EMOTUNE_SERVER_PORT":              "server.port",
		"EMOTUNE_DETECTOR_TOKEN_URL":       "detector.token_url",
		"EMOTUNE_UNKNOWN_THING":            "",
		"EMOTUNE_CONFIG":                   "",
		"EMOTUNE_CATALOG_REFRESH_INTERVAL": "catalog.refresh_interval",
	}
	for in, want := range tests {
		if got := envTransform(in); got != want {
			t.Errorf("envTransform(%q) = %q, want %q", in, got, want)
		}
	}
}

// chdir changes the working directory for the duration of the test and
// restores it on cleanup (equivalent of testing.T.Chdir for older toolchains).
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(prev); err != nil {
			t.Fatalf("restore working directory: %v", err)
		}
	})
}
