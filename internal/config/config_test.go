package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func TestLoad_FileNotFound(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(filepath.Join(dir, FileName))
	if err != nil {
		t.Fatalf("Load() returned error for missing file: %v", err)
	}
	if !reflect.DeepEqual(cfg, Default()) {
		t.Errorf("Load() = %+v, want defaults %+v", cfg, Default())
	}
}

func TestLoad_PartialKeepsDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, FileName)
	content := `# pomoblock settings
hosts_path: /tmp/hosts
flush_dns: false
shutdown_grace: 3s
default_domains:
  - news.ycombinator.com
  - reddit.com
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	tests := []struct {
		name string
		got  any
		want any
	}{
		{"hosts_path", cfg.HostsPath, "/tmp/hosts"},
		{"flush_dns", cfg.FlushDNS, false},
		{"shutdown_grace", cfg.ShutdownGrace, 3 * time.Second},
		{"default_domains", cfg.DefaultDomains, []string{"news.ycombinator.com", "reddit.com"}},
		{"log_level", cfg.LogLevel, "info"},
		{"harden_stop", cfg.HardenStop, true},
		{"repair_on_tamper", cfg.RepairOnTamper, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !reflect.DeepEqual(tt.got, tt.want) {
				t.Errorf("%s = %v, want %v", tt.name, tt.got, tt.want)
			}
		})
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"bad yaml", "hosts_path: [unterminated\n"},
		{"negative grace", "shutdown_grace: -1s\n"},
		{"bad duration", "shutdown_grace: soon\n"},
		{"bad domain", "default_domains:\n  - \"not a domain\"\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), FileName)
			if err := os.WriteFile(path, []byte(tt.content), 0644); err != nil {
				t.Fatalf("WriteFile: %v", err)
			}
			if _, err := Load(path); err == nil {
				t.Errorf("Load() expected error for %q", tt.content)
			}
		})
	}
}

func TestSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", FileName)
	want := Default()
	want.Socket = "/run/pomoblock.sock"
	want.DefaultDomains = []string{"example.com"}

	if err := Save(path, want); err != nil {
		t.Fatalf("Save() error: %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Load() = %+v, want %+v", got, want)
	}
}

func TestDir_XDG(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/xdg")
	dir, err := Dir()
	if err != nil {
		t.Fatalf("Dir() error: %v", err)
	}
	if want := filepath.Join("/xdg", "pomoblock"); dir != want {
		t.Errorf("Dir() = %q, want %q", dir, want)
	}
}

func TestResolve_KeepsOverrides(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("USERPROFILE", os.Getenv("HOME"))

	cfg := Default()
	cfg.HostsPath = "/custom/hosts"
	cfg.DBPath = "/custom/db"

	if err := cfg.Resolve(); err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if cfg.HostsPath != "/custom/hosts" || cfg.DBPath != "/custom/db" {
		t.Errorf("Resolve() overwrote overrides: %+v", cfg)
	}
	if cfg.Socket == "" {
		t.Error("Resolve() left Socket empty")
	}
	if filepath.Base(cfg.LockPath) != LockFileName {
		t.Errorf("Resolve() LockPath = %q", cfg.LockPath)
	}
}

func TestDefaultSocket(t *testing.T) {
	if got := DefaultSocket("windows", "/data"); got != WindowsListenAddr {
		t.Errorf("DefaultSocket(windows) = %q", got)
	}
	if got := DefaultSocket("linux", "/data"); got != filepath.Join("/data", "pomoblock.sock") {
		t.Errorf("DefaultSocket(linux) = %q", got)
	}
}
