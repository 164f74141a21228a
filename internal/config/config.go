// Package config provides configuration file parsing for pomoblock.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/blackwell-systems/pomoblock/internal/hosts"
)

const (
	// FileName is the config file name inside Dir.
	FileName = "config.yaml"

	// WindowsListenAddr is where the daemon listens on Windows, which has no
	// unix socket permissions to rely on.
	WindowsListenAddr = "127.0.0.1:47615"
)

// Dir returns the pomoblock config directory, respecting XDG_CONFIG_HOME.
// Defaults to ~/.config/pomoblock if XDG_CONFIG_HOME is not set.
func Dir() (string, error) {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "pomoblock"), nil
}

// LockFileName is held by every process that changes the hosts file.
const LockFileName = "pomoblock.lock"

// DataDir returns ~/.pomoblock, creating it if needed. The database, socket,
// PID file, lock file and daemon log live here.
func DataDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	dir := filepath.Join(home, ".pomoblock")
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", fmt.Errorf("failed to create pomoblock directory: %w", err)
	}
	return dir, nil
}

// Config holds the user settings read from config.yaml. Empty paths mean
// "use the default" and are filled in by Resolve.
type Config struct {
	HostsPath      string        `yaml:"hosts_path"`
	BackupPath     string        `yaml:"backup_path"`
	DBPath         string        `yaml:"db_path"`
	Socket         string        `yaml:"socket"`
	LockPath       string        `yaml:"lock_path"`
	LogLevel       string        `yaml:"log_level"`
	LogFile        string        `yaml:"log_file"`
	FlushDNS       bool          `yaml:"flush_dns"`
	RepairOnTamper bool          `yaml:"repair_on_tamper"`
	HardenStop     bool          `yaml:"harden_stop"`
	ShutdownGrace  time.Duration `yaml:"shutdown_grace"`
	DefaultDomains []string      `yaml:"default_domains"`
}

// Default returns the settings used when no config file exists.
func Default() *Config {
	return &Config{
		LogLevel:       "info",
		LogFile:        "console",
		FlushDNS:       true,
		RepairOnTamper: true,
		HardenStop:     true,
		ShutdownGrace:  10 * time.Second,
	}
}

// Load reads the config file at path. If the file does not exist, the
// defaults are returned without an error. Keys missing from the file keep
// their default values.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	return cfg, nil
}

// LoadDefault loads config.yaml from Dir.
func LoadDefault() (*Config, string, error) {
	dir, err := Dir()
	if err != nil {
		return nil, "", err
	}
	path := filepath.Join(dir, FileName)
	cfg, err := Load(path)
	return cfg, path, err
}

// Validate checks values that would otherwise fail late.
func (c *Config) Validate() error {
	if c.ShutdownGrace < 0 {
		return errors.New("shutdown_grace must not be negative")
	}
	for _, d := range c.DefaultDomains {
		if _, err := hosts.NormalizeDomain(d); err != nil {
			return fmt.Errorf("default_domains: %w", err)
		}
	}
	return nil
}

// Resolve fills empty paths with their platform defaults.
func (c *Config) Resolve() error {
	if c.HostsPath == "" {
		p, err := hosts.ResolvePath(runtime.GOOS)
		if err != nil {
			return err
		}
		c.HostsPath = p
	}

	if c.DBPath == "" || c.Socket == "" || c.LockPath == "" {
		dir, err := DataDir()
		if err != nil {
			return err
		}
		if c.DBPath == "" {
			c.DBPath = filepath.Join(dir, "pomoblock.db")
		}
		if c.Socket == "" {
			c.Socket = DefaultSocket(runtime.GOOS, dir)
		}
		if c.LockPath == "" {
			c.LockPath = filepath.Join(dir, LockFileName)
		}
	}

	return nil
}

// DefaultSocket returns the API listen address for goos.
func DefaultSocket(goos, dataDir string) string {
	if goos == "windows" {
		return WindowsListenAddr
	}
	return filepath.Join(dataDir, "pomoblock.sock")
}

// Save writes cfg as YAML to path, creating the directory.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
