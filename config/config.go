// Package config loads LLMBRIDGE settings from a TOML file with
// environment overrides, and owns the shared debug logger.
package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// UserConfig is the on-disk TOML shape.
type UserConfig struct {
	DataDirectory   string `toml:"data_directory"`
	DefaultProvider string `toml:"default_provider"`
	SessionTTLDays  int    `toml:"session_ttl_days,omitempty"`
}

// Config is the resolved runtime configuration.
type Config struct {
	DataDirectory   string
	DefaultProvider string
	SessionTTLDays  int
}

var Debug = false
var DebugLog *log.Logger

// DataDir returns the expanded data directory path.
func (c *Config) DataDir() string {
	return ExpandPath(c.DataDirectory)
}

func (c *Config) applyEnvOverrides() {
	if dir := os.Getenv("LLMBRIDGE_DATA_DIR"); dir != "" {
		c.DataDirectory = dir
	}
	if provider := os.Getenv("LLMBRIDGE_PROVIDER"); provider != "" {
		c.DefaultProvider = provider
	}
}

// Load reads the config file, applying defaults for missing fields and
// environment overrides on top. A missing file is not an error; defaults
// apply.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	if path != "" {
		var user UserConfig
		if _, err := toml.DecodeFile(path, &user); err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
			}
		} else {
			if user.DataDirectory != "" {
				cfg.DataDirectory = user.DataDirectory
			}
			if user.DefaultProvider != "" {
				cfg.DefaultProvider = user.DefaultProvider
			}
			if user.SessionTTLDays > 0 {
				cfg.SessionTTLDays = user.SessionTTLDays
			}
		}
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save writes the config back as TOML with user-only permissions.
func Save(path string, cfg *Config) error {
	if err := EnsureDir(filepath.Dir(path)); err != nil {
		return err
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to open config for writing: %w", err)
	}
	defer f.Close()

	user := UserConfig{
		DataDirectory:   cfg.DataDirectory,
		DefaultProvider: cfg.DefaultProvider,
		SessionTTLDays:  cfg.SessionTTLDays,
	}
	if err := toml.NewEncoder(f).Encode(user); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

func defaultConfig() *Config {
	return &Config{
		DataDirectory:   "~/.local/share/llmbridge",
		DefaultProvider: "flat",
		SessionTTLDays:  30,
	}
}

// CheckDebug reports whether debug logging is requested via environment.
func CheckDebug() bool {
	debug := os.Getenv("LLMBRIDGE_DEBUG")
	return debug == "true" || debug == "1"
}

// InitDebugLog opens the debug log under dataDir when LLMBRIDGE_DEBUG is
// set. Components guard their logging with config.Debug and write through
// config.DebugLog.
func InitDebugLog(dataDir string) {
	if !CheckDebug() {
		return
	}

	Debug = true
	logPath := filepath.Join(dataDir, "debug.log")

	// 0600: debug output can contain tool arguments and session ids.
	f, err := os.OpenFile(logPath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0600)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not open debug log at %s: %v\n", logPath, err)
		return
	}

	DebugLog = log.New(f, "", log.Ldate|log.Ltime|log.Lmicroseconds|log.Lshortfile)
	DebugLog.Printf("=== Debug logging started (LLMBRIDGE_DEBUG=%s) ===", os.Getenv("LLMBRIDGE_DEBUG"))
}

// ExpandPath resolves a leading ~ to the user's home directory.
func ExpandPath(path string) string {
	if len(path) >= 2 && path[:2] == "~/" {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}

// EnsureDir creates a directory (and parents) with user-only access.
func EnsureDir(dir string) error {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	return nil
}

// FileExists reports whether path exists and is not a directory.
func FileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
