// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading for theseus.
//
// Configuration lives in ~/.theseus/config.toml with sensible defaults
// and a handful of environment variable overrides. A missing file is
// not an error; the defaults describe a working local setup.
package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/jeranaias/theseus-tui/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete theseus configuration.
type Config struct {
	// Chat settings
	Chat ChatConfig `toml:"chat"`

	// Local (Ollama) configuration
	Local LocalConfig `toml:"local"`

	// Session storage configuration
	Sessions SessionsConfig `toml:"sessions"`

	// Upload handling configuration
	Upload UploadConfig `toml:"upload"`

	// UI configuration
	UI UIConfig `toml:"ui"`
}

// ChatConfig contains model selection and the system profile.
type ChatConfig struct {
	// DefaultModel is the text model for normal turns
	DefaultModel string `toml:"default_model"`
	// VisionModel handles turns with an attached image
	VisionModel string `toml:"vision_model"`
	// Profile is the fixed system context sent with every text turn
	Profile string `toml:"profile"`
}

// LocalConfig contains local Ollama configuration.
type LocalConfig struct {
	// OllamaURL is the URL of the Ollama server
	OllamaURL string `toml:"ollama_url"`
}

// SessionsConfig controls where transcripts are stored.
type SessionsConfig struct {
	// Dir is the sessions directory (empty = ~/.theseus/sessions)
	Dir string `toml:"dir"`
}

// UploadConfig controls attached-file handling.
type UploadConfig struct {
	// MaxBytes rejects uploads larger than this (0 = 32 MiB default)
	MaxBytes int64 `toml:"max_bytes"`
}

// UIConfig contains presentation settings.
type UIConfig struct {
	// Theme selects the color theme: "dark" or "light"
	Theme string `toml:"theme"`
	// ShowVRAM toggles the GPU memory gauge in the status bar
	ShowVRAM bool `toml:"show_vram"`
}

// =============================================================================
// DEFAULTS
// =============================================================================

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Chat: ChatConfig{
			DefaultModel: "llama3.1:8b",
			VisionModel:  "llava:13b",
			Profile:      "User: Raul (EE student, TXST). Rig: Ship of Theseus (RTX 5080).",
		},
		Local: LocalConfig{
			OllamaURL: "http://127.0.0.1:11434",
		},
		Sessions: SessionsConfig{
			Dir: "", // resolved at load time
		},
		Upload: UploadConfig{
			MaxBytes: 32 << 20,
		},
		UI: UIConfig{
			Theme:    "dark",
			ShowVRAM: true,
		},
	}
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the theseus configuration directory path.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".theseus"), nil
}

// ConfigPath returns the path to the TOML config file.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// =============================================================================
// LOAD / SAVE
// =============================================================================

// Load reads the config file, falling back to defaults when it is
// absent. Environment overrides are applied last.
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadFromPath(path)
}

// LoadFromPath loads configuration from an explicit file path.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()

	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to decode config file: %w", err)
		}
	}

	cfg.applyEnvOverrides()
	if err := cfg.fillDerived(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// Save writes the config to its default location.
func Save(cfg *Config) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	return SaveToPath(path, cfg)
}

// SaveToPath writes the config to an explicit file path.
func SaveToPath(path string, cfg *Config) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return util.AtomicWriteFile(path, buf.Bytes(), 0644)
}

// applyEnvOverrides lets the environment override file settings.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("THESEUS_OLLAMA_URL"); v != "" {
		c.Local.OllamaURL = v
	}
	if v := os.Getenv("THESEUS_MODEL"); v != "" {
		c.Chat.DefaultModel = v
	}
	if v := os.Getenv("THESEUS_VISION_MODEL"); v != "" {
		c.Chat.VisionModel = v
	}
	if v := os.Getenv("THESEUS_SESSIONS_DIR"); v != "" {
		c.Sessions.Dir = v
	}
	if v := os.Getenv("THESEUS_MAX_UPLOAD_BYTES"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			c.Upload.MaxBytes = n
		}
	}
}

// fillDerived resolves settings that depend on the environment.
func (c *Config) fillDerived() error {
	if c.Sessions.Dir == "" {
		dir, err := ConfigDir()
		if err != nil {
			return err
		}
		c.Sessions.Dir = filepath.Join(dir, "sessions")
	}
	if c.Upload.MaxBytes <= 0 {
		c.Upload.MaxBytes = Default().Upload.MaxBytes
	}
	return nil
}

// Validate checks the config for values that cannot work.
func (c *Config) Validate() error {
	if c.Chat.DefaultModel == "" {
		return fmt.Errorf("chat.default_model must not be empty")
	}
	if !strings.HasPrefix(c.Local.OllamaURL, "http://") && !strings.HasPrefix(c.Local.OllamaURL, "https://") {
		return fmt.Errorf("local.ollama_url must be an http(s) URL, got %q", c.Local.OllamaURL)
	}
	switch c.UI.Theme {
	case "", "dark", "light":
	default:
		return fmt.Errorf("ui.theme must be \"dark\" or \"light\", got %q", c.UI.Theme)
	}
	return nil
}
