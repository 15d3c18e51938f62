// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for qubi.
//
// Configuration file locations (in order of precedence):
//   - QUBI_* environment variables
//   - ~/.qubi/config.toml
//   - ~/.qubi/config.json
//   - Built-in defaults
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/jeranaias/qubi-tui/internal/offline"
	"github.com/jeranaias/qubi-tui/internal/util"
)

// =============================================================================
// DEFAULTS
// =============================================================================

const (
	// DefaultEngineURL is the local inference server. Explicit IPv4 avoids
	// slow IPv6 localhost resolution on some Windows hosts.
	DefaultEngineURL = "http://127.0.0.1:11434"

	// DefaultModelID is a small 4-bit quantized chat model.
	DefaultModelID = "gemma2:2b"

	// DefaultSystemPrompt steers the assistant persona for every request.
	DefaultSystemPrompt = "You are Qubi, a friendly AI assistant running entirely on the user's own machine. " +
		"Answer clearly and concisely. If you are unsure about something, say so."

	DefaultTemperature     = 0.7
	DefaultMaxTokens       = 1000
	DefaultGuidanceDelayMs = 1500
	DefaultNotReadyDelayMs = 500
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete qubi configuration.
type Config struct {
	Version string `toml:"version" json:"version"`

	Engine  EngineConfig  `toml:"engine" json:"engine"`
	Chat    ChatConfig    `toml:"chat" json:"chat"`
	UI      UIConfig      `toml:"ui" json:"ui"`
	Storage StorageConfig `toml:"storage" json:"storage"`
	Log     LogConfig     `toml:"log" json:"log"`
}

// EngineConfig describes how to reach the inference engine.
type EngineConfig struct {
	// URL of the Ollama server.
	URL string `toml:"url" json:"url"`
	// Model is the fixed model identifier loaded into the engine.
	Model string `toml:"model" json:"model"`
	// AutoStart runs `ollama serve` when the server is not reachable.
	AutoStart bool `toml:"auto_start" json:"auto_start"`
	// LogLevel is passed to the engine ("DEBUG", "INFO", "WARN", "ERROR").
	LogLevel string `toml:"log_level" json:"log_level"`
	// LocalOnly rejects engine URLs that are not on this machine.
	LocalOnly bool `toml:"local_only" json:"local_only"`
}

// ChatConfig holds the fixed request parameters of the chat mediator.
type ChatConfig struct {
	SystemPrompt string  `toml:"system_prompt" json:"system_prompt"`
	Temperature  float64 `toml:"temperature" json:"temperature"`
	MaxTokens    int     `toml:"max_tokens" json:"max_tokens"`
}

// UIConfig holds presentation timings.
type UIConfig struct {
	// GuidanceDelayMs delays the "model not loaded" hint after a cache miss.
	GuidanceDelayMs int `toml:"guidance_delay_ms" json:"guidance_delay_ms"`
	// NotReadyDelayMs delays the reply to a message sent before loading.
	NotReadyDelayMs int `toml:"not_ready_delay_ms" json:"not_ready_delay_ms"`
}

// StorageConfig locates qubi's own files.
type StorageConfig struct {
	// DataDir holds prefs.db, the log file and REPL history. Empty = ~/.qubi
	DataDir string `toml:"data_dir" json:"data_dir"`
}

// LogConfig configures the application log.
type LogConfig struct {
	Level string `toml:"level" json:"level"`
	// File is the log path. Empty = <data_dir>/qubi.log
	File string `toml:"file" json:"file"`
}

// GuidanceDelay returns UI.GuidanceDelayMs as a duration.
func (c *Config) GuidanceDelay() time.Duration {
	return time.Duration(c.UI.GuidanceDelayMs) * time.Millisecond
}

// NotReadyDelay returns UI.NotReadyDelayMs as a duration.
func (c *Config) NotReadyDelay() time.Duration {
	return time.Duration(c.UI.NotReadyDelayMs) * time.Millisecond
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Version: "1",
		Engine: EngineConfig{
			URL:       DefaultEngineURL,
			Model:     DefaultModelID,
			AutoStart: true,
			LogLevel:  "INFO",
			LocalOnly: true,
		},
		Chat: ChatConfig{
			SystemPrompt: DefaultSystemPrompt,
			Temperature:  DefaultTemperature,
			MaxTokens:    DefaultMaxTokens,
		},
		UI: UIConfig{
			GuidanceDelayMs: DefaultGuidanceDelayMs,
			NotReadyDelayMs: DefaultNotReadyDelayMs,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// =============================================================================
// PATHS
// =============================================================================

// ConfigDir returns ~/.qubi.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".qubi"), nil
}

// ConfigPathTOML returns the path to the TOML config file.
func ConfigPathTOML() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// ConfigPathJSON returns the path to the JSON config file.
func ConfigPathJSON() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// DataDir resolves Storage.DataDir, defaulting to ConfigDir.
func (c *Config) DataDir() (string, error) {
	if c.Storage.DataDir != "" {
		return c.Storage.DataDir, nil
	}
	return ConfigDir()
}

// LogPath resolves Log.File, defaulting to <data_dir>/qubi.log.
func (c *Config) LogPath() (string, error) {
	if c.Log.File != "" {
		return c.Log.File, nil
	}
	dir, err := c.DataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "qubi.log"), nil
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load reads the default config files. A missing file is not an error; the
// defaults are returned instead. Environment overrides always apply.
func Load() (*Config, error) {
	if path, err := ConfigPathTOML(); err == nil {
		if _, statErr := os.Stat(path); statErr == nil {
			return LoadFromPath(path)
		}
	}
	if path, err := ConfigPathJSON(); err == nil {
		if _, statErr := os.Stat(path); statErr == nil {
			return LoadFromPath(path)
		}
	}

	cfg := Default()
	cfg.ApplyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadFromPath loads a config file on top of the defaults. Files ending in
// .json are decoded as JSON, anything else as TOML.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()

	if strings.HasSuffix(path, ".json") {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read JSON config %s: %w", path, err)
		}
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to decode JSON config %s: %w", path, err)
		}
	} else {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to decode TOML config %s: %w", path, err)
		}
	}

	cfg.ApplyEnvOverrides()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// SetDefaults fills zero values left by a partial config file.
func (c *Config) SetDefaults() {
	d := Default()
	if c.Engine.URL == "" {
		c.Engine.URL = d.Engine.URL
	}
	if c.Engine.Model == "" {
		c.Engine.Model = d.Engine.Model
	}
	if c.Engine.LogLevel == "" {
		c.Engine.LogLevel = d.Engine.LogLevel
	}
	if c.Chat.SystemPrompt == "" {
		c.Chat.SystemPrompt = d.Chat.SystemPrompt
	}
	if c.Chat.MaxTokens == 0 {
		c.Chat.MaxTokens = d.Chat.MaxTokens
	}
	if c.Log.Level == "" {
		c.Log.Level = d.Log.Level
	}
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save writes cfg to the default TOML path.
func Save(cfg *Config) error {
	path, err := ConfigPathTOML()
	if err != nil {
		return err
	}
	return SaveTOML(cfg, path)
}

// SaveTOML writes cfg as TOML with 0600 permissions.
func SaveTOML(cfg *Config, path string) error {
	var b strings.Builder
	b.WriteString("# qubi configuration file\n\n")
	if err := toml.NewEncoder(&b).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.AtomicWriteFile(path, []byte(b.String()), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError is a single invalid field.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors collects every invalid field.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

var validLogLevels = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}

// Validate checks the configuration and returns ValidateErrors if anything
// is wrong.
func (c *Config) Validate() error {
	var errs ValidateErrors

	if err := offline.ValidateEngineURL(c.Engine.URL, c.Engine.LocalOnly); err != nil {
		errs = append(errs, ValidationError{"engine.url", err.Error()})
	}
	if strings.TrimSpace(c.Engine.Model) == "" {
		errs = append(errs, ValidationError{"engine.model", "must not be empty"})
	}
	if c.Chat.Temperature < 0 || c.Chat.Temperature > 2 {
		errs = append(errs, ValidationError{"chat.temperature", "must be between 0 and 2"})
	}
	if c.Chat.MaxTokens < 1 {
		errs = append(errs, ValidationError{"chat.max_tokens", "must be positive"})
	}
	if c.UI.GuidanceDelayMs < 0 {
		errs = append(errs, ValidationError{"ui.guidance_delay_ms", "must not be negative"})
	}
	if c.UI.NotReadyDelayMs < 0 {
		errs = append(errs, ValidationError{"ui.not_ready_delay_ms", "must not be negative"})
	}
	if !validLogLevels[strings.ToLower(c.Log.Level)] {
		errs = append(errs, ValidationError{"log.level", "must be one of debug, info, warn, error"})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// IsValidationError reports whether err came from Validate.
func IsValidationError(err error) bool {
	var v ValidateErrors
	return errors.As(err, &v)
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides.
//
// Supported environment variables:
//   - QUBI_MODEL: engine.model
//   - QUBI_ENGINE_URL: engine.url
//   - QUBI_SYSTEM_PROMPT: chat.system_prompt
//   - QUBI_TEMPERATURE: chat.temperature
//   - QUBI_LOG_LEVEL: log.level
//   - QUBI_DATA_DIR: storage.data_dir
func (c *Config) ApplyEnvOverrides() {
	if model := os.Getenv("QUBI_MODEL"); model != "" {
		c.Engine.Model = model
	}
	if u := os.Getenv("QUBI_ENGINE_URL"); u != "" {
		c.Engine.URL = u
	}
	if prompt := os.Getenv("QUBI_SYSTEM_PROMPT"); prompt != "" {
		c.Chat.SystemPrompt = prompt
	}
	if temp := os.Getenv("QUBI_TEMPERATURE"); temp != "" {
		if f, err := strconv.ParseFloat(temp, 64); err == nil {
			c.Chat.Temperature = f
		}
	}
	if level := os.Getenv("QUBI_LOG_LEVEL"); level != "" {
		c.Log.Level = level
	}
	if dir := os.Getenv("QUBI_DATA_DIR"); dir != "" {
		c.Storage.DataDir = dir
	}
}
