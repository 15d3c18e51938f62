// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, DefaultModelID, cfg.Engine.Model)
	assert.Equal(t, 0.7, cfg.Chat.Temperature)
	assert.Equal(t, 1000, cfg.Chat.MaxTokens)
	assert.Equal(t, 1500*time.Millisecond, cfg.GuidanceDelay())
	assert.Equal(t, 500*time.Millisecond, cfg.NotReadyDelay())
}

func TestLoadFromPath_TOMLPartialFillsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[engine]
model = "llama3.2:1b"

[chat]
temperature = 0.2
`), 0600))

	cfg, err := LoadFromPath(path)
	require.NoError(t, err)

	assert.Equal(t, "llama3.2:1b", cfg.Engine.Model)
	assert.Equal(t, DefaultEngineURL, cfg.Engine.URL)
	assert.Equal(t, 0.2, cfg.Chat.Temperature)
	assert.Equal(t, DefaultMaxTokens, cfg.Chat.MaxTokens)
	assert.Equal(t, DefaultSystemPrompt, cfg.Chat.SystemPrompt)
}

func TestLoadFromPath_JSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"engine":{"url":"http://10.0.0.2:11434","local_only":false}}`), 0600))

	cfg, err := LoadFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, "http://10.0.0.2:11434", cfg.Engine.URL)
}

func TestLoadFromPath_RemoteEngineNeedsOptIn(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"engine":{"url":"http://10.0.0.2:11434"}}`), 0600))

	_, err := LoadFromPath(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "engine.url")
	assert.Contains(t, err.Error(), "this machine")
}

func TestLoadFromPath_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[engine]
url = "not a url"

[chat]
temperature = 5.0
`), 0600))

	_, err := LoadFromPath(path)
	require.Error(t, err)
	assert.True(t, IsValidationError(err))
	assert.Contains(t, err.Error(), "engine.url")
	assert.Contains(t, err.Error(), "chat.temperature")
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("QUBI_MODEL", "phi3:mini")
	t.Setenv("QUBI_ENGINE_URL", "http://127.0.0.1:9999")
	t.Setenv("QUBI_TEMPERATURE", "0.1")
	t.Setenv("QUBI_LOG_LEVEL", "debug")
	t.Setenv("QUBI_DATA_DIR", "/tmp/qubi-test")

	cfg := Default()
	cfg.ApplyEnvOverrides()

	assert.Equal(t, "phi3:mini", cfg.Engine.Model)
	assert.Equal(t, "http://127.0.0.1:9999", cfg.Engine.URL)
	assert.Equal(t, 0.1, cfg.Chat.Temperature)
	assert.Equal(t, "debug", cfg.Log.Level)

	dir, err := cfg.DataDir()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/qubi-test", dir)

	logPath, err := cfg.LogPath()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/tmp/qubi-test", "qubi.log"), logPath)
}

func TestSaveTOML_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	cfg := Default()
	cfg.Engine.Model = "qwen2.5:0.5b"
	cfg.UI.GuidanceDelayMs = 10

	require.NoError(t, SaveTOML(cfg, path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	if os.PathSeparator == '/' {
		assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
	}

	loaded, err := LoadFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, "qwen2.5:0.5b", loaded.Engine.Model)
	assert.Equal(t, 10, loaded.UI.GuidanceDelayMs)
}
