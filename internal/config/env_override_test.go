package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvOverrides_LLM(t *testing.T) {
	t.Run("GEMINI_API_KEY sets key and provider", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("GEMINI_API_KEY", "g-key")

		cfg := &Config{}
		cfg.applyEnvOverrides()

		assert.Equal(t, "g-key", cfg.LLM.APIKey)
		assert.Equal(t, "gemini", cfg.LLM.Provider)
	})

	t.Run("CANVAS_MODEL overrides model", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("CANVAS_MODEL", "gemini-2.5-pro")

		cfg := DefaultConfig()
		cfg.applyEnvOverrides()

		assert.Equal(t, "gemini-2.5-pro", cfg.LLM.Model)
	})

	t.Run("CANVAS_SYSTEM_PROMPT overrides prompt path", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("CANVAS_SYSTEM_PROMPT", "/etc/canvasd/prompt.txt")

		cfg := DefaultConfig()
		cfg.applyEnvOverrides()

		assert.Equal(t, "/etc/canvasd/prompt.txt", cfg.LLM.SystemPromptPath)
	})

	t.Run("empty variables leave config alone", func(t *testing.T) {
		clearEnv(t)

		cfg := &Config{LLM: LLMConfig{APIKey: "from-file", Model: "m"}}
		cfg.applyEnvOverrides()

		assert.Equal(t, "from-file", cfg.LLM.APIKey)
		assert.Equal(t, "m", cfg.LLM.Model)
	})
}

func TestEnvOverrides_ImagesAndServer(t *testing.T) {
	clearEnv(t)
	t.Setenv("UNSPLASH_ACCESS_KEY", "u-key")
	t.Setenv("CANVAS_ADDR", "127.0.0.1:9000")

	cfg := DefaultConfig()
	cfg.applyEnvOverrides()

	assert.Equal(t, "u-key", cfg.Images.Unsplash.AccessKey)
	assert.Equal(t, "127.0.0.1:9000", cfg.Server.Addr)
}

func TestEnvOverrides_WinOverFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("GEMINI_API_KEY", "env-key")

	path := filepath.Join(t.TempDir(), "canvasd.yaml")
	require.NoError(t, os.WriteFile(path, []byte("llm:\n  api_key: file-key\n"), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "env-key", cfg.LLM.APIKey)
}
