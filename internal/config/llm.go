package config

import "time"

// LLMConfig configures the model session.
type LLMConfig struct {
	Provider string `yaml:"provider"` // gemini
	APIKey   string `yaml:"api_key"`
	Model    string `yaml:"model"`
	Timeout  string `yaml:"timeout"`

	// SystemPromptPath points at a prompt file that is watched for changes.
	// Empty means the built-in prompt.
	SystemPromptPath string `yaml:"system_prompt_path"`

	Temperature float32 `yaml:"temperature"`
}

// GetLLMTimeout returns the per-turn model timeout as a duration.
func (c *Config) GetLLMTimeout() time.Duration {
	return parseDuration(c.LLM.Timeout, 60*time.Second)
}
