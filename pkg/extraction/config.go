package extraction

import (
	"time"

	"github.com/mediscanner/api/pkg/common/config"
)

// Config holds the model endpoint settings. It is read once at startup and
// passed to NewClient.
type Config struct {
	Model       string
	APIKey      string
	BaseURL     string
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
}

func ConfigFrom(cfg *config.Config) Config {
	return Config{
		Model:       cfg.AIModel,
		APIKey:      cfg.AIAPIKey,
		BaseURL:     cfg.AIAPIBase,
		MaxTokens:   cfg.AIMaxTokens,
		Temperature: cfg.AITemperature,
		Timeout:     cfg.AITimeout,
	}
}

func (c Config) withDefaults() Config {
	if c.MaxTokens <= 0 {
		c.MaxTokens = 2000
	}
	if c.Timeout <= 0 {
		c.Timeout = 60 * time.Second
	}
	return c
}
