package advice

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrMissingCredential is returned by generators built without an API key.
var ErrMissingCredential = errors.New("generation api key is missing")

// Generator turns a prompt into free text.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// ClientConfig carries the fixed sampling parameters of a provider client.
type ClientConfig struct {
	APIKey          string
	BaseURL         string
	Model           string
	Timeout         time.Duration
	// Temperature nil means the provider default below; zero is sent as zero.
	Temperature     *float64
	MaxOutputTokens int
}

const (
	defaultMaxTokens   = 800
	defaultTemperature = 0.7
	defaultTimeout     = 30 * time.Second
)

func (c ClientConfig) withDefaults() ClientConfig {
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.MaxOutputTokens <= 0 {
		c.MaxOutputTokens = defaultMaxTokens
	}
	if c.Temperature == nil {
		t := defaultTemperature
		c.Temperature = &t
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
	return c
}

// Float returns a pointer to v, for ClientConfig.Temperature.
func Float(v float64) *float64 { return &v }

func (c ClientConfig) hasKey() bool {
	return strings.TrimSpace(c.APIKey) != ""
}

// NewGenerator picks the client for provider ("gemini" or "groq").
func NewGenerator(provider string, cfg ClientConfig) (Generator, error) {
	switch strings.ToLower(provider) {
	case "", "gemini":
		return NewGeminiClient(cfg), nil
	case "groq":
		return NewGroqClient(cfg), nil
	default:
		return nil, fmt.Errorf("unknown advice provider %q", provider)
	}
}
