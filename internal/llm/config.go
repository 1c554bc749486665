package llm

import (
	"errors"
	"time"
)

// Config holds the configuration for the chat completion client.
// Any OpenAI-compatible provider works (OpenRouter, OpenAI, local gateways).
type Config struct {
	APIKey      string        `json:"api_key"`
	APIURL      string        `json:"api_url"`
	Model       string        `json:"model"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
	Timeout     time.Duration `json:"timeout"`
	// AppName is sent as X-Title, which OpenRouter shows in its dashboard
	AppName string `json:"app_name"`
}

// Validate reports every problem with the configuration at once.
func (c *Config) Validate() error {
	var errs []error
	if c.APIKey == "" {
		errs = append(errs, errors.New("API key is required"))
	}
	if c.APIURL == "" {
		errs = append(errs, errors.New("API URL is required"))
	}
	if c.Model == "" {
		errs = append(errs, errors.New("model is required"))
	}
	if c.MaxTokens < 1 {
		errs = append(errs, errors.New("max tokens must be greater than 0"))
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		errs = append(errs, errors.New("temperature must be between 0 and 2"))
	}
	if c.Timeout <= 0 {
		errs = append(errs, errors.New("timeout must be positive"))
	}
	return errors.Join(errs...)
}

func (c *Config) Headers() map[string]string {
	headers := map[string]string{
		"Authorization": "Bearer " + c.APIKey,
		"Content-Type":  "application/json",
	}
	if c.AppName != "" {
		headers["X-Title"] = c.AppName
	}
	return headers
}
