package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-resty/resty/v2"
)

// Client is a chat completion client. Safe for concurrent use.
type Client struct {
	config *Config
	client *resty.Client
}

// NewClient creates a new LLM client with the given configuration
func NewClient(config *Config) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	client := resty.New().
		SetBaseURL(strings.TrimRight(config.APIURL, "/")).
		SetTimeout(config.Timeout).
		SetHeaders(config.Headers())

	return &Client{config: config, client: client}, nil
}

// ChatCompletion sends messages, prepending systemPrompt when it is not empty.
func (c *Client) ChatCompletion(ctx context.Context, systemPrompt string, messages []Message) (*ChatResponse, error) {
	if systemPrompt != "" {
		messages = append([]Message{{Role: "system", Content: systemPrompt}}, messages...)
	}

	request := ChatRequest{
		Model:       c.config.Model,
		Messages:    messages,
		MaxTokens:   c.config.MaxTokens,
		Temperature: c.config.Temperature,
	}

	var result ChatResponse
	var apiErr errorEnvelope
	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(request).
		SetResult(&result).
		SetError(&apiErr).
		Post("/chat/completions")
	if err != nil {
		return nil, fmt.Errorf("chat completion failed: %w", err)
	}

	if resp.IsError() {
		if apiErr.Error != nil && apiErr.Error.Message != "" {
			return nil, apiErr.Error
		}
		return nil, fmt.Errorf("chat completion failed with status %d: %s", resp.StatusCode(), resp.String())
	}
	if result.Error != nil && result.Error.Message != "" {
		return nil, result.Error
	}
	return &result, nil
}

// SimpleChat sends a single user prompt and returns the first choice's content
func (c *Client) SimpleChat(ctx context.Context, prompt string, systemPrompt string) (string, error) {
	response, err := c.ChatCompletion(ctx, systemPrompt, []Message{{Role: "user", Content: prompt}})
	if err != nil {
		return "", err
	}
	if len(response.Choices) == 0 {
		return "", fmt.Errorf("no choices in response")
	}
	return response.Choices[0].Message.Content, nil
}

// Model returns the configured model name
func (c *Client) Model() string {
	return c.config.Model
}
