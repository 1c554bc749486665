package translator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// OpusMT talks to an inference server hosting Helsinki-NLP opus-mt models.
//
//	POST /models/<model>/load
//	POST /translate {"model": ..., "text": ...} -> {"translation_text": ...}
type OpusMT struct {
	client *resty.Client
}

func NewOpusMT(baseURL string, timeout time.Duration) *OpusMT {
	client := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json")
	return &OpusMT{client: client}
}

type opusTranslateRequest struct {
	Model string `json:"model"`
	Text  string `json:"text"`
}

type opusTranslateResponse struct {
	TranslationText string `json:"translation_text"`
}

type opusErrorResponse struct {
	Detail string `json:"detail"`
}

// Factory loads the pair's model on the server and returns a provider bound to it.
func (o *OpusMT) Factory() Factory {
	return func(ctx context.Context, pair Pair) (Provider, error) {
		model := pair.OpusMTModel()

		var apiErr opusErrorResponse
		resp, err := o.client.R().
			SetContext(ctx).
			SetError(&apiErr).
			Post("/models/" + model + "/load")
		if err != nil {
			return nil, fmt.Errorf("failed to load model %s: %w", model, err)
		}
		if resp.IsError() {
			return nil, fmt.Errorf("failed to load model %s: status %d %s", model, resp.StatusCode(), apiErr.Detail)
		}
		return &opusProvider{client: o.client, model: model}, nil
	}
}

type opusProvider struct {
	client *resty.Client
	model  string
}

func (p *opusProvider) Translate(ctx context.Context, text string) (string, error) {
	var result opusTranslateResponse
	var apiErr opusErrorResponse
	resp, err := p.client.R().
		SetContext(ctx).
		SetBody(opusTranslateRequest{Model: p.model, Text: text}).
		SetResult(&result).
		SetError(&apiErr).
		Post("/translate")
	if err != nil {
		return "", fmt.Errorf("opus-mt request failed: %w", err)
	}
	if resp.IsError() {
		if apiErr.Detail != "" {
			return "", fmt.Errorf("opus-mt error: %s", apiErr.Detail)
		}
		return "", fmt.Errorf("opus-mt error: status %d", resp.StatusCode())
	}
	return result.TranslationText, nil
}
