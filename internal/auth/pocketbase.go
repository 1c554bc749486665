package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const apiKeysCollection = "/api/collections/api_keys/records"

// PocketBaseValidator looks keys up in the api_keys collection of a PocketBase server.
type PocketBaseValidator struct {
	client *resty.Client
}

func NewPocketBaseValidator(baseURL, serverKey string, timeout time.Duration) *PocketBaseValidator {
	client := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(timeout).
		SetHeader("x_server_key", serverKey)
	return &PocketBaseValidator{client: client}
}

type recordList struct {
	TotalItems int              `json:"totalItems"`
	Items      []map[string]any `json:"items"`
}

func (v *PocketBaseValidator) Validate(ctx context.Context, key string) (bool, error) {
	if key == "" || strings.ContainsAny(key, `'\`) {
		return false, nil
	}

	var result recordList
	resp, err := v.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"filter":  fmt.Sprintf("key='%s' && enabled=true", key),
			"perPage": "1",
		}).
		SetResult(&result).
		Get(apiKeysCollection)
	if err != nil {
		return false, fmt.Errorf("api key lookup failed: %w", err)
	}
	if resp.IsError() {
		return false, fmt.Errorf("api key lookup failed: status %d", resp.StatusCode())
	}
	return result.TotalItems > 0 || len(result.Items) > 0, nil
}
