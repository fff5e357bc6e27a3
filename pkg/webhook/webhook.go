// Package webhook publishes engine notifications (new scanner alerts) to an
// operator-configured HTTP endpoint with bearer auth and a signing key
// header, so downstream systems can react without polling the REST API.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

type Config struct {
	URL        string        `split_words:"true"`
	Token      string        `split_words:"true"`
	SigningKey string        `split_words:"true"`
	Timeout    time.Duration `split_words:"true" default:"10s"`
}

type Client struct {
	endpoint   string
	token      string
	signingKey string
	httpClient *http.Client
}

// NewClient returns nil without error when no URL is configured; callers
// treat a nil client as "notifications disabled".
func NewClient(cfg Config) (*Client, error) {
	endpoint := strings.TrimSpace(cfg.URL)
	if endpoint == "" {
		return nil, nil
	}

	if _, err := url.ParseRequestURI(endpoint); err != nil {
		return nil, fmt.Errorf("invalid webhook url: %w", err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Client{
		endpoint:   strings.TrimRight(endpoint, "/"),
		token:      strings.TrimSpace(cfg.Token),
		signingKey: strings.TrimSpace(cfg.SigningKey),
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

// Publish posts one JSON payload to the configured endpoint.
func (c *Client) Publish(ctx context.Context, kind string, payload any) error {
	if c == nil {
		return nil
	}

	body, err := json.Marshal(map[string]any{"kind": kind, "payload": payload})
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if c.signingKey != "" {
		req.Header.Set("X-Signing-Key", c.signingKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute webhook request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return errors.New("webhook endpoint returned " + resp.Status)
	}
	return nil
}
