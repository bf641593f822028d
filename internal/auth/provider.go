// SPDX-FileCopyrightText: 2026 Nextcloud GmbH and Nextcloud contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/rosstspeech/buffered/internal/constants"
)

// Provider fetches short-lived access tokens from the key endpoint.
// Realtime connections authenticate with a temporary token rather than
// the long-lived API key, so every connection epoch fetches a fresh
// one.
type Provider struct {
	endpoint   string
	apiKey     string
	ttlSeconds int
	httpClient *http.Client
	log        *slog.Logger
}

func NewProvider(endpoint, apiKey string) *Provider {
	return &Provider{
		endpoint:   endpoint,
		apiKey:     apiKey,
		ttlSeconds: constants.TokenTTLSeconds,
		httpClient: &http.Client{Timeout: constants.TokenFetchTimeout},
		log:        slog.With("component", "auth"),
	}
}

// Fetch requests a temporary realtime token. Non-success status codes
// and malformed bodies both fail the attempt; the caller decides
// whether to surface or retry on the next trigger.
func (p *Provider) Fetch(ctx context.Context) (string, error) {
	reqBody, err := json.Marshal(map[string]int{"ttl": p.ttlSeconds})
	if err != nil {
		return "", fmt.Errorf("marshal token request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(reqBody))
	if err != nil {
		return "", fmt.Errorf("creating token request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("executing token request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading token response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		p.log.Warn("token request failed", "status", resp.StatusCode, "body", string(body))
		return "", fmt.Errorf("token request failed with status %d", resp.StatusCode)
	}

	var tokenResp struct {
		KeyValue string `json:"key_value"`
	}
	if err := json.Unmarshal(body, &tokenResp); err != nil {
		return "", fmt.Errorf("parsing token response: %w", err)
	}
	if tokenResp.KeyValue == "" {
		return "", fmt.Errorf("token response missing key_value")
	}

	return tokenResp.KeyValue, nil
}
