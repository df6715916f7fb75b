// Copyright (c) 2026 John Earle
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package threatfeed answers URL-reputation queries. A query consults the
// locally mirrored known-malicious list first and falls back to the remote
// feed API when one is configured. Every network failure degrades to
// no-signal: reputation is an enrichment, never a hard dependency.
package threatfeed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultTimeout bounds a single remote reputation lookup.
const DefaultTimeout = 15 * time.Second

// Client queries URL reputation by origin.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string // empty = no-auth mode
	timeout    time.Duration
	known      map[string]bool // local mirror, keyed by lowercased entry
}

// ClientConfig holds the client dependencies. BaseURL may be empty, in
// which case only the local list is consulted.
type ClientConfig struct {
	HTTPClient *http.Client
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	KnownURLs  []string
}

// NewClient creates a threat-feed client.
func NewClient(cfg ClientConfig) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	known := make(map[string]bool, len(cfg.KnownURLs))
	for _, u := range cfg.KnownURLs {
		u = strings.ToLower(strings.TrimSpace(u))
		if u != "" {
			known[u] = true
		}
	}
	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		timeout:    timeout,
		known:      known,
	}
}

// feedResponse mirrors the feed API's lookup response.
type feedResponse struct {
	QueryStatus string `json:"query_status"`
	URLStatus   string `json:"url_status"`
	Threat      string `json:"threat"`
}

// Query looks up one origin. An empty status means no signal. The error
// return exists so callers can log the degradation; a non-nil error always
// comes with an empty status.
func (c *Client) Query(ctx context.Context, origin string) (status, threatType string, err error) {
	key := strings.ToLower(origin)
	if c.known[key] || c.known[strings.TrimSuffix(key, "/")] {
		return "known", "blacklisted_url", nil
	}

	if c.baseURL == "" {
		return "", "", nil
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	form := url.Values{}
	form.Set("url", origin)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/url/", strings.NewReader(form.Encode()))
	if err != nil {
		return "", "", fmt.Errorf("build reputation request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if c.apiKey != "" {
		req.Header.Set("Auth-Key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("reputation lookup: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", "", fmt.Errorf("reputation lookup returned HTTP %d", resp.StatusCode)
	}

	var fr feedResponse
	if err := json.NewDecoder(resp.Body).Decode(&fr); err != nil {
		return "", "", fmt.Errorf("decode reputation response: %w", err)
	}

	if fr.QueryStatus != "ok" || fr.URLStatus == "" {
		return "", "", nil
	}
	return fr.URLStatus, fr.Threat, nil
}
