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

// Package gmail is the mail-provider collaborator: message listing and
// fetch, label CRUD, and EML import over the Gmail REST API. The HTTP
// client carries the OAuth2 token; this package never touches token
// lifecycle itself.
package gmail

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/phishguard/scoring/internal/models"
)

// DefaultBaseURL is the Gmail REST endpoint for the authenticated user.
const DefaultBaseURL = "https://gmail.googleapis.com/gmail/v1/users/me"

const (
	maxRetries = 3
	retryDelay = 2 * time.Second
)

// Client talks to the Gmail REST API.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// NewClient creates a Gmail client. httpClient must already carry OAuth2
// credentials. An empty baseURL selects the production endpoint; tests
// point it at a local server.
func NewClient(httpClient *http.Client, baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{httpClient: httpClient, baseURL: baseURL}
}

// MessagePage is one page of a message listing.
type MessagePage struct {
	IDs           []models.ProviderID
	NextPageToken string
}

// listResponse mirrors the /messages list response.
type listResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
	NextPageToken string `json:"nextPageToken"`
}

// ListMessages returns a page of message IDs filtered by label IDs and an
// optional search query (e.g. "after:1700000000").
func (c *Client) ListMessages(ctx context.Context, labelIDs []string, query, pageToken string) (*MessagePage, error) {
	params := url.Values{}
	for _, l := range labelIDs {
		params.Add("labelIds", l)
	}
	if query != "" {
		params.Set("q", query)
	}
	if pageToken != "" {
		params.Set("pageToken", pageToken)
	}
	params.Set("maxResults", "50")

	var lr listResponse
	if err := c.getJSON(ctx, c.baseURL+"/messages?"+params.Encode(), &lr); err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}

	page := &MessagePage{NextPageToken: lr.NextPageToken}
	for _, m := range lr.Messages {
		page.IDs = append(page.IDs, models.ProviderID(m.ID))
	}
	return page, nil
}

// GetMessage fetches the full message, headers and part tree included.
// Returns nil, nil when the message no longer exists.
func (c *Client) GetMessage(ctx context.Context, id models.ProviderID) (*RawMessage, error) {
	reqURL := fmt.Sprintf("%s/messages/%s?format=full", c.baseURL, url.PathEscape(string(id)))

	resp, err := c.do(ctx, http.MethodGet, reqURL, nil, "")
	if err != nil {
		return nil, fmt.Errorf("fetch message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		slog.Warn("message not found (may have been deleted)", "provider_id", id)
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("message fetch returned HTTP %d for %s", resp.StatusCode, id)
	}

	raw, err := ParseMessage(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse message %s: %w", id, err)
	}
	return raw, nil
}

// ModifyLabels adds and removes labels on a message.
func (c *Client) ModifyLabels(ctx context.Context, id models.ProviderID, add, remove []string) error {
	body := map[string][]string{}
	if len(add) > 0 {
		body["addLabelIds"] = add
	}
	if len(remove) > 0 {
		body["removeLabelIds"] = remove
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal modify request: %w", err)
	}

	reqURL := fmt.Sprintf("%s/messages/%s/modify", c.baseURL, url.PathEscape(string(id)))
	resp, err := c.do(ctx, http.MethodPost, reqURL, payload, "application/json")
	if err != nil {
		return fmt.Errorf("modify labels: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("label modify returned HTTP %d: %s", resp.StatusCode, string(b))
	}
	return nil
}

// getJSON performs a GET and decodes the 200 response into out.
func (c *Client) getJSON(ctx context.Context, reqURL string, out interface{}) error {
	resp, err := c.do(ctx, http.MethodGet, reqURL, nil, "")
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("provider returned HTTP %d: %s", resp.StatusCode, string(b))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// do issues a request with bounded backoff-and-retry on rate limiting.
// HTTP 429 is the only retried status; everything else is returned to the
// caller as-is.
func (c *Client) do(ctx context.Context, method, reqURL string, body []byte, contentType string) (*http.Response, error) {
	var lastErr error

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			delay := retryDelay * time.Duration(attempt)
			slog.Warn("provider rate limited, backing off",
				"attempt", attempt,
				"delay", delay,
			)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, reqURL, reader)
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("Accept", "application/json")
		if contentType != "" {
			req.Header.Set("Content-Type", contentType)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode != http.StatusTooManyRequests {
			return resp, nil
		}
		resp.Body.Close()
		lastErr = fmt.Errorf("provider returned HTTP 429")
	}

	return nil, fmt.Errorf("rate limited after %d retries: %w", maxRetries, lastErr)
}
