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

package gmail

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/phishguard/scoring/internal/models"
)

// Label is a mailbox label.
type Label struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type labelListResponse struct {
	Labels []Label `json:"labels"`
}

// ListLabels returns all labels in the mailbox.
func (c *Client) ListLabels(ctx context.Context) ([]Label, error) {
	var lr labelListResponse
	if err := c.getJSON(ctx, c.baseURL+"/labels", &lr); err != nil {
		return nil, fmt.Errorf("list labels: %w", err)
	}
	return lr.Labels, nil
}

// CreateLabel creates a user label visible in the label list.
func (c *Client) CreateLabel(ctx context.Context, name string) (Label, error) {
	payload, err := json.Marshal(map[string]string{
		"name":                  name,
		"labelListVisibility":   "labelShow",
		"messageListVisibility": "show",
	})
	if err != nil {
		return Label{}, fmt.Errorf("marshal label request: %w", err)
	}

	resp, err := c.do(ctx, http.MethodPost, c.baseURL+"/labels", payload, "application/json")
	if err != nil {
		return Label{}, fmt.Errorf("create label: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return Label{}, fmt.Errorf("label create returned HTTP %d: %s", resp.StatusCode, string(b))
	}

	var l Label
	if err := json.NewDecoder(resp.Body).Decode(&l); err != nil {
		return Label{}, fmt.Errorf("decode label response: %w", err)
	}
	return l, nil
}

// LabelResolver maps label names to IDs, creating missing labels on
// demand. Lookups are case-insensitive and cached for the process
// lifetime; labels are never deleted out from under a running scorer.
type LabelResolver struct {
	client *Client

	mu    sync.Mutex
	cache map[string]string // lowercased name -> id
}

// NewLabelResolver creates a resolver backed by the given client.
func NewLabelResolver(client *Client) *LabelResolver {
	return &LabelResolver{client: client, cache: make(map[string]string)}
}

// Apply attaches a label to a message.
func (r *LabelResolver) Apply(ctx context.Context, id models.ProviderID, labelID string) error {
	return r.client.ModifyLabels(ctx, id, []string{labelID}, nil)
}

// GetOrCreate returns the ID of the named label, creating it when the
// mailbox does not have it yet.
func (r *LabelResolver) GetOrCreate(ctx context.Context, name string) (string, error) {
	key := strings.ToLower(name)

	r.mu.Lock()
	defer r.mu.Unlock()

	if id, ok := r.cache[key]; ok {
		return id, nil
	}

	labels, err := r.client.ListLabels(ctx)
	if err != nil {
		return "", err
	}
	for _, l := range labels {
		r.cache[strings.ToLower(l.Name)] = l.ID
	}
	if id, ok := r.cache[key]; ok {
		return id, nil
	}

	created, err := r.client.CreateLabel(ctx, name)
	if err != nil {
		return "", err
	}
	slog.Info("created mailbox label", "name", name, "id", created.ID)
	r.cache[key] = created.ID
	return created.ID, nil
}
