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

package threatfeed

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
)

// Refresher keeps the local known-malicious list in sync with a published
// blacklist. The payload is hashed and the list file rewritten only when
// the content actually changed, so repeated runs are cheap and the mtime
// stays meaningful.
type Refresher struct {
	httpClient *http.Client
	feedURL    string
	listPath   string
	hashPath   string
}

// NewRefresher creates a list refresher.
func NewRefresher(httpClient *http.Client, feedURL, listPath, hashPath string) *Refresher {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Refresher{
		httpClient: httpClient,
		feedURL:    feedURL,
		listPath:   listPath,
		hashPath:   hashPath,
	}
}

// Refresh fetches the published list and updates the local mirror if its
// content hash changed. Returns whether an update was written.
func (r *Refresher) Refresh(ctx context.Context) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.feedURL, nil)
	if err != nil {
		return false, fmt.Errorf("build feed request: %w", err)
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("fetch feed list: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("feed list returned HTTP %d", resp.StatusCode)
	}

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return false, fmt.Errorf("read feed list: %w", err)
	}

	sum := sha256.Sum256(payload)
	currentHash := hex.EncodeToString(sum[:])

	previousHash := ""
	if data, err := os.ReadFile(r.hashPath); err == nil {
		previousHash = strings.TrimSpace(string(data))
	}

	if currentHash == previousHash {
		slog.Debug("feed list unchanged", "url", r.feedURL)
		return false, nil
	}

	if err := os.WriteFile(r.listPath, payload, 0o644); err != nil {
		return false, fmt.Errorf("write feed list: %w", err)
	}
	if err := os.WriteFile(r.hashPath, []byte(currentHash), 0o644); err != nil {
		return false, fmt.Errorf("write feed hash: %w", err)
	}

	slog.Info("feed list updated",
		"url", r.feedURL,
		"path", r.listPath,
		"bytes", len(payload),
	)
	return true, nil
}
