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

package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/phishguard/scoring/internal/gmail"
	"github.com/phishguard/scoring/internal/models"
)

// MessageSource lists and fetches mailbox messages.
type MessageSource interface {
	ListMessages(ctx context.Context, labelIDs []string, query, pageToken string) (*gmail.MessagePage, error)
	GetMessage(ctx context.Context, id models.ProviderID) (*gmail.RawMessage, error)
}

// DedupFilter decides whether a message ID still needs scoring.
type DedupFilter interface {
	IsNew(ctx context.Context, id models.ProviderID) (bool, error)
}

// Poller periodically lists the inbox and feeds unseen messages into
// the pipeline.
type Poller struct {
	source   MessageSource
	filter   DedupFilter
	pipeline *Pipeline
	interval time.Duration
	lookback time.Duration
}

// NewPoller creates a poller. lookback defines how far back each poll
// window extends and should exceed interval so windows overlap; the
// dedup filter absorbs the overlap.
func NewPoller(source MessageSource, filter DedupFilter, pipeline *Pipeline, interval, lookback time.Duration) *Poller {
	return &Poller{
		source:   source,
		filter:   filter,
		pipeline: pipeline,
		interval: interval,
		lookback: lookback,
	}
}

// Run starts the polling loop. It blocks until the context is cancelled.
func (p *Poller) Run(ctx context.Context) {
	slog.Info("inbox poller starting",
		"interval", p.interval,
		"lookback", p.lookback,
	)

	// Do an initial poll immediately
	p.poll(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("inbox poller stopping")
			return
		case <-ticker.C:
			p.poll(ctx)
		}
	}
}

// poll lists the window and scores whatever the dedup filter lets through.
func (p *Poller) poll(ctx context.Context) {
	since := time.Now().UTC().Add(-p.lookback)
	query := fmt.Sprintf("after:%d", since.Unix())

	slog.Debug("polling inbox", "query", query)

	var scored, skipped int
	pageToken := ""
	for {
		page, err := p.source.ListMessages(ctx, []string{"INBOX"}, query, pageToken)
		if err != nil {
			slog.Error("inbox listing failed", "error", err)
			return
		}

		for _, id := range page.IDs {
			fresh, err := p.filter.IsNew(ctx, id)
			if err != nil {
				slog.Error("dedup check failed", "provider_id", id, "error", err)
				continue
			}
			if !fresh {
				skipped++
				continue
			}

			raw, err := p.source.GetMessage(ctx, id)
			if err != nil {
				slog.Error("message fetch failed", "provider_id", id, "error", err)
				continue
			}
			if raw == nil {
				continue
			}

			if _, err := p.pipeline.Process(ctx, raw); err != nil {
				slog.Error("message scoring failed", "provider_id", id, "error", err)
				continue
			}
			scored++
		}

		if page.NextPageToken == "" {
			break
		}
		pageToken = page.NextPageToken
	}

	if scored > 0 || skipped > 0 {
		slog.Info("poll window complete", "scored", scored, "already_seen", skipped)
	}
}
