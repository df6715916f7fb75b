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

// Package backfill scores historical mail by listing messages within a
// lookback window and running them through the same pipeline live mail
// takes.
package backfill

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/phishguard/scoring/internal/pipeline"
)

// Request defines the scope of a historical scoring run.
type Request struct {
	Since    time.Duration // lookback window (e.g. 720h = 30 days)
	LabelIDs []string      // mailbox labels to scan; defaults to INBOX
}

// Result summarises a completed backfill run.
type Result struct {
	Scored  int
	Skipped int
	Errors  int
	Pages   int
	Elapsed time.Duration
}

// Runner performs historical mailbox scoring.
type Runner struct {
	source    pipeline.MessageSource
	filter    pipeline.DedupFilter
	pipeline  *pipeline.Pipeline
	pageDelay time.Duration // delay between pages to avoid throttling
}

// RunnerConfig holds dependencies for the backfill runner.
type RunnerConfig struct {
	Source    pipeline.MessageSource
	Filter    pipeline.DedupFilter
	Pipeline  *pipeline.Pipeline
	PageDelay time.Duration
}

// NewRunner creates a backfill runner.
func NewRunner(cfg RunnerConfig) *Runner {
	delay := cfg.PageDelay
	if delay == 0 {
		delay = 500 * time.Millisecond
	}
	return &Runner{
		source:    cfg.Source,
		filter:    cfg.Filter,
		pipeline:  cfg.Pipeline,
		pageDelay: delay,
	}
}

// Run scores every unseen message in the lookback window.
func (r *Runner) Run(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()
	since := time.Now().UTC().Add(-req.Since)
	query := fmt.Sprintf("after:%d", since.Unix())

	labels := req.LabelIDs
	if len(labels) == 0 {
		labels = []string{"INBOX"}
	}

	slog.Info("starting historical backfill",
		"since", since.Format(time.RFC3339),
		"labels", labels,
	)

	result := &Result{}

	pageToken := ""
	for {
		// Rate limit between pages
		if result.Pages > 0 {
			select {
			case <-ctx.Done():
				return result, ctx.Err()
			case <-time.After(r.pageDelay):
			}
		}

		page, err := r.source.ListMessages(ctx, labels, query, pageToken)
		if err != nil {
			return result, fmt.Errorf("fetch page %d: %w", result.Pages, err)
		}
		result.Pages++

		slog.Debug("backfill page fetched",
			"page", result.Pages,
			"messages", len(page.IDs),
		)

		for _, id := range page.IDs {
			if r.filter != nil {
				fresh, err := r.filter.IsNew(ctx, id)
				if err != nil {
					slog.Warn("dedup check failed", "error", err)
				} else if !fresh {
					result.Skipped++
					continue
				}
			}

			raw, err := r.source.GetMessage(ctx, id)
			if err != nil {
				slog.Warn("backfill: message fetch failed",
					"provider_id", id,
					"error", err,
				)
				result.Errors++
				continue
			}
			if raw == nil {
				result.Skipped++
				continue
			}

			if _, err := r.pipeline.Process(ctx, raw); err != nil {
				slog.Warn("backfill: scoring failed",
					"provider_id", id,
					"error", err,
				)
				result.Errors++
				continue
			}

			result.Scored++
		}

		if page.NextPageToken == "" {
			break
		}
		pageToken = page.NextPageToken
	}

	result.Elapsed = time.Since(start)

	slog.Info("historical backfill complete",
		"scored", result.Scored,
		"skipped", result.Skipped,
		"errors", result.Errors,
		"pages", result.Pages,
		"elapsed", result.Elapsed,
	)

	return result, nil
}
