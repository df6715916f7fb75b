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

// Package pipeline wires one message through the whole scoring path:
// header normalisation, content extraction, URL harvest, evaluation and
// verdict delivery.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/phishguard/scoring/internal/content"
	"github.com/phishguard/scoring/internal/evaluator"
	"github.com/phishguard/scoring/internal/gmail"
	"github.com/phishguard/scoring/internal/headers"
	"github.com/phishguard/scoring/internal/models"
	"github.com/phishguard/scoring/internal/redirect"
	"github.com/phishguard/scoring/internal/urls"
)

// Sink receives sealed records for delivery.
type Sink interface {
	Publish(ctx context.Context, rec *models.Record) error
}

// Pipeline turns one raw provider message into a delivered verdict.
type Pipeline struct {
	normalizer *headers.Normalizer
	aggregator *evaluator.Aggregator
	sink       Sink

	// Redirect tracing is optional and only chases known shortener
	// hosts; a headless browser per URL is too expensive for everything.
	tracer     redirect.Tracer
	shorteners []string
}

// New creates a pipeline. tracer may be nil to disable redirect tracing.
func New(normalizer *headers.Normalizer, aggregator *evaluator.Aggregator, sink Sink, tracer redirect.Tracer, shorteners []string) *Pipeline {
	return &Pipeline{
		normalizer: normalizer,
		aggregator: aggregator,
		sink:       sink,
		tracer:     tracer,
		shorteners: shorteners,
	}
}

// Process scores a single message and delivers its verdict.
func (p *Pipeline) Process(ctx context.Context, raw *gmail.RawMessage) (*models.Record, error) {
	rec := p.normalizer.Normalize(raw.HeaderPairs())
	rec.ProviderID = raw.ProviderID()

	arena := raw.Arena()
	rec.Payload = arena

	extracted := content.Extract(arena)
	rec.Body = extracted.Body
	rec.Attachments = extracted.Attachments

	sets := [][]string{urls.Harvest(rec.Body)}
	for _, markup := range extracted.HTMLParts {
		anchors, err := urls.HarvestHTML(markup)
		if err != nil {
			slog.Warn("html part not parseable, anchors skipped",
				"provider_id", rec.ProviderID,
				"error", err,
			)
			continue
		}
		sets = append(sets, anchors)
	}
	merged := urls.Merge(sets...)

	if p.tracer != nil {
		merged = urls.Merge(merged, p.traceShorteners(ctx, rec.ProviderID, merged))
	}

	rec.URLs = merged
	rec.Origins = urls.Origins(merged)

	if err := p.aggregator.Run(ctx, rec); err != nil {
		return nil, fmt.Errorf("evaluate %s: %w", rec.ProviderID, err)
	}

	if err := p.sink.Publish(ctx, rec); err != nil {
		return nil, fmt.Errorf("deliver verdict for %s: %w", rec.ProviderID, err)
	}

	return rec, nil
}

// traceShorteners follows redirect chains for URLs on shortener hosts
// and returns every hop so the harvested set covers the true landing
// page. Trace failures degrade to the original URL.
func (p *Pipeline) traceShorteners(ctx context.Context, id models.ProviderID, urlList []string) []string {
	var hops []string
	for _, u := range urlList {
		if !p.isShortener(u) {
			continue
		}
		chain, _, err := p.tracer.Trace(ctx, u)
		if err != nil {
			slog.Warn("redirect trace failed",
				"provider_id", id,
				"url", u,
				"error", err,
			)
			continue
		}
		hops = append(hops, chain...)
	}
	return hops
}

func (p *Pipeline) isShortener(rawURL string) bool {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	host := strings.ToLower(parsed.Hostname())
	for _, s := range p.shorteners {
		if host == s || strings.HasSuffix(host, "."+s) {
			return true
		}
	}
	return false
}
