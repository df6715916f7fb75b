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

// Package publish delivers sealed verdicts: tier label on the mailbox
// message, JSON document on the Redis viewer queue, row in Postgres.
// Label application is best-effort; queue and store failures are real
// errors because downstream consumers depend on them.
package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/phishguard/scoring/internal/models"
)

// queueClient is the slice of the Redis client the publisher uses.
type queueClient interface {
	LPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	Ping(ctx context.Context) *redis.StatusCmd
}

// LabelService resolves tier label names and applies them to messages.
// The mail-provider client satisfies this through its label resolver.
type LabelService interface {
	GetOrCreate(ctx context.Context, name string) (string, error)
	Apply(ctx context.Context, id models.ProviderID, labelID string) error
}

// VerdictStore persists sealed verdicts.
type VerdictStore interface {
	Save(ctx context.Context, rec *models.Record) error
}

// Publisher fans a sealed record out to the mailbox, the viewer queue
// and the verdict store.
type Publisher struct {
	rdb       queueClient
	queueName string
	labels    LabelService
	store     VerdictStore
	tierNames map[models.Tier]string
}

// NewPublisher creates a publisher. labels and store may be nil, in
// which case those deliveries are skipped (useful for dry runs).
func NewPublisher(rdb queueClient, queueName string, labels LabelService, store VerdictStore, tierNames map[models.Tier]string) *Publisher {
	return &Publisher{
		rdb:       rdb,
		queueName: queueName,
		labels:    labels,
		store:     store,
		tierNames: tierNames,
	}
}

// verdictDoc is the JSON document the viewer UI reads off the queue.
type verdictDoc struct {
	ID           string            `json:"id"`
	ProviderID   string            `json:"provider_id"`
	MessageID    string            `json:"message_id"`
	From         string            `json:"from"`
	Subject      string            `json:"subject"`
	Date         string            `json:"date"`
	Score        int               `json:"score"`
	Tier         string            `json:"tier"`
	ThreatStatus string            `json:"threat_status,omitempty"`
	ThreatType   string            `json:"threat_type,omitempty"`
	Statuses     map[string]string `json:"statuses"`
	URLs         []string          `json:"urls,omitempty"`
	Origins      []string          `json:"origins,omitempty"`
	PublishedAt  string            `json:"published_at"`
}

// Publish delivers a sealed record. The record is always forwarded to
// the queue and the store even when labeling fails; a mailbox hiccup
// must not lose a verdict.
func (p *Publisher) Publish(ctx context.Context, rec *models.Record) error {
	if !rec.Sealed() {
		return fmt.Errorf("refusing to publish unsealed record %s", rec.ProviderID)
	}

	if p.labels != nil {
		if err := p.applyTierLabel(ctx, rec); err != nil {
			slog.Error("tier label not applied",
				"provider_id", rec.ProviderID,
				"tier", rec.Tier,
				"error", err,
			)
		}
	}

	doc := verdictDoc{
		ID:           uuid.New().String(),
		ProviderID:   string(rec.ProviderID),
		MessageID:    rec.MessageID.Sanitize(),
		From:         rec.From,
		Subject:      rec.Subject,
		Date:         rec.Date,
		Score:        rec.Score,
		Tier:         string(rec.Tier),
		ThreatStatus: rec.ThreatStatus,
		ThreatType:   rec.ThreatType,
		Statuses:     rec.Statuses,
		URLs:         rec.URLs,
		Origins:      rec.Origins,
		PublishedAt:  time.Now().UTC().Format(time.RFC3339),
	}

	docJSON, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal verdict document: %w", err)
	}

	if err := p.rdb.LPush(ctx, p.queueName, string(docJSON)).Err(); err != nil {
		return fmt.Errorf("redis LPUSH: %w", err)
	}

	if p.store != nil {
		if err := p.store.Save(ctx, rec); err != nil {
			return fmt.Errorf("persist verdict: %w", err)
		}
	}

	slog.Info("published verdict",
		"provider_id", rec.ProviderID,
		"message_id", rec.MessageID,
		"score", rec.Score,
		"tier", rec.Tier,
		"queue", p.queueName,
	)

	return nil
}

func (p *Publisher) applyTierLabel(ctx context.Context, rec *models.Record) error {
	if rec.ProviderID == "" {
		return fmt.Errorf("record has no provider ID, label skipped")
	}
	name, ok := p.tierNames[rec.Tier]
	if !ok || name == "" {
		return fmt.Errorf("no label configured for tier %q", rec.Tier)
	}
	labelID, err := p.labels.GetOrCreate(ctx, name)
	if err != nil {
		return fmt.Errorf("resolve label %q: %w", name, err)
	}
	if err := p.labels.Apply(ctx, rec.ProviderID, labelID); err != nil {
		return fmt.Errorf("apply label %q: %w", name, err)
	}
	return nil
}

// Ping checks the Redis connection.
func (p *Publisher) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return p.rdb.Ping(ctx).Err()
}
