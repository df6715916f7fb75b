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

// Package store persists scored verdicts in Postgres. Each provider
// message gets at most one row; re-scoring the same message overwrites
// the previous verdict.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/phishguard/scoring/internal/models"
)

// Verdict is a sealed scoring outcome persisted in Postgres.
type Verdict struct {
	ID           int64
	ProviderID   string
	RFCMessageID string
	FromAddr     string
	Subject      string
	Score        int
	Tier         string
	ThreatStatus string
	ThreatType   string
	Statuses     map[string]string
	ScoredAt     time.Time
}

// Store provides verdict persistence backed by a Postgres pool.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a verdict store and ensures the schema exists.
func NewStore(ctx context.Context, pool *pgxpool.Pool) (*Store, error) {
	s := &Store{pool: pool}
	if err := s.ensureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure verdict schema: %w", err)
	}
	slog.Info("verdict store initialised")
	return s, nil
}

func (s *Store) ensureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS verdicts (
			id             BIGSERIAL PRIMARY KEY,
			provider_id    TEXT NOT NULL UNIQUE,
			rfc_message_id TEXT DEFAULT '',
			from_addr      TEXT DEFAULT '',
			subject        TEXT DEFAULT '',
			score          INT NOT NULL,
			tier           TEXT NOT NULL,
			threat_status  TEXT DEFAULT '',
			threat_type    TEXT DEFAULT '',
			statuses       JSONB DEFAULT '{}',
			scored_at      TIMESTAMPTZ DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_verdicts_tier ON verdicts(tier);
		CREATE INDEX IF NOT EXISTS idx_verdicts_scored ON verdicts(scored_at);
	`)
	return err
}

// Save upserts the verdict for a scored record, keyed on provider ID.
func (s *Store) Save(ctx context.Context, rec *models.Record) error {
	if !rec.Sealed() {
		return fmt.Errorf("refusing to persist unsealed record %s", rec.ProviderID)
	}

	statuses, err := json.Marshal(rec.Statuses)
	if err != nil {
		return fmt.Errorf("marshal statuses: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO verdicts
			(provider_id, rfc_message_id, from_addr, subject, score, tier,
			 threat_status, threat_type, statuses, scored_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
		ON CONFLICT (provider_id) DO UPDATE SET
			rfc_message_id = EXCLUDED.rfc_message_id,
			from_addr      = EXCLUDED.from_addr,
			subject        = EXCLUDED.subject,
			score          = EXCLUDED.score,
			tier           = EXCLUDED.tier,
			threat_status  = EXCLUDED.threat_status,
			threat_type    = EXCLUDED.threat_type,
			statuses       = EXCLUDED.statuses,
			scored_at      = NOW()
	`, string(rec.ProviderID), rec.MessageID.Sanitize(), rec.From, rec.Subject,
		rec.Score, string(rec.Tier), rec.ThreatStatus, rec.ThreatType, statuses)
	if err != nil {
		return fmt.Errorf("upsert verdict: %w", err)
	}
	return nil
}

// Get retrieves the verdict for a provider message ID, or nil when the
// message has not been scored.
func (s *Store) Get(ctx context.Context, providerID models.ProviderID) (*Verdict, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, provider_id, rfc_message_id, from_addr, subject, score,
		       tier, threat_status, threat_type, statuses, scored_at
		FROM verdicts
		WHERE provider_id = $1
	`, string(providerID))
	return scanVerdict(row)
}

// ListRecent returns the most recently scored verdicts, newest first.
func (s *Store) ListRecent(ctx context.Context, limit int) ([]Verdict, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, provider_id, rfc_message_id, from_addr, subject, score,
		       tier, threat_status, threat_type, statuses, scored_at
		FROM verdicts
		ORDER BY scored_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectVerdicts(rows)
}

// ListByTier returns verdicts in the given tier, newest first.
func (s *Store) ListByTier(ctx context.Context, tier models.Tier, limit int) ([]Verdict, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, provider_id, rfc_message_id, from_addr, subject, score,
		       tier, threat_status, threat_type, statuses, scored_at
		FROM verdicts
		WHERE tier = $1
		ORDER BY scored_at DESC
		LIMIT $2
	`, string(tier), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectVerdicts(rows)
}

// scanVerdict scans a single row into a Verdict.
func scanVerdict(row pgx.Row) (*Verdict, error) {
	var v Verdict
	var statuses []byte
	err := row.Scan(
		&v.ID, &v.ProviderID, &v.RFCMessageID, &v.FromAddr, &v.Subject,
		&v.Score, &v.Tier, &v.ThreatStatus, &v.ThreatType, &statuses, &v.ScoredAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(statuses, &v.Statuses); err != nil {
		return nil, fmt.Errorf("decode statuses for %s: %w", v.ProviderID, err)
	}
	return &v, nil
}

// collectVerdicts scans multiple rows into a slice of Verdicts.
func collectVerdicts(rows pgx.Rows) ([]Verdict, error) {
	var verdicts []Verdict
	for rows.Next() {
		var v Verdict
		var statuses []byte
		if err := rows.Scan(
			&v.ID, &v.ProviderID, &v.RFCMessageID, &v.FromAddr, &v.Subject,
			&v.Score, &v.Tier, &v.ThreatStatus, &v.ThreatType, &statuses, &v.ScoredAt,
		); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(statuses, &v.Statuses); err != nil {
			return nil, fmt.Errorf("decode statuses for %s: %w", v.ProviderID, err)
		}
		verdicts = append(verdicts, v)
	}
	return verdicts, rows.Err()
}
