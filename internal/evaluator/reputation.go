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

package evaluator

import (
	"context"
	"log/slog"

	"github.com/phishguard/scoring/internal/models"
)

// reputationScore is contributed once when any origin is known malicious.
const reputationScore = 50

// ThreatSource is the narrow view of the threat-feed collaborator the
// reputation evaluator needs. A nil threat means no signal.
type ThreatSource interface {
	Query(ctx context.Context, origin string) (status, threatType string, err error)
}

// Reputation queries the threat feed once per distinct origin. The first
// origin reporting a non-null status short-circuits with a fixed
// contribution and records the threat on the record. Network failures and
// timeouts are no-signal, never fatal.
type Reputation struct {
	source ThreatSource
}

// NewReputation creates the URL-reputation evaluator.
func NewReputation(source ThreatSource) *Reputation {
	return &Reputation{source: source}
}

func (r *Reputation) Name() string { return "reputation" }

func (r *Reputation) Evaluate(ctx context.Context, rec *models.Record) (int, bool) {
	if r.source == nil {
		return 0, true
	}

	for _, origin := range rec.Origins {
		status, threatType, err := r.source.Query(ctx, origin)
		if err != nil {
			slog.Warn("threat feed query failed, treating as no signal",
				"origin", origin,
				"error", err,
			)
			continue
		}
		if status == "" {
			continue
		}
		rec.ThreatStatus = status
		rec.ThreatType = threatType
		return reputationScore, false
	}
	return 0, true
}
