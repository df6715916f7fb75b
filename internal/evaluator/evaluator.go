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

// Package evaluator holds the independent risk evaluators and the score
// aggregator. Evaluators never communicate with each other; the final
// score is a commutative sum, so registration order cannot affect it.
package evaluator

import (
	"context"
	"fmt"

	"github.com/phishguard/scoring/internal/models"
)

// Evaluator is one independent risk signal. Evaluate returns a
// non-negative contribution and whether the check passed. Diagnostic
// evaluators contribute 0 and signal only through the passed flag.
type Evaluator interface {
	Name() string
	Evaluate(ctx context.Context, rec *models.Record) (int, bool)
}

// Aggregator runs a registered evaluator list exactly once per record,
// sums the contributions, records per-evaluator pass/fail, and seals the
// record with the score and its classification. It is the single writer
// of Record.Score.
type Aggregator struct {
	evaluators []Evaluator
}

// NewAggregator creates an aggregator over the given evaluators.
func NewAggregator(evaluators ...Evaluator) *Aggregator {
	return &Aggregator{evaluators: evaluators}
}

// Run evaluates the record and seals it. Each evaluator's status fires off
// its own result, not off the running total. Running twice on the same
// record is an error.
func (a *Aggregator) Run(ctx context.Context, rec *models.Record) error {
	if rec.Sealed() {
		return fmt.Errorf("aggregate: %w", models.ErrSealed)
	}

	total := 0
	for _, ev := range a.evaluators {
		contribution, passed := ev.Evaluate(ctx, rec)
		if contribution < 0 {
			contribution = 0
		}
		total += contribution
		rec.SetStatus(ev.Name(), passed)
	}

	return rec.Seal(total, Classify(total))
}

// Classify maps a total score to its tier. The boundaries are part of the
// contract: 15 is Low, 30 is High, nothing falls through uncovered.
func Classify(score int) models.Tier {
	switch {
	case score <= 15:
		return models.TierLow
	case score < 30:
		return models.TierMedium
	default:
		return models.TierHigh
	}
}
