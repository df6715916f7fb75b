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
	"strings"

	"github.com/phishguard/scoring/internal/models"
)

// Keyword scores one point per distinct configured phishing-indicator term
// found in the subject plus body, case-insensitive substring match.
type Keyword struct {
	terms []string
}

// NewKeyword creates the keyword evaluator over the configured term list.
func NewKeyword(terms []string) *Keyword {
	lowered := make([]string, 0, len(terms))
	for _, t := range terms {
		t = strings.ToLower(strings.TrimSpace(t))
		if t != "" {
			lowered = append(lowered, t)
		}
	}
	return &Keyword{terms: lowered}
}

func (k *Keyword) Name() string { return "keyword" }

func (k *Keyword) Evaluate(_ context.Context, rec *models.Record) (int, bool) {
	text := strings.ToLower(rec.Subject + "\n" + rec.Body)

	hits := 0
	for _, term := range k.terms {
		if strings.Contains(text, term) {
			hits++
		}
	}
	return hits, hits == 0
}
