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
	"errors"
	"sync"
	"testing"

	"github.com/phishguard/scoring/internal/models"
)

// scriptedSource replays per-origin responses and counts queries.
type scriptedSource struct {
	mu      sync.Mutex
	status  map[string]string
	typ     map[string]string
	errs    map[string]error
	queried []string
}

func (s *scriptedSource) Query(_ context.Context, origin string) (string, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queried = append(s.queried, origin)
	if err := s.errs[origin]; err != nil {
		return "", "", err
	}
	return s.status[origin], s.typ[origin], nil
}

func TestReputation_NoOrigins(t *testing.T) {
	src := &scriptedSource{}
	score, passed := NewReputation(src).Evaluate(context.Background(), models.NewRecord())
	if score != 0 || !passed {
		t.Errorf("Evaluate = (%d, %v), want (0, true)", score, passed)
	}
	if len(src.queried) != 0 {
		t.Errorf("queried %v, want nothing", src.queried)
	}
}

func TestReputation_FirstHitShortCircuits(t *testing.T) {
	src := &scriptedSource{
		status: map[string]string{"http://bad.example/": "online"},
		typ:    map[string]string{"http://bad.example/": "phishing"},
	}

	rec := models.NewRecord()
	rec.Origins = []string{"http://clean.example/", "http://bad.example/", "http://never.example/"}

	score, passed := NewReputation(src).Evaluate(context.Background(), rec)
	if score != 50 || passed {
		t.Errorf("Evaluate = (%d, %v), want (50, false)", score, passed)
	}
	if rec.ThreatStatus != "online" || rec.ThreatType != "phishing" {
		t.Errorf("threat = (%q, %q)", rec.ThreatStatus, rec.ThreatType)
	}
	// The third origin is never queried.
	if len(src.queried) != 2 {
		t.Errorf("queried %v, want short-circuit after the hit", src.queried)
	}
}

func TestReputation_ContributionIsFlat(t *testing.T) {
	// Two malicious origins still contribute 50 once, not 100.
	src := &scriptedSource{
		status: map[string]string{
			"http://bad1.example/": "online",
			"http://bad2.example/": "online",
		},
		typ: map[string]string{
			"http://bad1.example/": "malware",
			"http://bad2.example/": "phishing",
		},
	}

	rec := models.NewRecord()
	rec.Origins = []string{"http://bad1.example/", "http://bad2.example/"}

	score, _ := NewReputation(src).Evaluate(context.Background(), rec)
	if score != 50 {
		t.Errorf("score = %d, want 50", score)
	}
	if rec.ThreatType != "malware" {
		t.Errorf("ThreatType = %q, want the first hit recorded", rec.ThreatType)
	}
}

func TestReputation_QueryErrorIsNoSignal(t *testing.T) {
	src := &scriptedSource{
		errs:   map[string]error{"http://down.example/": errors.New("connection refused")},
		status: map[string]string{"http://bad.example/": "online"},
		typ:    map[string]string{"http://bad.example/": "phishing"},
	}

	rec := models.NewRecord()
	rec.Origins = []string{"http://down.example/", "http://bad.example/"}

	score, passed := NewReputation(src).Evaluate(context.Background(), rec)
	if score != 50 || passed {
		t.Errorf("Evaluate = (%d, %v), want the later origin to still match", score, passed)
	}
}

func TestReputation_NilSource(t *testing.T) {
	rec := models.NewRecord()
	rec.Origins = []string{"http://bad.example/"}
	score, passed := NewReputation(nil).Evaluate(context.Background(), rec)
	if score != 0 || !passed {
		t.Errorf("Evaluate = (%d, %v), want (0, true)", score, passed)
	}
}
