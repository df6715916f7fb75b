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

// Authenticity contribution policy, shared by all three evaluators:
// an explicit pass is 0, a missing header is 5, anything else — a fail
// verdict or a header that carried no recognizable verdict — is 10.
const (
	authPassScore   = 0
	authAbsentScore = 5
	authFailScore   = 10
)

// SPF scores the SPF verdict. The value is the bare verdict token under
// the Authentication-Results strategy, or the verbatim Received-SPF header
// under the dedicated-header strategy; both start with "pass" on success.
type SPF struct{}

func (SPF) Name() string { return "spf" }

func (SPF) Evaluate(_ context.Context, rec *models.Record) (int, bool) {
	switch rec.SPF.State {
	case models.AuthAbsent:
		return authAbsentScore, false
	case models.AuthMatch:
		if strings.HasPrefix(strings.ToLower(rec.SPF.Value), "pass") {
			return authPassScore, true
		}
	}
	return authFailScore, false
}

// DKIM scores the DKIM verdict, requiring the exact dkim=pass token.
type DKIM struct{}

func (DKIM) Name() string { return "dkim" }

func (DKIM) Evaluate(_ context.Context, rec *models.Record) (int, bool) {
	switch rec.DKIM.State {
	case models.AuthAbsent:
		return authAbsentScore, false
	case models.AuthMatch:
		if rec.DKIM.Is("dkim=pass") {
			return authPassScore, true
		}
	}
	return authFailScore, false
}

// DMARC scores the DMARC verdict, requiring the exact dmarc=pass token.
type DMARC struct{}

func (DMARC) Name() string { return "dmarc" }

func (DMARC) Evaluate(_ context.Context, rec *models.Record) (int, bool) {
	switch rec.DMARC.State {
	case models.AuthAbsent:
		return authAbsentScore, false
	case models.AuthMatch:
		if rec.DMARC.Is("dmarc=pass") {
			return authPassScore, true
		}
	}
	return authFailScore, false
}
