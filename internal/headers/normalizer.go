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

// Package headers converts the provider's unordered name/value header list
// into the canonical record. Missing headers degrade to sentinels; the
// normalizer never fails.
package headers

import (
	"regexp"
	"strings"

	"github.com/phishguard/scoring/internal/config"
	"github.com/phishguard/scoring/internal/models"
)

var (
	spfPattern   = regexp.MustCompile(`(?i)spf=(pass|fail)`)
	dkimPattern  = regexp.MustCompile(`(?i)dkim=(pass|fail)`)
	dmarcPattern = regexp.MustCompile(`(?i)dmarc=(pass|fail)`)
)

// Normalizer maps provider header pairs onto a canonical record.
type Normalizer struct {
	source config.AuthSource
}

// New creates a normalizer using the given authenticity source strategy.
func New(source config.AuthSource) *Normalizer {
	return &Normalizer{source: source}
}

// Normalize builds a fresh record from the header pairs. Header names are
// matched case-insensitively; when a header repeats, the last observed
// occurrence wins (except Received, which accumulates into the chain).
// A pure transform: no provider calls, no errors.
func (n *Normalizer) Normalize(pairs []models.HeaderPair) *models.Record {
	rec := models.NewRecord()

	var authResults, receivedSPF, dkimSignature string
	sawAuthResults, sawReceivedSPF, sawDKIMSignature := false, false, false

	for _, p := range pairs {
		switch strings.ToLower(p.Name) {
		case "message-id":
			rec.MessageID = models.RFCMessageID(p.Value)
		case "date":
			rec.Date = p.Value
		case "subject":
			rec.Subject = p.Value
		case "from":
			rec.From = p.Value
		case "to":
			rec.To = p.Value
		case "return-path":
			rec.ReturnPath = p.Value
		case "received":
			rec.Received = append(rec.Received, p.Value)
		case "authentication-results":
			authResults = p.Value
			sawAuthResults = true
		case "received-spf":
			receivedSPF = p.Value
			sawReceivedSPF = true
		case "dkim-signature":
			dkimSignature = p.Value
			sawDKIMSignature = true
		}
	}

	switch n.source {
	case config.AuthSourceDedicated:
		// Fallback strategy: SPF and DKIM come from dedicated headers,
		// verbatim. DMARC has no dedicated header and still comes from
		// Authentication-Results.
		if sawReceivedSPF {
			rec.SPF = models.AuthResult{State: models.AuthMatch, Value: receivedSPF}
		}
		if sawDKIMSignature {
			rec.DKIM = models.AuthResult{State: models.AuthMatch, Value: dkimSignature}
		}
		rec.DMARC = matchVerdict(dmarcPattern, authResults, sawAuthResults, "")
	default:
		// All three verdicts parsed out of one Authentication-Results
		// header. The SPF value is stored as the bare verdict token so
		// both strategies yield a value the evaluator can prefix-match.
		rec.SPF = matchVerdict(spfPattern, authResults, sawAuthResults, "spf=")
		rec.DKIM = matchVerdict(dkimPattern, authResults, sawAuthResults, "")
		rec.DMARC = matchVerdict(dmarcPattern, authResults, sawAuthResults, "")
	}

	return rec
}

// matchVerdict runs one verdict pattern over the Authentication-Results
// value, distinguishing header-absent, present-without-match, and match.
// When strip is non-empty the matched token is stored without that prefix.
func matchVerdict(pattern *regexp.Regexp, value string, present bool, strip string) models.AuthResult {
	if !present {
		return models.AuthResult{State: models.AuthAbsent}
	}
	m := pattern.FindString(value)
	if m == "" {
		return models.AuthResult{State: models.AuthNoMatch}
	}
	m = strings.ToLower(m)
	if strip != "" {
		m = strings.TrimPrefix(m, strip)
	}
	return models.AuthResult{State: models.AuthMatch, Value: m}
}
