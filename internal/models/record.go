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

// Package models defines the data structures shared across the scoring pipeline.
package models

import (
	"errors"
	"strings"
)

// None is the sentinel recorded for a tracked header that was absent from
// the message. Absence is a valid, representable state and never an error.
const None = "none"

// ProviderID is the mail provider's internal message identifier. It is the
// only identifier accepted by provider lookups and label modifications.
type ProviderID string

// RFCMessageID is the RFC 5322 Message-ID header value. It may carry angle
// brackets and stray whitespace; Sanitize produces the bare form. It is a
// distinct identifier space from ProviderID and must never be used for
// provider API calls.
type RFCMessageID string

// Sanitize strips leading/trailing angle brackets and interior spaces.
func (id RFCMessageID) Sanitize() string {
	s := strings.TrimSpace(string(id))
	s = strings.TrimPrefix(s, "<")
	s = strings.TrimSuffix(s, ">")
	return strings.ReplaceAll(s, " ", "")
}

// AuthState distinguishes the three possible outcomes of reading an
// authenticity verdict from message headers.
type AuthState int

const (
	// AuthAbsent means the carrying header was missing entirely.
	AuthAbsent AuthState = iota
	// AuthNoMatch means the header was present but the verdict pattern
	// found nothing in it.
	AuthNoMatch
	// AuthMatch means a verdict token was extracted; Value holds it.
	AuthMatch
)

// AuthResult is the uniform representation of an SPF, DKIM, or DMARC
// verdict read from headers. Evaluators branch on State first and only
// consult Value when State is AuthMatch.
type AuthResult struct {
	State AuthState
	Value string
}

// Is reports whether the result is a match with exactly the given value.
func (r AuthResult) Is(v string) bool {
	return r.State == AuthMatch && r.Value == v
}

// HeaderPair is a single name/value header as delivered by the provider.
// Headers may repeat and arrive in arbitrary order.
type HeaderPair struct {
	Name  string
	Value string
}

// Part is one node of the message part tree. Children reference other
// nodes in the same arena by index, so traversal never recurses.
type Part struct {
	MIMEType     string
	Filename     string
	BodyData     string // base64url-encoded payload, may be empty
	AttachmentID string // non-empty when the payload lives behind an attachment reference
	Children     []int
}

// PartArena holds all parts of one message in a flat slice. The root part
// is always index 0. An empty arena has no parts at all.
type PartArena struct {
	Parts []Part
}

// Root returns the root part, or nil for an empty arena.
func (a *PartArena) Root() *Part {
	if a == nil || len(a.Parts) == 0 {
		return nil
	}
	return &a.Parts[0]
}

// Attachment describes one attachment-like part: a part that declared a
// non-empty filename. The payload itself is never fetched.
type Attachment struct {
	Filename      string
	MIMEType      string
	HasPayloadRef bool
}

// Tier is the three-level classification produced by the aggregator.
type Tier string

const (
	TierLow    Tier = "Low"
	TierMedium Tier = "Medium"
	TierHigh   Tier = "High"
)

// Evaluator status values recorded per evaluator on the record.
const (
	StatusPass = "Pass"
	StatusFail = "Fail"
)

// ErrSealed is returned when aggregation is attempted on an already
// sealed record.
var ErrSealed = errors.New("record already sealed")

// Record is the pipeline's canonical per-message working object. It is
// created by the header normalizer, enriched in place by the content
// extractor and the evaluators, sealed once by the aggregator, and then
// handed to the publisher. A Record is never shared across messages.
type Record struct {
	ProviderID ProviderID
	MessageID  RFCMessageID

	Date       string
	Subject    string
	From       string
	To         string
	ReturnPath string
	Received   []string

	SPF   AuthResult
	DKIM  AuthResult
	DMARC AuthResult

	// Body is the newline-joined decoded text of all text parts, plain
	// and HTML. It is recomputable from Payload.
	Body        string
	Payload     *PartArena
	Attachments []Attachment

	// URLs and Origins are filled by the harvester before evaluation.
	URLs    []string
	Origins []string

	// Statuses maps evaluator name to Pass/Fail. Fail is monotonic.
	Statuses map[string]string

	ThreatStatus string
	ThreatType   string

	Score int
	Tier  Tier

	sealed bool
}

// NewRecord returns a record with every header field set to the absence
// sentinel and an initialised status map.
func NewRecord() *Record {
	return &Record{
		Date:       None,
		Subject:    None,
		From:       None,
		To:         None,
		ReturnPath: None,
		Statuses:   make(map[string]string),
	}
}

// SetStatus records an evaluator outcome. A Fail is never overwritten by a
// later Pass; evaluators run once per record, so in practice each key is
// written a single time.
func (r *Record) SetStatus(name string, passed bool) {
	if r.Statuses == nil {
		r.Statuses = make(map[string]string)
	}
	if r.Statuses[name] == StatusFail {
		return
	}
	if passed {
		r.Statuses[name] = StatusPass
	} else {
		r.Statuses[name] = StatusFail
	}
}

// Seal sets the final score and tier. Only the aggregator calls this, and
// only once per record.
func (r *Record) Seal(score int, tier Tier) error {
	if r.sealed {
		return ErrSealed
	}
	r.Score = score
	r.Tier = tier
	r.sealed = true
	return nil
}

// Sealed reports whether the record has been through aggregation.
func (r *Record) Sealed() bool { return r.sealed }
