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
	"net"
	"net/mail"
	"net/url"
	"strings"

	"github.com/phishguard/scoring/internal/models"
)

// DefaultShorteners and DefaultSuspiciousTLDs seed the link heuristics
// when the configuration leaves them empty.
var (
	DefaultShorteners     = []string{"bit.ly", "goo.gl", "tinyurl.com", "t.co"}
	DefaultSuspiciousTLDs = []string{".zip", ".mov", ".xyz", ".top", ".info"}
)

// LinkHeuristics is a diagnostic evaluator: it contributes no score but
// fails the record when any harvested URL uses an IP-literal host, a known
// shortener domain, or a frequently abused TLD.
type LinkHeuristics struct {
	shorteners []string
	tlds       []string
}

// NewLinkHeuristics creates the link-heuristics evaluator, falling back to
// the default shortener and TLD lists when given empty inputs.
func NewLinkHeuristics(shorteners, tlds []string) *LinkHeuristics {
	if len(shorteners) == 0 {
		shorteners = DefaultShorteners
	}
	if len(tlds) == 0 {
		tlds = DefaultSuspiciousTLDs
	}
	return &LinkHeuristics{shorteners: lowerAll(shorteners), tlds: lowerAll(tlds)}
}

func (l *LinkHeuristics) Name() string { return "link" }

func (l *LinkHeuristics) Evaluate(_ context.Context, rec *models.Record) (int, bool) {
	for _, raw := range rec.URLs {
		if l.Suspicious(raw) {
			return 0, false
		}
	}
	return 0, true
}

// Suspicious reports whether a single URL trips any link heuristic.
func (l *LinkHeuristics) Suspicious(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return false
	}

	if net.ParseIP(host) != nil {
		return true
	}
	if l.IsShortener(host) {
		return true
	}
	if dot := strings.LastIndex(host, "."); dot >= 0 {
		tld := host[dot:]
		for _, t := range l.tlds {
			if tld == t {
				return true
			}
		}
	}
	return false
}

// IsShortener reports whether the host belongs to a known URL shortener.
func (l *LinkHeuristics) IsShortener(host string) bool {
	host = strings.ToLower(host)
	for _, s := range l.shorteners {
		if host == s || strings.HasSuffix(host, "."+s) {
			return true
		}
	}
	return false
}

// Impersonation is a diagnostic evaluator flagging display-name spoofing:
// an external sender domain combined with a display name that contains a
// configured internal name or role.
type Impersonation struct {
	internalDomains []string
	importantNames  []string
}

// NewImpersonation creates the impersonation evaluator.
func NewImpersonation(internalDomains, importantNames []string) *Impersonation {
	return &Impersonation{
		internalDomains: lowerAll(internalDomains),
		importantNames:  lowerAll(importantNames),
	}
}

func (i *Impersonation) Name() string { return "impersonation" }

func (i *Impersonation) Evaluate(_ context.Context, rec *models.Record) (int, bool) {
	if rec.From == models.None || len(i.importantNames) == 0 {
		return 0, true
	}
	addr, err := mail.ParseAddress(rec.From)
	if err != nil || addr.Name == "" {
		// Malformed or plain address: nothing to compare.
		return 0, true
	}

	at := strings.LastIndex(addr.Address, "@")
	if at < 0 {
		return 0, true
	}
	domain := strings.ToLower(addr.Address[at+1:])
	for _, d := range i.internalDomains {
		if domain == d {
			return 0, true
		}
	}

	name := strings.ToLower(addr.Name)
	for _, important := range i.importantNames {
		if strings.Contains(name, important) {
			return 0, false
		}
	}
	return 0, true
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.ToLower(strings.TrimSpace(s))
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
