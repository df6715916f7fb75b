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

// Package urls extracts candidate URLs from untrusted message text and
// HTML, normalizes them, and reduces them to origins for reputation
// lookup. Reputation queries run once per distinct origin, not once per
// URL, to bound external call volume.
package urls

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

var urlPattern = regexp.MustCompile(`(?i)\b(?:https?://|ftp://|www\.)[^\s<>"']+`)

const (
	trailingPunct  = `.,;!?)]}>`
	structuralRune = `/#?=&%`
)

// Harvest extracts, normalizes, and deduplicates URLs from aggregated body
// text. Harvesting is idempotent: the same text always yields the same
// set, in first-appearance order.
func Harvest(text string) []string {
	return dedupe(normalizeAll(urlPattern.FindAllString(text, -1)))
}

// HarvestHTML extracts anchor targets from raw HTML markup in document
// order, skipping fragment-only and mailto links, then applies the same
// normalization as plain-text harvesting. Malformed markup degrades to
// whatever the parser recovers; an error only means the markup could not
// be read at all.
func HarvestHTML(markup string) ([]string, error) {
	doc, err := html.Parse(strings.NewReader(markup))
	if err != nil {
		return nil, err
	}

	// Children are pushed in reverse so the stack pops them in document
	// order; anchor order decides which origin gets queried first.
	var found []string
	stack := []*html.Node{doc}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if n.Type == html.ElementNode && n.Data == "a" {
			for _, attr := range n.Attr {
				if attr.Key != "href" {
					continue
				}
				href := strings.TrimSpace(attr.Val)
				if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(strings.ToLower(href), "mailto:") {
					continue
				}
				found = append(found, href)
			}
		}
		var children []*html.Node
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			children = append(children, c)
		}
		for i := len(children) - 1; i >= 0; i-- {
			stack = append(stack, children[i])
		}
	}

	return dedupe(normalizeAll(found)), nil
}

// Merge combines harvested URL sets preserving first-appearance order.
func Merge(sets ...[]string) []string {
	var all []string
	for _, s := range sets {
		all = append(all, s...)
	}
	return dedupe(all)
}

// Origins reduces each URL to its origin — scheme plus authority, i.e.
// everything up to and including the third slash — and deduplicates.
// Entries without a scheme are dropped.
func Origins(urlList []string) []string {
	var origins []string
	for _, u := range urlList {
		schemeEnd := strings.Index(u, "://")
		if schemeEnd < 0 {
			continue
		}
		rest := u[schemeEnd+3:]
		if slash := strings.Index(rest, "/"); slash >= 0 {
			origins = append(origins, u[:schemeEnd+3+slash+1])
		} else {
			origins = append(origins, u+"/")
		}
	}
	return dedupe(origins)
}

func normalizeAll(raw []string) []string {
	out := make([]string, 0, len(raw))
	for _, u := range raw {
		u = trimTrailing(u)
		if u == "" {
			continue
		}
		if strings.HasPrefix(strings.ToLower(u), "www.") {
			u = "http://" + u
		}
		out = append(out, u)
	}
	return out
}

// trimTrailing strips sentence punctuation from the end of a match. The
// strip stops as soon as the rune preceding the punctuation is
// alphanumeric or URL-structural, which prevents truncating legitimate
// path and query endings.
func trimTrailing(u string) string {
	for len(u) > 0 {
		last := rune(u[len(u)-1])
		if !strings.ContainsRune(trailingPunct, last) {
			break
		}
		if len(u) >= 2 {
			prev := rune(u[len(u)-2])
			if isAlnum(prev) || strings.ContainsRune(structuralRune, prev) {
				break
			}
		}
		u = u[:len(u)-1]
	}
	return u
}

func isAlnum(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	var out []string
	for _, u := range in {
		if seen[u] {
			continue
		}
		seen[u] = true
		out = append(out, u)
	}
	return out
}
