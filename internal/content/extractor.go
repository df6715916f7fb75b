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

// Package content walks the message part tree, decodes text bodies, and
// collects attachment descriptors. The walk is an explicit worklist over
// the part arena, so adversarial nesting depth cannot exhaust the stack.
package content

import (
	"encoding/base64"
	"log/slog"
	"strings"

	"github.com/phishguard/scoring/internal/models"
)

// Result is the aggregated output of one extraction pass.
type Result struct {
	// Body is the newline-joined decoded text of every text/plain and
	// text/html part, depth-first and order-preserving. HTML is kept as
	// raw markup; the URL harvester and keyword evaluator accept it.
	Body string
	// HTMLParts holds the raw decoded HTML bodies separately so anchor
	// targets can be harvested from markup.
	HTMLParts   []string
	Attachments []models.Attachment
}

// Extract runs the part-tree walk. It is idempotent: the same arena always
// yields the same result. Decode failures degrade to an empty string for
// the affected part and are logged, never raised.
func Extract(arena *models.PartArena) Result {
	var res Result
	if arena == nil || len(arena.Parts) == 0 {
		return res
	}

	var texts []string

	// Depth-first, order-preserving: children pushed in reverse so the
	// first child is popped first.
	stack := []int{0}
	for len(stack) > 0 {
		idx := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if idx < 0 || idx >= len(arena.Parts) {
			continue
		}
		part := &arena.Parts[idx]

		if len(part.Children) > 0 {
			for i := len(part.Children) - 1; i >= 0; i-- {
				stack = append(stack, part.Children[i])
			}
			continue
		}

		mime := strings.ToLower(part.MIMEType)
		switch mime {
		case "text/plain", "text/html":
			text := decodeBody(part)
			texts = append(texts, text)
			if mime == "text/html" && text != "" {
				res.HTMLParts = append(res.HTMLParts, text)
			}
		default:
			// A part counts as an attachment only if it declares a
			// non-empty filename.
			if part.Filename != "" {
				res.Attachments = append(res.Attachments, models.Attachment{
					Filename:      part.Filename,
					MIMEType:      part.MIMEType,
					HasPayloadRef: part.AttachmentID != "",
				})
			}
		}
	}

	res.Body = strings.Join(texts, "\n")
	return res
}

// decodeBody base64-url-decodes a part's payload and repairs invalid UTF-8
// with the replacement rune. Malformed data degrades to "".
func decodeBody(part *models.Part) string {
	if part.BodyData == "" {
		return ""
	}
	raw, err := base64.URLEncoding.DecodeString(part.BodyData)
	if err != nil {
		raw, err = base64.RawURLEncoding.DecodeString(part.BodyData)
	}
	if err != nil {
		slog.Warn("undecodable part body, skipping",
			"mime_type", part.MIMEType,
			"error", err,
		)
		return ""
	}
	return strings.ToValidUTF8(string(raw), "�")
}
