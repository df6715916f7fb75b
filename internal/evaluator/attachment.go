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
	"regexp"
	"strings"

	"github.com/phishguard/scoring/internal/models"
)

// attachmentScore is contributed per blacklisted extension occurrence.
const attachmentScore = 15

// extPattern captures the trailing .extension run of a filename.
var extPattern = regexp.MustCompile(`\.[A-Za-z0-9]+$`)

// AttachmentExt scores each attachment whose file extension appears on
// the configured blacklist. Scoring is per occurrence: two .exe
// attachments contribute twice.
type AttachmentExt struct {
	blacklist map[string]bool // lowercased, dot-prefixed, e.g. ".exe"
}

// NewAttachmentExt creates the attachment-extension evaluator. Blacklist
// entries may be given with or without the leading dot.
func NewAttachmentExt(blacklist []string) *AttachmentExt {
	set := make(map[string]bool, len(blacklist))
	for _, e := range blacklist {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		set[e] = true
	}
	return &AttachmentExt{blacklist: set}
}

func (a *AttachmentExt) Name() string { return "attachment" }

func (a *AttachmentExt) Evaluate(_ context.Context, rec *models.Record) (int, bool) {
	score := 0
	for _, att := range rec.Attachments {
		ext := extPattern.FindString(strings.ToLower(att.Filename))
		if ext == "" {
			continue
		}
		if a.blacklist[ext] {
			score += attachmentScore
		}
	}
	return score, score == 0
}
