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

package gmail

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/phishguard/scoring/internal/models"
)

// rawHeader is a single header as the provider delivers it.
type rawHeader struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// rawBody carries the payload of one MIME part. Data is base64url; large
// attachments omit it and carry AttachmentID instead.
type rawBody struct {
	AttachmentID string `json:"attachmentId"`
	Size         int    `json:"size"`
	Data         string `json:"data"`
}

// rawPart is one node of the provider's MIME tree.
type rawPart struct {
	PartID   string      `json:"partId"`
	MimeType string      `json:"mimeType"`
	Filename string      `json:"filename"`
	Headers  []rawHeader `json:"headers"`
	Body     rawBody     `json:"body"`
	Parts    []rawPart   `json:"parts"`
}

// RawMessage is a full-format provider message: identity, headers and
// the complete part tree.
type RawMessage struct {
	ID       string   `json:"id"`
	ThreadID string   `json:"threadId"`
	LabelIDs []string `json:"labelIds"`
	Snippet  string   `json:"snippet"`
	Payload  rawPart  `json:"payload"`
}

// ParseMessage decodes a full-format message document.
func ParseMessage(r io.Reader) (*RawMessage, error) {
	var m RawMessage
	if err := json.NewDecoder(r).Decode(&m); err != nil {
		return nil, fmt.Errorf("decode message: %w", err)
	}
	if m.ID == "" {
		return nil, fmt.Errorf("message document has no id")
	}
	return &m, nil
}

// ProviderID returns the provider-assigned message identifier.
func (m *RawMessage) ProviderID() models.ProviderID {
	return models.ProviderID(m.ID)
}

// HeaderPairs returns the top-level headers in delivery order.
func (m *RawMessage) HeaderPairs() []models.HeaderPair {
	pairs := make([]models.HeaderPair, 0, len(m.Payload.Headers))
	for _, h := range m.Payload.Headers {
		pairs = append(pairs, models.HeaderPair{Name: h.Name, Value: h.Value})
	}
	return pairs
}

// Arena flattens the part tree into an arena. An explicit worklist keeps
// hostile nesting depth from translating into stack depth; child order is
// preserved so extraction walks parts in delivery order.
func (m *RawMessage) Arena() *models.PartArena {
	arena := &models.PartArena{}

	type item struct {
		part   *rawPart
		parent int
	}

	queue := []item{{part: &m.Payload, parent: -1}}
	for len(queue) > 0 {
		it := queue[0]
		queue = queue[1:]

		idx := len(arena.Parts)
		arena.Parts = append(arena.Parts, models.Part{
			MIMEType:     it.part.MimeType,
			Filename:     it.part.Filename,
			BodyData:     it.part.Body.Data,
			AttachmentID: it.part.Body.AttachmentID,
		})
		if it.parent >= 0 {
			arena.Parts[it.parent].Children = append(arena.Parts[it.parent].Children, idx)
		}

		for i := range it.part.Parts {
			queue = append(queue, item{part: &it.part.Parts[i], parent: idx})
		}
	}

	return arena
}
