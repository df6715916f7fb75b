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
	"strings"
	"testing"
)

const sampleMessage = `{
	"id": "msg-100",
	"threadId": "thread-1",
	"labelIds": ["INBOX"],
	"payload": {
		"mimeType": "multipart/mixed",
		"headers": [
			{"name": "Subject", "value": "hello"},
			{"name": "From", "value": "a@example.com"},
			{"name": "Received", "value": "from a by b"},
			{"name": "Received", "value": "from b by c"}
		],
		"parts": [
			{
				"mimeType": "multipart/alternative",
				"parts": [
					{"mimeType": "text/plain", "body": {"data": "aGVsbG8="}},
					{"mimeType": "text/html", "body": {"data": "PGI-aGk8L2I-"}}
				]
			},
			{
				"mimeType": "application/pdf",
				"filename": "invoice.pdf",
				"body": {"attachmentId": "att-9", "size": 12345}
			}
		]
	}
}`

func TestParseMessage(t *testing.T) {
	m, err := ParseMessage(strings.NewReader(sampleMessage))
	if err != nil {
		t.Fatalf("ParseMessage: %v", err)
	}
	if m.ProviderID() != "msg-100" {
		t.Errorf("ProviderID = %q", m.ProviderID())
	}

	pairs := m.HeaderPairs()
	if len(pairs) != 4 {
		t.Fatalf("HeaderPairs length = %d, want 4", len(pairs))
	}
	if pairs[0].Name != "Subject" || pairs[0].Value != "hello" {
		t.Errorf("first pair = %+v", pairs[0])
	}
	// Repeated headers survive as separate pairs in delivery order.
	if pairs[2].Value != "from a by b" || pairs[3].Value != "from b by c" {
		t.Errorf("received pairs = %+v, %+v", pairs[2], pairs[3])
	}
}

func TestParseMessage_MissingID(t *testing.T) {
	if _, err := ParseMessage(strings.NewReader(`{"payload": {}}`)); err == nil {
		t.Fatal("expected error for document without id")
	}
}

func TestParseMessage_MalformedJSON(t *testing.T) {
	if _, err := ParseMessage(strings.NewReader(`{"id": "x"`)); err == nil {
		t.Fatal("expected error for truncated JSON")
	}
}

func TestArena_Flattening(t *testing.T) {
	m, err := ParseMessage(strings.NewReader(sampleMessage))
	if err != nil {
		t.Fatalf("ParseMessage: %v", err)
	}

	arena := m.Arena()
	if len(arena.Parts) != 5 {
		t.Fatalf("arena has %d parts, want 5", len(arena.Parts))
	}

	root := arena.Root()
	if root == nil || root.MIMEType != "multipart/mixed" {
		t.Fatalf("root = %+v", root)
	}
	if len(root.Children) != 2 {
		t.Fatalf("root children = %v, want 2", root.Children)
	}

	alt := arena.Parts[root.Children[0]]
	if alt.MIMEType != "multipart/alternative" || len(alt.Children) != 2 {
		t.Errorf("first child = %+v", alt)
	}
	plain := arena.Parts[alt.Children[0]]
	if plain.MIMEType != "text/plain" || plain.BodyData != "aGVsbG8=" {
		t.Errorf("plain part = %+v", plain)
	}

	pdf := arena.Parts[root.Children[1]]
	if pdf.Filename != "invoice.pdf" || pdf.AttachmentID != "att-9" {
		t.Errorf("attachment part = %+v", pdf)
	}
}

func TestArena_SinglePartMessage(t *testing.T) {
	m, err := ParseMessage(strings.NewReader(`{
		"id": "msg-simple",
		"payload": {"mimeType": "text/plain", "body": {"data": "aGk="}}
	}`))
	if err != nil {
		t.Fatalf("ParseMessage: %v", err)
	}

	arena := m.Arena()
	if len(arena.Parts) != 1 {
		t.Fatalf("arena has %d parts, want 1", len(arena.Parts))
	}
	if len(arena.Root().Children) != 0 {
		t.Errorf("leaf root has children: %v", arena.Root().Children)
	}
}
