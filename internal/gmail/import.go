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
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"

	"github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"
	"golang.org/x/text/encoding/charmap"

	"github.com/phishguard/scoring/internal/models"
)

func init() {
	// Legacy charsets still show up in phishing samples captured from
	// the wild; register the common ones so import does not reject them.
	charset.RegisterEncoding("windows-1252", charmap.Windows1252)
	charset.RegisterEncoding("iso-8859-1", charmap.ISO8859_1)
	charset.RegisterEncoding("iso-8859-15", charmap.ISO8859_15)
}

// ImportEML uploads an RFC 5322 message file into the mailbox so it
// flows through the same scoring path as live mail. The message lands
// under INBOX with its Date header as internal date, and the returned
// provider ID feeds straight into GetMessage.
func (c *Client) ImportEML(ctx context.Context, path string) (models.ProviderID, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read eml file: %w", err)
	}

	// Parse up front so a malformed file fails here instead of as an
	// opaque provider error after upload.
	mr, err := mail.CreateReader(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("parse eml file %s: %w", path, err)
	}
	msgID, _ := mr.Header.MessageID()
	mr.Close()

	payload, err := json.Marshal(map[string]interface{}{
		"raw":                base64.URLEncoding.EncodeToString(data),
		"labelIds":           []string{"INBOX"},
		"internalDateSource": "dateHeader",
	})
	if err != nil {
		return "", fmt.Errorf("marshal import request: %w", err)
	}

	resp, err := c.do(ctx, http.MethodPost, c.baseURL+"/messages/import", payload, "application/json")
	if err != nil {
		return "", fmt.Errorf("import message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("message import returned HTTP %d: %s", resp.StatusCode, string(b))
	}

	var imported struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&imported); err != nil {
		return "", fmt.Errorf("decode import response: %w", err)
	}

	slog.Info("imported message file",
		"path", path,
		"rfc_message_id", msgID,
		"provider_id", imported.ID,
	)
	return models.ProviderID(imported.ID), nil
}
