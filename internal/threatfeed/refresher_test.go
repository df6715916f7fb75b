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

package threatfeed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func TestRefresh_WritesOnChange(t *testing.T) {
	payload := "http://bad1.example/\nhttp://bad2.example/\n"
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(payload))
	}))
	defer server.Close()

	dir := t.TempDir()
	listPath := filepath.Join(dir, "known_urls.txt")
	hashPath := filepath.Join(dir, "known_urls.sha256")

	r := NewRefresher(server.Client(), server.URL, listPath, hashPath)

	updated, err := r.Refresh(context.Background())
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if !updated {
		t.Fatal("first refresh reported no update")
	}

	written, err := os.ReadFile(listPath)
	if err != nil {
		t.Fatalf("read list: %v", err)
	}
	if string(written) != payload {
		t.Errorf("list content = %q", written)
	}

	// Second run against identical content is a no-op.
	updated, err = r.Refresh(context.Background())
	if err != nil {
		t.Fatalf("second Refresh: %v", err)
	}
	if updated {
		t.Error("unchanged payload reported as update")
	}

	// Changed payload triggers a rewrite.
	payload = payload + "http://bad3.example/\n"
	updated, err = r.Refresh(context.Background())
	if err != nil {
		t.Fatalf("third Refresh: %v", err)
	}
	if !updated {
		t.Error("changed payload not written")
	}
}

func TestRefresh_ServerErrorLeavesListAlone(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	dir := t.TempDir()
	listPath := filepath.Join(dir, "known_urls.txt")
	if err := os.WriteFile(listPath, []byte("http://existing.example/\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	r := NewRefresher(server.Client(), server.URL, listPath, filepath.Join(dir, "hash"))
	if _, err := r.Refresh(context.Background()); err == nil {
		t.Fatal("expected error for HTTP 503")
	}

	kept, _ := os.ReadFile(listPath)
	if string(kept) != "http://existing.example/\n" {
		t.Errorf("list was modified on failure: %q", kept)
	}
}
