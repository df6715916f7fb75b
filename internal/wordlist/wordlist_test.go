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

package wordlist

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func writeList(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "list.txt")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeList(t, "urgent\n\n  verify account  \ninvoice\n")

	entries, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := []string{"urgent", "verify account", "invoice"}
	if !reflect.DeepEqual(entries, want) {
		t.Errorf("entries = %v, want %v", entries, want)
	}
}

func TestLoad_EmptyFile(t *testing.T) {
	entries, err := Load(writeList(t, ""))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("entries = %v, want none", entries)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.txt")); err == nil {
		t.Fatal("missing list file must be an error")
	}
}

func TestLoadSet_Lowercases(t *testing.T) {
	set, err := LoadSet(writeList(t, "EXE\nJs\nscr\n"))
	if err != nil {
		t.Fatalf("LoadSet: %v", err)
	}
	for _, key := range []string{"exe", "js", "scr"} {
		if !set[key] {
			t.Errorf("set missing %q", key)
		}
	}
	if set["EXE"] {
		t.Error("set kept an uppercased key")
	}
}
