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

// Package wordlist loads the flat newline-delimited configuration lists
// (phishing keywords, blacklisted extensions, known-malicious URLs). Lists
// are read once at startup and treated as immutable afterwards.
package wordlist

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// Load reads a newline-delimited list. Entries are trimmed; blank lines
// are skipped. A missing file is an error — list files are required
// configuration and their absence is fatal at startup.
func Load(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open list %s: %w", path, err)
	}
	defer f.Close()

	var entries []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		entries = append(entries, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read list %s: %w", path, err)
	}
	return entries, nil
}

// LoadSet reads a list into a lowercased membership set.
func LoadSet(path string) (map[string]bool, error) {
	entries, err := Load(path)
	if err != nil {
		return nil, err
	}
	set := make(map[string]bool, len(entries))
	for _, e := range entries {
		set[strings.ToLower(e)] = true
	}
	return set, nil
}
