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

package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/phishguard/scoring/internal/gmail"
	"github.com/phishguard/scoring/internal/models"
)

// scriptedSource serves a fixed set of pages and messages.
type scriptedSource struct {
	pages    []*gmail.MessagePage
	messages map[models.ProviderID]*gmail.RawMessage
	fetchErr map[models.ProviderID]error

	listCalls int
	fetched   []models.ProviderID
}

func (s *scriptedSource) ListMessages(_ context.Context, _ []string, _, pageToken string) (*gmail.MessagePage, error) {
	idx := 0
	if pageToken != "" {
		for i, p := range s.pages {
			if p.NextPageToken == pageToken {
				idx = i + 1
			}
		}
	}
	s.listCalls++
	return s.pages[idx], nil
}

func (s *scriptedSource) GetMessage(_ context.Context, id models.ProviderID) (*gmail.RawMessage, error) {
	s.fetched = append(s.fetched, id)
	if err := s.fetchErr[id]; err != nil {
		return nil, err
	}
	return s.messages[id], nil
}

// seenFilter marks a fixed set of IDs as already scored.
type seenFilter struct {
	seen map[models.ProviderID]bool
	err  error
}

func (f *seenFilter) IsNew(_ context.Context, id models.ProviderID) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	return !f.seen[id], nil
}

func TestPoll_ScoresUnseenAcrossPages(t *testing.T) {
	source := &scriptedSource{
		pages: []*gmail.MessagePage{
			{IDs: []models.ProviderID{"a", "b"}, NextPageToken: "page2"},
			{IDs: []models.ProviderID{"c"}},
		},
		messages: map[models.ProviderID]*gmail.RawMessage{
			"a": rawMessage(t, "a", "hi", "body a"),
			"b": rawMessage(t, "b", "hi", "body b"),
			"c": rawMessage(t, "c", "hi", "body c"),
		},
	}
	filter := &seenFilter{seen: map[models.ProviderID]bool{"b": true}}
	sink := &captureSink{}

	poller := NewPoller(source, filter, newTestPipeline(sink), time.Minute, time.Hour)
	poller.poll(context.Background())

	if source.listCalls != 2 {
		t.Errorf("listCalls = %d, want 2", source.listCalls)
	}
	if len(source.fetched) != 2 || source.fetched[0] != "a" || source.fetched[1] != "c" {
		t.Errorf("fetched = %v, want [a c]", source.fetched)
	}
	if len(sink.records) != 2 {
		t.Fatalf("published %d records, want 2", len(sink.records))
	}
	if sink.records[0].ProviderID != "a" || sink.records[1].ProviderID != "c" {
		t.Errorf("published IDs = %s, %s", sink.records[0].ProviderID, sink.records[1].ProviderID)
	}
}

func TestPoll_FetchFailureDoesNotStopWindow(t *testing.T) {
	source := &scriptedSource{
		pages: []*gmail.MessagePage{
			{IDs: []models.ProviderID{"bad", "good"}},
		},
		messages: map[models.ProviderID]*gmail.RawMessage{
			"good": rawMessage(t, "good", "hi", "body"),
		},
		fetchErr: map[models.ProviderID]error{"bad": errors.New("boom")},
	}
	sink := &captureSink{}

	poller := NewPoller(source, &seenFilter{}, newTestPipeline(sink), time.Minute, time.Hour)
	poller.poll(context.Background())

	if len(sink.records) != 1 || sink.records[0].ProviderID != "good" {
		t.Errorf("records = %v, want only the good message scored", sink.records)
	}
}

func TestPoll_VanishedMessageSkipped(t *testing.T) {
	// GetMessage returns (nil, nil) when the provider deleted the message
	// between listing and fetch.
	source := &scriptedSource{
		pages:    []*gmail.MessagePage{{IDs: []models.ProviderID{"gone"}}},
		messages: map[models.ProviderID]*gmail.RawMessage{},
	}
	sink := &captureSink{}

	poller := NewPoller(source, &seenFilter{}, newTestPipeline(sink), time.Minute, time.Hour)
	poller.poll(context.Background())

	if len(sink.records) != 0 {
		t.Errorf("records = %v, want none", sink.records)
	}
}

func TestPoll_DedupErrorSkipsMessage(t *testing.T) {
	source := &scriptedSource{
		pages: []*gmail.MessagePage{{IDs: []models.ProviderID{"a"}}},
		messages: map[models.ProviderID]*gmail.RawMessage{
			"a": rawMessage(t, "a", "hi", "body"),
		},
	}
	sink := &captureSink{}

	poller := NewPoller(source, &seenFilter{err: errors.New("redis down")}, newTestPipeline(sink), time.Minute, time.Hour)
	poller.poll(context.Background())

	if len(source.fetched) != 0 {
		t.Errorf("fetched = %v, want no fetches when dedup is unavailable", source.fetched)
	}
	if len(sink.records) != 0 {
		t.Errorf("records = %v, want none", sink.records)
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	source := &scriptedSource{
		pages:    []*gmail.MessagePage{{}},
		messages: map[models.ProviderID]*gmail.RawMessage{},
	}
	poller := NewPoller(source, &seenFilter{}, newTestPipeline(&captureSink{}), 10*time.Millisecond, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		poller.Run(ctx)
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("poller did not stop after cancel")
	}

	if source.listCalls == 0 {
		t.Error("poller never listed the inbox")
	}
}
