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

package publish

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/redis/go-redis/v9"

	"github.com/phishguard/scoring/internal/models"
)

// fakeQueue captures LPUSH payloads in memory.
type fakeQueue struct {
	pushed []string
	fail   bool
}

func (f *fakeQueue) LPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd {
	cmd := redis.NewIntCmd(ctx)
	if f.fail {
		cmd.SetErr(errors.New("redis down"))
		return cmd
	}
	for _, v := range values {
		f.pushed = append(f.pushed, v.(string))
	}
	cmd.SetVal(int64(len(f.pushed)))
	return cmd
}

func (f *fakeQueue) Ping(ctx context.Context) *redis.StatusCmd {
	cmd := redis.NewStatusCmd(ctx)
	cmd.SetVal("PONG")
	return cmd
}

// fakeLabels records label operations and can fail either step.
type fakeLabels struct {
	resolveErr error
	applyErr   error
	applied    []string // "id:labelID"
}

func (f *fakeLabels) GetOrCreate(_ context.Context, name string) (string, error) {
	if f.resolveErr != nil {
		return "", f.resolveErr
	}
	return "id-" + name, nil
}

func (f *fakeLabels) Apply(_ context.Context, id models.ProviderID, labelID string) error {
	if f.applyErr != nil {
		return f.applyErr
	}
	f.applied = append(f.applied, string(id)+":"+labelID)
	return nil
}

// fakeStore records saved provider IDs.
type fakeStore struct {
	saved []models.ProviderID
	err   error
}

func (f *fakeStore) Save(_ context.Context, rec *models.Record) error {
	if f.err != nil {
		return f.err
	}
	f.saved = append(f.saved, rec.ProviderID)
	return nil
}

var tierNames = map[models.Tier]string{
	models.TierLow:    "Threat-Low",
	models.TierMedium: "Threat-Medium",
	models.TierHigh:   "Threat-High",
}

func sealedRecord(t *testing.T) *models.Record {
	t.Helper()
	rec := models.NewRecord()
	rec.ProviderID = "msg-1"
	rec.MessageID = "<m1@example.com>"
	rec.From = "attacker@evil.example"
	rec.Subject = "urgent"
	if err := rec.Seal(47, models.TierHigh); err != nil {
		t.Fatal(err)
	}
	return rec
}

func TestPublish_FullDelivery(t *testing.T) {
	queue := &fakeQueue{}
	labels := &fakeLabels{}
	st := &fakeStore{}
	p := NewPublisher(queue, "verdicts", labels, st, tierNames)

	rec := sealedRecord(t)
	if err := p.Publish(context.Background(), rec); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	if len(labels.applied) != 1 || labels.applied[0] != "msg-1:id-Threat-High" {
		t.Errorf("applied = %v", labels.applied)
	}
	if len(st.saved) != 1 || st.saved[0] != "msg-1" {
		t.Errorf("saved = %v", st.saved)
	}
	if len(queue.pushed) != 1 {
		t.Fatalf("pushed = %v", queue.pushed)
	}

	var doc map[string]interface{}
	if err := json.Unmarshal([]byte(queue.pushed[0]), &doc); err != nil {
		t.Fatalf("queued document not JSON: %v", err)
	}
	if doc["provider_id"] != "msg-1" || doc["tier"] != "High" {
		t.Errorf("doc = %v", doc)
	}
	if doc["message_id"] != "m1@example.com" {
		t.Errorf("message_id = %v, want bare sanitized form", doc["message_id"])
	}
	if doc["score"].(float64) != 47 {
		t.Errorf("score = %v", doc["score"])
	}
	if doc["id"] == "" {
		t.Error("queued document has no delivery id")
	}
}

func TestPublish_RefusesUnsealedRecord(t *testing.T) {
	queue := &fakeQueue{}
	p := NewPublisher(queue, "verdicts", nil, nil, tierNames)

	rec := models.NewRecord()
	rec.ProviderID = "msg-1"
	if err := p.Publish(context.Background(), rec); err == nil {
		t.Fatal("unsealed record published")
	}
	if len(queue.pushed) != 0 {
		t.Errorf("pushed = %v, want nothing", queue.pushed)
	}
}

func TestPublish_LabelFailureIsNonFatal(t *testing.T) {
	for name, labels := range map[string]*fakeLabels{
		"resolve fails": {resolveErr: errors.New("provider down")},
		"apply fails":   {applyErr: errors.New("permission denied")},
	} {
		t.Run(name, func(t *testing.T) {
			queue := &fakeQueue{}
			st := &fakeStore{}
			p := NewPublisher(queue, "verdicts", labels, st, tierNames)

			if err := p.Publish(context.Background(), sealedRecord(t)); err != nil {
				t.Fatalf("Publish: %v", err)
			}
			if len(queue.pushed) != 1 {
				t.Error("label failure blocked the queue delivery")
			}
			if len(st.saved) != 1 {
				t.Error("label failure blocked persistence")
			}
		})
	}
}

func TestPublish_EmptyProviderIDSkipsLabel(t *testing.T) {
	queue := &fakeQueue{}
	labels := &fakeLabels{}
	p := NewPublisher(queue, "verdicts", labels, nil, tierNames)

	rec := models.NewRecord()
	if err := rec.Seal(0, models.TierLow); err != nil {
		t.Fatal(err)
	}

	if err := p.Publish(context.Background(), rec); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if len(labels.applied) != 0 {
		t.Errorf("applied = %v, want no label without a provider ID", labels.applied)
	}
	if len(queue.pushed) != 1 {
		t.Error("record without provider ID not forwarded")
	}
}

func TestPublish_QueueFailureIsFatal(t *testing.T) {
	p := NewPublisher(&fakeQueue{fail: true}, "verdicts", nil, &fakeStore{}, tierNames)

	if err := p.Publish(context.Background(), sealedRecord(t)); err == nil {
		t.Fatal("queue failure swallowed")
	}
}

func TestPublish_StoreFailureIsFatal(t *testing.T) {
	st := &fakeStore{err: errors.New("db down")}
	p := NewPublisher(&fakeQueue{}, "verdicts", nil, st, tierNames)

	if err := p.Publish(context.Background(), sealedRecord(t)); err == nil {
		t.Fatal("store failure swallowed")
	}
}
