package commandbroker

import (
	"testing"

	"github.com/google/uuid"
)

func TestDefaultIDGeneratorProducesUniqueMonotonicIDs(t *testing.T) {
	seen := make(map[string]bool)
	var prev string
	var prevTime uuid.Time
	for i := 0; i < 100; i++ {
		id, err := DefaultIDGenerator()
		if err != nil {
			t.Fatalf("DefaultIDGenerator: %v", err)
		}
		if seen[id] {
			t.Fatalf("duplicate id %s", id)
		}
		seen[id] = true
		if id == prev {
			t.Fatalf("expected a new id, got repeat %s", id)
		}
		u, err := uuid.Parse(id)
		if err != nil {
			t.Fatalf("uuid.Parse(%s): %v", id, err)
		}
		if i > 0 && u.Time() < prevTime {
			t.Fatalf("id %s carries an earlier timestamp than the id before it", id)
		}
		prevTime = u.Time()
		prev = id
	}
}

func TestCommandFromRecord(t *testing.T) {
	rec := LogRecord{
		Topic:     "commands",
		Key:       "id-1",
		Value:     RecordValue{Action: "ship", Data: map[string]any{"sku": "x"}},
		Partition: 0,
		Offset:    7,
		Timestamp: 1000,
	}
	cmd := CommandFromRecord(rec)
	if cmd.ID != "id-1" || cmd.Action != "ship" || cmd.Offset != 7 || cmd.Timestamp != 1000 {
		t.Fatalf("unexpected command: %+v", cmd)
	}
}

func TestEventFromRecord(t *testing.T) {
	rec := LogRecord{
		Topic:  "events",
		Key:    "evt-1",
		Value:  RecordValue{Action: "shipped", Parent: "id-1"},
		Offset: 9,
	}
	evt := EventFromRecord(rec)
	if evt.ID != "evt-1" || evt.Parent != "id-1" || evt.Action != "shipped" || evt.Offset != 9 {
		t.Fatalf("unexpected event: %+v", evt)
	}
}
