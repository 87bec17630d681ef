package storage

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"liquidityZap/internal/model"
)

func TestJsonlSinkAppendsEvents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "hatches.jsonl")
	sink := NewJsonlSink(path)

	first := []model.HatchEvent{
		{EntityID: 1, Owner: "0xabc", PositionRef: "0x01", Created: true, Timestamp: 100},
		{EntityID: 1, Owner: "0xabc", PositionRef: "0x02", Created: false, Timestamp: 200},
	}
	if err := sink.PutHatchEvents(first); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := sink.PutHatchEvents([]model.HatchEvent{{EntityID: 2, Owner: "0xdef", Created: true}}); err != nil {
		t.Fatalf("put: %v", err)
	}

	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer file.Close()

	var got []model.HatchEvent
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var evt model.HatchEvent
		if err := json.Unmarshal(scanner.Bytes(), &evt); err != nil {
			t.Fatalf("parse line: %v", err)
		}
		got = append(got, evt)
	}
	if err := scanner.Err(); err != nil {
		t.Fatalf("scan: %v", err)
	}

	if len(got) != 3 {
		t.Fatalf("expected 3 events, got %d", len(got))
	}
	if got[1].PositionRef != "0x02" || got[1].Created {
		t.Fatalf("second event mismatch: %+v", got[1])
	}
	if got[2].EntityID != 2 {
		t.Fatalf("third event mismatch: %+v", got[2])
	}
}

func TestJsonlSinkEmptyBatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hatches.jsonl")
	sink := NewJsonlSink(path)

	if err := sink.PutHatchEvents(nil); err != nil {
		t.Fatalf("empty batch: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("empty batch created the file")
	}
}
