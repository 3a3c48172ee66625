package audit

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"bosgate/internal/risk"
	"bosgate/internal/signal"
)

func TestRecordAssignsMonotonicSeq(t *testing.T) {
	path := filepath.Join(t.TempDir(), "decisions.jsonl")
	recorder, err := NewRecorder(path)
	if err != nil {
		t.Fatalf("NewRecorder error: %v", err)
	}
	defer recorder.Close()

	for i := 1; i <= 3; i++ {
		rec, err := recorder.Record(Record{
			Signal:   signal.Signal{Symbol: "EURJPY", EmittedAt: "e1", Direction: signal.Bull},
			Accepted: true,
			Units:    0.68,
		})
		if err != nil {
			t.Fatalf("Record error: %v", err)
		}
		if rec.Seq != uint64(i) {
			t.Fatalf("expected seq %d, got %d", i, rec.Seq)
		}
		if rec.DecidedAt.IsZero() {
			t.Fatalf("expected DecidedAt to be stamped")
		}
	}
}

func TestSeqContinuesAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "decisions.jsonl")

	recorder, err := NewRecorder(path)
	if err != nil {
		t.Fatalf("NewRecorder error: %v", err)
	}
	if _, err := recorder.Record(Record{Accepted: false, RejectReason: risk.ATRBounds}); err != nil {
		t.Fatalf("Record error: %v", err)
	}
	if _, err := recorder.Record(Record{Accepted: true}); err != nil {
		t.Fatalf("Record error: %v", err)
	}
	if err := recorder.Close(); err != nil {
		t.Fatalf("Close error: %v", err)
	}

	reopened, err := NewRecorder(path)
	if err != nil {
		t.Fatalf("reopen error: %v", err)
	}
	defer reopened.Close()
	rec, err := reopened.Record(Record{Accepted: true})
	if err != nil {
		t.Fatalf("Record after reopen error: %v", err)
	}
	if rec.Seq != 3 {
		t.Fatalf("expected seq 3 after reopen, got %d", rec.Seq)
	}
}

func TestRecordsAreValidJSONLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "decisions.jsonl")
	recorder, err := NewRecorder(path)
	if err != nil {
		t.Fatalf("NewRecorder error: %v", err)
	}
	if _, err := recorder.Record(Record{
		Signal:       signal.Signal{Symbol: "GBPUSD", EmittedAt: "2025-08-04T08:30:00", Direction: signal.Bear},
		Accepted:     false,
		RejectReason: risk.DailyCeiling,
		RiskAmount:   0,
	}); err != nil {
		t.Fatalf("Record error: %v", err)
	}
	if err := recorder.Close(); err != nil {
		t.Fatalf("Close error: %v", err)
	}

	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("open recorded file: %v", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	if !scanner.Scan() {
		t.Fatalf("expected one line in recorder output")
	}
	var decoded Record
	if err := json.Unmarshal(scanner.Bytes(), &decoded); err != nil {
		t.Fatalf("json decode: %v", err)
	}
	if decoded.Signal.Symbol != "GBPUSD" || decoded.RejectReason != risk.DailyCeiling {
		t.Fatalf("unexpected decoded record: %+v", decoded)
	}
	if scanner.Scan() {
		t.Fatalf("expected exactly one line")
	}
}

func TestRecordAfterCloseFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "decisions.jsonl")
	recorder, err := NewRecorder(path)
	if err != nil {
		t.Fatalf("NewRecorder error: %v", err)
	}
	if err := recorder.Close(); err != nil {
		t.Fatalf("Close error: %v", err)
	}
	if _, err := recorder.Record(Record{}); err == nil {
		t.Fatalf("expected error from closed recorder")
	}
}
