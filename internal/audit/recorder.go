// Package audit persists one immutable record per accepted-or-rejected
// actionable signal as JSON lines. Records carry a locally assigned sequence
// number so reconciliation has a total order independent of the untrusted
// detector timestamps.
package audit

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"bosgate/internal/risk"
	"bosgate/internal/signal"
)

// Record is the append-only decision snapshot.
type Record struct {
	Seq          uint64            `json:"seq"`
	DecidedAt    time.Time         `json:"decided_at"`
	Signal       signal.Signal     `json:"signal"`
	Units        float64           `json:"units"`
	RiskAmount   float64           `json:"risk_amount"`
	Accepted     bool              `json:"accepted"`
	RejectReason risk.RejectReason `json:"reject_reason,omitempty"`
	OrderID      string            `json:"order_id,omitempty"`
	FillPrice    float64           `json:"fill_price,omitempty"`
	ClientTag    string            `json:"client_tag,omitempty"`
}

// Recorder appends records as JSON lines, one per decision.
type Recorder struct {
	mu   sync.Mutex
	file *os.File
	enc  *json.Encoder
	seq  uint64
}

// NewRecorder creates/opens the target file. An existing file is scanned so
// sequence numbers keep increasing across process restarts.
func NewRecorder(path string) (*Recorder, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	seq, err := lastSeq(path)
	if err != nil {
		return nil, err
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	return &Recorder{
		file: file,
		enc:  json.NewEncoder(file),
		seq:  seq,
	}, nil
}

// Record assigns the next sequence number and appends the record. A write
// failure here is fatal to the calling worker, so it is surfaced, not dropped.
func (r *Recorder) Record(rec Record) (Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.file == nil {
		return rec, fmt.Errorf("recorder closed")
	}
	r.seq++
	rec.Seq = r.seq
	if rec.DecidedAt.IsZero() {
		rec.DecidedAt = time.Now().UTC()
	}
	if err := r.enc.Encode(rec); err != nil {
		return rec, fmt.Errorf("append audit record: %w", err)
	}
	return rec, nil
}

// Close flushes and closes the file handle.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.file == nil {
		return nil
	}
	err := r.file.Close()
	r.file = nil
	return err
}

// lastSeq reads the highest sequence number already present in the file.
func lastSeq(path string) (uint64, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}
	defer file.Close()

	var seq uint64
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		var rec struct {
			Seq uint64 `json:"seq"`
		}
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			continue // torn trailing line from a crash; sequence restarts past the last good one
		}
		if rec.Seq > seq {
			seq = rec.Seq
		}
	}
	return seq, scanner.Err()
}
