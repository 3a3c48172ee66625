package channel

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"bosgate/internal/signal"
)

func newTestChannel(t *testing.T) *Channel {
	t.Helper()
	path := filepath.Join(t.TempDir(), "signals", "eurjpy.json")
	return New(path, zerolog.Nop(), WithPollInterval(5*time.Millisecond))
}

func TestWriteThenRead(t *testing.T) {
	ch := newTestChannel(t)
	sig := signal.Signal{Symbol: "EURJPY", EmittedAt: "2025-08-04T08:30:00", Direction: signal.Bull}
	if err := ch.Write(sig); err != nil {
		t.Fatalf("Write returned error: %v", err)
	}

	data, err := ch.Read()
	if err != nil {
		t.Fatalf("Read returned error: %v", err)
	}
	var got signal.Signal
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("payload not valid JSON: %v", err)
	}
	if got.Symbol != "EURJPY" || got.EmittedAt != sig.EmittedAt {
		t.Fatalf("unexpected round-trip: %+v", got)
	}
}

func TestWriteLeavesNoTempFiles(t *testing.T) {
	ch := newTestChannel(t)
	if err := ch.Write(signal.Signal{Symbol: "EURJPY", Direction: signal.Bull}); err != nil {
		t.Fatalf("Write returned error: %v", err)
	}
	entries, err := os.ReadDir(filepath.Dir(ch.Path()))
	if err != nil {
		t.Fatalf("read mailbox dir: %v", err)
	}
	for _, e := range entries {
		if strings.Contains(e.Name(), ".tmp") {
			t.Fatalf("temp file left behind: %s", e.Name())
		}
	}
	if len(entries) != 1 {
		t.Fatalf("expected exactly the mailbox file, got %d entries", len(entries))
	}
}

func TestReadAbsentIsErrNoSignal(t *testing.T) {
	ch := newTestChannel(t)
	if _, err := ch.Read(); !errors.Is(err, ErrNoSignal) {
		t.Fatalf("expected ErrNoSignal, got %v", err)
	}
}

func TestAwaitConsumption(t *testing.T) {
	ch := newTestChannel(t)
	if err := ch.Write(signal.Signal{Symbol: "EURJPY", Direction: signal.Bull}); err != nil {
		t.Fatalf("Write returned error: %v", err)
	}

	go func() {
		time.Sleep(20 * time.Millisecond)
		os.Remove(ch.Path())
	}()
	if err := ch.AwaitConsumption(context.Background(), time.Second); err != nil {
		t.Fatalf("expected consumption, got %v", err)
	}
}

func TestAwaitConsumptionTimeout(t *testing.T) {
	ch := newTestChannel(t)
	if err := ch.Write(signal.Signal{Symbol: "EURJPY", Direction: signal.Bull}); err != nil {
		t.Fatalf("Write returned error: %v", err)
	}
	if err := ch.AwaitConsumption(context.Background(), 25*time.Millisecond); !errors.Is(err, ErrNotConsumed) {
		t.Fatalf("expected ErrNotConsumed, got %v", err)
	}
}

func TestAwaitConsumptionHonorsContext(t *testing.T) {
	ch := newTestChannel(t)
	if err := ch.Write(signal.Signal{Symbol: "EURJPY", Direction: signal.Bull}); err != nil {
		t.Fatalf("Write returned error: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := ch.AwaitConsumption(ctx, time.Second); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestDedupByInequality(t *testing.T) {
	ch := newTestChannel(t)
	if ch.Seen("2025-08-04T08:30:00") {
		t.Fatalf("nothing processed yet")
	}
	ch.MarkProcessed("2025-08-04T08:30:00")
	if !ch.Seen("2025-08-04T08:30:00") {
		t.Fatalf("identical key must be a duplicate")
	}
	// An older-looking key is still new: inequality, not recency.
	if ch.Seen("2025-08-04T08:00:00") {
		t.Fatalf("different key must not be a duplicate")
	}
	if ch.Seen("") {
		t.Fatalf("empty key differs from the processed one")
	}
	ch.MarkProcessed("")
	if !ch.Seen("") {
		t.Fatalf("equal empty keys are duplicates like any other pair")
	}
}

// Concurrent writers replacing the mailbox while a reader polls: every
// successful read must observe a complete JSON payload, never a torn one.
func TestAtomicReplaceUnderConcurrency(t *testing.T) {
	ch := newTestChannel(t)
	stop := make(chan struct{})
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; ; i++ {
			select {
			case <-stop:
				return
			default:
			}
			sig := signal.Signal{Symbol: "EURJPY", EmittedAt: time.Now().Format(time.RFC3339Nano), Direction: signal.Bull, TriggerOffset: float64(i)}
			if err := ch.Write(sig); err != nil {
				t.Errorf("Write returned error: %v", err)
				return
			}
		}
	}()

	reads := 0
	deadline := time.Now().Add(200 * time.Millisecond)
	for time.Now().Before(deadline) {
		data, err := ch.Read()
		if errors.Is(err, ErrNoSignal) {
			continue
		}
		if err != nil {
			t.Fatalf("Read returned error: %v", err)
		}
		var got signal.Signal
		if err := json.Unmarshal(data, &got); err != nil {
			t.Fatalf("torn read observed: %v", err)
		}
		reads++
	}
	close(stop)
	wg.Wait()
	if reads == 0 {
		t.Fatalf("expected at least one successful read")
	}
}
