// Package channel implements the file mailbox protocol shared with the detector
// terminal. A mailbox is a single well-known path: the writer replaces the file
// atomically, the reader polls for it, and the reader deleting the file is the
// consumption acknowledgment. There is no other IPC primitive in play.
package channel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"bosgate/internal/signal"
)

// ErrNoSignal reports that the mailbox is empty, a normal condition while polling.
var ErrNoSignal = errors.New("no signal present")

// ErrNotConsumed reports that the counterpart did not pick the file up in time.
var ErrNotConsumed = errors.New("file not consumed before timeout")

// Channel owns one mailbox path and the dedup cursor for signals read from it.
type Channel struct {
	path          string
	pollInterval  time.Duration
	log           zerolog.Logger
	lastProcessed string
	processedAny  bool
}

// Option configures Channel construction parameters.
type Option func(*Channel)

const defaultPollInterval = 250 * time.Millisecond

// WithPollInterval overrides the consumption-poll cadence.
func WithPollInterval(d time.Duration) Option {
	return func(c *Channel) {
		if d > 0 {
			c.pollInterval = d
		}
	}
}

// New constructs a channel over the given mailbox path.
func New(path string, log zerolog.Logger, opts ...Option) *Channel {
	c := &Channel{
		path:         path,
		pollInterval: defaultPollInterval,
		log:          log,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Path returns the mailbox path the channel owns.
func (c *Channel) Path() string { return c.path }

// Write serializes the signal and replaces the mailbox file atomically: the
// payload goes to a temp sibling first, then renames over the target, so a
// concurrent reader sees either the old complete file or the new one.
func (c *Channel) Write(sig signal.Signal) error {
	data, err := json.Marshal(sig)
	if err != nil {
		return fmt.Errorf("marshal signal: %w", err)
	}
	return c.WriteRaw(data)
}

// WriteRaw performs the atomic-replace write with an already-encoded payload.
func (c *Channel) WriteRaw(data []byte) error {
	dir := filepath.Dir(c.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mailbox dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(c.path)+".tmp*")
	if err != nil {
		return fmt.Errorf("temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write payload: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("sync payload: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close payload: %w", err)
	}
	if err := os.Rename(tmpName, c.path); err != nil {
		// A failed rename must leave the previous file intact.
		os.Remove(tmpName)
		return fmt.Errorf("replace mailbox: %w", err)
	}
	return nil
}

// Read returns the current mailbox payload without blocking. Absence is
// ErrNoSignal; any other failure is returned for the caller to log and treat
// as an empty cycle.
func (c *Channel) Read() ([]byte, error) {
	data, err := os.ReadFile(c.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoSignal
		}
		return nil, fmt.Errorf("read mailbox: %w", err)
	}
	return data, nil
}

// AwaitConsumption polls until the mailbox file disappears, which by protocol
// convention means the counterpart picked it up. Returns ErrNotConsumed on
// timeout and the context error on cancellation.
func (c *Channel) AwaitConsumption(ctx context.Context, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()
	for {
		if _, err := os.Stat(c.path); os.IsNotExist(err) {
			return nil
		}
		if time.Now().After(deadline) {
			return ErrNotConsumed
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Seen reports whether the emittedAt key matches the last processed signal.
// Comparison is plain inequality: the field is an opaque dedup key, not a clock,
// so two empty keys are duplicates like any other equal pair.
func (c *Channel) Seen(emittedAt string) bool {
	return c.processedAny && emittedAt == c.lastProcessed
}

// MarkProcessed records the dedup key of the signal just handled.
func (c *Channel) MarkProcessed(emittedAt string) {
	c.lastProcessed = emittedAt
	c.processedAny = true
}
