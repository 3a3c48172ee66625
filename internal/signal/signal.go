// Package signal standardizes the pattern payloads exchanged with the detector terminal.
package signal

import (
	"strconv"
	"strings"
	"time"
)

// Direction expresses the bias carried by a pattern signal.
type Direction string

const (
	// Bull marks an upward structure break.
	Bull Direction = "BULL"
	// Bear marks a downward structure break.
	Bear Direction = "BEAR"
)

// Valid reports whether the direction is one of the two known biases.
func (d Direction) Valid() bool { return d == Bull || d == Bear }

// PhaseRecord captures one completed phase of the four-phase pattern.
type PhaseRecord struct {
	Timestamp string    `json:"timestamp"`
	Price     float64   `json:"price"`
	Direction Direction `json:"direction,omitempty"`
}

// OffsetTrigger is the fourth phase: price must clear a fixed offset past the retest.
type OffsetTrigger struct {
	Timestamp string  `json:"timestamp"`
	Target    float64 `json:"target"`
	Current   float64 `json:"current"`
	Triggered bool    `json:"triggered"`
}

// Phases groups the four phase records; absent phases are nil.
type Phases struct {
	StructureBreak *PhaseRecord   `json:"structure_break,omitempty"`
	InitialBreak   *PhaseRecord   `json:"initial_break,omitempty"`
	Retest         *PhaseRecord   `json:"retest,omitempty"`
	OffsetTrigger  *OffsetTrigger `json:"offset_trigger,omitempty"`
}

// Signal is one detector message, consumed at most once per EmittedAt value.
type Signal struct {
	Symbol        string    `json:"symbol"`
	EmittedAt     string    `json:"emitted_at"` // opaque dedup key, not a trusted clock
	Direction     Direction `json:"direction"`
	Phases        Phases    `json:"phases"`
	TriggerOffset float64   `json:"trigger_offset"`
	Triggered     bool      `json:"triggered"`
}

// Complete reports whether all four phases are present.
func (s Signal) Complete() bool {
	p := s.Phases
	return p.StructureBreak != nil && p.InitialBreak != nil && p.Retest != nil && p.OffsetTrigger != nil
}

// timestampLayouts covers the formats the detector has been observed to emit.
var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006.01.02 15:04:05",
	"2006.01.02 15:04",
}

// ParseTimestamp interprets a detector timestamp string, accepting the known
// layouts plus integer epoch seconds. Returns false when nothing matches.
func ParseTimestamp(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts, true
		}
	}
	if secs, err := strconv.ParseInt(raw, 10, 64); err == nil && secs > 0 {
		return time.Unix(secs, 0).UTC(), true
	}
	return time.Time{}, false
}
