// Package phase validates that a candidate signal carries a complete, temporally
// ordered four-phase pattern before the sizing engine is allowed to see it.
package phase

import (
	"fmt"
	"time"

	"bosgate/internal/signal"
)

// State names the tracker position within the four-phase sequence.
type State int

const (
	AwaitingBreak State = iota
	AwaitingInitialBreak
	AwaitingRetest
	AwaitingTrigger
	Actionable
)

var stateNames = [...]string{
	"awaiting_break",
	"awaiting_initial_break",
	"awaiting_retest",
	"awaiting_trigger",
	"actionable",
}

func (s State) String() string {
	if s < AwaitingBreak || s > Actionable {
		return fmt.Sprintf("state(%d)", int(s))
	}
	return stateNames[s]
}

// Kind classifies an evaluation outcome.
type Kind int

const (
	// KindPending means the pattern is incomplete or was reset; wait for more.
	KindPending Kind = iota
	// KindActionable means all four phases lined up and the trigger fired.
	KindActionable
	// KindRejected means this signal instance can never become actionable.
	KindRejected
)

// Result is the outcome of evaluating one signal against the tracker.
type Result struct {
	Kind   Kind
	State  State
	Reason string
}

// instance is the live pattern for one symbol, keyed by the signal's dedup key.
type instance struct {
	emittedAt string
	state     State
}

// Tracker holds at most one live pattern instance per symbol. It is owned by a
// single gate worker and needs no locking of its own.
type Tracker struct {
	instances map[string]*instance
}

// NewTracker constructs an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{instances: make(map[string]*instance)}
}

// StateOf reports the tracked state for a symbol, AwaitingBreak when untracked.
func (t *Tracker) StateOf(symbol string) State {
	if inst, ok := t.instances[symbol]; ok {
		return inst.state
	}
	return AwaitingBreak
}

// Evaluate walks the signal's phases in order and advances the symbol's state
// machine. A new emitted_at for the symbol discards the previous instance.
// Out-of-order timestamps reset to AwaitingBreak and report Pending: stale
// detector output is routine, not a fault.
func (t *Tracker) Evaluate(sig signal.Signal) Result {
	inst, ok := t.instances[sig.Symbol]
	if !ok || inst.emittedAt != sig.EmittedAt {
		inst = &instance{emittedAt: sig.EmittedAt, state: AwaitingBreak}
		t.instances[sig.Symbol] = inst
	}
	if inst.state == Actionable {
		// Terminal for this instance; dedup upstream normally prevents this.
		return Result{Kind: KindRejected, State: Actionable, Reason: "signal instance already consumed"}
	}

	state, res := walkPhases(sig)
	if res != nil {
		if res.Kind == KindPending {
			inst.state = AwaitingBreak
		}
		return *res
	}
	inst.state = state
	if state == Actionable {
		return Result{Kind: KindActionable, State: Actionable}
	}
	return Result{Kind: KindPending, State: state}
}

// Reset drops the live instance for a symbol.
func (t *Tracker) Reset(symbol string) {
	delete(t.instances, symbol)
}

// walkPhases computes how far the phase sequence validly extends. A non-nil
// Result short-circuits with either a reset (Pending) or a rejection.
func walkPhases(sig signal.Signal) (State, *Result) {
	type step struct {
		name      string
		ts        string
		direction signal.Direction
		present   bool
	}
	p := sig.Phases
	steps := []step{
		{name: "structure_break"},
		{name: "initial_break"},
		{name: "retest"},
		{name: "offset_trigger"},
	}
	if p.StructureBreak != nil {
		steps[0].present, steps[0].ts, steps[0].direction = true, p.StructureBreak.Timestamp, p.StructureBreak.Direction
	}
	if p.InitialBreak != nil {
		steps[1].present, steps[1].ts, steps[1].direction = true, p.InitialBreak.Timestamp, p.InitialBreak.Direction
	}
	if p.Retest != nil {
		steps[2].present, steps[2].ts, steps[2].direction = true, p.Retest.Timestamp, p.Retest.Direction
	}
	if p.OffsetTrigger != nil {
		steps[3].present, steps[3].ts = true, p.OffsetTrigger.Timestamp
	}

	var prev time.Time
	state := AwaitingBreak
	for i, s := range steps {
		if !s.present {
			return state, nil
		}
		ts, ok := signal.ParseTimestamp(s.ts)
		if !ok {
			return state, &Result{Kind: KindRejected, State: state, Reason: fmt.Sprintf("%s: unreadable timestamp %q", s.name, s.ts)}
		}
		if s.direction != "" && s.direction != sig.Direction {
			return state, &Result{Kind: KindRejected, State: state, Reason: fmt.Sprintf("%s: direction %s contradicts signal %s", s.name, s.direction, sig.Direction)}
		}
		if i > 0 && ts.Before(prev) {
			return AwaitingBreak, &Result{Kind: KindPending, State: AwaitingBreak, Reason: fmt.Sprintf("%s precedes prior phase, tracker reset", s.name)}
		}
		prev = ts
		state = State(i + 1)
	}

	// All four phases ordered; the offset-trigger flag gates the final transition.
	if !sig.Phases.OffsetTrigger.Triggered {
		return AwaitingTrigger, nil
	}
	return Actionable, nil
}
