package phase

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bosgate/internal/signal"
)

func fullSignal(symbol, emittedAt string, ts [4]string, triggered bool) signal.Signal {
	return signal.Signal{
		Symbol:    symbol,
		EmittedAt: emittedAt,
		Direction: signal.Bull,
		Phases: signal.Phases{
			StructureBreak: &signal.PhaseRecord{Timestamp: ts[0], Price: 171.25, Direction: signal.Bull},
			InitialBreak:   &signal.PhaseRecord{Timestamp: ts[1], Price: 171.31},
			Retest:         &signal.PhaseRecord{Timestamp: ts[2], Price: 171.28},
			OffsetTrigger:  &signal.OffsetTrigger{Timestamp: ts[3], Target: 171.286, Current: 171.29, Triggered: triggered},
		},
		TriggerOffset: 0.6,
		Triggered:     triggered,
	}
}

var orderedTs = [4]string{
	"2025-08-04T08:00:00",
	"2025-08-04T08:10:00",
	"2025-08-04T08:20:00",
	"2025-08-04T08:30:00",
}

func TestActionableHappyPath(t *testing.T) {
	tr := NewTracker()
	res := tr.Evaluate(fullSignal("EURJPY", "e1", orderedTs, true))
	require.Equal(t, KindActionable, res.Kind)
	assert.Equal(t, Actionable, res.State)
	assert.Equal(t, Actionable, tr.StateOf("EURJPY"))
}

func TestTriggerFalseHoldsAtAwaitingTrigger(t *testing.T) {
	tr := NewTracker()
	res := tr.Evaluate(fullSignal("EURJPY", "e1", orderedTs, false))
	require.Equal(t, KindPending, res.Kind)
	assert.Equal(t, AwaitingTrigger, res.State)
}

func TestPartialPhasesArePending(t *testing.T) {
	tr := NewTracker()
	sig := fullSignal("EURJPY", "e1", orderedTs, true)
	sig.Phases.Retest = nil
	sig.Phases.OffsetTrigger = nil
	res := tr.Evaluate(sig)
	require.Equal(t, KindPending, res.Kind)
	assert.Equal(t, AwaitingRetest, res.State)
}

// Exhaustive permutation check: with four distinct timestamps assigned to the
// four phases, the tracker may reach Actionable only for the sorted assignment.
func TestTimestampPermutationsExhaustive(t *testing.T) {
	base := []string{
		"2025-08-04T08:00:00",
		"2025-08-04T08:10:00",
		"2025-08-04T08:20:00",
		"2025-08-04T08:30:00",
	}
	perms := permutations([]int{0, 1, 2, 3})
	actionable := 0
	for _, p := range perms {
		var ts [4]string
		for i, idx := range p {
			ts[i] = base[idx]
		}
		tr := NewTracker()
		res := tr.Evaluate(fullSignal("EURJPY", "e1", ts, true))
		if sort.IntsAreSorted(p) {
			require.Equal(t, KindActionable, res.Kind, "sorted permutation %v", p)
			actionable++
		} else {
			require.NotEqual(t, KindActionable, res.Kind, "unsorted permutation %v", p)
			assert.Equal(t, AwaitingBreak, tr.StateOf("EURJPY"), "tracker must reset for %v", p)
		}
	}
	assert.Equal(t, 1, actionable)
	assert.Len(t, perms, 24)
}

func TestEqualTimestampsStillActionable(t *testing.T) {
	// Non-decreasing, not strictly increasing: ties are legal.
	ts := [4]string{orderedTs[0], orderedTs[0], orderedTs[2], orderedTs[2]}
	tr := NewTracker()
	res := tr.Evaluate(fullSignal("EURJPY", "e1", ts, true))
	require.Equal(t, KindActionable, res.Kind)
}

func TestOutOfOrderResetsNotRejects(t *testing.T) {
	ts := orderedTs
	ts[1], ts[2] = ts[2], ts[1]
	tr := NewTracker()
	res := tr.Evaluate(fullSignal("EURJPY", "e1", ts, true))
	require.Equal(t, KindPending, res.Kind)
	assert.Equal(t, AwaitingBreak, res.State)
}

func TestUnreadableTimestampRejects(t *testing.T) {
	ts := orderedTs
	ts[2] = "yesterday-ish"
	tr := NewTracker()
	res := tr.Evaluate(fullSignal("EURJPY", "e1", ts, true))
	require.Equal(t, KindRejected, res.Kind)
	assert.Contains(t, res.Reason, "retest")
}

func TestContradictingPhaseDirectionRejects(t *testing.T) {
	sig := fullSignal("EURJPY", "e1", orderedTs, true)
	sig.Phases.StructureBreak.Direction = signal.Bear
	tr := NewTracker()
	res := tr.Evaluate(sig)
	require.Equal(t, KindRejected, res.Kind)
}

func TestNewEmittedAtReplacesInstance(t *testing.T) {
	tr := NewTracker()
	res := tr.Evaluate(fullSignal("EURJPY", "e1", orderedTs, true))
	require.Equal(t, KindActionable, res.Kind)

	// Same instance again: terminal, rejected as already consumed.
	res = tr.Evaluate(fullSignal("EURJPY", "e1", orderedTs, true))
	require.Equal(t, KindRejected, res.Kind)

	// Fresh emitted_at starts a new machine for the symbol.
	res = tr.Evaluate(fullSignal("EURJPY", "e2", orderedTs, true))
	require.Equal(t, KindActionable, res.Kind)
}

func TestSymbolsAreIsolated(t *testing.T) {
	tr := NewTracker()
	res := tr.Evaluate(fullSignal("EURJPY", "e1", orderedTs, true))
	require.Equal(t, KindActionable, res.Kind)

	pending := fullSignal("GBPUSD", "e1", orderedTs, false)
	res = tr.Evaluate(pending)
	require.Equal(t, KindPending, res.Kind)
	assert.Equal(t, Actionable, tr.StateOf("EURJPY"))
	assert.Equal(t, AwaitingTrigger, tr.StateOf("GBPUSD"))
}

func TestFalseThenTrueSameEmittedAt(t *testing.T) {
	tr := NewTracker()
	first := tr.Evaluate(fullSignal("GBPUSD", "2025-08-04T08:30:00", orderedTs, false))
	require.Equal(t, KindPending, first.Kind)

	second := tr.Evaluate(fullSignal("GBPUSD", "2025-08-04T08:30:00", orderedTs, true))
	require.Equal(t, KindActionable, second.Kind)
}

func TestReset(t *testing.T) {
	tr := NewTracker()
	tr.Evaluate(fullSignal("EURJPY", "e1", orderedTs, false))
	tr.Reset("EURJPY")
	assert.Equal(t, AwaitingBreak, tr.StateOf("EURJPY"))
}

func permutations(in []int) [][]int {
	if len(in) <= 1 {
		return [][]int{append([]int(nil), in...)}
	}
	var out [][]int
	for i := range in {
		rest := make([]int, 0, len(in)-1)
		rest = append(rest, in[:i]...)
		rest = append(rest, in[i+1:]...)
		for _, tail := range permutations(rest) {
			out = append(out, append([]int{in[i]}, tail...))
		}
	}
	return out
}
