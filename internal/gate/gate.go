// Package gate runs the compliance loop: poll a signal mailbox, validate the
// four-phase pattern, size the position, enforce per-trade and per-day risk
// ceilings, and emit exactly one audit record per actionable signal.
package gate

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"bosgate/internal/audit"
	"bosgate/internal/broker"
	"bosgate/internal/channel"
	"bosgate/internal/codec"
	"bosgate/internal/metrics"
	"bosgate/internal/phase"
	"bosgate/internal/risk"
	"bosgate/internal/signal"
)

// ATRSource supplies the externally measured volatility for a symbol, in pips.
type ATRSource interface {
	ATRPips(ctx context.Context, symbol string) (float64, error)
}

// StaticATR serves fixed per-symbol values from configuration.
type StaticATR map[string]float64

// ATRPips returns the configured value for the symbol, zero when absent.
func (s StaticATR) ATRPips(_ context.Context, symbol string) (float64, error) {
	return s[symbol], nil
}

// Worker owns one mailbox and its tracker; workers share only the daily
// limiter and the audit recorder, both safe for concurrent use.
type Worker struct {
	Symbol        string
	Channel       *channel.Channel
	Tracker       *phase.Tracker
	Sizer         risk.Sizer
	Classifier    *risk.Classifier
	Broker        broker.Broker
	Recorder      *audit.Recorder
	Limiter       *DailyLimiter
	ATR           ATRSource
	Log           zerolog.Logger
	PollInterval  time.Duration
	BrokerTimeout time.Duration
	RewardRisk    float64
}

// Run polls the mailbox until the context is canceled. The in-flight
// iteration always completes; a decision is never left accepted-but-unaudited.
// Only an audit-write failure stops the worker early.
func (w *Worker) Run(ctx context.Context) error {
	if w.PollInterval <= 0 {
		w.PollInterval = 250 * time.Millisecond
	}
	if w.BrokerTimeout <= 0 {
		w.BrokerTimeout = 5 * time.Second
	}
	if w.RewardRisk <= 0 {
		w.RewardRisk = 2.0
	}
	ticker := time.NewTicker(w.PollInterval)
	defer ticker.Stop()

	w.Log.Info().Str("mailbox", w.Channel.Path()).Msg("gate worker started")
	for {
		select {
		case <-ctx.Done():
			w.Log.Info().Msg("gate worker stopped")
			return ctx.Err()
		case <-ticker.C:
			if err := w.Tick(ctx); err != nil {
				w.Log.Error().Err(err).Msg("worker fatal")
				return err
			}
		}
	}
}

// Tick runs one polling iteration. The returned error is non-nil only for
// worker-fatal conditions; routine decode and phase noise is absorbed here.
func (w *Worker) Tick(ctx context.Context) error {
	raw, err := w.Channel.Read()
	if err != nil {
		if !errors.Is(err, channel.ErrNoSignal) {
			w.Log.Warn().Err(err).Msg("mailbox read failed, skipping cycle")
		}
		return nil
	}

	sig, err := codec.Decode(raw)
	if err != nil {
		var derr *codec.DecodeError
		kind := "malformed"
		if errors.As(err, &derr) {
			kind = derr.Kind.String()
		}
		metrics.DecodeFailuresTotal.WithLabelValues(kind).Inc()
		w.Log.Warn().Err(err).Msg("undecodable payload, skipping cycle")
		return nil
	}
	metrics.SignalsDecodedTotal.WithLabelValues(sig.Symbol).Inc()

	if w.Channel.Seen(sig.EmittedAt) {
		return nil // retransmit of a processed signal, silently dropped
	}

	res := w.Tracker.Evaluate(sig)
	switch res.Kind {
	case phase.KindPending:
		w.Log.Debug().Str("state", res.State.String()).Str("reason", res.Reason).Msg("pattern pending")
		return nil
	case phase.KindRejected:
		if res.State == phase.Actionable {
			// Dedup backstop: this instance was already finalized and audited.
			return nil
		}
		w.Log.Info().Str("reason", res.Reason).Msg("pattern rejected")
		return w.finalize(sig, audit.Record{
			Signal:       sig,
			Accepted:     false,
			RejectReason: risk.PhaseRejected,
		}, "rejected")
	}

	return w.decide(ctx, sig)
}

// decide sizes an actionable signal, applies the day ceiling, and executes.
func (w *Worker) decide(ctx context.Context, sig signal.Signal) error {
	profile, ok := w.Classifier.Resolve(sig.Symbol)
	if !ok {
		w.Log.Error().Str("sym", sig.Symbol).Msg("no asset profile")
		return w.finalize(sig, audit.Record{Signal: sig, Accepted: false, RejectReason: risk.PhaseRejected}, "rejected")
	}

	bctx, cancel := context.WithTimeout(ctx, w.BrokerTimeout)
	account, err := w.Broker.Account(bctx)
	cancel()
	if err != nil {
		w.Log.Error().Err(err).Msg("account query failed")
		return w.finalize(sig, audit.Record{Signal: sig, Accepted: false, RejectReason: risk.ExecutionTimeout}, "rejected")
	}

	atr, err := w.ATR.ATRPips(ctx, sig.Symbol)
	if err != nil {
		w.Log.Error().Err(err).Msg("atr source failed")
		return w.finalize(sig, audit.Record{Signal: sig, Accepted: false, RejectReason: risk.ATRBounds}, "rejected")
	}

	decision := w.Sizer.Size(account, profile, atr)
	if !decision.Accepted {
		return w.finalize(sig, audit.Record{
			Signal:       sig,
			Accepted:     false,
			RejectReason: decision.RejectReason,
		}, "rejected")
	}

	if !w.Limiter.Reserve(decision.RiskAmount, account.Balance) {
		return w.finalize(sig, audit.Record{
			Signal:       sig,
			Units:        decision.Units,
			RiskAmount:   decision.RiskAmount,
			Accepted:     false,
			RejectReason: risk.DailyCeiling,
		}, "rejected")
	}

	return w.execute(ctx, sig, decision, profile, atr)
}

// execute hands the sized order to the collaborator and audits the outcome.
func (w *Worker) execute(ctx context.Context, sig signal.Signal, decision risk.Decision, profile risk.Profile, atr float64) error {
	entry := entryHint(sig)
	stopDistance := atr * profile.PipSize
	req := broker.OrderRequest{
		Symbol:         sig.Symbol,
		Direction:      sig.Direction,
		Units:          decision.Units,
		EntryPriceHint: entry,
		ClientTag:      uuid.NewString(),
	}
	if sig.Direction == signal.Bull {
		req.StopLossPrice = entry - stopDistance
		req.TakeProfitPrice = entry + stopDistance*w.RewardRisk
	} else {
		req.StopLossPrice = entry + stopDistance
		req.TakeProfitPrice = entry - stopDistance*w.RewardRisk
	}

	bctx, cancel := context.WithTimeout(ctx, w.BrokerTimeout)
	result, err := w.Broker.Place(bctx, req)
	cancel()

	rec := audit.Record{
		Signal:     sig,
		Units:      decision.Units,
		RiskAmount: decision.RiskAmount,
		ClientTag:  req.ClientTag,
	}
	switch {
	case err != nil:
		// A timeout is not evidence the order succeeded; reject and audit.
		w.Log.Error().Err(err).Str("tag", req.ClientTag).Msg("execution failed")
		rec.Accepted = false
		rec.RejectReason = risk.ExecutionTimeout
		return w.finalize(sig, rec, "rejected")
	case !result.Accepted:
		w.Log.Error().Str("code", result.ErrorCode).Str("tag", req.ClientTag).Msg("broker rejected order")
		rec.Accepted = false
		rec.RejectReason = risk.BrokerRejected
		return w.finalize(sig, rec, "rejected")
	default:
		rec.Accepted = true
		rec.OrderID = result.OrderID
		rec.FillPrice = result.FillPrice
		w.Log.Info().
			Str("order", result.OrderID).
			Float64("units", decision.Units).
			Float64("risk", decision.RiskAmount).
			Msg("order executed")
		return w.finalize(sig, rec, "accepted")
	}
}

// finalize writes the audit record and advances the dedup cursor. Rejected
// signals are never retried; a fresh emitted_at is required.
func (w *Worker) finalize(sig signal.Signal, rec audit.Record, outcome string) error {
	metrics.DecisionsTotal.WithLabelValues(sig.Symbol, outcome).Inc()
	if rec.RejectReason != "" {
		metrics.RejectionsTotal.WithLabelValues(string(rec.RejectReason)).Inc()
	}
	w.Channel.MarkProcessed(sig.EmittedAt)
	if _, err := w.Recorder.Record(rec); err != nil {
		return err
	}
	return nil
}

// entryHint picks the freshest price the signal carries.
func entryHint(sig signal.Signal) float64 {
	if ot := sig.Phases.OffsetTrigger; ot != nil && ot.Current > 0 {
		return ot.Current
	}
	if sig.Phases.Retest != nil {
		return sig.Phases.Retest.Price
	}
	return 0
}
