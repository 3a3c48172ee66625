// Package risk converts an actionable signal plus live account and volatility
// data into a concrete, bounded position size.
package risk

import (
	"math"
)

// RejectReason names why a decision was refused. Reasons are stable strings
// because they end up in audit records and metrics labels.
type RejectReason string

const (
	// ATRBounds means the supplied volatility was outside the accepted window.
	ATRBounds RejectReason = "atr_bounds"
	// BelowMinimumSize means the target risk cannot field a tradable size.
	BelowMinimumSize RejectReason = "below_minimum_size"
	// DailyCeiling means the day-level risk budget is exhausted.
	DailyCeiling RejectReason = "daily_ceiling"
	// ExecutionTimeout means the broker collaborator did not answer in time.
	ExecutionTimeout RejectReason = "execution_timeout"
	// BrokerRejected means the broker explicitly refused the order.
	BrokerRejected RejectReason = "broker_rejected"
	// PhaseRejected means the tracker refused the signal before sizing.
	PhaseRejected RejectReason = "phase_rejected"
)

// AccountState is the live balance snapshot a sizing decision runs against.
// It must be fetched fresh for every decision; balances move with every fill.
type AccountState struct {
	Balance    float64
	FreeMargin float64
	Currency   string
}

// Decision is the sizing outcome for one actionable signal.
type Decision struct {
	Units        float64
	RiskAmount   float64
	Accepted     bool
	RejectReason RejectReason
}

// Sizer applies the fixed fractional-risk rule under fixed ATR bounds.
type Sizer struct {
	RiskFraction float64
	MinATRPips   float64
	MaxATRPips   float64
}

// Defaults observed live; deployments override them in config.
const (
	DefaultRiskFraction = 0.0055
	DefaultMinATRPips   = 4
	DefaultMaxATRPips   = 15
)

// NewSizer builds a sizer, substituting defaults for unset fields.
func NewSizer(riskFraction, minATR, maxATR float64) Sizer {
	s := Sizer{RiskFraction: riskFraction, MinATRPips: minATR, MaxATRPips: maxATR}
	if s.RiskFraction <= 0 {
		s.RiskFraction = DefaultRiskFraction
	}
	if s.MinATRPips <= 0 {
		s.MinATRPips = DefaultMinATRPips
	}
	if s.MaxATRPips <= 0 {
		s.MaxATRPips = DefaultMaxATRPips
	}
	return s
}

// Size computes the position size for one accepted signal.
//
// targetRisk = balance * riskFraction, riskPerUnit = atrPips * usdPerPipPerUnit;
// raw units are clamped to the profile's broker bounds and rounded half-to-nearest
// to the unit step, and the audited risk amount is recomputed post-rounding so it
// reflects the actual exposure rather than the target.
func (s Sizer) Size(account AccountState, profile Profile, atrPips float64) Decision {
	if atrPips < s.MinATRPips || atrPips > s.MaxATRPips {
		return Decision{Accepted: false, RejectReason: ATRBounds}
	}

	targetRisk := account.Balance * s.RiskFraction
	riskPerUnit := atrPips * profile.USDPerPipPerUnit
	if riskPerUnit <= 0 {
		return Decision{Accepted: false, RejectReason: ATRBounds}
	}
	rawUnits := targetRisk / riskPerUnit
	if rawUnits < profile.MinUnits {
		return Decision{Accepted: false, RejectReason: BelowMinimumSize}
	}

	units := math.Min(rawUnits, profile.MaxUnits)
	units = roundToStep(units, profile.UnitStep)
	if units < profile.MinUnits {
		return Decision{Accepted: false, RejectReason: BelowMinimumSize}
	}

	return Decision{
		Units:      units,
		RiskAmount: units * riskPerUnit,
		Accepted:   true,
	}
}

// roundToStep rounds half-to-nearest onto the broker's unit granularity.
func roundToStep(units, step float64) float64 {
	if step <= 0 {
		return units
	}
	return math.Round(units/step) * step
}
