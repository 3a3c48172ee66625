package gate

import (
	"sync"
	"time"
)

// DailyLimiter enforces the process-wide day-level risk ceiling. Reservation
// is a single locked read-increment-decide so two workers accepting trades
// concurrently cannot both pass the check against a stale counter.
type DailyLimiter struct {
	mu              sync.Mutex
	ceilingFraction float64
	day             int // year*1000 + day-of-year
	dayStartBalance float64
	reserved        float64
	now             func() time.Time
}

// NewDailyLimiter constructs a limiter with the given ceiling fraction of the
// day-start balance.
func NewDailyLimiter(ceilingFraction float64) *DailyLimiter {
	return &DailyLimiter{ceilingFraction: ceilingFraction, now: time.Now}
}

// Reserve atomically checks the ceiling and, if the risk amount fits, adds it
// to today's running total. The first reservation of a calendar day pins the
// day-start balance the ceiling is measured against.
func (l *DailyLimiter) Reserve(riskAmount, balance float64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.rollover(balance)
	ceiling := l.dayStartBalance * l.ceilingFraction
	if l.reserved+riskAmount > ceiling {
		return false
	}
	l.reserved += riskAmount
	return true
}

// Reserved reports the risk accepted so far today.
func (l *DailyLimiter) Reserved() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.reserved
}

// rollover resets the counter and re-bases the day-start balance when the
// calendar day changes. Caller holds the lock.
func (l *DailyLimiter) rollover(balance float64) {
	now := l.now()
	day := now.Year()*1000 + now.YearDay()
	if day != l.day {
		l.day = day
		l.dayStartBalance = balance
		l.reserved = 0
	}
}
