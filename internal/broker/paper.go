package broker

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"bosgate/internal/metrics"
	"bosgate/internal/risk"
)

// Paper is an in-process broker that fills every order at the entry hint and
// logs what a live collaborator would have been asked to do.
type Paper struct {
	mu       sync.Mutex
	balance  float64
	margin   float64
	currency string
	log      zerolog.Logger
}

// NewPaper constructs a paper broker with a starting balance.
func NewPaper(startingBalance float64, currency string, log zerolog.Logger) *Paper {
	return &Paper{
		balance:  startingBalance,
		margin:   startingBalance,
		currency: currency,
		log:      log,
	}
}

// Account returns the current paper balance snapshot.
func (p *Paper) Account(ctx context.Context) (risk.AccountState, error) {
	if err := ctx.Err(); err != nil {
		return risk.AccountState{}, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return risk.AccountState{Balance: p.balance, FreeMargin: p.margin, Currency: p.currency}, nil
}

// Place accepts the order unconditionally, fills at the hint price, and logs it.
func (p *Paper) Place(ctx context.Context, req OrderRequest) (OrderResult, error) {
	if err := ctx.Err(); err != nil {
		return OrderResult{}, err
	}
	if req.ClientTag == "" {
		req.ClientTag = uuid.NewString()
	}
	metrics.OrdersSubmittedTotal.WithLabelValues(req.Symbol, string(req.Direction)).Inc()
	p.log.Info().
		Str("sym", req.Symbol).
		Str("dir", string(req.Direction)).
		Float64("units", req.Units).
		Float64("sl", req.StopLossPrice).
		Float64("tp", req.TakeProfitPrice).
		Str("tag", req.ClientTag).
		Msg("paper fill")
	return OrderResult{
		Accepted:  true,
		OrderID:   uuid.NewString(),
		FillPrice: req.EntryPriceHint,
		ClientTag: req.ClientTag,
	}, nil
}

// ApplyPnL adjusts the paper balance, for drills that simulate closed trades.
func (p *Paper) ApplyPnL(amount float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.balance += amount
	p.margin += amount
}
