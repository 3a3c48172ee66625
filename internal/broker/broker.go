// Package broker defines the narrow collaborator surface used to query the
// trading account and place orders, with a paper implementation for offline
// runs and a file-bridge implementation speaking the terminal's mailbox
// protocol.
package broker

import (
	"context"

	"bosgate/internal/risk"
	"bosgate/internal/signal"
)

// OrderRequest is one execution request handed to the collaborator. Stop and
// take-profit prices are computed by the caller, never by the collaborator.
type OrderRequest struct {
	Symbol          string           `json:"symbol"`
	Direction       signal.Direction `json:"direction"`
	Units           float64          `json:"units"`
	EntryPriceHint  float64          `json:"entry_price_hint"`
	StopLossPrice   float64          `json:"stop_loss_price"`
	TakeProfitPrice float64          `json:"take_profit_price"`
	ClientTag       string           `json:"client_tag"`
}

// OrderResult is the collaborator's answer to a placement request.
type OrderResult struct {
	Accepted  bool    `json:"accepted"`
	OrderID   string  `json:"order_id"`
	FillPrice float64 `json:"fill_price"`
	ErrorCode string  `json:"error_code,omitempty"`
	ClientTag string  `json:"client_tag,omitempty"`
}

// Broker is the execution collaborator. Both calls must respect the context
// deadline; a timeout is never evidence the order succeeded.
type Broker interface {
	Account(ctx context.Context) (risk.AccountState, error)
	Place(ctx context.Context, req OrderRequest) (OrderResult, error)
}
