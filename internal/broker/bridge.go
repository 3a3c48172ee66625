package broker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"bosgate/internal/channel"
	"bosgate/internal/codec"
	"bosgate/internal/metrics"
	"bosgate/internal/risk"
)

// request is the envelope written into the terminal's command mailbox.
type request struct {
	Type  string        `json:"type"` // "order" | "account"
	Tag   string        `json:"tag"`
	Order *OrderRequest `json:"order,omitempty"`
}

// accountResult is the terminal's answer to an account query.
type accountResult struct {
	Tag        string  `json:"tag"`
	Balance    float64 `json:"balance"`
	FreeMargin float64 `json:"free_margin"`
	Currency   string  `json:"currency"`
}

// FileBridge speaks the mailbox protocol with the trading terminal: it writes
// a command file the terminal consumes (deletion is the pickup ack) and polls
// a result mailbox the terminal writes. Results are matched by tag; the bridge
// never deletes the result file, it only remembers which tag it last honored.
type FileBridge struct {
	command        *channel.Channel
	result         *channel.Channel
	pollInterval   time.Duration
	consumeTimeout time.Duration
	log            zerolog.Logger
}

// NewFileBridge wires the bridge over the two mailboxes. consumeTimeout bounds
// how long a written command may sit unconsumed before the exchange is abandoned.
func NewFileBridge(command, result *channel.Channel, pollInterval, consumeTimeout time.Duration, log zerolog.Logger) *FileBridge {
	if pollInterval <= 0 {
		pollInterval = 100 * time.Millisecond
	}
	if consumeTimeout <= 0 {
		consumeTimeout = 10 * time.Second
	}
	return &FileBridge{command: command, result: result, pollInterval: pollInterval, consumeTimeout: consumeTimeout, log: log}
}

// Account queries the terminal for a fresh balance snapshot.
func (b *FileBridge) Account(ctx context.Context) (risk.AccountState, error) {
	tag := uuid.NewString()
	raw, err := b.roundTrip(ctx, request{Type: "account", Tag: tag}, tag)
	if err != nil {
		return risk.AccountState{}, err
	}
	var res accountResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return risk.AccountState{}, fmt.Errorf("account result: %w", err)
	}
	return risk.AccountState{Balance: res.Balance, FreeMargin: res.FreeMargin, Currency: res.Currency}, nil
}

// Place submits an order through the command mailbox and waits for the result.
func (b *FileBridge) Place(ctx context.Context, req OrderRequest) (OrderResult, error) {
	if req.ClientTag == "" {
		req.ClientTag = uuid.NewString()
	}
	metrics.OrdersSubmittedTotal.WithLabelValues(req.Symbol, string(req.Direction)).Inc()
	raw, err := b.roundTrip(ctx, request{Type: "order", Tag: req.ClientTag, Order: &req}, req.ClientTag)
	if err != nil {
		return OrderResult{}, err
	}
	var res OrderResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return OrderResult{}, fmt.Errorf("order result: %w", err)
	}
	return res, nil
}

// roundTrip writes one command, waits for the terminal to consume it, then
// polls the result mailbox for a payload carrying the matching tag.
func (b *FileBridge) roundTrip(ctx context.Context, req request, tag string) ([]byte, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal command: %w", err)
	}
	if err := b.command.WriteRaw(payload); err != nil {
		return nil, err
	}
	wait := b.consumeTimeout
	if deadline, ok := ctx.Deadline(); ok {
		if until := time.Until(deadline); until < wait {
			wait = until
		}
	}
	if err := b.command.AwaitConsumption(ctx, wait); err != nil {
		return nil, fmt.Errorf("command not consumed: %w", err)
	}
	return b.pollResult(ctx, tag)
}

func (b *FileBridge) pollResult(ctx context.Context, tag string) ([]byte, error) {
	ticker := time.NewTicker(b.pollInterval)
	defer ticker.Stop()
	for {
		raw, err := b.result.Read()
		switch {
		case err == nil:
			obj, exErr := codec.Extract(raw)
			if exErr != nil {
				b.log.Warn().Err(exErr).Msg("unreadable result payload")
				break
			}
			var envelope struct {
				Tag       string `json:"tag"`
				ClientTag string `json:"client_tag"`
			}
			if err := json.Unmarshal(obj, &envelope); err != nil {
				b.log.Warn().Err(err).Msg("result payload not an object")
				break
			}
			if envelope.Tag == tag || envelope.ClientTag == tag {
				return obj, nil
			}
			// Stale result from an earlier exchange; keep polling.
		case errors.Is(err, channel.ErrNoSignal):
		default:
			b.log.Warn().Err(err).Msg("result mailbox read failed")
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
