package marketdata

import (
	"context"
	"fmt"
	"time"
)

// Quote is the most recent trade for a symbol.
type Quote struct {
	Symbol    string    `json:"symbol"`
	Price     float64   `json:"price"`
	Timestamp time.Time `json:"timestamp"`
}

// Provider supplies the market snapshots triggers are evaluated against.
// GetChangePercent reports the signed percent change over the provider's
// reference window (the Alpaca implementation compares against the previous
// daily close).
type Provider interface {
	GetQuote(ctx context.Context, symbol string) (Quote, error)
	GetChangePercent(ctx context.Context, symbol string) (float64, error)
}

// UnavailableError is a transient market-data failure. The owning action
// stays active and is retried on the next poll cycle; no execution row is
// written.
type UnavailableError struct {
	Symbol string
	Err    error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("market data unavailable for %s: %v", e.Symbol, e.Err)
}

func (e *UnavailableError) Unwrap() error {
	return e.Err
}
