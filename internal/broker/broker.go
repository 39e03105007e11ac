package broker

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// OrderRequest is a sized market order ready for submission.
type OrderRequest struct {
	Symbol   string          `json:"symbol"`
	Side     string          `json:"side"` // "buy" or "sell"
	Quantity decimal.Decimal `json:"quantity"`
}

// OrderResult is the collaborator's record of an accepted order.
type OrderResult struct {
	OrderID     string    `json:"order_id"`
	Symbol      string    `json:"symbol"`
	Side        string    `json:"side"`
	Quantity    string    `json:"quantity"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// Broker submits orders to the external trading/ledger service.
type Broker interface {
	PlaceOrder(ctx context.Context, req OrderRequest) (OrderResult, error)
}

// RejectedError is a collaborator-reported order failure: insufficient
// funds, unknown symbol, market closed. It is recorded as a failed
// execution and not retried within the same poll cycle.
type RejectedError struct {
	Reason string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("order rejected: %s", e.Reason)
}
