package broker

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"
)

// AlpacaBroker places market orders through the Alpaca trading API (paper
// or live, depending on APCA_API_BASE_URL).
type AlpacaBroker struct {
	client *alpaca.Client
}

func NewAlpacaBroker(timeout time.Duration) *AlpacaBroker {
	return &AlpacaBroker{
		client: alpaca.NewClient(alpaca.ClientOpts{
			HTTPClient: &http.Client{Timeout: timeout},
		}),
	}
}

func (b *AlpacaBroker) PlaceOrder(ctx context.Context, req OrderRequest) (OrderResult, error) {
	qty := req.Quantity
	order, err := b.client.PlaceOrder(alpaca.PlaceOrderRequest{
		Symbol:      req.Symbol,
		Qty:         &qty,
		Side:        alpaca.Side(req.Side),
		Type:        alpaca.Market,
		TimeInForce: alpaca.Day,
	})
	if err != nil {
		var apiErr *alpaca.APIError
		if errors.As(err, &apiErr) {
			return OrderResult{}, &RejectedError{Reason: apiErr.Message}
		}
		return OrderResult{}, &RejectedError{Reason: err.Error()}
	}
	return OrderResult{
		OrderID:     order.ID,
		Symbol:      order.Symbol,
		Side:        string(order.Side),
		Quantity:    req.Quantity.String(),
		SubmittedAt: order.SubmittedAt,
	}, nil
}
