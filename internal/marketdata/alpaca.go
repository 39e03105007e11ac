package marketdata

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
)

// AlpacaProvider fetches quotes and daily change from the Alpaca data API.
// API keys come from the standard APCA_* environment variables.
type AlpacaProvider struct {
	client *marketdata.Client
}

// NewAlpacaProvider builds a provider with a bounded request timeout so a
// slow upstream call cannot hold a processing lease past its TTL.
func NewAlpacaProvider(timeout time.Duration) *AlpacaProvider {
	return &AlpacaProvider{
		client: marketdata.NewClient(marketdata.ClientOpts{
			HTTPClient: &http.Client{Timeout: timeout},
		}),
	}
}

func (p *AlpacaProvider) GetQuote(ctx context.Context, symbol string) (Quote, error) {
	trade, err := p.client.GetLatestTrade(symbol, marketdata.GetLatestTradeRequest{})
	if err != nil {
		return Quote{}, &UnavailableError{Symbol: symbol, Err: err}
	}
	if trade == nil {
		return Quote{}, &UnavailableError{Symbol: symbol, Err: fmt.Errorf("no trade data")}
	}
	return Quote{
		Symbol:    symbol,
		Price:     trade.Price,
		Timestamp: trade.Timestamp,
	}, nil
}

// GetChangePercent returns today's signed move versus the previous daily
// close, the reference window Alpaca snapshots hand out directly.
func (p *AlpacaProvider) GetChangePercent(ctx context.Context, symbol string) (float64, error) {
	snap, err := p.client.GetSnapshot(symbol, marketdata.GetSnapshotRequest{})
	if err != nil {
		return 0, &UnavailableError{Symbol: symbol, Err: err}
	}
	if snap == nil || snap.LatestTrade == nil || snap.PrevDailyBar == nil || snap.PrevDailyBar.Close == 0 {
		return 0, &UnavailableError{Symbol: symbol, Err: fmt.Errorf("incomplete snapshot")}
	}
	prev := snap.PrevDailyBar.Close
	return (snap.LatestTrade.Price - prev) / prev * 100, nil
}
