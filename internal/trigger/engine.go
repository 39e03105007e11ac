package trigger

import (
	"encoding/json"
	"time"

	"autotrade/internal/models"
)

// Snapshot is the market data a single evaluation runs against. Price is the
// most recent quote for the action's symbol; ChangePct is the signed percent
// change over the provider's reference window. Time-only triggers leave both
// zero.
type Snapshot struct {
	Symbol     string    `json:"symbol,omitempty"`
	Price      float64   `json:"price,omitempty"`
	ChangePct  float64   `json:"change_pct,omitempty"`
	QuotedAt   time.Time `json:"quoted_at,omitempty"`
	ObservedAt time.Time `json:"observed_at"`
}

// Evidence records the inputs a fire/no-fire decision was made on. It is
// stored verbatim in the resulting execution row's details.
type Evidence struct {
	TriggerType string          `json:"trigger_type"`
	Params      json.RawMessage `json:"params"`
	Snapshot    Snapshot        `json:"snapshot"`
	Fired       bool            `json:"fired"`
}

// Engine is the pure trigger evaluator. It never touches the database or the
// network; callers supply the market snapshot and the clock.
type Engine struct{}

func NewEngine() *Engine {
	return &Engine{}
}

// Evaluate decides fire/no-fire for one action against one snapshot.
// Thresholds are strict: price_above with threshold 150 does not fire at
// exactly 150.
func (e *Engine) Evaluate(action *models.Action, params *Params, snap Snapshot, now time.Time) (bool, Evidence) {
	snap.ObservedAt = now

	var fired bool
	switch {
	case params.Price != nil && action.TriggerType == models.TriggerPriceAbove:
		fired = snap.Price > params.Price.Threshold
	case params.Price != nil && action.TriggerType == models.TriggerPriceBelow:
		fired = snap.Price < params.Price.Threshold
	case params.ChangePct != nil:
		if params.ChangePct.Direction == DirectionUp {
			fired = snap.ChangePct >= params.ChangePct.ChangePct
		} else {
			fired = snap.ChangePct <= -params.ChangePct.ChangePct
		}
	case params.TimeOfDay != nil:
		fired = inWindow(params.TimeOfDay, now)
	}

	return fired, Evidence{
		TriggerType: action.TriggerType,
		Params:      action.TriggerParams,
		Snapshot:    snap,
		Fired:       fired,
	}
}

// NeedsMarketData reports whether the trigger kind requires a quote lookup.
// time_of_day actions are evaluated from the clock alone.
func (p *Params) NeedsMarketData() bool {
	return p.TimeOfDay == nil
}

// inWindow checks current UTC time-of-day against [start, end). A window
// whose end precedes its start wraps past midnight: 22:00-02:00 means after
// 22:00 or before 02:00.
func inWindow(p *TimeOfDayParams, now time.Time) bool {
	start, _ := parseClock(p.Start)
	end, _ := parseClock(p.End)

	utc := now.UTC()
	minute := utc.Hour()*60 + utc.Minute()

	if start == end {
		return false
	}
	if start < end {
		return minute >= start && minute < end
	}
	return minute >= start || minute < end
}
