package trigger

import (
	"encoding/json"
	"fmt"

	"autotrade/internal/models"
)

// ConfigurationError marks trigger_params that do not match the declared
// trigger_type. It is never treated as "not fired": the owning action is
// flagged so the bad rule is operator-visible instead of silently skipped.
type ConfigurationError struct {
	TriggerType string
	Reason      string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid trigger params for %s: %s", e.TriggerType, e.Reason)
}

// Direction values for change_pct triggers
const (
	DirectionUp   = "up"
	DirectionDown = "down"
)

// PriceThresholdParams is the payload for price_above / price_below.
type PriceThresholdParams struct {
	Threshold float64 `json:"threshold"`
}

// ChangePctParams is the payload for change_pct.
type ChangePctParams struct {
	Direction string  `json:"direction"`
	ChangePct float64 `json:"change_pct"`
}

// TimeOfDayParams is the payload for time_of_day. Start and End are "HH:MM"
// in UTC; End < Start means the window wraps past midnight.
type TimeOfDayParams struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// Params is the validated variant of an action's trigger_params blob.
// Exactly one field is non-nil, matching the trigger type it was parsed for.
type Params struct {
	Price     *PriceThresholdParams
	ChangePct *ChangePctParams
	TimeOfDay *TimeOfDayParams
}

// ParseParams validates raw trigger_params against the declared trigger type.
// The payload shape is checked here, at the boundary, so evaluation never has
// to re-inspect raw JSON.
func ParseParams(triggerType string, raw json.RawMessage) (*Params, error) {
	if len(raw) == 0 {
		return nil, &ConfigurationError{TriggerType: triggerType, Reason: "missing trigger_params"}
	}

	switch triggerType {
	case models.TriggerPriceAbove, models.TriggerPriceBelow:
		var p PriceThresholdParams
		if err := strictUnmarshal(raw, &p); err != nil {
			return nil, &ConfigurationError{TriggerType: triggerType, Reason: err.Error()}
		}
		if p.Threshold <= 0 {
			return nil, &ConfigurationError{TriggerType: triggerType, Reason: "threshold must be positive"}
		}
		return &Params{Price: &p}, nil

	case models.TriggerChangePct:
		var p ChangePctParams
		if err := strictUnmarshal(raw, &p); err != nil {
			return nil, &ConfigurationError{TriggerType: triggerType, Reason: err.Error()}
		}
		if p.Direction != DirectionUp && p.Direction != DirectionDown {
			return nil, &ConfigurationError{TriggerType: triggerType, Reason: fmt.Sprintf("direction must be %q or %q", DirectionUp, DirectionDown)}
		}
		if p.ChangePct <= 0 {
			return nil, &ConfigurationError{TriggerType: triggerType, Reason: "change_pct must be positive"}
		}
		return &Params{ChangePct: &p}, nil

	case models.TriggerTimeOfDay:
		var p TimeOfDayParams
		if err := strictUnmarshal(raw, &p); err != nil {
			return nil, &ConfigurationError{TriggerType: triggerType, Reason: err.Error()}
		}
		if _, err := parseClock(p.Start); err != nil {
			return nil, &ConfigurationError{TriggerType: triggerType, Reason: fmt.Sprintf("bad start %q: %v", p.Start, err)}
		}
		if _, err := parseClock(p.End); err != nil {
			return nil, &ConfigurationError{TriggerType: triggerType, Reason: fmt.Sprintf("bad end %q: %v", p.End, err)}
		}
		return &Params{TimeOfDay: &p}, nil
	}

	return nil, &ConfigurationError{TriggerType: triggerType, Reason: "unknown trigger type"}
}

func strictUnmarshal(raw json.RawMessage, dest interface{}) error {
	if err := json.Unmarshal(raw, dest); err != nil {
		return fmt.Errorf("malformed payload: %w", err)
	}
	return nil
}

// parseClock parses "HH:MM" into minutes since midnight.
func parseClock(s string) (int, error) {
	var h, m int
	if _, err := fmt.Sscanf(s, "%d:%d", &h, &m); err != nil {
		return 0, fmt.Errorf("expected HH:MM")
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("out of range")
	}
	return h*60 + m, nil
}
