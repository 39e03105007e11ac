package handlers

import (
	"encoding/json"
	"fmt"
	"time"

	"autotrade/internal/models"
	"autotrade/internal/trigger"
)

// ActionRequest represents the request body for creating an action
type ActionRequest struct {
	UserID          string          `json:"user_id" binding:"required"`
	PortfolioID     *string         `json:"portfolio_id"`
	ActionType      string          `json:"action_type" binding:"required"`
	Symbol          *string         `json:"symbol"`
	Quantity        *float64        `json:"quantity"`
	AmountUSD       *float64        `json:"amount_usd"`
	TriggerType     string          `json:"trigger_type" binding:"required"`
	TriggerParams   json.RawMessage `json:"trigger_params" binding:"required"`
	ValidFrom       *time.Time      `json:"valid_from"`
	ValidUntil      *time.Time      `json:"valid_until"`
	MaxExecutions   *int            `json:"max_executions"`
	CooldownSeconds *int            `json:"cooldown_seconds"`
	Notes           *string         `json:"notes"`
}

// ActionUpdateRequest represents the request body for updating an action
// (all fields optional). Status transitions go through the dedicated
// pause/resume/cancel endpoints; lease and counter fields are never
// writable from here.
type ActionUpdateRequest struct {
	Symbol          *string         `json:"symbol"`
	Quantity        *float64        `json:"quantity"`
	AmountUSD       *float64        `json:"amount_usd"`
	TriggerType     *string         `json:"trigger_type"`
	TriggerParams   json.RawMessage `json:"trigger_params"`
	ValidFrom       *time.Time      `json:"valid_from"`
	ValidUntil      *time.Time      `json:"valid_until"`
	MaxExecutions   *int            `json:"max_executions"`
	CooldownSeconds *int            `json:"cooldown_seconds"`
	Notes           *string         `json:"notes"`
}

// validate applies the boundary rules a rule must satisfy before it is
// accepted for evaluation.
func (r *ActionRequest) validate() error {
	switch r.ActionType {
	case models.ActionTypeBuy, models.ActionTypeSell, models.ActionTypeNotify:
	default:
		return fmt.Errorf("unknown action_type %q", r.ActionType)
	}

	if _, err := trigger.ParseParams(r.TriggerType, r.TriggerParams); err != nil {
		return err
	}

	if r.ActionType == models.ActionTypeBuy || r.ActionType == models.ActionTypeSell {
		if r.Symbol == nil || *r.Symbol == "" {
			return fmt.Errorf("%s actions require a symbol", r.ActionType)
		}
		if r.Quantity != nil && r.AmountUSD != nil {
			return fmt.Errorf("set either quantity or amount_usd, not both")
		}
		if r.Quantity == nil && r.AmountUSD == nil {
			return fmt.Errorf("set either quantity or amount_usd")
		}
		if r.Quantity != nil && *r.Quantity <= 0 {
			return fmt.Errorf("quantity must be positive")
		}
		if r.AmountUSD != nil && *r.AmountUSD <= 0 {
			return fmt.Errorf("amount_usd must be positive")
		}
	}

	switch r.TriggerType {
	case models.TriggerPriceAbove, models.TriggerPriceBelow, models.TriggerChangePct:
		if r.Symbol == nil || *r.Symbol == "" {
			return fmt.Errorf("%s triggers require a symbol", r.TriggerType)
		}
	}

	if r.MaxExecutions != nil && *r.MaxExecutions < 1 {
		return fmt.Errorf("max_executions must be at least 1")
	}
	if r.CooldownSeconds != nil && *r.CooldownSeconds < 0 {
		return fmt.Errorf("cooldown_seconds must not be negative")
	}
	if r.ValidFrom != nil && r.ValidUntil != nil && !r.ValidUntil.After(*r.ValidFrom) {
		return fmt.Errorf("valid_until must be after valid_from")
	}
	return nil
}
