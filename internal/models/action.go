package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Action statuses
const (
	ActionStatusActive    = "active"
	ActionStatusPaused    = "paused"
	ActionStatusCompleted = "completed"
	ActionStatusCancelled = "cancelled"
	ActionStatusFailed    = "failed"
)

// Action types
const (
	ActionTypeBuy    = "BUY"
	ActionTypeSell   = "SELL"
	ActionTypeNotify = "NOTIFY"
)

// Trigger types
const (
	TriggerPriceAbove = "price_above"
	TriggerPriceBelow = "price_below"
	TriggerChangePct  = "change_pct"
	TriggerTimeOfDay  = "time_of_day"
)

// Action is a standing automation rule: "buy 10 AAPL when price rises above 150".
// Lease and execution-accounting fields are only ever mutated by the evaluator;
// the CRUD surface touches status and the user-editable columns.
type Action struct {
	ID          string  `gorm:"type:uuid;primarykey" json:"id"`
	UserID      string  `gorm:"type:uuid;not null;index" json:"user_id"`
	PortfolioID *string `gorm:"type:uuid" json:"portfolio_id"`

	Status     string   `gorm:"type:text;not null;default:'active';index" json:"status"`
	ActionType string   `gorm:"type:text;not null" json:"action_type"`
	Symbol     *string  `gorm:"type:text;index" json:"symbol"`
	Quantity   *float64 `gorm:"type:numeric" json:"quantity"`
	AmountUSD  *float64 `gorm:"type:numeric;column:amount_usd" json:"amount_usd"`

	TriggerType   string          `gorm:"type:text;not null;index" json:"trigger_type"`
	TriggerParams json.RawMessage `gorm:"type:jsonb;not null" json:"trigger_params"`

	ValidFrom  time.Time  `gorm:"not null" json:"valid_from"`
	ValidUntil *time.Time `json:"valid_until"`

	MaxExecutions   int  `gorm:"not null;default:1" json:"max_executions"`
	ExecutionsCount int  `gorm:"not null;default:0" json:"executions_count"`
	CooldownSeconds *int `json:"cooldown_seconds"`

	LastTriggeredAt      *time.Time `json:"last_triggered_at"`
	LastEvaluatedAt      *time.Time `json:"last_evaluated_at"`
	ProcessingLeaseUntil *time.Time `json:"processing_lease_until"`

	Notes *string `gorm:"type:text" json:"notes"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`

	Executions []ActionExecution `gorm:"foreignKey:ActionID;constraint:OnDelete:CASCADE" json:"executions,omitempty"`
}

func (Action) TableName() string {
	return "actions"
}

func (a *Action) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return nil
}

// Terminal reports whether the action can never fire again.
func (a *Action) Terminal() bool {
	switch a.Status {
	case ActionStatusCompleted, ActionStatusCancelled, ActionStatusFailed:
		return true
	}
	return false
}

// WithinValidity reports whether now falls inside [valid_from, valid_until).
// A nil bound is unbounded.
func (a *Action) WithinValidity(now time.Time) bool {
	if now.Before(a.ValidFrom) {
		return false
	}
	if a.ValidUntil != nil && !now.Before(*a.ValidUntil) {
		return false
	}
	return true
}

// CoolingDown reports whether the cooldown window since the last firing is
// still open at now.
func (a *Action) CoolingDown(now time.Time) bool {
	if a.CooldownSeconds == nil || a.LastTriggeredAt == nil {
		return false
	}
	return now.Before(a.LastTriggeredAt.Add(time.Duration(*a.CooldownSeconds) * time.Second))
}
