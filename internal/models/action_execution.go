package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Execution statuses
const (
	ExecutionStatusSuccess = "success"
	ExecutionStatusFailed  = "failed"
)

// ActionExecution is the immutable audit record of one execution attempt.
// Rows are append-only and never updated after insertion.
type ActionExecution struct {
	ID              string          `gorm:"type:uuid;primarykey" json:"id"`
	ActionID        string          `gorm:"type:uuid;not null;index" json:"action_id"`
	TriggeredAt     time.Time       `gorm:"not null" json:"triggered_at"`
	ExecutionStatus string          `gorm:"type:text;not null" json:"execution_status"`
	Details         json.RawMessage `gorm:"type:jsonb" json:"details"`
	TransactionID   *string         `gorm:"type:uuid" json:"transaction_id"`
	Error           *string         `gorm:"type:text" json:"error"`
}

func (ActionExecution) TableName() string {
	return "action_executions"
}

func (e *ActionExecution) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	return nil
}
