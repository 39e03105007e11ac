package lifecycle

import (
	"time"

	"autotrade/internal/executor"
	"autotrade/internal/models"
	"autotrade/internal/store"
)

// Manager computes the post-attempt bookkeeping for an action. It is pure:
// the store applies the returned update atomically with the audit row.
type Manager struct{}

func NewManager() *Manager {
	return &Manager{}
}

// OutcomeFor maps one execution attempt onto the action row mutation.
//
// Success consumes a firing slot and starts the cooldown clock; the action
// completes when the slot budget is exhausted or its validity window has
// passed. Failure consumes nothing: a transient collaborator outage must
// not burn a slot or suppress the retry behind a cooldown.
func (m *Manager) OutcomeFor(action *models.Action, rec executor.Record, now time.Time) store.ActionUpdate {
	if !rec.Succeeded() {
		return store.ActionUpdate{}
	}

	count := action.ExecutionsCount + 1
	update := store.ActionUpdate{
		ExecutionsCount: &count,
		LastTriggeredAt: &now,
	}

	if count >= action.MaxExecutions || (action.ValidUntil != nil && !now.Before(*action.ValidUntil)) {
		completed := models.ActionStatusCompleted
		update.Status = &completed
	}
	return update
}

// Row builds the immutable audit record for one attempt.
func (m *Manager) Row(action *models.Action, rec executor.Record, now time.Time) *models.ActionExecution {
	return &models.ActionExecution{
		ActionID:        action.ID,
		TriggeredAt:     now,
		ExecutionStatus: rec.Status,
		Details:         rec.Details,
		TransactionID:   rec.TransactionID,
		Error:           rec.Error,
	}
}
