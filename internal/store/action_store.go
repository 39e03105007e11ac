package store

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"autotrade/internal/models"
)

// ErrNotFound is returned when an action id does not exist.
var ErrNotFound = errors.New("action not found")

// ActionStore is the persistence and query layer over the actions and
// action_executions tables. Every mutation is either a single UPDATE or a
// single transaction, so a partially applied multi-field write is impossible.
type ActionStore struct {
	db *gorm.DB
}

func NewActionStore(db *gorm.DB) *ActionStore {
	return &ActionStore{db: db}
}

// FetchDueActions returns up to limit actions eligible for evaluation this
// cycle: active, inside their validity window, cooldown elapsed, and not
// held by a live lease. Oldest last_evaluated_at first so no action starves.
//
// The cooldown check runs in-process because it needs per-row date
// arithmetic; the SQL predicate prefilters everything else.
func (s *ActionStore) FetchDueActions(ctx context.Context, limit int, now time.Time) ([]models.Action, error) {
	var candidates []models.Action
	err := s.db.WithContext(ctx).
		Where("status = ?", models.ActionStatusActive).
		Where("valid_from <= ?", now).
		Where("valid_until IS NULL OR valid_until > ?", now).
		Where("processing_lease_until IS NULL OR processing_lease_until < ?", now).
		Order("last_evaluated_at ASC NULLS FIRST").
		Limit(limit).
		Find(&candidates).Error
	if err != nil {
		return nil, wrap("fetch due actions", err)
	}

	due := candidates[:0]
	for _, a := range candidates {
		if a.ExecutionsCount >= a.MaxExecutions {
			continue
		}
		if a.CoolingDown(now) {
			continue
		}
		due = append(due, a)
	}
	return due, nil
}

// GetAction reloads one action by id. Used for the recheck-before-commit
// step so a rule cancelled mid-evaluation cannot fire anyway.
func (s *ActionStore) GetAction(ctx context.Context, id string) (*models.Action, error) {
	var action models.Action
	err := s.db.WithContext(ctx).First(&action, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, wrap("get action", err)
	}
	return &action, nil
}

// TouchEvaluated stamps last_evaluated_at unconditionally. Cheap bookkeeping
// that only affects fetch ordering, safe to run without holding the lease.
func (s *ActionStore) TouchEvaluated(ctx context.Context, id string, now time.Time) error {
	err := s.db.WithContext(ctx).Model(&models.Action{}).
		Where("id = ?", id).
		Update("last_evaluated_at", now).Error
	return wrap("touch evaluated", err)
}

// ActionUpdate is the post-attempt mutation of the action row. Nil fields
// are left untouched.
type ActionUpdate struct {
	ExecutionsCount *int
	Status          *string
	LastTriggeredAt *time.Time
}

// ApplyOutcome writes the execution audit row and the action's counter/state
// update in one transaction: both commit or neither does.
func (s *ActionStore) ApplyOutcome(ctx context.Context, actionID string, update ActionUpdate, exec *models.ActionExecution) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if exec != nil {
			if err := tx.Create(exec).Error; err != nil {
				return err
			}
		}

		fields := map[string]interface{}{}
		if update.ExecutionsCount != nil {
			fields["executions_count"] = *update.ExecutionsCount
		}
		if update.Status != nil {
			fields["status"] = *update.Status
		}
		if update.LastTriggeredAt != nil {
			fields["last_triggered_at"] = *update.LastTriggeredAt
		}
		if len(fields) == 0 {
			return nil
		}

		res := tx.Model(&models.Action{}).Where("id = ?", actionID).Updates(fields)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
	return wrap("apply outcome", err)
}

// MarkCompleted transitions an action that expired without firing. No
// execution row is written.
func (s *ActionStore) MarkCompleted(ctx context.Context, id string) error {
	err := s.db.WithContext(ctx).Model(&models.Action{}).
		Where("id = ? AND status = ?", id, models.ActionStatusActive).
		Update("status", models.ActionStatusCompleted).Error
	return wrap("mark completed", err)
}

// MarkFailed flags an unprocessable action (for example a trigger_params
// blob that does not match its declared type) so it stops being re-picked
// every cycle and the bad configuration is operator-visible.
func (s *ActionStore) MarkFailed(ctx context.Context, id string, reason string) error {
	err := s.db.WithContext(ctx).Model(&models.Action{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status": models.ActionStatusFailed,
			"notes":  reason,
		}).Error
	return wrap("mark failed", err)
}

// SweepExpired completes every active action whose validity window has
// passed. Run periodically so expired rules do not linger in the due scan.
func (s *ActionStore) SweepExpired(ctx context.Context, now time.Time) (int64, error) {
	res := s.db.WithContext(ctx).Model(&models.Action{}).
		Where("status = ? AND valid_until IS NOT NULL AND valid_until <= ?", models.ActionStatusActive, now).
		Update("status", models.ActionStatusCompleted)
	if res.Error != nil {
		return 0, wrap("sweep expired", res.Error)
	}
	return res.RowsAffected, nil
}

// RecentExecutions returns executions inserted after the given cursor time,
// oldest first. Backing query for the live execution feed.
func (s *ActionStore) RecentExecutions(ctx context.Context, after time.Time, limit int) ([]models.ActionExecution, error) {
	var execs []models.ActionExecution
	err := s.db.WithContext(ctx).
		Where("triggered_at > ?", after).
		Order("triggered_at ASC").
		Limit(limit).
		Find(&execs).Error
	if err != nil {
		return nil, wrap("recent executions", err)
	}
	return execs, nil
}
