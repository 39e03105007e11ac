package store

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"autotrade/internal/models"
)

// LeaseManager grants a worker exclusive processing rights to one action for
// a bounded time. The database's atomic conditional update is the only
// coordination: any number of worker processes, even across machines, can
// run the same loop safely.
//
// A worker that dies mid-processing leaves its lease to expire on its own;
// the TTL alone bounds staleness, no reaper runs. The TTL must therefore sit
// comfortably above worst-case evaluate+execute latency.
type LeaseManager struct {
	db *gorm.DB
}

func NewLeaseManager(db *gorm.DB) *LeaseManager {
	return &LeaseManager{db: db}
}

// Acquire attempts to take the lease on an action. It issues one conditional
// UPDATE: the lease is set only if it is currently null or already expired.
// Zero rows affected means another worker holds it; the caller skips the
// action this cycle. That is ordinary contention, not an error.
func (m *LeaseManager) Acquire(ctx context.Context, actionID, workerID string, ttl time.Duration) (bool, error) {
	now := time.Now().UTC()
	res := m.db.WithContext(ctx).Model(&models.Action{}).
		Where("id = ?", actionID).
		Where("processing_lease_until IS NULL OR processing_lease_until < ?", now).
		Update("processing_lease_until", now.Add(ttl))
	if res.Error != nil {
		return false, wrap("acquire lease", res.Error)
	}
	if res.RowsAffected == 0 {
		return false, nil
	}
	log.WithFields(log.Fields{
		"action_id": actionID,
		"worker_id": workerID,
		"until":     now.Add(ttl),
	}).Debug("lease acquired")
	return true, nil
}

// Release clears the lease once processing is done, success or failure, so
// the action becomes immediately eligible again (subject to cooldown).
func (m *LeaseManager) Release(ctx context.Context, actionID string) error {
	err := m.db.WithContext(ctx).Model(&models.Action{}).
		Where("id = ?", actionID).
		Update("processing_lease_until", nil).Error
	return wrap("release lease", err)
}
