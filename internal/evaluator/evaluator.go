package evaluator

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"autotrade/internal/executor"
	"autotrade/internal/lifecycle"
	"autotrade/internal/marketdata"
	"autotrade/internal/models"
	"autotrade/internal/store"
	"autotrade/internal/trigger"
)

// Config sizes one evaluator instance. LeaseTTL must sit comfortably above
// worst-case evaluate+execute latency: a lease that expires while its owner
// is still working lets a second worker take over, which is a bounded risk
// we accept instead of running a renewal heartbeat.
type Config struct {
	BatchSize   int
	Workers     int
	LeaseTTL    time.Duration
	CallTimeout time.Duration
}

func (c *Config) applyDefaults() {
	if c.BatchSize <= 0 {
		c.BatchSize = 50
	}
	if c.Workers <= 0 {
		c.Workers = 4
	}
	if c.LeaseTTL <= 0 {
		c.LeaseTTL = time.Minute
	}
	if c.CallTimeout <= 0 {
		c.CallTimeout = 10 * time.Second
	}
}

// Evaluator is the polling orchestrator: fetch a batch of due actions, fan
// them out over a bounded worker pool, and process each under its lease.
// All collaborators are held by reference; there is no package-global state.
type Evaluator struct {
	store     *store.ActionStore
	leases    *store.LeaseManager
	engine    *trigger.Engine
	executor  *executor.Executor
	lifecycle *lifecycle.Manager
	market    marketdata.Provider
	cfg       Config
	workerID  string
}

func New(s *store.ActionStore, l *store.LeaseManager, market marketdata.Provider, exec *executor.Executor, cfg Config) *Evaluator {
	cfg.applyDefaults()
	return &Evaluator{
		store:     s,
		leases:    l,
		engine:    trigger.NewEngine(),
		executor:  exec,
		lifecycle: lifecycle.NewManager(),
		market:    market,
		cfg:       cfg,
		workerID:  uuid.NewString(),
	}
}

// RunCycle executes one poll: one batch fetch, concurrent per-action
// processing, then returns. Schedulers call it repeatedly; overlap
// protection is the scheduler's job.
func (e *Evaluator) RunCycle(ctx context.Context) error {
	now := time.Now().UTC()
	due, err := e.store.FetchDueActions(ctx, e.cfg.BatchSize, now)
	if err != nil {
		log.Errorf("due-actions scan failed: %v", err)
		return err
	}
	if len(due) == 0 {
		return nil
	}
	log.WithField("count", len(due)).Debug("processing due actions")

	jobs := make(chan models.Action)
	var wg sync.WaitGroup
	for i := 0; i < e.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for action := range jobs {
				a := action
				e.processAction(ctx, &a)
			}
		}()
	}
	for _, a := range due {
		jobs <- a
	}
	close(jobs)
	wg.Wait()
	return nil
}

// processAction handles one candidate under its lease. Errors are local to
// the action: nothing here ever aborts the batch.
func (e *Evaluator) processAction(ctx context.Context, action *models.Action) {
	logger := log.WithFields(log.Fields{
		"action_id":    action.ID,
		"trigger_type": action.TriggerType,
	})

	acquired, err := e.leases.Acquire(ctx, action.ID, e.workerID, e.cfg.LeaseTTL)
	if err != nil {
		logger.Errorf("lease acquire failed: %v", err)
		return
	}
	if !acquired {
		// another worker owns it this cycle
		return
	}
	defer func() {
		if err := e.leases.Release(ctx, action.ID); err != nil {
			// the lease TTL bounds the damage; next cycle picks it up late
			logger.Warnf("lease release failed: %v", err)
		}
	}()

	now := time.Now().UTC()
	if err := e.store.TouchEvaluated(ctx, action.ID, now); err != nil {
		logger.Warnf("evaluation timestamp not recorded: %v", err)
	}

	params, err := trigger.ParseParams(action.TriggerType, action.TriggerParams)
	if err != nil {
		e.flagMisconfigured(ctx, action.ID, err, logger)
		return
	}

	var snap trigger.Snapshot
	if params.NeedsMarketData() {
		if action.Symbol == nil || *action.Symbol == "" {
			e.flagMisconfigured(ctx, action.ID, errors.New("price trigger has no symbol"), logger)
			return
		}
		snap, err = e.snapshot(ctx, *action.Symbol, params)
		if err != nil {
			var unavailable *marketdata.UnavailableError
			if errors.As(err, &unavailable) {
				// transient: stay active, retry next cycle, no audit row
				logger.Warnf("market data unavailable, will retry: %v", err)
			} else {
				logger.Errorf("snapshot failed: %v", err)
			}
			return
		}
	}

	fired, evidence := e.engine.Evaluate(action, params, snap, now)
	if !fired {
		return
	}
	logger.WithField("price", snap.Price).Info("trigger fired")

	// recheck-before-commit: a user pausing or cancelling the rule while we
	// were evaluating must win over the firing
	fresh, err := e.store.GetAction(ctx, action.ID)
	if err != nil {
		logger.Errorf("recheck failed, aborting without execution: %v", err)
		return
	}
	if fresh.Status != models.ActionStatusActive {
		logger.WithField("status", fresh.Status).Info("no longer active, aborting execution")
		return
	}
	if !fresh.WithinValidity(now) {
		// expired mid-flight: complete without an execution row
		if err := e.store.MarkCompleted(ctx, fresh.ID); err != nil {
			logger.Errorf("expiry completion failed: %v", err)
		}
		return
	}
	if fresh.ExecutionsCount >= fresh.MaxExecutions || fresh.CoolingDown(now) {
		return
	}

	rec, err := e.executor.Execute(ctx, fresh, evidence, snap.Price, now)
	if err != nil {
		var cfgErr *executor.ConfigError
		if errors.As(err, &cfgErr) {
			e.flagMisconfigured(ctx, fresh.ID, err, logger)
		} else {
			logger.Errorf("execution aborted: %v", err)
		}
		return
	}

	update := e.lifecycle.OutcomeFor(fresh, rec, now)
	row := e.lifecycle.Row(fresh, rec, now)
	if err := e.withRetry(ctx, func() error {
		return e.store.ApplyOutcome(ctx, fresh.ID, update, row)
	}); err != nil {
		logger.Errorf("outcome not committed: %v", err)
		return
	}

	logger.WithFields(log.Fields{
		"status":     rec.Status,
		"executions": fresh.ExecutionsCount + 1,
	}).Info("execution recorded")
}

// snapshot gathers the market data the trigger kind needs, under a bounded
// timeout so a slow upstream cannot outlive the lease.
func (e *Evaluator) snapshot(ctx context.Context, symbol string, params *trigger.Params) (trigger.Snapshot, error) {
	callCtx, cancel := context.WithTimeout(ctx, e.cfg.CallTimeout)
	defer cancel()

	quote, err := e.market.GetQuote(callCtx, symbol)
	if err != nil {
		return trigger.Snapshot{}, err
	}
	snap := trigger.Snapshot{
		Symbol:   symbol,
		Price:    quote.Price,
		QuotedAt: quote.Timestamp,
	}
	if params.ChangePct != nil {
		pct, err := e.market.GetChangePercent(callCtx, symbol)
		if err != nil {
			return trigger.Snapshot{}, err
		}
		snap.ChangePct = pct
	}
	return snap, nil
}

// flagMisconfigured marks an unprocessable action failed so it stops being
// re-picked every cycle. The reason lands in notes for the CRUD surface.
func (e *Evaluator) flagMisconfigured(ctx context.Context, actionID string, cause error, logger *log.Entry) {
	logger.Errorf("misconfigured action: %v", cause)
	if err := e.store.MarkFailed(ctx, actionID, cause.Error()); err != nil {
		logger.Errorf("could not flag action: %v", err)
	}
}

// withRetry retries transient persistence failures with capped backoff.
// Non-persistence errors pass straight through.
func (e *Evaluator) withRetry(ctx context.Context, fn func() error) error {
	delay := 200 * time.Millisecond
	var err error
	for attempt := 0; attempt < 3; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		var perr *store.PersistenceError
		if !errors.As(err, &perr) {
			return err
		}
		select {
		case <-ctx.Done():
			return err
		case <-time.After(delay):
		}
		delay *= 2
	}
	return err
}
