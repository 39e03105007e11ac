package executor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"autotrade/internal/broker"
	"autotrade/internal/models"
	"autotrade/internal/notify"
	"autotrade/internal/trigger"
)

// ConfigError marks an action whose sizing or addressing fields cannot
// produce a valid order (no symbol, both quantity and amount_usd set). The
// action is flagged rather than recorded as a failed execution: retrying a
// misconfigured rule can never succeed.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("action misconfigured: %s", e.Reason)
}

// Record is the outcome of one execution attempt, ready to be written as an
// action_executions row together with the lifecycle update.
type Record struct {
	Status        string
	Details       json.RawMessage
	TransactionID *string
	Error         *string
}

func (r Record) Succeeded() bool {
	return r.Status == models.ExecutionStatusSuccess
}

type details struct {
	Evidence trigger.Evidence    `json:"evidence"`
	Order    *broker.OrderResult `json:"order,omitempty"`
	Message  *notify.Message     `json:"message,omitempty"`
}

// Executor performs the side effect of a fired action through the external
// trading and notification collaborators. It never touches the database;
// the orchestrator commits the returned record atomically with the
// lifecycle update.
type Executor struct {
	broker   broker.Broker
	notifier notify.Notifier
}

func New(b broker.Broker, n notify.Notifier) *Executor {
	return &Executor{broker: b, notifier: n}
}

// Execute carries out one accounted attempt. Collaborator-reported failures
// (insufficient funds, unknown symbol, market closed) come back as a failed
// Record, not an error; they are recorded and not retried within the cycle.
func (e *Executor) Execute(ctx context.Context, action *models.Action, evidence trigger.Evidence, price float64, now time.Time) (Record, error) {
	switch action.ActionType {
	case models.ActionTypeBuy, models.ActionTypeSell:
		return e.trade(ctx, action, evidence, price)
	case models.ActionTypeNotify:
		return e.notify(ctx, action, evidence, now)
	}
	return Record{}, &ConfigError{Reason: fmt.Sprintf("unknown action type %q", action.ActionType)}
}

func (e *Executor) trade(ctx context.Context, action *models.Action, evidence trigger.Evidence, price float64) (Record, error) {
	if action.Symbol == nil || *action.Symbol == "" {
		return Record{}, &ConfigError{Reason: "trade action has no symbol"}
	}

	qty, err := broker.SizeOrder(action.Quantity, action.AmountUSD, price)
	if err != nil {
		if errors.Is(err, broker.ErrAmbiguousSizing) || errors.Is(err, broker.ErrNoSizing) {
			return Record{}, &ConfigError{Reason: err.Error()}
		}
		return failedRecord(evidence, err), nil
	}

	result, err := e.broker.PlaceOrder(ctx, broker.OrderRequest{
		Symbol:   *action.Symbol,
		Side:     strings.ToLower(action.ActionType),
		Quantity: qty,
	})
	if err != nil {
		log.WithFields(log.Fields{
			"action_id": action.ID,
			"symbol":    *action.Symbol,
		}).Warnf("order placement failed: %v", err)
		return failedRecord(evidence, err), nil
	}

	e.alert(ctx, action, fmt.Sprintf("%s %s %s @ %.2f", action.ActionType, result.Quantity, *action.Symbol, price))

	raw, _ := json.Marshal(details{Evidence: evidence, Order: &result})
	return Record{
		Status:        models.ExecutionStatusSuccess,
		Details:       raw,
		TransactionID: &result.OrderID,
	}, nil
}

func (e *Executor) notify(ctx context.Context, action *models.Action, evidence trigger.Evidence, now time.Time) (Record, error) {
	body := fmt.Sprintf("action %s triggered (%s)", action.ID, action.TriggerType)
	if action.Notes != nil && *action.Notes != "" {
		body = *action.Notes
	}
	msg := notify.Message{
		Kind:     notify.KindActionTriggered,
		ActionID: action.ID,
		UserID:   action.UserID,
		Body:     body,
		SentAt:   now,
	}
	if action.Symbol != nil {
		msg.Symbol = *action.Symbol
	}

	if err := e.notifier.Notify(ctx, msg); err != nil {
		return failedRecord(evidence, err), nil
	}

	raw, _ := json.Marshal(details{Evidence: evidence, Message: &msg})
	return Record{
		Status:  models.ExecutionStatusSuccess,
		Details: raw,
	}, nil
}

// alert publishes a best-effort execution notice. Failures are logged and
// never affect the execution outcome.
func (e *Executor) alert(ctx context.Context, action *models.Action, body string) {
	msg := notify.Message{
		Kind:     notify.KindActionTriggered,
		ActionID: action.ID,
		UserID:   action.UserID,
		Body:     body,
	}
	if action.Symbol != nil {
		msg.Symbol = *action.Symbol
	}
	if err := e.notifier.Notify(ctx, msg); err != nil {
		log.Warnf("execution notice for action %s not published: %v", action.ID, err)
	}
}

func failedRecord(evidence trigger.Evidence, cause error) Record {
	raw, _ := json.Marshal(details{Evidence: evidence})
	reason := cause.Error()
	return Record{
		Status:  models.ExecutionStatusFailed,
		Details: raw,
		Error:   &reason,
	}
}
