package delivery

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"lawncare/internal/notifications/core"
	"lawncare/internal/types"
)

// Tracker applies status updates to the tracking record of a dispatched
// message and to the history entry it belongs to.
type Tracker struct {
	tracking types.DeliveryTrackingRepository
	history  types.HistoryRepository
	metrics  core.NotificationMetrics
	clock    types.Clock
	logger   *slog.Logger
}

// NewTracker creates a Tracker. Nil metrics, clock and logger fall back to
// no-op metrics, the wall clock and slog.Default.
func NewTracker(repos types.RepositoryRegistry, metrics core.NotificationMetrics, clock types.Clock, logger *slog.Logger) *Tracker {
	if metrics == nil {
		metrics = core.NoopMetrics{}
	}
	if clock == nil {
		clock = types.RealClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{
		tracking: repos.DeliveryTracking(),
		history:  repos.History(),
		metrics:  metrics,
		clock:    clock,
		logger:   logger.With("component", "delivery"),
	}
}

// HandleWebhook parses a vendor callback and applies every update in it.
// It returns the number of updates applied. Parse failures come back as
// rejections (see IsRejection); anything else is a processing error.
func (t *Tracker) HandleWebhook(ctx context.Context, provider, contentType string, body []byte) (int, error) {
	updates, err := Parse(provider, contentType, body)
	if err != nil {
		t.logger.Warn("webhook rejected", "provider", provider, "error", err.Error())
		return 0, err
	}
	for i, u := range updates {
		if err := t.UpdateStatus(ctx, u); err != nil {
			return i, err
		}
	}
	return len(updates), nil
}

// UpdateStatus appends the update to the message's event log and carries
// the outcome over to history. An unknown message ID is logged and
// accepted, since vendors also report on messages sent outside dispatch.
func (t *Tracker) UpdateStatus(ctx context.Context, u StatusUpdate) error {
	t.metrics.RecordWebhook(ctx, u.Provider, u.Status)

	rec, err := t.tracking.FindByProviderMessageID(ctx, u.ProviderMessageID)
	if types.IsNotFound(err) {
		t.logger.Warn("delivery update for unknown message",
			"provider", string(u.Provider),
			"provider_message_id", u.ProviderMessageID,
			"status", string(u.Status),
		)
		return nil
	}
	if err != nil {
		return fmt.Errorf("delivery: find tracking: %w", err)
	}

	at := u.Timestamp
	if at.IsZero() {
		at = t.clock.Now()
	}
	event := types.DeliveryEvent{Status: u.Status, Timestamp: at, Payload: u.Payload}
	if err := t.tracking.AppendEvent(ctx, rec.ID, event); err != nil {
		return fmt.Errorf("delivery: append event: %w", err)
	}

	if err := t.applyToHistory(ctx, rec.HistoryID, u, at); err != nil {
		return err
	}

	t.logger.Info("delivery status updated",
		"provider", string(u.Provider),
		"provider_message_id", u.ProviderMessageID,
		"history_id", rec.HistoryID,
		"status", string(u.Status),
	)
	return nil
}

func (t *Tracker) applyToHistory(ctx context.Context, historyID string, u StatusUpdate, at time.Time) error {
	if historyID == "" {
		return nil
	}

	var err error
	switch u.Status {
	case types.DeliveryDelivered:
		err = t.history.UpdateStatus(ctx, historyID, types.NotificationDelivered, "")
	case types.DeliveryBounced, types.DeliveryFailed:
		reason := u.Reason
		if reason == "" {
			reason = fmt.Sprintf("%s reported %s", u.Provider, u.Status)
		}
		err = t.history.UpdateStatus(ctx, historyID, types.NotificationFailed, reason)
	case types.DeliveryOpened, types.DeliveryClicked:
		err = t.markRead(ctx, historyID, at)
	}

	if types.IsNotFound(err) {
		t.logger.Warn("tracking record points at missing history entry", "history_id", historyID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("delivery: update history: %w", err)
	}
	return nil
}

func (t *Tracker) markRead(ctx context.Context, historyID string, at time.Time) error {
	entry, err := t.history.GetByID(ctx, historyID)
	if err != nil {
		return err
	}
	if entry.ReadTimestamp != nil {
		return nil
	}
	return t.history.MarkRead(ctx, historyID, at)
}
