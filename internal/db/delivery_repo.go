package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"lawncare/internal/types"
)

// TrackingRepository provides data access for delivery_tracking. The event
// log is a JSONB array that is only ever appended to.
type TrackingRepository struct {
	db DBTX
}

func NewTrackingRepository(db DBTX) *TrackingRepository {
	return &TrackingRepository{db: db}
}

func (r *TrackingRepository) Create(ctx context.Context, t *types.DeliveryTracking) error {
	events := t.Events
	if events == nil {
		events = types.DeliveryEventList{}
	}
	_, err := r.db.Exec(ctx,
		`INSERT INTO delivery_tracking
		 (id, history_id, provider_id, provider_message_id, status, ts, events, error)
		 VALUES ($1, $2, $3, $4, $5, COALESCE($6, NOW()), $7, $8)`,
		t.ID,
		nilIfEmpty(t.HistoryID),
		t.ProviderID,
		t.ProviderMessageID,
		string(t.Status),
		nilIfZeroTime(t.Timestamp),
		events,
		nilIfEmpty(t.Error),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return types.NewAppError(types.ErrCodeValidationMissingField,
				fmt.Sprintf("message %s is already tracked", t.ProviderMessageID), err)
		}
		return dbErr("failed to create delivery tracking", err)
	}
	return nil
}

func (r *TrackingRepository) FindByProviderMessageID(ctx context.Context, providerMessageID string) (*types.DeliveryTracking, error) {
	var t types.DeliveryTracking
	var historyID, errMsg *string

	err := r.db.QueryRow(ctx,
		`SELECT id, history_id, provider_id, provider_message_id, status, ts, events, error
		 FROM delivery_tracking WHERE provider_message_id = $1`,
		providerMessageID,
	).Scan(
		&t.ID,
		&historyID,
		&t.ProviderID,
		&t.ProviderMessageID,
		&t.Status,
		&t.Timestamp,
		&t.Events,
		&errMsg,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeNotFoundTracking,
				fmt.Sprintf("no delivery tracking for message %s", providerMessageID), nil)
		}
		return nil, dbErr("failed to retrieve delivery tracking", err)
	}
	t.HistoryID = deref(historyID)
	t.Error = deref(errMsg)
	return &t, nil
}

// AppendEvent adds event to the log and makes it the current status.
func (r *TrackingRepository) AppendEvent(ctx context.Context, id string, event types.DeliveryEvent) error {
	entry, err := json.Marshal([]types.DeliveryEvent{event})
	if err != nil {
		return dbErr("failed to encode delivery event", err)
	}
	tag, err := r.db.Exec(ctx,
		`UPDATE delivery_tracking
		 SET events = events || $1::jsonb, status = $2, ts = $3
		 WHERE id = $4`,
		string(entry), string(event.Status), event.Timestamp, id,
	)
	if err != nil {
		return dbErr("failed to append delivery event", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFoundTracking, fmt.Sprintf("delivery tracking %s not found", id), nil)
	}
	return nil
}

// ReminderSettingsRepository stores the single invoice reminder settings
// document as JSONB.
type ReminderSettingsRepository struct {
	db DBTX
}

func NewReminderSettingsRepository(db DBTX) *ReminderSettingsRepository {
	return &ReminderSettingsRepository{db: db}
}

func (r *ReminderSettingsRepository) Get(ctx context.Context) (*types.InvoiceReminderSettings, error) {
	var doc []byte
	err := r.db.QueryRow(ctx, `SELECT document FROM invoice_reminder_settings WHERE id = 1`).Scan(&doc)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeNotFoundSettings, "invoice reminder settings have not been saved", nil)
		}
		return nil, dbErr("failed to retrieve reminder settings", err)
	}

	var s types.InvoiceReminderSettings
	if err := json.Unmarshal(doc, &s); err != nil {
		return nil, dbErr("failed to decode reminder settings", err)
	}
	return &s, nil
}

func (r *ReminderSettingsRepository) Save(ctx context.Context, s *types.InvoiceReminderSettings) error {
	doc, err := json.Marshal(s)
	if err != nil {
		return dbErr("failed to encode reminder settings", err)
	}
	_, err = r.db.Exec(ctx,
		`INSERT INTO invoice_reminder_settings (id, document, updated_at)
		 VALUES (1, $1::jsonb, NOW())
		 ON CONFLICT (id) DO UPDATE SET document = EXCLUDED.document, updated_at = NOW()`,
		string(doc),
	)
	if err != nil {
		return dbErr("failed to save reminder settings", err)
	}
	return nil
}

var (
	_ types.DeliveryTrackingRepository = (*TrackingRepository)(nil)
	_ types.ReminderSettingsRepository = (*ReminderSettingsRepository)(nil)
)
