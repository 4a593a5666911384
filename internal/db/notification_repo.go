package db

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"lawncare/internal/types"
)

// PreferenceRepository provides data access for notification_preferences.
type PreferenceRepository struct {
	db DBTX
}

func NewPreferenceRepository(db DBTX) *PreferenceRepository {
	return &PreferenceRepository{db: db}
}

// Get returns a not_found_preference error when the customer has no row.
func (r *PreferenceRepository) Get(ctx context.Context, customerID string) (*types.NotificationPreference, error) {
	p := types.NotificationPreference{CustomerID: customerID}
	err := r.db.QueryRow(ctx,
		`SELECT email, sms, weather_alerts, appointment_reminders,
		        reschedule_notifications, marketing_messages, updated_at
		 FROM notification_preferences WHERE customer_id = $1`,
		customerID,
	).Scan(
		&p.Email,
		&p.SMS,
		&p.WeatherAlerts,
		&p.AppointmentReminders,
		&p.RescheduleNotifications,
		&p.MarketingMessages,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeNotFoundPreference,
				fmt.Sprintf("no preferences stored for customer %s", customerID), nil)
		}
		return nil, dbErr("failed to retrieve preferences", err)
	}
	return &p, nil
}

func (r *PreferenceRepository) Upsert(ctx context.Context, p *types.NotificationPreference) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO notification_preferences
		 (customer_id, email, sms, weather_alerts, appointment_reminders,
		  reschedule_notifications, marketing_messages, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, COALESCE($8, NOW()))
		 ON CONFLICT (customer_id) DO UPDATE SET
		   email = EXCLUDED.email,
		   sms = EXCLUDED.sms,
		   weather_alerts = EXCLUDED.weather_alerts,
		   appointment_reminders = EXCLUDED.appointment_reminders,
		   reschedule_notifications = EXCLUDED.reschedule_notifications,
		   marketing_messages = EXCLUDED.marketing_messages,
		   updated_at = EXCLUDED.updated_at`,
		p.CustomerID,
		p.Email,
		p.SMS,
		p.WeatherAlerts,
		p.AppointmentReminders,
		p.RescheduleNotifications,
		p.MarketingMessages,
		nilIfZeroTime(p.UpdatedAt),
	)
	if err != nil {
		return dbErr("failed to save preferences", err)
	}
	return nil
}

// TemplateRepository provides data access for notification_templates.
type TemplateRepository struct {
	db DBTX
}

func NewTemplateRepository(db DBTX) *TemplateRepository {
	return &TemplateRepository{db: db}
}

const templateColumns = `id, name, channel, subject, body, variables, updated_at`

func scanTemplate(row pgx.Row) (*types.NotificationTemplate, error) {
	var t types.NotificationTemplate
	var subject *string
	if err := row.Scan(&t.ID, &t.Name, &t.Channel, &subject, &t.Body, &t.Variables, &t.UpdatedAt); err != nil {
		return nil, err
	}
	t.Subject = deref(subject)
	if t.Variables == nil {
		t.Variables = []string{}
	}
	return &t, nil
}

// List returns every template ordered by ID.
func (r *TemplateRepository) List(ctx context.Context) ([]types.NotificationTemplate, error) {
	rows, err := r.db.Query(ctx, `SELECT `+templateColumns+` FROM notification_templates ORDER BY id`)
	if err != nil {
		return nil, dbErr("failed to list templates", err)
	}
	defer rows.Close()

	out := []types.NotificationTemplate{}
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, dbErr("failed to scan template row", err)
		}
		out = append(out, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, dbErr("error iterating template rows", err)
	}
	return out, nil
}

func (r *TemplateRepository) Get(ctx context.Context, id string) (*types.NotificationTemplate, error) {
	t, err := scanTemplate(r.db.QueryRow(ctx,
		`SELECT `+templateColumns+` FROM notification_templates WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeNotFoundTemplate, fmt.Sprintf("template %s not found", id), nil)
		}
		return nil, dbErr("failed to retrieve template", err)
	}
	return t, nil
}

func (r *TemplateRepository) Upsert(ctx context.Context, t *types.NotificationTemplate) error {
	vars := t.Variables
	if vars == nil {
		vars = []string{}
	}
	_, err := r.db.Exec(ctx,
		`INSERT INTO notification_templates (id, name, channel, subject, body, variables, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, COALESCE($7, NOW()))
		 ON CONFLICT (id) DO UPDATE SET
		   name = EXCLUDED.name,
		   channel = EXCLUDED.channel,
		   subject = EXCLUDED.subject,
		   body = EXCLUDED.body,
		   variables = EXCLUDED.variables,
		   updated_at = EXCLUDED.updated_at`,
		t.ID,
		t.Name,
		string(t.Channel),
		nilIfEmpty(t.Subject),
		t.Body,
		vars,
		nilIfZeroTime(t.UpdatedAt),
	)
	if err != nil {
		return dbErr("failed to save template", err)
	}
	return nil
}

// HistoryRepository provides data access for notification_history. Rows
// are only ever inserted; status and read time are updated in place.
type HistoryRepository struct {
	db DBTX
}

func NewHistoryRepository(db DBTX) *HistoryRepository {
	return &HistoryRepository{db: db}
}

const historyColumns = `id, customer_id, customer_name, channel, template_id, recipient,
	subject, body, status, provider_id, provider_message_id, error, ts, read_at`

func scanHistory(row pgx.Row) (*types.NotificationHistory, error) {
	var h types.NotificationHistory
	var recipient, subject, providerID, messageID, errMsg *string

	err := row.Scan(
		&h.ID,
		&h.CustomerID,
		&h.CustomerName,
		&h.Channel,
		&h.TemplateID,
		&recipient,
		&subject,
		&h.Body,
		&h.Status,
		&providerID,
		&messageID,
		&errMsg,
		&h.Timestamp,
		&h.ReadTimestamp,
	)
	if err != nil {
		return nil, err
	}
	h.Recipient = deref(recipient)
	h.Subject = deref(subject)
	h.ProviderID = deref(providerID)
	h.ProviderMessageID = deref(messageID)
	h.Error = deref(errMsg)
	return &h, nil
}

func historyNotFound(id string) error {
	return types.NewAppError(types.ErrCodeNotFoundNotification, fmt.Sprintf("notification %s not found", id), nil)
}

func (r *HistoryRepository) Append(ctx context.Context, h *types.NotificationHistory) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO notification_history
		 (id, customer_id, customer_name, channel, template_id, recipient, subject, body,
		  status, provider_id, provider_message_id, error, ts, read_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, COALESCE($13, NOW()), $14)`,
		h.ID,
		h.CustomerID,
		h.CustomerName,
		string(h.Channel),
		h.TemplateID,
		nilIfEmpty(h.Recipient),
		nilIfEmpty(h.Subject),
		h.Body,
		string(h.Status),
		nilIfEmpty(h.ProviderID),
		nilIfEmpty(h.ProviderMessageID),
		nilIfEmpty(h.Error),
		nilIfZeroTime(h.Timestamp),
		h.ReadTimestamp,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return types.NewAppError(types.ErrCodeValidationMissingField, fmt.Sprintf("notification %s already recorded", h.ID), err)
		}
		return dbErr("failed to append notification history", err)
	}
	return nil
}

func (r *HistoryRepository) GetByID(ctx context.Context, id string) (*types.NotificationHistory, error) {
	h, err := scanHistory(r.db.QueryRow(ctx,
		`SELECT `+historyColumns+` FROM notification_history WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, historyNotFound(id)
		}
		return nil, dbErr("failed to retrieve notification", err)
	}
	return h, nil
}

// List returns matching entries newest first. The result is never nil.
func (r *HistoryRepository) List(ctx context.Context, filter types.HistoryFilter) ([]types.NotificationHistory, error) {
	var (
		where []string
		args  []any
	)
	add := func(column string, value any) {
		args = append(args, value)
		where = append(where, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if filter.CustomerID != "" {
		add("customer_id", filter.CustomerID)
	}
	if filter.Channel != "" {
		add("channel", string(filter.Channel))
	}
	if filter.Status != "" {
		add("status", string(filter.Status))
	}

	query := `SELECT ` + historyColumns + ` FROM notification_history`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY ts DESC, id DESC`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, dbErr("failed to list notification history", err)
	}
	defer rows.Close()

	out := []types.NotificationHistory{}
	for rows.Next() {
		h, err := scanHistory(rows)
		if err != nil {
			return nil, dbErr("failed to scan notification row", err)
		}
		out = append(out, *h)
	}
	if err := rows.Err(); err != nil {
		return nil, dbErr("error iterating notification rows", err)
	}
	return out, nil
}

// UpdateStatus sets the status. A non-empty errMsg replaces the stored error.
func (r *HistoryRepository) UpdateStatus(ctx context.Context, id string, status types.NotificationStatus, errMsg string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE notification_history SET status = $1, error = COALESCE($2, error) WHERE id = $3`,
		string(status), nilIfEmpty(errMsg), id,
	)
	if err != nil {
		return dbErr("failed to update notification status", err)
	}
	if tag.RowsAffected() == 0 {
		return historyNotFound(id)
	}
	return nil
}

func (r *HistoryRepository) MarkRead(ctx context.Context, id string, at time.Time) error {
	tag, err := r.db.Exec(ctx, `UPDATE notification_history SET read_at = $1 WHERE id = $2`, at, id)
	if err != nil {
		return dbErr("failed to mark notification read", err)
	}
	if tag.RowsAffected() == 0 {
		return historyNotFound(id)
	}
	return nil
}

var (
	_ types.PreferenceRepository = (*PreferenceRepository)(nil)
	_ types.TemplateRepository   = (*TemplateRepository)(nil)
	_ types.HistoryRepository    = (*HistoryRepository)(nil)
)
