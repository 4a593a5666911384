// Package db provides PostgreSQL-backed repository implementations for the
// lawn-care service. All repositories accept a DBTX interface that is
// satisfied by both *pgxpool.Pool (for normal queries) and pgx.Tx (for
// transactional execution).
package db

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"lawncare/internal/config"
	"lawncare/internal/types"
)

// DBTX is the minimal interface shared by *pgxpool.Pool and pgx.Tx.
// Repositories accept this so the same code works inside or outside a
// transaction.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

//go:embed schema.sql
var schemaSQL string

// Connect opens a pool tuned by cfg and verifies connectivity.
func Connect(ctx context.Context, cfg config.StorageConfig) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.URL.Unmask())
	if err != nil {
		return nil, fmt.Errorf("db: parse database url: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = int32(cfg.MaxConns)
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = int32(cfg.MinConns)
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.HealthCheckPeriod > 0 {
		poolCfg.HealthCheckPeriod = cfg.HealthCheckPeriod
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("db: create pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, acquireTimeout(cfg))
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("db: ping: %w", err)
	}
	return pool, nil
}

func acquireTimeout(cfg config.StorageConfig) time.Duration {
	if cfg.AcquireTimeout > 0 {
		return cfg.AcquireTimeout
	}
	return 2 * time.Second
}

// Migrate applies the embedded schema. Every statement is idempotent.
func Migrate(ctx context.Context, db DBTX) error {
	if _, err := db.Exec(ctx, schemaSQL); err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to apply schema", err)
	}
	return nil
}

// Registry implements types.RepositoryRegistry over one connection.
type Registry struct {
	appointments *AppointmentRepository
	preferences  *PreferenceRepository
	templates    *TemplateRepository
	providers    *ProviderConfigRepository
	history      *HistoryRepository
	tracking     *TrackingRepository
	reminders    *ReminderSettingsRepository
}

// NewRegistry builds every repository over db.
func NewRegistry(db DBTX) *Registry {
	return &Registry{
		appointments: NewAppointmentRepository(db),
		preferences:  NewPreferenceRepository(db),
		templates:    NewTemplateRepository(db),
		providers:    NewProviderConfigRepository(db),
		history:      NewHistoryRepository(db),
		tracking:     NewTrackingRepository(db),
		reminders:    NewReminderSettingsRepository(db),
	}
}

func (r *Registry) Appointments() types.AppointmentRepository          { return r.appointments }
func (r *Registry) Preferences() types.PreferenceRepository            { return r.preferences }
func (r *Registry) Templates() types.TemplateRepository                { return r.templates }
func (r *Registry) ProviderConfigs() types.ProviderConfigRepository    { return r.providers }
func (r *Registry) History() types.HistoryRepository                   { return r.history }
func (r *Registry) DeliveryTracking() types.DeliveryTrackingRepository { return r.tracking }
func (r *Registry) ReminderSettings() types.ReminderSettingsRepository { return r.reminders }

var _ types.RepositoryRegistry = (*Registry)(nil)

// nilIfEmpty returns nil if the string is empty, otherwise returns a pointer
// to the string. Used for nullable text columns.
func nilIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// nilIfZeroTime returns nil if the time is zero, otherwise returns a pointer
// to the time. Used to let the DB default (NOW()) apply when no time is set.
func nilIfZeroTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

// deref returns the pointed-to string or "" for NULL columns.
func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// isUniqueViolation checks if the error is a PostgreSQL unique constraint
// violation (error code 23505).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func dbErr(msg string, err error) error {
	return types.NewAppError(types.ErrCodeInternalDB, msg, err)
}
