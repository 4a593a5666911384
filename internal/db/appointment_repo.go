package db

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"lawncare/internal/types"
)

// AppointmentRepository provides data access for the appointments table.
type AppointmentRepository struct {
	db DBTX
}

// NewAppointmentRepository creates a new AppointmentRepository backed by the
// given database connection (pool or transaction).
func NewAppointmentRepository(db DBTX) *AppointmentRepository {
	return &AppointmentRepository{db: db}
}

// appointmentColumns must match the scan order in scanAppointment.
const appointmentColumns = `id, customer_id, customer_name, customer_email, customer_phone,
	date, time_of_day, duration_minutes, service, status, address, notes,
	created_at, updated_at`

func scanAppointment(row pgx.Row) (*types.Appointment, error) {
	var a types.Appointment
	var email, phone, notes *string
	var day time.Time

	err := row.Scan(
		&a.ID,
		&a.CustomerID,
		&a.CustomerName,
		&email,
		&phone,
		&day,
		&a.Time,
		&a.DurationMinutes,
		&a.Service,
		&a.Status,
		&a.Address,
		&notes,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	a.CustomerEmail = deref(email)
	a.CustomerPhone = deref(phone)
	a.Notes = deref(notes)
	a.Date = types.DateOf(day)
	return &a, nil
}

func appointmentNotFound(id string) error {
	return types.NewAppError(types.ErrCodeNotFoundAppointment, fmt.Sprintf("appointment %s not found", id), nil)
}

// List returns matching appointments ordered by date, then time, then ID.
func (r *AppointmentRepository) List(ctx context.Context, filter types.AppointmentFilter) ([]types.Appointment, error) {
	var (
		where []string
		args  []any
	)
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if !filter.FromDate.IsZero() {
		args = append(args, filter.FromDate.Time)
		where = append(where, fmt.Sprintf("date >= $%d", len(args)))
	}
	if !filter.ToDate.IsZero() {
		args = append(args, filter.ToDate.Time)
		where = append(where, fmt.Sprintf("date <= $%d", len(args)))
	}

	query := `SELECT ` + appointmentColumns + ` FROM appointments`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY date, time_of_day, id`

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, dbErr("failed to list appointments", err)
	}
	defer rows.Close()

	out := []types.Appointment{}
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, dbErr("failed to scan appointment row", err)
		}
		out = append(out, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, dbErr("error iterating appointment rows", err)
	}
	return out, nil
}

func (r *AppointmentRepository) GetByID(ctx context.Context, id string) (*types.Appointment, error) {
	a, err := scanAppointment(r.db.QueryRow(ctx,
		`SELECT `+appointmentColumns+` FROM appointments WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, appointmentNotFound(id)
		}
		return nil, dbErr("failed to retrieve appointment", err)
	}
	return a, nil
}

// Create inserts a. An empty ID is generated and written back, and the
// timestamps are filled from the database.
func (r *AppointmentRepository) Create(ctx context.Context, a *types.Appointment) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.DurationMinutes == 0 {
		a.DurationMinutes = 60
	}
	if a.Status == "" {
		a.Status = types.AppointmentScheduled
	}

	err := r.db.QueryRow(ctx,
		`INSERT INTO appointments
		 (id, customer_id, customer_name, customer_email, customer_phone,
		  date, time_of_day, duration_minutes, service, status, address, notes, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, COALESCE($13, NOW()))
		 RETURNING created_at, updated_at`,
		a.ID,
		a.CustomerID,
		a.CustomerName,
		nilIfEmpty(a.CustomerEmail),
		nilIfEmpty(a.CustomerPhone),
		a.Date.Time,
		a.Time,
		a.DurationMinutes,
		a.Service,
		string(a.Status),
		a.Address,
		nilIfEmpty(a.Notes),
		nilIfZeroTime(a.CreatedAt),
	).Scan(&a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return types.NewAppError(types.ErrCodeValidationMissingField, fmt.Sprintf("appointment %s already exists", a.ID), err)
		}
		return dbErr("failed to create appointment", err)
	}
	return nil
}

func (r *AppointmentRepository) UpdateStatus(ctx context.Context, id string, status types.AppointmentStatus) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE appointments SET status = $1, updated_at = NOW() WHERE id = $2`,
		string(status), id,
	)
	if err != nil {
		return dbErr("failed to update appointment status", err)
	}
	if tag.RowsAffected() == 0 {
		return appointmentNotFound(id)
	}
	return nil
}

func (r *AppointmentRepository) Reschedule(ctx context.Context, id string, date types.Date, timeOfDay string) (*types.Appointment, error) {
	a, err := scanAppointment(r.db.QueryRow(ctx,
		`UPDATE appointments SET date = $1, time_of_day = $2, updated_at = NOW()
		 WHERE id = $3
		 RETURNING `+appointmentColumns,
		date.Time, timeOfDay, id,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, appointmentNotFound(id)
		}
		return nil, dbErr("failed to reschedule appointment", err)
	}
	return a, nil
}

var _ types.AppointmentRepository = (*AppointmentRepository)(nil)
