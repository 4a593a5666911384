package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"lawncare/internal/types"
)

// AppointmentRepo is the in-memory appointment calendar.
type AppointmentRepo struct {
	clock types.Clock

	mu   sync.RWMutex
	rows map[string]types.Appointment
}

func appointmentNotFound(id string) error {
	return types.NewAppError(types.ErrCodeNotFoundAppointment, fmt.Sprintf("appointment %s not found", id), nil)
}

// List returns matching appointments ordered by date, then time, then ID.
func (r *AppointmentRepo) List(_ context.Context, filter types.AppointmentFilter) ([]types.Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]types.Appointment, 0, len(r.rows))
	for _, a := range r.rows {
		if filter.Matches(&a) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		if out[i].Time != out[j].Time {
			return out[i].Time < out[j].Time
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *AppointmentRepo) GetByID(_ context.Context, id string) (*types.Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.rows[id]
	if !ok {
		return nil, appointmentNotFound(id)
	}
	return &a, nil
}

// Create stores a. An empty ID is generated and written back to a.
func (r *AppointmentRepo) Create(_ context.Context, a *types.Appointment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if _, exists := r.rows[a.ID]; exists {
		return types.NewAppError(types.ErrCodeValidationMissingField, fmt.Sprintf("appointment %s already exists", a.ID), nil)
	}
	now := r.clock.Now()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	a.UpdatedAt = now
	r.rows[a.ID] = *a
	return nil
}

func (r *AppointmentRepo) UpdateStatus(_ context.Context, id string, status types.AppointmentStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.rows[id]
	if !ok {
		return appointmentNotFound(id)
	}
	a.Status = status
	a.UpdatedAt = r.clock.Now()
	r.rows[id] = a
	return nil
}

func (r *AppointmentRepo) Reschedule(_ context.Context, id string, date types.Date, timeOfDay string) (*types.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.rows[id]
	if !ok {
		return nil, appointmentNotFound(id)
	}
	a.Date = date
	a.Time = timeOfDay
	a.UpdatedAt = r.clock.Now()
	r.rows[id] = a
	return &a, nil
}

var _ types.AppointmentRepository = (*AppointmentRepo)(nil)
