package memstore

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"lawncare/internal/types"
)

// PreferenceRepo stores notification preferences by customer.
type PreferenceRepo struct {
	mu   sync.RWMutex
	rows map[string]types.NotificationPreference
}

func (r *PreferenceRepo) Get(_ context.Context, customerID string) (*types.NotificationPreference, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.rows[customerID]
	if !ok {
		return nil, types.NewAppError(types.ErrCodeNotFoundPreference,
			fmt.Sprintf("no preferences stored for customer %s", customerID), nil)
	}
	return &p, nil
}

func (r *PreferenceRepo) Upsert(_ context.Context, p *types.NotificationPreference) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows[p.CustomerID] = *p
	return nil
}

// TemplateRepo stores the template catalog.
type TemplateRepo struct {
	mu   sync.RWMutex
	rows map[string]types.NotificationTemplate
}

// List returns templates ordered by ID.
func (r *TemplateRepo) List(_ context.Context) ([]types.NotificationTemplate, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]types.NotificationTemplate, 0, len(r.rows))
	for _, t := range r.rows {
		t.Variables = slices.Clone(t.Variables)
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *TemplateRepo) Get(_ context.Context, id string) (*types.NotificationTemplate, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.rows[id]
	if !ok {
		return nil, types.NewAppError(types.ErrCodeNotFoundTemplate, fmt.Sprintf("template %s not found", id), nil)
	}
	t.Variables = slices.Clone(t.Variables)
	return &t, nil
}

func (r *TemplateRepo) Upsert(_ context.Context, t *types.NotificationTemplate) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := *t
	stored.Variables = slices.Clone(t.Variables)
	r.rows[t.ID] = stored
	return nil
}

// HistoryRepo is the append-only notification log. Entries are kept in
// insertion order and listed newest first.
type HistoryRepo struct {
	mu      sync.RWMutex
	entries []types.NotificationHistory
	index   map[string]int
}

func historyNotFound(id string) error {
	return types.NewAppError(types.ErrCodeNotFoundNotification, fmt.Sprintf("notification %s not found", id), nil)
}

func (r *HistoryRepo) Append(_ context.Context, h *types.NotificationHistory) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.index[h.ID]; exists {
		return types.NewAppError(types.ErrCodeValidationMissingField, fmt.Sprintf("notification %s already recorded", h.ID), nil)
	}
	r.index[h.ID] = len(r.entries)
	r.entries = append(r.entries, copyHistory(*h))
	return nil
}

func (r *HistoryRepo) GetByID(_ context.Context, id string) (*types.NotificationHistory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	i, ok := r.index[id]
	if !ok {
		return nil, historyNotFound(id)
	}
	h := copyHistory(r.entries[i])
	return &h, nil
}

// List walks the log newest first. Entries with equal timestamps come out
// in reverse insertion order.
func (r *HistoryRepo) List(_ context.Context, filter types.HistoryFilter) ([]types.NotificationHistory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := []types.NotificationHistory{}
	for i := len(r.entries) - 1; i >= 0; i-- {
		h := r.entries[i]
		if filter.CustomerID != "" && h.CustomerID != filter.CustomerID {
			continue
		}
		if filter.Channel != "" && h.Channel != filter.Channel {
			continue
		}
		if filter.Status != "" && h.Status != filter.Status {
			continue
		}
		out = append(out, copyHistory(h))
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (r *HistoryRepo) UpdateStatus(_ context.Context, id string, status types.NotificationStatus, errMsg string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	i, ok := r.index[id]
	if !ok {
		return historyNotFound(id)
	}
	r.entries[i].Status = status
	if errMsg != "" {
		r.entries[i].Error = errMsg
	}
	return nil
}

func (r *HistoryRepo) MarkRead(_ context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	i, ok := r.index[id]
	if !ok {
		return historyNotFound(id)
	}
	r.entries[i].ReadTimestamp = &at
	return nil
}

func copyHistory(h types.NotificationHistory) types.NotificationHistory {
	if h.ReadTimestamp != nil {
		at := *h.ReadTimestamp
		h.ReadTimestamp = &at
	}
	return h
}

// TrackingRepo stores delivery tracking, indexed by vendor message ID.
type TrackingRepo struct {
	mu        sync.RWMutex
	rows      map[string]*types.DeliveryTracking
	byMessage map[string]string
}

func (r *TrackingRepo) Create(_ context.Context, t *types.DeliveryTracking) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := copyTracking(t)
	r.rows[t.ID] = stored
	r.byMessage[t.ProviderMessageID] = t.ID
	return nil
}

func (r *TrackingRepo) FindByProviderMessageID(_ context.Context, providerMessageID string) (*types.DeliveryTracking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byMessage[providerMessageID]
	if !ok {
		return nil, types.NewAppError(types.ErrCodeNotFoundTracking,
			fmt.Sprintf("no delivery tracking for message %s", providerMessageID), nil)
	}
	return copyTracking(r.rows[id]), nil
}

// AppendEvent adds event to the log and makes it the current status.
func (r *TrackingRepo) AppendEvent(_ context.Context, id string, event types.DeliveryEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.rows[id]
	if !ok {
		return types.NewAppError(types.ErrCodeNotFoundTracking, fmt.Sprintf("delivery tracking %s not found", id), nil)
	}
	t.Events = append(t.Events, event)
	t.Status = event.Status
	t.Timestamp = event.Timestamp
	return nil
}

func copyTracking(t *types.DeliveryTracking) *types.DeliveryTracking {
	out := *t
	out.Events = slices.Clone(t.Events)
	return &out
}

// ReminderSettingsRepo holds the single settings document.
type ReminderSettingsRepo struct {
	mu       sync.RWMutex
	settings *types.InvoiceReminderSettings
}

func (r *ReminderSettingsRepo) Get(_ context.Context) (*types.InvoiceReminderSettings, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.settings == nil {
		return nil, types.NewAppError(types.ErrCodeNotFoundSettings, "invoice reminder settings have not been saved", nil)
	}
	s := cloneSettings(*r.settings)
	return &s, nil
}

func (r *ReminderSettingsRepo) Save(_ context.Context, s *types.InvoiceReminderSettings) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := cloneSettings(*s)
	r.settings = &stored
	return nil
}

func cloneSettings(s types.InvoiceReminderSettings) types.InvoiceReminderSettings {
	s.DaysBeforeDue = slices.Clone(s.DaysBeforeDue)
	s.DaysAfterDue = slices.Clone(s.DaysAfterDue)
	s.ExceptionCustomerIDs = slices.Clone(s.ExceptionCustomerIDs)
	return s
}

var (
	_ types.PreferenceRepository       = (*PreferenceRepo)(nil)
	_ types.TemplateRepository         = (*TemplateRepo)(nil)
	_ types.HistoryRepository          = (*HistoryRepo)(nil)
	_ types.DeliveryTrackingRepository = (*TrackingRepo)(nil)
	_ types.ReminderSettingsRepository = (*ReminderSettingsRepo)(nil)
)
