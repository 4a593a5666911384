// Package memstore is an in-memory implementation of every repository in
// types.RepositoryRegistry. It backs local runs and tests. Each repository
// guards its own state with a sync.RWMutex and hands out copies, so callers
// never share memory with the store.
package memstore

import (
	"lawncare/internal/types"
)

// Store holds one of each repository.
type Store struct {
	appointments *AppointmentRepo
	preferences  *PreferenceRepo
	templates    *TemplateRepo
	providers    *ProviderConfigRepo
	history      *HistoryRepo
	tracking     *TrackingRepo
	reminders    *ReminderSettingsRepo
}

// New creates an empty Store. clock stamps UpdatedAt on mutations; nil
// means the real clock.
func New(clock types.Clock) *Store {
	if clock == nil {
		clock = types.RealClock{}
	}
	return &Store{
		appointments: &AppointmentRepo{clock: clock, rows: map[string]types.Appointment{}},
		preferences:  &PreferenceRepo{rows: map[string]types.NotificationPreference{}},
		templates:    &TemplateRepo{rows: map[string]types.NotificationTemplate{}},
		providers:    &ProviderConfigRepo{rows: map[string]types.ProviderConfig{}},
		history:      &HistoryRepo{index: map[string]int{}},
		tracking:     &TrackingRepo{rows: map[string]*types.DeliveryTracking{}, byMessage: map[string]string{}},
		reminders:    &ReminderSettingsRepo{},
	}
}

func (s *Store) Appointments() types.AppointmentRepository          { return s.appointments }
func (s *Store) Preferences() types.PreferenceRepository            { return s.preferences }
func (s *Store) Templates() types.TemplateRepository                { return s.templates }
func (s *Store) ProviderConfigs() types.ProviderConfigRepository    { return s.providers }
func (s *Store) History() types.HistoryRepository                   { return s.history }
func (s *Store) DeliveryTracking() types.DeliveryTrackingRepository { return s.tracking }
func (s *Store) ReminderSettings() types.ReminderSettingsRepository { return s.reminders }

var _ types.RepositoryRegistry = (*Store)(nil)
