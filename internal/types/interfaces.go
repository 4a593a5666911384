package types

import (
	"context"
	"time"
)

// Validator is implemented by entities to self-validate.
type Validator interface {
	Validate() error
}

// AppointmentRepository is the data access interface for appointments.
type AppointmentRepository interface {
	List(ctx context.Context, filter AppointmentFilter) ([]Appointment, error)
	GetByID(ctx context.Context, id string) (*Appointment, error)
	Create(ctx context.Context, a *Appointment) error
	UpdateStatus(ctx context.Context, id string, status AppointmentStatus) error
	// Reschedule moves the appointment to a new day and time and returns the updated row.
	Reschedule(ctx context.Context, id string, date Date, timeOfDay string) (*Appointment, error)
}

// PreferenceRepository stores per-customer opt-in flags.
// Get returns a not_found_preference error when nothing is stored.
type PreferenceRepository interface {
	Get(ctx context.Context, customerID string) (*NotificationPreference, error)
	Upsert(ctx context.Context, p *NotificationPreference) error
}

// TemplateRepository stores the admin-editable template catalog.
type TemplateRepository interface {
	List(ctx context.Context) ([]NotificationTemplate, error)
	Get(ctx context.Context, id string) (*NotificationTemplate, error)
	Upsert(ctx context.Context, t *NotificationTemplate) error
}

// ProviderConfigRepository stores vendor configurations per channel.
type ProviderConfigRepository interface {
	ListByChannel(ctx context.Context, ch Channel) ([]ProviderConfig, error)
	Get(ctx context.Context, id string) (*ProviderConfig, error)
	// Upsert saves cfg. When cfg.IsDefault is set, every sibling on the same
	// channel has its default flag cleared in the same operation.
	Upsert(ctx context.Context, cfg *ProviderConfig) error
	// SetDefault marks id as the channel default and clears its siblings.
	SetDefault(ctx context.Context, ch Channel, id string) error
}

// HistoryRepository is the append-only notification log.
// Listings are most-recent-first.
type HistoryRepository interface {
	Append(ctx context.Context, h *NotificationHistory) error
	GetByID(ctx context.Context, id string) (*NotificationHistory, error)
	List(ctx context.Context, filter HistoryFilter) ([]NotificationHistory, error)
	UpdateStatus(ctx context.Context, id string, status NotificationStatus, errMsg string) error
	MarkRead(ctx context.Context, id string, at time.Time) error
}

// DeliveryTrackingRepository stores webhook-fed delivery tracking.
type DeliveryTrackingRepository interface {
	Create(ctx context.Context, t *DeliveryTracking) error
	FindByProviderMessageID(ctx context.Context, providerMessageID string) (*DeliveryTracking, error)
	AppendEvent(ctx context.Context, id string, event DeliveryEvent) error
}

// ReminderSettingsRepository stores the single invoice reminder settings document.
type ReminderSettingsRepository interface {
	Get(ctx context.Context) (*InvoiceReminderSettings, error)
	Save(ctx context.Context, s *InvoiceReminderSettings) error
}

// RepositoryRegistry provides access to all repository instances.
type RepositoryRegistry interface {
	Appointments() AppointmentRepository
	Preferences() PreferenceRepository
	Templates() TemplateRepository
	ProviderConfigs() ProviderConfigRepository
	History() HistoryRepository
	DeliveryTracking() DeliveryTrackingRepository
	ReminderSettings() ReminderSettingsRepository
}

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

// RealClock implements Clock using the real system time (always UTC).
type RealClock struct{}

// Now returns the current time in UTC.
func (RealClock) Now() time.Time { return time.Now().UTC() }

// Logger defines the structured logging interface used throughout the service.
type Logger interface {
	Info(msg string, args ...any)
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
	With(args ...any) Logger
}
