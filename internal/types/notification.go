package types

import (
	"slices"
	"time"
)

// Channel identifies the delivery medium of a notification.
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
)

// Valid reports whether c is a known channel.
func (c Channel) Valid() bool {
	return c == ChannelEmail || c == ChannelSMS
}

// NotificationTemplate is a message body with {{variable}} placeholders.
// Subject is only used by email templates.
type NotificationTemplate struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Channel   Channel   `json:"channel"`
	Subject   string    `json:"subject,omitempty"`
	Body      string    `json:"body"`
	Variables []string  `json:"variables"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// NotificationPreference holds a customer's opt-in flags. When both Email
// and SMS are false the category flags have no effect but are retained.
type NotificationPreference struct {
	CustomerID              string    `json:"customer_id"`
	Email                   bool      `json:"email"`
	SMS                     bool      `json:"sms"`
	WeatherAlerts           bool      `json:"weather_alerts"`
	AppointmentReminders    bool      `json:"appointment_reminders"`
	RescheduleNotifications bool      `json:"reschedule_notifications"`
	MarketingMessages       bool      `json:"marketing_messages"`
	UpdatedAt               time.Time `json:"updated_at,omitempty"`
}

// DefaultNotificationPreference is returned for customers with nothing stored.
func DefaultNotificationPreference(customerID string) NotificationPreference {
	return NotificationPreference{
		CustomerID:              customerID,
		Email:                   true,
		SMS:                     false,
		WeatherAlerts:           true,
		AppointmentReminders:    true,
		RescheduleNotifications: true,
		MarketingMessages:       false,
	}
}

// AllowsChannel reports whether the customer accepts messages on ch.
func (p NotificationPreference) AllowsChannel(ch Channel) bool {
	switch ch {
	case ChannelEmail:
		return p.Email
	case ChannelSMS:
		return p.SMS
	}
	return false
}

// NotificationStatus is the status recorded on a history entry.
type NotificationStatus string

const (
	NotificationPending   NotificationStatus = "pending"
	NotificationSent      NotificationStatus = "sent"
	NotificationFailed    NotificationStatus = "failed"
	NotificationDelivered NotificationStatus = "delivered"
)

// NotificationHistory is one entry of the append-only notification log.
// Only Status, ReadTimestamp and the provider fields change after insert.
type NotificationHistory struct {
	ID                string             `json:"id"`
	CustomerID        string             `json:"customer_id"`
	CustomerName      string             `json:"customer_name"`
	Channel           Channel            `json:"channel"`
	TemplateID        string             `json:"template_id"`
	Recipient         string             `json:"recipient,omitempty"`
	Subject           string             `json:"subject,omitempty"`
	Body              string             `json:"body"`
	Status            NotificationStatus `json:"status"`
	ProviderID        string             `json:"provider_id,omitempty"`
	ProviderMessageID string             `json:"provider_message_id,omitempty"`
	Error             string             `json:"error,omitempty"`
	Timestamp         time.Time          `json:"timestamp"`
	ReadTimestamp     *time.Time         `json:"read_timestamp,omitempty"`
}

// InvoiceReminderSettings controls when invoice reminders go out.
type InvoiceReminderSettings struct {
	Enabled              bool     `json:"enabled"`
	DaysBeforeDue        []int    `json:"days_before_due"`
	OnDueDate            bool     `json:"on_due_date"`
	DaysAfterDue         []int    `json:"days_after_due"`
	ExceptionCustomerIDs []string `json:"exception_customer_ids"`
}

// DefaultInvoiceReminderSettings are used until an operator saves settings.
func DefaultInvoiceReminderSettings() InvoiceReminderSettings {
	return InvoiceReminderSettings{
		Enabled:              true,
		DaysBeforeDue:        []int{7, 3, 1},
		OnDueDate:            true,
		DaysAfterDue:         []int{1, 3, 7},
		ExceptionCustomerIDs: []string{},
	}
}

// IsException reports whether customerID is excluded from reminders.
func (s InvoiceReminderSettings) IsException(customerID string) bool {
	return slices.Contains(s.ExceptionCustomerIDs, customerID)
}

// NotificationKind names the higher-level dispatch flows.
type NotificationKind string

const (
	KindWeatherReschedule      NotificationKind = "weather_reschedule"
	KindRescheduleConfirmation NotificationKind = "reschedule_confirmation"
	KindAppointmentReminder    NotificationKind = "appointment_reminder"
	KindInvoiceReminder        NotificationKind = "invoice_reminder"
)
