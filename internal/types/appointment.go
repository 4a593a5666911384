package types

import (
	"fmt"
	"time"
)

// AppointmentStatus is the lifecycle state of an appointment. Appointments are
// never deleted; cancellation is a status.
type AppointmentStatus string

const (
	AppointmentScheduled  AppointmentStatus = "scheduled"
	AppointmentCompleted  AppointmentStatus = "completed"
	AppointmentCancelled  AppointmentStatus = "cancelled"
	AppointmentInProgress AppointmentStatus = "in-progress"
)

// Valid reports whether s is one of the known statuses.
func (s AppointmentStatus) Valid() bool {
	switch s {
	case AppointmentScheduled, AppointmentCompleted, AppointmentCancelled, AppointmentInProgress:
		return true
	}
	return false
}

// TimeOfDayLayout is the "HH:MM" format of Appointment.Time.
const TimeOfDayLayout = "15:04"

// Appointment is a scheduled unit of lawn-care work at a customer address.
type Appointment struct {
	ID              string            `json:"id"`
	CustomerID      string            `json:"customer_id"`
	CustomerName    string            `json:"customer_name"`
	CustomerEmail   string            `json:"customer_email,omitempty"`
	CustomerPhone   string            `json:"customer_phone,omitempty"`
	Date            Date              `json:"date"`
	Time            string            `json:"time"`
	DurationMinutes int               `json:"duration_minutes"`
	Service         string            `json:"service"`
	Status          AppointmentStatus `json:"status"`
	Address         string            `json:"address"`
	Notes           string            `json:"notes,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

// AppointmentFilter narrows AppointmentRepository.List. Zero values match all.
type AppointmentFilter struct {
	Status   AppointmentStatus
	FromDate Date
	ToDate   Date
}

// Matches reports whether a satisfies the filter.
func (f AppointmentFilter) Matches(a *Appointment) bool {
	if f.Status != "" && a.Status != f.Status {
		return false
	}
	if !f.FromDate.IsZero() && a.Date.Before(f.FromDate) {
		return false
	}
	if !f.ToDate.IsZero() && a.Date.After(f.ToDate) {
		return false
	}
	return true
}

// ValidateTimeOfDay checks that s is a 24-hour "HH:MM" clock time.
func ValidateTimeOfDay(s string) error {
	if _, err := time.Parse(TimeOfDayLayout, s); err != nil || len(s) != len(TimeOfDayLayout) {
		return NewAppError(ErrCodeValidationInvalidTime, fmt.Sprintf("time %q must be HH:MM", s), err)
	}
	return nil
}

// RescheduleOption is a candidate day for moving a weather-affected appointment.
type RescheduleOption struct {
	Date               Date   `json:"date"`
	Time               string `json:"time"`
	WeatherSuitability int    `json:"weather_suitability"`
	Reason             string `json:"reason"`
	ConflictCount      int    `json:"conflict_count"`
}

// RescheduleRecommendation bundles the ranked options for one appointment.
type RescheduleRecommendation struct {
	AppointmentID string             `json:"appointment_id"`
	OriginalDate  Date               `json:"original_date"`
	OriginalTime  string             `json:"original_time"`
	CustomerName  string             `json:"customer_name"`
	Service       string             `json:"service"`
	WeatherIssue  string             `json:"weather_issue"`
	Options       []RescheduleOption `json:"options"`
}

// AffectedAppointment pairs an appointment with the impact computed for it.
type AffectedAppointment struct {
	Appointment Appointment   `json:"appointment"`
	Impact      WeatherImpact `json:"impact"`
}
