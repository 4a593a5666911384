package dispatch

import (
	"time"

	"lawncare/internal/types"
)

const (
	dateLayout = "Monday, January 2"
	timeLayout = "3:04 PM"
)

// FormatDate renders a day the way templates show it, e.g. "Friday, June 12".
func FormatDate(d types.Date) string {
	if d.IsZero() {
		return ""
	}
	return d.Format(dateLayout)
}

// FormatTime turns "14:30" into "2:30 PM". Anything that is not HH:MM is
// returned unchanged.
func FormatTime(hhmm string) string {
	t, err := time.Parse(types.TimeOfDayLayout, hhmm)
	if err != nil {
		return hhmm
	}
	return t.Format(timeLayout)
}

// AppointmentVariables are the template variables every appointment flow
// shares.
func AppointmentVariables(a types.Appointment) map[string]string {
	return map[string]string{
		"customerName":    a.CustomerName,
		"service":         a.Service,
		"address":         a.Address,
		"appointmentDate": FormatDate(a.Date),
		"appointmentTime": FormatTime(a.Time),
	}
}

// WeatherRescheduleVariables adds the weather issue and the proposed slot.
func WeatherRescheduleVariables(a types.Appointment, weatherIssue string, option types.RescheduleOption) map[string]string {
	vars := AppointmentVariables(a)
	vars["weatherIssue"] = weatherIssue
	vars["newDate"] = FormatDate(option.Date)
	vars["newTime"] = FormatTime(option.Time)
	return vars
}

// RescheduleConfirmationVariables describes a move that already happened;
// a is the appointment after the move.
func RescheduleConfirmationVariables(a types.Appointment, originalDate types.Date) map[string]string {
	vars := AppointmentVariables(a)
	vars["originalDate"] = FormatDate(originalDate)
	vars["newDate"] = FormatDate(a.Date)
	vars["newTime"] = FormatTime(a.Time)
	return vars
}

// RecipientFor addresses an appointment's customer.
func RecipientFor(a types.Appointment) Recipient {
	return Recipient{
		CustomerID:   a.CustomerID,
		CustomerName: a.CustomerName,
		Email:        a.CustomerEmail,
		Phone:        a.CustomerPhone,
	}
}

// withDefaults layers vars over the company and customer defaults. The
// result is a new map.
func (s *Service) withDefaults(r Recipient, vars map[string]string) map[string]string {
	out := make(map[string]string, len(vars)+3)
	out["companyName"] = s.companyName
	out["companyPhone"] = s.companyPhone
	out["customerName"] = r.CustomerName
	for k, v := range vars {
		out[k] = v
	}
	return out
}
