package dispatch

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"lawncare/internal/notifications/template"
	"lawncare/internal/types"
)

// Recipient identifies a customer and the addresses they can be reached at.
type Recipient struct {
	CustomerID   string `json:"customer_id"`
	CustomerName string `json:"customer_name"`
	Email        string `json:"email,omitempty"`
	Phone        string `json:"phone,omitempty"`
}

// allowsKind applies the category opt-ins. Invoice reminders are gated by
// the channel flags alone.
func allowsKind(p types.NotificationPreference, kind types.NotificationKind) bool {
	switch kind {
	case types.KindWeatherReschedule:
		return p.WeatherAlerts && p.RescheduleNotifications
	case types.KindRescheduleConfirmation:
		return p.RescheduleNotifications
	case types.KindAppointmentReminder:
		return p.AppointmentReminders
	case types.KindInvoiceReminder:
		return true
	}
	return false
}

type target struct {
	channel types.Channel
	to      string
}

// fanOut sends one template family to every channel the customer accepts.
// Channels are sent concurrently and independently. Failures are logged
// and left out of the result, which is never nil.
func (s *Service) fanOut(ctx context.Context, kind types.NotificationKind, r Recipient, family string, vars map[string]string) []types.NotificationHistory {
	logger := s.logger.With("kind", string(kind), "customer_id", r.CustomerID)
	sent := []types.NotificationHistory{}

	pref, err := s.Preferences(ctx, r.CustomerID)
	if err != nil {
		logger.Error("failed to load preferences", "error", err)
		return sent
	}
	if !allowsKind(pref, kind) {
		logger.Info("customer has opted out of this notification kind")
		return sent
	}

	var targets []target
	if pref.Email {
		if r.Email == "" {
			logger.Warn("email enabled but customer has no email address")
		} else {
			targets = append(targets, target{types.ChannelEmail, r.Email})
		}
	}
	if pref.SMS {
		if r.Phone == "" {
			logger.Warn("sms enabled but customer has no phone number")
		} else {
			targets = append(targets, target{types.ChannelSMS, r.Phone})
		}
	}

	vars = s.withDefaults(r, vars)
	results := make([]*types.NotificationHistory, len(targets))

	var g errgroup.Group
	for i, t := range targets {
		g.Go(func() error {
			entry, err := s.SendNotification(ctx, SendRequest{
				CustomerID:   r.CustomerID,
				CustomerName: r.CustomerName,
				TemplateID:   template.ID(family, t.channel),
				Variables:    vars,
				Recipient:    t.to,
			})
			switch {
			case err != nil:
				logger.Warn("notification not sent", "channel", string(t.channel), "error", err)
			case entry.Status != types.NotificationSent:
				logger.Warn("notification failed", "channel", string(t.channel), "history_id", entry.ID, "error", entry.Error)
			default:
				results[i] = entry
			}
			return nil
		})
	}
	_ = g.Wait()

	for _, entry := range results {
		if entry != nil {
			sent = append(sent, *entry)
		}
	}
	return sent
}

// SendWeatherReschedule proposes option as the new slot for an appointment
// whose day has bad weather. It requires both the weather alert and the
// reschedule opt-ins.
func (s *Service) SendWeatherReschedule(ctx context.Context, a types.Appointment, weatherIssue string, option types.RescheduleOption) []types.NotificationHistory {
	return s.fanOut(ctx, types.KindWeatherReschedule, RecipientFor(a), template.WeatherReschedule,
		WeatherRescheduleVariables(a, weatherIssue, option))
}

// SendRescheduleConfirmation tells the customer an appointment has moved.
// a is the appointment after the move.
func (s *Service) SendRescheduleConfirmation(ctx context.Context, a types.Appointment, originalDate types.Date) []types.NotificationHistory {
	return s.fanOut(ctx, types.KindRescheduleConfirmation, RecipientFor(a), template.RescheduleConfirmation,
		RescheduleConfirmationVariables(a, originalDate))
}

// SendAppointmentReminder reminds the customer of an upcoming visit.
func (s *Service) SendAppointmentReminder(ctx context.Context, a types.Appointment) []types.NotificationHistory {
	return s.fanOut(ctx, types.KindAppointmentReminder, RecipientFor(a), template.AppointmentReminder, AppointmentVariables(a))
}

// ProcessJob runs a queued notification job. Job variables are used as
// given; the worker never looks the appointment up again.
func (s *Service) ProcessJob(ctx context.Context, job types.NotificationJob) ([]types.NotificationHistory, error) {
	r := Recipient{
		CustomerID:   job.CustomerID,
		CustomerName: job.CustomerName,
		Email:        job.Email,
		Phone:        job.Phone,
	}

	switch job.Kind {
	case types.KindWeatherReschedule:
		return s.fanOut(ctx, job.Kind, r, template.WeatherReschedule, job.Variables), nil
	case types.KindRescheduleConfirmation:
		return s.fanOut(ctx, job.Kind, r, template.RescheduleConfirmation, job.Variables), nil
	case types.KindAppointmentReminder:
		return s.fanOut(ctx, job.Kind, r, template.AppointmentReminder, job.Variables), nil
	case types.KindInvoiceReminder:
		inv := Invoice{
			ID:          job.InvoiceID,
			Number:      job.Variables["invoiceNumber"],
			Amount:      job.Variables["amount"],
			DueDate:     job.DueDate,
			PaymentLink: job.Variables["paymentLink"],
		}
		sent, _, err := s.RemindInvoice(ctx, r, inv)
		return sent, err
	}
	return nil, types.NewAppError(types.ErrCodeValidationMissingField,
		fmt.Sprintf("unknown notification kind %q", job.Kind), nil)
}
