package template

import (
	"context"
	"time"

	"lawncare/internal/types"
)

// Template families. Each has an email and an SMS variant whose ID is
// ID(family, channel).
const (
	WeatherReschedule      = "weather-reschedule"
	RescheduleConfirmation = "reschedule-confirmation"
	AppointmentReminder    = "appointment-reminder"
	InvoiceBeforeDue       = "invoice-reminder-before-due"
	InvoiceDueToday        = "invoice-due-today"
	InvoiceOverdue3        = "invoice-overdue-3"
	InvoiceOverdue7        = "invoice-overdue-7"
)

// ID joins a family and channel into a template ID.
func ID(family string, ch types.Channel) string {
	return family + "-" + string(ch)
}

// DefaultCatalog returns the built-in templates. The result is a fresh slice
// on every call.
func DefaultCatalog() []types.NotificationTemplate {
	return []types.NotificationTemplate{
		{
			ID:      ID(WeatherReschedule, types.ChannelEmail),
			Name:    "Weather Reschedule (Email)",
			Channel: types.ChannelEmail,
			Subject: "Weather update for your {{service}} appointment",
			Body: "Hi {{customerName}},\n\n" +
				"The forecast for {{appointmentDate}} shows {{weatherIssue}}, so we would like to move your " +
				"{{service}} appointment.\n\n" +
				"Suggested new date: {{newDate}} at {{newTime}}.\n\n" +
				"Reply to this email or call {{companyPhone}} if that does not work for you.\n\n" +
				"Thanks,\n{{companyName}}",
			Variables: []string{"customerName", "service", "appointmentDate", "weatherIssue", "newDate", "newTime", "companyName", "companyPhone"},
		},
		{
			ID:      ID(WeatherReschedule, types.ChannelSMS),
			Name:    "Weather Reschedule (SMS)",
			Channel: types.ChannelSMS,
			Body: "{{companyName}}: {{weatherIssue}} expected on {{appointmentDate}}. " +
				"We'd like to move your {{service}} to {{newDate}} at {{newTime}}. Reply STOP to opt out.",
			Variables: []string{"companyName", "weatherIssue", "appointmentDate", "service", "newDate", "newTime"},
		},
		{
			ID:      ID(RescheduleConfirmation, types.ChannelEmail),
			Name:    "Reschedule Confirmation (Email)",
			Channel: types.ChannelEmail,
			Subject: "Your {{service}} appointment has been rescheduled",
			Body: "Hi {{customerName}},\n\n" +
				"Your {{service}} appointment originally on {{originalDate}} is now booked for " +
				"{{newDate}} at {{newTime}}.\n\n" +
				"See you then,\n{{companyName}}",
			Variables: []string{"customerName", "service", "originalDate", "newDate", "newTime", "companyName"},
		},
		{
			ID:        ID(RescheduleConfirmation, types.ChannelSMS),
			Name:      "Reschedule Confirmation (SMS)",
			Channel:   types.ChannelSMS,
			Body:      "{{companyName}}: your {{service}} is confirmed for {{newDate}} at {{newTime}}.",
			Variables: []string{"companyName", "service", "newDate", "newTime"},
		},
		{
			ID:      ID(AppointmentReminder, types.ChannelEmail),
			Name:    "Appointment Reminder (Email)",
			Channel: types.ChannelEmail,
			Subject: "Reminder: {{service}} on {{appointmentDate}}",
			Body: "Hi {{customerName}},\n\n" +
				"This is a reminder that we will be at {{address}} on {{appointmentDate}} at " +
				"{{appointmentTime}} for your {{service}}.\n\n" +
				"Please make sure gates are unlocked and pets are inside.\n\n" +
				"{{companyName}}",
			Variables: []string{"customerName", "service", "address", "appointmentDate", "appointmentTime", "companyName"},
		},
		{
			ID:        ID(AppointmentReminder, types.ChannelSMS),
			Name:      "Appointment Reminder (SMS)",
			Channel:   types.ChannelSMS,
			Body:      "{{companyName}} reminder: {{service}} on {{appointmentDate}} at {{appointmentTime}}.",
			Variables: []string{"companyName", "service", "appointmentDate", "appointmentTime"},
		},
		{
			ID:      ID(InvoiceBeforeDue, types.ChannelEmail),
			Name:    "Invoice Reminder, Before Due (Email)",
			Channel: types.ChannelEmail,
			Subject: "Invoice {{invoiceNumber}} is due in {{daysUntilDue}} days",
			Body: "Hi {{customerName}},\n\n" +
				"Invoice {{invoiceNumber}} for {{amount}} is due on {{dueDate}}.\n\n" +
				"Pay online: {{paymentLink}}\n\n" +
				"Thank you,\n{{companyName}}",
			Variables: []string{"customerName", "invoiceNumber", "amount", "dueDate", "daysUntilDue", "paymentLink", "companyName"},
		},
		{
			ID:        ID(InvoiceBeforeDue, types.ChannelSMS),
			Name:      "Invoice Reminder, Before Due (SMS)",
			Channel:   types.ChannelSMS,
			Body:      "{{companyName}}: invoice {{invoiceNumber}} ({{amount}}) is due {{dueDate}}. Pay: {{paymentLink}}",
			Variables: []string{"companyName", "invoiceNumber", "amount", "dueDate", "paymentLink"},
		},
		{
			ID:      ID(InvoiceDueToday, types.ChannelEmail),
			Name:    "Invoice Due Today (Email)",
			Channel: types.ChannelEmail,
			Subject: "Invoice {{invoiceNumber}} is due today",
			Body: "Hi {{customerName}},\n\n" +
				"Invoice {{invoiceNumber}} for {{amount}} is due today.\n\n" +
				"Pay online: {{paymentLink}}\n\n" +
				"Thank you,\n{{companyName}}",
			Variables: []string{"customerName", "invoiceNumber", "amount", "paymentLink", "companyName"},
		},
		{
			ID:        ID(InvoiceDueToday, types.ChannelSMS),
			Name:      "Invoice Due Today (SMS)",
			Channel:   types.ChannelSMS,
			Body:      "{{companyName}}: invoice {{invoiceNumber}} ({{amount}}) is due today. Pay: {{paymentLink}}",
			Variables: []string{"companyName", "invoiceNumber", "amount", "paymentLink"},
		},
		{
			ID:      ID(InvoiceOverdue3, types.ChannelEmail),
			Name:    "Invoice Overdue (Email)",
			Channel: types.ChannelEmail,
			Subject: "Invoice {{invoiceNumber}} is past due",
			Body: "Hi {{customerName}},\n\n" +
				"Invoice {{invoiceNumber}} for {{amount}} was due on {{dueDate}} and is now " +
				"{{daysOverdue}} days overdue.\n\n" +
				"Pay online: {{paymentLink}}\n\n" +
				"If you have already paid, please disregard this message.\n\n" +
				"{{companyName}}",
			Variables: []string{"customerName", "invoiceNumber", "amount", "dueDate", "daysOverdue", "paymentLink", "companyName"},
		},
		{
			ID:        ID(InvoiceOverdue3, types.ChannelSMS),
			Name:      "Invoice Overdue (SMS)",
			Channel:   types.ChannelSMS,
			Body:      "{{companyName}}: invoice {{invoiceNumber}} ({{amount}}) is {{daysOverdue}} days overdue. Pay: {{paymentLink}}",
			Variables: []string{"companyName", "invoiceNumber", "amount", "daysOverdue", "paymentLink"},
		},
		{
			ID:      ID(InvoiceOverdue7, types.ChannelEmail),
			Name:    "Invoice Final Notice (Email)",
			Channel: types.ChannelEmail,
			Subject: "Final notice: invoice {{invoiceNumber}}",
			Body: "Hi {{customerName}},\n\n" +
				"Invoice {{invoiceNumber}} for {{amount}} is now {{daysOverdue}} days overdue. " +
				"Future service may be paused until the balance is settled.\n\n" +
				"Pay online: {{paymentLink}} or call {{companyPhone}}.\n\n" +
				"{{companyName}}",
			Variables: []string{"customerName", "invoiceNumber", "amount", "daysOverdue", "paymentLink", "companyPhone", "companyName"},
		},
		{
			ID:        ID(InvoiceOverdue7, types.ChannelSMS),
			Name:      "Invoice Final Notice (SMS)",
			Channel:   types.ChannelSMS,
			Body:      "{{companyName}}: FINAL NOTICE, invoice {{invoiceNumber}} ({{amount}}) is {{daysOverdue}} days overdue. Call {{companyPhone}}.",
			Variables: []string{"companyName", "invoiceNumber", "amount", "daysOverdue", "companyPhone"},
		},
	}
}

// Seed stores every catalog template the repository does not already have.
// Edited templates are left alone. It returns how many were added.
func Seed(ctx context.Context, repo types.TemplateRepository, now time.Time) (int, error) {
	existing, err := repo.List(ctx)
	if err != nil {
		return 0, err
	}
	have := make(map[string]bool, len(existing))
	for _, t := range existing {
		have[t.ID] = true
	}

	added := 0
	for _, t := range DefaultCatalog() {
		if have[t.ID] {
			continue
		}
		t.UpdatedAt = now
		if err := repo.Upsert(ctx, &t); err != nil {
			return added, err
		}
		added++
	}
	return added, nil
}
