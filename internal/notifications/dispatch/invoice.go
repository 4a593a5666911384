package dispatch

import (
	"context"
	"slices"
	"strconv"

	"lawncare/internal/notifications/template"
	"lawncare/internal/types"
)

// overdueEscalation is the last day past due that still uses the first
// overdue tier.
const overdueEscalation = 3

// Invoice carries what the reminder templates show about a bill.
type Invoice struct {
	ID          string     `json:"id" validate:"required"`
	Number      string     `json:"number" validate:"required"`
	Amount      string     `json:"amount" validate:"required"`
	DueDate     types.Date `json:"due_date"`
	PaymentLink string     `json:"payment_link"`
}

// InvoiceTemplateFor picks the reminder template for a bill due in
// daysUntilDue days. Negative values are days overdue.
func InvoiceTemplateFor(daysUntilDue int, ch types.Channel) string {
	return template.ID(invoiceFamily(daysUntilDue), ch)
}

func invoiceFamily(daysUntilDue int) string {
	switch {
	case daysUntilDue > 0:
		return template.InvoiceBeforeDue
	case daysUntilDue == 0:
		return template.InvoiceDueToday
	case -daysUntilDue <= overdueEscalation:
		return template.InvoiceOverdue3
	default:
		return template.InvoiceOverdue7
	}
}

// reminderDue applies the schedule in settings to a bill due in
// daysUntilDue days.
func reminderDue(settings types.InvoiceReminderSettings, customerID string, daysUntilDue int) bool {
	if !settings.Enabled || settings.IsException(customerID) {
		return false
	}
	switch {
	case daysUntilDue > 0:
		return slices.Contains(settings.DaysBeforeDue, daysUntilDue)
	case daysUntilDue == 0:
		return settings.OnDueDate
	default:
		return slices.Contains(settings.DaysAfterDue, -daysUntilDue)
	}
}

// ShouldSendInvoiceReminder reports whether today is one of the configured
// reminder days for an invoice due on dueDate.
func (s *Service) ShouldSendInvoiceReminder(ctx context.Context, invoiceID string, dueDate types.Date, customerID string) (bool, error) {
	settings, err := s.ReminderSettings(ctx)
	if err != nil {
		return false, err
	}
	days := types.Today(s.clock.Now).DaysUntil(dueDate)
	due := reminderDue(settings, customerID, days)
	s.logger.Debug("invoice reminder check",
		"invoice_id", invoiceID,
		"customer_id", customerID,
		"days_until_due", days,
		"due", due,
	)
	return due, nil
}

// InvoiceVariables builds the invoice template variables relative to today.
func InvoiceVariables(inv Invoice, today types.Date) map[string]string {
	days := today.DaysUntil(inv.DueDate)
	overdue := 0
	if days < 0 {
		overdue = -days
	}
	return map[string]string{
		"invoiceNumber": inv.Number,
		"amount":        inv.Amount,
		"dueDate":       FormatDate(inv.DueDate),
		"daysUntilDue":  strconv.Itoa(max(days, 0)),
		"daysOverdue":   strconv.Itoa(overdue),
		"paymentLink":   inv.PaymentLink,
	}
}

// SendInvoiceReminder sends the tier of reminder that matches how close
// the invoice is to its due date. Only the channel opt-ins apply.
func (s *Service) SendInvoiceReminder(ctx context.Context, r Recipient, inv Invoice) []types.NotificationHistory {
	today := types.Today(s.clock.Now)
	days := today.DaysUntil(inv.DueDate)
	return s.fanOut(ctx, types.KindInvoiceReminder, r, invoiceFamily(days), InvoiceVariables(inv, today))
}

// RemindInvoice sends a reminder only when today is a configured reminder
// day. The bool reports whether a reminder was due.
func (s *Service) RemindInvoice(ctx context.Context, r Recipient, inv Invoice) ([]types.NotificationHistory, bool, error) {
	due, err := s.ShouldSendInvoiceReminder(ctx, inv.ID, inv.DueDate, r.CustomerID)
	if err != nil {
		return nil, false, err
	}
	if !due {
		return []types.NotificationHistory{}, false, nil
	}
	return s.SendInvoiceReminder(ctx, r, inv), true, nil
}
