package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"lawncare/internal/core"
	"lawncare/internal/notifications/dispatch"
	"lawncare/internal/types"
)

// InvoiceReminderService owns the reminder schedule and sends reminders
// against it.
type InvoiceReminderService interface {
	ReminderSettings(ctx context.Context) (types.InvoiceReminderSettings, error)
	UpdateReminderSettings(ctx context.Context, settings types.InvoiceReminderSettings) (types.InvoiceReminderSettings, error)
	RemindInvoice(ctx context.Context, r dispatch.Recipient, inv dispatch.Invoice) ([]types.NotificationHistory, bool, error)
}

// InvoiceReminderRequest is the body of POST /v1/invoice-reminders.
type InvoiceReminderRequest struct {
	CustomerID   string `json:"customer_id" validate:"required,max=100"`
	CustomerName string `json:"customer_name" validate:"required,max=200"`
	Email        string `json:"email,omitempty" validate:"omitempty,email"`
	Phone        string `json:"phone,omitempty" validate:"omitempty,e164"`

	InvoiceID     string `json:"invoice_id" validate:"required"`
	InvoiceNumber string `json:"invoice_number" validate:"required"`
	Amount        string `json:"amount" validate:"required"`
	DueDate       string `json:"due_date" validate:"required,datetime=2006-01-02"`
	PaymentLink   string `json:"payment_link,omitempty" validate:"omitempty,url"`
}

// InvoiceReminderResponse says whether today was a reminder day and what
// went out.
type InvoiceReminderResponse struct {
	Due  bool                        `json:"due"`
	Sent []types.NotificationHistory `json:"sent"`
}

// InvoiceReminderHandler serves the reminder schedule and the check-and-send
// endpoint the billing system calls for each open invoice.
type InvoiceReminderHandler struct {
	svc       InvoiceReminderService
	validator *core.Validator
	logger    *slog.Logger
}

func NewInvoiceReminderHandler(svc InvoiceReminderService, v *core.Validator, l *slog.Logger) *InvoiceReminderHandler {
	if l == nil {
		l = slog.Default()
	}
	return &InvoiceReminderHandler{svc: svc, validator: v, logger: l}
}

func (h *InvoiceReminderHandler) RegisterRoutes(r chi.Router) {
	r.Route("/invoice-reminders", func(r chi.Router) {
		r.Post("/", h.Remind)
		r.Get("/settings", h.GetSettings)
		r.Put("/settings", h.UpdateSettings)
	})
}

// GetSettings handles GET /v1/invoice-reminders/settings.
func (h *InvoiceReminderHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.svc.ReminderSettings(r.Context())
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: settings})
}

// UpdateSettings handles PUT /v1/invoice-reminders/settings.
func (h *InvoiceReminderHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req types.InvoiceReminderSettings
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	settings, err := h.svc.UpdateReminderSettings(r.Context(), req)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	h.logger.InfoContext(r.Context(), "invoice reminder settings updated", "enabled", settings.Enabled)
	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: settings})
}

// Remind handles POST /v1/invoice-reminders. Nothing is sent unless today
// is a configured reminder day for the invoice.
func (h *InvoiceReminderHandler) Remind(w http.ResponseWriter, r *http.Request) {
	var req InvoiceReminderRequest
	if err := h.validator.DecodeAndValidate(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	due, err := dateParam(req.DueDate, "due_date")
	if err != nil {
		core.Error(w, r, err)
		return
	}

	sent, wasDue, err := h.svc.RemindInvoice(r.Context(),
		dispatch.Recipient{
			CustomerID:   req.CustomerID,
			CustomerName: req.CustomerName,
			Email:        req.Email,
			Phone:        req.Phone,
		},
		dispatch.Invoice{
			ID:          req.InvoiceID,
			Number:      req.InvoiceNumber,
			Amount:      req.Amount,
			DueDate:     due,
			PaymentLink: req.PaymentLink,
		})
	if err != nil {
		core.Error(w, r, err)
		return
	}
	if sent == nil {
		sent = []types.NotificationHistory{}
	}
	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: InvoiceReminderResponse{Due: wasDue, Sent: sent}})
}
