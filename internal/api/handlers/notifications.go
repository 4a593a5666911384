package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"lawncare/internal/core"
	"lawncare/internal/notifications/dispatch"
	"lawncare/internal/types"
)

// defaultHistoryLimit applies when a history listing has no limit.
const defaultHistoryLimit = 50

// maxHistoryLimit caps a history page.
const maxHistoryLimit = 500

// NotificationService is the subset of dispatch.Service behind the
// preference, history, send and template endpoints.
type NotificationService interface {
	Preferences(ctx context.Context, customerID string) (types.NotificationPreference, error)
	UpdatePreferences(ctx context.Context, p types.NotificationPreference) (types.NotificationPreference, error)
	CustomerHistory(ctx context.Context, customerID string, limit int) ([]types.NotificationHistory, error)
	AllHistory(ctx context.Context, filter types.HistoryFilter) ([]types.NotificationHistory, error)
	MarkRead(ctx context.Context, id string) (*types.NotificationHistory, error)
	SendNotification(ctx context.Context, req dispatch.SendRequest) (*types.NotificationHistory, error)

	Templates(ctx context.Context) ([]types.NotificationTemplate, error)
	Template(ctx context.Context, id string) (*types.NotificationTemplate, error)
	UpdateTemplate(ctx context.Context, t types.NotificationTemplate) (*types.NotificationTemplate, error)
	PreviewTemplate(ctx context.Context, id string, vars map[string]string) (*dispatch.Preview, error)
}

// UpdatePreferencesRequest is the body of PUT /v1/customers/{customerID}/preferences.
type UpdatePreferencesRequest struct {
	Email                   bool `json:"email"`
	SMS                     bool `json:"sms"`
	WeatherAlerts           bool `json:"weather_alerts"`
	AppointmentReminders    bool `json:"appointment_reminders"`
	RescheduleNotifications bool `json:"reschedule_notifications"`
	MarketingMessages       bool `json:"marketing_messages"`
}

// SendNotificationRequest is the body of POST /v1/notifications/send.
type SendNotificationRequest struct {
	CustomerID   string            `json:"customer_id" validate:"required,max=100"`
	CustomerName string            `json:"customer_name" validate:"max=200"`
	TemplateID   string            `json:"template_id" validate:"required,max=100"`
	Variables    map[string]string `json:"variables"`
	Recipient    string            `json:"recipient" validate:"required,max=320"`
}

// UpdateTemplateRequest is the body of PUT /v1/templates/{id}.
type UpdateTemplateRequest struct {
	Name    string `json:"name" validate:"required,max=200"`
	Channel string `json:"channel" validate:"required,channel"`
	Subject string `json:"subject,omitempty" validate:"max=300"`
	Body    string `json:"body" validate:"required"`
}

// PreviewTemplateRequest is the body of POST /v1/templates/{id}/preview.
type PreviewTemplateRequest struct {
	Variables map[string]string `json:"variables"`
}

// NotificationHandler serves customer preferences, the history log, ad hoc
// sends and the template catalog.
type NotificationHandler struct {
	svc       NotificationService
	validator *core.Validator
	logger    *slog.Logger
}

func NewNotificationHandler(svc NotificationService, v *core.Validator, l *slog.Logger) *NotificationHandler {
	if l == nil {
		l = slog.Default()
	}
	return &NotificationHandler{svc: svc, validator: v, logger: l}
}

func (h *NotificationHandler) RegisterRoutes(r chi.Router) {
	r.Route("/customers/{customerID}", func(r chi.Router) {
		r.Get("/preferences", h.GetPreferences)
		r.Put("/preferences", h.UpdatePreferences)
		r.Get("/notifications", h.CustomerHistory)
	})

	r.Route("/notifications", func(r chi.Router) {
		r.Get("/", h.ListHistory)
		r.Post("/send", h.Send)
		r.Post("/{id}/read", h.MarkRead)
	})

	r.Route("/templates", func(r chi.Router) {
		r.Get("/", h.ListTemplates)
		r.Get("/{id}", h.GetTemplate)
		r.Put("/{id}", h.UpdateTemplate)
		r.Post("/{id}/preview", h.PreviewTemplate)
	})
}

// GetPreferences handles GET /v1/customers/{customerID}/preferences.
// Customers with nothing stored get the defaults.
func (h *NotificationHandler) GetPreferences(w http.ResponseWriter, r *http.Request) {
	pref, err := h.svc.Preferences(r.Context(), chi.URLParam(r, "customerID"))
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: pref})
}

// UpdatePreferences handles PUT /v1/customers/{customerID}/preferences.
func (h *NotificationHandler) UpdatePreferences(w http.ResponseWriter, r *http.Request) {
	var req UpdatePreferencesRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}

	pref, err := h.svc.UpdatePreferences(r.Context(), types.NotificationPreference{
		CustomerID:              chi.URLParam(r, "customerID"),
		Email:                   req.Email,
		SMS:                     req.SMS,
		WeatherAlerts:           req.WeatherAlerts,
		AppointmentReminders:    req.AppointmentReminders,
		RescheduleNotifications: req.RescheduleNotifications,
		MarketingMessages:       req.MarketingMessages,
	})
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: pref})
}

// CustomerHistory handles GET /v1/customers/{customerID}/notifications?limit=.
func (h *NotificationHandler) CustomerHistory(w http.ResponseWriter, r *http.Request) {
	limit, err := limitParam(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	items, err := h.svc.CustomerHistory(r.Context(), chi.URLParam(r, "customerID"), limit)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.JSON(w, r, http.StatusOK, types.NewListResponse(items))
}

// ListHistory handles GET /v1/notifications?customer_id=&channel=&status=&limit=.
func (h *NotificationHandler) ListHistory(w http.ResponseWriter, r *http.Request) {
	limit, err := limitParam(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	q := r.URL.Query()
	items, err := h.svc.AllHistory(r.Context(), types.HistoryFilter{
		CustomerID: q.Get("customer_id"),
		Channel:    types.Channel(q.Get("channel")),
		Status:     types.NotificationStatus(q.Get("status")),
		Limit:      limit,
	})
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.JSON(w, r, http.StatusOK, types.NewListResponse(items))
}

// Send handles POST /v1/notifications/send. A vendor failure is recorded
// in history and returned as 502 with the history entry in the details.
func (h *NotificationHandler) Send(w http.ResponseWriter, r *http.Request) {
	var req SendNotificationRequest
	if err := h.validator.DecodeAndValidate(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}

	entry, err := h.svc.SendNotification(r.Context(), dispatch.SendRequest{
		CustomerID:   req.CustomerID,
		CustomerName: req.CustomerName,
		TemplateID:   req.TemplateID,
		Variables:    req.Variables,
		Recipient:    req.Recipient,
	})
	if err != nil {
		core.Error(w, r, err)
		return
	}
	if entry.Status == types.NotificationFailed {
		core.Error(w, r, types.NewAppErrorWithDetails(types.ErrCodeUpstreamProvider, entry.Error, nil,
			map[string]any{"history_id": entry.ID, "provider_id": entry.ProviderID}))
		return
	}
	core.JSON(w, r, http.StatusCreated, core.APIResponse{Data: entry})
}

// MarkRead handles POST /v1/notifications/{id}/read.
func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	entry, err := h.svc.MarkRead(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: entry})
}

// ListTemplates handles GET /v1/templates.
func (h *NotificationHandler) ListTemplates(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.Templates(r.Context())
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.JSON(w, r, http.StatusOK, types.NewListResponse(items))
}

// GetTemplate handles GET /v1/templates/{id}.
func (h *NotificationHandler) GetTemplate(w http.ResponseWriter, r *http.Request) {
	t, err := h.svc.Template(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: t})
}

// UpdateTemplate handles PUT /v1/templates/{id}. The path ID wins over
// anything in the body.
func (h *NotificationHandler) UpdateTemplate(w http.ResponseWriter, r *http.Request) {
	var req UpdateTemplateRequest
	if err := h.validator.DecodeAndValidate(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}

	id := chi.URLParam(r, "id")
	t, err := h.svc.UpdateTemplate(r.Context(), types.NotificationTemplate{
		ID:      id,
		Name:    req.Name,
		Channel: types.Channel(req.Channel),
		Subject: req.Subject,
		Body:    req.Body,
	})
	if err != nil {
		core.Error(w, r, err)
		return
	}
	h.logger.InfoContext(r.Context(), "template updated", "template_id", id)
	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: t})
}

// PreviewTemplate handles POST /v1/templates/{id}/preview.
func (h *NotificationHandler) PreviewTemplate(w http.ResponseWriter, r *http.Request) {
	var req PreviewTemplateRequest
	if r.ContentLength != 0 {
		if err := core.DecodeJSON(w, r, &req); err != nil {
			core.Error(w, r, err)
			return
		}
	}
	if req.Variables == nil {
		req.Variables = map[string]string{}
	}

	p, err := h.svc.PreviewTemplate(r.Context(), chi.URLParam(r, "id"), req.Variables)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: p})
}

// limitParam reads ?limit=, defaulting to 50 and capping at 500.
func limitParam(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return defaultHistoryLimit, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, types.NewAppErrorWithDetails(types.ErrCodeValidationMissingField,
			fmt.Sprintf("limit %q must be a positive integer", raw), err, map[string]any{"field": "limit"})
	}
	return min(n, maxHistoryLimit), nil
}
