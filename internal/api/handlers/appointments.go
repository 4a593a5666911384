package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"lawncare/internal/core"
	"lawncare/internal/notifications/dispatch"
	"lawncare/internal/types"
)

// AppointmentRescheduler moves an appointment after validating the target
// slot. Satisfied by reschedule.Recommender.
type AppointmentRescheduler interface {
	ConfirmReschedule(ctx context.Context, appointmentID string, date types.Date, timeOfDay string) (*types.Appointment, error)
}

// CreateAppointmentRequest is the body of POST /v1/appointments.
type CreateAppointmentRequest struct {
	CustomerID      string `json:"customer_id" validate:"required,max=100"`
	CustomerName    string `json:"customer_name" validate:"required,max=200"`
	CustomerEmail   string `json:"customer_email,omitempty" validate:"omitempty,email"`
	CustomerPhone   string `json:"customer_phone,omitempty" validate:"omitempty,e164"`
	Date            string `json:"date" validate:"required,datetime=2006-01-02"`
	Time            string `json:"time" validate:"required,hhmm"`
	DurationMinutes int    `json:"duration_minutes,omitempty" validate:"omitempty,min=15,max=720"`
	Service         string `json:"service" validate:"required,max=100"`
	Address         string `json:"address" validate:"required,max=500"`
	Notes           string `json:"notes,omitempty" validate:"max=2000"`
}

// UpdateAppointmentStatusRequest is the body of PATCH /v1/appointments/{id}/status.
type UpdateAppointmentStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=scheduled completed cancelled in-progress"`
}

// RescheduleRequest is the body of POST /v1/appointments/{id}/reschedule.
// An empty time keeps the current one.
type RescheduleRequest struct {
	Date string `json:"date" validate:"required,datetime=2006-01-02"`
	Time string `json:"time,omitempty" validate:"omitempty,hhmm"`
}

// RescheduleResponse reports the moved appointment and whether the
// customer confirmation was handed off.
type RescheduleResponse struct {
	Appointment  *types.Appointment `json:"appointment"`
	OriginalDate types.Date         `json:"original_date"`
	Notified     bool               `json:"notified"`
}

// AppointmentHandler serves the appointment calendar.
type AppointmentHandler struct {
	repo        types.AppointmentRepository
	rescheduler AppointmentRescheduler
	notifier    dispatch.Notifier
	validator   *core.Validator
	logger      *slog.Logger
}

func NewAppointmentHandler(
	repo types.AppointmentRepository,
	rescheduler AppointmentRescheduler,
	notifier dispatch.Notifier,
	v *core.Validator,
	l *slog.Logger,
) *AppointmentHandler {
	if l == nil {
		l = slog.Default()
	}
	return &AppointmentHandler{
		repo:        repo,
		rescheduler: rescheduler,
		notifier:    notifier,
		validator:   v,
		logger:      l,
	}
}

func (h *AppointmentHandler) RegisterRoutes(r chi.Router) {
	r.Route("/appointments", func(r chi.Router) {
		r.Get("/", h.List)
		r.Post("/", h.Create)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.Get)
			r.Patch("/status", h.UpdateStatus)
			r.Post("/reschedule", h.Reschedule)
			r.Post("/reminder", h.SendReminder)
		})
	})
}

// List handles GET /v1/appointments?status=&from=&to=.
func (h *AppointmentHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := types.AppointmentFilter{Status: types.AppointmentStatus(q.Get("status"))}
	if filter.Status != "" && !filter.Status.Valid() {
		core.Error(w, r, types.NewAppError(types.ErrCodeValidationInvalidStatus,
			fmt.Sprintf("unknown appointment status %q", filter.Status), nil))
		return
	}

	var err error
	if filter.FromDate, err = dateParam(q.Get("from"), "from"); err != nil {
		core.Error(w, r, err)
		return
	}
	if filter.ToDate, err = dateParam(q.Get("to"), "to"); err != nil {
		core.Error(w, r, err)
		return
	}

	items, err := h.repo.List(r.Context(), filter)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.JSON(w, r, http.StatusOK, types.NewListResponse(items))
}

// Create handles POST /v1/appointments. New appointments are always
// scheduled.
func (h *AppointmentHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateAppointmentRequest
	if err := h.validator.DecodeAndValidate(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}

	date, err := dateParam(req.Date, "date")
	if err != nil {
		core.Error(w, r, err)
		return
	}
	duration := req.DurationMinutes
	if duration == 0 {
		duration = 60
	}

	a := &types.Appointment{
		CustomerID:      req.CustomerID,
		CustomerName:    req.CustomerName,
		CustomerEmail:   req.CustomerEmail,
		CustomerPhone:   req.CustomerPhone,
		Date:            date,
		Time:            req.Time,
		DurationMinutes: duration,
		Service:         req.Service,
		Status:          types.AppointmentScheduled,
		Address:         req.Address,
		Notes:           req.Notes,
	}
	if err := h.repo.Create(r.Context(), a); err != nil {
		core.Error(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "appointment created",
		"appointment_id", a.ID,
		"customer_id", a.CustomerID,
		"date", a.Date.String(),
	)
	core.JSON(w, r, http.StatusCreated, core.APIResponse{Data: a})
}

// Get handles GET /v1/appointments/{id}.
func (h *AppointmentHandler) Get(w http.ResponseWriter, r *http.Request) {
	a, err := h.repo.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: a})
}

// UpdateStatus handles PATCH /v1/appointments/{id}/status.
func (h *AppointmentHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req UpdateAppointmentStatusRequest
	if err := h.validator.DecodeAndValidate(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}

	id := chi.URLParam(r, "id")
	if err := h.repo.UpdateStatus(r.Context(), id, types.AppointmentStatus(req.Status)); err != nil {
		core.Error(w, r, err)
		return
	}
	a, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: a})
}

// Reschedule handles POST /v1/appointments/{id}/reschedule. The move is
// committed before the customer is told; a failed hand-off is logged and
// reported as notified=false.
func (h *AppointmentHandler) Reschedule(w http.ResponseWriter, r *http.Request) {
	var req RescheduleRequest
	if err := h.validator.DecodeAndValidate(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	date, err := dateParam(req.Date, "date")
	if err != nil {
		core.Error(w, r, err)
		return
	}

	id := chi.URLParam(r, "id")
	before, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	updated, err := h.rescheduler.ConfirmReschedule(r.Context(), id, date, req.Time)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	resp := RescheduleResponse{Appointment: updated, OriginalDate: before.Date, Notified: true}
	if err := h.notifier.ConfirmReschedule(r.Context(), *updated, before.Date); err != nil {
		h.logger.WarnContext(r.Context(), "reschedule confirmation not sent",
			"appointment_id", id,
			"error", err,
		)
		resp.Notified = false
	}
	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: resp})
}

// SendReminder handles POST /v1/appointments/{id}/reminder.
func (h *AppointmentHandler) SendReminder(w http.ResponseWriter, r *http.Request) {
	a, err := h.repo.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		core.Error(w, r, err)
		return
	}
	if a.Status != types.AppointmentScheduled {
		core.Error(w, r, types.NewAppError(types.ErrCodeValidationInvalidStatus,
			fmt.Sprintf("appointment %s is %s; reminders go to scheduled appointments only", a.ID, a.Status), nil))
		return
	}
	if err := h.notifier.RemindAppointment(r.Context(), *a); err != nil {
		core.Error(w, r, types.NewAppError(types.ErrCodeUpstreamQueue, "failed to queue appointment reminder", err))
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// dateParam parses an optional "YYYY-MM-DD" value. Empty input yields the
// zero Date.
func dateParam(value, field string) (types.Date, error) {
	if value == "" {
		return types.Date{}, nil
	}
	d, err := types.ParseDate(value)
	if err != nil {
		return types.Date{}, types.NewAppErrorWithDetails(types.ErrCodeValidationInvalidDate,
			fmt.Sprintf("%s must be a YYYY-MM-DD date", field), err, map[string]any{"field": field})
	}
	return d, nil
}
