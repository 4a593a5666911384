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
	"lawncare/internal/weather"
)

// RescheduleAdvisor evaluates the calendar against the forecast.
// Satisfied by reschedule.Recommender.
type RescheduleAdvisor interface {
	Recommendations(ctx context.Context, scenario types.Scenario) ([]types.RescheduleRecommendation, error)
	AffectedAppointments(ctx context.Context, scenario types.Scenario) ([]types.AffectedAppointment, error)
	AffectedCount(ctx context.Context, scenario types.Scenario) (int, error)
}

// AppointmentReader loads one appointment.
type AppointmentReader interface {
	GetByID(ctx context.Context, id string) (*types.Appointment, error)
}

// ForecastDay is a daily forecast with its lawn-care verdict.
type ForecastDay struct {
	types.DailyForecast
	Suitable bool   `json:"suitable"`
	Reason   string `json:"reason,omitempty"`
	Score    int    `json:"score"`
}

// ProposeRescheduleRequest picks which ranked option to offer the customer.
type ProposeRescheduleRequest struct {
	Scenario    string `json:"scenario,omitempty" validate:"omitempty,oneof=normal stormy"`
	OptionIndex int    `json:"option_index" validate:"min=0,max=2"`
}

// WeatherHandler serves forecasts, impact and reschedule recommendations.
type WeatherHandler struct {
	source       weather.Source
	advisor      RescheduleAdvisor
	appointments AppointmentReader
	notifier     dispatch.Notifier
	validator    *core.Validator
	logger       *slog.Logger
}

func NewWeatherHandler(
	source weather.Source,
	advisor RescheduleAdvisor,
	appointments AppointmentReader,
	notifier dispatch.Notifier,
	v *core.Validator,
	l *slog.Logger,
) *WeatherHandler {
	if l == nil {
		l = slog.Default()
	}
	return &WeatherHandler{
		source:       source,
		advisor:      advisor,
		appointments: appointments,
		notifier:     notifier,
		validator:    v,
		logger:       l,
	}
}

func (h *WeatherHandler) RegisterRoutes(r chi.Router) {
	r.Route("/weather", func(r chi.Router) {
		r.Get("/forecast", h.Forecast)
		r.Get("/affected", h.Affected)
		r.Get("/affected/count", h.AffectedCount)
		r.Get("/recommendations", h.Recommendations)
		r.Post("/recommendations/{appointmentID}/notify", h.ProposeReschedule)
	})
}

func scenarioParam(r *http.Request) (types.Scenario, error) {
	return types.ParseScenario(r.URL.Query().Get("scenario"))
}

// Forecast handles GET /v1/weather/forecast?scenario=.
func (h *WeatherHandler) Forecast(w http.ResponseWriter, r *http.Request) {
	scenario, err := scenarioParam(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	forecast, err := h.source.Forecast(r.Context(), scenario)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	days := make([]ForecastDay, len(forecast))
	for i, f := range forecast {
		s := weather.IsSuitableForLawnCare(f.Condition)
		days[i] = ForecastDay{
			DailyForecast: f,
			Suitable:      s.Suitable,
			Reason:        s.Reason,
			Score:         weather.SuitabilityScore(f),
		}
	}
	core.JSON(w, r, http.StatusOK, types.NewListResponse(days))
}

// Affected handles GET /v1/weather/affected?scenario=.
func (h *WeatherHandler) Affected(w http.ResponseWriter, r *http.Request) {
	scenario, err := scenarioParam(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	items, err := h.advisor.AffectedAppointments(r.Context(), scenario)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.JSON(w, r, http.StatusOK, types.NewListResponse(items))
}

// AffectedCount handles GET /v1/weather/affected/count?scenario=.
func (h *WeatherHandler) AffectedCount(w http.ResponseWriter, r *http.Request) {
	scenario, err := scenarioParam(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	n, err := h.advisor.AffectedCount(r.Context(), scenario)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: map[string]int{"count": n}})
}

// Recommendations handles GET /v1/weather/recommendations?scenario=.
func (h *WeatherHandler) Recommendations(w http.ResponseWriter, r *http.Request) {
	scenario, err := scenarioParam(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	recs, err := h.advisor.Recommendations(r.Context(), scenario)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.JSON(w, r, http.StatusOK, types.NewListResponse(recs))
}

// ProposeReschedule handles POST /v1/weather/recommendations/{appointmentID}/notify.
// It offers the chosen option to the customer without moving the
// appointment.
func (h *WeatherHandler) ProposeReschedule(w http.ResponseWriter, r *http.Request) {
	var req ProposeRescheduleRequest
	if err := h.validator.DecodeAndValidate(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	scenario, err := types.ParseScenario(req.Scenario)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	id := chi.URLParam(r, "appointmentID")
	a, err := h.appointments.GetByID(r.Context(), id)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	recs, err := h.advisor.Recommendations(r.Context(), scenario)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	var rec *types.RescheduleRecommendation
	for i := range recs {
		if recs[i].AppointmentID == id {
			rec = &recs[i]
			break
		}
	}
	if rec == nil {
		core.Error(w, r, types.NewAppError(types.ErrCodeValidationInvalidStatus,
			fmt.Sprintf("appointment %s has no reschedule recommendation", id), nil))
		return
	}
	if req.OptionIndex >= len(rec.Options) {
		core.Error(w, r, types.NewAppErrorWithDetails(types.ErrCodeValidationMissingField,
			fmt.Sprintf("option_index %d out of range", req.OptionIndex), nil,
			map[string]any{"options": len(rec.Options)}))
		return
	}

	option := rec.Options[req.OptionIndex]
	if err := h.notifier.ProposeReschedule(r.Context(), *a, rec.WeatherIssue, option); err != nil {
		core.Error(w, r, types.NewAppError(types.ErrCodeUpstreamQueue, "failed to queue reschedule proposal", err))
		return
	}

	h.logger.InfoContext(r.Context(), "reschedule proposed",
		"appointment_id", id,
		"proposed_date", option.Date.String(),
	)
	core.JSON(w, r, http.StatusAccepted, core.APIResponse{Data: option})
}
