// Package reschedule cross-references the forecast window against the
// appointment calendar to find weather-affected work and propose better days.
package reschedule

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"golang.org/x/sync/errgroup"

	"lawncare/internal/types"
	"lawncare/internal/weather"
)

const (
	// WindowDays bounds candidate days to [today, today+WindowDays].
	WindowDays = 14
	// MinScore is the lowest suitability score offered as an option.
	MinScore = 40
	// MaxOptions caps the options per recommendation.
	MaxOptions = 3

	goodScore = 80

	reasonGood       = "Good weather conditions"
	reasonAcceptable = "Acceptable weather conditions"
	defaultIssue     = "Weather conditions"
)

// FindBestRescheduleDays ranks the forecast days in [today, today+14] other
// than the appointment's own date by suitability score, highest first, with
// fewer conflicting appointments breaking ties. Days scoring below 40 are
// dropped and at most three options are returned. The suggested time is
// always the original time.
func FindBestRescheduleDays(a types.Appointment, forecast []types.DailyForecast, others []types.Appointment, today types.Date) []types.RescheduleOption {
	last := today.AddDays(WindowDays)

	options := make([]types.RescheduleOption, 0, len(forecast))
	for _, f := range forecast {
		if f.Date.Equal(a.Date) || f.Date.Before(today) || f.Date.After(last) {
			continue
		}
		score := weather.SuitabilityScore(f)
		if score < MinScore {
			continue
		}

		reason := reasonAcceptable
		if score > goodScore {
			reason = reasonGood
		}
		options = append(options, types.RescheduleOption{
			Date:               f.Date,
			Time:               a.Time,
			WeatherSuitability: score,
			Reason:             reason,
			ConflictCount:      conflictsOn(f.Date, a.ID, others),
		})
	}

	sort.SliceStable(options, func(i, j int) bool {
		if options[i].WeatherSuitability != options[j].WeatherSuitability {
			return options[i].WeatherSuitability > options[j].WeatherSuitability
		}
		return options[i].ConflictCount < options[j].ConflictCount
	})

	if len(options) > MaxOptions {
		options = options[:MaxOptions]
	}
	return options
}

// conflictsOn counts appointments other than self dated on day, whatever
// their status.
func conflictsOn(day types.Date, self string, others []types.Appointment) int {
	n := 0
	for _, o := range others {
		if o.ID != self && o.Date.Equal(day) {
			n++
		}
	}
	return n
}

// Recommender evaluates the stored calendar against a forecast source.
type Recommender struct {
	appointments types.AppointmentRepository
	source       weather.Source
	clock        types.Clock
	logger       *slog.Logger
}

// NewRecommender creates a Recommender. A nil clock uses the wall clock.
func NewRecommender(appointments types.AppointmentRepository, source weather.Source, clock types.Clock, logger *slog.Logger) *Recommender {
	if clock == nil {
		clock = types.RealClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Recommender{
		appointments: appointments,
		source:       source,
		clock:        clock,
		logger:       logger.With("component", "reschedule"),
	}
}

// snapshot is the forecast and calendar evaluated by one call.
type snapshot struct {
	today    types.Date
	forecast []types.DailyForecast
	all      []types.Appointment
}

// load fetches the forecast and the calendar concurrently.
func (r *Recommender) load(ctx context.Context, scenario types.Scenario) (*snapshot, error) {
	s := &snapshot{today: types.DateOf(r.clock.Now())}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		s.forecast, err = r.source.Forecast(gctx, scenario)
		return err
	})
	g.Go(func() error {
		var err error
		s.all, err = r.appointments.List(gctx, types.AppointmentFilter{})
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return s, nil
}

// upcoming returns the scheduled appointments dated today or later.
func (s *snapshot) upcoming() []types.Appointment {
	var out []types.Appointment
	for _, a := range s.all {
		if a.Status == types.AppointmentScheduled && !a.Date.Before(s.today) {
			out = append(out, a)
		}
	}
	return out
}

// affected pairs each upcoming appointment with its impact, keeping only the
// affected ones, sorted by date then severity.
func (s *snapshot) affected() []types.AffectedAppointment {
	var out []types.AffectedAppointment
	for _, a := range s.upcoming() {
		impact := weather.AppointmentImpact(a, s.forecast)
		if impact.Affected {
			out = append(out, types.AffectedAppointment{Appointment: a, Impact: impact})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		di, dj := out[i].Appointment.Date, out[j].Appointment.Date
		if !di.Equal(dj) {
			return di.Before(dj)
		}
		return out[i].Impact.Severity.Rank() < out[j].Impact.Severity.Rank()
	})
	return out
}

// Recommendations returns a recommendation for every weather-affected
// appointment that has at least one viable alternative day.
func (r *Recommender) Recommendations(ctx context.Context, scenario types.Scenario) ([]types.RescheduleRecommendation, error) {
	s, err := r.load(ctx, scenario)
	if err != nil {
		return nil, err
	}

	recs := make([]types.RescheduleRecommendation, 0)
	for _, aa := range s.affected() {
		a := aa.Appointment
		options := FindBestRescheduleDays(a, s.forecast, s.all, s.today)
		if len(options) == 0 {
			r.logger.InfoContext(ctx, "no viable reschedule days", "appointment_id", a.ID, "date", a.Date.String())
			continue
		}
		issue := aa.Impact.Reason
		if issue == "" {
			issue = defaultIssue
		}
		recs = append(recs, types.RescheduleRecommendation{
			AppointmentID: a.ID,
			OriginalDate:  a.Date,
			OriginalTime:  a.Time,
			CustomerName:  a.CustomerName,
			Service:       a.Service,
			WeatherIssue:  issue,
			Options:       options,
		})
	}
	return recs, nil
}

// AffectedAppointments lists weather-affected upcoming appointments by date,
// most severe first within a day.
func (r *Recommender) AffectedAppointments(ctx context.Context, scenario types.Scenario) ([]types.AffectedAppointment, error) {
	s, err := r.load(ctx, scenario)
	if err != nil {
		return nil, err
	}
	out := s.affected()
	if out == nil {
		out = []types.AffectedAppointment{}
	}
	return out, nil
}

// AffectedCount is len(AffectedAppointments).
func (r *Recommender) AffectedCount(ctx context.Context, scenario types.Scenario) (int, error) {
	s, err := r.load(ctx, scenario)
	if err != nil {
		return 0, err
	}
	return len(s.affected()), nil
}

// ConfirmReschedule moves a scheduled appointment to date. An empty
// timeOfDay keeps the original time. The appointment stays scheduled.
func (r *Recommender) ConfirmReschedule(ctx context.Context, appointmentID string, date types.Date, timeOfDay string) (*types.Appointment, error) {
	a, err := r.appointments.GetByID(ctx, appointmentID)
	if err != nil {
		return nil, err
	}
	if a.Status != types.AppointmentScheduled {
		return nil, types.NewAppError(types.ErrCodeValidationInvalidStatus,
			fmt.Sprintf("appointment %s is %s; only scheduled appointments can be rescheduled", a.ID, a.Status), nil)
	}
	if date.IsZero() {
		return nil, types.NewAppError(types.ErrCodeValidationInvalidDate, "new date is required", nil)
	}
	if today := types.DateOf(r.clock.Now()); date.Before(today) {
		return nil, types.NewAppError(types.ErrCodeValidationInvalidDate,
			fmt.Sprintf("cannot reschedule into the past (%s is before %s)", date, today), nil)
	}
	if timeOfDay == "" {
		timeOfDay = a.Time
	}
	if err := types.ValidateTimeOfDay(timeOfDay); err != nil {
		return nil, err
	}

	updated, err := r.appointments.Reschedule(ctx, a.ID, date, timeOfDay)
	if err != nil {
		return nil, err
	}
	r.logger.InfoContext(ctx, "appointment rescheduled",
		"appointment_id", a.ID, "from", a.Date.String(), "to", date.String(), "time", timeOfDay)
	return updated, nil
}
