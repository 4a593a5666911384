package reschedule

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lawncare/internal/types"
	"lawncare/internal/weather"
)

// --- Mock Dependencies ---

type mockClock struct {
	now time.Time
}

func (c *mockClock) Now() time.Time { return c.now }

var today = types.NewDate(2026, time.June, 10)

func fixedClock() *mockClock {
	return &mockClock{now: time.Date(2026, time.June, 10, 9, 0, 0, 0, time.UTC)}
}

// mockAppointmentRepo is a minimal in-memory AppointmentRepository.
type mockAppointmentRepo struct {
	mu      sync.Mutex
	items   []types.Appointment
	listErr error
}

func (m *mockAppointmentRepo) List(_ context.Context, f types.AppointmentFilter) ([]types.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []types.Appointment
	for i := range m.items {
		if f.Matches(&m.items[i]) {
			out = append(out, m.items[i])
		}
	}
	return out, nil
}

func (m *mockAppointmentRepo) GetByID(_ context.Context, id string) (*types.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.items {
		if m.items[i].ID == id {
			a := m.items[i]
			return &a, nil
		}
	}
	return nil, types.NewAppError(types.ErrCodeNotFoundAppointment, "appointment not found", nil)
}

func (m *mockAppointmentRepo) Create(_ context.Context, a *types.Appointment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = append(m.items, *a)
	return nil
}

func (m *mockAppointmentRepo) UpdateStatus(context.Context, string, types.AppointmentStatus) error {
	return nil
}

func (m *mockAppointmentRepo) Reschedule(_ context.Context, id string, date types.Date, timeOfDay string) (*types.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.items {
		if m.items[i].ID == id {
			m.items[i].Date = date
			m.items[i].Time = timeOfDay
			a := m.items[i]
			return &a, nil
		}
	}
	return nil, types.NewAppError(types.ErrCodeNotFoundAppointment, "appointment not found", nil)
}

// staticSource returns a fixed forecast.
type staticSource struct {
	days []types.DailyForecast
	err  error
}

func (s *staticSource) Name() string { return "static" }

func (s *staticSource) Forecast(context.Context, types.Scenario) ([]types.DailyForecast, error) {
	return s.days, s.err
}

func appt(id string, offset int, status types.AppointmentStatus) types.Appointment {
	return types.Appointment{
		ID:           id,
		CustomerID:   "cust-" + id,
		CustomerName: "Customer " + id,
		Date:         today.AddDays(offset),
		Time:         "09:30",
		Service:      "Mowing",
		Status:       status,
	}
}

func calendar() *mockAppointmentRepo {
	return &mockAppointmentRepo{items: []types.Appointment{
		appt("storm", 1, types.AppointmentScheduled),
		appt("wind", 5, types.AppointmentScheduled),
		appt("done", 3, types.AppointmentCompleted),
		appt("cancelled", 2, types.AppointmentCancelled),
		appt("past", -1, types.AppointmentScheduled),
		appt("fair", 4, types.AppointmentScheduled),
	}}
}

func newRecommender(repo types.AppointmentRepository, src weather.Source) *Recommender {
	return NewRecommender(repo, src, fixedClock(), nil)
}

func day(offset int, c types.WeatherCondition, chance float64) types.DailyForecast {
	return types.DailyForecast{Date: today.AddDays(offset), Condition: c, PrecipitationChance: chance}
}

func fair(temp float64) types.WeatherCondition {
	return types.WeatherCondition{Temperature: temp, WindSpeed: 5}
}

// --- FindBestRescheduleDays ---

func TestFindBestRescheduleDays_RanksAndTruncates(t *testing.T) {
	a := appt("a", 2, types.AppointmentScheduled)
	forecast := []types.DailyForecast{
		day(-1, fair(75), 0),  // before today
		day(0, fair(75), 50),  // 65
		day(1, fair(75), 10),  // 93
		day(2, fair(75), 0),   // original date
		day(3, fair(75), 10),  // 93, but busier
		day(4, fair(75), 0),   // 100
		day(5, fair(75), 80),  // 44
		day(6, fair(75), 90),  // 37, dropped
		day(15, fair(75), 0),  // beyond the window
		day(14, fair(100), 0), // too hot: 30, dropped
	}
	others := []types.Appointment{
		appt("x", 3, types.AppointmentScheduled),
		appt("y", 3, types.AppointmentInProgress),
		appt("a", 1, types.AppointmentScheduled), // the appointment itself never conflicts
		appt("z", 3, types.AppointmentCancelled),
		appt("w", 3, types.AppointmentCompleted),
	}

	got := FindBestRescheduleDays(a, forecast, others, today)
	require.Len(t, got, 3)

	assert.True(t, got[0].Date.Equal(today.AddDays(4)))
	assert.Equal(t, 100, got[0].WeatherSuitability)
	assert.Equal(t, "Good weather conditions", got[0].Reason)

	assert.True(t, got[1].Date.Equal(today.AddDays(1)), "equal scores sort by fewer conflicts")
	assert.Equal(t, 0, got[1].ConflictCount)
	assert.True(t, got[2].Date.Equal(today.AddDays(3)))
	assert.Equal(t, 4, got[2].ConflictCount, "every other appointment on the day counts, cancelled and completed included")

	for _, o := range got {
		assert.Equal(t, "09:30", o.Time)
	}
}

func TestFindBestRescheduleDays_AcceptableReason(t *testing.T) {
	a := appt("a", 3, types.AppointmentScheduled)
	got := FindBestRescheduleDays(a, []types.DailyForecast{day(0, fair(75), 40), day(1, fair(75), 28)}, nil, today)
	require.Len(t, got, 2)
	assert.Equal(t, 80, got[0].WeatherSuitability)
	assert.Equal(t, "Acceptable weather conditions", got[0].Reason, "80 is not above the good threshold")
	assert.Equal(t, 72, got[1].WeatherSuitability)
}

func TestFindBestRescheduleDays_AllDaysPoor(t *testing.T) {
	a := appt("a", 1, types.AppointmentScheduled)
	stormy := types.WeatherCondition{IsStormy: true}
	forecast := []types.DailyForecast{day(0, stormy, 90), day(1, stormy, 90), day(2, fair(75), 95)}
	assert.Empty(t, FindBestRescheduleDays(a, forecast, nil, today))
}

// --- Recommender ---

func TestRecommendations_StormyScenario(t *testing.T) {
	r := newRecommender(calendar(), weather.NewMockSource(fixedClock()))

	recs, err := r.Recommendations(context.Background(), types.ScenarioStormy)
	require.NoError(t, err)
	require.Len(t, recs, 2)

	storm := recs[0]
	assert.Equal(t, "storm", storm.AppointmentID)
	assert.Equal(t, weather.ReasonStormy, storm.WeatherIssue)
	assert.Equal(t, "Customer storm", storm.CustomerName)
	assert.Equal(t, "09:30", storm.OriginalTime)
	require.Len(t, storm.Options, 3)
	assert.True(t, storm.Options[0].Date.Equal(today))
	assert.Equal(t, 100, storm.Options[0].WeatherSuitability)
	assert.True(t, storm.Options[1].Date.Equal(today.AddDays(13)))
	assert.True(t, storm.Options[2].Date.Equal(today.AddDays(9)))

	assert.Equal(t, "wind", recs[1].AppointmentID)
	assert.Equal(t, weather.ReasonHighWinds, recs[1].WeatherIssue)
}

func TestRecommendations_NormalScenarioIsEmpty(t *testing.T) {
	r := newRecommender(calendar(), weather.NewMockSource(fixedClock()))

	recs, err := r.Recommendations(context.Background(), types.ScenarioNormal)
	require.NoError(t, err)
	assert.NotNil(t, recs)
	assert.Empty(t, recs)

	n, err := r.AffectedCount(context.Background(), types.ScenarioNormal)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRecommendations_SkipsAppointmentsWithoutOptions(t *testing.T) {
	stormy := types.WeatherCondition{IsStormy: true}
	src := &staticSource{days: []types.DailyForecast{day(0, stormy, 99), day(1, stormy, 99), day(2, stormy, 99)}}
	repo := &mockAppointmentRepo{items: []types.Appointment{appt("a", 1, types.AppointmentScheduled)}}

	r := newRecommender(repo, src)
	recs, err := r.Recommendations(context.Background(), types.ScenarioNormal)
	require.NoError(t, err)
	assert.Empty(t, recs)

	n, err := r.AffectedCount(context.Background(), types.ScenarioNormal)
	require.NoError(t, err)
	assert.Equal(t, 1, n, "still affected even with nowhere to move it")
}

func TestAffectedAppointments_SortedByDateThenSeverity(t *testing.T) {
	src := &staticSource{days: []types.DailyForecast{
		day(0, fair(75), 0),
		day(1, fair(75), 80),                                            // medium
		day(2, types.WeatherCondition{IsStormy: true}, 0),               // high
		day(3, types.WeatherCondition{Temperature: 30, WindSpeed: 2}, 0), // medium
	}}
	repo := &mockAppointmentRepo{items: []types.Appointment{
		appt("cold", 3, types.AppointmentScheduled),
		appt("storm", 2, types.AppointmentScheduled),
		appt("drizzle", 1, types.AppointmentScheduled),
		appt("ok", 0, types.AppointmentScheduled),
	}}

	got, err := newRecommender(repo, src).AffectedAppointments(context.Background(), types.ScenarioNormal)
	require.NoError(t, err)

	ids := make([]string, len(got))
	for i, aa := range got {
		ids[i] = aa.Appointment.ID
	}
	assert.Equal(t, []string{"drizzle", "storm", "cold"}, ids)
	assert.Equal(t, types.SeverityHigh, got[1].Impact.Severity)
}

func TestRecommender_PropagatesLoadErrors(t *testing.T) {
	boom := errors.New("forecast down")
	r := newRecommender(calendar(), &staticSource{err: boom})
	_, err := r.Recommendations(context.Background(), types.ScenarioNormal)
	assert.ErrorIs(t, err, boom)

	repoErr := errors.New("db down")
	r = newRecommender(&mockAppointmentRepo{listErr: repoErr}, weather.NewMockSource(fixedClock()))
	_, err = r.AffectedAppointments(context.Background(), types.ScenarioNormal)
	assert.ErrorIs(t, err, repoErr)
}

// --- ConfirmReschedule ---

func TestConfirmReschedule(t *testing.T) {
	repo := calendar()
	r := newRecommender(repo, weather.NewMockSource(fixedClock()))

	updated, err := r.ConfirmReschedule(context.Background(), "storm", today.AddDays(6), "")
	require.NoError(t, err)
	assert.True(t, updated.Date.Equal(today.AddDays(6)))
	assert.Equal(t, "09:30", updated.Time)
	assert.Equal(t, types.AppointmentScheduled, updated.Status)

	updated, err = r.ConfirmReschedule(context.Background(), "storm", today.AddDays(7), "13:15")
	require.NoError(t, err)
	assert.Equal(t, "13:15", updated.Time)
}

func TestConfirmReschedule_Rejections(t *testing.T) {
	r := newRecommender(calendar(), weather.NewMockSource(fixedClock()))
	ctx := context.Background()

	tests := []struct {
		name string
		id   string
		date types.Date
		time string
		code types.ErrorCode
	}{
		{"unknown appointment", "nope", today.AddDays(1), "", types.ErrCodeNotFoundAppointment},
		{"completed appointment", "done", today.AddDays(1), "", types.ErrCodeValidationInvalidStatus},
		{"date in the past", "storm", today.AddDays(-1), "", types.ErrCodeValidationInvalidDate},
		{"missing date", "storm", types.Date{}, "", types.ErrCodeValidationInvalidDate},
		{"bad time", "storm", today.AddDays(1), "9am", types.ErrCodeValidationInvalidTime},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.ConfirmReschedule(ctx, tt.id, tt.date, tt.time)
			assert.True(t, types.HasCode(err, tt.code), "got %v", err)
		})
	}
}
