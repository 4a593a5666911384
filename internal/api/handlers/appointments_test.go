package handlers

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lawncare/internal/memstore"
	"lawncare/internal/reschedule"
	"lawncare/internal/types"
)

type notifierCall struct {
	kind         types.NotificationKind
	appointment  types.Appointment
	originalDate types.Date
	weatherIssue string
	option       types.RescheduleOption
}

type recordingNotifier struct {
	calls []notifierCall
	err   error
}

func (n *recordingNotifier) ProposeReschedule(_ context.Context, a types.Appointment, issue string, option types.RescheduleOption) error {
	n.calls = append(n.calls, notifierCall{kind: types.KindWeatherReschedule, appointment: a, weatherIssue: issue, option: option})
	return n.err
}

func (n *recordingNotifier) ConfirmReschedule(_ context.Context, a types.Appointment, originalDate types.Date) error {
	n.calls = append(n.calls, notifierCall{kind: types.KindRescheduleConfirmation, appointment: a, originalDate: originalDate})
	return n.err
}

func (n *recordingNotifier) RemindAppointment(_ context.Context, a types.Appointment) error {
	n.calls = append(n.calls, notifierCall{kind: types.KindAppointmentReminder, appointment: a})
	return n.err
}

func seedAppointments(t *testing.T, store *memstore.Store) {
	t.Helper()
	for _, a := range []types.Appointment{
		{ID: "apt-1", CustomerID: "cust-1", CustomerName: "Pat Smith", CustomerEmail: "pat@example.com",
			Date: types.MustParseDate("2026-06-12"), Time: "09:00", Service: "Lawn Mowing",
			Status: types.AppointmentScheduled, Address: "12 Elm St"},
		{ID: "apt-2", CustomerID: "cust-2", CustomerName: "Lee Chen",
			Date: types.MustParseDate("2026-06-14"), Time: "13:30", Service: "Aeration",
			Status: types.AppointmentCompleted, Address: "4 Oak Ave"},
	} {
		require.NoError(t, store.Appointments().Create(context.Background(), &a))
	}
}

func newAppointmentHandler(t *testing.T) (*AppointmentHandler, *memstore.Store, *recordingNotifier) {
	t.Helper()
	store := memstore.New(mockClock{testNow})
	seedAppointments(t, store)
	rec := reschedule.NewRecommender(store.Appointments(), nil, mockClock{testNow}, testLogger())
	notifier := &recordingNotifier{}
	return NewAppointmentHandler(store.Appointments(), rec, notifier, testValidator(), testLogger()), store, notifier
}

func TestAppointmentHandler_List(t *testing.T) {
	h, _, _ := newAppointmentHandler(t)

	tests := []struct {
		name  string
		query string
		ids   []string
	}{
		{"all", "", []string{"apt-1", "apt-2"}},
		{"status", "?status=completed", []string{"apt-2"}},
		{"date range", "?from=2026-06-13&to=2026-06-30", []string{"apt-2"}},
		{"empty", "?to=2026-06-01", []string{}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			w := serve(t, h.RegisterRoutes, http.MethodGet, "/appointments"+tc.query, nil)
			require.Equal(t, http.StatusOK, w.Code)

			var items []types.Appointment
			decodeData(t, w, &items)
			ids := make([]string, 0, len(items))
			for _, a := range items {
				ids = append(ids, a.ID)
			}
			assert.Equal(t, tc.ids, ids)
		})
	}
}

func TestAppointmentHandler_ListRejectsBadQuery(t *testing.T) {
	h, _, _ := newAppointmentHandler(t)

	w := serve(t, h.RegisterRoutes, http.MethodGet, "/appointments?status=postponed", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, string(types.ErrCodeValidationInvalidStatus), errorCode(t, w))

	w = serve(t, h.RegisterRoutes, http.MethodGet, "/appointments?from=06/12/2026", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, string(types.ErrCodeValidationInvalidDate), errorCode(t, w))
}

func TestAppointmentHandler_Create(t *testing.T) {
	h, store, _ := newAppointmentHandler(t)

	w := serve(t, h.RegisterRoutes, http.MethodPost, "/appointments", CreateAppointmentRequest{
		CustomerID:    "cust-3",
		CustomerName:  "Sam Ortiz",
		CustomerPhone: "+15557654321",
		Date:          "2026-06-20",
		Time:          "10:15",
		Service:       "Fertilization",
		Address:       "9 Birch Rd",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var created types.Appointment
	decodeData(t, w, &created)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, types.AppointmentScheduled, created.Status)
	assert.Equal(t, 60, created.DurationMinutes)

	stored, err := store.Appointments().GetByID(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, "2026-06-20", stored.Date.String())
}

func TestAppointmentHandler_CreateValidation(t *testing.T) {
	h, _, _ := newAppointmentHandler(t)

	w := serve(t, h.RegisterRoutes, http.MethodPost, "/appointments", map[string]any{
		"customer_id": "cust-3", "customer_name": "Sam", "date": "2026-06-20", "time": "7pm",
		"service": "Mowing", "address": "9 Birch Rd",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, string(types.ErrCodeValidationMissingField), errorCode(t, w))
	assert.Contains(t, w.Body.String(), `"time":"hhmm"`)
}

func TestAppointmentHandler_GetAndStatus(t *testing.T) {
	h, _, _ := newAppointmentHandler(t)

	w := serve(t, h.RegisterRoutes, http.MethodGet, "/appointments/nope", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = serve(t, h.RegisterRoutes, http.MethodPatch, "/appointments/apt-1/status", UpdateAppointmentStatusRequest{Status: "in-progress"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var a types.Appointment
	decodeData(t, w, &a)
	assert.Equal(t, types.AppointmentInProgress, a.Status)

	w = serve(t, h.RegisterRoutes, http.MethodPatch, "/appointments/apt-1/status", UpdateAppointmentStatusRequest{Status: "postponed"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAppointmentHandler_Reschedule(t *testing.T) {
	h, store, notifier := newAppointmentHandler(t)

	w := serve(t, h.RegisterRoutes, http.MethodPost, "/appointments/apt-1/reschedule", RescheduleRequest{Date: "2026-06-15"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp RescheduleResponse
	decodeData(t, w, &resp)
	assert.True(t, resp.Notified)
	assert.Equal(t, "2026-06-12", resp.OriginalDate.String())
	assert.Equal(t, "2026-06-15", resp.Appointment.Date.String())
	assert.Equal(t, "09:00", resp.Appointment.Time)

	require.Len(t, notifier.calls, 1)
	assert.Equal(t, types.KindRescheduleConfirmation, notifier.calls[0].kind)
	assert.Equal(t, "2026-06-12", notifier.calls[0].originalDate.String())
	assert.Equal(t, "2026-06-15", notifier.calls[0].appointment.Date.String())

	stored, err := store.Appointments().GetByID(context.Background(), "apt-1")
	require.NoError(t, err)
	assert.Equal(t, "2026-06-15", stored.Date.String())
}

func TestAppointmentHandler_RescheduleErrors(t *testing.T) {
	tests := []struct {
		name   string
		id     string
		body   RescheduleRequest
		status int
		code   types.ErrorCode
	}{
		{"past date", "apt-1", RescheduleRequest{Date: "2026-06-01"}, http.StatusBadRequest, types.ErrCodeValidationInvalidDate},
		{"not scheduled", "apt-2", RescheduleRequest{Date: "2026-06-20"}, http.StatusBadRequest, types.ErrCodeValidationInvalidStatus},
		{"unknown", "apt-9", RescheduleRequest{Date: "2026-06-20"}, http.StatusNotFound, types.ErrCodeNotFoundAppointment},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h, _, notifier := newAppointmentHandler(t)
			w := serve(t, h.RegisterRoutes, http.MethodPost, "/appointments/"+tc.id+"/reschedule", tc.body)
			assert.Equal(t, tc.status, w.Code)
			assert.Equal(t, string(tc.code), errorCode(t, w))
			assert.Empty(t, notifier.calls)
		})
	}
}

func TestAppointmentHandler_RescheduleNotifyFailureKeepsMove(t *testing.T) {
	h, _, notifier := newAppointmentHandler(t)
	notifier.err = errors.New("queue down")

	w := serve(t, h.RegisterRoutes, http.MethodPost, "/appointments/apt-1/reschedule", RescheduleRequest{Date: "2026-06-16", Time: "08:00"})
	require.Equal(t, http.StatusOK, w.Code)
	var resp RescheduleResponse
	decodeData(t, w, &resp)
	assert.False(t, resp.Notified)
	assert.Equal(t, "08:00", resp.Appointment.Time)
}

func TestAppointmentHandler_SendReminder(t *testing.T) {
	h, _, notifier := newAppointmentHandler(t)

	w := serve(t, h.RegisterRoutes, http.MethodPost, "/appointments/apt-1/reminder", nil)
	assert.Equal(t, http.StatusAccepted, w.Code)
	require.Len(t, notifier.calls, 1)
	assert.Equal(t, types.KindAppointmentReminder, notifier.calls[0].kind)

	w = serve(t, h.RegisterRoutes, http.MethodPost, "/appointments/apt-2/reminder", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	notifier.err = errors.New("queue down")
	w = serve(t, h.RegisterRoutes, http.MethodPost, "/appointments/apt-1/reminder", nil)
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, string(types.ErrCodeUpstreamQueue), errorCode(t, w))
}
