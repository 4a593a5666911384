package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strconv"
	"testing"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lawncare/internal/app"
	"lawncare/internal/types"
)

type mockProcessor struct {
	jobs []types.NotificationJob
	err  error
}

func (m *mockProcessor) ProcessJob(_ context.Context, job types.NotificationJob) ([]types.NotificationHistory, error) {
	m.jobs = append(m.jobs, job)
	if m.err != nil {
		return nil, m.err
	}
	return []types.NotificationHistory{{ID: "h-1", Status: types.NotificationSent}}, nil
}

type republished struct {
	job   types.NotificationJob
	delay time.Duration
}

type mockRepublisher struct {
	calls []republished
	err   error
}

func (m *mockRepublisher) Republish(_ context.Context, job types.NotificationJob, delay time.Duration) error {
	m.calls = append(m.calls, republished{job, delay})
	return m.err
}

var testNow = time.Date(2026, 6, 10, 12, 0, 0, 0, time.UTC)

func newHandler(p *mockProcessor, r *mockRepublisher) *Handler {
	return &Handler{
		processor: p,
		publisher: r,
		logger:    app.NewLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		now:       func() time.Time { return testNow },
	}
}

func record(t *testing.T, id string, job types.NotificationJob) events.SQSMessage {
	t.Helper()
	body, err := json.Marshal(job)
	require.NoError(t, err)
	return events.SQSMessage{
		MessageId: id,
		Body:      string(body),
		Attributes: map[string]string{
			"SentTimestamp": strconv.FormatInt(testNow.Add(-2*time.Second).UnixMilli(), 10),
		},
	}
}

func reminderJob(retries int) types.NotificationJob {
	return types.NotificationJob{
		JobID:        "job-1",
		Kind:         types.KindAppointmentReminder,
		CustomerID:   "cust-1",
		CustomerName: "Pat Doe",
		Email:        "pat@example.com",
		Variables:    map[string]string{"customerName": "Pat Doe"},
		RetryCount:   retries,
	}
}

func TestHandle_Success(t *testing.T) {
	p, r := &mockProcessor{}, &mockRepublisher{}
	h := newHandler(p, r)

	resp, err := h.Handle(context.Background(), events.SQSEvent{Records: []events.SQSMessage{
		record(t, "m-1", reminderJob(0)),
	}})
	require.NoError(t, err)
	assert.Empty(t, resp.BatchItemFailures)
	require.Len(t, p.jobs, 1)
	assert.Equal(t, "Pat Doe", p.jobs[0].Variables["customerName"])
	assert.Empty(t, r.calls)
}

func TestHandle_MalformedBodyIsAcked(t *testing.T) {
	p, r := &mockProcessor{}, &mockRepublisher{}
	h := newHandler(p, r)

	resp, err := h.Handle(context.Background(), events.SQSEvent{Records: []events.SQSMessage{
		{MessageId: "bad", Body: "{not json"},
	}})
	require.NoError(t, err)
	assert.Empty(t, resp.BatchItemFailures)
	assert.Empty(t, p.jobs)
}

func TestHandle_TransientErrorRepublishes(t *testing.T) {
	p := &mockProcessor{err: types.NewAppError(types.ErrCodeInternalDB, "db down", nil)}
	r := &mockRepublisher{}
	h := newHandler(p, r)

	resp, err := h.Handle(context.Background(), events.SQSEvent{Records: []events.SQSMessage{
		record(t, "m-1", reminderJob(1)),
	}})
	require.NoError(t, err)
	assert.Empty(t, resp.BatchItemFailures)
	require.Len(t, r.calls, 1)
	assert.Equal(t, 60*time.Second, r.calls[0].delay)
	assert.Equal(t, 1, r.calls[0].job.RetryCount, "the publisher increments")
}

func TestHandle_PermanentErrorDropped(t *testing.T) {
	p := &mockProcessor{err: types.NewAppError(types.ErrCodeValidationMissingField, "unknown kind", nil)}
	r := &mockRepublisher{}
	h := newHandler(p, r)

	resp, err := h.Handle(context.Background(), events.SQSEvent{Records: []events.SQSMessage{
		record(t, "m-1", reminderJob(0)),
	}})
	require.NoError(t, err)
	assert.Empty(t, resp.BatchItemFailures)
	assert.Empty(t, r.calls)
}

func TestHandle_MaxRetriesDropped(t *testing.T) {
	p := &mockProcessor{err: errors.New("boom")}
	r := &mockRepublisher{}
	h := newHandler(p, r)

	resp, err := h.Handle(context.Background(), events.SQSEvent{Records: []events.SQSMessage{
		record(t, "m-1", reminderJob(maxJobRetries)),
	}})
	require.NoError(t, err)
	assert.Empty(t, resp.BatchItemFailures)
	assert.Empty(t, r.calls)
}

func TestHandle_RepublishFailureReportsBatchItem(t *testing.T) {
	p := &mockProcessor{err: errors.New("boom")}
	r := &mockRepublisher{err: errors.New("sqs unavailable")}
	h := newHandler(p, r)

	resp, err := h.Handle(context.Background(), events.SQSEvent{Records: []events.SQSMessage{
		record(t, "m-1", reminderJob(0)),
		{MessageId: "m-2", Body: "garbage"},
	}})
	require.NoError(t, err)
	require.Len(t, resp.BatchItemFailures, 1)
	assert.Equal(t, "m-1", resp.BatchItemFailures[0].ItemIdentifier)
}

func TestRetryDelay(t *testing.T) {
	assert.Equal(t, 30*time.Second, retryDelay(0))
	assert.Equal(t, 120*time.Second, retryDelay(2))
	assert.Equal(t, maxRetryDelay, retryDelay(10))
	assert.Equal(t, maxRetryDelay, retryDelay(80))
}

func TestParseMillisTimestamp(t *testing.T) {
	ts, err := parseMillisTimestamp("1781092800000")
	require.NoError(t, err)
	assert.Equal(t, int64(1781092800000), ts.UnixMilli())

	_, err = parseMillisTimestamp("nope")
	assert.Error(t, err)
}
