package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lawncare/internal/external"
	"lawncare/internal/memstore"
	"lawncare/internal/notifications/core"
	"lawncare/internal/notifications/template"
	"lawncare/internal/types"
)

type mockClock struct{ now time.Time }

func (c mockClock) Now() time.Time { return c.now }

var testNow = time.Date(2026, 6, 10, 9, 0, 0, 0, time.UTC)

// --- fake senders ---

type fakeEmailSender struct {
	mu    sync.Mutex
	calls []external.EmailMessage
	fail  string
}

func (f *fakeEmailSender) SendEmail(_ context.Context, msg external.EmailMessage) external.SendResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, msg)
	if f.fail != "" {
		return external.SendResult{ProviderID: "sg", Error: f.fail, Timestamp: testNow}
	}
	return external.SendResult{Success: true, ProviderID: "sg", MessageID: fmt.Sprintf("email-%d", len(f.calls)), Timestamp: testNow}
}

func (f *fakeEmailSender) sent() []external.EmailMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]external.EmailMessage(nil), f.calls...)
}

type fakeSMSSender struct {
	mu    sync.Mutex
	calls []external.SMSMessage
	fail  string
}

func (f *fakeSMSSender) SendSMS(_ context.Context, msg external.SMSMessage) external.SendResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, msg)
	if f.fail != "" {
		return external.SendResult{ProviderID: "tw", Error: f.fail, Timestamp: testNow}
	}
	return external.SendResult{Success: true, ProviderID: "tw", MessageID: fmt.Sprintf("sms-%d", len(f.calls)), Timestamp: testNow}
}

func (f *fakeSMSSender) sent() []external.SMSMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]external.SMSMessage(nil), f.calls...)
}

// fakeResolver hands out the fake senders. A nil sender field resolves to
// an untyped nil, like a config the factory rejected.
type fakeResolver struct {
	email *fakeEmailSender
	sms   *fakeSMSSender
}

func (r *fakeResolver) EmailSender(types.ProviderConfig) external.EmailSender {
	if r.email == nil {
		return nil
	}
	return r.email
}

func (r *fakeResolver) SMSSender(types.ProviderConfig) external.SMSSender {
	if r.sms == nil {
		return nil
	}
	return r.sms
}

// --- metrics ---

type dispatchMetric struct {
	channel types.Channel
	result  core.MetricResult
}

type recordingMetrics struct {
	mu       sync.Mutex
	dispatch []dispatchMetric
}

func (m *recordingMetrics) RecordDispatch(_ context.Context, ch types.Channel, _ types.ProviderType, result core.MetricResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dispatch = append(m.dispatch, dispatchMetric{ch, result})
}

func (m *recordingMetrics) RecordWebhook(context.Context, types.ProviderType, types.DeliveryStatus) {}

// --- fixture ---

type fixture struct {
	store    *memstore.Store
	email    *fakeEmailSender
	sms      *fakeSMSSender
	resolver *fakeResolver
	metrics  *recordingMetrics
	svc      *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	store := memstore.New(mockClock{testNow})
	_, err := template.Seed(ctx, store.Templates(), testNow)
	require.NoError(t, err)

	for _, cfg := range []types.ProviderConfig{
		{
			ID: "sg", Name: "SendGrid", Channel: types.ChannelEmail, Type: types.ProviderSendGrid,
			Credentials: types.ProviderCredentials{APIKey: "SG.key"}, FromEmail: "office@greenacres.example",
			IsDefault: true, Enabled: true, CreatedAt: testNow,
		},
		{
			ID: "tw", Name: "Twilio", Channel: types.ChannelSMS, Type: types.ProviderTwilio,
			Credentials: types.ProviderCredentials{AccountSID: "AC1", AuthToken: "tok"}, FromNumber: "+15550000000",
			IsDefault: true, Enabled: true, CreatedAt: testNow,
		},
	} {
		require.NoError(t, store.ProviderConfigs().Upsert(ctx, &cfg))
	}

	f := &fixture{
		store:   store,
		email:   &fakeEmailSender{},
		sms:     &fakeSMSSender{},
		metrics: &recordingMetrics{},
	}
	f.resolver = &fakeResolver{email: f.email, sms: f.sms}
	f.svc = f.newService(store)
	return f
}

func (f *fixture) newService(repos types.RepositoryRegistry) *Service {
	return NewService(Deps{
		Repos:        repos,
		Senders:      f.resolver,
		Metrics:      f.metrics,
		Clock:        mockClock{testNow},
		Logger:       slog.New(slog.DiscardHandler),
		CompanyName:  "Green Acres",
		CompanyPhone: "(919) 555-0142",
	})
}

func (f *fixture) setPreferences(t *testing.T, p types.NotificationPreference) {
	t.Helper()
	require.NoError(t, f.store.Preferences().Upsert(context.Background(), &p))
}

func (f *fixture) history(t *testing.T) []types.NotificationHistory {
	t.Helper()
	h, err := f.store.History().List(context.Background(), types.HistoryFilter{})
	require.NoError(t, err)
	return h
}

func reminderVars() map[string]string {
	return map[string]string{
		"customerName":    "Pat Smith",
		"service":         "Lawn Mowing",
		"address":         "12 Elm St",
		"appointmentDate": "Friday, June 12",
		"appointmentTime": "9:00 AM",
		"companyName":     "Green Acres",
	}
}

func emailRequest() SendRequest {
	return SendRequest{
		CustomerID:   "cust-1",
		CustomerName: "Pat Smith",
		TemplateID:   template.ID(template.AppointmentReminder, types.ChannelEmail),
		Variables:    reminderVars(),
		Recipient:    "pat@example.com",
	}
}

// --- SendNotification ---

func TestSendNotification_SendsAndRecords(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	entry, err := f.svc.SendNotification(ctx, emailRequest())
	require.NoError(t, err)

	assert.Equal(t, types.NotificationSent, entry.Status)
	assert.Equal(t, "sg", entry.ProviderID)
	assert.Equal(t, "email-1", entry.ProviderMessageID)
	assert.Equal(t, types.ChannelEmail, entry.Channel)
	assert.Equal(t, "Reminder: Lawn Mowing on Friday, June 12", entry.Subject)
	assert.Contains(t, entry.Body, "we will be at 12 Elm St on Friday, June 12 at 9:00 AM")
	assert.Equal(t, testNow, entry.Timestamp)
	assert.NotEmpty(t, entry.ID)

	sent := f.email.sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "pat@example.com", sent[0].To)
	assert.Equal(t, "Pat Smith", sent[0].ToName)
	assert.Equal(t, entry.Body, sent[0].TextContent)
	assert.Contains(t, sent[0].HTMLContent, "12 Elm St")

	history := f.history(t)
	require.Len(t, history, 1)
	assert.Equal(t, entry.ID, history[0].ID)

	tracking, err := f.store.DeliveryTracking().FindByProviderMessageID(ctx, "email-1")
	require.NoError(t, err)
	assert.Equal(t, entry.ID, tracking.HistoryID)
	assert.Equal(t, types.DeliverySent, tracking.Status)
	assert.Len(t, tracking.Events, 1)

	assert.Equal(t, []dispatchMetric{{types.ChannelEmail, core.MetricSuccess}}, f.metrics.dispatch)
}

func TestSendNotification_SMS(t *testing.T) {
	f := newFixture(t)
	pref := types.DefaultNotificationPreference("cust-1")
	pref.SMS = true
	f.setPreferences(t, pref)

	req := emailRequest()
	req.TemplateID = template.ID(template.AppointmentReminder, types.ChannelSMS)
	req.Recipient = "+15551234567"

	entry, err := f.svc.SendNotification(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, types.NotificationSent, entry.Status)
	assert.Empty(t, entry.Subject)

	sent := f.sms.sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "Green Acres reminder: Lawn Mowing on Friday, June 12 at 9:00 AM.", sent[0].Content)
	assert.Empty(t, f.email.sent())
}

func TestSendNotification_OptedOutChannelIsRejectedWithoutHistory(t *testing.T) {
	f := newFixture(t)
	f.setPreferences(t, types.NotificationPreference{CustomerID: "cust-1", Email: false, SMS: true})

	_, err := f.svc.SendNotification(context.Background(), emailRequest())
	require.Error(t, err)
	assert.True(t, types.HasCode(err, types.ErrCodeOptOutChannel))
	assert.Equal(t, 409, types.ErrCodeOptOutChannel.HTTPStatus())

	assert.Empty(t, f.history(t))
	assert.Empty(t, f.email.sent())
	assert.Equal(t, []dispatchMetric{{types.ChannelEmail, core.MetricSkipped}}, f.metrics.dispatch)
}

func TestSendNotification_RejectionsLeaveNoHistory(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*SendRequest)
		code   types.ErrorCode
	}{
		{"unknown template", func(r *SendRequest) { r.TemplateID = "nope" }, types.ErrCodeNotFoundTemplate},
		{"missing variable", func(r *SendRequest) { delete(r.Variables, "address") }, types.ErrCodeValidationMissingVariable},
		{"bad recipient", func(r *SendRequest) { r.Recipient = "not-an-email" }, types.ErrCodeValidationInvalidRecipient},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			req := emailRequest()
			tt.mutate(&req)

			_, err := f.svc.SendNotification(context.Background(), req)
			assert.True(t, types.HasCode(err, tt.code), "got %v", err)
			assert.Empty(t, f.history(t))
			assert.Empty(t, f.email.sent())
		})
	}
}

func TestSendNotification_NoDefaultProvider(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cfg, err := f.store.ProviderConfigs().Get(ctx, "sg")
	require.NoError(t, err)
	cfg.Enabled = false
	require.NoError(t, f.store.ProviderConfigs().Upsert(ctx, cfg))

	_, err = f.svc.SendNotification(ctx, emailRequest())
	assert.True(t, types.HasCode(err, types.ErrCodeDispatchNoProvider))
	assert.Equal(t, 503, types.ErrCodeDispatchNoProvider.HTTPStatus())
	assert.Empty(t, f.history(t))
}

// ambiguousProviders reports two enabled defaults, a state the stores
// prevent but a hand-edited database might not.
type ambiguousProviders struct {
	types.ProviderConfigRepository
}

func (ambiguousProviders) ListByChannel(context.Context, types.Channel) ([]types.ProviderConfig, error) {
	return []types.ProviderConfig{
		{ID: "a", Channel: types.ChannelEmail, IsDefault: true, Enabled: true},
		{ID: "b", Channel: types.ChannelEmail, IsDefault: true, Enabled: true},
		{ID: "c", Channel: types.ChannelEmail, IsDefault: true, Enabled: false},
	}, nil
}

type ambiguousRegistry struct{ *memstore.Store }

func (r ambiguousRegistry) ProviderConfigs() types.ProviderConfigRepository {
	return ambiguousProviders{r.Store.ProviderConfigs()}
}

func TestSendNotification_AmbiguousDefaultProvider(t *testing.T) {
	f := newFixture(t)
	svc := f.newService(ambiguousRegistry{f.store})

	_, err := svc.SendNotification(context.Background(), emailRequest())
	require.Error(t, err)
	assert.True(t, types.HasCode(err, types.ErrCodeDispatchAmbiguousProvider))

	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, []string{"a", "b"}, appErr.Details["provider_ids"])
	assert.Empty(t, f.email.sent())
}

func TestSendNotification_VendorFailureIsRecorded(t *testing.T) {
	f := newFixture(t)
	f.email.fail = "sendgrid returned 401"

	entry, err := f.svc.SendNotification(context.Background(), emailRequest())
	require.NoError(t, err)
	assert.Equal(t, types.NotificationFailed, entry.Status)
	assert.Equal(t, "sendgrid returned 401", entry.Error)
	assert.Empty(t, entry.ProviderMessageID)

	history := f.history(t)
	require.Len(t, history, 1)
	assert.Equal(t, types.NotificationFailed, history[0].Status)
	assert.Equal(t, []dispatchMetric{{types.ChannelEmail, core.MetricFailed}}, f.metrics.dispatch)
}

func TestSendNotification_UnusableProviderIsRecordedAsFailure(t *testing.T) {
	f := newFixture(t)
	f.resolver.email = nil

	entry, err := f.svc.SendNotification(context.Background(), emailRequest())
	require.NoError(t, err)
	assert.Equal(t, types.NotificationFailed, entry.Status)
	assert.Contains(t, entry.Error, "not usable")
	assert.Len(t, f.history(t), 1)
}

func TestPreferences_DefaultsWhenNothingStored(t *testing.T) {
	f := newFixture(t)

	pref, err := f.svc.Preferences(context.Background(), "new-customer")
	require.NoError(t, err)
	assert.Equal(t, types.DefaultNotificationPreference("new-customer"), pref)
	assert.True(t, pref.Email)
	assert.False(t, pref.SMS)
	assert.False(t, pref.MarketingMessages)
}
