package external

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	sestypes "github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lawncare/internal/types"
)

// mockSESAPI implements SESAPI for testing.
type mockSESAPI struct {
	calls         int
	sendEmailFunc func(ctx context.Context, params *sesv2.SendEmailInput) (*sesv2.SendEmailOutput, error)
}

func (m *mockSESAPI) SendEmail(ctx context.Context, params *sesv2.SendEmailInput, _ ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
	m.calls++
	return m.sendEmailFunc(ctx, params)
}

func newTestSESSender(t *testing.T, mock *mockSESAPI) EmailSender {
	t.Helper()
	deps := testDeps("")
	var gotRegion string
	deps.NewSESAPI = func(_ context.Context, region string) (SESAPI, error) {
		gotRegion = region
		return mock, nil
	}
	sender, err := NewEmailSender(types.ProviderConfig{
		ID:          "cfg-ses",
		Type:        types.ProviderSES,
		Credentials: types.ProviderCredentials{Region: "us-west-2"},
		FromEmail:   "office@greenacres.example",
		FromName:    "Green Acres",
		Enabled:     true,
	}, deps)
	require.NoError(t, err)
	require.Equal(t, "us-west-2", gotRegion)
	return sender
}

func TestSESSendEmail_SimpleContent(t *testing.T) {
	var captured *sesv2.SendEmailInput
	mock := &mockSESAPI{sendEmailFunc: func(_ context.Context, in *sesv2.SendEmailInput) (*sesv2.SendEmailOutput, error) {
		captured = in
		return &sesv2.SendEmailOutput{MessageId: aws.String("ses-msg-abc123")}, nil
	}}

	result := newTestSESSender(t, mock).SendEmail(context.Background(), EmailMessage{
		To: "pat@example.com", Subject: "Rescheduled", TextContent: "text", HTMLContent: "<p>html</p>",
	})

	require.True(t, result.Success, result.Error)
	assert.Equal(t, "ses-msg-abc123", result.MessageID)
	assert.Equal(t, `"Green Acres" <office@greenacres.example>`, aws.ToString(captured.FromEmailAddress))
	require.NotNil(t, captured.Content.Simple)
	assert.Equal(t, "Rescheduled", aws.ToString(captured.Content.Simple.Subject.Data))
	assert.Equal(t, "text", aws.ToString(captured.Content.Simple.Body.Text.Data))
	assert.Equal(t, "<p>html</p>", aws.ToString(captured.Content.Simple.Body.Html.Data))
}

func TestSESSendEmail_AttachmentsUseRawMIME(t *testing.T) {
	var captured *sesv2.SendEmailInput
	mock := &mockSESAPI{sendEmailFunc: func(_ context.Context, in *sesv2.SendEmailInput) (*sesv2.SendEmailOutput, error) {
		captured = in
		return &sesv2.SendEmailOutput{MessageId: aws.String("raw-1")}, nil
	}}

	result := newTestSESSender(t, mock).SendEmail(context.Background(), EmailMessage{
		To: "pat@example.com", Subject: "Invoice", TextContent: "see attached",
		Attachments: []Attachment{{Filename: "invoice.pdf", ContentType: "application/pdf", Content: []byte("%PDF")}},
	})

	require.True(t, result.Success, result.Error)
	require.NotNil(t, captured.Content.Raw)
	raw := string(captured.Content.Raw.Data)
	assert.Contains(t, raw, "multipart/mixed")
	assert.Contains(t, raw, `filename=invoice.pdf`)
}

func TestSESSendEmail_ThrottlingRetriedOnce(t *testing.T) {
	mock := &mockSESAPI{sendEmailFunc: func(context.Context, *sesv2.SendEmailInput) (*sesv2.SendEmailOutput, error) {
		return nil, &sestypes.TooManyRequestsException{Message: aws.String("slow down")}
	}}

	result := newTestSESSender(t, mock).SendEmail(context.Background(), EmailMessage{To: "pat@example.com", Subject: "s", TextContent: "b"})
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, string(types.ErrCodeUpstreamRateLimited))
	assert.Equal(t, 2, mock.calls)
}

func TestSESSendEmail_RejectionNotRetried(t *testing.T) {
	mock := &mockSESAPI{sendEmailFunc: func(context.Context, *sesv2.SendEmailInput) (*sesv2.SendEmailOutput, error) {
		return nil, &sestypes.MessageRejected{Message: aws.String("Email address is not verified")}
	}}

	result := newTestSESSender(t, mock).SendEmail(context.Background(), EmailMessage{To: "pat@example.com", Subject: "s", TextContent: "b"})
	assert.False(t, result.Success)
	assert.True(t, strings.Contains(result.Error, "not verified"))
	assert.Equal(t, 1, mock.calls)
}

func TestMapSESError(t *testing.T) {
	tests := []struct {
		err  error
		code types.ErrorCode
	}{
		{&sestypes.MessageRejected{Message: aws.String("x")}, types.ErrCodeUpstreamProvider},
		{&sestypes.TooManyRequestsException{Message: aws.String("x")}, types.ErrCodeUpstreamRateLimited},
		{&sestypes.SendingPausedException{Message: aws.String("x")}, types.ErrCodeUpstreamUnavailable},
		{errors.New("boom"), types.ErrCodeUpstreamProvider},
	}
	for _, tt := range tests {
		assert.True(t, types.HasCode(mapSESError(tt.err), tt.code), "%T", tt.err)
	}
}
