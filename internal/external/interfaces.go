package external

import (
	"context"
	"time"
)

// Attachment is a file carried by an email.
type Attachment struct {
	Filename    string
	ContentType string
	Content     []byte
}

// EmailMessage is a fully rendered email.
type EmailMessage struct {
	To          string
	ToName      string
	Subject     string
	TextContent string
	HTMLContent string
	Attachments []Attachment
}

// SMSMessage is a fully rendered text message.
type SMSMessage struct {
	To      string
	Content string
}

// SendResult is the outcome of one vendor call. Transport and vendor
// failures are reported here with Success false rather than as Go errors.
type SendResult struct {
	Success    bool      `json:"success"`
	ProviderID string    `json:"provider_id"`
	MessageID  string    `json:"message_id,omitempty"`
	Error      string    `json:"error,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// EmailSender delivers email through one configured vendor.
type EmailSender interface {
	SendEmail(ctx context.Context, msg EmailMessage) SendResult
}

// SMSSender delivers text messages through one configured vendor.
type SMSSender interface {
	SendSMS(ctx context.Context, msg SMSMessage) SendResult
}

// resultBuilder stamps results with the provider config ID and the clock.
type resultBuilder struct {
	providerID string
	now        func() time.Time
}

func (b resultBuilder) ok(messageID string) SendResult {
	return SendResult{Success: true, ProviderID: b.providerID, MessageID: messageID, Timestamp: b.now()}
}

func (b resultBuilder) fail(err error) SendResult {
	return SendResult{Success: false, ProviderID: b.providerID, Error: err.Error(), Timestamp: b.now()}
}
