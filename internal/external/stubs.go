package external

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"
)

// StubEmailSender logs instead of sending. Used when PROVIDER_STUB_MODE is
// set or APP_ENV=local, so the service boots without vendor credentials.
type StubEmailSender struct {
	providerID string
	logger     *slog.Logger
	now        func() time.Time
	seq        atomic.Int64
}

// NewStubEmailSender creates a StubEmailSender that reports providerID.
func NewStubEmailSender(providerID string, logger *slog.Logger) *StubEmailSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &StubEmailSender{providerID: providerID, logger: logger, now: func() time.Time { return time.Now().UTC() }}
}

func (s *StubEmailSender) SendEmail(ctx context.Context, msg EmailMessage) SendResult {
	id := fmt.Sprintf("stub-email-%s-%d", s.providerID, s.seq.Add(1))
	s.logger.InfoContext(ctx, "stub: SendEmail called",
		"provider_id", s.providerID,
		"subject", msg.Subject,
		"message_id", id,
	)
	return SendResult{Success: true, ProviderID: s.providerID, MessageID: id, Timestamp: s.now()}
}

// StubSMSSender logs instead of sending.
type StubSMSSender struct {
	providerID string
	logger     *slog.Logger
	now        func() time.Time
	seq        atomic.Int64
}

// NewStubSMSSender creates a StubSMSSender that reports providerID.
func NewStubSMSSender(providerID string, logger *slog.Logger) *StubSMSSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &StubSMSSender{providerID: providerID, logger: logger, now: func() time.Time { return time.Now().UTC() }}
}

func (s *StubSMSSender) SendSMS(ctx context.Context, msg SMSMessage) SendResult {
	id := fmt.Sprintf("stub-sms-%s-%d", s.providerID, s.seq.Add(1))
	s.logger.InfoContext(ctx, "stub: SendSMS called",
		"provider_id", s.providerID,
		"length", len(msg.Content),
		"message_id", id,
	)
	return SendResult{Success: true, ProviderID: s.providerID, MessageID: id, Timestamp: s.now()}
}

var _ EmailSender = (*StubEmailSender)(nil)
var _ SMSSender = (*StubSMSSender)(nil)
