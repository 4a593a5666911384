package external

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"lawncare/internal/types"
)

const twilioAPIBase = "https://api.twilio.com"

// TwilioSender delivers SMS through the Twilio Messages API.
type TwilioSender struct {
	base       *BaseClient
	accountSID string
	authToken  string
	from       string
	baseURL    string
	result     resultBuilder
	logger     *slog.Logger
}

func newTwilioSender(cfg types.ProviderConfig, deps Deps) *TwilioSender {
	return &TwilioSender{
		base:       deps.baseClient("twilio:" + cfg.ID),
		accountSID: cfg.Credentials.AccountSID,
		authToken:  cfg.Credentials.AuthToken.Unmask(),
		from:       cfg.FromNumber,
		baseURL:    deps.baseURL(types.ProviderTwilio, twilioAPIBase),
		result:     deps.resultBuilder(cfg.ID),
		logger:     deps.Logger.With("provider", "twilio", "provider_id", cfg.ID),
	}
}

type twilioMessageResponse struct {
	SID     string `json:"sid"`
	Status  string `json:"status"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// SendSMS creates a message resource. Twilio answers 201 with the message
// SID, which its status callbacks report as MessageSid.
func (s *TwilioSender) SendSMS(ctx context.Context, msg SMSMessage) SendResult {
	form := url.Values{}
	form.Set("To", msg.To)
	form.Set("From", s.from)
	form.Set("Body", msg.Content)

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", s.baseURL, url.PathEscape(s.accountSID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return s.result.fail(fmt.Errorf("twilio: building request: %w", err))
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(s.accountSID, s.authToken)

	resp, err := s.base.Do(req)
	if err != nil {
		s.logger.WarnContext(ctx, "twilio send failed", "error", err)
		return s.result.fail(fmt.Errorf("twilio: %w", err))
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var out twilioMessageResponse
	_ = json.Unmarshal(body, &out)

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		detail := out.Message
		if detail == "" {
			detail = strings.TrimSpace(string(body))
		}
		s.logger.WarnContext(ctx, "twilio rejected message", "status", resp.StatusCode, "code", out.Code)
		return s.result.fail(fmt.Errorf("twilio: status %d: %s", resp.StatusCode, detail))
	}
	return s.result.ok(out.SID)
}

var _ SMSSender = (*TwilioSender)(nil)
