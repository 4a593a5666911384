package external

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"lawncare/internal/types"
)

const sendGridAPIBase = "https://api.sendgrid.com"

// SendGridSender delivers email through the SendGrid v3 Mail Send API.
type SendGridSender struct {
	base    *BaseClient
	apiKey  string
	baseURL string
	from    sendGridAddress
	result  resultBuilder
	logger  *slog.Logger
}

func newSendGridSender(cfg types.ProviderConfig, deps Deps) *SendGridSender {
	return &SendGridSender{
		base:    deps.baseClient("sendgrid:" + cfg.ID),
		apiKey:  cfg.Credentials.APIKey.Unmask(),
		baseURL: deps.baseURL(types.ProviderSendGrid, sendGridAPIBase),
		from:    sendGridAddress{Email: cfg.FromEmail, Name: cfg.FromName},
		result:  deps.resultBuilder(cfg.ID),
		logger:  deps.Logger.With("provider", "sendgrid", "provider_id", cfg.ID),
	}
}

type sendGridMailPayload struct {
	Personalizations []sendGridPersonalization `json:"personalizations"`
	From             sendGridAddress           `json:"from"`
	Subject          string                    `json:"subject"`
	Content          []sendGridContent         `json:"content"`
	Attachments      []sendGridAttachment      `json:"attachments,omitempty"`
}

type sendGridPersonalization struct {
	To []sendGridAddress `json:"to"`
}

type sendGridAddress struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type sendGridContent struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type sendGridAttachment struct {
	Content  string `json:"content"`
	Filename string `json:"filename"`
	Type     string `json:"type,omitempty"`
}

func (s *SendGridSender) buildPayload(msg EmailMessage) sendGridMailPayload {
	payload := sendGridMailPayload{
		Personalizations: []sendGridPersonalization{{To: []sendGridAddress{{Email: msg.To, Name: msg.ToName}}}},
		From:             s.from,
		Subject:          msg.Subject,
	}
	// SendGrid requires text/plain before text/html.
	if msg.TextContent != "" {
		payload.Content = append(payload.Content, sendGridContent{Type: "text/plain", Value: msg.TextContent})
	}
	if msg.HTMLContent != "" {
		payload.Content = append(payload.Content, sendGridContent{Type: "text/html", Value: msg.HTMLContent})
	}
	for _, a := range msg.Attachments {
		payload.Attachments = append(payload.Attachments, sendGridAttachment{
			Content:  base64.StdEncoding.EncodeToString(a.Content),
			Filename: a.Filename,
			Type:     a.ContentType,
		})
	}
	return payload
}

// SendEmail posts to /v3/mail/send. SendGrid answers 202 with the message ID
// in the X-Message-Id header.
func (s *SendGridSender) SendEmail(ctx context.Context, msg EmailMessage) SendResult {
	body, err := json.Marshal(s.buildPayload(msg))
	if err != nil {
		return s.result.fail(fmt.Errorf("sendgrid: encoding payload: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/v3/mail/send", bytes.NewReader(body))
	if err != nil {
		return s.result.fail(fmt.Errorf("sendgrid: building request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.base.Do(req)
	if err != nil {
		s.logger.WarnContext(ctx, "sendgrid send failed", "error", err)
		return s.result.fail(fmt.Errorf("sendgrid: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted && resp.StatusCode != http.StatusOK {
		err := sendGridError(resp)
		s.logger.WarnContext(ctx, "sendgrid rejected message", "status", resp.StatusCode, "error", err)
		return s.result.fail(err)
	}
	return s.result.ok(resp.Header.Get("X-Message-Id"))
}

type sendGridErrorResponse struct {
	Errors []struct {
		Message string `json:"message"`
		Field   string `json:"field"`
	} `json:"errors"`
}

func sendGridError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var sgErr sendGridErrorResponse
	if json.Unmarshal(body, &sgErr) == nil && len(sgErr.Errors) > 0 {
		return fmt.Errorf("sendgrid: status %d: %s", resp.StatusCode, sgErr.Errors[0].Message)
	}
	return fmt.Errorf("sendgrid: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
}

var _ EmailSender = (*SendGridSender)(nil)
