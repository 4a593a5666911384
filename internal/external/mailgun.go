package external

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/mail"
	"net/url"
	"strings"

	"lawncare/internal/types"
)

const mailgunAPIBase = "https://api.mailgun.net"

// MailgunSender delivers email through the Mailgun messages API.
type MailgunSender struct {
	base    *BaseClient
	apiKey  string
	domain  string
	baseURL string
	from    string
	result  resultBuilder
	logger  *slog.Logger
}

func newMailgunSender(cfg types.ProviderConfig, deps Deps) *MailgunSender {
	return &MailgunSender{
		base:    deps.baseClient("mailgun:" + cfg.ID),
		apiKey:  cfg.Credentials.APIKey.Unmask(),
		domain:  cfg.Credentials.Domain,
		baseURL: deps.baseURL(types.ProviderMailgun, mailgunAPIBase),
		from:    formatAddress(cfg.FromName, cfg.FromEmail),
		result:  deps.resultBuilder(cfg.ID),
		logger:  deps.Logger.With("provider", "mailgun", "provider_id", cfg.ID),
	}
}

// SendEmail posts the message as a form. Messages with attachments are sent
// as multipart/form-data.
func (s *MailgunSender) SendEmail(ctx context.Context, msg EmailMessage) SendResult {
	fields := url.Values{}
	fields.Set("from", s.from)
	fields.Set("to", formatAddress(msg.ToName, msg.To))
	fields.Set("subject", msg.Subject)
	if msg.TextContent != "" {
		fields.Set("text", msg.TextContent)
	}
	if msg.HTMLContent != "" {
		fields.Set("html", msg.HTMLContent)
	}

	body, contentType, err := mailgunBody(fields, msg.Attachments)
	if err != nil {
		return s.result.fail(fmt.Errorf("mailgun: encoding body: %w", err))
	}

	endpoint := fmt.Sprintf("%s/v3/%s/messages", s.baseURL, s.domain)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return s.result.fail(fmt.Errorf("mailgun: building request: %w", err))
	}
	req.Header.Set("Content-Type", contentType)
	req.SetBasicAuth("api", s.apiKey)

	resp, err := s.base.Do(req)
	if err != nil {
		s.logger.WarnContext(ctx, "mailgun send failed", "error", err)
		return s.result.fail(fmt.Errorf("mailgun: %w", err))
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var out struct {
		ID      string `json:"id"`
		Message string `json:"message"`
	}
	_ = json.Unmarshal(respBody, &out)

	if resp.StatusCode != http.StatusOK {
		detail := out.Message
		if detail == "" {
			detail = strings.TrimSpace(string(respBody))
		}
		s.logger.WarnContext(ctx, "mailgun rejected message", "status", resp.StatusCode)
		return s.result.fail(fmt.Errorf("mailgun: status %d: %s", resp.StatusCode, detail))
	}

	// Mailgun wraps the ID in angle brackets; webhooks report it without them.
	return s.result.ok(strings.Trim(out.ID, "<>"))
}

func mailgunBody(fields url.Values, attachments []Attachment) (io.Reader, string, error) {
	if len(attachments) == 0 {
		return strings.NewReader(fields.Encode()), "application/x-www-form-urlencoded", nil
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for key, values := range fields {
		for _, v := range values {
			if err := w.WriteField(key, v); err != nil {
				return nil, "", err
			}
		}
	}
	for _, a := range attachments {
		part, err := w.CreateFormFile("attachment", a.Filename)
		if err != nil {
			return nil, "", err
		}
		if _, err := part.Write(a.Content); err != nil {
			return nil, "", err
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}

// formatAddress renders "Name <addr>" or just addr when name is empty.
func formatAddress(name, addr string) string {
	if name == "" {
		return addr
	}
	return (&mail.Address{Name: name, Address: addr}).String()
}

var _ EmailSender = (*MailgunSender)(nil)
