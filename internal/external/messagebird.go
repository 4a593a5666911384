package external

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"lawncare/internal/types"
)

const (
	messageBirdAPIBase = "https://rest.messagebird.com"

	// messageBirdDefaultOriginator is used when the config has neither a
	// number nor a name. Alphanumeric originators are limited to 11 chars.
	messageBirdDefaultOriginator = "LawnCare"
)

// MessageBirdSender delivers SMS through the MessageBird messages API.
type MessageBirdSender struct {
	base       *BaseClient
	accessKey  string
	originator string
	baseURL    string
	result     resultBuilder
	logger     *slog.Logger
}

func newMessageBirdSender(cfg types.ProviderConfig, deps Deps) *MessageBirdSender {
	originator := cfg.FromNumber
	if originator == "" {
		originator = cfg.FromName
	}
	if originator == "" {
		originator = messageBirdDefaultOriginator
	}
	return &MessageBirdSender{
		base:       deps.baseClient("messagebird:" + cfg.ID),
		accessKey:  cfg.Credentials.APIKey.Unmask(),
		originator: originator,
		baseURL:    deps.baseURL(types.ProviderMessageBird, messageBirdAPIBase),
		result:     deps.resultBuilder(cfg.ID),
		logger:     deps.Logger.With("provider", "messagebird", "provider_id", cfg.ID),
	}
}

type messageBirdRequest struct {
	Recipients []string `json:"recipients"`
	Originator string   `json:"originator"`
	Body       string   `json:"body"`
}

type messageBirdResponse struct {
	ID     string `json:"id"`
	Errors []struct {
		Code        int    `json:"code"`
		Description string `json:"description"`
	} `json:"errors"`
}

// SendSMS posts to /messages with AccessKey authorization.
func (s *MessageBirdSender) SendSMS(ctx context.Context, msg SMSMessage) SendResult {
	body, err := json.Marshal(messageBirdRequest{
		Recipients: []string{msg.To},
		Originator: s.originator,
		Body:       msg.Content,
	})
	if err != nil {
		return s.result.fail(fmt.Errorf("messagebird: encoding payload: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/messages", bytes.NewReader(body))
	if err != nil {
		return s.result.fail(fmt.Errorf("messagebird: building request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "AccessKey "+s.accessKey)

	resp, err := s.base.Do(req)
	if err != nil {
		s.logger.WarnContext(ctx, "messagebird send failed", "error", err)
		return s.result.fail(fmt.Errorf("messagebird: %w", err))
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var out messageBirdResponse
	_ = json.Unmarshal(raw, &out)

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		detail := strings.TrimSpace(string(raw))
		if len(out.Errors) > 0 {
			detail = out.Errors[0].Description
		}
		s.logger.WarnContext(ctx, "messagebird rejected message", "status", resp.StatusCode)
		return s.result.fail(fmt.Errorf("messagebird: status %d: %s", resp.StatusCode, detail))
	}
	return s.result.ok(out.ID)
}

var _ SMSSender = (*MessageBirdSender)(nil)
