package external

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"lawncare/internal/types"
)

const vonageAPIBase = "https://rest.nexmo.com"

// VonageSender delivers SMS through the Vonage SMS API.
type VonageSender struct {
	base      *BaseClient
	apiKey    string
	apiSecret string
	from      string
	baseURL   string
	result    resultBuilder
	logger    *slog.Logger
}

func newVonageSender(cfg types.ProviderConfig, deps Deps) *VonageSender {
	from := cfg.FromNumber
	if from == "" {
		from = cfg.FromName
	}
	return &VonageSender{
		base:      deps.baseClient("vonage:" + cfg.ID),
		apiKey:    cfg.Credentials.APIKey.Unmask(),
		apiSecret: cfg.Credentials.APISecret.Unmask(),
		from:      from,
		baseURL:   deps.baseURL(types.ProviderVonage, vonageAPIBase),
		result:    deps.resultBuilder(cfg.ID),
		logger:    deps.Logger.With("provider", "vonage", "provider_id", cfg.ID),
	}
}

type vonageRequest struct {
	APIKey    string `json:"api_key"`
	APISecret string `json:"api_secret"`
	From      string `json:"from"`
	To        string `json:"to"`
	Text      string `json:"text"`
}

type vonageResponse struct {
	MessageCount string `json:"message-count"`
	Messages     []struct {
		Status    string `json:"status"`
		MessageID string `json:"message-id"`
		ErrorText string `json:"error-text"`
	} `json:"messages"`
}

// SendSMS posts to /sms/json. Vonage answers 200 even for rejected
// messages; a per-message status other than "0" is a failure.
func (s *VonageSender) SendSMS(ctx context.Context, msg SMSMessage) SendResult {
	body, err := json.Marshal(vonageRequest{
		APIKey:    s.apiKey,
		APISecret: s.apiSecret,
		From:      s.from,
		To:        msg.To,
		Text:      msg.Content,
	})
	if err != nil {
		return s.result.fail(fmt.Errorf("vonage: encoding payload: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/sms/json", bytes.NewReader(body))
	if err != nil {
		return s.result.fail(fmt.Errorf("vonage: building request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.base.Do(req)
	if err != nil {
		s.logger.WarnContext(ctx, "vonage send failed", "error", err)
		return s.result.fail(fmt.Errorf("vonage: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return s.result.fail(fmt.Errorf("vonage: status %d", resp.StatusCode))
	}

	var out vonageResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return s.result.fail(fmt.Errorf("vonage: decoding response: %w", err))
	}
	if len(out.Messages) == 0 {
		return s.result.fail(fmt.Errorf("vonage: response contained no messages"))
	}
	first := out.Messages[0]
	if first.Status != "0" {
		s.logger.WarnContext(ctx, "vonage rejected message", "status", first.Status)
		return s.result.fail(fmt.Errorf("vonage: status %s: %s", first.Status, first.ErrorText))
	}
	return s.result.ok(first.MessageID)
}

var _ SMSSender = (*VonageSender)(nil)
