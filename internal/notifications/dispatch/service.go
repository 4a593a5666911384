// Package dispatch sends templated notifications to customers over the
// channels they have opted into and records every attempt in the history log.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"lawncare/internal/external"
	"lawncare/internal/notifications/core"
	"lawncare/internal/notifications/template"
	"lawncare/internal/types"
)

// Deps wires a Service. Repos and Senders are required; the rest default.
type Deps struct {
	Repos   types.RepositoryRegistry
	Senders external.SenderResolver
	Metrics core.NotificationMetrics
	Clock   types.Clock
	Logger  *slog.Logger

	// CompanyName and CompanyPhone fill the companyName and companyPhone
	// variables unless the caller supplies them.
	CompanyName  string
	CompanyPhone string
}

// Service is the notification dispatcher.
type Service struct {
	preferences types.PreferenceRepository
	templates   types.TemplateRepository
	providers   types.ProviderConfigRepository
	history     types.HistoryRepository
	tracking    types.DeliveryTrackingRepository
	reminders   types.ReminderSettingsRepository

	senders external.SenderResolver
	metrics core.NotificationMetrics
	clock   types.Clock
	logger  *slog.Logger

	companyName  string
	companyPhone string
}

// NewService creates a Service from deps.
func NewService(deps Deps) *Service {
	if deps.Metrics == nil {
		deps.Metrics = core.NoopMetrics{}
	}
	if deps.Clock == nil {
		deps.Clock = types.RealClock{}
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Service{
		preferences:  deps.Repos.Preferences(),
		templates:    deps.Repos.Templates(),
		providers:    deps.Repos.ProviderConfigs(),
		history:      deps.Repos.History(),
		tracking:     deps.Repos.DeliveryTracking(),
		reminders:    deps.Repos.ReminderSettings(),
		senders:      deps.Senders,
		metrics:      deps.Metrics,
		clock:        deps.Clock,
		logger:       deps.Logger.With("component", "dispatch"),
		companyName:  deps.CompanyName,
		companyPhone: deps.CompanyPhone,
	}
}

// SendRequest asks for one template to be sent to one recipient. Recipient
// is an email address or phone number, depending on the template's channel.
type SendRequest struct {
	CustomerID   string            `json:"customer_id" validate:"required"`
	CustomerName string            `json:"customer_name"`
	TemplateID   string            `json:"template_id" validate:"required"`
	Variables    map[string]string `json:"variables"`
	Recipient    string            `json:"recipient" validate:"required"`
}

// SendNotification renders a template and sends it through the channel's
// default provider.
//
// Lookup, opt-out, validation and provider resolution failures return an
// error and leave the history log untouched. Once a provider is resolved
// the attempt is always recorded: the returned entry has status sent or
// failed, and only storage errors are returned after that point.
func (s *Service) SendNotification(ctx context.Context, req SendRequest) (*types.NotificationHistory, error) {
	pref, err := s.Preferences(ctx, req.CustomerID)
	if err != nil {
		return nil, err
	}

	tmpl, err := s.templates.Get(ctx, req.TemplateID)
	if err != nil {
		return nil, err
	}

	if !pref.AllowsChannel(tmpl.Channel) {
		s.metrics.RecordDispatch(ctx, tmpl.Channel, "", core.MetricSkipped)
		return nil, types.NewAppErrorWithDetails(types.ErrCodeOptOutChannel,
			fmt.Sprintf("customer %s has opted out of %s notifications", req.CustomerID, tmpl.Channel), nil,
			map[string]any{"customer_id": req.CustomerID, "channel": tmpl.Channel})
	}

	if err := template.Validate(*tmpl, req.Variables); err != nil {
		return nil, err
	}
	if err := types.ValidateRecipient(tmpl.Channel, req.Recipient); err != nil {
		return nil, err
	}

	cfg, err := s.defaultProvider(ctx, tmpl.Channel)
	if err != nil {
		return nil, err
	}

	rendered := template.Render(*tmpl, req.Variables)
	entry := &types.NotificationHistory{
		ID:           uuid.NewString(),
		CustomerID:   req.CustomerID,
		CustomerName: req.CustomerName,
		Channel:      tmpl.Channel,
		TemplateID:   tmpl.ID,
		Recipient:    req.Recipient,
		Subject:      rendered.Subject,
		Body:         rendered.Body,
		Status:       types.NotificationPending,
		ProviderID:   cfg.ID,
		Timestamp:    s.clock.Now(),
	}

	logger := s.logger.With(
		"customer_id", req.CustomerID,
		"template_id", tmpl.ID,
		"channel", string(tmpl.Channel),
		"provider_id", cfg.ID,
		"recipient", core.RedactRecipient(req.Recipient),
	)

	result := s.deliver(ctx, *cfg, req, rendered)
	if result.Success {
		entry.Status = types.NotificationSent
		entry.ProviderMessageID = result.MessageID
		s.metrics.RecordDispatch(ctx, tmpl.Channel, cfg.Type, core.MetricSuccess)
	} else {
		entry.Status = types.NotificationFailed
		entry.Error = result.Error
		s.metrics.RecordDispatch(ctx, tmpl.Channel, cfg.Type, core.MetricFailed)
	}

	if err := s.history.Append(ctx, entry); err != nil {
		logger.Error("failed to record notification history", "error", err, "status", string(entry.Status))
		return nil, err
	}

	if entry.Status == types.NotificationSent && entry.ProviderMessageID != "" {
		s.track(ctx, entry, logger)
	}

	if entry.Status == types.NotificationSent {
		logger.Info("notification sent", "history_id", entry.ID, "message_id", entry.ProviderMessageID)
	} else {
		logger.Warn("notification failed", "history_id", entry.ID, "error", entry.Error)
	}
	return entry, nil
}

// defaultProvider returns the single enabled default config for ch. Zero or
// several candidates is an error rather than an arbitrary pick.
func (s *Service) defaultProvider(ctx context.Context, ch types.Channel) (*types.ProviderConfig, error) {
	configs, err := s.providers.ListByChannel(ctx, ch)
	if err != nil {
		return nil, err
	}

	var candidates []types.ProviderConfig
	for _, cfg := range configs {
		if cfg.IsDefault && cfg.Enabled {
			candidates = append(candidates, cfg)
		}
	}

	switch len(candidates) {
	case 0:
		return nil, types.NewAppError(types.ErrCodeDispatchNoProvider,
			fmt.Sprintf("no enabled default %s provider is configured", ch), nil)
	case 1:
		return &candidates[0], nil
	default:
		ids := make([]string, len(candidates))
		for i, c := range candidates {
			ids[i] = c.ID
		}
		return nil, types.NewAppErrorWithDetails(types.ErrCodeDispatchAmbiguousProvider,
			fmt.Sprintf("%d enabled default %s providers are configured", len(candidates), ch), nil,
			map[string]any{"provider_ids": ids})
	}
}

// deliver hands the rendered message to the vendor. A config the resolver
// cannot build a sender for counts as a failed send.
func (s *Service) deliver(ctx context.Context, cfg types.ProviderConfig, req SendRequest, rendered template.Rendered) external.SendResult {
	failed := func(msg string) external.SendResult {
		return external.SendResult{ProviderID: cfg.ID, Error: msg, Timestamp: s.clock.Now()}
	}

	switch cfg.Channel {
	case types.ChannelEmail:
		sender := s.senders.EmailSender(cfg)
		if sender == nil {
			return failed(fmt.Sprintf("email provider %s is not usable", cfg.ID))
		}
		msg := external.EmailMessage{
			To:          req.Recipient,
			ToName:      req.CustomerName,
			Subject:     rendered.Subject,
			TextContent: rendered.Body,
		}
		html, err := template.HTMLBody(rendered)
		if err != nil {
			s.logger.Warn("sending plain text only", "template_id", req.TemplateID, "error", err)
		} else {
			msg.HTMLContent = html
		}
		return sender.SendEmail(ctx, msg)

	case types.ChannelSMS:
		sender := s.senders.SMSSender(cfg)
		if sender == nil {
			return failed(fmt.Sprintf("sms provider %s is not usable", cfg.ID))
		}
		return sender.SendSMS(ctx, external.SMSMessage{To: req.Recipient, Content: rendered.Body})
	}
	return failed(fmt.Sprintf("provider %s has unknown channel %q", cfg.ID, cfg.Channel))
}

// track opens the delivery tracking record webhooks will append to. A
// failure here is logged and does not undo the send.
func (s *Service) track(ctx context.Context, entry *types.NotificationHistory, logger *slog.Logger) {
	now := s.clock.Now()
	tracking := &types.DeliveryTracking{
		ID:                uuid.NewString(),
		HistoryID:         entry.ID,
		ProviderID:        entry.ProviderID,
		ProviderMessageID: entry.ProviderMessageID,
		Status:            types.DeliverySent,
		Timestamp:         now,
		Events:            types.DeliveryEventList{{Status: types.DeliverySent, Timestamp: now}},
	}
	if err := s.tracking.Create(ctx, tracking); err != nil {
		logger.Error("failed to create delivery tracking", "history_id", entry.ID, "error", err)
	}
}
