package dispatch

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"

	"lawncare/internal/external"
	"lawncare/internal/notifications/template"
	"lawncare/internal/types"
)

// Preferences returns the stored preferences, or the defaults when the
// customer has never saved any.
func (s *Service) Preferences(ctx context.Context, customerID string) (types.NotificationPreference, error) {
	pref, err := s.preferences.Get(ctx, customerID)
	if types.IsNotFound(err) {
		return types.DefaultNotificationPreference(customerID), nil
	}
	if err != nil {
		return types.NotificationPreference{}, err
	}
	return *pref, nil
}

// UpdatePreferences replaces a customer's preferences. Category flags are
// stored as given even when both channels are off.
func (s *Service) UpdatePreferences(ctx context.Context, p types.NotificationPreference) (types.NotificationPreference, error) {
	if strings.TrimSpace(p.CustomerID) == "" {
		return types.NotificationPreference{}, types.NewAppError(types.ErrCodeValidationMissingField, "customer_id is required", nil)
	}
	p.UpdatedAt = s.clock.Now()
	if err := s.preferences.Upsert(ctx, &p); err != nil {
		return types.NotificationPreference{}, err
	}
	return p, nil
}

// CustomerHistory lists one customer's notifications, newest first.
func (s *Service) CustomerHistory(ctx context.Context, customerID string, limit int) ([]types.NotificationHistory, error) {
	return s.history.List(ctx, types.HistoryFilter{CustomerID: customerID, Limit: limit})
}

// AllHistory lists notifications across customers, newest first.
func (s *Service) AllHistory(ctx context.Context, filter types.HistoryFilter) ([]types.NotificationHistory, error) {
	if filter.Channel != "" && !filter.Channel.Valid() {
		return nil, types.NewAppError(types.ErrCodeValidationInvalidChannel, fmt.Sprintf("unknown channel %q", filter.Channel), nil)
	}
	return s.history.List(ctx, filter)
}

// MarkRead stamps a history entry as read. The first read time sticks.
func (s *Service) MarkRead(ctx context.Context, id string) (*types.NotificationHistory, error) {
	entry, err := s.history.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if entry.ReadTimestamp != nil {
		return entry, nil
	}

	now := s.clock.Now()
	if err := s.history.MarkRead(ctx, id, now); err != nil {
		return nil, err
	}
	entry.ReadTimestamp = &now
	return entry, nil
}

// Templates lists the template catalog.
func (s *Service) Templates(ctx context.Context) ([]types.NotificationTemplate, error) {
	return s.templates.List(ctx)
}

// Template returns one template.
func (s *Service) Template(ctx context.Context, id string) (*types.NotificationTemplate, error) {
	return s.templates.Get(ctx, id)
}

// UpdateTemplate stores an edited template. When no variables are declared
// they are taken from the placeholders.
func (s *Service) UpdateTemplate(ctx context.Context, t types.NotificationTemplate) (*types.NotificationTemplate, error) {
	if err := template.ValidateDefinition(t); err != nil {
		return nil, err
	}
	limit := types.MaxTemplateBodyLength
	if t.Channel == types.ChannelSMS {
		limit = types.MaxSMSBodyLength
	}
	if len(t.Body) > limit {
		return nil, types.NewAppError(types.ErrCodeValidationMissingField,
			fmt.Sprintf("%s template body exceeds %d characters", t.Channel, limit), nil)
	}
	if t.Channel == types.ChannelSMS {
		t.Subject = ""
	}

	t.Variables = template.DeclaredVariables(t)
	t.UpdatedAt = s.clock.Now()
	if err := s.templates.Upsert(ctx, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// Preview is a rendered template as the customer would see it.
type Preview struct {
	template.Rendered
	HTML    string   `json:"html,omitempty"`
	Missing []string `json:"missing"`
}

// PreviewTemplate renders a template without sending it. Missing variables
// are listed instead of failing, and stay as placeholders in the output.
func (s *Service) PreviewTemplate(ctx context.Context, id string, vars map[string]string) (*Preview, error) {
	tmpl, err := s.templates.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	vars = s.withDefaults(Recipient{CustomerName: vars["customerName"]}, vars)
	p := &Preview{Rendered: template.Render(*tmpl, vars), Missing: []string{}}
	for _, name := range template.DeclaredVariables(*tmpl) {
		if _, ok := vars[name]; !ok {
			p.Missing = append(p.Missing, name)
		}
	}
	if tmpl.Channel == types.ChannelEmail {
		html, err := template.HTMLBody(p.Rendered)
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to render html preview", err)
		}
		p.HTML = html
	}
	return p, nil
}

// ProviderConfigs lists the configs for one channel.
func (s *Service) ProviderConfigs(ctx context.Context, ch types.Channel) ([]types.ProviderConfig, error) {
	if !ch.Valid() {
		return nil, types.NewAppError(types.ErrCodeValidationInvalidChannel, fmt.Sprintf("unknown channel %q", ch), nil)
	}
	return s.providers.ListByChannel(ctx, ch)
}

// EmailProviderConfigs lists the email vendor configs.
func (s *Service) EmailProviderConfigs(ctx context.Context) ([]types.ProviderConfig, error) {
	return s.ProviderConfigs(ctx, types.ChannelEmail)
}

// SMSProviderConfigs lists the SMS vendor configs.
func (s *Service) SMSProviderConfigs(ctx context.Context) ([]types.ProviderConfig, error) {
	return s.ProviderConfigs(ctx, types.ChannelSMS)
}

// SaveProviderConfig creates or updates a vendor config. The channel is
// derived from the vendor type. On update, secrets left empty or still
// redacted keep their stored values so clients can round-trip the redacted
// form. Enabled
// configs must carry every credential their vendor needs.
func (s *Service) SaveProviderConfig(ctx context.Context, cfg types.ProviderConfig) (*types.ProviderConfig, error) {
	ch := cfg.Type.Channel()
	if ch == "" {
		return nil, types.NewAppError(types.ErrCodeValidationInvalidProvider, fmt.Sprintf("unknown provider type %q", cfg.Type), nil)
	}
	if cfg.Channel != "" && cfg.Channel != ch {
		return nil, types.NewAppError(types.ErrCodeValidationInvalidProvider,
			fmt.Sprintf("%s is not an %s provider", cfg.Type, cfg.Channel), nil)
	}
	cfg.Channel = ch

	now := s.clock.Now()
	if cfg.ID == "" {
		cfg.ID = uuid.NewString()
		cfg.CreatedAt = now
	} else {
		existing, err := s.providers.Get(ctx, cfg.ID)
		switch {
		case types.IsNotFound(err):
			cfg.CreatedAt = now
		case err != nil:
			return nil, err
		default:
			if existing.Channel != ch {
				return nil, types.NewAppError(types.ErrCodeValidationInvalidProvider,
					fmt.Sprintf("provider %s is an %s config", cfg.ID, existing.Channel), nil)
			}
			cfg.CreatedAt = existing.CreatedAt
			keepSecrets(&cfg.Credentials, existing.Credentials)
		}
	}

	if cfg.Enabled {
		if err := external.ValidateConfig(cfg); err != nil {
			return nil, types.NewAppError(types.ErrCodeConfigurationProvider, err.Error(), err)
		}
	}

	cfg.UpdatedAt = now
	if err := s.providers.Upsert(ctx, &cfg); err != nil {
		return nil, err
	}
	s.logger.Info("provider config saved",
		"provider_id", cfg.ID,
		"provider_type", string(cfg.Type),
		"is_default", cfg.IsDefault,
		"enabled", cfg.Enabled,
	)
	return &cfg, nil
}

func keepSecrets(c *types.ProviderCredentials, stored types.ProviderCredentials) {
	for _, pair := range []struct{ dst, src *types.SecretString }{
		{&c.APIKey, &stored.APIKey},
		{&c.APISecret, &stored.APISecret},
		{&c.AuthToken, &stored.AuthToken},
		{&c.Password, &stored.Password},
	} {
		if pair.dst.IsEmpty() || pair.dst.IsPlaceholder() {
			*pair.dst = *pair.src
		}
	}
}

// SetDefaultProvider makes id the default for its channel and clears the
// flag on every sibling.
func (s *Service) SetDefaultProvider(ctx context.Context, ch types.Channel, id string) error {
	cfg, err := s.providers.Get(ctx, id)
	if err != nil {
		return err
	}
	if cfg.Channel != ch {
		return types.NewAppError(types.ErrCodeValidationInvalidChannel,
			fmt.Sprintf("provider %s is an %s config, not %s", id, cfg.Channel, ch), nil)
	}
	if err := s.providers.SetDefault(ctx, ch, id); err != nil {
		return err
	}
	s.logger.Info("default provider changed", "channel", string(ch), "provider_id", id)
	return nil
}

// TestProvider sends a fixed test message through one config, default or
// not. Vendor failures come back in the result, not as an error.
func (s *Service) TestProvider(ctx context.Context, id, to string) (external.SendResult, error) {
	cfg, err := s.providers.Get(ctx, id)
	if err != nil {
		return external.SendResult{}, err
	}
	if !cfg.Enabled {
		return external.SendResult{}, types.NewAppError(types.ErrCodeConfigurationProvider,
			fmt.Sprintf("provider %s is disabled", id), nil)
	}
	if err := types.ValidateRecipient(cfg.Channel, to); err != nil {
		return external.SendResult{}, err
	}

	text := fmt.Sprintf("This is a test message from %s sent through %s.", s.companyName, cfg.Name)
	unusable := types.NewAppError(types.ErrCodeConfigurationProvider,
		fmt.Sprintf("provider %s could not be initialised", id), nil)

	switch cfg.Channel {
	case types.ChannelEmail:
		sender := s.senders.EmailSender(*cfg)
		if sender == nil {
			return external.SendResult{}, unusable
		}
		return sender.SendEmail(ctx, external.EmailMessage{
			To:          to,
			Subject:     "Test message from " + s.companyName,
			TextContent: text,
		}), nil
	case types.ChannelSMS:
		sender := s.senders.SMSSender(*cfg)
		if sender == nil {
			return external.SendResult{}, unusable
		}
		return sender.SendSMS(ctx, external.SMSMessage{To: to, Content: text}), nil
	}
	return external.SendResult{}, unusable
}

// ReminderSettings returns the invoice reminder settings, or the defaults
// when none are stored.
func (s *Service) ReminderSettings(ctx context.Context) (types.InvoiceReminderSettings, error) {
	settings, err := s.reminders.Get(ctx)
	if types.IsNotFound(err) {
		return types.DefaultInvoiceReminderSettings(), nil
	}
	if err != nil {
		return types.InvoiceReminderSettings{}, err
	}
	return *settings, nil
}

// UpdateReminderSettings validates and stores the settings. Day lists are
// sorted and de-duplicated.
func (s *Service) UpdateReminderSettings(ctx context.Context, settings types.InvoiceReminderSettings) (types.InvoiceReminderSettings, error) {
	if err := settings.Validate(); err != nil {
		return types.InvoiceReminderSettings{}, err
	}
	settings.DaysBeforeDue = normalizeDays(settings.DaysBeforeDue)
	settings.DaysAfterDue = normalizeDays(settings.DaysAfterDue)
	if settings.ExceptionCustomerIDs == nil {
		settings.ExceptionCustomerIDs = []string{}
	}
	if err := s.reminders.Save(ctx, &settings); err != nil {
		return types.InvoiceReminderSettings{}, err
	}
	return settings, nil
}

func normalizeDays(days []int) []int {
	out := slices.Clone(days)
	if out == nil {
		return []int{}
	}
	slices.Sort(out)
	return slices.Compact(out)
}
