package external

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"lawncare/internal/config"
	"lawncare/internal/types"
)

// Deps carries what the factory needs besides the provider config itself.
type Deps struct {
	// Timeout bounds every vendor call.
	Timeout time.Duration
	Retry   RetryPolicy
	Logger  *slog.Logger
	Now     func() time.Time
	Sleep   SleepFunc

	// HTTPClient defaults to a client with Timeout.
	HTTPClient *http.Client

	// BaseURLs overrides vendor API roots, keyed by provider type.
	BaseURLs map[types.ProviderType]string

	// NewSESAPI defaults to the AWS SDK with the default credential chain.
	NewSESAPI SESAPIFactory

	// SMTPTransport defaults to a real dial with STARTTLS.
	SMTPTransport SMTPTransport
}

// NewDeps builds factory dependencies from the PROVIDER_* settings.
func NewDeps(cfg config.ProvidersConfig, awsEndpoint string, logger *slog.Logger) Deps {
	return Deps{
		Timeout:   cfg.HTTPTimeout,
		Retry:     RetryPolicyFromConfig(cfg),
		Logger:    logger,
		NewSESAPI: newAWSSESAPI(awsEndpoint),
	}.withDefaults()
}

func (d Deps) withDefaults() Deps {
	if d.Timeout <= 0 {
		d.Timeout = 10 * time.Second
	}
	if d.Retry == (RetryPolicy{}) {
		d.Retry = DefaultRetryPolicy()
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Now == nil {
		d.Now = func() time.Time { return time.Now().UTC() }
	}
	if d.Sleep == nil {
		d.Sleep = contextSleep
	}
	if d.HTTPClient == nil {
		d.HTTPClient = &http.Client{Timeout: d.Timeout}
	}
	if d.NewSESAPI == nil {
		d.NewSESAPI = newAWSSESAPI("")
	}
	return d
}

func (d Deps) baseClient(breakerName string) *BaseClient {
	return NewBaseClient(d.HTTPClient, breakerName, d.Retry, WithSleepFunc(d.Sleep))
}

func (d Deps) baseURL(t types.ProviderType, fallback string) string {
	if u, ok := d.BaseURLs[t]; ok && u != "" {
		return strings.TrimSuffix(u, "/")
	}
	return fallback
}

func (d Deps) resultBuilder(providerID string) resultBuilder {
	return resultBuilder{providerID: providerID, now: d.Now}
}

// errConfiguration lets callers match any ConfigurationError with
// types.HasCode(err, types.ErrCodeConfigurationProvider).
var errConfiguration = types.NewAppError(types.ErrCodeConfigurationProvider, "invalid provider configuration", nil)

// ConfigurationError reports a provider config the factory cannot build a
// sender from.
type ConfigurationError struct {
	ConfigID string
	Type     types.ProviderType
	Reason   string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("provider config %q (%s): %s", e.ConfigID, e.Type, e.Reason)
}

func (e *ConfigurationError) Unwrap() error { return errConfiguration }

func configErr(cfg types.ProviderConfig, format string, args ...any) *ConfigurationError {
	return &ConfigurationError{ConfigID: cfg.ID, Type: cfg.Type, Reason: fmt.Sprintf(format, args...)}
}

// requireCredentials checks that every named credential is present.
func requireCredentials(cfg types.ProviderConfig, required map[string]bool) error {
	var missing []string
	for _, name := range []string{"api_key", "api_secret", "domain", "account_sid", "auth_token", "username", "password", "host", "region", "from_email", "from_number"} {
		if required[name] && !credentialPresent(cfg, name) {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return configErr(cfg, "missing %s", strings.Join(missing, ", "))
	}
	return nil
}

func credentialPresent(cfg types.ProviderConfig, name string) bool {
	c := cfg.Credentials
	switch name {
	case "api_key":
		return !c.APIKey.IsEmpty()
	case "api_secret":
		return !c.APISecret.IsEmpty()
	case "domain":
		return c.Domain != ""
	case "account_sid":
		return c.AccountSID != ""
	case "auth_token":
		return !c.AuthToken.IsEmpty()
	case "username":
		return c.Username != ""
	case "password":
		return !c.Password.IsEmpty()
	case "host":
		return c.Host != ""
	case "region":
		return c.Region != ""
	case "from_email":
		return cfg.FromEmail != ""
	case "from_number":
		return cfg.FromNumber != ""
	}
	return false
}

func need(names ...string) map[string]bool {
	m := make(map[string]bool, len(names))
	for _, n := range names {
		m[n] = true
	}
	return m
}

// requiredCredentials lists the fields each vendor cannot work without.
var requiredCredentials = map[types.ProviderType][]string{
	types.ProviderSendGrid:    {"api_key", "from_email"},
	types.ProviderMailgun:     {"api_key", "domain", "from_email"},
	types.ProviderSMTP:        {"host", "username", "password", "from_email"},
	types.ProviderSES:         {"region", "from_email"},
	types.ProviderTwilio:      {"account_sid", "auth_token", "from_number"},
	types.ProviderVonage:      {"api_key", "api_secret"},
	types.ProviderMessageBird: {"api_key"},
}

// ValidateConfig reports the *ConfigurationError the factory would return
// for cfg without building a sender. The enabled flag is ignored.
func ValidateConfig(cfg types.ProviderConfig) error {
	names, ok := requiredCredentials[cfg.Type]
	if !ok {
		return configErr(cfg, "unknown provider type %q", cfg.Type)
	}
	if cfg.Channel != "" && cfg.Channel != cfg.Type.Channel() {
		return configErr(cfg, "%s is not an %s provider", cfg.Type, cfg.Channel)
	}
	return requireCredentials(cfg, need(names...))
}

// NewEmailSender builds the sender for an email provider config. A disabled
// config yields (nil, nil). A wrong channel, unknown type or missing
// credential yields a *ConfigurationError.
func NewEmailSender(cfg types.ProviderConfig, deps Deps) (EmailSender, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	deps = deps.withDefaults()

	switch cfg.Type {
	case types.ProviderSendGrid:
		if err := requireCredentials(cfg, need(requiredCredentials[cfg.Type]...)); err != nil {
			return nil, err
		}
		return newSendGridSender(cfg, deps), nil
	case types.ProviderMailgun:
		if err := requireCredentials(cfg, need(requiredCredentials[cfg.Type]...)); err != nil {
			return nil, err
		}
		return newMailgunSender(cfg, deps), nil
	case types.ProviderSMTP:
		if err := requireCredentials(cfg, need(requiredCredentials[cfg.Type]...)); err != nil {
			return nil, err
		}
		return newSMTPSender(cfg, deps), nil
	case types.ProviderSES:
		if err := requireCredentials(cfg, need(requiredCredentials[cfg.Type]...)); err != nil {
			return nil, err
		}
		api, err := deps.NewSESAPI(context.Background(), cfg.Credentials.Region)
		if err != nil {
			return nil, configErr(cfg, "%v", err)
		}
		return newSESSender(api, cfg, deps), nil
	case types.ProviderTwilio, types.ProviderVonage, types.ProviderMessageBird:
		return nil, configErr(cfg, "%s is not an email provider", cfg.Type)
	default:
		return nil, configErr(cfg, "unknown provider type %q", cfg.Type)
	}
}

// NewSMSSender builds the sender for an SMS provider config, with the same
// contract as NewEmailSender.
func NewSMSSender(cfg types.ProviderConfig, deps Deps) (SMSSender, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	deps = deps.withDefaults()

	switch cfg.Type {
	case types.ProviderTwilio:
		if err := requireCredentials(cfg, need(requiredCredentials[cfg.Type]...)); err != nil {
			return nil, err
		}
		return newTwilioSender(cfg, deps), nil
	case types.ProviderVonage:
		if err := requireCredentials(cfg, need(requiredCredentials[cfg.Type]...)); err != nil {
			return nil, err
		}
		return newVonageSender(cfg, deps), nil
	case types.ProviderMessageBird:
		if err := requireCredentials(cfg, need(requiredCredentials[cfg.Type]...)); err != nil {
			return nil, err
		}
		return newMessageBirdSender(cfg, deps), nil
	case types.ProviderSendGrid, types.ProviderMailgun, types.ProviderSMTP, types.ProviderSES:
		return nil, configErr(cfg, "%s is not an SMS provider", cfg.Type)
	default:
		return nil, configErr(cfg, "unknown provider type %q", cfg.Type)
	}
}

// CreateEmailProvider is NewEmailSender for callers that only care whether
// a sender exists. Configuration errors are logged and yield nil.
func CreateEmailProvider(cfg types.ProviderConfig, deps Deps) EmailSender {
	sender, err := NewEmailSender(cfg, deps)
	if err != nil {
		logFactoryError(deps, cfg, err)
		return nil
	}
	return sender
}

// CreateSMSProvider is the SMS counterpart of CreateEmailProvider.
func CreateSMSProvider(cfg types.ProviderConfig, deps Deps) SMSSender {
	sender, err := NewSMSSender(cfg, deps)
	if err != nil {
		logFactoryError(deps, cfg, err)
		return nil
	}
	return sender
}

func logFactoryError(deps Deps, cfg types.ProviderConfig, err error) {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Error("failed to create provider",
		"provider_id", cfg.ID,
		"provider_type", cfg.Type,
		"error", err,
	)
}
