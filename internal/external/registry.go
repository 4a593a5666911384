package external

import (
	"log/slog"
	"sync"
	"time"

	"lawncare/internal/config"
	"lawncare/internal/types"
)

// SenderResolver turns a stored provider config into a sender. A nil
// result means the config is disabled or unusable.
type SenderResolver interface {
	EmailSender(cfg types.ProviderConfig) EmailSender
	SMSSender(cfg types.ProviderConfig) SMSSender
}

// Registry caches one sender per provider config so each vendor keeps its
// circuit breaker state across sends. An entry is rebuilt when the config's
// UpdatedAt changes.
type Registry struct {
	deps   Deps
	stub   bool
	logger *slog.Logger

	mu    sync.Mutex
	email map[string]cachedEmail
	sms   map[string]cachedSMS
}

type cachedEmail struct {
	version time.Time
	sender  EmailSender
}

type cachedSMS struct {
	version time.Time
	sender  SMSSender
}

// NewRegistry creates a Registry. When stub is true every enabled config
// resolves to a log-only sender.
func NewRegistry(deps Deps, stub bool) *Registry {
	deps = deps.withDefaults()
	return &Registry{
		deps:   deps,
		stub:   stub,
		logger: deps.Logger,
		email:  make(map[string]cachedEmail),
		sms:    make(map[string]cachedSMS),
	}
}

// NewRegistryFromConfig uses stubs when PROVIDER_STUB_MODE is set or the
// environment is local.
func NewRegistryFromConfig(cfg *config.Config, logger *slog.Logger) *Registry {
	stub := cfg.Providers.StubMode || cfg.Environment == "local"
	if stub {
		logger.Info("initializing notification providers in STUB mode",
			"stub_mode", cfg.Providers.StubMode,
			"environment", cfg.Environment,
		)
	}
	return NewRegistry(NewDeps(cfg.Providers, cfg.AWS.EndpointURL, logger), stub)
}

func (r *Registry) EmailSender(cfg types.ProviderConfig) EmailSender {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c, ok := r.email[cfg.ID]; ok && c.version.Equal(cfg.UpdatedAt) {
		return c.sender
	}

	var sender EmailSender
	switch {
	case !cfg.Enabled:
	case r.stub:
		sender = NewStubEmailSender(cfg.ID, r.logger.With("mode", "stub"))
	default:
		sender = CreateEmailProvider(cfg, r.deps)
	}
	r.email[cfg.ID] = cachedEmail{version: cfg.UpdatedAt, sender: sender}
	return sender
}

func (r *Registry) SMSSender(cfg types.ProviderConfig) SMSSender {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c, ok := r.sms[cfg.ID]; ok && c.version.Equal(cfg.UpdatedAt) {
		return c.sender
	}

	var sender SMSSender
	switch {
	case !cfg.Enabled:
	case r.stub:
		sender = NewStubSMSSender(cfg.ID, r.logger.With("mode", "stub"))
	default:
		sender = CreateSMSProvider(cfg, r.deps)
	}
	r.sms[cfg.ID] = cachedSMS{version: cfg.UpdatedAt, sender: sender}
	return sender
}

var _ SenderResolver = (*Registry)(nil)
