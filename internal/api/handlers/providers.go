package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"lawncare/internal/core"
	"lawncare/internal/external"
	"lawncare/internal/types"
)

// ProviderService manages the vendor configs for each channel.
type ProviderService interface {
	ProviderConfigs(ctx context.Context, ch types.Channel) ([]types.ProviderConfig, error)
	SaveProviderConfig(ctx context.Context, cfg types.ProviderConfig) (*types.ProviderConfig, error)
	SetDefaultProvider(ctx context.Context, ch types.Channel, id string) error
	TestProvider(ctx context.Context, id, to string) (external.SendResult, error)
}

// ProviderConfigRequest is the body of POST /v1/providers/{channel} and
// PUT /v1/providers/{channel}/{id}. Secrets may be omitted or sent back
// redacted on update to keep the stored values.
type ProviderConfigRequest struct {
	Name        string                    `json:"name" validate:"required,max=100"`
	Type        string                    `json:"type" validate:"required,provider"`
	Credentials types.ProviderCredentials `json:"credentials"`
	FromEmail   string                    `json:"from_email,omitempty" validate:"omitempty,email"`
	FromName    string                    `json:"from_name,omitempty" validate:"max=100"`
	FromNumber  string                    `json:"from_number,omitempty" validate:"omitempty,e164"`
	IsDefault   bool                      `json:"is_default"`
	Enabled     bool                      `json:"enabled"`
}

// TestProviderRequest is the body of POST /v1/providers/{channel}/{id}/test.
type TestProviderRequest struct {
	To string `json:"to" validate:"required,max=320"`
}

// ProviderHandler serves the provider config endpoints. Responses carry
// credentials redacted.
type ProviderHandler struct {
	svc       ProviderService
	validator *core.Validator
	logger    *slog.Logger
}

func NewProviderHandler(svc ProviderService, v *core.Validator, l *slog.Logger) *ProviderHandler {
	if l == nil {
		l = slog.Default()
	}
	return &ProviderHandler{svc: svc, validator: v, logger: l}
}

func (h *ProviderHandler) RegisterRoutes(r chi.Router) {
	r.Route("/providers/{channel}", func(r chi.Router) {
		r.Get("/", h.List)
		r.Post("/", h.Create)
		r.Put("/{id}", h.Update)
		r.Post("/{id}/default", h.SetDefault)
		r.Post("/{id}/test", h.Test)
	})
}

func channelParam(r *http.Request) (types.Channel, error) {
	ch := types.Channel(chi.URLParam(r, "channel"))
	if !ch.Valid() {
		return "", types.NewAppError(types.ErrCodeValidationInvalidChannel,
			fmt.Sprintf("unknown channel %q (want email or sms)", ch), nil)
	}
	return ch, nil
}

// List handles GET /v1/providers/{channel}.
func (h *ProviderHandler) List(w http.ResponseWriter, r *http.Request) {
	ch, err := channelParam(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	items, err := h.svc.ProviderConfigs(r.Context(), ch)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.JSON(w, r, http.StatusOK, types.NewListResponse(items))
}

// Create handles POST /v1/providers/{channel}.
func (h *ProviderHandler) Create(w http.ResponseWriter, r *http.Request) {
	h.save(w, r, "", http.StatusCreated)
}

// Update handles PUT /v1/providers/{channel}/{id}.
func (h *ProviderHandler) Update(w http.ResponseWriter, r *http.Request) {
	h.save(w, r, chi.URLParam(r, "id"), http.StatusOK)
}

func (h *ProviderHandler) save(w http.ResponseWriter, r *http.Request, id string, status int) {
	ch, err := channelParam(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	var req ProviderConfigRequest
	if err := h.validator.DecodeAndValidate(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}

	cfg, err := h.svc.SaveProviderConfig(r.Context(), types.ProviderConfig{
		ID:          id,
		Name:        req.Name,
		Channel:     ch,
		Type:        types.ProviderType(req.Type),
		Credentials: req.Credentials,
		FromEmail:   req.FromEmail,
		FromName:    req.FromName,
		FromNumber:  req.FromNumber,
		IsDefault:   req.IsDefault,
		Enabled:     req.Enabled,
	})
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.JSON(w, r, status, core.APIResponse{Data: cfg})
}

// SetDefault handles POST /v1/providers/{channel}/{id}/default.
func (h *ProviderHandler) SetDefault(w http.ResponseWriter, r *http.Request) {
	ch, err := channelParam(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.svc.SetDefaultProvider(r.Context(), ch, chi.URLParam(r, "id")); err != nil {
		core.Error(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Test handles POST /v1/providers/{channel}/{id}/test. The vendor's verdict
// is returned with 200 either way; only unusable configs are errors.
func (h *ProviderHandler) Test(w http.ResponseWriter, r *http.Request) {
	if _, err := channelParam(r); err != nil {
		core.Error(w, r, err)
		return
	}
	var req TestProviderRequest
	if err := h.validator.DecodeAndValidate(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}

	id := chi.URLParam(r, "id")
	result, err := h.svc.TestProvider(r.Context(), id, req.To)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	h.logger.InfoContext(r.Context(), "provider test sent",
		"provider_id", id,
		"success", result.Success,
	)
	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: result})
}
