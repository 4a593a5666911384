// Package handlers contains the HTTP handlers of the lawn-care office API.
//
// Every handler declares the narrow service interface it depends on,
// takes its collaborators in a NewXHandler constructor and mounts itself
// through RegisterRoutes. Errors go through core.Error so the envelope is
// uniform; the delivery webhook is the exception because vendors expect a
// flat {"error": "..."} body.
package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"lawncare/internal/core"
	"lawncare/internal/notifications/delivery"
	"lawncare/internal/types"
)

// maxWebhookBodySize caps vendor callbacks. SendGrid batches stay well
// below this.
const maxWebhookBodySize = 256 * 1024

// ProviderHeader names the vendor that sent the callback.
const ProviderHeader = "x-notification-provider"

// DeliveryWebhookProcessor applies vendor callbacks to tracking and history.
type DeliveryWebhookProcessor interface {
	HandleWebhook(ctx context.Context, provider, contentType string, body []byte) (int, error)
}

// DeliveryWebhookHandler receives delivery status callbacks from the email
// and SMS vendors. It is unauthenticated.
type DeliveryWebhookHandler struct {
	processor DeliveryWebhookProcessor
	logger    *slog.Logger
}

func NewDeliveryWebhookHandler(processor DeliveryWebhookProcessor, logger *slog.Logger) *DeliveryWebhookHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &DeliveryWebhookHandler{processor: processor, logger: logger}
}

// RegisterRoutes mounts the callback endpoint. It belongs under /api.
func (h *DeliveryWebhookHandler) RegisterRoutes(r chi.Router) {
	r.Post("/webhooks/notifications", h.Handle)
}

type webhookError struct {
	Error string `json:"error"`
}

type webhookAck struct {
	Success bool `json:"success"`
}

// Handle answers 200 {"success":true} once every update in the body has been
// applied, 400 for malformed callbacks and 500 when applying fails. A panic
// while applying is answered here so vendors still get the flat body.
func (h *DeliveryWebhookHandler) Handle(w http.ResponseWriter, r *http.Request) {
	provider := r.Header.Get(ProviderHeader)

	defer func() {
		rvr := recover()
		if rvr == nil {
			return
		}
		if rvr == http.ErrAbortHandler {
			panic(rvr)
		}
		h.logger.ErrorContext(r.Context(), "webhook processing panicked", "provider", provider, "panic", rvr)
		core.JSON(w, r, http.StatusInternalServerError, webhookError{Error: fmt.Sprint(rvr)})
	}()

	r.Body = http.MaxBytesReader(w, r.Body, maxWebhookBodySize)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		h.logger.WarnContext(r.Context(), "failed to read webhook body", "provider", provider, "error", err)
		core.JSON(w, r, http.StatusBadRequest, webhookError{Error: delivery.MsgInvalidJSONPayload})
		return
	}

	applied, err := h.processor.HandleWebhook(r.Context(), provider, r.Header.Get("Content-Type"), body)
	if err != nil {
		if delivery.IsRejection(err) {
			core.JSON(w, r, http.StatusBadRequest, webhookError{Error: errorMessage(err)})
			return
		}
		h.logger.ErrorContext(r.Context(), "webhook processing failed",
			"provider", provider,
			"applied", applied,
			"error", err,
		)
		core.JSON(w, r, http.StatusInternalServerError, webhookError{Error: errorMessage(err)})
		return
	}

	h.logger.DebugContext(r.Context(), "webhook processed", "provider", provider, "applied", applied)
	core.JSON(w, r, http.StatusOK, webhookAck{Success: true})
}

// errorMessage prefers the human message of an AppError over its coded form.
func errorMessage(err error) string {
	var appErr *types.AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return err.Error()
}
