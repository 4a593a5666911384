// Package delivery turns vendor delivery callbacks into canonical status
// updates and applies them to delivery tracking and notification history.
package delivery

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"mime"
	"net/url"
	"strings"
	"time"

	"lawncare/internal/types"
)

// Webhook rejection messages. Handlers return them verbatim.
const (
	MsgMissingProvider    = "Missing provider header"
	MsgUnknownProvider    = "Unknown provider"
	MsgUnrecognizedEvent  = "Unrecognized event"
	MsgInvalidJSONPayload = "Invalid JSON payload"
)

// StatusUpdate is one vendor event mapped onto a canonical status.
type StatusUpdate struct {
	Provider          types.ProviderType
	ProviderMessageID string
	Status            types.DeliveryStatus
	// Timestamp is zero when the vendor did not send one.
	Timestamp time.Time
	Reason    string
	Payload   json.RawMessage
}

// Parser decodes one vendor's webhook body. Events the vendor sends but we
// do not track are skipped for batch payloads and rejected otherwise.
type Parser func(contentType string, body []byte) ([]StatusUpdate, error)

var parsers = map[types.ProviderType]Parser{
	types.ProviderSendGrid: parseSendGrid,
	types.ProviderTwilio:   parseTwilio,
	types.ProviderMailgun:  parseMailgun,
	types.ProviderVonage:   parseVonage,
	types.ProviderSES:      parseSES,
}

// SupportedProviders lists the vendors whose callbacks can be parsed.
func SupportedProviders() []types.ProviderType {
	return []types.ProviderType{
		types.ProviderSendGrid,
		types.ProviderTwilio,
		types.ProviderMailgun,
		types.ProviderVonage,
		types.ProviderSES,
	}
}

// Parse selects the parser for provider and runs it. Every error it returns
// is a validation AppError carrying one of the Msg* messages.
func Parse(provider, contentType string, body []byte) ([]StatusUpdate, error) {
	provider = strings.ToLower(strings.TrimSpace(provider))
	if provider == "" {
		return nil, types.NewAppError(types.ErrCodeValidationWebhook, MsgMissingProvider, nil)
	}
	parse, ok := parsers[types.ProviderType(provider)]
	if !ok {
		return nil, types.NewAppErrorWithDetails(types.ErrCodeValidationWebhook, MsgUnknownProvider, nil,
			map[string]any{"provider": provider})
	}
	return parse(contentType, body)
}

func invalidJSON(err error) error {
	return types.NewAppError(types.ErrCodeValidationWebhook, MsgInvalidJSONPayload, err)
}

func unrecognized(format string, args ...any) error {
	return types.NewAppError(types.ErrCodeValidationWebhook, MsgUnrecognizedEvent, fmt.Errorf(format, args...))
}

// IsRejection reports whether err is a malformed-webhook error.
func IsRejection(err error) bool {
	return types.HasCode(err, types.ErrCodeValidationWebhook)
}

var errEmptyBody = errors.New("empty body")

// --- SendGrid ---

type sendGridEvent struct {
	Event     string `json:"event"`
	MessageID string `json:"sg_message_id"`
	Timestamp int64  `json:"timestamp"`
	Reason    string `json:"reason"`
	Response  string `json:"response"`
}

var sendGridStatus = map[string]types.DeliveryStatus{
	"processed": types.DeliverySent,
	"delivered": types.DeliveryDelivered,
	"open":      types.DeliveryOpened,
	"click":     types.DeliveryClicked,
	"bounce":    types.DeliveryBounced,
	"dropped":   types.DeliveryFailed,
}

func parseSendGrid(_ string, body []byte) ([]StatusUpdate, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		if len(body) == 0 {
			err = errEmptyBody
		}
		return nil, invalidJSON(err)
	}

	updates := make([]StatusUpdate, 0, len(raw))
	for _, r := range raw {
		var ev sendGridEvent
		if err := json.Unmarshal(r, &ev); err != nil {
			continue
		}
		status, ok := sendGridStatus[ev.Event]
		if !ok || ev.MessageID == "" {
			continue
		}
		u := StatusUpdate{
			Provider:          types.ProviderSendGrid,
			ProviderMessageID: sendGridMessageID(ev.MessageID),
			Status:            status,
			Reason:            firstNonEmpty(ev.Reason, ev.Response),
			Payload:           r,
		}
		if ev.Timestamp > 0 {
			u.Timestamp = time.Unix(ev.Timestamp, 0).UTC()
		}
		updates = append(updates, u)
	}
	return updates, nil
}

// sendGridMessageID strips the routing suffix SendGrid appends to the
// X-Message-Id it returned at send time.
func sendGridMessageID(id string) string {
	base, _, _ := strings.Cut(id, ".")
	return base
}

// --- Twilio ---

type twilioEvent struct {
	MessageSid    string `json:"MessageSid"`
	MessageStatus string `json:"MessageStatus"`
	ErrorCode     string `json:"ErrorCode"`
	ErrorMessage  string `json:"ErrorMessage"`
}

var twilioStatus = map[string]types.DeliveryStatus{
	"queued":      types.DeliverySent,
	"sent":        types.DeliverySent,
	"delivered":   types.DeliveryDelivered,
	"failed":      types.DeliveryFailed,
	"undelivered": types.DeliveryFailed,
}

// parseTwilio accepts both the form-encoded callback Twilio sends by
// default and a JSON object with the same field names.
func parseTwilio(contentType string, body []byte) ([]StatusUpdate, error) {
	var ev twilioEvent
	payload := json.RawMessage(body)

	if isForm(contentType) {
		values, err := url.ParseQuery(string(body))
		if err != nil {
			return nil, unrecognized("twilio form body: %w", err)
		}
		ev = twilioEvent{
			MessageSid:    values.Get("MessageSid"),
			MessageStatus: values.Get("MessageStatus"),
			ErrorCode:     values.Get("ErrorCode"),
			ErrorMessage:  values.Get("ErrorMessage"),
		}
		flat := make(map[string]string, len(values))
		for k := range values {
			flat[k] = values.Get(k)
		}
		if payload, err = json.Marshal(flat); err != nil {
			return nil, unrecognized("twilio form body: %w", err)
		}
	} else if err := json.Unmarshal(body, &ev); err != nil {
		return nil, invalidJSON(err)
	}

	status, ok := twilioStatus[strings.ToLower(ev.MessageStatus)]
	if !ok || ev.MessageSid == "" {
		return nil, unrecognized("twilio status %q for message %q", ev.MessageStatus, ev.MessageSid)
	}
	reason := ev.ErrorMessage
	if reason == "" && ev.ErrorCode != "" {
		reason = "twilio error " + ev.ErrorCode
	}
	return []StatusUpdate{{
		Provider:          types.ProviderTwilio,
		ProviderMessageID: ev.MessageSid,
		Status:            status,
		Reason:            reason,
		Payload:           payload,
	}}, nil
}

func isForm(contentType string) bool {
	mt, _, err := mime.ParseMediaType(contentType)
	return err == nil && mt == "application/x-www-form-urlencoded"
}

// --- Mailgun ---

type mailgunEnvelope struct {
	EventData *struct {
		Event     string  `json:"event"`
		Timestamp float64 `json:"timestamp"`
		Severity  string  `json:"severity"`
		Reason    string  `json:"reason"`
		Message   struct {
			Headers struct {
				MessageID string `json:"message-id"`
			} `json:"headers"`
		} `json:"message"`
		DeliveryStatus struct {
			Description string `json:"description"`
			Message     string `json:"message"`
		} `json:"delivery-status"`
	} `json:"event-data"`
}

func parseMailgun(_ string, body []byte) ([]StatusUpdate, error) {
	var env mailgunEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, invalidJSON(err)
	}
	if env.EventData == nil {
		return nil, unrecognized("mailgun payload has no event-data")
	}
	ev := env.EventData

	var status types.DeliveryStatus
	switch ev.Event {
	case "delivered":
		status = types.DeliveryDelivered
	case "opened":
		status = types.DeliveryOpened
	case "clicked":
		status = types.DeliveryClicked
	case "failed":
		status = types.DeliveryFailed
		if ev.Severity == "permanent" {
			status = types.DeliveryBounced
		}
	default:
		return nil, unrecognized("mailgun event %q", ev.Event)
	}

	id := strings.Trim(ev.Message.Headers.MessageID, "<> ")
	if id == "" {
		return nil, unrecognized("mailgun %s event has no message-id", ev.Event)
	}
	u := StatusUpdate{
		Provider:          types.ProviderMailgun,
		ProviderMessageID: id,
		Status:            status,
		Reason:            firstNonEmpty(ev.DeliveryStatus.Description, ev.DeliveryStatus.Message, ev.Reason),
		Payload:           json.RawMessage(body),
	}
	if ev.Timestamp > 0 {
		sec, frac := math.Modf(ev.Timestamp)
		u.Timestamp = time.Unix(int64(sec), int64(frac*1e9)).UTC()
	}
	return []StatusUpdate{u}, nil
}

// --- Vonage ---

type vonageEvent struct {
	MessageID string `json:"messageId"`
	Status    string `json:"status"`
	ErrCode   string `json:"err-code"`
	Timestamp string `json:"message-timestamp"`
}

var vonageStatus = map[string]types.DeliveryStatus{
	"delivered": types.DeliveryDelivered,
	"accepted":  types.DeliverySent,
	"buffered":  types.DeliverySent,
	"failed":    types.DeliveryFailed,
	"rejected":  types.DeliveryFailed,
	"expired":   types.DeliveryFailed,
}

// vonageTimestampLayout is the layout of message-timestamp in delivery
// receipts.
const vonageTimestampLayout = "2006-01-02 15:04:05"

func parseVonage(_ string, body []byte) ([]StatusUpdate, error) {
	var ev vonageEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return nil, invalidJSON(err)
	}
	status, ok := vonageStatus[strings.ToLower(ev.Status)]
	if !ok || ev.MessageID == "" {
		return nil, unrecognized("vonage status %q for message %q", ev.Status, ev.MessageID)
	}

	u := StatusUpdate{
		Provider:          types.ProviderVonage,
		ProviderMessageID: ev.MessageID,
		Status:            status,
		Payload:           json.RawMessage(body),
	}
	if status == types.DeliveryFailed {
		u.Reason = "vonage " + strings.ToLower(ev.Status)
		if ev.ErrCode != "" && ev.ErrCode != "0" {
			u.Reason += " (err-code " + ev.ErrCode + ")"
		}
	}
	if ts, err := time.Parse(vonageTimestampLayout, ev.Timestamp); err == nil {
		u.Timestamp = ts.UTC()
	}
	return []StatusUpdate{u}, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
