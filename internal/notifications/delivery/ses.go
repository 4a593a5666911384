package delivery

import (
	"encoding/json"
	"strings"
	"time"

	"lawncare/internal/types"
)

// SES publishes delivery feedback through an SNS topic subscribed to the
// webhook endpoint, so the body is an SNS envelope whose Message field holds
// the SES notification as a JSON string.

type snsEnvelope struct {
	Type      string `json:"Type"`
	MessageID string `json:"MessageId"`
	TopicArn  string `json:"TopicArn"`
	Message   string `json:"Message"`
}

type sesNotification struct {
	// NotificationType is set by identity notifications, EventType by
	// configuration-set event publishing.
	NotificationType string `json:"notificationType"`
	EventType        string `json:"eventType"`

	Mail struct {
		MessageID string `json:"messageId"`
	} `json:"mail"`
	Bounce *struct {
		BounceType        string `json:"bounceType"`
		BounceSubType     string `json:"bounceSubType"`
		Timestamp         string `json:"timestamp"`
		BouncedRecipients []struct {
			Status         string `json:"status"`
			DiagnosticCode string `json:"diagnosticCode"`
		} `json:"bouncedRecipients"`
	} `json:"bounce"`
	Complaint *struct {
		ComplaintFeedbackType string `json:"complaintFeedbackType"`
		Timestamp             string `json:"timestamp"`
	} `json:"complaint"`
	Delivery *struct {
		Timestamp string `json:"timestamp"`
	} `json:"delivery"`
	Open *struct {
		Timestamp string `json:"timestamp"`
	} `json:"open"`
	Click *struct {
		Timestamp string `json:"timestamp"`
	} `json:"click"`
}

func (n sesNotification) kind() string {
	return firstNonEmpty(n.NotificationType, n.EventType)
}

// parseSES maps SES feedback onto canonical statuses. Transient bounces are
// accepted but produce no update: SES keeps retrying those itself.
func parseSES(_ string, body []byte) ([]StatusUpdate, error) {
	var env snsEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, invalidJSON(err)
	}
	if env.Type != "Notification" || env.Message == "" {
		return nil, unrecognized("sns message type %q", env.Type)
	}

	var n sesNotification
	if err := json.Unmarshal([]byte(env.Message), &n); err != nil {
		return nil, invalidJSON(err)
	}
	if n.Mail.MessageID == "" {
		return nil, unrecognized("ses %s notification has no mail.messageId", n.kind())
	}

	u := StatusUpdate{
		Provider:          types.ProviderSES,
		ProviderMessageID: n.Mail.MessageID,
		Payload:           json.RawMessage(env.Message),
	}

	var ts string
	switch n.kind() {
	case "Delivery":
		if n.Delivery != nil {
			ts = n.Delivery.Timestamp
		}
		u.Status = types.DeliveryDelivered
	case "Bounce":
		if n.Bounce == nil {
			return nil, unrecognized("ses bounce notification has no bounce details")
		}
		if n.Bounce.BounceType != "Permanent" {
			return []StatusUpdate{}, nil
		}
		ts = n.Bounce.Timestamp
		u.Status = types.DeliveryBounced
		u.Reason = n.Bounce.BounceSubType
		if len(n.Bounce.BouncedRecipients) > 0 {
			r := n.Bounce.BouncedRecipients[0]
			u.Reason = firstNonEmpty(r.DiagnosticCode, strings.TrimSpace(n.Bounce.BounceSubType+" "+r.Status))
		}
	case "Complaint":
		if n.Complaint != nil {
			ts = n.Complaint.Timestamp
			u.Reason = n.Complaint.ComplaintFeedbackType
		}
		u.Status = types.DeliveryFailed
		u.Reason = "complaint: " + firstNonEmpty(u.Reason, "unspecified")
	case "Open":
		if n.Open != nil {
			ts = n.Open.Timestamp
		}
		u.Status = types.DeliveryOpened
	case "Click":
		if n.Click != nil {
			ts = n.Click.Timestamp
		}
		u.Status = types.DeliveryClicked
	default:
		return nil, unrecognized("ses notification type %q", n.kind())
	}

	if t, err := time.Parse(time.RFC3339, ts); err == nil {
		u.Timestamp = t.UTC()
	}
	return []StatusUpdate{u}, nil
}
