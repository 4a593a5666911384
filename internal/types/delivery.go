package types

import (
	"encoding/json"
	"time"
)

// DeliveryStatus is the canonical status a vendor webhook is mapped onto.
type DeliveryStatus string

const (
	DeliveryPending   DeliveryStatus = "pending"
	DeliverySent      DeliveryStatus = "sent"
	DeliveryDelivered DeliveryStatus = "delivered"
	DeliveryOpened    DeliveryStatus = "opened"
	DeliveryClicked   DeliveryStatus = "clicked"
	DeliveryBounced   DeliveryStatus = "bounced"
	DeliveryFailed    DeliveryStatus = "failed"
)

// DeliveryEvent is one status transition reported by a vendor.
type DeliveryEvent struct {
	Status    DeliveryStatus  `json:"status"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// DeliveryTracking follows a single dispatched message through the vendor's
// callbacks. Events are append-only and kept in arrival order.
type DeliveryTracking struct {
	ID                string            `json:"id"`
	HistoryID         string            `json:"history_id"`
	ProviderID        string            `json:"provider_id"`
	ProviderMessageID string            `json:"provider_message_id"`
	Status            DeliveryStatus    `json:"status"`
	Timestamp         time.Time         `json:"timestamp"`
	Events            DeliveryEventList `json:"events"`
	Error             string            `json:"error,omitempty"`
}
