package types

import "time"

// NotificationJob is the SQS payload published by the API and consumed by
// the notification worker. It carries everything a dispatch helper needs so
// the worker never has to call back into the API.
type NotificationJob struct {
	JobID string           `json:"job_id"`
	Kind  NotificationKind `json:"kind"`

	CustomerID   string `json:"customer_id"`
	CustomerName string `json:"customer_name"`
	Email        string `json:"email,omitempty"`
	Phone        string `json:"phone,omitempty"`

	// Flow-specific data.
	AppointmentID string `json:"appointment_id,omitempty"`
	InvoiceID     string `json:"invoice_id,omitempty"`
	DueDate       Date   `json:"due_date,omitempty"`

	// Variables are passed to the template as-is.
	Variables map[string]string `json:"variables"`

	// RetryCount is incremented by the worker before re-publishing.
	RetryCount int       `json:"retry_count"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}
