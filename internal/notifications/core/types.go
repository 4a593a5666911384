// Package core holds the plumbing shared by the notification packages:
// delivery metrics, the SQS job publisher and PII redaction for log lines.
package core

import (
	"context"

	"lawncare/internal/types"
)

// MetricResult categorizes a dispatch outcome for metrics reporting.
type MetricResult string

const (
	MetricSuccess MetricResult = "success"
	MetricFailed  MetricResult = "failed"
	MetricSkipped MetricResult = "skipped"
)

// NotificationMetrics abstracts CloudWatch/telemetry operations for the
// notification system.
type NotificationMetrics interface {
	// RecordDispatch counts one send attempt on a channel through a provider.
	RecordDispatch(ctx context.Context, channel types.Channel, provider types.ProviderType, result MetricResult)
	// RecordWebhook counts one vendor delivery callback.
	RecordWebhook(ctx context.Context, provider types.ProviderType, status types.DeliveryStatus)
}

// NoopMetrics discards everything. It is the default when CloudWatch
// metrics are disabled.
type NoopMetrics struct{}

func (NoopMetrics) RecordDispatch(context.Context, types.Channel, types.ProviderType, MetricResult) {}
func (NoopMetrics) RecordWebhook(context.Context, types.ProviderType, types.DeliveryStatus)         {}

var _ NotificationMetrics = NoopMetrics{}
