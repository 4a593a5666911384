package core

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"lawncare/internal/types"
)

// CloudWatchClient abstracts the CloudWatch PutMetricData operation for testability.
type CloudWatchClient interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// CloudWatchNotificationMetrics publishes notification metrics to CloudWatch.
//
// Metrics emitted:
//   - DeliveryAttempt: Dims {Channel, Result} on every dispatch outcome
//   - DeliverySuccess / DeliveryFailed / DeliverySkipped: Dims {Channel, Provider}
//   - DeliveryWebhookReceived: Dims {Provider, Result}
var _ NotificationMetrics = (*CloudWatchNotificationMetrics)(nil)

type CloudWatchNotificationMetrics struct {
	client    CloudWatchClient
	namespace string
	logger    types.Logger
}

// NewCloudWatchNotificationMetrics creates metrics that publish to
// namespace, or to types.MetricNamespace when namespace is empty.
func NewCloudWatchNotificationMetrics(client CloudWatchClient, namespace string, logger types.Logger) *CloudWatchNotificationMetrics {
	if namespace == "" {
		namespace = types.MetricNamespace
	}
	return &CloudWatchNotificationMetrics{
		client:    client,
		namespace: namespace,
		logger:    logger,
	}
}

// RecordDispatch emits a DeliveryAttempt datum plus the per-result datum in
// a single PutMetricData call.
func (m *CloudWatchNotificationMetrics) RecordDispatch(ctx context.Context, channel types.Channel, provider types.ProviderType, result MetricResult) {
	providerName := string(provider)
	if providerName == "" {
		providerName = "none"
	}

	input := &cloudwatch.PutMetricDataInput{
		Namespace: aws.String(m.namespace),
		MetricData: []cwtypes.MetricDatum{
			{
				MetricName: aws.String(types.MetricDeliveryAttempt),
				Value:      aws.Float64(1),
				Unit:       cwtypes.StandardUnitCount,
				Dimensions: []cwtypes.Dimension{
					{Name: aws.String(types.DimChannel), Value: aws.String(string(channel))},
					{Name: aws.String(types.DimResult), Value: aws.String(string(result))},
				},
			},
			{
				MetricName: aws.String(resultMetric(result)),
				Value:      aws.Float64(1),
				Unit:       cwtypes.StandardUnitCount,
				Dimensions: []cwtypes.Dimension{
					{Name: aws.String(types.DimChannel), Value: aws.String(string(channel))},
					{Name: aws.String(types.DimProvider), Value: aws.String(providerName)},
				},
			},
		},
	}

	if _, err := m.client.PutMetricData(ctx, input); err != nil {
		m.logger.Error("failed to record dispatch metric",
			"error", err.Error(),
			"channel", string(channel),
			"provider", providerName,
			"result", string(result),
		)
	}
}

// RecordWebhook emits a DeliveryWebhookReceived metric.
func (m *CloudWatchNotificationMetrics) RecordWebhook(ctx context.Context, provider types.ProviderType, status types.DeliveryStatus) {
	input := &cloudwatch.PutMetricDataInput{
		Namespace: aws.String(m.namespace),
		MetricData: []cwtypes.MetricDatum{
			{
				MetricName: aws.String(types.MetricWebhookReceived),
				Value:      aws.Float64(1),
				Unit:       cwtypes.StandardUnitCount,
				Dimensions: []cwtypes.Dimension{
					{Name: aws.String(types.DimProvider), Value: aws.String(string(provider))},
					{Name: aws.String(types.DimResult), Value: aws.String(string(status))},
				},
			},
		},
	}

	if _, err := m.client.PutMetricData(ctx, input); err != nil {
		m.logger.Error("failed to record webhook metric",
			"error", err.Error(),
			"provider", string(provider),
			"status", string(status),
		)
	}
}

func resultMetric(result MetricResult) string {
	switch result {
	case MetricSuccess:
		return types.MetricDeliverySuccess
	case MetricSkipped:
		return types.MetricDeliverySkipped
	default:
		return types.MetricDeliveryFailed
	}
}
