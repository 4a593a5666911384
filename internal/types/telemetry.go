package types

// Telemetry metric names for CloudWatch.
// All components MUST use these constants.
const (
	// Metric Names
	MetricDeliveryAttempt    = "DeliveryAttempt"
	MetricDeliverySuccess    = "DeliverySuccess"
	MetricDeliveryFailed     = "DeliveryFailed"
	MetricDeliverySkipped    = "DeliverySkipped"
	MetricWebhookReceived    = "DeliveryWebhookReceived"
	MetricExternalAPIFailure = "ExternalAPIFailure"

	// Dimension Keys
	DimChannel  = "Channel"
	DimProvider = "Provider"
	DimKind     = "Kind"
	DimResult   = "Result"

	// Metric Namespace
	MetricNamespace = "LawnCare"
)
