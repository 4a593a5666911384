package core

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"lawncare/internal/types"
)

// mockLogger captures log calls.
type mockLogger struct {
	mu     sync.Mutex
	infos  []string
	errors []string
}

func (l *mockLogger) Info(msg string, _ ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.infos = append(l.infos, msg)
}

func (l *mockLogger) Error(msg string, _ ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errors = append(l.errors, msg)
}

func (l *mockLogger) Warn(string, ...any)      {}
func (l *mockLogger) With(...any) types.Logger { return l }

// mockCloudWatchClient records PutMetricData calls for verification.
type mockCloudWatchClient struct {
	calls     []*cloudwatch.PutMetricDataInput
	returnErr error
}

func (m *mockCloudWatchClient) PutMetricData(_ context.Context, params *cloudwatch.PutMetricDataInput, _ ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error) {
	m.calls = append(m.calls, params)
	if m.returnErr != nil {
		return nil, m.returnErr
	}
	return &cloudwatch.PutMetricDataOutput{}, nil
}

func assertDimension(t *testing.T, dims []cwtypes.Dimension, name, value string) {
	t.Helper()
	for _, d := range dims {
		if *d.Name == name {
			if *d.Value != value {
				t.Errorf("dimension %s = %q, want %q", name, *d.Value, value)
			}
			return
		}
	}
	t.Errorf("dimension %s not found", name)
}

func TestCloudWatchNotificationMetrics_RecordDispatch_Success(t *testing.T) {
	cw := &mockCloudWatchClient{}
	metrics := NewCloudWatchNotificationMetrics(cw, "", &mockLogger{})

	metrics.RecordDispatch(context.Background(), types.ChannelEmail, types.ProviderSendGrid, MetricSuccess)

	if len(cw.calls) != 1 {
		t.Fatalf("expected 1 PutMetricData call, got %d", len(cw.calls))
	}
	input := cw.calls[0]
	if *input.Namespace != types.MetricNamespace {
		t.Errorf("expected namespace %q, got %q", types.MetricNamespace, *input.Namespace)
	}
	if len(input.MetricData) != 2 {
		t.Fatalf("expected 2 metric data, got %d", len(input.MetricData))
	}

	attempt := input.MetricData[0]
	if *attempt.MetricName != types.MetricDeliveryAttempt {
		t.Errorf("expected %q, got %q", types.MetricDeliveryAttempt, *attempt.MetricName)
	}
	if attempt.Unit != cwtypes.StandardUnitCount {
		t.Errorf("expected unit Count, got %s", attempt.Unit)
	}
	assertDimension(t, attempt.Dimensions, types.DimChannel, "email")
	assertDimension(t, attempt.Dimensions, types.DimResult, "success")

	outcome := input.MetricData[1]
	if *outcome.MetricName != types.MetricDeliverySuccess {
		t.Errorf("expected %q, got %q", types.MetricDeliverySuccess, *outcome.MetricName)
	}
	assertDimension(t, outcome.Dimensions, types.DimProvider, "sendgrid")
}

func TestCloudWatchNotificationMetrics_RecordDispatch_ResultMetrics(t *testing.T) {
	tests := []struct {
		result MetricResult
		want   string
	}{
		{MetricSuccess, types.MetricDeliverySuccess},
		{MetricFailed, types.MetricDeliveryFailed},
		{MetricSkipped, types.MetricDeliverySkipped},
	}
	for _, tt := range tests {
		t.Run(string(tt.result), func(t *testing.T) {
			cw := &mockCloudWatchClient{}
			metrics := NewCloudWatchNotificationMetrics(cw, "Custom", &mockLogger{})

			metrics.RecordDispatch(context.Background(), types.ChannelSMS, "", tt.result)

			if *cw.calls[0].Namespace != "Custom" {
				t.Errorf("namespace = %q", *cw.calls[0].Namespace)
			}
			datum := cw.calls[0].MetricData[1]
			if *datum.MetricName != tt.want {
				t.Errorf("metric = %q, want %q", *datum.MetricName, tt.want)
			}
			assertDimension(t, datum.Dimensions, types.DimProvider, "none")
		})
	}
}

func TestCloudWatchNotificationMetrics_RecordWebhook(t *testing.T) {
	cw := &mockCloudWatchClient{}
	metrics := NewCloudWatchNotificationMetrics(cw, "", &mockLogger{})

	metrics.RecordWebhook(context.Background(), types.ProviderTwilio, types.DeliveryDelivered)

	datum := cw.calls[0].MetricData[0]
	if *datum.MetricName != types.MetricWebhookReceived {
		t.Errorf("metric = %q", *datum.MetricName)
	}
	assertDimension(t, datum.Dimensions, types.DimProvider, "twilio")
	assertDimension(t, datum.Dimensions, types.DimResult, "delivered")
}

func TestCloudWatchNotificationMetrics_ErrorIsLogged(t *testing.T) {
	cw := &mockCloudWatchClient{returnErr: fmt.Errorf("throttled")}
	logger := &mockLogger{}
	metrics := NewCloudWatchNotificationMetrics(cw, "", logger)

	metrics.RecordDispatch(context.Background(), types.ChannelEmail, types.ProviderSES, MetricFailed)
	metrics.RecordWebhook(context.Background(), types.ProviderSendGrid, types.DeliveryBounced)

	if len(logger.errors) != 2 {
		t.Fatalf("expected 2 logged errors, got %d", len(logger.errors))
	}
}
