// Package main is the entrypoint for the Notification Worker Lambda function.
//
// The worker consumes NotificationJobs published by the API on the
// notification queue and runs the matching dispatch flow (weather
// reschedule proposal, reschedule confirmation, appointment reminder,
// invoice reminder). Each flow sends email and SMS independently according
// to the customer's preferences and records every attempt in the history log.
//
// Cold Start (main):
//  1. Load configuration (SSM-resolved outside local).
//  2. Load AWS SDK configuration.
//  3. Build the runtime: storage, provider registry, metrics, publisher.
//  4. Register handler and call lambda.Start.
//
// Per message:
//  1. Unmarshal the NotificationJob. Malformed bodies are logged and ACKed.
//  2. Run the flow through dispatch.Service.ProcessJob.
//  3. On error, re-publish the job with exponential delay until MaxRetries,
//     then drop it. Only a failed re-publish is reported as a batch item
//     failure so SQS redelivers the original.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"lawncare/internal/app"
	"lawncare/internal/config"
	"lawncare/internal/types"
)

// Retry tuning for jobs whose flow returned an error. Channel send failures
// are not errors: they are recorded as failed history entries.
const (
	maxJobRetries  = 3
	baseRetryDelay = 30 * time.Second
	maxRetryDelay  = 900 * time.Second
)

// JobProcessor runs one job. Satisfied by dispatch.Service.
type JobProcessor interface {
	ProcessJob(ctx context.Context, job types.NotificationJob) ([]types.NotificationHistory, error)
}

// JobRepublisher re-queues a job with a delay. Satisfied by
// notifications/core.JobPublisher.
type JobRepublisher interface {
	Republish(ctx context.Context, job types.NotificationJob, delay time.Duration) error
}

// Handler holds the dependencies for the notification worker.
type Handler struct {
	processor JobProcessor
	publisher JobRepublisher
	logger    types.Logger
	now       func() time.Time
}

// Handle processes an SQS event containing one or more jobs. Lambda SQS
// integration uses partial batch responses: only messages reported in
// BatchItemFailures are redelivered.
func (h *Handler) Handle(ctx context.Context, sqsEvent events.SQSEvent) (events.SQSEventResponse, error) {
	response := events.SQSEventResponse{}

	for _, record := range sqsEvent.Records {
		if err := h.processMessage(ctx, record); err != nil {
			h.logger.Error("failed to process SQS message",
				"message_id", record.MessageId,
				"error", err.Error(),
			)
			response.BatchItemFailures = append(response.BatchItemFailures,
				events.SQSBatchItemFailure{ItemIdentifier: record.MessageId},
			)
		}
	}

	return response, nil
}

func (h *Handler) processMessage(ctx context.Context, record events.SQSMessage) error {
	var job types.NotificationJob
	if err := json.Unmarshal([]byte(record.Body), &job); err != nil {
		// Permanent parse failure: ACK so it is not redelivered forever.
		h.logger.Error("failed to unmarshal notification job",
			"message_id", record.MessageId,
			"error", err.Error(),
		)
		return nil
	}

	logger := h.logger.With(
		"job_id", job.JobID,
		"kind", string(job.Kind),
		"customer_id", job.CustomerID,
		"retry_count", job.RetryCount,
	)

	if sent, ok := record.Attributes["SentTimestamp"]; ok {
		if ts, err := parseMillisTimestamp(sent); err == nil {
			logger.Info("processing notification job", "queue_lag_ms", h.now().Sub(ts).Milliseconds())
		}
	}

	entries, err := h.processor.ProcessJob(ctx, job)
	if err == nil {
		logger.Info("notification job processed", "sent", len(entries))
		return nil
	}

	if job.RetryCount >= maxJobRetries {
		logger.Error("notification job dropped after max retries", "error", err.Error())
		return nil
	}
	if isPermanent(err) {
		logger.Error("notification job rejected", "error", err.Error())
		return nil
	}

	delay := retryDelay(job.RetryCount)
	if pubErr := h.publisher.Republish(ctx, job, delay); pubErr != nil {
		return fmt.Errorf("republish job %s: %w", job.JobID, pubErr)
	}
	logger.Warn("notification job retry scheduled",
		"error", err.Error(),
		"delay_seconds", int(delay.Seconds()),
	)
	return nil
}

// isPermanent reports client-class failures (unknown kind, opt-out, missing
// template) that a retry cannot fix.
func isPermanent(err error) bool {
	var appErr *types.AppError
	return errors.As(err, &appErr) && appErr.HTTPStatus() < 500
}

// retryDelay doubles baseRetryDelay per attempt, capped at the SQS maximum.
func retryDelay(retryCount int) time.Duration {
	d := baseRetryDelay << retryCount
	if d <= 0 || d > maxRetryDelay {
		return maxRetryDelay
	}
	return d
}

// parseMillisTimestamp parses the SQS SentTimestamp attribute.
func parseMillisTimestamp(ms string) (time.Time, error) {
	millis, err := strconv.ParseInt(ms, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(millis), nil
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx := context.Background()

	var provider config.SecretProvider
	if env := os.Getenv("APP_ENV"); env != "" && env != "local" {
		provider = config.NewSSMProvider(os.Getenv("AWS_REGION"), os.Getenv("AWS_ENDPOINT_URL"))
	}
	cfg, err := config.LoadConfig(provider)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := app.NewSlog(cfg.LogLevel)
	logger.Info("Notification Worker Lambda initializing (cold start)")

	awsCfg, err := app.LoadAWSConfig(ctx, cfg.AWS)
	if err != nil {
		return err
	}

	rt, err := app.Build(ctx, cfg, logger, app.Options{AWS: &awsCfg})
	if err != nil {
		return fmt.Errorf("building runtime: %w", err)
	}
	defer rt.Close()

	if rt.Publisher == nil {
		return fmt.Errorf("SQS_NOTIFICATIONS must be set for the notification worker")
	}

	handler := &Handler{
		processor: rt.Service,
		publisher: rt.Publisher,
		logger:    app.NewLogger(logger),
		now:       time.Now,
	}

	logger.Info("Notification Worker Lambda initialized",
		"notification_queue", cfg.AWS.NotificationQueue,
		"storage", cfg.Storage.Driver,
		"metrics_enabled", cfg.AWS.EnableMetrics,
	)

	lambda.Start(handler.Handle)
	return nil
}
