package core

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/google/uuid"

	"lawncare/internal/types"
)

// SQSSender abstracts the SQS SendMessage operation for testability.
// Production code uses the *sqs.Client from aws-sdk-go-v2.
type SQSSender interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// maxDelay is the SQS DelaySeconds ceiling.
const maxDelay = 900 * time.Second

// JobPublisher puts NotificationJobs on the notification queue for the
// worker to dispatch.
type JobPublisher struct {
	client   SQSSender
	queueURL string
	clock    types.Clock
	logger   types.Logger
}

// NewJobPublisher creates a JobPublisher targeting queueURL.
func NewJobPublisher(client SQSSender, queueURL string, clock types.Clock, logger types.Logger) *JobPublisher {
	if clock == nil {
		clock = types.RealClock{}
	}
	return &JobPublisher{
		client:   client,
		queueURL: queueURL,
		clock:    clock,
		logger:   logger,
	}
}

// Enqueue publishes a fresh job with no delay. JobID and EnqueuedAt are
// filled in when empty.
func (p *JobPublisher) Enqueue(ctx context.Context, job types.NotificationJob) error {
	if job.JobID == "" {
		job.JobID = uuid.NewString()
	}
	if job.EnqueuedAt.IsZero() {
		job.EnqueuedAt = p.clock.Now()
	}
	return p.send(ctx, job, 0)
}

// Republish increments RetryCount before serializing so the next consumer
// sees the attempt number, then sends the job with delay clamped to
// [0, 900s].
func (p *JobPublisher) Republish(ctx context.Context, job types.NotificationJob, delay time.Duration) error {
	job.RetryCount++
	return p.send(ctx, job, delay)
}

func (p *JobPublisher) send(ctx context.Context, job types.NotificationJob, delay time.Duration) error {
	body, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("job publisher: failed to marshal job: %w", err)
	}

	delay = min(max(delay, 0), maxDelay)
	delaySec := int32(delay / time.Second)

	input := &sqs.SendMessageInput{
		QueueUrl:     aws.String(p.queueURL),
		MessageBody:  aws.String(string(body)),
		DelaySeconds: delaySec,
	}

	if _, err := p.client.SendMessage(ctx, input); err != nil {
		return types.NewAppError(types.ErrCodeUpstreamQueue,
			fmt.Sprintf("failed to send job to %s", p.queueURL), err)
	}

	p.logger.Info("notification job published",
		"job_id", job.JobID,
		"kind", string(job.Kind),
		"customer_id", job.CustomerID,
		"retry_count", job.RetryCount,
		"delay_seconds", delaySec,
	)
	return nil
}
