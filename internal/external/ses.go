package external

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	sestypes "github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	"lawncare/internal/types"
)

// SESAPI is the subset of the SES v2 client used by SESSender.
type SESAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// SESAPIFactory builds an SES client for a region.
type SESAPIFactory func(ctx context.Context, region string) (SESAPI, error)

// newAWSSESAPI loads the default credential chain. The factory's own
// resilience wraps the call, so the SDK retryer is limited to one attempt.
func newAWSSESAPI(endpoint string) SESAPIFactory {
	return func(ctx context.Context, region string) (SESAPI, error) {
		cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region), awsconfig.WithRetryMaxAttempts(1))
		if err != nil {
			return nil, fmt.Errorf("loading AWS config for SES (region=%s): %w", region, err)
		}
		return sesv2.NewFromConfig(cfg, func(o *sesv2.Options) {
			if endpoint != "" {
				o.BaseEndpoint = aws.String(endpoint)
			}
		}), nil
	}
}

// SESSender delivers email through Amazon SES v2. Credentials come from the
// AWS default chain; the provider config supplies only the region.
type SESSender struct {
	api    SESAPI
	from   string
	policy RetryPolicy
	sleep  SleepFunc
	now    func() time.Time
	result resultBuilder
	logger *slog.Logger
}

func newSESSender(api SESAPI, cfg types.ProviderConfig, deps Deps) *SESSender {
	return &SESSender{
		api:    api,
		from:   formatAddress(cfg.FromName, cfg.FromEmail),
		policy: deps.Retry,
		sleep:  deps.Sleep,
		now:    deps.Now,
		result: deps.resultBuilder(cfg.ID),
		logger: deps.Logger.With("provider", "ses", "provider_id", cfg.ID),
	}
}

// SendEmail uses simple content, or a raw MIME message when attachments
// are present.
func (s *SESSender) SendEmail(ctx context.Context, msg EmailMessage) SendResult {
	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(s.from),
		Destination:      &sestypes.Destination{ToAddresses: []string{formatAddress(msg.ToName, msg.To)}},
	}

	if len(msg.Attachments) > 0 {
		raw, err := buildMIME(mimeMessage{
			From:    s.from,
			To:      formatAddress(msg.ToName, msg.To),
			Subject: msg.Subject,
			Date:    s.now(),
			Text:    msg.TextContent,
			HTML:    msg.HTMLContent,
			Files:   msg.Attachments,
		})
		if err != nil {
			return s.result.fail(fmt.Errorf("ses: building message: %w", err))
		}
		input.Content = &sestypes.EmailContent{Raw: &sestypes.RawMessage{Data: raw}}
	} else {
		body := &sestypes.Body{}
		if msg.HTMLContent != "" {
			body.Html = &sestypes.Content{Data: aws.String(msg.HTMLContent), Charset: aws.String("UTF-8")}
		}
		if msg.TextContent != "" {
			body.Text = &sestypes.Content{Data: aws.String(msg.TextContent), Charset: aws.String("UTF-8")}
		}
		input.Content = &sestypes.EmailContent{Simple: &sestypes.Message{
			Subject: &sestypes.Content{Data: aws.String(msg.Subject), Charset: aws.String("UTF-8")},
			Body:    body,
		}}
	}

	var out *sesv2.SendEmailOutput
	err := retryDo(ctx, s.policy, s.sleep, func(ctx context.Context) (bool, error) {
		var sendErr error
		out, sendErr = s.api.SendEmail(ctx, input)
		return isTransientSESError(sendErr), sendErr
	})
	if err != nil {
		s.logger.WarnContext(ctx, "ses send failed", "error", err)
		return s.result.fail(mapSESError(err))
	}
	return s.result.ok(aws.ToString(out.MessageId))
}

func isTransientSESError(err error) bool {
	if err == nil {
		return false
	}
	var tooMany *sestypes.TooManyRequestsException
	return errors.As(err, &tooMany)
}

// mapSESError translates SES errors into AppErrors.
func mapSESError(err error) error {
	var msgRejected *sestypes.MessageRejected
	if errors.As(err, &msgRejected) {
		return types.NewAppError(types.ErrCodeUpstreamProvider, fmt.Sprintf("SES rejected message: %v", err), err)
	}
	var tooMany *sestypes.TooManyRequestsException
	if errors.As(err, &tooMany) {
		return types.NewAppError(types.ErrCodeUpstreamRateLimited, fmt.Sprintf("SES rate limit exceeded: %v", err), err)
	}
	var paused *sestypes.SendingPausedException
	if errors.As(err, &paused) {
		return types.NewAppError(types.ErrCodeUpstreamUnavailable, fmt.Sprintf("SES account sending paused: %v", err), err)
	}
	return types.NewAppError(types.ErrCodeUpstreamProvider, fmt.Sprintf("SES error: %v", err), err)
}

var _ EmailSender = (*SESSender)(nil)
