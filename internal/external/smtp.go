package external

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/smtp"
	"net/textproto"
	"strconv"
	"time"

	"github.com/google/uuid"

	"lawncare/internal/types"
)

const defaultSMTPPort = 587

// SMTPTransport hands a rendered message to a relay. Tests replace it.
type SMTPTransport func(ctx context.Context, relay SMTPRelay, from string, to []string, msg []byte) error

// SMTPRelay is the connection information for one relay.
type SMTPRelay struct {
	Host     string
	Port     int
	Username string
	Password string
	Timeout  time.Duration
}

func (r SMTPRelay) addr() string {
	return net.JoinHostPort(r.Host, strconv.Itoa(r.Port))
}

// SMTPSender delivers email through an authenticated SMTP relay.
type SMTPSender struct {
	relay     SMTPRelay
	fromAddr  string
	fromName  string
	transport SMTPTransport
	policy    RetryPolicy
	sleep     SleepFunc
	now       func() time.Time
	result    resultBuilder
	logger    *slog.Logger
}

func newSMTPSender(cfg types.ProviderConfig, deps Deps) *SMTPSender {
	port := cfg.Credentials.Port
	if port == 0 {
		port = defaultSMTPPort
	}
	transport := deps.SMTPTransport
	if transport == nil {
		transport = dialAndSend
	}
	return &SMTPSender{
		relay: SMTPRelay{
			Host:     cfg.Credentials.Host,
			Port:     port,
			Username: cfg.Credentials.Username,
			Password: cfg.Credentials.Password.Unmask(),
			Timeout:  deps.Timeout,
		},
		fromAddr:  cfg.FromEmail,
		fromName:  cfg.FromName,
		transport: transport,
		policy:    deps.Retry,
		sleep:     deps.Sleep,
		now:       deps.Now,
		result:    deps.resultBuilder(cfg.ID),
		logger:    deps.Logger.With("provider", "smtp", "provider_id", cfg.ID),
	}
}

// SendEmail renders a MIME message with a generated Message-ID and hands it
// to the relay. The Message-ID is returned as the provider message ID.
func (s *SMTPSender) SendEmail(ctx context.Context, msg EmailMessage) SendResult {
	messageID := uuid.NewString() + "@" + s.relay.Host
	raw, err := buildMIME(mimeMessage{
		From:      formatAddress(s.fromName, s.fromAddr),
		To:        formatAddress(msg.ToName, msg.To),
		Subject:   msg.Subject,
		MessageID: messageID,
		Date:      s.now(),
		Text:      msg.TextContent,
		HTML:      msg.HTMLContent,
		Files:     msg.Attachments,
	})
	if err != nil {
		return s.result.fail(fmt.Errorf("smtp: building message: %w", err))
	}

	err = retryDo(ctx, s.policy, s.sleep, func(ctx context.Context) (bool, error) {
		sendErr := s.transport(ctx, s.relay, s.fromAddr, []string{msg.To}, raw)
		return isTransientSMTPError(sendErr), sendErr
	})
	if err != nil {
		s.logger.WarnContext(ctx, "smtp send failed", "relay", s.relay.addr(), "error", err)
		return s.result.fail(fmt.Errorf("smtp: %w", err))
	}
	return s.result.ok(messageID)
}

// isTransientSMTPError treats 4xx replies and network failures as retryable.
func isTransientSMTPError(err error) bool {
	if err == nil {
		return false
	}
	var tpErr *textproto.Error
	if errors.As(err, &tpErr) {
		return tpErr.Code >= 400 && tpErr.Code < 500
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// dialAndSend is the default transport. Port 465 uses implicit TLS; other
// ports upgrade with STARTTLS when the server offers it.
func dialAndSend(ctx context.Context, relay SMTPRelay, from string, to []string, msg []byte) error {
	timeout := relay.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	dialer := &net.Dialer{Timeout: timeout}
	tlsConfig := &tls.Config{ServerName: relay.Host, MinVersion: tls.VersionTLS12}

	var conn net.Conn
	var err error
	if relay.Port == 465 {
		conn, err = (&tls.Dialer{NetDialer: dialer, Config: tlsConfig}).DialContext(ctx, "tcp", relay.addr())
	} else {
		conn, err = dialer.DialContext(ctx, "tcp", relay.addr())
	}
	if err != nil {
		return err
	}
	defer conn.Close()

	deadline := time.Now().Add(timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetDeadline(deadline); err != nil {
		return err
	}

	client, err := smtp.NewClient(conn, relay.Host)
	if err != nil {
		return err
	}
	defer client.Close()

	if relay.Port != 465 {
		if ok, _ := client.Extension("STARTTLS"); ok {
			if err := client.StartTLS(tlsConfig); err != nil {
				return err
			}
		}
	}
	if relay.Username != "" {
		if ok, _ := client.Extension("AUTH"); ok {
			if err := client.Auth(smtp.PlainAuth("", relay.Username, relay.Password, relay.Host)); err != nil {
				return err
			}
		}
	}

	if err := client.Mail(from); err != nil {
		return err
	}
	for _, rcpt := range to {
		if err := client.Rcpt(rcpt); err != nil {
			return err
		}
	}
	w, err := client.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(msg); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return client.Quit()
}

var _ EmailSender = (*SMTPSender)(nil)
