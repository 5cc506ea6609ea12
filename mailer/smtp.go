package mailer

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/mail"
	"net/smtp"
	"strings"
	"time"

	membership "github.com/goliatone/go-membership"
)

// Client is the subset of *smtp.Client used to send one message.
type Client interface {
	Mail(from string) error
	Rcpt(to string) error
	Data() (io.WriteCloser, error)
	Quit() error
	Close() error
}

// Dialer opens an authenticated SMTP session.
type Dialer interface {
	Connect(ctx context.Context) (Client, error)
}

// SMTPConfig describes the relay
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	StartTLS bool
	Timeout  time.Duration
}

// Transport dials the configured relay, upgrades with STARTTLS and
// authenticates with PLAIN auth.
type Transport struct {
	cfg SMTPConfig
}

// NewTransport returns a Dialer for cfg
func NewTransport(cfg SMTPConfig) *Transport {
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Transport{cfg: cfg}
}

func (t *Transport) Connect(ctx context.Context) (Client, error) {
	addr := net.JoinHostPort(t.cfg.Host, fmt.Sprint(t.cfg.Port))

	d := net.Dialer{Timeout: t.cfg.Timeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to dial SMTP server: %w", err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	client, err := smtp.NewClient(conn, t.cfg.Host)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to create SMTP client: %w", err)
	}

	if t.cfg.StartTLS {
		if ok, _ := client.Extension("STARTTLS"); !ok {
			_ = client.Close()
			return nil, errors.New("smtp server does not support STARTTLS")
		}
		tlsConfig := &tls.Config{
			ServerName: t.cfg.Host,
			MinVersion: tls.VersionTLS12,
		}
		if err := client.StartTLS(tlsConfig); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("failed to start TLS: %w", err)
		}
	}

	if t.cfg.Username != "" {
		auth := smtp.PlainAuth("", t.cfg.Username, t.cfg.Password, t.cfg.Host)
		if err := client.Auth(auth); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("smtp auth failed: %w", err)
		}
	}

	return client, nil
}

// SMTPNotifier renders notifications and sends them through a Dialer.
type SMTPNotifier struct {
	dialer    Dialer
	from      string
	templates *Templates
	logger    membership.Logger
	now       func() time.Time
}

var _ membership.Notifier = (*SMTPNotifier)(nil)

// NewSMTPNotifier returns a notifier sending as from
func NewSMTPNotifier(dialer Dialer, from string, templates *Templates) *SMTPNotifier {
	return &SMTPNotifier{
		dialer:    dialer,
		from:      from,
		templates: templates,
		logger:    nopLogger{},
		now:       time.Now,
	}
}

// WithLogger overrides the logger
func (s *SMTPNotifier) WithLogger(logger membership.Logger) *SMTPNotifier {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// WithClock overrides the clock used for the Date header
func (s *SMTPNotifier) WithClock(clock func() time.Time) *SMTPNotifier {
	if clock != nil {
		s.now = clock
	}
	return s
}

// Send implements membership.Notifier.
func (s *SMTPNotifier) Send(ctx context.Context, n membership.Notification) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	to, err := mail.ParseAddress(n.To)
	if err != nil {
		return fmt.Errorf("invalid recipient %q: %w", n.To, err)
	}

	subject, body, err := s.templates.Render(n)
	if err != nil {
		return err
	}

	msg := s.buildMessage(to.Address, n.ReplyTo, subject, body)

	client, err := s.dialer.Connect(ctx)
	if err != nil {
		s.logger.Error("failed to connect to SMTP server", "error", err)
		return err
	}
	defer client.Close()

	if err := client.Mail(s.envelopeFrom()); err != nil {
		s.logger.Error("failed to set MAIL FROM", "from", s.from, "error", err)
		return err
	}

	if err := client.Rcpt(to.Address); err != nil {
		s.logger.Error("failed to set RCPT TO", "recipient", to.Address, "error", err)
		return err
	}

	wc, err := client.Data()
	if err != nil {
		s.logger.Error("failed to get Data writer", "error", err)
		return err
	}

	if _, err := wc.Write([]byte(msg)); err != nil {
		s.logger.Error("failed to write email body", "error", err)
		return err
	}

	if err := wc.Close(); err != nil {
		s.logger.Error("failed to close Data writer", "error", err)
		return err
	}

	if err := client.Quit(); err != nil {
		s.logger.Warn("failed to quit SMTP client", "error", err)
	}

	s.logger.Info("email sent", "kind", n.Kind, "to", to.Address)
	return nil
}

func (s *SMTPNotifier) envelopeFrom() string {
	if addr, err := mail.ParseAddress(s.from); err == nil {
		return addr.Address
	}
	return s.from
}

func (s *SMTPNotifier) buildMessage(to, replyTo, subject, body string) string {
	headers := []string{
		"From: " + sanitizeHeader(s.from),
		"To: " + sanitizeHeader(to),
	}
	if replyTo != "" {
		if addr, err := mail.ParseAddress(replyTo); err == nil {
			headers = append(headers, "Reply-To: "+addr.Address)
		}
	}
	headers = append(headers,
		"Subject: "+subject,
		"Date: "+s.now().Format(time.RFC1123Z),
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=\"UTF-8\"",
		"",
		strings.ReplaceAll(strings.ReplaceAll(body, "\r\n", "\n"), "\n", "\r\n"),
	)
	return strings.Join(headers, "\r\n")
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}
