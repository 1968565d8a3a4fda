// Package email sends mail over SMTP with github.com/wneessen/go-mail.
package email

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wneessen/go-mail"
	"go.uber.org/zap"
)

// Config holds SMTP settings. Port 465 implies implicit TLS; any other
// port uses mandatory STARTTLS unless Insecure is set.
type Config struct {
	Host        string
	Port        int
	Username    string
	Password    string
	FromAddress string
	FromName    string
	// Insecure allows plaintext SMTP (local relays, tests).
	Insecure bool
	Timeout  time.Duration
}

// Message is one outgoing email. At least one body is required.
type Message struct {
	To       []string
	Subject  string
	TextBody string
	HTMLBody string
}

// Mailer sends messages.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

var (
	ErrNoRecipients = errors.New("email: no recipients specified")
	ErrEmptyBody    = errors.New("email: message body is empty")
)

// Sender is the SMTP Mailer.
type Sender struct {
	cfg Config
}

// NewSender applies defaults (port 587, 30s timeout).
func NewSender(cfg Config) *Sender {
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Sender{cfg: cfg}
}

// Send delivers msg.
func (s *Sender) Send(ctx context.Context, msg Message) error {
	m, err := s.build(msg)
	if err != nil {
		return err
	}

	c, err := mail.NewClient(s.cfg.Host, s.clientOptions()...)
	if err != nil {
		return fmt.Errorf("email: failed to create client: %w", err)
	}
	if err := c.DialAndSendWithContext(ctx, m); err != nil {
		return fmt.Errorf("email: failed to send: %w", err)
	}
	return nil
}

func (s *Sender) build(msg Message) (*mail.Msg, error) {
	if len(msg.To) == 0 {
		return nil, ErrNoRecipients
	}
	if msg.TextBody == "" && msg.HTMLBody == "" {
		return nil, ErrEmptyBody
	}

	m := mail.NewMsg()
	var err error
	if s.cfg.FromName != "" {
		err = m.FromFormat(s.cfg.FromName, s.cfg.FromAddress)
	} else {
		err = m.From(s.cfg.FromAddress)
	}
	if err != nil {
		return nil, fmt.Errorf("email: invalid from address: %w", err)
	}
	if err := m.To(msg.To...); err != nil {
		return nil, fmt.Errorf("email: invalid to address: %w", err)
	}
	m.Subject(msg.Subject)

	switch {
	case msg.TextBody != "" && msg.HTMLBody != "":
		m.SetBodyString(mail.TypeTextPlain, msg.TextBody)
		m.AddAlternativeString(mail.TypeTextHTML, msg.HTMLBody)
	case msg.HTMLBody != "":
		m.SetBodyString(mail.TypeTextHTML, msg.HTMLBody)
	default:
		m.SetBodyString(mail.TypeTextPlain, msg.TextBody)
	}
	return m, nil
}

func (s *Sender) clientOptions() []mail.Option {
	opts := []mail.Option{
		mail.WithPort(s.cfg.Port),
		mail.WithTimeout(s.cfg.Timeout),
	}
	if s.cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(s.cfg.Username),
			mail.WithPassword(s.cfg.Password),
		)
	}
	switch {
	case s.cfg.Port == 465:
		opts = append(opts, mail.WithSSL())
	case s.cfg.Insecure:
		opts = append(opts, mail.WithTLSPortPolicy(mail.NoTLS))
	default:
		opts = append(opts, mail.WithTLSPortPolicy(mail.TLSMandatory))
	}
	return opts
}

// Background sends through a Mailer without blocking the caller. At most
// limit sends run at once; extra messages are dropped and logged.
type Background struct {
	mailer  Mailer
	timeout time.Duration
	slots   chan struct{}
	logger  *zap.Logger
}

// NewBackground wraps m. limit defaults to 4 and timeout to 30s.
func NewBackground(m Mailer, limit int, timeout time.Duration, logger *zap.Logger) *Background {
	if limit <= 0 {
		limit = 4
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Background{mailer: m, timeout: timeout, slots: make(chan struct{}, limit), logger: logger}
}

// Send schedules msg and returns immediately. The request context is not
// used for the send itself, so a finished request does not cancel it.
func (b *Background) Send(_ context.Context, msg Message) error {
	select {
	case b.slots <- struct{}{}:
	default:
		b.logger.Warn("email dropped; sender busy", zap.Strings("to", msg.To), zap.String("subject", msg.Subject))
		return nil
	}
	go func() {
		defer func() { <-b.slots }()
		ctx, cancel := context.WithTimeout(context.Background(), b.timeout)
		defer cancel()
		if err := b.mailer.Send(ctx, msg); err != nil {
			b.logger.Warn("email send failed", zap.Strings("to", msg.To), zap.Error(err))
		}
	}()
	return nil
}
