// Package email delivers OTP codes over SMTP.
package email

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/wneessen/go-mail"
)

// ErrNotConfigured is returned by SendOTP when host or credentials are missing.
var ErrNotConfigured = errors.New("email service not configured")

// DefaultFrom is used when Config.From is empty.
const DefaultFrom = "noreply@anomalyguard.ai"

// Config holds SMTP settings.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	// Secure selects implicit TLS. Otherwise STARTTLS is used when offered.
	Secure  bool
	From    string
	Timeout time.Duration
}

// Configured reports whether c has enough to attempt delivery.
func (c Config) Configured() bool {
	return strings.TrimSpace(c.Host) != "" && c.Username != "" && c.Password != ""
}

// SMTPSender sends OTP emails. A sender built from an incomplete Config fails every send
// with ErrNotConfigured, so login keeps working and the caller records a delivery warning.
type SMTPSender struct {
	cfg Config
}

// NewSMTPSender returns a sender for cfg.
func NewSMTPSender(cfg Config) *SMTPSender {
	if cfg.From == "" {
		cfg.From = DefaultFrom
	}
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &SMTPSender{cfg: cfg}
}

// SendOTP emails code to the recipient.
func (s *SMTPSender) SendOTP(ctx context.Context, to, name, code string, ttl time.Duration) error {
	if !s.cfg.Configured() {
		return ErrNotConfigured
	}
	msg, err := buildMessage(s.cfg.From, to, name, code, ttl)
	if err != nil {
		return err
	}

	opts := []mail.Option{
		mail.WithPort(s.cfg.Port),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(s.cfg.Username),
		mail.WithPassword(s.cfg.Password),
		mail.WithTimeout(s.cfg.Timeout),
	}
	if s.cfg.Secure {
		opts = append(opts, mail.WithSSL())
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSOpportunistic))
	}
	client, err := mail.NewClient(s.cfg.Host, opts...)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

func buildMessage(from, to, name, code string, ttl time.Duration) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if err := msg.From(from); err != nil {
		return nil, fmt.Errorf("from address: %w", err)
	}
	if err := msg.To(to); err != nil {
		return nil, fmt.Errorf("recipient address: %w", err)
	}
	minutes := ttlMinutes(ttl)
	msg.Subject(subject(minutes))
	msg.SetBodyString(mail.TypeTextPlain, textBody(name, code, minutes))
	msg.AddAlternativeString(mail.TypeTextHTML, htmlBody(name, code, minutes))
	return msg, nil
}

func ttlMinutes(ttl time.Duration) int {
	m := int(ttl / time.Minute)
	if m < 1 {
		m = 1
	}
	return m
}

func subject(minutes int) string {
	return fmt.Sprintf("Your Login OTP - valid for %d minutes", minutes)
}

func greetingName(name string) string {
	if strings.TrimSpace(name) == "" {
		return "there"
	}
	return name
}

func textBody(name, code string, minutes int) string {
	return fmt.Sprintf("Hello %s,\n\n"+
		"We detected a login attempt to your account that needs additional verification.\n\n"+
		"Your one-time code (valid for %d minutes): %s\n\n"+
		"If you did not request this, please contact support immediately.",
		greetingName(name), minutes, code)
}

func htmlBody(name, code string, minutes int) string {
	return fmt.Sprintf("<p>Hello %s,</p>"+
		"<p>We detected a login attempt to your account that needs additional verification.</p>"+
		"<p>Your one-time code (valid for %d minutes): <b>%s</b></p>"+
		"<p>If you did not request this, please contact support immediately.</p>",
		html.EscapeString(greetingName(name)), minutes, html.EscapeString(code))
}
