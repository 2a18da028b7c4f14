// Package mail sends notification emails to users over SMTP.
package mail

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"html/template"
	"log/slog"

	"github.com/community-hub/community-hub/internal/config"
	"gopkg.in/gomail.v2"
)

// Mailer delivers application decision emails
type Mailer interface {
	SendApplicationDecision(ctx context.Context, d Decision) error
}

// Decision is the content of an application decision email
type Decision struct {
	To            string
	UserName      string
	CommunityName string
	Approved      bool
	Reason        string
}

var decisionTemplate = template.Must(template.New("decision").Parse(`<p>Hello {{.UserName}},</p>
{{if .Approved}}<p>Your application to join <b>{{.CommunityName}}</b> has been approved. Welcome!</p>
{{else}}<p>Your application to join <b>{{.CommunityName}}</b> was not accepted.</p>
{{if .Reason}}<p>Reason: {{.Reason}}</p>{{end}}{{end}}`))

func (d Decision) subject() string {
	if d.Approved {
		return fmt.Sprintf("Welcome to %s", d.CommunityName)
	}
	return fmt.Sprintf("Your application to %s", d.CommunityName)
}

func (d Decision) body() (string, error) {
	var buf bytes.Buffer
	if err := decisionTemplate.Execute(&buf, d); err != nil {
		return "", fmt.Errorf("failed to render decision email: %w", err)
	}
	return buf.String(), nil
}

type dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

// SMTPMailer sends mail through a gomail dialer
type SMTPMailer struct {
	from   string
	dialer dialer
}

// NewSMTPMailer creates a mailer for the configured SMTP server
func NewSMTPMailer(cfg config.SMTPConfig) *SMTPMailer {
	d := gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	d.TLSConfig = &tls.Config{ServerName: cfg.Host, MinVersion: tls.VersionTLS12}
	return &SMTPMailer{from: cfg.From, dialer: d}
}

func (m *SMTPMailer) SendApplicationDecision(ctx context.Context, d Decision) error {
	body, err := d.body()
	if err != nil {
		return err
	}
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", d.To)
	msg.SetHeader("Subject", d.subject())
	msg.SetBody("text/html", body)

	if err := m.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("failed to send email to %s: %w", d.To, err)
	}
	slog.DebugContext(ctx, "decision email sent", "approved", d.Approved)
	return nil
}

// NopMailer drops every message
type NopMailer struct{}

func (NopMailer) SendApplicationDecision(context.Context, Decision) error { return nil }

// New returns an SMTP mailer when notifications are enabled
func New(cfg config.NotificationsConfig) Mailer {
	if !cfg.Enabled || cfg.SMTP.Host == "" {
		return NopMailer{}
	}
	return NewSMTPMailer(cfg.SMTP)
}
