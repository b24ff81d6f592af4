package mail

import (
	"context"
	"crypto/tls"
	"fmt"
	"html/template"
	"strings"

	gomail "github.com/go-mail/mail"
	"github.com/rs/zerolog"
)

const magicLinkSubject = "Your sign-in link"

var magicLinkHTML = template.Must(template.New("magic").Parse(
	`<p>Use the link below to sign in. It can be used once and expires shortly.</p>` +
		`<p><a href="{{.}}">Sign in</a></p>` +
		`<p>If you did not request this email you can ignore it.</p>`))

// SMTPConfig configures SMTPMailer.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	// TLSMode is "starttls" (default), "ssl" or "none".
	TLSMode string
}

// SMTPMailer delivers magic links over SMTP.
type SMTPMailer struct {
	cfg  SMTPConfig
	send func(*gomail.Message) error
	log  zerolog.Logger
}

// NewSMTPMailer returns a mailer for cfg.
func NewSMTPMailer(cfg SMTPConfig, log zerolog.Logger) *SMTPMailer {
	d := gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	d.TLSConfig = &tls.Config{ServerName: cfg.Host, MinVersion: tls.VersionTLS12}
	switch strings.ToLower(cfg.TLSMode) {
	case "ssl":
		d.SSL = true
	case "none":
		d.StartTLSPolicy = gomail.NoStartTLS
	}

	return &SMTPMailer{
		cfg:  cfg,
		send: func(msg *gomail.Message) error { return d.DialAndSend(msg) },
		log:  log.With().Str("component", "smtp_mailer").Logger(),
	}
}

func (m *SMTPMailer) SendMagicLink(ctx context.Context, to, link string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg, err := magicLinkMessage(m.cfg.From, to, link)
	if err != nil {
		return err
	}
	if err := m.send(msg); err != nil {
		m.log.Error().Err(err).Str("to", to).Msg("smtp send failed")
		return fmt.Errorf("smtp send: %w", err)
	}
	m.log.Debug().Str("to", to).Msg("magic link sent")
	return nil
}

func magicLinkMessage(from, to, link string) (*gomail.Message, error) {
	var html strings.Builder
	if err := magicLinkHTML.Execute(&html, link); err != nil {
		return nil, fmt.Errorf("render magic link: %w", err)
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", magicLinkSubject)
	msg.SetBody("text/plain", "Sign in: "+link+"\n\nIf you did not request this email you can ignore it.\n")
	msg.AddAlternative("text/html", html.String())
	return msg, nil
}

// LogMailer writes magic links to the log instead of sending them. It is
// used in development when no SMTP host is configured.
type LogMailer struct {
	log zerolog.Logger
}

func NewLogMailer(log zerolog.Logger) *LogMailer {
	return &LogMailer{log: log.With().Str("component", "log_mailer").Logger()}
}

func (m *LogMailer) SendMagicLink(_ context.Context, to, link string) error {
	m.log.Info().Str("to", to).Str("link", link).Msg("magic link (not delivered, SMTP disabled)")
	return nil
}
