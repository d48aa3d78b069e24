package email

import (
	"context"
	"crypto/tls"
	"fmt"

	mail "github.com/go-mail/mail"

	"github.com/dropDatabas3/authemu/internal/observability/logger"
)

// SMTPSender manda los mails a un relay SMTP.
type SMTPSender struct {
	Host               string
	Port               int
	From               string
	User               string
	Pass               string
	TLSMode            string // "auto" | "starttls" | "ssl" | "none"
	InsecureSkipVerify bool

	dial func(d *mail.Dialer, m *mail.Message) error
}

// NewSMTPSender crea un sender con TLS "auto".
func NewSMTPSender(host string, port int, from, user, pass string) *SMTPSender {
	return &SMTPSender{Host: host, Port: port, From: from, User: user, Pass: pass, TLSMode: "auto"}
}

// Send arma un multipart/alternative (texto + html) y lo entrega.
func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	log := logger.From(ctx).With(
		logger.Component("email.smtp"),
		logger.String("host", s.Host),
		logger.Int("port", s.Port),
	)

	m := mail.NewMessage()
	m.SetHeader("From", s.From)
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", msg.Subject)
	if msg.TextBody != "" {
		m.SetBody("text/plain", msg.TextBody)
	}
	if msg.HTMLBody != "" {
		if msg.TextBody == "" {
			m.SetBody("text/html", msg.HTMLBody)
		} else {
			m.AddAlternative("text/html", msg.HTMLBody)
		}
	}

	d := mail.NewDialer(s.Host, s.Port, s.User, s.Pass)
	d.TLSConfig = &tls.Config{ServerName: s.Host, InsecureSkipVerify: s.InsecureSkipVerify}
	switch s.TLSMode {
	case "ssl":
		d.SSL = true
	case "none":
		d.TLSConfig = &tls.Config{InsecureSkipVerify: s.InsecureSkipVerify}
		d.StartTLSPolicy = mail.NoStartTLS
	}

	dial := s.dial
	if dial == nil {
		dial = func(d *mail.Dialer, m *mail.Message) error { return d.DialAndSend(m) }
	}
	if err := dial(d, m); err != nil {
		log.Error("smtp send failed", logger.Err(err))
		return fmt.Errorf("smtp send: %w", err)
	}
	log.Debug("email relayed")
	return nil
}
