package mail

import (
	"context"
	"fmt"
	"net/smtp"

	"github.com/jordan-wright/email"
)

type EmailSender interface {
	SendEmail(ctx context.Context, subject, html string, to []string) error
}

type SMTPSender struct {
	from string
	addr string
	auth smtp.Auth
}

// NewSMTPSender authenticates with PLAIN auth only when a username is set.
func NewSMTPSender(from, host string, port int, username, password string) *SMTPSender {
	s := &SMTPSender{
		from: from,
		addr: fmt.Sprintf("%s:%d", host, port),
	}
	if username != "" {
		s.auth = smtp.PlainAuth("", username, password, host)
	}
	return s
}

func (s *SMTPSender) SendEmail(ctx context.Context, subject, html string, to []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	e := email.NewEmail()
	e.From = s.from
	e.To = to
	e.Subject = subject
	e.HTML = []byte(html)

	if err := e.Send(s.addr, s.auth); err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	return nil
}
