// Package mailer delivers identity email over SMTP.
package mailer

import (
	"context"

	"github.com/goliatone/go-errors"
	"github.com/wneessen/go-mail"

	identity "github.com/harborauth/go-identity"
)

// Config carries the SMTP half of the runtime configuration.
type Config interface {
	GetSMTPHost() string
	GetSMTPPort() int
	GetSMTPUsername() string
	GetSMTPPassword() string
	GetMailFrom() string
}

// SMTPMailer sends HTML mail through a single SMTP account.
type SMTPMailer struct {
	client *mail.Client
	from   string
}

var _ identity.Mailer = (*SMTPMailer)(nil)

// NewSMTPMailer dials nothing up front; the client connects per send.
func NewSMTPMailer(cfg Config) (*SMTPMailer, error) {
	client, err := mail.NewClient(cfg.GetSMTPHost(),
		mail.WithPort(cfg.GetSMTPPort()),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(cfg.GetSMTPUsername()),
		mail.WithPassword(cfg.GetSMTPPassword()),
	)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryOperation, "failed to create smtp client")
	}

	return &SMTPMailer{
		client: client,
		from:   cfg.GetMailFrom(),
	}, nil
}

func (m *SMTPMailer) Send(ctx context.Context, to, subject, html string) error {
	msg := mail.NewMsg()
	if err := msg.From(m.from); err != nil {
		return errors.Wrap(err, errors.CategoryOperation, "invalid sender address")
	}
	if err := msg.To(to); err != nil {
		return errors.Wrap(err, errors.CategoryOperation, "invalid recipient address")
	}

	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextHTML, html)

	if err := m.client.DialAndSendWithContext(ctx, msg); err != nil {
		return errors.Wrap(err, errors.CategoryOperation, "smtp delivery failed")
	}
	return nil
}
