package mail

import (
	"context"
	"fmt"

	gomail "github.com/wneessen/go-mail"

	"github.com/iliyamo/college-housing/internal/config"
	"github.com/iliyamo/college-housing/internal/logging"
)

// SMTPMailer sends rendered templates through an SMTP relay.
type SMTPMailer struct {
	cfg    config.MailConfig
	render *Renderer
	log    logging.Logger
}

func NewSMTPMailer(cfg config.MailConfig, log logging.Logger) (*SMTPMailer, error) {
	r, err := NewRenderer()
	if err != nil {
		return nil, err
	}
	return &SMTPMailer{cfg: cfg, render: r, log: log.With("component", "mailer")}, nil
}

func (m *SMTPMailer) client() (*gomail.Client, error) {
	opts := []gomail.Option{
		gomail.WithPort(m.cfg.Port),
		gomail.WithTimeout(m.cfg.Timeout),
		gomail.WithTLSPolicy(gomail.TLSOpportunistic),
	}
	if m.cfg.Username != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(m.cfg.Username),
			gomail.WithPassword(m.cfg.Password),
		)
	}
	return gomail.NewClient(m.cfg.Host, opts...)
}

// Send renders kind and delivers it to one recipient.
func (m *SMTPMailer) Send(ctx context.Context, kind Kind, to Recipient, data Data) error {
	if to.Email == "" {
		return fmt.Errorf("mail %s: recipient has no email", kind)
	}
	subject, body, err := m.render.Render(kind, to, data)
	if err != nil {
		return err
	}

	msg := gomail.NewMsg()
	if err := msg.FromFormat(m.cfg.FromName, m.cfg.From); err != nil {
		return fmt.Errorf("mail from: %w", err)
	}
	if to.Name != "" {
		err = msg.AddToFormat(to.Name, to.Email)
	} else {
		err = msg.To(to.Email)
	}
	if err != nil {
		return fmt.Errorf("mail to: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(gomail.TypeTextHTML, body)

	c, err := m.client()
	if err != nil {
		return fmt.Errorf("mail client: %w", err)
	}
	if err := c.DialAndSendWithContext(ctx, msg); err != nil {
		m.log.Error(ctx, "mail delivery failed", "kind", string(kind), "to", to.Email, "err", err)
		return fmt.Errorf("mail send: %w", err)
	}
	m.log.Info(ctx, "mail sent", "kind", string(kind), "to", to.Email)
	return nil
}
