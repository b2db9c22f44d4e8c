package app

import (
	"errors"
	"fmt"

	"github.com/charlesng35/rsvp/pkg/mail"
)

// SMTPSettings converts EmailConfig to the mail package representation.
func (c EmailConfig) SMTPSettings() mail.SMTPSettings {
	return mail.SMTPSettings{
		Enabled:  c.SMTP.Enabled,
		Host:     c.SMTP.Host,
		Port:     c.SMTP.Port,
		Username: c.SMTP.Username,
		Password: c.SMTP.Password,
		From:     c.SMTP.From,
		UseTLS:   c.SMTP.UseTLS,
		Timeout:  c.SMTP.Timeout,
	}
}

// NewMailer returns nil when SMTP delivery is switched off so services skip
// email entirely instead of failing every send.
func (c EmailConfig) NewMailer() (mail.Mailer, error) {
	if !c.SMTP.Enabled {
		return nil, nil
	}
	mailer, err := mail.NewSMTPMailer(c.SMTPSettings())
	if err != nil && !errors.Is(err, mail.ErrSMTPDisabled) {
		return nil, fmt.Errorf("initialise mailer: %w", err)
	}
	return mailer, nil
}
