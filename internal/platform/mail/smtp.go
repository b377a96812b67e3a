// Copyright (c) 2026 Palm. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package mail

import (
	"context"
	"fmt"
	"time"

	gomail "github.com/wneessen/go-mail"
)

// SMTPConfig holds the relay settings.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	TokenTTL time.Duration
}

// SMTPSender delivers mail through an SMTP relay. Each send dials under the
// caller's context, so a slow relay cannot hold a request open.
type SMTPSender struct {
	client *gomail.Client
	from   string
	ttl    time.Duration
}

// NewSMTPSender builds an [SMTPSender]. Authentication is enabled only when a
// username is configured.
func NewSMTPSender(config SMTPConfig) (*SMTPSender, error) {
	options := []gomail.Option{
		gomail.WithPort(config.Port),
		gomail.WithTLSPolicy(gomail.TLSOpportunistic),
		gomail.WithTimeout(10 * time.Second),
	}
	if config.Username != "" {
		options = append(options,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(config.Username),
			gomail.WithPassword(config.Password),
		)
	}

	client, err := gomail.NewClient(config.Host, options...)
	if err != nil {
		return nil, fmt.Errorf("mail: smtp client: %w", err)
	}

	return &SMTPSender{client: client, from: config.From, ttl: config.TokenTTL}, nil
}

// SendResetCode renders and sends the reset e-mail.
func (sender *SMTPSender) SendResetCode(ctx context.Context, email, displayName, code string) error {
	message, err := RenderReset(email, displayName, code, sender.ttl)
	if err != nil {
		return err
	}

	msg, err := message.SMTP(sender.from)
	if err != nil {
		return err
	}

	if err := sender.client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("mail: smtp send: %w", err)
	}
	return nil
}

// SMTP builds the multipart/alternative message with the text body first.
func (message Message) SMTP(from string) (*gomail.Msg, error) {
	msg := gomail.NewMsg()
	if err := msg.From(from); err != nil {
		return nil, fmt.Errorf("mail: invalid sender %q: %w", from, err)
	}
	if err := msg.To(message.To); err != nil {
		return nil, fmt.Errorf("mail: invalid recipient: %w", err)
	}

	msg.Subject(message.Subject)
	msg.SetDate()
	msg.SetMessageID()
	msg.SetBodyString(gomail.TypeTextPlain, message.Text)
	msg.AddAlternativeString(gomail.TypeTextHTML, message.HTML)

	return msg, nil
}
