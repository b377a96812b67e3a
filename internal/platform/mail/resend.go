// Copyright (c) 2026 Palm. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package mail

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/resend/resend-go/v2"
)

// ResendConfig holds the Resend API settings. BaseURL is empty in production.
type ResendConfig struct {
	APIKey   string
	From     string
	TokenTTL time.Duration
	BaseURL  string
}

// ResendSender delivers mail through the Resend HTTP API.
type ResendSender struct {
	client *resend.Client
	from   string
	ttl    time.Duration
}

// NewResendSender builds a [ResendSender].
func NewResendSender(config ResendConfig) (*ResendSender, error) {
	client := resend.NewClient(config.APIKey)

	if config.BaseURL != "" {
		baseURL, err := url.Parse(config.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("mail: resend base url: %w", err)
		}
		client.BaseURL = baseURL
	}

	return &ResendSender{client: client, from: config.From, ttl: config.TokenTTL}, nil
}

// SendResetCode renders and sends the reset e-mail.
func (sender *ResendSender) SendResetCode(ctx context.Context, email, displayName, code string) error {
	message, err := RenderReset(email, displayName, code, sender.ttl)
	if err != nil {
		return err
	}

	_, err = sender.client.Emails.SendWithContext(ctx, &resend.SendEmailRequest{
		From:    sender.from,
		To:      []string{message.To},
		Subject: message.Subject,
		Html:    message.HTML,
		Text:    message.Text,
	})
	if err != nil {
		return fmt.Errorf("mail: resend send: %w", err)
	}
	return nil
}
