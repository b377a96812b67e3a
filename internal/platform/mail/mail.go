// Copyright (c) 2026 Palm. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package mail delivers transactional e-mail for the auth service.

The only message today is the password reset code. Delivery is best effort from
the caller's point of view: the reset workflow logs a failed send and carries on
because the code is already persisted.

Senders:

  - [ResendSender]: production delivery through the Resend HTTP API.
  - [SMTPSender]: delivery through an SMTP relay (go-mail), STARTTLS when offered.
  - [LogSender]: development fallback that records the recipient only.
*/
package mail

import (
	"bytes"
	"context"
	"fmt"
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"
	"time"
)

// Sender is the delivery contract consumed by the reset workflow.
type Sender interface {
	SendResetCode(ctx context.Context, email, displayName, code string) error
}

// Message is a rendered e-mail with text and HTML alternatives.
type Message struct {
	To      string
	Subject string
	Text    string
	HTML    string
}

// ResetSubject is the subject line of the reset e-mail.
const ResetSubject = "Reset your PALM Mobile password"

type resetData struct {
	Name string
	Code string
	TTL  string
	Year int
}

var resetText = texttemplate.Must(texttemplate.New("reset.txt").Parse(`Hello {{.Name}},

We received a request to reset your password for your PALM Mobile account. If you didn't make this request, you can safely ignore this email.

To reset your password, use the following code:

    {{.Code}}

This code will expire in {{.TTL}} for security reasons.

Thank you,
The PALM Mobile Team
`))

var resetHTML = htmltemplate.Must(htmltemplate.New("reset.html").Parse(`<div style="font-family:Arial,sans-serif;max-width:600px;margin:0 auto;background:#f9f9f9;border-radius:8px;overflow:hidden">
<div style="background:#2e8b57;padding:20px;text-align:center"><h1 style="color:#fff;margin:0;font-size:24px">PALM Mobile Password Reset</h1></div>
<div style="padding:20px;background:#fff">
<p>Hello {{.Name}},</p>
<p>We received a request to reset your password for your PALM Mobile account. If you didn't make this request, you can safely ignore this email.</p>
<p>To reset your password, use the following code:</p>
<div style="margin:24px 0;padding:12px;text-align:center;background:#f5f5f5;border:1px solid #e0e0e0;border-radius:4px"><p style="font-size:24px;font-weight:bold;margin:0;color:#2e8b57;letter-spacing:2px">{{.Code}}</p></div>
<p>This code will expire in {{.TTL}} for security reasons.</p>
<p>Thank you,<br>The PALM Mobile Team</p>
</div>
<div style="background:#f4f4f4;padding:15px;text-align:center"><p style="font-size:12px;color:#666;margin:0">&copy; {{.Year}} PALM Mobile. All rights reserved.</p></div>
</div>`))

// RenderReset builds the reset e-mail for one recipient.
func RenderReset(email, displayName, code string, ttl time.Duration) (Message, error) {
	data := resetData{
		Name: displayName,
		Code: code,
		TTL:  humanizeTTL(ttl),
		Year: time.Now().Year(),
	}

	var text, html bytes.Buffer
	if err := resetText.Execute(&text, data); err != nil {
		return Message{}, fmt.Errorf("mail: render text: %w", err)
	}
	if err := resetHTML.Execute(&html, data); err != nil {
		return Message{}, fmt.Errorf("mail: render html: %w", err)
	}

	return Message{To: email, Subject: ResetSubject, Text: text.String(), HTML: html.String()}, nil
}

func humanizeTTL(ttl time.Duration) string {
	switch {
	case ttl == time.Hour:
		return "1 hour"
	case ttl%time.Hour == 0:
		return fmt.Sprintf("%d hours", int(ttl/time.Hour))
	case ttl%time.Minute == 0:
		return fmt.Sprintf("%d minutes", int(ttl/time.Minute))
	default:
		return strings.TrimSpace(ttl.String())
	}
}
