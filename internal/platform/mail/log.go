// Copyright (c) 2026 Palm. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package mail

import (
	"context"
	"log/slog"
)

// LogSender stands in for SMTP in development. It records that a reset e-mail
// would have been sent; the code itself is never written to the log.
type LogSender struct {
	logger *slog.Logger
}

// NewLogSender builds a [LogSender].
func NewLogSender(logger *slog.Logger) *LogSender {
	return &LogSender{logger: logger}
}

// SendResetCode logs the recipient.
func (sender *LogSender) SendResetCode(ctx context.Context, email, displayName, code string) error {
	sender.logger.InfoContext(ctx, "mail_reset_code_suppressed",
		slog.String("recipient", email),
		slog.Int("code_length", len(code)),
	)
	return nil
}
