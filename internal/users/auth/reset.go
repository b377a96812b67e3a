// Copyright (c) 2026 Palm. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/taibuivan/palm/internal/platform/apperr"
	"github.com/taibuivan/palm/internal/platform/ctxutil"
	"github.com/taibuivan/palm/internal/platform/mail"
	"github.com/taibuivan/palm/internal/platform/metrics"
	"github.com/taibuivan/palm/internal/platform/sec"
	"github.com/taibuivan/palm/internal/platform/validate"
)

// ResetManager owns the single-use password reset codes.
//
// Only the SHA-256 digest of a code is stored. The plaintext code exists in
// request memory and in the outgoing e-mail, nowhere else.
type ResetManager struct {
	accounts AccountRepository
	hasher   PasswordHasher
	sender   mail.Sender
	ttl      time.Duration
	now      func() time.Time
	lockout  *resetLockout
}

// resetLockout caps wrong codes per client address and overall. A completion
// names no account until its code matches, so failures cannot be charged to
// an account.
type resetLockout struct {
	counter   AttemptCounter
	perClient int64
	overall   int64
	window    time.Duration
}

// NewResetManager constructs a [ResetManager]. Codes expire after ttl.
func NewResetManager(accounts AccountRepository, hasher PasswordHasher, sender mail.Sender, ttl time.Duration) *ResetManager {
	return &ResetManager{
		accounts: accounts,
		hasher:   hasher,
		sender:   sender,
		ttl:      ttl,
		now:      time.Now,
	}
}

// WithClock replaces the time source, for tests.
func (manager *ResetManager) WithClock(now func() time.Time) *ResetManager {
	manager.now = now
	return manager
}

// WithLockout rejects completions once a client address has submitted
// perClient wrong codes, or all clients together overall wrong codes, within
// window.
func (manager *ResetManager) WithLockout(counter AttemptCounter, perClient, overall int64, window time.Duration) *ResetManager {
	manager.lockout = &resetLockout{counter: counter, perClient: perClient, overall: overall, window: window}
	return manager
}

/*
Initiate issues a reset code for the account with this email, if any.

Description: The returned acknowledgement is the same whether or not the
email is registered. A new code replaces any earlier one. A delivery failure
is logged and counted but the request still succeeds, since the code is
already stored and the user can ask again.

Returns:
  - string: The neutral acknowledgement message
  - error: ValidationError for a malformed email, Unavailable when the code cannot be stored
*/
func (manager *ResetManager) Initiate(context context.Context, email string) (string, error) {
	logger := ctxutil.GetLogger(context)
	email = strings.TrimSpace(email)

	validator := &validate.Validator{}
	validator.Required(FieldEmail, email).Email(FieldEmail, email)
	if err := validator.Err(); err != nil {
		return "", err
	}

	account, err := manager.accounts.FindByEmail(context, email)
	if errors.Is(err, ErrAccountNotFound) {
		metrics.ResetRequests.WithLabelValues("initiate", "unknown_email").Inc()
		logger.InfoContext(context, "auth_reset_unknown_email")
		return ResetAcknowledgement, nil
	}
	if err != nil {
		return "", storeError("reset_lookup", err)
	}

	code, err := sec.NewResetCode()
	if err != nil {
		return "", apperr.Internal(err)
	}

	expiresAt := manager.now().Add(manager.ttl)
	if err := manager.accounts.SetResetToken(context, account.ID, sec.HashResetCode(code), expiresAt); err != nil {
		return "", storeError("reset_store", err)
	}

	if err := manager.sender.SendResetCode(context, account.Email, account.DisplayName, code); err != nil {
		metrics.MailFailures.Inc()
		metrics.ResetRequests.WithLabelValues("initiate", "delivery_failed").Inc()
		logger.WarnContext(context, "auth_reset_delivery_failed",
			slog.String("user_id", account.ID),
			slog.Any("error", err),
		)
		return ResetAcknowledgement, nil
	}

	metrics.ResetRequests.WithLabelValues("initiate", "issued").Inc()
	logger.InfoContext(context, "auth_reset_issued",
		slog.String("user_id", account.ID),
		slog.Time("expires_at", expiresAt),
	)
	return ResetAcknowledgement, nil
}

/*
Complete consumes a reset code and sets the new password.

Description: The code is matched by digest against unexpired tokens only. The
consuming write is conditional on the token still being stored, so two
concurrent completions with the same code cannot both succeed.

Returns:
  - error: ValidationError, InvalidOrExpiredToken or Unavailable
*/
func (manager *ResetManager) Complete(context context.Context, code, newPassword string) error {
	logger := ctxutil.GetLogger(context)
	code = normalizeResetCode(code)

	validator := &validate.Validator{}
	validator.Required(FieldToken, code)
	CheckPassword(validator, FieldPassword, newPassword)
	if err := validator.Err(); err != nil {
		return err
	}

	if err := manager.lockout.check(context); err != nil {
		metrics.ResetRequests.WithLabelValues("complete", "locked_out").Inc()
		return err
	}

	now := manager.now()
	tokenHash := sec.HashResetCode(code)

	account, err := manager.accounts.FindByResetToken(context, tokenHash, now)
	if errors.Is(err, ErrNoLiveResetToken) {
		metrics.ResetRequests.WithLabelValues("complete", "invalid_token").Inc()
		manager.lockout.record(context)
		return apperr.InvalidOrExpiredToken()
	}
	if err != nil {
		return storeError("reset_find", err)
	}

	hashedPassword, err := manager.hasher.Hash(newPassword)
	if err != nil {
		return apperr.Internal(fmt.Errorf("auth_reset_hash_failed: %w", err))
	}

	err = manager.accounts.ConsumeResetToken(context, account.ID, tokenHash, hashedPassword, now)
	if errors.Is(err, ErrNoLiveResetToken) {
		metrics.ResetRequests.WithLabelValues("complete", "invalid_token").Inc()
		return apperr.InvalidOrExpiredToken()
	}
	if err != nil {
		return storeError("reset_consume", err)
	}

	metrics.ResetRequests.WithLabelValues("complete", "consumed").Inc()
	logger.InfoContext(context, "auth_reset_completed", slog.String("user_id", account.ID))
	return nil
}

// # Lockout

const overallFailuresKey = "all"

func clientFailuresKey(ip string) string {
	if ip == "" {
		ip = "unknown"
	}
	return "client:" + ip
}

// check returns RateLimited when either budget is spent. A counter outage is
// logged and the completion proceeds under the HTTP rate limiter alone.
func (lockout *resetLockout) check(context context.Context) error {
	if lockout == nil {
		return nil
	}

	budgets := []struct {
		key   string
		limit int64
	}{
		{clientFailuresKey(ctxutil.GetClientIP(context)), lockout.perClient},
		{overallFailuresKey, lockout.overall},
	}

	for _, budget := range budgets {
		failures, err := lockout.counter.Failures(context, budget.key)
		if err != nil {
			ctxutil.GetLogger(context).WarnContext(context, "auth_reset_lockout_unavailable", slog.Any("error", err))
			return nil
		}
		if failures >= budget.limit {
			ctxutil.GetLogger(context).WarnContext(context, "auth_reset_locked_out", slog.String("budget", budget.key))
			return apperr.RateLimited(int(lockout.window.Seconds()))
		}
	}
	return nil
}

// record charges one wrong code to the client and to the overall budget.
func (lockout *resetLockout) record(context context.Context) {
	if lockout == nil {
		return
	}
	for _, key := range []string{clientFailuresKey(ctxutil.GetClientIP(context)), overallFailuresKey} {
		if _, err := lockout.counter.RecordFailure(context, key, lockout.window); err != nil {
			ctxutil.GetLogger(context).WarnContext(context, "auth_reset_lockout_unavailable", slog.Any("error", err))
			return
		}
	}
}

// normalizeResetCode accepts codes typed with stray spaces or upper case.
func normalizeResetCode(code string) string {
	return strings.ToLower(strings.TrimSpace(code))
}
