// Copyright (c) 2026 Palm. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"
	"errors"
	"time"

	"github.com/taibuivan/palm/internal/platform/apperr"
	"github.com/taibuivan/palm/internal/platform/sec"
	"github.com/taibuivan/palm/pkg/pagination"
)

// # Storage Outcomes

var (
	// ErrAccountNotFound is the distinct "no such account" outcome. It is never
	// used for transport or storage failures.
	ErrAccountNotFound = apperr.NotFound("User")

	// ErrAdminProtected is returned by any attempt to suspend an admin account.
	ErrAdminProtected = apperr.ForbiddenOperation("Cannot suspend admin users")

	// ErrVersionConflict means the account changed between read and write.
	ErrVersionConflict = errors.New("auth: account modified concurrently")

	// ErrNoLiveResetToken means no account holds an unexpired token with that hash.
	ErrNoLiveResetToken = errors.New("auth: no live reset token")
)

// # Account Data Access

// AccountRepository is the persistence contract for accounts. Every mutation is
// a single conditional statement, so concurrent writers on other replicas are
// serialized by the database rather than by in-process locks.
type AccountRepository interface {

	/*
		FindByEmail returns the account with the given email (exact match).

		Returns:
		  - *Account: Hydrated entity
		  - error: ErrAccountNotFound, or a wrapped storage failure
	*/
	FindByEmail(ctx context.Context, email string) (*Account, error)

	// FindByID returns the account with the given ID or ErrAccountNotFound.
	FindByID(ctx context.Context, id string) (*Account, error)

	/*
		Save inserts a new account.

		Returns:
		  - error: apperr Conflict when the email is taken, or a storage failure
	*/
	Save(ctx context.Context, account *Account) error

	/*
		UpdateStatus sets the account state if its version still matches.

		The statement itself refuses to suspend an admin, whatever the caller
		checked beforehand.

		Returns:
		  - *Account: The updated entity
		  - error: ErrAccountNotFound, ErrAdminProtected, ErrVersionConflict or a storage failure
	*/
	UpdateStatus(ctx context.Context, id string, state sec.AccountState, expectedVersion int64) (*Account, error)

	// UpdatePassword replaces the hash and clears any reset token in the same
	// statement, guarded by version.
	UpdatePassword(ctx context.Context, id, passwordHash string, expectedVersion int64) error

	// SetResetToken stores a token hash and its expiry, replacing any previous token.
	SetResetToken(ctx context.Context, id, tokenHash string, expiresAt time.Time) error

	// FindByResetToken returns the account holding a live token with this hash,
	// or ErrNoLiveResetToken.
	FindByResetToken(ctx context.Context, tokenHash string, now time.Time) (*Account, error)

	/*
		ConsumeResetToken sets the new password hash and clears both token fields,
		but only while the token is still stored and unexpired.

		Returns:
		  - error: ErrNoLiveResetToken when another request consumed it first or it expired
	*/
	ConsumeResetToken(ctx context.Context, id, tokenHash, passwordHash string, now time.Time) error

	// UpdateProfile changes the display name and returns the updated account.
	UpdateProfile(ctx context.Context, id, displayName string) (*Account, error)

	// Delete removes the account row or returns ErrAccountNotFound.
	Delete(ctx context.Context, id string) error

	// List returns a page of accounts, newest first, with the total count.
	List(ctx context.Context, params pagination.Params) ([]*Account, int, error)
}

// # Session Revocation

// GrantOverride replaces the state of every session an account holds.
type GrantOverride string

const (
	// OverrideSuspended makes existing sessions look suspended.
	OverrideSuspended GrantOverride = "suspended"

	// OverrideRevoked makes existing sessions look absent.
	OverrideRevoked GrantOverride = "revoked"
)

// RevocationStore is the short-lived server-side denylist that narrows the
// staleness window of stateless sessions.
type RevocationStore interface {
	// RevokeToken denylists one session until it would have expired anyway.
	RevokeToken(ctx context.Context, tokenID string, ttl time.Duration) error

	// SetOverride applies an override to every session of the account.
	SetOverride(ctx context.Context, userID string, override GrantOverride, ttl time.Duration) error

	// ClearOverride removes an override, e.g. when an account is reactivated.
	ClearOverride(ctx context.Context, userID string) error

	// Resolve returns the effective claims: nil when revoked, a suspended copy
	// when overridden, the input otherwise.
	Resolve(ctx context.Context, claims *sec.AuthClaims) (*sec.AuthClaims, error)
}

// # Attempt Tracking

// AttemptCounter counts failures per key in a fixed window that opens with the
// first failure. It backs the reset completion lockout.
type AttemptCounter interface {
	// Failures returns the failures recorded for key in the current window.
	Failures(ctx context.Context, key string) (int64, error)

	// RecordFailure adds one failure and returns the new count.
	RecordFailure(ctx context.Context, key string, window time.Duration) (int64, error)
}
