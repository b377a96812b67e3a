// Copyright (c) 2026 Palm. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import "time"

// # Credential Constraints

const (
	// MinPasswordLength applies to registration, password change and reset.
	MinPasswordLength = 6

	// MinDisplayNameLength and MaxDisplayNameLength bound the display name.
	MinDisplayNameLength = 2
	MaxDisplayNameLength = 50

	// MaxEmailLength matches the column width.
	MaxEmailLength = 254

	// MaxPasswordLength stays under bcrypt's 72-byte input limit.
	MaxPasswordLength = 72

	// VersionRetryLimit bounds compare-and-set retries on a contended account.
	VersionRetryLimit = 3
)

// # Reset Lockout

const (
	// ResetFailuresPerClient is how many wrong codes one client address may
	// submit per window.
	ResetFailuresPerClient = 5

	// ResetFailuresOverall caps wrong codes across every client per window,
	// bounding a guesser spread over many addresses.
	ResetFailuresOverall = 200

	// ResetFailureWindow starts at the first failure for a key.
	ResetFailureWindow = time.Hour
)

// # Messages

const (
	// ResetAcknowledgement is returned for every reset initiation, known email or not.
	ResetAcknowledgement = "If an account with this email exists, a password reset code has been sent."

	// ResetCompleted confirms a consumed reset code.
	ResetCompleted = "Password has been reset successfully"

	// PasswordChanged confirms a password change.
	PasswordChanged = "Password updated successfully"
)

// # Telemetry Reasons

// Internal login failure reasons. They label logs and metrics only and never
// reach the network caller.
const (
	reasonUnknownEmail     = "unknown_email"
	reasonPasswordMismatch = "password_mismatch"
	reasonSuspended        = "suspended"
	reasonStoreUnavailable = "store_unavailable"
)
