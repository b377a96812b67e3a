// Copyright (c) 2026 Palm. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package auth implements credential verification, session issuance and the
password-reset workflow.

# Architecture

  - Account: the persisted identity with its password hash and reset-token fields.
  - Service: registration, the login state machine, logout and password change.
  - ResetManager: single-use reset codes with expiry.
  - Stores: PostgreSQL for accounts, Redis for the session revocation list.

Plaintext passwords and reset codes only ever exist in request memory.
*/
package auth

import (
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"

	"github.com/taibuivan/palm/internal/platform/sec"
)

// # Domain Entities

// Account is a registered identity.
//
// # Invariants
//
//   - PasswordHash is never empty.
//   - ResetTokenHash and ResetTokenExpiresAt are both set or both nil.
//   - Version increases on every mutation and drives compare-and-set updates.
type Account struct {
	ID                  string           `json:"id"`
	Email               string           `json:"email"`
	DisplayName         string           `json:"name"`
	PasswordHash        string           `json:"-"`
	State               sec.AccountState `json:"status"`
	Role                sec.UserRole     `json:"role"`
	ResetTokenHash      *string          `json:"-"`
	ResetTokenExpiresAt *time.Time       `json:"-"`
	Version             int64            `json:"-"`
	CreatedAt           time.Time        `json:"created_at"`
	UpdatedAt           time.Time        `json:"updated_at"`
}

// IsAdmin reports whether the account holds the admin role.
func (account *Account) IsAdmin() bool {
	return account.Role.IsAdmin()
}

// IsSuspended reports whether the account is barred from signing in.
func (account *Account) IsSuspended() bool {
	return account.State != sec.StateActive
}

// Subject projects the account into the claims of a new session.
func (account *Account) Subject() sec.Subject {
	return sec.Subject{
		UserID: account.ID,
		Name:   account.DisplayName,
		Email:  account.Email,
		Role:   account.Role,
		State:  account.State,
	}
}

// # Field Identifiers

// Field names used in request schemas and validation details.
const (
	FieldName            = "name"
	FieldEmail           = "email"
	FieldPassword        = "password"
	FieldToken           = "token"
	FieldCurrentPassword = "currentPassword"
	FieldNewPassword     = "newPassword"
	FieldPath            = "path"
	FieldStatus          = "status"
	FieldRole            = "role"
)

// NormalizeDisplayName trims surrounding whitespace and composes the name to
// NFC so visually identical names compare and count the same.
func NormalizeDisplayName(name string) string {
	return norm.NFC.String(strings.TrimSpace(name))
}
