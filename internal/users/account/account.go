// Copyright (c) 2026 Palm. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package account handles the signed-in user's profile and the admin user
management surface.

# Architecture

  - Domain: accounts are the auth package's [auth.Account]; this package adds
    no table of its own.
  - Guard: [GuardStatusChange] runs before every status write. The repository
    statement repeats the rule, so an admin can never be suspended.
  - Revocation: suspension, reactivation and deletion update the session
    override so existing sessions follow the account on their next request.
*/
package account

import (
	"context"

	"github.com/taibuivan/palm/internal/platform/sec"
	"github.com/taibuivan/palm/internal/platform/validate"
	"github.com/taibuivan/palm/internal/users/auth"
)

// # Escalation Guard

/*
GuardStatusChange decides whether target may move to newState.

Returns:
  - error: ValidationError for an unknown state, ForbiddenOperation when an
    admin would be suspended
*/
func GuardStatusChange(target *auth.Account, newState sec.AccountState) error {
	if err := checkStatus(newState); err != nil {
		return err
	}
	if target.IsAdmin() && newState == sec.StateSuspended {
		return auth.ErrAdminProtected
	}
	return nil
}

func checkStatus(state sec.AccountState) error {
	validator := &validate.Validator{}
	validator.OneOf(FieldStatus, string(state), string(sec.StateActive), string(sec.StateSuspended))
	return validator.Err()
}

// # Contracts

// AccountCreator validates, hashes and persists new accounts.
type AccountCreator interface {
	CreateAccount(ctx context.Context, input auth.CreateInput) (*auth.Account, error)
}

// CreateUserInput is an admin-initiated account creation.
type CreateUserInput struct {
	Name     string
	Email    string
	Password string
	Status   sec.AccountState
	IsAdmin  bool
}

// Field names of the account endpoints.
const (
	FieldStatus  = "status"
	FieldIsAdmin = "isAdmin"
)
