// Copyright (c) 2026 Palm. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package account

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/taibuivan/palm/internal/platform/apperr"
	"github.com/taibuivan/palm/internal/platform/ctxutil"
	"github.com/taibuivan/palm/internal/platform/sec"
	"github.com/taibuivan/palm/internal/platform/validate"
	"github.com/taibuivan/palm/internal/users/auth"
	"github.com/taibuivan/palm/pkg/pagination"
)

// # Service Layer

// Service orchestrates profile and user management use cases.
//
// It ensures that status changes pass the escalation guard and that the
// session override follows every state change.
type Service struct {
	accounts    auth.AccountRepository
	creator     AccountCreator
	revocations auth.RevocationStore
	sessionTTL  time.Duration
}

// NewService constructs a new [Service]. sessionTTL bounds how long an
// override must outlive the sessions it shadows.
func NewService(
	accounts auth.AccountRepository,
	creator AccountCreator,
	revocations auth.RevocationStore,
	sessionTTL time.Duration,
) *Service {
	return &Service{
		accounts:    accounts,
		creator:     creator,
		revocations: revocations,
		sessionTTL:  sessionTTL,
	}
}

// # Profile Management

/*
GetProfile retrieves the stored account of a user.

Returns:
  - *auth.Account: The account, never with its password hash on the wire
  - error: NotFound or Unavailable
*/
func (service *Service) GetProfile(context context.Context, userID string) (*auth.Account, error) {
	account, err := service.accounts.FindByID(context, userID)
	if err != nil {
		return nil, storeError("get_profile", err)
	}
	return account, nil
}

/*
UpdateProfile changes the display name of a user.

Description: The name is trimmed and composed to NFC before its length is
checked, so a decomposed accent counts as one character.

Returns:
  - *auth.Account: The updated account
  - error: ValidationError, NotFound or Unavailable
*/
func (service *Service) UpdateProfile(context context.Context, userID, name string) (*auth.Account, error) {
	name = auth.NormalizeDisplayName(name)

	validator := &validate.Validator{}
	validator.Required(auth.FieldName, name).
		MinLen(auth.FieldName, name, auth.MinDisplayNameLength).
		MaxLen(auth.FieldName, name, auth.MaxDisplayNameLength)
	if err := validator.Err(); err != nil {
		return nil, err
	}

	account, err := service.accounts.UpdateProfile(context, userID, name)
	if err != nil {
		return nil, storeError("update_profile", err)
	}

	ctxutil.GetLogger(context).InfoContext(context, "user_profile_updated", slog.String("user_id", userID))
	return account, nil
}

/*
DeleteAccount removes a user account and ends its sessions.

Description: After the row is gone every outstanding session of the account is
overridden as revoked. A failed override write is logged; the sessions then
lapse at their own expiry.

Returns:
  - error: NotFound or Unavailable
*/
func (service *Service) DeleteAccount(context context.Context, userID string) error {
	if err := service.accounts.Delete(context, userID); err != nil {
		return storeError("delete", err)
	}

	if err := service.revocations.SetOverride(context, userID, auth.OverrideRevoked, service.sessionTTL); err != nil {
		ctxutil.GetLogger(context).WarnContext(context, "user_session_revoke_failed",
			slog.String("user_id", userID),
			slog.Any("error", err),
		)
	}

	ctxutil.GetLogger(context).WarnContext(context, "user_account_deleted", slog.String("user_id", userID))
	return nil
}

// # User Management

/*
ListUsers returns a page of accounts, newest first.

Returns:
  - []*auth.Account: The page
  - pagination.Meta: Page metadata
  - error: Unavailable
*/
func (service *Service) ListUsers(context context.Context, params pagination.Params) ([]*auth.Account, pagination.Meta, error) {
	accounts, total, err := service.accounts.List(context, params)
	if err != nil {
		return nil, pagination.Meta{}, storeError("list", err)
	}
	return accounts, pagination.NewMeta(params.Page, params.Limit, total), nil
}

/*
CreateUser creates an account on behalf of an admin.

Description: The status defaults to active. The role is admin only when
IsAdmin is set.

Returns:
  - *auth.Account: The created account
  - error: ValidationError, Conflict or Unavailable
*/
func (service *Service) CreateUser(context context.Context, input CreateUserInput) (*auth.Account, error) {
	status := input.Status
	if status == "" {
		status = sec.StateActive
	}

	role := sec.RoleStandard
	if input.IsAdmin {
		role = sec.RoleAdmin
	}

	account, err := service.creator.CreateAccount(context, auth.CreateInput{
		Name:     input.Name,
		Email:    input.Email,
		Password: input.Password,
		State:    status,
		Role:     role,
	})
	if err != nil {
		return nil, err
	}

	ctxutil.GetLogger(context).InfoContext(context, "user_created_by_admin",
		slog.String("user_id", account.ID),
		slog.String("role", string(role)),
	)
	return account, nil
}

/*
UpdateStatus suspends or reactivates an account.

Description: Every attempt re-reads the account and runs [GuardStatusChange]
before the versioned write, retrying up to [auth.VersionRetryLimit] times when
another request changed the account in between. On success the session
override is set for a suspension and cleared for a reactivation.

Returns:
  - *auth.Account: The updated account
  - error: ValidationError, NotFound, ForbiddenOperation or Unavailable
*/
func (service *Service) UpdateStatus(context context.Context, userID string, newState sec.AccountState) (*auth.Account, error) {
	if err := checkStatus(newState); err != nil {
		return nil, err
	}

	for attempt := 0; attempt < auth.VersionRetryLimit; attempt++ {
		target, err := service.accounts.FindByID(context, userID)
		if err != nil {
			return nil, storeError("status_lookup", err)
		}

		if err := GuardStatusChange(target, newState); err != nil {
			ctxutil.GetLogger(context).WarnContext(context, "user_status_change_refused",
				slog.String("user_id", userID),
				slog.String("status", string(newState)),
			)
			return nil, err
		}

		updated, err := service.accounts.UpdateStatus(context, userID, newState, target.Version)
		if errors.Is(err, auth.ErrVersionConflict) {
			continue
		}
		if err != nil {
			return nil, storeError("status_update", err)
		}

		service.syncOverride(context, userID, newState)
		ctxutil.GetLogger(context).InfoContext(context, "user_status_changed",
			slog.String("user_id", userID),
			slog.String("status", string(newState)),
		)
		return updated, nil
	}

	return nil, apperr.Unavailable(fmt.Errorf("account_service_status_failed: %w", auth.ErrVersionConflict))
}

// syncOverride mirrors the stored state into the session override.
func (service *Service) syncOverride(context context.Context, userID string, state sec.AccountState) {
	var err error
	if state == sec.StateSuspended {
		err = service.revocations.SetOverride(context, userID, auth.OverrideSuspended, service.sessionTTL)
	} else {
		err = service.revocations.ClearOverride(context, userID)
	}
	if err != nil {
		ctxutil.GetLogger(context).WarnContext(context, "user_session_override_failed",
			slog.String("user_id", userID),
			slog.Any("error", err),
		)
	}
}

func storeError(operation string, err error) error {
	if apperr.IsAppError(err) {
		return err
	}
	return apperr.Unavailable(fmt.Errorf("account_service_%s_failed: %w", operation, err))
}
