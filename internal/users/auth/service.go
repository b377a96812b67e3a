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
	"github.com/taibuivan/palm/internal/platform/metrics"
	"github.com/taibuivan/palm/internal/platform/sec"
	"github.com/taibuivan/palm/internal/platform/validate"
	"github.com/taibuivan/palm/pkg/uuid"
)

// # Contracts & Types

// PasswordHasher is the one-way hashing primitive.
type PasswordHasher interface {
	Hash(plaintext string) (string, error)
	Verify(plaintext, digest string) bool
	Equalize(plaintext string)
}

// SessionIssuer mints signed sessions.
type SessionIssuer interface {
	Issue(subject sec.Subject) (sec.SignedSession, error)
	TTL() time.Duration
}

// Service implements the account credential use cases.
//
// # Review Process
//
// This service is critical for security. Any change to the order of checks in
// Login must keep the suspension check after password verification.
type Service struct {
	accounts    AccountRepository
	hasher      PasswordHasher
	issuer      SessionIssuer
	revocations RevocationStore
}

// NewService constructs a new [Service] with its dependencies.
func NewService(accounts AccountRepository, hasher PasswordHasher, issuer SessionIssuer, revocations RevocationStore) *Service {
	return &Service{
		accounts:    accounts,
		hasher:      hasher,
		issuer:      issuer,
		revocations: revocations,
	}
}

// # Account Creation

// CreateInput holds the data for a new account.
type CreateInput struct {
	Name     string
	Email    string
	Password string
	State    sec.AccountState
	Role     sec.UserRole
}

/*
CreateAccount validates, hashes, and persists a new account.

Parameters:
  - context: context.Context
  - input: CreateInput

Returns:
  - *Account: Created entity
  - error: ValidationError, ForbiddenOperation (suspended admin), Conflict
    (email taken) or Unavailable
*/
func (service *Service) CreateAccount(context context.Context, input CreateInput) (*Account, error) {
	input.Email = strings.TrimSpace(input.Email)
	input.Name = NormalizeDisplayName(input.Name)

	validator := &validate.Validator{}
	validator.Required(FieldName, input.Name).
		MinLen(FieldName, input.Name, MinDisplayNameLength).
		MaxLen(FieldName, input.Name, MaxDisplayNameLength).
		Email(FieldEmail, input.Email).
		MaxLen(FieldEmail, input.Email, MaxEmailLength).
		OneOf(FieldStatus, string(input.State), string(sec.StateActive), string(sec.StateSuspended)).
		OneOf(FieldRole, string(input.Role), string(sec.RoleStandard), string(sec.RoleAdmin))
	CheckPassword(validator, FieldPassword, input.Password)
	if err := validator.Err(); err != nil {
		return nil, err
	}
	if input.Role.IsAdmin() && input.State == sec.StateSuspended {
		return nil, ErrAdminProtected
	}

	// Never store plain-text passwords
	hashedPassword, err := service.hasher.Hash(input.Password)
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("auth_service_hash_failed: %w", err))
	}

	account := &Account{
		ID:           uuid.New(),
		Email:        input.Email,
		DisplayName:  input.Name,
		PasswordHash: hashedPassword,
		State:        input.State,
		Role:         input.Role,
	}

	if err := service.accounts.Save(context, account); err != nil {
		return nil, storeError("create", err)
	}

	ctxutil.GetLogger(context).InfoContext(context, "auth_account_created",
		slog.String("user_id", account.ID),
		slog.String("role", string(account.Role)),
	)
	return account, nil
}

// Register enrolls a self-service account: active, standard role.
func (service *Service) Register(context context.Context, name, email, password string) (*Account, error) {
	return service.CreateAccount(context, CreateInput{
		Name:     name,
		Email:    email,
		Password: password,
		State:    sec.StateActive,
		Role:     sec.RoleStandard,
	})
}

// # Authentication Flow

// LoginResult is a successfully established session.
type LoginResult struct {
	Session sec.SignedSession
	Account *Account
}

/*
Login runs the credential state machine.

Description: The steps are evaluated in a fixed order.

 1. Lookup: an unknown email burns an equalizing hash and fails with InvalidCredentials.
 2. Verify: a wrong password fails with InvalidCredentials.
 3. State: a suspended account fails with AccountSuspended, only after the
    password matched, so the distinct message never reveals an unverified account.
 4. Issue: a signed, time-boxed session carrying identity, role and state.

The reason for a failure is logged and counted but never returned.

Parameters:
  - context: context.Context
  - email: string
  - password: string

Returns:
  - *LoginResult: Session and account
  - error: InvalidCredentials, AccountSuspended or Unavailable
*/
func (service *Service) Login(context context.Context, email, password string) (*LoginResult, error) {
	logger := ctxutil.GetLogger(context)

	account, err := service.accounts.FindByEmail(context, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			service.hasher.Equalize(password)
			recordLoginFailure(context, logger, reasonUnknownEmail, "")
			return nil, apperr.InvalidCredentials()
		}
		recordLoginFailure(context, logger, reasonStoreUnavailable, "")
		return nil, storeError("login_lookup", err)
	}

	if !service.hasher.Verify(password, account.PasswordHash) {
		recordLoginFailure(context, logger, reasonPasswordMismatch, account.ID)
		return nil, apperr.InvalidCredentials()
	}

	if account.IsSuspended() {
		recordLoginFailure(context, logger, reasonSuspended, account.ID)
		return nil, apperr.AccountSuspended()
	}

	session, err := service.issuer.Issue(account.Subject())
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("auth_service_issue_session_failed: %w", err))
	}

	metrics.LoginAttempts.WithLabelValues("success", "").Inc()
	logger.InfoContext(context, "auth_login_succeeded", slog.String("user_id", account.ID))

	return &LoginResult{Session: session, Account: account}, nil
}

func recordLoginFailure(context context.Context, logger *slog.Logger, reason, userID string) {
	metrics.LoginAttempts.WithLabelValues("failure", reason).Inc()
	attrs := []any{slog.String("reason", reason)}
	if userID != "" {
		attrs = append(attrs, slog.String("user_id", userID))
	}
	logger.InfoContext(context, "auth_login_failed", attrs...)
}

/*
Logout revokes the presented session until it would have expired.

Returns:
  - error: Unavailable when the denylist cannot be written
*/
func (service *Service) Logout(context context.Context, claims *sec.AuthClaims) error {
	if claims.ExpiresAt == nil {
		return nil
	}
	if err := service.revocations.RevokeToken(context, claims.ID, time.Until(claims.ExpiresAt.Time)); err != nil {
		return apperr.Unavailable(fmt.Errorf("auth_service_logout_failed: %w", err))
	}

	ctxutil.GetLogger(context).InfoContext(context, "auth_logout", slog.String("user_id", claims.UserID))
	return nil
}

// # Password Management

/*
ChangePassword replaces the password after verifying the current one.

Description: The write is a compare-and-set on the account version. When another
request changed the account in between, the account is re-read and the current
password verified again, up to [VersionRetryLimit] times. A successful change
also clears any pending reset token.

Parameters:
  - context: context.Context
  - email: string
  - currentPassword: string
  - newPassword: string

Returns:
  - error: ValidationError, InvalidCredentials, AccountSuspended, NotFound or Unavailable
*/
func (service *Service) ChangePassword(context context.Context, email, currentPassword, newPassword string) error {
	validator := &validate.Validator{}
	validator.Required(FieldCurrentPassword, currentPassword)
	CheckPassword(validator, FieldNewPassword, newPassword)
	if err := validator.Err(); err != nil {
		return err
	}

	hashedPassword, err := service.hasher.Hash(newPassword)
	if err != nil {
		return apperr.Internal(fmt.Errorf("auth_service_change_password_hash_failed: %w", err))
	}

	for attempt := 0; attempt < VersionRetryLimit; attempt++ {
		account, err := service.accounts.FindByEmail(context, strings.TrimSpace(email))
		if err != nil {
			return storeError("change_password_lookup", err)
		}

		if !service.hasher.Verify(currentPassword, account.PasswordHash) {
			wrong := apperr.InvalidCredentials()
			wrong.Message = "Current password is incorrect"
			return wrong
		}
		if account.IsSuspended() {
			return apperr.AccountSuspended()
		}

		err = service.accounts.UpdatePassword(context, account.ID, hashedPassword, account.Version)
		if errors.Is(err, ErrVersionConflict) {
			continue
		}
		if err != nil {
			return storeError("change_password_update", err)
		}

		ctxutil.GetLogger(context).InfoContext(context, "auth_password_changed", slog.String("user_id", account.ID))
		return nil
	}

	return apperr.Unavailable(fmt.Errorf("auth_service_change_password_failed: %w", ErrVersionConflict))
}

// # Helpers

// CheckPassword adds the password length rules to a validator.
func CheckPassword(validator *validate.Validator, field, password string) {
	validator.Required(field, password).
		MinLen(field, password, MinPasswordLength).
		Custom(field, len(password) > MaxPasswordLength, fmt.Sprintf("Maximum %d bytes", MaxPasswordLength))
}

// storeError keeps taxonomy errors from the store and turns anything else into
// Unavailable so a failed primary write is never reported as success.
func storeError(operation string, err error) error {
	if apperr.IsAppError(err) {
		return err
	}
	return apperr.Unavailable(fmt.Errorf("auth_service_%s_failed: %w", operation, err))
}

// errForeignAccount rejects a password change aimed at another account.
var errForeignAccount = apperr.ForbiddenOperation("Cannot change the password of another account")

// sameEmail compares exactly, like the unique index and every lookup.
func sameEmail(left, right string) bool {
	return strings.TrimSpace(left) == strings.TrimSpace(right)
}
