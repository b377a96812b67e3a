// Copyright (c) 2026 Palm. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package account_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/taibuivan/palm/internal/platform/apperr"
	"github.com/taibuivan/palm/internal/platform/ctxutil"
	"github.com/taibuivan/palm/internal/platform/sec"
	"github.com/taibuivan/palm/internal/users/account"
	"github.com/taibuivan/palm/internal/users/auth"
	"github.com/taibuivan/palm/internal/users/auth/authtest"
	"github.com/taibuivan/palm/pkg/pagination"
)

type fixture struct {
	repo        *authtest.MemoryRepository
	revocations *authtest.MemoryRevocations
	auth        *auth.Service
	service     *account.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	hasher, err := sec.NewHasher(bcrypt.MinCost)
	require.NoError(t, err)
	tokens, err := sec.NewTokenService("0123456789abcdef0123456789abcdef", "palm", time.Hour)
	require.NoError(t, err)

	f := &fixture{
		repo:        authtest.NewMemoryRepository(),
		revocations: authtest.NewMemoryRevocations(),
	}
	f.auth = auth.NewService(f.repo, hasher, tokens, f.revocations)
	f.service = account.NewService(f.repo, f.auth, f.revocations, time.Hour)
	return f
}

func (f *fixture) create(t *testing.T, email string, isAdmin bool) *auth.Account {
	t.Helper()
	created, err := f.service.CreateUser(context.Background(), account.CreateUserInput{
		Name:     "Palm User",
		Email:    email,
		Password: "secret1",
		IsAdmin:  isAdmin,
	})
	require.NoError(t, err)
	return created
}

/* TestGuardStatusChange verifies only the admin suspension is refused. */
func TestGuardStatusChange(t *testing.T) {
	admin := &auth.Account{Role: sec.RoleAdmin, State: sec.StateActive}
	standard := &auth.Account{Role: sec.RoleStandard, State: sec.StateActive}

	tests := []struct {
		name     string
		target   *auth.Account
		state    sec.AccountState
		wantCode string
	}{
		{"suspend standard", standard, sec.StateSuspended, ""},
		{"activate standard", standard, sec.StateActive, ""},
		{"activate admin", admin, sec.StateActive, ""},
		{"suspend admin", admin, sec.StateSuspended, apperr.CodeForbiddenOperation},
		{"unknown state", standard, sec.AccountState("banned"), apperr.CodeValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := account.GuardStatusChange(tt.target, tt.state)
			if tt.wantCode == "" {
				assert.NoError(t, err)
				return
			}
			assert.True(t, apperr.HasCode(err, tt.wantCode), "got %v", err)
		})
	}
}

/* TestUpdateStatus_SuspendThenLogin verifies a suspended account can no longer sign in and its sessions are overridden. */
func TestUpdateStatus_SuspendThenLogin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := f.create(t, "ada@palm.app", false)

	updated, err := f.service.UpdateStatus(ctx, user.ID, sec.StateSuspended)
	require.NoError(t, err)
	assert.Equal(t, sec.StateSuspended, updated.State)

	override, ok := f.revocations.Override(user.ID)
	assert.True(t, ok)
	assert.Equal(t, auth.OverrideSuspended, override)

	_, err = f.auth.Login(ctx, "ada@palm.app", "secret1")
	assert.True(t, apperr.HasCode(err, apperr.CodeAccountSuspended))

	_, err = f.service.UpdateStatus(ctx, user.ID, sec.StateActive)
	require.NoError(t, err)
	_, ok = f.revocations.Override(user.ID)
	assert.False(t, ok)

	_, err = f.auth.Login(ctx, "ada@palm.app", "secret1")
	assert.NoError(t, err)
}

/* TestUpdateStatus_AdminProtected verifies an admin cannot be suspended and stays active. */
func TestUpdateStatus_AdminProtected(t *testing.T) {
	f := newFixture(t)
	admin := f.create(t, "root@palm.app", true)

	_, err := f.service.UpdateStatus(context.Background(), admin.ID, sec.StateSuspended)
	assert.True(t, apperr.HasCode(err, apperr.CodeForbiddenOperation))

	stored, _ := f.repo.Get(admin.ID)
	assert.Equal(t, sec.StateActive, stored.State)
	_, ok := f.revocations.Override(admin.ID)
	assert.False(t, ok)
}

/* TestUpdateStatus_PromotedMidway verifies the guard re-runs on retry when the target became admin concurrently. */
func TestUpdateStatus_PromotedMidway(t *testing.T) {
	f := newFixture(t)
	user := f.create(t, "ada@palm.app", false)

	f.repo.BeforeUpdate = func(stored *auth.Account) {
		stored.Role = sec.RoleAdmin
		stored.Version++
	}

	_, err := f.service.UpdateStatus(context.Background(), user.ID, sec.StateSuspended)
	assert.True(t, apperr.HasCode(err, apperr.CodeForbiddenOperation))

	stored, _ := f.repo.Get(user.ID)
	assert.Equal(t, sec.StateActive, stored.State)
}

/* TestUpdateStatus_Errors verifies missing accounts, bad input and storage failures. */
func TestUpdateStatus_Errors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := f.create(t, "ada@palm.app", false)

	_, err := f.service.UpdateStatus(ctx, "0191b3c2-0000-7000-8000-000000000999", sec.StateSuspended)
	assert.True(t, apperr.HasCode(err, apperr.CodeNotFound))

	_, err = f.service.UpdateStatus(ctx, user.ID, "")
	require.True(t, apperr.HasCode(err, apperr.CodeValidation))
	require.Len(t, apperr.As(err).Details, 1)
	assert.Equal(t, account.FieldStatus, apperr.As(err).Details[0].Field)

	f.repo.SetDown(true)
	_, err = f.service.UpdateStatus(ctx, user.ID, sec.StateSuspended)
	assert.True(t, apperr.HasCode(err, apperr.CodeUnavailable))
}

/* TestUpdateStatus_OverrideFailure verifies a revocation outage does not undo the stored change. */
func TestUpdateStatus_OverrideFailure(t *testing.T) {
	f := newFixture(t)
	user := f.create(t, "ada@palm.app", false)
	f.revocations.Err = errors.New("redis down")

	updated, err := f.service.UpdateStatus(context.Background(), user.ID, sec.StateSuspended)
	require.NoError(t, err)
	assert.Equal(t, sec.StateSuspended, updated.State)
}

/* TestCreateUser verifies role and status mapping for admin-created accounts. */
func TestCreateUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	admin := f.create(t, "root@palm.app", true)
	assert.Equal(t, sec.RoleAdmin, admin.Role)
	assert.Equal(t, sec.StateActive, admin.State)

	suspended, err := f.service.CreateUser(ctx, account.CreateUserInput{
		Name: "Sleepy", Email: "sleepy@palm.app", Password: "secret1", Status: sec.StateSuspended,
	})
	require.NoError(t, err)
	assert.Equal(t, sec.RoleStandard, suspended.Role)
	assert.Equal(t, sec.StateSuspended, suspended.State)

	_, err = f.service.CreateUser(ctx, account.CreateUserInput{
		Name: "Other", Email: "root@palm.app", Password: "secret1",
	})
	assert.True(t, apperr.HasCode(err, apperr.CodeConflict))

	_, err = f.service.CreateUser(ctx, account.CreateUserInput{
		Name: "Bad", Email: "bad@palm.app", Password: "secret1", Status: "banned",
	})
	assert.True(t, apperr.HasCode(err, apperr.CodeValidation))

	_, err = f.service.CreateUser(ctx, account.CreateUserInput{
		Name: "Boss", Email: "boss@palm.app", Password: "secret1", Status: sec.StateSuspended, IsAdmin: true,
	})
	assert.True(t, apperr.HasCode(err, apperr.CodeForbiddenOperation))
}

/* TestProfile verifies name normalisation, deletion and the revoked override. */
func TestProfile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := f.create(t, "ada@palm.app", false)

	// "e" followed by a combining acute accent composes to one rune
	updated, err := f.service.UpdateProfile(ctx, user.ID, "  Rene\u0301e ")
	require.NoError(t, err)
	assert.Equal(t, "Ren\u00e9e", updated.DisplayName)

	_, err = f.service.UpdateProfile(ctx, user.ID, "x")
	assert.True(t, apperr.HasCode(err, apperr.CodeValidation))

	require.NoError(t, f.service.DeleteAccount(ctx, user.ID))
	override, ok := f.revocations.Override(user.ID)
	assert.True(t, ok)
	assert.Equal(t, auth.OverrideRevoked, override)

	_, err = f.service.GetProfile(ctx, user.ID)
	assert.True(t, apperr.HasCode(err, apperr.CodeNotFound))
	assert.True(t, apperr.HasCode(f.service.DeleteAccount(ctx, user.ID), apperr.CodeNotFound))
}

/* TestListUsers verifies newest-first paging and metadata. */
func TestListUsers(t *testing.T) {
	f := newFixture(t)
	for _, email := range []string{"a@palm.app", "b@palm.app", "c@palm.app"} {
		f.create(t, email, false)
		time.Sleep(2 * time.Millisecond)
	}

	page, meta, err := f.service.ListUsers(context.Background(), pagination.Params{Page: 1, Limit: 2})
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "c@palm.app", page[0].Email)
	assert.Equal(t, "b@palm.app", page[1].Email)
	assert.Equal(t, pagination.Meta{Page: 1, Limit: 2, Total: 3, TotalPages: 2}, meta)

	page, _, err = f.service.ListUsers(context.Background(), pagination.Params{Page: 2, Limit: 2})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "a@palm.app", page[0].Email)
}

/* TestUpdateStatus_RequestLogger verifies status changes are logged through the request-scoped logger. */
func TestUpdateStatus_RequestLogger(t *testing.T) {
	f := newFixture(t)
	user := f.create(t, "ada@palm.app", false)

	var buf bytes.Buffer
	requestLogger := slog.New(slog.NewJSONHandler(&buf, nil)).With(slog.String("request_id", "req-42"))
	ctx := ctxutil.WithLogger(context.Background(), requestLogger)

	_, err := f.service.UpdateStatus(ctx, user.ID, sec.StateSuspended)
	require.NoError(t, err)

	assert.Contains(t, buf.String(), `"msg":"user_status_changed"`)
	assert.Contains(t, buf.String(), `"request_id":"req-42"`)
}
