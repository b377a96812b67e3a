// Copyright (c) 2026 Palm. All rights reserved.
// Author: tai.buivan.jp@gmail.com

//go:build integration

package auth_test

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/palm/internal/platform/apperr"
	"github.com/taibuivan/palm/internal/platform/migration"
	pgstore "github.com/taibuivan/palm/internal/platform/postgres"
	"github.com/taibuivan/palm/internal/platform/sec"
	"github.com/taibuivan/palm/internal/users/auth"
	"github.com/taibuivan/palm/pkg/uuid"
)

// Run with: PALM_TEST_DATABASE_URL=postgres://... go test -tags integration ./internal/users/auth/

func newPostgresRepository(t *testing.T) (*auth.PostgresAccountRepository, *pgxpool.Pool) {
	t.Helper()
	dsn := os.Getenv("PALM_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("PALM_TEST_DATABASE_URL is not set")
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	require.NoError(t, migration.RunUp(dsn, "../../../data/migrations", logger))

	pool, err := pgstore.NewPool(context.Background(), pgstore.PoolConfig{DSN: dsn, MaxConns: 10}, logger)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	_, err = pool.Exec(context.Background(), `TRUNCATE users.account`)
	require.NoError(t, err)

	return auth.NewAccountRepository(pool), pool
}

func saveAccount(t *testing.T, repo *auth.PostgresAccountRepository, email string, role sec.UserRole) *auth.Account {
	t.Helper()
	account := &auth.Account{
		ID:           uuid.New(),
		Email:        email,
		DisplayName:  "Palm User",
		PasswordHash: "$2a$04$placeholderplaceholderplaceholderplaceholderpla",
		State:        sec.StateActive,
		Role:         role,
	}
	require.NoError(t, repo.Save(context.Background(), account))
	return account
}

/* TestPostgresRepository_Save verifies the unique email index is exact and surfaces as Conflict. */
func TestPostgresRepository_Save(t *testing.T) {
	repo, _ := newPostgresRepository(t)
	ctx := context.Background()

	account := saveAccount(t, repo, "ada@palm.app", sec.RoleStandard)
	assert.Equal(t, int64(1), account.Version)

	duplicate := *account
	duplicate.ID = uuid.New()
	err := repo.Save(ctx, &duplicate)
	assert.True(t, apperr.HasCode(err, apperr.CodeConflict), "got %v", err)

	saveAccount(t, repo, "Ada@palm.app", sec.RoleStandard)

	found, err := repo.FindByEmail(ctx, "ada@palm.app")
	require.NoError(t, err)
	assert.Equal(t, account.ID, found.ID)

	_, err = repo.FindByEmail(ctx, "ADA@palm.app")
	assert.ErrorIs(t, err, auth.ErrAccountNotFound)
}

/* TestPostgresRepository_UpdateStatus verifies the statement refuses admin suspension and stale versions. */
func TestPostgresRepository_UpdateStatus(t *testing.T) {
	repo, pool := newPostgresRepository(t)
	ctx := context.Background()
	admin := saveAccount(t, repo, "root@palm.app", sec.RoleAdmin)
	user := saveAccount(t, repo, "ada@palm.app", sec.RoleStandard)

	_, err := repo.UpdateStatus(ctx, admin.ID, sec.StateSuspended, admin.Version)
	assert.ErrorIs(t, err, auth.ErrAdminProtected)

	updated, err := repo.UpdateStatus(ctx, user.ID, sec.StateSuspended, user.Version)
	require.NoError(t, err)
	assert.Equal(t, sec.StateSuspended, updated.State)
	assert.Equal(t, user.Version+1, updated.Version)

	_, err = repo.UpdateStatus(ctx, user.ID, sec.StateActive, user.Version)
	assert.ErrorIs(t, err, auth.ErrVersionConflict)

	_, err = repo.UpdateStatus(ctx, uuid.New(), sec.StateActive, 1)
	assert.ErrorIs(t, err, auth.ErrAccountNotFound)

	// the table constraint holds even for writes that bypass the repository
	_, err = pool.Exec(ctx, `UPDATE users.account SET status = 'suspended' WHERE id = $1`, admin.ID)
	assert.Error(t, err)
}

/* TestPostgresRepository_UpdatePassword verifies the versioned write clears the reset token. */
func TestPostgresRepository_UpdatePassword(t *testing.T) {
	repo, _ := newPostgresRepository(t)
	ctx := context.Background()
	user := saveAccount(t, repo, "ada@palm.app", sec.RoleStandard)

	require.NoError(t, repo.SetResetToken(ctx, user.ID, sec.HashResetCode("a1b2c3"), time.Now().Add(time.Hour)))

	// the token write bumped the version
	err := repo.UpdatePassword(ctx, user.ID, "new-hash", user.Version)
	assert.ErrorIs(t, err, auth.ErrVersionConflict)

	current, err := repo.FindByID(ctx, user.ID)
	require.NoError(t, err)
	require.NoError(t, repo.UpdatePassword(ctx, user.ID, "new-hash", current.Version))

	current, err = repo.FindByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "new-hash", current.PasswordHash)
	assert.Nil(t, current.ResetTokenHash)
	assert.Nil(t, current.ResetTokenExpiresAt)
}

/* TestPostgresRepository_ResetToken verifies lookup honours expiry and consumption succeeds exactly once. */
func TestPostgresRepository_ResetToken(t *testing.T) {
	repo, _ := newPostgresRepository(t)
	ctx := context.Background()
	user := saveAccount(t, repo, "ada@palm.app", sec.RoleStandard)

	now := time.Now().UTC().Truncate(time.Microsecond)
	tokenHash := sec.HashResetCode("a1b2c3")
	require.NoError(t, repo.SetResetToken(ctx, user.ID, tokenHash, now.Add(time.Hour)))

	found, err := repo.FindByResetToken(ctx, tokenHash, now)
	require.NoError(t, err)
	assert.Equal(t, user.ID, found.ID)

	_, err = repo.FindByResetToken(ctx, tokenHash, now.Add(time.Hour))
	assert.ErrorIs(t, err, auth.ErrNoLiveResetToken)

	err = repo.ConsumeResetToken(ctx, user.ID, sec.HashResetCode("ffffff"), "new-hash", now)
	assert.ErrorIs(t, err, auth.ErrNoLiveResetToken)

	err = repo.ConsumeResetToken(ctx, user.ID, tokenHash, "new-hash", now.Add(time.Hour))
	assert.ErrorIs(t, err, auth.ErrNoLiveResetToken)

	const racers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := repo.ConsumeResetToken(ctx, user.ID, tokenHash, "new-hash", now); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, succeeded)

	current, err := repo.FindByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "new-hash", current.PasswordHash)
	assert.Nil(t, current.ResetTokenHash)
}
