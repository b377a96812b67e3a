// Copyright (c) 2026 Palm. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taibuivan/palm/internal/platform/dberr"
	"github.com/taibuivan/palm/internal/platform/sec"
	"github.com/taibuivan/palm/pkg/pagination"
)

// accountColumns is the projection shared by every account query.
const accountColumns = `id, email, displayname, passwordhash, status, role,
	resettokenhash, resettokenexpiresat, version, createdat, updatedat`

// # Account Repository

// PostgresAccountRepository implements [AccountRepository] on the users.account table.
type PostgresAccountRepository struct {
	pool *pgxpool.Pool
}

// NewAccountRepository creates a new PostgreSQL implementation of the AccountRepository.
func NewAccountRepository(pool *pgxpool.Pool) *PostgresAccountRepository {
	return &PostgresAccountRepository{pool: pool}
}

// scanAccount hydrates an account from a row holding accountColumns.
func scanAccount(row pgx.Row) (*Account, error) {
	account := &Account{}
	err := row.Scan(
		&account.ID,
		&account.Email,
		&account.DisplayName,
		&account.PasswordHash,
		&account.State,
		&account.Role,
		&account.ResetTokenHash,
		&account.ResetTokenExpiresAt,
		&account.Version,
		&account.CreatedAt,
		&account.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return account, nil
}

// findOne runs a single-row query and maps a missing row to notFound.
func (repository *PostgresAccountRepository) findOne(context context.Context, notFound error, query string, args ...any) (*Account, error) {
	account, err := scanAccount(repository.pool.QueryRow(context, query, args...))
	if err != nil {
		if dberr.IsNoRows(err) {
			return nil, notFound
		}
		return nil, fmt.Errorf("postgres_account_repo_query_failed: %w", err)
	}
	return account, nil
}

/*
FindByEmail retrieves an account by its exact email address.

Returns:
  - *Account: Hydrated account entity
  - error: ErrAccountNotFound or a wrapped database error
*/
func (repository *PostgresAccountRepository) FindByEmail(context context.Context, email string) (*Account, error) {
	const query = `SELECT ` + accountColumns + ` FROM users.account WHERE email = $1`
	return repository.findOne(context, ErrAccountNotFound, query, email)
}

// FindByID retrieves an account by primary key.
func (repository *PostgresAccountRepository) FindByID(context context.Context, id string) (*Account, error) {
	const query = `SELECT ` + accountColumns + ` FROM users.account WHERE id = $1`
	return repository.findOne(context, ErrAccountNotFound, query, id)
}

/*
Save inserts a new account row.

Description: Timestamps are initialised here; the unique index on email turns a
duplicate into a Conflict.

Returns:
  - error: apperr.Conflict for a taken email, apperr.Unavailable otherwise
*/
func (repository *PostgresAccountRepository) Save(context context.Context, account *Account) error {
	const query = `
		INSERT INTO users.account (
			id, email, displayname, passwordhash, status, role, version, createdat, updatedat
		) VALUES ($1, $2, $3, $4, $5, $6, 1, $7, $7)`

	now := time.Now().UTC()
	_, err := repository.pool.Exec(context, query,
		account.ID,
		account.Email,
		account.DisplayName,
		account.PasswordHash,
		account.State,
		account.Role,
		now,
	)
	if err != nil {
		return dberr.Wrap(err, "User")
	}

	account.Version = 1
	account.CreatedAt = now
	account.UpdatedAt = now
	return nil
}

/*
UpdateStatus sets the account state under a version check.

Description: The WHERE clause also refuses to suspend an admin, so the guard
holds even for callers that skipped the service-level check. When no row is
updated the account is re-read to classify the failure.

Returns:
  - *Account: The updated entity
  - error: ErrAccountNotFound, ErrAdminProtected, ErrVersionConflict or a database error
*/
func (repository *PostgresAccountRepository) UpdateStatus(context context.Context, id string, state sec.AccountState, expectedVersion int64) (*Account, error) {
	const query = `
		UPDATE users.account
		SET status = $2, version = version + 1, updatedat = now()
		WHERE id = $1
		  AND version = $3
		  AND NOT (role = 'admin' AND $2 = 'suspended')
		RETURNING ` + accountColumns

	account, err := scanAccount(repository.pool.QueryRow(context, query, id, state, expectedVersion))
	if err == nil {
		return account, nil
	}
	if !dberr.IsNoRows(err) {
		return nil, fmt.Errorf("postgres_account_repo_update_status_failed: %w", err)
	}

	current, err := repository.FindByID(context, id)
	if err != nil {
		return nil, err
	}
	if current.IsAdmin() && state == sec.StateSuspended {
		return nil, ErrAdminProtected
	}
	return nil, ErrVersionConflict
}

// UpdatePassword replaces the hash and clears the reset token in one statement.
func (repository *PostgresAccountRepository) UpdatePassword(context context.Context, id, passwordHash string, expectedVersion int64) error {
	const query = `
		UPDATE users.account
		SET passwordhash = $2,
		    resettokenhash = NULL,
		    resettokenexpiresat = NULL,
		    version = version + 1,
		    updatedat = now()
		WHERE id = $1 AND version = $3`

	tag, err := repository.pool.Exec(context, query, id, passwordHash, expectedVersion)
	if err != nil {
		return fmt.Errorf("postgres_account_repo_update_password_failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := repository.FindByID(context, id); err != nil {
			return err
		}
		return ErrVersionConflict
	}
	return nil
}

// SetResetToken stores the token hash and expiry, overwriting any earlier token.
func (repository *PostgresAccountRepository) SetResetToken(context context.Context, id, tokenHash string, expiresAt time.Time) error {
	const query = `
		UPDATE users.account
		SET resettokenhash = $2, resettokenexpiresat = $3, version = version + 1, updatedat = now()
		WHERE id = $1`

	tag, err := repository.pool.Exec(context, query, id, tokenHash, expiresAt)
	if err != nil {
		return fmt.Errorf("postgres_account_repo_set_reset_token_failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAccountNotFound
	}
	return nil
}

// FindByResetToken returns the account holding a live token with this hash.
func (repository *PostgresAccountRepository) FindByResetToken(context context.Context, tokenHash string, now time.Time) (*Account, error) {
	const query = `SELECT ` + accountColumns + `
		FROM users.account
		WHERE resettokenhash = $1 AND resettokenexpiresat > $2`
	return repository.findOne(context, ErrNoLiveResetToken, query, tokenHash, now)
}

/*
ConsumeResetToken swaps in the new password hash and clears both token fields.

Description: The token hash and expiry are re-checked in the WHERE clause, so of
two concurrent completions only one can succeed and a consumed token cannot be
replayed.

Returns:
  - error: ErrNoLiveResetToken, or a wrapped database error
*/
func (repository *PostgresAccountRepository) ConsumeResetToken(context context.Context, id, tokenHash, passwordHash string, now time.Time) error {
	const query = `
		UPDATE users.account
		SET passwordhash = $3,
		    resettokenhash = NULL,
		    resettokenexpiresat = NULL,
		    version = version + 1,
		    updatedat = now()
		WHERE id = $1
		  AND resettokenhash = $2
		  AND resettokenexpiresat > $4`

	tag, err := repository.pool.Exec(context, query, id, tokenHash, passwordHash, now)
	if err != nil {
		return fmt.Errorf("postgres_account_repo_consume_reset_token_failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNoLiveResetToken
	}
	return nil
}

// UpdateProfile changes the display name.
func (repository *PostgresAccountRepository) UpdateProfile(context context.Context, id, displayName string) (*Account, error) {
	const query = `
		UPDATE users.account
		SET displayname = $2, version = version + 1, updatedat = now()
		WHERE id = $1
		RETURNING ` + accountColumns
	return repository.findOne(context, ErrAccountNotFound, query, id, displayName)
}

// Delete removes the account row.
func (repository *PostgresAccountRepository) Delete(context context.Context, id string) error {
	tag, err := repository.pool.Exec(context, `DELETE FROM users.account WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("postgres_account_repo_delete_failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAccountNotFound
	}
	return nil
}

/*
List returns one page of accounts ordered by creation time, newest first.

Returns:
  - []*Account: The page
  - int: Total number of accounts
  - error: Wrapped database error
*/
func (repository *PostgresAccountRepository) List(context context.Context, params pagination.Params) ([]*Account, int, error) {
	const countQuery = `SELECT count(*) FROM users.account`
	const listQuery = `SELECT ` + accountColumns + `
		FROM users.account
		ORDER BY createdat DESC, id DESC
		LIMIT $1 OFFSET $2`

	var total int
	if err := repository.pool.QueryRow(context, countQuery).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("postgres_account_repo_count_failed: %w", err)
	}

	rows, err := repository.pool.Query(context, listQuery, params.Limit, params.Offset())
	if err != nil {
		return nil, 0, fmt.Errorf("postgres_account_repo_list_failed: %w", err)
	}
	defer rows.Close()

	accounts := make([]*Account, 0, params.Limit)
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("postgres_account_repo_scan_failed: %w", err)
		}
		accounts = append(accounts, account)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("postgres_account_repo_rows_failed: %w", err)
	}

	return accounts, total, nil
}
