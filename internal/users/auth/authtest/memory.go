// Copyright (c) 2026 Palm. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package authtest provides in-memory doubles of the auth storage contracts.
//
// MemoryRepository applies the same conditional-write rules as the PostgreSQL
// repository, so service tests exercise version conflicts, the admin
// suspension refusal and single-use reset tokens without a database.
package authtest

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/taibuivan/palm/internal/platform/apperr"
	"github.com/taibuivan/palm/internal/platform/sec"
	"github.com/taibuivan/palm/internal/users/auth"
	"github.com/taibuivan/palm/pkg/pagination"
)

// ErrStoreDown is returned by every call while a repository is marked down.
var ErrStoreDown = errors.New("authtest: store unavailable")

// MemoryRepository is a concurrency-safe [auth.AccountRepository].
type MemoryRepository struct {
	mu       sync.Mutex
	accounts map[string]*auth.Account
	down     bool

	// BeforeUpdate runs once inside the next versioned write, before the
	// version is compared. Tests use it to simulate a concurrent writer.
	BeforeUpdate func(account *auth.Account)
}

// NewMemoryRepository returns an empty repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{accounts: make(map[string]*auth.Account)}
}

// SetDown makes every subsequent call fail with [ErrStoreDown].
func (repo *MemoryRepository) SetDown(down bool) {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	repo.down = down
}

// Get returns a copy of the stored account, for assertions.
func (repo *MemoryRepository) Get(id string) (*auth.Account, bool) {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	account, ok := repo.accounts[id]
	if !ok {
		return nil, false
	}
	return clone(account), true
}

func (repo *MemoryRepository) FindByEmail(_ context.Context, email string) (*auth.Account, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	if repo.down {
		return nil, ErrStoreDown
	}
	for _, account := range repo.accounts {
		if account.Email == email {
			return clone(account), nil
		}
	}
	return nil, auth.ErrAccountNotFound
}

func (repo *MemoryRepository) FindByID(_ context.Context, id string) (*auth.Account, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	if repo.down {
		return nil, ErrStoreDown
	}
	account, ok := repo.accounts[id]
	if !ok {
		return nil, auth.ErrAccountNotFound
	}
	return clone(account), nil
}

func (repo *MemoryRepository) Save(_ context.Context, account *auth.Account) error {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	if repo.down {
		return ErrStoreDown
	}
	for _, existing := range repo.accounts {
		if existing.Email == account.Email {
			return apperr.Conflict("User already exists")
		}
	}

	now := time.Now().UTC()
	account.Version = 1
	account.CreatedAt = now
	account.UpdatedAt = now
	repo.accounts[account.ID] = clone(account)
	return nil
}

func (repo *MemoryRepository) UpdateStatus(_ context.Context, id string, state sec.AccountState, expectedVersion int64) (*auth.Account, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	account, err := repo.versioned(id, expectedVersion)
	if err != nil {
		return nil, err
	}
	if account.IsAdmin() && state == sec.StateSuspended {
		return nil, auth.ErrAdminProtected
	}
	account.State = state
	touch(account)
	return clone(account), nil
}

func (repo *MemoryRepository) UpdatePassword(_ context.Context, id, passwordHash string, expectedVersion int64) error {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	account, err := repo.versioned(id, expectedVersion)
	if err != nil {
		return err
	}
	account.PasswordHash = passwordHash
	account.ResetTokenHash = nil
	account.ResetTokenExpiresAt = nil
	touch(account)
	return nil
}

func (repo *MemoryRepository) SetResetToken(_ context.Context, id, tokenHash string, expiresAt time.Time) error {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	if repo.down {
		return ErrStoreDown
	}
	account, ok := repo.accounts[id]
	if !ok {
		return auth.ErrAccountNotFound
	}
	account.ResetTokenHash = &tokenHash
	account.ResetTokenExpiresAt = &expiresAt
	touch(account)
	return nil
}

func (repo *MemoryRepository) FindByResetToken(_ context.Context, tokenHash string, now time.Time) (*auth.Account, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	if repo.down {
		return nil, ErrStoreDown
	}
	for _, account := range repo.accounts {
		if live(account, tokenHash, now) {
			return clone(account), nil
		}
	}
	return nil, auth.ErrNoLiveResetToken
}

func (repo *MemoryRepository) ConsumeResetToken(_ context.Context, id, tokenHash, passwordHash string, now time.Time) error {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	if repo.down {
		return ErrStoreDown
	}
	account, ok := repo.accounts[id]
	if !ok || !live(account, tokenHash, now) {
		return auth.ErrNoLiveResetToken
	}
	account.PasswordHash = passwordHash
	account.ResetTokenHash = nil
	account.ResetTokenExpiresAt = nil
	touch(account)
	return nil
}

func (repo *MemoryRepository) UpdateProfile(_ context.Context, id, displayName string) (*auth.Account, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	if repo.down {
		return nil, ErrStoreDown
	}
	account, ok := repo.accounts[id]
	if !ok {
		return nil, auth.ErrAccountNotFound
	}
	account.DisplayName = displayName
	touch(account)
	return clone(account), nil
}

func (repo *MemoryRepository) Delete(_ context.Context, id string) error {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	if repo.down {
		return ErrStoreDown
	}
	if _, ok := repo.accounts[id]; !ok {
		return auth.ErrAccountNotFound
	}
	delete(repo.accounts, id)
	return nil
}

func (repo *MemoryRepository) List(_ context.Context, params pagination.Params) ([]*auth.Account, int, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	if repo.down {
		return nil, 0, ErrStoreDown
	}

	all := make([]*auth.Account, 0, len(repo.accounts))
	for _, account := range repo.accounts {
		all = append(all, clone(account))
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].ID > all[j].ID
		}
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})

	total := len(all)
	start := min(params.Offset(), total)
	end := min(start+params.Limit, total)
	return all[start:end], total, nil
}

// versioned returns the live account for a compare-and-set write. The caller
// holds the lock.
func (repo *MemoryRepository) versioned(id string, expectedVersion int64) (*auth.Account, error) {
	if repo.down {
		return nil, ErrStoreDown
	}
	account, ok := repo.accounts[id]
	if !ok {
		return nil, auth.ErrAccountNotFound
	}
	if repo.BeforeUpdate != nil {
		hook := repo.BeforeUpdate
		repo.BeforeUpdate = nil
		hook(account)
	}
	if account.Version != expectedVersion {
		return nil, auth.ErrVersionConflict
	}
	return account, nil
}

func live(account *auth.Account, tokenHash string, now time.Time) bool {
	return account.ResetTokenHash != nil && *account.ResetTokenHash == tokenHash &&
		account.ResetTokenExpiresAt != nil && account.ResetTokenExpiresAt.After(now)
}

func touch(account *auth.Account) {
	account.Version++
	account.UpdatedAt = time.Now().UTC()
}

func clone(account *auth.Account) *auth.Account {
	copied := *account
	if account.ResetTokenHash != nil {
		hash := *account.ResetTokenHash
		copied.ResetTokenHash = &hash
	}
	if account.ResetTokenExpiresAt != nil {
		expiresAt := *account.ResetTokenExpiresAt
		copied.ResetTokenExpiresAt = &expiresAt
	}
	return &copied
}
