// Copyright (c) 2026 Palm. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package authtest

import (
	"context"
	"sync"
	"time"

	"github.com/taibuivan/palm/internal/platform/sec"
	"github.com/taibuivan/palm/internal/users/auth"
)

// # Revocations

// MemoryRevocations is an [auth.RevocationStore] without expiry.
type MemoryRevocations struct {
	mu        sync.Mutex
	tokens    map[string]time.Duration
	overrides map[string]auth.GrantOverride
	Err       error
}

// NewMemoryRevocations returns an empty store.
func NewMemoryRevocations() *MemoryRevocations {
	return &MemoryRevocations{
		tokens:    make(map[string]time.Duration),
		overrides: make(map[string]auth.GrantOverride),
	}
}

func (store *MemoryRevocations) RevokeToken(_ context.Context, tokenID string, ttl time.Duration) error {
	store.mu.Lock()
	defer store.mu.Unlock()
	if store.Err != nil {
		return store.Err
	}
	store.tokens[tokenID] = ttl
	return nil
}

func (store *MemoryRevocations) SetOverride(_ context.Context, userID string, override auth.GrantOverride, _ time.Duration) error {
	store.mu.Lock()
	defer store.mu.Unlock()
	if store.Err != nil {
		return store.Err
	}
	store.overrides[userID] = override
	return nil
}

func (store *MemoryRevocations) ClearOverride(_ context.Context, userID string) error {
	store.mu.Lock()
	defer store.mu.Unlock()
	if store.Err != nil {
		return store.Err
	}
	delete(store.overrides, userID)
	return nil
}

func (store *MemoryRevocations) Resolve(_ context.Context, claims *sec.AuthClaims) (*sec.AuthClaims, error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	if store.Err != nil {
		return claims, store.Err
	}
	if _, revoked := store.tokens[claims.ID]; revoked {
		return nil, nil
	}
	switch store.overrides[claims.UserID] {
	case auth.OverrideRevoked:
		return nil, nil
	case auth.OverrideSuspended:
		suspended := *claims
		suspended.State = sec.StateSuspended
		return &suspended, nil
	}
	return claims, nil
}

// Revoked reports whether a session ID was denylisted and for how long.
func (store *MemoryRevocations) Revoked(tokenID string) (time.Duration, bool) {
	store.mu.Lock()
	defer store.mu.Unlock()
	ttl, ok := store.tokens[tokenID]
	return ttl, ok
}

// Override returns the override recorded for an account, if any.
func (store *MemoryRevocations) Override(userID string) (auth.GrantOverride, bool) {
	store.mu.Lock()
	defer store.mu.Unlock()
	override, ok := store.overrides[userID]
	return override, ok
}

// # Attempts

// MemoryAttempts is an [auth.AttemptCounter] whose windows never close. When
// Err is set every call fails with it.
type MemoryAttempts struct {
	mu       sync.Mutex
	failures map[string]int64
	Err      error
}

// NewMemoryAttempts returns an empty counter.
func NewMemoryAttempts() *MemoryAttempts {
	return &MemoryAttempts{failures: make(map[string]int64)}
}

func (counter *MemoryAttempts) Failures(_ context.Context, key string) (int64, error) {
	counter.mu.Lock()
	defer counter.mu.Unlock()
	if counter.Err != nil {
		return 0, counter.Err
	}
	return counter.failures[key], nil
}

func (counter *MemoryAttempts) RecordFailure(_ context.Context, key string, _ time.Duration) (int64, error) {
	counter.mu.Lock()
	defer counter.mu.Unlock()
	if counter.Err != nil {
		return 0, counter.Err
	}
	counter.failures[key]++
	return counter.failures[key], nil
}

// Count returns the failures recorded for key.
func (counter *MemoryAttempts) Count(key string) int64 {
	counter.mu.Lock()
	defer counter.mu.Unlock()
	return counter.failures[key]
}

// # Mail

// Delivery is one recorded reset e-mail.
type Delivery struct {
	Email string
	Name  string
	Code  string
}

// RecordingSender is a mail.Sender that keeps every delivery in memory. When
// Err is set, the delivery is still recorded and Err returned.
type RecordingSender struct {
	mu         sync.Mutex
	deliveries []Delivery
	Err        error
}

func (sender *RecordingSender) SendResetCode(_ context.Context, email, displayName, code string) error {
	sender.mu.Lock()
	defer sender.mu.Unlock()
	sender.deliveries = append(sender.deliveries, Delivery{Email: email, Name: displayName, Code: code})
	return sender.Err
}

// Deliveries returns a copy of the recorded deliveries.
func (sender *RecordingSender) Deliveries() []Delivery {
	sender.mu.Lock()
	defer sender.mu.Unlock()
	return append([]Delivery(nil), sender.deliveries...)
}

// Last returns the most recent delivery.
func (sender *RecordingSender) Last() (Delivery, bool) {
	sender.mu.Lock()
	defer sender.mu.Unlock()
	if len(sender.deliveries) == 0 {
		return Delivery{}, false
	}
	return sender.deliveries[len(sender.deliveries)-1], true
}
