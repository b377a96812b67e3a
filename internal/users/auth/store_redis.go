// Copyright (c) 2026 Palm. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/taibuivan/palm/internal/platform/constants"
	"github.com/taibuivan/palm/internal/platform/sec"
)

// RedisRevocationList implements [RevocationStore] with expiring Redis keys.
//
// Keys never outlive the sessions they affect: a revoked jti expires with its
// token and an override expires after one full session lifetime.
type RedisRevocationList struct {
	client *redis.Client
}

// NewRevocationList creates a Redis-backed [RevocationStore].
func NewRevocationList(client *redis.Client) *RedisRevocationList {
	return &RedisRevocationList{client: client}
}

func revokedTokenKey(tokenID string) string {
	return constants.RedisPrefixRevokedToken + tokenID
}

func overrideKey(userID string) string {
	return constants.RedisPrefixGrantOverride + userID
}

/*
RevokeToken denylists one session id.

Parameters:
  - context: context.Context
  - tokenID: string (the jti claim)
  - ttl: time.Duration (remaining lifetime of the token)

Returns:
  - error: Execution errors
*/
func (list *RedisRevocationList) RevokeToken(context context.Context, tokenID string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	if err := list.client.Set(context, revokedTokenKey(tokenID), 1, ttl).Err(); err != nil {
		return fmt.Errorf("redis_revoke_token_failed: %w", err)
	}
	return nil
}

// SetOverride marks every session of the account as suspended or revoked.
func (list *RedisRevocationList) SetOverride(context context.Context, userID string, override GrantOverride, ttl time.Duration) error {
	if err := list.client.Set(context, overrideKey(userID), string(override), ttl).Err(); err != nil {
		return fmt.Errorf("redis_set_override_failed: %w", err)
	}
	return nil
}

// ClearOverride drops the override for an account.
func (list *RedisRevocationList) ClearOverride(context context.Context, userID string) error {
	if err := list.client.Del(context, overrideKey(userID)).Err(); err != nil {
		return fmt.Errorf("redis_clear_override_failed: %w", err)
	}
	return nil
}

/*
Resolve applies the denylist to verified claims.

Description: Both keys are read in one round trip. A revoked jti or a revoked
account yields nil claims; a suspension override yields a copy whose state is
suspended. The input claims are never mutated.

Returns:
  - *sec.AuthClaims: Effective claims, or nil when the session is revoked
  - error: Connectivity errors
*/
func (list *RedisRevocationList) Resolve(context context.Context, claims *sec.AuthClaims) (*sec.AuthClaims, error) {
	values, err := list.client.MGet(context, revokedTokenKey(claims.ID), overrideKey(claims.UserID)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("redis_resolve_claims_failed: %w", err)
	}

	if len(values) > 0 && values[0] != nil {
		return nil, nil
	}

	var override GrantOverride
	if len(values) > 1 && values[1] != nil {
		if raw, ok := values[1].(string); ok {
			override = GrantOverride(raw)
		}
	}

	switch override {
	case OverrideRevoked:
		return nil, nil
	case OverrideSuspended:
		effective := *claims
		effective.State = sec.StateSuspended
		return &effective, nil
	default:
		return claims, nil
	}
}

// # Attempt Counter

// incrementWithWindow bumps a counter and starts its window on the first hit,
// in one atomic step.
var incrementWithWindow = redis.NewScript(`
local count = redis.call("INCR", KEYS[1])
if count == 1 then
	redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return count
`)

// RedisAttemptCounter implements [AttemptCounter] with expiring Redis counters,
// so every replica shares one failure budget.
type RedisAttemptCounter struct {
	client *redis.Client
}

// NewAttemptCounter creates a Redis-backed [AttemptCounter].
func NewAttemptCounter(client *redis.Client) *RedisAttemptCounter {
	return &RedisAttemptCounter{client: client}
}

func attemptKey(key string) string {
	return constants.RedisPrefixResetFailures + key
}

// Failures reads the current count; a missing key is zero.
func (counter *RedisAttemptCounter) Failures(context context.Context, key string) (int64, error) {
	count, err := counter.client.Get(context, attemptKey(key)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("redis_attempt_read_failed: %w", err)
	}
	return count, nil
}

// RecordFailure increments the counter and sets its expiry when it is new.
func (counter *RedisAttemptCounter) RecordFailure(context context.Context, key string, window time.Duration) (int64, error) {
	count, err := incrementWithWindow.Run(context, counter.client, []string{attemptKey(key)}, window.Milliseconds()).Int64()
	if err != nil {
		return 0, fmt.Errorf("redis_attempt_record_failed: %w", err)
	}
	return count, nil
}
