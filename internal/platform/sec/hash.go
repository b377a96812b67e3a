// Copyright (c) 2026 Palm. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package sec

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// Hasher performs salted one-way password hashing with bcrypt.
//
// # Security
//
// Plaintext passwords never leave this type: they are not logged, not wrapped
// into errors and not retained after the call returns.
type Hasher struct {
	cost int

	// dummy is a valid digest used to equalize the cost of lookups that miss.
	dummy []byte
}

// NewHasher builds a [Hasher] with the given bcrypt cost.
func NewHasher(cost int) (*Hasher, error) {
	dummy, err := bcrypt.GenerateFromPassword([]byte("palm-timing-equalizer"), cost)
	if err != nil {
		return nil, fmt.Errorf("sec: failed to prepare hasher: %w", err)
	}
	return &Hasher{cost: cost, dummy: dummy}, nil
}

// Hash returns a bcrypt digest of the plaintext. Two calls with the same input
// return different digests.
func (hasher *Hasher) Hash(plaintext string) (string, error) {
	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(plaintext), hasher.cost)
	if err != nil {
		// bcrypt errors never echo the input, so wrapping is safe
		return "", fmt.Errorf("sec: failed to hash password: %w", err)
	}
	return string(hashedBytes), nil
}

// Verify compares a plaintext password with a stored digest in constant time.
// Any failure, including a malformed or empty digest, is reported as a mismatch.
func (hasher *Hasher) Verify(plaintext, digest string) bool {
	if digest == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(plaintext)) == nil
}

// Equalize burns one comparison against a fixed digest so that a login for an
// unknown email costs the same as a wrong password.
func (hasher *Hasher) Equalize(plaintext string) {
	_ = bcrypt.CompareHashAndPassword(hasher.dummy, []byte(plaintext))
}
