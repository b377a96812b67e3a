// Copyright (c) 2026 Palm. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package sec

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// ResetCodeBytes is the entropy of a reset code; hex encoding doubles it to
// six characters, short enough to type from an e-mail.
const ResetCodeBytes = 3

// NewResetCode returns a random lowercase hex code for manual entry.
func NewResetCode() (string, error) {
	buf := make([]byte, ResetCodeBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("sec: failed to read random bytes: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// HashResetCode returns the SHA-256 hex digest stored in place of the code.
// A fast digest is enough because codes are random and short-lived.
func HashResetCode(code string) string {
	sum := sha256.Sum256([]byte(code))
	return hex.EncodeToString(sum[:])
}
