// Copyright (c) 2026 Palm. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package sec provides cryptographic primitives and session token management.
//
// # Architecture
//
// This package isolates security-sensitive code (password hashing, session
// signing, reset codes) from the domain logic. Services receive these types
// through constructors; nothing here reads configuration on its own.
package sec

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrInvalidToken is returned for every rejected session token. A bad signature,
// an expired token and a malformed payload are indistinguishable to callers.
var ErrInvalidToken = errors.New("sec: invalid session token")

// AuthClaims is the session claim set embedded inside a signed token.
//
// It is a projection of the account at issuance time. Later changes to the
// account are not reflected until a new token is issued, except through the
// revocation list consulted by the authentication middleware.
type AuthClaims struct {
	jwt.RegisteredClaims

	// Custom application claims are abbreviated to keep the payload small.
	UserID string       `json:"uid"`
	Name   string       `json:"unm"`
	Email  string       `json:"eml"`
	Role   UserRole     `json:"rol"`
	State  AccountState `json:"sta"`
}

// Subject is the identity a session is minted for.
type Subject struct {
	UserID string
	Name   string
	Email  string
	Role   UserRole
	State  AccountState
}

// SignedSession is a freshly issued token together with its metadata.
type SignedSession struct {
	Token     string
	TokenID   string
	ExpiresAt time.Time
}

// TokenService signs and verifies session tokens with HMAC-SHA256.
type TokenService struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenService creates a [TokenService] bound to a process-lifetime secret.
func NewTokenService(secret, issuer string, ttl time.Duration) (*TokenService, error) {
	if secret == "" {
		return nil, errors.New("sec: session secret is empty")
	}
	if ttl <= 0 {
		return nil, errors.New("sec: session ttl must be positive")
	}
	return &TokenService{
		secret: []byte(secret),
		issuer: issuer,
		ttl:    ttl,
		now:    time.Now,
	}, nil
}

// WithClock replaces the time source. It is meant for tests.
func (service *TokenService) WithClock(now func() time.Time) *TokenService {
	service.now = now
	return service
}

// TTL returns the lifetime given to every issued session.
func (service *TokenService) TTL() time.Duration {
	return service.ttl
}

// Issue mints a signed session for the subject.
func (service *TokenService) Issue(subject Subject) (SignedSession, error) {
	currentTime := service.now()
	expiresAt := currentTime.Add(service.ttl)
	tokenID := uuid.NewString()

	claims := AuthClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        tokenID,
			Subject:   subject.UserID,
			Issuer:    service.issuer,
			IssuedAt:  jwt.NewNumericDate(currentTime),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		UserID: subject.UserID,
		Name:   subject.Name,
		Email:  subject.Email,
		Role:   subject.Role,
		State:  subject.State,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signedToken, err := token.SignedString(service.secret)
	if err != nil {
		return SignedSession{}, fmt.Errorf("sec: failed to sign token: %w", err)
	}

	return SignedSession{Token: signedToken, TokenID: tokenID, ExpiresAt: expiresAt}, nil
}

// VerifyToken checks the signature, algorithm, issuer and expiry of a token.
// Every failure collapses into [ErrInvalidToken].
func (service *TokenService) VerifyToken(tokenString string) (*AuthClaims, error) {
	claims := &AuthClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		return service.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(service.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(service.now),
	)
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	if claims.UserID == "" || claims.ID == "" || !claims.Role.Valid() || !claims.State.Valid() {
		return nil, ErrInvalidToken
	}

	return claims, nil
}
