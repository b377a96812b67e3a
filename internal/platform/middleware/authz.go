// Copyright (c) 2026 Palm. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/taibuivan/palm/internal/platform/apperr"
	"github.com/taibuivan/palm/internal/platform/ctxutil"
	requestutil "github.com/taibuivan/palm/internal/platform/request"
	"github.com/taibuivan/palm/internal/platform/respond"
	"github.com/taibuivan/palm/internal/platform/sec"
)

// TokenVerifier defines the interface needed to verify tokens in middleware.
type TokenVerifier interface {
	VerifyToken(tokenStr string) (*sec.AuthClaims, error)
}

// ClaimsResolver applies server-side revocation to verified claims.
//
// It returns nil when the session has been revoked, or a copy with an updated
// state when the account was suspended after issuance.
type ClaimsResolver interface {
	Resolve(ctx context.Context, claims *sec.AuthClaims) (*sec.AuthClaims, error)
}

// Authenticate extracts and verifies the session token from the Authorization
// header or the session cookie.
//
// # Flow
//  1. No token: the request proceeds as anonymous.
//  2. A token that fails verification is treated exactly like no token; the
//     gate then decides whether anonymous access is acceptable.
//  3. Verified claims are passed through the [ClaimsResolver]. If the revocation
//     store is unreachable the original claims are kept and a warning is logged.
//  4. The resulting [*sec.AuthClaims] are injected into the request context.
func Authenticate(verifier TokenVerifier, resolver ClaimsResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			ctx := request.Context()

			// 1. Anonymous Access
			token := requestutil.SessionToken(request)
			if token == "" {
				next.ServeHTTP(writer, request)
				return
			}

			// 2. Token Verification
			claims, err := verifier.VerifyToken(token)
			if err != nil {
				ctxutil.GetLogger(ctx).DebugContext(ctx, "session_token_rejected")
				next.ServeHTTP(writer, request)
				return
			}

			// 3. Revocation
			if resolver != nil {
				resolved, err := resolver.Resolve(ctx, claims)
				if err != nil {
					ctxutil.GetLogger(ctx).WarnContext(ctx, "session_revocation_check_failed",
						slog.String("user_id", claims.UserID),
						slog.Any("error", err),
					)
				} else {
					claims = resolved
				}
			}
			if claims == nil {
				next.ServeHTTP(writer, request)
				return
			}

			// 4. Context Injection
			ctx = ctxutil.WithAuthUser(ctx, claims)
			ctxutil.GetLogger(ctx).DebugContext(ctx, "session_authenticated", slog.String("user_id", claims.UserID))
			next.ServeHTTP(writer, request.WithContext(ctx))
		})
	}
}

// RequireAuth blocks requests that are not authenticated or whose account is
// suspended. Must be registered after [Authenticate].
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		claims := ctxutil.GetAuthUser(request.Context())
		if claims == nil {
			respond.Error(writer, request, apperr.Unauthorized("Authentication required"))
			return
		}
		if claims.State != sec.StateActive {
			respond.Error(writer, request, apperr.AccountSuspended())
			return
		}
		next.ServeHTTP(writer, request)
	})
}

// RequireRole blocks requests if the authenticated user doesn't have the required
// role. It implies [RequireAuth].
func RequireRole(role sec.UserRole) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return RequireAuth(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			claims := ctxutil.GetAuthUser(request.Context())
			if !claims.Role.AtLeast(role) {
				respond.Error(writer, request, apperr.ForbiddenOperation("Insufficient permissions"))
				return
			}
			next.ServeHTTP(writer, request)
		}))
	}
}
