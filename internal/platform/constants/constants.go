// Copyright (c) 2026 Palm. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package constants provides centralized, immutable values for the entire platform.

Categories:

  - Server Timing: Read/Write/Idle timeouts for the HTTP server.
  - Rate Limiting: Cleanup cadence for the per-IP limiter.
  - Session Transport: cookie naming and scoping.
  - Page Routes: the navigation targets the authorization gate redirects to.
*/
package constants

import "time"

// # Metadata

const (
	AppName    = "palm-auth"
	AppVersion = "0.1.0-dev"
)

// # Server Timing

const (
	// DefaultReadTimeout is the maximum duration for reading the entire request.
	DefaultReadTimeout = 5 * time.Second

	// DefaultWriteTimeout is the maximum duration before timing out writes of the response.
	DefaultWriteTimeout = 10 * time.Second

	// DefaultIdleTimeout is the maximum amount of time to wait for the next request.
	DefaultIdleTimeout = 120 * time.Second

	// DefaultReadHeaderTimeout is the amount of time allowed to read request headers.
	DefaultReadHeaderTimeout = 2 * time.Second

	// GlobalRequestTimeout is the deadline for the entire request lifecycle.
	GlobalRequestTimeout = 30 * time.Second

	// ShutdownTimeout is how long we wait for in-flight requests to complete during shutdown.
	ShutdownTimeout = 30 * time.Second
)

// # Rate Limiting

const (
	// RateLimitCleanupInterval is how often old IP entries are removed from memory.
	RateLimitCleanupInterval = 1 * time.Minute

	// RateLimitClientTTL is how long a client must be idle before its entry is deleted.
	RateLimitClientTTL = 3 * time.Minute
)

// # Session Transport

const (
	// SessionCookieName carries the signed claim set for browser clients.
	SessionCookieName = "palm_session"

	// SessionCookiePath scopes the cookie to the whole site.
	SessionCookiePath = "/"

	// BearerPrefix is the Authorization header scheme for API clients.
	BearerPrefix = "Bearer "
)

// # HTTP Headers

const (
	HeaderAuthorization = "Authorization"
	HeaderXRequestID    = "X-Request-ID"
	HeaderXRealIP       = "X-Real-IP"
	HeaderXForwardedFor = "X-Forwarded-For"
	HeaderRetryAfter    = "Retry-After"
)

// # Page Routes

const (
	PathLogin            = "/login"
	PathRegister         = "/register"
	PathDashboard        = "/dashboard"
	PathAdmin            = "/admin"
	PathAdminDashboard   = "/admin/dashboard"
	PathAccountSuspended = "/account-suspended"
	PathUnauthorized     = "/unauthorized"

	// APIPrefix marks paths whose gate outcomes are rejections instead of redirects.
	APIPrefix = "/api/"
)

// # JSON Field Identifiers

const (
	FieldData    = "data"
	FieldMeta    = "meta"
	FieldError   = "error"
	FieldCode    = "code"
	FieldDetails = "details"
	FieldItems   = "items"
	FieldTotal   = "total"
	FieldMessage = "message"
	FieldStatus  = "status"
	FieldApp     = "app"
	FieldVersion = "version"
	FieldChecks  = "checks"
)

// # Database Schemas

const (
	SchemaUsers = "users"
)

// # Redis Prefixes (Cache Taxonomy)

const (
	// RedisPrefixRevokedToken denylists a single session by jti until it expires.
	RedisPrefixRevokedToken = "auth:revoked_jti:"

	// RedisPrefixGrantOverride overrides every session of one account (suspended or revoked).
	RedisPrefixGrantOverride = "auth:grant:"

	// RedisPrefixResetFailures counts failed reset completions per client and overall.
	RedisPrefixResetFailures = "auth:reset_failures:"
)
