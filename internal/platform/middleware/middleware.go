// Copyright (c) 2026 Palm. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package middleware provides the cross-cutting HTTP processing chain.

Standard Stack:

  - Trace: RequestID generation for log correlation.
  - Identify: Client address resolution, trusting forwarding headers only from configured proxies.
  - Log: Structured activity logging (slog) with a per-request logger.
  - Guard: Per-IP rate limiting and CORS.
  - Safe: Panic recovery to prevent server crashes.
  - Access: Session authentication and the authorization gate (authz.go, gate.go).
*/
package middleware

import (
	"context"
	"log/slog"
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/cors"
	"golang.org/x/time/rate"

	"github.com/taibuivan/palm/internal/platform/apperr"
	"github.com/taibuivan/palm/internal/platform/constants"
	"github.com/taibuivan/palm/internal/platform/ctxutil"
	"github.com/taibuivan/palm/internal/platform/respond"
	"github.com/taibuivan/palm/pkg/uuid"
)

// # Request Tracing

// RequestID attaches a correlation ID to every request for log tracing.
func RequestID() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {

			// 1. Reuse a well-formed client ID, otherwise mint a time-sortable one
			requestID := request.Header.Get(constants.HeaderXRequestID)
			if requestID == "" || len(requestID) > 64 {
				requestID = uuid.New()
			}

			// 2. Inject into context and response headers
			ctx := ctxutil.WithRequestID(request.Context(), requestID)
			writer.Header().Set(constants.HeaderXRequestID, requestID)

			next.ServeHTTP(writer, request.WithContext(ctx))
		})
	}
}

// # Activity Logging

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (recorder *statusRecorder) WriteHeader(code int) {
	recorder.status = code
	recorder.ResponseWriter.WriteHeader(code)
}

// StructuredLogger logs every request status and latency.
// It also injects a request-specific logger into the context.
func StructuredLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {

			startTime := time.Now()
			ip := clientIP(request)

			// 1. Create a sub-logger for this specific request
			requestLogger := logger.With(
				slog.String("request_id", ctxutil.GetRequestID(request.Context())),
				slog.String("method", request.Method),
				slog.String("path", request.URL.Path),
				slog.String("ip", ip),
			)

			ctx := ctxutil.WithLogger(request.Context(), requestLogger)
			wrappedWriter := &statusRecorder{ResponseWriter: writer, status: http.StatusOK}

			// 2. Proceed with the enriched context
			next.ServeHTTP(wrappedWriter, request.WithContext(ctx))

			// 3. Final log entry after the request is finished
			logLevel := slog.LevelInfo
			if wrappedWriter.status >= 500 {
				logLevel = slog.LevelError
			} else if wrappedWriter.status >= 400 {
				logLevel = slog.LevelWarn
			}

			requestLogger.Log(ctx, logLevel, "http_request_finished",
				slog.Int("status", wrappedWriter.status),
				slog.Int64("latency_ms", time.Since(startTime).Milliseconds()),
				slog.String("user_agent", request.UserAgent()),
			)
		})
	}
}

// # Rate Limiting

type rateLimitClient struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter limits requests per client IP with a token bucket. Separate
// instances keep separate budgets, so the credential endpoints can run a much
// tighter limiter than the rest of the API.
type RateLimiter struct {
	limit rate.Limit
	burst int

	mu      sync.Mutex
	clients map[string]*rateLimitClient
}

// NewRateLimiter builds a limiter and starts its cleanup routine, which stops
// when ctx is cancelled.
func NewRateLimiter(ctx context.Context, rps float64, burst int) *RateLimiter {
	limiter := &RateLimiter{
		limit:   rate.Limit(rps),
		burst:   burst,
		clients: make(map[string]*rateLimitClient),
	}

	go func() {
		ticker := time.NewTicker(constants.RateLimitCleanupInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				limiter.evict(time.Now())
			case <-ctx.Done():
				return
			}
		}
	}()

	return limiter
}

// Allow reports whether the client may proceed now.
func (limiter *RateLimiter) Allow(clientIP string) bool {
	limiter.mu.Lock()
	defer limiter.mu.Unlock()

	clientInfo, found := limiter.clients[clientIP]
	if !found {
		clientInfo = &rateLimitClient{limiter: rate.NewLimiter(limiter.limit, limiter.burst)}
		limiter.clients[clientIP] = clientInfo
	}
	clientInfo.lastSeen = time.Now()

	return clientInfo.limiter.Allow()
}

func (limiter *RateLimiter) evict(now time.Time) {
	limiter.mu.Lock()
	defer limiter.mu.Unlock()

	for ip, clientInfo := range limiter.clients {
		if now.Sub(clientInfo.lastSeen) > constants.RateLimitClientTTL {
			delete(limiter.clients, ip)
		}
	}
}

// Handler rejects requests over budget with RATE_LIMITED.
func (limiter *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		if !limiter.Allow(clientIP(request)) {
			retryAfter := 1
			if limiter.limit > 0 && limiter.limit < 1 {
				retryAfter = int(1 / float64(limiter.limit))
			}
			writer.Header().Set(constants.HeaderRetryAfter, strconv.Itoa(retryAfter))
			respond.Error(writer, request, apperr.RateLimited(retryAfter))
			return
		}
		next.ServeHTTP(writer, request)
	})
}

// # Reliability & Safety

// PanicRecovery recovers from panics, logs the stack trace, and returns 500.
func PanicRecovery() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					if err == http.ErrAbortHandler {
						panic(err)
					}

					stackTrace := make([]byte, 4096)
					length := runtime.Stack(stackTrace, false)

					ctxutil.GetLogger(request.Context()).ErrorContext(request.Context(), "panic_recovered",
						slog.Any("error", err),
						slog.String("stack", string(stackTrace[:length])),
					)

					respond.Error(writer, request, apperr.Internal(nil))
				}
			}()

			next.ServeHTTP(writer, request)
		})
	}
}

// # Cross-Origin Resource Sharing

// CORS allows the configured web origins to call the API with credentials,
// which the session cookie needs.
func CORS(allowedOrigins []string, debug bool) func(http.Handler) http.Handler {
	return cors.New(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type", constants.HeaderAuthorization, constants.HeaderXRequestID},
		ExposedHeaders:   []string{constants.HeaderXRequestID, constants.HeaderRetryAfter},
		AllowCredentials: true,
		MaxAge:           300,
		Debug:            debug,
	}).Handler
}

// # Client Address

// ProxyTrust lists the reverse proxies whose forwarding headers are believed.
// A nil or empty ProxyTrust trusts no one, so the socket peer is the client.
type ProxyTrust struct {
	prefixes []netip.Prefix
}

// ParseProxyTrust accepts single addresses ("10.0.0.7") and CIDR ranges ("10.0.0.0/8").
func ParseProxyTrust(entries []string) (*ProxyTrust, error) {
	trust := &ProxyTrust{}
	for _, entry := range entries {
		if prefix, err := netip.ParsePrefix(entry); err == nil {
			trust.prefixes = append(trust.prefixes, prefix.Masked())
			continue
		}
		addr, err := netip.ParseAddr(entry)
		if err != nil {
			return nil, fmt.Errorf("middleware: invalid trusted proxy %q", entry)
		}
		trust.prefixes = append(trust.prefixes, netip.PrefixFrom(addr.Unmap(), addr.Unmap().BitLen()))
	}
	return trust, nil
}

func (trust *ProxyTrust) trusts(raw string) bool {
	if trust == nil {
		return false
	}
	addr, err := netip.ParseAddr(strings.TrimSpace(raw))
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, prefix := range trust.prefixes {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}

/*
Resolve returns the client address of a request.

Description: Forwarding headers are read only when the socket peer is a
trusted proxy. X-Forwarded-For is walked from the right and the first hop that
is not itself a trusted proxy wins, so a client cannot choose its own bucket by
prepending entries. X-Real-IP is used when X-Forwarded-For is absent.
*/
func (trust *ProxyTrust) Resolve(request *http.Request) string {
	peer := peerAddress(request)
	if !trust.trusts(peer) {
		return peer
	}

	if forwarded := request.Header.Get(constants.HeaderXForwardedFor); forwarded != "" {
		hops := strings.Split(forwarded, ",")
		for index := len(hops) - 1; index >= 0; index-- {
			hop := strings.TrimSpace(hops[index])
			if _, err := netip.ParseAddr(hop); err != nil {
				break
			}
			if !trust.trusts(hop) {
				return hop
			}
		}
	}

	if realIP := strings.TrimSpace(request.Header.Get(constants.HeaderXRealIP)); realIP != "" {
		if _, err := netip.ParseAddr(realIP); err == nil {
			return realIP
		}
	}

	return peer
}

// ClientAddress stores the resolved client address in the request context,
// where the logger, the rate limiters and the reset attempt counter read it.
func ClientAddress(trust *ProxyTrust) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			ctx := ctxutil.WithClientIP(request.Context(), trust.Resolve(request))
			next.ServeHTTP(writer, request.WithContext(ctx))
		})
	}
}

// # Middleware Helpers

// clientIP reads the address resolved by ClientAddress, falling back to the
// socket peer when that middleware is not mounted.
func clientIP(request *http.Request) string {
	if ip := ctxutil.GetClientIP(request.Context()); ip != "" {
		return ip
	}
	return peerAddress(request)
}

func peerAddress(request *http.Request) string {
	host, _, err := net.SplitHostPort(request.RemoteAddr)
	if err != nil {
		return request.RemoteAddr
	}
	return host
}
