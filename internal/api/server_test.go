// Copyright (c) 2026 Palm. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/taibuivan/palm/internal/api"
	"github.com/taibuivan/palm/internal/platform/config"
	"github.com/taibuivan/palm/internal/platform/constants"
	"github.com/taibuivan/palm/internal/platform/sec"
	"github.com/taibuivan/palm/internal/users/access"
	"github.com/taibuivan/palm/internal/users/account"
	"github.com/taibuivan/palm/internal/users/auth"
	"github.com/taibuivan/palm/internal/users/auth/authtest"
)

type stack struct {
	handler http.Handler
	auth    *auth.Service
}

func newStack(t *testing.T, checks ...api.Check) *stack {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := &config.Config{
		ServerPort:         "0",
		RateLimitRPS:       1000,
		RateLimitBurst:     1000,
		CORSAllowedOrigins: "http://localhost:3000",
	}

	hasher, err := sec.NewHasher(bcrypt.MinCost)
	require.NoError(t, err)
	tokens, err := sec.NewTokenService("0123456789abcdef0123456789abcdef", "palm", time.Hour)
	require.NoError(t, err)

	repo := authtest.NewMemoryRepository()
	revocations := authtest.NewMemoryRevocations()
	policy := access.NewPolicy(access.DefaultRoutes())

	authService := auth.NewService(repo, hasher, tokens, revocations)
	resets := auth.NewResetManager(repo, hasher, &authtest.RecordingSender{}, time.Hour)
	accountService := account.NewService(repo, authService, revocations, time.Hour)

	liveness, readiness := api.NewHealthHandlers(checks, logger)
	server := api.NewServer(t.Context(), cfg, logger,
		api.Security{Verifier: tokens, Resolver: revocations, Policy: policy},
		api.Handlers{
			Liveness:  liveness,
			Readiness: readiness,
			Auth:      auth.NewHandler(authService, resets, policy, nil),
			Account:   account.NewHandler(accountService),
		},
	)
	return &stack{handler: server.Handler(), auth: authService}
}

func (s *stack) call(t *testing.T, method, target, body, token string) *httptest.ResponseRecorder {
	t.Helper()
	request := httptest.NewRequest(method, target, strings.NewReader(body))
	request.RemoteAddr = "203.0.113.7:4711"
	if token != "" {
		request.Header.Set(constants.HeaderAuthorization, constants.BearerPrefix+token)
	}
	recorder := httptest.NewRecorder()
	s.handler.ServeHTTP(recorder, request)
	return recorder
}

func (s *stack) login(t *testing.T, email string) string {
	t.Helper()
	recorder := s.call(t, http.MethodPost, "/api/v1/auth/login", `{"email":"`+email+`","password":"secret1"}`, "")
	require.Equal(t, http.StatusOK, recorder.Code, recorder.Body.String())
	var envelope struct {
		Data struct {
			Token string `json:"token"`
			User  struct {
				ID string `json:"id"`
			} `json:"user"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &envelope))
	return envelope.Data.Token
}

func (s *stack) seed(t *testing.T, email string, role sec.UserRole) *auth.Account {
	t.Helper()
	created, err := s.auth.CreateAccount(context.Background(), auth.CreateInput{
		Name: "Palm User", Email: email, Password: "secret1", State: sec.StateActive, Role: role,
	})
	require.NoError(t, err)
	return created
}

/* TestServer_Probes verifies liveness, readiness and the metrics endpoint. */
func TestServer_Probes(t *testing.T) {
	healthy := newStack(t, api.Check{Name: "postgres", Probe: func(context.Context) error { return nil }})
	assert.Equal(t, http.StatusOK, healthy.call(t, http.MethodGet, "/health", "", "").Code)
	assert.Equal(t, http.StatusOK, healthy.call(t, http.MethodGet, "/ready", "", "").Code)

	metrics := healthy.call(t, http.MethodGet, "/metrics", "", "")
	assert.Equal(t, http.StatusOK, metrics.Code)
	assert.Contains(t, metrics.Body.String(), "palm_gate_decisions_total")

	degraded := newStack(t, api.Check{Name: "redis", Probe: func(context.Context) error { return errors.New("down") }})
	recorder := degraded.call(t, http.MethodGet, "/ready", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, recorder.Code)
	assert.Contains(t, recorder.Body.String(), "degraded")
}

/* TestServer_Gate verifies the gate rejects API calls by session state and role. */
func TestServer_Gate(t *testing.T) {
	s := newStack(t)
	s.seed(t, "ada@palm.app", sec.RoleStandard)
	s.seed(t, "root@palm.app", sec.RoleAdmin)
	standard := s.login(t, "ada@palm.app")
	admin := s.login(t, "root@palm.app")

	tests := []struct {
		name   string
		method string
		target string
		token  string
		want   int
	}{
		{"me anonymous", http.MethodGet, "/api/v1/me", "", http.StatusUnauthorized},
		{"me with forged token", http.MethodGet, "/api/v1/me", "forged.token.value", http.StatusUnauthorized},
		{"me standard", http.MethodGet, "/api/v1/me", standard, http.StatusOK},
		{"admin as standard", http.MethodGet, "/api/v1/admin/users", standard, http.StatusForbidden},
		{"admin as admin", http.MethodGet, "/api/v1/admin/users", admin, http.StatusOK},
		{"traversal into admin", http.MethodGet, "/api/v1/me/../admin/users", standard, http.StatusForbidden},
		{"page redirect", http.MethodGet, "/dashboard", "", http.StatusSeeOther},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recorder := s.call(t, tt.method, tt.target, "", tt.token)
			assert.Equal(t, tt.want, recorder.Code, recorder.Body.String())
		})
	}
}

/* TestServer_SuspensionReachesLiveSession verifies a suspension applies to a session issued before it. */
func TestServer_SuspensionReachesLiveSession(t *testing.T) {
	s := newStack(t)
	user := s.seed(t, "ada@palm.app", sec.RoleStandard)
	s.seed(t, "root@palm.app", sec.RoleAdmin)
	standard := s.login(t, "ada@palm.app")
	admin := s.login(t, "root@palm.app")

	recorder := s.call(t, http.MethodPatch, "/api/v1/admin/users/"+user.ID+"/status", `{"status":"suspended"}`, admin)
	require.Equal(t, http.StatusOK, recorder.Code, recorder.Body.String())

	recorder = s.call(t, http.MethodGet, "/api/v1/me", "", standard)
	assert.Equal(t, http.StatusForbidden, recorder.Code)
	assert.Contains(t, recorder.Body.String(), "ACCOUNT_SUSPENDED")

	recorder = s.call(t, http.MethodGet, "/api/v1/auth/authorize?path=/dashboard", "", standard)
	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Contains(t, recorder.Body.String(), constants.PathAccountSuspended)

	recorder = s.call(t, http.MethodPost, "/api/v1/auth/logout", "", standard)
	assert.Equal(t, http.StatusNoContent, recorder.Code)

	recorder = s.call(t, http.MethodPost, "/api/v1/auth/login", `{"email":"ada@palm.app","password":"secret1"}`, "")
	assert.Equal(t, http.StatusForbidden, recorder.Code)
}
