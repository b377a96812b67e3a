// Copyright (c) 2026 Palm. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/palm/internal/platform/constants"
	"github.com/taibuivan/palm/internal/platform/middleware"
	"github.com/taibuivan/palm/internal/platform/sec"
	"github.com/taibuivan/palm/internal/users/access"
	"github.com/taibuivan/palm/internal/users/auth"
)

type httpFixture struct {
	*resetFixture
	router http.Handler
}

func newHTTPFixture(t *testing.T) *httpFixture {
	t.Helper()
	f := &httpFixture{resetFixture: newResetFixture(t)}
	policy := access.NewPolicy(access.DefaultRoutes())

	router := chi.NewRouter()
	router.Use(middleware.Authenticate(f.tokens, f.revocations))
	router.Use(middleware.Gate(policy))
	router.Mount("/api/v1/auth", auth.NewHandler(f.service, f.manager, policy, nil).Routes())
	f.router = router
	return f
}

func (f *httpFixture) do(t *testing.T, method, target, body, token string) *httptest.ResponseRecorder {
	t.Helper()
	request := httptest.NewRequest(method, target, strings.NewReader(body))
	request.Header.Set("Content-Type", "application/json")
	if token != "" {
		request.Header.Set(constants.HeaderAuthorization, constants.BearerPrefix+token)
	}
	recorder := httptest.NewRecorder()
	f.router.ServeHTTP(recorder, request)
	return recorder
}

func (f *httpFixture) login(t *testing.T, email, password string) string {
	t.Helper()
	recorder := f.do(t, http.MethodPost, "/api/v1/auth/login", `{"email":"`+email+`","password":"`+password+`"}`, "")
	require.Equal(t, http.StatusOK, recorder.Code, recorder.Body.String())

	var envelope struct {
		Data struct {
			Token string `json:"token"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &envelope))
	return envelope.Data.Token
}

func errorCode(t *testing.T, recorder *httptest.ResponseRecorder) string {
	t.Helper()
	var envelope struct {
		Code string `json:"code"`
	}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &envelope))
	return envelope.Code
}

/* TestHandler_Login verifies status codes and the session cookie. */
func TestHandler_Login(t *testing.T) {
	f := newHTTPFixture(t)
	f.seed(t, "ada@palm.app", "secret1", sec.RoleStandard, sec.StateActive)
	f.seed(t, "sus@palm.app", "secret1", sec.RoleStandard, sec.StateSuspended)

	tests := []struct {
		name     string
		body     string
		wantCode int
		wantErr  string
	}{
		{"success", `{"email":"ada@palm.app","password":"secret1"}`, http.StatusOK, ""},
		{"wrong password", `{"email":"ada@palm.app","password":"secret2"}`, http.StatusUnauthorized, "INVALID_CREDENTIALS"},
		{"unknown email", `{"email":"who@palm.app","password":"secret1"}`, http.StatusUnauthorized, "INVALID_CREDENTIALS"},
		{"suspended", `{"email":"sus@palm.app","password":"secret1"}`, http.StatusForbidden, "ACCOUNT_SUSPENDED"},
		{"missing password", `{"email":"ada@palm.app"}`, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"unknown field", `{"email":"ada@palm.app","password":"secret1","admin":true}`, http.StatusBadRequest, "VALIDATION_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recorder := f.do(t, http.MethodPost, "/api/v1/auth/login", tt.body, "")
			assert.Equal(t, tt.wantCode, recorder.Code)
			if tt.wantErr != "" {
				assert.Equal(t, tt.wantErr, errorCode(t, recorder))
				return
			}

			cookies := recorder.Result().Cookies()
			require.Len(t, cookies, 1)
			assert.Equal(t, constants.SessionCookieName, cookies[0].Name)
			assert.True(t, cookies[0].HttpOnly)
			assert.NotContains(t, recorder.Body.String(), "password")
		})
	}
}

/* TestHandler_Logout verifies a logged-out session is treated as absent afterwards. */
func TestHandler_Logout(t *testing.T) {
	f := newHTTPFixture(t)
	f.seed(t, "ada@palm.app", "secret1", sec.RoleStandard, sec.StateActive)
	token := f.login(t, "ada@palm.app", "secret1")

	recorder := f.do(t, http.MethodPut, "/api/v1/auth/change-password", `{"currentPassword":"x","newPassword":"y"}`, "")
	assert.Equal(t, http.StatusUnauthorized, recorder.Code)

	recorder = f.do(t, http.MethodPost, "/api/v1/auth/logout", "", token)
	assert.Equal(t, http.StatusNoContent, recorder.Code)

	recorder = f.do(t, http.MethodPut, "/api/v1/auth/change-password", `{"currentPassword":"secret1","newPassword":"newpass1"}`, token)
	assert.Equal(t, http.StatusUnauthorized, recorder.Code)
}

/* TestHandler_ChangePassword verifies the session scopes which account can be changed. */
func TestHandler_ChangePassword(t *testing.T) {
	f := newHTTPFixture(t)
	f.seed(t, "ada@palm.app", "secret1", sec.RoleStandard, sec.StateActive)
	f.seed(t, "bob@palm.app", "secret1", sec.RoleStandard, sec.StateActive)
	token := f.login(t, "ada@palm.app", "secret1")

	recorder := f.do(t, http.MethodPut, "/api/v1/auth/change-password",
		`{"email":"bob@palm.app","currentPassword":"secret1","newPassword":"newpass1"}`, token)
	assert.Equal(t, http.StatusForbidden, recorder.Code)
	assert.Equal(t, "FORBIDDEN_OPERATION", errorCode(t, recorder))

	// emails are case-sensitive, so another casing names another account
	recorder = f.do(t, http.MethodPut, "/api/v1/auth/change-password",
		`{"email":"ADA@palm.app","currentPassword":"secret1","newPassword":"newpass1"}`, token)
	assert.Equal(t, http.StatusForbidden, recorder.Code)

	recorder = f.do(t, http.MethodPut, "/api/v1/auth/change-password",
		`{"email":"ada@palm.app","currentPassword":"wrong12","newPassword":"newpass1"}`, token)
	assert.Equal(t, http.StatusUnauthorized, recorder.Code)

	recorder = f.do(t, http.MethodPut, "/api/v1/auth/change-password",
		`{"currentPassword":"secret1","newPassword":"newpass1"}`, token)
	assert.Equal(t, http.StatusOK, recorder.Code)
	f.login(t, "ada@palm.app", "newpass1")
}

/* TestHandler_Reset verifies the recovery round trip over HTTP. */
func TestHandler_Reset(t *testing.T) {
	f := newHTTPFixture(t)
	f.seed(t, "ada@palm.app", "secret1", sec.RoleStandard, sec.StateActive)

	known := f.do(t, http.MethodPost, "/api/v1/auth/forgot-password", `{"email":"ada@palm.app"}`, "")
	unknown := f.do(t, http.MethodPost, "/api/v1/auth/forgot-password", `{"email":"who@palm.app"}`, "")
	assert.Equal(t, http.StatusOK, known.Code)
	assert.Equal(t, known.Body.String(), unknown.Body.String())

	delivery, ok := f.sender.Last()
	require.True(t, ok)

	recorder := f.do(t, http.MethodPost, "/api/v1/auth/reset-password", `{"token":"000000","password":"newpass1"}`, "")
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
	assert.Equal(t, "INVALID_OR_EXPIRED_TOKEN", errorCode(t, recorder))

	recorder = f.do(t, http.MethodPost, "/api/v1/auth/reset-password", `{"token":"`+delivery.Code+`","password":"newpass1"}`, "")
	assert.Equal(t, http.StatusOK, recorder.Code)
	f.login(t, "ada@palm.app", "newpass1")
}

/* TestHandler_Authorize verifies the gate lookup for pages, including suspended sessions. */
func TestHandler_Authorize(t *testing.T) {
	f := newHTTPFixture(t)
	account := f.seed(t, "ada@palm.app", "secret1", sec.RoleStandard, sec.StateActive)
	f.seed(t, "root@palm.app", "rootpw1", sec.RoleAdmin, sec.StateActive)
	standard := f.login(t, "ada@palm.app", "secret1")
	admin := f.login(t, "root@palm.app", "rootpw1")

	decide := func(path, token string) access.Decision {
		recorder := f.do(t, http.MethodGet, "/api/v1/auth/authorize?path="+path, "", token)
		require.Equal(t, http.StatusOK, recorder.Code, recorder.Body.String())
		var envelope struct {
			Data access.Decision `json:"data"`
		}
		require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &envelope))
		return envelope.Data
	}

	assert.Equal(t, access.Decision{Outcome: access.Redirect, Location: constants.PathLogin, Reason: access.ReasonUnauthenticated}, decide("/dashboard", ""))
	assert.Equal(t, access.Redirect, decide("/admin/users", standard).Outcome)
	assert.Equal(t, constants.PathUnauthorized, decide("/admin/users", standard).Location)
	assert.Equal(t, access.Allow, decide("/admin/users", admin).Outcome)
	assert.Equal(t, constants.PathAdminDashboard, decide("/login", admin).Location)

	// suspension after issuance reaches the session through the override
	require.NoError(t, f.revocations.SetOverride(t.Context(), account.ID, auth.OverrideSuspended, 0))
	suspended := decide("/dashboard", standard)
	assert.Equal(t, constants.PathAccountSuspended, suspended.Location)

	recorder := f.do(t, http.MethodGet, "/api/v1/auth/authorize", "", "")
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}
