// Copyright (c) 2026 Palm. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/taibuivan/palm/internal/platform/constants"
	"github.com/taibuivan/palm/internal/platform/ctxutil"
	"github.com/taibuivan/palm/internal/platform/middleware"
	requestutil "github.com/taibuivan/palm/internal/platform/request"
	"github.com/taibuivan/palm/internal/platform/respond"
	"github.com/taibuivan/palm/internal/platform/validate"
	"github.com/taibuivan/palm/internal/users/access"
)

// # Definitions & Constructors

// Handler implements the authentication HTTP endpoints.
//
// # Scope
//
// Sign-in, registration, sign-out, password change and recovery, plus the
// gate lookup used by the web frontend before rendering a page.
type Handler struct {
	authService *Service
	resets      *ResetManager
	policy      *access.Policy
	limiter     *middleware.RateLimiter
}

// NewHandler constructs a new [Handler]. The limiter guards the endpoints
// that accept credentials or reset codes.
func NewHandler(service *Service, resets *ResetManager, policy *access.Policy, limiter *middleware.RateLimiter) *Handler {
	return &Handler{
		authService: service,
		resets:      resets,
		policy:      policy,
		limiter:     limiter,
	}
}

// Routes returns a [chi.Router] configured with authentication routes.
//
// # Endpoints
//   - POST /login           : Verifies credentials and issues a session.
//   - POST /register        : Creates a standard account.
//   - POST /logout          : Revokes the current session.
//   - POST /forgot-password : Issues a reset code.
//   - POST /reset-password  : Consumes a reset code.
//   - PUT  /change-password : Replaces the password of the signed-in account.
//   - GET  /authorize       : Evaluates the gate for a page path.
func (handler *Handler) Routes() chi.Router {
	router := chi.NewRouter()

	// Credential endpoints
	router.Group(func(r chi.Router) {
		if handler.limiter != nil {
			r.Use(handler.limiter.Handler)
		}
		r.Post("/login", handler.login)
		r.Post("/register", handler.register)
		r.Post("/forgot-password", handler.forgotPassword)
		r.Post("/reset-password", handler.resetPassword)
	})

	router.Post("/logout", handler.logout)
	router.Get("/authorize", handler.authorize)

	// Protected endpoints
	router.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth)
		r.Put("/change-password", handler.changePassword)
	})

	return router
}

// # Request Payloads

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

type resetPasswordRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

type changePasswordRequest struct {
	Email           string `json:"email"`
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

// sessionResponse is the body of a successful login.
type sessionResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	User      *Account  `json:"user"`
}

/*
Login authenticates an account and establishes a session.

POST /api/v1/auth/login

Description: Runs the credential state machine and, on success, returns the
signed session in the body and as an HttpOnly cookie.

Request:
  - Body: loginRequest (Email, Password)

Response:
  - 200: sessionResponse
  - 400: ValidationError
  - 401: InvalidCredentials
  - 403: AccountSuspended
*/
func (handler *Handler) login(writer http.ResponseWriter, request *http.Request) {
	var input loginRequest

	if err := requestutil.DecodeJSON(writer, request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	validator := &validate.Validator{}
	validator.Required(FieldEmail, input.Email).
		Required(FieldPassword, input.Password)

	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	result, err := handler.authService.Login(request.Context(), input.Email, input.Password)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	http.SetCookie(writer, &http.Cookie{
		Name:     constants.SessionCookieName,
		Value:    result.Session.Token,
		Path:     constants.SessionCookiePath,
		Expires:  result.Session.ExpiresAt,
		Secure:   true,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	respond.OK(writer, sessionResponse{
		Token:     result.Session.Token,
		ExpiresAt: result.Session.ExpiresAt,
		User:      result.Account,
	})
}

/*
Register creates a standard, active account.

POST /api/v1/auth/register

Response:
  - 201: Account
  - 400: ValidationError
  - 409: Conflict (email taken)
*/
func (handler *Handler) register(writer http.ResponseWriter, request *http.Request) {
	var input registerRequest

	if err := requestutil.DecodeJSON(writer, request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	account, err := handler.authService.Register(request.Context(), input.Name, input.Email, input.Password)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.Created(writer, account)
}

/*
Logout terminates the current session.

POST /api/v1/auth/logout

Description: Denylists the presented session and clears the cookie. Suspended
sessions may sign out too. Calling it without a session only clears the cookie.

Response:
  - 204: No Content
  - 503: Unavailable (revocation store down)
*/
func (handler *Handler) logout(writer http.ResponseWriter, request *http.Request) {
	if claims := ctxutil.GetAuthUser(request.Context()); claims != nil {
		if err := handler.authService.Logout(request.Context(), claims); err != nil {
			respond.Error(writer, request, err)
			return
		}
	}

	http.SetCookie(writer, &http.Cookie{
		Name:     constants.SessionCookieName,
		Value:    "",
		Path:     constants.SessionCookiePath,
		MaxAge:   -1,
		Secure:   true,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	respond.NoContent(writer)
}

/*
ForgotPassword initiates the password recovery flow.

POST /api/v1/auth/forgot-password

Response:
  - 200: The same acknowledgement for known and unknown emails
  - 400: ValidationError
*/
func (handler *Handler) forgotPassword(writer http.ResponseWriter, request *http.Request) {
	var input forgotPasswordRequest

	if err := requestutil.DecodeJSON(writer, request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	message, err := handler.resets.Initiate(request.Context(), input.Email)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.Message(writer, message)
}

/*
ResetPassword completes the password recovery flow.

POST /api/v1/auth/reset-password

Response:
  - 200: Confirmation
  - 400: ValidationError or InvalidOrExpiredToken
*/
func (handler *Handler) resetPassword(writer http.ResponseWriter, request *http.Request) {
	var input resetPasswordRequest

	if err := requestutil.DecodeJSON(writer, request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	if err := handler.resets.Complete(request.Context(), input.Token, input.Password); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.Message(writer, ResetCompleted)
}

/*
ChangePassword replaces the password of the signed-in account.

PUT /api/v1/auth/change-password

Description: The email in the body must be the session's own email.

Response:
  - 200: Confirmation
  - 400: ValidationError
  - 401: InvalidCredentials (wrong current password)
  - 403: ForbiddenOperation (another account's email)
*/
func (handler *Handler) changePassword(writer http.ResponseWriter, request *http.Request) {
	claims, err := requestutil.RequiredClaims(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	var input changePasswordRequest
	if err := requestutil.DecodeJSON(writer, request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	email := input.Email
	if email == "" {
		email = claims.Email
	}
	if !sameEmail(email, claims.Email) {
		respond.Error(writer, request, errForeignAccount)
		return
	}

	if err := handler.authService.ChangePassword(request.Context(), claims.Email, input.CurrentPassword, input.NewPassword); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.Message(writer, PasswordChanged)
}

/*
Authorize evaluates the gate for a page the caller is about to render.

GET /api/v1/auth/authorize?path=/admin/users

Response:
  - 200: access.Decision
  - 400: ValidationError (missing path)
*/
func (handler *Handler) authorize(writer http.ResponseWriter, request *http.Request) {
	target := request.URL.Query().Get(FieldPath)
	if target == "" {
		respond.Error(writer, request, validate.RequiredError(FieldPath, "is required"))
		return
	}

	decision := handler.policy.Decide(ctxutil.GetAuthUser(request.Context()), target)
	respond.OK(writer, decision)
}
