// Copyright (c) 2026 Palm. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package account

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/taibuivan/palm/internal/platform/middleware"
	requestutil "github.com/taibuivan/palm/internal/platform/request"
	"github.com/taibuivan/palm/internal/platform/respond"
	"github.com/taibuivan/palm/internal/platform/sec"
	"github.com/taibuivan/palm/internal/platform/validate"
	"github.com/taibuivan/palm/pkg/pagination"
)

// Handler implements the HTTP layer for profiles and user management.
type Handler struct {
	accountService *Service
}

// NewHandler constructs a new account [Handler].
func NewHandler(service *Service) *Handler {
	return &Handler{accountService: service}
}

// Routes returns the self-service profile endpoints. Every route requires an
// active session.
func (handler *Handler) Routes() chi.Router {
	router := chi.NewRouter()
	router.Use(middleware.RequireAuth)

	router.Get("/", handler.getMe)
	router.Patch("/", handler.updateMe)
	router.Delete("/", handler.deleteMe)

	return router
}

// AdminRoutes returns the user management endpoints, restricted to admins.
func (handler *Handler) AdminRoutes() chi.Router {
	router := chi.NewRouter()
	router.Use(middleware.RequireRole(sec.RoleAdmin))

	router.Get("/users", handler.listUsers)
	router.Post("/users", handler.createUser)
	router.Patch("/users/{id}/status", handler.updateStatus)

	return router
}

// # Profile Endpoints

/*
GET /api/v1/me.

Response:
  - 200: Account
  - 401: Authentication required
  - 404: Account deleted since the session was issued
*/
func (handler *Handler) getMe(writer http.ResponseWriter, request *http.Request) {
	claims, err := requestutil.RequiredClaims(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	account, err := handler.accountService.GetProfile(request.Context(), claims.UserID)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, account)
}

type updateMeRequest struct {
	Name string `json:"name"`
}

/*
PATCH /api/v1/me.

Response:
  - 200: Account: The updated profile
  - 400: ValidationError
*/
func (handler *Handler) updateMe(writer http.ResponseWriter, request *http.Request) {
	claims, err := requestutil.RequiredClaims(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	var input updateMeRequest
	if err := requestutil.DecodeJSON(writer, request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	account, err := handler.accountService.UpdateProfile(request.Context(), claims.UserID, input.Name)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, account)
}

/*
DELETE /api/v1/me.

Response:
  - 204: No Content
*/
func (handler *Handler) deleteMe(writer http.ResponseWriter, request *http.Request) {
	claims, err := requestutil.RequiredClaims(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	if err := handler.accountService.DeleteAccount(request.Context(), claims.UserID); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.NoContent(writer)
}

// # Admin Endpoints

/*
GET /api/v1/admin/users?page=&limit=.

Response:
  - 200: Paginated accounts, newest first
*/
func (handler *Handler) listUsers(writer http.ResponseWriter, request *http.Request) {
	params := pagination.FromRequest(request)

	accounts, meta, err := handler.accountService.ListUsers(request.Context(), params)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.Paginated(writer, accounts, meta)
}

type createUserRequest struct {
	Name     string           `json:"name"`
	Email    string           `json:"email"`
	Password string           `json:"password"`
	Status   sec.AccountState `json:"status"`
	IsAdmin  bool             `json:"isAdmin"`
}

/*
POST /api/v1/admin/users.

Response:
  - 201: Account
  - 400: ValidationError
  - 409: Conflict (email taken)
*/
func (handler *Handler) createUser(writer http.ResponseWriter, request *http.Request) {
	var input createUserRequest
	if err := requestutil.DecodeJSON(writer, request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	account, err := handler.accountService.CreateUser(request.Context(), CreateUserInput(input))
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.Created(writer, account)
}

type updateStatusRequest struct {
	Status sec.AccountState `json:"status"`
}

/*
PATCH /api/v1/admin/users/{id}/status.

Response:
  - 200: Account: The updated account
  - 400: ValidationError
  - 403: ForbiddenOperation (admin target)
  - 404: NotFound
*/
func (handler *Handler) updateStatus(writer http.ResponseWriter, request *http.Request) {
	userID := requestutil.Param(request, "id")

	validator := &validate.Validator{}
	validator.UUID("id", userID)
	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	var input updateStatusRequest
	if err := requestutil.DecodeJSON(writer, request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	account, err := handler.accountService.UpdateStatus(request.Context(), userID, input.Status)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, account)
}
