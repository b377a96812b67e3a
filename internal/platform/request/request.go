// Copyright (c) 2026 Palm. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package request provides utilities for extracting data from HTTP requests.

It abstracts away the underlying router's parameter extraction and common
body decoding patterns, ensuring consistent error handling and type safety.
*/
package requestutil

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/taibuivan/palm/internal/platform/constants"
	"github.com/taibuivan/palm/internal/platform/ctxutil"
	"github.com/taibuivan/palm/internal/platform/sec"
	"github.com/taibuivan/palm/internal/platform/validate"
)

// MaxBodyBytes caps JSON request bodies.
const MaxBodyBytes = 64 << 10

/*
DecodeJSON reads the request body and decodes it into the target structure.

The schema is strict: unknown fields, trailing data and oversized bodies are
rejected before any handler logic runs.

Returns:
  - error: validate.ErrInvalidJSON if decoding fails, otherwise nil
*/
func DecodeJSON(writer http.ResponseWriter, request *http.Request, target any) error {
	body := http.MaxBytesReader(writer, request.Body, MaxBodyBytes)
	decoder := json.NewDecoder(body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(target); err != nil {
		return validate.ErrInvalidJSON
	}
	if err := decoder.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return validate.ErrInvalidJSON
	}
	return nil
}

/*
Param retrieves a named URL parameter from the request.
*/
func Param(request *http.Request, name string) string {
	return chi.URLParam(request, name)
}

/*
SessionToken returns the raw session token from the Authorization header or,
failing that, from the session cookie. It returns "" when neither is present.
*/
func SessionToken(request *http.Request) string {
	if header := request.Header.Get(constants.HeaderAuthorization); header != "" {
		if len(header) > len(constants.BearerPrefix) && strings.EqualFold(header[:len(constants.BearerPrefix)], constants.BearerPrefix) {
			return strings.TrimSpace(header[len(constants.BearerPrefix):])
		}
		return ""
	}
	if cookie, err := request.Cookie(constants.SessionCookieName); err == nil {
		return cookie.Value
	}
	return ""
}

/*
RequiredClaims ensures the request is authenticated and returns the user claims.

Returns:
  - *sec.AuthClaims: The authenticated user claims
  - error: apperr.Unauthorized if the request is not authenticated
*/
func RequiredClaims(request *http.Request) (*sec.AuthClaims, error) {
	return ctxutil.RequireAuthUser(request.Context())
}
