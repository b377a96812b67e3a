// Copyright (c) 2026 Palm. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package dberr provides a bridge between low-level database errors and
// higher-level application errors.
package dberr

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/taibuivan/palm/internal/platform/apperr"
)

// uniqueViolation is the Postgres SQLSTATE for a unique constraint failure.
const uniqueViolation = "23505"

// IsNoRows reports whether err means the query matched nothing.
func IsNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

// IsUniqueViolation reports whether err is a unique constraint failure.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// Wrap inspects a database error and wraps it into a meaningful [apperr.AppError].
// The resource name is used in the NotFound message. Any error that is neither a
// missing row nor a duplicate becomes [apperr.Unavailable]; the caller decides
// whether that is fatal.
func Wrap(err error, resource string) error {
	if err == nil {
		return nil
	}

	// 1. Not Found mapping
	if IsNoRows(err) {
		return apperr.NotFound(resource)
	}

	// 2. Unique constraint mapping
	if IsUniqueViolation(err) {
		return apperr.Conflict(resource + " already exists")
	}

	// 3. Everything else is a storage failure
	return apperr.Unavailable(err)
}
