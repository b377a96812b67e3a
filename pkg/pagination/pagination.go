// Copyright (c) 2026 Palm. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package pagination parses page-based list requests and builds the metadata
// returned alongside each page.
package pagination

import (
	"net/http"
	"strconv"
)

const (
	// DefaultLimit is the page size when the request does not name one.
	DefaultLimit = 20
	// MaxLimit caps the page size; larger requests are clamped to it.
	MaxLimit = 100
	// DefaultPage is the first page (1-indexed).
	DefaultPage = 1
)

// Params holds the parsed page and limit of a list request.
type Params struct {
	Page  int
	Limit int
}

// Offset returns the SQL OFFSET for [Params.Page] and [Params.Limit].
func (p Params) Offset() int {
	if p.Page <= 1 {
		return 0
	}
	return (p.Page - 1) * p.Limit
}

// Meta is the pagination metadata of a list response.
type Meta struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

// NewMeta builds the metadata for a page out of total items.
func NewMeta(page, limit, total int) Meta {
	totalPages := 0
	if limit > 0 {
		totalPages = (total + limit - 1) / limit
	}
	return Meta{Page: page, Limit: limit, Total: total, TotalPages: totalPages}
}

// FromRequest parses the "page" and "limit" query parameters.
//
// Missing or malformed values fall back to the defaults; a limit above
// [MaxLimit] is clamped rather than rejected.
func FromRequest(r *http.Request) Params {
	page := intParam(r, "page", DefaultPage)
	if page < 1 {
		page = DefaultPage
	}

	limit := intParam(r, "limit", DefaultLimit)
	switch {
	case limit < 1:
		limit = DefaultLimit
	case limit > MaxLimit:
		limit = MaxLimit
	}

	return Params{Page: page, Limit: limit}
}

func intParam(r *http.Request, key string, fallback int) int {
	n, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil {
		return fallback
	}
	return n
}
