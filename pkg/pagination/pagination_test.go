// Copyright (c) 2026 Palm. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package pagination_test

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/taibuivan/palm/pkg/pagination"
)

/* TestFromRequest verifies defaults, clamping and offsets. */
func TestFromRequest(t *testing.T) {
	tests := []struct {
		query      string
		want       pagination.Params
		wantOffset int
	}{
		{"", pagination.Params{Page: 1, Limit: 20}, 0},
		{"?page=3&limit=10", pagination.Params{Page: 3, Limit: 10}, 20},
		{"?page=0&limit=-5", pagination.Params{Page: 1, Limit: 20}, 0},
		{"?page=abc&limit=500", pagination.Params{Page: 1, Limit: 100}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			params := pagination.FromRequest(httptest.NewRequest("GET", "/api/v1/admin/users"+tt.query, nil))
			assert.Equal(t, tt.want, params)
			assert.Equal(t, tt.wantOffset, params.Offset())
		})
	}
}

/* TestNewMeta verifies the page count rounds up. */
func TestNewMeta(t *testing.T) {
	assert.Equal(t, 3, pagination.NewMeta(1, 10, 21).TotalPages)
	assert.Equal(t, 0, pagination.NewMeta(1, 10, 0).TotalPages)
	assert.Equal(t, 0, pagination.NewMeta(1, 0, 5).TotalPages)
}
