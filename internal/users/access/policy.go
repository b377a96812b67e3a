// Copyright (c) 2026 Palm. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package access implements the request-time authorization gate.

[Policy.Decide] is a pure function of the verified claims (or their absence) and
the requested path. It never touches storage and never caches, so it is safe to
call on every request and from any number of goroutines.

Rule order (first match wins):

 1. No claims on a protected path: redirect to the login page.
 2. Suspended claims: redirect to the suspension notice, whatever the path.
 3. Admin path without the admin role: redirect to the unauthorized page.
 4. Claims on an entry page (login, register): redirect to the role home.
 5. Otherwise allow.

Paths under /api/ get the same rules, but a redirect becomes a Deny carrying the
matching API error.
*/
package access

import (
	"path"
	"strings"

	"github.com/taibuivan/palm/internal/platform/apperr"
	"github.com/taibuivan/palm/internal/platform/constants"
	"github.com/taibuivan/palm/internal/platform/sec"
)

// # Decisions

// Outcome is the kind of gate decision.
type Outcome string

const (
	Allow    Outcome = "allow"
	Redirect Outcome = "redirect"
	Deny     Outcome = "deny"
)

// Reason names the rule that produced a decision. It is empty for Allow.
type Reason string

const (
	ReasonNone            Reason = ""
	ReasonUnauthenticated Reason = "unauthenticated"
	ReasonSuspended       Reason = "suspended"
	ReasonNotAdmin        Reason = "not_admin"
	ReasonAuthenticated   Reason = "already_authenticated"
)

// Decision is the result of evaluating the gate for one request.
type Decision struct {
	Outcome  Outcome `json:"outcome"`
	Location string  `json:"location,omitempty"`
	Reason   Reason  `json:"reason,omitempty"`
}

// Err maps a Deny decision to the API error returned to the caller.
// It returns nil for any other outcome.
func (decision Decision) Err() *apperr.AppError {
	if decision.Outcome != Deny {
		return nil
	}
	switch decision.Reason {
	case ReasonUnauthenticated:
		return apperr.Unauthorized("Authentication required")
	case ReasonSuspended:
		return apperr.AccountSuspended()
	default:
		return apperr.ForbiddenOperation("Insufficient permissions")
	}
}

// # Route Table

// Routes classifies paths. Prefixes match whole segments, so "/admin" covers
// "/admin/users" but not "/administrator".
type Routes struct {
	// Protected paths need a verified session.
	Protected []string
	// AdminOnly paths need the admin role. They are implicitly protected.
	AdminOnly []string
	// EntryPages are meant for visitors without a session.
	EntryPages []string
	// SuspendedAllowed stay reachable for suspended sessions so the notice
	// redirect terminates and the user can still sign out.
	SuspendedAllowed []string
}

// DefaultRoutes is the route table of the Palm web and API surface.
func DefaultRoutes() Routes {
	return Routes{
		Protected: []string{
			constants.PathDashboard,
			constants.PathAdmin,
			"/api/v1/me",
			"/api/v1/admin",
			"/api/v1/auth/logout",
			"/api/v1/auth/change-password",
		},
		AdminOnly: []string{
			constants.PathAdmin,
			"/api/v1/admin",
		},
		EntryPages: []string{
			constants.PathLogin,
			constants.PathRegister,
		},
		SuspendedAllowed: []string{
			constants.PathAccountSuspended,
			"/api/v1/auth/logout",
			"/api/v1/auth/authorize",
		},
	}
}

// # Policy

// request is the normalised input every rule sees.
type request struct {
	claims *sec.AuthClaims
	path   string
	api    bool
	routes *Routes
}

func (r request) in(prefixes []string) bool {
	for _, prefix := range prefixes {
		if r.path == prefix || strings.HasPrefix(r.path, prefix+"/") {
			return true
		}
	}
	return false
}

func (r request) protected() bool {
	return r.in(r.routes.Protected) || r.in(r.routes.AdminOnly)
}

// rule is one entry of the ordered policy.
type rule struct {
	reason  Reason
	matches func(request) bool
	target  func(request) string
	// pageOnly rules never fire for API paths.
	pageOnly bool
}

// Policy is the ordered rule list plus its route table.
type Policy struct {
	routes Routes
	rules  []rule
}

// NewPolicy builds the gate over a route table.
func NewPolicy(routes Routes) *Policy {
	return &Policy{
		routes: routes,
		rules: []rule{
			{
				reason:  ReasonUnauthenticated,
				matches: func(r request) bool { return r.claims == nil && r.protected() },
				target:  func(request) string { return constants.PathLogin },
			},
			{
				reason: ReasonSuspended,
				matches: func(r request) bool {
					return r.claims != nil && r.claims.State != sec.StateActive && !r.in(r.routes.SuspendedAllowed)
				},
				target: func(request) string { return constants.PathAccountSuspended },
			},
			{
				reason:  ReasonNotAdmin,
				matches: func(r request) bool { return r.in(r.routes.AdminOnly) && (r.claims == nil || !r.claims.Role.IsAdmin()) },
				target:  func(request) string { return constants.PathUnauthorized },
			},
			{
				reason:   ReasonAuthenticated,
				matches:  func(r request) bool { return r.claims != nil && r.in(r.routes.EntryPages) },
				target:   func(r request) string { return HomeFor(r.claims.Role) },
				pageOnly: true,
			},
		},
	}
}

// Decide evaluates the rules in order for the given claims and path.
// A nil claims pointer means the request carries no valid session.
func (policy *Policy) Decide(claims *sec.AuthClaims, requestedPath string) Decision {
	r := request{
		claims: claims,
		path:   normalise(requestedPath),
		routes: &policy.routes,
	}
	r.api = strings.HasPrefix(r.path+"/", constants.APIPrefix)

	for _, current := range policy.rules {
		if current.pageOnly && r.api {
			continue
		}
		if !current.matches(r) {
			continue
		}
		if r.api {
			return Decision{Outcome: Deny, Reason: current.reason}
		}
		return Decision{Outcome: Redirect, Location: current.target(r), Reason: current.reason}
	}

	return Decision{Outcome: Allow}
}

// HomeFor returns the landing page for a role.
func HomeFor(role sec.UserRole) string {
	if role.IsAdmin() {
		return constants.PathAdminDashboard
	}
	return constants.PathDashboard
}

// normalise drops any query or fragment and cleans the path so neither
// a suffix nor traversal segments can dodge a prefix match.
func normalise(requestedPath string) string {
	if cut := strings.IndexAny(requestedPath, "?#"); cut >= 0 {
		requestedPath = requestedPath[:cut]
	}
	if requestedPath == "" {
		return "/"
	}
	if !strings.HasPrefix(requestedPath, "/") {
		requestedPath = "/" + requestedPath
	}
	return path.Clean(requestedPath)
}
