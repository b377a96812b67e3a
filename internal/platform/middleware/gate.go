// Copyright (c) 2026 Palm. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package middleware

import (
	"log/slog"
	"net/http"

	"github.com/taibuivan/palm/internal/platform/ctxutil"
	"github.com/taibuivan/palm/internal/platform/metrics"
	"github.com/taibuivan/palm/internal/platform/respond"
	"github.com/taibuivan/palm/internal/users/access"
)

// Gate evaluates the authorization policy on every request. Must be registered
// after [Authenticate].
func Gate(policy *access.Policy) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			ctx := request.Context()
			decision := policy.Decide(ctxutil.GetAuthUser(ctx), request.URL.Path)
			metrics.GateDecisions.WithLabelValues(string(decision.Outcome), string(decision.Reason)).Inc()

			switch decision.Outcome {
			case access.Redirect:
				ctxutil.GetLogger(ctx).DebugContext(ctx, "gate_redirect",
					slog.String("reason", string(decision.Reason)),
					slog.String("location", decision.Location),
				)
				http.Redirect(writer, request, decision.Location, http.StatusSeeOther)
			case access.Deny:
				respond.Error(writer, request, decision.Err())
			default:
				next.ServeHTTP(writer, request)
			}
		})
	}
}
