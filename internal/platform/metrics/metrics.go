// Copyright (c) 2026 Palm. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package metrics declares the Prometheus collectors exported on /metrics.
//
// Labels are bounded enums (outcome, reason); identities and e-mails never
// become label values.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "palm"

var (
	// LoginAttempts counts login outcomes. The reason label keeps the internal
	// distinction between unknown email and wrong password out of responses.
	LoginAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "auth",
		Name:      "login_attempts_total",
		Help:      "Login attempts by outcome and internal reason.",
	}, []string{"outcome", "reason"})

	// GateDecisions counts authorization gate results.
	GateDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "gate",
		Name:      "decisions_total",
		Help:      "Authorization gate decisions by outcome and rule.",
	}, []string{"outcome", "reason"})

	// ResetRequests counts password reset initiations and completions.
	ResetRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "auth",
		Name:      "reset_requests_total",
		Help:      "Password reset operations by stage and result.",
	}, []string{"stage", "result"})

	// MailFailures counts reset e-mails that could not be delivered.
	MailFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "mail",
		Name:      "delivery_failures_total",
		Help:      "Reset code deliveries that failed after the code was stored.",
	})
)
