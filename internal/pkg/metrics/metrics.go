// Package metrics defines and registers all custom Prometheus metrics for the
// portal auth service. It is the single source of truth for metric names,
// labels, and help strings.
//
// Metrics are registered with the default Prometheus registry on package
// initialisation (promauto) and exposed at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "portal"

// ── Access gate ───────────────────────────────────────────────────────────────

// GateDecisionsTotal counts access-gate evaluations.
// Labels:
//   - outcome: "allowed", "unauthenticated", "wrong_portal", "pending_role_selection"
//   - portal: the portal the route required, or "any"
var GateDecisionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "gate_decisions_total",
		Help:      "Total number of access-gate decisions, by outcome and required portal.",
	},
	[]string{"outcome", "portal"},
)

// ── Sessions ──────────────────────────────────────────────────────────────────

// SessionLookupsTotal counts session resolutions.
// Label:
//   - result: "found", "absent" (no session), "expired" (past its expiry), or
//     "error" (provider failure, treated as absent)
var SessionLookupsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "session_lookups_total",
		Help:      "Total number of session lookups against the identity provider, by result.",
	},
	[]string{"result"},
)

// SessionLookupDuration measures identity-provider round-trips for GetSession.
var SessionLookupDuration = promauto.NewHistogram(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "session_lookup_duration_seconds",
		Help:      "Duration of session lookups against the identity provider.",
		Buckets:   prometheus.DefBuckets,
	},
)

// SignOutFailuresTotal counts sign-outs the identity provider refused.
var SignOutFailuresTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "signout_failures_total",
		Help:      "Total number of sign-out requests rejected by the identity provider.",
	},
)

// ── Authentication ────────────────────────────────────────────────────────────

// SignInsTotal counts sign-in attempts.
// Labels:
//   - method: "password", "magic_link", "refresh"
//   - result: "success" or "failure"
var SignInsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "signins_total",
		Help:      "Total number of sign-in attempts, by method and result.",
	},
	[]string{"method", "result"},
)

// RoleSelectionsTotal counts completed onboarding role selections.
// Label:
//   - role: the role chosen
var RoleSelectionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "role_selections_total",
		Help:      "Total number of completed role selections, by role.",
	},
	[]string{"role"},
)

// ── Mail ──────────────────────────────────────────────────────────────────────

// MailQueueDepth tracks magic-link messages waiting in each dispatcher worker channel.
// Label:
//   - worker_id: numeric worker index (e.g. "0", "1", …)
var MailQueueDepth = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "mail_queue_depth",
		Help:      "Current number of messages pending in each mail dispatcher worker channel.",
	},
	[]string{"worker_id"},
)

// MailDeliveriesTotal counts delivery attempts.
// Label:
//   - result: "success", "failure", or "dropped" (queue full)
var MailDeliveriesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "mail_deliveries_total",
		Help:      "Total number of magic-link delivery attempts, by result.",
	},
	[]string{"result"},
)

// ── HTTP ──────────────────────────────────────────────────────────────────────

// HTTPRequestsTotal counts served requests.
// Labels:
//   - method, route: echo route template (e.g. "/portals/doctors/me")
//   - status: response status code
var HTTPRequestsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests, by method, route, and status.",
	},
	[]string{"method", "route", "status"},
)

// HTTPRequestDuration measures request latency by route.
var HTTPRequestDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "Duration of HTTP requests, by method and route.",
		Buckets:   prometheus.DefBuckets,
	},
	[]string{"method", "route"},
)
