// Package metrics defines and registers all custom Prometheus metrics for the
// authentication service. It is the single source of truth for metric names,
// labels, and help strings.
//
// Metrics are registered with the default Prometheus registry through promauto
// at package initialisation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/stockpulse/authcore/internal/core/service"
)

const namespace = "authcore"

// ── Login metrics ─────────────────────────────────────────────────────────────

// LoginAttemptsTotal counts finished login attempts.
// Label:
//   - outcome: "success", "bad_credential", "locked", "unknown_identity",
//     "not_verified", "suspended" or "error"
var LoginAttemptsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "login_attempts_total",
		Help:      "Total number of login attempts, by outcome.",
	},
	[]string{"outcome"},
)

// AccountLocksTotal counts lockouts triggered by reaching the failure threshold.
var AccountLocksTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "account_locks_total",
		Help:      "Total number of accounts locked after repeated failed logins.",
	},
)

// LoginRateLimitedTotal counts login requests rejected by the per-IP limiter.
var LoginRateLimitedTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "login_rate_limited_total",
		Help:      "Total number of login requests rejected by the rate limiter.",
	},
)

// ── Token metrics ─────────────────────────────────────────────────────────────

// TokenValidationFailuresTotal counts bearer tokens that failed validation.
// Label:
//   - reason: "malformed", "signature_invalid", "expired" or "unknown_subject"
var TokenValidationFailuresTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "token_validation_failures_total",
		Help:      "Total number of bearer tokens rejected during request authentication.",
	},
	[]string{"reason"},
)

// ── Verification metrics ──────────────────────────────────────────────────────

// VerificationsTotal counts email verification attempts.
// Label:
//   - outcome: "verified", "not_found", "expired", "already_verified" or "error"
var VerificationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "verifications_total",
		Help:      "Total number of email verification attempts, by outcome.",
	},
	[]string{"outcome"},
)

// PasswordResetsTotal counts password reset confirmations.
// Label:
//   - outcome: "reset", "not_found", "expired", "already_used" or "error"
var PasswordResetsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "password_resets_total",
		Help:      "Total number of password reset confirmations, by outcome.",
	},
	[]string{"outcome"},
)

// VerificationMailsTotal counts verification mails handed to the mailer.
// Label:
//   - result: "sent" or "failed"
var VerificationMailsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "verification_mails_total",
		Help:      "Total number of verification mails processed by the dispatcher, by result.",
	},
	[]string{"result"},
)

// MailQueueDepth tracks the number of mails waiting in each dispatcher worker channel.
// Label:
//   - worker_id: numeric worker index (e.g. "0", "1", …)
var MailQueueDepth = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "mail_queue_depth",
		Help:      "Current number of verification mails pending in each dispatcher worker channel.",
	},
	[]string{"worker_id"},
)

// MailDeliveryDuration measures how long a single SMTP delivery takes.
var MailDeliveryDuration = promauto.NewHistogram(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "mail_delivery_duration_seconds",
		Help:      "Duration of verification mail delivery from dequeue to SMTP acceptance.",
		Buckets:   prometheus.DefBuckets,
	},
)

// AuthObserver feeds service events into the counters above.
type AuthObserver struct{}

var _ service.AuthObserver = AuthObserver{}

func (AuthObserver) LoginAttempt(outcome service.LoginOutcome) {
	LoginAttemptsTotal.WithLabelValues(string(outcome)).Inc()
}

func (AuthObserver) AccountLocked() { AccountLocksTotal.Inc() }

func (AuthObserver) Verification(outcome string) {
	VerificationsTotal.WithLabelValues(outcome).Inc()
}

func (AuthObserver) PasswordReset(outcome string) {
	PasswordResetsTotal.WithLabelValues(outcome).Inc()
}
