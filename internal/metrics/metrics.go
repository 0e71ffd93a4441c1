package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	admissionChecksTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gatehouse_admission_checks_total",
		Help: "Total number of requests evaluated by the admission controller",
	}, []string{"action"})
	admissionBlockedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gatehouse_admission_blocked_total",
		Help: "Total number of requests rejected by the block list or spam patterns",
	}, []string{"action"})
	admissionRateLimitedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gatehouse_admission_rate_limited_total",
		Help: "Total number of requests rejected by the rate limiter",
	}, []string{"action"})
	vpnDetectionsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "gatehouse_vpn_detections_total",
		Help: "Total number of reputation-positive (VPN/proxy) detections",
	})
	reputationErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "gatehouse_reputation_errors_total",
		Help: "Total number of failed reputation lookups (treated as clean)",
	})
)

// Register registers Prometheus collectors. Call once at startup.
func Register(registry *prometheus.Registry) {
	registry.MustRegister(
		admissionChecksTotal,
		admissionBlockedTotal,
		admissionRateLimitedTotal,
		vpnDetectionsTotal,
		reputationErrorsTotal,
	)
}

// IncAdmissionCheck increments the evaluated requests counter.
func IncAdmissionCheck(action string) { admissionChecksTotal.WithLabelValues(action).Inc() }

// IncAdmissionBlocked increments the hard-block counter.
func IncAdmissionBlocked(action string) { admissionBlockedTotal.WithLabelValues(action).Inc() }

// IncAdmissionRateLimited increments the rate-limited counter.
func IncAdmissionRateLimited(action string) {
	admissionRateLimitedTotal.WithLabelValues(action).Inc()
}

// IncVPNDetection increments the reputation-positive detection counter.
func IncVPNDetection() { vpnDetectionsTotal.Inc() }

// IncReputationError increments the failed-lookup counter.
func IncReputationError() { reputationErrorsTotal.Inc() }
