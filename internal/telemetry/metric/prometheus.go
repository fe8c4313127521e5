// Package metric provides Prometheus metrics for Nebula Tower.
package metric

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "tower"

// Counter is a cumulative metric that only increases.
type Counter interface {
	Inc()
	Add(float64)
}

// CounterVec is a Counter with labels.
type CounterVec interface {
	WithLabelValues(lvs ...string) Counter
}

// Gauge is a metric that can go up and down.
type Gauge interface {
	Set(float64)
	Inc()
	Dec()
	Add(float64)
	Sub(float64)
}

// Histogram samples observations and counts them in buckets.
type Histogram interface {
	Observe(float64)
}

// HistogramVec is a Histogram with labels.
type HistogramVec interface {
	WithLabelValues(lvs ...string) Histogram
}

// Registry holds all application metrics.
type Registry struct {
	// Issuance metrics
	CertsIssued Counter
	CARotations Counter

	// Invite metrics
	InvitesGenerated Counter
	InvitesRedeemed  Counter
	InviteFailures   CounterVec // label: reason

	// Request metrics
	RequestsTotal   CounterVec   // labels: method, route, status
	RequestDuration HistogramVec // labels: method, route

	prom *prometheus.Registry
}

// NewRegistry creates a new metrics registry with every application
// metric registered, plus the standard Go and process collectors.
func NewRegistry() *Registry {
	prom := prometheus.NewRegistry()
	prom.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	certsIssued := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "certs_issued_total",
		Help:      "Host certificates issued (create, renew, enroll)",
	})
	caRotations := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "ca_rotations_total",
		Help:      "Certificate authority rotations",
	})
	invitesGenerated := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "invites_generated_total",
		Help:      "Invite codes generated",
	})
	invitesRedeemed := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "invites_redeemed_total",
		Help:      "Successful invite redemptions",
	})
	inviteFailures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "invite_failures_total",
		Help:      "Failed invite redemptions by reason",
	}, []string{"reason"})
	requestsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests by method, route, and status",
	}, []string{"method", "route", "status"})
	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency by method and route",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})

	prom.MustRegister(
		certsIssued,
		caRotations,
		invitesGenerated,
		invitesRedeemed,
		inviteFailures,
		requestsTotal,
		requestDuration,
	)

	return &Registry{
		CertsIssued:      certsIssued,
		CARotations:      caRotations,
		InvitesGenerated: invitesGenerated,
		InvitesRedeemed:  invitesRedeemed,
		InviteFailures:   counterVec{inviteFailures},
		RequestsTotal:    counterVec{requestsTotal},
		RequestDuration:  histogramVec{requestDuration},
		prom:             prom,
	}
}

// Prometheus exposes the underlying registry for additional
// registrations (store size gauges, custom collectors).
func (r *Registry) Prometheus() *prometheus.Registry {
	return r.prom
}

// Handler returns the HTTP handler for the /metrics endpoint.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.prom, promhttp.HandlerOpts{})
}

// counterVec adapts prometheus.CounterVec to the CounterVec interface.
type counterVec struct {
	vec *prometheus.CounterVec
}

func (v counterVec) WithLabelValues(lvs ...string) Counter {
	return v.vec.WithLabelValues(lvs...)
}

// histogramVec adapts prometheus.HistogramVec to the HistogramVec interface.
type histogramVec struct {
	vec *prometheus.HistogramVec
}

func (v histogramVec) WithLabelValues(lvs ...string) Histogram {
	return v.vec.WithLabelValues(lvs...)
}
