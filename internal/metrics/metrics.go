// Package metrics exposes Prometheus instrumentation for the client cache,
// secret resolution, key sanitization and transfers.
//
// Metrics are registered lazily on the default registry by Init. Until then
// every Record call is a no-op, so packages can record unconditionally.
package metrics

import (
	"sync"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	clientCacheRequests      *prometheus.CounterVec
	clientConstructions      *prometheus.CounterVec
	secretResolutions        *prometheus.CounterVec
	keySanitizations         *prometheus.CounterVec
	transfersTotal           *prometheus.CounterVec
	transferDuration         *prometheus.HistogramVec
	transferCredentialIssues *prometheus.CounterVec

	metricsOnce       sync.Once
	metricsRegistered atomic.Bool
)

// Init registers all collectors. Safe to call repeatedly.
func Init() {
	metricsOnce.Do(func() {
		clientCacheRequests = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "s3xfer_client_cache_requests_total",
				Help: "Client cache lookups by client kind and result (hit or miss)",
			},
			[]string{"kind", "result"},
		)

		clientConstructions = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "s3xfer_client_constructions_total",
				Help: "Storage clients constructed by kind and scope",
			},
			[]string{"kind", "scope"},
		)

		secretResolutions = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "s3xfer_secret_resolutions_total",
				Help: "Secret token resolutions by outcome and credential kind",
			},
			[]string{"outcome", "credential"},
		)

		keySanitizations = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "s3xfer_key_sanitizations_total",
				Help: "Secret key names rewritten by the sanitizer",
			},
			[]string{"profile"},
		)

		transfersTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "s3xfer_transfers_total",
				Help: "Transfers executed by strategy and status",
			},
			[]string{"strategy", "status"},
		)

		transferDuration = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "s3xfer_transfer_duration_seconds",
				Help:    "Duration of transfers in seconds",
				Buckets: []float64{0.1, 0.5, 1, 5, 30, 120, 600},
			},
			[]string{"strategy"},
		)

		transferCredentialIssues = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "s3xfer_transfer_credentials_issued_total",
				Help: "Temporary credentials issued for direct copy, by status",
			},
			[]string{"status"},
		)

		metricsRegistered.Store(true)
	})
}

// Registered reports whether Init has run.
func Registered() bool {
	return metricsRegistered.Load()
}

// RecordCacheLookup records a client cache hit or miss.
func RecordCacheLookup(kind string, hit bool) {
	if !metricsRegistered.Load() {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	clientCacheRequests.WithLabelValues(kind, result).Inc()
}

// RecordClientConstruction records a client build. scope is "shared" or
// "credential".
func RecordClientConstruction(kind, scope string) {
	if !metricsRegistered.Load() {
		return
	}
	clientConstructions.WithLabelValues(kind, scope).Inc()
}

// RecordSecretResolution records the outcome of a token resolution.
func RecordSecretResolution(outcome, credentialKind string) {
	if !metricsRegistered.Load() {
		return
	}
	secretResolutions.WithLabelValues(outcome, credentialKind).Inc()
}

// RecordSanitization records a key rewritten under the given profile.
func RecordSanitization(profile string) {
	if !metricsRegistered.Load() {
		return
	}
	keySanitizations.WithLabelValues(profile).Inc()
}

// RecordTransfer records a finished transfer.
func RecordTransfer(strategy, status string, durationSeconds float64) {
	if !metricsRegistered.Load() {
		return
	}
	transfersTotal.WithLabelValues(strategy, status).Inc()
	transferDuration.WithLabelValues(strategy).Observe(durationSeconds)
}

// RecordCredentialIssue records an STS issuing attempt.
func RecordCredentialIssue(status string) {
	if !metricsRegistered.Load() {
		return
	}
	transferCredentialIssues.WithLabelValues(status).Inc()
}

// ClientCacheRequests returns the cache lookup counter for testing.
func ClientCacheRequests() *prometheus.CounterVec {
	return clientCacheRequests
}

// ClientConstructions returns the construction counter for testing.
func ClientConstructions() *prometheus.CounterVec {
	return clientConstructions
}

// SecretResolutions returns the resolution counter for testing.
func SecretResolutions() *prometheus.CounterVec {
	return secretResolutions
}

// KeySanitizations returns the sanitization counter for testing.
func KeySanitizations() *prometheus.CounterVec {
	return keySanitizations
}

// Transfers returns the transfer counter for testing.
func Transfers() *prometheus.CounterVec {
	return transfersTotal
}
