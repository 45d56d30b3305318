package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Store holds the Prometheus metrics collectors.
type Store struct {
	Registry                *prometheus.Registry // non-global registry
	Up                      prometheus.Gauge
	SecretLoadDuration      prometheus.Histogram
	SecretsLoadedTotal      *prometheus.CounterVec
	SecretLoadErrorsTotal   *prometheus.CounterVec
	CredentialPath          *prometheus.GaugeVec
	ProbeRequestsTotal      *prometheus.CounterVec
	ProbeDuration           prometheus.Histogram
	DBConnectionErrorsTotal prometheus.Counter
}

// NewStore creates and registers the collectors on a fresh registry.
func NewStore() *Store {
	registry := prometheus.NewRegistry()

	return &Store{
		Registry: registry,
		Up: promauto.With(registry).NewGauge(prometheus.GaugeOpts{
			Name: "kvprobe_up",
			Help: "Indicates if the kvprobe process is serving (1 = serving).",
		}),
		SecretLoadDuration: promauto.With(registry).NewHistogram(prometheus.HistogramOpts{
			Name:    "kvprobe_secret_load_duration_seconds",
			Help:    "Duration of the startup secret load phase.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		}),
		SecretsLoadedTotal: promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
			Name: "kvprobe_secrets_loaded_total",
			Help: "Number of secrets fetched and merged at startup, labeled by provider.",
		}, []string{"provider"}),
		SecretLoadErrorsTotal: promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
			Name: "kvprobe_secret_load_errors_total",
			Help: "Secret load failures, labeled by provider and reason.",
		}, []string{"provider", "reason"}),
		CredentialPath: promauto.With(registry).NewGaugeVec(prometheus.GaugeOpts{
			Name: "kvprobe_credential_path",
			Help: "Which credential path was resolved at startup (1 for the chosen mode).",
		}, []string{"mode"}),
		ProbeRequestsTotal: promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
			Name: "kvprobe_probe_requests_total",
			Help: "Connection probe requests, labeled by status (ok, db_error, config_error).",
		}, []string{"status"}),
		ProbeDuration: promauto.With(registry).NewHistogram(prometheus.HistogramOpts{
			Name:    "kvprobe_probe_duration_seconds",
			Help:    "Duration of connection probe requests.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
		}),
		DBConnectionErrorsTotal: promauto.With(registry).NewCounter(prometheus.CounterOpts{
			Name: "kvprobe_db_connection_errors_total",
			Help: "Database connection failures, including startup retries.",
		}),
	}
}
