package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CommandsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "npds_commands_total",
			Help: "Total number of protocol commands processed",
		},
		[]string{"command", "code"},
	)

	ConnectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "npds_connections_total",
			Help: "Total number of accepted client connections",
		},
		[]string{"port"},
	)

	RegisteredHosts = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "npds_registered_hosts",
			Help: "Number of records in the registry",
		},
		[]string{"origin"},
	)

	ProbesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "npds_probes_total",
			Help: "Total number of health check probes",
		},
		[]string{"result"},
	)

	ProbeDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "npds_probe_duration_seconds",
			Help:    "Duration of health check probes in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	ValidationPassDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "npds_validation_pass_duration_seconds",
			Help:    "Duration of validation passes in seconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300},
		},
	)

	EvictionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "npds_evictions_total",
			Help: "Total number of records removed by validation passes",
		},
		[]string{"reason"},
	)

	FederationFetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "npds_federation_fetches_total",
			Help: "Total number of SHARE fetches from peer trackers",
		},
		[]string{"status"},
	)

	FederatedRecordsImported = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "npds_federated_records_imported_total",
			Help: "Total number of records imported from peer trackers",
		},
	)

	PersistErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "npds_persist_errors_total",
			Help: "Total number of failed command log saves",
		},
		[]string{"sink"},
	)
)

// Origin labels for RegisteredHosts.
const (
	OriginLocal     = "local"
	OriginFederated = "federated"
)
