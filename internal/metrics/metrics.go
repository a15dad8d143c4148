// Package metrics holds the deployment manager's Prometheus metrics,
// registered through promauto the same way the teacher's storage layer
// registers its own (see internal/storage/metrics.go).
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "deployment_manager"

var (
	CheckinsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "checkins_total",
		Help:      "Total number of agent check-ins received, by outcome.",
	}, []string{"outcome"})

	UpdateResultsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "update_results_total",
		Help:      "Total number of update result reports received, by status.",
	}, []string{"status"})

	ArtifactDownloadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "artifact_downloads_total",
		Help:      "Total number of artifact download requests, by outcome.",
	}, []string{"outcome"})

	ArtifactUploadBytes = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "artifact_upload_bytes",
		Help:      "Size in bytes of uploaded version artifacts.",
		Buckets:   prometheus.ExponentialBuckets(1<<20, 2, 10), // 1MiB .. 512MiB
	})

	ClientsOnline = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "clients_online",
		Help:      "Number of clients whose last check-in reported status online.",
	})

	DeploymentsInProgress = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "deployments_in_progress",
		Help:      "Number of update logs currently in a non-terminal state.",
	})
)
