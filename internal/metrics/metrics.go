// Package metrics exposes Prometheus collectors for the journal and backups.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "workbook"

// Registry holds every workbook collector plus the Go and process collectors.
var Registry = prometheus.NewRegistry()

var factory = promauto.With(Registry)

var (
	Mutations = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "mutations_total",
		Help:      "Applied section mutations by operation.",
	}, []string{"section", "op"})

	Rejected = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "rejected_mutations_total",
		Help:      "Mutations ignored because input was invalid or the target was missing.",
	}, []string{"section", "op"})

	// SaveFailures counts writes that were dropped. The in-memory collection
	// stays authoritative when this increments.
	SaveFailures = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "save_failures_total",
		Help:      "Collection writes that failed and were discarded.",
	}, []string{"section"})

	CorruptSlots = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "corrupt_slots_total",
		Help:      "Slots that could not be parsed and were loaded as empty.",
	}, []string{"section"})

	DroppedRecords = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "dropped_records_total",
		Help:      "Stored records that could not be migrated and were skipped.",
	}, []string{"section"})

	Records = factory.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "records",
		Help:      "Records currently held per section.",
	}, []string{"section"})

	BackupJobs = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "backup_jobs_total",
		Help:      "Processed backup jobs by outcome.",
	}, []string{"outcome"})

	BackupDuration = factory.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "backup_duration_seconds",
		Help:      "Time spent writing a snapshot to its sink.",
		Buckets:   prometheus.DefBuckets,
	})
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

// Handler serves the registry in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}
