package ingest

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// batchesTotal counts finished batches by kind and outcome.
	batchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_ingest_batches_total",
		Help: "Total ingestion batches by kind and outcome",
	}, []string{"kind", "outcome"})

	// rowsTotal counts rows by kind and result (saved, rejected).
	rowsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_ingest_rows_total",
		Help: "Total ingested rows by kind and result",
	}, []string{"kind", "result"})

	batchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "catalog_ingest_batch_duration_seconds",
		Help:    "Ingestion batch duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~10s
	}, []string{"kind"})

	// linksTotal counts linker outcomes by source kind.
	linksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_ingest_links_total",
		Help: "Total cross-catalog link attempts by source kind and outcome",
	}, []string{"kind", "outcome"})
)

func observeBatch(res *BatchResult) {
	kind := string(res.Kind)
	batchesTotal.WithLabelValues(kind, string(res.Outcome())).Inc()
	rowsTotal.WithLabelValues(kind, "saved").Add(float64(res.SuccessCount))
	rowsTotal.WithLabelValues(kind, "rejected").Add(float64(rejectedRows(res.Errors)))
	batchDuration.WithLabelValues(kind).Observe(res.ProcessingTime.Seconds())
}

// rejectedRows counts distinct rows referenced by error diagnostics.
func rejectedRows(errs []Diagnostic) int {
	seen := make(map[int]struct{})
	for _, d := range errs {
		for _, r := range d.RowNumbers() {
			seen[r] = struct{}{}
		}
	}
	return len(seen)
}
