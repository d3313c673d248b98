package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	DocumentsSaved = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "docsmith", Name: "documents_saved_total", Help: "Documents persisted, by operation and type."},
		[]string{"operation", "type"},
	)
	UniqueRetries = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "docsmith", Name: "unique_retries_total", Help: "Unique-constraint violations retried by the persistence engine, by document type."},
		[]string{"type"},
	)
	LocksAcquired = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: "docsmith", Name: "advisory_locks_acquired_total", Help: "Advisory locks acquired or refreshed."},
	)
	LockConflicts = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: "docsmith", Name: "advisory_lock_conflicts_total", Help: "Advisory lock acquisitions rejected by the conditional write."},
	)
	PreviewsStored = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: "docsmith", Name: "previews_stored_total", Help: "Patched preview documents written to the cache."},
	)
	PreviewHits = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: "docsmith", Name: "preview_hits_total", Help: "Render-path lookups served from the preview cache."},
	)
	RateLimitAllowed = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "docsmith", Name: "rate_limit_allowed_total", Help: "Number of allowed requests by limiter type."},
		[]string{"limiter"},
	)
	RateLimitRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "docsmith", Name: "rate_limit_rejected_total", Help: "Number of rejected requests by limiter type."},
		[]string{"limiter"},
	)
)

func RegisterCollectors(reg prometheus.Registerer) {
	reg.MustRegister(DocumentsSaved)
	reg.MustRegister(UniqueRetries)
	reg.MustRegister(LocksAcquired)
	reg.MustRegister(LockConflicts)
	reg.MustRegister(PreviewsStored)
	reg.MustRegister(PreviewHits)
	reg.MustRegister(RateLimitAllowed)
	reg.MustRegister(RateLimitRejected)
}
