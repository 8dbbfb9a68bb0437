// Package metrics exposes Prometheus collectors for the crawler.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	pagesTotal       *prometheus.CounterVec
	rateLimitedTotal *prometheus.CounterVec
	pausesTotal      *prometheus.CounterVec
	sessionsFinished *prometheus.CounterVec
	frontierDepth    *prometheus.GaugeVec
	historyDeletes   prometheus.Counter
	exportFailures   prometheus.Counter

	once sync.Once
)

// Init registers the collectors on the default registry. Safe to call more
// than once; helpers are no-ops until it runs.
func Init() {
	once.Do(func() {
		pagesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sitecrawler_pages_total",
				Help: "Pages attempted and removed from the frontier, by root and outcome.",
			},
			[]string{"root", "outcome"},
		)
		rateLimitedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sitecrawler_rate_limited_total",
				Help: "Fetches rejected by the collaborator's rate limits, by root.",
			},
			[]string{"root"},
		)
		pausesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sitecrawler_batch_pauses_total",
				Help: "Inter-batch pauses entered, by root.",
			},
			[]string{"root"},
		)
		sessionsFinished = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sitecrawler_sessions_finished_total",
				Help: "Crawl sessions that reached the finished state, by root.",
			},
			[]string{"root"},
		)
		frontierDepth = promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "sitecrawler_frontier_depth",
				Help: "URLs awaiting processing in the active session's frontier.",
			},
			[]string{"root"},
		)
		historyDeletes = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "sitecrawler_history_deletes_total",
				Help: "User-driven history prunes.",
			},
		)
		exportFailures = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "sitecrawler_export_failures_total",
				Help: "Page result exports that failed (never fatal to the crawl).",
			},
		)
	})
}

// PageCrawled counts one consumed frontier pop. Outcome is "success" or
// "failure".
func PageCrawled(root, outcome string) {
	if pagesTotal != nil {
		pagesTotal.WithLabelValues(root, outcome).Inc()
	}
}

// RateLimited counts a backed-off, retried fetch.
func RateLimited(root string) {
	if rateLimitedTotal != nil {
		rateLimitedTotal.WithLabelValues(root).Inc()
	}
}

// PauseEntered counts an inter-batch pause.
func PauseEntered(root string) {
	if pausesTotal != nil {
		pausesTotal.WithLabelValues(root).Inc()
	}
}

// SessionFinished counts a terminated session.
func SessionFinished(root string) {
	if sessionsFinished != nil {
		sessionsFinished.WithLabelValues(root).Inc()
	}
}

// SetQueueDepth records the current frontier length.
func SetQueueDepth(root string, depth int) {
	if frontierDepth != nil {
		frontierDepth.WithLabelValues(root).Set(float64(depth))
	}
}

// HistoryDeleted counts a history prune.
func HistoryDeleted() {
	if historyDeletes != nil {
		historyDeletes.Inc()
	}
}

// ExportFailed counts a failed result export.
func ExportFailed() {
	if exportFailures != nil {
		exportFailures.Inc()
	}
}
