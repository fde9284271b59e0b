package scrape

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for the scraper.
type Metrics struct {
	Registry            *prometheus.Registry
	RequestsTotal       *prometheus.CounterVec
	RequestDuration     prometheus.Histogram
	CoursesScrapedTotal prometheus.Counter
	LessonsScrapedTotal prometheus.Counter
	ScrapeFailuresTotal *prometheus.CounterVec
}

// NewMetrics constructs and registers all metrics on a dedicated registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	requests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "backup_requests_total",
			Help: "Total HTTP requests issued against the admin host.",
		},
		[]string{"phase"},
	)
	requestDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "backup_request_duration_seconds",
			Help:    "HTTP request latency for admin host requests.",
			Buckets: prometheus.DefBuckets,
		},
	)
	coursesScraped := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "backup_courses_scraped_total",
			Help: "Total number of course details scraped successfully.",
		},
	)
	lessonsScraped := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "backup_lessons_scraped_total",
			Help: "Total number of lesson detail pages scraped.",
		},
	)
	scrapeFailures := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "backup_scrape_failures_total",
			Help: "Total number of per-course scrape failures by phase.",
		},
		[]string{"phase"},
	)

	registry.MustRegister(requests, requestDuration, coursesScraped, lessonsScraped, scrapeFailures)

	return &Metrics{
		Registry:            registry,
		RequestsTotal:       requests,
		RequestDuration:     requestDuration,
		CoursesScrapedTotal: coursesScraped,
		LessonsScrapedTotal: lessonsScraped,
		ScrapeFailuresTotal: scrapeFailures,
	}
}

// IncRequest increments the requests total counter for a phase.
func (m *Metrics) IncRequest(phase string) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(phase).Inc()
}

// ObserveDuration records an HTTP request duration.
func (m *Metrics) ObserveDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.RequestDuration.Observe(d.Seconds())
}

// IncCourse increments the scraped courses counter.
func (m *Metrics) IncCourse() {
	if m == nil {
		return
	}
	m.CoursesScrapedTotal.Inc()
}

// IncLesson increments the scraped lessons counter.
func (m *Metrics) IncLesson() {
	if m == nil {
		return
	}
	m.LessonsScrapedTotal.Inc()
}

// IncFailure increments the scrape failures counter for a phase.
func (m *Metrics) IncFailure(phase string) {
	if m == nil {
		return
	}
	m.ScrapeFailuresTotal.WithLabelValues(phase).Inc()
}
