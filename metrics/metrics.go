// Package metrics exposes Prometheus collectors for extraction jobs and the
// HTTP server.
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/tsawler/intelliparse"
)

// Status label values for files_total.
const (
	StatusOK      = "ok"
	StatusPartial = "partial"
	StatusFailed  = "failed"
	StatusCached  = "cached"
)

// Metrics holds the collectors. It implements intelliparse.Observer.
type Metrics struct {
	files        *prometheus.CounterVec
	duration     *prometheus.HistogramVec
	warnings     *prometheus.CounterVec
	aiCalls      prometheus.Counter
	ocrCalls     prometheus.Counter
	requestCount *prometheus.CounterVec
	requestTime  *prometheus.HistogramVec
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		files: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "intelliparse",
				Name:      "files_total",
				Help:      "Files extracted, by detected format and outcome.",
			},
			[]string{"format", "status"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "intelliparse",
				Name:      "extraction_duration_seconds",
				Help:      "Time spent extracting one file.",
				Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120, 300},
			},
			[]string{"format"},
		),
		warnings: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "intelliparse",
				Name:      "warnings_total",
				Help:      "Non-fatal extraction problems, by pipeline stage.",
			},
			[]string{"stage"},
		),
		aiCalls: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "intelliparse",
			Name:      "ai_calls_total",
			Help:      "Calls made to the AI model.",
		}),
		ocrCalls: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "intelliparse",
			Name:      "ocr_calls_total",
			Help:      "Images sent to the OCR engine.",
		}),
		requestCount: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests processed.",
			},
			[]string{"method", "path", "status"},
		),
		requestTime: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
	}

	for _, c := range []prometheus.Collector{
		m.files, m.duration, m.warnings, m.aiCalls, m.ocrCalls, m.requestCount, m.requestTime,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Observe records one finished extraction.
func (m *Metrics) Observe(r *intelliparse.ExtractionResult) {
	if m == nil || r == nil {
		return
	}
	f := r.Format.String()
	m.files.WithLabelValues(f, status(r)).Inc()
	if !r.Job.CacheHit {
		m.duration.WithLabelValues(f).Observe(r.Job.Duration.Seconds())
	}
	for _, w := range r.Warnings {
		m.warnings.WithLabelValues(string(w.Stage)).Inc()
	}
	m.aiCalls.Add(float64(r.Job.AICalls))
	m.ocrCalls.Add(float64(r.Job.OCRCalls))
}

func status(r *intelliparse.ExtractionResult) string {
	switch {
	case r.Err != nil:
		return StatusFailed
	case r.Job.CacheHit:
		return StatusCached
	case r.Partial():
		return StatusPartial
	}
	return StatusOK
}

// Handler returns gin middleware counting requests by route pattern.
// Requests for /metrics are not counted.
func (m *Metrics) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.URL.Path == "/metrics" {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		// route pattern, e.g. /v1/jobs/:id rather than /v1/jobs/123
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		m.requestCount.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
		m.requestTime.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}
