package monitoring

import (
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: []float64{0.1, 0.5, 1, 2, 5},
		},
		[]string{"method", "endpoint"},
	)

	StageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pipeline_stage_duration_seconds",
			Help:    "Duration of answer pipeline stages",
			Buckets: []float64{0.05, 0.25, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"stage", "outcome"},
	)

	SchemaViolations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "generator_schema_violations_total",
			Help: "Generative responses rejected by schema validation",
		},
		[]string{"schema"},
	)

	ExtractionFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "gesture_extraction_failures_total",
			Help: "Frame extraction failures absorbed as neutral samples",
		},
	)

	ReportsRendered = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reports_rendered_total",
			Help: "PDF report renders by outcome",
		},
		[]string{"outcome"},
	)
)

var registerOnce sync.Once

func Init() {
	registerOnce.Do(func() {
		prometheus.MustRegister(RequestCounter)
		prometheus.MustRegister(RequestDuration)
		prometheus.MustRegister(StageDuration)
		prometheus.MustRegister(SchemaViolations)
		prometheus.MustRegister(ExtractionFailures)
		prometheus.MustRegister(ReportsRendered)
	})
}

// ObserveStage records how long a pipeline stage took since start.
func ObserveStage(stage string, start time.Time, err error) {
	StageDuration.WithLabelValues(stage, Outcome(err)).Observe(time.Since(start).Seconds())
}

func Outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		duration := time.Since(start).Seconds()
		status := c.Writer.Status()

		RequestCounter.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			strconv.Itoa(status),
		).Inc()

		RequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
		).Observe(duration)
	}
}

func PrometheusHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
