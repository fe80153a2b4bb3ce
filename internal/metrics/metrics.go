// Package metrics collects Prometheus metrics for the API and the worker.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder is what services and middleware report to.
type Recorder interface {
	RecordFollow(created bool)
	RecordUnfollow()
	RecordFeedRead(posts int)
	RecordPermissionDenied(resource, capability string)
	RecordHTTPStatus(statusCode int)
	RecordHTTPLatency(duration time.Duration)
	RecordEventProcessed(eventType string, ok bool)
}

// Collector is the Prometheus Recorder.
type Collector struct {
	follows          *prometheus.CounterVec
	unfollows        prometheus.Counter
	feedReads        prometheus.Counter
	feedPosts        prometheus.Histogram
	permissionDenied *prometheus.CounterVec
	httpStatus       *prometheus.CounterVec
	httpLatency      prometheus.Histogram
	events           *prometheus.CounterVec
}

// NewCollector registers every metric on reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		follows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "socialapi_follows_total",
			Help: "Follow requests, by whether a new edge was created.",
		}, []string{"created"}),
		unfollows: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "socialapi_unfollows_total",
			Help: "Unfollow requests.",
		}),
		feedReads: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "socialapi_feed_reads_total",
			Help: "Feed pages served.",
		}),
		feedPosts: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "socialapi_feed_page_posts",
			Help:    "Posts per served feed page.",
			Buckets: []float64{0, 1, 5, 10, 25, 50, 100},
		}),
		permissionDenied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "socialapi_permission_denied_total",
			Help: "Authorization failures by resource and capability.",
		}, []string{"resource", "capability"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "socialapi_http_status_total",
			Help: "HTTP responses by status code.",
		}, []string{"status_code"}),
		httpLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "socialapi_http_latency_seconds",
			Help:    "HTTP request latency in seconds.",
			Buckets: prometheus.DefBuckets,
		}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "socialapi_events_processed_total",
			Help: "Activity events turned into notifications.",
		}, []string{"type", "result"}),
	}

	reg.MustRegister(
		c.follows,
		c.unfollows,
		c.feedReads,
		c.feedPosts,
		c.permissionDenied,
		c.httpStatus,
		c.httpLatency,
		c.events,
	)
	return c
}

func (c *Collector) RecordFollow(created bool) {
	c.follows.WithLabelValues(strconv.FormatBool(created)).Inc()
}

func (c *Collector) RecordUnfollow() { c.unfollows.Inc() }

func (c *Collector) RecordFeedRead(posts int) {
	c.feedReads.Inc()
	c.feedPosts.Observe(float64(posts))
}

func (c *Collector) RecordPermissionDenied(resource, capability string) {
	c.permissionDenied.WithLabelValues(resource, capability).Inc()
}

func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

func (c *Collector) RecordHTTPLatency(duration time.Duration) {
	c.httpLatency.Observe(duration.Seconds())
}

func (c *Collector) RecordEventProcessed(eventType string, ok bool) {
	result := "ok"
	if !ok {
		result = "error"
	}
	c.events.WithLabelValues(eventType, result).Inc()
}

// Handler returns the scrape handler for gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Nop discards everything.
type Nop struct{}

func (Nop) RecordFollow(bool) {}
func (Nop) RecordUnfollow() {}
func (Nop) RecordFeedRead(int) {}
func (Nop) RecordPermissionDenied(string, string) {}
func (Nop) RecordHTTPStatus(int) {}
func (Nop) RecordHTTPLatency(time.Duration) {}
func (Nop) RecordEventProcessed(string, bool) {}
