// Package metrics exposes Prometheus instrumentation for the store and the
// admin API.
//
// Wire it up once where the fiber app is built:
//
//	app.Use(metrics.Middleware())
//	app.Get("/metrics", metrics.Handler())
package metrics

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	applog "shopfront/internal/log"
)

var (
	// StoreOps counts store operations by entity, operation and outcome
	// (ok, not_found, constraint_violation, reference_error,
	// validation_error, error).
	StoreOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "shopfront",
			Subsystem: "store",
			Name:      "operations_total",
			Help:      "Store operations by entity, operation and result.",
		},
		[]string{"entity", "op", "result"},
	)

	// RequestDuration tracks admin API latency by method, route and status.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "shopfront",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)

	registry = prometheus.NewRegistry()
)

func init() {
	registry.MustRegister(
		StoreOps,
		RequestDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

// Registry is the registry every shopfront metric lives in.
func Registry() *prometheus.Registry { return registry }

// ObserveStore counts one store call.
func ObserveStore(entity, op, result string) {
	StoreOps.WithLabelValues(entity, op, result).Inc()
}

// Middleware records request latency per matched route and leaves the start
// time in Locals for the log lines written while handling the request.
func Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		c.Locals(applog.StartKey, start)
		err := c.Next()
		status := c.Response().StatusCode()
		if fe, ok := err.(*fiber.Error); ok {
			status = fe.Code
		}
		route := c.Route().Path
		RequestDuration.WithLabelValues(c.Method(), route, strconv.Itoa(status)).
			Observe(time.Since(start).Seconds())
		return err
	}
}

// Handler serves the registry in the Prometheus text format.
func Handler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
}
