// Package metrics holds the Prometheus collectors shared by the transport,
// the hub and the store.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/jason-s-yu/shootingstars/internal/store"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	MethodCalls = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "shootingstars_method_calls_total",
		Help: "Method calls by method name and outcome kind.",
	}, []string{"method", "outcome"})

	MethodDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "shootingstars_method_duration_seconds",
		Help:    "Method call latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method"})

	ActiveSessions = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "shootingstars_sync_sessions",
		Help: "Connected sync sessions.",
	})

	ActiveSubscriptions = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "shootingstars_sync_subscriptions",
		Help: "Live subscriptions by publication.",
	}, []string{"publication"})

	DroppedSessions = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "shootingstars_sync_dropped_sessions_total",
		Help: "Sessions closed because they could not keep up with changes.",
	})

	RateLimited = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "shootingstars_rate_limited_total",
		Help: "Requests rejected by the rate limiter by method or publication.",
	}, []string{"name"})

	Commits = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "shootingstars_store_commits_total",
		Help: "Committed record writes by collection.",
	}, []string{"collection"})

	HTTPRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "shootingstars_http_requests_total",
		Help: "HTTP requests by method, route and status.",
	}, []string{"method", "route", "status"})

	HTTPDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "shootingstars_http_request_duration_seconds",
		Help:    "HTTP request latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})
)

func collectors() []prometheus.Collector {
	return []prometheus.Collector{
		MethodCalls, MethodDuration,
		ActiveSessions, ActiveSubscriptions, DroppedSessions,
		RateLimited, Commits,
		HTTPRequests, HTTPDuration,
	}
}

// Register registers every collector on reg, or the default registerer when reg
// is nil, and returns the handler serving /metrics.
func Register(reg prometheus.Registerer) (http.Handler, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	for _, c := range collectors() {
		if err := registerCollector(reg, c); err != nil {
			return nil, err
		}
	}
	if g, ok := reg.(prometheus.Gatherer); ok {
		return promhttp.HandlerFor(g, promhttp.HandlerOpts{}), nil
	}
	return promhttp.Handler(), nil
}

// registerCollector registers collector on reg, ignoring duplicates.
func registerCollector(reg prometheus.Registerer, collector prometheus.Collector) error {
	if err := reg.Register(collector); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			return nil
		}
		return err
	}
	return nil
}

// ObserveMethod records one method call.
func ObserveMethod(method, outcome string, took time.Duration) {
	MethodCalls.WithLabelValues(method, outcome).Inc()
	MethodDuration.WithLabelValues(method).Observe(took.Seconds())
}

// CommitCounter counts committed writes per collection.
func CommitCounter() store.Notifier {
	return store.NotifierFunc(func(_ context.Context, ch store.Change) {
		Commits.WithLabelValues(ch.Collection).Inc()
	})
}
