package kafka

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "market_events"

var (
	// result is "ok" or "error".
	eventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "published_total",
		Help:      "Domain events handed to Kafka, by topic and result.",
	}, []string{"topic", "result"})

	publishDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Name:      "publish_duration_seconds",
		Help:      "Time spent writing one event to Kafka.",
		Buckets:   []float64{.001, .005, .01, .05, .1, .25, .5, 1, 5},
	}, []string{"topic"})

	// outcome is one of ok, duplicate, malformed, dropped.
	eventsConsumed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "consumed_total",
		Help:      "Domain events read from Kafka, by topic, group and outcome.",
	}, []string{"topic", "consumer_group", "outcome"})

	handleDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Name:      "handle_duration_seconds",
		Help:      "Time spent handling one consumed event, retries included.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"topic", "consumer_group"})
)
