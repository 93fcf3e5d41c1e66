// Package telemetry exposes prometheus metrics for the discovery
// pipeline. Everything registers on the default registry served at
// /metrics.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ExchangesTotal counts completed chat exchanges by intent and outcome
	// (complete, short_circuit, no_matches, errored, streamed_error).
	ExchangesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "concierge_exchanges_total",
		Help: "Chat exchanges by intent and outcome.",
	}, []string{"intent", "outcome"})

	// ExchangeDuration observes end-to-end exchange latency.
	ExchangeDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "concierge_exchange_duration_seconds",
		Help:    "End-to-end chat exchange duration.",
		Buckets: prometheus.DefBuckets,
	})

	// ProviderFallbacks counts model backends skipped due to failure,
	// by pipeline stage and model name.
	ProviderFallbacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "concierge_provider_fallbacks_total",
		Help: "Model backend failures that triggered a fallback.",
	}, []string{"stage", "model"})

	// RetrievalFallbacks counts retrievals served by the keyword index
	// because the semantic providers were unavailable.
	RetrievalFallbacks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "concierge_retrieval_keyword_fallbacks_total",
		Help: "Retrievals served by the keyword fallback index.",
	})

	// IndexJobs counts background index sync jobs by kind and outcome.
	IndexJobs = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "concierge_index_jobs_total",
		Help: "Background vector index jobs by kind and outcome.",
	}, []string{"kind", "outcome"})
)
