// Package telemetry exposes the prometheus collectors shared by the pipeline.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SessionsTotal counts finished research sessions by terminal state.
	SessionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "researchd",
		Name:      "sessions_total",
		Help:      "Research sessions by terminal state.",
	}, []string{"state"})

	// SessionDuration observes wall-clock time per completed session.
	SessionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "researchd",
		Name:      "session_duration_seconds",
		Help:      "Research session duration.",
		Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
	})

	// FetchesTotal counts retrieval attempts by source type and outcome.
	FetchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "researchd",
		Name:      "fetches_total",
		Help:      "Retrieval fetches by source type and outcome.",
	}, []string{"source", "outcome"})

	// LLMRequestsTotal counts LLM calls by purpose and outcome.
	LLMRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "researchd",
		Name:      "llm_requests_total",
		Help:      "LLM calls by purpose and outcome.",
	}, []string{"purpose", "outcome"})

	// ChunksIndexed counts chunks upserted into the vector store.
	ChunksIndexed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "researchd",
		Name:      "chunks_indexed_total",
		Help:      "Chunks upserted into the vector store.",
	})
)

// Outcome labels for the *Total counters.
const (
	OutcomeOK      = "ok"
	OutcomeError   = "error"
	OutcomeDropped = "dropped"
)
