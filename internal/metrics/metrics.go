// Sharpspring Lead Sync - Go client for the Sharpspring REST API
// Copyright 2026 Roderik Muit (rmuit)
// SPDX-License-Identifier: MIT
// https://github.com/rmuit/sharpspring-restapi

// Package metrics exposes Prometheus instrumentation for the lead sync
// daemon: Sharpspring API call latency and errors, circuit breaker state,
// cache efficiency, and per-action reconciliation counts.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// APICallDuration tracks the latency of Sharpspring REST calls.
	APICallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sharpspring_api_call_duration_seconds",
			Help:    "Duration of Sharpspring API calls in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	// APICallErrors counts failed Sharpspring REST calls by error class.
	APICallErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sharpspring_api_call_errors_total",
			Help: "Total number of failed Sharpspring API calls",
		},
		[]string{"method", "error_type"}, // transport, format, api, batch
	)

	// CircuitBreakerState reports the current breaker state
	// (0 = closed, 1 = half-open, 2 = open).
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "sharpspring_circuit_breaker_state",
			Help: "Current circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	// CircuitBreakerTransitions counts breaker state changes.
	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sharpspring_circuit_breaker_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from", "to"},
	)

	// CircuitBreakerRequests counts requests through the breaker by outcome.
	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sharpspring_circuit_breaker_requests_total",
			Help: "Total number of requests through the circuit breaker",
		},
		[]string{"name", "outcome"}, // success, failure, rejected
	)

	// CacheLookups counts lead cache lookups by key kind and outcome.
	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leadsync_cache_lookups_total",
			Help: "Total number of lead cache lookups",
		},
		[]string{"key", "outcome"}, // key: id|email|foreign_key, outcome: hit|miss|remote
	)

	// CacheLeads reports the number of leads currently indexed.
	CacheLeads = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "leadsync_cache_leads",
			Help: "Number of leads currently held in the cache indexes",
		},
	)

	// SyncActions counts reconciliation outcomes per action code.
	SyncActions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leadsync_actions_total",
			Help: "Total number of candidates per reconciliation action",
		},
		[]string{"action"},
	)

	// SyncRunDuration tracks the duration of complete reconciliation passes.
	SyncRunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "leadsync_run_duration_seconds",
			Help:    "Duration of reconciliation passes in seconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300, 900},
		},
	)

	// SyncRunErrors counts aborted reconciliation passes.
	SyncRunErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "leadsync_run_errors_total",
			Help: "Total number of reconciliation passes aborted by a fatal error",
		},
	)
)
