// Sharpspring Lead Sync - Go client for the Sharpspring REST API
// Copyright 2026 Roderik Muit (rmuit)
// SPDX-License-Identifier: MIT
// https://github.com/rmuit/sharpspring-restapi

package sharpspring

import (
	"context"
	"errors"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/rmuit/sharpspring-restapi-sub000/internal/logging"
	"github.com/rmuit/sharpspring-restapi-sub000/internal/metrics"
)

// BreakerClient wraps a Client with a circuit breaker so a dead or
// degraded Sharpspring endpoint fails fast instead of stalling every
// sync pass behind full timeouts.
//
// The breaker uses real time for its interval and timeout windows; unit
// tests should exercise the wrapped client directly.
type BreakerClient struct {
	client *Client
	cb     *gobreaker.CircuitBreaker[any]
	name   string
}

var _ LeadAPI = (*BreakerClient)(nil)

// NewBreakerClient wraps client with circuit breaker protection.
// The circuit opens at a 60% failure rate over at least 10 requests in a
// one-minute window and probes again after two minutes.
func NewBreakerClient(client *Client) *BreakerClient {
	const cbName = "sharpspring-api"

	metrics.CircuitBreakerState.WithLabelValues(cbName).Set(0) // closed

	cb := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        cbName,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,

		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 10 {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			if failureRatio >= 0.6 {
				logging.Warn().
					Uint32("failures", counts.TotalFailures).
					Float64("failure_rate", failureRatio*100).
					Msg("opening circuit to Sharpspring API")
				return true
			}
			return false
		},

		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Info().
				Str("from", breakerStateString(from)).
				Str("to", breakerStateString(to)).
				Msg("Sharpspring circuit breaker state change")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(breakerStateFloat(to))
			metrics.CircuitBreakerTransitions.
				WithLabelValues(name, breakerStateString(from), breakerStateString(to)).Inc()
		},

		// Error classification: API-level, batch and object errors are
		// remote *decisions*, not remote *failures*; only transport and
		// protocol problems should count against the breaker.
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			var te *TransportError
			var fe *FormatError
			return !errors.As(err, &te) && !errors.As(err, &fe)
		},
	})

	return &BreakerClient{client: client, cb: cb, name: cbName}
}

// execute runs one API call through the breaker and records metrics.
func (b *BreakerClient) execute(fn func() (any, error)) (any, error) {
	result, err := b.cb.Execute(fn)
	switch {
	case err == nil:
		metrics.CircuitBreakerRequests.WithLabelValues(b.name, "success").Inc()
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.CircuitBreakerRequests.WithLabelValues(b.name, "rejected").Inc()
		logging.Warn().Err(err).Msg("Sharpspring request rejected by circuit breaker")
	default:
		metrics.CircuitBreakerRequests.WithLabelValues(b.name, "failure").Inc()
	}
	return result, err
}

func (b *BreakerClient) GetLead(ctx context.Context, id string) (Lead, error) {
	result, err := b.execute(func() (any, error) {
		return b.client.GetLead(ctx, id)
	})
	if err != nil {
		return nil, err
	}
	lead, _ := result.(Lead)
	return lead, nil
}

func (b *BreakerClient) GetLeads(ctx context.Context, where map[string]any, limit, offset int) ([]Lead, error) {
	result, err := b.execute(func() (any, error) {
		return b.client.GetLeads(ctx, where, limit, offset)
	})
	if err != nil {
		return nil, err
	}
	leads, _ := result.([]Lead)
	return leads, nil
}

func (b *BreakerClient) GetLeadsChangedSince(ctx context.Context, since time.Time, kind string, limit, offset int) ([]Lead, error) {
	result, err := b.execute(func() (any, error) {
		return b.client.GetLeadsChangedSince(ctx, since, kind, limit, offset)
	})
	if err != nil {
		return nil, err
	}
	leads, _ := result.([]Lead)
	return leads, nil
}

func (b *BreakerClient) CreateLeads(ctx context.Context, leads []Lead) ([]ObjectResult, error) {
	result, err := b.execute(func() (any, error) {
		return b.client.CreateLeads(ctx, leads)
	})
	if err != nil {
		return nil, err
	}
	results, _ := result.([]ObjectResult)
	return results, nil
}

func (b *BreakerClient) UpdateLeads(ctx context.Context, leads []Lead) ([]ObjectResult, error) {
	result, err := b.execute(func() (any, error) {
		return b.client.UpdateLeads(ctx, leads)
	})
	if err != nil {
		return nil, err
	}
	results, _ := result.([]ObjectResult)
	return results, nil
}

func (b *BreakerClient) DeleteLeads(ctx context.Context, ids []string) ([]ObjectResult, error) {
	result, err := b.execute(func() (any, error) {
		return b.client.DeleteLeads(ctx, ids)
	})
	if err != nil {
		return nil, err
	}
	results, _ := result.([]ObjectResult)
	return results, nil
}

func breakerStateString(s gobreaker.State) string {
	switch s {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

func breakerStateFloat(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}
