// Sharpspring Lead Sync - Go client for the Sharpspring REST API
// Copyright 2026 Roderik Muit (rmuit)
// SPDX-License-Identifier: MIT
// https://github.com/rmuit/sharpspring-restapi

/*
client.go - Core Sharpspring API client

HTTP communication layer for the Sharpspring REST API ("pubapi"). All
calls are JSON-RPC-like POSTs to one fixed endpoint, authenticated by
accountID/secretKey query parameters.

Client features:
  - per-call request id (UUID) echoed and verified in the response
  - mandatory HTML-entity sanitization of every response string
  - automatic HTTP 429 handling with exponential backoff and Retry-After
  - client-side request throttling (golang.org/x/time/rate)
  - context support on every operation

Related files:
  - envelope.go: request/response envelope codec
  - classify.go: result/error classification
  - breaker.go:  circuit breaker wrapper
*/
package sharpspring

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/rmuit/sharpspring-restapi-sub000/internal/config"
	"github.com/rmuit/sharpspring-restapi-sub000/internal/metrics"
)

// MaxPageSize is the largest page the remote system returns for lead
// queries. Requests with a larger limit are silently capped remotely,
// so paging loops must treat a full page of this size as "maybe more".
const MaxPageSize = 500

// maxErrorBodySize caps how much of an error response body is read for
// diagnostics.
const maxErrorBodySize = 64 * 1024

// LeadAPI is the operation surface the sync job needs. Implemented by
// *Client and by *BreakerClient.
type LeadAPI interface {
	GetLead(ctx context.Context, id string) (Lead, error)
	GetLeads(ctx context.Context, where map[string]any, limit, offset int) ([]Lead, error)
	GetLeadsChangedSince(ctx context.Context, since time.Time, kind string, limit, offset int) ([]Lead, error)
	CreateLeads(ctx context.Context, leads []Lead) ([]ObjectResult, error)
	UpdateLeads(ctx context.Context, leads []Lead) ([]ObjectResult, error)
	DeleteLeads(ctx context.Context, ids []string) ([]ObjectResult, error)
}

// Client talks to the Sharpspring REST API.
//
// Thread safety: safe for concurrent use; each call builds its own
// request.
type Client struct {
	endpoint       string
	httpClient     *http.Client
	limiter        *rate.Limiter
	maxRetries     int
	retryBaseDelay time.Duration
}

// NewClient creates a Sharpspring API client from configuration.
func NewClient(cfg *config.SharpspringConfig) *Client {
	q := url.Values{}
	q.Set("accountID", cfg.AccountID)
	q.Set("secretKey", cfg.SecretKey)

	var limiter *rate.Limiter
	if cfg.RatePerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), 1)
	}

	return &Client{
		endpoint:       cfg.BaseURL + "?" + q.Encode(),
		httpClient:     &http.Client{Timeout: cfg.Timeout},
		limiter:        limiter,
		maxRetries:     cfg.MaxRetries,
		retryBaseDelay: time.Second,
	}
}

// GetLead fetches a single lead by its remote id. Returns nil without
// error when the id does not exist.
func (c *Client) GetLead(ctx context.Context, id string) (Lead, error) {
	result, err := c.call(ctx, "getLead", map[string]any{"id": id}, nil, expectations{
		singleResultKey: "lead",
	})
	if err != nil {
		return nil, err
	}
	leads, err := leadsFromResult(result)
	if err != nil {
		return nil, err
	}
	if len(leads) == 0 {
		return nil, nil
	}
	return leads[0], nil
}

// GetLeads fetches leads matching a filter. The remote caps limit at
// MaxPageSize; callers page via offset until a short page is returned.
func (c *Client) GetLeads(ctx context.Context, where map[string]any, limit, offset int) ([]Lead, error) {
	if where == nil {
		where = map[string]any{}
	}
	result, err := c.call(ctx, "getLeads", map[string]any{
		"where":  where,
		"limit":  limit,
		"offset": offset,
	}, nil, expectations{singleResultKey: "lead"})
	if err != nil {
		return nil, err
	}
	return leadsFromResult(result)
}

// GetLeadsChangedSince fetches leads whose create or update timestamp
// (kind "create" or "update") is at or after since. Same paging contract
// as GetLeads.
func (c *Client) GetLeadsChangedSince(ctx context.Context, since time.Time, kind string, limit, offset int) ([]Lead, error) {
	result, err := c.call(ctx, "getLeadsDateRange", map[string]any{
		"startDate": since.UTC().Format("2006-01-02 15:04:05"),
		"endDate":   time.Now().UTC().Format("2006-01-02 15:04:05"),
		"timestamp": kind,
		"limit":     limit,
		"offset":    offset,
	}, nil, expectations{singleResultKey: "lead"})
	if err != nil {
		return nil, err
	}
	return leadsFromResult(result)
}

// CreateLeads submits a batch of new leads. On full success the returned
// slice has one succeeded ObjectResult per lead, carrying the assigned
// id. Partial failure surfaces as a *BatchError with the same positional
// layout.
func (c *Client) CreateLeads(ctx context.Context, leads []Lead) ([]ObjectResult, error) {
	return c.batchCall(ctx, "createLeads", "creates", leads)
}

// UpdateLeads submits a batch of lead updates; every lead must carry its
// remote id.
func (c *Client) UpdateLeads(ctx context.Context, leads []Lead) ([]ObjectResult, error) {
	return c.batchCall(ctx, "updateLeads", "updates", leads)
}

// DeleteLeads deletes leads by remote id.
func (c *Client) DeleteLeads(ctx context.Context, ids []string) ([]ObjectResult, error) {
	leads := make([]Lead, len(ids))
	for i, id := range ids {
		leads[i] = Lead{FieldID: id}
	}
	return c.batchCall(ctx, "deleteLeads", "deletes", leads)
}

// CreateLead creates a single lead and returns its assigned remote id.
// A failure of the one submitted object comes back as *ObjectError
// rather than a one-entry *BatchError.
func (c *Client) CreateLead(ctx context.Context, lead Lead) (string, error) {
	result, err := c.call(ctx, "createLeads", map[string]any{"objects": []Lead{lead}},
		[]Lead{lead}, expectations{
			singleResultKey:    "creates",
			validateAsBatch:    true,
			failOnSingleObject: true,
		})
	if err != nil {
		return "", err
	}
	results, ok := result.([]ObjectResult)
	if !ok || len(results) != 1 {
		return "", &FormatError{Reason: "createLeads returned an unexpected result count"}
	}
	return results[0].AssignedID(), nil
}

// UpdateLead updates a single lead.
func (c *Client) UpdateLead(ctx context.Context, lead Lead) error {
	_, err := c.call(ctx, "updateLeads", map[string]any{"objects": []Lead{lead}},
		[]Lead{lead}, expectations{
			singleResultKey:    "updates",
			validateAsBatch:    true,
			failOnSingleObject: true,
		})
	return err
}

// batchCall runs one create/update/delete call and normalizes the
// positional outcome slice.
func (c *Client) batchCall(ctx context.Context, method, resultKey string, leads []Lead) ([]ObjectResult, error) {
	if len(leads) == 0 {
		return nil, nil
	}
	result, err := c.call(ctx, method, map[string]any{"objects": leads}, leads, expectations{
		singleResultKey: resultKey,
		validateAsBatch: true,
	})
	if err != nil {
		return nil, err
	}
	results, ok := result.([]ObjectResult)
	if !ok {
		return nil, &FormatError{Reason: method + " returned an unexpected result shape"}
	}
	return results, nil
}

// call performs one API round trip: throttle, encode, POST (with 429
// backoff), decode, classify.
func (c *Client) call(ctx context.Context, method string, params map[string]any, submitted []Lead, exp expectations) (any, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, &TransportError{Method: method, Err: err}
		}
	}

	requestID := uuid.New().String()
	body, err := encodeEnvelope(method, params, requestID)
	if err != nil {
		return nil, &TransportError{Method: method, Err: fmt.Errorf("encode request: %w", err)}
	}

	start := time.Now()
	respBody, err := c.doRequestWithRateLimit(ctx, method, body)
	metrics.APICallDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.APICallErrors.WithLabelValues(method, errorType(err)).Inc()
		return nil, err
	}

	env, err := decodeEnvelope(respBody, requestID)
	if err != nil {
		metrics.APICallErrors.WithLabelValues(method, errorType(err)).Inc()
		return nil, err
	}

	result, err := classifyResult(env, submitted, exp)
	if err != nil {
		metrics.APICallErrors.WithLabelValues(method, errorType(err)).Inc()
		return nil, err
	}
	return result, nil
}

// doRequestWithRateLimit POSTs the request body, retrying on HTTP 429
// with exponential backoff (honoring Retry-After). Any other non-200
// status is a TransportError: the envelope was never parsed, so zero
// objects of the call count as processed.
func (c *Client) doRequestWithRateLimit(ctx context.Context, method string, body []byte) ([]byte, error) {
	for attempt := 0; ; attempt++ {
		if ctx.Err() != nil {
			return nil, &TransportError{Method: method, Err: ctx.Err()}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
		if err != nil {
			return nil, &TransportError{Method: method, Err: err}
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, &TransportError{Method: method, Err: err}
		}

		if resp.StatusCode == http.StatusOK {
			data, err := io.ReadAll(resp.Body)
			_ = resp.Body.Close()
			if err != nil {
				return nil, &TransportError{Method: method, Err: fmt.Errorf("read response: %w", err)}
			}
			return data, nil
		}

		if resp.StatusCode != http.StatusTooManyRequests {
			snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
			_ = resp.Body.Close()
			return nil, &TransportError{
				Method:     method,
				StatusCode: resp.StatusCode,
				Err:        fmt.Errorf("unexpected HTTP status %d: %s", resp.StatusCode, snippet),
			}
		}

		// 429: back off and retry.
		retryAfter := resp.Header.Get("Retry-After")
		_ = resp.Body.Close()

		if attempt == c.maxRetries {
			return nil, &TransportError{
				Method:     method,
				StatusCode: resp.StatusCode,
				Err:        fmt.Errorf("rate limit exceeded after %d retries", c.maxRetries),
			}
		}

		delay := c.retryBaseDelay * time.Duration(1<<uint(attempt))
		if retryAfter != "" {
			if d, err := time.ParseDuration(retryAfter + "s"); err == nil {
				delay = d
			}
		}

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, &TransportError{Method: method, Err: ctx.Err()}
		}
	}
}

// leadsFromResult converts an unwrapped lead list result to []Lead.
func leadsFromResult(result any) ([]Lead, error) {
	list, ok := result.([]any)
	if !ok {
		return nil, &FormatError{Reason: "lead result is not an array", Detail: result}
	}
	leads := make([]Lead, 0, len(list))
	for _, entry := range list {
		m, ok := entry.(map[string]any)
		if !ok {
			return nil, &FormatError{Reason: "lead entry is not an object", Detail: entry}
		}
		leads = append(leads, Lead(m))
	}
	return leads, nil
}

// errorType maps an error to its metrics label.
func errorType(err error) string {
	switch err.(type) {
	case *TransportError:
		return "transport"
	case *FormatError:
		return "format"
	case *APIError:
		return "api"
	case *BatchError:
		return "batch"
	case *ObjectError:
		return "object"
	default:
		return "other"
	}
}
