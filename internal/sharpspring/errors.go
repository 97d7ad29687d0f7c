// Sharpspring Lead Sync - Go client for the Sharpspring REST API
// Copyright 2026 Roderik Muit (rmuit)
// SPDX-License-Identifier: MIT
// https://github.com/rmuit/sharpspring-restapi

package sharpspring

import (
	"errors"
	"fmt"
)

// The error taxonomy mirrors the failure classes of the Sharpspring
// response envelope:
//
//   - TransportError: HTTP/network failure before any envelope was parsed.
//     Nothing was applied remotely (as far as this client can tell).
//   - FormatError: the decoded envelope violates a structural invariant
//     (bad JSON, missing/mismatched id, result/error shape anomalies).
//     Always fatal; a FormatError signals an undocumented remote behavior
//     change that must be investigated, never worked around.
//   - APIError: the remote rejected the whole call before touching any
//     object.
//   - ObjectError: a single object in a batch failed.
//   - BatchError: at least one object in a batch failed; carries the full
//     positional outcome array so callers can see which positions
//     succeeded.

// Synthetic object-level error codes for failures detected locally,
// before a request is even built. Kept below 100 so they can never
// collide with real Sharpspring error codes and can be merged
// positionally with remote object errors in the same pass.
const (
	// CodeLocalInvalid marks a candidate that could not be converted to
	// a valid lead (e.g. missing email address).
	CodeLocalInvalid = 1
)

// Remote object-level error codes this client special-cases.
const (
	// CodeObjectAlreadyExists is returned by createLeads when a lead
	// with the same email address already exists.
	CodeObjectAlreadyExists = 301
)

// TransportError reports an HTTP or network level failure. No response
// envelope was parsed, so zero objects of the call are considered
// processed.
type TransportError struct {
	Method     string
	StatusCode int // 0 when no HTTP response was received
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("sharpspring: %s request failed with HTTP status %d", e.Method, e.StatusCode)
	}
	return fmt.Sprintf("sharpspring: %s request failed: %v", e.Method, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// FormatError reports a response envelope that violates the protocol
// contract. Detail carries the offending fragment for diagnostics.
type FormatError struct {
	Reason string
	Detail any
}

func (e *FormatError) Error() string {
	if e.Detail != nil {
		return fmt.Sprintf("sharpspring: invalid response: %s (got %v)", e.Reason, e.Detail)
	}
	return "sharpspring: invalid response: " + e.Reason
}

// APIError reports an API-level rejection: the remote refused the whole
// call and no submitted object was touched.
type APIError struct {
	Code    int
	Message string
	Data    any
}

func (e *APIError) Error() string {
	return fmt.Sprintf("sharpspring: API error %d: %s", e.Code, e.Message)
}

// ObjectError reports the failure of one object within a batch.
type ObjectError struct {
	Code    int
	Message string
	Data    any
}

func (e *ObjectError) Error() string {
	return fmt.Sprintf("sharpspring: object error %d: %s", e.Code, e.Message)
}

// ObjectResult is the positional outcome for one submitted object.
// Exactly one of Success/Err describes the outcome; Extra carries
// additional result fields such as the id assigned by createLeads.
type ObjectResult struct {
	Success bool
	Extra   map[string]any
	Err     *ObjectError
}

// AssignedID returns the remote id assigned to a created object, or ""
// if none was reported.
func (r ObjectResult) AssignedID() string {
	if r.Extra == nil {
		return ""
	}
	if id, ok := r.Extra["id"]; ok {
		return stringValue(id)
	}
	return ""
}

// BatchError reports partial failure of a batch call. Results always has
// one entry per submitted object, position for position; callers walk it
// to learn which objects went through. Cause is non-nil only when the
// batch error wraps an unexpected validation failure inside an
// indicated-success response.
type BatchError struct {
	Results []ObjectResult
	Cause   error
}

func (e *BatchError) Error() string {
	n := 0
	for _, r := range e.Results {
		if r.Err != nil {
			n++
		}
	}
	if e.Cause != nil {
		return fmt.Sprintf("sharpspring: batch result validation failed: %v", e.Cause)
	}
	return fmt.Sprintf("sharpspring: %d of %d objects in batch failed", n, len(e.Results))
}

func (e *BatchError) Unwrap() error { return e.Cause }

// AsBatchError returns the BatchError wrapped in err, or nil.
func AsBatchError(err error) *BatchError {
	var be *BatchError
	if errors.As(err, &be) {
		return be
	}
	return nil
}
