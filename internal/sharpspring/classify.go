// Sharpspring Lead Sync - Go client for the Sharpspring REST API
// Copyright 2026 Roderik Muit (rmuit)
// SPDX-License-Identifier: MIT
// https://github.com/rmuit/sharpspring-restapi

package sharpspring

import (
	"fmt"
)

// expectations configures how a response envelope is interpreted for a
// particular API method.
type expectations struct {
	// singleResultKey, when set, requires result to be a single-entry
	// object holding exactly this key, which is unwrapped before any
	// further processing ("creates", "updates", "lead", ...).
	singleResultKey string

	// validateAsBatch validates every entry of a success result as a
	// per-object outcome even when no error was indicated. Purely
	// defensive: an anomaly here means the remote signalled success
	// while returning something that does not look like one.
	validateAsBatch bool

	// failOnSingleObject returns the first object error found in a batch
	// error directly instead of a BatchError. Only valid for calls that
	// submit at most one object: the scan short-circuits on the first
	// error without inspecting later positions.
	failOnSingleObject bool
}

// classifyResult interprets a decoded envelope against the batch of
// objects that was submitted with the request (nil for non-batch calls).
//
// Exactly one of the following happens:
//   - the (possibly unwrapped) result value is returned;
//   - an *APIError is returned: the remote rejected the whole call;
//   - an *ObjectError is returned (failOnSingleObject only);
//   - a *BatchError is returned: per-object partial failure, with the
//     full positional outcome array;
//   - a *FormatError is returned: the envelope violates the protocol
//     contract. FormatErrors are never downgraded or tolerated; they
//     mean the remote changed behavior underneath us.
func classifyResult(env *envelope, submitted []Lead, exp expectations) (any, error) {
	// 1. An envelope carrying neither a result nor a nonempty error is
	// not a response we know how to interpret.
	if !env.hasResult && emptyValue(env.Error) {
		return nil, &FormatError{Reason: "response contains neither result nor error"}
	}

	// 2. An error shaped {message, code, data} (as opposed to an array
	// of per-object errors) is an API-level rejection. Nothing else in
	// the envelope matters.
	if apiErr := asAPILevelError(env.Error); apiErr != nil {
		return nil, apiErr
	}

	result := env.Result

	// 3. Unwrap the single result key if one is expected. The result
	// must be an object with exactly that one key; anything else means
	// the method's documented shape changed.
	if exp.singleResultKey != "" {
		m, ok := result.(map[string]any)
		if !ok || len(m) != 1 {
			return nil, &FormatError{
				Reason: fmt.Sprintf("result is not a single-key object wrapping %q", exp.singleResultKey),
				Detail: result,
			}
		}
		inner, ok := m[exp.singleResultKey]
		if !ok {
			return nil, &FormatError{
				Reason: fmt.Sprintf("result does not contain expected key %q", exp.singleResultKey),
				Detail: m,
			}
		}
		result = inner
	}

	// 4. A non-empty error array means at least one submitted object
	// failed. The positional result array is the authoritative record of
	// which.
	if errList, ok := env.Error.([]any); ok && len(errList) > 0 {
		return nil, classifyBatchError(result, errList, submitted, exp)
	}

	// 5. No error indicated. For batch methods, still validate every
	// entry defensively; an anomaly inside an indicated-success response
	// is escalated, not swallowed.
	if exp.validateAsBatch {
		results, err := validateBatchResults(result, submitted)
		if err != nil {
			return nil, &BatchError{Results: results, Cause: err}
		}
		for i := range results {
			if results[i].Err != nil {
				return nil, &BatchError{Results: results,
					Cause: fmt.Errorf("object %d failed inside a success response", i)}
			}
		}
		return results, nil
	}

	// 6. Plain success.
	return result, nil
}

// classifyBatchError builds the error for a batch-error envelope
// (top-level error is a non-empty array).
func classifyBatchError(result any, errList []any, submitted []Lead, exp expectations) error {
	if submitted == nil {
		return &FormatError{Reason: "batch error received for a call without submitted objects"}
	}

	resultList, ok := result.([]any)
	if !ok {
		return &FormatError{Reason: "batch error but result is not an array", Detail: result}
	}
	// Hard internal-consistency check: positional correlation is the only
	// way to attribute outcomes, so a length mismatch makes the whole
	// response uninterpretable.
	if len(resultList) != len(submitted) {
		return &FormatError{
			Reason: fmt.Sprintf("result has %d entries for %d submitted objects", len(resultList), len(submitted)),
		}
	}

	if exp.failOnSingleObject {
		// Caller guarantees at most one submitted object; surface its
		// error directly. Short-circuits on the first error found.
		for _, entry := range resultList {
			objErr, err := validateObjectResult(entry)
			if err != nil {
				return err
			}
			if objErr != nil {
				return objErr
			}
		}
		return &FormatError{Reason: "batch error indicated but no object error found"}
	}

	results := make([]ObjectResult, len(resultList))
	failing := 0
	for i, entry := range resultList {
		objErr, err := validateObjectResult(entry)
		if err != nil {
			return err
		}
		if objErr != nil {
			failing++
			results[i] = ObjectResult{Err: objErr}
			continue
		}
		results[i] = successResult(entry)
	}

	// The top-level error array must be exactly the failing subsequence
	// of result. A count mismatch would silently hide a remote protocol
	// change, so it is fatal.
	if failing != len(errList) {
		return &FormatError{
			Reason: fmt.Sprintf("top-level error has %d entries but result contains %d failing objects", len(errList), failing),
		}
	}

	return &BatchError{Results: results}
}

// validateBatchResults validates a success result as a positional batch
// outcome array. Used defensively when no error was indicated.
func validateBatchResults(result any, submitted []Lead) ([]ObjectResult, error) {
	resultList, ok := result.([]any)
	if !ok {
		return nil, fmt.Errorf("result is not an array: %T", result)
	}
	if submitted != nil && len(resultList) != len(submitted) {
		return nil, fmt.Errorf("result has %d entries for %d submitted objects", len(resultList), len(submitted))
	}
	results := make([]ObjectResult, len(resultList))
	for i, entry := range resultList {
		objErr, err := validateObjectResult(entry)
		if err != nil {
			return results, fmt.Errorf("object %d: %w", i, err)
		}
		if objErr != nil {
			results[i] = ObjectResult{Err: objErr}
			continue
		}
		results[i] = successResult(entry)
	}
	return results, nil
}

// validateObjectResult checks one positional entry of a batch result.
// The entry must contain both a "success" key and an "error" key; the
// keys must be present even when their values are empty. Returns the
// object's error if it has one, or nil for a succeeded entry.
func validateObjectResult(entry any) (*ObjectError, error) {
	m, ok := entry.(map[string]any)
	if !ok {
		return nil, &FormatError{Reason: "object result entry is not an object", Detail: entry}
	}
	if _, ok := m["success"]; !ok {
		return nil, &FormatError{Reason: "object result entry has no success key", Detail: m}
	}
	errVal, ok := m["error"]
	if !ok {
		return nil, &FormatError{Reason: "object result entry has no error key", Detail: m}
	}
	if emptyValue(errVal) {
		return nil, nil
	}
	objErr := objectErrorFrom(errVal)
	if objErr == nil {
		return nil, &FormatError{Reason: "object error has unrecognized shape", Detail: errVal}
	}
	return objErr, nil
}

// successResult builds the ObjectResult for a succeeded entry, keeping
// any extra fields (createLeads reports the assigned id this way).
func successResult(entry any) ObjectResult {
	m, _ := entry.(map[string]any)
	extra := make(map[string]any)
	for k, v := range m {
		if k == "success" || k == "error" {
			continue
		}
		extra[k] = v
	}
	if len(extra) == 0 {
		extra = nil
	}
	return ObjectResult{Success: true, Extra: extra}
}

// asAPILevelError recognizes the {message, code, data} API-level error
// shape. An array-valued error is a per-object batch error, not an
// API-level one, and returns nil here.
func asAPILevelError(errVal any) *APIError {
	m, ok := errVal.(map[string]any)
	if !ok || len(m) == 0 {
		return nil
	}
	if _, ok := m["message"]; !ok {
		return nil
	}
	return &APIError{
		Code:    intValue(m["code"]),
		Message: stringValue(m["message"]),
		Data:    m["data"],
	}
}

// objectErrorFrom converts a non-empty object error value to an
// ObjectError, or nil if the shape is unrecognized.
func objectErrorFrom(errVal any) *ObjectError {
	switch x := errVal.(type) {
	case map[string]any:
		return &ObjectError{
			Code:    intValue(x["code"]),
			Message: stringValue(x["message"]),
			Data:    x["data"],
		}
	case []any:
		// Some endpoints wrap the single object error in an array.
		if len(x) == 1 {
			return objectErrorFrom(x[0])
		}
		return nil
	default:
		return nil
	}
}

// intValue renders a decoded JSON value as an int, defaulting to 0.
func intValue(v any) int {
	switch x := v.(type) {
	case float64:
		return int(x)
	case int:
		return x
	case int64:
		return int(x)
	case string:
		var n int
		_, _ = fmt.Sscanf(x, "%d", &n)
		return n
	default:
		return 0
	}
}
