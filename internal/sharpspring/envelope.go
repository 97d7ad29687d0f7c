// Sharpspring Lead Sync - Go client for the Sharpspring REST API
// Copyright 2026 Roderik Muit (rmuit)
// SPDX-License-Identifier: MIT
// https://github.com/rmuit/sharpspring-restapi

package sharpspring

import (
	"github.com/goccy/go-json"
)

// The Sharpspring API speaks a JSON-RPC-like protocol over HTTP POST.
// Requests are {"method": ..., "params": ..., "id": ...}; the id is
// caller-supplied and must be echoed back unchanged. Responses carry
// "result" and/or "error"; the interplay of the two is interpreted by
// the classifier, not here. This file only handles the structural
// encode/decode and the mandatory string sanitization.

// requestEnvelope is the wire form of one API request.
type requestEnvelope struct {
	Method string         `json:"method"`
	Params map[string]any `json:"params"`
	ID     string         `json:"id"`
}

// envelope is a decoded response. hasResult distinguishes an absent
// result key from an explicit null result; hasError likewise.
type envelope struct {
	ID        string
	Result    any
	Error     any
	hasResult bool
	hasError  bool
}

// encodeEnvelope builds the request body for one API call.
func encodeEnvelope(method string, params map[string]any, requestID string) ([]byte, error) {
	if params == nil {
		params = map[string]any{}
	}
	return json.Marshal(requestEnvelope{
		Method: method,
		Params: params,
		ID:     requestID,
	})
}

// decodeEnvelope parses a response body and verifies the echoed request
// id. A missing or mismatched id is a protocol violation and always
// fatal: it means the response cannot be trusted to belong to our
// request, so it is never retried or partially interpreted.
//
// Every string leaf of the decoded tree is passed through the entity
// sanitizer before the envelope is returned; callers never see raw
// values.
func decodeEnvelope(body []byte, wantID string) (*envelope, error) {
	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, &FormatError{Reason: "response body is not valid JSON", Detail: err.Error()}
	}

	idVal, ok := raw["id"]
	if !ok {
		return nil, &FormatError{Reason: "response envelope has no id"}
	}
	gotID := stringValue(idVal)
	if gotID != wantID {
		return nil, &FormatError{
			Reason: "response id does not match request id " + wantID,
			Detail: gotID,
		}
	}

	sanitizeTree(raw)

	env := &envelope{ID: gotID}
	env.Result, env.hasResult = raw["result"]
	env.Error, env.hasError = raw["error"]
	return env, nil
}

// emptyValue reports whether a decoded JSON value counts as "no error":
// absent, null, empty string, empty array, or empty object.
func emptyValue(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return x == ""
	case []any:
		return len(x) == 0
	case map[string]any:
		return len(x) == 0
	default:
		return false
	}
}
