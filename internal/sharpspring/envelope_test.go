// Sharpspring Lead Sync - Go client for the Sharpspring REST API
// Copyright 2026 Roderik Muit (rmuit)
// SPDX-License-Identifier: MIT
// https://github.com/rmuit/sharpspring-restapi

package sharpspring

import (
	"errors"
	"testing"

	"github.com/goccy/go-json"
)

func TestEncodeEnvelope(t *testing.T) {
	body, err := encodeEnvelope("getLeads", map[string]any{"limit": 10}, "req-1")
	if err != nil {
		t.Fatalf("encodeEnvelope failed: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(body, &decoded); err != nil {
		t.Fatalf("request body is not valid JSON: %v", err)
	}
	if decoded["method"] != "getLeads" {
		t.Errorf("method = %v, want getLeads", decoded["method"])
	}
	if decoded["id"] != "req-1" {
		t.Errorf("id = %v, want req-1", decoded["id"])
	}
	params, ok := decoded["params"].(map[string]any)
	if !ok || stringValue(params["limit"]) != "10" {
		t.Errorf("params = %v, want limit 10", decoded["params"])
	}
}

func TestEncodeEnvelopeNilParams(t *testing.T) {
	body, err := encodeEnvelope("getLeads", nil, "req-1")
	if err != nil {
		t.Fatalf("encodeEnvelope failed: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(body, &decoded); err != nil {
		t.Fatal(err)
	}
	if _, ok := decoded["params"].(map[string]any); !ok {
		t.Errorf("params should be an empty object, got %v", decoded["params"])
	}
}

func TestDecodeEnvelopeRoundTrip(t *testing.T) {
	env, err := decodeEnvelope([]byte(`{"id":"abc","result":{"lead":[]}}`), "abc")
	if err != nil {
		t.Fatalf("decodeEnvelope failed: %v", err)
	}
	if !env.hasResult {
		t.Error("hasResult should be true")
	}
	if env.hasError {
		t.Error("hasError should be false")
	}
}

func TestDecodeEnvelopeFailures(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		wantID string
	}{
		{"invalid json", `{nope`, "abc"},
		{"missing id", `{"result":1}`, "abc"},
		{"id mismatch", `{"id":"other","result":1}`, "abc"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := decodeEnvelope([]byte(tt.body), tt.wantID)
			var fe *FormatError
			if !errors.As(err, &fe) {
				t.Errorf("expected FormatError, got %v", err)
			}
		})
	}
}

func TestDecodeEnvelopeNumericID(t *testing.T) {
	// Some responses echo a numeric id for a numeric-looking request id.
	env, err := decodeEnvelope([]byte(`{"id":42,"result":null}`), "42")
	if err != nil {
		t.Fatalf("numeric id echo should match: %v", err)
	}
	if env.ID != "42" {
		t.Errorf("ID = %q, want 42", env.ID)
	}
}

func TestDecodeEnvelopeSanitizesStrings(t *testing.T) {
	body := []byte(`{"id":"x","result":{"lead":[{"companyName":"Smith &amp;amp; Sons"}]}}`)
	env, err := decodeEnvelope(body, "x")
	if err != nil {
		t.Fatal(err)
	}
	lead := env.Result.(map[string]any)["lead"].([]any)[0].(map[string]any)
	if lead["companyName"] != "Smith & Sons" {
		t.Errorf("companyName = %q, want entity-repaired value", lead["companyName"])
	}
}

func TestEmptyValue(t *testing.T) {
	empties := []any{nil, "", []any{}, map[string]any{}}
	for _, v := range empties {
		if !emptyValue(v) {
			t.Errorf("emptyValue(%#v) should be true", v)
		}
	}
	nonEmpties := []any{"x", []any{1}, map[string]any{"k": 1}, 0.0, false}
	for _, v := range nonEmpties {
		if emptyValue(v) {
			t.Errorf("emptyValue(%#v) should be false", v)
		}
	}
}
