// Sharpspring Lead Sync - Go client for the Sharpspring REST API
// Copyright 2026 Roderik Muit (rmuit)
// SPDX-License-Identifier: MIT
// https://github.com/rmuit/sharpspring-restapi

package reconcile

import (
	"testing"

	"github.com/rmuit/sharpspring-restapi-sub000/internal/sharpspring"
)

func TestCompareIdentical(t *testing.T) {
	lead := sharpspring.Lead{
		"id":           "17",
		"emailAddress": "ann@example.com",
		"firstName":    "Ann",
	}
	diff := Compare(lead, lead)
	if !diff.Equal() {
		t.Fatalf("identical leads should compare equal, got diff %v", diff.Fields)
	}
	if diff.TargetID != "17" {
		t.Fatalf("TargetID = %q, want 17", diff.TargetID)
	}
}

func TestCompareEmptyCandidate(t *testing.T) {
	cached := sharpspring.Lead{
		"id":           "17",
		"emailAddress": "ann@example.com",
		"firstName":    "Ann",
	}
	if diff := Compare(sharpspring.Lead{}, cached); !diff.Equal() {
		t.Fatalf("empty candidate should compare equal, got diff %v", diff.Fields)
	}
}

func TestCompareRules(t *testing.T) {
	tests := []struct {
		name      string
		candidate sharpspring.Lead
		cached    sharpspring.Lead
		want      []string // differing field names, nil for equal
	}{
		{
			name:      "numeric cached value vs string candidate",
			candidate: sharpspring.Lead{"id": "17"},
			cached:    sharpspring.Lead{"id": float64(17)},
			want:      nil,
		},
		{
			name:      "cached null vs candidate empty string",
			candidate: sharpspring.Lead{"firstName": ""},
			cached:    sharpspring.Lead{"firstName": nil},
			want:      nil,
		},
		{
			name:      "cached absent vs candidate null",
			candidate: sharpspring.Lead{"firstName": nil},
			cached:    sharpspring.Lead{},
			want:      nil,
		},
		{
			name:      "update timestamp never differs",
			candidate: sharpspring.Lead{"updateTimestamp": "2026-02-01 10:00:00"},
			cached:    sharpspring.Lead{"updateTimestamp": "2026-01-01 10:00:00"},
			want:      nil,
		},
		{
			name:      "status downgrade is not a difference",
			candidate: sharpspring.Lead{"leadStatus": "contact"},
			cached:    sharpspring.Lead{"leadStatus": "contactWithOpportunity"},
			want:      nil,
		},
		{
			name:      "status upgrade is a difference",
			candidate: sharpspring.Lead{"leadStatus": "contactWithOpportunity"},
			cached:    sharpspring.Lead{"leadStatus": "contact"},
			want:      []string{"leadStatus"},
		},
		{
			name:      "real change",
			candidate: sharpspring.Lead{"firstName": "Anne"},
			cached:    sharpspring.Lead{"firstName": "Ann"},
			want:      []string{"firstName"},
		},
		{
			name:      "candidate null vs cached value",
			candidate: sharpspring.Lead{"firstName": nil},
			cached:    sharpspring.Lead{"firstName": "Ann"},
			want:      []string{"firstName"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			diff := Compare(tt.candidate, tt.cached)
			if len(diff.Fields) != len(tt.want) {
				t.Fatalf("got %d differing fields %v, want %d", len(diff.Fields), diff.Fields, len(tt.want))
			}
			for _, name := range tt.want {
				if !diff.has(name) {
					t.Errorf("field %q missing from diff %v", name, diff.Fields)
				}
			}
		})
	}
}

func TestCompareDiffCarriesCachedValue(t *testing.T) {
	candidate := sharpspring.Lead{"id": "1", "firstName": nil}
	cached := sharpspring.Lead{"id": float64(1), "firstName": "Ann"}

	diff := Compare(candidate, cached)
	if diff.Equal() {
		t.Fatal("expected a difference on firstName")
	}
	if got := diff.Fields["firstName"]; got != "Ann" {
		t.Errorf("diff carries %v, want cached value Ann", got)
	}
	if diff.has("id") {
		t.Error("id 1 vs 1.0 should not differ")
	}
}
