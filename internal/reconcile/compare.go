// Sharpspring Lead Sync - Go client for the Sharpspring REST API
// Copyright 2026 Roderik Muit (rmuit)
// SPDX-License-Identifier: MIT
// https://github.com/rmuit/sharpspring-restapi

package reconcile

import (
	"github.com/rmuit/sharpspring-restapi-sub000/internal/sharpspring"
)

// Diff is the result of comparing a candidate against a matched cached
// lead. Fields maps each differing field name to the cached (previous)
// value; an empty Fields with a non-empty TargetID is the "checked and
// equal" sentinel, deliberately distinct from "no match found".
type Diff struct {
	TargetID string
	Fields   map[string]any
}

// Equal reports whether all compared fields matched.
func (d Diff) Equal() bool { return len(d.Fields) == 0 }

// has reports whether a field differs.
func (d Diff) has(name string) bool {
	_, ok := d.Fields[name]
	return ok
}

// Compare matches a candidate field-by-field against a cached lead.
//
// Rules:
//   - only fields present in the candidate participate: a partial
//     candidate cannot invalidate a match on fields it doesn't mention;
//   - the update timestamp is always excluded, it changes on every
//     remote write;
//   - a cached "contactWithOpportunity" status against a candidate
//     "contact" status is non-differing: the remote system refuses to
//     downgrade that status, so sending it would be a guaranteed no-op;
//   - values compare by canonical string representation, because the
//     remote system is inconsistent about numeric vs string typing.
//     This also makes cached null equal to candidate empty string, the
//     documented equivalence for non-nullable fields.
func Compare(candidate, cached sharpspring.Lead) Diff {
	diff := Diff{TargetID: cached.ID()}

	for name, candVal := range candidate {
		if name == sharpspring.FieldUpdateTimestamp {
			continue
		}
		cachedVal, present := cached[name]

		if name == sharpspring.FieldLeadStatus &&
			sharpspring.StringValue(cachedVal) == sharpspring.StatusContactWithOpportunity &&
			sharpspring.StringValue(candVal) == sharpspring.StatusContact {
			continue
		}

		// Absent and null cached values both render as ""; a candidate
		// null against either is not a difference.
		if !present && candVal == nil {
			continue
		}
		if sharpspring.StringValue(candVal) != sharpspring.StringValue(cachedVal) {
			if diff.Fields == nil {
				diff.Fields = make(map[string]any)
			}
			diff.Fields[name] = cachedVal
		}
	}
	return diff
}
