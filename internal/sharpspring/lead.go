// Sharpspring Lead Sync - Go client for the Sharpspring REST API
// Copyright 2026 Roderik Muit (rmuit)
// SPDX-License-Identifier: MIT
// https://github.com/rmuit/sharpspring-restapi

package sharpspring

import (
	"fmt"
	"math"
	"strconv"
)

// Well-known lead field names.
const (
	FieldID     = "id"
	FieldEmail  = "emailAddress"
	FieldActive = "active"

	// FieldUpdateTimestamp is set by the remote system on every write and
	// is excluded from all comparisons.
	FieldUpdateTimestamp = "updateTimestamp"

	// FieldLeadStatus tracks the lead's pipeline status. The remote
	// system upgrades it to StatusContactWithOpportunity once an
	// opportunity is attached and refuses to downgrade it afterwards.
	FieldLeadStatus = "leadStatus"
)

// Lead status values relevant to comparison logic.
const (
	StatusContact                = "contact"
	StatusContactWithOpportunity = "contactWithOpportunity"
)

// FieldCategory describes the null semantics of a lead field. The
// asymmetry between the three categories is a property of the remote
// system; the comparator encodes it rather than papering over it.
type FieldCategory int

const (
	// FieldRequiredOnCreate fields must be present when creating a lead.
	FieldRequiredOnCreate FieldCategory = iota

	// FieldNullable fields accept an explicit null on update.
	FieldNullable

	// FieldNonNullableDefaultsNull fields are returned as null on fresh
	// leads but reject explicit null on update; null and empty string
	// must be treated as equivalent.
	FieldNonNullableDefaultsNull
)

// SystemFields declares the category of every built-in lead field this
// client knows about. Custom fields default to
// FieldNonNullableDefaultsNull.
var SystemFields = map[string]FieldCategory{
	FieldEmail:       FieldRequiredOnCreate,
	"ownerID":        FieldNullable,
	"campaignID":     FieldNullable,
	FieldLeadStatus:  FieldNonNullableDefaultsNull,
	"firstName":      FieldNonNullableDefaultsNull,
	"lastName":       FieldNonNullableDefaultsNull,
	"companyName":    FieldNonNullableDefaultsNull,
	"title":          FieldNonNullableDefaultsNull,
	"phoneNumber":    FieldNonNullableDefaultsNull,
	"mobilePhoneNumber": FieldNonNullableDefaultsNull,
	"faxNumber":      FieldNonNullableDefaultsNull,
	"website":        FieldNonNullableDefaultsNull,
	"street":         FieldNonNullableDefaultsNull,
	"city":           FieldNonNullableDefaultsNull,
	"state":          FieldNonNullableDefaultsNull,
	"zipcode":        FieldNonNullableDefaultsNull,
	"country":        FieldNonNullableDefaultsNull,
	"description":    FieldNonNullableDefaultsNull,
	"industry":       FieldNonNullableDefaultsNull,
}

// FieldCategoryOf returns the declared category for a field name.
func FieldCategoryOf(name string) FieldCategory {
	if c, ok := SystemFields[name]; ok {
		return c
	}
	return FieldNonNullableDefaultsNull
}

// Lead is one contact record: a mapping from field name to a scalar
// value (string, number, or nil). The id field is assigned by the remote
// system and immutable once set; emailAddress is unique remotely but not
// necessarily in external sources.
type Lead map[string]any

// ID returns the lead's remote id as a string, or "" if unassigned.
func (l Lead) ID() string {
	v, ok := l[FieldID]
	if !ok {
		return ""
	}
	return stringValue(v)
}

// Email returns the lead's email address, or "".
func (l Lead) Email() string {
	v, ok := l[FieldEmail]
	if !ok {
		return ""
	}
	return stringValue(v)
}

// IsActive reports whether the lead's active field is set and truthy.
func (l Lead) IsActive() bool {
	v, ok := l[FieldActive]
	if !ok {
		return false
	}
	s := stringValue(v)
	return s != "" && s != "0"
}

// Get returns the string representation of a field value and whether
// the field is present.
func (l Lead) Get(name string) (string, bool) {
	v, ok := l[name]
	if !ok {
		return "", false
	}
	return stringValue(v), true
}

// Clone returns a shallow copy of the lead.
func (l Lead) Clone() Lead {
	c := make(Lead, len(l))
	for k, v := range l {
		c[k] = v
	}
	return c
}

// Validate checks that all required-on-create fields are present and
// non-empty. Failures are reported as a synthetic ObjectError so they
// can be merged positionally with remote per-object errors.
func (l Lead) Validate() *ObjectError {
	for name, cat := range SystemFields {
		if cat != FieldRequiredOnCreate {
			continue
		}
		if v, ok := l[name]; !ok || stringValue(v) == "" {
			return &ObjectError{
				Code:    CodeLocalInvalid,
				Message: "missing required field " + name,
				Data:    name,
			}
		}
	}
	return nil
}

// FieldMap translates between the external source's field names and the
// Sharpspring system names for custom fields. It is passed explicitly
// per call; there is no process-wide mapping state.
type FieldMap map[string]string

// Apply returns a copy of the lead with source field names replaced by
// their mapped Sharpspring names. Unmapped fields pass through.
func (m FieldMap) Apply(l Lead) Lead {
	if len(m) == 0 {
		return l.Clone()
	}
	out := make(Lead, len(l))
	for k, v := range l {
		if mapped, ok := m[k]; ok {
			out[mapped] = v
		} else {
			out[k] = v
		}
	}
	return out
}

// Invert returns the reverse mapping, for translating remote responses
// back to source field names.
func (m FieldMap) Invert() FieldMap {
	inv := make(FieldMap, len(m))
	for k, v := range m {
		inv[v] = k
	}
	return inv
}

// stringValue renders a scalar field value as the string the remote
// system would compare it as. The API is loose about numeric vs string
// typing (ids arrive as numbers or strings depending on the endpoint),
// so all field comparison happens on this representation. nil renders
// as "", which also implements the null/empty-string equivalence rule
// for non-nullable fields.
func stringValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		// JSON numbers decode as float64; render integral values without
		// a fraction so 42 and "42" compare equal.
		if x == math.Trunc(x) && math.Abs(x) < 1e15 {
			return strconv.FormatInt(int64(x), 10)
		}
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case bool:
		if x {
			return "1"
		}
		return "0"
	default:
		return fmt.Sprint(x)
	}
}

// StringValue is the exported form of the canonical scalar rendering,
// shared with the cache and reconciliation packages.
func StringValue(v any) string { return stringValue(v) }
