// Sharpspring Lead Sync - Go client for the Sharpspring REST API
// Copyright 2026 Roderik Muit (rmuit)
// SPDX-License-Identifier: MIT
// https://github.com/rmuit/sharpspring-restapi

package sharpspring

import (
	"html"

	"golang.org/x/text/unicode/norm"
)

// maxUnescapePasses bounds the entity-decode fixpoint loop. Sharpspring
// has been observed to double-encode entities, never more than twice,
// but the loop is bounded rather than counted so a future triple
// encoding degrades gracefully instead of leaking entities.
const maxUnescapePasses = 4

// sanitizeString repairs Sharpspring's HTML-entity over-encoding.
// Values come back with entities applied one or more times ("&amp;amp;"
// for "&"); unescape until the value stops changing, then normalize to
// NFC so differently-composed accents compare equal. Idempotent.
func sanitizeString(s string) string {
	for i := 0; i < maxUnescapePasses; i++ {
		u := html.UnescapeString(s)
		if u == s {
			break
		}
		s = u
	}
	return norm.NFC.String(s)
}

// sanitizeTree applies sanitizeString to every string leaf of a decoded
// JSON tree, in place where possible. Maps and slices are mutated; the
// (possibly replaced) value is returned.
func sanitizeTree(v any) any {
	switch x := v.(type) {
	case string:
		return sanitizeString(x)
	case map[string]any:
		for k, mv := range x {
			x[k] = sanitizeTree(mv)
		}
		return x
	case []any:
		for i, sv := range x {
			x[i] = sanitizeTree(sv)
		}
		return x
	default:
		return v
	}
}
