// Sharpspring Lead Sync - Go client for the Sharpspring REST API
// Copyright 2026 Roderik Muit (rmuit)
// SPDX-License-Identifier: MIT
// https://github.com/rmuit/sharpspring-restapi

// Package reconcile classifies externally-sourced lead candidates
// against the local lead cache and submits the resulting creates and
// updates to Sharpspring, detecting and resolving conflicting updates
// within one batch.
package reconcile

// ActionCode classifies what should happen to one candidate relative to
// its matched cached lead.
//
// The numeric values define a total priority order used to resolve two
// candidates targeting the same cached lead or the same email address:
// the higher-valued action survives and the lower-valued one is
// downgraded to a clash code; on equal values the earlier-queued
// candidate survives.
type ActionCode int

const (
	// ActionClashInactive marks a deactivation superseded by another
	// candidate in the same batch. Uninteresting to log: the lead was on
	// its way out anyway.
	ActionClashInactive ActionCode = 1

	// ActionClash marks a candidate superseded by another candidate in
	// the same batch.
	ActionClash ActionCode = 2

	// ActionInvalid marks a candidate that failed local validation. It
	// is never sent, but stays in the batch for clash bookkeeping and
	// accounting.
	ActionInvalid ActionCode = 3

	// ActionDeactivateNotPresent marks a cached active lead whose
	// external counterpart vanished from a complete source enumeration.
	ActionDeactivateNotPresent ActionCode = 4

	// ActionDeactivate deactivates the matched lead because the source
	// record went inactive.
	ActionDeactivate ActionCode = 5

	// ActionNew creates a lead that has no cached match.
	ActionNew ActionCode = 6

	// ActionUpdateID updates only the foreign key field.
	ActionUpdateID ActionCode = 7

	// ActionUpdateEmail updates only the email address.
	ActionUpdateEmail ActionCode = 8

	// ActionUpdate updates one or more generic fields.
	ActionUpdate ActionCode = 9

	// ActionEqual means the candidate matches its cached lead exactly;
	// nothing is sent.
	ActionEqual ActionCode = 10
)

// String returns the metrics/log label for an action code.
func (a ActionCode) String() string {
	switch a {
	case ActionClashInactive:
		return "clash_inactive"
	case ActionClash:
		return "clash"
	case ActionInvalid:
		return "invalid"
	case ActionDeactivateNotPresent:
		return "deactivate_not_present"
	case ActionDeactivate:
		return "deactivate"
	case ActionNew:
		return "new"
	case ActionUpdateID:
		return "update_id"
	case ActionUpdateEmail:
		return "update_email"
	case ActionUpdate:
		return "update"
	case ActionEqual:
		return "equal"
	default:
		return "unknown"
	}
}

// IsClash reports whether the code marks a superseded candidate.
func (a ActionCode) IsClash() bool {
	return a == ActionClash || a == ActionClashInactive
}

// sendable reports whether a candidate with this code produces a remote
// call.
func (a ActionCode) sendable() bool {
	switch a {
	case ActionNew, ActionUpdate, ActionUpdateID, ActionUpdateEmail,
		ActionDeactivate, ActionDeactivateNotPresent:
		return true
	default:
		return false
	}
}
