// Sharpspring Lead Sync - Go client for the Sharpspring REST API
// Copyright 2026 Roderik Muit (rmuit)
// SPDX-License-Identifier: MIT
// https://github.com/rmuit/sharpspring-restapi

package reconcile

import (
	"context"

	"github.com/rmuit/sharpspring-restapi-sub000/internal/sharpspring"
)

// pending pairs a classified item with the exact object sent remotely.
type pending struct {
	it      *item
	payload sharpspring.Lead
}

// submit sends the surviving actions: updates first, then creates, each
// in BatchSize chunks. Updates go first so an email address vacated by a
// rename is free again before a create tries to claim it.
//
// Object-level rejections are recorded on the item and processing
// continues; any other failure aborts with none of the failed batch's
// objects counted as processed.
func (e *Engine) submit(ctx context.Context, items []*item, totals *Totals) error {
	var updates, creates []pending
	for _, it := range items {
		if it.dropped || !it.action.sendable() {
			continue
		}
		if it.action == ActionNew {
			if it.lead.ID() != "" {
				return consistencyError("candidate classified as new but carries remote id %q", it.lead.ID())
			}
			creates = append(creates, pending{it: it, payload: it.lead.Clone()})
			continue
		}
		updates = append(updates, pending{it: it, payload: e.updatePayload(it)})
	}

	if err := e.sendChunks(ctx, updates, totals, e.api.UpdateLeads); err != nil {
		return err
	}
	return e.sendChunks(ctx, creates, totals, e.api.CreateLeads)
}

// updatePayload builds the object for an update-class action. A plain
// deactivation sends only the id and active flag; everything else sends
// the full candidate keyed to the matched lead.
func (e *Engine) updatePayload(it *item) sharpspring.Lead {
	if it.action == ActionDeactivate || it.action == ActionDeactivateNotPresent {
		payload := sharpspring.Lead{
			sharpspring.FieldID:     it.targetID,
			sharpspring.FieldActive: "0",
		}
		if it.action == ActionDeactivate && !it.emailCancelled && it.diff.has(sharpspring.FieldEmail) {
			payload[sharpspring.FieldEmail] = it.lead.Email()
		}
		return payload
	}
	payload := it.lead.Clone()
	payload[sharpspring.FieldID] = it.targetID
	return payload
}

// sendChunks submits pendings through call in BatchSize chunks, folding
// each completed chunk into the totals and the cache.
func (e *Engine) sendChunks(ctx context.Context, pendings []pending, totals *Totals,
	call func(context.Context, []sharpspring.Lead) ([]sharpspring.ObjectResult, error)) error {
	for len(pendings) > 0 {
		n := e.cfg.BatchSize
		if n > len(pendings) {
			n = len(pendings)
		}
		chunk := pendings[:n]
		pendings = pendings[n:]

		leads := make([]sharpspring.Lead, n)
		for i, p := range chunk {
			leads[i] = p.payload
		}

		results, err := call(ctx, leads)
		if err != nil {
			batch := sharpspring.AsBatchError(err)
			if batch == nil {
				return err
			}
			results = batch.Results
		}
		if len(results) != n {
			return consistencyError("batch returned %d results for %d objects", len(results), n)
		}

		for i, res := range results {
			p := chunk[i]
			if res.Err != nil {
				p.it.objErr = res.Err
				e.log.Warn().
					Str("action", p.it.action.String()).
					Str("email", p.payload.Email()).
					Int("code", res.Err.Code).
					Str("message", res.Err.Message).
					Msg("object rejected")
			} else {
				e.observe(ctx, p, res)
			}
			e.tallySent(p.it, totals)
		}
	}
	return nil
}

// observe writes one accepted object through to the cache: the cached
// lead overlaid with the fields just sent, plus any freshly assigned id.
func (e *Engine) observe(ctx context.Context, p pending, res sharpspring.ObjectResult) {
	merged := p.payload.Clone()
	if p.it.targetID != "" {
		if cached, err := e.cache.LookupByID(ctx, p.it.targetID, false); err == nil && cached != nil {
			base := cached.Clone()
			for k, v := range p.payload {
				base[k] = v
			}
			merged = base
		}
	} else if id := res.AssignedID(); id != "" {
		merged[sharpspring.FieldID] = id
	}
	if _, ok := merged[sharpspring.FieldActive]; !ok {
		merged[sharpspring.FieldActive] = "1"
	}
	if err := e.cache.Observe(merged); err != nil {
		e.log.Warn().Err(err).Str("id", merged.ID()).Msg("cache write-through failed")
	}
}

// deactivateNotPresent runs after a complete source enumeration: cached
// active leads carrying a foreign key the source no longer mentions get
// deactivated. Without a configured foreign key field there is no way to
// tell which cached leads belong to the source, so the pass is skipped.
func (e *Engine) deactivateNotPresent(ctx context.Context, items []*item, totals *Totals) error {
	if e.cfg.ForeignKeyField == "" {
		return nil
	}

	seen := make(map[string]struct{}, len(items))
	for _, it := range items {
		if fk, _ := it.lead.Get(e.cfg.ForeignKeyField); fk != "" {
			seen[fk] = struct{}{}
		}
	}

	var stale []pending
	err := e.cache.ForEachStored(func(lead sharpspring.Lead) error {
		if !lead.IsActive() {
			return nil
		}
		fk, _ := lead.Get(e.cfg.ForeignKeyField)
		if fk == "" {
			return nil
		}
		if _, ok := seen[fk]; ok {
			return nil
		}
		it := &item{
			lead:     lead,
			action:   ActionDeactivateNotPresent,
			targetID: lead.ID(),
		}
		stale = append(stale, pending{it: it, payload: e.updatePayload(it)})
		return nil
	})
	if err != nil {
		return err
	}
	if len(stale) == 0 {
		return nil
	}

	e.log.Info().Int("count", len(stale)).Msg("deactivating leads no longer present in source")
	return e.sendChunks(ctx, stale, totals, e.api.UpdateLeads)
}
