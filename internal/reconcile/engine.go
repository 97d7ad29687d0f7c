// Sharpspring Lead Sync - Go client for the Sharpspring REST API
// Copyright 2026 Roderik Muit (rmuit)
// SPDX-License-Identifier: MIT
// https://github.com/rmuit/sharpspring-restapi

/*
engine.go - Reconciliation engine and clash resolver

One Run processes one batch of source candidates:

 1. classify every candidate against the lead cache into an ActionCode;
 2. detect clashes: two candidates targeting the same cached lead, the
    same resulting email address, or an email address another candidate
    is simultaneously renaming away from;
 3. submit the surviving actions as batched update calls followed by
    batched create calls;
 4. optionally (complete source enumerations only) deactivate cached
    leads whose foreign key the source no longer carries.

Concurrency: a Run is single-threaded and synchronous. Concurrent
external mutation of Sharpspring during a pass can produce stale
comparisons; that race is documented and accepted, not locked away.
*/
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/rmuit/sharpspring-restapi-sub000/internal/logging"
	"github.com/rmuit/sharpspring-restapi-sub000/internal/metrics"
	"github.com/rmuit/sharpspring-restapi-sub000/internal/sharpspring"
)

// ErrMissingMatchKey is returned when a candidate carries none of the
// fields a match could be attempted on. This is a caller error, not a
// data error.
var ErrMissingMatchKey = errors.New("reconcile: candidate has no id, foreign key or email to match on")

// Candidate is one record from the external source, not yet reconciled.
// Active mirrors the source's own notion of the record being current;
// an inactive candidate deactivates its remote counterpart if one
// exists.
type Candidate struct {
	Lead   sharpspring.Lead
	Active bool
}

// Source enumerates candidates for one reconciliation pass.
type Source interface {
	// FetchCandidates returns the batch to reconcile, in source order.
	// Order is significant: clash resolution ties break toward the
	// earlier candidate.
	FetchCandidates(ctx context.Context) ([]Candidate, error)

	// Complete reports whether the batch is a complete enumeration of
	// the source (enabling deactivation of vanished records) rather
	// than a delta.
	Complete() bool
}

// LeadWriter is the write surface of the Sharpspring API the engine
// uses.
type LeadWriter interface {
	CreateLeads(ctx context.Context, leads []sharpspring.Lead) ([]sharpspring.ObjectResult, error)
	UpdateLeads(ctx context.Context, leads []sharpspring.Lead) ([]sharpspring.ObjectResult, error)
}

// LeadIndex is the cache surface the engine matches against.
type LeadIndex interface {
	LookupByID(ctx context.Context, id string, remoteFallback bool) (sharpspring.Lead, error)
	LookupByEmail(ctx context.Context, email string, remoteFallback bool) ([]sharpspring.Lead, error)
	LookupByForeignKey(fk string) ([]sharpspring.Lead, error)
	Observe(lead sharpspring.Lead) error
	ForEachStored(fn func(sharpspring.Lead) error) error
}

// Config tunes one engine.
type Config struct {
	// BatchSize caps the number of objects per create/update call.
	BatchSize int

	// ForeignKeyField is the custom field carrying the source's own
	// identifier; "" when the source has none.
	ForeignKeyField string

	// FieldMap translates source field names to Sharpspring names.
	FieldMap sharpspring.FieldMap
}

// Totals is the per-pass accounting surfaced to the operator. Every
// candidate lands in exactly one bucket; nothing is silently dropped.
type Totals struct {
	Sent     int // created or updated remotely
	Skipped  int // dropped without a remote call (inactive, no match)
	Equal    int // already identical to the cached lead
	Inactive int // deactivated (source-inactive or vanished from source)
	Errored  int // invalid locally or rejected per-object remotely
	Clashed  int // superseded by another candidate in this batch
}

// Engine reconciles source candidates into Sharpspring.
type Engine struct {
	api   LeadWriter
	cache LeadIndex
	cfg   Config
	log   zerolog.Logger
}

// NewEngine builds an engine. BatchSize falls back to 100 when unset.
func NewEngine(api LeadWriter, cache LeadIndex, cfg Config) *Engine {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	return &Engine{
		api:   api,
		cache: cache,
		cfg:   cfg,
		log:   logging.WithComponent("reconcile"),
	}
}

// item is the per-candidate state of one pass.
type item struct {
	lead    sharpspring.Lead // candidate after field mapping
	active  bool
	action  ActionCode
	dropped bool

	targetID    string // matched cached lead id, "" for new
	cachedEmail string // matched cached lead email
	diff        Diff

	// resultEmail is the email address the lead will hold after this
	// item is applied; the key for email clash detection.
	resultEmail string

	// emailCancelled marks a deactivation whose email change was
	// dropped to dodge the remote silent-no-op on conflicting email
	// updates.
	emailCancelled bool

	objErr *sharpspring.ObjectError
}

// Run executes one reconciliation pass over candidates.
//
// Transport, protocol and API-level failures abort the pass: the
// returned Totals cover only what was fully processed, and none of the
// objects in the failed call count as processed. Object-level failures
// are folded into the accounting and do not abort.
func (e *Engine) Run(ctx context.Context, candidates []Candidate, sourceComplete bool) (*Totals, error) {
	start := time.Now()
	defer func() {
		metrics.SyncRunDuration.Observe(time.Since(start).Seconds())
	}()

	items, err := e.classify(ctx, candidates)
	if err != nil {
		metrics.SyncRunErrors.Inc()
		return nil, err
	}

	totals := &Totals{}
	e.tallyStatic(items, totals)

	if err := e.submit(ctx, items, totals); err != nil {
		metrics.SyncRunErrors.Inc()
		return totals, err
	}

	if sourceComplete {
		if err := e.deactivateNotPresent(ctx, items, totals); err != nil {
			metrics.SyncRunErrors.Inc()
			return totals, err
		}
	}
	logging.Ctx(ctx).Info().
		Int("sent", totals.Sent).
		Int("skipped", totals.Skipped).
		Int("equal", totals.Equal).
		Int("inactive", totals.Inactive).
		Int("errored", totals.Errored).
		Int("clashed", totals.Clashed).
		Msg("reconciliation pass complete")
	return totals, nil
}

// classify converts each candidate to an item with an ActionCode and
// resolves clashes across the batch.
func (e *Engine) classify(ctx context.Context, candidates []Candidate) ([]*item, error) {
	items := make([]*item, 0, len(candidates))

	// byTarget and byEmail map a claimed cached-lead id / resulting
	// email address to the item currently holding the claim.
	byTarget := make(map[string]*item)
	byEmail := make(map[string]*item)

	for _, cand := range candidates {
		it, err := e.classifyOne(ctx, cand)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
		if it.dropped || it.action == ActionInvalid {
			// Invalid candidates stay in the batch for accounting but
			// never claim a target.
			continue
		}

		e.resolveTargetClash(byTarget, it)
		e.resolveEmailClash(byEmail, it)
		e.resolveVacatedSource(byEmail, it)
	}
	return items, nil
}

// classifyOne maps one candidate to an action code against the cache.
func (e *Engine) classifyOne(ctx context.Context, cand Candidate) (*item, error) {
	lead := e.cfg.FieldMap.Apply(cand.Lead)
	it := &item{lead: lead, active: cand.Active}

	if objErr := lead.Validate(); objErr != nil {
		it.action = ActionInvalid
		it.objErr = objErr
		return it, nil
	}
	it.resultEmail = emailKey(lead.Email())

	match, err := e.findMatch(ctx, lead)
	if err != nil {
		return nil, err
	}

	if match == nil {
		if !cand.Active {
			// Never seen by the remote system, nothing to deactivate.
			it.dropped = true
			return it, nil
		}
		it.action = ActionNew
		return it, nil
	}

	it.targetID = match.ID()
	it.cachedEmail = emailKey(match.Email())
	it.diff = Compare(lead, match)

	switch {
	case !cand.Active && !match.IsActive():
		it.dropped = true

	case !cand.Active:
		it.action = ActionDeactivate
		// A deactivation that also changes the email address would
		// silently no-op remotely if the target address belongs to
		// another active lead (documented remote bug). Cancel the email
		// part and deactivate only.
		if it.diff.has(sharpspring.FieldEmail) && it.resultEmail != it.cachedEmail {
			if e.emailTakenByOther(ctx, it.resultEmail, it.targetID) {
				it.emailCancelled = true
				it.resultEmail = it.cachedEmail
				e.log.Warn().
					Str("id", it.targetID).
					Str("email", lead.Email()).
					Msg("cancelling email change on deactivation: address belongs to another active lead")
			}
		}

	case it.diff.Equal():
		it.action = ActionEqual

	default:
		it.action = e.updateAction(it.diff)
	}
	return it, nil
}

// updateAction picks the update flavor from the differing field set.
func (e *Engine) updateAction(diff Diff) ActionCode {
	onlyField := ""
	for name := range diff.Fields {
		if onlyField != "" {
			return ActionUpdate
		}
		onlyField = name
	}
	switch {
	case onlyField == sharpspring.FieldEmail:
		return ActionUpdateEmail
	case e.cfg.ForeignKeyField != "" && onlyField == e.cfg.ForeignKeyField:
		return ActionUpdateID
	default:
		return ActionUpdate
	}
}

// findMatch locates the cached lead a candidate refers to: by remote id
// if the candidate carries one, else by foreign key when configured,
// else by email address.
func (e *Engine) findMatch(ctx context.Context, lead sharpspring.Lead) (sharpspring.Lead, error) {
	if id := lead.ID(); id != "" {
		return e.cache.LookupByID(ctx, id, true)
	}

	if e.cfg.ForeignKeyField != "" {
		if fk, _ := lead.Get(e.cfg.ForeignKeyField); fk != "" {
			matches, err := e.cache.LookupByForeignKey(fk)
			if err != nil {
				return nil, err
			}
			if len(matches) > 0 {
				return matches[0], nil
			}
		}
	}

	if email := lead.Email(); email != "" {
		matches, err := e.cache.LookupByEmail(ctx, email, false)
		if err != nil {
			return nil, err
		}
		if len(matches) > 0 {
			return matches[0], nil
		}
		return nil, nil
	}

	if e.cfg.ForeignKeyField == "" {
		return nil, ErrMissingMatchKey
	}
	return nil, nil
}

// emailTakenByOther reports whether an already-cached active lead other
// than id holds the given email address.
func (e *Engine) emailTakenByOther(ctx context.Context, email, id string) bool {
	matches, err := e.cache.LookupByEmail(ctx, email, false)
	if err != nil {
		return false
	}
	for _, m := range matches {
		if m.ID() != id && m.IsActive() {
			return true
		}
	}
	return false
}

// resolveTargetClash handles two candidates targeting the same cached
// lead id. The later candidate either takes the claim, loses it, or (in
// the update_id vs update_email case) is rerouted to a fresh create.
func (e *Engine) resolveTargetClash(byTarget map[string]*item, it *item) {
	if it.targetID == "" {
		return
	}
	holder, ok := byTarget[it.targetID]
	if !ok {
		byTarget[it.targetID] = it
		return
	}

	// An update_id and an update_email colliding on one target means
	// the foreign-key changer is really moving to a fresh slot: create
	// it instead, and let the email changer keep the target.
	if holder.action == ActionUpdateID && it.action == ActionUpdateEmail {
		e.rerouteToNew(holder)
		byTarget[it.targetID] = it
		return
	}
	if holder.action == ActionUpdateEmail && it.action == ActionUpdateID {
		e.rerouteToNew(it)
		return
	}

	loser := it
	if it.action > holder.action {
		loser = holder
		byTarget[it.targetID] = it
	}
	e.downgrade(loser)
}

// resolveEmailClash handles two candidates whose resulting email
// address is the same, independent of which cached leads they target.
func (e *Engine) resolveEmailClash(byEmail map[string]*item, it *item) {
	if it.action.IsClash() || it.resultEmail == "" {
		return
	}
	holder, ok := byEmail[it.resultEmail]
	if !ok || holder == it {
		byEmail[it.resultEmail] = it
		return
	}
	loser := it
	if it.action > holder.action {
		loser = holder
		byEmail[it.resultEmail] = it
	}
	e.downgrade(loser)
}

// resolveVacatedSource handles a candidate renaming away from an email
// address an earlier candidate has already claimed as its target. The
// later renamer is downgraded; this breaks rename chains
// deterministically by processing order. Reversing the input order can
// change the outcome — a documented limitation inherited from the
// original behavior, kept rather than silently made order-independent.
func (e *Engine) resolveVacatedSource(byEmail map[string]*item, it *item) {
	if it.action.IsClash() || it.cachedEmail == "" || it.resultEmail == it.cachedEmail {
		return
	}
	holder, ok := byEmail[it.cachedEmail]
	if !ok || holder == it {
		return
	}
	// Creates are submitted after all updates, so a create claiming the
	// address is safe: it will be free by then.
	if holder.action == ActionNew {
		return
	}
	e.downgrade(it)
}

// rerouteToNew turns an update_id item into a create for a fresh lead.
func (e *Engine) rerouteToNew(it *item) {
	e.log.Info().
		Str("id", it.targetID).
		Str("email", it.lead.Email()).
		Msg("foreign key change collides with email change on same lead; creating fresh lead instead")
	it.action = ActionNew
	it.targetID = ""
	it.cachedEmail = ""
	it.diff = Diff{}
}

// downgrade marks a clash loser.
func (e *Engine) downgrade(it *item) {
	if it.action == ActionDeactivate {
		it.action = ActionClashInactive
		return
	}
	if !it.action.IsClash() {
		e.log.Warn().
			Str("email", it.lead.Email()).
			Str("action", it.action.String()).
			Msg("candidate superseded by another candidate in this batch")
		it.action = ActionClash
	}
}

// tallyStatic folds the items that will never produce a remote call
// into the pass totals. Sendable items (new, updates, deactivations)
// are accounted per completed batch during submission, so an aborted
// pass reports only what was actually processed.
func (e *Engine) tallyStatic(items []*item, totals *Totals) {
	for _, it := range items {
		switch {
		case it.dropped:
			totals.Skipped++
			metrics.SyncActions.WithLabelValues("skipped").Inc()
			continue
		case it.action == ActionInvalid:
			totals.Errored++
		case it.action == ActionEqual:
			totals.Equal++
		case it.action.IsClash():
			totals.Clashed++
		default:
			continue
		}
		metrics.SyncActions.WithLabelValues(it.action.String()).Inc()
	}
}

// tallySent accounts one item whose batch completed.
func (e *Engine) tallySent(it *item, totals *Totals) {
	switch {
	case it.objErr != nil:
		totals.Errored++
	case it.action == ActionDeactivate || it.action == ActionDeactivateNotPresent:
		totals.Inactive++
	default:
		totals.Sent++
	}
	metrics.SyncActions.WithLabelValues(it.action.String()).Inc()
}

// emailKey normalizes an email for clash maps; the remote system treats
// addresses case-insensitively.
func emailKey(email string) string {
	return strings.ToLower(email)
}

// consistencyError reports a programming-error-class violation that
// must abort the pass rather than be worked around.
func consistencyError(format string, args ...any) error {
	return fmt.Errorf("reconcile: internal consistency violation: "+format, args...)
}
