// Sharpspring Lead Sync - Go client for the Sharpspring REST API
// Copyright 2026 Roderik Muit (rmuit)
// SPDX-License-Identifier: MIT
// https://github.com/rmuit/sharpspring-restapi

package leadcache

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/rmuit/sharpspring-restapi-sub000/internal/logging"
	"github.com/rmuit/sharpspring-restapi-sub000/internal/metrics"
	"github.com/rmuit/sharpspring-restapi-sub000/internal/sharpspring"
)

// RemoteSource is the subset of the Sharpspring API the cache needs for
// population and lookup fallback.
type RemoteSource interface {
	GetLead(ctx context.Context, id string) (sharpspring.Lead, error)
	GetLeads(ctx context.Context, where map[string]any, limit, offset int) ([]sharpspring.Lead, error)
	GetLeadsChangedSince(ctx context.Context, since time.Time, kind string, limit, offset int) ([]sharpspring.Lead, error)
}

// Options configures a Cache.
type Options struct {
	// ForeignKeyField is the custom field holding the external source's
	// identifier; "" disables the foreign key index.
	ForeignKeyField string

	// CachedProperties lists additional fields to index in memory.
	CachedProperties []string
}

// Cache maintains reverse-lookup indexes (email -> ids, foreign key ->
// ids, cached property -> ids) over the leads in a Store.
//
// Invariant: every remote lead observed anywhere in the system reaches
// Observe before the result is returned to callers, so the indexes are
// never strictly staler than the store. The caller owns concurrency at
// the pass level; internal locking only protects the index maps.
type Cache struct {
	store  *Store
	remote RemoteSource
	opts   Options
	log    zerolog.Logger

	mu         sync.RWMutex
	emailIndex map[string][]string
	fkIndex    map[string][]string
	propIndex  map[string]map[string][]string
	count      int
}

// NewCache builds a cache over store and rebuilds the in-memory indexes
// from the store's full contents.
func NewCache(store *Store, remote RemoteSource, opts Options) (*Cache, error) {
	c := &Cache{
		store:  store,
		remote: remote,
		opts:   opts,
		log:    logging.WithComponent("leadcache"),
	}
	c.resetIndexes()
	if err := store.ForEach(func(lead sharpspring.Lead) error {
		c.index(lead, nil)
		return nil
	}); err != nil {
		return nil, fmt.Errorf("rebuild lead indexes: %w", err)
	}
	metrics.CacheLeads.Set(float64(c.count))
	return c, nil
}

// resetIndexes clears all in-memory indexes (caller must not hold mu).
func (c *Cache) resetIndexes() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.emailIndex = make(map[string][]string)
	c.fkIndex = make(map[string][]string)
	c.propIndex = make(map[string]map[string][]string)
	for _, p := range c.opts.CachedProperties {
		c.propIndex[p] = make(map[string][]string)
	}
	c.count = 0
}

// PopulateFull clears the store and all indexes, then reloads every
// active remote lead. The remote caps pages at MaxPageSize, so the
// fetch loops on offset until a short page is returned.
func (c *Cache) PopulateFull(ctx context.Context) error {
	if err := c.store.DeleteAll(); err != nil {
		return fmt.Errorf("clear lead store: %w", err)
	}
	c.resetIndexes()

	offset := 0
	for {
		page, err := c.remote.GetLeads(ctx, map[string]any{"active": "1"}, sharpspring.MaxPageSize, offset)
		if err != nil {
			return fmt.Errorf("fetch leads at offset %d: %w", offset, err)
		}
		for _, lead := range page {
			if err := c.Observe(lead); err != nil {
				return err
			}
		}
		if len(page) < sharpspring.MaxPageSize {
			break
		}
		offset += len(page)
	}
	logging.Ctx(ctx).Info().Int("leads", c.Len()).Msg("full cache refresh complete")
	return nil
}

// PopulateSince fetches leads changed at or after since and merges them
// into the existing store and indexes, without clearing anything.
func (c *Cache) PopulateSince(ctx context.Context, since time.Time) error {
	offset := 0
	fetched := 0
	for {
		page, err := c.remote.GetLeadsChangedSince(ctx, since, "update", sharpspring.MaxPageSize, offset)
		if err != nil {
			return fmt.Errorf("fetch changed leads at offset %d: %w", offset, err)
		}
		for _, lead := range page {
			if err := c.Observe(lead); err != nil {
				return err
			}
		}
		fetched += len(page)
		if len(page) < sharpspring.MaxPageSize {
			break
		}
		offset += len(page)
	}
	logging.Ctx(ctx).Info().Int("leads", fetched).Time("since", since).Msg("incremental cache refresh complete")
	return nil
}

// LookupByID returns the cached lead for a remote id. When absent and
// remoteFallback is set, the lead is fetched remotely and, if found,
// written through to the store and indexes before returning. Returns
// nil when the id is unknown both locally and remotely.
func (c *Cache) LookupByID(ctx context.Context, id string, remoteFallback bool) (sharpspring.Lead, error) {
	lead, err := c.store.Get(id)
	if err != nil {
		return nil, err
	}
	if lead != nil {
		metrics.CacheLookups.WithLabelValues("id", "hit").Inc()
		return lead, nil
	}
	if !remoteFallback {
		metrics.CacheLookups.WithLabelValues("id", "miss").Inc()
		return nil, nil
	}

	metrics.CacheLookups.WithLabelValues("id", "remote").Inc()
	lead, err = c.remote.GetLead(ctx, id)
	if err != nil || lead == nil {
		return nil, err
	}
	if err := c.Observe(lead); err != nil {
		return nil, err
	}
	return lead, nil
}

// LookupByEmail returns all cached leads indexed under an email
// address. With remoteFallback, an index miss triggers a remote filter
// query whose results are written through before returning.
func (c *Cache) LookupByEmail(ctx context.Context, email string, remoteFallback bool) ([]sharpspring.Lead, error) {
	key := emailKey(email)
	c.mu.RLock()
	ids := append([]string(nil), c.emailIndex[key]...)
	c.mu.RUnlock()

	if len(ids) > 0 {
		metrics.CacheLookups.WithLabelValues("email", "hit").Inc()
		return c.leadsForIDs(ids)
	}
	if !remoteFallback {
		metrics.CacheLookups.WithLabelValues("email", "miss").Inc()
		return nil, nil
	}

	metrics.CacheLookups.WithLabelValues("email", "remote").Inc()
	leads, err := c.remote.GetLeads(ctx, map[string]any{sharpspring.FieldEmail: email}, sharpspring.MaxPageSize, 0)
	if err != nil {
		return nil, err
	}
	for _, lead := range leads {
		if err := c.Observe(lead); err != nil {
			return nil, err
		}
	}
	return leads, nil
}

// LookupByForeignKey returns all cached leads indexed under a foreign
// key value. Index-only: the remote system cannot filter on custom
// fields, so there is no remote fallback.
func (c *Cache) LookupByForeignKey(fk string) ([]sharpspring.Lead, error) {
	if c.opts.ForeignKeyField == "" {
		return nil, fmt.Errorf("leadcache: no foreign key field configured")
	}
	c.mu.RLock()
	ids := append([]string(nil), c.fkIndex[fk]...)
	c.mu.RUnlock()
	if len(ids) == 0 {
		metrics.CacheLookups.WithLabelValues("foreign_key", "miss").Inc()
		return nil, nil
	}
	metrics.CacheLookups.WithLabelValues("foreign_key", "hit").Inc()
	return c.leadsForIDs(ids)
}

// LookupByProperty returns cached leads whose indexed property equals
// value. The property must be listed in Options.CachedProperties.
func (c *Cache) LookupByProperty(name, value string) ([]sharpspring.Lead, error) {
	c.mu.RLock()
	bucket, ok := c.propIndex[name]
	var ids []string
	if ok {
		ids = append([]string(nil), bucket[value]...)
	}
	c.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("leadcache: property %q is not cached", name)
	}
	return c.leadsForIDs(ids)
}

// Observe records a lead version seen in any successful remote
// response: write through to the store, then update the reverse
// indexes. Store first, indexes second, so the indexes never reference
// an id the store does not hold.
func (c *Cache) Observe(lead sharpspring.Lead) error {
	id := lead.ID()
	if id == "" {
		return fmt.Errorf("leadcache: observed lead without id")
	}
	prev, err := c.store.Get(id)
	if err != nil {
		return err
	}
	if err := c.store.Set(id, lead); err != nil {
		return err
	}
	c.index(lead, prev)
	metrics.CacheLeads.Set(float64(c.Len()))
	return nil
}

// ForeignKeyOf extracts the configured foreign key value from a lead.
func (c *Cache) ForeignKeyOf(lead sharpspring.Lead) string {
	if c.opts.ForeignKeyField == "" {
		return ""
	}
	v, _ := lead.Get(c.opts.ForeignKeyField)
	return v
}

// ForEachStored iterates the persistent store in key order.
func (c *Cache) ForEachStored(fn func(sharpspring.Lead) error) error {
	return c.store.ForEach(fn)
}

// Len returns the number of leads currently indexed.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.count
}

// index updates the reverse indexes for a new lead version, removing
// entries the previous version held under other keys.
func (c *Cache) index(lead, prev sharpspring.Lead) {
	id := lead.ID()

	c.mu.Lock()
	defer c.mu.Unlock()

	if prev == nil {
		c.count++
	}

	if prev != nil {
		if oldEmail := emailKey(prev.Email()); oldEmail != "" && oldEmail != emailKey(lead.Email()) {
			c.emailIndex[oldEmail] = removeID(c.emailIndex[oldEmail], id)
		}
		if c.opts.ForeignKeyField != "" {
			oldFK, _ := prev.Get(c.opts.ForeignKeyField)
			newFK, _ := lead.Get(c.opts.ForeignKeyField)
			if oldFK != "" && oldFK != newFK {
				c.fkIndex[oldFK] = removeID(c.fkIndex[oldFK], id)
			}
		}
		for _, p := range c.opts.CachedProperties {
			oldVal, _ := prev.Get(p)
			newVal, _ := lead.Get(p)
			if oldVal != "" && oldVal != newVal {
				c.propIndex[p][oldVal] = removeID(c.propIndex[p][oldVal], id)
			}
		}
	}

	if email := emailKey(lead.Email()); email != "" {
		c.emailIndex[email] = c.appendIndexed("email", c.emailIndex[email], email, id)
	}
	if c.opts.ForeignKeyField != "" {
		if fk, _ := lead.Get(c.opts.ForeignKeyField); fk != "" {
			c.fkIndex[fk] = c.appendIndexed("foreign key", c.fkIndex[fk], fk, id)
		}
	}
	for _, p := range c.opts.CachedProperties {
		if v, _ := lead.Get(p); v != "" {
			c.propIndex[p][v] = c.appendIndexed("property "+p, c.propIndex[p][v], v, id)
		}
	}
}

// appendIndexed adds id to an index bucket, tolerating but flagging
// duplicates: a second id under the same email or foreign key is
// anomalous, so it is logged and appended, never overwritten.
func (c *Cache) appendIndexed(kind string, ids []string, key, id string) []string {
	for _, existing := range ids {
		if existing == id {
			return ids
		}
	}
	if len(ids) > 0 {
		c.log.Warn().
			Str("key", key).
			Strs("existing_ids", ids).
			Str("new_id", id).
			Msg("duplicate " + kind + " index entry")
	}
	return append(ids, id)
}

// leadsForIDs loads leads from the store for a set of ids.
func (c *Cache) leadsForIDs(ids []string) ([]sharpspring.Lead, error) {
	leads := make([]sharpspring.Lead, 0, len(ids))
	for _, id := range ids {
		lead, err := c.store.Get(id)
		if err != nil {
			return nil, err
		}
		if lead != nil {
			leads = append(leads, lead)
		}
	}
	return leads, nil
}

// removeID drops id from a bucket, preserving order.
func removeID(ids []string, id string) []string {
	for i, existing := range ids {
		if existing == id {
			return append(ids[:i:i], ids[i+1:]...)
		}
	}
	return ids
}

// emailKey normalizes an email address for index lookup. The remote
// system treats addresses case-insensitively.
func emailKey(email string) string {
	return strings.ToLower(email)
}
