// Sharpspring Lead Sync - Go client for the Sharpspring REST API
// Copyright 2026 Roderik Muit (rmuit)
// SPDX-License-Identifier: MIT
// https://github.com/rmuit/sharpspring-restapi

package leadcache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/rmuit/sharpspring-restapi-sub000/internal/sharpspring"
)

// fakeRemote is a scripted RemoteSource that records how often it was
// called.
type fakeRemote struct {
	leads       map[string]sharpspring.Lead // by id
	pages       [][]sharpspring.Lead        // served by GetLeads in order
	getCalls    int
	filterCalls int
	rangeCalls  int
}

func (f *fakeRemote) GetLead(ctx context.Context, id string) (sharpspring.Lead, error) {
	f.getCalls++
	lead, ok := f.leads[id]
	if !ok {
		return nil, nil
	}
	return lead, nil
}

func (f *fakeRemote) GetLeads(ctx context.Context, where map[string]any, limit, offset int) ([]sharpspring.Lead, error) {
	f.filterCalls++
	if email, ok := where[sharpspring.FieldEmail]; ok {
		var out []sharpspring.Lead
		for _, l := range f.leads {
			if l.Email() == email {
				out = append(out, l)
			}
		}
		return out, nil
	}
	if len(f.pages) == 0 {
		return nil, nil
	}
	page := f.pages[0]
	f.pages = f.pages[1:]
	return page, nil
}

func (f *fakeRemote) GetLeadsChangedSince(ctx context.Context, since time.Time, kind string, limit, offset int) ([]sharpspring.Lead, error) {
	f.rangeCalls++
	if len(f.pages) == 0 {
		return nil, nil
	}
	page := f.pages[0]
	f.pages = f.pages[1:]
	return page, nil
}

func newTestCache(t *testing.T, remote RemoteSource, opts Options) *Cache {
	t.Helper()
	store, err := OpenStore("", true)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = store.Close() })
	cache, err := NewCache(store, remote, opts)
	if err != nil {
		t.Fatal(err)
	}
	return cache
}

func lead(id, email string, extra ...string) sharpspring.Lead {
	l := sharpspring.Lead{
		sharpspring.FieldID:     id,
		sharpspring.FieldEmail:  email,
		sharpspring.FieldActive: "1",
	}
	for i := 0; i+1 < len(extra); i += 2 {
		l[extra[i]] = extra[i+1]
	}
	return l
}

func TestStoreRoundTrip(t *testing.T) {
	store, err := OpenStore("", true)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	if err := store.Set("1", lead("1", "a@x.com")); err != nil {
		t.Fatal(err)
	}
	got, err := store.Get("1")
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || got.Email() != "a@x.com" {
		t.Errorf("Get(1) = %v", got)
	}

	missing, err := store.Get("nope")
	if err != nil {
		t.Fatal(err)
	}
	if missing != nil {
		t.Errorf("Get(nope) = %v, want nil", missing)
	}
}

func TestStoreScanBatchPages(t *testing.T) {
	store, err := OpenStore("", true)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	for i := 1; i <= 5; i++ {
		id := fmt.Sprintf("%d", i)
		if err := store.Set(id, lead(id, id+"@x.com")); err != nil {
			t.Fatal(err)
		}
	}

	var all []sharpspring.Lead
	offset := 0
	for {
		batch, err := store.ScanBatch(2, offset)
		if err != nil {
			t.Fatal(err)
		}
		all = append(all, batch...)
		if len(batch) < 2 {
			break
		}
		offset += len(batch)
	}
	if len(all) != 5 {
		t.Errorf("paged scan visited %d leads, want 5", len(all))
	}
}

func TestStoreDeleteAll(t *testing.T) {
	store, err := OpenStore("", true)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	_ = store.Set("1", lead("1", "a@x.com"))
	if err := store.DeleteAll(); err != nil {
		t.Fatal(err)
	}
	got, _ := store.Get("1")
	if got != nil {
		t.Error("store should be empty after DeleteAll")
	}
}

func TestNewCacheRebuildsIndexes(t *testing.T) {
	store, err := OpenStore("", true)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = store.Close() })
	_ = store.Set("1", lead("1", "jane@x.com", "sourceID_1", "S1"))

	cache, err := NewCache(store, &fakeRemote{}, Options{ForeignKeyField: "sourceID_1"})
	if err != nil {
		t.Fatal(err)
	}
	leads, err := cache.LookupByEmail(context.Background(), "jane@x.com", false)
	if err != nil {
		t.Fatal(err)
	}
	if len(leads) != 1 {
		t.Errorf("email index not rebuilt from store: %v", leads)
	}
	byFK, err := cache.LookupByForeignKey("S1")
	if err != nil {
		t.Fatal(err)
	}
	if len(byFK) != 1 {
		t.Errorf("foreign key index not rebuilt from store: %v", byFK)
	}
}

func TestPopulateFullPagesUntilShortPage(t *testing.T) {
	// Two full pages then a short one; page size in tests is
	// sharpspring.MaxPageSize, so fabricate full pages of that length.
	full1 := make([]sharpspring.Lead, sharpspring.MaxPageSize)
	full2 := make([]sharpspring.Lead, sharpspring.MaxPageSize)
	for i := range full1 {
		full1[i] = lead(fmt.Sprintf("a%d", i), fmt.Sprintf("a%d@x.com", i))
		full2[i] = lead(fmt.Sprintf("b%d", i), fmt.Sprintf("b%d@x.com", i))
	}
	short := []sharpspring.Lead{lead("z", "z@x.com")}

	remote := &fakeRemote{pages: [][]sharpspring.Lead{full1, full2, short}}
	cache := newTestCache(t, remote, Options{})

	if err := cache.PopulateFull(context.Background()); err != nil {
		t.Fatal(err)
	}
	if remote.filterCalls != 3 {
		t.Errorf("filterCalls = %d, want 3 (loop until short page)", remote.filterCalls)
	}
	if cache.Len() != 2*sharpspring.MaxPageSize+1 {
		t.Errorf("Len() = %d, want %d", cache.Len(), 2*sharpspring.MaxPageSize+1)
	}
}

func TestLookupByIDRemoteFallbackWritesThrough(t *testing.T) {
	remote := &fakeRemote{leads: map[string]sharpspring.Lead{
		"7": lead("7", "amy@x.com"),
	}}
	cache := newTestCache(t, remote, Options{})

	got, err := cache.LookupByID(context.Background(), "7", true)
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || got.Email() != "amy@x.com" {
		t.Fatalf("LookupByID = %v", got)
	}

	// The fetched lead must now be visible via the email index with no
	// further remote calls.
	remote.filterCalls = 0
	byEmail, err := cache.LookupByEmail(context.Background(), "amy@x.com", false)
	if err != nil {
		t.Fatal(err)
	}
	if len(byEmail) != 1 {
		t.Error("write-through did not update email index")
	}
	if remote.filterCalls != 0 {
		t.Error("email lookup should not have called the remote")
	}
}

func TestLookupByIDNoFallback(t *testing.T) {
	remote := &fakeRemote{leads: map[string]sharpspring.Lead{
		"7": lead("7", "amy@x.com"),
	}}
	cache := newTestCache(t, remote, Options{})

	got, err := cache.LookupByID(context.Background(), "7", false)
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Errorf("LookupByID without fallback = %v, want nil", got)
	}
	if remote.getCalls != 0 {
		t.Error("no remote call expected without fallback")
	}
}

func TestLookupByEmailIndexFirst(t *testing.T) {
	remote := &fakeRemote{}
	cache := newTestCache(t, remote, Options{})
	if err := cache.Observe(lead("1", "Jane@X.com")); err != nil {
		t.Fatal(err)
	}

	// Case-insensitive hit, zero remote calls.
	leads, err := cache.LookupByEmail(context.Background(), "jane@x.COM", true)
	if err != nil {
		t.Fatal(err)
	}
	if len(leads) != 1 {
		t.Fatalf("LookupByEmail = %v", leads)
	}
	if remote.filterCalls != 0 {
		t.Error("indexed lookup must not call remote")
	}
}

func TestLookupByForeignKeyDuplicatesRetained(t *testing.T) {
	cache := newTestCache(t, &fakeRemote{}, Options{ForeignKeyField: "sourceID_1"})

	_ = cache.Observe(lead("1", "a@x.com", "sourceID_1", "S9"))
	_ = cache.Observe(lead("2", "b@x.com", "sourceID_1", "S9"))

	leads, err := cache.LookupByForeignKey("S9")
	if err != nil {
		t.Fatal(err)
	}
	// Both mappings survive; the duplicate is flagged, not overwritten.
	if len(leads) != 2 {
		t.Errorf("LookupByForeignKey = %d leads, want both duplicates", len(leads))
	}
}

func TestLookupByForeignKeyUnconfigured(t *testing.T) {
	cache := newTestCache(t, &fakeRemote{}, Options{})
	if _, err := cache.LookupByForeignKey("S1"); err == nil {
		t.Error("expected error when no foreign key field is configured")
	}
}

func TestObserveEmailChangeMovesIndexEntry(t *testing.T) {
	cache := newTestCache(t, &fakeRemote{}, Options{})

	_ = cache.Observe(lead("1", "old@x.com"))
	_ = cache.Observe(lead("1", "new@x.com"))

	old, _ := cache.LookupByEmail(context.Background(), "old@x.com", false)
	if len(old) != 0 {
		t.Errorf("old email still indexed: %v", old)
	}
	updated, _ := cache.LookupByEmail(context.Background(), "new@x.com", false)
	if len(updated) != 1 {
		t.Errorf("new email not indexed: %v", updated)
	}
	if cache.Len() != 1 {
		t.Errorf("Len() = %d, want 1 (update, not insert)", cache.Len())
	}
}

func TestPopulateSinceMerges(t *testing.T) {
	remote := &fakeRemote{pages: [][]sharpspring.Lead{
		{lead("5", "e@x.com")},
	}}
	cache := newTestCache(t, remote, Options{})
	_ = cache.Observe(lead("1", "a@x.com"))

	if err := cache.PopulateSince(context.Background(), time.Now().Add(-time.Hour)); err != nil {
		t.Fatal(err)
	}
	if cache.Len() != 2 {
		t.Errorf("Len() = %d, want 2 (merge keeps existing entries)", cache.Len())
	}
}
