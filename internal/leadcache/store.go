// Sharpspring Lead Sync - Go client for the Sharpspring REST API
// Copyright 2026 Roderik Muit (rmuit)
// SPDX-License-Identifier: MIT
// https://github.com/rmuit/sharpspring-restapi

// Package leadcache caches Sharpspring leads in a local BadgerDB store
// with in-memory reverse-lookup indexes, so a reconciliation pass can
// match thousands of source records without one remote call each.
package leadcache

import (
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/rmuit/sharpspring-restapi-sub000/internal/sharpspring"
)

// leadKeyPrefix namespaces lead entries in the store.
const leadKeyPrefix = "lead:"

// Store is the persistent lead store, one entry per remote lead id.
type Store struct {
	db *badger.DB
}

// OpenStore opens (or creates) a Badger-backed lead store at path.
// inMemory runs without disk persistence, for tests and one-off runs.
func OpenStore(path string, inMemory bool) (*Store, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	if inMemory {
		opts = badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open lead store: %w", err)
	}
	return &Store{db: db}, nil
}

// NewStore wraps an already-open Badger database.
func NewStore(db *badger.DB) *Store {
	return &Store{db: db}
}

// Close releases the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Get returns the lead stored under id, or nil when absent.
func (s *Store) Get(id string) (sharpspring.Lead, error) {
	var lead sharpspring.Lead
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(leadKeyPrefix + id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("get lead %s: %w", id, err)
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &lead)
		})
	})
	if err != nil {
		return nil, err
	}
	return lead, nil
}

// Set stores the lead under id, overwriting any previous version.
func (s *Store) Set(id string, lead sharpspring.Lead) error {
	data, err := json.Marshal(lead)
	if err != nil {
		return fmt.Errorf("marshal lead %s: %w", id, err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(leadKeyPrefix+id), data)
	})
}

// DeleteAll removes every lead entry. Used by full cache refreshes.
func (s *Store) DeleteAll() error {
	return s.db.DropPrefix([]byte(leadKeyPrefix))
}

// ScanBatch returns up to limit leads starting at offset, ordered by
// store key. Paging with increasing offsets until a short batch comes
// back visits every entry exactly once, provided the store is not
// mutated mid-scan.
func (s *Store) ScanBatch(limit, offset int) ([]sharpspring.Lead, error) {
	var leads []sharpspring.Lead
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(leadKeyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		skipped := 0
		for it.Rewind(); it.Valid(); it.Next() {
			if skipped < offset {
				skipped++
				continue
			}
			if len(leads) == limit {
				break
			}
			var lead sharpspring.Lead
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &lead)
			})
			if err != nil {
				return fmt.Errorf("decode lead %s: %w", it.Item().Key(), err)
			}
			leads = append(leads, lead)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return leads, nil
}

// ForEach calls fn for every stored lead in key order. A non-nil error
// from fn stops the scan.
func (s *Store) ForEach(fn func(sharpspring.Lead) error) error {
	return s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(leadKeyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var lead sharpspring.Lead
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &lead)
			})
			if err != nil {
				return fmt.Errorf("decode lead %s: %w", it.Item().Key(), err)
			}
			if err := fn(lead); err != nil {
				return err
			}
		}
		return nil
	})
}
