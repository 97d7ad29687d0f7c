// Sharpspring Lead Sync - Go client for the Sharpspring REST API
// Copyright 2026 Roderik Muit (rmuit)
// SPDX-License-Identifier: MIT
// https://github.com/rmuit/sharpspring-restapi

// Package source provides candidate sources for the reconciliation
// engine. The file source reads a JSON export dropped in place by an
// external system; it is re-read on every pass so the file can be
// swapped atomically between passes.
package source

import (
	"context"
	"fmt"
	"os"

	"github.com/goccy/go-json"

	"github.com/rmuit/sharpspring-restapi-sub000/internal/reconcile"
	"github.com/rmuit/sharpspring-restapi-sub000/internal/sharpspring"
)

// fileDocument is the wrapper form of the export file. A bare JSON array
// of records is also accepted and treated as {complete: <configured>}.
type fileDocument struct {
	// Complete marks the file as a full enumeration of the source
	// system. When present it overrides the configured default.
	Complete *bool            `json:"complete"`
	Records  []map[string]any `json:"records"`
}

// FileSource reads reconciliation candidates from a JSON file.
type FileSource struct {
	path     string
	complete bool
}

// NewFileSource builds a source reading path. complete is the default
// completeness of the export, used when the file itself doesn't say.
func NewFileSource(path string, complete bool) *FileSource {
	return &FileSource{path: path, complete: complete}
}

// FetchCandidates re-reads the export file. Each record is one candidate
// in file order; a record's "active" field (default true) becomes the
// candidate's active flag and is removed from the lead, the record's
// remaining fields become the lead verbatim.
func (s *FileSource) FetchCandidates(_ context.Context) ([]reconcile.Candidate, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("source: reading %s: %w", s.path, err)
	}

	var records []map[string]any
	if len(raw) > 0 && raw[0] == '[' {
		if err := json.Unmarshal(raw, &records); err != nil {
			return nil, fmt.Errorf("source: parsing %s: %w", s.path, err)
		}
	} else {
		var doc fileDocument
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, fmt.Errorf("source: parsing %s: %w", s.path, err)
		}
		records = doc.Records
		if doc.Complete != nil {
			s.complete = *doc.Complete
		}
	}

	candidates := make([]reconcile.Candidate, 0, len(records))
	for _, rec := range records {
		lead := sharpspring.Lead(rec)
		activeVal, present := rec[sharpspring.FieldActive]
		active := true
		if present {
			active = sharpspring.StringValue(activeVal) != "0"
			delete(lead, sharpspring.FieldActive)
		}
		candidates = append(candidates, reconcile.Candidate{Lead: lead, Active: active})
	}
	return candidates, nil
}

// Complete reports whether the last read file (or, before the first
// read, the configuration) declares a full enumeration.
func (s *FileSource) Complete() bool { return s.complete }

var _ reconcile.Source = (*FileSource)(nil)
