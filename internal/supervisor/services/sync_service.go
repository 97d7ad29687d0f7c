// Sharpspring Lead Sync - Go client for the Sharpspring REST API
// Copyright 2026 Roderik Muit (rmuit)
// SPDX-License-Identifier: MIT
// https://github.com/rmuit/sharpspring-restapi

// Package services contains the supervised services of the lead sync
// daemon.
package services

import (
	"context"
	"time"

	"github.com/rmuit/sharpspring-restapi-sub000/internal/leadcache"
	"github.com/rmuit/sharpspring-restapi-sub000/internal/logging"
	"github.com/rmuit/sharpspring-restapi-sub000/internal/reconcile"
)

// populateOverlap is subtracted from the last successful population
// timestamp on incremental refreshes, so clock skew between us and the
// remote system cannot drop changes.
const populateOverlap = 5 * time.Minute

// LeadSyncService runs one reconciliation pass immediately on start and
// then on every interval tick until its context is cancelled.
//
// A failed pass is logged and waited out; it does not crash the service,
// because the next tick retries from scratch anyway. Suture restarts
// only cover genuine panics.
type LeadSyncService struct {
	cache    *leadcache.Cache
	engine   *reconcile.Engine
	source   reconcile.Source
	interval time.Duration

	populated bool
	lastSync  time.Time
}

// NewLeadSyncService wires a sync service.
func NewLeadSyncService(cache *leadcache.Cache, engine *reconcile.Engine, source reconcile.Source, interval time.Duration) *LeadSyncService {
	return &LeadSyncService{
		cache:    cache,
		engine:   engine,
		source:   source,
		interval: interval,
	}
}

// Serve implements suture.Service.
func (s *LeadSyncService) Serve(ctx context.Context) error {
	s.runOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

func (s *LeadSyncService) runOnce(ctx context.Context) {
	ctx = logging.ContextWithRunID(ctx, logging.NewRunID())
	log := logging.Ctx(ctx)
	started := time.Now()
	log.Info().Msg("starting reconciliation pass")

	if err := s.populate(ctx, started); err != nil {
		log.Error().Err(err).Msg("cache population failed, skipping pass")
		return
	}

	candidates, err := s.source.FetchCandidates(ctx)
	if err != nil {
		log.Error().Err(err).Msg("fetching source candidates failed, skipping pass")
		return
	}

	totals, err := s.engine.Run(ctx, candidates, s.source.Complete())
	if err != nil {
		log.Error().Err(err).Msg("reconciliation pass aborted")
		return
	}
	log.Info().
		Int("candidates", len(candidates)).
		Int("cached_leads", s.cache.Len()).
		Dur("elapsed", time.Since(started)).
		Interface("totals", totals).
		Msg("reconciliation pass finished")
}

// populate refreshes the lead cache: a full fetch the first time (or
// after a failed full fetch), incremental ever after.
func (s *LeadSyncService) populate(ctx context.Context, started time.Time) error {
	if !s.populated {
		if err := s.cache.PopulateFull(ctx); err != nil {
			return err
		}
		s.populated = true
		s.lastSync = started
		return nil
	}
	if err := s.cache.PopulateSince(ctx, s.lastSync.Add(-populateOverlap)); err != nil {
		return err
	}
	s.lastSync = started
	return nil
}

// String identifies the service in supervisor logs.
func (s *LeadSyncService) String() string { return "lead-sync" }
