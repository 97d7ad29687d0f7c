// Sharpspring Lead Sync - Go client for the Sharpspring REST API
// Copyright 2026 Roderik Muit (rmuit)
// SPDX-License-Identifier: MIT
// https://github.com/rmuit/sharpspring-restapi

// Package main is the entry point of the lead sync daemon.
//
// The daemon keeps an external contact database (a JSON export dropped
// on disk) reconciled with a Sharpspring account:
//
//  1. Configuration: layered Koanf sources (defaults, YAML file,
//     LEADSYNC_* environment variables).
//  2. Lead cache: a local BadgerDB mirror of the remote leads with
//     in-memory email / foreign-key indexes, refreshed fully on first
//     run and incrementally afterwards.
//  3. Sharpspring client: rate-limited HTTP client with 429 retries,
//     wrapped in a circuit breaker.
//  4. Supervision: a suture tree running the periodic reconciliation
//     service and the operational HTTP endpoint (/healthz, /metrics).
//
// Shutdown on SIGINT/SIGTERM is graceful: the running pass finishes its
// current remote call, the HTTP server drains, the cache is closed.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/rmuit/sharpspring-restapi-sub000/internal/config"
	"github.com/rmuit/sharpspring-restapi-sub000/internal/httpserver"
	"github.com/rmuit/sharpspring-restapi-sub000/internal/leadcache"
	"github.com/rmuit/sharpspring-restapi-sub000/internal/logging"
	"github.com/rmuit/sharpspring-restapi-sub000/internal/reconcile"
	"github.com/rmuit/sharpspring-restapi-sub000/internal/sharpspring"
	"github.com/rmuit/sharpspring-restapi-sub000/internal/source"
	"github.com/rmuit/sharpspring-restapi-sub000/internal/supervisor"
	"github.com/rmuit/sharpspring-restapi-sub000/internal/supervisor/services"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("base_url", cfg.Sharpspring.BaseURL).
		Str("cache_path", cfg.Cache.Path).
		Str("source_path", cfg.Sync.SourcePath).
		Dur("interval", cfg.Sync.Interval).
		Msg("Configuration loaded")

	store, err := leadcache.OpenStore(cfg.Cache.Path, cfg.Cache.InMemory)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open lead cache store")
	}
	defer func() {
		if err := store.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing lead cache store")
		}
	}()

	client := sharpspring.NewBreakerClient(sharpspring.NewClient(&cfg.Sharpspring))

	cache, err := leadcache.NewCache(store, client, leadcache.Options{
		ForeignKeyField:  cfg.Sync.ForeignKeyField,
		CachedProperties: cfg.Sync.CachedProperties,
	})
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to build lead cache")
	}
	logging.Info().Int("leads", cache.Len()).Msg("Lead cache opened")

	engine := reconcile.NewEngine(client, cache, reconcile.Config{
		BatchSize:       cfg.Sync.BatchSize,
		ForeignKeyField: cfg.Sync.ForeignKeyField,
		FieldMap:        sharpspring.FieldMap(cfg.Sync.FieldMap),
	})
	src := source.NewFileSource(cfg.Sync.SourcePath, cfg.Sync.SourceComplete)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	tree.AddSyncService(services.NewLeadSyncService(cache, engine, src, cfg.Sync.Interval))
	tree.AddAPIService(httpserver.NewServer(cfg.HTTP.ListenAddr))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Msg("Starting supervisor tree")
	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}
	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
	}

	logging.Info().Msg("Lead sync stopped")
}
