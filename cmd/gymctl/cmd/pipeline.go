package cmd

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/rryowa/gymsession/internal/authclient"
	"github.com/rryowa/gymsession/internal/metrics"
	sessionbackend "github.com/rryowa/gymsession/internal/storage/backend"
	"github.com/rryowa/gymsession/internal/storage/memory"
)

// pipeline bundles the client with the resources it was built from.
type pipeline struct {
	client  *authclient.Client
	store   *memory.SessionStore
	reg     *prometheus.Registry
	cleanup func()
}

func openPipeline(ctx context.Context) (*pipeline, error) {
	persister, cleanup, err := sessionbackend.Open(ctx, cfg, log)
	if err != nil {
		return nil, fmt.Errorf("opening session backend: %w", err)
	}

	store := memory.NewSessionStore(persister, log)
	if err := store.Restore(ctx); err != nil {
		log.Warnw("Could not restore session, starting signed out", "backend", cfg.SessionBackend, "error", err)
	}

	httpClient := &http.Client{Timeout: cfg.RequestTimeout}
	tokens, err := authclient.NewTokenAPI(cfg, httpClient, log)
	if err != nil {
		cleanup()
		return nil, err
	}

	reg := prometheus.NewRegistry()
	client, err := authclient.NewClient(cfg.BaseURL, store, tokens, httpClient, log, metrics.New(reg))
	if err != nil {
		cleanup()
		return nil, err
	}
	client.OnSessionExpired(func(err error) {
		log.Warnw("Session expired, run `gymctl login` again", "error", err)
	})

	return &pipeline{client: client, store: store, reg: reg, cleanup: cleanup}, nil
}

func (p *pipeline) Close() {
	p.client.Close()
	p.cleanup()

	if metricsOut == "" {
		return
	}
	if err := prometheus.WriteToTextfile(metricsOut, p.reg); err != nil {
		log.Warnw("Failed to write metrics", "path", metricsOut, "error", err)
	}
}
