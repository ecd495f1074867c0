// Package engine wires configuration into a runnable check-in engine.
// The scheduling/CLI wrapper that decides when to call it lives outside
// this module.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"time"

	"github.com/WangEdward/embykeeper/internal/bus"
	"github.com/WangEdward/embykeeper/internal/checkin"
	"github.com/WangEdward/embykeeper/internal/config"
	"github.com/WangEdward/embykeeper/internal/history"
	"github.com/WangEdward/embykeeper/internal/ocr"
	"github.com/WangEdward/embykeeper/internal/telegram"
)

// Engine owns the collaborators shared across runs: the transport pool,
// the update hub, the answer history store, and the captcha resolver.
type Engine struct {
	cfg     *config.Config
	hub     *bus.UpdateHub
	pool    *telegram.Pool
	hist    *history.Store
	ocr     ocr.Resolver
	targets []checkin.TargetProfile
	started bool
}

// New builds an Engine from config. It connects one transport client per
// account and opens the history store, but starts no receive loops yet.
func New(cfg *config.Config) (*Engine, error) {
	if len(cfg.Accounts) == 0 {
		return nil, fmt.Errorf("engine: no accounts configured")
	}
	targets := checkin.ResolveTargets(cfg)
	if len(targets) == 0 {
		return nil, fmt.Errorf("engine: no enabled targets with a chat id")
	}

	hub := bus.NewUpdateHub(0)
	pool := telegram.NewPool()
	mediaDir := filepath.Join(cfg.DataDir, "media")
	for _, a := range cfg.Accounts {
		c, err := telegram.NewClient(a.Name, a.Token, hub, mediaDir)
		if err != nil {
			return nil, fmt.Errorf("engine: account %q: %w", a.Name, err)
		}
		pool.Add(c)
	}

	hist, err := history.Open(filepath.Join(cfg.DataDir, "history.db"))
	if err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}

	return &Engine{
		cfg:     cfg,
		hub:     hub,
		pool:    pool,
		hist:    hist,
		ocr:     ocr.NewVisionResolver(cfg.OCR.APIKey, cfg.OCR.BaseURL, cfg.OCR.Model),
		targets: targets,
	}, nil
}

// RunOnce performs one full check-in run across all accounts and targets
// and returns one result per pair.
func (e *Engine) RunOnce(ctx context.Context) (map[checkin.PairKey]checkin.Result, error) {
	if !e.started {
		if err := e.pool.StartAll(ctx); err != nil {
			return nil, fmt.Errorf("engine: %w", err)
		}
		e.started = true
	}

	o := checkin.NewOrchestrator(checkin.OrchestratorConfig{
		Transport: e.pool,
		OCR:       e.ocr,
		Hub:       e.hub,
		History:   e.hist,
	})
	timeout := time.Duration(e.cfg.Timeout) * time.Second
	results := o.Run(ctx, e.pool.Accounts(), e.targets, timeout)

	for _, line := range Report(results) {
		slog.Info(line)
	}
	return results, nil
}

// Close stops the transport pool and the history store.
func (e *Engine) Close() error {
	if e.started {
		e.pool.StopAll()
	}
	return e.hist.Close()
}

// Report renders one operator-facing line per (account, target) pair, in
// stable order.
func Report(results map[checkin.PairKey]checkin.Result) []string {
	keys := make([]checkin.PairKey, 0, len(results))
	for k := range results {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Account != keys[j].Account {
			return keys[i].Account < keys[j].Account
		}
		return keys[i].Target < keys[j].Target
	})

	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		lines = append(lines, fmt.Sprintf("checkin %s: %s", k, results[k]))
	}
	return lines
}
