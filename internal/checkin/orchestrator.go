package checkin

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/WangEdward/embykeeper/internal/bus"
)

// Orchestrator runs one session per (account, target) pair concurrently
// under a single wall-clock deadline and aggregates their results.
type Orchestrator struct {
	transport Transport
	ocr       OCR
	hub       *bus.UpdateHub
	hist      History
}

// OrchestratorConfig holds the collaborators shared by all sessions of a run.
type OrchestratorConfig struct {
	Transport Transport
	OCR       OCR
	Hub       *bus.UpdateHub
	History   History
}

// NewOrchestrator creates an Orchestrator from the given config.
func NewOrchestrator(cfg OrchestratorConfig) *Orchestrator {
	return &Orchestrator{
		transport: cfg.Transport,
		ocr:       cfg.OCR,
		hub:       cfg.Hub,
		hist:      cfg.History,
	}
}

// Run starts every (account, target) session, waits for all of them to
// reach a terminal phase or for the deadline, and returns exactly one
// result per pair. Sessions still non-terminal at the deadline report
// timed-out; nothing is left running when Run returns.
func (o *Orchestrator) Run(ctx context.Context, accounts []string, targets []TargetProfile, timeout time.Duration) map[PairKey]Result {
	runCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	results := make(map[PairKey]Result, len(accounts)*len(targets))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(runCtx)
	for _, account := range accounts {
		for _, target := range targets {
			key := PairKey{Account: account, Target: target.ID}
			sess := NewSession(SessionConfig{
				Account:   account,
				Profile:   target,
				Transport: o.transport,
				OCR:       o.ocr,
				Hub:       o.hub,
				History:   o.hist,
			})
			g.Go(func() error {
				r := sess.Run(gctx)
				mu.Lock()
				results[key] = r
				mu.Unlock()
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		slog.Error("checkin: run aborted", "error", err)
	}

	// Sessions absorb their own errors, so every pair has reported by now;
	// this is a completeness backstop only.
	for _, account := range accounts {
		for _, target := range targets {
			key := PairKey{Account: account, Target: target.ID}
			if _, ok := results[key]; !ok {
				results[key] = ResultTimedOut
			}
		}
	}
	return results
}
