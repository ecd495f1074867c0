package checkin

import (
	"context"
	"log/slog"
	"strings"

	"github.com/WangEdward/embykeeper/internal/bus"
)

// History provides past answer outcomes for fallback selection and records
// new ones. Implementations are keyed by target ID.
type History interface {
	// RecentSuccess returns the most recently successful option label for
	// the target, if any.
	RecentSuccess(ctx context.Context, target string) (string, bool, error)
	// Append records one (label, outcome) pair, evicting entries beyond
	// the window.
	Append(ctx context.Context, target, label string, success bool, window int) error
}

// SelectAnswer picks the option matching the profile's success keywords.
// Options are scanned in presentation order and the first match wins. When
// no keyword matches and the profile keeps history, the most recently
// successful label is tried instead. The second return is false when no
// usable option exists, signaling the session to retry rather than guess.
func SelectAnswer(ctx context.Context, opts []bus.Option, p *TargetProfile, hist History) (bus.Option, bool) {
	for _, opt := range opts {
		for _, kw := range p.SuccessKeywords {
			if containsFold(opt.Label, kw, p.CaseFold) {
				return opt, true
			}
		}
	}

	if hist == nil || p.HistoryWindow <= 0 {
		return bus.Option{}, false
	}
	label, ok, err := hist.RecentSuccess(ctx, p.ID)
	if err != nil {
		slog.Warn("checkin: history lookup failed", "target", p.ID, "error", err)
		return bus.Option{}, false
	}
	if !ok {
		return bus.Option{}, false
	}
	for _, opt := range opts {
		if opt.Label == label {
			return opt, true
		}
	}
	return bus.Option{}, false
}

func containsFold(s, substr string, fold bool) bool {
	if fold {
		return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
	}
	return strings.Contains(s, substr)
}
