package checkin

import (
	"testing"
	"time"

	"github.com/WangEdward/embykeeper/internal/config"
)

func TestBuiltinsAreWellFormed(t *testing.T) {
	seen := map[string]bool{}
	for _, p := range Builtins() {
		if p.ID == "" || p.Name == "" {
			t.Errorf("builtin missing identity: %+v", p)
		}
		if seen[p.ID] {
			t.Errorf("duplicate builtin ID %q", p.ID)
		}
		seen[p.ID] = true
		if p.ChatID != "" {
			t.Errorf("builtin %q must not hardcode a ChatID", p.ID)
		}
	}
	if !seen["ljyy"] || !seen["peach"] {
		t.Errorf("expected ljyy and peach in the builtin roster, got %v", seen)
	}
}

func TestResolveTargetsSkipsWithoutChatID(t *testing.T) {
	cfg := config.DefaultConfig()
	if got := ResolveTargets(cfg); len(got) != 0 {
		t.Errorf("targets without a ChatID must be skipped, got %v", got)
	}
}

func TestResolveTargetsOverridesBuiltin(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Retries = 7
	cfg.Targets = []config.TargetConfig{
		{ID: "ljyy", ChatID: "5000", MaxAttempts: 2},
	}
	got := ResolveTargets(cfg)
	if len(got) != 1 {
		t.Fatalf("expected 1 enabled target, got %d", len(got))
	}
	p := got[0]
	if p.ChatID != "5000" {
		t.Errorf("ChatID = %q, want override", p.ChatID)
	}
	if p.MaxAttempts != 2 {
		t.Errorf("MaxAttempts = %d, want override 2", p.MaxAttempts)
	}
	// Builtin fields survive the merge.
	if p.CaptchaLen != 4 || p.HistoryWindow != 20 || !p.ClickBeforeRetry {
		t.Errorf("builtin fields lost in merge: %+v", p)
	}
}

func TestResolveTargetsNewTargetGetsDefaults(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Targets = []config.TargetConfig{
		{ID: "custom", Name: "Custom", ChatID: "9000"},
	}
	got := ResolveTargets(cfg)
	if len(got) != 1 {
		t.Fatalf("expected 1 target, got %d", len(got))
	}
	p := got[0]
	if p.Trigger != defaultTrigger {
		t.Errorf("Trigger = %q, want default", p.Trigger)
	}
	if p.MaxAttempts != cfg.Retries {
		t.Errorf("MaxAttempts = %d, want run default %d", p.MaxAttempts, cfg.Retries)
	}
	if len(p.SuccessKeywords) == 0 {
		t.Error("expected default success keywords")
	}
	if p.JitterMin != defaultJitterMin || p.JitterMax != defaultJitterMax {
		t.Errorf("jitter defaults missing: %v..%v", p.JitterMin, p.JitterMax)
	}
}

func TestResolveTargetsDisabled(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Targets = []config.TargetConfig{
		{ID: "ljyy", ChatID: "5000"},
		{ID: "ljyy", Disabled: true},
	}
	if got := ResolveTargets(cfg); len(got) != 0 {
		t.Errorf("disabled target must be excluded, got %v", got)
	}
}

func TestNormalizedKeepsExplicitJitter(t *testing.T) {
	p := TargetProfile{ID: "t", JitterMin: time.Second, JitterMax: 2 * time.Second}
	n := p.normalized(3)
	if n.JitterMin != time.Second || n.JitterMax != 2*time.Second {
		t.Errorf("explicit jitter overwritten: %v..%v", n.JitterMin, n.JitterMax)
	}
}

func TestResultString(t *testing.T) {
	cases := map[Result]string{
		ResultSuccess:  "success",
		ResultFailed:   "failed",
		ResultTimedOut: "timed-out",
	}
	for r, want := range cases {
		if got := r.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", int(r), got, want)
		}
	}
	if (PairKey{Account: "A1", Target: "t1"}).String() != "A1/t1" {
		t.Error("unexpected PairKey format")
	}
}
