package checkin

import (
	"time"

	"github.com/WangEdward/embykeeper/internal/config"
)

// TargetProfile is the static per-bot rule table driving a check-in
// conversation. Profiles are immutable after construction; per-target
// quirks live in the data fields and the optional hooks, not in subtypes.
type TargetProfile struct {
	ID            string // stable identifier, keys the answer history
	Name          string // operator-facing display name
	BotUsername   string
	ChatID        string // chat the trigger is sent to
	Trigger       string // initial command, e.g. "/checkin"
	CaptchaLen    int    // expected captcha length, 0 = unknown
	HistoryWindow int    // answer history window (bot_use_history), 0 = disabled

	MenuMarker      string   // caption substring marking an answer prompt
	CaptchaMarker   string   // caption substring marking a captcha prompt
	SuccessKeywords []string // text substrings meaning the check-in succeeded
	FailureKeywords []string // text substrings meaning the bot rejected it
	RetryKeywords   []string // text substrings asking for another attempt
	IgnoreMarkers   []string // text substrings marking a message ignorable

	CaseFold         bool // match keywords case-insensitively
	MaxAttempts      int  // attempt budget, 0 = inherit run default
	ClickBeforeRetry bool // nudge the last message's option before a retry

	JitterMin time.Duration // pause bounds before captcha submission
	JitterMax time.Duration

	// PreSubmit may rewrite the captcha text just before it is sent.
	// Nil submits the resolved text unchanged.
	PreSubmit func(text string) string
}

const (
	defaultTrigger   = "/checkin"
	defaultJitterMin = 5 * time.Second
	defaultJitterMax = 10 * time.Second
)

// normalized returns a copy with defaults filled in for unset fields.
func (p TargetProfile) normalized(defaultAttempts int) TargetProfile {
	if p.Trigger == "" {
		p.Trigger = defaultTrigger
	}
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = defaultAttempts
	}
	if p.CaptchaMarker == "" {
		p.CaptchaMarker = "验证码"
	}
	if len(p.SuccessKeywords) == 0 {
		p.SuccessKeywords = []string{"签到成功"}
	}
	if p.JitterMax <= 0 {
		p.JitterMin = defaultJitterMin
		p.JitterMax = defaultJitterMax
	}
	return p
}

// Builtins returns the built-in target roster. ChatID is left empty: it is
// account-specific and must come from config (the follow mode exists to
// discover it).
func Builtins() []TargetProfile {
	return []TargetProfile{
		{
			ID:               "ljyy",
			Name:             "垃圾影音",
			BotUsername:      "zckllflbot",
			CaptchaLen:       4,
			HistoryWindow:    20,
			MenuMarker:       "签到",
			IgnoreMarkers:    []string{"下列选项"},
			SuccessKeywords:  []string{"签到成功"},
			FailureKeywords:  []string{"签到失败"},
			RetryKeywords:    []string{"验证码错误", "回答错误"},
			ClickBeforeRetry: true,
		},
		{
			ID:              "peach",
			Name:            "桃子",
			BotUsername:     "peach_emby_bot",
			Trigger:         "/start",
			MenuMarker:      "欢迎使用",
			CaptchaMarker:   "请输入验证码",
			SuccessKeywords: []string{"签到成功"},
			FailureKeywords: []string{"签到失败"},
			RetryKeywords:   []string{"验证码错误"},
		},
		{
			ID:              "jms",
			Name:            "JMS",
			BotUsername:     "jmsembybot",
			SuccessKeywords: []string{"签到成功", "已签到"},
			FailureKeywords: []string{"签到失败"},
		},
		{
			ID:              "terminus",
			Name:            "终点站",
			BotUsername:     "EmbyPublicBot",
			Trigger:         "/cancel",
			SuccessKeywords: []string{"签到成功"},
			FailureKeywords: []string{"签到失败"},
		},
		{
			ID:              "nebula",
			Name:            "Nebula",
			BotUsername:     "Nebula_Account_bot",
			SuccessKeywords: []string{"签到成功", "获得"},
			FailureKeywords: []string{"签到失败"},
		},
	}
}

// ResolveTargets merges config target entries over the builtin roster and
// returns the enabled profiles ready for use. Config entries whose ID
// matches a builtin override its non-zero fields; unmatched entries define
// new targets. Targets without a ChatID are skipped: the engine cannot
// address them.
func ResolveTargets(cfg *config.Config) []TargetProfile {
	byID := make(map[string]TargetProfile)
	var order []string
	for _, p := range Builtins() {
		byID[p.ID] = p
		order = append(order, p.ID)
	}

	disabled := make(map[string]bool)
	for _, tc := range cfg.Targets {
		if tc.Disabled {
			disabled[tc.ID] = true
			continue
		}
		p, ok := byID[tc.ID]
		if !ok {
			p = TargetProfile{ID: tc.ID}
			order = append(order, tc.ID)
		}
		applyOverride(&p, tc)
		byID[p.ID] = p
	}

	var out []TargetProfile
	for _, id := range order {
		p := byID[id]
		if disabled[id] || p.ChatID == "" {
			continue
		}
		out = append(out, p.normalized(cfg.Retries))
	}
	return out
}

func applyOverride(p *TargetProfile, tc config.TargetConfig) {
	if tc.Name != "" {
		p.Name = tc.Name
	}
	if tc.ChatID != "" {
		p.ChatID = tc.ChatID
	}
	if tc.Trigger != "" {
		p.Trigger = tc.Trigger
	}
	if tc.CaptchaLen > 0 {
		p.CaptchaLen = tc.CaptchaLen
	}
	if tc.HistoryWindow > 0 {
		p.HistoryWindow = tc.HistoryWindow
	}
	if tc.MaxAttempts > 0 {
		p.MaxAttempts = tc.MaxAttempts
	}
	if tc.MenuMarker != "" {
		p.MenuMarker = tc.MenuMarker
	}
	if tc.CaptchaMarker != "" {
		p.CaptchaMarker = tc.CaptchaMarker
	}
	if len(tc.SuccessKeywords) > 0 {
		p.SuccessKeywords = tc.SuccessKeywords
	}
	if len(tc.FailureKeywords) > 0 {
		p.FailureKeywords = tc.FailureKeywords
	}
	if len(tc.RetryKeywords) > 0 {
		p.RetryKeywords = tc.RetryKeywords
	}
	if len(tc.IgnoreMarkers) > 0 {
		p.IgnoreMarkers = tc.IgnoreMarkers
	}
	if tc.CaseFold {
		p.CaseFold = true
	}
	if tc.ClickBeforeRetry {
		p.ClickBeforeRetry = true
	}
}
