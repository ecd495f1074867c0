package checkin

import (
	"context"
	"log/slog"
	"os"

	"github.com/WangEdward/embykeeper/internal/bus"
)

// Transport is the outbound side of the messaging platform, consumed as an
// external collaborator. SendText returns the platform message ID of the
// sent message. ClickOption is best-effort: callers may swallow its errors.
// RequestDownload is asynchronous; completion arrives as a later inbound
// update for the same pair with Photo.LocalPath set.
type Transport interface {
	SendText(ctx context.Context, account, chatID, text string) (int, error)
	ClickOption(ctx context.Context, account, chatID string, messageID int, handle string) error
	RequestDownload(ctx context.Context, account, chatID string, messageID int, photo bus.Photo) error
}

// Phase is the session state machine's current state.
type Phase int

const (
	PhaseInit Phase = iota
	PhaseSentTrigger
	PhaseAwaitingAnswer
	PhaseAwaitingCaptcha
	PhaseAwaitingText
	PhaseSubmitted
	PhaseRetrying
	PhaseSuccess
	PhaseFailed
	PhaseTimedOut
)

// Session drives one check-in conversation for one (account, target) pair.
// Its state is mutated only by its own Run goroutine, one inbound update at
// a time; a session reaches a terminal phase at most once, after which
// remaining updates are dropped.
type Session struct {
	account   string
	profile   TargetProfile
	transport Transport
	ocr       OCR
	hub       *bus.UpdateHub
	hist      History

	phase        Phase
	attemptsUsed int
	lastMsgID    int                // last inbound message carrying options
	chosen       *bus.Option        // selected answer awaiting its outcome
	handled      map[int]Categories // per-message categories already handled
	finished     bool
	result       Result
}

// SessionConfig holds all dependencies and settings for a Session.
type SessionConfig struct {
	Account   string
	Profile   TargetProfile
	Transport Transport
	OCR       OCR
	Hub       *bus.UpdateHub
	History   History
}

// NewSession creates a Session from the given config.
func NewSession(cfg SessionConfig) *Session {
	return &Session{
		account:   cfg.Account,
		profile:   cfg.Profile,
		transport: cfg.Transport,
		ocr:       cfg.OCR,
		hub:       cfg.Hub,
		hist:      cfg.History,
		phase:     PhaseInit,
		handled:   make(map[int]Categories),
	}
}

// Key returns the hub routing key for this session's pair.
func (s *Session) Key() string {
	return s.account + ":" + s.profile.ChatID
}

// Run executes the check-in loop until a terminal phase or ctx expiry, and
// returns the terminal result. It blocks without polling while awaiting
// inbound updates.
func (s *Session) Run(ctx context.Context) Result {
	updates := s.hub.Subscribe(s.Key())
	defer s.hub.Unsubscribe(s.Key())

	s.sendTrigger(ctx)

	for !s.finished {
		select {
		case <-ctx.Done():
			s.finish(ResultTimedOut)
		case u := <-updates:
			s.step(ctx, u)
		}
	}
	return s.result
}

// step classifies one inbound update and dispatches each category. Updates
// sent by the account itself are skipped.
func (s *Session) step(ctx context.Context, u bus.Update) {
	if u.Outgoing {
		return
	}
	cats := Classify(u, &s.profile, s.handled[u.MessageID])
	if cats.Has(CategoryAnswer) && !s.finished {
		s.onAnswer(ctx, u)
	}
	if cats.Has(CategoryCaptcha) && !s.finished {
		s.onCaptcha(ctx, u)
	}
	if cats.Has(CategoryText) && !s.finished {
		s.onText(ctx, u)
	}
}

func (s *Session) onAnswer(ctx context.Context, u bus.Update) {
	s.phase = PhaseAwaitingAnswer
	opt, ok := SelectAnswer(ctx, u.FlatOptions(), &s.profile, s.hist)
	if !ok {
		slog.Debug("checkin: no usable answer option", "account", s.account, "target", s.profile.ID)
		s.retry(ctx)
		return
	}
	if err := s.transport.ClickOption(ctx, s.account, s.profile.ChatID, u.MessageID, opt.Handle); err != nil {
		slog.Warn("checkin: option click failed", "account", s.account, "target", s.profile.ID, "error", err)
		s.retry(ctx)
		return
	}
	s.chosen = &opt
	s.lastMsgID = u.MessageID
	s.markHandled(u.MessageID, CategoryAnswer)
	s.phase = PhaseSubmitted
}

func (s *Session) onCaptcha(ctx context.Context, u bus.Update) {
	s.phase = PhaseAwaitingCaptcha
	photo := u.Photo
	if photo.LocalPath == "" || !fileExists(photo.LocalPath) {
		// Not yet materialized: ask for it and stay in this phase. The
		// transport re-delivers the same message once the file is local.
		if err := s.transport.RequestDownload(ctx, s.account, s.profile.ChatID, u.MessageID, *photo); err != nil {
			slog.Warn("checkin: media download request failed",
				"account", s.account, "target", s.profile.ID, "error", err)
			s.retry(ctx)
		}
		return
	}

	if err := sleep(ctx, jitter(s.profile.JitterMin, s.profile.JitterMax)); err != nil {
		return
	}
	text, err := resolveCaptcha(ctx, s.ocr, photo.LocalPath, &s.profile)
	if err != nil {
		slog.Warn("checkin: captcha resolution failed",
			"account", s.account, "target", s.profile.ID, "error", err)
		s.retry(ctx)
		return
	}
	if _, err := s.transport.SendText(ctx, s.account, s.profile.ChatID, text); err != nil {
		slog.Warn("checkin: captcha submission failed",
			"account", s.account, "target", s.profile.ID, "error", err)
		s.retry(ctx)
		return
	}
	s.markHandled(u.MessageID, CategoryCaptcha)
	s.phase = PhaseSubmitted
}

func (s *Session) onText(ctx context.Context, u bus.Update) {
	text := u.Text
	if u.Photo != nil {
		text = u.Photo.Caption
	}
	switch {
	case matchAny(text, s.profile.SuccessKeywords, s.profile.CaseFold):
		s.markHandled(u.MessageID, CategoryText)
		s.finish(ResultSuccess)
	case matchAny(text, s.profile.FailureKeywords, s.profile.CaseFold):
		s.markHandled(u.MessageID, CategoryText)
		s.finish(ResultFailed)
	case matchAny(text, s.profile.RetryKeywords, s.profile.CaseFold):
		s.markHandled(u.MessageID, CategoryText)
		s.retry(ctx)
	default:
		// Unmatched text: keep listening, more messages may arrive.
		s.markHandled(u.MessageID, CategoryText)
		s.phase = PhaseAwaitingText
	}
}

// retry spends one unit of the attempt budget and re-sends the trigger, or
// fails the session when the budget is exhausted. Targets flagged
// ClickBeforeRetry get their last option re-clicked first; stale
// interaction errors there are swallowed.
func (s *Session) retry(ctx context.Context) {
	s.phase = PhaseRetrying
	if !ShouldRetry(s.attemptsUsed, s.profile.MaxAttempts) {
		s.finish(ResultFailed)
		return
	}
	s.attemptsUsed++
	if s.profile.ClickBeforeRetry && s.chosen != nil {
		if err := s.transport.ClickOption(ctx, s.account, s.profile.ChatID, s.lastMsgID, s.chosen.Handle); err != nil {
			slog.Debug("checkin: pre-retry click failed, continuing",
				"account", s.account, "target", s.profile.ID, "error", err)
		}
	}
	s.sendTrigger(ctx)
}

func (s *Session) sendTrigger(ctx context.Context) {
	if _, err := s.transport.SendText(ctx, s.account, s.profile.ChatID, s.profile.Trigger); err != nil {
		slog.Warn("checkin: trigger send failed",
			"account", s.account, "target", s.profile.ID, "error", err)
		s.retry(ctx)
		return
	}
	s.phase = PhaseSentTrigger
}

// finish records the terminal result exactly once.
func (s *Session) finish(r Result) {
	if s.finished {
		return
	}
	s.finished = true
	s.result = r
	switch r {
	case ResultSuccess:
		s.phase = PhaseSuccess
	case ResultFailed:
		s.phase = PhaseFailed
	case ResultTimedOut:
		s.phase = PhaseTimedOut
	}
	s.recordHistory()
	slog.Info("checkin: session finished",
		"account", s.account, "target", s.profile.ID, "name", s.profile.Name,
		"result", r.String(), "attempts", s.attemptsUsed)
}

// recordHistory appends the chosen option's outcome. Timed-out sessions are
// not recorded: the outcome of their answer is unknown.
func (s *Session) recordHistory() {
	if s.hist == nil || s.chosen == nil || s.profile.HistoryWindow <= 0 {
		return
	}
	if s.result == ResultTimedOut {
		return
	}
	ctx := context.Background()
	err := s.hist.Append(ctx, s.profile.ID, s.chosen.Label, s.result == ResultSuccess, s.profile.HistoryWindow)
	if err != nil {
		slog.Warn("checkin: history append failed", "target", s.profile.ID, "error", err)
	}
}

func (s *Session) markHandled(messageID int, cat Category) {
	set := s.handled[messageID]
	if set == nil {
		set = make(Categories)
		s.handled[messageID] = set
	}
	set[cat] = true
}

func matchAny(text string, keywords []string, fold bool) bool {
	for _, kw := range keywords {
		if kw != "" && containsFold(text, kw, fold) {
			return true
		}
	}
	return false
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
