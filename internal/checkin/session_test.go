package checkin

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/WangEdward/embykeeper/internal/bus"
)

// ocrFunc adapts a function to the OCR interface.
type ocrFunc func(ctx context.Context, imagePath string) (string, error)

func (f ocrFunc) Resolve(ctx context.Context, imagePath string) (string, error) {
	return f(ctx, imagePath)
}

// fakeTransport records calls and drives scripted bot replies via hooks.
type fakeTransport struct {
	mu         sync.Mutex
	sent       []string
	clicks     []string
	downloads  int
	sendErr    error
	clickErr   error
	onSend     func(text string)
	onClick    func(handle string)
	onDownload func(chatID string, messageID int, photo bus.Photo)
}

func (f *fakeTransport) SendText(ctx context.Context, account, chatID, text string) (int, error) {
	f.mu.Lock()
	f.sent = append(f.sent, text)
	n := len(f.sent)
	err := f.sendErr
	hook := f.onSend
	f.mu.Unlock()
	if err != nil {
		return 0, err
	}
	if hook != nil {
		hook(text)
	}
	return n, nil
}

func (f *fakeTransport) ClickOption(ctx context.Context, account, chatID string, messageID int, handle string) error {
	f.mu.Lock()
	f.clicks = append(f.clicks, handle)
	err := f.clickErr
	hook := f.onClick
	f.mu.Unlock()
	if err != nil {
		return err
	}
	if hook != nil {
		hook(handle)
	}
	return nil
}

func (f *fakeTransport) RequestDownload(ctx context.Context, account, chatID string, messageID int, photo bus.Photo) error {
	f.mu.Lock()
	f.downloads++
	hook := f.onDownload
	f.mu.Unlock()
	if hook != nil {
		hook(chatID, messageID, photo)
	}
	return nil
}

func (f *fakeTransport) sentTexts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.sent))
	copy(out, f.sent)
	return out
}

func countOf(items []string, want string) int {
	n := 0
	for _, s := range items {
		if s == want {
			n++
		}
	}
	return n
}

func e2eProfile() TargetProfile {
	return TargetProfile{
		ID:              "t1",
		Name:            "T1",
		ChatID:          "100",
		Trigger:         "/start",
		CaptchaLen:      4,
		MenuMarker:      "欢迎使用",
		CaptchaMarker:   "请输入验证码",
		SuccessKeywords: []string{"签到"},
		FailureKeywords: []string{"签到失败"},
		RetryKeywords:   []string{"验证码错误"},
		MaxAttempts:     3,
		JitterMin:       0,
		JitterMax:       time.Millisecond,
	}
}

func TestSessionEndToEndSuccess(t *testing.T) {
	hub := bus.NewUpdateHub(16)
	img := filepath.Join(t.TempDir(), "captcha.jpg")

	var ocrMu sync.Mutex
	var ocrPaths []string
	resolver := ocrFunc(func(ctx context.Context, path string) (string, error) {
		ocrMu.Lock()
		ocrPaths = append(ocrPaths, path)
		ocrMu.Unlock()
		return "3Q7K", nil
	})

	ft := &fakeTransport{}
	ft.onSend = func(text string) {
		switch text {
		case "/start":
			hub.Publish(bus.Update{
				Account: "A1", ChatID: "100", MessageID: 1,
				Photo:   &bus.Photo{MediaRef: "menu", Caption: "欢迎使用签到系统"},
				Options: [][]bus.Option{{{Label: "签到", Handle: "h1"}}},
			})
		case "3Q7K":
			hub.Publish(bus.Update{Account: "A1", ChatID: "100", MessageID: 3, Text: "签到成功"})
		}
	}
	ft.onClick = func(handle string) {
		if handle == "h1" {
			hub.Publish(bus.Update{
				Account: "A1", ChatID: "100", MessageID: 2,
				Photo: &bus.Photo{MediaRef: "m1", Caption: "请输入验证码"},
			})
		}
	}
	ft.onDownload = func(chatID string, messageID int, photo bus.Photo) {
		if err := os.WriteFile(img, []byte("img"), 0o644); err != nil {
			t.Errorf("write image: %v", err)
		}
		photo.LocalPath = img
		hub.Publish(bus.Update{Account: "A1", ChatID: chatID, MessageID: messageID, Photo: &photo})
	}

	hist := &fakeHistory{recent: map[string]string{}}
	profile := e2eProfile()
	profile.HistoryWindow = 10
	sess := NewSession(SessionConfig{
		Account: "A1", Profile: profile,
		Transport: ft, OCR: resolver, Hub: hub, History: hist,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if got := sess.Run(ctx); got != ResultSuccess {
		t.Fatalf("Run = %v, want success", got)
	}

	if ft.downloads != 1 {
		t.Errorf("downloads = %d, want 1", ft.downloads)
	}
	ocrMu.Lock()
	defer ocrMu.Unlock()
	if len(ocrPaths) != 1 || ocrPaths[0] != img {
		t.Errorf("ocr calls = %v, want exactly one on the downloaded file", ocrPaths)
	}
	if n := countOf(ft.sentTexts(), "3Q7K"); n != 1 {
		t.Errorf("captcha submissions = %d, want 1", n)
	}
	if len(hist.appends) != 1 || !hist.appends[0].success || hist.appends[0].label != "签到" {
		t.Errorf("unexpected history record: %+v", hist.appends)
	}
}

func TestSessionEmptyCaptchaExhaustsRetries(t *testing.T) {
	hub := bus.NewUpdateHub(32)
	img := filepath.Join(t.TempDir(), "captcha.jpg")
	if err := os.WriteFile(img, []byte("img"), 0o644); err != nil {
		t.Fatalf("write image: %v", err)
	}

	resolver := ocrFunc(func(ctx context.Context, path string) (string, error) {
		return "", nil
	})

	msgID := 10
	ft := &fakeTransport{}
	ft.onSend = func(text string) {
		switch text {
		case "/start":
			msgID++
			hub.Publish(bus.Update{
				Account: "A1", ChatID: "100", MessageID: msgID,
				Photo: &bus.Photo{MediaRef: "m", Caption: "请输入验证码", LocalPath: img},
			})
		case "unknown":
			msgID++
			hub.Publish(bus.Update{Account: "A1", ChatID: "100", MessageID: msgID, Text: "验证码错误"})
		}
	}

	sess := NewSession(SessionConfig{
		Account: "A1", Profile: e2eProfile(),
		Transport: ft, OCR: resolver, Hub: hub,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if got := sess.Run(ctx); got != ResultFailed {
		t.Fatalf("Run = %v, want failed after budget exhaustion", got)
	}

	sent := ft.sentTexts()
	if n := countOf(sent, "/start"); n != 4 {
		t.Errorf("trigger sends = %d, want 1 initial + 3 retries", n)
	}
	// The empty resolution is never dropped: a placeholder goes out each cycle.
	if n := countOf(sent, "unknown"); n != 4 {
		t.Errorf("placeholder submissions = %d, want 4", n)
	}
}

func TestSessionTimesOutWithoutEvents(t *testing.T) {
	hub := bus.NewUpdateHub(4)
	ft := &fakeTransport{}
	sess := NewSession(SessionConfig{
		Account: "A1", Profile: e2eProfile(),
		Transport: ft, OCR: ocrFunc(func(context.Context, string) (string, error) { return "", nil }),
		Hub: hub,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if got := sess.Run(ctx); got != ResultTimedOut {
		t.Fatalf("Run = %v, want timed-out", got)
	}
}

func TestSessionWaitsForDownloadBeforeResolving(t *testing.T) {
	hub := bus.NewUpdateHub(8)

	resolved := false
	resolver := ocrFunc(func(ctx context.Context, path string) (string, error) {
		resolved = true
		return "abcd", nil
	})

	ft := &fakeTransport{}
	ft.onSend = func(text string) {
		if text == "/start" {
			hub.Publish(bus.Update{
				Account: "A1", ChatID: "100", MessageID: 1,
				Photo: &bus.Photo{MediaRef: "m1", Caption: "请输入验证码"},
			})
		}
	}
	// onDownload never completes; the session must stay in the captcha
	// phase until the deadline.

	sess := NewSession(SessionConfig{
		Account: "A1", Profile: e2eProfile(),
		Transport: ft, OCR: resolver, Hub: hub,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	if got := sess.Run(ctx); got != ResultTimedOut {
		t.Fatalf("Run = %v, want timed-out", got)
	}
	if ft.downloads != 1 {
		t.Errorf("downloads = %d, want 1", ft.downloads)
	}
	if resolved {
		t.Error("resolver must not run before the media is materialized")
	}
}

func TestSessionDuplicateAnswerDeliveryClicksOnce(t *testing.T) {
	hub := bus.NewUpdateHub(8)

	answer := bus.Update{
		Account: "A1", ChatID: "100", MessageID: 1,
		Photo:   &bus.Photo{MediaRef: "menu", Caption: "欢迎使用"},
		Options: [][]bus.Option{{{Label: "签到", Handle: "h1"}}},
	}

	ft := &fakeTransport{}
	ft.onSend = func(text string) {
		if text == "/start" {
			hub.Publish(answer)
			hub.Publish(answer) // duplicate delivery of the same message
		}
	}
	ft.onClick = func(handle string) {
		hub.Publish(bus.Update{Account: "A1", ChatID: "100", MessageID: 2, Text: "签到成功"})
	}

	sess := NewSession(SessionConfig{
		Account: "A1", Profile: e2eProfile(),
		Transport: ft, OCR: ocrFunc(func(context.Context, string) (string, error) { return "", nil }),
		Hub: hub,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if got := sess.Run(ctx); got != ResultSuccess {
		t.Fatalf("Run = %v, want success", got)
	}
	if len(ft.clicks) != 1 {
		t.Errorf("clicks = %v, want exactly one", ft.clicks)
	}
}

func TestSessionSwallowsPreRetryClickFailure(t *testing.T) {
	hub := bus.NewUpdateHub(8)

	ft := &fakeTransport{}
	triggered := 0
	ft.onSend = func(text string) {
		if text != "/start" {
			return
		}
		triggered++
		switch triggered {
		case 1:
			hub.Publish(bus.Update{
				Account: "A1", ChatID: "100", MessageID: 1,
				Photo:   &bus.Photo{MediaRef: "menu", Caption: "欢迎使用"},
				Options: [][]bus.Option{{{Label: "签到", Handle: "h1"}}},
			})
		case 2:
			hub.Publish(bus.Update{Account: "A1", ChatID: "100", MessageID: 3, Text: "签到成功"})
		}
	}
	ft.onClick = func(handle string) {
		ft.mu.Lock()
		ft.clickErr = errors.New("message is not modified") // stale interaction
		ft.mu.Unlock()
		hub.Publish(bus.Update{Account: "A1", ChatID: "100", MessageID: 2, Text: "验证码错误"})
	}

	profile := e2eProfile()
	profile.ClickBeforeRetry = true
	sess := NewSession(SessionConfig{
		Account: "A1", Profile: profile,
		Transport: ft, OCR: ocrFunc(func(context.Context, string) (string, error) { return "", nil }),
		Hub: hub,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if got := sess.Run(ctx); got != ResultSuccess {
		t.Fatalf("Run = %v, want success despite failing pre-retry click", got)
	}
	if triggered != 2 {
		t.Errorf("trigger sends = %d, want 2", triggered)
	}
}

func TestSessionFailureKeywordIsTerminal(t *testing.T) {
	hub := bus.NewUpdateHub(8)
	ft := &fakeTransport{}
	ft.onSend = func(text string) {
		if text == "/start" {
			hub.Publish(bus.Update{Account: "A1", ChatID: "100", MessageID: 1, Text: "签到失败: 重复签到"})
		}
	}

	sess := NewSession(SessionConfig{
		Account: "A1", Profile: e2eProfile(),
		Transport: ft, OCR: ocrFunc(func(context.Context, string) (string, error) { return "", nil }),
		Hub: hub,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if got := sess.Run(ctx); got != ResultFailed {
		t.Fatalf("Run = %v, want failed", got)
	}
	if n := countOf(ft.sentTexts(), "/start"); n != 1 {
		t.Errorf("explicit rejection must not retry; trigger sends = %d", n)
	}
}

func TestResolveCaptchaPlaceholderAndHook(t *testing.T) {
	empty := ocrFunc(func(context.Context, string) (string, error) { return "  ", nil })
	p := &TargetProfile{ID: "t1"}
	got, err := resolveCaptcha(context.Background(), empty, "x.jpg", p)
	if err != nil {
		t.Fatalf("resolveCaptcha failed: %v", err)
	}
	if got != "unknown" {
		t.Errorf("empty resolution = %q, want placeholder", got)
	}

	fixed := ocrFunc(func(context.Context, string) (string, error) { return "ab12", nil })
	p.PreSubmit = func(text string) string { return "[" + text + "]" }
	got, err = resolveCaptcha(context.Background(), fixed, "x.jpg", p)
	if err != nil {
		t.Fatalf("resolveCaptcha failed: %v", err)
	}
	if got != "[ab12]" {
		t.Errorf("PreSubmit not applied: %q", got)
	}
}
