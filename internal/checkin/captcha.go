package checkin

import (
	"context"
	"log/slog"
	"strings"
)

// OCR resolves a locally materialized captcha image to text. Unreadable
// input yields an empty string, not an error; errors are reserved for the
// resolver's own failures (backend unreachable, file missing).
type OCR interface {
	Resolve(ctx context.Context, imagePath string) (string, error)
}

// captchaPlaceholder is submitted when the resolver yields nothing: many
// targets answer a wrong captcha with a retry prompt faster than they time
// out a stalled one.
const captchaPlaceholder = "unknown"

// resolveCaptcha produces the text to submit for a materialized captcha
// image. The result is never empty. The caller must not invoke this before
// the image exists locally.
func resolveCaptcha(ctx context.Context, ocr OCR, path string, p *TargetProfile) (string, error) {
	text, err := ocr.Resolve(ctx, path)
	if err != nil {
		return "", err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		text = captchaPlaceholder
	} else if p.CaptchaLen > 0 && len([]rune(text)) != p.CaptchaLen {
		slog.Debug("checkin: captcha length mismatch",
			"target", p.ID, "got", len([]rune(text)), "want", p.CaptchaLen)
	}
	if p.PreSubmit != nil {
		text = p.PreSubmit(text)
	}
	return text, nil
}
