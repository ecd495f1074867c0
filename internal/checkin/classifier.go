package checkin

import (
	"strings"

	"github.com/WangEdward/embykeeper/internal/bus"
)

// Category is a semantic tag assigned to an inbound update.
type Category string

const (
	CategoryAnswer  Category = "answer"
	CategoryCaptcha Category = "captcha"
	CategoryText    Category = "text"
)

// Categories is a set of classification tags.
type Categories map[Category]bool

// Has reports whether c contains cat. Safe on a nil set.
func (c Categories) Has(cat Category) bool { return c[cat] }

// Classify tags one inbound update against the profile's rule table.
// Rules are ordered: an answer prompt with selectable options wins even if
// it also carries an image; a captioned captcha image comes second; any
// other content is plain text. Messages matching an ignore marker, and
// categories listed in ignore (already handled for this message), yield
// nothing. Classify never fails; an empty set means "nothing to do".
func Classify(u bus.Update, p *TargetProfile, ignore Categories) Categories {
	out := make(Categories)

	text := u.Text
	if u.Photo != nil {
		text = u.Photo.Caption
	}
	for _, marker := range p.IgnoreMarkers {
		if marker != "" && strings.Contains(text, marker) {
			return out
		}
	}

	switch {
	case u.Photo != nil && p.MenuMarker != "" &&
		strings.Contains(u.Photo.Caption, p.MenuMarker) && u.HasOptions():
		if !ignore.Has(CategoryAnswer) {
			out[CategoryAnswer] = true
		}
	case u.Photo != nil && p.CaptchaMarker != "" &&
		strings.Contains(u.Photo.Caption, p.CaptchaMarker):
		if !ignore.Has(CategoryCaptcha) {
			out[CategoryCaptcha] = true
		}
	default:
		if !ignore.Has(CategoryText) {
			out[CategoryText] = true
		}
	}
	return out
}
