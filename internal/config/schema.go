package config

// Config is the top-level configuration
type Config struct {
	DataDir  string          `json:"dataDir"`  // workspace for media downloads and the history db
	Timeout  int             `json:"timeout"`  // per-run wall-clock deadline in seconds
	Retries  int             `json:"retries"`  // attempt budget per session
	Accounts []AccountConfig `json:"accounts"`
	Targets  []TargetConfig  `json:"targets"` // overrides and additions to the builtin targets
	OCR      OCRConfig       `json:"ocr"`
}

// AccountConfig identifies one messaging account.
type AccountConfig struct {
	Name  string `json:"name"`
	Token string `json:"token"`
}

// OCRConfig configures the vision-model captcha resolver.
type OCRConfig struct {
	APIKey  string `json:"apiKey"`
	BaseURL string `json:"baseUrl"`
	Model   string `json:"model"`
}

// TargetConfig describes one target bot, or overrides fields of a builtin
// target with the same ID. Zero values mean "keep the builtin/default".
type TargetConfig struct {
	ID               string   `json:"id"`
	Name             string   `json:"name"`
	ChatID           string   `json:"chatId"`
	Trigger          string   `json:"trigger"`
	CaptchaLen       int      `json:"captchaLen"`
	HistoryWindow    int      `json:"historyWindow"`
	MaxAttempts      int      `json:"maxAttempts"`
	MenuMarker       string   `json:"menuMarker"`
	CaptchaMarker    string   `json:"captchaMarker"`
	SuccessKeywords  []string `json:"successKeywords"`
	FailureKeywords  []string `json:"failureKeywords"`
	RetryKeywords    []string `json:"retryKeywords"`
	IgnoreMarkers    []string `json:"ignoreMarkers"`
	CaseFold         bool     `json:"caseFold"`
	ClickBeforeRetry bool     `json:"clickBeforeRetry"`
	Disabled         bool     `json:"disabled"`
}

// DefaultConfig returns a Config with defaults applied.
func DefaultConfig() *Config {
	return &Config{
		DataDir: "~/.embykeeper",
		Timeout: 120,
		Retries: 10,
		OCR: OCRConfig{
			Model: "gpt-4o-mini",
		},
	}
}
