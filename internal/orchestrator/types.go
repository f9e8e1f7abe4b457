package orchestrator

import (
	"strings"
	"time"

	"golang.org/x/text/language"
)

// Kind enumerates the media kinds a provider can generate.
type Kind string

const (
	KindImage Kind = "image"
	KindVideo Kind = "video"
	KindAudio Kind = "audio"
)

// Kinds lists every supported kind in a stable order.
var Kinds = []Kind{KindImage, KindVideo, KindAudio}

// ParseKind sanitizes free-form input into a supported kind.
func ParseKind(value string) (Kind, bool) {
	switch Kind(strings.ToLower(strings.TrimSpace(value))) {
	case KindImage:
		return KindImage, true
	case KindVideo:
		return KindVideo, true
	case KindAudio:
		return KindAudio, true
	default:
		return "", false
	}
}

// Valid reports whether k is one of the supported kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindImage, KindVideo, KindAudio:
		return true
	default:
		return false
	}
}

// Quality is the caller's quality hint.
type Quality string

const (
	QualityStandard Quality = "standard"
	QualityPremium  Quality = "premium"
)

// Budget is the caller's spending hint.
type Budget string

const (
	BudgetLow    Budget = "low"
	BudgetMedium Budget = "medium"
	BudgetHigh   Budget = "high"
)

// Options carries the recognized generation hints. Zero values mean
// "not specified"; backends apply their own defaults.
type Options struct {
	Quality          Quality `json:"quality,omitempty"`
	Budget           Budget  `json:"budget,omitempty"`
	Width            int     `json:"width,omitempty"`
	Height           int     `json:"height,omitempty"`
	Duration         int     `json:"duration,omitempty"`
	Resolution       string  `json:"resolution,omitempty"`
	Voice            string  `json:"voice,omitempty"`
	Language         string  `json:"language,omitempty"`
	ProviderOverride string  `json:"provider_override,omitempty"`
}

// EffectiveQuality returns the quality hint with the standard default applied.
func (o Options) EffectiveQuality() Quality {
	if o.Quality == "" {
		return QualityStandard
	}
	return o.Quality
}

// EffectiveBudget returns the budget hint with the medium default applied.
func (o Options) EffectiveBudget() Budget {
	if o.Budget == "" {
		return BudgetMedium
	}
	return o.Budget
}

// Premium reports whether the caller asked for premium output, either via
// quality or via a high budget.
func (o Options) Premium() bool {
	return o.EffectiveQuality() == QualityPremium || o.EffectiveBudget() == BudgetHigh
}

// LanguageTag returns the canonical BCP 47 form of the language hint, or an
// empty string when none was given or it does not parse.
func (o Options) LanguageTag() string {
	if strings.TrimSpace(o.Language) == "" {
		return ""
	}
	tag, err := language.Parse(strings.TrimSpace(o.Language))
	if err != nil {
		return ""
	}
	return tag.String()
}

// Validate checks the options without modifying them.
func (o Options) Validate() error {
	switch o.Quality {
	case "", QualityStandard, QualityPremium:
	default:
		return invalidRequest("unsupported quality %q", o.Quality)
	}
	switch o.Budget {
	case "", BudgetLow, BudgetMedium, BudgetHigh:
	default:
		return invalidRequest("unsupported budget %q", o.Budget)
	}
	if o.Width < 0 || o.Height < 0 {
		return invalidRequest("width and height must not be negative")
	}
	if o.Duration < 0 {
		return invalidRequest("duration must not be negative")
	}
	if lang := strings.TrimSpace(o.Language); lang != "" {
		if _, err := language.Parse(lang); err != nil {
			return invalidRequest("invalid language %q", o.Language)
		}
	}
	return nil
}

// Request is a single generation call. It is built by the caller and never
// retained by the orchestrator.
type Request struct {
	Kind    Kind    `json:"kind"`
	Prompt  string  `json:"prompt"`
	Options Options `json:"options"`
}

// Validate enforces the request invariants that can be checked without the
// registry.
func (r Request) Validate() error {
	if !r.Kind.Valid() {
		return invalidRequest("unsupported kind %q", r.Kind)
	}
	if strings.TrimSpace(r.Prompt) == "" {
		return invalidRequest("prompt is required")
	}
	return r.Options.Validate()
}

// Metadata describes how an asset was produced.
type Metadata struct {
	Prompt    string         `json:"prompt"`
	Kind      Kind           `json:"kind"`
	Timestamp time.Time      `json:"timestamp"`
	Raw       map[string]any `json:"raw,omitempty"`
}

// Result is the normalized outcome of a successful generation.
type Result struct {
	Provider           string   `json:"provider"`
	URL                string   `json:"url"`
	Cost               float64  `json:"cost"`
	AttemptedProviders []string `json:"attempted_providers"`
	Metadata           Metadata `json:"metadata"`
}
