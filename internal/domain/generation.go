package domain

import "time"

// GenerationStatus records whether a generation produced an asset.
type GenerationStatus string

const (
	GenerationSucceeded GenerationStatus = "succeeded"
	GenerationFailed    GenerationStatus = "failed"
)

// Generation is the persisted outcome of one orchestrated call.
type Generation struct {
	ID                 string           `json:"id"`
	UserID             string           `json:"user_id,omitempty"`
	Kind               string           `json:"kind"`
	Prompt             string           `json:"prompt"`
	Provider           string           `json:"provider,omitempty"`
	Status             GenerationStatus `json:"status"`
	Cost               float64          `json:"cost"`
	URL                string           `json:"url,omitempty"`
	StorageKey         string           `json:"storage_key,omitempty"`
	AttemptedProviders []string         `json:"attempted_providers"`
	FailureKind        string           `json:"failure_kind,omitempty"`
	ErrorMessage       string           `json:"error_message,omitempty"`
	Country            string           `json:"country,omitempty"`
	OptionsJSON        []byte           `json:"-"`
	CreatedAt          time.Time        `json:"created_at"`
}
