package orchestrator

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Capability tags understood by the ranking policy and the HTTP listing.
const (
	CapabilityPremium   = "premium-quality"
	CapabilityEditing   = "editing"
	CapabilityFast      = "fast"
	CapabilityVoice     = "voice"
	CapabilitySynthetic = "synthetic"
)

// Response is the raw answer of a provider backend. A backend fills URL when
// the asset is hosted remotely, or Data (with MIME) when it is returned inline.
type Response struct {
	URL    string
	Data   []byte
	MIME   string
	Fields map[string]any
}

// Backend is the black box behind a provider.
type Backend interface {
	Invoke(ctx context.Context, prompt string, opts Options) (*Response, error)
}

// BackendFunc adapts a function to the Backend interface.
type BackendFunc func(ctx context.Context, prompt string, opts Options) (*Response, error)

func (f BackendFunc) Invoke(ctx context.Context, prompt string, opts Options) (*Response, error) {
	return f(ctx, prompt, opts)
}

// CostModel estimates the USD cost of one call with the given options.
type CostModel func(opts Options) float64

// FlatCost returns a cost model that ignores the options.
func FlatCost(usd float64) CostModel {
	return func(Options) float64 { return usd }
}

// Descriptor is an immutable registry entry.
type Descriptor struct {
	ID           string
	Kind         Kind
	Cost         CostModel
	Backend      Backend
	Capabilities []string
	// Timeout bounds a single attempt. Zero uses the orchestrator default
	// for the kind.
	Timeout time.Duration
}

// EstimateCost evaluates the descriptor's cost model.
func (d Descriptor) EstimateCost(opts Options) float64 {
	if d.Cost == nil {
		return 0
	}
	return d.Cost(opts)
}

// HasCapability reports whether the descriptor carries the tag.
func (d Descriptor) HasCapability(tag string) bool {
	for _, c := range d.Capabilities {
		if c == tag {
			return true
		}
	}
	return false
}

var errMalformedResponse = errors.New("malformed response: no asset url or data")

func defaultMIME(kind Kind) string {
	switch kind {
	case KindVideo:
		return "video/mp4"
	case KindAudio:
		return "audio/mpeg"
	default:
		return "image/png"
	}
}

// assetURL resolves the location of the produced asset.
func (r *Response) assetURL(kind Kind) (string, error) {
	if r == nil {
		return "", errMalformedResponse
	}
	if raw := strings.TrimSpace(r.URL); raw != "" {
		parsed, err := url.Parse(raw)
		if err != nil || parsed.Scheme == "" {
			return "", fmt.Errorf("malformed response: invalid asset url %q", raw)
		}
		return raw, nil
	}
	if len(r.Data) == 0 {
		return "", errMalformedResponse
	}
	mime := strings.TrimSpace(r.MIME)
	if mime == "" {
		mime = defaultMIME(kind)
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(r.Data), nil
}

func (r *Response) metadataFields() map[string]any {
	if r == nil {
		return nil
	}
	out := make(map[string]any, len(r.Fields)+1)
	for k, v := range r.Fields {
		out[k] = v
	}
	if r.MIME != "" {
		out["mime"] = r.MIME
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
