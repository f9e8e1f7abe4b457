package orchestrator

import (
	"errors"
	"fmt"
)

// FailureKind classifies why a generation did not produce an asset.
type FailureKind string

const (
	FailureInvalidRequest        FailureKind = "InvalidRequest"
	FailureProviderUnavailable   FailureKind = "ProviderUnavailable"
	FailureUpstreamError         FailureKind = "UpstreamError"
	FailureAllProvidersExhausted FailureKind = "AllProvidersExhausted"
)

// Attempt records one failed provider call.
type Attempt struct {
	Provider string `json:"provider"`
	Error    string `json:"error"`
}

// Failure is the single error shape returned by Generate.
type Failure struct {
	Kind               FailureKind `json:"kind"`
	Message            string      `json:"message"`
	AttemptedProviders []string    `json:"attempted_providers"`
	Attempts           []Attempt   `json:"attempts,omitempty"`

	cause error
}

func (f *Failure) Error() string {
	if f == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", f.Kind, f.Message)
}

// Unwrap exposes the underlying cause, if any.
func (f *Failure) Unwrap() error {
	if f == nil {
		return nil
	}
	return f.cause
}

// KindOf extracts the failure kind from err.
func KindOf(err error) (FailureKind, bool) {
	var failure *Failure
	if errors.As(err, &failure) && failure != nil {
		return failure.Kind, true
	}
	return "", false
}

// IsKind reports whether err is a Failure of the given kind.
func IsKind(err error, kind FailureKind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}

func invalidRequest(format string, args ...any) *Failure {
	return &Failure{
		Kind:               FailureInvalidRequest,
		Message:            fmt.Sprintf(format, args...),
		AttemptedProviders: []string{},
	}
}

func upstreamError(provider string, err error) *Failure {
	return &Failure{
		Kind:               FailureUpstreamError,
		Message:            fmt.Sprintf("%s: %v", provider, err),
		AttemptedProviders: []string{provider},
		Attempts:           []Attempt{{Provider: provider, Error: err.Error()}},
		cause:              err,
	}
}

func attemptedIDs(attempts []Attempt) []string {
	ids := make([]string, 0, len(attempts))
	for _, a := range attempts {
		ids = append(ids, a.Provider)
	}
	return ids
}
