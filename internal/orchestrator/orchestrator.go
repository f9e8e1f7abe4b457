package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// DefaultTimeouts bound a single provider attempt per kind.
var DefaultTimeouts = map[Kind]time.Duration{
	KindImage: 60 * time.Second,
	KindAudio: 60 * time.Second,
	KindVideo: 5 * time.Minute,
}

var errRateLimited = errors.New("rate limited")

// Config wires optional collaborators into the orchestrator.
type Config struct {
	Logger *zerolog.Logger
	// Timeouts overrides DefaultTimeouts per kind.
	Timeouts map[Kind]time.Duration
	Limiter  *RateLimiter
	Now      func() time.Time
}

// Orchestrator selects a provider for each request and falls back through
// the ranked candidates. It holds no per-call state.
type Orchestrator struct {
	registry *Registry
	logger   zerolog.Logger
	timeouts map[Kind]time.Duration
	limiter  *RateLimiter
	now      func() time.Time
}

// New builds an orchestrator over a frozen registry.
func New(registry *Registry, cfg Config) (*Orchestrator, error) {
	if registry == nil {
		return nil, errors.New("orchestrator: registry is required")
	}
	logger := zerolog.New(io.Discard)
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}
	timeouts := make(map[Kind]time.Duration, len(DefaultTimeouts))
	for k, v := range DefaultTimeouts {
		timeouts[k] = v
	}
	for k, v := range cfg.Timeouts {
		if v > 0 {
			timeouts[k] = v
		}
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Orchestrator{
		registry: registry,
		logger:   logger,
		timeouts: timeouts,
		limiter:  cfg.Limiter,
		now:      now,
	}, nil
}

// Registry exposes the provider table.
func (o *Orchestrator) Registry() *Registry {
	return o.registry
}

// Candidates returns the providers Generate would try for req, in order,
// without calling any of them.
func (o *Orchestrator) Candidates(req Request) ([]Descriptor, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	candidates := o.registry.ForKind(req.Kind)
	if len(candidates) == 0 {
		return nil, invalidRequest("no providers registered for kind %q", req.Kind)
	}
	if id := strings.TrimSpace(req.Options.ProviderOverride); id != "" {
		desc, ok := o.registry.Lookup(id)
		if !ok || desc.Kind != req.Kind {
			return nil, overrideUnavailable(id, req.Kind)
		}
		return []Descriptor{desc}, nil
	}
	recommended, _ := o.registry.Recommended(req.Kind)
	return Rank(candidates, req.Options, recommended), nil
}

// Generate produces one asset. On failure the error is always a *Failure.
func (o *Orchestrator) Generate(ctx context.Context, req Request) (*Result, error) {
	candidates, err := o.Candidates(req)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.Options.ProviderOverride) != "" {
		return o.generateOverride(ctx, req, candidates[0])
	}

	var attempts []Attempt
	for i, desc := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, canceled(err, attempts)
		}
		o.logger.Debug().
			Str("provider", desc.ID).
			Str("kind", string(req.Kind)).
			Int("attempt", i+1).
			Msg("orchestrator: attempting provider")
		res, failure := o.attempt(ctx, desc, req)
		if failure == nil {
			res.AttemptedProviders = attemptedIDs(attempts)
			o.logger.Info().
				Str("provider", desc.ID).
				Str("kind", string(req.Kind)).
				Int("failed_before", len(attempts)).
				Float64("cost", res.Cost).
				Msg("orchestrator: generation succeeded")
			return res, nil
		}
		attempts = append(attempts, failure.Attempts...)
		o.logger.Warn().
			Str("provider", desc.ID).
			Str("kind", string(req.Kind)).
			Str("error", failure.Message).
			Msg("orchestrator: provider failed")
	}
	if err := ctx.Err(); err != nil {
		return nil, canceled(err, attempts)
	}
	return nil, &Failure{
		Kind:               FailureAllProvidersExhausted,
		Message:            fmt.Sprintf("all %d %s providers failed", len(candidates), req.Kind),
		AttemptedProviders: attemptedIDs(attempts),
		Attempts:           attempts,
	}
}

func (o *Orchestrator) generateOverride(ctx context.Context, req Request, desc Descriptor) (*Result, error) {
	res, failure := o.attempt(ctx, desc, req)
	if failure == nil {
		res.AttemptedProviders = []string{}
		return res, nil
	}
	o.logger.Warn().
		Str("provider", desc.ID).
		Str("kind", string(req.Kind)).
		Str("error", failure.Message).
		Msg("orchestrator: override provider failed")
	return nil, &Failure{
		Kind:               FailureProviderUnavailable,
		Message:            fmt.Sprintf("requested provider %q failed: %s", desc.ID, failure.Message),
		AttemptedProviders: []string{desc.ID},
		Attempts:           failure.Attempts,
		cause:              failure.cause,
	}
}

type invokeOutcome struct {
	resp *Response
	err  error
}

// attempt performs exactly one call to desc. Every error, panic, timeout and
// malformed response is folded into an UpstreamError failure here.
func (o *Orchestrator) attempt(ctx context.Context, desc Descriptor, req Request) (*Result, *Failure) {
	if !o.limiter.Allow(desc.ID) {
		return nil, upstreamError(desc.ID, errRateLimited)
	}
	timeout := desc.Timeout
	if timeout <= 0 {
		timeout = o.timeouts[desc.Kind]
	}
	attemptCtx := ctx
	cancel := func() {}
	if timeout > 0 {
		attemptCtx, cancel = context.WithTimeout(ctx, timeout)
	}
	defer cancel()

	// Buffered so a backend that ignores cancellation can still finish; its
	// late result is discarded.
	done := make(chan invokeOutcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- invokeOutcome{err: fmt.Errorf("panic: %v", r)}
			}
		}()
		resp, err := desc.Backend.Invoke(attemptCtx, req.Prompt, req.Options)
		done <- invokeOutcome{resp: resp, err: err}
	}()

	var out invokeOutcome
	select {
	case out = <-done:
	case <-attemptCtx.Done():
		out = invokeOutcome{err: attemptCtx.Err()}
	}
	if out.err != nil {
		err := out.err
		if errors.Is(attemptCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			err = fmt.Errorf("timed out after %s: %w", timeout, err)
		}
		return nil, upstreamError(desc.ID, err)
	}
	assetURL, err := out.resp.assetURL(desc.Kind)
	if err != nil {
		return nil, upstreamError(desc.ID, err)
	}
	return &Result{
		Provider: desc.ID,
		URL:      assetURL,
		Cost:     desc.EstimateCost(req.Options),
		Metadata: Metadata{
			Prompt:    req.Prompt,
			Kind:      req.Kind,
			Timestamp: o.now().UTC(),
			Raw:       out.resp.metadataFields(),
		},
	}, nil
}

func overrideUnavailable(id string, kind Kind) *Failure {
	return &Failure{
		Kind:               FailureProviderUnavailable,
		Message:            fmt.Sprintf("provider %q is not registered for %s", id, kind),
		AttemptedProviders: []string{},
	}
}

func canceled(err error, attempts []Attempt) *Failure {
	return &Failure{
		Kind:               FailureUpstreamError,
		Message:            fmt.Sprintf("generation abandoned: %v", err),
		AttemptedProviders: attemptedIDs(attempts),
		Attempts:           attempts,
		cause:              err,
	}
}
