package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/getsentry/sentry-go"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"mediagen/internal/domain"
	"mediagen/internal/middleware"
	"mediagen/internal/orchestrator"
)

const maxGenerateBody = 1 << 20

type generateRequest struct {
	Kind    string               `json:"kind"`
	Prompt  string               `json:"prompt"`
	Options orchestrator.Options `json:"options"`
}

type generateResponse struct {
	*orchestrator.Result
	GenerationID string `json:"generation_id,omitempty"`
	AssetURL     string `json:"asset_url,omitempty"`
}

// StatusForFailure maps a failure kind to its HTTP status.
func StatusForFailure(kind orchestrator.FailureKind) int {
	switch kind {
	case orchestrator.FailureInvalidRequest:
		return http.StatusBadRequest
	case orchestrator.FailureProviderUnavailable:
		return http.StatusServiceUnavailable
	case orchestrator.FailureUpstreamError, orchestrator.FailureAllProvidersExhausted:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (a *App) Generate(w http.ResponseWriter, r *http.Request) {
	var body generateRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxGenerateBody))
	if err := dec.Decode(&body); err != nil {
		a.failure(w, &orchestrator.Failure{
			Kind:               orchestrator.FailureInvalidRequest,
			Message:            "invalid payload",
			AttemptedProviders: []string{},
		})
		return
	}

	kind, ok := orchestrator.ParseKind(body.Kind)
	if !ok {
		kind = orchestrator.Kind(body.Kind)
	}
	opts := body.Options
	if kind == orchestrator.KindAudio && strings.TrimSpace(opts.Language) == "" {
		opts.Language = middleware.LocaleFromContext(r.Context())
	}
	req := orchestrator.Request{Kind: kind, Prompt: body.Prompt, Options: opts}

	logger := middleware.RequestLogger(r.Context(), a.Logger).With().
		Str("kind", string(kind)).
		Logger()

	res, err := a.Generator.Generate(r.Context(), req)
	if err != nil {
		var failure *orchestrator.Failure
		if !errors.As(err, &failure) {
			logger.Error().Err(err).Msg("generate: unexpected error")
			a.error(w, http.StatusInternalServerError, "internal", "generation failed")
			return
		}
		a.Metrics.RecordFailure(failure)
		if failure.Kind == orchestrator.FailureUpstreamError || failure.Kind == orchestrator.FailureAllProvidersExhausted {
			reportFailure(r, req, failure)
		}
		logger.Warn().
			Str("failure_kind", string(failure.Kind)).
			Strs("attempted", failure.AttemptedProviders).
			Msg(failure.Message)
		if failure.Kind != orchestrator.FailureInvalidRequest {
			a.record(r, logger, req, &domain.Generation{
				Status:             domain.GenerationFailed,
				AttemptedProviders: failure.AttemptedProviders,
				FailureKind:        string(failure.Kind),
				ErrorMessage:       failure.Message,
			})
		}
		a.failure(w, failure)
		return
	}

	a.Metrics.RecordSuccess(res)
	out := generateResponse{Result: res}
	g := &domain.Generation{
		ID:                 uuid.NewString(),
		Status:             domain.GenerationSucceeded,
		Provider:           res.Provider,
		Cost:               res.Cost,
		AttemptedProviders: res.AttemptedProviders,
	}
	if strings.HasPrefix(res.URL, "data:") {
		if a.Assets != nil {
			key, err := a.Assets.SaveDataURI(r.Context(), string(kind), g.ID, res.URL)
			if err != nil {
				logger.Error().Err(err).Msg("generate: persist asset failed")
			} else {
				g.StorageKey = key
				g.URL = a.Assets.URL(key)
				out.AssetURL = g.URL
			}
		}
	} else {
		g.URL = res.URL
	}
	if a.record(r, logger, req, g) {
		out.GenerationID = g.ID
	}
	logger.Info().
		Str("provider", res.Provider).
		Float64("cost", res.Cost).
		Strs("attempted", res.AttemptedProviders).
		Msg("generate: succeeded")
	a.json(w, http.StatusOK, out)
}

func (a *App) failure(w http.ResponseWriter, failure *orchestrator.Failure) {
	a.json(w, StatusForFailure(failure.Kind), failure)
}

// record writes g to history and reports whether it was stored. History
// errors never fail the request.
func (a *App) record(r *http.Request, logger zerolog.Logger, req orchestrator.Request, g *domain.Generation) bool {
	if a.History == nil {
		return false
	}
	g.UserID = middleware.UserIDFromContext(r.Context())
	g.Kind = string(req.Kind)
	g.Prompt = req.Prompt
	g.Country = middleware.CountryFromContext(r.Context())
	if raw, err := json.Marshal(req.Options); err == nil {
		g.OptionsJSON = raw
	}
	if err := a.History.Create(r.Context(), g); err != nil {
		logger.Error().Err(err).Msg("generate: history write failed")
		return false
	}
	return true
}

func reportFailure(r *http.Request, req orchestrator.Request, failure *orchestrator.Failure) {
	hub := sentry.GetHubFromContext(r.Context())
	if hub == nil {
		hub = sentry.CurrentHub()
	}
	hub.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("failure_kind", string(failure.Kind))
		scope.SetTag("media_kind", string(req.Kind))
		scope.SetContext("generation", sentry.Context{
			"attempted_providers": failure.AttemptedProviders,
			"attempts":            failure.Attempts,
		})
		hub.CaptureException(failure)
	})
}
