// Package providers assembles the provider registry from configuration.
package providers

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"mediagen/internal/infra"
	"mediagen/internal/infra/credentials"
	"mediagen/internal/orchestrator"
	"mediagen/internal/providers/gemini"
	"mediagen/internal/providers/openai"
	"mediagen/internal/providers/qwen"
	"mediagen/internal/providers/replicate"
	"mediagen/internal/providers/synthetic"
)

// TokenSource supplies stored keys for providers missing from the environment.
type TokenSource interface {
	Token(ctx context.Context, provider string) (string, error)
}

// Deps are optional collaborators for the registry builder.
type Deps struct {
	Logger     *infra.Logger
	Tokens     TokenSource
	HTTPClient *http.Client
}

// BuildRegistry registers every provider whose credentials are available,
// plus the synthetic providers when enabled. It runs once at start-up.
func BuildRegistry(ctx context.Context, cfg *infra.Config, deps Deps) (*orchestrator.Registry, error) {
	logger := deps.Logger
	if logger == nil {
		l := infra.Logger(zerolog.New(io.Discard))
		logger = &l
	}
	keys := resolveKeys(ctx, cfg, deps.Tokens, logger)

	var descs []orchestrator.Descriptor
	if key := keys[credentials.ProviderOpenAI]; key != "" {
		client, err := openai.NewClient(openai.Options{
			APIKey:      key,
			BaseURL:     cfg.OpenAIBaseURL,
			ImageModel:  cfg.OpenAIImageModel,
			SpeechModel: cfg.OpenAISpeechModel,
			HTTPClient:  deps.HTTPClient,
			Logger:      logger,
		})
		if err != nil {
			return nil, err
		}
		descs = append(descs, client.Descriptors()...)
	}
	if key := keys[credentials.ProviderGemini]; key != "" {
		client, err := gemini.NewClient(ctx, gemini.Options{
			APIKey:     key,
			ImageModel: cfg.GeminiImageModel,
			VideoModel: cfg.GeminiVideoModel,
			HTTPClient: deps.HTTPClient,
			Logger:     logger,
		})
		if err != nil {
			return nil, err
		}
		descs = append(descs, client.Descriptors()...)
	}
	if key := keys[credentials.ProviderReplicate]; key != "" {
		client, err := replicate.NewClient(replicate.Options{
			APIToken:   key,
			BaseURL:    cfg.ReplicateBaseURL,
			ImageModel: cfg.ReplicateImageModel,
			VideoModel: cfg.ReplicateVideoModel,
			HTTPClient: deps.HTTPClient,
			Logger:     logger,
		})
		if err != nil {
			return nil, err
		}
		descs = append(descs, client.Descriptors()...)
	}
	if key := keys[credentials.ProviderDashScope]; key != "" {
		client, err := qwen.NewClient(qwen.Options{
			APIKey:     key,
			BaseURL:    cfg.QwenBaseURL,
			Model:      cfg.QwenModel,
			HTTPClient: deps.HTTPClient,
			Logger:     logger,
		})
		if err != nil {
			return nil, err
		}
		descs = append(descs, client.Descriptor())
	}
	if cfg.SyntheticProviders {
		descs = append(descs, synthetic.New(synthetic.Options{Logger: logger}).Descriptors()...)
	}

	registry, err := orchestrator.NewRegistry(descs, map[orchestrator.Kind]string{
		orchestrator.KindImage: cfg.RecommendedImage,
		orchestrator.KindVideo: cfg.RecommendedVideo,
		orchestrator.KindAudio: cfg.RecommendedAudio,
	})
	if err != nil {
		return nil, err
	}
	for _, kind := range orchestrator.Kinds {
		if len(registry.ForKind(kind)) == 0 {
			logger.Warn().Str("kind", string(kind)).Msg("providers: no provider registered for kind")
		}
	}
	logger.Info().Int("providers", registry.Len()).Msg("providers: registry built")
	return registry, nil
}

// New builds the registry and an orchestrator configured from cfg.
func New(ctx context.Context, cfg *infra.Config, deps Deps) (*orchestrator.Orchestrator, error) {
	registry, err := BuildRegistry(ctx, cfg, deps)
	if err != nil {
		return nil, err
	}
	var limiter *orchestrator.RateLimiter
	if cfg.ProviderRateLimitPerMin > 0 {
		limiter = orchestrator.NewRateLimiter(cfg.ProviderRateLimitPerMin, time.Minute)
	}
	return orchestrator.New(registry, orchestrator.Config{
		Logger:   deps.Logger,
		Timeouts: Timeouts(cfg),
		Limiter:  limiter,
	})
}

// Timeouts maps the configured per-kind attempt timeouts.
func Timeouts(cfg *infra.Config) map[orchestrator.Kind]time.Duration {
	return map[orchestrator.Kind]time.Duration{
		orchestrator.KindImage: cfg.ImageTimeout,
		orchestrator.KindVideo: cfg.VideoTimeout,
		orchestrator.KindAudio: cfg.AudioTimeout,
	}
}

func resolveKeys(ctx context.Context, cfg *infra.Config, tokens TokenSource, logger *infra.Logger) map[string]string {
	keys := map[string]string{
		credentials.ProviderOpenAI:    cfg.OpenAIAPIKey,
		credentials.ProviderGemini:    cfg.GeminiAPIKey,
		credentials.ProviderReplicate: cfg.ReplicateAPIToken,
		credentials.ProviderDashScope: cfg.QwenAPIKey,
	}
	if tokens == nil {
		return keys
	}
	for _, provider := range credentials.Providers {
		if keys[provider] != "" {
			continue
		}
		token, err := tokens.Token(ctx, provider)
		if err != nil {
			logger.Warn().Err(err).Str("provider", provider).Msg("providers: stored credential lookup failed")
			continue
		}
		keys[provider] = token
	}
	return keys
}
