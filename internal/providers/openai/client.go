// Package openai adapts the OpenAI image and speech APIs to orchestrator
// backends.
package openai

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	openaisdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/rs/zerolog"

	"mediagen/internal/infra"
	"mediagen/internal/orchestrator"
)

// Provider ids registered by this package.
const (
	ImageID  = "openai-dalle3"
	SpeechID = "openai-tts"
)

const (
	defaultImageModel  = "dall-e-3"
	defaultSpeechModel = "tts-1"
	defaultVoice       = "alloy"
	squareSize         = "1024x1024"
	landscapeSize      = "1792x1024"
	portraitSize       = "1024x1792"
)

// ErrMissingAPIKey indicates that the client was configured without credentials.
var ErrMissingAPIKey = errors.New("openai: api key is required")

// Options configures the OpenAI client.
type Options struct {
	APIKey      string
	BaseURL     string
	ImageModel  string
	SpeechModel string
	HTTPClient  *http.Client
	Logger      *infra.Logger
}

// Client wraps the SDK client. It is safe for concurrent use.
type Client struct {
	sdk         openaisdk.Client
	imageModel  string
	speechModel string
	logger      *infra.Logger
}

// NewClient constructs a client. Retries are disabled; a failed call falls
// through to the next ranked provider instead.
func NewClient(opts Options) (*Client, error) {
	apiKey := strings.TrimSpace(opts.APIKey)
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if base := strings.TrimSpace(opts.BaseURL); base != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(base))
	}
	if opts.HTTPClient != nil {
		reqOpts = append(reqOpts, option.WithHTTPClient(opts.HTTPClient))
	}

	imageModel := strings.TrimSpace(opts.ImageModel)
	if imageModel == "" {
		imageModel = defaultImageModel
	}
	speechModel := strings.TrimSpace(opts.SpeechModel)
	if speechModel == "" {
		speechModel = defaultSpeechModel
	}
	logger := opts.Logger
	if logger == nil {
		l := infra.Logger(zerolog.New(io.Discard))
		logger = &l
	}
	return &Client{
		sdk:         openaisdk.NewClient(reqOpts...),
		imageModel:  imageModel,
		speechModel: speechModel,
		logger:      logger,
	}, nil
}

// Descriptors returns the image and speech providers backed by this client.
func (c *Client) Descriptors() []orchestrator.Descriptor {
	return []orchestrator.Descriptor{
		{
			ID:           ImageID,
			Kind:         orchestrator.KindImage,
			Cost:         ImageCost,
			Backend:      orchestrator.BackendFunc(c.GenerateImage),
			Capabilities: []string{orchestrator.CapabilityPremium},
		},
		{
			ID:           SpeechID,
			Kind:         orchestrator.KindAudio,
			Cost:         c.speechCost,
			Backend:      orchestrator.BackendFunc(c.GenerateSpeech),
			Capabilities: []string{orchestrator.CapabilityVoice},
		},
	}
}

// ImageCost prices one DALL·E 3 image: hd and non-square sizes each raise the tier.
func ImageCost(opts orchestrator.Options) float64 {
	hd := opts.Premium()
	large := imageSize(opts) != squareSize
	switch {
	case hd && large:
		return 0.12
	case hd || large:
		return 0.08
	default:
		return 0.04
	}
}

func (c *Client) speechCost(opts orchestrator.Options) float64 {
	if strings.HasSuffix(c.speechModelFor(opts), "-hd") {
		return 0.030
	}
	return 0.015
}

// GenerateImage requests a single image. Hosted URLs are preferred; inline
// base64 payloads are decoded when no URL is returned.
func (c *Client) GenerateImage(ctx context.Context, prompt string, opts orchestrator.Options) (*orchestrator.Response, error) {
	size := imageSize(opts)
	quality := "standard"
	if opts.Premium() {
		quality = "hd"
	}
	resp, err := c.sdk.Images.Generate(ctx, openaisdk.ImageGenerateParams{
		Prompt:  prompt,
		Model:   openaisdk.ImageModel(c.imageModel),
		N:       openaisdk.Int(1),
		Size:    openaisdk.ImageGenerateParamsSize(size),
		Quality: openaisdk.ImageGenerateParamsQuality(quality),
	})
	if err != nil {
		return nil, fmt.Errorf("openai: generate image: %w", err)
	}
	if resp == nil || len(resp.Data) == 0 {
		return nil, errors.New("openai: empty image response")
	}
	img := resp.Data[0]
	out := &orchestrator.Response{
		URL: strings.TrimSpace(img.URL),
		Fields: map[string]any{
			"model":   c.imageModel,
			"size":    size,
			"quality": quality,
		},
	}
	if img.RevisedPrompt != "" {
		out.Fields["revised_prompt"] = img.RevisedPrompt
	}
	if out.URL == "" && img.B64JSON != "" {
		data, err := base64.StdEncoding.DecodeString(img.B64JSON)
		if err != nil {
			return nil, fmt.Errorf("openai: decode image: %w", err)
		}
		out.Data = data
		out.MIME = "image/png"
	}
	c.logger.Debug().
		Str("model", c.imageModel).
		Str("size", size).
		Str("quality", quality).
		Msg("openai: generated image")
	return out, nil
}

// GenerateSpeech synthesizes the prompt as MP3 audio returned inline.
func (c *Client) GenerateSpeech(ctx context.Context, prompt string, opts orchestrator.Options) (*orchestrator.Response, error) {
	model := c.speechModelFor(opts)
	voice := strings.ToLower(strings.TrimSpace(opts.Voice))
	if voice == "" {
		voice = defaultVoice
	}
	resp, err := c.sdk.Audio.Speech.New(ctx, openaisdk.AudioSpeechNewParams{
		Input:          prompt,
		Model:          openaisdk.SpeechModel(model),
		Voice:          openaisdk.AudioSpeechNewParamsVoice(voice),
		ResponseFormat: openaisdk.AudioSpeechNewParamsResponseFormat("mp3"),
	})
	if err != nil {
		return nil, fmt.Errorf("openai: synthesize speech: %w", err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("openai: read speech: %w", err)
	}
	mime := resp.Header.Get("Content-Type")
	if mime == "" || !strings.HasPrefix(mime, "audio/") {
		mime = "audio/mpeg"
	}
	fields := map[string]any{"model": model, "voice": voice}
	if lang := opts.LanguageTag(); lang != "" {
		fields["language"] = lang
	}
	return &orchestrator.Response{Data: data, MIME: mime, Fields: fields}, nil
}

func (c *Client) speechModelFor(opts orchestrator.Options) string {
	if opts.Premium() && c.speechModel == defaultSpeechModel {
		return defaultSpeechModel + "-hd"
	}
	return c.speechModel
}

// imageSize maps width/height hints to the closest size DALL·E 3 accepts.
func imageSize(opts orchestrator.Options) string {
	switch {
	case opts.Width > opts.Height:
		return landscapeSize
	case opts.Height > opts.Width:
		return portraitSize
	default:
		return squareSize
	}
}
