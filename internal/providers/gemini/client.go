// Package gemini adapts Google's Imagen and Veo models to orchestrator backends.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/genai"

	"mediagen/internal/infra"
	"mediagen/internal/orchestrator"
)

// Provider ids registered by this package.
const (
	ImageID = "gemini-imagen"
	VideoID = "gemini-veo"
)

const (
	defaultImageModel        = "imagen-4.0-generate-001"
	defaultPremiumImageModel = "imagen-4.0-ultra-generate-001"
	defaultVideoModel        = "veo-2.0-generate-001"
	defaultPollInterval      = 10 * time.Second
	defaultVideoSeconds      = 8
	minVideoSeconds          = 5
	maxVideoSeconds          = 8
	videoCostPerSecond       = 0.35
)

// ErrMissingAPIKey indicates that the client was configured without credentials.
var ErrMissingAPIKey = errors.New("gemini: api key is required")

type modelsAPI interface {
	GenerateImages(ctx context.Context, model, prompt string, config *genai.GenerateImagesConfig) (*genai.GenerateImagesResponse, error)
	GenerateVideos(ctx context.Context, model, prompt string, image *genai.Image, config *genai.GenerateVideosConfig) (*genai.GenerateVideosOperation, error)
}

type operationsAPI interface {
	GetVideosOperation(ctx context.Context, op *genai.GenerateVideosOperation, config *genai.GetOperationConfig) (*genai.GenerateVideosOperation, error)
}

// filesAPI fetches Veo output. Generated video URIs only resolve with the
// API key, so the bytes are pulled before the response leaves this package.
type filesAPI interface {
	Download(ctx context.Context, uri genai.DownloadURI, config *genai.DownloadFileConfig) ([]byte, error)
}

// Options configures the Gemini client.
type Options struct {
	APIKey            string
	ImageModel        string
	PremiumImageModel string
	VideoModel        string
	// PollInterval spaces GetVideosOperation calls while a video renders.
	PollInterval time.Duration
	HTTPClient   *http.Client
	Logger       *infra.Logger
}

// Client wraps the genai SDK client.
type Client struct {
	models            modelsAPI
	operations        operationsAPI
	files             filesAPI
	imageModel        string
	premiumImageModel string
	videoModel        string
	pollInterval      time.Duration
	logger            *infra.Logger
}

// NewClient constructs a client for the Gemini developer API.
func NewClient(ctx context.Context, opts Options) (*Client, error) {
	apiKey := strings.TrimSpace(opts.APIKey)
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	sdk, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: opts.HTTPClient,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}
	return newClient(sdk.Models, sdk.Operations, sdk.Files, opts), nil
}

func newClient(models modelsAPI, operations operationsAPI, files filesAPI, opts Options) *Client {
	logger := opts.Logger
	if logger == nil {
		l := infra.Logger(zerolog.New(io.Discard))
		logger = &l
	}
	poll := opts.PollInterval
	if poll <= 0 {
		poll = defaultPollInterval
	}
	return &Client{
		models:            models,
		operations:        operations,
		files:             files,
		imageModel:        firstNonEmpty(opts.ImageModel, defaultImageModel),
		premiumImageModel: firstNonEmpty(opts.PremiumImageModel, defaultPremiumImageModel),
		videoModel:        firstNonEmpty(opts.VideoModel, defaultVideoModel),
		pollInterval:      poll,
		logger:            logger,
	}
}

// Descriptors returns the Imagen and Veo providers.
func (c *Client) Descriptors() []orchestrator.Descriptor {
	premium := []string{orchestrator.CapabilityPremium}
	return []orchestrator.Descriptor{
		{ID: ImageID, Kind: orchestrator.KindImage, Cost: ImageCost, Backend: orchestrator.BackendFunc(c.GenerateImage), Capabilities: premium},
		{ID: VideoID, Kind: orchestrator.KindVideo, Cost: VideoCost, Backend: orchestrator.BackendFunc(c.GenerateVideo), Capabilities: premium},
	}
}

// ImageCost prices one Imagen image; premium requests use the ultra model.
func ImageCost(opts orchestrator.Options) float64 {
	if opts.Premium() {
		return 0.06
	}
	return 0.04
}

// VideoCost prices a Veo clip per rendered second.
func VideoCost(opts orchestrator.Options) float64 {
	return videoCostPerSecond * float64(videoSeconds(opts))
}

// GenerateImage renders one image and returns its bytes inline.
func (c *Client) GenerateImage(ctx context.Context, prompt string, opts orchestrator.Options) (*orchestrator.Response, error) {
	model := c.imageModel
	if opts.Premium() {
		model = c.premiumImageModel
	}
	aspect := imageAspect(opts.Width, opts.Height)
	resp, err := c.models.GenerateImages(ctx, model, prompt, &genai.GenerateImagesConfig{
		NumberOfImages: 1,
		AspectRatio:    aspect,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: generate images: %w", err)
	}
	if resp == nil || len(resp.GeneratedImages) == 0 {
		return nil, errors.New("gemini: empty image response")
	}
	generated := resp.GeneratedImages[0]
	if generated == nil || generated.Image == nil {
		reason := ""
		if generated != nil {
			reason = generated.RAIFilteredReason
		}
		return nil, fmt.Errorf("gemini: image filtered: %s", firstNonEmpty(reason, "no image returned"))
	}
	fields := map[string]any{"model": model, "aspect_ratio": aspect}
	if generated.EnhancedPrompt != "" {
		fields["enhanced_prompt"] = generated.EnhancedPrompt
	}
	c.logger.Debug().Str("model", model).Str("aspect_ratio", aspect).Msg("gemini: generated image")
	return &orchestrator.Response{
		URL:    generated.Image.GCSURI,
		Data:   generated.Image.ImageBytes,
		MIME:   firstNonEmpty(generated.Image.MIMEType, "image/png"),
		Fields: fields,
	}, nil
}

// GenerateVideo starts a Veo operation and polls it until the clip is ready
// or ctx is done.
func (c *Client) GenerateVideo(ctx context.Context, prompt string, opts orchestrator.Options) (*orchestrator.Response, error) {
	seconds := int32(videoSeconds(opts))
	cfg := &genai.GenerateVideosConfig{
		NumberOfVideos:  1,
		DurationSeconds: genai.Ptr(seconds),
		AspectRatio:     videoAspect(opts.Width, opts.Height),
	}
	if res := strings.TrimSpace(opts.Resolution); res != "" {
		cfg.Resolution = res
	}
	op, err := c.models.GenerateVideos(ctx, c.videoModel, prompt, nil, cfg)
	if err != nil {
		return nil, fmt.Errorf("gemini: generate videos: %w", err)
	}
	op, err = c.waitForVideo(ctx, op)
	if err != nil {
		return nil, err
	}
	if op.Response == nil || len(op.Response.GeneratedVideos) == 0 || op.Response.GeneratedVideos[0].Video == nil {
		if op.Response != nil && len(op.Response.RAIMediaFilteredReasons) > 0 {
			return nil, fmt.Errorf("gemini: video filtered: %s", strings.Join(op.Response.RAIMediaFilteredReasons, "; "))
		}
		return nil, errors.New("gemini: empty video response")
	}
	generated := op.Response.GeneratedVideos[0]
	video := generated.Video
	fields := map[string]any{
		"model":        c.videoModel,
		"operation":    op.Name,
		"duration":     int(seconds),
		"aspect_ratio": cfg.AspectRatio,
	}
	data := video.VideoBytes
	if len(data) == 0 && video.URI != "" {
		data = c.downloadVideo(ctx, generated)
	}
	resp := &orchestrator.Response{
		Data:   data,
		MIME:   firstNonEmpty(video.MIMEType, "video/mp4"),
		Fields: fields,
	}
	if len(data) == 0 {
		resp.URL = video.URI
		fields["requires_api_key"] = true
	} else if video.URI != "" {
		fields["source_uri"] = video.URI
	}
	c.logger.Debug().Str("model", c.videoModel).Str("operation", op.Name).Int("bytes", len(data)).Msg("gemini: generated video")
	return resp, nil
}

// downloadVideo returns nil when the clip cannot be fetched; the caller then
// falls back to the key-protected URI.
func (c *Client) downloadVideo(ctx context.Context, generated *genai.GeneratedVideo) []byte {
	if c.files == nil {
		return nil
	}
	data, err := c.files.Download(ctx, genai.NewDownloadURIFromGeneratedVideo(generated), nil)
	if err != nil {
		c.logger.Warn().Err(err).Str("uri", generated.Video.URI).Msg("gemini: video download failed")
		return nil
	}
	return data
}

func (c *Client) waitForVideo(ctx context.Context, op *genai.GenerateVideosOperation) (*genai.GenerateVideosOperation, error) {
	for {
		if op == nil {
			return nil, errors.New("gemini: missing video operation")
		}
		if op.Done {
			if len(op.Error) > 0 {
				return nil, fmt.Errorf("gemini: video operation failed: %v", op.Error["message"])
			}
			return op, nil
		}
		timer := time.NewTimer(c.pollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
		next, err := c.operations.GetVideosOperation(ctx, op, nil)
		if err != nil {
			return nil, fmt.Errorf("gemini: poll video operation: %w", err)
		}
		op = next
	}
}

func videoSeconds(opts orchestrator.Options) int {
	switch {
	case opts.Duration <= 0:
		return defaultVideoSeconds
	case opts.Duration < minVideoSeconds:
		return minVideoSeconds
	case opts.Duration > maxVideoSeconds:
		return maxVideoSeconds
	default:
		return opts.Duration
	}
}

var imageAspects = []struct {
	label string
	ratio float64
}{
	{"1:1", 1},
	{"3:4", 3.0 / 4.0},
	{"4:3", 4.0 / 3.0},
	{"9:16", 9.0 / 16.0},
	{"16:9", 16.0 / 9.0},
}

// imageAspect picks the supported aspect ratio closest to width:height.
func imageAspect(width, height int) string {
	if width <= 0 || height <= 0 {
		return "1:1"
	}
	target := float64(width) / float64(height)
	best, bestDiff := imageAspects[0].label, math.Inf(1)
	for _, a := range imageAspects {
		if diff := math.Abs(a.ratio - target); diff < bestDiff {
			best, bestDiff = a.label, diff
		}
	}
	return best
}

func videoAspect(width, height int) string {
	if height > width && width > 0 {
		return "9:16"
	}
	return "16:9"
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
