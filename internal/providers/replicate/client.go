// Package replicate runs hosted models through Replicate's predictions API.
package replicate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"mediagen/internal/infra"
	"mediagen/internal/orchestrator"
)

// Provider ids registered by this package.
const (
	ImageID = "replicate-flux"
	VideoID = "replicate-video"
)

// ErrMissingAPIToken indicates that the client was configured without credentials.
var ErrMissingAPIToken = errors.New("replicate: api token is required")

// Options configures the Replicate client.
type Options struct {
	APIToken     string
	BaseURL      string
	ImageModel   string
	VideoModel   string
	PollInterval time.Duration
	// WaitSeconds is sent as the Prefer: wait hint on creation.
	WaitSeconds    int
	HTTPClient     *http.Client
	Logger         *infra.Logger
	RequestTimeout time.Duration
}

// Client performs HTTP calls to the Replicate API.
type Client struct {
	apiToken     string
	baseURL      string
	imageModel   string
	videoModel   string
	pollInterval time.Duration
	waitSeconds  int
	httpClient   *http.Client
	logger       *infra.Logger
}

type predictionRequest struct {
	Input map[string]any `json:"input"`
}

type prediction struct {
	ID      string          `json:"id"`
	Status  string          `json:"status"`
	Output  json.RawMessage `json:"output"`
	Error   any             `json:"error"`
	Metrics map[string]any  `json:"metrics"`
	URLs    struct {
		Get    string `json:"get"`
		Cancel string `json:"cancel"`
	} `json:"urls"`
}

type errorResponse struct {
	Title  string `json:"title"`
	Detail string `json:"detail"`
}

// NewClient constructs a client with defaults applied.
func NewClient(opts Options) (*Client, error) {
	token := strings.TrimSpace(opts.APIToken)
	if token == "" {
		return nil, ErrMissingAPIToken
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.RequestTimeout
		if timeout <= 0 {
			timeout = 90 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = "https://api.replicate.com/v1"
	}
	imageModel := strings.TrimSpace(opts.ImageModel)
	if imageModel == "" {
		imageModel = "black-forest-labs/flux-schnell"
	}
	videoModel := strings.TrimSpace(opts.VideoModel)
	if videoModel == "" {
		videoModel = "minimax/video-01"
	}
	poll := opts.PollInterval
	if poll <= 0 {
		poll = 2 * time.Second
	}
	wait := opts.WaitSeconds
	if wait <= 0 {
		wait = 60
	}
	logger := opts.Logger
	if logger == nil {
		l := infra.Logger(zerolog.New(io.Discard))
		logger = &l
	}
	return &Client{
		apiToken:     token,
		baseURL:      baseURL,
		imageModel:   imageModel,
		videoModel:   videoModel,
		pollInterval: poll,
		waitSeconds:  wait,
		httpClient:   httpClient,
		logger:       logger,
	}, nil
}

// Descriptors returns the Flux image and video providers.
func (c *Client) Descriptors() []orchestrator.Descriptor {
	fast := []string{orchestrator.CapabilityFast}
	return []orchestrator.Descriptor{
		{ID: ImageID, Kind: orchestrator.KindImage, Cost: orchestrator.FlatCost(0.003), Backend: orchestrator.BackendFunc(c.GenerateImage), Capabilities: fast},
		{ID: VideoID, Kind: orchestrator.KindVideo, Cost: orchestrator.FlatCost(0.50), Backend: orchestrator.BackendFunc(c.GenerateVideo), Capabilities: fast},
	}
}

// GenerateImage runs the image model and returns the hosted output URL.
func (c *Client) GenerateImage(ctx context.Context, prompt string, opts orchestrator.Options) (*orchestrator.Response, error) {
	input := map[string]any{
		"prompt":        prompt,
		"num_outputs":   1,
		"aspect_ratio":  aspectRatio(opts.Width, opts.Height),
		"output_format": "png",
	}
	return c.run(ctx, c.imageModel, input)
}

// GenerateVideo runs the video model. The provider-side prompt optimizer is
// disabled so the prompt reaches the model as given.
func (c *Client) GenerateVideo(ctx context.Context, prompt string, _ orchestrator.Options) (*orchestrator.Response, error) {
	input := map[string]any{
		"prompt":           prompt,
		"prompt_optimizer": false,
	}
	return c.run(ctx, c.videoModel, input)
}

func (c *Client) run(ctx context.Context, model string, input map[string]any) (*orchestrator.Response, error) {
	owner, name, ok := strings.Cut(model, "/")
	if !ok || owner == "" || name == "" {
		return nil, fmt.Errorf("replicate: invalid model %q", model)
	}
	body, err := json.Marshal(predictionRequest{Input: input})
	if err != nil {
		return nil, fmt.Errorf("replicate: encode request: %w", err)
	}
	endpoint := fmt.Sprintf("%s/models/%s/%s/predictions", c.baseURL, owner, name)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("replicate: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Prefer", fmt.Sprintf("wait=%d", c.waitSeconds))

	pred, err := c.do(req)
	if err != nil {
		return nil, err
	}
	for !terminal(pred.Status) {
		if pred.URLs.Get == "" {
			return nil, fmt.Errorf("replicate: prediction %s is %s without a poll url", pred.ID, pred.Status)
		}
		timer := time.NewTimer(c.pollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
		poll, err := http.NewRequestWithContext(ctx, http.MethodGet, pred.URLs.Get, nil)
		if err != nil {
			return nil, fmt.Errorf("replicate: build poll request: %w", err)
		}
		if pred, err = c.do(poll); err != nil {
			return nil, err
		}
	}
	if pred.Status != "succeeded" {
		return nil, fmt.Errorf("replicate: prediction %s %s: %v", pred.ID, pred.Status, pred.Error)
	}
	assetURL := firstOutput(pred.Output)
	if assetURL == "" {
		return nil, fmt.Errorf("replicate: prediction %s returned no output", pred.ID)
	}
	c.logger.Debug().
		Str("model", model).
		Str("prediction_id", pred.ID).
		Msg("replicate: prediction succeeded")
	fields := map[string]any{"model": model, "prediction_id": pred.ID}
	if predictTime, ok := pred.Metrics["predict_time"]; ok {
		fields["predict_time"] = predictTime
	}
	return &orchestrator.Response{URL: assetURL, Fields: fields}, nil
}

func (c *Client) do(req *http.Request) (*prediction, error) {
	req.Header.Set("Authorization", "Bearer "+c.apiToken)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("replicate: http request: %w", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("replicate: read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		var detail errorResponse
		if err := json.Unmarshal(raw, &detail); err == nil && detail.Detail != "" {
			return nil, fmt.Errorf("replicate: status %d: %s", resp.StatusCode, detail.Detail)
		}
		return nil, fmt.Errorf("replicate: status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	var pred prediction
	if err := json.Unmarshal(raw, &pred); err != nil {
		return nil, fmt.Errorf("replicate: decode response: %w", err)
	}
	return &pred, nil
}

func terminal(status string) bool {
	switch status {
	case "succeeded", "failed", "canceled":
		return true
	default:
		return false
	}
}

// firstOutput accepts either a single URL or a list of URLs.
func firstOutput(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var single string
	if err := json.Unmarshal(raw, &single); err == nil {
		return strings.TrimSpace(single)
	}
	var many []string
	if err := json.Unmarshal(raw, &many); err == nil {
		for _, u := range many {
			if u = strings.TrimSpace(u); u != "" {
				return u
			}
		}
	}
	return ""
}

func aspectRatio(width, height int) string {
	switch {
	case width <= 0 || height <= 0 || width == height:
		return "1:1"
	case width > height:
		return "16:9"
	default:
		return "9:16"
	}
}
