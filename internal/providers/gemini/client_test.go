package gemini

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"mediagen/internal/orchestrator"
)

type fakeModels struct {
	imageModel  string
	imageConfig *genai.GenerateImagesConfig
	imageResp   *genai.GenerateImagesResponse
	videoConfig *genai.GenerateVideosConfig
	videoOp     *genai.GenerateVideosOperation
	err         error
}

func (f *fakeModels) GenerateImages(_ context.Context, model, _ string, config *genai.GenerateImagesConfig) (*genai.GenerateImagesResponse, error) {
	f.imageModel = model
	f.imageConfig = config
	return f.imageResp, f.err
}

func (f *fakeModels) GenerateVideos(_ context.Context, _, _ string, _ *genai.Image, config *genai.GenerateVideosConfig) (*genai.GenerateVideosOperation, error) {
	f.videoConfig = config
	return f.videoOp, f.err
}

type fakeOperations struct {
	polls   int
	results []*genai.GenerateVideosOperation
}

func (f *fakeOperations) GetVideosOperation(_ context.Context, _ *genai.GenerateVideosOperation, _ *genai.GetOperationConfig) (*genai.GenerateVideosOperation, error) {
	if f.polls >= len(f.results) {
		return nil, errors.New("no more results")
	}
	op := f.results[f.polls]
	f.polls++
	return op, nil
}

type fakeFiles struct {
	data  []byte
	err   error
	calls int
}

func (f *fakeFiles) Download(_ context.Context, _ genai.DownloadURI, _ *genai.DownloadFileConfig) ([]byte, error) {
	f.calls++
	return f.data, f.err
}

func TestNewClientRequiresKey(t *testing.T) {
	_, err := NewClient(context.Background(), Options{})
	require.ErrorIs(t, err, ErrMissingAPIKey)
}

func TestGenerateImage(t *testing.T) {
	models := &fakeModels{imageResp: &genai.GenerateImagesResponse{
		GeneratedImages: []*genai.GeneratedImage{{
			Image: &genai.Image{ImageBytes: []byte{1, 2, 3}, MIMEType: "image/jpeg"},
		}},
	}}
	client := newClient(models, &fakeOperations{}, nil, Options{})

	resp, err := client.GenerateImage(context.Background(), "a lighthouse", orchestrator.Options{Width: 1920, Height: 1080})
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, resp.Data)
	assert.Equal(t, "image/jpeg", resp.MIME)
	assert.Equal(t, defaultImageModel, models.imageModel)
	assert.Equal(t, "16:9", models.imageConfig.AspectRatio)
	assert.EqualValues(t, 1, models.imageConfig.NumberOfImages)

	_, err = client.GenerateImage(context.Background(), "a lighthouse", orchestrator.Options{Quality: orchestrator.QualityPremium})
	require.NoError(t, err)
	assert.Equal(t, defaultPremiumImageModel, models.imageModel)
}

func TestGenerateImageFiltered(t *testing.T) {
	models := &fakeModels{imageResp: &genai.GenerateImagesResponse{
		GeneratedImages: []*genai.GeneratedImage{{RAIFilteredReason: "safety"}},
	}}
	client := newClient(models, &fakeOperations{}, nil, Options{})

	_, err := client.GenerateImage(context.Background(), "p", orchestrator.Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "safety")
}

func TestGenerateVideoPollsUntilDone(t *testing.T) {
	done := &genai.GenerateVideosOperation{
		Name: "operations/123",
		Done: true,
		Response: &genai.GenerateVideosResponse{
			GeneratedVideos: []*genai.GeneratedVideo{{Video: &genai.Video{URI: "https://storage.example.com/v.mp4"}}},
		},
	}
	models := &fakeModels{videoOp: &genai.GenerateVideosOperation{Name: "operations/123"}}
	ops := &fakeOperations{results: []*genai.GenerateVideosOperation{{Name: "operations/123"}, done}}
	client := newClient(models, ops, nil, Options{PollInterval: time.Millisecond})

	resp, err := client.GenerateVideo(context.Background(), "surf at dawn", orchestrator.Options{Duration: 6, Width: 720, Height: 1280})
	require.NoError(t, err)
	assert.Equal(t, "https://storage.example.com/v.mp4", resp.URL)
	assert.Equal(t, true, resp.Fields["requires_api_key"])
	assert.Equal(t, 2, ops.polls)
	require.NotNil(t, models.videoConfig.DurationSeconds)
	assert.EqualValues(t, 6, *models.videoConfig.DurationSeconds)
	assert.Equal(t, "9:16", models.videoConfig.AspectRatio)
}

func TestGenerateVideoOperationError(t *testing.T) {
	models := &fakeModels{videoOp: &genai.GenerateVideosOperation{
		Done:  true,
		Error: map[string]any{"message": "quota exceeded"},
	}}
	client := newClient(models, &fakeOperations{}, nil, Options{})

	_, err := client.GenerateVideo(context.Background(), "p", orchestrator.Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota exceeded")
}

func TestGenerateVideoHonorsContext(t *testing.T) {
	models := &fakeModels{videoOp: &genai.GenerateVideosOperation{Name: "operations/slow"}}
	client := newClient(models, &fakeOperations{}, nil, Options{PollInterval: time.Hour})
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := client.GenerateVideo(ctx, "p", orchestrator.Options{})
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestCosts(t *testing.T) {
	assert.InDelta(t, 0.04, ImageCost(orchestrator.Options{}), 1e-9)
	assert.InDelta(t, 0.06, ImageCost(orchestrator.Options{Budget: orchestrator.BudgetHigh}), 1e-9)
	assert.InDelta(t, 2.80, VideoCost(orchestrator.Options{}), 1e-9)
	assert.InDelta(t, 1.75, VideoCost(orchestrator.Options{Duration: 5}), 1e-9)
	assert.InDelta(t, 2.80, VideoCost(orchestrator.Options{Duration: 30}), 1e-9)
}

func TestImageAspect(t *testing.T) {
	cases := []struct {
		w, h int
		want string
	}{
		{0, 0, "1:1"},
		{1024, 1024, "1:1"},
		{1024, 768, "4:3"},
		{768, 1024, "3:4"},
		{1080, 1920, "9:16"},
		{1920, 1080, "16:9"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, imageAspect(tc.w, tc.h), "%dx%d", tc.w, tc.h)
	}
}

func doneVideoOp(video *genai.Video) *genai.GenerateVideosOperation {
	return &genai.GenerateVideosOperation{
		Name:     "operations/9",
		Done:     true,
		Response: &genai.GenerateVideosResponse{GeneratedVideos: []*genai.GeneratedVideo{{Video: video}}},
	}
}

func TestGenerateVideoDownloadsBytes(t *testing.T) {
	files := &fakeFiles{data: []byte("mp4")}
	models := &fakeModels{videoOp: doneVideoOp(&genai.Video{URI: "https://generativelanguage.googleapis.com/v1beta/files/abc:download"})}
	client := newClient(models, &fakeOperations{}, files, Options{})

	resp, err := client.GenerateVideo(context.Background(), "p", orchestrator.Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, files.calls)
	assert.Equal(t, []byte("mp4"), resp.Data)
	assert.Equal(t, "video/mp4", resp.MIME)
	assert.Empty(t, resp.URL)
	assert.NotContains(t, resp.Fields, "requires_api_key")
	assert.Equal(t, "https://generativelanguage.googleapis.com/v1beta/files/abc:download", resp.Fields["source_uri"])
}

func TestGenerateVideoDownloadFailureKeepsURI(t *testing.T) {
	files := &fakeFiles{err: errors.New("forbidden")}
	models := &fakeModels{videoOp: doneVideoOp(&genai.Video{URI: "https://generativelanguage.googleapis.com/v1beta/files/abc:download"})}
	client := newClient(models, &fakeOperations{}, files, Options{})

	resp, err := client.GenerateVideo(context.Background(), "p", orchestrator.Options{})
	require.NoError(t, err)
	assert.Equal(t, "https://generativelanguage.googleapis.com/v1beta/files/abc:download", resp.URL)
	assert.Equal(t, true, resp.Fields["requires_api_key"])
}

func TestGenerateVideoInlineBytesSkipDownload(t *testing.T) {
	files := &fakeFiles{}
	models := &fakeModels{videoOp: doneVideoOp(&genai.Video{VideoBytes: []byte{9}, MIMEType: "video/webm"})}
	client := newClient(models, &fakeOperations{}, files, Options{})

	resp, err := client.GenerateVideo(context.Background(), "p", orchestrator.Options{})
	require.NoError(t, err)
	assert.Zero(t, files.calls)
	assert.Equal(t, []byte{9}, resp.Data)
	assert.Equal(t, "video/webm", resp.MIME)
}
