package synthetic

import (
	"bytes"
	"context"
	"image/gif"
	"image/png"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mediagen/internal/orchestrator"
)

func TestImageIsDeterministicPNG(t *testing.T) {
	g := New(Options{})
	opts := orchestrator.Options{Width: 64, Height: 32}

	first, err := g.Image(context.Background(), "a red fox", opts)
	require.NoError(t, err)
	second, err := g.Image(context.Background(), "a red fox", opts)
	require.NoError(t, err)
	other, err := g.Image(context.Background(), "a blue fox", opts)
	require.NoError(t, err)

	assert.Equal(t, first.Data, second.Data)
	assert.NotEqual(t, first.Data, other.Data)
	assert.Equal(t, "image/png", first.MIME)

	cfg, err := png.DecodeConfig(bytes.NewReader(first.Data))
	require.NoError(t, err)
	assert.Equal(t, 64, cfg.Width)
	assert.Equal(t, 32, cfg.Height)
}

func TestImageClampsSize(t *testing.T) {
	resp, err := New(Options{}).Image(context.Background(), "p", orchestrator.Options{Width: 99999})
	require.NoError(t, err)
	cfg, err := png.DecodeConfig(bytes.NewReader(resp.Data))
	require.NoError(t, err)
	assert.Equal(t, maxEdge, cfg.Width)
	assert.Equal(t, defaultEdge, cfg.Height)
}

func TestVideoIsAnimated(t *testing.T) {
	resp, err := New(Options{}).Video(context.Background(), "waves", orchestrator.Options{Duration: 4})
	require.NoError(t, err)
	anim, err := gif.DecodeAll(bytes.NewReader(resp.Data))
	require.NoError(t, err)
	assert.Len(t, anim.Image, videoFrames)
	assert.Equal(t, 4, resp.Fields["duration"])
}

func TestAudioWAVHeader(t *testing.T) {
	resp, err := New(Options{}).Audio(context.Background(), "hello", orchestrator.Options{Duration: 1, Language: "pt-br"})
	require.NoError(t, err)
	require.Greater(t, len(resp.Data), 44)
	assert.Equal(t, "RIFF", string(resp.Data[0:4]))
	assert.Equal(t, "WAVE", string(resp.Data[8:12]))
	assert.Len(t, resp.Data, 44+sampleRate*2)
	assert.Equal(t, "audio/wav", resp.MIME)
	assert.Equal(t, "pt-BR", resp.Fields["language"])
}

func TestLatencyHonorsContext(t *testing.T) {
	g := New(Options{Latency: time.Minute})
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := g.Image(ctx, "slow", orchestrator.Options{})
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestDescriptorsThroughOrchestrator(t *testing.T) {
	g := New(Options{})
	reg, err := orchestrator.NewRegistry(g.Descriptors(), nil)
	require.NoError(t, err)
	orc, err := orchestrator.New(reg, orchestrator.Config{})
	require.NoError(t, err)

	for _, kind := range orchestrator.Kinds {
		res, err := orc.Generate(context.Background(), orchestrator.Request{Kind: kind, Prompt: "demo"})
		require.NoError(t, err, kind)
		assert.Equal(t, "synthetic-"+string(kind), res.Provider)
		assert.Zero(t, res.Cost)
		assert.Contains(t, res.URL, "data:")
	}
}
