// Package synthetic renders deterministic local assets so the orchestrator can
// run end-to-end without any paid provider. Output depends only on the prompt
// and the options, never on the clock.
package synthetic

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"image"
	"image/color"
	"image/color/palette"
	"image/draw"
	"image/gif"
	"image/png"
	"io"
	"math"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"mediagen/internal/infra"
	"mediagen/internal/orchestrator"
)

// Provider ids registered by this package.
const (
	ImageID = "synthetic-image"
	VideoID = "synthetic-video"
	AudioID = "synthetic-audio"
)

const (
	defaultEdge     = 256
	maxEdge         = 2048
	defaultSeconds  = 2
	maxSeconds      = 30
	sampleRate      = 8000
	videoFrames     = 12
	videoFrameDelay = 8
)

// Options configures the synthetic backends.
type Options struct {
	// Latency is an artificial delay applied before every response.
	Latency time.Duration
	Logger  *infra.Logger
}

// Generator renders assets for every kind.
type Generator struct {
	latency time.Duration
	logger  *infra.Logger
}

// New builds a generator.
func New(opts Options) *Generator {
	logger := opts.Logger
	if logger == nil {
		l := infra.Logger(zerolog.New(io.Discard))
		logger = &l
	}
	return &Generator{latency: opts.Latency, logger: logger}
}

// Descriptors returns one free provider per kind.
func (g *Generator) Descriptors() []orchestrator.Descriptor {
	caps := []string{orchestrator.CapabilitySynthetic}
	return []orchestrator.Descriptor{
		{ID: ImageID, Kind: orchestrator.KindImage, Cost: orchestrator.FlatCost(0), Backend: orchestrator.BackendFunc(g.Image), Capabilities: caps},
		{ID: VideoID, Kind: orchestrator.KindVideo, Cost: orchestrator.FlatCost(0), Backend: orchestrator.BackendFunc(g.Video), Capabilities: caps},
		{ID: AudioID, Kind: orchestrator.KindAudio, Cost: orchestrator.FlatCost(0), Backend: orchestrator.BackendFunc(g.Audio), Capabilities: caps},
	}
}

// Image renders a striped PNG sized from the width and height hints.
func (g *Generator) Image(ctx context.Context, prompt string, opts orchestrator.Options) (*orchestrator.Response, error) {
	if err := g.wait(ctx); err != nil {
		return nil, err
	}
	width, height := clampEdge(opts.Width), clampEdge(opts.Height)
	seed := deterministicSeed("image", prompt, width, height)
	data, err := renderImage(width, height, seed)
	if err != nil {
		return nil, fmt.Errorf("synthetic: encode png: %w", err)
	}
	g.logger.Debug().Str("seed", seed).Int("width", width).Int("height", height).Msg("synthetic: rendered image")
	return &orchestrator.Response{
		Data: data,
		MIME: "image/png",
		Fields: map[string]any{
			"seed":   seed,
			"width":  width,
			"height": height,
		},
	}, nil
}

// Video renders a short animated GIF standing in for a clip.
func (g *Generator) Video(ctx context.Context, prompt string, opts orchestrator.Options) (*orchestrator.Response, error) {
	if err := g.wait(ctx); err != nil {
		return nil, err
	}
	seconds := clampSeconds(opts.Duration)
	seed := deterministicSeed("video", prompt, seconds, opts.Resolution)
	data, err := renderVideo(seed)
	if err != nil {
		return nil, fmt.Errorf("synthetic: encode gif: %w", err)
	}
	g.logger.Debug().Str("seed", seed).Int("duration", seconds).Msg("synthetic: rendered video placeholder")
	return &orchestrator.Response{
		Data: data,
		MIME: "image/gif",
		Fields: map[string]any{
			"seed":     seed,
			"duration": seconds,
			"frames":   videoFrames,
		},
	}, nil
}

// Audio renders a mono 16-bit WAV tone whose pitch is derived from the prompt.
func (g *Generator) Audio(ctx context.Context, prompt string, opts orchestrator.Options) (*orchestrator.Response, error) {
	if err := g.wait(ctx); err != nil {
		return nil, err
	}
	seconds := clampSeconds(opts.Duration)
	seed := deterministicSeed("audio", prompt, seconds, opts.Voice, opts.LanguageTag())
	freq := 220 + float64(mustParseHexByte(seed[0:2]))*2
	fields := map[string]any{
		"seed":      seed,
		"duration":  seconds,
		"frequency": freq,
	}
	if lang := opts.LanguageTag(); lang != "" {
		fields["language"] = lang
	}
	return &orchestrator.Response{
		Data:   renderTone(freq, seconds),
		MIME:   "audio/wav",
		Fields: fields,
	}, nil
}

func (g *Generator) wait(ctx context.Context) error {
	if g.latency <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(g.latency)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func clampEdge(v int) int {
	if v <= 0 {
		return defaultEdge
	}
	if v > maxEdge {
		return maxEdge
	}
	return v
}

func clampSeconds(v int) int {
	if v <= 0 {
		return defaultSeconds
	}
	if v > maxSeconds {
		return maxSeconds
	}
	return v
}

func renderImage(width, height int, seed string) ([]byte, error) {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	paintStripes(img, seed, 0)
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func paintStripes(img draw.Image, seed string, offset int) {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	draw.Draw(img, bounds, &image.Uniform{colorFromSeed(seed, 0)}, image.Point{}, draw.Src)

	accent := colorFromSeed(seed, 1)
	stripe := max(8, height/12)
	for y := -stripe * 2; y < height; y += stripe * 2 {
		top := y + offset%(stripe*2)
		rect := image.Rect(0, max(0, top), width, min(height, top+stripe))
		if rect.Empty() {
			continue
		}
		draw.Draw(img, rect, &image.Uniform{accent}, image.Point{}, draw.Over)
	}

	diagonal := colorFromSeed(seed, 2)
	for x := 0; x < max(width, height); x += max(16, width/32) {
		for y := 0; y < height && x+y < width; y++ {
			img.Set(x+y, y, diagonal)
		}
	}
}

func renderVideo(seed string) ([]byte, error) {
	const edge = 64
	anim := &gif.GIF{}
	for i := 0; i < videoFrames; i++ {
		frame := image.NewPaletted(image.Rect(0, 0, edge, edge), palette.Plan9)
		paintStripes(frame, seed, i*4)
		anim.Image = append(anim.Image, frame)
		anim.Delay = append(anim.Delay, videoFrameDelay)
	}
	var buf bytes.Buffer
	if err := gif.EncodeAll(&buf, anim); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func renderTone(freq float64, seconds int) []byte {
	samples := sampleRate * seconds
	dataLen := samples * 2
	var buf bytes.Buffer
	buf.Grow(44 + dataLen)

	buf.WriteString("RIFF")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(36+dataLen))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(16))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(1)) // PCM
	_ = binary.Write(&buf, binary.LittleEndian, uint16(1)) // mono
	_ = binary.Write(&buf, binary.LittleEndian, uint32(sampleRate))
	_ = binary.Write(&buf, binary.LittleEndian, uint32(sampleRate*2))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(2))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(16))
	buf.WriteString("data")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(dataLen))

	for i := 0; i < samples; i++ {
		v := math.Sin(2 * math.Pi * freq * float64(i) / sampleRate)
		_ = binary.Write(&buf, binary.LittleEndian, int16(v*0.3*math.MaxInt16))
	}
	return buf.Bytes()
}

func colorFromSeed(seed string, shift int) color.RGBA {
	doubled := seed + seed
	start := (shift * 6) % len(seed)
	segment := doubled[start : start+6]
	return color.RGBA{
		R: mustParseHexByte(segment[0:2]),
		G: mustParseHexByte(segment[2:4]),
		B: mustParseHexByte(segment[4:6]),
		A: 255,
	}
}

func mustParseHexByte(s string) uint8 {
	v, err := strconv.ParseUint(s, 16, 8)
	if err != nil {
		return 0
	}
	return uint8(v)
}

func deterministicSeed(parts ...any) string {
	hasher := sha256.New()
	for _, part := range parts {
		fmt.Fprintf(hasher, "%v|", part)
	}
	return hex.EncodeToString(hasher.Sum(nil))[:16]
}
