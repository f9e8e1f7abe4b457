// Command generate runs one generation against the configured providers and
// prints the result or failure as JSON.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"mediagen/internal/infra"
	"mediagen/internal/orchestrator"
	"mediagen/internal/providers"
)

func main() {
	var (
		kind     string
		opts     orchestrator.Options
		quality  string
		budget   string
		logLevel string
	)
	flag.StringVar(&kind, "kind", "image", "media kind: image, video or audio")
	flag.StringVar(&quality, "quality", "", "standard or premium")
	flag.StringVar(&budget, "budget", "", "low, medium or high")
	flag.IntVar(&opts.Width, "width", 0, "width in pixels")
	flag.IntVar(&opts.Height, "height", 0, "height in pixels")
	flag.IntVar(&opts.Duration, "duration", 0, "duration in seconds (video, audio)")
	flag.StringVar(&opts.Resolution, "resolution", "", "resolution hint, e.g. 720p")
	flag.StringVar(&opts.Voice, "voice", "", "voice name (audio)")
	flag.StringVar(&opts.Language, "language", "", "BCP 47 language tag")
	flag.StringVar(&opts.ProviderOverride, "provider", "", "force a single provider id")
	flag.StringVar(&logLevel, "log-level", "warn", "log level")
	flag.Parse()

	prompt := strings.Join(flag.Args(), " ")
	opts.Quality = orchestrator.Quality(quality)
	opts.Budget = orchestrator.Budget(budget)

	_ = godotenv.Load()
	cfg, err := infra.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logger := infra.NewLogger("cli", logLevel).Output(os.Stderr).With().Str("cmd", "generate").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	orch, err := providers.New(ctx, cfg, providers.Deps{Logger: &logger})
	if err != nil {
		fmt.Fprintf(os.Stderr, "providers: %v\n", err)
		os.Exit(1)
	}

	k, ok := orchestrator.ParseKind(kind)
	if !ok {
		k = orchestrator.Kind(kind)
	}
	res, err := orch.Generate(ctx, orchestrator.Request{Kind: k, Prompt: prompt, Options: opts})

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err != nil {
		_ = enc.Encode(err)
		os.Exit(2)
	}
	_ = enc.Encode(res)
}
