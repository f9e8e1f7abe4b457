package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"mediagen/internal/domain"
	"mediagen/internal/infra"
	"mediagen/internal/orchestrator"
)

// Generator is the orchestrator surface the handlers use.
type Generator interface {
	Generate(ctx context.Context, req orchestrator.Request) (*orchestrator.Result, error)
	Registry() *orchestrator.Registry
}

// AssetStore persists inline assets and maps storage keys to public URLs.
type AssetStore interface {
	SaveDataURI(ctx context.Context, kind, id, uri string) (string, error)
	Read(ctx context.Context, key string) ([]byte, error)
	URL(key string) string
}

type App struct {
	Config    *infra.Config
	Logger    zerolog.Logger
	Generator Generator
	// History and Assets are optional; nil disables them.
	History domain.GenerationRepository
	Assets  AssetStore
	Metrics *Metrics

	now func() time.Time

	docOnce sync.Once
	doc     []byte
}

func NewApp(cfg *infra.Config, logger zerolog.Logger, gen Generator) *App {
	return &App{
		Config:    cfg,
		Logger:    logger,
		Generator: gen,
		Metrics:   NewMetrics(time.Now()),
		now:       time.Now,
	}
}

func (a *App) clock() time.Time {
	if a.now == nil {
		return time.Now()
	}
	return a.now()
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, status int, code, message string) {
	a.json(w, status, map[string]string{"error": code, "message": message})
}
