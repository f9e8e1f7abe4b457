package handlers

import (
	stdzip "archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mediagen/internal/domain"
	"mediagen/internal/infra"
	"mediagen/internal/middleware"
	"mediagen/internal/orchestrator"
)

type memoryHistory struct {
	mu    sync.Mutex
	items []domain.Generation
	err   error
}

func (m *memoryHistory) Create(_ context.Context, g *domain.Generation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	if g.ID == "" {
		g.ID = "generated-id"
	}
	g.CreatedAt = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	m.items = append(m.items, *g)
	return nil
}

func (m *memoryHistory) GetByID(_ context.Context, id string) (*domain.Generation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, g := range m.items {
		if g.ID == id {
			out := g
			return &out, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memoryHistory) ListRecent(_ context.Context, userID string, limit int) ([]domain.Generation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Generation
	for i := len(m.items) - 1; i >= 0; i-- {
		if userID == "" || m.items[i].UserID == userID {
			out = append(out, m.items[i])
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type memoryAssets struct {
	saved map[string]string
}

func (m *memoryAssets) SaveDataURI(_ context.Context, kind, id, uri string) (string, error) {
	key := "generated/" + kind + "/" + id + ".wav"
	m.saved[key] = uri
	return key, nil
}

func (m *memoryAssets) Read(_ context.Context, key string) ([]byte, error) {
	uri, ok := m.saved[key]
	if !ok {
		return nil, errors.New("missing")
	}
	return []byte(uri), nil
}

func (m *memoryAssets) URL(key string) string { return "http://cdn.test/static/" + key }

type capture struct {
	mu   sync.Mutex
	opts []orchestrator.Options
}

func (c *capture) backend(url string, err error) orchestrator.Backend {
	return orchestrator.BackendFunc(func(_ context.Context, _ string, opts orchestrator.Options) (*orchestrator.Response, error) {
		c.mu.Lock()
		c.opts = append(c.opts, opts)
		c.mu.Unlock()
		if err != nil {
			return nil, err
		}
		if strings.HasPrefix(url, "inline:") {
			return &orchestrator.Response{Data: []byte(strings.TrimPrefix(url, "inline:")), MIME: "audio/wav"}, nil
		}
		return &orchestrator.Response{URL: url}, nil
	})
}

func newTestApp(t *testing.T, history domain.GenerationRepository, descs ...orchestrator.Descriptor) *App {
	t.Helper()
	reg, err := orchestrator.NewRegistry(descs, nil)
	require.NoError(t, err)
	orch, err := orchestrator.New(reg, orchestrator.Config{})
	require.NoError(t, err)
	app := NewApp(&infra.Config{}, zerolog.Nop(), orch)
	app.History = history
	return app
}

func routes(app *App) http.Handler {
	r := chi.NewRouter()
	r.Post("/v1/generate", app.Generate)
	r.Get("/v1/providers", app.ListProviders)
	r.Get("/v1/generations", app.ListGenerations)
	r.Get("/v1/generations/archive", app.ArchiveGenerations)
	r.Get("/v1/generations/{id}", app.GetGeneration)
	r.Get("/v1/metrics/summary", app.MetricsSummary)
	r.Get("/v1/healthz", app.Health)
	r.Get("/v1/openapi.json", app.OpenAPIJSON)
	return r
}

func do(t *testing.T, h http.Handler, req *http.Request) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	var body map[string]any
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	}
	return rec, body
}

func postGenerate(payload string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/v1/generate", bytes.NewBufferString(payload))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestStatusForFailure(t *testing.T) {
	tests := map[orchestrator.FailureKind]int{
		orchestrator.FailureInvalidRequest:        http.StatusBadRequest,
		orchestrator.FailureProviderUnavailable:   http.StatusServiceUnavailable,
		orchestrator.FailureUpstreamError:         http.StatusBadGateway,
		orchestrator.FailureAllProvidersExhausted: http.StatusBadGateway,
		"Unknown":                                 http.StatusInternalServerError,
	}
	for kind, want := range tests {
		assert.Equal(t, want, StatusForFailure(kind), kind)
	}
}

func TestGenerateSuccessRecordsHistory(t *testing.T) {
	c := &capture{}
	history := &memoryHistory{}
	app := newTestApp(t, history,
		orchestrator.Descriptor{ID: "cheap", Kind: orchestrator.KindImage, Cost: orchestrator.FlatCost(0.01), Backend: c.backend("", errors.New("boom"))},
		orchestrator.Descriptor{ID: "pricey", Kind: orchestrator.KindImage, Cost: orchestrator.FlatCost(0.05), Backend: c.backend("https://cdn.test/a.png", nil)},
	)

	rec, body := do(t, routes(app), postGenerate(`{"kind":"image","prompt":"a lighthouse","options":{"budget":"low"}}`))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "pricey", body["provider"])
	assert.Equal(t, "https://cdn.test/a.png", body["url"])
	assert.Equal(t, []any{"cheap"}, body["attempted_providers"])

	require.Len(t, history.items, 1)
	g := history.items[0]
	assert.Equal(t, g.ID, body["generation_id"])
	assert.Equal(t, domain.GenerationSucceeded, g.Status)
	assert.Equal(t, "image", g.Kind)
	assert.JSONEq(t, `{"budget":"low"}`, string(g.OptionsJSON))

	summary := app.Metrics.Summary()
	assert.Equal(t, 1, summary.Requests)
	assert.Equal(t, providerCounts{Failed: 1}, summary.Providers["cheap"])
	assert.Equal(t, providerCounts{Succeeded: 1}, summary.Providers["pricey"])
}

func TestGenerateFailureStatuses(t *testing.T) {
	failing := orchestrator.Descriptor{
		ID:      "only",
		Kind:    orchestrator.KindImage,
		Cost:    orchestrator.FlatCost(0.02),
		Backend: (&capture{}).backend("", errors.New("quota exceeded")),
	}
	tests := []struct {
		name     string
		payload  string
		status   int
		kind     string
		recorded int
	}{
		{name: "malformed json", payload: `{"kind":`, status: http.StatusBadRequest, kind: "InvalidRequest"},
		{name: "empty prompt", payload: `{"kind":"image","prompt":"   "}`, status: http.StatusBadRequest, kind: "InvalidRequest"},
		{name: "unknown kind", payload: `{"kind":"hologram","prompt":"x"}`, status: http.StatusBadRequest, kind: "InvalidRequest"},
		{name: "unknown override", payload: `{"kind":"image","prompt":"x","options":{"provider_override":"nope"}}`, status: http.StatusServiceUnavailable, kind: "ProviderUnavailable", recorded: 1},
		{name: "override fails", payload: `{"kind":"image","prompt":"x","options":{"provider_override":"only"}}`, status: http.StatusServiceUnavailable, kind: "ProviderUnavailable", recorded: 1},
		{name: "exhausted", payload: `{"kind":"image","prompt":"x"}`, status: http.StatusBadGateway, kind: "AllProvidersExhausted", recorded: 1},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			history := &memoryHistory{}
			app := newTestApp(t, history, failing)
			rec, body := do(t, routes(app), postGenerate(tc.payload))
			assert.Equal(t, tc.status, rec.Code)
			assert.Equal(t, tc.kind, body["kind"])
			assert.NotNil(t, body["attempted_providers"])
			assert.Len(t, history.items, tc.recorded)
			if tc.recorded > 0 {
				assert.Equal(t, domain.GenerationFailed, history.items[0].Status)
				assert.Equal(t, tc.kind, history.items[0].FailureKind)
			}
		})
	}
}

func TestGenerateAudioUsesRequestLocale(t *testing.T) {
	c := &capture{}
	assets := &memoryAssets{saved: map[string]string{}}
	app := newTestApp(t, &memoryHistory{},
		orchestrator.Descriptor{ID: "tts", Kind: orchestrator.KindAudio, Backend: c.backend("inline:RIFF", nil)},
	)
	app.Assets = assets

	req := postGenerate(`{"kind":"audio","prompt":"selamat pagi"}`)
	req = req.WithContext(context.WithValue(req.Context(), middleware.LocaleKey, "id-ID"))
	rec, body := do(t, routes(app), req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	require.Len(t, c.opts, 1)
	assert.Equal(t, "id-ID", c.opts[0].Language)
	assert.True(t, strings.HasPrefix(body["url"].(string), "data:audio/wav;base64,"))
	assert.Equal(t, "http://cdn.test/static/generated/audio/"+body["generation_id"].(string)+".wav", body["asset_url"])
	assert.Len(t, assets.saved, 1)
}

func TestGenerateExplicitLanguageWins(t *testing.T) {
	c := &capture{}
	app := newTestApp(t, nil, orchestrator.Descriptor{ID: "tts", Kind: orchestrator.KindAudio, Backend: c.backend("https://cdn.test/a.mp3", nil)})

	req := postGenerate(`{"kind":"audio","prompt":"hello","options":{"language":"fr"}}`)
	req = req.WithContext(context.WithValue(req.Context(), middleware.LocaleKey, "id-ID"))
	rec, body := do(t, routes(app), req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "fr", c.opts[0].Language)
	_, hasID := body["generation_id"]
	assert.False(t, hasID, "no generation id without history")
}

func TestGenerateHistoryErrorStillSucceeds(t *testing.T) {
	c := &capture{}
	app := newTestApp(t, &memoryHistory{err: errors.New("db down")},
		orchestrator.Descriptor{ID: "img", Kind: orchestrator.KindImage, Backend: c.backend("https://cdn.test/a.png", nil)})
	rec, body := do(t, routes(app), postGenerate(`{"kind":"image","prompt":"x"}`))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, body["generation_id"])
}

func TestListProvidersRanked(t *testing.T) {
	c := &capture{}
	app := newTestApp(t, nil,
		orchestrator.Descriptor{ID: "premium", Kind: orchestrator.KindImage, Cost: orchestrator.FlatCost(0.08), Backend: c.backend("https://x.test", nil), Capabilities: []string{orchestrator.CapabilityPremium}},
		orchestrator.Descriptor{ID: "cheap", Kind: orchestrator.KindImage, Cost: orchestrator.FlatCost(0.003), Backend: c.backend("https://x.test", nil)},
		orchestrator.Descriptor{ID: "voice", Kind: orchestrator.KindAudio, Cost: orchestrator.FlatCost(0.015), Backend: c.backend("https://x.test", nil)},
	)

	tests := []struct {
		query string
		want  []string
	}{
		{"?kind=image&budget=low", []string{"cheap", "premium"}},
		{"?kind=image&quality=premium", []string{"premium", "cheap"}},
		{"", []string{"cheap", "premium", "voice"}},
	}
	for _, tc := range tests {
		rec, body := do(t, routes(app), httptest.NewRequest(http.MethodGet, "/v1/providers"+tc.query, nil))
		require.Equal(t, http.StatusOK, rec.Code)
		var ids []string
		for _, p := range body["providers"].([]any) {
			ids = append(ids, p.(map[string]any)["id"].(string))
		}
		assert.Equal(t, tc.want, ids, tc.query)
	}

	rec, _ := do(t, routes(app), httptest.NewRequest(http.MethodGet, "/v1/providers?kind=smell", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec, _ = do(t, routes(app), httptest.NewRequest(http.MethodGet, "/v1/providers?budget=infinite", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGenerationsHistory(t *testing.T) {
	history := &memoryHistory{items: []domain.Generation{
		{ID: "a", UserID: "u1", Kind: "image", Status: domain.GenerationSucceeded, AttemptedProviders: []string{}},
		{ID: "b", UserID: "u2", Kind: "video", Status: domain.GenerationFailed, AttemptedProviders: []string{"x"}},
	}}
	app := newTestApp(t, history)
	h := routes(app)

	rec, body := do(t, h, httptest.NewRequest(http.MethodGet, "/v1/generations?limit=1", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	list := body["generations"].([]any)
	require.Len(t, list, 1)
	assert.Equal(t, "b", list[0].(map[string]any)["id"])

	rec, _ = do(t, h, httptest.NewRequest(http.MethodGet, "/v1/generations?limit=-1", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, body = do(t, h, httptest.NewRequest(http.MethodGet, "/v1/generations/a", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image", body["kind"])

	req := httptest.NewRequest(http.MethodGet, "/v1/generations/a", nil)
	req = req.WithContext(middleware.ContextWithUserID(req.Context(), "u2"))
	rec, _ = do(t, h, req)
	assert.Equal(t, http.StatusNotFound, rec.Code, "other users' records are hidden")

	rec, _ = do(t, h, httptest.NewRequest(http.MethodGet, "/v1/generations/missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGenerationsDisabled(t *testing.T) {
	h := routes(newTestApp(t, nil))
	for _, path := range []string{"/v1/generations", "/v1/generations/abc"} {
		rec, body := do(t, h, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusNotFound, rec.Code, path)
		assert.Equal(t, "not_found", body["error"])
	}
}

func TestHealthAndMetrics(t *testing.T) {
	c := &capture{}
	app := newTestApp(t, nil, orchestrator.Descriptor{ID: "img", Kind: orchestrator.KindImage, Backend: c.backend("https://x.test/a.png", nil)})
	h := routes(app)

	rec, body := do(t, h, httptest.NewRequest(http.MethodGet, "/v1/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, map[string]any{"image": float64(1), "video": float64(0), "audio": float64(0)}, body["providers"])
	assert.Equal(t, false, body["history"])

	do(t, h, postGenerate(`{"kind":"video","prompt":"x"}`))
	rec, body = do(t, h, httptest.NewRequest(http.MethodGet, "/v1/metrics/summary", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(1), body["requests"])
	assert.Equal(t, map[string]any{"InvalidRequest": float64(1)}, body["failures"])
}

func TestArchiveGenerations(t *testing.T) {
	history := &memoryHistory{items: []domain.Generation{
		{ID: "a", Kind: "audio", StorageKey: "generated/audio/a.wav"},
		{ID: "b", Kind: "image", URL: "https://cdn.test/b.png"},
		{ID: "c", Kind: "audio", StorageKey: "generated/audio/gone.wav"},
	}}
	app := newTestApp(t, history)
	app.Assets = &memoryAssets{saved: map[string]string{"generated/audio/a.wav": "RIFF"}}

	rec := httptest.NewRecorder()
	routes(app).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/generations/archive", nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/zip", rec.Header().Get("Content-Type"))

	zr, err := stdzip.NewReader(bytes.NewReader(rec.Body.Bytes()), int64(rec.Body.Len()))
	require.NoError(t, err)
	require.Len(t, zr.File, 1)
	assert.Equal(t, "audio/a.wav", zr.File[0].Name)
}

func TestArchiveGenerationsWithoutStorage(t *testing.T) {
	rec, _ := do(t, routes(newTestApp(t, &memoryHistory{})), httptest.NewRequest(http.MethodGet, "/v1/generations/archive", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestOpenAPIListsRegisteredProviders(t *testing.T) {
	c := &capture{}
	app := newTestApp(t, nil,
		orchestrator.Descriptor{ID: "img-a", Kind: orchestrator.KindImage, Backend: c.backend("https://x.test/a.png", nil)},
		orchestrator.Descriptor{ID: "tts", Kind: orchestrator.KindAudio, Backend: c.backend("https://x.test/a.mp3", nil)},
	)
	rec, body := do(t, routes(app), httptest.NewRequest(http.MethodGet, "/v1/openapi.json", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	override := lookupPath(body, "components", "schemas", "GenerationRequest", "properties", "options", "properties", "provider_override")
	require.NotNil(t, override)
	assert.Equal(t, []any{"img-a", "tts"}, override["enum"])
	assert.Contains(t, body, "paths")
}

func TestGenerationsRequireCallerWhenAuthEnabled(t *testing.T) {
	history := &memoryHistory{items: []domain.Generation{{ID: "11111111-1111-4111-8111-111111111111", UserID: "alice", Kind: "image", Prompt: "secret"}}}
	app := newTestApp(t, history)
	app.Config = &infra.Config{JWTSecret: "s3cret"}
	h := routes(app)

	for _, path := range []string{"/v1/generations", "/v1/generations/11111111-1111-4111-8111-111111111111"} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
		assert.NotContains(t, rec.Body.String(), "secret", path)
	}
}
