package handlers

import (
	"errors"
	"net/http"
	"path"
	"strconv"

	"github.com/go-chi/chi/v5"

	"mediagen/internal/domain"
	"mediagen/internal/middleware"
	"mediagen/pkg/zip"
)

// ListGenerations returns recent history. With authentication enabled a
// caller only sees their own records.
func (a *App) ListGenerations(w http.ResponseWriter, r *http.Request) {
	if a.History == nil {
		a.error(w, http.StatusNotFound, "not_found", domain.ErrHistoryDisabled.Error())
		return
	}
	items, ok := a.recentGenerations(w, r)
	if !ok {
		return
	}
	a.json(w, http.StatusOK, map[string]any{"generations": items})
}

// ArchiveGenerations zips the locally stored assets of recent generations.
func (a *App) ArchiveGenerations(w http.ResponseWriter, r *http.Request) {
	if a.History == nil || a.Assets == nil {
		a.error(w, http.StatusNotFound, "not_found", domain.ErrHistoryDisabled.Error())
		return
	}
	items, ok := a.recentGenerations(w, r)
	if !ok {
		return
	}
	var assets []zip.Asset
	for _, g := range items {
		if g.StorageKey == "" {
			continue
		}
		data, err := a.Assets.Read(r.Context(), g.StorageKey)
		if err != nil {
			a.Logger.Warn().Err(err).Str("generation_id", g.ID).Msg("generations: asset missing from storage")
			continue
		}
		assets = append(assets, zip.Asset{
			Filename: g.Kind + "/" + path.Base(g.StorageKey),
			Data:     data,
			Modified: g.CreatedAt,
		})
	}
	if len(assets) == 0 {
		a.error(w, http.StatusNotFound, "not_found", "no stored assets")
		return
	}
	archive, err := zip.ArchiveAssets(assets)
	if err != nil {
		a.Logger.Error().Err(err).Msg("generations: archive failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to build archive")
		return
	}
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", `attachment; filename="generations.zip"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(archive)
}

// caller returns the user whose records the request may see. With
// authentication enabled an empty user is never treated as "everyone".
func (a *App) caller(w http.ResponseWriter, r *http.Request) (string, bool) {
	user := middleware.UserIDFromContext(r.Context())
	if user == "" && a.Config != nil && a.Config.JWTSecret != "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "token subject is required")
		return "", false
	}
	return user, true
}

func (a *App) recentGenerations(w http.ResponseWriter, r *http.Request) ([]domain.Generation, bool) {
	user, ok := a.caller(w, r)
	if !ok {
		return nil, false
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			a.error(w, http.StatusBadRequest, "bad_request", "limit must be a non-negative integer")
			return nil, false
		}
		limit = n
	}
	items, err := a.History.ListRecent(r.Context(), user, limit)
	if err != nil {
		a.Logger.Error().Err(err).Msg("generations: list failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to load history")
		return nil, false
	}
	if items == nil {
		items = []domain.Generation{}
	}
	return items, true
}

func (a *App) GetGeneration(w http.ResponseWriter, r *http.Request) {
	if a.History == nil {
		a.error(w, http.StatusNotFound, "not_found", domain.ErrHistoryDisabled.Error())
		return
	}
	user, ok := a.caller(w, r)
	if !ok {
		return
	}
	g, err := a.History.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.error(w, http.StatusNotFound, "not_found", "generation not found")
			return
		}
		a.Logger.Error().Err(err).Msg("generations: get failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to load generation")
		return
	}
	if user != "" && g.UserID != user {
		a.error(w, http.StatusNotFound, "not_found", "generation not found")
		return
	}
	a.json(w, http.StatusOK, g)
}
