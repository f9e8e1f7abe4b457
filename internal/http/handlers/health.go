package handlers

import (
	"net/http"

	"mediagen/internal/orchestrator"
)

func (a *App) Health(w http.ResponseWriter, r *http.Request) {
	kinds := make(map[string]int, len(orchestrator.Kinds))
	for _, kind := range orchestrator.Kinds {
		kinds[string(kind)] = len(a.Generator.Registry().ForKind(kind))
	}
	a.json(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"providers": kinds,
		"history":   a.History != nil,
	})
}
