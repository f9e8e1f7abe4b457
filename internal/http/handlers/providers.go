package handlers

import (
	"net/http"
	"strings"

	"mediagen/internal/orchestrator"
)

type providerView struct {
	ID           string   `json:"id"`
	Kind         string   `json:"kind"`
	Rank         int      `json:"rank"`
	CostEstimate float64  `json:"cost_estimate"`
	Capabilities []string `json:"capabilities"`
	Recommended  bool     `json:"recommended"`
	TimeoutMS    int64    `json:"timeout_ms,omitempty"`
}

// ListProviders shows the registry in the order a generation with the given
// budget and quality would try it.
func (a *App) ListProviders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	kinds := orchestrator.Kinds
	if raw := strings.TrimSpace(q.Get("kind")); raw != "" {
		kind, ok := orchestrator.ParseKind(raw)
		if !ok {
			a.error(w, http.StatusBadRequest, "bad_request", "unsupported kind")
			return
		}
		kinds = []orchestrator.Kind{kind}
	}
	opts := orchestrator.Options{
		Budget:  orchestrator.Budget(strings.ToLower(strings.TrimSpace(q.Get("budget")))),
		Quality: orchestrator.Quality(strings.ToLower(strings.TrimSpace(q.Get("quality")))),
	}
	if err := opts.Validate(); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	registry := a.Generator.Registry()
	out := make([]providerView, 0, registry.Len())
	for _, kind := range kinds {
		recommended, _ := registry.Recommended(kind)
		for i, d := range orchestrator.Rank(registry.ForKind(kind), opts, recommended) {
			caps := d.Capabilities
			if caps == nil {
				caps = []string{}
			}
			out = append(out, providerView{
				ID:           d.ID,
				Kind:         string(d.Kind),
				Rank:         i + 1,
				CostEstimate: d.EstimateCost(opts),
				Capabilities: caps,
				Recommended:  d.ID == recommended,
				TimeoutMS:    d.Timeout.Milliseconds(),
			})
		}
	}
	a.json(w, http.StatusOK, map[string]any{"providers": out})
}
