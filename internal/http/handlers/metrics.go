package handlers

import (
	"net/http"
	"sync"
	"time"

	"mediagen/internal/orchestrator"
)

type providerCounts struct {
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

// Metrics counts generation outcomes in memory since process start.
type Metrics struct {
	mu        sync.Mutex
	since     time.Time
	requests  int
	providers map[string]*providerCounts
	failures  map[orchestrator.FailureKind]int
}

func NewMetrics(since time.Time) *Metrics {
	return &Metrics{
		since:     since,
		providers: make(map[string]*providerCounts),
		failures:  make(map[orchestrator.FailureKind]int),
	}
}

// RecordSuccess counts the winner and every provider tried before it.
func (m *Metrics) RecordSuccess(res *orchestrator.Result) {
	if m == nil || res == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests++
	for _, id := range res.AttemptedProviders {
		if id != res.Provider {
			m.counts(id).Failed++
		}
	}
	m.counts(res.Provider).Succeeded++
}

func (m *Metrics) RecordFailure(failure *orchestrator.Failure) {
	if m == nil || failure == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests++
	m.failures[failure.Kind]++
	for _, id := range failure.AttemptedProviders {
		m.counts(id).Failed++
	}
}

func (m *Metrics) counts(id string) *providerCounts {
	c, ok := m.providers[id]
	if !ok {
		c = &providerCounts{}
		m.providers[id] = c
	}
	return c
}

type metricsSummary struct {
	Since     time.Time                        `json:"since"`
	Requests  int                              `json:"requests"`
	Providers map[string]providerCounts        `json:"providers"`
	Failures  map[orchestrator.FailureKind]int `json:"failures"`
}

// Summary returns a copy safe to encode while recording continues.
func (m *Metrics) Summary() metricsSummary {
	if m == nil {
		return metricsSummary{Providers: map[string]providerCounts{}, Failures: map[orchestrator.FailureKind]int{}}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := metricsSummary{
		Since:     m.since,
		Requests:  m.requests,
		Providers: make(map[string]providerCounts, len(m.providers)),
		Failures:  make(map[orchestrator.FailureKind]int, len(m.failures)),
	}
	for id, c := range m.providers {
		out.Providers[id] = *c
	}
	for k, v := range m.failures {
		out.Failures[k] = v
	}
	return out
}

func (a *App) MetricsSummary(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, a.Metrics.Summary())
}
