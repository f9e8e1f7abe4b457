package handlers

import (
	_ "embed"
	"encoding/json"
	"net/http"
)

//go:embed openapi.json
var openAPIBase []byte

const docsPage = `<!DOCTYPE html>
<html lang="en">
  <head>
    <meta charset="utf-8" />
    <title>Media Generation API</title>
    <meta name="viewport" content="width=device-width, initial-scale=1" />
    <style>body { margin: 0; } redoc { display: block; height: 100vh; }</style>
  </head>
  <body>
    <redoc spec-url="/v1/openapi.json" hide-download-button></redoc>
    <script src="https://cdn.jsdelivr.net/npm/redoc@2.2.0/bundles/redoc.standalone.js"></script>
  </body>
</html>`

// OpenAPIJSON serves the API document with provider_override narrowed to
// the providers registered in this process.
func (a *App) OpenAPIJSON(w http.ResponseWriter, _ *http.Request) {
	a.docOnce.Do(func() {
		a.doc = a.buildDocument()
	})
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "public, max-age=300")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(a.doc)
}

func (a *App) OpenAPIDocs(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(docsPage))
}

func (a *App) buildDocument() []byte {
	if a.Generator == nil {
		return openAPIBase
	}
	var doc map[string]any
	if err := json.Unmarshal(openAPIBase, &doc); err != nil {
		a.Logger.Error().Err(err).Msg("openapi document is invalid")
		return openAPIBase
	}
	override := lookupPath(doc, "components", "schemas", "GenerationRequest", "properties", "options", "properties", "provider_override")
	if override == nil {
		return openAPIBase
	}
	descs := a.Generator.Registry().All()
	ids := make([]string, 0, len(descs))
	for _, d := range descs {
		ids = append(ids, d.ID)
	}
	if len(ids) == 0 {
		return openAPIBase
	}
	override["enum"] = ids
	out, err := json.Marshal(doc)
	if err != nil {
		a.Logger.Error().Err(err).Msg("openapi document encode failed")
		return openAPIBase
	}
	return out
}

func lookupPath(node map[string]any, keys ...string) map[string]any {
	for _, k := range keys {
		next, ok := node[k].(map[string]any)
		if !ok {
			return nil
		}
		node = next
	}
	return node
}
