package handlers

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"net/http"

	"genstudio/internal/catalog"
	"genstudio/internal/generation"
)

//go:embed openapi.json
var apiDocument []byte

const referencePage = `<!doctype html>
<html>
  <head>
    <meta charset="utf-8" />
    <title>GenStudio API reference</title>
  </head>
  <body>
    <script id="api-reference" data-url="/v1/openapi.json"></script>
    <script src="https://cdn.jsdelivr.net/npm/@scalar/api-reference@1"></script>
  </body>
</html>`

// APIDocument serves the OpenAPI document with this deployment's model ids
// and label locales filled in as enums.
func (a *App) APIDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := describeDeployment(apiDocument, a.Catalog)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(doc)
}

func (a *App) APIReference(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(referencePage))
}

func describeDeployment(raw []byte, models *catalog.Catalog) ([]byte, error) {
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("openapi: %w", err)
	}
	props, ok := objectAt(doc, "components", "schemas", "GenerateRequest", "properties")
	if !ok {
		return raw, nil
	}
	if ids := modelIDs(models); len(ids) > 0 {
		props["modelId"] = map[string]any{"type": "string", "enum": ids}
	}
	locales := make([]string, len(generation.SupportedLocales))
	for i, tag := range generation.SupportedLocales {
		locales[i] = tag.String()
	}
	props["locale"] = map[string]any{"type": "string", "enum": locales}
	return json.Marshal(doc)
}

func objectAt(doc map[string]any, path ...string) (map[string]any, bool) {
	cur := doc
	for _, key := range path {
		next, ok := cur[key].(map[string]any)
		if !ok {
			return nil, false
		}
		cur = next
	}
	return cur, true
}

func modelIDs(c *catalog.Catalog) []string {
	if c == nil {
		return nil
	}
	var ids []string
	for _, m := range c.Images {
		ids = append(ids, m.ID)
	}
	for _, m := range c.Videos {
		ids = append(ids, m.ID)
	}
	for _, m := range c.Audio {
		ids = append(ids, m.ID)
	}
	for _, m := range c.Music {
		ids = append(ids, m.ID)
	}
	return ids
}
