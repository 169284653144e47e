package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"genstudio/internal/domain"
	"genstudio/internal/middleware"
)

type assetsResponse struct {
	Assets []domain.GeneratedAsset `json:"assets"`
}

// Generate submits a generation request and answers with the placeholders.
func (a *App) Generate(w http.ResponseWriter, r *http.Request) {
	var req domain.GenerateRequest
	if !a.decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Locale) == "" {
		req.Locale = middleware.LocaleFromContext(r.Context())
	}
	assets, err := a.Submitter.Submit(r.Context(), req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusAccepted, assetsResponse{Assets: assets})
}

type lyricsRequest struct {
	Prompt string `json:"prompt"`
}

// Lyrics writes lyrics and waits for the text.
func (a *App) Lyrics(w http.ResponseWriter, r *http.Request) {
	var req lyricsRequest
	if !a.decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		a.fail(w, r, domain.Invalid("prompt", "describe the song"))
		return
	}
	text, err := a.Submitter.Lyrics(r.Context(), req.Prompt)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, map[string]string{"text": text})
}

// Regenerate resubmits an asset's retained settings as a new asset.
func (a *App) Regenerate(w http.ResponseWriter, r *http.Request) {
	asset, err := a.Submitter.Regenerate(r.Context(), chi.URLParam(r, "id"), middleware.LocaleFromContext(r.Context()))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusAccepted, asset)
}

type remixRequest struct {
	Prompt string `json:"prompt"`
}

// Remix re-renders a finished video job with a new prompt.
func (a *App) Remix(w http.ResponseWriter, r *http.Request) {
	var req remixRequest
	if !a.decode(w, r, &req) {
		return
	}
	asset, err := a.Submitter.Remix(r.Context(), chi.URLParam(r, "id"), req.Prompt, middleware.LocaleFromContext(r.Context()))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusAccepted, asset)
}
