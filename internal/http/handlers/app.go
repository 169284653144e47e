package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/rs/zerolog"

	"genstudio/internal/catalog"
	"genstudio/internal/domain"
	"genstudio/internal/generation"
	"genstudio/internal/infra"
	"genstudio/internal/infra/credentials"
	"genstudio/internal/library"
	"genstudio/internal/storage"
)

const maxBodyBytes = 160 << 20

// App holds the collaborators the HTTP handlers need.
type App struct {
	Catalog     *catalog.Catalog
	Library     *library.Library
	Submitter   *generation.Submitter
	Poller      *generation.Poller
	Credentials *credentials.Store
	Exporter    *storage.Exporter
	Logger      *infra.Logger
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

func (a *App) error(w http.ResponseWriter, code int, errCode, msg string) {
	a.json(w, code, errorBody{Error: errCode, Message: msg})
}

// fail maps a domain error onto a status code and error body.
func (a *App) fail(w http.ResponseWriter, r *http.Request, err error) {
	var (
		valErr *domain.ValidationError
		subErr *domain.SubmissionError
	)
	switch {
	case errors.As(err, &valErr):
		a.json(w, http.StatusBadRequest, errorBody{Error: "validation", Message: valErr.Message, Field: valErr.Field})
	case errors.Is(err, domain.ErrAuthMissing):
		a.error(w, http.StatusUnauthorized, "auth_missing", "api key is not configured")
	case errors.Is(err, domain.ErrNotFound):
		a.error(w, http.StatusNotFound, "not_found", "asset not found")
	case errors.As(err, &subErr):
		msg := subErr.Message
		if msg == "" {
			msg = "provider request failed"
		}
		a.error(w, http.StatusBadGateway, "provider", msg)
	case errors.Is(err, domain.ErrNoResult):
		a.error(w, http.StatusBadGateway, "no_result", "provider returned no result")
	case errors.Is(err, domain.ErrPollingTransport), errors.Is(err, domain.ErrPollingAbandoned):
		a.error(w, http.StatusBadGateway, "polling", "provider status unavailable")
	default:
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("request failed")
		a.error(w, http.StatusInternalServerError, "internal", "internal error")
	}
}

// decode reads a JSON body into v. Unknown fields are tolerated so clients
// can send full gallery records.
func (a *App) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			a.error(w, http.StatusBadRequest, "bad_request", "request body is required")
			return false
		}
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			a.error(w, http.StatusRequestEntityTooLarge, "too_large", "request body is too large")
			return false
		}
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return false
	}
	return true
}
