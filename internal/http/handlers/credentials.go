package handlers

import (
	"net/http"

	"genstudio/internal/infra"
	"genstudio/internal/infra/credentials"
)

type credentialsRequest struct {
	APIKey  string `json:"apiKey"`
	BaseURL string `json:"baseUrl"`
}

type credentialsResponse struct {
	Configured bool   `json:"configured"`
	BaseURL    string `json:"baseUrl"`
}

func describe(c credentials.Credentials) credentialsResponse {
	return credentialsResponse{Configured: c.HasKey(), BaseURL: c.BaseURL}
}

// GetCredentials reports whether a key is set. The key itself is never
// returned.
func (a *App) GetCredentials(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, describe(a.Credentials.Snapshot()))
}

// UpdateCredentials replaces the API key. Requests already in flight keep the
// credentials they started with.
func (a *App) UpdateCredentials(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !a.decode(w, r, &req) {
		return
	}
	next, err := a.Credentials.Update(r.Context(), req.APIKey, req.BaseURL)
	if err != nil {
		if next != (credentials.Credentials{}) {
			// applied in memory, only persisting failed
			infra.OrDiscard(a.Logger).Warn().Err(err).Msg("credentials not persisted")
			a.json(w, http.StatusOK, describe(next))
			return
		}
		a.error(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	if a.Poller != nil {
		a.Poller.Reattach()
	}
	a.json(w, http.StatusOK, describe(next))
}
