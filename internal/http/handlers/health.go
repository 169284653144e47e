package handlers

import (
	"net/http"
)

func (a *App) Health(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{"status": "ok"}
	if a.Credentials != nil {
		resp["credentials"] = a.Credentials.Snapshot().HasKey()
	}
	if a.Poller != nil {
		resp["activeTasks"] = a.Poller.Active()
	}
	a.json(w, http.StatusOK, resp)
}

// Models returns the model catalog.
func (a *App) Models(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, a.Catalog)
}
