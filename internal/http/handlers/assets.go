package handlers

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"genstudio/internal/domain"
	"genstudio/internal/infra"
	"genstudio/internal/library"
	"genstudio/internal/storage"
)

func (a *App) ListAssets(w http.ResponseWriter, r *http.Request) {
	filter, ok := a.filterFromQuery(w, r)
	if !ok {
		return
	}
	a.json(w, http.StatusOK, assetsResponse{Assets: a.Library.List(filter)})
}

func (a *App) GetAsset(w http.ResponseWriter, r *http.Request) {
	asset, ok := a.Library.Get(chi.URLParam(r, "id"))
	if !ok {
		a.fail(w, r, domain.ErrNotFound)
		return
	}
	a.json(w, http.StatusOK, asset)
}

// DeleteAsset removes the asset and stops its polling task.
func (a *App) DeleteAsset(w http.ResponseWriter, r *http.Request) {
	removed, ok := a.Library.Delete(r.Context(), chi.URLParam(r, "id"))
	if !ok {
		a.fail(w, r, domain.ErrNotFound)
		return
	}
	if removed.TaskID != "" && a.Poller != nil {
		a.Poller.Cancel(removed.TaskID)
	}
	w.WriteHeader(http.StatusNoContent)
}

// ExportAssets streams completed assets as a zip archive. Without ids every
// completed asset matching the filter is exported.
func (a *App) ExportAssets(w http.ResponseWriter, r *http.Request) {
	filter, ok := a.filterFromQuery(w, r)
	if !ok {
		return
	}
	filter.Status = domain.StatusCompleted
	assets := a.Library.List(filter)
	if len(assets) == 0 {
		a.error(w, http.StatusNotFound, "not_found", "no completed assets to export")
		return
	}

	log := zerolog.Ctx(r.Context())
	// media downloads can outlast the write timeout
	if err := infra.ReleaseWriteDeadline(w); err != nil {
		log.Warn().Err(err).Msg("export keeps the write timeout")
	}
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, storage.ExportName(time.Now())))
	n, skipped, err := a.Exporter.WriteArchive(r.Context(), w, assets)
	if err != nil {
		// headers are gone; the client sees a truncated archive
		log.Error().Err(err).Msg("export failed")
		return
	}
	log.Info().Int("files", n).Strs("skipped", skipped).Msg("assets exported")
}

func (a *App) filterFromQuery(w http.ResponseWriter, r *http.Request) (library.Filter, bool) {
	q := r.URL.Query()
	var filter library.Filter
	if raw := q.Get("type"); raw != "" {
		t, ok := domain.ParseAssetType(raw)
		if !ok {
			a.fail(w, r, domain.Invalid("type", "unknown type %q", raw))
			return filter, false
		}
		filter.Type = t
	}
	if raw := strings.ToLower(strings.TrimSpace(q.Get("status"))); raw != "" {
		switch s := domain.AssetStatus(raw); s {
		case domain.StatusLoading, domain.StatusQueued, domain.StatusProcessing, domain.StatusCompleted, domain.StatusFailed:
			filter.Status = s
		default:
			a.fail(w, r, domain.Invalid("status", "unknown status %q", raw))
			return filter, false
		}
	}
	for _, id := range strings.Split(q.Get("ids"), ",") {
		if id = strings.TrimSpace(id); id != "" {
			filter.IDs = append(filter.IDs, id)
		}
	}
	return filter, true
}
