package storage

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"genstudio/internal/domain"
	"genstudio/internal/infra"
	"genstudio/pkg/zip"
)

const exportFetchLimit = 4

// Fetcher downloads remote media.
type Fetcher interface {
	Download(ctx context.Context, url string) ([]byte, string, error)
}

// Exporter gathers the bytes behind completed assets for archiving.
type Exporter struct {
	media  *FileStore
	fetch  Fetcher
	logger *infra.Logger
}

// NewExporter builds an Exporter. media and fetch may be nil; assets that
// would need them are skipped.
func NewExporter(media *FileStore, fetch Fetcher, logger *infra.Logger) *Exporter {
	return &Exporter{media: media, fetch: fetch, logger: infra.OrDiscard(logger)}
}

// Collect resolves every completed asset to an archive entry. Assets that are
// not completed or whose media cannot be read are left out; their ids are
// returned as skipped.
func (e *Exporter) Collect(ctx context.Context, assets []domain.GeneratedAsset) ([]zip.Asset, []string) {
	entries := make([]*zip.Asset, len(assets))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(exportFetchLimit)
	for i, asset := range assets {
		if asset.Status != domain.StatusCompleted || asset.URL == "" {
			continue
		}
		g.Go(func() error {
			data, mimeType, err := e.resolve(gctx, asset.URL)
			if err != nil {
				e.logger.Warn().Err(err).Str("asset_id", asset.ID).Msg("export: media unavailable")
				return nil
			}
			entries[i] = &zip.Asset{
				Filename: ExportFilename(asset, mimeType),
				MIME:     mimeType,
				Data:     data,
				Modified: asset.CreatedAt(),
			}
			return nil
		})
	}
	_ = g.Wait()

	out := make([]zip.Asset, 0, len(assets))
	var skipped []string
	for i, entry := range entries {
		if entry == nil {
			skipped = append(skipped, assets[i].ID)
			continue
		}
		out = append(out, *entry)
	}
	return out, skipped
}

// WriteArchive collects assets and streams them as a zip to w.
func (e *Exporter) WriteArchive(ctx context.Context, w io.Writer, assets []domain.GeneratedAsset) (int, []string, error) {
	entries, skipped := e.Collect(ctx, assets)
	if err := zip.Write(w, entries); err != nil {
		return 0, skipped, fmt.Errorf("storage: export: %w", err)
	}
	return len(entries), skipped, nil
}

func (e *Exporter) resolve(ctx context.Context, locator string) ([]byte, string, error) {
	if IsDataURI(locator) {
		mimeType, data, err := DecodeDataURI(locator)
		return data, mimeType, err
	}
	if key, ok := e.media.KeyForURL(locator); ok {
		data, err := e.media.Read(key)
		if err != nil {
			return nil, "", err
		}
		// the spill recorded the type in the key's extension
		mimeType := mime.TypeByExtension(filepath.Ext(key))
		if mimeType == "" {
			mimeType = http.DetectContentType(data)
		}
		return data, mimeType, nil
	}
	if e.fetch == nil {
		return nil, "", fmt.Errorf("storage: no fetcher for %s", locator)
	}
	data, mimeType, err := e.fetch.Download(ctx, locator)
	if err != nil {
		return nil, "", err
	}
	if mimeType == "" {
		mimeType = http.DetectContentType(data)
	}
	return data, mimeType, nil
}

// ExportFilename names an asset inside an export archive.
func ExportFilename(asset domain.GeneratedAsset, mime string) string {
	ext := ExtensionForMIME(mime)
	if ext == "" {
		switch asset.Type {
		case domain.AssetTypeVideo:
			ext = ".mp4"
		case domain.AssetTypeAudio:
			ext = ".wav"
		case domain.AssetTypeMusic:
			ext = ".mp3"
		default:
			ext = ".png"
		}
	}
	return "asset-" + strings.ReplaceAll(asset.ID, "/", "_") + ext
}

// ExportName is the archive file name for an export made at t.
func ExportName(t time.Time) string {
	return "genstudio-export-" + t.UTC().Format("20060102-150405") + ".zip"
}
