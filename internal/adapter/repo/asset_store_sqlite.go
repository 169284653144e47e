package repo

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"

	"genstudio/internal/domain"
	"genstudio/internal/infra"
)

//go:embed schema_sqlite.sql
var sqliteSchema string

// SQLiteAssetStore implements domain.AssetStore on a local SQLite file.
type SQLiteAssetStore struct {
	db     *sql.DB
	logger *infra.Logger
}

// OpenSQLiteAssetStore opens the database at path and applies the schema.
func OpenSQLiteAssetStore(path string, logger *infra.Logger) (*SQLiteAssetStore, error) {
	db, err := infra.OpenSQLite(path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return &SQLiteAssetStore{db: db, logger: infra.OrDiscard(logger)}, nil
}

// Put inserts or overwrites the asset keyed by id.
func (s *SQLiteAssetStore) Put(ctx context.Context, asset domain.GeneratedAsset) error {
	payload, err := json.Marshal(asset)
	if err != nil {
		return fmt.Errorf("encode asset %s: %w", asset.ID, err)
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO generated_assets (id, type, status, task_id, created_at, payload)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    type = excluded.type,
    status = excluded.status,
    task_id = excluded.task_id,
    payload = excluded.payload,
    updated_at = CURRENT_TIMESTAMP`,
		asset.ID, string(asset.Type), string(asset.Status), asset.TaskID, asset.Timestamp, string(payload))
	if err != nil {
		return fmt.Errorf("put asset %s: %w", asset.ID, err)
	}
	return nil
}

// GetAll returns every stored asset.
func (s *SQLiteAssetStore) GetAll(ctx context.Context) ([]domain.GeneratedAsset, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT payload FROM generated_assets`)
	if err != nil {
		return nil, fmt.Errorf("list assets: %w", err)
	}
	defer rows.Close()

	var assets []domain.GeneratedAsset
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		asset, err := decodeAsset([]byte(payload))
		if err != nil {
			s.logger.Warn().Err(err).Msg("skipping undecodable asset record")
			continue
		}
		assets = append(assets, asset)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return assets, nil
}

// Get returns the asset or domain.ErrNotFound.
func (s *SQLiteAssetStore) Get(ctx context.Context, id string) (domain.GeneratedAsset, error) {
	var payload string
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM generated_assets WHERE id = ?`, id).Scan(&payload)
	if err != nil {
		if infra.IsNoRows(err) {
			return domain.GeneratedAsset{}, domain.ErrNotFound
		}
		return domain.GeneratedAsset{}, fmt.Errorf("get asset %s: %w", id, err)
	}
	return decodeAsset([]byte(payload))
}

// Delete removes the asset; absent ids are ignored.
func (s *SQLiteAssetStore) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM generated_assets WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete asset %s: %w", id, err)
	}
	return nil
}

// LoadSetting returns the stored value or "" when unset.
func (s *SQLiteAssetStore) LoadSetting(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM studio_settings WHERE key = ?`, key).Scan(&value)
	if err != nil {
		if infra.IsNoRows(err) {
			return "", nil
		}
		return "", err
	}
	return value, nil
}

// SaveSetting upserts a setting.
func (s *SQLiteAssetStore) SaveSetting(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO studio_settings (key, value) VALUES (?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP`, key, value)
	return err
}

func (s *SQLiteAssetStore) Close() error {
	return s.db.Close()
}

func decodeAsset(payload []byte) (domain.GeneratedAsset, error) {
	var asset domain.GeneratedAsset
	if err := json.Unmarshal(payload, &asset); err != nil {
		return domain.GeneratedAsset{}, fmt.Errorf("decode asset: %w", err)
	}
	return asset, nil
}

var _ domain.AssetStore = (*SQLiteAssetStore)(nil)
