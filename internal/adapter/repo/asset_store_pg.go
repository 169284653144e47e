package repo

import (
	"context"
	"encoding/json"
	"fmt"

	"genstudio/internal/domain"
	"genstudio/internal/infra"
	"genstudio/internal/sqlinline"
)

// PostgresAssetStore implements domain.AssetStore on PostgreSQL. Queries go
// through an infra.SQLExecutor, normally the marker-checking SQLRunner.
type PostgresAssetStore struct {
	sql    infra.SQLExecutor
	closer func()
	logger *infra.Logger
}

// NewPostgresAssetStore wraps exec. closer, when non-nil, releases the pool.
func NewPostgresAssetStore(exec infra.SQLExecutor, closer func(), logger *infra.Logger) *PostgresAssetStore {
	return &PostgresAssetStore{sql: exec, closer: closer, logger: infra.OrDiscard(logger)}
}

// Migrate creates the tables when missing.
func (s *PostgresAssetStore) Migrate(ctx context.Context) error {
	if _, err := s.sql.Exec(ctx, sqlinline.QCreateAssetSchema); err != nil {
		return fmt.Errorf("migrate asset schema: %w", err)
	}
	return nil
}

func (s *PostgresAssetStore) Put(ctx context.Context, asset domain.GeneratedAsset) error {
	payload, err := json.Marshal(asset)
	if err != nil {
		return fmt.Errorf("encode asset %s: %w", asset.ID, err)
	}
	if _, err := s.sql.Exec(ctx, sqlinline.QUpsertAsset,
		asset.ID, string(asset.Type), string(asset.Status), asset.TaskID, asset.Timestamp, payload); err != nil {
		return fmt.Errorf("put asset %s: %w", asset.ID, err)
	}
	return nil
}

func (s *PostgresAssetStore) GetAll(ctx context.Context) ([]domain.GeneratedAsset, error) {
	rows, err := s.sql.Query(ctx, sqlinline.QSelectAssets)
	if err != nil {
		return nil, fmt.Errorf("list assets: %w", err)
	}
	defer rows.Close()

	var assets []domain.GeneratedAsset
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		asset, err := decodeAsset(payload)
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

func (s *PostgresAssetStore) Get(ctx context.Context, id string) (domain.GeneratedAsset, error) {
	var payload []byte
	if err := s.sql.QueryRow(ctx, sqlinline.QSelectAssetPayload, id).Scan(&payload); err != nil {
		if infra.IsNoRows(err) {
			return domain.GeneratedAsset{}, domain.ErrNotFound
		}
		return domain.GeneratedAsset{}, fmt.Errorf("get asset %s: %w", id, err)
	}
	return decodeAsset(payload)
}

func (s *PostgresAssetStore) Delete(ctx context.Context, id string) error {
	if _, err := s.sql.Exec(ctx, sqlinline.QDeleteAsset, id); err != nil {
		return fmt.Errorf("delete asset %s: %w", id, err)
	}
	return nil
}

func (s *PostgresAssetStore) Close() error {
	if s.closer != nil {
		s.closer()
	}
	return nil
}

var _ domain.AssetStore = (*PostgresAssetStore)(nil)
