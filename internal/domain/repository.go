package domain

import "context"

// AssetStore is the durable key-value record of generated assets.
type AssetStore interface {
	// Put inserts or overwrites by id.
	Put(ctx context.Context, asset GeneratedAsset) error
	// GetAll returns every record in unspecified order.
	GetAll(ctx context.Context) ([]GeneratedAsset, error)
	// Get returns ErrNotFound when the id is absent.
	Get(ctx context.Context, id string) (GeneratedAsset, error)
	// Delete removes a record; deleting an absent id is not an error.
	Delete(ctx context.Context, id string) error
	Close() error
}
