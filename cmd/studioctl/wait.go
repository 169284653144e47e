package main

import (
	"context"
	"fmt"
	"time"

	"genstudio/internal/domain"
	"genstudio/internal/library"
)

// waitTerminal blocks until every id is completed or failed, or ctx ends. The
// projection is re-read after each event so nothing published before the
// subscription is missed.
func waitTerminal(ctx context.Context, lib *library.Library, ids []string) ([]domain.GeneratedAsset, error) {
	events, unsubscribe := lib.Subscribe(len(ids) * 4)
	defer unsubscribe()

	for {
		settled := make([]domain.GeneratedAsset, 0, len(ids))
		for _, id := range ids {
			a, ok := lib.Get(id)
			if !ok {
				return nil, fmt.Errorf("asset %s was deleted while waiting", id)
			}
			if !a.Status.Terminal() {
				break
			}
			settled = append(settled, a)
		}
		if len(settled) == len(ids) {
			return settled, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-events:
		}
	}
}

func withOptionalTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
