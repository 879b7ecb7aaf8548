package menusync

import (
	"context"
	"fmt"

	"menuboard/internal/menu/models"
	"menuboard/pkg/platform/gather"
)

// LoadSnapshot fetches every named category concurrently and assembles a
// fresh projection. Each distinct name is fetched once. Any failing fetch
// fails the whole load and nothing is returned.
func LoadSnapshot(ctx context.Context, catalog Catalog, names []string) (models.Projection, error) {
	buckets, err := gather.Map(ctx, names, catalog.ItemsByCategory)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSnapshotLoad, err)
	}

	projection := make(models.Projection, len(buckets))
	for name, items := range buckets {
		if items == nil {
			items = []models.Item{}
		}
		projection[name] = items
	}
	return projection, nil
}
