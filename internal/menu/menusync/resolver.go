package menusync

import (
	"context"
	"fmt"

	"menuboard/internal/menu/models"
	"menuboard/pkg/platform/gather"
	"menuboard/pkg/platform/strings"
)

// ResolveNames looks up the display name of every id concurrently. Duplicate
// ids are looked up once. The batch is all-or-nothing: if any lookup fails no
// names are returned.
func ResolveNames(ctx context.Context, catalog Catalog, ids []models.CategoryID) (map[models.CategoryID]string, error) {
	names, err := gather.Map(ctx, ids, catalog.CategoryName)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNameResolution, err)
	}
	return names, nil
}

// resolveMissing resolves only the ids absent from known and returns a merged
// copy. known is never modified.
func resolveMissing(ctx context.Context, catalog Catalog, ids []models.CategoryID, known map[models.CategoryID]string) (map[models.CategoryID]string, error) {
	var missing []models.CategoryID
	for _, id := range ids {
		if _, ok := known[id]; !ok {
			missing = append(missing, id)
		}
	}

	out := make(map[models.CategoryID]string, len(known)+len(missing))
	for id, name := range known {
		out[id] = name
	}
	if len(missing) == 0 {
		return out, nil
	}

	resolved, err := ResolveNames(ctx, catalog, missing)
	if err != nil {
		return nil, err
	}
	for id, name := range resolved {
		out[id] = name
	}
	return out, nil
}

// DisplayOrder maps ids to names in id order, dropping repeated names.
func DisplayOrder(ids []models.CategoryID, names map[models.CategoryID]string) []string {
	ordered := make([]string, 0, len(ids))
	for _, id := range ids {
		if name, ok := names[id]; ok {
			ordered = append(ordered, name)
		}
	}
	return strings.Dedupe(ordered)
}
