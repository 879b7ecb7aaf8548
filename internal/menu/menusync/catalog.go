// Package menusync keeps an in-memory projection of the catalog for one view.
//
// A Session bootstraps its projection from snapshot loads (name resolution
// followed by one item fetch per category) and then patches it with push
// events. Every state transition publishes a new immutable State.
package menusync

import (
	"context"
	"errors"
	"fmt"

	"menuboard/internal/menu/models"
	"menuboard/pkg/platform/sentinel"
)

//go:generate mockgen -source=catalog.go -destination=mocks/mocks.go -package=mocks Catalog

// Catalog is the request/response surface the sync core reads from.
type Catalog interface {
	CategoryName(ctx context.Context, id models.CategoryID) (string, error)
	ItemsByCategory(ctx context.Context, name string) ([]models.Item, error)
}

var (
	// ErrNameResolution marks a failed id to name resolution batch.
	ErrNameResolution = errors.New("category name resolution failed")
	// ErrSnapshotLoad marks a failed item snapshot load.
	ErrSnapshotLoad = errors.New("snapshot load failed")
	// ErrClosed is returned by operations on a closed session.
	ErrClosed = fmt.Errorf("session closed: %w", sentinel.ErrInvalidState)
)
