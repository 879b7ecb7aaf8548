// Package models holds the catalog entities mirrored by the display screens.
package models

import (
	"reflect"

	"github.com/shopspring/decimal"
)

// CategoryID is the stable catalog identifier of a category.
type CategoryID int64

// Category pairs an id with its lazily resolved display name.
type Category struct {
	ID   CategoryID `json:"id"`
	Name string     `json:"name"`
}

// Extra is an optional add-on attached to exactly one item.
// Type is a grouping tag only (e.g. CARNE, FORMAGGI, CONTORNO).
type Extra struct {
	ID    int64           `json:"id"`
	Name  string          `json:"name"`
	Type  string          `json:"type"`
	Price decimal.Decimal `json:"price"`
}

// Item is a sellable menu entry. Category holds the owning category name and
// may change between a snapshot and a later push event.
type Item struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Category    string          `json:"category"`
	Extras      []Extra         `json:"extras"`
}

// IndexOfExtra returns the position of the extra with the given id, or -1.
func (i Item) IndexOfExtra(extraID int64) int {
	for idx, e := range i.Extras {
		if e.ID == extraID {
			return idx
		}
	}
	return -1
}

// Projection maps a category name to its ordered items.
//
// A Projection is treated as an immutable value once published: merges build a
// new map and replace only the buckets they touch, so readers comparing bucket
// or map identity observe every change.
type Projection map[string][]Item

// Clone returns a shallow copy sharing every bucket slice.
func (p Projection) Clone() Projection {
	out := make(Projection, len(p))
	for name, items := range p {
		out[name] = items
	}
	return out
}

// Same reports whether p and q are the same map value, not merely equal.
func (p Projection) Same(q Projection) bool {
	return reflect.ValueOf(p).UnsafePointer() == reflect.ValueOf(q).UnsafePointer()
}

// Categories returns the bucket names in the given display order, skipping
// names that have no bucket.
func (p Projection) Categories(order []string) []string {
	out := make([]string, 0, len(order))
	for _, name := range order {
		if _, ok := p[name]; ok {
			out = append(out, name)
		}
	}
	return out
}

// Len returns the total number of items across all buckets.
func (p Projection) Len() int {
	n := 0
	for _, items := range p {
		n += len(items)
	}
	return n
}

// GroupExtrasByType groups extras by their type tag, preserving the relative
// order of extras within each group. The grouping is derived, never stored.
func GroupExtrasByType(extras []Extra) map[string][]Extra {
	grouped := make(map[string][]Extra)
	for _, e := range extras {
		grouped[e.Type] = append(grouped[e.Type], e)
	}
	return grouped
}
