// Package assets fetches the logo and the decorative screen images.
package assets

import (
	"context"
	"fmt"

	"menuboard/pkg/platform/gather"
)

// Source fetches binary uploads from the catalog.
type Source interface {
	Logo(ctx context.Context) ([]byte, error)
	Image(ctx context.Context, key string) ([]byte, error)
}

// DefaultImagesPerScreen is the number of decorative slots on each screen.
const DefaultImagesPerScreen = 4

// ImageKey names slot of screen as stored by the catalog, e.g. S1I3.
func ImageKey(screen, slot int) string {
	return fmt.Sprintf("S%dI%d", screen, slot)
}

type Fetcher struct {
	source Source
}

func NewFetcher(source Source) *Fetcher {
	return &Fetcher{source: source}
}

func (f *Fetcher) Logo(ctx context.Context) ([]byte, error) {
	return f.source.Logo(ctx)
}

// Image fetches a single slot. Slots are numbered from 1.
func (f *Fetcher) Image(ctx context.Context, screen, slot int) ([]byte, error) {
	if slot < 1 {
		return nil, fmt.Errorf("invalid image slot %d", slot)
	}
	return f.source.Image(ctx, ImageKey(screen, slot))
}

// ScreenImages fetches slots 1..count of screen concurrently, keyed by image
// key. Any failing slot fails the whole batch.
func (f *Fetcher) ScreenImages(ctx context.Context, screen, count int) (map[string][]byte, error) {
	keys := make([]string, 0, count)
	for slot := 1; slot <= count; slot++ {
		keys = append(keys, ImageKey(screen, slot))
	}
	images, err := gather.Map(ctx, keys, f.source.Image)
	if err != nil {
		return nil, fmt.Errorf("fetch images for screen %d: %w", screen, err)
	}
	return images, nil
}
