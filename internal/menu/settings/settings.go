// Package settings loads the display settings shared by every screen.
package settings

import (
	"context"
	"fmt"
	"log/slog"

	"menuboard/internal/menu/catalog"
	"menuboard/pkg/platform/gather"
)

// Setting names as stored by the catalog.
const (
	FontTopic       = "FONTTOPIC"
	FontDescription = "FONTDESC"
	BackgroundColor = "BGCOLOR"
)

// Display holds the resolved values with defaults filled in.
type Display struct {
	FontTopicSize       int    `json:"font_topic_size"`
	FontDescriptionSize int    `json:"font_description_size"`
	BackgroundColor     string `json:"background_color"`
}

// Defaults are used for absent fields and when loading fails.
func Defaults() Display {
	return Display{
		FontTopicSize:       20,
		FontDescriptionSize: 14,
		BackgroundColor:     "#000000",
	}
}

// Source fetches one named setting.
type Source interface {
	Setting(ctx context.Context, name string) (catalog.Setting, error)
}

type Loader struct {
	source Source
	logger *slog.Logger
}

type Option func(*Loader)

func WithLogger(logger *slog.Logger) Option {
	return func(l *Loader) {
		l.logger = logger
	}
}

func NewLoader(source Source, opts ...Option) *Loader {
	l := &Loader{source: source}
	for _, opt := range opts {
		opt(l)
	}
	if l.logger == nil {
		l.logger = slog.New(slog.DiscardHandler)
	}
	return l
}

// Load fetches all settings concurrently. If any fetch fails the defaults are
// returned together with the error.
func (l *Loader) Load(ctx context.Context) (Display, error) {
	names := []string{FontTopic, FontDescription, BackgroundColor}
	values, err := gather.All(ctx, names, l.source.Setting)
	if err != nil {
		l.logger.Warn("display settings unavailable, using defaults", "error", err)
		return Defaults(), fmt.Errorf("load display settings: %w", err)
	}

	d := Defaults()
	if size := values[0].Size; size > 0 {
		d.FontTopicSize = size
	}
	if size := values[1].Size; size > 0 {
		d.FontDescriptionSize = size
	}
	if color := values[2].Color; color != "" {
		d.BackgroundColor = color
	}
	return d, nil
}
