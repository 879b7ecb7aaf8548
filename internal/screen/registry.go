// Package screen binds configured display screens to sync sessions and
// display resources. Every dependency is handed in explicitly.
package screen

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"golang.org/x/sync/errgroup"

	"menuboard/internal/menu/assets"
	"menuboard/internal/menu/menusync"
	"menuboard/internal/menu/models"
	"menuboard/internal/menu/push"
	"menuboard/internal/menu/settings"
	"menuboard/pkg/platform/sentinel"
)

// Definition describes one screen.
type Definition struct {
	Name        string              `json:"name"`
	Number      int                 `json:"number"`
	CategoryIDs []models.CategoryID `json:"category_ids"`
}

// Registry owns one session per screen plus the build-your-own binding.
type Registry struct {
	defs     []Definition
	sessions map[string]*menusync.Session
	byo      *menusync.BuildYourOwn
	assets   *assets.Fetcher
	settings *settings.Loader

	mu          sync.RWMutex
	display     settings.Display
	settingsErr error

	logger  *slog.Logger
	options []menusync.Option
}

type Option func(*Registry)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) {
		r.logger = logger
	}
}

// WithSessionOptions passes options to every session the registry creates.
func WithSessionOptions(opts ...menusync.Option) Option {
	return func(r *Registry) {
		r.options = append(r.options, opts...)
	}
}

func WithAssets(f *assets.Fetcher) Option {
	return func(r *Registry) {
		r.assets = f
	}
}

func WithSettings(l *settings.Loader) Option {
	return func(r *Registry) {
		r.settings = l
	}
}

// NewRegistry starts a session for each definition and one for the
// build-your-own category. Screen names must be unique.
func NewRegistry(catalog menusync.Catalog, subscriber push.Subscriber, defs []Definition, byoCategory string, opts ...Option) (*Registry, error) {
	r := &Registry{
		sessions: make(map[string]*menusync.Session, len(defs)),
		display:  settings.Defaults(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = slog.New(slog.DiscardHandler)
	}

	for _, def := range defs {
		if _, dup := r.sessions[def.Name]; dup {
			r.Close()
			return nil, fmt.Errorf("screen %q defined twice", def.Name)
		}
		session := menusync.NewCategorySession(catalog, subscriber, def.CategoryIDs,
			append(slices.Clip(r.options), menusync.WithLogger(r.logger.With("screen", def.Name)))...)
		r.sessions[def.Name] = session
		r.defs = append(r.defs, def)
		r.logger.Info("screen session started", "screen", def.Name, "session_id", session.ID().String(), "categories", def.CategoryIDs)
	}

	r.byo = menusync.NewBuildYourOwn(catalog, subscriber, byoCategory,
		append(slices.Clip(r.options), menusync.WithLogger(r.logger.With("screen", "build-your-own")))...)
	return r, nil
}

// Screens lists the definitions in configuration order.
func (r *Registry) Screens() []Definition {
	return r.defs
}

// Screen returns the session bound to name.
func (r *Registry) Screen(name string) (*menusync.Session, Definition, error) {
	for _, def := range r.defs {
		if def.Name == name {
			return r.sessions[name], def, nil
		}
	}
	return nil, Definition{}, fmt.Errorf("screen %q: %w", name, sentinel.ErrNotFound)
}

func (r *Registry) BuildYourOwn() *menusync.BuildYourOwn {
	return r.byo
}

// ScreenImage fetches one decorative image of a screen.
func (r *Registry) ScreenImage(ctx context.Context, name string, slot int) ([]byte, error) {
	_, def, err := r.Screen(name)
	if err != nil {
		return nil, err
	}
	if r.assets == nil {
		return nil, fmt.Errorf("assets: %w", sentinel.ErrUnavailable)
	}
	return r.assets.Image(ctx, def.Number, slot)
}

// ScreenImages fetches every decorative image of a screen, all or nothing.
func (r *Registry) ScreenImages(ctx context.Context, name string) (map[string][]byte, error) {
	_, def, err := r.Screen(name)
	if err != nil {
		return nil, err
	}
	if r.assets == nil {
		return nil, fmt.Errorf("assets: %w", sentinel.ErrUnavailable)
	}
	return r.assets.ScreenImages(ctx, def.Number, assets.DefaultImagesPerScreen)
}

func (r *Registry) Logo(ctx context.Context) ([]byte, error) {
	if r.assets == nil {
		return nil, fmt.Errorf("assets: %w", sentinel.ErrUnavailable)
	}
	return r.assets.Logo(ctx)
}

// RefreshSettings reloads display settings. On failure the last loaded values
// (the defaults before any success) are kept and the error is remembered for
// Settings.
func (r *Registry) RefreshSettings(ctx context.Context) error {
	if r.settings == nil {
		return nil
	}
	display, err := r.settings.Load(ctx)

	r.mu.Lock()
	defer r.mu.Unlock()
	if err == nil {
		r.display = display
	}
	r.settingsErr = err
	return err
}

// Settings returns the last loaded display settings and load error.
func (r *Registry) Settings() (settings.Display, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.display, r.settingsErr
}

// RefetchAll reloads every screen and the build-your-own binding concurrently.
// Each binding keeps its last projection on failure; the first error is
// returned after all loads have finished.
func (r *Registry) RefetchAll(ctx context.Context) error {
	var g errgroup.Group
	for _, def := range r.defs {
		session := r.sessions[def.Name]
		g.Go(func() error {
			if err := session.Refetch(ctx); err != nil {
				return fmt.Errorf("screen %q: %w", def.Name, err)
			}
			return nil
		})
	}
	if r.byo != nil {
		g.Go(func() error {
			if err := r.byo.Refetch(ctx); err != nil {
				return fmt.Errorf("build-your-own: %w", err)
			}
			return nil
		})
	}
	return g.Wait()
}

// RefetchOnReconnect calls RefetchAll for every signal on connected except
// the first, recovering events missed while the push channel was down. It
// returns when ctx is done.
func (r *Registry) RefetchOnReconnect(ctx context.Context, connected <-chan struct{}) {
	first := true
	for {
		select {
		case <-ctx.Done():
			return
		case <-connected:
			if first {
				first = false
				continue
			}
			r.logger.Info("push channel reconnected, refetching screens")
			if err := r.RefetchAll(ctx); err != nil {
				r.logger.Warn("refetch after reconnect failed", "error", err)
			}
		}
	}
}

// Close stops every session and deregisters their listeners.
func (r *Registry) Close() {
	for _, session := range r.sessions {
		session.Close()
	}
	if r.byo != nil {
		r.byo.Close()
	}
}
