package menusync

import (
	"context"

	"github.com/google/uuid"

	"menuboard/internal/menu/models"
	"menuboard/internal/menu/push"
)

// DefaultBuildYourOwnCategory is the catalog category holding the
// build-your-own item.
const DefaultBuildYourOwnCategory = "Componi-Panino"

// BuildYourOwnState is the derived view of the build-your-own category: its
// first item and that item's extras grouped by type tag.
type BuildYourOwnState struct {
	SessionID    uuid.UUID
	Version      uint64
	Item         *models.Item
	ExtrasByType map[string][]models.Extra
	Loading      bool
	Err          error
}

func (s BuildYourOwnState) ErrorMessage() string {
	if s.Err == nil {
		return ""
	}
	return s.Err.Error()
}

// BuildYourOwn tracks a single named category and exposes its first item.
type BuildYourOwn struct {
	category string
	session  *Session
}

func NewBuildYourOwn(catalog Catalog, subscriber push.Subscriber, category string, opts ...Option) *BuildYourOwn {
	if category == "" {
		category = DefaultBuildYourOwnCategory
	}
	return &BuildYourOwn{
		category: category,
		session:  NewNamedSession(catalog, subscriber, []string{category}, opts...),
	}
}

func (b *BuildYourOwn) Category() string {
	return b.category
}

// State derives the current view from the underlying session.
func (b *BuildYourOwn) State() BuildYourOwnState {
	st := b.session.State()
	out := BuildYourOwnState{
		SessionID:    st.SessionID,
		Version:      st.Version,
		ExtrasByType: map[string][]models.Extra{},
		Loading:      st.Loading,
		Err:          st.Err,
	}
	if items := st.Projection[b.category]; len(items) > 0 {
		item := items[0]
		out.Item = &item
		out.ExtrasByType = models.GroupExtrasByType(item.Extras)
	}
	return out
}

func (b *BuildYourOwn) Changes() <-chan struct{} {
	return b.session.Changes()
}

func (b *BuildYourOwn) Refetch(ctx context.Context) error {
	return b.session.Refetch(ctx)
}

func (b *BuildYourOwn) Close() {
	b.session.Close()
}
