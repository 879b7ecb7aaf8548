package menusync

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"menuboard/internal/menu/menusync/mocks"
	"menuboard/internal/menu/models"
	"menuboard/internal/menu/push"
)

func waitBuildYourOwn(t *testing.T, b *BuildYourOwn, pred func(BuildYourOwnState) bool) BuildYourOwnState {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		changed := b.Changes()
		st := b.State()
		if pred(st) {
			return st
		}
		select {
		case <-changed:
		case <-deadline:
			t.Fatalf("timed out waiting for build-your-own state: %+v", st)
		}
	}
}

func TestBuildYourOwn(t *testing.T) {
	t.Run("exposes the first item with grouped extras", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		catalog := mocks.NewMockCatalog(ctrl)
		catalog.EXPECT().ItemsByCategory(gomock.Any(), DefaultBuildYourOwnCategory).Return([]models.Item{
			item(1, DefaultBuildYourOwnCategory, "Panino",
				extra(1, "CARNE", "Pollo"), extra(2, "FORMAGGI", "Brie"), extra(3, "CARNE", "Manzo")),
			item(2, DefaultBuildYourOwnCategory, "Ignored"),
		}, nil)
		hub := push.NewHub()

		byo := NewBuildYourOwn(catalog, hub, "")
		t.Cleanup(byo.Close)
		assert.Equal(t, DefaultBuildYourOwnCategory, byo.Category())

		st := waitBuildYourOwn(t, byo, func(st BuildYourOwnState) bool { return st.Item != nil })
		assert.Equal(t, int64(1), st.Item.ID)
		require.Len(t, st.ExtrasByType["CARNE"], 2)
		assert.Equal(t, int64(1), st.ExtrasByType["CARNE"][0].ID)
		assert.Equal(t, int64(3), st.ExtrasByType["CARNE"][1].ID)
		assert.Len(t, st.ExtrasByType["FORMAGGI"], 1)

		env, err := push.NewEnvelope(push.KindExtraUpserted, extra(2, "FORMAGGI", "Gorgonzola"))
		require.NoError(t, err)
		hub.Dispatch(env)

		st = waitBuildYourOwn(t, byo, func(st BuildYourOwnState) bool {
			return len(st.ExtrasByType["FORMAGGI"]) == 1 && st.ExtrasByType["FORMAGGI"][0].Name == "Gorgonzola"
		})
		assert.Len(t, st.ExtrasByType["CARNE"], 2)
	})

	t.Run("empty category has no item and no error", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		catalog := mocks.NewMockCatalog(ctrl)
		catalog.EXPECT().ItemsByCategory(gomock.Any(), "Piadine").Return([]models.Item{}, nil)

		byo := NewBuildYourOwn(catalog, push.NewHub(), "Piadine")
		t.Cleanup(byo.Close)

		st := waitBuildYourOwn(t, byo, func(st BuildYourOwnState) bool { return !st.Loading && st.Version > 0 })
		assert.Nil(t, st.Item)
		assert.NotNil(t, st.ExtrasByType)
		assert.Empty(t, st.ErrorMessage())
	})

	t.Run("failure is reported", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		catalog := mocks.NewMockCatalog(ctrl)
		catalog.EXPECT().ItemsByCategory(gomock.Any(), "Piadine").Return(nil, errors.New("offline"))

		byo := NewBuildYourOwn(catalog, push.NewHub(), "Piadine")
		t.Cleanup(byo.Close)

		st := waitBuildYourOwn(t, byo, func(st BuildYourOwnState) bool { return !st.Loading && st.Err != nil })
		assert.ErrorIs(t, st.Err, ErrSnapshotLoad)
		assert.Contains(t, st.ErrorMessage(), "offline")
	})
}
