package main

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/docopt/docopt-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"menuboard/internal/menu/catalog"
	"menuboard/internal/menu/menusync"
	"menuboard/internal/menu/models"
	"menuboard/internal/platform/config"
	"menuboard/pkg/testutil"
)

func newTestCatalog(t *testing.T) *catalog.Client {
	t.Helper()
	upstream := testutil.NewCatalogServer(t)
	upstream.SetCategory(1, "Burgers", models.Item{ID: 1, Name: "Classic", Category: "Burgers", Price: decimal.NewFromInt(9)})
	upstream.SetCategory(2, "Drinks", models.Item{ID: 7, Name: "Cola", Category: "Drinks", Price: decimal.NewFromInt(2)})

	client, err := catalog.New(upstream.URL)
	require.NoError(t, err)
	return client
}

func TestWriteSnapshot(t *testing.T) {
	client := newTestCatalog(t)

	t.Run("categories follow the requested id order", func(t *testing.T) {
		var out bytes.Buffer
		err := writeSnapshot(context.Background(), client, []models.CategoryID{2, 1, 2}, &out)
		require.NoError(t, err)

		var got snapshotOutput
		require.NoError(t, json.Unmarshal(out.Bytes(), &got))
		assert.Equal(t, []string{"Drinks", "Burgers"}, got.Categories)
		require.Len(t, got.Projection["Burgers"], 1)
		assert.Equal(t, "Classic", got.Projection["Burgers"][0].Name)
		assert.Equal(t, "Cola", got.Projection["Drinks"][0].Name)
	})

	t.Run("unknown category id fails resolution", func(t *testing.T) {
		var out bytes.Buffer
		err := writeSnapshot(context.Background(), client, []models.CategoryID{1, 99}, &out)
		assert.ErrorIs(t, err, menusync.ErrNameResolution)
		assert.Zero(t, out.Len())
	})
}

func TestCategoryIDs(t *testing.T) {
	ids, err := categoryIDs(docopt.Opts{"<category_id>": []string{"3", "6", "7"}})
	require.NoError(t, err)
	assert.Equal(t, []models.CategoryID{3, 6, 7}, ids)

	_, err = categoryIDs(docopt.Opts{"<category_id>": []string{"3", "six"}})
	assert.Error(t, err)
}

func TestPublishValidatesBeforeConnecting(t *testing.T) {
	cfg := config.Config{Redis: config.Redis{URL: "redis://127.0.0.1:1", Channel: "menu-events"}}

	err := publish(context.Background(), cfg, docopt.Opts{"<type>": "orderCreated", "<payload>": "{}"})
	assert.ErrorContains(t, err, "unknown event type")

	err = publish(context.Background(), cfg, docopt.Opts{"<type>": "productDelete", "<payload>": "{"})
	assert.ErrorContains(t, err, "not valid JSON")

	err = publish(context.Background(), config.Config{}, docopt.Opts{"<type>": "productDelete", "<payload>": "1"})
	assert.ErrorContains(t, err, "MENUBOARD_REDIS_URL")
}
