//go:build integration

package redis

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"menuboard/internal/platform/config"
	"menuboard/pkg/testutil/containers"
)

func TestNew(t *testing.T) {
	rc := containers.NewRedisContainer(t)

	client, err := New(context.Background(), config.Redis{URL: rc.URL, PoolSize: 2})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	assert.NoError(t, client.Health(context.Background()))
}
