package redis

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"menuboard/internal/platform/config"
)

func TestNewDisabled(t *testing.T) {
	client, err := New(context.Background(), config.Redis{})
	assert.NoError(t, err)
	assert.Nil(t, client)
}

func TestNewInvalidURL(t *testing.T) {
	_, err := New(context.Background(), config.Redis{URL: "http://not-redis"})
	assert.ErrorContains(t, err, "parse redis URL")
}
