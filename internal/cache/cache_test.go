package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/vestcore/vest/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) Cache {
	mr := miniredis.RunT(t)
	config.MockConfig(&config.Configuration{Redis: config.RedisConfig{Dns: mr.Addr()}})
	c, err := NewCache()
	require.NoError(t, err)
	return c
}

func TestSetAndGet(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t)

	setValue := map[string]string{"hello": "world"}
	err := c.Set(ctx, "testKey", setValue, 10*time.Minute)
	assert.NoError(t, err)

	var getValue map[string]string
	err = c.Get(ctx, "testKey", &getValue)
	assert.NoError(t, err)
	assert.Equal(t, setValue, getValue)
}

func TestGetNonExistentKey(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t)

	var getValue map[string]string
	err := c.Get(ctx, "nonExistentKey", &getValue)
	assert.NoError(t, err) // a miss is not an error
	assert.Empty(t, getValue)
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t)

	err := c.Set(ctx, "testKey", "testValue", 10*time.Minute)
	assert.NoError(t, err)

	err = c.Delete(ctx, "testKey")
	assert.NoError(t, err)

	var getValue string
	err = c.Get(ctx, "testKey", &getValue)
	assert.NoError(t, err)
	assert.Empty(t, getValue)
}
