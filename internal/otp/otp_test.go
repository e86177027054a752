package otp

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/vestcore/vest/config"
	"github.com/vestcore/vest/internal/cache"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	mr := miniredis.RunT(t)
	config.MockConfig(&config.Configuration{
		Redis: config.RedisConfig{Dns: mr.Addr()},
		Otp:   config.OtpConfig{TTLMinutes: 10, Length: 6},
	})
	c, err := cache.NewCache()
	require.NoError(t, err)
	return NewStore(c)
}

func TestGenerateAndVerify(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	code, err := store.Generate(ctx, "registration", "usr_1")
	require.NoError(t, err)
	assert.Len(t, code, 6)

	ok, err := store.Verify(ctx, "registration", "usr_1", code)
	require.NoError(t, err)
	assert.True(t, ok)

	// a consumed code cannot be replayed
	ok, err = store.Verify(ctx, "registration", "usr_1", code)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVerify_WrongCode(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	code, err := store.Generate(ctx, "registration", "usr_1")
	require.NoError(t, err)

	ok, err := store.Verify(ctx, "registration", "usr_1", code+"0")
	require.NoError(t, err)
	assert.False(t, ok)

	// wrong attempts do not consume the stored code
	ok, err = store.Verify(ctx, "registration", "usr_1", code)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestVerify_UnknownOwner(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	ok, err := store.Verify(ctx, "registration", "usr_unknown", "123456")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestInvalidate(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	code, err := store.Generate(ctx, "withdrawal", "usr_2")
	require.NoError(t, err)

	require.NoError(t, store.Invalidate(ctx, "withdrawal", "usr_2"))

	ok, err := store.Verify(ctx, "withdrawal", "usr_2", code)
	require.NoError(t, err)
	assert.False(t, ok)
}
