package credentials

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStores(t *testing.T) {
	tests := []struct {
		name     string
		newStore func(t *testing.T) Store
	}{
		{
			name: "Memory",
			newStore: func(t *testing.T) Store {
				return NewMemoryStore()
			},
		},
		{
			name: "File",
			newStore: func(t *testing.T) Store {
				return NewFileStore(filepath.Join(t.TempDir(), "nested", "credentials.yaml"))
			},
		},
		{
			name: "Redis",
			newStore: func(t *testing.T) Store {
				mr := miniredis.RunT(t)
				client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
				t.Cleanup(func() { _ = client.Close() })
				return NewRedisStore(client, "test")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			store := tt.newStore(t)

			// Absent keys are empty, not errors
			value, err := store.Get(ctx, AccessTokenKey)
			require.NoError(t, err)
			assert.Empty(t, value)

			require.NoError(t, SavePair(ctx, store, Pair{Access: "A1", Refresh: "R1"}))
			pair, err := LoadPair(ctx, store)
			require.NoError(t, err)
			assert.Equal(t, Pair{Access: "A1", Refresh: "R1"}, pair)

			// Overwriting the access slot leaves the refresh slot alone
			require.NoError(t, store.Set(ctx, AccessTokenKey, "A2"))
			pair, err = LoadPair(ctx, store)
			require.NoError(t, err)
			assert.Equal(t, Pair{Access: "A2", Refresh: "R1"}, pair)

			require.NoError(t, Clear(ctx, store))
			pair, err = LoadPair(ctx, store)
			require.NoError(t, err)
			assert.Equal(t, Pair{}, pair)

			// Clearing twice is harmless
			require.NoError(t, Clear(ctx, store))
		})
	}
}

func TestFileStore_PersistsAcrossInstances(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "credentials.yaml")

	require.NoError(t, SavePair(ctx, NewFileStore(path), Pair{Access: "A1", Refresh: "R1"}))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	pair, err := LoadPair(ctx, NewFileStore(path))
	require.NoError(t, err)
	assert.Equal(t, Pair{Access: "A1", Refresh: "R1"}, pair)

	require.NoError(t, Clear(ctx, NewFileStore(path)))
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err), "credentials file should be removed once empty")
}

func TestFileStore_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.yaml")
	require.NoError(t, os.WriteFile(path, []byte("access_token: [unterminated"), 0o600))

	_, err := NewFileStore(path).Get(context.Background(), AccessTokenKey)
	assert.Error(t, err)
}

func TestRedisStore_UsesPrefix(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store := NewRedisStore(client, "blog")
	require.NoError(t, store.Set(ctx, RefreshTokenKey, "R1"))

	got, err := mr.Get("blog:refresh_token")
	require.NoError(t, err)
	assert.Equal(t, "R1", got)
}

func TestNewRedisClient(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := NewRedisClient(context.Background(), "redis://"+mr.Addr()+"/0")
	require.NoError(t, err)
	assert.NoError(t, client.Close())

	_, err = NewRedisClient(context.Background(), "not a url")
	assert.Error(t, err)
}
