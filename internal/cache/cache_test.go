package cache_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kevfeed/internal/cache"
)

// exerciseStore checks the behaviour every backend must share.
func exerciseStore(t *testing.T, s cache.Store) {
	t.Helper()
	ctx := context.Background()

	_, err := s.Get(ctx, "upstream_response")
	assert.ErrorIs(t, err, cache.ErrNotFound)

	require.NoError(t, s.Put(ctx, "upstream_response", []byte(`{"count":1}`)))
	got, err := s.Get(ctx, "upstream_response")
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"count":1}`), got)

	// Overwrite, last writer wins.
	require.NoError(t, s.Put(ctx, "upstream_response", []byte(`{"count":2}`)))
	got, err = s.Get(ctx, "upstream_response")
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"count":2}`), got)

	_, err = s.Get(ctx, "other")
	assert.ErrorIs(t, err, cache.ErrNotFound)
}

func TestMemory(t *testing.T) {
	s := cache.NewMemory()
	defer s.Close()
	exerciseStore(t, s)
}

func TestMemory_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := cache.NewMemory()

	v := []byte("abc")
	require.NoError(t, s.Put(ctx, "k", v))
	v[0] = 'x'

	got, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), got)

	got[1] = 'y'
	again, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), again)
}

func TestRDB_SQLite3(t *testing.T) {
	s, err := cache.OpenRDB(cache.TypeSQLite3, filepath.Join(t.TempDir(), "cache.db"), cache.DefaultRDBConfig())
	require.NoError(t, err)
	defer s.Close()
	exerciseStore(t, s)
}

func TestRDB_SQLite3_Persists(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "cache.db")

	s, err := cache.OpenRDB(cache.TypeSQLite3, path, cache.DefaultRDBConfig())
	require.NoError(t, err)
	require.NoError(t, s.Put(ctx, "k", []byte("v")))
	require.NoError(t, s.Close())

	s, err = cache.OpenRDB(cache.TypeSQLite3, path, cache.DefaultRDBConfig())
	require.NoError(t, err)
	defer s.Close()
	got, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)
}

func TestRDB_Postgres(t *testing.T) {
	dsn := os.Getenv("KEVFEED_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("KEVFEED_TEST_POSTGRES_DSN not set")
	}
	s, err := cache.OpenRDB(cache.TypePostgres, dsn, cache.DefaultRDBConfig())
	require.NoError(t, err)
	defer s.Close()

	key := "kevfeed_test_" + t.Name()
	ctx := context.Background()
	require.NoError(t, s.Put(ctx, key, []byte("v1")))
	got, err := s.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, []byte("v1"), got)
}

func TestRDB_UnsupportedType(t *testing.T) {
	_, err := cache.OpenRDB("oracle", "x", cache.DefaultRDBConfig())
	assert.Error(t, err)
}

func TestBoltDB(t *testing.T) {
	s, err := cache.OpenBoltDB(filepath.Join(t.TempDir(), "cache.bolt"))
	require.NoError(t, err)
	defer s.Close()
	exerciseStore(t, s)
}

func TestRedis(t *testing.T) {
	addr := os.Getenv("KEVFEED_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("KEVFEED_TEST_REDIS_ADDR not set")
	}
	s, err := cache.OpenRedis(addr)
	require.NoError(t, err)
	defer s.Close()

	key := "kevfeed_test_" + t.Name()
	ctx := context.Background()
	require.NoError(t, s.Put(ctx, key, []byte("v1")))
	got, err := s.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, []byte("v1"), got)

	_, err = s.Get(ctx, key+"_missing")
	assert.ErrorIs(t, err, cache.ErrNotFound)
}

func TestFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	s := cache.NewFile(fs)
	exerciseStore(t, s)

	exists, err := afero.Exists(fs, "upstream_response.json")
	require.NoError(t, err)
	assert.True(t, exists)

	tmp, err := afero.Exists(fs, "upstream_response.json.tmp")
	require.NoError(t, err)
	assert.False(t, tmp)
}

func TestFile_EscapesKey(t *testing.T) {
	fs := afero.NewMemMapFs()
	s := cache.NewFile(fs)
	require.NoError(t, s.Put(context.Background(), "../etc/passwd", []byte("x")))

	exists, err := afero.Exists(fs, "..%2Fetc%2Fpasswd.json")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestConfig_New(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name    string
		config  cache.Config
		want    any
		wantErr bool
	}{
		{
			name:   "default is memory",
			config: cache.Config{},
			want:   &cache.Memory{},
		},
		{
			name:   "memory",
			config: cache.Config{Type: "memory"},
			want:   &cache.Memory{},
		},
		{
			name:   "sqlite3",
			config: cache.Config{Type: "sqlite3", Path: filepath.Join(dir, "kv.db")},
			want:   &cache.RDB{},
		},
		{
			name:   "boltdb",
			config: cache.Config{Type: "BoltDB", Path: filepath.Join(dir, "kv.bolt")},
			want:   &cache.BoltDB{},
		},
		{
			name:   "file on os",
			config: cache.Config{Type: "file", Path: filepath.Join(dir, "files")},
			want:   &cache.File{},
		},
		{
			name:   "file on injected fs",
			config: cache.Config{Type: "file", Options: cache.Options{Fs: afero.NewMemMapFs()}},
			want:   &cache.File{},
		},
		{
			name:    "file without path",
			config:  cache.Config{Type: "file"},
			wantErr: true,
		},
		{
			name:    "boltdb without path",
			config:  cache.Config{Type: "boltdb"},
			wantErr: true,
		},
		{
			name:    "unknown",
			config:  cache.Config{Type: "memcached"},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.config.New()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			defer got.Close()
			assert.IsType(t, tt.want, got)
			exerciseStore(t, got)
		})
	}
}
