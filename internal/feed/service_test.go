package feed_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kevfeed/internal/cache"
	"kevfeed/internal/catalog"
	"kevfeed/internal/feed"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// stubFetcher serves a fixed snapshot or error and counts calls.
type stubFetcher struct {
	mu    sync.Mutex
	calls int
	snap  *catalog.Snapshot
	err   error
}

func (f *stubFetcher) Fetch(_ context.Context) (*catalog.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.snap, nil
}

func (f *stubFetcher) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// faultyStore fails reads and/or writes on demand.
type faultyStore struct {
	cache.Store
	getErr error
	putErr error
}

func (s *faultyStore) Get(ctx context.Context, key string) ([]byte, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	return s.Store.Get(ctx, key)
}

func (s *faultyStore) Put(ctx context.Context, key string, value []byte) error {
	if s.putErr != nil {
		return s.putErr
	}
	return s.Store.Put(ctx, key, value)
}

func snapshotOf(t *testing.T, c *catalog.Catalog) *catalog.Snapshot {
	t.Helper()
	raw, err := json.Marshal(c)
	require.NoError(t, err)
	return &catalog.Snapshot{Catalog: c, Raw: raw}
}

func TestService_Catalog_EmptyCache(t *testing.T) {
	ctx := context.Background()
	store := cache.NewMemory()
	fetcher := &stubFetcher{snap: snapshotOf(t, scenarioCatalog())}
	svc := feed.NewService(store, fetcher, discardLogger(), 0)

	got, err := svc.Catalog(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, fetcher.Calls())
	assert.Equal(t, "2024.01.05", got.Catalog.CatalogVersion)

	cached, err := store.Get(ctx, feed.CacheKey)
	require.NoError(t, err)
	assert.Equal(t, fetcher.snap.Raw, cached)
}

func TestService_Catalog_PopulatedCache(t *testing.T) {
	ctx := context.Background()
	store := cache.NewMemory()
	cachedSnap := snapshotOf(t, scenarioCatalog())
	require.NoError(t, store.Put(ctx, feed.CacheKey, cachedSnap.Raw))

	fetcher := &stubFetcher{err: errors.New("must not be called")}
	svc := feed.NewService(store, fetcher, discardLogger(), 0)

	got, err := svc.Catalog(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, fetcher.Calls())
	assert.Equal(t, cachedSnap.Catalog, got.Catalog)
	assert.Equal(t, cachedSnap.Raw, got.Raw)
}

func TestService_Catalog_UndecodableCache(t *testing.T) {
	ctx := context.Background()
	store := cache.NewMemory()
	require.NoError(t, store.Put(ctx, feed.CacheKey, []byte(`{"catalogVersion":"old"}`)))

	fetcher := &stubFetcher{snap: snapshotOf(t, scenarioCatalog())}
	svc := feed.NewService(store, fetcher, discardLogger(), 0)

	got, err := svc.Catalog(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, fetcher.Calls())
	assert.Equal(t, "2024.01.05", got.Catalog.CatalogVersion)

	cached, err := store.Get(ctx, feed.CacheKey)
	require.NoError(t, err)
	assert.Equal(t, fetcher.snap.Raw, cached)
}

func TestService_Catalog_ReadErrorIsAMiss(t *testing.T) {
	store := &faultyStore{Store: cache.NewMemory(), getErr: errors.New("connection reset")}
	fetcher := &stubFetcher{snap: snapshotOf(t, scenarioCatalog())}
	svc := feed.NewService(store, fetcher, discardLogger(), 0)

	_, err := svc.Catalog(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, fetcher.Calls())
}

func TestService_Catalog_WriteErrorIsSwallowed(t *testing.T) {
	store := &faultyStore{Store: cache.NewMemory(), putErr: errors.New("read-only")}
	fetcher := &stubFetcher{snap: snapshotOf(t, scenarioCatalog())}
	svc := feed.NewService(store, fetcher, discardLogger(), 0)

	got, err := svc.Catalog(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "2024.01.05", got.Catalog.CatalogVersion)
}

func TestService_Catalog_FetchErrorPropagates(t *testing.T) {
	store := cache.NewMemory()
	fetcher := &stubFetcher{err: catalog.ErrTransport}
	svc := feed.NewService(store, fetcher, discardLogger(), 0)

	got, err := svc.Catalog(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, catalog.ErrTransport)
	assert.Nil(t, got)

	_, err = store.Get(context.Background(), feed.CacheKey)
	assert.ErrorIs(t, err, cache.ErrNotFound)
}

func TestService_Refresh_Overwrites(t *testing.T) {
	ctx := context.Background()
	store := cache.NewMemory()
	require.NoError(t, store.Put(ctx, feed.CacheKey, snapshotOf(t, &catalog.Catalog{CatalogVersion: "old", Vulnerabilities: []catalog.Vulnerability{}}).Raw))

	fetcher := &stubFetcher{snap: snapshotOf(t, scenarioCatalog())}
	svc := feed.NewService(store, fetcher, discardLogger(), 0)

	require.NoError(t, svc.Refresh(ctx))
	assert.Equal(t, 1, fetcher.Calls())

	cached, err := store.Get(ctx, feed.CacheKey)
	require.NoError(t, err)
	assert.Equal(t, fetcher.snap.Raw, cached)
}

func TestService_Refresh_Errors(t *testing.T) {
	ctx := context.Background()

	svc := feed.NewService(cache.NewMemory(), &stubFetcher{err: catalog.ErrDecode}, discardLogger(), 0)
	assert.ErrorIs(t, svc.Refresh(ctx), catalog.ErrDecode)

	putErr := errors.New("disk full")
	store := &faultyStore{Store: cache.NewMemory(), putErr: putErr}
	svc = feed.NewService(store, &stubFetcher{snap: snapshotOf(t, scenarioCatalog())}, discardLogger(), 0)
	assert.ErrorIs(t, svc.Refresh(ctx), putErr)
}

func TestService_Feed(t *testing.T) {
	fetcher := &stubFetcher{snap: snapshotOf(t, scenarioCatalog())}
	svc := feed.NewService(cache.NewMemory(), fetcher, discardLogger(), 0)

	out, err := svc.Feed(context.Background())
	require.NoError(t, err)

	parsed, err := gofeed.NewParser().Parse(bytes.NewReader(out))
	require.NoError(t, err)
	require.Len(t, parsed.Items, 2)
	assert.Equal(t, "Y", parsed.Items[0].Title)
}

func TestService_Feed_BuildError(t *testing.T) {
	fetcher := &stubFetcher{snap: snapshotOf(t, scenarioCatalog())}
	svc := feed.NewService(cache.NewMemory(), fetcher, discardLogger(), 0).
		WithChannel(feed.Channel{Title: "only a title"})

	out, err := svc.Feed(context.Background())
	assert.ErrorIs(t, err, feed.ErrBuild)
	assert.Nil(t, out)
}

func TestService_Healthy(t *testing.T) {
	svc := feed.NewService(cache.NewMemory(), &stubFetcher{}, discardLogger(), 0)
	assert.NoError(t, svc.Healthy(context.Background()))

	down := errors.New("down")
	svc = feed.NewService(&faultyStore{Store: cache.NewMemory(), getErr: down}, &stubFetcher{}, discardLogger(), 0)
	assert.ErrorIs(t, svc.Healthy(context.Background()), down)
}

func TestService_StartStop(t *testing.T) {
	ctx := context.Background()
	store := cache.NewMemory()
	fetcher := &stubFetcher{snap: snapshotOf(t, scenarioCatalog())}
	svc := feed.NewService(store, fetcher, discardLogger(), time.Hour)

	svc.Start()
	require.Eventually(t, func() bool {
		_, err := store.Get(ctx, feed.CacheKey)
		return err == nil
	}, 5*time.Second, 10*time.Millisecond)
	svc.Stop()
	svc.Stop()

	assert.Equal(t, 1, fetcher.Calls())
}

func TestService_StartDisabled(t *testing.T) {
	fetcher := &stubFetcher{snap: snapshotOf(t, scenarioCatalog())}
	svc := feed.NewService(cache.NewMemory(), fetcher, discardLogger(), 0)
	svc.Start()
	svc.Stop()
	assert.Equal(t, 0, fetcher.Calls())
}
