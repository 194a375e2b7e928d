package cache

import (
	"database/sql"
	"encoding/json"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/lepinkainen/buyback/internal/testutil"
	"github.com/spf13/viper"
)

type TestData struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

func setupTestCache(t *testing.T) *CacheDB {
	t.Helper()

	viper.Reset()
	t.Cleanup(viper.Reset)

	// Register test_cache as a valid table name for tests
	ValidCacheTableNames["test_cache"] = true
	t.Cleanup(func() {
		delete(ValidCacheTableNames, "test_cache")
	})

	env := testutil.NewTestEnv(t)
	cache, err := NewCacheDB(env.Path("test_cache.db"))
	if err != nil {
		t.Fatalf("Failed to create cache database: %v", err)
	}
	t.Cleanup(func() { _ = cache.Close() })

	testSchema := `
		CREATE TABLE IF NOT EXISTS test_cache (
			cache_key TEXT PRIMARY KEY NOT NULL,
			data TEXT NOT NULL,
			cached_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			ttl_seconds INTEGER NOT NULL DEFAULT 0
		);
	`
	if err := cache.CreateTable(testSchema); err != nil {
		t.Fatalf("Failed to create test table: %v", err)
	}

	viper.Set("cache.ttl", "1h")

	return cache
}

func withGlobalCache(t *testing.T, cache *CacheDB) {
	t.Helper()

	globalCacheMu.Lock()
	oldCache := globalCache
	globalCache = cache
	globalCacheMu.Unlock()

	t.Cleanup(func() {
		globalCacheMu.Lock()
		globalCache = oldCache
		globalCacheMu.Unlock()
	})
}

func hasEntry(t *testing.T, cache *CacheDB, tableName, key string) bool {
	t.Helper()

	var exists int
	err := cache.db.QueryRow("SELECT 1 FROM "+tableName+" WHERE cache_key = ? LIMIT 1", key).Scan(&exists)
	if err != nil && err != sql.ErrNoRows {
		t.Fatalf("Failed to query cache entry: %v", err)
	}
	return err == nil
}

func setCachedAt(t *testing.T, cache *CacheDB, tableName, key string, at time.Time) {
	t.Helper()

	if _, err := cache.db.Exec("UPDATE "+tableName+" SET cached_at = ? WHERE cache_key = ?", at.UTC(), key); err != nil {
		t.Fatalf("Failed to update cached_at: %v", err)
	}
}

func TestGetOrFetch_CacheHit(t *testing.T) {
	cache := setupTestCache(t)

	if err := cache.Set("test_cache", "test-key", `{"id":1,"name":"Test"}`, 0); err != nil {
		t.Fatalf("Failed to pre-populate cache: %v", err)
	}
	withGlobalCache(t, cache)

	fetchCalled := false
	result, fromCache, err := GetOrFetchWithTTL("test_cache", "test-key", func() (TestData, error) {
		fetchCalled = true
		return TestData{}, nil
	}, nil)

	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if !fromCache {
		t.Error("Expected fromCache to be true")
	}
	if fetchCalled {
		t.Error("Expected fetch function not to be called")
	}
	if result != (TestData{ID: 1, Name: "Test"}) {
		t.Errorf("Unexpected result %+v", result)
	}
}

func TestGetOrFetch_CacheMiss(t *testing.T) {
	cache := setupTestCache(t)
	withGlobalCache(t, cache)

	expectedData := TestData{ID: 2, Name: "Fetched"}
	fetchCalled := 0
	fetchFunc := func() (TestData, error) {
		fetchCalled++
		return expectedData, nil
	}

	result, fromCache, err := GetOrFetchWithTTL("test_cache", "test-key", fetchFunc, nil)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if fromCache {
		t.Error("Expected fromCache to be false")
	}
	if result != expectedData {
		t.Errorf("Expected %+v, got %+v", expectedData, result)
	}
	if !hasEntry(t, cache, "test_cache", "test-key") {
		t.Error("Expected cache entry to be created")
	}

	// Second call should hit cache and avoid fetch
	result, fromCache, err = GetOrFetchWithTTL("test_cache", "test-key", fetchFunc, nil)
	if err != nil {
		t.Fatalf("Expected no error on second call, got %v", err)
	}
	if !fromCache {
		t.Error("Expected second call to return from cache")
	}
	if fetchCalled != 1 {
		t.Errorf("Expected fetch to be called once, got %d calls", fetchCalled)
	}
	if result != expectedData {
		t.Errorf("Expected %+v from cache, got %+v", expectedData, result)
	}
}

func TestGetOrFetch_RespectsTTLExpiration(t *testing.T) {
	cache := setupTestCache(t)
	withGlobalCache(t, cache)

	if err := cache.Set("test_cache", "test-key", `{"id":1,"name":"stale"}`, 0); err != nil {
		t.Fatalf("Failed to seed stale cache: %v", err)
	}
	setCachedAt(t, cache, "test_cache", "test-key", time.Now().Add(-2*time.Hour))

	freshData := TestData{ID: 2, Name: "Fresh"}
	result, fromCache, err := GetOrFetchWithTTL("test_cache", "test-key", func() (TestData, error) {
		return freshData, nil
	}, nil)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if fromCache {
		t.Fatal("Expected cache miss due to TTL expiration")
	}
	if result != freshData {
		t.Fatalf("Expected fresh data, got %+v", result)
	}

	cached, hit, err := cache.Get("test_cache", "test-key", time.Hour)
	if err != nil || !hit {
		t.Fatalf("Expected refreshed entry, hit=%v err=%v", hit, err)
	}

	var cachedData TestData
	if err := json.Unmarshal([]byte(cached), &cachedData); err != nil {
		t.Fatalf("Failed to unmarshal cached data: %v", err)
	}
	if cachedData != freshData {
		t.Fatalf("Expected cached data %+v, got %+v", freshData, cachedData)
	}
}

func TestGetOrFetchWithTTL_PerEntryTTLOverridesDefault(t *testing.T) {
	cache := setupTestCache(t)
	withGlobalCache(t, cache)

	type lookup struct {
		NotFound bool `json:"not_found"`
	}

	_, _, err := GetOrFetchWithTTL("test_cache", "missing", func() (lookup, error) {
		return lookup{NotFound: true}, nil
	}, SelectNegativeCacheTTL(func(l lookup) bool { return l.NotFound }))
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	// Older than the 1h default but well within the negative TTL
	setCachedAt(t, cache, "test_cache", "missing", time.Now().Add(-3*time.Hour))

	if _, hit, err := cache.Get("test_cache", "missing", time.Hour); err != nil || !hit {
		t.Fatalf("Expected negative entry to survive past default TTL, hit=%v err=%v", hit, err)
	}

	setCachedAt(t, cache, "test_cache", "missing", time.Now().Add(-NegativeCacheTTL-time.Hour))
	if _, hit, _ := cache.Get("test_cache", "missing", time.Hour); hit {
		t.Fatal("Expected negative entry to expire after NegativeCacheTTL")
	}
}

func TestGetOrFetch_FetchError(t *testing.T) {
	cache := setupTestCache(t)
	withGlobalCache(t, cache)

	result, fromCache, err := GetOrFetchWithTTL("test_cache", "test-key", func() (TestData, error) {
		return TestData{}, &testError{"fetch failed"}
	}, nil)

	if err == nil {
		t.Fatal("Expected error, got nil")
	}
	if fromCache {
		t.Error("Expected fromCache to be false")
	}
	if result != (TestData{}) {
		t.Errorf("Expected zero value, got %+v", result)
	}
	if hasEntry(t, cache, "test_cache", "test-key") {
		t.Error("Failed fetches must not be cached")
	}
}

func TestCacheDB_GetExpired(t *testing.T) {
	cache := setupTestCache(t)

	if err := cache.Set("test_cache", "test-key", `{"id":1}`, 0); err != nil {
		t.Fatalf("Failed to set cache: %v", err)
	}
	setCachedAt(t, cache, "test_cache", "test-key", time.Now().Add(-2*time.Hour))

	data, fromCache, err := cache.Get("test_cache", "test-key", time.Hour)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if fromCache || data != "" {
		t.Errorf("Expected expired entry to be ignored, got %q", data)
	}
}

func TestCacheDB_ClearExpired(t *testing.T) {
	cache := setupTestCache(t)

	_ = cache.Set("test_cache", "stale", `{"id":1}`, 0)
	_ = cache.Set("test_cache", "fresh", `{"id":2}`, 0)
	_ = cache.Set("test_cache", "negative", `{"id":3}`, NegativeCacheTTL)

	setCachedAt(t, cache, "test_cache", "stale", time.Now().Add(-2*time.Hour))
	setCachedAt(t, cache, "test_cache", "negative", time.Now().Add(-2*time.Hour))

	rows, err := cache.ClearExpired("test_cache", 45*time.Minute)
	if err != nil {
		t.Fatalf("Failed to clear expired cache: %v", err)
	}
	if rows != 1 {
		t.Errorf("Expected 1 row deleted, got %d", rows)
	}

	if hasEntry(t, cache, "test_cache", "stale") {
		t.Error("Expected stale entry to be cleared")
	}
	if !hasEntry(t, cache, "test_cache", "fresh") {
		t.Error("Expected fresh entry to remain")
	}
	if !hasEntry(t, cache, "test_cache", "negative") {
		t.Error("Expected entry with its own longer TTL to remain")
	}

	if _, err := cache.ClearExpired("sqlite_master", time.Hour); err == nil {
		t.Error("Expected invalid table name error")
	}
}

func TestCacheDB_InvalidateSource(t *testing.T) {
	cache := setupTestCache(t)

	_ = cache.Set("test_cache", "key1", `{"id":1}`, 0)
	_ = cache.Set("test_cache", "key2", `{"id":2}`, 0)

	rows, err := cache.InvalidateSource("test_cache")
	if err != nil {
		t.Fatalf("Failed to invalidate: %v", err)
	}
	if rows != 2 {
		t.Errorf("Expected 2 rows deleted, got %d", rows)
	}
}

func TestCacheDB_RejectsUnknownTable(t *testing.T) {
	cache := setupTestCache(t)

	if err := cache.Set("users; DROP TABLE x", "k", "v", 0); err == nil {
		t.Fatal("Expected invalid table name error")
	}
	if _, err := cache.InvalidateSource("sqlite_master"); err == nil {
		t.Fatal("Expected invalid table name error")
	}
}

func TestInvalidateCacheCmd(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	t.Cleanup(func() { _ = ResetGlobalCache() })

	env := testutil.NewTestEnv(t)
	viper.Set("cache.dbfile", env.Path("cache.db"))
	viper.Set("cache.ttl", "1h")
	_ = ResetGlobalCache()

	cacheDB, err := GetGlobalCache()
	if err != nil {
		t.Fatalf("Failed to open global cache: %v", err)
	}
	for _, key := range []string{"intitle:dune", "intitle:emma"} {
		if err := cacheDB.Set("googlebooks_cache", key, `{}`, 0); err != nil {
			t.Fatalf("Failed to seed cache: %v", err)
		}
	}
	setCachedAt(t, cacheDB, "googlebooks_cache", "intitle:dune", time.Now().Add(-2*time.Hour))

	expired := &InvalidateCacheCmd{Source: "googlebooks", Expired: true}
	if err := expired.Run(); err != nil {
		t.Fatalf("Run --expired failed: %v", err)
	}
	if hasEntry(t, cacheDB, "googlebooks_cache", "intitle:dune") {
		t.Error("Expected expired entry to be removed")
	}
	if !hasEntry(t, cacheDB, "googlebooks_cache", "intitle:emma") {
		t.Error("Expected fresh entry to survive --expired")
	}

	cmd := &InvalidateCacheCmd{Source: "googlebooks"}
	if err := cmd.Run(); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if hasEntry(t, cacheDB, "googlebooks_cache", "intitle:emma") {
		t.Error("Expected googlebooks cache to be empty")
	}

	bad := &InvalidateCacheCmd{Source: "tmdb"}
	if err := bad.Run(); err == nil {
		t.Error("Expected error for unknown source")
	}
}

func TestGetGlobalCache_ConcurrentInitFailure(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	_ = ResetGlobalCache()
	t.Cleanup(func() { _ = ResetGlobalCache() })

	env := testutil.NewTestEnv(t)
	viper.Set("cache.dbfile", filepath.Join(env.RootDir(), "missing", "sub", "cache.db"))

	const workers = 16
	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 20 {
				cacheDB, err := GetGlobalCache()
				if err == nil || cacheDB != nil {
					t.Errorf("Expected open failure, got cache=%v err=%v", cacheDB, err)
					return
				}

				result, fromCache, err := GetOrFetchWithTTL("googlebooks_cache", "intitle:dune", func() (TestData, error) {
					return TestData{ID: 7}, nil
				}, nil)
				if err != nil || fromCache || result.ID != 7 {
					t.Errorf("Expected direct fetch, got %+v fromCache=%v err=%v", result, fromCache, err)
					return
				}
			}
		}()
	}
	wg.Wait()

	// A later call with a usable path recovers.
	viper.Set("cache.dbfile", env.Path("cache.db"))
	cacheDB, err := GetGlobalCache()
	if err != nil || cacheDB == nil {
		t.Fatalf("Expected cache to open after fixing the path, err=%v", err)
	}
}

func TestGetGlobalCache_SchemaFailure(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	_ = ResetGlobalCache()
	t.Cleanup(func() { _ = ResetGlobalCache() })

	env := testutil.NewTestEnv(t)
	viper.Set("cache.dbfile", env.Path("cache.db"))

	schemas := AllCacheSchemas
	AllCacheSchemas = []string{"CREATE TABLE broken ("}
	t.Cleanup(func() { AllCacheSchemas = schemas })

	cacheDB, err := GetGlobalCache()
	if err == nil || cacheDB != nil {
		t.Fatalf("Expected schema failure, got cache=%v err=%v", cacheDB, err)
	}

	AllCacheSchemas = schemas
	if _, err := GetGlobalCache(); err != nil {
		t.Fatalf("Expected retry to succeed, got %v", err)
	}
}

func TestSchemaColumns(t *testing.T) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer func() { _ = db.Close() }()
	db.SetMaxOpenConns(1)

	for _, schema := range AllCacheSchemas {
		if _, err := db.Exec(schema); err != nil {
			t.Fatalf("schema failed: %v", err)
		}
	}
	if _, err := db.Exec(`INSERT INTO googlebooks_cache (cache_key, data) VALUES ('k', '{}')`); err != nil {
		t.Fatalf("insert with defaults failed: %v", err)
	}
}

// testError is a simple error type for testing
type testError struct {
	msg string
}

func (e *testError) Error() string {
	return e.msg
}
