package cache

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/spf13/viper"
	_ "modernc.org/sqlite"
)

const (
	// DefaultCacheTTL is the default time-to-live for cached entries (30 days)
	DefaultCacheTTL = 720 * time.Hour
	// NegativeCacheTTL is the TTL for "not found" responses (7 days)
	NegativeCacheTTL = 168 * time.Hour
)

// FetchFunc represents a function that fetches data from an external source
type FetchFunc[T any] func() (T, error)

// CacheDB manages the SQLite database connection for caching
type CacheDB struct {
	db *sql.DB
	mu sync.RWMutex
}

var (
	globalCache   *CacheDB
	globalCacheMu sync.Mutex
)

// ResetGlobalCache closes the current global cache so the next call to
// GetGlobalCache opens a new instance.
// This is primarily for testing purposes.
func ResetGlobalCache() error {
	globalCacheMu.Lock()
	defer globalCacheMu.Unlock()

	if globalCache == nil {
		return nil
	}
	err := globalCache.Close()
	globalCache = nil
	return err
}

// GetGlobalCache returns the shared cache database, opening it on first use.
// A failed open is not remembered; the next call tries again.
func GetGlobalCache() (*CacheDB, error) {
	globalCacheMu.Lock()
	defer globalCacheMu.Unlock()

	if globalCache != nil {
		return globalCache, nil
	}

	dbPath := viper.GetString("cache.dbfile")
	if dbPath == "" {
		dbPath = "./cache.db"
	}
	cacheDB, err := NewCacheDB(dbPath)
	if err != nil {
		return nil, err
	}
	for _, schema := range AllCacheSchemas {
		if err := cacheDB.CreateTable(schema); err != nil {
			return nil, errors.Join(fmt.Errorf("failed to create cache table: %w", err), cacheDB.Close())
		}
	}

	globalCache = cacheDB
	return globalCache, nil
}

// NewCacheDB creates a new CacheDB instance and opens the database connection
func NewCacheDB(dbPath string) (*CacheDB, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}

	// The HTTP server resolves titles concurrently; keep the pool small
	// since SQLite serializes writers anyway.
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)

	if err := db.Ping(); err != nil {
		closeErr := db.Close()
		return nil, errors.Join(fmt.Errorf("failed to connect to cache database: %w", err), closeErr)
	}

	return &CacheDB{db: db}, nil
}

// CreateTable creates a table using the provided schema
func (c *CacheDB) CreateTable(schema string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := c.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}
	return nil
}

// Close closes the database connection
func (c *CacheDB) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// InvalidateSource deletes all entries from the specified cache table
// Returns the number of rows deleted
func (c *CacheDB) InvalidateSource(tableName string) (int64, error) {
	if err := validateTableName(tableName); err != nil {
		return 0, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	result, err := c.db.Exec(fmt.Sprintf("DELETE FROM %s", tableName))
	if err != nil {
		return 0, fmt.Errorf("failed to delete cache entries: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	slog.Debug("Cache table cleared", "table", tableName, "rows_deleted", rowsAffected)
	return rowsAffected, nil
}

// validateTableName checks if the table name is in the whitelist
// to prevent SQL injection attacks
func validateTableName(tableName string) error {
	if !ValidCacheTableNames[tableName] {
		return fmt.Errorf("invalid cache table name: %s", tableName)
	}
	return nil
}

// GetOrFetchWithTTL retrieves data from cache or fetches it using the provided
// function. tableName is the cache table to use (e.g. "googlebooks_cache"),
// cacheKey the unique identifier for the entry. fetchFunc is called on a miss
// or when the entry has expired.
//
// The ttlSelector is called after fetching to decide how long the entry stays
// valid; nil or a zero result keeps the configured default.
func GetOrFetchWithTTL[T any](tableName, cacheKey string, fetchFunc FetchFunc[T], ttlSelector func(T) time.Duration) (T, bool, error) {
	var zero T

	cache, err := GetGlobalCache()
	if err != nil {
		// If cache initialization fails, fall back to direct fetch
		slog.Warn("Failed to initialize cache, fetching directly", "error", err)
		data, fetchErr := fetchFunc()
		return data, false, fetchErr
	}

	defaultTTL := configuredTTL()

	cached, fromCache, err := cache.Get(tableName, cacheKey, defaultTTL)
	if err == nil && fromCache {
		var result T
		if err := json.Unmarshal([]byte(cached), &result); err == nil {
			slog.Debug("Cache hit", "table", tableName, "key", cacheKey)
			return result, true, nil
		}
		slog.Warn("Failed to unmarshal cached data, will refetch", "table", tableName, "key", cacheKey, "error", err)
	}

	slog.Debug("Cache miss, fetching data", "table", tableName, "key", cacheKey)
	data, err := fetchFunc()
	if err != nil {
		return zero, false, fmt.Errorf("failed to fetch data: %w", err)
	}

	selectedTTL := time.Duration(0)
	if ttlSelector != nil {
		selectedTTL = ttlSelector(data)
	}

	jsonData, err := json.Marshal(data)
	if err != nil {
		slog.Warn("Failed to marshal data for caching", "table", tableName, "key", cacheKey, "error", err)
		return data, false, nil
	}
	if err := cache.Set(tableName, cacheKey, string(jsonData), selectedTTL); err != nil {
		// caching failure shouldn't fail the lookup
		slog.Warn("Failed to cache data", "table", tableName, "key", cacheKey, "error", err)
	} else {
		slog.Debug("Data cached successfully", "table", tableName, "key", cacheKey, "ttl", selectedTTL)
	}

	return data, false, nil
}

// SelectNegativeCacheTTL returns a TTL selector that caches "not found"
// results for NegativeCacheTTL and everything else for the configured default.
func SelectNegativeCacheTTL[T any](isNotFound func(T) bool) func(T) time.Duration {
	return func(result T) time.Duration {
		if isNotFound(result) {
			return NegativeCacheTTL
		}
		return 0
	}
}

func configuredTTL() time.Duration {
	ttlStr := viper.GetString("cache.ttl")
	if ttlStr == "" {
		return DefaultCacheTTL
	}
	ttl, err := time.ParseDuration(ttlStr)
	if err != nil {
		slog.Warn("Invalid cache TTL, using default", "ttl", ttlStr, "error", err)
		return DefaultCacheTTL
	}
	return ttl
}

// Get retrieves a cached value from the specified table.
// Rows stored with their own TTL use it; other rows use defaultTTL.
func (c *CacheDB) Get(tableName, key string, defaultTTL time.Duration) (string, bool, error) {
	if err := validateTableName(tableName); err != nil {
		return "", false, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	query := fmt.Sprintf(`
		SELECT data, cached_at, ttl_seconds
		FROM %s
		WHERE cache_key = ?
	`, tableName)

	var data string
	var cachedAt time.Time
	var ttlSeconds int64
	err := c.db.QueryRow(query, key).Scan(&data, &cachedAt, &ttlSeconds)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to query cache: %w", err)
	}

	if isExpired(cachedAt, ttlSeconds, defaultTTL, time.Now().UTC()) {
		slog.Debug("Cache expired", "table", tableName, "key", key, "cached_at", cachedAt)
		return "", false, nil
	}

	return data, true, nil
}

// Set stores a value in the cache. A zero ttl means "use the configured default".
func (c *CacheDB) Set(tableName, key, data string, ttl time.Duration) error {
	if err := validateTableName(tableName); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	query := fmt.Sprintf(`
		INSERT OR REPLACE INTO %s (cache_key, data, cached_at, ttl_seconds)
		VALUES (?, ?, ?, ?)
	`, tableName)

	if _, err := c.db.Exec(query, key, data, time.Now().UTC(), int64(ttl/time.Second)); err != nil {
		return fmt.Errorf("failed to set cache: %w", err)
	}

	return nil
}

// isExpired applies the row's own TTL when set, otherwise defaultTTL.
func isExpired(cachedAt time.Time, ttlSeconds int64, defaultTTL time.Duration, now time.Time) bool {
	ttl := defaultTTL
	if ttlSeconds > 0 {
		ttl = time.Duration(ttlSeconds) * time.Second
	}
	return now.Sub(cachedAt) > ttl
}

// ClearExpired removes the entries of tableName that Get would no longer
// return and reports how many were deleted.
func (c *CacheDB) ClearExpired(tableName string, defaultTTL time.Duration) (int64, error) {
	if err := validateTableName(tableName); err != nil {
		return 0, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	rows, err := c.db.Query(fmt.Sprintf(`SELECT cache_key, cached_at, ttl_seconds FROM %s`, tableName))
	if err != nil {
		return 0, fmt.Errorf("failed to scan cache entries: %w", err)
	}

	now := time.Now().UTC()
	var expired []string
	for rows.Next() {
		var key string
		var cachedAt time.Time
		var ttlSeconds int64
		if err := rows.Scan(&key, &cachedAt, &ttlSeconds); err != nil {
			_ = rows.Close()
			return 0, fmt.Errorf("failed to read cache entry: %w", err)
		}
		if isExpired(cachedAt, ttlSeconds, defaultTTL, now) {
			expired = append(expired, key)
		}
	}
	if err := errors.Join(rows.Err(), rows.Close()); err != nil {
		return 0, fmt.Errorf("failed to scan cache entries: %w", err)
	}

	deleteQuery := fmt.Sprintf(`DELETE FROM %s WHERE cache_key = ?`, tableName)
	for _, key := range expired {
		if _, err := c.db.Exec(deleteQuery, key); err != nil {
			return 0, fmt.Errorf("failed to clear expired cache: %w", err)
		}
	}

	if len(expired) > 0 {
		slog.Info("Cleared expired cache entries", "table", tableName, "count", len(expired))
	}
	return int64(len(expired)), nil
}
