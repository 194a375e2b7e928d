package cache

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/spf13/viper"
)

// InvalidateCacheCmd represents the cache invalidate subcommand
type InvalidateCacheCmd struct {
	Source  string `arg:"" help:"Cache source to invalidate: googlebooks" required:""`
	Expired bool   `help:"Only remove entries past their TTL"`
}

func (i *InvalidateCacheCmd) Run() error {
	cacheDB := viper.GetString("cache.dbfile")

	slog.Info("Invalidating cache", "source", i.Source, "database", cacheDB, "expired_only", i.Expired)

	tableName := i.Source + "_cache"
	if !ValidCacheTableNames[tableName] {
		return fmt.Errorf("invalid cache source '%s'; valid sources are: %s", i.Source, strings.Join(validSources(), ", "))
	}

	cacheInstance, err := GetGlobalCache()
	if err != nil {
		return fmt.Errorf("failed to open cache database: %w", err)
	}

	var rowsDeleted int64
	if i.Expired {
		rowsDeleted, err = cacheInstance.ClearExpired(tableName, configuredTTL())
	} else {
		rowsDeleted, err = cacheInstance.InvalidateSource(tableName)
	}
	if err != nil {
		return fmt.Errorf("failed to invalidate cache: %w", err)
	}

	slog.Info("Cache invalidated", "source", i.Source, "rows_deleted", rowsDeleted)
	return nil
}

func validSources() []string {
	sources := make([]string, 0, len(ValidCacheTableNames))
	for table := range ValidCacheTableNames {
		sources = append(sources, strings.TrimSuffix(table, "_cache"))
	}
	sort.Strings(sources)
	return sources
}
