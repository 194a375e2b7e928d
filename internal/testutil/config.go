package testutil

import (
	"testing"

	"github.com/lepinkainen/buyback/internal/config"
	"github.com/spf13/viper"
)

// ConfigState holds the state of the config package variables.
type ConfigState struct {
	Port              int
	StaticDir         string
	GoogleBooksAPIKey string
	Headless          bool
	CacheEnabled      bool
}

// SaveConfigState captures the current state of config package variables.
func SaveConfigState() ConfigState {
	return ConfigState{
		Port:              config.Port,
		StaticDir:         config.StaticDir,
		GoogleBooksAPIKey: config.GoogleBooksAPIKey,
		Headless:          config.Headless,
		CacheEnabled:      config.CacheEnabled,
	}
}

// RestoreConfigState restores the config package variables to a saved state.
func RestoreConfigState(state ConfigState) {
	config.Port = state.Port
	config.StaticDir = state.StaticDir
	config.GoogleBooksAPIKey = state.GoogleBooksAPIKey
	config.Headless = state.Headless
	config.CacheEnabled = state.CacheEnabled
}

// SetTestConfig resets viper to the project defaults with caching disabled
// and restores the previous state when the test completes.
func SetTestConfig(t *testing.T) {
	t.Helper()

	state := SaveConfigState()
	viper.Reset()
	config.SetDefaults()
	viper.Set("cache.enabled", false)
	config.InitConfig()

	t.Cleanup(func() {
		RestoreConfigState(state)
		viper.Reset()
	})
}

// SetupTestCache points the metadata cache at a database inside env and enables it.
func SetupTestCache(t *testing.T, env *TestEnv) string {
	t.Helper()

	dbPath := env.Path("cache", "test-cache.db")
	env.MkdirAll("cache")

	viper.Set("cache.enabled", true)
	viper.Set("cache.dbfile", dbPath)
	viper.Set("cache.ttl", "24h")
	config.CacheEnabled = true

	return dbPath
}
