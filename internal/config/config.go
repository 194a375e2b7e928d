package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// DefaultPort is used when neither the PORT environment variable nor the config file set one
const DefaultPort = 3000

// Global configuration variables
var (
	// Port is the TCP port the HTTP server listens on
	Port int
	// StaticDir is the directory served at the site root
	StaticDir string
	// GoogleBooksAPIKey is the optional API key for the Google Books volumes API
	GoogleBooksAPIKey string
	// Headless controls whether the price scraper runs the browser without a window
	Headless bool
	// CacheEnabled controls whether metadata lookups go through the SQLite cache
	CacheEnabled bool
)

// SetDefaults registers the default value of every configuration key
func SetDefaults() {
	viper.SetDefault("port", DefaultPort)
	viper.SetDefault("static.dir", "./public")

	viper.SetDefault("googlebooks.baseurl", "https://www.googleapis.com/books/v1")
	viper.SetDefault("googlebooks.ratelimit", 5)
	viper.SetDefault("googlebooks.timeout", "10s")

	viper.SetDefault("buyback.baseurl", "https://vykupujeme-online.sk")
	viper.SetDefault("buyback.selector", "p.text-p__detail--price")
	viper.SetDefault("buyback.navigationtimeout", "30s")
	viper.SetDefault("buyback.selectortimeout", "30s")
	viper.SetDefault("buyback.idlewindow", "500ms")
	viper.SetDefault("buyback.idleconnections", 2)
	viper.SetDefault("buyback.headless", true)

	viper.SetDefault("cache.enabled", true)
	viper.SetDefault("cache.dbfile", "./cache.db")
	viper.SetDefault("cache.ttl", "720h") // 30 days

	viper.SetDefault("datasette.mode", "local")
	viper.SetDefault("datasette.dbfile", "./buyback.db")
	viper.SetDefault("datasette.remote_url", "")
	viper.SetDefault("datasette.api_token", "")
}

// InitConfig initializes the global configuration
func InitConfig() {
	SetDefaults()

	Port = viper.GetInt("port")
	if Port <= 0 {
		Port = DefaultPort
	}
	StaticDir = viper.GetString("static.dir")
	GoogleBooksAPIKey = viper.GetString("googlebooks.apikey")
	Headless = viper.GetBool("buyback.headless")
	CacheEnabled = viper.GetBool("cache.enabled")
}

// SetPort overrides the listening port
func SetPort(port int) {
	if port > 0 {
		Port = port
	}
}

// ListenAddr returns the address the HTTP server binds to
func ListenAddr() string {
	return fmt.Sprintf(":%d", Port)
}
