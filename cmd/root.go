package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/lepinkainen/buyback/cmd/lookup"
	"github.com/lepinkainen/buyback/internal/cache"
	"github.com/lepinkainen/buyback/internal/config"
	"github.com/lepinkainen/buyback/internal/datastore"
	"github.com/lepinkainen/buyback/internal/server"
	"github.com/lepinkainen/humanlog"
	"github.com/spf13/viper"
)

var (
	runLookup = lookup.Run
	runServer = serve
)

// CLI represents the complete command structure for the buyback application
type CLI struct {
	// Global flags
	Debug bool `help:"Enable debug logging"`

	// Cache flags
	CacheDBFile string `help:"Path to cache SQLite database file" default:"./cache.db"`
	CacheTTL    string `help:"Cache time-to-live duration (e.g., 720h for 30 days)" default:"720h"`
	NoCache     bool   `help:"Disable the metadata cache"`

	Serve  ServeCmd  `cmd:"" default:"withargs" help:"Run the HTTP server"`
	Lookup LookupCmd `cmd:"" help:"Look up a single book and print the buyback offer"`
	Cache  CacheCmd  `cmd:"" help:"Manage the metadata cache"`
}

// ServeCmd represents the serve command
type ServeCmd struct {
	Port      int    `short:"p" help:"Port to listen on (overrides PORT and config)"`
	StaticDir string `help:"Directory with the front-end served at /"`
}

// LookupCmd represents the lookup command
type LookupCmd struct {
	Title       string `arg:"" help:"Book title to search for"`
	BuyPrice    string `short:"b" help:"Price you would pay for the book" required:""`
	Format      string `short:"f" help:"Output format" enum:"text,json,yaml" default:"text"`
	Datasette   bool   `help:"Append the result to the Datasette lookups table"`
	DatasetteDB string `help:"Path to SQLite database file for local Datasette mode"`
}

// CacheCmd represents the cache command and its subcommands
type CacheCmd struct {
	Invalidate cache.InvalidateCacheCmd `cmd:"" help:"Remove cached entries for a source"`
}

// Execute runs the Kong-based CLI
func Execute() {
	var cli CLI

	ctx := kong.Parse(&cli,
		kong.Name("buyback"),
		kong.Description("Look up what vykupujeme-online.sk pays for a book and how much you would earn."),
		kong.UsageOnError(),
	)

	initLogging(cli.Debug)
	if err := initConfig(); err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	updateGlobalConfig(&cli)

	if err := ctx.Run(); err != nil {
		slog.Error("Command failed", "error", err)
		os.Exit(1)
	}
}

func initConfig() error {
	config.SetDefaults()

	viper.AutomaticEnv()
	bindings := map[string]string{
		"port":               "PORT",
		"googlebooks.apikey": "GOOGLE_BOOKS_API_KEY",
		"static.dir":         "STATIC_DIR",
		"buyback.headless":   "BUYBACK_HEADLESS",
	}
	for key, env := range bindings {
		if err := viper.BindEnv(key, env); err != nil {
			return fmt.Errorf("failed to bind %s: %w", env, err)
		}
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("failed to read config file: %w", err)
		}
		slog.Debug("Config file not found, using defaults and environment")
	}

	config.InitConfig()
	return nil
}

func updateGlobalConfig(cli *CLI) {
	viper.Set("cache.dbfile", cli.CacheDBFile)
	viper.Set("cache.ttl", cli.CacheTTL)
	if cli.NoCache {
		viper.Set("cache.enabled", false)
		config.CacheEnabled = false
	}

	config.SetPort(cli.Serve.Port)
	if cli.Serve.StaticDir != "" {
		config.StaticDir = cli.Serve.StaticDir
	}

	if cli.Lookup.DatasetteDB != "" {
		viper.Set("datasette.dbfile", cli.Lookup.DatasetteDB)
	}
}

// Run methods for each command

func (s *ServeCmd) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return runServer(ctx)
}

func serve(ctx context.Context) error {
	handler := server.NewHandler(newService(), config.StaticDir)
	srv := server.New(config.ListenAddr(), handler)

	slog.Info("Starting buyback server", "addr", config.ListenAddr(), "static", config.StaticDir)
	return srv.Run(ctx)
}

func (l *LookupCmd) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := lookup.Options{Format: l.Format}
	if l.Datasette {
		store, err := datastore.NewStore(
			viper.GetString("datasette.mode"),
			viper.GetString("datasette.dbfile"),
			viper.GetString("datasette.remote_url"),
			viper.GetString("datasette.api_token"),
		)
		if err != nil {
			return err
		}
		opts.Store = store
	}

	return runLookup(ctx, newService(), l.Title, l.BuyPrice, opts, os.Stdout)
}

func initLogging(debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}

	handler := humanlog.NewHandler(os.Stdout, &humanlog.Options{
		Level: level,
	})

	slog.SetDefault(slog.New(handler))
}
