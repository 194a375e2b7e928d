package cmd

import (
	"github.com/lepinkainen/buyback/internal/buyback"
	"github.com/lepinkainen/buyback/internal/config"
	"github.com/lepinkainen/buyback/internal/googlebooks"
	"github.com/lepinkainen/buyback/internal/lookup"
	"github.com/spf13/viper"
)

// newService builds the lookup workflow from the current configuration.
func newService() *lookup.Service {
	client := googlebooks.NewClient(
		googlebooks.WithBaseURL(viper.GetString("googlebooks.baseurl")),
		googlebooks.WithAPIKey(config.GoogleBooksAPIKey),
		googlebooks.WithRateLimit(viper.GetInt("googlebooks.ratelimit")),
		googlebooks.WithTimeout(viper.GetDuration("googlebooks.timeout")),
	)
	resolver := googlebooks.NewResolver(client, config.CacheEnabled)

	fetcher := buyback.NewFetcher(fetcherOptions())

	return lookup.NewService(resolver, fetcher, viper.GetString("buyback.baseurl"))
}

func fetcherOptions() buyback.Options {
	return buyback.Options{
		Selector:          viper.GetString("buyback.selector"),
		NavigationTimeout: viper.GetDuration("buyback.navigationtimeout"),
		SelectorTimeout:   viper.GetDuration("buyback.selectortimeout"),
		IdleWindow:        viper.GetDuration("buyback.idlewindow"),
		IdleConnections:   viper.GetInt("buyback.idleconnections"),
		Headless:          config.Headless,
	}
}
