// Package cmd implements the CLI application to browse quotes.
package cmd

import (
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/etnz/quotes"
	"github.com/etnz/quotes/alphavantage"
	"github.com/etnz/quotes/cache"
	"github.com/etnz/quotes/eodhd"
	"github.com/etnz/quotes/paginate"
	"github.com/etnz/quotes/polygon"
	"github.com/google/subcommands"
)

// Register the subcommands.
// A main package will call Register() to allow subcommands, and Execute() on the user-selected one.
func Register(c *subcommands.Commander) {
	c.Register(&tickersCmd{}, "quotes")
	c.Register(&historyCmd{}, "quotes")
	c.Register(&intradayCmd{}, "quotes")
	c.Register(&closeCmd{}, "quotes")
	c.Register(&splitsCmd{}, "quotes")

	c.Register(&watchlistCmd{}, "watchlist")

	c.Register(&cacheCmd{}, "cache")

	c.Register(&docCmd{}, "help")
}

// as a CLI application, it has a very short lived lifecycle, so it is ok to use global variables.

var (
	configFile      = flag.String("config", DefaultConfigPath(), "Path to the YAML configuration file")
	cacheDir        = flag.String("cache-dir", "", "Path to the cache folder. Overrides the configuration file")
	polygonKey      = flag.String("polygon-api-key", "", "polygon.io API key. Takes precedence over the "+envPolygonKey+" environment variable")
	alphaVantageKey = flag.String("alpha-vantage-api-key", "", "Alpha Vantage API key. Takes precedence over the "+envAlphaVantageKey+" environment variable")
	eodhdKey        = flag.String("eodhd-api-key", "", "EODHD API key. Takes precedence over the "+envEODHDKey+" environment variable")
	offline         = flag.Bool("offline", false, "Only use the cache, never call the providers")
	rawOutput       = flag.Bool("raw", false, "Print plain markdown instead of rendering it for the terminal")
	verbose         = flag.Bool("v", false, "Log requests and cache activity to stderr")
)

// stdout is where commands print their report.
var stdout io.Writer = os.Stdout

// SetupLogging discards the log output unless -v was given. Call it after flag.Parse.
func SetupLogging() {
	log.SetFlags(0)
	if !*verbose {
		log.SetOutput(io.Discard)
	}
}

// loadConfig reads the configuration file and applies the environment and the flags on top of it.
func loadConfig() (*Config, error) {
	cfg, err := LoadConfig(*configFile)
	if err != nil {
		return nil, err
	}
	cfg.applyEnv(os.Getenv)
	if *cacheDir != "" {
		cfg.CacheDir = *cacheDir
	}
	if *polygonKey != "" {
		cfg.PolygonAPIKey = *polygonKey
	}
	if *alphaVantageKey != "" {
		cfg.AlphaVantageAPIKey = *alphaVantageKey
	}
	if *eodhdKey != "" {
		cfg.EODHDAPIKey = *eodhdKey
	}
	return cfg, nil
}

// openStore opens the cache folder described by cfg.
func openStore(cfg *Config, opts ...cache.Option) (*cache.Store, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	opts = append([]cache.Option{cache.WithCutoff(cfg.Cutoff(), loc)}, opts...)
	store, err := cache.Open(cfg.CacheDir, opts...)
	if err != nil {
		return nil, fmt.Errorf("opening cache %q: %w", cfg.CacheDir, err)
	}
	return store, nil
}

// OpenService is the central function to build the quotes service from the configuration.
// polygon.io is preferred for tickers and splits, Alpha Vantage for the daily
// history, EODHD fills in for the missing ones. Providers without an API key,
// or all of them in offline mode, are not used: the matching data must then
// already be in the cache.
func OpenService(opts ...cache.Option) (*quotes.Service, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	store, err := openStore(cfg, opts...)
	if err != nil {
		return nil, err
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	backoff, err := cfg.BackoffDuration()
	if err != nil {
		return nil, err
	}

	var src quotes.Sources
	if *offline {
		log.Println("offline: serving from the cache only")
	} else {
		if cfg.PolygonAPIKey != "" {
			pc := polygon.NewClient(cfg.PolygonAPIKey,
				polygon.WithHTTPClient(httpClient()),
				polygon.WithPaging(
					paginate.WithBackoff(backoff),
					paginate.WithMaxSignals(cfg.MaxSignals()),
					paginate.WithLogger(log.Default()),
				))
			src.Tickers, src.Intraday, src.Splits = pc, pc, pc
		} else {
			log.Printf("warning: no polygon.io API key, set %s or -polygon-api-key", envPolygonKey)
		}
		if cfg.AlphaVantageAPIKey != "" {
			src.History = alphavantage.NewClient(cfg.AlphaVantageAPIKey, alphavantage.WithHTTPClient(httpClient()))
		}
		if cfg.EODHDAPIKey != "" {
			ec := eodhd.NewClient(cfg.EODHDAPIKey, eodhd.WithHTTPClient(httpClient()))
			if src.Tickers == nil {
				src.Tickers = ec
			}
			if src.Splits == nil {
				src.Splits = ec
			}
			if src.History == nil {
				src.History = ec
			}
		}
		if src.History == nil {
			log.Printf("warning: no daily history provider, set %s or %s", envAlphaVantageKey, envEODHDKey)
		}
	}
	return quotes.NewService(quotes.NewOrchestrator(store), src, quotes.WithLocation(loc)), nil
}

func httpClient() *http.Client { return &http.Client{Timeout: time.Minute} }
