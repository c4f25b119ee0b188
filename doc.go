// Package quotes fetches, caches and reconciles daily and intraday price
// series of listed securities from rate-limited upstream providers.
//
// The package is organized around three pieces:
//   - Orchestrator: get-or-populate and update-or-merge semantics on top of
//     a cache.Store, invoking caller supplied fetch functions when an entry
//     is missing or stale.
//   - Adjust: rewrites a raw price Series for stock splits.
//   - Service: the long-lived object a user interface talks to. It owns the
//     cache keys layout, the expiration policy of each dataset and the
//     watchlist.
//
// Upstream providers are plugged into a Service through small interfaces
// (TickerLister, HistoryFetcher, IntradayFetcher, SplitFetcher), implemented
// by the polygon and alphavantage packages.
package quotes
