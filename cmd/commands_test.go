package cmd

import (
	"bytes"
	"context"
	"flag"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/etnz/quotes"
	"github.com/etnz/quotes/cache"
	"github.com/etnz/quotes/date"
	"github.com/google/subcommands"
	"github.com/shopspring/decimal"
)

// offlineCache points the commands to a fresh cache folder, without providers,
// and returns the store to seed it.
func offlineCache(t *testing.T) *cache.Store {
	t.Helper()
	dir := t.TempDir()
	saved := [...]string{*configFile, *cacheDir}
	savedBool := [...]bool{*offline, *rawOutput}
	t.Cleanup(func() {
		*configFile, *cacheDir = saved[0], saved[1]
		*offline, *rawOutput = savedBool[0], savedBool[1]
	})
	*configFile = filepath.Join(dir, "config.yaml")
	*cacheDir = filepath.Join(dir, "cache")
	*offline, *rawOutput = true, true

	store, err := cache.Open(*cacheDir)
	if err != nil {
		t.Fatal(err)
	}
	return store
}

func put(t *testing.T, store *cache.Store, key string, payload any) {
	t.Helper()
	if _, err := store.Put(key, payload, cache.Never()); err != nil {
		t.Fatal(err)
	}
}

// run executes c with args and returns what it printed.
func run(t *testing.T, c subcommands.Command, args ...string) (string, subcommands.ExitStatus) {
	t.Helper()
	f := flag.NewFlagSet(c.Name(), flag.ContinueOnError)
	c.SetFlags(f)
	if err := f.Parse(args); err != nil {
		t.Fatal(err)
	}
	var b bytes.Buffer
	stdout = &b
	defer func() { stdout = os.Stdout }()
	status := c.Execute(context.Background(), f)
	return b.String(), status
}

func day(y int, m time.Month, d int) int64 {
	return date.New(y, m, d).Start(quotes.Exchange).Unix()
}

func flatBar(p string) quotes.Bar {
	v := decimal.RequireFromString(p)
	return quotes.Bar{Open: v, High: v, Low: v, Close: v, Volume: 100}
}

func seedAAPL(t *testing.T, store *cache.Store) {
	put(t, store, quotes.HistoricalKey("AAPL"), quotes.Bars{
		day(2020, 8, 28): flatBar("499.23"),
		day(2020, 8, 31): flatBar("129.04"),
	})
	put(t, store, quotes.SplitsKey("AAPL"), quotes.Splits{quotes.NewSplit(date.New(2020, 8, 31), 1, 4)})
}

func TestHistoryCmd(t *testing.T) {
	seedAAPL(t, offlineCache(t))

	out, status := run(t, &historyCmd{}, "aapl")
	if status != subcommands.ExitSuccess {
		t.Fatalf("history status = %v, output:\n%s", status, out)
	}
	if !strings.Contains(out, "| 2020-08-28 | $124.81 |") || !strings.Contains(out, "| 2020-08-31 | $129.04 |") {
		t.Errorf("history output:\n%s", out)
	}

	out, _ = run(t, &historyCmd{}, "-unadjusted", "-n", "1", "AAPL")
	if strings.Contains(out, "2020-08-28") || !strings.Contains(out, "$129.04") {
		t.Errorf("history -unadjusted -n 1 output:\n%s", out)
	}
}

func TestHistoryCmdErrors(t *testing.T) {
	offlineCache(t)
	if _, status := run(t, &historyCmd{}); status != subcommands.ExitUsageError {
		t.Errorf("history without symbol status = %v, want usage error", status)
	}
	if _, status := run(t, &historyCmd{}, "not a symbol"); status != subcommands.ExitUsageError {
		t.Errorf("history with an invalid symbol status = %v, want usage error", status)
	}
	if _, status := run(t, &historyCmd{}, "MSFT"); status != subcommands.ExitFailure {
		t.Errorf("history of an uncached symbol offline status = %v, want failure", status)
	}
}

func TestTickersCmd(t *testing.T) {
	store := offlineCache(t)
	put(t, store, quotes.KeyTickers, quotes.Directory{"AAPL": "Apple Inc.", "MSFT": "Microsoft Corp", "AMZN": "Amazon.com Inc"})

	out, status := run(t, &tickersCmd{}, "micro")
	if status != subcommands.ExitSuccess {
		t.Fatalf("tickers status = %v", status)
	}
	if !strings.Contains(out, "| MSFT | Microsoft Corp |") || strings.Contains(out, "AAPL") {
		t.Errorf("tickers micro output:\n%s", out)
	}

	out, _ = run(t, &tickersCmd{})
	if strings.Count(out, "\n| ") != 4 { // header and 3 tickers
		t.Errorf("tickers output:\n%s", out)
	}
}

func TestSplitsCmd(t *testing.T) {
	seedAAPL(t, offlineCache(t))
	out, status := run(t, &splitsCmd{}, "AAPL")
	if status != subcommands.ExitSuccess || !strings.Contains(out, "| 2020-08-31 | 4-for-1 | 0.2500 |") {
		t.Errorf("splits status = %v, output:\n%s", status, out)
	}
}

func TestCloseCmd(t *testing.T) {
	store := offlineCache(t)
	put(t, store, quotes.HistoricalKey("AAPL"), quotes.Bars{day(2025, 1, 9): flatBar("236")})
	put(t, store, quotes.IntradayKey("AAPL"), quotes.Bars{
		day(2025, 1, 10) + 34200: flatBar("236.5"),
		day(2025, 1, 10) + 35100: flatBar("237.126"),
	})

	out, status := run(t, &closeCmd{}, "AAPL")
	if status != subcommands.ExitSuccess || out != "AAPL $237.13\n" {
		t.Errorf("close = %v %q, want AAPL $237.13", status, out)
	}
	l, err := store.Get(quotes.HistoricalKey("AAPL"))
	if err != nil {
		t.Fatal(err)
	}
	var merged quotes.Bars
	if err := l.Entry.Decode(&merged); err != nil || len(merged) != 3 {
		t.Errorf("history after close has %d bars (%v), want 3", len(merged), err)
	}
}

func TestWatchlistCmd(t *testing.T) {
	store := offlineCache(t)

	out, status := run(t, &watchlistCmd{})
	if status != subcommands.ExitSuccess || !strings.Contains(out, "| AAPL | - |") {
		t.Fatalf("watchlist = %v, output:\n%s", status, out)
	}

	out, status = run(t, &watchlistAddCmd{}, "msft", "ibm")
	if status != subcommands.ExitSuccess || !strings.Contains(out, "| IBM | - |") || !strings.Contains(out, "| MSFT | - |") {
		t.Errorf("watchlist add = %v, output:\n%s", status, out)
	}

	_, status = run(t, &watchlistRemoveCmd{}, "AAPL", "TSLA")
	if status != subcommands.ExitFailure {
		t.Errorf("watchlist remove of an untracked symbol status = %v, want failure", status)
	}

	l, err := store.Get(quotes.KeyWatchlist)
	if err != nil {
		t.Fatal(err)
	}
	var w quotes.Watchlist
	if err := l.Entry.Decode(&w); err != nil {
		t.Fatal(err)
	}
	if _, ok := w["AAPL"]; ok || len(w) != 2 {
		t.Errorf("persisted watchlist = %v, want IBM and MSFT", w)
	}
}

func TestWatchlistRefreshCmd(t *testing.T) {
	store := offlineCache(t)
	put(t, store, quotes.KeyWatchlist, quotes.Watchlist{"AAPL": decimal.Zero, "MSFT": decimal.RequireFromString("400")})
	put(t, store, quotes.HistoricalKey("AAPL"), quotes.Bars{})
	put(t, store, quotes.IntradayKey("AAPL"), quotes.Bars{day(2025, 1, 10) + 34200: flatBar("236.5")})

	out, status := run(t, &watchlistRefreshCmd{})
	if status != subcommands.ExitFailure {
		t.Errorf("refresh with MSFT uncached status = %v, want failure", status)
	}
	if !strings.Contains(out, "| AAPL | $236.50 |") || !strings.Contains(out, "| MSFT | $400.00 |") {
		t.Errorf("refresh output:\n%s", out)
	}
}

func TestCacheCmds(t *testing.T) {
	store := offlineCache(t)
	seedAAPL(t, store)

	out, status := run(t, &cacheLsCmd{})
	if status != subcommands.ExitSuccess || !strings.Contains(out, "| splits.AAPL | fresh | never |") {
		t.Errorf("cache ls = %v, output:\n%s", status, out)
	}

	out, status = run(t, &cacheInvalidateCmd{}, "splits.AAPL")
	if status != subcommands.ExitSuccess || out != "splits.AAPL invalidated\n" {
		t.Errorf("cache invalidate = %v %q", status, out)
	}
	if _, status := run(t, &cacheInvalidateCmd{}, "splits.AAPL"); status != subcommands.ExitFailure {
		t.Errorf("cache invalidate of a missing key status = %v, want failure", status)
	}
	if _, status := run(t, &cacheInvalidateCmd{}, "-f", "splits.AAPL"); status != subcommands.ExitSuccess {
		t.Errorf("cache invalidate -f of a missing key status = %v, want success", status)
	}

	if _, err := store.Put("intraday.AAPL", quotes.Bars{}, cache.At(time.Now().Add(-time.Hour))); err != nil {
		t.Fatal(err)
	}
	out, status = run(t, &cachePruneCmd{})
	if status != subcommands.ExitSuccess || out != "1 expired entries removed\n" {
		t.Errorf("cache prune = %v %q", status, out)
	}
}

func TestTopicCmd(t *testing.T) {
	offlineCache(t)

	out, status := run(t, &docCmd{}, "splits")
	if status != subcommands.ExitSuccess || !strings.HasPrefix(out, "# Splits") {
		t.Errorf("topic splits = %v:\n%s", status, out)
	}

	out, _ = run(t, &docCmd{})
	if !strings.HasPrefix(out, "# quotes") {
		t.Errorf("topic without argument should print the overview:\n%s", out)
	}

	out, status = run(t, &docCmd{}, "-l")
	if status != subcommands.ExitSuccess || out != "cache\nconfig\nsplits\nwatchlist\n" {
		t.Errorf("topic -l = %v %q", status, out)
	}

	if _, status := run(t, &docCmd{}, "portfolio"); status != subcommands.ExitFailure {
		t.Errorf("topic of an unknown topic status = %v, want failure", status)
	}

	if u := (&docCmd{}).Usage(); !strings.Contains(u, "Topics: cache, config, splits, watchlist") {
		t.Errorf("Usage() does not list the topics:\n%s", u)
	}
}
