package renderer

import (
	"sort"
	"time"

	"github.com/etnz/quotes"
	"github.com/etnz/quotes/cache"
	"github.com/shopspring/decimal"
)

// Tickers is a listing of symbols, optionally filtered by a search term.
type Tickers struct {
	Term     string
	Listings []quotes.Listing
}

// RenderTickers renders a ticker listing.
func RenderTickers(t *Tickers) string {
	return renderTemplate("tickers", "tickers.md", nil, t)
}

// Series is a price series of a symbol.
type Series struct {
	Title    string
	Symbol   string
	Intraday bool // show the time of day
	Location *time.Location
	Points   quotes.Series
}

// SeriesRow is a Point with its displayed time.
type SeriesRow struct {
	When string
	quotes.Point
}

// Rows formats the timestamp of every point.
func (s *Series) Rows() []SeriesRow {
	layout := time.DateOnly
	if s.Intraday {
		layout = "2006-01-02 15:04"
	}
	rows := make([]SeriesRow, len(s.Points))
	for i, p := range s.Points {
		rows[i] = SeriesRow{When: time.Unix(p.Timestamp, 0).In(s.Location).Format(layout), Point: p}
	}
	return rows
}

// RenderSeries renders a series as a table of OHLCV rows.
func RenderSeries(s *Series) string {
	if s.Location == nil {
		s.Location = quotes.Exchange
	}
	return renderTemplate("series", "series.md", map[string]string{"series_row": "series_row.md"}, s)
}

// Splits is the split history of a symbol.
type Splits struct {
	Symbol string
	Splits quotes.Splits
}

// RenderSplits renders a split history.
func RenderSplits(s *Splits) string {
	return renderTemplate("splits", "splits.md", nil, s)
}

// WatchRow is a line of the watchlist.
type WatchRow struct {
	Symbol string
	Close  decimal.Decimal
}

// Watchlist is a sorted view of a quotes.Watchlist.
type Watchlist struct {
	Rows []WatchRow
}

// NewWatchlist sorts w by symbol.
func NewWatchlist(w quotes.Watchlist) *Watchlist {
	rows := make([]WatchRow, 0, len(w))
	for s, c := range w {
		rows = append(rows, WatchRow{Symbol: s, Close: c})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Symbol < rows[j].Symbol })
	return &Watchlist{Rows: rows}
}

// RenderWatchlist renders the watchlist.
func RenderWatchlist(w *Watchlist) string {
	return renderTemplate("watchlist", "watchlist.md", nil, w)
}

// CacheRow describes a cache entry.
type CacheRow struct {
	Key     string
	State   cache.State
	Expires string
}

// Cache is the content of a cache directory.
type Cache struct {
	Dir  string
	Rows []CacheRow
}

// NewCache inspects every entry of store.
func NewCache(store *cache.Store) (*Cache, error) {
	keys, err := store.Keys()
	if err != nil {
		return nil, err
	}
	c := &Cache{Dir: store.Dir()}
	for _, k := range keys {
		row := CacheRow{Key: k, Expires: "-"}
		l, err := store.Get(k)
		if err != nil {
			row.Expires = "corrupt"
			c.Rows = append(c.Rows, row)
			continue
		}
		row.State = l.State
		if at := l.Entry.ExpiresAt(); at != nil {
			row.Expires = at.Local().Format("2006-01-02 15:04")
		} else {
			row.Expires = "never"
		}
		c.Rows = append(c.Rows, row)
	}
	return c, nil
}

// RenderCache renders the cache content.
func RenderCache(c *Cache) string {
	return renderTemplate("cache", "cache.md", nil, c)
}
