package quotes

import (
	"context"
	"errors"
	"fmt"
	"log"
	"maps"
	"regexp"
	"strings"
	"time"

	"github.com/etnz/quotes/cache"
	"github.com/shopspring/decimal"
)

// Cache keys.
const (
	KeyTickers   = "tickers"
	KeyWatchlist = "watchlist"
)

// HistoricalKey is the cache key of the full daily history of symbol.
func HistoricalKey(symbol string) string { return "historical." + symbol }

// IntradayKey is the cache key of the recent intraday bars of symbol.
func IntradayKey(symbol string) string { return "intraday." + symbol }

// SplitsKey is the cache key of the split history of symbol.
func SplitsKey(symbol string) string { return "splits." + symbol }

// TickerLister lists every known ticker.
type TickerLister interface {
	Tickers(ctx context.Context) (Directory, error)
}

// HistoryFetcher retrieves the full daily history of a symbol.
type HistoryFetcher interface {
	FullHistory(ctx context.Context, symbol string) (Bars, error)
}

// IntradayFetcher retrieves a short window of recent intraday bars.
type IntradayFetcher interface {
	Intraday(ctx context.Context, symbol string) (Bars, error)
}

// SplitFetcher retrieves the split history of a symbol.
type SplitFetcher interface {
	Splits(ctx context.Context, symbol string) (Splits, error)
}

// Sources are the upstream providers of a Service. A nil source means the
// corresponding dataset is only ever read from the cache.
type Sources struct {
	Tickers  TickerLister
	History  HistoryFetcher
	Intraday IntradayFetcher
	Splits   SplitFetcher
}

// Watchlist maps tracked symbols to their last observed close.
type Watchlist map[string]decimal.Decimal

// ErrNotWatched is returned when removing a symbol that is not in the watchlist.
var ErrNotWatched = errors.New("symbol not in watchlist")

// ErrInvalidSymbol is returned for symbols that cannot be used as cache keys.
var ErrInvalidSymbol = errors.New("invalid symbol")

var validSymbol = regexp.MustCompile(`^[A-Z0-9][A-Z0-9.\-]{0,19}$`)

// NormalizeSymbol upper-cases symbol and checks it is a valid ticker.
func NormalizeSymbol(symbol string) (string, error) {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	if !validSymbol.MatchString(s) {
		return "", fmt.Errorf("%w %q", ErrInvalidSymbol, symbol)
	}
	return s, nil
}

// Service is the entry point of user interfaces.
//
// It owns the layout of the cache, the expiration policy of every dataset,
// and the watchlist. A Service is not safe for concurrent use.
type Service struct {
	orch *Orchestrator
	src  Sources
	loc  *time.Location

	watchlist Watchlist // nil until loaded
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithLocation sets the time zone split dates are interpreted in.
func WithLocation(loc *time.Location) ServiceOption { return func(s *Service) { s.loc = loc } }

// NewService returns a Service reading through orch, populated from src.
func NewService(orch *Orchestrator, src Sources, opts ...ServiceOption) *Service {
	s := &Service{orch: orch, src: src, loc: Exchange}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ListTickers returns every known ticker. The directory never expires.
func (s *Service) ListTickers(ctx context.Context) (Directory, error) {
	var fetch FetchFunc[Directory]
	if s.src.Tickers != nil {
		fetch = s.src.Tickers.Tickers
	}
	return GetOrPopulate(ctx, s.orch, KeyTickers, fetch, cache.Never())
}

// SearchTickers returns the tickers matching term, see Directory.Search.
func (s *Service) SearchTickers(ctx context.Context, term string) ([]Listing, error) {
	d, err := s.ListTickers(ctx)
	if err != nil {
		return nil, err
	}
	return d.Search(term), nil
}

// History returns the raw, unadjusted daily history of symbol.
// The full history is fetched once and then kept up to date by Intraday.
func (s *Service) History(ctx context.Context, symbol string) (Series, error) {
	symbol, err := NormalizeSymbol(symbol)
	if err != nil {
		return nil, err
	}
	bars, err := GetOrPopulate(ctx, s.orch, HistoricalKey(symbol), s.historyFetch(symbol), cache.Never())
	if err != nil {
		return nil, err
	}
	return bars.Series(), nil
}

// AdjustedHistory returns the daily history of symbol adjusted for its splits.
func (s *Service) AdjustedHistory(ctx context.Context, symbol string) (Series, error) {
	raw, err := s.History(ctx, symbol)
	if err != nil {
		return nil, err
	}
	splits, err := s.Splits(ctx, symbol)
	if err != nil {
		return nil, err
	}
	return Adjust(raw, splits, s.loc)
}

// Intraday returns the recent intraday bars of symbol, and merges them into its history.
func (s *Service) Intraday(ctx context.Context, symbol string) (Series, error) {
	symbol, err := NormalizeSymbol(symbol)
	if err != nil {
		return nil, err
	}
	var fetch FetchFunc[Bars]
	if s.src.Intraday != nil {
		fetch = func(ctx context.Context) (Bars, error) { return s.src.Intraday.Intraday(ctx, symbol) }
	}
	bars, err := GetOrPopulate(ctx, s.orch, IntradayKey(symbol), fetch, cache.Default)
	if err != nil {
		return nil, err
	}
	if _, err := UpdateMerge(ctx, s.orch, HistoricalKey(symbol), bars, s.historyFetch(symbol), cache.Never()); err != nil {
		return nil, fmt.Errorf("updating history of %s: %w", symbol, err)
	}
	return bars.Series(), nil
}

// LastClose returns the most recent close of symbol, rounded to the cent.
func (s *Service) LastClose(ctx context.Context, symbol string) (decimal.Decimal, error) {
	series, err := s.Intraday(ctx, symbol)
	if err != nil {
		return decimal.Zero, err
	}
	last, err := series.Last()
	if err != nil {
		return decimal.Zero, fmt.Errorf("last close of %s: %w", symbol, err)
	}
	return last.Close.Round(2), nil
}

// Splits returns the split history of symbol.
func (s *Service) Splits(ctx context.Context, symbol string) (Splits, error) {
	symbol, err := NormalizeSymbol(symbol)
	if err != nil {
		return nil, err
	}
	var fetch FetchFunc[Splits]
	if s.src.Splits != nil {
		fetch = func(ctx context.Context) (Splits, error) { return s.src.Splits.Splits(ctx, symbol) }
	}
	return GetOrPopulate(ctx, s.orch, SplitsKey(symbol), fetch, cache.Default)
}

// historyFetch returns the fetch function for the full history of symbol, or nil.
func (s *Service) historyFetch(symbol string) FetchFunc[Bars] {
	if s.src.History == nil {
		return nil
	}
	return func(ctx context.Context) (Bars, error) { return s.src.History.FullHistory(ctx, symbol) }
}

// Load reads the watchlist from the cache, defaulting to AAPL alone.
func (s *Service) Load(ctx context.Context) error {
	w, err := GetOrPopulate[Watchlist](ctx, s.orch, KeyWatchlist, func(context.Context) (Watchlist, error) {
		return Watchlist{"AAPL": decimal.Zero}, nil
	}, cache.Never())
	if err != nil {
		return err
	}
	s.watchlist = w
	return nil
}

// Save persists the watchlist.
func (s *Service) Save() error {
	if s.watchlist == nil {
		return nil
	}
	_, err := s.orch.store.Put(KeyWatchlist, s.watchlist, cache.Never())
	return err
}

// Watchlist returns a copy of the watchlist, loading it if needed.
func (s *Service) Watchlist(ctx context.Context) (Watchlist, error) {
	if s.watchlist == nil {
		if err := s.Load(ctx); err != nil {
			return nil, err
		}
	}
	return maps.Clone(s.watchlist), nil
}

// SaveWatchlist replaces and persists the watchlist.
func (s *Service) SaveWatchlist(w Watchlist) error {
	if w == nil {
		w = Watchlist{}
	}
	s.watchlist = maps.Clone(w)
	return s.Save()
}

// AddToWatchlist starts tracking symbol. Its price is zero until the next refresh.
func (s *Service) AddToWatchlist(ctx context.Context, symbol string) error {
	symbol, err := NormalizeSymbol(symbol)
	if err != nil {
		return err
	}
	w, err := s.Watchlist(ctx)
	if err != nil {
		return err
	}
	if _, ok := w[symbol]; !ok {
		w[symbol] = decimal.Zero
	}
	return s.SaveWatchlist(w)
}

// RemoveFromWatchlist stops tracking symbol.
func (s *Service) RemoveFromWatchlist(ctx context.Context, symbol string) error {
	symbol, err := NormalizeSymbol(symbol)
	if err != nil {
		return err
	}
	w, err := s.Watchlist(ctx)
	if err != nil {
		return err
	}
	if _, ok := w[symbol]; !ok {
		return fmt.Errorf("%w: %s", ErrNotWatched, symbol)
	}
	delete(w, symbol)
	return s.SaveWatchlist(w)
}

// RefreshWatchlist updates the last close of every tracked symbol and saves the watchlist.
//
// Symbols whose close cannot be retrieved keep their previous value; their
// errors are joined in the returned error.
func (s *Service) RefreshWatchlist(ctx context.Context) (Watchlist, error) {
	w, err := s.Watchlist(ctx)
	if err != nil {
		return nil, err
	}
	var errs []error
	for symbol := range w {
		price, err := s.LastClose(ctx, symbol)
		if err != nil {
			log.Printf("warning: cannot refresh %s: %v", symbol, err)
			errs = append(errs, fmt.Errorf("%s: %w", symbol, err))
			continue
		}
		w[symbol] = price
	}
	if err := s.SaveWatchlist(w); err != nil {
		return nil, err
	}
	return maps.Clone(w), errors.Join(errs...)
}

// Invalidate removes key from the cache.
func (s *Service) Invalidate(key string) error {
	if err := s.orch.store.Invalidate(key); err != nil {
		return err
	}
	if key == KeyWatchlist {
		s.watchlist = nil
	}
	return nil
}
