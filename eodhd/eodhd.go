// Package eodhd retrieves daily history, splits and tickers from EOD Historical Data.
//
// It serves as a fallback provider: one key gives access to the daily
// history, the splits and the list of US tickers, without pagination.
package eodhd

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/etnz/quotes"
	"github.com/etnz/quotes/date"
	"github.com/shopspring/decimal"
)

// Endpoint is the default API address.
const Endpoint = "https://eodhd.com/api"

// exchange is the EODHD code for the US exchanges altogether.
const exchange = "US"

// Client is an EODHD client.
type Client struct {
	apiKey   string
	endpoint string
	http     *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithEndpoint overrides the API address.
func WithEndpoint(endpoint string) Option {
	return func(c *Client) { c.endpoint = strings.TrimSuffix(endpoint, "/") }
}

// WithHTTPClient sets the http client.
func WithHTTPClient(hc *http.Client) Option { return func(c *Client) { c.http = hc } }

// NewClient returns a client authenticating with apiKey.
func NewClient(apiKey string, opts ...Option) *Client {
	c := &Client{apiKey: apiKey, endpoint: Endpoint, http: &http.Client{Timeout: time.Minute}}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) url(path string) string {
	q := url.Values{"fmt": {"json"}, "api_token": {c.apiKey}}
	return c.endpoint + path + "?" + q.Encode()
}

// ticker is the EODHD code of a US symbol.
func ticker(symbol string) string { return url.PathEscape(symbol) + "." + exchange }

// FullHistory returns the daily bars of symbol since its listing.
func (c *Client) FullHistory(ctx context.Context, symbol string) (quotes.Bars, error) {
	// [{"date": "2024-02-13", "open": 675.066, "high": 684.219, "low": 648.659,
	//   "close": 668.445, "adjusted_close": 67.705, "volume": 0}]
	// Prices are as traded. adjusted_close also accounts for dividends, so it is ignored.
	var content []struct {
		Date   *date.Date       `json:"date"`
		Open   *decimal.Decimal `json:"open"`
		High   *decimal.Decimal `json:"high"`
		Low    *decimal.Decimal `json:"low"`
		Close  *decimal.Decimal `json:"close"`
		Volume *float64         `json:"volume"`
	}
	if err := c.jwget(ctx, c.url("/eod/"+ticker(symbol)), &content); err != nil {
		return nil, fmt.Errorf("history %s: %w", symbol, err)
	}
	bars := make(quotes.Bars, len(content))
	for i, r := range content {
		if r.Date == nil || r.Open == nil || r.High == nil || r.Low == nil || r.Close == nil || r.Volume == nil {
			return nil, fmt.Errorf("history %s: %w: incomplete bar #%d", symbol, quotes.ErrMalformed, i)
		}
		bars[r.Date.Start(quotes.Exchange).Unix()] = quotes.Bar{
			Open: *r.Open, High: *r.High, Low: *r.Low, Close: *r.Close,
			Volume: int64(*r.Volume),
		}
	}
	return bars, nil
}

// Splits returns the split history of symbol.
func (c *Client) Splits(ctx context.Context, symbol string) (quotes.Splits, error) {
	// [{"date": "2020-08-31", "split": "4.000000/1.000000"}]
	var content []struct {
		Date  *date.Date `json:"date"`
		Split string     `json:"split"`
	}
	if err := c.jwget(ctx, c.url("/splits/"+ticker(symbol)), &content); err != nil {
		return nil, fmt.Errorf("splits %s: %w", symbol, err)
	}
	splits := make(quotes.Splits, 0, len(content))
	for _, s := range content {
		if s.Date == nil {
			return nil, fmt.Errorf("splits %s: %w: split without date", symbol, quotes.ErrMalformed)
		}
		to, from, ok := strings.Cut(s.Split, "/")
		if !ok {
			return nil, fmt.Errorf("splits %s: %w: invalid split format %q", symbol, quotes.ErrMalformed, s.Split)
		}
		num, err := decimal.NewFromString(to)
		if err != nil {
			return nil, fmt.Errorf("splits %s: %w: invalid numerator in %q", symbol, quotes.ErrMalformed, s.Split)
		}
		den, err := decimal.NewFromString(from)
		if err != nil {
			return nil, fmt.Errorf("splits %s: %w: invalid denominator in %q", symbol, quotes.ErrMalformed, s.Split)
		}
		splits = append(splits, quotes.Split{Date: *s.Date, From: den, To: num})
	}
	if err := splits.Validate(); err != nil {
		return nil, fmt.Errorf("splits %s: %w", symbol, err)
	}
	return splits, nil
}

// Tickers lists the common stocks traded in the US.
func (c *Client) Tickers(ctx context.Context) (quotes.Directory, error) {
	// [{"Code": "AAPL", "Name": "Apple Inc", "Country": "USA", "Exchange": "NASDAQ",
	//   "Currency": "USD", "Type": "Common Stock", "Isin": "US0378331005"}]
	var content []struct {
		Code string `json:"Code"`
		Name string `json:"Name"`
		Type string `json:"Type"`
	}
	if err := c.jwget(ctx, c.url("/exchange-symbol-list/"+exchange), &content); err != nil {
		return nil, fmt.Errorf("listing eodhd tickers: %w", err)
	}
	d := make(quotes.Directory, len(content))
	for _, t := range content {
		if t.Type != "Common Stock" {
			continue
		}
		if t.Code == "" {
			return nil, fmt.Errorf("listing eodhd tickers: %w: ticker without code (%q)", quotes.ErrMalformed, t.Name)
		}
		d[t.Code] = t.Name
	}
	return d, nil
}
