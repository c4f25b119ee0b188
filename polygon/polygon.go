// Package polygon retrieves tickers, intraday aggregates and splits from polygon.io.
//
// The free tier allows 5 requests per minute. Listing every ticker takes
// several pages, so the ticker listing goes through a paginate.Fetcher that
// waits out the throttling.
package polygon

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/etnz/quotes"
	"github.com/etnz/quotes/date"
	"github.com/etnz/quotes/paginate"
	"github.com/shopspring/decimal"
)

// Endpoint is the default API address.
const Endpoint = "https://api.polygon.io"

// Exchanges are the market segments listed by Tickers, in order.
var Exchanges = []string{"XNYS", "XNAS"}

// Client is a polygon.io REST client.
type Client struct {
	apiKey   string
	endpoint string
	http     *http.Client
	now      func() time.Time
	paging   []paginate.Option
}

// Option configures a Client.
type Option func(*Client)

// WithEndpoint overrides the API address.
func WithEndpoint(endpoint string) Option {
	return func(c *Client) { c.endpoint = strings.TrimSuffix(endpoint, "/") }
}

// WithHTTPClient sets the http client.
func WithHTTPClient(hc *http.Client) Option { return func(c *Client) { c.http = hc } }

// WithClock replaces time.Now, used to compute the intraday window.
func WithClock(now func() time.Time) Option { return func(c *Client) { c.now = now } }

// WithPaging configures the fetcher used to list tickers.
func WithPaging(opts ...paginate.Option) Option {
	return func(c *Client) { c.paging = append(c.paging, opts...) }
}

// NewClient returns a client authenticating with apiKey.
func NewClient(apiKey string, opts ...Option) *Client {
	c := &Client{
		apiKey:   apiKey,
		endpoint: Endpoint,
		http:     &http.Client{Timeout: 30 * time.Second},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// url returns the address of path with query and the api key.
func (c *Client) url(path string, query url.Values) string {
	if query == nil {
		query = url.Values{}
	}
	query.Set("apiKey", c.apiKey)
	return c.endpoint + path + "?" + query.Encode()
}

// withKey appends the api key to a continuation url returned by the API.
func (c *Client) withKey(next string) string {
	if next == "" {
		return ""
	}
	u, err := url.Parse(next)
	if err != nil {
		return next + "&apiKey=" + url.QueryEscape(c.apiKey)
	}
	q := u.Query()
	q.Set("apiKey", c.apiKey)
	u.RawQuery = q.Encode()
	return u.String()
}

// tickersPage is the payload of /v3/reference/tickers.
type tickersPage struct {
	Status  string `json:"status"`
	Error   string `json:"error"`
	NextURL string `json:"next_url"`
	Results *[]struct {
		Ticker string `json:"ticker"`
		Name   string `json:"name"`
	} `json:"results"`
}

// Page implements paginate.Source for the tickers listing.
func (c *Client) Page(ctx context.Context, request string) (paginate.Page[string], error) {
	var p tickersPage
	err := c.jwget(ctx, request, &p)
	var se *statusError
	if errors.As(err, &se) && se.code == http.StatusTooManyRequests {
		return paginate.Page[string]{RateLimited: true}, nil
	}
	if err != nil {
		return paginate.Page[string]{}, err
	}
	// The API reports throttling with a 200 and an ERROR status.
	if p.Status == "ERROR" {
		return paginate.Page[string]{RateLimited: true}, nil
	}
	if p.Results == nil {
		return paginate.Page[string]{}, fmt.Errorf("%w: tickers page without results", quotes.ErrMalformed)
	}
	items := make(map[string]string, len(*p.Results))
	for _, r := range *p.Results {
		if r.Ticker == "" {
			return paginate.Page[string]{}, fmt.Errorf("%w: ticker without symbol (%q)", quotes.ErrMalformed, r.Name)
		}
		items[r.Ticker] = r.Name
	}
	return paginate.Page[string]{Items: items, Next: c.withKey(p.NextURL)}, nil
}

// Tickers lists every stock traded on the NYSE and the NASDAQ.
func (c *Client) Tickers(ctx context.Context) (quotes.Directory, error) {
	seeds := make([]string, 0, len(Exchanges))
	for _, mic := range Exchanges {
		seeds = append(seeds, c.url("/v3/reference/tickers", url.Values{
			"market":   {"stocks"},
			"exchange": {mic},
			"limit":    {"1000"},
		}))
	}
	d, err := paginate.New[string](c, c.paging...).FetchAll(ctx, seeds...)
	if err != nil {
		return nil, fmt.Errorf("listing polygon tickers: %w", err)
	}
	return quotes.Directory(d), nil
}

// IntradayDays is the width of the intraday window.
const IntradayDays = 6

// Intraday returns the 15 minutes aggregates of symbol over the last IntradayDays days.
func (c *Client) Intraday(ctx context.Context, symbol string) (quotes.Bars, error) {
	window := date.LastDays(date.Of(c.now()), IntradayDays)
	path := fmt.Sprintf("/v2/aggs/ticker/%s/range/15/minute/%s/%s", url.PathEscape(symbol), window.From, window.To)

	var content struct {
		Results *[]struct {
			T *int64   `json:"t"` // milliseconds
			O *float64 `json:"o"`
			H *float64 `json:"h"`
			L *float64 `json:"l"`
			C *float64 `json:"c"`
			V *float64 `json:"v"`
		} `json:"results"`
	}
	if err := c.jwget(ctx, c.url(path, url.Values{"limit": {"50000"}}), &content); err != nil {
		return nil, fmt.Errorf("intraday %s: %w", symbol, err)
	}
	if content.Results == nil {
		return nil, fmt.Errorf("intraday %s: %w: no results", symbol, quotes.ErrMalformed)
	}
	bars := make(quotes.Bars, len(*content.Results))
	for i, r := range *content.Results {
		if r.T == nil || r.O == nil || r.H == nil || r.L == nil || r.C == nil || r.V == nil {
			return nil, fmt.Errorf("intraday %s: %w: incomplete aggregate #%d", symbol, quotes.ErrMalformed, i)
		}
		bars[*r.T/1000] = quotes.Bar{
			Open:   decimal.NewFromFloat(*r.O).Round(2),
			High:   decimal.NewFromFloat(*r.H).Round(2),
			Low:    decimal.NewFromFloat(*r.L).Round(2),
			Close:  decimal.NewFromFloat(*r.C).Round(2),
			Volume: int64(*r.V),
		}
	}
	return bars, nil
}

// Splits returns the split history of symbol.
func (c *Client) Splits(ctx context.Context, symbol string) (quotes.Splits, error) {
	var content struct {
		Results *[]struct {
			ExecutionDate *date.Date       `json:"execution_date"`
			SplitFrom     *decimal.Decimal `json:"split_from"`
			SplitTo       *decimal.Decimal `json:"split_to"`
		} `json:"results"`
	}
	addr := c.url("/v3/reference/splits", url.Values{"ticker": {symbol}, "limit": {"1000"}})
	if err := c.jwget(ctx, addr, &content); err != nil {
		return nil, fmt.Errorf("splits %s: %w", symbol, err)
	}
	if content.Results == nil {
		return nil, fmt.Errorf("splits %s: %w: no results", symbol, quotes.ErrMalformed)
	}
	splits := make(quotes.Splits, 0, len(*content.Results))
	for i, r := range *content.Results {
		if r.ExecutionDate == nil || r.SplitFrom == nil || r.SplitTo == nil {
			return nil, fmt.Errorf("splits %s: %w: incomplete split #%d", symbol, quotes.ErrMalformed, i)
		}
		splits = append(splits, quotes.Split{Date: *r.ExecutionDate, From: *r.SplitFrom, To: *r.SplitTo})
	}
	if err := splits.Validate(); err != nil {
		return nil, fmt.Errorf("splits %s: %w", symbol, err)
	}
	return splits, nil
}
