// Package alphavantage retrieves the full daily history of a stock from Alpha Vantage.
package alphavantage

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PaesslerAG/jsonpath"
	"github.com/etnz/quotes"
	"github.com/etnz/quotes/date"
	"github.com/shopspring/decimal"
)

// Endpoint is the default API address.
const Endpoint = "https://www.alphavantage.co"

// seriesPath locates the daily bars in a TIME_SERIES_DAILY response.
const seriesPath = `$["Time Series (Daily)"]`

// ErrRefused is returned when the API answers with a message instead of data,
// typically when the daily quota is exceeded or the symbol is unknown.
var ErrRefused = errors.New("alpha vantage refused the request")

// Client is an Alpha Vantage client.
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
	c := &Client{
		apiKey:   apiKey,
		endpoint: Endpoint,
		http:     &http.Client{Timeout: time.Minute},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FullHistory returns every daily bar available for symbol, indexed by the
// start of the trading day in the exchange location.
func (c *Client) FullHistory(ctx context.Context, symbol string) (quotes.Bars, error) {
	q := url.Values{
		"function":   {"TIME_SERIES_DAILY"},
		"symbol":     {symbol},
		"outputsize": {"full"},
		"apikey":     {c.apiKey},
	}
	var jobj any
	if err := c.jwget(ctx, c.endpoint+"/query?"+q.Encode(), &jobj); err != nil {
		return nil, fmt.Errorf("history %s: %w", symbol, err)
	}
	if m, ok := jobj.(map[string]any); ok {
		for _, k := range []string{"Error Message", "Note", "Information"} {
			if msg, ok := m[k]; ok {
				return nil, fmt.Errorf("history %s: %w: %v", symbol, ErrRefused, msg)
			}
		}
	}
	jval, err := jsonpath.Get(seriesPath, jobj)
	if err != nil {
		return nil, fmt.Errorf("history %s: %w: %v", symbol, quotes.ErrMalformed, err)
	}
	days, ok := jval.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("history %s: %w: %s is not an object", symbol, quotes.ErrMalformed, seriesPath)
	}

	bars := make(quotes.Bars, len(days))
	for day, v := range days {
		d, err := date.Parse(day)
		if err != nil {
			return nil, fmt.Errorf("history %s: %w: %v", symbol, quotes.ErrMalformed, err)
		}
		fields, ok := v.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("history %s: %w: %s is not an object", symbol, quotes.ErrMalformed, day)
		}
		bar, err := parseBar(fields)
		if err != nil {
			return nil, fmt.Errorf("history %s on %s: %w", symbol, day, err)
		}
		bars[d.Start(quotes.Exchange).Unix()] = bar
	}
	return bars, nil
}

func parseBar(fields map[string]any) (quotes.Bar, error) {
	var prices [4]decimal.Decimal
	for i, k := range []string{"1. open", "2. high", "3. low", "4. close"} {
		s, ok := fields[k].(string)
		if !ok {
			return quotes.Bar{}, fmt.Errorf("%w: missing %q", quotes.ErrMalformed, k)
		}
		p, err := decimal.NewFromString(s)
		if err != nil {
			return quotes.Bar{}, fmt.Errorf("%w: %q: %v", quotes.ErrMalformed, k, err)
		}
		prices[i] = p
	}
	s, ok := fields["5. volume"].(string)
	if !ok {
		return quotes.Bar{}, fmt.Errorf("%w: missing %q", quotes.ErrMalformed, "5. volume")
	}
	vol, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return quotes.Bar{}, fmt.Errorf("%w: volume: %v", quotes.ErrMalformed, err)
	}
	return quotes.Bar{Open: prices[0], High: prices[1], Low: prices[2], Close: prices[3], Volume: vol}, nil
}
