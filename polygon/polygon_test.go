package polygon

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/etnz/quotes"
	"github.com/etnz/quotes/paginate"
)

func init() { log.SetOutput(io.Discard) }

// noSleep makes rate limit waits instantaneous and counts them.
type noSleep struct{ n int }

func (s *noSleep) sleep(context.Context, time.Duration) error {
	s.n++
	return nil
}

func newTestClient(t *testing.T, h http.HandlerFunc, opts ...Option) (*Client, *noSleep) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	s := new(noSleep)
	opts = append([]Option{WithEndpoint(srv.URL), WithPaging(paginate.WithSleep(s.sleep))}, opts...)
	return NewClient("secret", opts...), s
}

func TestTickers(t *testing.T) {
	var throttled bool
	var srvURL string
	c, s := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("apiKey") != "secret" {
			t.Errorf("request %v without api key", r.URL)
		}
		switch {
		case r.URL.Query().Get("cursor") == "2":
			fmt.Fprint(w, `{"status":"OK","results":[{"ticker":"KO","name":"Coca-Cola Co"},{"ticker":"IBM","name":"IBM Corp"}]}`)
		case r.URL.Query().Get("exchange") == "XNYS":
			fmt.Fprintf(w, `{"status":"OK","results":[{"ticker":"IBM","name":"International Business Machines"}],"next_url":"%s/v3/reference/tickers?cursor=2"}`, srvURL)
		case r.URL.Query().Get("exchange") == "XNAS":
			if !throttled {
				throttled = true
				fmt.Fprint(w, `{"status":"ERROR","error":"You've exceeded the maximum requests per minute"}`)
				return
			}
			fmt.Fprint(w, `{"status":"OK","results":[{"ticker":"AAPL","name":"Apple Inc."}]}`)
		default:
			t.Errorf("unexpected request %v", r.URL)
			http.NotFound(w, r)
		}
	})
	srvURL = c.endpoint

	d, err := c.Tickers(context.Background())
	if err != nil {
		t.Fatalf("Tickers() unexpected error = %v", err)
	}
	want := quotes.Directory{"IBM": "IBM Corp", "KO": "Coca-Cola Co", "AAPL": "Apple Inc."}
	if len(d) != len(want) {
		t.Fatalf("Tickers() = %v, want %v", d, want)
	}
	for k, v := range want {
		if d[k] != v {
			t.Errorf("Tickers()[%s] = %q, want %q", k, d[k], v)
		}
	}
	if s.n != 1 {
		t.Errorf("Tickers() waited %d times, want 1", s.n)
	}
}

func TestTickersExhausted(t *testing.T) {
	c, s := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})
	_, err := c.Tickers(context.Background())
	if !errors.Is(err, paginate.ErrRateLimitExhausted) {
		t.Errorf("Tickers() error = %v, want %v", err, paginate.ErrRateLimitExhausted)
	}
	if s.n != paginate.DefaultMaxSignals-1 {
		t.Errorf("Tickers() waited %d times, want %d", s.n, paginate.DefaultMaxSignals-1)
	}
}

func TestTickersMalformed(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"status":"OK"}`)
	})
	if _, err := c.Tickers(context.Background()); !errors.Is(err, quotes.ErrMalformed) {
		t.Errorf("Tickers() error = %v, want %v", err, quotes.ErrMalformed)
	}
}

func TestIntraday(t *testing.T) {
	now := time.Date(2025, 1, 10, 18, 0, 0, 0, time.UTC)
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if want := "/v2/aggs/ticker/AAPL/range/15/minute/2025-01-04/2025-01-10"; r.URL.Path != want {
			t.Errorf("path = %q, want %q", r.URL.Path, want)
		}
		fmt.Fprint(w, `{"results":[
			{"t":1736519400000,"o":236.123,"h":237.5,"l":235.999,"c":236.87,"v":1523412.0},
			{"t":1736520300000,"o":236.87,"h":236.9,"l":236.1,"c":236.45,"v":823000}
		]}`)
	}, WithClock(func() time.Time { return now }))

	bars, err := c.Intraday(context.Background(), "AAPL")
	if err != nil {
		t.Fatalf("Intraday() unexpected error = %v", err)
	}
	b, ok := bars[1736519400]
	if !ok || len(bars) != 2 {
		t.Fatalf("Intraday() = %v, want 2 bars indexed in seconds", bars)
	}
	if b.Open.StringFixed(2) != "236.12" || b.Low.StringFixed(2) != "236.00" || b.Volume != 1523412 {
		t.Errorf("Intraday() bar = %+v", b)
	}
}

func TestIntradayMalformed(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"results":[{"t":1736519400000,"o":236.1,"h":237.5,"l":235.9,"v":1}]}`)
	})
	if _, err := c.Intraday(context.Background(), "AAPL"); !errors.Is(err, quotes.ErrMalformed) {
		t.Errorf("Intraday() error = %v, want %v", err, quotes.ErrMalformed)
	}
}

func TestSplits(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("ticker") != "AAPL" {
			t.Errorf("ticker = %q, want AAPL", r.URL.Query().Get("ticker"))
		}
		fmt.Fprint(w, `{"results":[
			{"execution_date":"2020-08-31","split_from":1,"split_to":4,"ticker":"AAPL"},
			{"execution_date":"2014-06-09","split_from":1,"split_to":7,"ticker":"AAPL"}
		]}`)
	})
	splits, err := c.Splits(context.Background(), "AAPL")
	if err != nil {
		t.Fatalf("Splits() unexpected error = %v", err)
	}
	if len(splits) != 2 || splits[1].Date.String() != "2014-06-09" || splits[1].Ratio().StringFixed(4) != "0.1429" {
		t.Errorf("Splits() = %v", splits)
	}
}

func TestSplitsInvalid(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"results":[{"execution_date":"2020-08-31","split_from":1,"split_to":0}]}`)
	})
	if _, err := c.Splits(context.Background(), "AAPL"); !errors.Is(err, quotes.ErrMalformed) {
		t.Errorf("Splits() error = %v, want %v", err, quotes.ErrMalformed)
	}
}

func TestStatusError(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	})
	_, err := c.Splits(context.Background(), "AAPL")
	var se *statusError
	if !errors.As(err, &se) || se.code != http.StatusForbidden {
		t.Fatalf("Splits() error = %v, want a 403 status error", err)
	}
	if got := err.Error(); strings.Contains(got, "secret") {
		t.Errorf("error message leaks the api key: %s", got)
	}
}

func TestTransportErrorRedacted(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()
	c := NewClient("secret", WithEndpoint(srv.URL))
	_, err := c.Splits(context.Background(), "AAPL")
	if err == nil {
		t.Fatal("Splits() on a closed server expected an error")
	}
	if got := err.Error(); strings.Contains(got, "secret") {
		t.Errorf("error message leaks the api key: %s", got)
	}
}
