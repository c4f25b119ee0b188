package paginate

import (
	"context"
	"errors"
	"io"
	"log"
	"maps"
	"testing"
	"time"
)

// scripted is a Source replaying canned pages per request.
type scripted struct {
	pages map[string][]Page[string] // successive responses per request
	calls map[string]int
}

func (s *scripted) Page(_ context.Context, req string) (Page[string], error) {
	if s.calls == nil {
		s.calls = make(map[string]int)
	}
	responses, ok := s.pages[req]
	if !ok {
		return Page[string]{}, errors.New("unexpected request " + req)
	}
	i := s.calls[req]
	s.calls[req]++
	if i >= len(responses) {
		i = len(responses) - 1
	}
	return responses[i], nil
}

// sleeper records sleeps without waiting.
type sleeper struct{ slept []time.Duration }

func (s *sleeper) sleep(_ context.Context, d time.Duration) error {
	s.slept = append(s.slept, d)
	return nil
}

func quiet() Option { return WithLogger(log.New(io.Discard, "", 0)) }

var limited = Page[string]{RateLimited: true}

func TestFetchAllAccumulates(t *testing.T) {
	src := &scripted{pages: map[string][]Page[string]{
		"p1": {{Items: map[string]string{"A": "Alpha"}, Next: "p2"}},
		"p2": {{Items: map[string]string{"B": "Beta"}, Next: "p3"}},
		"p3": {{Items: map[string]string{"A": "AlphaCo"}}},
	}}
	s := new(sleeper)
	got, err := New[string](src, WithSleep(s.sleep), quiet()).FetchAll(context.Background(), "p1")
	if err != nil {
		t.Fatalf("FetchAll() unexpected error = %v", err)
	}
	want := map[string]string{"A": "AlphaCo", "B": "Beta"}
	if !maps.Equal(got, want) {
		t.Errorf("FetchAll() = %v, want %v", got, want)
	}
	if len(s.slept) != 0 {
		t.Errorf("FetchAll() slept %d times, want 0", len(s.slept))
	}
}

func TestFetchAllSegments(t *testing.T) {
	src := &scripted{pages: map[string][]Page[string]{
		"nyse":   {{Items: map[string]string{"IBM": "IBM"}, Next: "nyse2"}},
		"nyse2":  {{Items: map[string]string{"KO": "Coca-Cola"}}},
		"nasdaq": {{Items: map[string]string{"AAPL": "Apple"}}},
	}}
	got, err := New[string](src, quiet()).FetchAll(context.Background(), "nyse", "nasdaq")
	if err != nil {
		t.Fatalf("FetchAll() unexpected error = %v", err)
	}
	want := map[string]string{"IBM": "IBM", "KO": "Coca-Cola", "AAPL": "Apple"}
	if !maps.Equal(got, want) {
		t.Errorf("FetchAll() = %v, want %v", got, want)
	}
}

func TestBackoff(t *testing.T) {
	testCases := []struct {
		name       string
		responses  []Page[string]
		wantErr    bool
		wantSleeps int
		wantCalls  int
	}{
		{
			name:       "recovers after two signals",
			responses:  []Page[string]{limited, limited, {Items: map[string]string{"A": "Alpha"}}},
			wantSleeps: 2,
			wantCalls:  3,
		},
		{
			name:       "five signals is still transient",
			responses:  []Page[string]{limited, limited, limited, limited, limited, {Items: map[string]string{"A": "Alpha"}}},
			wantSleeps: 5,
			wantCalls:  6,
		},
		{
			name:       "six signals exhaust",
			responses:  []Page[string]{limited, limited, limited, limited, limited, limited, {Items: map[string]string{"A": "Alpha"}}},
			wantErr:    true,
			wantSleeps: 5,
			wantCalls:  6,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			src := &scripted{pages: map[string][]Page[string]{"p1": tc.responses}}
			s := new(sleeper)
			got, err := New[string](src, WithSleep(s.sleep), quiet()).FetchAll(context.Background(), "p1")
			if tc.wantErr {
				if !errors.Is(err, ErrRateLimitExhausted) {
					t.Fatalf("FetchAll() error = %v, want %v", err, ErrRateLimitExhausted)
				}
				var ex *ExhaustedError
				if !errors.As(err, &ex) || ex.Request != "p1" || ex.Signals != 6 {
					t.Errorf("FetchAll() error = %#v, want ExhaustedError for p1 after 6 signals", err)
				}
			} else {
				if err != nil {
					t.Fatalf("FetchAll() unexpected error = %v", err)
				}
				if got["A"] != "Alpha" {
					t.Errorf("FetchAll() = %v, want A=Alpha", got)
				}
			}
			if len(s.slept) != tc.wantSleeps {
				t.Errorf("FetchAll() slept %d times, want %d", len(s.slept), tc.wantSleeps)
			}
			for _, d := range s.slept {
				if d != DefaultBackoff {
					t.Errorf("slept %v, want %v", d, DefaultBackoff)
				}
			}
			if src.calls["p1"] != tc.wantCalls {
				t.Errorf("request p1 executed %d times, want %d", src.calls["p1"], tc.wantCalls)
			}
		})
	}
}

func TestBackoffCounterIsPerRequest(t *testing.T) {
	// Each page is throttled 4 times: the counter must restart on every page.
	src := &scripted{pages: map[string][]Page[string]{
		"p1": {limited, limited, limited, limited, {Items: map[string]string{"A": "Alpha"}, Next: "p2"}},
		"p2": {limited, limited, limited, limited, {Items: map[string]string{"B": "Beta"}}},
	}}
	s := new(sleeper)
	got, err := New[string](src, WithSleep(s.sleep), quiet()).FetchAll(context.Background(), "p1")
	if err != nil {
		t.Fatalf("FetchAll() unexpected error = %v", err)
	}
	if len(got) != 2 || len(s.slept) != 8 {
		t.Errorf("FetchAll() = %v after %d sleeps, want 2 items after 8 sleeps", got, len(s.slept))
	}
}

func TestFetchIntoKeepsPartialResults(t *testing.T) {
	src := &scripted{pages: map[string][]Page[string]{
		"p1": {{Items: map[string]string{"A": "Alpha"}, Next: "p2"}},
		"p2": {limited},
	}}
	acc := map[string]string{"Z": "Zeta"}
	err := New[string](src, WithSleep(new(sleeper).sleep), WithMaxSignals(2), quiet()).FetchInto(context.Background(), acc, "p1")
	if !errors.Is(err, ErrRateLimitExhausted) {
		t.Fatalf("FetchInto() error = %v, want %v", err, ErrRateLimitExhausted)
	}
	if want := map[string]string{"Z": "Zeta", "A": "Alpha"}; !maps.Equal(acc, want) {
		t.Errorf("accumulator = %v, want %v", acc, want)
	}
}

func TestSourceError(t *testing.T) {
	boom := errors.New("boom")
	src := SourceFunc[string](func(context.Context, string) (Page[string], error) {
		return Page[string]{}, boom
	})
	if _, err := New[string](src, quiet()).FetchAll(context.Background(), "p1"); !errors.Is(err, boom) {
		t.Errorf("FetchAll() error = %v, want %v", err, boom)
	}
}

func TestSleepCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := Sleep(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Errorf("Sleep() error = %v, want %v", err, context.Canceled)
	}
}
