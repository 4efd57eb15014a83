package eodhd

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"histfill/internal/domain"
	"histfill/internal/provider"
)

func testRange() domain.DateRange {
	return domain.DateRange{
		Start: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC),
	}
}

func TestFetchDailySortsAndCoerces(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Path; got != "/eod/AAPL.US" {
			t.Errorf("path = %q, want /eod/AAPL.US", got)
		}
		q := r.URL.Query()
		if q.Get("api_token") != "tok" || q.Get("period") != "d" || q.Get("order") != "a" {
			t.Errorf("unexpected query: %v", q)
		}
		// Out of order on purpose; one row missing a date; one bad close.
		w.Write([]byte(`[
			{"date":"2024-01-03","open":101,"high":103,"low":100,"close":102,"volume":1000},
			{"date":"2024-01-02","open":100,"high":102,"low":99,"close":"oops","volume":900},
			{"open":1,"close":2}
		]`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "tok")
	rows, err := c.FetchDaily(context.Background(), "AAPL", testRange())
	if err != nil {
		t.Fatalf("FetchDaily: %v", err)
	}

	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2 (dateless row dropped)", len(rows))
	}
	if rows[0].Date != "2024-01-02" || rows[1].Date != "2024-01-03" {
		t.Errorf("rows not sorted ascending: %s, %s", rows[0].Date, rows[1].Date)
	}
	if rows[0].Close != nil {
		t.Errorf("uncoercible close should be null, got %v", *rows[0].Close)
	}
	if rows[1].Close == nil || *rows[1].Close != 102 {
		t.Errorf("rows[1].Close = %v, want 102", rows[1].Close)
	}
}

func TestFetchDailyWrappedPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":[{"date":"2024-01-02","open":1,"high":2,"low":0.5,"close":1.5,"volume":10}]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "tok")
	rows, err := c.FetchDaily(context.Background(), "MSFT", testRange())
	if err != nil {
		t.Fatalf("FetchDaily: %v", err)
	}
	if len(rows) != 1 || rows[0].Date != "2024-01-02" {
		t.Fatalf("unexpected rows: %+v", rows)
	}
}

func TestFetchDailyErrorEnvelope(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"error field", `{"error":"invalid symbol"}`},
		{"code and message", `{"code":403,"message":"forbidden"}`},
		{"status error", `{"status":"error","message":"bad request"}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			c := NewClient(srv.URL, "tok")
			_, err := c.FetchDaily(context.Background(), "BAD", testRange())

			var apiErr *provider.APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("want APIError, got %v", err)
			}
			if apiErr.Symbol != "BAD" {
				t.Errorf("APIError.Symbol = %q, want BAD", apiErr.Symbol)
			}
		})
	}
}

func TestFetchDailyHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "tok")
	_, err := c.FetchDaily(context.Background(), "AAPL", testRange())

	var httpErr *provider.HTTPError
	if !errors.As(err, &httpErr) {
		t.Fatalf("want HTTPError, got %v", err)
	}
	if httpErr.Status != http.StatusTooManyRequests {
		t.Errorf("Status = %d, want 429", httpErr.Status)
	}
}

func TestFetchDailyUnexpectedFormat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"something":"else"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "tok")
	_, err := c.FetchDaily(context.Background(), "AAPL", testRange())

	var fmtErr *provider.FormatError
	if !errors.As(err, &fmtErr) {
		t.Fatalf("want FormatError, got %v", err)
	}
}
