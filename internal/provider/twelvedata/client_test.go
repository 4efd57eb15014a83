package twelvedata

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

func TestFetchDailyParsesStringValues(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/time_series" {
			t.Errorf("path = %q, want /time_series", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("symbol") != "NVDA" || q.Get("interval") != "1day" || q.Get("apikey") != "key" {
			t.Errorf("unexpected query: %v", q)
		}
		// Vendor returns numeric fields as strings, newest first.
		w.Write([]byte(`{
			"meta": {"symbol": "NVDA"},
			"values": [
				{"datetime":"2024-01-03","open":"500.5","high":"510","low":"498","close":"505.25","volume":"400000"},
				{"datetime":"2024-01-02","open":"495","high":"502","low":"494","close":"500","volume":"350000"}
			],
			"status": "ok"
		}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "key")
	rows, err := c.FetchDaily(context.Background(), "NVDA", testRange())
	if err != nil {
		t.Fatalf("FetchDaily: %v", err)
	}

	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}
	if rows[0].Date != "2024-01-02" {
		t.Errorf("rows not re-sorted ascending: first date %s", rows[0].Date)
	}
	if rows[1].Close == nil || *rows[1].Close != 505.25 {
		t.Errorf("rows[1].Close = %v, want 505.25", rows[1].Close)
	}
	if rows[0].Volume == nil || *rows[0].Volume != 350000 {
		t.Errorf("rows[0].Volume = %v, want 350000", rows[0].Volume)
	}
}

func TestFetchDailyErrorEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"code":400,"message":"symbol not found","status":"error"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "key")
	_, err := c.FetchDaily(context.Background(), "NOPE", testRange())

	var apiErr *provider.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("want APIError, got %v", err)
	}
}

func TestFetchIndicatorPrefixesFields(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rsi" {
			t.Errorf("path = %q, want /rsi", r.URL.Path)
		}
		if got := r.URL.Query().Get("time_period"); got != "14" {
			t.Errorf("time_period = %q, want 14", got)
		}
		w.Write([]byte(`{
			"values": [
				{"datetime":"2024-01-02 00:00:00","rsi":"55.5"},
				{"datetime":"2024-01-03","rsi":"60.1"}
			],
			"status": "ok"
		}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "key")
	got, err := c.FetchIndicator(context.Background(), "NVDA", "rsi", map[string]string{"time_period": "14"}, testRange())
	if err != nil {
		t.Fatalf("FetchIndicator: %v", err)
	}

	if len(got) != 2 {
		t.Fatalf("got %d dates, want 2", len(got))
	}
	// Datetime with a time component is trimmed to the date.
	fields, ok := got["2024-01-02"]
	if !ok {
		t.Fatalf("missing date 2024-01-02 in %v", got)
	}
	if fields["rsi_rsi"] != 55.5 {
		t.Errorf("rsi_rsi = %v, want 55.5", fields["rsi_rsi"])
	}
}

func TestFetchIndicatorNoValuesIsEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"meta":{"symbol":"NVDA"},"status":"ok"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "key")
	got, err := c.FetchIndicator(context.Background(), "NVDA", "macd", nil, testRange())
	if err != nil {
		t.Fatalf("FetchIndicator: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("want empty mapping for missing values list, got %v", got)
	}
}

func TestFetchIndicatorErrorEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error":"rate limited"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "key")
	_, err := c.FetchIndicator(context.Background(), "NVDA", "rsi", nil, testRange())

	var apiErr *provider.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("want APIError, got %v", err)
	}
}
