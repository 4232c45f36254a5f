package feedadapter

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestFetchParsesFeedResults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("limit"); got != "3" {
			t.Errorf("expected limit=3, got %q", got)
		}
		if got := r.URL.Query().Get("where"); got != `country="AUSTRALIA"` {
			t.Errorf("unexpected where clause: %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"results":[{"case_number":"2024.01.15","country":"AUSTRALIA","location":"Byron Bay","fatal_y_n":"N"}]}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, time.Second, nil)
	records, err := client.Fetch(context.Background(), 3, `country="AUSTRALIA"`)
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	if records[0].CaseNumber != "2024.01.15" || records[0].Fatal != "N" {
		t.Fatalf("unexpected record: %+v", records[0])
	}
}

func TestFetchReturnsEmptyOnServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewClient(server.URL, time.Second, nil)
	records, err := client.Fetch(context.Background(), 3, "")
	if err != nil {
		t.Fatalf("feed errors must not propagate: %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("expected empty result, got %d records", len(records))
	}
}

func TestFetchReturnsEmptyWhenFeedIsSlow(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	client := NewClient(server.URL, 20*time.Millisecond, nil)
	records, err := client.Fetch(context.Background(), 3, "")
	if err != nil {
		t.Fatalf("feed timeout must not propagate: %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("expected empty result on timeout, got %d records", len(records))
	}
}
