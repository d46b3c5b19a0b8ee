package httpclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestRestyClientFollowsRedirectsAndReportsFinalURL(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/old", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/new", http.StatusMovedPermanently)
	})
	mux.HandleFunc("/new", func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("User-Agent"); got != "UA" {
			t.Errorf("missing header, got %q", got)
		}
		_, _ = w.Write([]byte("hello"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := NewRestyClient(2 * time.Second)
	resp, err := client.Get(context.Background(), srv.URL+"/old", map[string]string{"User-Agent": "UA"})
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if resp.StatusCode() != http.StatusOK || string(resp.Body()) != "hello" {
		t.Fatalf("unexpected response %d %q", resp.StatusCode(), resp.Body())
	}
	if resp.FinalURL() != srv.URL+"/new" {
		t.Fatalf("FinalURL = %q", resp.FinalURL())
	}
}

func TestRestyClientTimesOut(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	client := NewRestyClient(20 * time.Millisecond)
	if _, err := client.Get(context.Background(), srv.URL, nil); err == nil {
		t.Fatalf("expected timeout error")
	}
}
