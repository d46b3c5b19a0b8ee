package fetcher

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/samvad-hq/samvad-kindle-courier/internal/domain"
	"github.com/samvad-hq/samvad-kindle-courier/pkg/httpclient"
)

// stubHTTPResponse implements httpclient.Response.
type stubHTTPResponse struct {
	body       []byte
	statusCode int
	finalURL   string
}

func (s stubHTTPResponse) Body() []byte     { return s.body }
func (s stubHTTPResponse) StatusCode() int  { return s.statusCode }
func (s stubHTTPResponse) FinalURL() string { return s.finalURL }

// stubHTTPClient returns a single response or error and records headers.
type stubHTTPClient struct {
	resp    httpclient.Response
	err     error
	headers map[string]string
}

func (s *stubHTTPClient) Get(_ context.Context, _ string, headers map[string]string) (httpclient.Response, error) {
	s.headers = headers
	return s.resp, s.err
}

func TestFetchSendsBrowserHeaders(t *testing.T) {
	client := &stubHTTPClient{resp: stubHTTPResponse{body: []byte("<html></html>"), statusCode: 200, finalURL: "https://example.com/a"}}
	page, err := New(client, time.Second).Fetch(context.Background(), "https://example.com/a")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if !strings.HasPrefix(client.headers["User-Agent"], "Mozilla/5.0") {
		t.Fatalf("expected browser user agent, got %q", client.headers["User-Agent"])
	}
	if page.HTML != "<html></html>" || page.FinalURL != "https://example.com/a" {
		t.Fatalf("unexpected page %+v", page)
	}
}

func TestFetchFallsBackToRequestedURL(t *testing.T) {
	client := &stubHTTPClient{resp: stubHTTPResponse{body: []byte("x"), statusCode: 200}}
	page, err := New(client, time.Second).Fetch(context.Background(), "https://example.com/a")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if page.FinalURL != "https://example.com/a" {
		t.Fatalf("FinalURL = %q", page.FinalURL)
	}
}

func TestFetchWrapsNonSuccessStatus(t *testing.T) {
	client := &stubHTTPClient{resp: stubHTTPResponse{body: []byte("boom"), statusCode: 500}}
	_, err := New(client, time.Second).Fetch(context.Background(), "https://example.com/a")

	var fe *domain.FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("expected FetchError, got %v", err)
	}
	if fe.StatusCode != 500 || fe.URL != "https://example.com/a" {
		t.Fatalf("unexpected FetchError %+v", fe)
	}
}

func TestFetchWrapsTransportErrors(t *testing.T) {
	client := &stubHTTPClient{err: errors.New("connection refused")}
	_, err := New(client, time.Second).Fetch(context.Background(), "https://example.com/a")
	if domain.StageOf(err) != domain.StageFetch {
		t.Fatalf("expected fetch stage error, got %v", err)
	}
}

func TestFetchTimesOutAgainstSlowOrigin(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
	}))
	defer srv.Close()

	_, err := New(nil, 30*time.Millisecond).Fetch(context.Background(), srv.URL)
	var fe *domain.FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("expected FetchError on timeout, got %v", err)
	}
}

func TestSnippetTruncates(t *testing.T) {
	long := strings.Repeat("a", snippetBytes+10)
	if got := snippet([]byte(long)); len(got) != snippetBytes+3 {
		t.Fatalf("unexpected snippet length %d", len(got))
	}
	if got := snippet(nil); got != "<empty>" {
		t.Fatalf("unexpected empty snippet %q", got)
	}
}
