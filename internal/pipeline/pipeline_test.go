package pipeline

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/samvad-hq/samvad-kindle-courier/internal/assembler"
	"github.com/samvad-hq/samvad-kindle-courier/internal/domain"
	"github.com/samvad-hq/samvad-kindle-courier/internal/fetcher"
)

// recorder counts stage calls in order.
type recorder struct {
	mu    sync.Mutex
	calls []string
}

func (r *recorder) add(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, name)
}

func (r *recorder) joined() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return strings.Join(r.calls, ",")
}

type stubFetcher struct {
	rec *recorder
	err error
}

func (s stubFetcher) Fetch(_ context.Context, url string) (fetcher.Page, error) {
	s.rec.add("fetch")
	if s.err != nil {
		return fetcher.Page{}, s.err
	}
	return fetcher.Page{HTML: "<html></html>", FinalURL: url + "?final"}, nil
}

type stubExtractor struct {
	rec         *recorder
	err         error
	baseURL     string
	originalURL string
}

func (s *stubExtractor) Extract(_, baseURL, originalURL string) (domain.ArticleContent, error) {
	s.rec.add("extract")
	s.baseURL = baseURL
	s.originalURL = originalURL
	if s.err != nil {
		return domain.ArticleContent{}, s.err
	}
	return domain.ArticleContent{Title: "Harbour", Author: domain.AuthorFallback, Content: "<p>x</p>", SiteName: "Example", OriginalURL: originalURL}, nil
}

type stubAssembler struct {
	rec *recorder
	err error
}

func (s stubAssembler) Assemble(a domain.ArticleContent) (assembler.Document, error) {
	s.rec.add("assemble")
	if s.err != nil {
		return assembler.Document{}, s.err
	}
	return assembler.Document{Title: a.Title, Body: a.Content}, nil
}

type stubPackager struct {
	rec *recorder
	err error
}

func (s stubPackager) Package(_ context.Context, doc assembler.Document) (domain.PackagedDocument, error) {
	s.rec.add("package")
	if s.err != nil {
		return domain.PackagedDocument{}, s.err
	}
	return domain.PackagedDocument{Path: "/tmp/" + doc.Title + ".epub", Title: doc.Title}, nil
}

type stubDeliverer struct {
	rec *recorder
	err error
	to  string
}

func (s *stubDeliverer) Deliver(_ context.Context, _ domain.PackagedDocument, to string) error {
	s.rec.add("deliver")
	s.to = to
	return s.err
}

type fixture struct {
	rec       *recorder
	fetcher   stubFetcher
	extractor *stubExtractor
	assembler stubAssembler
	packager  stubPackager
	deliverer *stubDeliverer
	outcomes  []domain.Outcome
}

func newFixture() *fixture {
	rec := &recorder{}
	return &fixture{
		rec:       rec,
		fetcher:   stubFetcher{rec: rec},
		extractor: &stubExtractor{rec: rec},
		assembler: stubAssembler{rec: rec},
		packager:  stubPackager{rec: rec},
		deliverer: &stubDeliverer{rec: rec},
	}
}

func (f *fixture) build(t *testing.T, opts ...Option) *Pipeline {
	t.Helper()
	obs := ObserverFunc(func(_ context.Context, o domain.Outcome) error {
		f.outcomes = append(f.outcomes, o)
		return nil
	})
	opts = append([]Option{WithObservers(obs)}, opts...)
	p, err := New(Stages{
		Fetcher:   f.fetcher,
		Extractor: f.extractor,
		Assembler: f.assembler,
		Packager:  f.packager,
		Deliverer: f.deliverer,
	}, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return p
}

func validRequest() domain.DeliveryRequest {
	return domain.DeliveryRequest{URL: "https://example.com/a", KindleEmail: "reader@kindle.com"}
}

func TestRunSuccess(t *testing.T) {
	f := newFixture()
	p := f.build(t)

	res, err := p.Run(context.Background(), domain.DeliveryRequest{URL: "  https://example.com/a ", KindleEmail: " reader@kindle.com "})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Title != "Harbour" || res.DeliveryID == "" {
		t.Fatalf("unexpected result %+v", res)
	}
	if got := f.rec.joined(); got != "fetch,extract,assemble,package,deliver" {
		t.Fatalf("unexpected stage order %q", got)
	}
	if f.extractor.baseURL != "https://example.com/a?final" {
		t.Fatalf("extractor should get the final URL as base, got %q", f.extractor.baseURL)
	}
	if f.deliverer.to != "reader@kindle.com" {
		t.Fatalf("recipient not trimmed: %q", f.deliverer.to)
	}
	if f.extractor.originalURL != "  https://example.com/a " {
		t.Fatalf("original url should be kept as supplied, got %q", f.extractor.originalURL)
	}
	if len(f.outcomes) != 1 || !f.outcomes[0].Succeeded() || f.outcomes[0].Stage != domain.StageDeliver {
		t.Fatalf("unexpected outcomes %+v", f.outcomes)
	}
	if f.outcomes[0].DeliveryID != res.DeliveryID {
		t.Fatalf("outcome id mismatch")
	}
	if f.outcomes[0].Request.URL != "  https://example.com/a " {
		t.Fatalf("outcome url should be kept as supplied, got %q", f.outcomes[0].Request.URL)
	}
}

func TestRunValidationTouchesNothing(t *testing.T) {
	cases := []struct {
		name string
		req  domain.DeliveryRequest
		msg  string
	}{
		{"missing url", domain.DeliveryRequest{KindleEmail: "reader@kindle.com"}, "No URL provided"},
		{"blank url", domain.DeliveryRequest{URL: "   ", KindleEmail: "reader@kindle.com"}, "No URL provided"},
		{"missing both", domain.DeliveryRequest{}, "No URL provided"},
		{"missing email", domain.DeliveryRequest{URL: "https://example.com"}, "No Kindle email provided"},
		{"wrong domain", domain.DeliveryRequest{URL: "https://example.com", KindleEmail: "reader@gmail.com"}, "Invalid Kindle email address"},
		{"suffix only", domain.DeliveryRequest{URL: "https://example.com", KindleEmail: "@kindle.com"}, "Invalid Kindle email address"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture()
			p := f.build(t)

			_, err := p.Run(context.Background(), tc.req)
			var ve *domain.ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if ve.Message != tc.msg {
				t.Fatalf("expected %q, got %q", tc.msg, ve.Message)
			}
			if got := f.rec.joined(); got != "" {
				t.Fatalf("stages ran on invalid request: %q", got)
			}
			if len(f.outcomes) != 0 {
				t.Fatalf("observers notified for invalid request")
			}
		})
	}
}

func TestRunAcceptsConfiguredSuffixCaseInsensitively(t *testing.T) {
	f := newFixture()
	p := f.build(t, WithEmailSuffixes([]string{"@kindle.com", "@free.kindle.com"}))

	req := validRequest()
	req.KindleEmail = "Reader@FREE.Kindle.com"
	if _, err := p.Run(context.Background(), req); err != nil {
		t.Fatalf("Run: %v", err)
	}
}

func TestRunStopsAtFailingStage(t *testing.T) {
	boom := errors.New("boom")
	cases := []struct {
		name   string
		setup  func(f *fixture)
		stage  domain.Stage
		called string
	}{
		{"fetch", func(f *fixture) { f.fetcher.err = &domain.FetchError{URL: "u", StatusCode: 404, Err: boom} }, domain.StageFetch, "fetch"},
		{"fetch untyped", func(f *fixture) { f.fetcher.err = boom }, domain.StageFetch, "fetch"},
		{"extract", func(f *fixture) { f.extractor.err = boom }, domain.StageExtract, "fetch,extract"},
		{"assemble", func(f *fixture) { f.assembler.err = boom }, domain.StagePackage, "fetch,extract,assemble"},
		{"package", func(f *fixture) { f.packager.err = boom }, domain.StagePackage, "fetch,extract,assemble,package"},
		{"deliver", func(f *fixture) { f.deliverer.err = boom }, domain.StageDeliver, "fetch,extract,assemble,package,deliver"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture()
			tc.setup(f)
			p := f.build(t)

			_, err := p.Run(context.Background(), validRequest())
			if err == nil {
				t.Fatalf("expected error")
			}
			if got := domain.StageOf(err); got != tc.stage {
				t.Fatalf("expected stage %s, got %s (%v)", tc.stage, got, err)
			}
			if !errors.Is(err, boom) {
				t.Fatalf("cause lost: %v", err)
			}
			if got := f.rec.joined(); got != tc.called {
				t.Fatalf("expected calls %q, got %q", tc.called, got)
			}
			if len(f.outcomes) != 1 || f.outcomes[0].Succeeded() || f.outcomes[0].Stage != tc.stage {
				t.Fatalf("unexpected outcomes %+v", f.outcomes)
			}
		})
	}
}

func TestObserverErrorDoesNotChangeResult(t *testing.T) {
	f := newFixture()
	failing := ObserverFunc(func(context.Context, domain.Outcome) error { return errors.New("audit down") })
	p := f.build(t, WithObservers(failing))

	res, err := p.Run(context.Background(), validRequest())
	if err != nil {
		t.Fatalf("observer failure leaked: %v", err)
	}
	if res.Title != "Harbour" {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestRunRecordsTimestamps(t *testing.T) {
	f := newFixture()
	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	tick := 0
	clock := func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}
	p := f.build(t, WithClock(clock))

	if _, err := p.Run(context.Background(), validRequest()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	o := f.outcomes[0]
	if !o.FinishedAt.After(o.StartedAt) {
		t.Fatalf("expected finished after started: %v %v", o.StartedAt, o.FinishedAt)
	}
}

func TestNewRequiresStages(t *testing.T) {
	if _, err := New(Stages{}); err == nil {
		t.Fatalf("expected error for missing stages")
	}
}
