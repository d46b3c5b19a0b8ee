// Package pipeline runs a delivery request through every stage, from the
// URL to the reader's inbox.
package pipeline

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/samvad-hq/samvad-kindle-courier/internal/domain"
	"github.com/samvad-hq/samvad-kindle-courier/internal/logger"
)

// Result is what a successful run reports back to the caller.
type Result struct {
	DeliveryID string
	Title      string
}

// Stages groups the collaborators a Pipeline drives.
type Stages struct {
	Fetcher   PageFetcher
	Extractor ArticleExtractor
	Assembler DocumentAssembler
	Packager  DocumentPackager
	Deliverer Deliverer
}

// Pipeline sequences the stages for one request at a time. It holds no
// per-request state and is safe for concurrent use.
type Pipeline struct {
	stages    Stages
	suffixes  []string
	observers []Observer
	log       logger.Logger
	now       func() time.Time
	newID     func() string
}

// Option customises a Pipeline.
type Option func(*Pipeline)

// WithEmailSuffixes overrides the accepted recipient suffixes.
func WithEmailSuffixes(suffixes []string) Option {
	return func(p *Pipeline) {
		if len(suffixes) > 0 {
			p.suffixes = append([]string(nil), suffixes...)
		}
	}
}

// WithObservers registers observers notified after each attempt.
func WithObservers(obs ...Observer) Option {
	return func(p *Pipeline) {
		for _, o := range obs {
			if o != nil {
				p.observers = append(p.observers, o)
			}
		}
	}
}

// WithLogger sets the logger.
func WithLogger(log logger.Logger) Option {
	return func(p *Pipeline) { p.log = logger.Ensure(log) }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) {
		if now != nil {
			p.now = now
		}
	}
}

// New builds a pipeline. Every stage must be set.
func New(stages Stages, opts ...Option) (*Pipeline, error) {
	if stages.Fetcher == nil || stages.Extractor == nil || stages.Assembler == nil ||
		stages.Packager == nil || stages.Deliverer == nil {
		return nil, errors.New("pipeline requires fetcher, extractor, assembler, packager and deliverer")
	}
	p := &Pipeline{
		stages:   stages,
		suffixes: DefaultEmailSuffixes,
		log:      logger.NopLogger{},
		now:      time.Now,
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Run validates req and, if it is acceptable, fetches, extracts, assembles,
// packages and delivers the article. Validation failures return before any
// network, file or mail work.
func (p *Pipeline) Run(ctx context.Context, req domain.DeliveryRequest) (Result, error) {
	req, err := Validate(req, p.suffixes)
	if err != nil {
		p.log.InfoObj("delivery request rejected", "validation", map[string]any{
			"error": err.Error(),
			"ts":    p.now().UTC(),
		})
		return Result{}, err
	}

	outcome := domain.Outcome{
		DeliveryID: p.newID(),
		Request:    req,
		StartedAt:  p.now(),
	}

	err = p.execute(ctx, &outcome)
	outcome.Err = err
	outcome.FinishedAt = p.now()

	if err != nil {
		p.log.ErrorObj("article delivery failed", "pipeline_error", map[string]any{
			"delivery_id": outcome.DeliveryID,
			"url":         req.URL,
			"stage":       string(outcome.Stage),
			"message":     err.Error(),
			"cause":       rootCause(err).Error(),
			"ts":          outcome.FinishedAt.UTC(),
		})
	} else {
		p.log.InfoObj("article delivery completed", "pipeline_result", map[string]any{
			"delivery_id": outcome.DeliveryID,
			"url":         req.URL,
			"title":       outcome.Title,
			"duration_ms": outcome.FinishedAt.Sub(outcome.StartedAt).Milliseconds(),
		})
	}

	p.notify(ctx, outcome)

	if err != nil {
		return Result{}, err
	}
	return Result{DeliveryID: outcome.DeliveryID, Title: outcome.Title}, nil
}

func (p *Pipeline) execute(ctx context.Context, out *domain.Outcome) error {
	req := out.Request

	out.Stage = domain.StageFetch
	page, err := p.stages.Fetcher.Fetch(ctx, strings.TrimSpace(req.URL))
	if err != nil {
		return ensureStaged(err, func(e error) error { return &domain.FetchError{URL: req.URL, Err: e} })
	}

	out.Stage = domain.StageExtract
	article, err := p.stages.Extractor.Extract(page.HTML, page.FinalURL, req.URL)
	if err != nil {
		return ensureStaged(err, func(e error) error { return &domain.ExtractionError{URL: req.URL, Err: e} })
	}
	out.Title = article.Title
	out.SiteName = article.SiteName

	// assembly failures surface as packaging failures
	out.Stage = domain.StagePackage
	doc, err := p.stages.Assembler.Assemble(article)
	if err != nil {
		return &domain.PackagingError{Title: article.Title, Err: err}
	}
	pkg, err := p.stages.Packager.Package(ctx, doc)
	if err != nil {
		return ensureStaged(err, func(e error) error { return &domain.PackagingError{Title: article.Title, Err: e} })
	}

	out.Stage = domain.StageDeliver
	if err := p.stages.Deliverer.Deliver(ctx, pkg, req.KindleEmail); err != nil {
		return ensureStaged(err, func(e error) error { return &domain.DeliveryError{Recipient: req.KindleEmail, Err: e} })
	}
	return nil
}

// notify hands the outcome to every observer. Observer errors are logged only.
func (p *Pipeline) notify(ctx context.Context, outcome domain.Outcome) {
	for _, o := range p.observers {
		if err := o.Observe(ctx, outcome); err != nil {
			p.log.WarnObj("delivery observer failed", "observer_error", map[string]any{
				"delivery_id": outcome.DeliveryID,
				"error":       err.Error(),
			})
		}
	}
}

// ensureStaged keeps typed errors from a stage and wraps anything else.
func ensureStaged(err error, wrap func(error) error) error {
	if domain.StageOf(err) != "" {
		return err
	}
	return wrap(err)
}

func rootCause(err error) error {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return err
		}
		err = next
	}
}
