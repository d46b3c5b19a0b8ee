package domain

import "time"

// Domain contains the core models shared by the pipeline stages.

// AuthorFallback is shown as the package author when an article has no byline.
const AuthorFallback = "Unknown"

// ArticleContent is the readable part of a web page.
type ArticleContent struct {
	Title       string
	Author      string
	Content     string
	SiteName    string
	Excerpt     string
	OriginalURL string
	Byline      string
	Language    string
}

// HasByline reports whether the source page named an author.
func (a ArticleContent) HasByline() bool {
	return a.Byline != ""
}

// PackagedDocument is an e-book written to the uploads directory, waiting to be mailed.
type PackagedDocument struct {
	Path  string
	Title string
}

// DeliveryRequest is the inbound payload of POST /send-article.
type DeliveryRequest struct {
	URL         string `json:"url"`
	KindleEmail string `json:"kindleEmail"`
}

// Stage names one step of the delivery pipeline.
type Stage string

const (
	StageValidate Stage = "validate"
	StageFetch    Stage = "fetch"
	StageExtract  Stage = "extract"
	StagePackage  Stage = "package"
	StageDeliver  Stage = "deliver"
)

// Outcome summarises one pipeline run for observers (audit log, publishers).
type Outcome struct {
	DeliveryID string
	Request    DeliveryRequest
	Title      string
	SiteName   string
	Stage      Stage
	Err        error
	StartedAt  time.Time
	FinishedAt time.Time
}

// Succeeded reports whether the run reached the mail relay without error.
func (o Outcome) Succeeded() bool {
	return o.Err == nil
}
