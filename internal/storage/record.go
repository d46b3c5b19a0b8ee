package storage

import (
	"context"
	"errors"
	"time"

	"github.com/samvad-hq/samvad-kindle-courier/internal/domain"
)

const (
	StatusDelivered = "delivered"
	StatusFailed    = "failed"
)

// Record is one persisted delivery attempt.
type Record struct {
	ID         string    `json:"id"`
	URL        string    `json:"url"`
	Recipient  string    `json:"recipient"`
	Title      string    `json:"title,omitempty"`
	SiteName   string    `json:"siteName,omitempty"`
	Stage      string    `json:"stage"`
	Status     string    `json:"status"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`
}

// RecordFromOutcome flattens a pipeline outcome into a storable record.
func RecordFromOutcome(o domain.Outcome) Record {
	rec := Record{
		ID:         o.DeliveryID,
		URL:        o.Request.URL,
		Recipient:  o.Request.KindleEmail,
		Title:      o.Title,
		SiteName:   o.SiteName,
		Stage:      string(o.Stage),
		Status:     StatusDelivered,
		StartedAt:  o.StartedAt.UTC(),
		FinishedAt: o.FinishedAt.UTC(),
	}
	if o.Err != nil {
		rec.Status = StatusFailed
		rec.Error = o.Err.Error()
	}
	return rec
}

// AuditObserver writes every outcome it sees into a Store.
type AuditObserver struct {
	store Store
}

// NewAuditObserver wraps store.
func NewAuditObserver(store Store) *AuditObserver {
	return &AuditObserver{store: store}
}

// Observe records the outcome.
func (a *AuditObserver) Observe(_ context.Context, o domain.Outcome) error {
	if a == nil || a.store == nil {
		return errors.New("audit store is not initialized")
	}
	return a.store.Record(RecordFromOutcome(o))
}
