package publishers

import (
	"time"

	"github.com/samvad-hq/samvad-kindle-courier/internal/domain"
)

const (
	StatusDelivered = "delivered"
	StatusFailed    = "failed"
)

// Event represents the payload published downstream after a delivery attempt.
type Event struct {
	DeliveryID string    `json:"delivery_id"`
	Status     string    `json:"status"`
	Stage      string    `json:"stage"`
	URL        string    `json:"url"`
	Recipient  string    `json:"recipient"`
	Title      string    `json:"title,omitempty"`
	SiteName   string    `json:"site_name,omitempty"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// NewEvent constructs an Event from a pipeline outcome.
func NewEvent(o domain.Outcome) Event {
	evt := Event{
		DeliveryID: o.DeliveryID,
		Status:     StatusDelivered,
		Stage:      string(o.Stage),
		URL:        o.Request.URL,
		Recipient:  o.Request.KindleEmail,
		Title:      o.Title,
		SiteName:   o.SiteName,
		StartedAt:  o.StartedAt.UTC(),
		FinishedAt: o.FinishedAt.UTC(),
	}
	if o.Err != nil {
		evt.Status = StatusFailed
		evt.Error = o.Err.Error()
	}
	return evt
}

// attributes are attached to queue and topic messages for subscriber filtering.
func (e Event) attributes() map[string]string {
	return map[string]string{
		"delivery_id": e.DeliveryID,
		"status":      e.Status,
		"stage":       e.Stage,
	}
}
