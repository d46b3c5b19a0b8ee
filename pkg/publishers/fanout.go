package publishers

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/samvad-hq/samvad-kindle-courier/internal/domain"
)

// Fanout dispatches events to all configured publishers.
type Fanout struct {
	publishers []Publisher
	log        Logger
}

// NewFanout builds a dispatcher that fans out events across publishers.
func NewFanout(pubs []Publisher, log Logger) *Fanout {
	cp := make([]Publisher, 0, len(pubs))
	for _, p := range pubs {
		if p == nil {
			continue
		}
		cp = append(cp, p)
	}
	return &Fanout{publishers: cp, log: ensureLogger(log)}
}

// Publish forwards the event to every registered publisher.
// It returns the number of publishers that successfully handled the event.
func (f *Fanout) Publish(ctx context.Context, evt Event) (int, error) {
	if f == nil || len(f.publishers) == 0 {
		return 0, nil
	}

	var errs []error
	successful := 0
	for _, p := range f.publishers {
		if err := p.Publish(ctx, evt); err != nil {
			errs = append(errs, fmt.Errorf("%s publisher[%s]: %w", p.Type(), p.ID(), err))
		} else {
			successful++
		}
	}
	return successful, errors.Join(errs...)
}

// Observe publishes an event built from the outcome of a delivery attempt.
func (f *Fanout) Observe(ctx context.Context, o domain.Outcome) error {
	if f.Size() == 0 {
		return nil
	}
	n, err := f.Publish(ctx, NewEvent(o))
	f.log.DebugObj("delivery event fanned out", "publisher_fanout", map[string]any{
		"delivery_id": o.DeliveryID,
		"successful":  n,
		"total":       len(f.publishers),
	})
	return err
}

// Size returns the number of active publishers.
func (f *Fanout) Size() int {
	if f == nil {
		return 0
	}
	return len(f.publishers)
}

// Close releases publishers that hold connections.
func (f *Fanout) Close() error {
	if f == nil {
		return nil
	}
	return closeAll(f.publishers)
}

func closeAll(pubs []Publisher) error {
	var errs []error
	for _, p := range pubs {
		if c, ok := p.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close %s publisher[%s]: %w", p.Type(), p.ID(), err))
			}
		}
	}
	return errors.Join(errs...)
}
