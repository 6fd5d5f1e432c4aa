package realtime

import (
	"context"
	"sync"
)

// Bus publishes and delivers insert events.
type Bus interface {
	Publish(ctx context.Context, event *InsertEvent) error
	Subscribe(ctx context.Context, table string, filter Filter) (*Subscription, error)
	Close() error
}

// Subscription is a live feed of matching insert events. Events arrive in
// publish order. Unsubscribe may be called any number of times.
type Subscription struct {
	ID     string
	Table  string
	Filter Filter

	events <-chan *InsertEvent
	once   sync.Once
	stop   func()
}

func newSubscription(id, table string, filter Filter, events <-chan *InsertEvent, stop func()) *Subscription {
	return &Subscription{
		ID:     id,
		Table:  table,
		Filter: filter,
		events: events,
		stop:   stop,
	}
}

// Events is closed once the subscription ends.
func (s *Subscription) Events() <-chan *InsertEvent {
	return s.events
}

func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		if s.stop != nil {
			s.stop()
		}
	})
}
