package realtime

import (
	"context"
	"errors"
	"sync"

	"epay/epay/utils/logging"
	"epay/epay/utils/metrics"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultBuffer is the per-subscriber channel size.
const DefaultBuffer = 64

var ErrBusClosed = errors.New("realtime: bus closed")

type memorySub struct {
	ch     chan *InsertEvent
	filter Filter
}

// MemoryBus is an in-process fan-out bus. Subscribers that fall behind by
// more than the buffer lose events rather than stall publishers.
type MemoryBus struct {
	mu          sync.RWMutex
	subscribers map[string]map[string]*memorySub // table -> subID -> sub
	buffer      int
	closed      bool
}

func NewMemoryBus(buffer int) *MemoryBus {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &MemoryBus{
		subscribers: make(map[string]map[string]*memorySub),
		buffer:      buffer,
	}
}

// Subscribe registers for inserts on table. The subscription also ends
// when ctx is cancelled.
func (b *MemoryBus) Subscribe(ctx context.Context, table string, filter Filter) (*Subscription, error) {
	subID := uuid.New().String()
	sub := &memorySub{ch: make(chan *InsertEvent, b.buffer), filter: filter}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, ErrBusClosed
	}
	if _, ok := b.subscribers[table]; !ok {
		b.subscribers[table] = make(map[string]*memorySub)
	}
	b.subscribers[table][subID] = sub
	b.mu.Unlock()

	logging.AppLogger.Debug("subscriber added",
		zap.String("table", table),
		zap.String("filter", filter.String()),
		zap.String("sub_id", subID))

	done := make(chan struct{})
	s := newSubscription(subID, table, filter, sub.ch, func() {
		close(done)
		b.remove(table, subID)
	})

	go func() {
		select {
		case <-ctx.Done():
			s.Unsubscribe()
		case <-done:
		}
	}()

	return s, nil
}

// Publish delivers event to every matching subscriber of its table.
func (b *MemoryBus) Publish(ctx context.Context, event *InsertEvent) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrBusClosed
	}

	// Sends never block, so holding the read lock keeps channels from being
	// closed underneath us.
	for id, sub := range b.subscribers[event.Table] {
		if !sub.filter.Matches(event) {
			continue
		}
		select {
		case sub.ch <- event:
		default:
			metrics.BusEventsDropped.WithLabelValues(event.Table).Inc()
			logging.AppLogger.Warn("dropped event for slow subscriber",
				zap.String("table", event.Table),
				zap.String("sub_id", id))
		}
	}
	return nil
}

func (b *MemoryBus) remove(table, subID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs, ok := b.subscribers[table]
	if !ok {
		return
	}
	sub, ok := subs[subID]
	if !ok {
		return
	}
	delete(subs, subID)
	close(sub.ch)
	if len(subs) == 0 {
		delete(b.subscribers, table)
	}

	logging.AppLogger.Debug("subscriber removed",
		zap.String("table", table),
		zap.String("sub_id", subID))
}

// Close ends every subscription. Further publishes fail with ErrBusClosed.
func (b *MemoryBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	for table, subs := range b.subscribers {
		for id, sub := range subs {
			close(sub.ch)
			delete(subs, id)
		}
		delete(b.subscribers, table)
	}
	return nil
}
