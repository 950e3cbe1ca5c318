package events

import (
	"sync"

	"github.com/google/uuid"

	"github.com/greenbasket/checkout-service/internal/domain"
	"github.com/greenbasket/checkout-service/internal/logger"
)

// Bus is an in-process broadcast channel for order status changes. It is
// owned by the server (created at startup, closed at shutdown) rather than
// being package-global state. Delivery is at-most-once and best-effort: an
// event published while nobody listens is gone.
type Bus struct {
	mu     sync.RWMutex
	subs   map[uuid.UUID]*subscription
	buffer int
	closed bool
}

type subscription struct {
	id      uuid.UUID
	orderID uuid.UUID
	ch      chan domain.OrderEvent
	bus     *Bus
	once    sync.Once
}

// Subscription is a first-class handle to one order's event feed. The owner
// must call Close when done; leaking it keeps the subscriber registered.
type Subscription struct {
	sub *subscription
}

// Events is the delivery channel. It is closed when the subscription or the
// bus shuts down.
func (s *Subscription) Events() <-chan domain.OrderEvent {
	return s.sub.ch
}

// Close deregisters the subscription and closes its channel. Safe to call
// more than once.
func (s *Subscription) Close() {
	s.sub.close()
}

func NewBus(buffer int) *Bus {
	if buffer < 1 {
		buffer = 1
	}
	return &Bus{
		subs:   make(map[uuid.UUID]*subscription),
		buffer: buffer,
	}
}

// Subscribe registers a listener filtered to one order id. Each subscriber
// gets its own buffered queue so one slow consumer cannot stall another.
func (b *Bus) Subscribe(orderID uuid.UUID) *Subscription {
	sub := &subscription{
		id:      uuid.New(),
		orderID: orderID,
		ch:      make(chan domain.OrderEvent, b.buffer),
		bus:     b,
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(sub.ch)
		return &Subscription{sub: sub}
	}
	b.subs[sub.id] = sub
	return &Subscription{sub: sub}
}

// Publish delivers the event to every matching subscriber without blocking.
// A subscriber whose queue is full misses the event.
func (b *Bus) Publish(evt domain.OrderEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	for _, sub := range b.subs {
		if sub.orderID != evt.OrderID {
			continue
		}
		select {
		case sub.ch <- evt:
		default:
			logger.Warn("event dropped for slow subscriber", "order_id", evt.OrderID)
		}
	}
}

// SubscriberCount reports the number of registered subscriptions.
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Close shuts the bus down and closes every subscriber channel.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, sub := range b.subs {
		delete(b.subs, id)
		close(sub.ch)
	}
}

func (s *subscription) close() {
	s.once.Do(func() {
		s.bus.mu.Lock()
		defer s.bus.mu.Unlock()
		if _, ok := s.bus.subs[s.id]; ok {
			delete(s.bus.subs, s.id)
			close(s.ch)
		}
	})
}
