package journal

import (
	"sync"

	"github.com/zyoung51/on-http/internal/model"
)

// subscriberBufferSize is the channel buffer for each subscriber.
// Calls are dropped if a subscriber falls this far behind.
const subscriberBufferSize = 64

// Broker fans call records out to subscribers. It is safe for concurrent use.
type Broker struct {
	mu     sync.Mutex
	subs   map[int]subscription
	nextID int
	closed bool
}

type subscription struct {
	method string
	ch     chan *model.Call
}

// NewBroker creates a new broker.
func NewBroker() *Broker {
	return &Broker{subs: make(map[int]subscription)}
}

// Subscribe returns a channel that receives calls for method, or for every
// method when method is empty, and an unsubscribe function. After Close the
// returned channel is already closed.
func (b *Broker) Subscribe(method string) (<-chan *model.Call, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan *model.Call, subscriberBufferSize)
	if b.closed {
		close(ch)
		return ch, func() {}
	}

	id := b.nextID
	b.nextID++
	b.subs[id] = subscription{method: method, ch: ch}

	return ch, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.subs, id)
	}
}

// Publish sends c to every matching subscriber. Calls are dropped for
// subscribers whose buffers are full.
func (b *Broker) Publish(c *model.Call) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	for _, s := range b.subs {
		if s.method != "" && s.method != c.Method {
			continue
		}
		select {
		case s.ch <- c:
		default:
			// Never block the dispatching goroutine on a slow reader.
		}
	}
}

// Subscribers returns the number of live subscriptions.
func (b *Broker) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Close closes every subscriber channel. Later Publish calls are ignored.
func (b *Broker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for id, s := range b.subs {
		close(s.ch)
		delete(b.subs, id)
	}
}
