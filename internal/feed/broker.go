// Package feed broadcasts record change events to Server-Sent Events and
// websocket subscribers.
package feed

import (
	"sync/atomic"
	"time"

	"github.com/starford/ansuz/internal/models"
)

// Event types published by the node.
const (
	TypeRecordInitialized = "record.initialized"
	TypeRecordAppended    = "record.appended"
	TypeCloudUpdated      = "cloud.updated"
)

// Event is one change notification.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// RecordRef identifies the record an event refers to.
type RecordRef struct {
	Program string `json:"program"`
	Key     string `json:"key"`
}

type recordEventReq struct {
	kind string
	addr models.RecordAddress
}

// Broker fans events out to subscribers.
//
// Concurrency model: a single internal event loop owns the subscriber set and
// the cloud.updated throttle timestamp. Public methods talk to the loop over
// channels.
type Broker struct {
	cloudMin time.Duration

	subscribeCh   chan chan Event
	unsubscribeCh chan chan Event
	publishCh     chan Event
	recordCh      chan recordEventReq
	countReqCh    chan chan int

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// NewBroker creates a broker that emits at most one cloud.updated event per
// cloudThrottle.
func NewBroker(cloudThrottle time.Duration) *Broker {
	if cloudThrottle <= 0 {
		cloudThrottle = 2 * time.Second
	}

	b := &Broker{
		cloudMin:      cloudThrottle,
		subscribeCh:   make(chan chan Event),
		unsubscribeCh: make(chan chan Event),
		publishCh:     make(chan Event, 256),
		recordCh:      make(chan recordEventReq, 256),
		countReqCh:    make(chan chan int),
		stopCh:        make(chan struct{}),
		stopped:       make(chan struct{}),
	}

	go b.run()
	return b
}

func (b *Broker) run() {
	defer close(b.stopped)

	clients := make(map[chan Event]struct{})
	var lastCloud time.Time

	broadcast := func(event Event) {
		for ch := range clients {
			select {
			case ch <- event:
			default:
				// Slow subscriber; drop rather than stall the loop.
			}
		}
	}

	for {
		select {
		case <-b.stopCh:
			for ch := range clients {
				close(ch)
			}
			return

		case ch := <-b.subscribeCh:
			clients[ch] = struct{}{}

		case ch := <-b.unsubscribeCh:
			if _, ok := clients[ch]; ok {
				delete(clients, ch)
				close(ch)
			}

		case event := <-b.publishCh:
			broadcast(event)

		case req := <-b.recordCh:
			ref := RecordRef{Program: req.addr.ProgramID, Key: req.addr.Key}
			switch req.kind {
			case TypeRecordInitialized, TypeRecordAppended:
				broadcast(Event{Type: req.kind, Data: ref})
			default:
				continue
			}

			now := time.Now()
			if now.Sub(lastCloud) >= b.cloudMin {
				lastCloud = now
				broadcast(Event{Type: TypeCloudUpdated, Data: map[string]string{}})
			}

		case resp := <-b.countReqCh:
			resp <- len(clients)
		}
	}
}

// Close stops the loop and closes every subscriber channel.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.stopCh)
	}
	<-b.stopped
}

// Subscribe adds a subscriber and returns its channel.
func (b *Broker) Subscribe() chan Event {
	ch := make(chan Event, 64)
	if b.closed.Load() {
		close(ch)
		return ch
	}

	select {
	case b.subscribeCh <- ch:
	case <-b.stopped:
		close(ch)
	}
	return ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (b *Broker) Unsubscribe(ch chan Event) {
	if b.closed.Load() {
		return
	}
	select {
	case b.unsubscribeCh <- ch:
	case <-b.stopped:
	}
}

// ClientCount returns the number of subscribers.
func (b *Broker) ClientCount() int {
	if b.closed.Load() {
		return 0
	}

	resp := make(chan int, 1)
	select {
	case b.countReqCh <- resp:
	case <-b.stopped:
		return 0
	}

	select {
	case n := <-resp:
		return n
	case <-b.stopped:
		return 0
	}
}

// publish sends an event to all subscribers.
func (b *Broker) publish(event Event) {
	if b.closed.Load() {
		return
	}
	select {
	case b.publishCh <- event:
	case <-b.stopped:
	}
}

// PublishRecordEvent publishes a record change followed by a throttled
// cloud.updated event. Unknown kinds are ignored.
func (b *Broker) PublishRecordEvent(kind string, addr models.RecordAddress) {
	if b.closed.Load() {
		return
	}
	select {
	case b.recordCh <- recordEventReq{kind: kind, addr: addr}:
	case <-b.stopped:
	}
}
