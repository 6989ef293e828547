package service

import (
	"context"
	"sync"
	"time"

	"github.com/opentracing/opentracing-go"
)

// Sender is the one door to the wire. Conn implements it; tests swap in a
// recording fake.
type Sender interface {
	Send(frame []byte) bool
}

// pendingRequest lives from send until exactly one of: matching reply,
// deadline, caller cancel. Whoever removes it from the map under the lock
// is the one that completes it, so it never completes twice.
type pendingRequest struct {
	correlate func(in *Inbound) bool
	done      chan *Inbound // buffered 1
}

// Broker turns one outbound frame plus a later matching inbound frame into
// a single awaitable result. Many requests may be outstanding at once; each
// is isolated by its own predicate and deadline. No queuing, no rate
// limiting.
type Broker struct {
	sender Sender

	mu      sync.Mutex
	nextID  uint64
	pending map[uint64]*pendingRequest
}

func NewBroker(sender Sender) *Broker {
	return &Broker{
		sender:  sender,
		pending: map[uint64]*pendingRequest{},
	}
}

// Request sends the frame and waits for the correlated reply. The predicate
// compares every echoed request field, so concurrent requests of the same
// verb that differ in any parameter resolve independently.
func (b *Broker) Request(ctx context.Context, frame Outbound, timeout time.Duration) (*Inbound, error) {
	span := opentracing.StartSpan("gateway.request")
	span.SetTag("verb", frameVerb(frame))
	defer span.Finish()

	raw, err := encodeFrame(frame)
	if err != nil {
		return nil, transportFault("encode %s: %v", frameVerb(frame), err)
	}

	p := &pendingRequest{
		correlate: func(in *Inbound) bool {
			return echoMatches(frame, in.EchoReq)
		},
		done: make(chan *Inbound, 1),
	}

	// Register before sending so a reply can never beat the bookkeeping.
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.pending[id] = p
	b.mu.Unlock()

	if !b.sender.Send(raw) {
		b.remove(id)
		span.SetTag("error", "not_connected")
		return nil, transportFault("not connected")
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case in := <-p.done:
		if in.Error != nil {
			span.SetTag("error", in.Error.Code)
			return nil, serverFault(in.Error)
		}
		return in, nil
	case <-timer.C:
		// A late reply finds no pending entry and is dropped by the router.
		b.remove(id)
		span.SetTag("error", "timeout")
		return nil, timeoutFault("%s: no reply within %s", frameVerb(frame), timeout)
	case <-ctx.Done():
		b.remove(id)
		span.SetTag("error", "canceled")
		return nil, transportFault("%s: %v", frameVerb(frame), ctx.Err())
	}
}

func (b *Broker) remove(id uint64) {
	b.mu.Lock()
	delete(b.pending, id)
	b.mu.Unlock()
}

// resolve delivers the frame to the first pending request whose predicate it
// satisfies. Removal and delivery happen under the lock, so a request that
// already timed out can never be resurrected.
func (b *Broker) resolve(in *Inbound) bool {
	if len(in.EchoReq) == 0 {
		return false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, p := range b.pending {
		if p.correlate(in) {
			delete(b.pending, id)
			p.done <- in
			return true
		}
	}
	return false
}

// PendingCount reports in-flight requests; surfaced on the health endpoint.
func (b *Broker) PendingCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}
