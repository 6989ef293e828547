package service

import (
	"strconv"
	"sync"

	"option_terminal/pkg/logger"
)

type KeyKind string

const (
	KindTick     KeyKind = "tick"
	KindContract KeyKind = "contract"
)

// Key identifies one streaming subscription: an instrument's tick stream or
// one contract's update stream.
type Key struct {
	Kind KeyKind
	ID   string
}

func TickKey(symbol string) Key {
	return Key{Kind: KindTick, ID: symbol}
}

func ContractKey(contractID int64) Key {
	return Key{Kind: KindContract, ID: strconv.FormatInt(contractID, 10)}
}

type subscription struct {
	established bool
	listeners   map[uint64]func(in *Inbound)
}

// Registry tracks live streaming subscriptions and guarantees at most one
// underlying wire subscription per key no matter how many listeners are
// attached. Contract keys are deduplicated here, not in the panels: two
// panels tracking the same contract share one stream.
type Registry struct {
	sender Sender

	mu     sync.Mutex
	nextID uint64
	subs   map[Key]*subscription

	omu     sync.Mutex
	tickObs []func(Tick)
}

func NewRegistry(sender Sender) *Registry {
	return &Registry{
		sender: sender,
		subs:   map[Key]*subscription{},
	}
}

// Subscribe attaches a listener and, for the first listener on a key, sends
// the wire subscribe. Further subscribes on the same key are local-only.
// The returned handle removes exactly that listener; removing the last one
// sends the wire unsubscribe. The listener stays registered even when the
// wire send fails, so the caller can re-arm after reconnecting.
func (r *Registry) Subscribe(key Key, onUpdate func(in *Inbound)) (func(), error) {
	r.mu.Lock()
	sub := r.subs[key]
	if sub == nil {
		sub = &subscription{listeners: map[uint64]func(in *Inbound){}}
		r.subs[key] = sub
	}
	r.nextID++
	id := r.nextID
	sub.listeners[id] = onUpdate
	needWire := !sub.established
	if needWire {
		sub.established = true
	}
	r.mu.Unlock()

	unsubscribe := func() { r.removeListener(key, id) }

	if needWire {
		raw, err := encodeFrame(subscribeFrame(key))
		if err != nil {
			return unsubscribe, transportFault("encode subscribe %s/%s: %v", key.Kind, key.ID, err)
		}
		if !r.sender.Send(raw) {
			r.mu.Lock()
			if s := r.subs[key]; s != nil {
				s.established = false
			}
			r.mu.Unlock()
			return unsubscribe, transportFault("not connected")
		}
	}
	return unsubscribe, nil
}

func (r *Registry) removeListener(key Key, id uint64) {
	r.mu.Lock()
	sub := r.subs[key]
	if sub == nil {
		r.mu.Unlock()
		return
	}
	delete(sub.listeners, id)
	last := len(sub.listeners) == 0
	wasEstablished := sub.established
	if last {
		delete(r.subs, key)
	}
	r.mu.Unlock()

	if last && wasEstablished {
		r.sendForget(key)
	}
}

// UnsubscribeAll force-tears a key down regardless of listener count. Used
// on instrument switch: unsubscribe old, then subscribe new, never
// overlapping, so stale ticks cannot leak into the new selection.
func (r *Registry) UnsubscribeAll(key Key) {
	r.mu.Lock()
	sub := r.subs[key]
	wasEstablished := sub != nil && sub.established
	delete(r.subs, key)
	r.mu.Unlock()

	if wasEstablished {
		r.sendForget(key)
	}
}

func (r *Registry) sendForget(key Key) {
	raw, err := encodeFrame(forgetFrame(key))
	if err != nil {
		logger.Error("gateway: encode forget %s/%s: %v", key.Kind, key.ID, err)
		return
	}
	if !r.sender.Send(raw) {
		logger.Info("gateway: forget %s/%s not sent, transport down", key.Kind, key.ID)
	}
}

// Invalidate clears every established flag but keeps the listener sets.
// Runs on the disconnected state change; the owning panels decide when to
// re-subscribe after reconnection. Resubscribing silently here could race a
// credential change, so the registry never does it on its own.
func (r *Registry) Invalidate() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, sub := range r.subs {
		sub.established = false
	}
}

// Established reports whether a wire subscription is live for the key.
func (r *Registry) Established(key Key) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	sub := r.subs[key]
	return sub != nil && sub.established
}

// Listeners returns the listener count for a key.
func (r *Registry) Listeners(key Key) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	sub := r.subs[key]
	if sub == nil {
		return 0
	}
	return len(sub.listeners)
}

// OnTick registers an observer for every tick frame that reaches a live
// subscription, regardless of which key it belongs to. Used by the health
// endpoint to report stream liveness.
func (r *Registry) OnTick(fn func(Tick)) {
	r.omu.Lock()
	r.tickObs = append(r.tickObs, fn)
	r.omu.Unlock()
}

func (r *Registry) notifyTick(t Tick) {
	r.omu.Lock()
	snapshot := make([]func(Tick), len(r.tickObs))
	copy(snapshot, r.tickObs)
	r.omu.Unlock()
	for _, fn := range snapshot {
		fn(t)
	}
}

// dispatch fans a streamed frame out to every listener on its key. All
// listeners see the same snapshot; ordering across listeners is undefined.
func (r *Registry) dispatch(in *Inbound) bool {
	var key Key
	switch {
	case in.Tick != nil:
		key = TickKey(in.Tick.Symbol)
	case in.Contract != nil:
		key = ContractKey(in.Contract.ContractID)
	default:
		return false
	}

	r.mu.Lock()
	sub := r.subs[key]
	if sub == nil {
		r.mu.Unlock()
		return false
	}
	snapshot := make([]func(in *Inbound), 0, len(sub.listeners))
	for _, fn := range sub.listeners {
		snapshot = append(snapshot, fn)
	}
	r.mu.Unlock()

	if in.Tick != nil {
		r.notifyTick(*in.Tick)
	}
	for _, fn := range snapshot {
		fn(in)
	}
	return true
}
