package service

import (
	"option_terminal/pkg/logger"
)

// Router parses every inbound frame once and hands it to exactly one of:
// a pending request, a live subscription, or the drop log. It holds no
// state of its own.
type Router struct {
	broker   *Broker
	registry *Registry
}

func NewRouter(broker *Broker, registry *Registry) *Router {
	return &Router{broker: broker, registry: registry}
}

func (r *Router) Route(raw []byte) {
	in, err := decodeFrame(raw)
	if err != nil {
		logger.Error("gateway: undecodable frame dropped: %v", err)
		return
	}
	if r.broker.resolve(in) {
		return
	}
	if r.registry.dispatch(in) {
		return
	}
	// Expected for late replies after a timeout removed their pending entry.
	logger.Info("gateway: unrouted frame dropped, msg_type=%q", in.MsgType)
}
