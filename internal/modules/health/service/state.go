package service

import (
	"sync/atomic"
	"time"
)

type State struct {
	startedAt time.Time

	gatewayState atomic.Value // gateway connection state string
	lastTickUnix atomic.Int64 // unix seconds
}

func NewState() *State {
	s := &State{startedAt: time.Now()}
	s.gatewayState.Store("disconnected")
	return s
}

func (s *State) SetGatewayState(v string) { s.gatewayState.Store(v) }
func (s *State) GatewayState() string     { return s.gatewayState.Load().(string) }

// Ready means the gateway holds an open transport; authorization may still
// be in flight.
func (s *State) Ready() bool {
	switch s.GatewayState() {
	case "connected", "authorizing", "authorized":
		return true
	}
	return false
}

func (s *State) TouchTick(t time.Time) { s.lastTickUnix.Store(t.Unix()) }
func (s *State) LastTick() time.Time {
	u := s.lastTickUnix.Load()
	if u == 0 {
		return time.Time{}
	}
	return time.Unix(u, 0)
}

func (s *State) Uptime() time.Duration { return time.Since(s.startedAt) }
