package service

import (
	"testing"
	"time"
)

func TestStateReady(t *testing.T) {
	s := NewState()
	if s.Ready() {
		t.Error("ready before any connection")
	}
	for _, st := range []string{"connected", "authorizing", "authorized"} {
		s.SetGatewayState(st)
		if !s.Ready() {
			t.Errorf("not ready in state %q", st)
		}
	}
	s.SetGatewayState("disconnected")
	if s.Ready() {
		t.Error("ready after disconnect")
	}
}

func TestStateTouchTick(t *testing.T) {
	s := NewState()
	if !s.LastTick().IsZero() {
		t.Error("lastTick set before any tick")
	}
	at := time.Unix(1700000000, 0)
	s.TouchTick(at)
	if !s.LastTick().Equal(at) {
		t.Errorf("lastTick = %v, want %v", s.LastTick(), at)
	}
}
