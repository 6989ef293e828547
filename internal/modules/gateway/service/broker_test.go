package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"option_terminal/pkg/logger"
)

func init() {
	logger.Init()
}

// fakeSender records outbound frames and answers Send with a fixed result.
type fakeSender struct {
	mu     sync.Mutex
	frames [][]byte
	ok     bool
}

func newFakeSender() *fakeSender { return &fakeSender{ok: true} }

func (s *fakeSender) Send(frame []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.ok {
		return false
	}
	cp := make([]byte, len(frame))
	copy(cp, frame)
	s.frames = append(s.frames, cp)
	return true
}

func (s *fakeSender) sent() []map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]map[string]any, 0, len(s.frames))
	for _, raw := range s.frames {
		var m map[string]any
		if err := sonic.Unmarshal(raw, &m); err == nil {
			out = append(out, m)
		}
	}
	return out
}

// countSent returns how many recorded frames carry the given key.
func (s *fakeSender) countSent(key string) int {
	n := 0
	for _, m := range s.sent() {
		if _, ok := m[key]; ok {
			n++
		}
	}
	return n
}

func replyFor(t *testing.T, frame Outbound, msgType string, payload map[string]any) []byte {
	t.Helper()
	msg := map[string]any{
		"msg_type": msgType,
		"echo_req": map[string]any(frame),
	}
	for k, v := range payload {
		msg[k] = v
	}
	raw, err := sonic.Marshal(msg)
	if err != nil {
		t.Fatalf("marshal reply: %v", err)
	}
	return raw
}

func waitPending(t *testing.T, b *Broker, want int) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for b.PendingCount() != want {
		if time.Now().After(deadline) {
			t.Fatalf("pending count never reached %d, have %d", want, b.PendingCount())
		}
		time.Sleep(time.Millisecond)
	}
}

func proposalParams(symbol, contractType string) ProposalParams {
	return ProposalParams{
		Amount:       10,
		Basis:        "stake",
		ContractType: contractType,
		Currency:     "USD",
		Symbol:       symbol,
		Duration:     5,
		DurationUnit: "t",
	}
}

func TestBroker_NotConnected(t *testing.T) {
	s := newFakeSender()
	s.ok = false
	b := NewBroker(s)

	_, err := b.Request(context.Background(), proposalFrame(proposalParams("R_10", "CALL")), time.Second)
	if !IsTransport(err) {
		t.Fatalf("want transport fault, got %v", err)
	}
	if b.PendingCount() != 0 {
		t.Errorf("pending count = %d after failed send, want 0", b.PendingCount())
	}
}

func TestBroker_CorrelationIsolation(t *testing.T) {
	s := newFakeSender()
	b := NewBroker(s)
	r := NewRouter(b, NewRegistry(s))

	f10 := proposalFrame(proposalParams("R_10", "CALL"))
	f25 := proposalFrame(proposalParams("R_25", "CALL"))

	type outcome struct {
		id  string
		err error
	}
	res10 := make(chan outcome, 1)
	res25 := make(chan outcome, 1)
	go func() {
		in, err := b.Request(context.Background(), f10, time.Second)
		if err != nil {
			res10 <- outcome{err: err}
			return
		}
		res10 <- outcome{id: in.Proposal.ID}
	}()
	go func() {
		in, err := b.Request(context.Background(), f25, time.Second)
		if err != nil {
			res25 <- outcome{err: err}
			return
		}
		res25 <- outcome{id: in.Proposal.ID}
	}()

	waitPending(t, b, 2)

	// replies arrive in the opposite order of the sends
	r.Route(replyFor(t, f25, "proposal", map[string]any{
		"proposal": map[string]any{"id": "q-25", "ask_price": 5.1},
	}))
	r.Route(replyFor(t, f10, "proposal", map[string]any{
		"proposal": map[string]any{"id": "q-10", "ask_price": 5.5},
	}))

	o10 := <-res10
	o25 := <-res25
	if o10.err != nil || o10.id != "q-10" {
		t.Errorf("R_10 request resolved as (%q, %v), want q-10", o10.id, o10.err)
	}
	if o25.err != nil || o25.id != "q-25" {
		t.Errorf("R_25 request resolved as (%q, %v), want q-25", o25.id, o25.err)
	}
}

func TestBroker_MismatchedEchoIgnored(t *testing.T) {
	s := newFakeSender()
	b := NewBroker(s)
	r := NewRouter(b, NewRegistry(s))

	f10 := proposalFrame(proposalParams("R_10", "CALL"))
	f25 := proposalFrame(proposalParams("R_25", "CALL"))

	done := make(chan *Inbound, 1)
	go func() {
		in, err := b.Request(context.Background(), f10, time.Second)
		if err != nil {
			t.Errorf("request failed: %v", err)
		}
		done <- in
	}()
	waitPending(t, b, 1)

	// wrong symbol: must not resolve the pending request
	r.Route(replyFor(t, f25, "proposal", map[string]any{
		"proposal": map[string]any{"id": "q-25"},
	}))
	if b.PendingCount() != 1 {
		t.Fatal("mismatched reply consumed the pending request")
	}

	r.Route(replyFor(t, f10, "proposal", map[string]any{
		"proposal": map[string]any{"id": "q-10"},
	}))
	in := <-done
	if in.Proposal.ID != "q-10" {
		t.Errorf("resolved with %q, want q-10", in.Proposal.ID)
	}
}

func TestBroker_ServerError(t *testing.T) {
	s := newFakeSender()
	b := NewBroker(s)
	r := NewRouter(b, NewRegistry(s))

	frame := buyFrame("q-1", 5.5)
	errc := make(chan error, 1)
	go func() {
		_, err := b.Request(context.Background(), frame, time.Second)
		errc <- err
	}()
	waitPending(t, b, 1)

	r.Route(replyFor(t, frame, "buy", map[string]any{
		"error": map[string]any{"code": "InsufficientBalance", "message": "Your account balance is too low."},
	}))

	err := <-errc
	f := FaultOf(err)
	if f == nil || f.Kind != FaultServer {
		t.Fatalf("want server fault, got %v", err)
	}
	if f.Message != "Your account balance is too low." {
		t.Errorf("server message not passed through verbatim: %q", f.Message)
	}
}

func TestBroker_TimeoutThenLateReplyDropped(t *testing.T) {
	s := newFakeSender()
	b := NewBroker(s)

	frame := buyFrame("q-9", 12.0)
	start := time.Now()
	_, err := b.Request(context.Background(), frame, 50*time.Millisecond)
	if !IsTimeout(err) {
		t.Fatalf("want timeout fault, got %v", err)
	}
	if time.Since(start) > time.Second {
		t.Error("timeout took far longer than the deadline")
	}
	if b.PendingCount() != 0 {
		t.Errorf("pending count = %d after timeout, want 0", b.PendingCount())
	}

	// the late reply finds nothing to resolve
	var in Inbound
	raw := replyFor(t, frame, "buy", map[string]any{
		"buy": map[string]any{"contract_id": 42},
	})
	if err := sonic.Unmarshal(raw, &in); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if b.resolve(&in) {
		t.Error("late reply resolved a request that already timed out")
	}
}

func TestBroker_CancelRemovesPending(t *testing.T) {
	s := newFakeSender()
	b := NewBroker(s)

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() {
		_, err := b.Request(ctx, sellFrame(7, 0), time.Minute)
		errc <- err
	}()
	waitPending(t, b, 1)
	cancel()

	if err := <-errc; !IsTransport(err) {
		t.Fatalf("want transport fault on cancel, got %v", err)
	}
	if b.PendingCount() != 0 {
		t.Errorf("pending count = %d after cancel, want 0", b.PendingCount())
	}
}
