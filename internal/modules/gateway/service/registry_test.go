package service

import (
	"testing"

	"github.com/bytedance/sonic"
)

func tickFrame(t *testing.T, symbol string, quote float64) *Inbound {
	t.Helper()
	raw, err := sonic.Marshal(map[string]any{
		"msg_type": "tick",
		"tick":     map[string]any{"symbol": symbol, "quote": quote, "epoch": 1700000000},
	})
	if err != nil {
		t.Fatalf("marshal tick: %v", err)
	}
	in, err := decodeFrame(raw)
	if err != nil {
		t.Fatalf("decode tick: %v", err)
	}
	return in
}

func contractFrame(t *testing.T, id int64, profit float64, expired bool) *Inbound {
	t.Helper()
	exp := 0
	if expired {
		exp = 1
	}
	raw, err := sonic.Marshal(map[string]any{
		"msg_type": "proposal_open_contract",
		"proposal_open_contract": map[string]any{
			"contract_id": id, "profit": profit, "is_expired": exp,
		},
	})
	if err != nil {
		t.Fatalf("marshal contract: %v", err)
	}
	in, err := decodeFrame(raw)
	if err != nil {
		t.Fatalf("decode contract: %v", err)
	}
	return in
}

func TestRegistry_DedupAndFanout(t *testing.T) {
	s := newFakeSender()
	r := NewRegistry(s)

	var got [3][]float64
	for i := 0; i < 3; i++ {
		i := i
		if _, err := r.Subscribe(TickKey("R_10"), func(in *Inbound) {
			got[i] = append(got[i], in.Tick.Quote)
		}); err != nil {
			t.Fatalf("subscribe %d: %v", i, err)
		}
	}

	if n := s.countSent("ticks"); n != 1 {
		t.Fatalf("wire subscribes = %d for 3 listeners, want 1", n)
	}
	if n := r.Listeners(TickKey("R_10")); n != 3 {
		t.Fatalf("listeners = %d, want 3", n)
	}

	if !r.dispatch(tickFrame(t, "R_10", 123.456)) {
		t.Fatal("tick not dispatched")
	}
	for i := 0; i < 3; i++ {
		if len(got[i]) != 1 || got[i][0] != 123.456 {
			t.Errorf("listener %d saw %v, want [123.456]", i, got[i])
		}
	}
}

func TestRegistry_LastUnsubscribeSendsForget(t *testing.T) {
	s := newFakeSender()
	r := NewRegistry(s)

	u1, _ := r.Subscribe(TickKey("R_10"), func(*Inbound) {})
	u2, _ := r.Subscribe(TickKey("R_10"), func(*Inbound) {})

	u1()
	if n := s.countSent("forget_ticks"); n != 0 {
		t.Fatalf("forget sent while a listener remains (%d frames)", n)
	}
	u2()
	if n := s.countSent("forget_ticks"); n != 1 {
		t.Fatalf("forget frames = %d after last unsubscribe, want 1", n)
	}
	if r.Established(TickKey("R_10")) {
		t.Error("key still established after teardown")
	}

	// re-subscribing afterward sends exactly one new subscribe frame
	if _, err := r.Subscribe(TickKey("R_10"), func(*Inbound) {}); err != nil {
		t.Fatalf("re-subscribe: %v", err)
	}
	if n := s.countSent("ticks"); n != 2 {
		t.Fatalf("subscribe frames = %d, want 2 (initial, re-subscribe)", n)
	}
}

func TestRegistry_TickScenario(t *testing.T) {
	s := newFakeSender()
	r := NewRegistry(s)

	var quotes []float64
	unsub, err := r.Subscribe(TickKey("R_10"), func(in *Inbound) {
		quotes = append(quotes, in.Tick.Quote)
	})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	r.dispatch(tickFrame(t, "R_10", 123.456))
	if len(quotes) != 1 || quotes[0] != 123.456 {
		t.Fatalf("quotes = %v, want [123.456]", quotes)
	}

	unsub()
	if r.dispatch(tickFrame(t, "R_10", 124.0)) {
		t.Error("tick dispatched after unsubscribe")
	}
	if len(quotes) != 1 {
		t.Errorf("listener invoked after unsubscribe: %v", quotes)
	}
}

func TestRegistry_ContractDedupByID(t *testing.T) {
	s := newFakeSender()
	r := NewRegistry(s)

	// two independent panels decide to track the same contract
	var a, b int
	r.Subscribe(ContractKey(9001), func(*Inbound) { a++ })
	r.Subscribe(ContractKey(9001), func(*Inbound) { b++ })

	if n := s.countSent("proposal_open_contract"); n != 1 {
		t.Fatalf("wire subscribes = %d for one contract id, want 1", n)
	}

	r.dispatch(contractFrame(t, 9001, 1.5, false))
	if a != 1 || b != 1 {
		t.Errorf("fan-out = (%d,%d), want (1,1)", a, b)
	}
}

func TestRegistry_UnsubscribeAll(t *testing.T) {
	s := newFakeSender()
	r := NewRegistry(s)

	r.Subscribe(TickKey("R_10"), func(*Inbound) {})
	r.Subscribe(TickKey("R_10"), func(*Inbound) {})

	r.UnsubscribeAll(TickKey("R_10"))
	if n := s.countSent("forget_ticks"); n != 1 {
		t.Fatalf("forget frames = %d, want 1", n)
	}
	if r.Listeners(TickKey("R_10")) != 0 {
		t.Error("listeners survived UnsubscribeAll")
	}
	if r.dispatch(tickFrame(t, "R_10", 99)) {
		t.Error("dispatch succeeded after UnsubscribeAll")
	}
}

func TestRegistry_InvalidateKeepsListeners(t *testing.T) {
	s := newFakeSender()
	r := NewRegistry(s)

	var seen int
	r.Subscribe(TickKey("R_10"), func(*Inbound) { seen++ })

	r.Invalidate()
	if r.Established(TickKey("R_10")) {
		t.Fatal("established flag survived invalidate")
	}
	if r.Listeners(TickKey("R_10")) != 1 {
		t.Fatal("listener lost on invalidate")
	}

	// the panel re-subscribes after reconnect: a new wire frame goes out
	// and the surviving listener keeps receiving
	r.Subscribe(TickKey("R_10"), func(*Inbound) {})
	if n := s.countSent("ticks"); n != 2 {
		t.Fatalf("subscribe frames = %d after re-establishment, want 2", n)
	}
	r.dispatch(tickFrame(t, "R_10", 50))
	if seen != 1 {
		t.Errorf("original listener saw %d updates after reconnect, want 1", seen)
	}
}

func TestRegistry_TickObserver(t *testing.T) {
	s := newFakeSender()
	r := NewRegistry(s)

	var epochs []int64
	r.OnTick(func(tk Tick) { epochs = append(epochs, tk.Epoch) })

	// nothing subscribed: the frame is unrouted and observers stay silent
	if r.dispatch(tickFrame(t, "R_10", 100)) {
		t.Fatal("dispatch succeeded with no subscription")
	}
	if len(epochs) != 0 {
		t.Fatalf("observer fired for an unrouted tick: %v", epochs)
	}

	r.Subscribe(TickKey("R_10"), func(*Inbound) {})
	r.dispatch(tickFrame(t, "R_10", 100))
	if len(epochs) != 1 || epochs[0] != 1700000000 {
		t.Fatalf("observed epochs = %v, want [1700000000]", epochs)
	}
}

func TestRegistry_SubscribeWhileDisconnected(t *testing.T) {
	s := newFakeSender()
	s.ok = false
	r := NewRegistry(s)

	_, err := r.Subscribe(TickKey("R_10"), func(*Inbound) {})
	if !IsTransport(err) {
		t.Fatalf("want transport fault, got %v", err)
	}
	// listener stays registered so the caller can re-arm after reconnect
	if r.Listeners(TickKey("R_10")) != 1 {
		t.Error("listener dropped on failed wire subscribe")
	}
	if r.Established(TickKey("R_10")) {
		t.Error("key marked established despite failed send")
	}
}
