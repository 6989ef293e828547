package service

import (
	"context"
	"sync"

	gws "option_terminal/internal/modules/gateway/service"
	"option_terminal/pkg/logger"

	"github.com/pkg/errors"
)

// Trader is the slice of the gateway client a panel consumes. Panels are
// pure consumers: no dedup sets, no wire frames, no handler bookkeeping of
// their own — the client owns all of that.
type Trader interface {
	RequestProposal(ctx context.Context, p gws.ProposalParams) (*gws.Proposal, error)
	Buy(ctx context.Context, proposalID string, price float64) (*gws.BuyReceipt, error)
	Sell(ctx context.Context, contractID int64, price float64) (*gws.SellReceipt, error)
	SubscribeTicks(symbol string, fn func(gws.Tick)) (func(), error)
	UnsubscribeTicks(symbol string)
	SubscribeContract(contractID int64, fn func(gws.ContractSnapshot)) (func(), error)
	GetAccountInfo() *gws.AccountInfo
}

// Recorder receives settled contracts; the journal implements it.
type Recorder interface {
	Settled(ctx context.Context, c gws.ContractSnapshot) error
}

// Notifier is the outbound message hook, satisfied by internal/notify.
type Notifier interface {
	Sendf(format string, args ...any)
}

// Inputs are the user-editable trade parameters of one panel.
type Inputs struct {
	Stake      float64
	Currency   string
	Duration   int
	DurUnit    string
	Barrier    string
	Barrier2   string
	GrowthRate float64
}

// Panel is one contract-variety view: stream ticks for the selected
// instrument, quote, buy, then follow the position to settlement. Every
// panel runs the same machine; only the PanelSpec differs.
type Panel struct {
	spec   PanelSpec
	trader Trader
	rec    Recorder
	n      Notifier

	mu         sync.Mutex
	symbol     string
	inputs     Inputs
	lastTick   float64
	unsubTicks func()
	tracked    map[int64]func() // contract id -> listener removal

	tickViews     []func(gws.Tick)
	contractViews []func(gws.ContractSnapshot)
}

func NewPanel(spec PanelSpec, trader Trader, rec Recorder, n Notifier, defaults Inputs) *Panel {
	if spec.TickDurationOnly {
		defaults.DurUnit = "t"
	}
	return &Panel{
		spec:    spec,
		trader:  trader,
		rec:     rec,
		n:       n,
		inputs:  defaults,
		tracked: map[int64]func(){},
	}
}

func (p *Panel) Spec() PanelSpec { return p.spec }

func (p *Panel) Symbol() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.symbol
}

func (p *Panel) LastTick() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastTick
}

func (p *Panel) SetInputs(in Inputs) {
	p.mu.Lock()
	if p.spec.TickDurationOnly {
		in.DurUnit = "t"
	}
	p.inputs = in
	p.mu.Unlock()
}

// OnTick attaches a view callback for the panel's price stream.
func (p *Panel) OnTick(fn func(gws.Tick)) {
	p.mu.Lock()
	p.tickViews = append(p.tickViews, fn)
	p.mu.Unlock()
}

// OnContract attaches a view callback for tracked-contract updates. The
// active list and the history view both attach here and share the same
// underlying stream.
func (p *Panel) OnContract(fn func(gws.ContractSnapshot)) {
	p.mu.Lock()
	p.contractViews = append(p.contractViews, fn)
	p.mu.Unlock()
}

// SelectSymbol switches the panel's instrument: unsubscribe old, then
// subscribe new, never overlapping, so no stale tick from the previous
// instrument leaks into the new selection.
func (p *Panel) SelectSymbol(symbol string) error {
	p.mu.Lock()
	old := p.symbol
	oldUnsub := p.unsubTicks
	p.symbol = symbol
	p.unsubTicks = nil
	p.lastTick = 0
	p.mu.Unlock()

	if old != "" && old != symbol {
		// force-teardown covers every listener on the old key
		p.trader.UnsubscribeTicks(old)
	} else if oldUnsub != nil {
		// same instrument (rearm after reconnect): drop only our listener
		oldUnsub()
	}

	unsub, err := p.trader.SubscribeTicks(symbol, p.onTick)
	p.mu.Lock()
	p.unsubTicks = unsub
	p.mu.Unlock()
	return err
}

func (p *Panel) onTick(t gws.Tick) {
	p.mu.Lock()
	if t.Symbol != p.symbol {
		p.mu.Unlock()
		return
	}
	p.lastTick = t.Quote
	views := make([]func(gws.Tick), len(p.tickViews))
	copy(views, p.tickViews)
	p.mu.Unlock()
	for _, fn := range views {
		fn(t)
	}
}

func (p *Panel) params(side int) (gws.ProposalParams, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if side < 0 || side > 1 || p.spec.SideTypes[side] == "" {
		return gws.ProposalParams{}, errors.Errorf("panel %s has no side %d", p.spec.Code, side)
	}
	if p.symbol == "" {
		return gws.ProposalParams{}, errors.Errorf("panel %s: no instrument selected", p.spec.Code)
	}
	pp := gws.ProposalParams{
		Amount:       p.inputs.Stake,
		Basis:        "stake",
		ContractType: p.spec.SideTypes[side],
		Currency:     p.inputs.Currency,
		Symbol:       p.symbol,
		Duration:     p.inputs.Duration,
		DurationUnit: p.inputs.DurUnit,
	}
	switch {
	case p.spec.NeedsRange:
		pp.Barrier = p.inputs.Barrier
		pp.Barrier2 = p.inputs.Barrier2
	case p.spec.NeedsBarrier, p.spec.NeedsDigit:
		pp.Barrier = p.inputs.Barrier
	}
	if p.spec.NeedsGrowthRate {
		pp.GrowthRate = p.inputs.GrowthRate
	}
	return pp, nil
}

// Quote requests a fresh proposal for one side.
func (p *Panel) Quote(ctx context.Context, side int) (*gws.Proposal, error) {
	pp, err := p.params(side)
	if err != nil {
		return nil, err
	}
	return p.trader.RequestProposal(ctx, pp)
}

// BuyContract quotes and buys one side, then tracks the position.
func (p *Panel) BuyContract(ctx context.Context, side int) (*gws.BuyReceipt, error) {
	if p.trader.GetAccountInfo() == nil {
		return nil, errors.New("not authorized")
	}
	prop, err := p.Quote(ctx, side)
	if err != nil {
		return nil, err
	}
	receipt, err := p.trader.Buy(ctx, prop.ID, prop.AskPrice)
	if err != nil {
		return nil, err
	}
	if err := p.Track(receipt.ContractID); err != nil {
		logger.Error("panel %s: track %d: %v", p.spec.Code, receipt.ContractID, err)
	}
	return receipt, nil
}

// Track follows a placed contract to settlement. Tracking the same
// contract from two panels costs no extra wire traffic — the registry
// deduplicates by contract id.
func (p *Panel) Track(contractID int64) error {
	p.mu.Lock()
	if _, ok := p.tracked[contractID]; ok {
		p.mu.Unlock()
		return nil
	}
	p.tracked[contractID] = func() {}
	p.mu.Unlock()

	unsub, err := p.trader.SubscribeContract(contractID, p.onContract)
	p.mu.Lock()
	_, live := p.tracked[contractID]
	if live {
		p.tracked[contractID] = unsub
	}
	p.mu.Unlock()
	if !live && unsub != nil {
		// already settled: onContract removed the entry while the handle was
		// still in flight, so release the stream here
		unsub()
	}
	return err
}

// SellContract closes a tracked position at market.
func (p *Panel) SellContract(ctx context.Context, contractID int64) (*gws.SellReceipt, error) {
	return p.trader.Sell(ctx, contractID, 0)
}

func (p *Panel) onContract(c gws.ContractSnapshot) {
	p.mu.Lock()
	views := make([]func(gws.ContractSnapshot), len(p.contractViews))
	copy(views, p.contractViews)
	var unsub func()
	if c.Settled() {
		unsub = p.tracked[c.ContractID]
		delete(p.tracked, c.ContractID)
	}
	p.mu.Unlock()

	for _, fn := range views {
		fn(c)
	}

	if unsub != nil {
		unsub()
		if p.rec != nil {
			if err := p.rec.Settled(context.Background(), c); err != nil {
				logger.Error("panel %s: journal: %v", p.spec.Code, err)
			}
		}
		if p.n != nil {
			p.n.Sendf("%s settled: contract %d %s profit %.2f",
				p.spec.Title, c.ContractID, c.Status, c.Profit)
		}
	}
}

// Rearm re-establishes the panel's subscriptions after a reconnect. The
// gateway never resubscribes on its own; the owning panel decides.
func (p *Panel) Rearm() {
	p.mu.Lock()
	symbol := p.symbol
	ids := make([]int64, 0, len(p.tracked))
	for id := range p.tracked {
		ids = append(ids, id)
	}
	p.tracked = map[int64]func(){}
	p.mu.Unlock()

	if symbol != "" {
		if err := p.SelectSymbol(symbol); err != nil {
			logger.Error("panel %s: rearm ticks %s: %v", p.spec.Code, symbol, err)
		}
	}
	for _, id := range ids {
		if err := p.Track(id); err != nil {
			logger.Error("panel %s: rearm contract %d: %v", p.spec.Code, id, err)
		}
	}
}
