package service

import (
	"fmt"
	"strconv"

	"github.com/bytedance/sonic"
)

// Outbound is a request or subscribe frame. Frames are flat JSON objects;
// the server echoes them back verbatim under echo_req, which is what the
// broker correlates on.
type Outbound map[string]any

func encodeFrame(f Outbound) ([]byte, error) {
	return sonic.Marshal(f)
}

// APIError is the error payload of a reply frame. A reply carrying one is
// still a reply to its request, just a failing one.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type Tick struct {
	Symbol string  `json:"symbol"`
	Quote  float64 `json:"quote"`
	Epoch  int64   `json:"epoch"`
}

type Proposal struct {
	ID       string  `json:"id"`
	AskPrice float64 `json:"ask_price"`
	Payout   float64 `json:"payout"`
	Spot     float64 `json:"spot"`
	LongCode string  `json:"longcode"`
}

type BuyReceipt struct {
	ContractID    int64   `json:"contract_id"`
	BuyPrice      float64 `json:"buy_price"`
	TransactionID int64   `json:"transaction_id"`
	LongCode      string  `json:"longcode"`
	StartTime     int64   `json:"start_time"`
}

type SellReceipt struct {
	ContractID    int64   `json:"contract_id"`
	SoldFor       float64 `json:"sold_for"`
	TransactionID int64   `json:"transaction_id"`
}

type AccountInfo struct {
	Balance  float64 `json:"balance"`
	Currency string  `json:"currency"`
	LoginID  string  `json:"loginid"`
}

// ContractSnapshot is the latest pushed state of one placed contract,
// including the contract-specific reveals (reset barrier, final digit).
type ContractSnapshot struct {
	ContractID   int64   `json:"contract_id"`
	Symbol       string  `json:"underlying"`
	ContractType string  `json:"contract_type"`
	CurrentSpot  float64 `json:"current_spot"`
	BuyPrice     float64 `json:"buy_price"`
	Payout       float64 `json:"payout"`
	Profit       float64 `json:"profit"`
	IsExpired    int     `json:"is_expired"`
	IsSold       int     `json:"is_sold"`
	Status       string  `json:"status"`
	Barrier      string  `json:"barrier"`
	HighBarrier  string  `json:"high_barrier"`
	LowBarrier   string  `json:"low_barrier"`
	ResetBarrier string  `json:"reset_barrier"`
	ExitDigit    *int    `json:"exit_tick_digit"`
	SellPrice    float64 `json:"sell_price"`
}

// Settled reports whether the contract reached a terminal state.
func (c *ContractSnapshot) Settled() bool {
	return c.IsExpired == 1 || c.IsSold == 1
}

// Inbound is a decoded frame off the wire. Exactly one payload pointer is
// set for a well-formed frame; EchoReq is present on solicited replies.
type Inbound struct {
	MsgType   string            `json:"msg_type"`
	EchoReq   map[string]any    `json:"echo_req"`
	Error     *APIError         `json:"error"`
	Authorize *AccountInfo      `json:"authorize"`
	Tick      *Tick             `json:"tick"`
	Proposal  *Proposal         `json:"proposal"`
	Buy       *BuyReceipt       `json:"buy"`
	Sell      *SellReceipt      `json:"sell"`
	Contract  *ContractSnapshot `json:"proposal_open_contract"`
}

func decodeFrame(raw []byte) (*Inbound, error) {
	var in Inbound
	if err := sonic.Unmarshal(raw, &in); err != nil {
		return nil, err
	}
	return &in, nil
}

// ProposalParams describes a candidate contract for a quote request.
type ProposalParams struct {
	Amount       float64
	Basis        string // "stake" | "payout"
	ContractType string
	Currency     string
	Symbol       string
	Duration     int
	DurationUnit string // "t" | "s" | "m" | "h" | "d"
	Barrier      string  // optional
	Barrier2     string  // optional, range contracts
	GrowthRate   float64 // optional, accumulators
}

func authorizeFrame(token string) Outbound {
	return Outbound{"authorize": token}
}

func proposalFrame(p ProposalParams) Outbound {
	f := Outbound{
		"proposal":      1,
		"amount":        p.Amount,
		"basis":         p.Basis,
		"contract_type": p.ContractType,
		"currency":      p.Currency,
		"symbol":        p.Symbol,
		"duration":      p.Duration,
		"duration_unit": p.DurationUnit,
	}
	if p.Barrier != "" {
		f["barrier"] = p.Barrier
	}
	if p.Barrier2 != "" {
		f["barrier2"] = p.Barrier2
	}
	if p.GrowthRate > 0 {
		f["growth_rate"] = p.GrowthRate
	}
	return f
}

func buyFrame(proposalID string, price float64) Outbound {
	return Outbound{"buy": proposalID, "price": price}
}

func sellFrame(contractID int64, price float64) Outbound {
	return Outbound{"sell": contractID, "price": price}
}

func subscribeFrame(key Key) Outbound {
	if key.Kind == KindContract {
		id, _ := strconv.ParseInt(key.ID, 10, 64)
		return Outbound{"proposal_open_contract": 1, "contract_id": id, "subscribe": 1}
	}
	return Outbound{"ticks": key.ID, "subscribe": 1}
}

func forgetFrame(key Key) Outbound {
	if key.Kind == KindContract {
		id, _ := strconv.ParseInt(key.ID, 10, 64)
		return Outbound{"forget_contract": id}
	}
	return Outbound{"forget_ticks": key.ID}
}

// frameVerb names the request kind for logs and trace spans.
func frameVerb(f Outbound) string {
	for _, v := range []string{"authorize", "proposal", "buy", "sell"} {
		if _, ok := f[v]; ok {
			return v
		}
	}
	return "unknown"
}

// echoMatches compares every sent field against the echoed request. Matching
// the full parameter set keeps two in-flight requests of the same verb apart
// even when they differ only in barrier or amount.
func echoMatches(sent Outbound, echo map[string]any) bool {
	if len(echo) == 0 {
		return false
	}
	for k, want := range sent {
		got, ok := echo[k]
		if !ok {
			return false
		}
		if !jsonEq(want, got) {
			return false
		}
	}
	return true
}

// jsonEq compares a value we sent with its round-tripped echo. Numbers come
// back as float64 regardless of what went out.
func jsonEq(a, b any) bool {
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if aok && bok {
		return af == bf
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}
