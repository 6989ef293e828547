package service

import (
	"context"

	"option_terminal/internal/modules/config"
	"option_terminal/pkg/logger"
)

// ServiceNotifier is implemented by the telegram service; nil is fine.
type ServiceNotifier interface {
	SendService(ctx context.Context, format string, args ...any)
}

// Client is the streaming trade-execution gateway: one persistent
// connection, many concurrent tick and contract subscriptions, and
// request/response semantics for proposal, buy and sell on top of the push
// protocol. Constructed once at startup and injected into every panel;
// there is no hidden global instance.
type Client struct {
	cfg *config.Config
	n   ServiceNotifier

	conn     *Conn
	broker   *Broker
	registry *Registry
	session  *Session
}

func NewClient(cfg *config.Config, n ServiceNotifier) *Client {
	url := cfg.Gateway.URL
	if cfg.Gateway.AppID != "" {
		url += "?app_id=" + cfg.Gateway.AppID
	}
	conn := NewConn(url)
	broker := NewBroker(conn)
	registry := NewRegistry(conn)
	session := NewSession()
	router := NewRouter(broker, registry)
	conn.SetFrameHandler(router.Route)

	c := &Client{
		cfg:      cfg,
		n:        n,
		conn:     conn,
		broker:   broker,
		registry: registry,
		session:  session,
	}

	// Derived state follows the connection, not the other way around: on
	// disconnect the registry loses its established flags (listeners stay)
	// and the session loses its account snapshot.
	conn.OnStateChange(func(s State) {
		if s == StateDisconnected {
			registry.Invalidate()
			session.clear()
			if n != nil {
				n.SendService(context.Background(), "gateway: connection down, subscriptions stale")
			}
		}
	})
	return c
}

func (c *Client) Session() *Session    { return c.session }
func (c *Client) Registry() *Registry  { return c.registry }
func (c *Client) IsConnected() bool    { return c.conn.IsConnected() }
func (c *Client) ConnState() State     { return c.conn.State() }
func (c *Client) PendingRequests() int { return c.broker.PendingCount() }

func (c *Client) OnStateChange(fn StateListener) func() {
	return c.conn.OnStateChange(fn)
}

func (c *Client) GetAccountInfo() *AccountInfo { return c.session.GetAccountInfo() }

// Connect opens the transport and, when a credential is present, performs
// the authorization handshake before returning. An empty credential leaves
// the connection anonymous; trading calls will fail server-side until
// authorized, which callers detect via nil AccountInfo.
func (c *Client) Connect(ctx context.Context, credential string) error {
	c.session.SetCredential(credential)
	if err := c.conn.Dial(ctx); err != nil {
		return err
	}
	if credential == "" {
		return nil
	}

	c.conn.markAuthorizing()
	in, err := c.broker.Request(ctx, authorizeFrame(credential), c.cfg.ProposalTimeout)
	if err != nil {
		// Connected but not authorized: AccountInfo stays nil, individual
		// requests are not failed preemptively.
		c.conn.markError()
		logger.Error("gateway: authorize failed: %v", err)
		return err
	}
	if in.Authorize != nil {
		c.session.storeAccount(*in.Authorize)
		logger.Info("gateway: authorized as %s", in.Authorize.LoginID)
	}
	c.conn.markAuthorized()
	return nil
}

// Disconnect closes the transport. Subscriptions are invalidated (listeners
// preserved) and the account snapshot dropped via the state-change path.
func (c *Client) Disconnect() {
	c.conn.Disconnect()
}

// ReconnectWithCredential is disconnect followed by connect with the new
// credential. Phase two starts only after the teardown's own state change
// is observed; no timing-based delay. Not concurrent-safe to call twice
// without awaiting the first — only the settings flow calls it.
func (c *Client) ReconnectWithCredential(ctx context.Context, credential string) error {
	down := make(chan struct{}, 1)
	remove := c.conn.OnStateChange(func(s State) {
		if s == StateDisconnected {
			select {
			case down <- struct{}{}:
			default:
			}
		}
	})
	defer remove()

	if c.conn.State() == StateDisconnected {
		down <- struct{}{}
	} else {
		c.conn.Disconnect()
	}

	select {
	case <-down:
	case <-ctx.Done():
		return transportFault("reconnect: %v", ctx.Err())
	}
	return c.Connect(ctx, credential)
}

// RequestProposal asks for a quote on a candidate contract.
func (c *Client) RequestProposal(ctx context.Context, p ProposalParams) (*Proposal, error) {
	in, err := c.broker.Request(ctx, proposalFrame(p), c.cfg.ProposalTimeout)
	if err != nil {
		return nil, err
	}
	if in.Proposal == nil {
		return nil, transportFault("proposal reply without payload")
	}
	return in.Proposal, nil
}

// Buy places the proposed contract at up to the given price.
func (c *Client) Buy(ctx context.Context, proposalID string, price float64) (*BuyReceipt, error) {
	in, err := c.broker.Request(ctx, buyFrame(proposalID, price), c.cfg.OrderTimeout)
	if err != nil {
		return nil, err
	}
	if in.Buy == nil {
		return nil, transportFault("buy reply without payload")
	}
	return in.Buy, nil
}

// Sell closes a tracked contract early.
func (c *Client) Sell(ctx context.Context, contractID int64, price float64) (*SellReceipt, error) {
	in, err := c.broker.Request(ctx, sellFrame(contractID, price), c.cfg.OrderTimeout)
	if err != nil {
		return nil, err
	}
	if in.Sell == nil {
		return nil, transportFault("sell reply without payload")
	}
	return in.Sell, nil
}

// SubscribeTicks streams the instrument's price. N listeners share one wire
// subscription; the handle removes one listener.
func (c *Client) SubscribeTicks(symbol string, fn func(Tick)) (func(), error) {
	return c.registry.Subscribe(TickKey(symbol), func(in *Inbound) {
		if in.Tick != nil {
			fn(*in.Tick)
		}
	})
}

// UnsubscribeTicks force-drops an instrument's stream regardless of
// listeners. Panels call it when switching instruments.
func (c *Client) UnsubscribeTicks(symbol string) {
	c.registry.UnsubscribeAll(TickKey(symbol))
}

// SubscribeContract streams one placed contract's updates. Subscribing an
// already-tracked contract attaches the listener without new wire traffic.
func (c *Client) SubscribeContract(contractID int64, fn func(ContractSnapshot)) (func(), error) {
	return c.registry.Subscribe(ContractKey(contractID), func(in *Inbound) {
		if in.Contract != nil {
			fn(*in.Contract)
		}
	})
}
