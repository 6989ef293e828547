package service

import (
	"context"
	"sync"
	"time"

	"option_terminal/pkg/logger"

	"github.com/gorilla/websocket"
)

// State of the one process-wide connection.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateAuthorizing  State = "authorizing"
	StateAuthorized   State = "authorized"
	StateError        State = "error"
)

type StateListener func(State)

// Conn owns the lifecycle of the single duplex transport. Everything above
// it (broker, registry, session) reaches the wire only through Send; nothing
// else ever touches the socket.
type Conn struct {
	url    string
	dialer *websocket.Dialer

	mu    sync.Mutex
	ws    *websocket.Conn
	state State
	gen   uint64 // transport generation; stale read loops check it before touching state

	writeMu sync.Mutex

	lmu       sync.Mutex
	nextLID   uint64
	listeners map[uint64]StateListener

	onFrame func(raw []byte)
}

func NewConn(url string) *Conn {
	return &Conn{
		url:       url,
		dialer:    &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		state:     StateDisconnected,
		listeners: map[uint64]StateListener{},
	}
}

// SetFrameHandler wires the router in. Must be called before Dial.
func (c *Conn) SetFrameHandler(fn func(raw []byte)) {
	c.onFrame = fn
}

func (c *Conn) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// IsConnected reports whether the transport is open, regardless of
// authorization progress.
func (c *Conn) IsConnected() bool {
	switch c.State() {
	case StateConnected, StateAuthorizing, StateAuthorized:
		return true
	}
	return false
}

// OnStateChange registers a listener and returns its removal func.
// Listeners fire synchronously, outside the connection lock.
func (c *Conn) OnStateChange(fn StateListener) func() {
	c.lmu.Lock()
	c.nextLID++
	id := c.nextLID
	c.listeners[id] = fn
	c.lmu.Unlock()
	return func() {
		c.lmu.Lock()
		delete(c.listeners, id)
		c.lmu.Unlock()
	}
}

func (c *Conn) setState(s State) {
	c.mu.Lock()
	if c.state == s {
		c.mu.Unlock()
		return
	}
	c.state = s
	c.mu.Unlock()
	c.fire(s)
}

func (c *Conn) fire(s State) {
	c.lmu.Lock()
	snapshot := make([]StateListener, 0, len(c.listeners))
	for _, fn := range c.listeners {
		snapshot = append(snapshot, fn)
	}
	c.lmu.Unlock()
	for _, fn := range snapshot {
		fn(s)
	}
}

// Dial opens the transport and starts the read loop. The authorization
// handshake, if any, is driven by the Client on top of this. Failure lands
// in StateError; no automatic retry is scheduled — the caller decides.
func (c *Conn) Dial(ctx context.Context) error {
	c.mu.Lock()
	if c.ws != nil {
		c.mu.Unlock()
		return transportFault("already connected")
	}
	c.state = StateConnecting
	c.mu.Unlock()
	c.fire(StateConnecting)

	ws, _, err := c.dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		c.setState(StateError)
		return transportFault("dial %s: %v", c.url, err)
	}

	c.mu.Lock()
	c.ws = ws
	c.gen++
	gen := c.gen
	c.state = StateConnected
	c.mu.Unlock()
	c.fire(StateConnected)

	go c.readLoop(ws, gen)
	logger.Info("gateway: connected to %s", c.url)
	return nil
}

// Disconnect tears the transport down and lands in StateDisconnected. The
// state-change notification is what tells the registry and session to drop
// their derived state; Conn itself keeps nothing but the socket.
func (c *Conn) Disconnect() {
	c.mu.Lock()
	ws := c.ws
	c.ws = nil
	c.gen++
	already := c.state == StateDisconnected
	c.state = StateDisconnected
	c.mu.Unlock()

	if ws != nil {
		_ = ws.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		_ = ws.Close()
	}
	if !already {
		c.fire(StateDisconnected)
	}
}

// Send hands one frame to the transport. Returns false, never an error,
// when the transport is not open: callers treat "could not send" as a
// recoverable condition, not an exception.
func (c *Conn) Send(frame []byte) bool {
	c.mu.Lock()
	ws := c.ws
	c.mu.Unlock()
	if ws == nil {
		return false
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = ws.SetWriteDeadline(time.Now().Add(5 * time.Second))
	if err := ws.WriteMessage(websocket.TextMessage, frame); err != nil {
		logger.Error("gateway: write failed: %v", err)
		return false
	}
	return true
}

// markAuthorizing / markAuthorized advance the handshake phases; they are
// driven by Client.Connect once the transport is up.
func (c *Conn) markAuthorizing() { c.setState(StateAuthorizing) }
func (c *Conn) markAuthorized()  { c.setState(StateAuthorized) }
func (c *Conn) markError()       { c.setState(StateError) }

func (c *Conn) readLoop(ws *websocket.Conn, gen uint64) {
	for {
		_, raw, err := ws.ReadMessage()
		if err != nil {
			c.mu.Lock()
			stale := c.gen != gen
			if !stale {
				c.ws = nil
				c.state = StateDisconnected
			}
			c.mu.Unlock()
			if !stale {
				// unexpected closure, not a local Disconnect
				logger.Error("gateway: transport closed: %v", err)
				_ = ws.Close()
				c.fire(StateDisconnected)
			}
			return
		}
		if c.onFrame != nil {
			c.onFrame(raw)
		}
	}
}
