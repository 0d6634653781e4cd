// Package client is a sync protocol client for display controllers. It keeps a
// local replica of the subscribed collections, reconnecting with backoff, and
// can call methods on the server.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/jason-s-yu/shootingstars/internal/hub"
	"github.com/sirupsen/logrus"
)

var (
	// ErrNotConnected is returned by Call while no connection is open.
	ErrNotConnected = errors.New("client: not connected")
	// ErrDisconnected fails calls whose connection dropped before a result.
	ErrDisconnected = errors.New("client: connection lost before result")
)

// Subprotocol matches the server's websocket subprotocol.
const Subprotocol = "sync"

// ChangeFunc observes replica changes. fields is nil for a removed record.
type ChangeFunc func(collection, id string, fields map[string]any)

type sub struct {
	name   string
	params []json.RawMessage
}

// Client maintains one websocket connection at a time.
type Client struct {
	url      string
	logger   *logrus.Logger
	backoff  Backoff
	onChange ChangeFunc

	subs []sub

	mu      sync.Mutex
	conn    *websocket.Conn
	state   map[string]map[string]map[string]any
	pending map[string]chan hub.Message
	waiting map[string]bool
	nextID  uint64

	ready     chan struct{}
	readyOnce sync.Once
}

// Option configures a Client.
type Option func(*Client)

// WithBackoff overrides the reconnect policy.
func WithBackoff(b Backoff) Option {
	return func(c *Client) { c.backoff = b }
}

// WithOnChange registers fn to observe replica changes.
func WithOnChange(fn ChangeFunc) Option {
	return func(c *Client) { c.onChange = fn }
}

// New returns a client for the websocket at url, e.g. ws://host:8080/websocket.
func New(url string, logger *logrus.Logger, opts ...Option) *Client {
	c := &Client{
		url:     url,
		logger:  logger,
		backoff: DefaultBackoff(),
		state:   make(map[string]map[string]map[string]any),
		pending: make(map[string]chan hub.Message),
		ready:   make(chan struct{}),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Subscribe adds a publication to subscribe to on every connection. It must be
// called before Run.
func (c *Client) Subscribe(name string, params ...any) error {
	raw := make([]json.RawMessage, len(params))
	for i, p := range params {
		b, err := json.Marshal(p)
		if err != nil {
			return fmt.Errorf("encode param %d: %w", i, err)
		}
		raw[i] = b
	}
	c.subs = append(c.subs, sub{name: name, params: raw})
	return nil
}

// Ready is closed once every subscription has delivered its first snapshot.
func (c *Client) Ready() <-chan struct{} { return c.ready }

// Snapshot returns a copy of the replica of collection, keyed by record id.
func (c *Client) Snapshot(collection string) map[string]map[string]any {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]map[string]any, len(c.state[collection]))
	for id, fields := range c.state[collection] {
		cp := make(map[string]any, len(fields))
		for k, v := range fields {
			cp[k] = v
		}
		out[id] = cp
	}
	return out
}

// Run connects and keeps reconnecting until ctx is cancelled.
func (c *Client) Run(ctx context.Context) error {
	for {
		started := time.Now()
		err := c.runOnce(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		wait := c.backoff.Next(time.Since(started))
		c.logger.WithError(err).Warnf("Sync connection closed, reconnecting in %s", wait)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

func (c *Client) runOnce(ctx context.Context) error {
	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	conn, _, err := websocket.Dial(dialCtx, c.url, &websocket.DialOptions{Subprotocols: []string{Subprotocol}})
	cancel()
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	c.mu.Lock()
	c.conn = conn
	c.state = make(map[string]map[string]map[string]any)
	c.waiting = make(map[string]bool)
	c.mu.Unlock()
	defer c.disconnect()

	if err := c.write(ctx, hub.Message{Msg: hub.MsgConnect}); err != nil {
		return err
	}
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}
		var msg hub.Message
		if err := json.Unmarshal(data, &msg); err != nil {
			c.logger.Warnf("Ignoring malformed sync message: %v", err)
			continue
		}
		if err := c.handle(ctx, msg); err != nil {
			return err
		}
	}
}

func (c *Client) disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn = nil
	for id, ch := range c.pending {
		close(ch)
		delete(c.pending, id)
	}
}

func (c *Client) handle(ctx context.Context, msg hub.Message) error {
	switch msg.Msg {
	case hub.MsgConnected:
		for _, s := range c.subs {
			id := c.newID()
			c.mu.Lock()
			c.waiting[id] = true
			c.mu.Unlock()
			if err := c.write(ctx, hub.Message{Msg: hub.MsgSub, ID: id, Name: s.name, Params: s.params}); err != nil {
				return err
			}
		}
		if len(c.subs) == 0 {
			c.readyOnce.Do(func() { close(c.ready) })
		}
	case hub.MsgNoSub:
		if msg.Error != nil {
			return fmt.Errorf("subscription %s refused: %w", msg.ID, msg.Error)
		}
	case hub.MsgReady:
		c.mu.Lock()
		for _, id := range msg.Subs {
			delete(c.waiting, id)
		}
		done := len(c.waiting) == 0
		c.mu.Unlock()
		if done {
			c.readyOnce.Do(func() { close(c.ready) })
		}
	case hub.MsgAdded, hub.MsgChanged, hub.MsgRemoved:
		c.apply(msg)
	case hub.MsgResult:
		c.mu.Lock()
		ch, ok := c.pending[msg.ID]
		delete(c.pending, msg.ID)
		c.mu.Unlock()
		if ok {
			ch <- msg
		}
	case hub.MsgPing:
		return c.write(ctx, hub.Message{Msg: hub.MsgPong, ID: msg.ID})
	case hub.MsgError:
		c.logger.Errorf("Server reported protocol error: %s", msg.Reason)
	}
	return nil
}

// apply updates the replica. added replaces the record, changed merges into
// it and drops its cleared fields, and removed deletes it.
func (c *Client) apply(msg hub.Message) {
	c.mu.Lock()
	coll, ok := c.state[msg.Collection]
	if !ok {
		coll = make(map[string]map[string]any)
		c.state[msg.Collection] = coll
	}
	var view map[string]any
	if msg.Msg == hub.MsgRemoved {
		delete(coll, msg.ID)
	} else {
		current := coll[msg.ID]
		if msg.Msg == hub.MsgAdded || current == nil {
			current = make(map[string]any, len(msg.Fields))
			coll[msg.ID] = current
		}
		for k, v := range msg.Fields {
			current[k] = v
		}
		for _, k := range msg.Cleared {
			delete(current, k)
		}
		view = make(map[string]any, len(current))
		for k, v := range current {
			view[k] = v
		}
	}
	c.mu.Unlock()

	if c.onChange != nil {
		c.onChange(msg.Collection, msg.ID, view)
	}
}

func (c *Client) newID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	return strconv.FormatUint(c.nextID, 10)
}

func (c *Client) write(ctx context.Context, msg hub.Message) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode %s: %w", msg.Msg, err)
	}
	writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := conn.Write(writeCtx, websocket.MessageText, data); err != nil {
		return fmt.Errorf("write %s: %w", msg.Msg, err)
	}
	return nil
}

// Call invokes method and waits for its result. A server-side failure is
// returned as *rpc.Error.
func (c *Client) Call(ctx context.Context, method string, params ...any) (any, error) {
	raw := make([]json.RawMessage, len(params))
	for i, p := range params {
		b, err := json.Marshal(p)
		if err != nil {
			return nil, fmt.Errorf("encode param %d: %w", i, err)
		}
		raw[i] = b
	}

	id := c.newID()
	ch := make(chan hub.Message, 1)
	c.mu.Lock()
	if c.conn == nil {
		c.mu.Unlock()
		return nil, ErrNotConnected
	}
	c.pending[id] = ch
	c.mu.Unlock()

	if err := c.write(ctx, hub.Message{Msg: hub.MsgMethod, ID: id, Method: method, Params: raw}); err != nil {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		return nil, err
	}

	select {
	case <-ctx.Done():
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		return nil, ctx.Err()
	case msg, ok := <-ch:
		if !ok {
			return nil, ErrDisconnected
		}
		if msg.Error != nil {
			return nil, msg.Error
		}
		return msg.Result, nil
	}
}
