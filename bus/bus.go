// Package bus is a process-local publish/subscribe message bus with retained
// messages, MQTT-style wildcards and request/reply built on top of plain
// publishes. Topics are slices of comparable tokens; the string tokens "+"
// and "#" act as single-level and multi-level wildcards in subscriptions.
package bus

import (
	"context"
	"reflect"
	"sync"
	"sync/atomic"
)

// -----------------------------------------------------------------------------
// Tokens + Topics
// -----------------------------------------------------------------------------

// Topic is a path of tokens. Any comparable value is a valid token; strings
// and small integers are the usual choices.
type Topic []any

// T builds a Topic from tokens, panicking if any token is not comparable.
// Literal Topic{...} construction skips the check and panics later, inside
// the trie, so prefer T for tokens of uncertain type.
func T(tokens ...any) Topic {
	for _, tok := range tokens {
		if tok == nil || !reflect.TypeOf(tok).Comparable() {
			panic("bus: topic token is not comparable")
		}
	}
	return Topic(tokens)
}

// Wildcard tokens, valid in subscription topics only.
const (
	Plus = "+" // matches exactly one level
	Hash = "#" // matches zero or more trailing levels
)

// -----------------------------------------------------------------------------
// Message
// -----------------------------------------------------------------------------

type Message struct {
	Topic    Topic
	Payload  any
	Retained bool
	ReplyTo  Topic
}

// NewMessage builds a message for topic. A retained message with a nil
// payload clears the retained slot at that topic.
func (b *Bus) NewMessage(topic Topic, payload any, retained bool) *Message {
	return &Message{Topic: topic, Payload: payload, Retained: retained}
}

func (c *Connection) NewMessage(topic Topic, payload any, retained bool) *Message {
	return c.bus.NewMessage(topic, payload, retained)
}

// -----------------------------------------------------------------------------
// Subscription
// -----------------------------------------------------------------------------

type Subscription struct {
	topic Topic
	ch    chan *Message
	bus   *Bus
	conn  *Connection // owning connection
}

func (s *Subscription) Topic() Topic             { return s.topic }
func (s *Subscription) Channel() <-chan *Message { return s.ch }
func (s *Subscription) Unsubscribe()             { s.conn.Unsubscribe(s) }

// deliver enqueues without blocking, dropping the oldest queued message when
// the subscriber is slow.
func (s *Subscription) deliver(msg *Message) {
	select {
	case s.ch <- msg:
	default:
		select {
		case <-s.ch:
		default:
		}
		select {
		case s.ch <- msg:
		default:
		}
	}
}

// -----------------------------------------------------------------------------
// Trie
// -----------------------------------------------------------------------------

// One trie holds both subscription patterns (wildcard tokens are ordinary
// keys) and retained messages (stored only at concrete paths, since only
// publishes create them).
type node struct {
	children map[any]*node
	subs     []*Subscription
	retained *Message
}

func (n *node) child(tok any) *node {
	if n.children == nil {
		return nil
	}
	return n.children[tok]
}

func (n *node) ensure(tok any) *node {
	if n.children == nil {
		n.children = make(map[any]*node)
	}
	c := n.children[tok]
	if c == nil {
		c = &node{}
		n.children[tok] = c
	}
	return c
}

// -----------------------------------------------------------------------------
// Bus
// -----------------------------------------------------------------------------

type Bus struct {
	mu    sync.RWMutex
	root  *node
	qLen  int
	reqID uint64
}

// NewBus creates a bus; queueLen is the per-subscription channel depth.
func NewBus(queueLen int) *Bus {
	if queueLen <= 0 {
		queueLen = 8
	}
	return &Bus{root: &node{}, qLen: queueLen}
}

// addSubscription inserts sub at its pattern path and replays every retained
// message the pattern matches.
func (b *Bus) addSubscription(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := b.root
	for _, tok := range sub.topic {
		n = n.ensure(tok)
	}
	n.subs = append(n.subs, sub)

	b.replayRetained(b.root, sub.topic, sub)
}

// replayRetained walks the concrete trie under pattern, delivering retained
// messages to sub.
func (b *Bus) replayRetained(n *node, pattern Topic, sub *Subscription) {
	if len(pattern) == 0 {
		if n.retained != nil {
			sub.deliver(n.retained)
		}
		return
	}
	switch pattern[0] {
	case any(Hash):
		b.replaySubtree(n, sub)
	case any(Plus):
		for _, c := range n.children {
			b.replayRetained(c, pattern[1:], sub)
		}
	default:
		if c := n.child(pattern[0]); c != nil {
			b.replayRetained(c, pattern[1:], sub)
		}
	}
}

func (b *Bus) replaySubtree(n *node, sub *Subscription) {
	if n.retained != nil {
		sub.deliver(n.retained)
	}
	for _, c := range n.children {
		b.replaySubtree(c, sub)
	}
}

// Publish delivers msg to every matching subscription and updates the
// retained slot at its (concrete) topic.
func (b *Bus) Publish(msg *Message) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.match(b.root, msg.Topic, msg)

	if !msg.Retained {
		return
	}
	n := b.root
	for _, tok := range msg.Topic {
		n = n.ensure(tok)
	}
	if msg.Payload == nil {
		n.retained = nil
	} else {
		n.retained = msg
	}
}

// match walks subscription patterns against a concrete topic. At each node a
// "#" child matches the whole remainder, including the empty one.
func (b *Bus) match(n *node, rest Topic, msg *Message) {
	if h := n.child(Hash); h != nil {
		for _, sub := range h.subs {
			sub.deliver(msg)
		}
	}
	if len(rest) == 0 {
		for _, sub := range n.subs {
			sub.deliver(msg)
		}
		return
	}
	if c := n.child(rest[0]); c != nil {
		b.match(c, rest[1:], msg)
	}
	if p := n.child(Plus); p != nil {
		b.match(p, rest[1:], msg)
	}
}

// unsubscribe removes sub from the trie, pruning empty nodes.
func (b *Bus) unsubscribe(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := b.root
	var stack []*node
	for _, tok := range sub.topic {
		c := n.child(tok)
		if c == nil {
			return
		}
		stack = append(stack, n)
		n = c
	}

	for i, s := range n.subs {
		if s == sub {
			n.subs = append(n.subs[:i], n.subs[i+1:]...)
			break
		}
	}

	for i := len(sub.topic) - 1; i >= 0; i-- {
		parent := stack[i]
		child := parent.children[sub.topic[i]]
		if len(child.subs) == 0 && len(child.children) == 0 && child.retained == nil {
			delete(parent.children, sub.topic[i])
		} else {
			break
		}
	}
}

// -----------------------------------------------------------------------------
// Connection
// -----------------------------------------------------------------------------

type Connection struct {
	bus  *Bus
	mu   sync.Mutex
	subs []*Subscription
	id   string
}

// NewConnection creates a connection bound to this bus. The id names the
// endpoint in reply topics; it need not be unique.
func (b *Bus) NewConnection(id string) *Connection {
	return &Connection{bus: b, id: id}
}

func (c *Connection) Publish(msg *Message) {
	c.bus.Publish(msg)
}

// Subscribe registers a subscription owned by this connection. Retained
// messages matching the topic are delivered immediately.
func (c *Connection) Subscribe(topic Topic) *Subscription {
	sub := &Subscription{
		topic: topic,
		ch:    make(chan *Message, c.bus.qLen),
		bus:   c.bus,
		conn:  c,
	}
	c.bus.addSubscription(sub)
	c.mu.Lock()
	c.subs = append(c.subs, sub)
	c.mu.Unlock()
	return sub
}

// Unsubscribe removes a subscription owned by this connection.
func (c *Connection) Unsubscribe(sub *Subscription) {
	c.bus.unsubscribe(sub)
	c.mu.Lock()
	for i, s := range c.subs {
		if s == sub {
			c.subs = append(c.subs[:i], c.subs[i+1:]...)
			break
		}
	}
	c.mu.Unlock()
	close(sub.ch)
}

// Disconnect closes all subscriptions and clears them.
func (c *Connection) Disconnect() {
	c.mu.Lock()
	subs := c.subs
	c.subs = nil
	c.mu.Unlock()

	for _, sub := range subs {
		c.bus.unsubscribe(sub)
		close(sub.ch)
	}
}

// -----------------------------------------------------------------------------
// Request / Reply
// -----------------------------------------------------------------------------

// Request stamps msg with a fresh ReplyTo topic, subscribes to it and
// publishes the request. The caller owns the returned subscription.
func (c *Connection) Request(msg *Message) *Subscription {
	seq := atomic.AddUint64(&c.bus.reqID, 1)
	msg.ReplyTo = Topic{"$reply", c.id, seq}
	sub := c.Subscribe(msg.ReplyTo)
	c.Publish(msg)
	return sub
}

// RequestWait issues msg as a request and blocks for the first reply or
// context cancellation.
func (c *Connection) RequestWait(ctx context.Context, msg *Message) (*Message, error) {
	sub := c.Request(msg)
	defer c.Unsubscribe(sub)

	select {
	case reply := <-sub.Channel():
		return reply, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Reply publishes a response on the request's ReplyTo topic. Requests with
// no ReplyTo are dropped silently.
func (c *Connection) Reply(req *Message, payload any, retained bool) {
	if len(req.ReplyTo) == 0 {
		return
	}
	c.Publish(c.NewMessage(req.ReplyTo, payload, retained))
}
