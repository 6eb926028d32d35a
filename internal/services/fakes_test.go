package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"presence-gateway/internal/domain"
)

type publishedEvent struct {
	channel string
	payload map[string]interface{}
}

type fakeBus struct {
	mutex        sync.Mutex
	subscribed   []string
	handlers     map[string]domain.EventHandler
	published    []publishedEvent
	subscribeErr error
	publishErr   error
}

func newFakeBus() *fakeBus {
	return &fakeBus{handlers: make(map[string]domain.EventHandler)}
}

func (b *fakeBus) Subscribe(ctx context.Context, channel string, handler domain.EventHandler) error {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	b.subscribed = append(b.subscribed, channel)
	if b.subscribeErr != nil {
		return b.subscribeErr
	}
	b.handlers[channel] = handler
	return nil
}

func (b *fakeBus) Publish(ctx context.Context, channel string, payload map[string]interface{}) error {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	if b.publishErr != nil {
		return b.publishErr
	}
	b.published = append(b.published, publishedEvent{channel: channel, payload: payload})
	return nil
}

func (b *fakeBus) subscribeCount() int {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	return len(b.subscribed)
}

func (b *fakeBus) handler(channel string) domain.EventHandler {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	return b.handlers[channel]
}

func (b *fakeBus) publishedEvents() []publishedEvent {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	return append([]publishedEvent(nil), b.published...)
}

func (b *fakeBus) lastPublished(t *testing.T) publishedEvent {
	t.Helper()
	events := b.publishedEvents()
	if len(events) == 0 {
		t.Fatal("No events were published")
	}
	return events[len(events)-1]
}

type fakeGate struct {
	access domain.EntityAccess
}

func (g *fakeGate) Check(ctx context.Context, userID, channel string) domain.EntityAccess {
	return g.access
}

type fakeConn struct {
	id       string
	userID   string
	mutex    sync.Mutex
	sent     []domain.OutboundMessage
	failSend bool
}

func (c *fakeConn) ID() string     { return c.id }
func (c *fakeConn) UserID() string { return c.userID }

func (c *fakeConn) Send(message interface{}) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if c.failSend {
		return errors.New("send failed")
	}
	if msg, ok := message.(domain.OutboundMessage); ok {
		c.sent = append(c.sent, msg)
	}
	return nil
}

func (c *fakeConn) Close() error { return nil }

func (c *fakeConn) sentMessages() []domain.OutboundMessage {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return append([]domain.OutboundMessage(nil), c.sent...)
}

func (c *fakeConn) sentCount() int {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return len(c.sent)
}

type fakeRegistry struct {
	mutex sync.Mutex
	conns map[string][]*fakeConn // userID -> connections
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{conns: make(map[string][]*fakeConn)}
}

func (r *fakeRegistry) add(conn *fakeConn) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.conns[conn.userID] = append(r.conns[conn.userID], conn)
}

func (r *fakeRegistry) Register(conn domain.Connection) error { return nil }
func (r *fakeRegistry) Unregister(connID string)              {}

func (r *fakeRegistry) NotifyUser(userID string, message interface{}) {
	r.mutex.Lock()
	conns := append([]*fakeConn(nil), r.conns[userID]...)
	r.mutex.Unlock()
	for _, conn := range conns {
		conn.Send(message)
	}
}

func (r *fakeRegistry) ForEach(fn func(conn domain.Connection)) {
	r.mutex.Lock()
	var all []*fakeConn
	for _, conns := range r.conns {
		all = append(all, conns...)
	}
	r.mutex.Unlock()
	for _, conn := range all {
		fn(conn)
	}
}

func (r *fakeRegistry) Count() int {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	total := 0
	for _, conns := range r.conns {
		total += len(conns)
	}
	return total
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("Condition not met before deadline")
}
