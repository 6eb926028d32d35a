package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"presence-gateway/internal/domain"
	"presence-gateway/pkg/logger"
)

const eventQueueSize = 256

// SubscriptionRouter maps channels to interested users. It opens at
// most one upstream subscription per channel regardless of how many
// users want it and fans every received event out to all connections
// of all interested users.
//
// Interest entries are never torn down: once a channel has been
// subscribed upstream it stays subscribed for the life of the process,
// and events with no current local subscribers are dropped.
type SubscriptionRouter struct {
	bus      domain.EventBus
	perms    domain.PermissionChecker
	registry domain.ConnectionRegistry
	log      logger.Logger

	mutex    sync.Mutex
	interest map[string]map[string]struct{} // channel -> user ids
	events   chan *domain.Event
}

func NewSubscriptionRouter(bus domain.EventBus, perms domain.PermissionChecker,
	registry domain.ConnectionRegistry, log logger.Logger) *SubscriptionRouter {
	return &SubscriptionRouter{
		bus:      bus,
		perms:    perms,
		registry: registry,
		log:      log,
		interest: make(map[string]map[string]struct{}),
		events:   make(chan *domain.Event, eventQueueSize),
	}
}

// Run drains the fan-out queue. Every event is delivered completely
// before the next one is looked at, which keeps per-channel ordering
// intact no matter how many upstream subscriptions feed the queue.
func (r *SubscriptionRouter) Run(ctx context.Context) {
	for {
		select {
		case event := <-r.events:
			r.fanOut(event)
		case <-ctx.Done():
			r.log.Info("Subscription router stopped")
			return
		}
	}
}

func (r *SubscriptionRouter) Subscribe(ctx context.Context, userID, channel string, conn domain.Connection) {
	access := r.perms.Check(ctx, userID, channel)
	if !access.Readable {
		r.sendAccessError(conn, channel)
		return
	}

	r.mutex.Lock()
	users, active := r.interest[channel]
	if !active {
		users = make(map[string]struct{})
		r.interest[channel] = users
	}
	users[userID] = struct{}{}
	r.mutex.Unlock()

	if active {
		return
	}

	// First subscriber opens the single upstream subscription shared
	// by everyone interested in this channel.
	if err := r.bus.Subscribe(ctx, channel, r.enqueue); err != nil {
		r.log.Error("Upstream subscribe failed", "channel", channel, "error", err)

		// Leave the channel inactive so a later subscribe retries.
		r.mutex.Lock()
		delete(r.interest, channel)
		r.mutex.Unlock()
		return
	}

	r.log.Info("Channel active", "channel", channel, "user_id", userID)
}

func (r *SubscriptionRouter) Publish(ctx context.Context, userID, channel string,
	payload map[string]interface{}, conn domain.Connection) {
	access := r.perms.Check(ctx, userID, channel)
	if !access.Creatable {
		if conn != nil {
			r.sendAccessError(conn, channel)
		} else {
			r.log.Error("Publish denied", "user_id", userID, "channel", channel)
		}
		return
	}

	if payload == nil {
		payload = make(map[string]interface{})
	}
	// Creation metadata is server-assigned, never trusted from the
	// client.
	payload[domain.FieldCreatedAt] = time.Now().UnixMilli()
	payload[domain.FieldCreatedBy] = userID

	r.log.Info("Publishing to channel", "channel", channel, "user_id", userID)
	if err := r.bus.Publish(ctx, channel, payload); err != nil {
		r.log.Error("Upstream publish failed", "channel", channel, "error", err)
		if conn != nil {
			if serr := conn.Send(domain.OutboundMessage{Error: fmt.Sprintf("publish failed (%s)", channel)}); serr != nil {
				r.log.Error("Failed to send error message", "connection_id", conn.ID(), "error", serr)
			}
		}
	}
}

func (r *SubscriptionRouter) enqueue(event *domain.Event) {
	r.events <- event
}

func (r *SubscriptionRouter) fanOut(event *domain.Event) {
	r.mutex.Lock()
	users := make([]string, 0, len(r.interest[event.Channel]))
	for userID := range r.interest[event.Channel] {
		users = append(users, userID)
	}
	r.mutex.Unlock()

	// No local interest means the event is simply dropped.
	for _, userID := range users {
		r.registry.NotifyUser(userID, domain.OutboundMessage{
			Channel: event.Channel,
			Payload: event.Payload,
		})
	}
}

func (r *SubscriptionRouter) sendAccessError(conn domain.Connection, channel string) {
	if conn == nil {
		return
	}
	msg := domain.OutboundMessage{Error: fmt.Sprintf("no access or invalid channel (%s)", channel)}
	if err := conn.Send(msg); err != nil {
		r.log.Error("Failed to send error message", "connection_id", conn.ID(), "error", err)
	}
}
