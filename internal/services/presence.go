package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"presence-gateway/internal/domain"
	"presence-gateway/pkg/logger"
)

// PresenceTTL is how long after the last open signal a user still
// counts as viewing a resource.
const PresenceTTL = 60 * time.Second

// PresenceAggregator derives a per-resource "online users" view from
// record open/close events and republishes it on the online-users
// channel.
//
// Recomputation happens only when an open or close event arrives for a
// resource. There is no background expiry: a user whose entry goes
// stale stays in the last published list until the next event on that
// resource triggers a recompute that excludes them.
type PresenceAggregator struct {
	bus domain.EventBus
	log logger.Logger
	now func() time.Time

	mutex    sync.Mutex
	lastSeen map[string]map[string]time.Time // resource id -> user id -> last open
	online   map[string][]string             // latest published snapshot
}

func NewPresenceAggregator(bus domain.EventBus, log logger.Logger) *PresenceAggregator {
	return &PresenceAggregator{
		bus:      bus,
		log:      log,
		now:      time.Now,
		lastSeen: make(map[string]map[string]time.Time),
		online:   make(map[string][]string),
	}
}

// Start installs the open/close subscriptions on the bus.
func (p *PresenceAggregator) Start(ctx context.Context) error {
	if err := p.bus.Subscribe(ctx, domain.ChannelRecordOpen, p.handleOpen); err != nil {
		return fmt.Errorf("subscribe %s: %w", domain.ChannelRecordOpen, err)
	}
	if err := p.bus.Subscribe(ctx, domain.ChannelRecordClose, p.handleClose); err != nil {
		return fmt.Errorf("subscribe %s: %w", domain.ChannelRecordClose, err)
	}
	p.log.Info("Presence aggregator started", "ttl", PresenceTTL)
	return nil
}

func (p *PresenceAggregator) handleOpen(event *domain.Event) {
	resourceID, userID, ok := presenceFields(event)
	if !ok {
		p.log.Error("Presence event missing fields", "channel", event.Channel, "payload", event.Payload)
		return
	}

	p.mutex.Lock()
	if p.lastSeen[resourceID] == nil {
		p.lastSeen[resourceID] = make(map[string]time.Time)
	}
	p.lastSeen[resourceID][userID] = p.now()
	p.mutex.Unlock()

	p.publishOnline(resourceID, userID)
}

func (p *PresenceAggregator) handleClose(event *domain.Event) {
	resourceID, userID, ok := presenceFields(event)
	if !ok {
		p.log.Error("Presence event missing fields", "channel", event.Channel, "payload", event.Payload)
		return
	}

	p.mutex.Lock()
	if users, exists := p.lastSeen[resourceID]; exists {
		delete(users, userID)
	}
	p.mutex.Unlock()

	p.publishOnline(resourceID, userID)
}

// publishOnline recomputes the online list for a resource and pushes
// the derived event. This is the only place stale entries get dropped.
func (p *PresenceAggregator) publishOnline(resourceID, triggeredBy string) {
	now := p.now()

	p.mutex.Lock()
	onlineUsers := make([]string, 0, len(p.lastSeen[resourceID]))
	for userID, seen := range p.lastSeen[resourceID] {
		if now.Sub(seen) < PresenceTTL {
			onlineUsers = append(onlineUsers, userID)
		}
	}
	sort.Strings(onlineUsers)
	p.online[resourceID] = onlineUsers
	p.mutex.Unlock()

	ids, err := json.Marshal(onlineUsers)
	if err != nil {
		p.log.Error("Failed to encode online users", "resource_id", resourceID, "error", err)
		return
	}

	payload := map[string]interface{}{
		domain.FieldCreatedAt:     now.UnixMilli(),
		domain.FieldCreatedBy:     triggeredBy,
		domain.FieldResourceID:    domain.StringField(resourceID),
		domain.FieldOnlineUserIDs: domain.StringField(string(ids)),
	}
	if err := p.bus.Publish(context.Background(), domain.ChannelOnlineUsers, payload); err != nil {
		p.log.Error("Failed to publish online users", "resource_id", resourceID, "error", err)
	}
}

// OnlineUsers returns the latest published list for a resource. It
// reflects the last recompute, not the current clock: entries older
// than the window stay listed until the next open/close event.
func (p *PresenceAggregator) OnlineUsers(resourceID string) []string {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return append([]string(nil), p.online[resourceID]...)
}

func presenceFields(event *domain.Event) (resourceID, userID string, ok bool) {
	resourceID, ok = domain.FieldString(event.Payload, domain.FieldResourceID)
	if !ok {
		return "", "", false
	}
	userID, ok = domain.FieldString(event.Payload, domain.FieldUserID)
	if !ok {
		return "", "", false
	}
	return resourceID, userID, true
}
