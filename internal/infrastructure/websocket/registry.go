package websocket

import (
	"fmt"
	"sync"

	"presence-gateway/internal/domain"
	"presence-gateway/pkg/logger"
)

// Registry tracks live connections, keyed by connection id and by
// owning user. One user may hold several simultaneous connections.
type Registry struct {
	conns     map[string]domain.Connection
	userConns map[string]map[string]struct{} // userID -> connection ids
	mutex     sync.RWMutex
	log       logger.Logger
}

func NewRegistry(log logger.Logger) *Registry {
	return &Registry{
		conns:     make(map[string]domain.Connection),
		userConns: make(map[string]map[string]struct{}),
		log:       log,
	}
}

func (r *Registry) Register(conn domain.Connection) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if _, exists := r.conns[conn.ID()]; exists {
		return fmt.Errorf("connection %s already registered", conn.ID())
	}

	r.conns[conn.ID()] = conn
	if r.userConns[conn.UserID()] == nil {
		r.userConns[conn.UserID()] = make(map[string]struct{})
	}
	r.userConns[conn.UserID()][conn.ID()] = struct{}{}

	r.log.Info("Connection registered", "connection_id", conn.ID(), "user_id", conn.UserID())
	return nil
}

// Unregister removes a connection. Safe to call for ids that were
// never registered or were already removed.
func (r *Registry) Unregister(connID string) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	conn, exists := r.conns[connID]
	if !exists {
		return
	}
	delete(r.conns, connID)

	if ids, ok := r.userConns[conn.UserID()]; ok {
		delete(ids, connID)
		if len(ids) == 0 {
			delete(r.userConns, conn.UserID())
		}
	}

	r.log.Info("Connection unregistered", "connection_id", connID, "user_id", conn.UserID())
}

// NotifyUser delivers message to every live connection of the user. A
// user with no connections is not an error; individual send failures
// are logged and skipped.
func (r *Registry) NotifyUser(userID string, message interface{}) {
	r.mutex.RLock()
	conns := make([]domain.Connection, 0, len(r.userConns[userID]))
	for id := range r.userConns[userID] {
		if conn, ok := r.conns[id]; ok {
			conns = append(conns, conn)
		}
	}
	r.mutex.RUnlock()

	for _, conn := range conns {
		if err := conn.Send(message); err != nil {
			r.log.Error("Failed to send message", "user_id", userID,
				"connection_id", conn.ID(), "error", err)
		}
	}
}

func (r *Registry) ForEach(fn func(conn domain.Connection)) {
	r.mutex.RLock()
	conns := make([]domain.Connection, 0, len(r.conns))
	for _, conn := range r.conns {
		conns = append(conns, conn)
	}
	r.mutex.RUnlock()

	for _, conn := range conns {
		fn(conn)
	}
}

func (r *Registry) Count() int {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return len(r.conns)
}
