package domain

import "context"

// EventHandler receives events delivered on an upstream subscription.
type EventHandler func(event *Event)

// EventBus is the backend pub/sub capability. Subscribe installs the
// handler for every subsequent event on the channel; events arrive in
// bus order.
type EventBus interface {
	Subscribe(ctx context.Context, channel string, handler EventHandler) error
	Publish(ctx context.Context, channel string, payload map[string]interface{}) error
}

// EntityAccessRepository resolves (user, entity) to permissions.
type EntityAccessRepository interface {
	GetAccess(ctx context.Context, userID, entityName string) (EntityAccess, error)
}

// PermissionChecker answers read/write authorization for a channel.
type PermissionChecker interface {
	Check(ctx context.Context, userID, channel string) EntityAccess
}

// Connection is one live client socket.
type Connection interface {
	ID() string
	UserID() string
	Send(message interface{}) error
	Close() error
}

// ConnectionRegistry tracks live connections by id and by user.
type ConnectionRegistry interface {
	Register(conn Connection) error
	Unregister(connID string)
	NotifyUser(userID string, message interface{})
	ForEach(fn func(conn Connection))
	Count() int
}
