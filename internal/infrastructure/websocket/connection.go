package websocket

import (
	"sync"

	"presence-gateway/pkg/utils"

	"github.com/gorilla/websocket"
)

// Connection wraps one client socket. Ids are generated here so the
// registry can assume they are unique.
type Connection struct {
	id      string
	userID  string
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func NewConnection(conn *websocket.Conn, userID string) *Connection {
	return &Connection{
		id:     utils.GenerateID("conn"),
		userID: userID,
		conn:   conn,
	}
}

func (c *Connection) ID() string {
	return c.id
}

func (c *Connection) UserID() string {
	return c.userID
}

// Send writes one JSON message. Gorilla permits a single concurrent
// writer and fan-out, heartbeat and error replies all share this
// socket, so writes are serialized here.
func (c *Connection) Send(message interface{}) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteJSON(message)
}

func (c *Connection) Close() error {
	return c.conn.Close()
}
