package ws

import (
	"sync"

	"github.com/gorilla/websocket"

	"github.com/dappward/walletd/internal/core/ports"
	"github.com/dappward/walletd/pkg/provider"
)

// wsChannel adapts one websocket connection to ports.Channel. Writes are
// serialized, gorilla connections do not support concurrent writers.
type wsChannel struct {
	lock *sync.Mutex
	conn *websocket.Conn
}

func newWsChannel(conn *websocket.Conn) ports.Channel {
	return &wsChannel{lock: &sync.Mutex{}, conn: conn}
}

func (c *wsChannel) NotifyEvent(event string, data interface{}) error {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.conn.WriteJSON(provider.NewEvent(event, data))
}

func (c *wsChannel) Close() error {
	return c.conn.Close()
}

func (c *wsChannel) writeJSON(v interface{}) error {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.conn.WriteJSON(v)
}
