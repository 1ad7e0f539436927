package socket

import (
	"context"
	"fmt"
	"sync"
	"time"

	dmn "github.com/beka-birhanu/vinom-wager/domain"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 16 * 1024
	sendBuffer     = 32
	inboxBuffer    = 16
)

// client is one realtime connection. Frames are read, handled and written on separate
// goroutines so a slow handler never starves the keepalive.
type client struct {
	id     dmn.ConnectionHandle
	conn   *websocket.Conn
	hub    *Hub
	send   chan []byte
	inbox  chan []byte
	ctx    context.Context
	cancel context.CancelFunc
	once   sync.Once
}

func newClient(h *Hub, id dmn.ConnectionHandle, conn *websocket.Conn) *client {
	ctx, cancel := context.WithCancel(context.Background())
	return &client{
		id:     id,
		conn:   conn,
		hub:    h,
		send:   make(chan []byte, sendBuffer),
		inbox:  make(chan []byte, inboxBuffer),
		ctx:    ctx,
		cancel: cancel,
	}
}

func (c *client) run() {
	go c.writePump()
	go c.processMessages()
	c.readPump()
}

func (c *client) close() {
	c.once.Do(func() {
		c.cancel()
		c.hub.unregister(c)
		_ = c.conn.Close()
	})
}

func (c *client) readPump() {
	defer c.close()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warning(fmt.Sprintf("Read error from %s: %v", c.id, err))
			}
			return
		}

		select {
		case c.inbox <- msg:
		default:
			c.hub.logger.Warning(fmt.Sprintf("Inbox full for %s, dropping frame", c.id))
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.hub.logger.Warning(fmt.Sprintf("Write error to %s: %v", c.id, err))
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.ctx.Done():
			_ = c.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
			return
		}
	}
}

func (c *client) processMessages() {
	for {
		select {
		case msg := <-c.inbox:
			c.hub.dispatch(c, msg)
		case <-c.ctx.Done():
			return
		}
	}
}

// enqueue hands msg to the write pump without blocking. It reports false when the client is
// gone or its buffer is full.
func (c *client) enqueue(msg []byte) bool {
	if c.ctx.Err() != nil {
		return false
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}
