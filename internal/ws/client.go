// Package ws is the default transport: gorilla/websocket sessions bridged
// onto the hub. The hub never sees this package; it talks to a Sender. The
// read pump feeds decoded frames into HandleMessage, the write pump drains
// a bounded outbound buffer, and a client that stalls long enough to fill
// that buffer is disconnected rather than buffered without bound.
package ws

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/lalith-99/streamgate/internal/hub"
	"github.com/lalith-99/streamgate/internal/protocol"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Origin checks belong to the deployment's edge; the broker accepts
	// any origin and authenticates in-band.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Client is one WebSocket session. It implements hub.Sender.
type Client struct {
	id     string
	conn   *websocket.Conn
	broker *hub.Hub
	logger *zap.Logger

	send      chan protocol.Envelope
	done      chan struct{}
	closeOnce sync.Once
}

// Send queues an envelope for the write pump. Non-blocking: a full buffer
// means the client has stalled past what the buffer absorbs, and the
// connection is closed to bound memory.
func (c *Client) Send(env protocol.Envelope) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- env:
		return true
	case <-c.done:
		return false
	default:
		c.logger.Warn("outbound buffer overflow, closing connection",
			zap.String("connection_id", c.id),
		)
		c.Close()
		return false
	}
}

// Close signals both pumps to shut down. Safe to call any number of times,
// from any goroutine.
func (c *Client) Close() {
	c.closeOnce.Do(func() { close(c.done) })
}

func (c *Client) readPump() {
	defer func() {
		c.broker.Disconnect(c.id)
		c.Close()
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Debug("read error", zap.String("connection_id", c.id), zap.Error(err))
			}
			return
		}
		c.broker.HandleMessage(context.Background(), c.id, raw)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case env := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(env); err != nil {
				c.broker.Disconnect(c.id)
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.broker.Disconnect(c.id)
				return
			}
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// Handler upgrades an HTTP request into a broker connection. The endpoint
// is public: a fresh connection is unauthenticated and authenticates
// in-band with an authenticate frame.
func Handler(broker *hub.Hub, bufferSize int, logger *zap.Logger) gin.HandlerFunc {
	if bufferSize <= 0 {
		bufferSize = 256
	}
	return func(c *gin.Context) {
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logger.Warn("websocket upgrade failed", zap.Error(err))
			return
		}

		client := &Client{
			id:     uuid.NewString(),
			conn:   conn,
			broker: broker,
			logger: logger,
			send:   make(chan protocol.Envelope, bufferSize),
			done:   make(chan struct{}),
		}

		meta := hub.Meta{
			RemoteAddr:  c.ClientIP(),
			ClientAgent: c.Request.UserAgent(),
		}
		if !broker.Connect(client.id, meta, client) {
			// At capacity: no broker state exists, so close the raw
			// socket directly.
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "server at capacity"),
				time.Now().Add(writeWait))
			conn.Close()
			return
		}

		go client.writePump()
		go client.readPump()
	}
}
