// Package websocket serves the chat protocol over gorilla/websocket
// connections, one read and one write goroutine per client.
package websocket

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/omis-2025/strangerwave-sub000/internal/events"
	"github.com/omis-2025/strangerwave-sub000/pkg/errors"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 16 * 1024
	sendBuffer     = 64
)

// Client is one user's websocket connection. It implements registry.Handle.
type Client struct {
	id     string
	userID uint
	conn   *websocket.Conn
	send   chan []byte

	done      chan struct{}
	closeOnce sync.Once
	log       *zap.SugaredLogger
}

func newClient(conn *websocket.Conn, userID uint, log *zap.SugaredLogger) *Client {
	id := uuid.NewString()
	return &Client{
		id:     id,
		userID: userID,
		conn:   conn,
		send:   make(chan []byte, sendBuffer),
		done:   make(chan struct{}),
		log:    log.With("user_id", userID, "conn_id", id),
	}
}

func (c *Client) ID() string {
	return c.id
}

// Send queues an event for the write pump. It never blocks; a client whose
// buffer is full is considered dead and gets closed.
func (c *Client) Send(e events.Event) error {
	data, err := events.Encode(e)
	if err != nil {
		return err
	}

	select {
	case <-c.done:
		return fmt.Errorf("connection %s closed", c.id)
	default:
	}

	select {
	case c.send <- data:
		return nil
	default:
		c.log.Warnw("send buffer full, closing connection")
		_ = c.Close()
		return fmt.Errorf("connection %s send buffer full", c.id)
	}
}

// Close asks the write pump to flush pending events and close the socket.
func (c *Client) Close() error {
	c.closeOnce.Do(func() { close(c.done) })
	return nil
}

// Dispatcher is the part of the handler layer a connection talks to.
type Dispatcher interface {
	Handle(ctx context.Context, userID uint, in *events.Inbound)
	ConnectionClosed(userID uint, handleID string) bool
}

// readPump decodes client frames and hands them to the dispatcher until the
// connection fails or is closed.
func (c *Client) readPump(ctx context.Context, d Dispatcher) {
	defer func() {
		d.ConnectionClosed(c.userID, c.id)
		_ = c.Close()
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.log.Errorw("failed to set read deadline", "error", err)
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.log.Warnw("unexpected websocket close", "error", err)
			}
			return
		}

		in, err := events.Decode(data)
		if err != nil {
			_ = c.Send(events.Error{Error: errors.ClientMessage(err)})
			continue
		}
		d.Handle(ctx, c.userID, in)
	}
}

// writePump writes queued events and keeps the connection alive with pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case data := <-c.send:
			if !c.write(websocket.TextMessage, data) {
				return
			}

		case <-ticker.C:
			if !c.write(websocket.PingMessage, nil) {
				return
			}

		case <-c.done:
			for {
				select {
				case data := <-c.send:
					if !c.write(websocket.TextMessage, data) {
						return
					}
				default:
					c.write(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
					return
				}
			}
		}
	}
}

func (c *Client) write(messageType int, data []byte) bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.log.Debugw("failed to set write deadline", "error", err)
		return false
	}
	if err := c.conn.WriteMessage(messageType, data); err != nil {
		c.log.Debugw("websocket write failed", "error", err)
		return false
	}
	return true
}
