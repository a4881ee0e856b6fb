package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"chatedge-be/internal/dto"
	"chatedge-be/internal/pkg/logger"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024

	sendBuffer    = 256
	inboundBuffer = 16
)

var ErrClientClosed = errors.New("websocket client closed")

// Conn is the subset of *websocket.Conn the pumps use.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	SetReadLimit(limit int64)
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(appData string) error)
	Close() error
}

// Client is one live connection of a user.
//
// send is never closed; producers select on done instead, so a late Emit
// after disconnect fails cleanly rather than panicking.
type Client struct {
	hub    *Hub
	conn   Conn
	UserID uuid.UUID
	logger logger.ILogger

	send      chan []byte
	inbound   chan string
	done      chan struct{}
	closeOnce sync.Once
}

func newClient(hub *Hub, conn Conn, userID uuid.UUID, log logger.ILogger) *Client {
	return &Client{
		hub:     hub,
		conn:    conn,
		UserID:  userID,
		logger:  log,
		send:    make(chan []byte, sendBuffer),
		inbound: make(chan string, inboundBuffer),
		done:    make(chan struct{}),
	}
}

func encode(event string, payload interface{}) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(dto.Envelope{Event: event, Data: data})
}

// Emit queues one event, waiting for room in the send buffer.
func (c *Client) Emit(ctx context.Context, event string, payload interface{}) error {
	frame, err := encode(event, payload)
	if err != nil {
		return err
	}
	select {
	case c.send <- frame:
		return nil
	case <-c.done:
		return ErrClientClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// trySend queues a frame without waiting; used for notifications that may be
// dropped under backpressure.
func (c *Client) trySend(frame []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

func (c *Client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

// Done is closed once the connection is shutting down.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// readPump decodes inbound frames and hands them to route until the
// connection fails or the client is closed.
func (c *Client) readPump(route func(env dto.Envelope, decodeErr error)) {
	defer func() {
		c.close()
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
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				c.logger.Warn("Client", "Unexpected close", map[string]interface{}{
					"user_id": c.UserID.String(),
					"error":   err,
				})
			}
			return
		}

		var env dto.Envelope
		decodeErr := json.Unmarshal(raw, &env)
		route(env, decodeErr)
	}
}

// writePump is the only writer on the connection. Each queued frame is
// written as its own text message.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
		c.conn.Close()
	}()

	for {
		select {
		case frame := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			c.drain()
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// drain flushes frames that were queued before shutdown.
func (c *Client) drain() {
	for {
		select {
		case frame := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		default:
			return
		}
	}
}
