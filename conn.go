package main

import (
	"bytes"
	"errors"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

var errSendBufferFull = errors.New("send buffer full")

// connection adapts one websocket to the hub. The hub delivers into send;
// the writer drains it onto the socket.
type connection struct {
	id     uuid.UUID
	send   chan []byte
	w      websocketManager
	h      *hub
	ticker *mTicker
}

func newConnection(w websocketManager, h *hub, ticker *mTicker) *connection {
	return &connection{
		send:   make(chan []byte, sendBufferSize),
		w:      w,
		h:      h,
		ticker: ticker,
	}
}

func (c *connection) deliver(payload []byte) error {
	select {
	case c.send <- payload:
		return nil
	default:
		return errSendBufferFull
	}
}

// close is called by the hub once the connection is unregistered.
func (c *connection) close() {
	close(c.send)
}

func (c *connection) run() {
	id, err := c.h.Connect(c)
	if err != nil {
		log.WithError(err).Error("connection refused")
		c.w.wsClose()
		return
	}
	c.id = id
	incr("websockets", 1)
	defer func() {
		decr("websockets", 1)
		c.h.Disconnect(c.id)
	}()
	go c.writer()
	c.reader()
}

func (c *connection) reader() {
	c.w.wsSetReadLimit()
	c.w.wsSetReadDeadline()
	c.w.wsSetPongHandler()
	for {
		if err := c.readMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.WithError(err).Debug("websocket closed")
			}
			break
		}
	}
	c.w.wsClose()
}

func (c *connection) readMessage() error {
	messageType, message, err := c.w.wsReadMessage()
	if err != nil {
		return err
	}
	if messageType != websocket.TextMessage {
		log.WithField("type", messageType).Debug("unexpected non-text frame")
		return nil
	}
	incr("conn.recv", 1)
	c.h.ClientMessage(c.id, bytes.TrimSpace(message))
	return nil
}

func (c *connection) writer() {
	sub := c.ticker.subscribe()
	defer func() {
		c.ticker.unsubscribe(sub)
		c.w.wsClose()
	}()

	tick := sub.tick
	for {
		select {
		case message, ok := <-c.send:
			c.w.wsSetWriteDeadline()
			if !ok {
				c.w.wsWriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.w.wsWriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
			incr("conn.send", 1)
		case _, ok := <-tick:
			if !ok {
				tick = nil
				continue
			}
			c.w.wsSetWriteDeadline()
			if err := c.w.wsWriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
