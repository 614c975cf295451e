package ws

import (
	"encoding/json"
	"sync"
	"time"

	"arebasic/internal/logger"
	"arebasic/internal/service"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 30 * time.Second
	pingPeriod = 25 * time.Second
)

type Client struct {
	Identity string
	Conn     *websocket.Conn
	Send     chan []byte

	hub     *Hub
	session *service.Session

	closeOnce sync.Once
	sendMu    sync.RWMutex
	closed    bool
	Done      chan struct{}
}

func NewClient(identity string, conn *websocket.Conn, hub *Hub, session *service.Session) *Client {
	return &Client{
		Identity: identity,
		Conn:     conn,
		Send:     make(chan []byte, 64),
		hub:      hub,
		session:  session,
		Done:     make(chan struct{}),
	}
}

func (c *Client) Run() {
	// стартуем writer до регистрации, чтобы не терять события
	go c.writePump()
	c.hub.Register(c)

	c.send(MsgReady, nil)
	c.sendSnapshot()

	c.readPump()
}

//read
func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister(c)
		_ = c.Conn.Close()
		close(c.Done)
	}()

	c.Conn.SetReadLimit(4096)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, msg, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Warn("ws read error", "identity", c.Identity, "error", err)
			}
			return
		}
		c.handle(msg)
	}
}

func (c *Client) handle(msg []byte) {
	var in inbound
	if err := json.Unmarshal(msg, &in); err != nil {
		c.send(MsgError, ErrorPayload{Message: "invalid message"})
		return
	}

	switch in.Type {
	case MsgPing:
		c.send(MsgPong, nil)
	case MsgSession:
		c.sendSnapshot()
	case MsgDraft:
		var p DraftPayload
		if err := json.Unmarshal(in.Data, &p); err != nil {
			c.send(MsgError, ErrorPayload{Message: "invalid draft"})
			return
		}
		if err := c.session.UpdateDraft(p.Text); err != nil {
			c.send(MsgError, ErrorPayload{Message: err.Error()})
		}
	default:
		c.send(MsgError, ErrorPayload{Message: "unknown message type"})
	}
}

//write
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				logger.Warn("ws write error", "identity", c.Identity, "error", err)
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) sendSnapshot() {
	snap := c.session.Snapshot()
	c.send(MsgSession, SessionPayload{Session: snap, SecondsLeft: snap.SecondsLeft(time.Now())})
}

func (c *Client) send(msgType string, data any) {
	msg, err := json.Marshal(outbound{Type: msgType, Data: data})
	if err != nil {
		return
	}
	c.trySend(msg)
}

// trySend never blocks and is safe after close
func (c *Client) trySend(msg []byte) bool {
	c.sendMu.RLock()
	defer c.sendMu.RUnlock()
	if c.closed {
		return false
	}
	select {
	case c.Send <- msg:
		return true
	default:
		return false
	}
}

func (c *Client) closeSend() {
	c.closeOnce.Do(func() {
		c.sendMu.Lock()
		c.closed = true
		close(c.Send)
		c.sendMu.Unlock()
	})
}
