package wsstatus

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1024
	sendBufferSize = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Dashboards are expected to be same-origin operator tooling; the
	// broker does not serve untrusted browser content.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Client is one connected dashboard. It only ever reads events pushed
// by the Hub and writes them out as JSON frames — there is no inbound
// protocol to speak of, so readPump exists solely to notice the
// connection closing.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan Event

	logger *zap.Logger
}

// NewClient upgrades r/w to a WebSocket connection and wraps it as a
// dashboard Client. The caller must still call Run to start its pumps.
func NewClient(hub *Hub, w http.ResponseWriter, r *http.Request, logger *zap.Logger) (*Client, error) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, err
	}
	return &Client{
		hub:    hub,
		conn:   conn,
		send:   make(chan Event, sendBufferSize),
		logger: logger.Named("wsstatus"),
	}, nil
}

// Run subscribes the client with the hub and blocks running its read
// and write pumps until the connection closes. Call in its own
// goroutine from the HTTP handler.
func (c *Client) Run() {
	c.hub.Subscribe(c)
	go c.writePump()
	c.readPump()
}

// readPump's only job is to detect the connection closing (client
// navigated away, network dropped) and unregister. Dashboards never
// send anything meaningful, so inbound frames are discarded.
func (c *Client) readPump() {
	defer c.hub.Unsubscribe(c)

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// writePump drains c.send to the socket and pings on an interval to
// keep the connection alive through idle proxies.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case event, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			payload, err := json.Marshal(event)
			if err != nil {
				c.logger.Error("marshal event", zap.Error(err))
				continue
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
