// Package hub pushes live bus positions and wait requests to websocket
// clients.
package hub

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"shuttle_tracker/internal/events"
	"shuttle_tracker/internal/metrics"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	sendBuffer = 32
)

// ErrClosed is returned by publish calls after Close.
var ErrClosed = errors.New("hub closed")

// Envelope is the frame written to clients.
type Envelope struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Client is one live-feed subscriber. WatchBus of 0 means every bus.
// Driver clients also receive wait requests addressed to UserID; the
// addressee is the bus's driver at publish time, so reassignment needs no
// reconnect.
type Client struct {
	UserID   uint
	WatchBus uint
	Driver   bool

	conn *websocket.Conn
	send chan []byte
}

func NewClient(conn *websocket.Conn, userID, watchBus uint, driver bool) *Client {
	return &Client{
		UserID:   userID,
		WatchBus: watchBus,
		Driver:   driver,
		conn:     conn,
		send:     make(chan []byte, sendBuffer),
	}
}

// Messages exposes queued frames. Only tests read it directly; live
// connections are drained by WritePump.
func (c *Client) Messages() <-chan []byte { return c.send }

type message struct {
	busID       uint
	waitRequest bool
	driverID    uint
	payload     []byte
}

// Hub fans published events out to registered clients.
type Hub struct {
	clients   map[*Client]struct{}
	broadcast chan message
	mu        sync.Mutex
	closed    bool
	done      chan struct{}
	metrics   *metrics.Collector
}

// New starts the hub's dispatch goroutine.
func New(m *metrics.Collector) *Hub {
	h := &Hub{
		clients:   make(map[*Client]struct{}),
		broadcast: make(chan message, 100),
		done:      make(chan struct{}),
		metrics:   m,
	}
	go h.run()
	return h
}

func (h *Hub) run() {
	defer close(h.done)
	for msg := range h.broadcast {
		h.mu.Lock()
		for c := range h.clients {
			if !c.wants(msg) {
				continue
			}
			select {
			case c.send <- msg.payload:
			default:
				logrus.WithFields(logrus.Fields{
					"user_id": c.UserID,
					"bus_id":  msg.busID,
				}).Warn("Live-feed client is too slow, dropping frame.")
			}
		}
		h.mu.Unlock()
	}
}

func (c *Client) wants(msg message) bool {
	if msg.waitRequest {
		return c.Driver && msg.driverID != 0 && msg.driverID == c.UserID
	}
	return c.WatchBus == 0 || c.WatchBus == msg.busID
}

func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
	if h.metrics != nil {
		h.metrics.SocketClients.Set(float64(len(h.clients)))
	}
	logrus.WithFields(logrus.Fields{
		"user_id":    c.UserID,
		"watch_bus":  c.WatchBus,
		"driver":     c.Driver,
	}).Info("Client registered with live feed.")
}

func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
	if h.metrics != nil {
		h.metrics.SocketClients.Set(float64(len(h.clients)))
	}
	logrus.WithField("user_id", c.UserID).Info("Client unregistered from live feed.")
}

func (h *Hub) PublishBusLocation(_ context.Context, ev events.BusLocation) error {
	return h.enqueue(message{busID: ev.BusID}, Envelope{Type: "bus_location", Data: ev})
}

func (h *Hub) PublishWaitRequest(_ context.Context, ev events.WaitRequest) error {
	msg := message{busID: ev.BusID, waitRequest: true}
	if ev.DriverID != nil {
		msg.driverID = *ev.DriverID
	}
	return h.enqueue(msg, Envelope{Type: "wait_request", Data: ev})
}

func (h *Hub) enqueue(msg message, env Envelope) error {
	payload, err := json.Marshal(env)
	if err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return ErrClosed
	}
	msg.payload = payload
	select {
	case h.broadcast <- msg:
		return nil
	default:
		return errors.New("live feed broadcast channel full")
	}
}

// Close stops dispatch and disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	close(h.broadcast)
	h.mu.Unlock()
	<-h.done

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
}

// WritePump copies queued frames to the connection and keeps it alive with
// pings. It returns when the client is unregistered or a write fails.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case payload, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				logrus.WithError(err).WithField("user_id", c.UserID).Debug("Live-feed write failed.")
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

// ReadLoop reads frames until the peer goes away, handing each text frame
// to handle. Replies from handle are queued on the client's send channel.
func (h *Hub) ReadLoop(c *Client, handle func([]byte) any) {
	c.conn.SetReadLimit(4096)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		messageType, p, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logrus.WithError(err).WithField("user_id", c.UserID).Warn("Live-feed connection closed unexpectedly.")
			}
			return
		}
		if messageType != websocket.TextMessage || handle == nil {
			continue
		}
		reply := handle(p)
		if reply == nil {
			continue
		}
		b, err := json.Marshal(reply)
		if err != nil {
			continue
		}
		h.reply(c, b)
	}
}

func (h *Hub) reply(c *Client, b []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	select {
	case c.send <- b:
	default:
	}
}
