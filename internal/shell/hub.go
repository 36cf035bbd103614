// Package shell bridges the coordinator and the UI shell process.
//
// The shell renders the window and connects back over a websocket. Every
// frame in either direction is a JSON domain.Message. Messages from the
// coordinator are queued in order and kept while no shell is connected.
package shell

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/racingplus/client/internal/domain"
)

// Tags the hub handles itself instead of forwarding to the coordinator.
const (
	TagWindowBounds = "window:bounds"
	TagWindowState  = "window:state"

	tagWindowClosed = "window:closed"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	maxInboundSize = 1 << 20
	maxPending     = 4096
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// The control server only listens on loopback
	CheckOrigin: func(r *http.Request) bool { return true },
}

// WindowState is the payload of a window:state frame.
type WindowState struct {
	Maximized bool `json:"maximized"`
	Minimized bool `json:"minimized"`
}

// Hub owns the connection to the shell.
type Hub struct {
	post   func(domain.Message)
	logger *zap.Logger

	mu        sync.Mutex
	conn      *connection
	queue     [][]byte
	inflight  int
	wake      chan struct{}
	connected int
	window    *RemoteWindow
	onConnect []func(reconnect bool)
}

// NewHub creates a hub. post hands inbound messages to the coordinator loop.
func NewHub(post func(domain.Message), logger *zap.Logger) *Hub {
	return &Hub{
		post:   post,
		logger: logger.Named("shell"),
		wake:   make(chan struct{}, 1),
	}
}

// OnConnect registers fn to run whenever a shell connects.
func (h *Hub) OnConnect(fn func(reconnect bool)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onConnect = append(h.onConnect, fn)
}

// Connected reports whether a shell is attached.
func (h *Hub) Connected() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.conn != nil
}

// Deliver queues a message for the shell. It never blocks.
func (h *Hub) Deliver(msg domain.Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("failed to encode outbound message", zap.String("tag", msg.Tag), zap.Error(err))
		return
	}
	h.enqueue(data)
}

// control sends a coordinator instruction to the shell.
func (h *Hub) control(tag string, payload any) {
	msg := domain.Message{
		ID:        uuid.NewString(),
		Source:    domain.SourceSupervisor,
		Direction: domain.Outbound,
		Tag:       tag,
		Time:      time.Now(),
	}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			h.logger.Error("failed to encode control frame", zap.String("tag", tag), zap.Error(err))
			return
		}
		msg.Payload = raw
	}
	h.Deliver(msg)
}

func (h *Hub) enqueue(data []byte) {
	h.mu.Lock()
	if len(h.queue) >= maxPending {
		h.logger.Warn("shell queue full, dropping oldest frame")
		h.queue = h.queue[1:]
	}
	h.queue = append(h.queue, data)
	h.mu.Unlock()

	select {
	case h.wake <- struct{}{}:
	default:
	}
}

// take removes every queued frame. They count as in flight until sent or requeued.
func (h *Hub) take() [][]byte {
	h.mu.Lock()
	defer h.mu.Unlock()
	frames := h.queue
	h.queue = nil
	h.inflight = len(frames)
	return frames
}

// sent marks the frames returned by take as written.
func (h *Hub) sent() {
	h.mu.Lock()
	h.inflight = 0
	h.mu.Unlock()
}

// requeue puts unsent frames back at the head of the queue.
func (h *Hub) requeue(frames [][]byte) {
	if len(frames) == 0 {
		h.sent()
		return
	}
	h.mu.Lock()
	h.queue = append(frames, h.queue...)
	h.inflight = 0
	h.mu.Unlock()

	select {
	case h.wake <- struct{}{}:
	default:
	}
}

// ServeWS upgrades the request and attaches the shell. A new shell replaces
// the previous one.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	c := &connection{hub: h, ws: ws, done: make(chan struct{})}

	h.mu.Lock()
	previous := h.conn
	h.conn = c
	h.connected++
	reconnect := h.connected > 1
	hooks := append([]func(bool){}, h.onConnect...)
	h.mu.Unlock()

	if previous != nil {
		previous.close()
	}
	h.logger.Info("shell connected", zap.String("remote", r.RemoteAddr), zap.Bool("reconnect", reconnect))

	for _, fn := range hooks {
		fn(reconnect)
	}

	go c.writePump()
	go c.readPump()

	select {
	case h.wake <- struct{}{}:
	default:
	}
}

func (h *Hub) detach(c *connection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.conn == c {
		h.conn = nil
		h.logger.Info("shell disconnected")
	}
}

// handleInbound applies window tracking frames and forwards the rest.
func (h *Hub) handleInbound(data []byte) {
	var msg domain.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		h.logger.Warn("malformed frame from shell", zap.Error(err))
		return
	}

	switch msg.Tag {
	case TagWindowBounds:
		var b domain.Bounds
		if err := msg.DecodePayload(&b); err != nil {
			h.logger.Warn("malformed bounds frame", zap.Error(err))
			return
		}
		if w := h.currentWindow(); w != nil {
			w.setBounds(b)
		}
		return
	case TagWindowState:
		var st WindowState
		if err := msg.DecodePayload(&st); err != nil {
			h.logger.Warn("malformed state frame", zap.Error(err))
			return
		}
		if w := h.currentWindow(); w != nil {
			w.setState(st)
		}
		return
	case tagWindowClosed:
		if w := h.currentWindow(); w != nil {
			w.markDestroyed()
		}
	}

	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.Source == "" {
		msg.Source = domain.SourceUI
	}
	if msg.Time.IsZero() {
		msg.Time = time.Now()
	}
	msg.Direction = domain.Inbound
	h.post(msg)
}

// Post forwards a message raised outside the websocket, such as a focus request.
func (h *Hub) Post(msg domain.Message) {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.Time.IsZero() {
		msg.Time = time.Now()
	}
	msg.Direction = domain.Inbound
	h.post(msg)
}

// Flush waits until queued and in-flight frames were written to the shell
// or timeout passes.
func (h *Hub) Flush(timeout time.Duration) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		h.mu.Lock()
		idle := (len(h.queue) == 0 && h.inflight == 0) || h.conn == nil
		h.mu.Unlock()
		if idle {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
}

// Close detaches the current shell.
func (h *Hub) Close() {
	h.mu.Lock()
	c := h.conn
	h.conn = nil
	h.mu.Unlock()
	if c != nil {
		c.close()
	}
}

type connection struct {
	hub  *Hub
	ws   *websocket.Conn
	once sync.Once
	done chan struct{}
}

func (c *connection) close() {
	c.once.Do(func() {
		close(c.done)
		_ = c.ws.Close()
	})
}

func (c *connection) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case <-c.done:
			return
		case <-c.hub.wake:
			frames := c.hub.take()
			for i, frame := range frames {
				_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
				if err := c.ws.WriteMessage(websocket.TextMessage, frame); err != nil {
					c.hub.requeue(frames[i:])
					c.hub.logger.Debug("shell write failed", zap.Error(err))
					return
				}
			}
			c.hub.sent()
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *connection) readPump() {
	defer func() {
		c.hub.detach(c)
		c.close()
	}()

	c.ws.SetReadLimit(maxInboundSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("shell connection error", zap.Error(err))
			}
			return
		}
		// Any frame from the shell proves it is alive
		_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
		c.hub.handleInbound(data)
	}
}
