package api

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"keyloop/internal/protocol"
)

const (
	broadcastBuffer = 64
	sendBuffer      = 256
	pongWait        = 60 * time.Second
	pingPeriod      = 50 * time.Second
	writeWait       = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Watchers are local tools; the bearer token is the access control.
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// progressHub fans progress and status messages out to websocket watchers.
type progressHub struct {
	server     *Server
	mu         sync.Mutex
	watchers   map[*watcher]bool
	broadcast  chan []byte
	register   chan *watcher
	unregister chan *watcher
	shutdown   chan struct{}
	stopOnce   sync.Once
}

// watcher is one connected websocket peer.
type watcher struct {
	hub  *progressHub
	conn *websocket.Conn
	send chan []byte
	ip   string
}

func newProgressHub(s *Server) *progressHub {
	return &progressHub{
		server:     s,
		watchers:   make(map[*watcher]bool),
		broadcast:  make(chan []byte, broadcastBuffer),
		register:   make(chan *watcher),
		unregister: make(chan *watcher),
		shutdown:   make(chan struct{}),
	}
}

func (h *progressHub) start() {
	logger := h.server.logger
	for {
		select {
		case w := <-h.register:
			h.mu.Lock()
			h.watchers[w] = true
			n := len(h.watchers)
			h.mu.Unlock()
			logger.Info("watcher connected", "remote", w.ip, "watchers", n)

		case w := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.watchers[w]; ok {
				delete(h.watchers, w)
				close(w.send)
				logger.Info("watcher disconnected", "remote", w.ip, "watchers", len(h.watchers))
			}
			h.mu.Unlock()

		case message := <-h.broadcast:
			h.broadcastMessage(message)

		case <-h.shutdown:
			h.mu.Lock()
			for w := range h.watchers {
				delete(h.watchers, w)
				close(w.send)
			}
			h.mu.Unlock()
			return
		}
	}
}

func (h *progressHub) stop() {
	h.stopOnce.Do(func() { close(h.shutdown) })
}

// publish encodes and queues a message. When the queue is full the message
// is dropped rather than stalling the caller.
func (h *progressHub) publish(t protocol.MessageType, payload any) {
	data, err := protocol.Encode(t, payload)
	if err != nil {
		h.server.logger.Error("encode websocket message", "type", t, "err", err)
		return
	}
	select {
	case h.broadcast <- data:
	default:
		h.server.logger.Debug("websocket broadcast queue full, dropping", "type", t)
	}
}

func (h *progressHub) broadcastMessage(message []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for w := range h.watchers {
		select {
		case w.send <- message:
		default:
			// slow consumer
			close(w.send)
			delete(h.watchers, w)
		}
	}
}

func (h *progressHub) serveWatcher(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.server.logger.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "err", err)
		return
	}

	peer := &watcher{
		hub:  h,
		conn: conn,
		send: make(chan []byte, sendBuffer),
		ip:   r.RemoteAddr,
	}

	// Queued before registration so it is always the first message.
	if data, err := protocol.Encode(protocol.TypeStatus, h.server.status()); err == nil {
		peer.send <- data
	}

	select {
	case h.register <- peer:
	case <-h.shutdown:
		conn.Close()
		return
	}

	go peer.writePump()
	go peer.readPump()
}

// sendStatus queues the current status for this watcher only.
func (p *watcher) sendStatus() {
	data, err := protocol.Encode(protocol.TypeStatus, p.hub.server.status())
	if err != nil {
		return
	}
	p.hub.mu.Lock()
	defer p.hub.mu.Unlock()
	if !p.hub.watchers[p] {
		return
	}
	select {
	case p.send <- data:
	default:
	}
}

// readPump answers status requests until the peer goes away.
func (p *watcher) readPump() {
	defer func() {
		select {
		case p.hub.unregister <- p:
		case <-p.hub.shutdown:
		}
		p.conn.Close()
	}()

	p.conn.SetReadLimit(4096)
	p.conn.SetReadDeadline(time.Now().Add(pongWait))
	p.conn.SetPongHandler(func(string) error { p.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })

	for {
		_, message, err := p.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				p.hub.server.logger.Warn("websocket read error", "remote", p.ip, "err", err)
			}
			break
		}

		p.handleMessage(message)
	}
}

// writePump drains send and keeps the connection alive with pings.
func (p *watcher) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		p.conn.Close()
	}()

	for {
		select {
		case message, ok := <-p.send:
			p.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// dropped by the hub
				p.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := p.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			p.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := p.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (p *watcher) handleMessage(data []byte) {
	msg, err := protocol.Decode(data)
	if err != nil {
		p.hub.server.logger.Debug("invalid websocket message", "remote", p.ip, "err", err)
		return
	}

	switch msg.Type {
	case protocol.TypePing, protocol.TypeStatus:
		p.sendStatus()
	default:
		p.hub.server.logger.Debug("ignoring websocket message", "remote", p.ip, "type", msg.Type)
	}
}
