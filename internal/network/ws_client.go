// Package network contains the websocket client used to watch a remote
// keyloop instance.
package network

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"keyloop/internal/protocol"
)

// DefaultReconnectDelay is the pause between connection attempts.
const DefaultReconnectDelay = 5 * time.Second

// WSClient follows the progress stream of a keyloop API server and
// reconnects until its context is cancelled.
type WSClient struct {
	hostAddr string
	token    string
	logger   *slog.Logger
	send     chan protocol.Message

	// ReconnectDelay overrides DefaultReconnectDelay when positive.
	ReconnectDelay time.Duration

	// Callbacks run on the read goroutine.
	OnProgress func(protocol.ProgressPayload)
	OnStatus   func(protocol.StatusPayload)
	OnConnect  func(connected bool)

	mu          sync.Mutex
	isConnected bool
}

// NewWSClient creates a client for hostAddr ("host:port").
func NewWSClient(hostAddr, token string, logger *slog.Logger) *WSClient {
	if logger == nil {
		logger = slog.Default()
	}
	return &WSClient{
		hostAddr: hostAddr,
		token:    token,
		logger:   logger,
		send:     make(chan protocol.Message, 16),
	}
}

// Run connects and processes messages, reconnecting after failures, until
// ctx is done.
func (c *WSClient) Run(ctx context.Context) error {
	delay := c.ReconnectDelay
	if delay <= 0 {
		delay = DefaultReconnectDelay
	}
	for {
		if err := c.connect(ctx); err != nil {
			c.logger.Warn("watch connection failed", "addr", c.hostAddr, "err", err)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
			c.logger.Debug("attempting reconnection", "addr", c.hostAddr)
		}
	}
}

func (c *WSClient) connect(ctx context.Context) error {
	u := url.URL{Scheme: "ws", Host: c.hostAddr, Path: "/ws"}
	header := http.Header{}
	if c.token != "" {
		header.Set("Authorization", "Bearer "+c.token)
	}

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, u.String(), header)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("dial %s: %s: %w", u.String(), resp.Status, err)
		}
		return fmt.Errorf("dial %s: %w", u.String(), err)
	}
	defer conn.Close()

	c.setConnected(true)
	defer c.setConnected(false)
	c.logger.Info("connected to keyloop", "addr", c.hostAddr)

	readDone := make(chan struct{})
	connDone := make(chan struct{})
	go func() {
		defer close(connDone)
		c.writePump(ctx, conn, readDone)
	}()

	// Closing the connection unblocks the reader once ctx ends.
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	c.readPump(conn)
	close(readDone)
	<-connDone
	return nil
}

func (c *WSClient) setConnected(v bool) {
	c.mu.Lock()
	c.isConnected = v
	c.mu.Unlock()
	if c.OnConnect != nil {
		c.OnConnect(v)
	}
}

func (c *WSClient) readPump(conn *websocket.Conn) {
	conn.SetReadLimit(64 * 1024)
	conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error { conn.SetReadDeadline(time.Now().Add(60 * time.Second)); return nil })
	conn.SetPingHandler(func(data string) error {
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(10*time.Second))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Debug("watch read error", "err", err)
			}
			return
		}

		msg, err := protocol.Decode(data)
		if err != nil {
			c.logger.Warn("invalid message from server", "err", err)
			continue
		}
		c.handleMessage(msg)
	}
}

func (c *WSClient) writePump(ctx context.Context, conn *websocket.Conn, readDone <-chan struct{}) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case msg := <-c.send:
			data, err := json.Marshal(msg)
			if err != nil {
				c.logger.Error("marshal message", "err", err)
				continue
			}
			conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-readDone:
			return

		case <-ctx.Done():
			conn.SetWriteDeadline(time.Now().Add(time.Second))
			conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

func (c *WSClient) handleMessage(msg protocol.Message) {
	switch msg.Type {
	case protocol.TypeProgress:
		var p protocol.ProgressPayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			c.logger.Warn("invalid progress payload", "err", err)
			return
		}
		if c.OnProgress != nil {
			c.OnProgress(p)
		}

	case protocol.TypeStatus:
		var st protocol.StatusPayload
		if err := json.Unmarshal(msg.Payload, &st); err != nil {
			c.logger.Warn("invalid status payload", "err", err)
			return
		}
		if c.OnStatus != nil {
			c.OnStatus(st)
		}
	}
}

// RequestStatus asks the server to resend its status. It is dropped while
// the send queue is full.
func (c *WSClient) RequestStatus() {
	select {
	case c.send <- protocol.Message{Type: protocol.TypePing}:
	default:
	}
}

// IsConnected returns true while a connection is open
func (c *WSClient) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.isConnected
}
