//
// Copyright (C) 2021 Intel Corporation
//
// SPDX-License-Identifier: Apache-2.0

package sessionapp

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/edgexfoundry/go-mod-core-contracts/clients/logger"
	"github.com/gorilla/websocket"

	"edgexfoundry/app-rssi-localization/internal/session"
)

const (
	clientSendBufSz = 64
	writeWait       = 10 * time.Second
)

// Hub is a session.Sink which streams every Result as JSON
// to the connected websocket clients.
//
// Publish never blocks: a client whose send buffer is full is disconnected.
type Hub struct {
	lc       logger.LoggingClient
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*wsClient]struct{}
}

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
}

func NewHub(lc logger.LoggingClient) *Hub {
	return &Hub{
		lc:      lc,
		clients: make(map[*wsClient]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// Len returns the number of connected clients.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) Publish(r session.Result) {
	data, err := json.Marshal(r)
	if err != nil {
		h.lc.Error("Failed to marshal estimate.", "error", err.Error())
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			h.lc.Warn("Dropping slow websocket client.", "remote", c.conn.RemoteAddr().String())
			h.removeLocked(c)
		}
	}
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		h.removeLocked(c)
	}
}

func (h *Hub) remove(c *wsClient) {
	h.mu.Lock()
	h.removeLocked(c)
	h.mu.Unlock()
}

// removeLocked must be called with h.mu held.
// Closing send stops the client's writer, which closes the connection.
func (h *Hub) removeLocked(c *wsClient) {
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

// ServeHTTP upgrades the request and streams Results until the client
// disconnects or falls behind.
func (h *Hub) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	conn, err := h.upgrader.Upgrade(w, req, nil)
	if err != nil {
		// the upgrader has already replied to the client
		h.lc.Error("Failed to upgrade websocket connection.", "error", err.Error())
		return
	}

	c := &wsClient{conn: conn, send: make(chan []byte, clientSendBufSz)}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	h.lc.Info("Websocket client connected.", "remote", conn.RemoteAddr().String())

	go c.writePump()
	c.readPump()
	h.remove(c)
	h.lc.Info("Websocket client disconnected.", "remote", conn.RemoteAddr().String())
}

func (c *wsClient) writePump() {
	defer c.conn.Close()
	for data := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			return
		}
	}
	_ = c.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

// readPump discards client messages; it returns once the connection fails or closes.
func (c *wsClient) readPump() {
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
