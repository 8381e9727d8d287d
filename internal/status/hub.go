package status

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Diagnostics are read-only and meant for LAN tooling, so allow any
	// origin rather than require a browser-side allowlist.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// hub fans broadcast messages out to every connected diagnostics
// client. Clients never send anything the hub acts on; readPump exists
// only to drain pings/close frames per the gorilla/websocket contract.
type hub struct {
	clientsMu sync.RWMutex
	clients   map[*wsClient]bool

	broadcast  chan []byte
	register   chan *wsClient
	unregister chan *wsClient
}

func newHub() *hub {
	return &hub{
		clients:    make(map[*wsClient]bool),
		broadcast:  make(chan []byte),
		register:   make(chan *wsClient),
		unregister: make(chan *wsClient),
	}
}

func (h *hub) run() {
	for {
		select {
		case c := <-h.register:
			h.clientsMu.Lock()
			h.clients[c] = true
			h.clientsMu.Unlock()
			logger.Printf("client connected from %s, total %d", c.ip, len(h.clients))

		case c := <-h.unregister:
			h.clientsMu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			h.clientsMu.Unlock()

		case msg := <-h.broadcast:
			h.clientsMu.RLock()
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					close(c.send)
					delete(h.clients, c)
				}
			}
			h.clientsMu.RUnlock()
		}
	}
}

type feedMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

func (h *hub) broadcastPeers(peers []peerDTO) {
	h.send(feedMessage{Type: "peers", Payload: peers})
}

func (h *hub) broadcastSession(sess sessionDTO) {
	h.send(feedMessage{Type: "session", Payload: sess})
}

func (h *hub) send(msg feedMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		logger.Printf("marshal feed message: %v", err)
		return
	}
	h.broadcast <- data
}

func (h *hub) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Printf("upgrade failed: %v", err)
		return
	}

	c := &wsClient{hub: h, conn: conn, send: make(chan []byte, 256), ip: r.RemoteAddr}
	h.register <- c

	go c.writePump()
	go c.readPump()
}

// wsClient is one connected diagnostics subscriber.
type wsClient struct {
	hub  *hub
	conn *websocket.Conn
	send chan []byte
	ip   string
}

func (c *wsClient) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(4096)
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			break
		}
	}
}

func (c *wsClient) writePump() {
	ticker := time.NewTicker(50 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(msg)
			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
