package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"frame-relay-go/internal/types"
)

// statusRequest is the only message browsers send on /ws.
const statusRequest = "status_request"

// wsClient serializes writes to one websocket; gorilla allows a single
// concurrent writer per connection.
type wsClient struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *wsClient) send(messageType int, payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(messageType, payload)
}

func (c *wsClient) sendStatus(msg types.StatusMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return c.send(websocket.TextMessage, payload)
}

// keepAlive pings until done is closed or a ping fails.
func (c *wsClient) keepAlive(done <-chan struct{}) {
	ticker := time.NewTicker(pingEvery)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := c.send(websocket.PingMessage, nil); err != nil {
				_ = c.conn.Close()
				return
			}
		}
	}
}

// statusMessage is the current relay status as pushed on /ws.
func (s *Server) statusMessage() types.StatusMessage {
	return types.StatusMessage{Type: "status", Session: s.session, Metrics: s.status()}
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	conn.SetReadLimit(1 << 16)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	client := &wsClient{conn: conn}
	s.mu.Lock()
	s.clients[client] = struct{}{}
	s.mu.Unlock()

	if err := client.sendStatus(s.statusMessage()); err != nil {
		s.removeClient(client)
		return
	}
	go s.serveClient(client)
}

// serveClient answers status requests until the connection drops.
func (s *Server) serveClient(client *wsClient) {
	done := make(chan struct{})
	go client.keepAlive(done)
	defer close(done)
	defer s.removeClient(client)

	for {
		messageType, payload, err := client.conn.ReadMessage()
		if err != nil {
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}
		var req struct {
			Type string `json:"type"`
		}
		if json.Unmarshal(payload, &req) != nil || req.Type != statusRequest {
			continue
		}
		if err := client.sendStatus(s.statusMessage()); err != nil {
			return
		}
	}
}

// broadcast fans status messages out to every connected client. Clients
// whose write fails are dropped.
func (s *Server) broadcast(ctx context.Context, messages <-chan types.StatusMessage) {
	if messages == nil {
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-messages:
			if !ok {
				return
			}
			if msg.Metrics != nil {
				msg.Metrics["ws_clients"] = s.clientCount()
			}
			payload, err := json.Marshal(msg)
			if err != nil {
				continue
			}
			s.mu.Lock()
			clients := make([]*wsClient, 0, len(s.clients))
			for c := range s.clients {
				clients = append(clients, c)
			}
			s.mu.Unlock()
			for _, c := range clients {
				if err := c.send(websocket.TextMessage, payload); err != nil {
					s.removeClient(c)
				}
			}
		}
	}
}

func (s *Server) removeClient(client *wsClient) {
	s.mu.Lock()
	delete(s.clients, client)
	s.mu.Unlock()
	_ = client.conn.Close()
}

func (s *Server) clientCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}
