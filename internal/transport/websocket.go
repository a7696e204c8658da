// SPDX-License-Identifier: MIT
package transport

import (
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"dfttest/internal/log"

	"github.com/gorilla/websocket"
)

// StatsPath is the endpoint clients connect to.
const StatsPath = "/stats"

// WebSocketTransport broadcasts every sent value as JSON to all connected
// clients.
//
// Thread Safety:
//   - Send only queues; a single goroutine writes to the clients
//   - the client map is guarded by clientsMu
//   - sends closer together than minInterval are dropped, as are sends
//     that find the queue full, except the Stats of the last frame
//   - Close flushes queued messages before disconnecting clients
type WebSocketTransport struct {
	listener    net.Listener
	upgrader    websocket.Upgrader
	clients     map[*websocket.Conn]bool
	clientsMu   sync.Mutex
	broadcast   chan any
	server      *http.Server
	minInterval time.Duration

	lastMu   sync.Mutex
	lastSend time.Time

	closeOnce sync.Once
	done      chan struct{}
	stopped   chan struct{} // closed when handleBroadcasts returns
}

// NewWebSocketTransport listens on addr (":0" picks a free port) and
// serves StatsPath until Close.
func NewWebSocketTransport(addr string, minInterval time.Duration) (*WebSocketTransport, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	wst := &WebSocketTransport{
		listener: ln,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // Stats are read-only; any dashboard may connect.
			},
		},
		clients:     make(map[*websocket.Conn]bool),
		broadcast:   make(chan any, 256),
		minInterval: minInterval,
		done:        make(chan struct{}),
		stopped:     make(chan struct{}),
	}

	mux := http.NewServeMux()
	mux.HandleFunc(StatsPath, wst.handleWebSocket)
	wst.server = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		log.Infof("WebSocketTransport: Serving %s on %s", StatsPath, ln.Addr())
		if err := wst.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorf("WebSocketTransport: Server error: %v", err)
		}
	}()
	go wst.handleBroadcasts()

	return wst, nil
}

// Addr returns the listening address.
func (wst *WebSocketTransport) Addr() net.Addr {
	return wst.listener.Addr()
}

// ClientCount returns the number of connected clients.
func (wst *WebSocketTransport) ClientCount() int {
	wst.clientsMu.Lock()
	defer wst.clientsMu.Unlock()
	return len(wst.clients)
}

func (wst *WebSocketTransport) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := wst.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warnf("WebSocketTransport: Upgrade error: %v", err)
		return
	}

	wst.clientsMu.Lock()
	wst.clients[conn] = true
	n := len(wst.clients)
	wst.clientsMu.Unlock()
	log.Debugf("WebSocketTransport: Client %s connected, total: %d", conn.RemoteAddr(), n)

	// Clients never send; a read error means they went away.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				wst.removeClient(conn)
				return
			}
		}
	}()
}

func (wst *WebSocketTransport) removeClient(conn *websocket.Conn) {
	wst.clientsMu.Lock()
	_, ok := wst.clients[conn]
	delete(wst.clients, conn)
	n := len(wst.clients)
	wst.clientsMu.Unlock()
	if ok {
		conn.Close()
		log.Debugf("WebSocketTransport: Client disconnected, total: %d", n)
	}
}

func (wst *WebSocketTransport) handleBroadcasts() {
	defer close(wst.stopped)
	for {
		select {
		case data := <-wst.broadcast:
			wst.write(data)
		case <-wst.done:
			for {
				select {
				case data := <-wst.broadcast:
					wst.write(data)
				default:
					return
				}
			}
		}
	}
}

func (wst *WebSocketTransport) write(data any) {
	wst.clientsMu.Lock()
	defer wst.clientsMu.Unlock()
	for client := range wst.clients {
		if err := client.WriteJSON(data); err != nil {
			log.Debugf("WebSocketTransport: Error sending to client: %v", err)
			client.Close()
			delete(wst.clients, client)
		}
	}
}

// isLast reports whether data is the Stats of the final frame of a run.
func isLast(data any) bool {
	s, ok := data.(Stats)
	return ok && s.Total > 0 && s.Done == s.Total
}

// Send queues data for broadcast. It only blocks to queue the last
// frame's Stats behind a full queue.
func (wst *WebSocketTransport) Send(data any) error {
	if isLast(data) {
		select {
		case wst.broadcast <- data:
		case <-wst.done:
		}
		return nil
	}

	if wst.minInterval > 0 {
		now := time.Now()
		wst.lastMu.Lock()
		if now.Sub(wst.lastSend) < wst.minInterval {
			wst.lastMu.Unlock()
			return nil
		}
		wst.lastSend = now
		wst.lastMu.Unlock()
	}

	select {
	case wst.broadcast <- data:
	case <-wst.done:
	default:
		// Queue full, drop.
	}
	return nil
}

// Close disconnects every client and shuts the server down.
func (wst *WebSocketTransport) Close() error {
	var err error
	wst.closeOnce.Do(func() {
		log.Infof("WebSocketTransport: Closing server")
		close(wst.done)
		<-wst.stopped

		wst.clientsMu.Lock()
		for client := range wst.clients {
			client.Close()
		}
		clear(wst.clients)
		wst.clientsMu.Unlock()

		err = wst.server.Close()
	})
	return err
}

var _ Transport = (*WebSocketTransport)(nil)
