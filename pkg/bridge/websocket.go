package bridge

import (
	"context"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/golang/glog"
	"golang.org/x/net/websocket"

	fx "github.com/robotalks/softuart/pkg/framework"
)

// WebSocketHub is a Transport over WebSocket. A client connected at
// /<topic> receives every payload published on that topic, and each
// message it sends is delivered to the subscribers of that topic.
type WebSocketHub struct {
	Addr string

	lock     sync.RWMutex
	clients  map[string]map[*websocket.Conn]struct{}
	handlers map[string]map[*hubSubscription]struct{}
}

type hubSubscription struct {
	hub     *WebSocketHub
	topic   string
	handler Handler
}

// NewWebSocketHub creates a hub serving at addr when run.
func NewWebSocketHub(addr string) *WebSocketHub {
	return &WebSocketHub{
		Addr:     addr,
		clients:  make(map[string]map[*websocket.Conn]struct{}),
		handlers: make(map[string]map[*hubSubscription]struct{}),
	}
}

// Run implements Runnable.
func (h *WebSocketHub) Run(ctx context.Context) error {
	server := &http.Server{Addr: h.Addr, Handler: h}
	glog.Infof("websocket listening on %s", h.Addr)
	return fx.RunWithContextCloser(ctx, server, server.ListenAndServe)
}

// ServeHTTP implements http.Handler.
func (h *WebSocketHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	websocket.Handler(h.serveConn).ServeHTTP(w, r)
}

// Clients returns the number of clients connected at topic.
func (h *WebSocketHub) Clients(topic string) int {
	h.lock.RLock()
	defer h.lock.RUnlock()
	return len(h.clients[topic])
}

func (h *WebSocketHub) serveConn(conn *websocket.Conn) {
	topic := strings.Trim(conn.Request().URL.Path, "/")
	h.lock.Lock()
	conns := h.clients[topic]
	if conns == nil {
		conns = make(map[*websocket.Conn]struct{})
		h.clients[topic] = conns
	}
	conns[conn] = struct{}{}
	h.lock.Unlock()
	glog.V(2).Infof("websocket client %s joined %q", conn.Request().RemoteAddr, topic)

	defer func() {
		h.lock.Lock()
		delete(h.clients[topic], conn)
		h.lock.Unlock()
		conn.Close()
	}()
	for {
		var payload []byte
		if err := websocket.Message.Receive(conn, &payload); err != nil {
			if err != io.EOF {
				glog.V(2).Infof("websocket client %q: %v", topic, err)
			}
			return
		}
		h.lock.RLock()
		var handlers []Handler
		for sub := range h.handlers[topic] {
			handlers = append(handlers, sub.handler)
		}
		h.lock.RUnlock()
		for _, handler := range handlers {
			handler(topic, payload)
		}
	}
}

// Publish implements Transport. Clients failing to receive are dropped.
func (h *WebSocketHub) Publish(topic string, payload []byte) error {
	h.lock.RLock()
	conns := make([]*websocket.Conn, 0, len(h.clients[topic]))
	for conn := range h.clients[topic] {
		conns = append(conns, conn)
	}
	h.lock.RUnlock()
	for _, conn := range conns {
		if err := websocket.Message.Send(conn, payload); err != nil {
			glog.Warningf("websocket send %q: %v", topic, err)
			conn.Close()
		}
	}
	return nil
}

// Subscribe implements Transport.
func (h *WebSocketHub) Subscribe(topic string, handler Handler) (io.Closer, error) {
	sub := &hubSubscription{hub: h, topic: topic, handler: handler}
	h.lock.Lock()
	subs := h.handlers[topic]
	if subs == nil {
		subs = make(map[*hubSubscription]struct{})
		h.handlers[topic] = subs
	}
	subs[sub] = struct{}{}
	h.lock.Unlock()
	return sub, nil
}

// Close implements io.Closer.
func (s *hubSubscription) Close() error {
	s.hub.lock.Lock()
	delete(s.hub.handlers[s.topic], s)
	s.hub.lock.Unlock()
	return nil
}
