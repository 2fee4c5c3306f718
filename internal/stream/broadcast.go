// Package stream fans decoded events out to debug/visualization clients
// over WebSocket. Its Sink methods write to clients on the caller's
// goroutine; each client also gets a reader and a pinger goroutine.
package stream

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"gonum.org/v1/gonum/floats"

	"iptsd/ipts"
)

const (
	pingEvery = 5 * time.Second
	pongWait  = 15 * time.Second
	writeWait = 5 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true }, // debug endpoint, LAN-trusted
}

// Broadcaster serves a WebSocket endpoint that mirrors every decoded
// stylus sample and heatmap to every connected client, JSON-encoded. It
// implements ipts.Sink directly so it can sit on the parser's sink chain
// like any other consumer.
type Broadcaster struct {
	log *slog.Logger

	mu      sync.RWMutex
	clients map[*client]struct{}
}

type client struct {
	conn *websocket.Conn
	mu   sync.Mutex
	done chan struct{}
}

// NewBroadcaster returns a Broadcaster with no connected clients yet.
func NewBroadcaster(log *slog.Logger) *Broadcaster {
	return &Broadcaster{
		log:     log,
		clients: make(map[*client]struct{}),
	}
}

// ServeHTTP upgrades the request to a WebSocket and registers the
// connection as a broadcast recipient until it disconnects.
func (b *Broadcaster) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		b.log.Warn("stream upgrade failed", "err", err)
		return
	}

	c := &client{conn: conn, done: make(chan struct{})}
	conn.SetReadLimit(1 << 16)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	b.mu.Lock()
	b.clients[c] = struct{}{}
	b.mu.Unlock()

	go b.readLoop(c)
	go b.pingLoop(c)
}

func (b *Broadcaster) readLoop(c *client) {
	defer b.drop(c)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (b *Broadcaster) pingLoop(c *client) {
	t := time.NewTicker(pingEvery)
	defer t.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-t.C:
			c.mu.Lock()
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			err := c.conn.WriteMessage(websocket.PingMessage, nil)
			c.mu.Unlock()
			if err != nil {
				b.drop(c)
				return
			}
		}
	}
}

func (b *Broadcaster) drop(c *client) {
	b.mu.Lock()
	if _, ok := b.clients[c]; ok {
		delete(b.clients, c)
		close(c.done)
		_ = c.conn.Close()
	}
	b.mu.Unlock()
}

func (b *Broadcaster) broadcast(v any) {
	msg, err := json.Marshal(v)
	if err != nil {
		b.log.Error("stream marshal failed", "err", err)
		return
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for c := range b.clients {
		c.mu.Lock()
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		err := c.conn.WriteMessage(websocket.TextMessage, msg)
		c.mu.Unlock()
		if err != nil {
			go b.drop(c)
		}
	}
}

type stylusEvent struct {
	Type      string  `json:"type"`
	Proximity bool    `json:"proximity"`
	Contact   bool    `json:"contact"`
	Button    bool    `json:"button"`
	Rubber    bool    `json:"rubber"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Pressure  float64 `json:"pressure"`
}

type heatmapEvent struct {
	Type      string  `json:"type"`
	Width     uint8   `json:"width"`
	Height    uint8   `json:"height"`
	Min       float64 `json:"min"`
	Max       float64 `json:"max"`
	Data      []byte  `json:"data"`
	Timestamp uint32  `json:"timestamp,omitempty"`
}

// OnStylus implements ipts.Sink.
func (b *Broadcaster) OnStylus(s ipts.StylusSample) {
	b.broadcast(stylusEvent{
		Type:      "stylus",
		Proximity: s.Proximity,
		Contact:   s.Contact,
		Button:    s.Button,
		Rubber:    s.Rubber,
		X:         s.X,
		Y:         s.Y,
		Pressure:  s.Pressure,
	})
}

// OnHeatmap implements ipts.Sink. It auto-ranges the heatmap's intensity
// bytes with gonum before sending, purely for the debug viewer's benefit;
// this is the one place in the daemon where that cost is acceptable,
// because unlike the core's DFT path it does not run per pen sample.
func (b *Broadcaster) OnHeatmap(h ipts.Heatmap) {
	lo, hi := autoRange(h.Data)
	b.broadcast(heatmapEvent{
		Type:      "heatmap",
		Width:     h.Width,
		Height:    h.Height,
		Min:       lo,
		Max:       hi,
		Data:      h.Data,
		Timestamp: h.Timestamp,
	})
}

// OnDft implements ipts.Sink as a no-op: raw DFT windows are an internal
// decoding detail, not something a debug viewer renders.
func (b *Broadcaster) OnDft(ipts.DftWindow) {}

// OnMetadata implements ipts.Sink as a no-op for the same reason.
func (b *Broadcaster) OnMetadata(ipts.Metadata) {}

func autoRange(data []byte) (float64, float64) {
	if len(data) == 0 {
		return 0, 0
	}
	vals := make([]float64, len(data))
	for i, v := range data {
		vals[i] = float64(v)
	}
	return floats.Min(vals), floats.Max(vals)
}
