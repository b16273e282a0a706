// Package stream fans encounter events out to websocket subscribers.
// Every committed command broadcasts the full aggregate, so a client that
// connects mid-battle is current after its first message.
package stream

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/louisbranch/digivice/internal/encounter/service"
)

const (
	// writeWait bounds how long a single frame write may stall.
	writeWait = 10 * time.Second
	// sendBuffer is the per-subscriber queue. A subscriber that falls this
	// far behind is dropped rather than blocking the broadcast.
	sendBuffer = 16
)

// Hub tracks websocket subscribers per encounter. A subscriber watching
// encounter id "" receives every event.
type Hub struct {
	logger   *log.Logger
	upgrader websocket.Upgrader

	mu          sync.Mutex
	subscribers map[string]map[*subscriber]struct{}
}

var _ service.Broadcaster = (*Hub)(nil)

// NewHub builds an empty hub.
func NewHub(logger *log.Logger) *Hub {
	if logger == nil {
		logger = log.Default()
	}
	return &Hub{
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		subscribers: make(map[string]map[*subscriber]struct{}),
	}
}

type subscriber struct {
	conn        *websocket.Conn
	send        chan []byte
	encounterID string
	closeOnce   sync.Once
}

func (s *subscriber) close() {
	s.closeOnce.Do(func() {
		close(s.send)
	})
}

// Broadcast queues the event for every subscriber of its encounter and
// every firehose subscriber. Slow subscribers are disconnected.
func (h *Hub) Broadcast(event service.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		h.logger.Printf("marshal %s event for %s: %v", event.Type, event.EncounterID, err)
		return
	}

	h.mu.Lock()
	var stale []*subscriber
	for _, sub := range h.matching(event.EncounterID) {
		select {
		case sub.send <- data:
		default:
			stale = append(stale, sub)
		}
	}
	for _, sub := range stale {
		h.removeLocked(sub)
	}
	h.mu.Unlock()

	for _, sub := range stale {
		h.logger.Printf("dropping slow subscriber for encounter %q", sub.encounterID)
		sub.close()
	}
}

// matching returns the subscribers interested in an encounter. Callers
// hold h.mu.
func (h *Hub) matching(encounterID string) []*subscriber {
	var subs []*subscriber
	for sub := range h.subscribers[encounterID] {
		subs = append(subs, sub)
	}
	if encounterID != "" {
		for sub := range h.subscribers[""] {
			subs = append(subs, sub)
		}
	}
	return subs
}

// Handle upgrades the request and streams events until the client goes
// away. The encounter id comes from the route's {id} segment; GM clients
// subscribe to everything via the id-less route.
func (h *Hub) Handle(w http.ResponseWriter, r *http.Request) {
	encounterID := r.PathValue("id")

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Printf("websocket upgrade failed: %v", err)
		return
	}

	sub := &subscriber{
		conn:        conn,
		send:        make(chan []byte, sendBuffer),
		encounterID: encounterID,
	}
	h.add(sub)

	go h.writePump(sub)
	h.readUntilClose(sub)
}

func (h *Hub) add(sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.subscribers[sub.encounterID]
	if !ok {
		set = make(map[*subscriber]struct{})
		h.subscribers[sub.encounterID] = set
	}
	set[sub] = struct{}{}
}

func (h *Hub) remove(sub *subscriber) {
	h.mu.Lock()
	h.removeLocked(sub)
	h.mu.Unlock()
	sub.close()
}

func (h *Hub) removeLocked(sub *subscriber) {
	set, ok := h.subscribers[sub.encounterID]
	if !ok {
		return
	}
	delete(set, sub)
	if len(set) == 0 {
		delete(h.subscribers, sub.encounterID)
	}
}

// writePump drains the subscriber's queue onto the connection.
func (h *Hub) writePump(sub *subscriber) {
	defer sub.conn.Close()
	for data := range sub.send {
		sub.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := sub.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			h.remove(sub)
			return
		}
	}
	sub.conn.SetWriteDeadline(time.Now().Add(writeWait))
	sub.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseGoingAway, "subscriber lagged"))
}

// readUntilClose discards inbound frames; the stream is one-way. The read
// loop exists to notice the peer hanging up.
func (h *Hub) readUntilClose(sub *subscriber) {
	for {
		if _, _, err := sub.conn.ReadMessage(); err != nil {
			h.remove(sub)
			return
		}
	}
}

// SubscriberCount reports how many clients watch an encounter id.
func (h *Hub) SubscriberCount(encounterID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers[encounterID])
}
