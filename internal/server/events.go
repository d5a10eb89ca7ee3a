package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"smart-parking/internal/logging"
	"smart-parking/internal/parking"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	clientBuffer   = 16
	broadcastQueue = 64
)

type EventType string

const (
	EventParked     EventType = "parked"
	EventQueued     EventType = "queued"
	EventReleased   EventType = "released"
	EventDrained    EventType = "drained"
	EventRelocated  EventType = "relocated"
	EventLotCreated EventType = "lot_created"
)

// LotEvent is one message on the live feed.
type LotEvent struct {
	Type         EventType `json:"type"`
	LotID        string    `json:"lot_id"`
	LicensePlate string    `json:"license_plate,omitempty"`
	SlotID       int       `json:"slot_id,omitempty"`
	FromSlotID   int       `json:"from_slot_id,omitempty"`
	Position     int       `json:"position,omitempty"`
	Amount       float64   `json:"amount,omitempty"`
	Occupied     int       `json:"occupied"`
	Available    int       `json:"available"`
	Backlog      int       `json:"backlog"`
	At           time.Time `json:"at"`
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type hubClient struct {
	conn *websocket.Conn
	send chan []byte
}

// EventHub fans lot events out to websocket subscribers. Run owns the client
// set; everything else talks to it over channels.
type EventHub struct {
	register   chan *hubClient
	unregister chan *hubClient
	broadcast  chan []byte
	done       chan struct{}
	clients    atomic.Int64
}

func NewEventHub() *EventHub {
	return &EventHub{
		register:   make(chan *hubClient),
		unregister: make(chan *hubClient),
		broadcast:  make(chan []byte, broadcastQueue),
		done:       make(chan struct{}),
	}
}

// Run serves the hub until ctx is done. It must be called at most once.
func (hub *EventHub) Run(ctx context.Context) {
	defer close(hub.done)

	clients := make(map[*hubClient]struct{})
	drop := func(c *hubClient) {
		if _, ok := clients[c]; ok {
			delete(clients, c)
			close(c.send)
			hub.clients.Store(int64(len(clients)))
		}
	}

	for {
		select {
		case <-ctx.Done():
			for c := range clients {
				drop(c)
			}
			return

		case c := <-hub.register:
			clients[c] = struct{}{}
			hub.clients.Store(int64(len(clients)))
			logging.Debug(ctx).Int("clients", len(clients)).Msg("event feed client connected")

		case c := <-hub.unregister:
			drop(c)
			logging.Debug(ctx).Int("clients", len(clients)).Msg("event feed client disconnected")

		case message := <-hub.broadcast:
			for c := range clients {
				select {
				case c.send <- message:
				default:
					// slow reader
					drop(c)
				}
			}
		}
	}
}

// Clients is the number of connected subscribers.
func (hub *EventHub) Clients() int {
	return int(hub.clients.Load())
}

// Publish never blocks. Events are dropped when the queue is full.
func (hub *EventHub) Publish(event LotEvent) {
	message, err := json.Marshal(event)
	if err != nil {
		logging.Error(context.Background()).Err(err).Msg("error marshaling lot event")
		return
	}

	select {
	case hub.broadcast <- message:
	default:
		logging.Warn(context.Background()).Str("type", string(event.Type)).Msg("event queue is full, dropping event")
	}
}

func (hub *EventHub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Warn(r.Context()).Err(err).Msg("failed to upgrade to websocket")
		return
	}

	c := &hubClient{conn: conn, send: make(chan []byte, clientBuffer)}
	select {
	case hub.register <- c:
	case <-hub.done:
		conn.Close()
		return
	case <-r.Context().Done():
		conn.Close()
		return
	}

	go hub.writePump(c)
	go hub.readPump(c)
}

// readPump only watches for the peer going away; the feed is one-way.
func (hub *EventHub) readPump(c *hubClient) {
	defer func() {
		select {
		case hub.unregister <- c:
		case <-hub.done:
		}
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logging.Warn(context.Background()).Err(err).Msg("websocket read error")
			}
			return
		}
	}
}

func (hub *EventHub) writePump(c *hubClient) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func newLotEvent(typ EventType, stats parking.Stats) LotEvent {
	return LotEvent{
		Type:      typ,
		LotID:     stats.LotID,
		Occupied:  stats.Occupied,
		Available: stats.Available,
		Backlog:   stats.Backlog,
		At:        time.Now(),
	}
}
