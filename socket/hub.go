package socket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"papanskor/internal/permission"
	"papanskor/internal/scoreboard/model"
	"papanskor/pkg/logger"
	"papanskor/pkg/metrics"
)

const (
	UpdateType         = "UPDATE"          // Full row snapshot after a committed write
	PresenceUpdateType = "PRESENCE_UPDATE" // Number of watchers changed
	DeletedType        = "DELETED"         // Scoreboard was deleted

	closeDeleted = 4004
)

type WSMessage struct {
	Type    string          `json:"type"`
	DocID   string          `json:"document_id"`
	Payload json.RawMessage `json:"payload"`
}

type Presence struct {
	Watchers int `json:"watchers"`
}

// Access decides whether a caller may watch a scoreboard and returns its current row.
type Access interface {
	Open(ctx context.Context, caller permission.Caller, docID, shareToken string) (*model.Scoreboard, error)
}

// Hub is the change feed: every committed row is pushed to all watchers of that scoreboard,
// including the client whose write produced it.
type Hub struct {
	Rooms      map[string]map[*Client]bool
	Broadcast  chan *model.Scoreboard
	Register   chan *Client
	Unregister chan *Client
	Access     Access

	// done is closed when Run returns; sends to the hub give up after that.
	done     chan struct{}
	doneOnce sync.Once

	mu sync.Mutex
	// versions is the newest version sent per room; older or repeated snapshots are dropped.
	versions map[string]int64
}

type Client struct {
	Hub    *Hub
	Conn   *websocket.Conn
	DocID  string
	UserID string
	Send   chan []byte
	// Initial is the row sent right after registration.
	Initial *model.Scoreboard
}

func NewHub(access Access) *Hub {
	return &Hub{
		Rooms:      make(map[string]map[*Client]bool),
		Broadcast:  make(chan *model.Scoreboard, 64),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		Access:     access,
		versions:   make(map[string]int64),
		done:       make(chan struct{}),
	}
}

// Publish queues a committed row for fan-out. It is dropped once the hub has stopped.
func (h *Hub) Publish(row *model.Scoreboard) {
	c := row.Clone()
	select {
	case h.Broadcast <- &c:
	case <-h.done:
		logger.Sugar.Debugf("Hub stopped, dropping version %d of %s", c.Version, c.ID)
	}
}

func (h *Hub) register(c *Client) bool {
	select {
	case h.Register <- c:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) unregister(c *Client) {
	select {
	case h.Unregister <- c:
	case <-h.done:
	}
}

// Version is the newest version delivered to the scoreboard's room, 0 when nobody watches.
func (h *Hub) Version(docID string) int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.versions[docID]
}

func (h *Hub) Run(ctx context.Context) {
	defer h.doneOnce.Do(func() { close(h.done) })
	for {
		select {
		case <-ctx.Done():
			return

		case client := <-h.Register:
			h.mu.Lock()
			if h.Rooms[client.DocID] == nil {
				h.Rooms[client.DocID] = make(map[*Client]bool)
			}
			h.Rooms[client.DocID][client] = true
			if client.Initial != nil && client.Initial.Version > h.versions[client.DocID] {
				h.versions[client.DocID] = client.Initial.Version
			}
			h.mu.Unlock()
			metrics.FeedSubscribers.Inc()

			if client.Initial != nil {
				if msg, err := updateMessage(client.Initial); err == nil {
					client.Send <- msg
				}
			}
			h.broadcastPresence(client.DocID)

		case client := <-h.Unregister:
			h.mu.Lock()
			docID := client.DocID
			_, ok := h.Rooms[docID][client]
			if ok {
				delete(h.Rooms[docID], client)
				close(client.Send)
				if len(h.Rooms[docID]) == 0 {
					delete(h.Rooms, docID)
					delete(h.versions, docID)
					logger.Sugar.Debugf("Closed empty room: %s", docID)
				}
			}
			remaining := h.Rooms[docID] != nil
			h.mu.Unlock()

			if ok {
				metrics.FeedSubscribers.Dec()
			}
			if remaining {
				h.broadcastPresence(docID)
			}

		case row := <-h.Broadcast:
			h.deliver(row)
		}
	}
}

func (h *Hub) deliver(row *model.Scoreboard) {
	h.mu.Lock()
	room := h.Rooms[row.ID]
	if len(room) == 0 {
		h.mu.Unlock()
		return
	}
	if row.Version <= h.versions[row.ID] {
		h.mu.Unlock()
		metrics.FeedStaleDropped.Inc()
		logger.Sugar.Debugf("Dropping stale snapshot v%d of %s", row.Version, row.ID)
		return
	}
	h.versions[row.ID] = row.Version
	clients := make([]*Client, 0, len(room))
	for c := range room {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	payload, err := updateMessage(row)
	if err != nil {
		logger.Sugar.Errorf("Error marshalling snapshot of %s: %v", row.ID, err)
		return
	}
	metrics.FeedBroadcastsTotal.Inc()

	for _, c := range clients {
		select {
		case c.Send <- payload:
		default:
			// A lagging watcher is dropped rather than blocking the hub; it resyncs on reconnect.
			logger.Sugar.Warnf("Watcher %q of %s is lagging, disconnecting", c.UserID, row.ID)
			c.Conn.Close()
		}
	}
}

// RemoveDocument tells every watcher the scoreboard is gone and disconnects them.
func (h *Hub) RemoveDocument(docID string) {
	h.mu.Lock()
	clients := make([]*Client, 0, len(h.Rooms[docID]))
	for c := range h.Rooms[docID] {
		clients = append(clients, c)
	}
	delete(h.versions, docID)
	h.mu.Unlock()

	closeMsg := websocket.FormatCloseMessage(closeDeleted, DeletedType)
	for _, c := range clients {
		if err := c.Conn.WriteControl(websocket.CloseMessage, closeMsg, time.Now().Add(time.Second)); err != nil {
			logger.Sugar.Debugf("Close frame to watcher of %s failed: %v", docID, err)
		}
		// readPump notices and unregisters.
		c.Conn.Close()
	}
}

func (h *Hub) broadcastPresence(docID string) {
	h.mu.Lock()
	clients := make([]*Client, 0, len(h.Rooms[docID]))
	for c := range h.Rooms[docID] {
		clients = append(clients, c)
	}
	h.mu.Unlock()
	if len(clients) == 0 {
		return
	}

	payload, _ := json.Marshal(Presence{Watchers: len(clients)})
	msg, _ := json.Marshal(WSMessage{Type: PresenceUpdateType, DocID: docID, Payload: payload})
	for _, c := range clients {
		select {
		case c.Send <- msg:
		default:
			logger.Sugar.Warnf("Watcher %q send buffer full during presence update", c.UserID)
		}
	}
}

// updateMessage encodes a row for watchers. Share tokens never travel on the feed.
func updateMessage(row *model.Scoreboard) ([]byte, error) {
	public := row.Clone()
	public.ViewToken, public.ControlToken = "", ""
	payload, err := json.Marshal(public)
	if err != nil {
		return nil, err
	}
	return json.Marshal(WSMessage{Type: UpdateType, DocID: row.ID, Payload: payload})
}
