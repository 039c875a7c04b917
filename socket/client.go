package socket

import (
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"papanskor/internal/permission"
	"papanskor/internal/scoreboard/repository"
	"papanskor/pkg/logger"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Overlay pages are embedded by streaming tools from arbitrary origins.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ServeWs subscribes the caller to one scoreboard, addressed by ?docId= and/or ?share=.
func ServeWs(hub *Hub, w http.ResponseWriter, r *http.Request, caller permission.Caller) {
	docID := r.URL.Query().Get("docId")
	share := r.URL.Query().Get("share")
	if docID == "" && share == "" {
		http.Error(w, "Missing docId or share parameter", http.StatusBadRequest)
		return
	}

	row, err := hub.Access.Open(r.Context(), caller, docID, share)
	if errors.Is(err, repository.ErrNotFound) {
		logger.Sugar.Warnf("Subscription rejected: scoreboard %s not found", docID)
		http.Error(w, "Scoreboard not found", http.StatusNotFound)
		return
	} else if err != nil {
		logger.Sugar.Warnf("Subscription rejected for %s: %v", docID, err)
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Sugar.Error(err)
		return
	}

	client := &Client{
		Hub:     hub,
		Conn:    conn,
		DocID:   row.ID,
		UserID:  caller.UserID,
		Send:    make(chan []byte, 256),
		Initial: row,
	}
	if !hub.register(client) {
		conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"), time.Now().Add(writeWait))
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

// readPump only watches for the connection going away; watchers never write through the feed.
func (c *Client) readPump() {
	defer func() {
		c.Hub.unregister(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(4096)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		return c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, closeDeleted) {
				logger.Sugar.Errorf("error: %v", err)
			}
			return
		}
		logger.Sugar.Debugf("Ignoring message from watcher %q of %s", c.UserID, c.DocID)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
