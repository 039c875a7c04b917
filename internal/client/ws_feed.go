package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/gorilla/websocket"

	"papanskor/internal/remote"
	"papanskor/internal/scoreboard/model"
	"papanskor/pkg/logger"
)

// message mirrors the server's socket envelope.
type message struct {
	Type    string          `json:"type"`
	DocID   string          `json:"document_id"`
	Payload json.RawMessage `json:"payload"`
}

// WSFeed subscribes to committed rows over the server's WebSocket endpoint.
type WSFeed struct {
	BaseURL    string
	Token      string
	ShareToken string
	Dialer     *websocket.Dialer
	// OnDeleted runs when the server closes the feed because the scoreboard was deleted.
	OnDeleted func(docID string)
	// OnPresence receives the watcher count of the subscribed scoreboard.
	OnPresence func(watchers int)
}

const closeDeleted = 4004

func NewWSFeed(baseURL, token, shareToken string) *WSFeed {
	return &WSFeed{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		Token:      token,
		ShareToken: shareToken,
		Dialer:     websocket.DefaultDialer,
	}
}

type wsSubscription struct {
	docID string
	conn  *websocket.Conn
	once  sync.Once
	done  chan struct{}
}

func (s *wsSubscription) Close() error {
	var err error
	s.once.Do(func() {
		err = s.conn.Close()
		<-s.done
	})
	return err
}

func (f *WSFeed) Subscribe(ctx context.Context, docID string, fn func(model.Patch)) (remote.Subscription, error) {
	u, err := url.Parse(f.BaseURL + "/ws")
	if err != nil {
		return nil, err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	}
	q := url.Values{}
	if docID != "" {
		q.Set("docId", docID)
	}
	if f.ShareToken != "" {
		q.Set("share", f.ShareToken)
	}
	if f.Token != "" {
		q.Set("token", f.Token)
	}
	u.RawQuery = q.Encode()

	conn, resp, err := f.Dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		if resp != nil {
			defer resp.Body.Close()
			return nil, statusError(resp)
		}
		return nil, fmt.Errorf("dial change feed: %w", err)
	}

	sub := &wsSubscription{docID: docID, conn: conn, done: make(chan struct{})}
	go f.read(sub, fn)
	return sub, nil
}

func (f *WSFeed) read(sub *wsSubscription, fn func(model.Patch)) {
	defer close(sub.done)
	for {
		var msg message
		if err := sub.conn.ReadJSON(&msg); err != nil {
			if websocket.IsCloseError(err, closeDeleted) {
				if f.OnDeleted != nil {
					f.OnDeleted(sub.docID)
				}
			} else if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Sugar.Warnf("Change feed closed: %v", err)
			}
			return
		}
		switch msg.Type {
		case "UPDATE":
			var row model.Scoreboard
			if err := json.Unmarshal(msg.Payload, &row); err != nil {
				logger.Sugar.Warnf("Change feed: bad snapshot: %v", err)
				continue
			}
			if sub.docID == "" {
				sub.docID = row.ID
			}
			fn(row.AsPatch())
		case "PRESENCE_UPDATE":
			var p struct {
				Watchers int `json:"watchers"`
			}
			if err := json.Unmarshal(msg.Payload, &p); err == nil && f.OnPresence != nil {
				f.OnPresence(p.Watchers)
			}
		}
	}
}
