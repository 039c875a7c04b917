package socket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"papanskor/internal/permission"
	"papanskor/internal/scoreboard/model"
	"papanskor/internal/scoreboard/repository"
)

// rows serves as both the feed's access check and the relay's loader.
type rows struct {
	mu   sync.Mutex
	byID map[string]*model.Scoreboard
}

func (r *rows) put(sb model.Scoreboard) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[sb.ID] = &sb
}

func (r *rows) Get(_ context.Context, id string) (*model.Scoreboard, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sb, ok := r.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	c := sb.Clone()
	return &c, nil
}

func (r *rows) Open(ctx context.Context, _ permission.Caller, docID, _ string) (*model.Scoreboard, error) {
	return r.Get(ctx, docID)
}

func readMessage(t *testing.T, conn *websocket.Conn) WSMessage {
	t.Helper()
	var msg WSMessage
	conn.SetReadDeadline(time.Now().Add(time.Second))
	_, p, err := conn.ReadMessage()
	require.NoError(t, err, "Failed to read message from WebSocket")
	require.NoError(t, json.Unmarshal(p, &msg))
	return msg
}

func readRow(t *testing.T, conn *websocket.Conn) model.Scoreboard {
	t.Helper()
	for {
		msg := readMessage(t, conn)
		if msg.Type != UpdateType {
			continue
		}
		var sb model.Scoreboard
		require.NoError(t, json.Unmarshal(msg.Payload, &sb))
		return sb
	}
}

func setup(t *testing.T) (*Hub, *rows, string) {
	t.Helper()
	store := &rows{byID: map[string]*model.Scoreboard{}}
	store.put(model.Scoreboard{ID: "doc-1", Title: "Semis", Version: 1, ControlToken: "secret"})

	hub := NewHub(store)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ServeWs(hub, w, r, permission.Caller{UserID: r.URL.Query().Get("user_id")})
	}))
	t.Cleanup(server.Close)
	return hub, store, "ws" + strings.TrimPrefix(server.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestFeedDeliversCommittedRowsToEveryWatcher(t *testing.T) {
	hub, _, wsURL := setup(t)

	conn1 := dial(t, wsURL+"/ws?docId=doc-1&user_id=user1")
	initial := readRow(t, conn1)
	assert.Equal(t, "Semis", initial.Title)
	assert.Empty(t, initial.ControlToken, "tokens are not broadcast")

	conn2 := dial(t, wsURL+"/ws?docId=doc-1&user_id=user2")
	_ = readRow(t, conn2)

	// conn1 first sees itself alone, then both watchers.
	for _, want := range []int{1, 2} {
		presence := readMessage(t, conn1)
		assert.Equal(t, PresenceUpdateType, presence.Type)
		var p Presence
		require.NoError(t, json.Unmarshal(presence.Payload, &p))
		assert.Equal(t, want, p.Watchers)
	}

	hub.Publish(&model.Scoreboard{ID: "doc-1", Title: "Finals", Version: 2})

	assert.Equal(t, "Finals", readRow(t, conn1).Title)
	assert.Equal(t, "Finals", readRow(t, conn2).Title)
}

func TestFeedDropsStaleAndDuplicateVersions(t *testing.T) {
	hub, _, wsURL := setup(t)
	conn := dial(t, wsURL+"/ws?docId=doc-1&user_id=user1")
	_ = readRow(t, conn)

	hub.Publish(&model.Scoreboard{ID: "doc-1", Title: "v3", Version: 3})
	hub.Publish(&model.Scoreboard{ID: "doc-1", Title: "v3 again", Version: 3})
	hub.Publish(&model.Scoreboard{ID: "doc-1", Title: "v2", Version: 2})
	hub.Publish(&model.Scoreboard{ID: "doc-1", Title: "v4", Version: 4})

	assert.Equal(t, "v3", readRow(t, conn).Title)
	assert.Equal(t, "v4", readRow(t, conn).Title)
	assert.Equal(t, int64(4), hub.Version("doc-1"))
}

func TestUnknownScoreboardIsRejected(t *testing.T) {
	_, _, wsURL := setup(t)

	_, resp, err := websocket.DefaultDialer.Dial(wsURL+"/ws?docId=missing", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRemoveDocumentDisconnectsWatchers(t *testing.T) {
	hub, _, wsURL := setup(t)
	conn := dial(t, wsURL+"/ws?docId=doc-1&user_id=user1")
	_ = readRow(t, conn)

	hub.RemoveDocument("doc-1")

	conn.SetReadDeadline(time.Now().Add(time.Second))
	var err error
	for err == nil {
		_, _, err = conn.ReadMessage()
	}
	assert.True(t, websocket.IsCloseError(err, closeDeleted), "got %v", err)
	require.Eventually(t, func() bool { return hub.Version("doc-1") == 0 }, time.Second, 10*time.Millisecond)
}

func TestRelayForwardsOnlyNewerVersions(t *testing.T) {
	hub, store, wsURL := setup(t)
	relay := &Relay{Hub: hub, Loader: store}
	conn := dial(t, wsURL+"/ws?docId=doc-1&user_id=user1")
	_ = readRow(t, conn)

	relay.Handle(context.Background(), `{"id":"doc-1","version":1}`)
	relay.Handle(context.Background(), `not json`)

	store.put(model.Scoreboard{ID: "doc-1", Title: "From another instance", Version: 2})
	relay.Handle(context.Background(), `{"id":"doc-1","version":2}`)

	assert.Equal(t, "From another instance", readRow(t, conn).Title)
}

func TestPublishAfterStopDoesNotBlock(t *testing.T) {
	hub := NewHub(nil)
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(stopped)
	}()
	cancel()
	<-stopped

	published := make(chan struct{})
	go func() {
		for v := int64(1); v <= 100; v++ {
			hub.Publish(&model.Scoreboard{ID: "doc-1", Version: v})
		}
		close(published)
	}()
	select {
	case <-published:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked after the hub stopped")
	}
	assert.False(t, hub.register(&Client{DocID: "doc-1"}))
}
