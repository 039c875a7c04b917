package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"papanskor/internal/permission"
	"papanskor/internal/scoreboard/model"
)

func TestHTTPStoreSave(t *testing.T) {
	var gotQuery, gotAuth string
	var gotPatch model.Patch
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/api/scoreboards/update", r.URL.Path)
		gotQuery = r.URL.RawQuery
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotPatch))
		json.NewEncoder(w).Encode(model.Scoreboard{ID: "doc-1", SideAScore: 3, Version: 5})
	}))
	defer server.Close()

	store := NewHTTPStore(server.URL+"/", "jwt", "ctl")
	row, err := store.Save(context.Background(), "doc-1", model.Patch{SideAScore: model.Ptr(3)})
	require.NoError(t, err)

	assert.Equal(t, int64(5), row.Version)
	assert.Equal(t, 3, row.SideAScore)
	assert.Equal(t, "docId=doc-1&share=ctl", gotQuery)
	assert.Equal(t, "Bearer jwt", gotAuth)
	assert.Equal(t, []model.Field{model.FieldSideAScore}, gotPatch.Fields())
}

func TestHTTPStoreMapsRejections(t *testing.T) {
	status := http.StatusForbidden
	hint := ""
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hint != "" {
			w.Header().Set("X-Required-Action", hint)
		}
		http.Error(w, "nope", status)
	}))
	defer server.Close()
	store := NewHTTPStore(server.URL, "", "")

	_, err := store.Save(context.Background(), "doc-1", model.Patch{Title: model.Ptr("x")})
	assert.ErrorIs(t, err, permission.ErrReadOnly)

	hint = "sign-in"
	_, err = store.Save(context.Background(), "doc-1", model.Patch{Title: model.Ptr("x")})
	assert.ErrorIs(t, err, permission.ErrSignInRequired)

	status, hint = http.StatusNotFound, ""
	_, err = store.Save(context.Background(), "doc-1", model.Patch{Title: model.Ptr("x")})
	assert.ErrorIs(t, err, ErrNotFound)

	status = http.StatusInternalServerError
	_, err = store.Save(context.Background(), "doc-1", model.Patch{Title: model.Ptr("x")})
	assert.ErrorContains(t, err, "status 500")
}

func feedServer(t *testing.T, handle func(r *http.Request, conn *websocket.Conn)) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("docId") == "missing" {
			http.Error(w, "Scoreboard not found", http.StatusNotFound)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		handle(r, conn)
	}))
	t.Cleanup(server.Close)
	return server
}

func send(t *testing.T, conn *websocket.Conn, typ string, payload any) {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(message{Type: typ, DocID: "doc-1", Payload: raw}))
}

func TestWSFeedDeliversSnapshots(t *testing.T) {
	queries := make(chan string, 1)
	server := feedServer(t, func(r *http.Request, conn *websocket.Conn) {
		queries <- r.URL.RawQuery
		send(t, conn, "UPDATE", model.Scoreboard{ID: "doc-1", Title: "Final", Version: 2})
		send(t, conn, "PRESENCE_UPDATE", map[string]int{"watchers": 3})
		send(t, conn, "UPDATE", model.Scoreboard{ID: "doc-1", Title: "Final", SideBScore: 1, Version: 3})
		conn.ReadMessage() // hold until the client goes away
	})

	patches := make(chan model.Patch, 4)
	watchers := make(chan int, 1)
	feed := NewWSFeed(server.URL, "jwt", "")
	feed.OnPresence = func(n int) { watchers <- n }

	sub, err := feed.Subscribe(context.Background(), "doc-1", func(p model.Patch) { patches <- p })
	require.NoError(t, err)
	assert.Equal(t, "docId=doc-1&token=jwt", <-queries)

	for _, want := range []int64{2, 3} {
		select {
		case p := <-patches:
			require.NotNil(t, p.Version)
			assert.Equal(t, want, *p.Version)
			assert.Equal(t, "Final", *p.Title)
		case <-time.After(time.Second):
			t.Fatal("snapshot not delivered")
		}
	}
	assert.Equal(t, 3, <-watchers)

	require.NoError(t, sub.Close())
	assert.NoError(t, sub.Close(), "closing twice is harmless")
}

func TestWSFeedReportsDeletion(t *testing.T) {
	server := feedServer(t, func(r *http.Request, conn *websocket.Conn) {
		msg := websocket.FormatCloseMessage(closeDeleted, "DELETED")
		conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	})

	deleted := make(chan string, 1)
	feed := NewWSFeed(server.URL, "", "view-tok")
	feed.OnDeleted = func(id string) { deleted <- id }

	sub, err := feed.Subscribe(context.Background(), "doc-1", func(model.Patch) {})
	require.NoError(t, err)
	defer sub.Close()

	select {
	case id := <-deleted:
		assert.Equal(t, "doc-1", id)
	case <-time.After(time.Second):
		t.Fatal("deletion not reported")
	}
}

func TestWSFeedDialRejected(t *testing.T) {
	server := feedServer(t, func(*http.Request, *websocket.Conn) {})

	_, err := NewWSFeed(server.URL, "", "").Subscribe(context.Background(), "missing", func(model.Patch) {})
	assert.ErrorIs(t, err, ErrNotFound)
}
