package remote

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Makepad-fr/tada/internal/store"
)

// listenServer sends one snapshot on every websocket, then hands the
// connection to after.
func listenServer(t *testing.T, after func(*websocket.Conn)) *httptest.Server {
	t.Helper()
	up := websocket.Upgrader{}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()
		snap := store.Snapshot{Collection: "todos", Documents: []store.Document{
			{ID: "a", Fields: store.Fields{"text": "x", "completed": false}},
		}}
		if err := ws.WriteJSON(snap); err != nil {
			return
		}
		after(ws)
	}))
	t.Cleanup(ts.Close)
	return ts
}

func subscribe(t *testing.T, ts *httptest.Server, faults chan error) (store.Unsubscribe, <-chan store.Snapshot) {
	t.Helper()
	c, err := New(ts.URL, WithTimeout(2*time.Second), WithFaultHandler(func(err error) { faults <- err }))
	require.NoError(t, err)

	snaps := make(chan store.Snapshot, 4)
	unsub, err := c.Subscribe(context.Background(), store.Query{Collection: "todos"}, func(s store.Snapshot) {
		snaps <- s
	})
	require.NoError(t, err)
	t.Cleanup(unsub)

	select {
	case s := <-snaps:
		require.Len(t, s.Documents, 1)
	case <-time.After(2 * time.Second):
		t.Fatal("no initial snapshot")
	}
	return unsub, snaps
}

func TestSubscribe_DroppedConnectionIsReported(t *testing.T) {
	ts := listenServer(t, func(ws *websocket.Conn) {
		// Drop the connection without a close frame.
		ws.UnderlyingConn().Close()
	})
	faults := make(chan error, 1)
	subscribe(t, ts, faults)

	select {
	case err := <-faults:
		assert.Contains(t, err.Error(), "subscription todos")
	case <-time.After(2 * time.Second):
		t.Fatal("dropped subscription was not reported")
	}
}

func TestSubscribe_UnsubscribeIsNotAFault(t *testing.T) {
	ts := listenServer(t, func(ws *websocket.Conn) {
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	})
	faults := make(chan error, 1)
	unsub, _ := subscribe(t, ts, faults)
	unsub()

	select {
	case err := <-faults:
		t.Fatalf("unexpected fault: %v", err)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestNew_ListenURL(t *testing.T) {
	c, err := New("https://example.com/base/")
	require.NoError(t, err)
	assert.Equal(t, "wss://example.com/base/v1/collections/todos/listen", c.listenURL("todos"))
}
