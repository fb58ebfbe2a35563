package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func snap(ids ...string) Snapshot {
	s := Snapshot{Collection: "todos"}
	for _, id := range ids {
		s.Documents = append(s.Documents, Document{ID: id, Fields: Fields{"text": id}})
	}
	return s
}

func recv(t *testing.T, ch <-chan Snapshot) Snapshot {
	t.Helper()
	select {
	case s := <-ch:
		return s
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for snapshot")
		return Snapshot{}
	}
}

func TestHub_DeliversInitialThenPublished(t *testing.T) {
	h := NewHub()
	got := make(chan Snapshot, 4)

	unsub := h.Add(context.Background(), "todos", snap("a"), func(s Snapshot) { got <- s })
	defer unsub()

	first := recv(t, got)
	require.Len(t, first.Documents, 1)
	assert.Equal(t, "a", first.Documents[0].ID)

	h.Publish(snap("a", "b"))
	second := recv(t, got)
	assert.Len(t, second.Documents, 2)
}

func TestHub_PublishIgnoresOtherCollections(t *testing.T) {
	h := NewHub()
	got := make(chan Snapshot, 4)
	unsub := h.Add(context.Background(), "todos", snap(), func(s Snapshot) { got <- s })
	defer unsub()
	recv(t, got)

	h.Publish(Snapshot{Collection: "notes"})
	select {
	case s := <-got:
		t.Fatalf("unexpected snapshot for %q", s.Collection)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHub_UnsubscribeStopsDelivery(t *testing.T) {
	h := NewHub()
	got := make(chan Snapshot, 4)
	unsub := h.Add(context.Background(), "todos", snap(), func(s Snapshot) { got <- s })
	recv(t, got)

	unsub()
	unsub()
	assert.Equal(t, 0, h.Len("todos"))

	h.Publish(snap("late"))
	select {
	case <-got:
		t.Fatal("snapshot delivered after unsubscribe")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHub_ContextCancelUnsubscribes(t *testing.T) {
	h := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	got := make(chan Snapshot, 4)
	h.Add(ctx, "todos", snap(), func(s Snapshot) { got <- s })
	recv(t, got)

	cancel()
	require.Eventually(t, func() bool { return h.Len("todos") == 0 }, time.Second, 5*time.Millisecond)
}

func TestHub_SlowListenerSeesLatest(t *testing.T) {
	h := NewHub()
	entered := make(chan struct{}, 8)
	release := make(chan struct{})
	got := make(chan Snapshot, 8)
	unsub := h.Add(context.Background(), "todos", snap(), func(s Snapshot) {
		entered <- struct{}{}
		<-release
		got <- s
	})
	defer unsub()

	// The listener is blocked on the initial snapshot; the next three
	// publishes collapse into the newest one.
	<-entered
	h.Publish(snap("1"))
	h.Publish(snap("1", "2"))
	h.Publish(snap("1", "2", "3"))
	close(release)

	recv(t, got)
	last := recv(t, got)
	assert.Len(t, last.Documents, 3)
}

func TestNewID_Unique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := NewID()
		require.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
}
