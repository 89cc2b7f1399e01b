package websocket

import (
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, hub *Hub, fileID string) *Client {
	t.Helper()
	conn := NewMockConnection()
	return NewClient(hub, conn, fileID, Options{}, slog.Default())
}

// drain pops one message from the client's send channel, failing the
// test if none arrives.
func drain(t *testing.T, c *Client) Event {
	t.Helper()
	select {
	case data := <-c.send:
		var ev Event
		require.NoError(t, json.Unmarshal(data, &ev))
		return ev
	case <-time.After(time.Second):
		t.Fatal("no message on send channel")
		return Event{}
	}
}

func TestHubSubscribeSendsAck(t *testing.T) {
	hub := NewHub(slog.Default())
	client := newTestClient(t, hub, "file-1")

	hub.Subscribe("file-1", client)

	ev := drain(t, client)
	assert.Equal(t, TypeConnectionEstablished, ev.Type)
	assert.Equal(t, "file-1", ev.FileID)
	assert.NotEmpty(t, ev.Timestamp)
	assert.Equal(t, 1, hub.SubscriberCount("file-1"))
}

func TestHubSubscribeIdempotent(t *testing.T) {
	hub := NewHub(slog.Default())
	client := newTestClient(t, hub, "file-1")

	hub.Subscribe("file-1", client)
	hub.Subscribe("file-1", client)

	assert.Equal(t, 1, hub.SubscriberCount("file-1"))
	assert.Equal(t, 1, hub.SubjectCount())
}

func TestHubUnsubscribeRemovesEmptySubject(t *testing.T) {
	hub := NewHub(slog.Default())
	client := newTestClient(t, hub, "file-1")
	hub.Subscribe("file-1", client)

	hub.Unsubscribe("file-1", client)

	assert.Equal(t, 0, hub.SubscriberCount("file-1"))
	assert.Equal(t, 0, hub.SubjectCount())

	// Repeated unsubscribe must be harmless
	hub.Unsubscribe("file-1", client)
	assert.Equal(t, 0, hub.SubjectCount())
}

func TestHubSendNoSubscribersIsNoOp(t *testing.T) {
	hub := NewHub(slog.Default())

	// Must not panic or block
	hub.Send("missing", StatusUpdate("missing", "processing", "started", 0, nil))
}

func TestHubSendRoutesBySubject(t *testing.T) {
	hub := NewHub(slog.Default())
	a := newTestClient(t, hub, "file-a")
	b := newTestClient(t, hub, "file-b")
	hub.Subscribe("file-a", a)
	hub.Subscribe("file-b", b)
	drain(t, a)
	drain(t, b)

	hub.Send("file-a", StatusUpdate("file-a", "processing", "started", 0, nil))

	ev := drain(t, a)
	assert.Equal(t, TypeStatusUpdate, ev.Type)
	assert.Equal(t, "file-a", ev.FileID)
	assert.Equal(t, "processing", ev.Status)

	// file-b's subscriber must see nothing
	select {
	case <-b.send:
		t.Fatal("event leaked to another subject")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHubSendFanOut(t *testing.T) {
	hub := NewHub(slog.Default())
	a := newTestClient(t, hub, "file-1")
	b := newTestClient(t, hub, "file-1")
	hub.Subscribe("file-1", a)
	hub.Subscribe("file-1", b)
	drain(t, a)
	drain(t, b)

	hub.Send("file-1", StatusUpdate("file-1", "completed", "done", 100, nil))

	assert.Equal(t, TypeStatusUpdate, drain(t, a).Type)
	assert.Equal(t, TypeStatusUpdate, drain(t, b).Type)
}

func TestHubSendDropsFullSubscriberButDeliversToRest(t *testing.T) {
	hub := NewHub(slog.Default())
	full := newTestClient(t, hub, "file-1")
	healthy := newTestClient(t, hub, "file-1")
	hub.Subscribe("file-1", full)
	hub.Subscribe("file-1", healthy)
	drain(t, full)
	drain(t, healthy)

	// Saturate one subscriber's buffer so the next delivery fails
	for i := 0; i < cap(full.send); i++ {
		full.send <- []byte("{}")
	}

	hub.Send("file-1", StatusUpdate("file-1", "processing", "step", 50, nil))

	// Healthy subscriber still got the event
	ev := drain(t, healthy)
	assert.Equal(t, TypeStatusUpdate, ev.Type)

	// The saturated subscriber was dropped and its channel closed
	assert.Equal(t, 1, hub.SubscriberCount("file-1"))

	for i := 0; i < cap(full.send); i++ {
		<-full.send
	}
	_, open := <-full.send
	assert.False(t, open, "dropped subscriber's send channel should be closed")
}

func TestHubSendToDroppedClientDoesNotPanic(t *testing.T) {
	hub := NewHub(slog.Default())
	client := newTestClient(t, hub, "file-1")
	hub.Subscribe("file-1", client)
	drain(t, client)

	// Saturate the buffer so the next broadcast drops this subscriber
	for i := 0; i < cap(client.send); i++ {
		client.send <- []byte("{}")
	}
	hub.Send("file-1", StatusUpdate("file-1", "processing", "step", 50, nil))
	require.Equal(t, 0, hub.SubscriberCount("file-1"))

	// A ping reply racing the drop must be discarded, not crash the
	// process with a send on the closed channel
	hub.SendTo(client, Pong("file-1"))
	hub.Send("file-1", StatusUpdate("file-1", "processing", "step", 60, nil))

	// Nothing was delivered past the drop
	for i := 0; i < cap(client.send); i++ {
		<-client.send
	}
	_, open := <-client.send
	assert.False(t, open)
}

func TestHubSendToAfterCloseDoesNotPanic(t *testing.T) {
	hub := NewHub(slog.Default())
	client := newTestClient(t, hub, "file-1")
	hub.Subscribe("file-1", client)
	drain(t, client)

	hub.Close()

	hub.SendTo(client, Pong("file-1"))
	hub.Send("file-1", StatusUpdate("file-1", "processing", "step", 10, nil))

	_, open := <-client.send
	assert.False(t, open)
}

func TestHubConcurrentSendAndDropIsSafe(t *testing.T) {
	hub := NewHub(slog.Default())
	client := newTestClient(t, hub, "file-1")
	hub.Subscribe("file-1", client)
	drain(t, client)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 100; i++ {
			hub.SendTo(client, Pong("file-1"))
		}
	}()
	go func() {
		for range client.send {
		}
	}()

	hub.dropClient("file-1", client)
	<-done
	assert.Equal(t, 0, hub.SubscriberCount("file-1"))
}

func TestHubSendToDeliversDirectly(t *testing.T) {
	hub := NewHub(slog.Default())
	client := newTestClient(t, hub, "file-1")

	hub.SendTo(client, Pong("file-1"))

	ev := drain(t, client)
	assert.Equal(t, TypePong, ev.Type)
	assert.Equal(t, "file-1", ev.FileID)
}

func TestHubClose(t *testing.T) {
	hub := NewHub(slog.Default())
	a := newTestClient(t, hub, "file-1")
	b := newTestClient(t, hub, "file-2")
	hub.Subscribe("file-1", a)
	hub.Subscribe("file-2", b)
	drain(t, a)
	drain(t, b)

	hub.Close()

	assert.Equal(t, 0, hub.SubjectCount())
	_, open := <-a.send
	assert.False(t, open)
	_, open = <-b.send
	assert.False(t, open)
}
