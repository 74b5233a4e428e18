package events

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBus_DeliversOnlyMatchingType(t *testing.T) {
	bus := NewBus(8, nil)
	defer bus.Close()

	got := make(chan Event, 4)
	unsub := bus.Subscribe(WorkOrderAssigned, func(e Event) { got <- e })
	defer unsub()

	bus.Publish(Event{Type: WorkOrderUpdated})
	bus.Publish(Event{Type: WorkOrderAssigned, Data: []byte(`{"work_order_id":"wo-1"}`)})

	select {
	case e := <-got:
		assert.Equal(t, WorkOrderAssigned, e.Type)
		assert.False(t, e.Timestamp.IsZero())
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
	select {
	case e := <-got:
		t.Fatalf("unexpected second event %+v", e)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBus_UnsubscribeStopsDelivery(t *testing.T) {
	bus := NewBus(8, nil)
	defer bus.Close()

	var mu sync.Mutex
	n := 0
	unsub := bus.Subscribe(WorkOrderUpdated, func(Event) {
		mu.Lock()
		n++
		mu.Unlock()
	})
	unsub()
	unsub() // idempotent

	bus.Publish(Event{Type: WorkOrderUpdated})
	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 0, n)
}

func TestBus_SubscriberPanicDoesNotKillDelivery(t *testing.T) {
	bus := NewBus(8, nil)
	defer bus.Close()

	got := make(chan struct{}, 2)
	first := true
	unsub := bus.Subscribe(WorkOrderUpdated, func(Event) {
		if first {
			first = false
			panic("boom")
		}
		got <- struct{}{}
	})
	defer unsub()

	bus.Publish(Event{Type: WorkOrderUpdated})
	bus.Publish(Event{Type: WorkOrderUpdated})

	select {
	case <-got:
	case <-time.After(time.Second):
		t.Fatal("second event was not delivered after panic")
	}
}

func TestDecodeEvent(t *testing.T) {
	ev, err := DecodeEvent([]byte(`{"type":"work_order_updated","data":{"id":"wo-1"}}`))
	require.NoError(t, err)
	assert.Equal(t, WorkOrderUpdated, ev.Type)
	assert.JSONEq(t, `{"id":"wo-1"}`, string(ev.Data))

	_, err = DecodeEvent([]byte(`{"data":{}}`))
	require.Error(t, err)
	_, err = DecodeEvent([]byte(`not json`))
	require.Error(t, err)
}

func TestWebsocketURL(t *testing.T) {
	u, err := WebsocketURL("https://ops.example.com/api/")
	require.NoError(t, err)
	assert.Equal(t, "wss://ops.example.com/ws", u)

	u, err = WebsocketURL("http://127.0.0.1:8787/api?x=1")
	require.NoError(t, err)
	assert.Equal(t, "ws://127.0.0.1:8787/ws", u)

	_, err = WebsocketURL("ftp://example.com")
	require.Error(t, err)
}

func TestChannel_RepublishesServerEvents(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`garbage`))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"work_order_assigned","data":{"work_order_id":"wo-1"}}`))
		// Hold the connection until the client goes away.
		_, _, _ = conn.ReadMessage()
	}))
	defer srv.Close()

	ch := NewChannel(ChannelConfig{
		URL:            "ws" + strings.TrimPrefix(srv.URL, "http"),
		Token:          "tok",
		InitialBackoff: 10 * time.Millisecond,
	})

	got := make(chan Event, 1)
	unsub := ch.Subscribe(WorkOrderAssigned, func(e Event) { got <- e })
	defer unsub()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- ch.Run(ctx) }()

	select {
	case e := <-got:
		assert.Equal(t, WorkOrderAssigned, e.Type)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for websocket event")
	}
	assert.True(t, ch.Connected())

	cancel()
	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
