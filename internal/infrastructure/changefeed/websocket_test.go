package changefeed

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

func newFeedServer(t *testing.T, serve func(*websocket.Conn)) string {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()
		serve(ws)
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestSubscribeDeliversInsertEvents(t *testing.T) {
	gotSubscribe := make(chan subscribeFrame, 1)
	url := newFeedServer(t, func(ws *websocket.Conn) {
		var frame subscribeFrame
		if err := ws.ReadJSON(&frame); err != nil {
			return
		}
		gotSubscribe <- frame

		_ = ws.WriteJSON(eventFrame{Type: "insert", Table: "messages", Record: json.RawMessage(`{"id":"m1"}`)})
		_ = ws.WriteJSON(eventFrame{Type: "ack", Table: "messages"})
		_ = ws.WriteJSON(eventFrame{Type: "insert", Table: "messages", Record: json.RawMessage(`{"id":"m2"}`)})

		// hold the connection open until the client goes away
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	})

	d := NewDialer(url, 10*time.Millisecond, 50*time.Millisecond, nil)
	sub, err := d.SubscribeToInserts(context.Background(), "messages", "conversation_id=eq.c1")
	require.NoError(t, err)
	defer sub.Close()

	select {
	case frame := <-gotSubscribe:
		require.Equal(t, "subscribe", frame.Type)
		require.Equal(t, "INSERT", frame.Event)
		require.Equal(t, "messages", frame.Table)
		require.Equal(t, "conversation_id=eq.c1", frame.Filter)
	case <-time.After(2 * time.Second):
		t.Fatal("server never received subscribe frame")
	}

	var ids []string
	for len(ids) < 2 {
		select {
		case ev := <-sub.Events():
			var rec struct {
				ID string `json:"id"`
			}
			require.NoError(t, json.Unmarshal(ev.Record, &rec))
			ids = append(ids, rec.ID)
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for events, got %v", ids)
		}
	}
	require.Equal(t, []string{"m1", "m2"}, ids)
}

func TestSubscribeCloseEndsStream(t *testing.T) {
	url := newFeedServer(t, func(ws *websocket.Conn) {
		if err := ws.ReadJSON(new(subscribeFrame)); err != nil {
			return
		}
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	})

	d := NewDialer(url, 10*time.Millisecond, 50*time.Millisecond, nil)
	sub, err := d.SubscribeToInserts(context.Background(), "messages", "")
	require.NoError(t, err)

	sub.Close()

	select {
	case _, open := <-sub.Events():
		require.False(t, open, "expected events channel to close")
	case <-time.After(2 * time.Second):
		t.Fatal("events channel never closed after Close")
	}
}

func TestSubscribeInitialDialFailure(t *testing.T) {
	d := NewDialer("ws://127.0.0.1:1/realtime", 10*time.Millisecond, 50*time.Millisecond, nil)
	_, err := d.SubscribeToInserts(context.Background(), "messages", "")
	require.Error(t, err)
}
