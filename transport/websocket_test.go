package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func echoServer(t *testing.T) *httptest.Server {
	upgrader := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()
		for {
			typ, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if string(msg) == "bye" {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, ""), time.Now().Add(time.Second))
				return
			}
			if err := conn.WriteMessage(typ, msg); err != nil {
				return
			}
		}
	}))
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestWebsocketRoundTripPreservesOrder(t *testing.T) {
	srv := echoServer(t)
	defer srv.Close()

	conn, err := WebsocketDialer{Name: "test"}.Dial(context.Background(), wsURL(srv))
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	if conn.ID() == "" {
		t.Fatalf("connection id must be set")
	}

	for _, frame := range []string{"one", "two", "three"} {
		if err := conn.Send(context.Background(), []byte(frame)); err != nil {
			t.Fatalf("send: %v", err)
		}
	}
	for _, want := range []string{"one", "two", "three"} {
		select {
		case got := <-conn.Messages():
			if string(got) != want {
				t.Fatalf("got %s, want %s", got, want)
			}
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for %s", want)
		}
	}
}

func TestWebsocketPeerCloseEndsMessages(t *testing.T) {
	srv := echoServer(t)
	defer srv.Close()

	conn, err := WebsocketDialer{Name: "test"}.Dial(context.Background(), wsURL(srv))
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	if err := conn.Send(context.Background(), []byte("bye")); err != nil {
		t.Fatalf("send: %v", err)
	}
	select {
	case _, ok := <-conn.Messages():
		if ok {
			t.Fatalf("expected closed message channel")
		}
	case <-time.After(time.Second):
		t.Fatalf("read side did not end")
	}
	if conn.Err() == nil {
		t.Fatalf("peer close must surface an error")
	}
}

func TestWebsocketSendAfterClose(t *testing.T) {
	srv := echoServer(t)
	defer srv.Close()

	conn, err := WebsocketDialer{}.Dial(context.Background(), wsURL(srv))
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	_ = conn.Close()
	if err := conn.Send(context.Background(), []byte("x")); err == nil {
		t.Fatalf("send after close must fail")
	}
}

func TestWebsocketDialFailure(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if _, err := (WebsocketDialer{}).Dial(ctx, "ws://127.0.0.1:1/ws"); err == nil {
		t.Fatalf("expected dial error")
	}
}
