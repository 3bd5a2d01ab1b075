package network

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"lanrace/protocol"
)

func newTestSurface(t *testing.T) (*httptest.Server, *WSListener) {
	t.Helper()
	ws := NewWSListener("test")
	srv := httptest.NewServer(NewHTTPHandler(ws, func() RoomStatus {
		return RoomStatus{RoomID: "ROOM42", RoomName: "Test", Port: 5000, Phase: "map_select", Players: 1}
	}))
	t.Cleanup(func() {
		_ = ws.Close()
		srv.Close()
	})
	return srv, ws
}

func TestHealthAndRoomEndpoints(t *testing.T) {
	srv, _ := newTestSurface(t)

	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || string(body) != "OK" {
		t.Fatalf("/health = %d %q", resp.StatusCode, body)
	}

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/room", nil)
	req.Header.Set("Origin", "http://example.test")
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET /room: %v", err)
	}
	defer resp.Body.Close()
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("Access-Control-Allow-Origin = %q, want *", got)
	}
	var st RoomStatus
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		t.Fatalf("decode /room: %v", err)
	}
	if st.RoomID != "ROOM42" || st.Players != 1 {
		t.Fatalf("/room = %+v", st)
	}
}

func TestWebSocketConnCarriesMessages(t *testing.T) {
	srv, ws := newTestSurface(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	accepted := make(chan Conn, 1)
	go func() {
		c, err := ws.Accept(ctx)
		if err != nil {
			t.Errorf("Accept: %v", err)
			return
		}
		accepted <- c
	}()

	client, err := DialWS(ctx, url)
	if err != nil {
		t.Fatalf("DialWS: %v", err)
	}
	defer client.Close()

	var host Conn
	select {
	case host = <-accepted:
	case <-ctx.Done():
		t.Fatalf("websocket peer not accepted")
	}
	defer host.Close()

	if err := Send(host, protocol.MapSelect{Map: 3, Start: true}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	line, err := client.ReadLine()
	if err != nil {
		t.Fatalf("ReadLine: %v", err)
	}
	msg, err := protocol.Decode(line)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if ms, ok := msg.(protocol.MapSelect); !ok || ms.Map != 3 || !ms.Start {
		t.Fatalf("got %+v", msg)
	}
}

func TestWSListenerCloseUnblocksAccept(t *testing.T) {
	ws := NewWSListener("test")
	_ = ws.Close()
	if _, err := ws.Accept(context.Background()); err == nil {
		t.Fatalf("Accept on closed listener returned no error")
	}
}
