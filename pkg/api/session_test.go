package api

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func dialSession(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	wsURL := strings.Replace(url, "http://", "ws://", 1) + "/api/session"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dialing session: %v", err)
	}
	t.Cleanup(func() {
		if err := conn.Close(); err != nil {
			t.Logf("closing session: %v", err)
		}
	})
	return conn
}

func TestSessionRoundTrip(t *testing.T) {
	ts, _ := testServer(t)
	conn := dialSession(t, ts.URL)

	update := Request{
		Action:     "updatePlace",
		PageData:   json.RawMessage(`{"url": "https://ws.example.com", "title": "WS"}`),
		Options:    json.RawMessage(`{"isNewVisit": true}`),
		CallbackID: "ws-1",
	}
	if err := conn.WriteJSON(update); err != nil {
		t.Fatalf("write: %v", err)
	}

	if err := conn.SetReadDeadline(time.Now().Add(5 * time.Second)); err != nil {
		t.Fatalf("read deadline: %v", err)
	}
	var ack Response
	if err := conn.ReadJSON(&ack); err != nil {
		t.Fatalf("read: %v", err)
	}
	if ack.CallbackID != "ws-1" {
		t.Errorf("callbackId = %q", ack.CallbackID)
	}

	get := Request{
		Action:     "getPlace",
		PageData:   json.RawMessage(`{"url": "https://ws.example.com"}`),
		CallbackID: "ws-2",
	}
	if err := conn.WriteJSON(get); err != nil {
		t.Fatalf("write: %v", err)
	}
	var got Response
	if err := conn.ReadJSON(&got); err != nil {
		t.Fatalf("read: %v", err)
	}
	if got.CallbackID != "ws-2" {
		t.Errorf("callbackId = %q", got.CallbackID)
	}
	place, ok := got.Result.(map[string]interface{})
	if !ok {
		t.Fatalf("unexpected result shape %T", got.Result)
	}
	if place["title"] != "WS" {
		t.Errorf("title = %v", place["title"])
	}
}

func TestSessionUnknownActionDropsFrame(t *testing.T) {
	ts, _ := testServer(t)
	conn := dialSession(t, ts.URL)

	// An unrecognized action produces no response frame; the next valid
	// request's response must be the first frame read.
	bad := Request{Action: "bogus", CallbackID: "ws-bad"}
	if err := conn.WriteJSON(bad); err != nil {
		t.Fatalf("write: %v", err)
	}
	good := Request{Action: "getAllPlaces", CallbackID: "ws-good"}
	if err := conn.WriteJSON(good); err != nil {
		t.Fatalf("write: %v", err)
	}

	if err := conn.SetReadDeadline(time.Now().Add(5 * time.Second)); err != nil {
		t.Fatalf("read deadline: %v", err)
	}
	var resp Response
	if err := conn.ReadJSON(&resp); err != nil {
		t.Fatalf("read: %v", err)
	}
	if resp.CallbackID != "ws-good" {
		t.Errorf("expected the valid request's frame first, got %q", resp.CallbackID)
	}
}
