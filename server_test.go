package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func newTestServer(t *testing.T, cfg *Config) (*httptest.Server, *Hub) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	hub := NewHub(cfg)
	srv := NewServer(ctx, cfg, hub)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, hub
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return body
}

func postRoom(t *testing.T, ts *httptest.Server, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(ts.URL+"/api/rooms", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	return resp
}

func TestServer_CreateAndGetRoom(t *testing.T) {
	ts, _ := newTestServer(t, testConfig())

	resp := postRoom(t, ts, `{"max_participants":2}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	created := decodeBody(t, resp)
	roomID, _ := created["room_id"].(string)
	if len(roomID) != 8 {
		t.Fatalf("room_id = %v", created["room_id"])
	}
	room := created["room"].(map[string]any)
	if room["id"] != roomID || room["max_participants"] != float64(2) {
		t.Errorf("room = %v", room)
	}

	resp, err := http.Get(ts.URL + "/api/rooms/" + roomID)
	if err != nil {
		t.Fatal(err)
	}
	got := decodeBody(t, resp)["room"].(map[string]any)
	if got["id"] != roomID || len(got["participants"].([]any)) != 0 {
		t.Errorf("GET room = %v", got)
	}
	if _, ok := got["created_at"].(string); !ok {
		t.Errorf("created_at missing: %v", got)
	}

	resp, err = http.Get(ts.URL + "/api/rooms")
	if err != nil {
		t.Fatal(err)
	}
	list := decodeBody(t, resp)["rooms"].([]any)
	if len(list) != 1 || list[0] != roomID {
		t.Errorf("rooms = %v", list)
	}
}

func TestServer_CreateRoomDefaults(t *testing.T) {
	ts, _ := newTestServer(t, testConfig())

	for _, body := range []string{"", "{}"} {
		resp := postRoom(t, ts, body)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("body %q: status = %d", body, resp.StatusCode)
		}
		room := decodeBody(t, resp)["room"].(map[string]any)
		if room["max_participants"] != float64(5) {
			t.Errorf("body %q: max_participants = %v", body, room["max_participants"])
		}
	}
}

func TestServer_CreateRoomRejectsBadInput(t *testing.T) {
	ts, _ := newTestServer(t, testConfig())

	for _, body := range []string{`{"max_participants":0}`, `{"max_participants":-1}`, `{"max_participants":"two"}`, `{`} {
		resp := postRoom(t, ts, body)
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("body %q: status = %d, want 400", body, resp.StatusCode)
		}
	}
}

func TestServer_CreateRoomLimits(t *testing.T) {
	cfg := testConfig()
	cfg.MaxRooms = 1
	ts, _ := newTestServer(t, cfg)

	postRoom(t, ts, "").Body.Close()
	resp := postRoom(t, ts, "")
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", resp.StatusCode)
	}

	cfg = testConfig()
	cfg.RateLimitPerIP = 1
	ts, _ = newTestServer(t, cfg)

	limited := false
	for i := 0; i < 5; i++ {
		resp := postRoom(t, ts, "")
		resp.Body.Close()
		if resp.StatusCode == http.StatusTooManyRequests {
			limited = true
		}
	}
	if !limited {
		t.Error("expected a 429 after exceeding the per-IP rate")
	}
}

func TestServer_GetMissingRoom(t *testing.T) {
	ts, _ := newTestServer(t, testConfig())

	resp, err := http.Get(ts.URL + "/api/rooms/NOPE1234")
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
	if body := decodeBody(t, resp); body["error"] != "Room not found" {
		t.Errorf("body = %v", body)
	}
}

func TestServer_IndexHealthAndCORS(t *testing.T) {
	ts, _ := newTestServer(t, testConfig())

	for _, path := range []string{"/", "/api/"} {
		resp, err := http.Get(ts.URL + path)
		if err != nil {
			t.Fatal(err)
		}
		if resp.Header.Get("Access-Control-Allow-Origin") != "*" {
			t.Errorf("%s: missing CORS header", path)
		}
		if body := decodeBody(t, resp); body["message"] != serviceBanner {
			t.Errorf("%s: body = %v", path, body)
		}
	}

	resp, err := http.Get(ts.URL + "/nothing-here")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown path status = %d", resp.StatusCode)
	}

	resp, err = http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	if body := decodeBody(t, resp); body["status"] != "ok" {
		t.Errorf("health = %v", body)
	}

	req, _ := http.NewRequest(http.MethodOptions, ts.URL+"/api/rooms", nil)
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("preflight status = %d", resp.StatusCode)
	}
	if !strings.Contains(resp.Header.Get("Access-Control-Allow-Methods"), "POST") {
		t.Errorf("preflight methods = %q", resp.Header.Get("Access-Control-Allow-Methods"))
	}
}

func dialWS(t *testing.T, ts *httptest.Server, clientID string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/" + clientID
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", clientID, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readUntil(t *testing.T, conn *websocket.Conn, msgType string) map[string]any {
	t.Helper()
	for {
		_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("waiting for %s: %v", msgType, err)
		}
		var msg map[string]any
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatalf("invalid frame %s: %v", data, err)
		}
		if msg["type"] == msgType {
			return msg
		}
	}
}

func writeFrame(t *testing.T, conn *websocket.Conn, frame string) {
	t.Helper()
	if err := conn.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestServer_WebSocketSignaling(t *testing.T) {
	ts, hub := newTestServer(t, testConfig())

	resp := postRoom(t, ts, `{"max_participants":2}`)
	roomID := decodeBody(t, resp)["room_id"].(string)

	alice := dialWS(t, ts, "alice-0001")
	writeFrame(t, alice, `{"type":"join_room","room_id":"`+roomID+`","username":"alice"}`)
	readUntil(t, alice, TypeRoomJoined)
	ready := readUntil(t, alice, TypeRoomReady)
	if ready["you_are_sender"] != true {
		t.Errorf("room_ready = %v", ready)
	}

	bob := dialWS(t, ts, "bob-0002")
	writeFrame(t, bob, `{"type":"join_room","room_id":"`+roomID+`","username":"bob"}`)
	joined := readUntil(t, bob, TypeRoomJoined)
	if len(joined["participants"].([]any)) != 2 {
		t.Errorf("room_joined = %v", joined)
	}
	if msg := readUntil(t, alice, TypeParticipantJoined); msg["client_id"] != "bob-0002" {
		t.Errorf("alice saw %v", msg)
	}

	writeFrame(t, alice, `{"type":"webrtc_offer","target":"bob-0002","room_id":"`+roomID+`","offer":{"type":"offer","sdp":"v=0"}}`)
	offer := readUntil(t, bob, TypeWebRTCOffer)
	if offer["from"] != "alice-0001" || offer["offer"].(map[string]any)["sdp"] != "v=0" {
		t.Errorf("offer = %v", offer)
	}

	writeFrame(t, bob, `{"type":"chat_message","room_id":"`+roomID+`","message":"hi"}`)
	for _, conn := range []*websocket.Conn{alice, bob} {
		chat := readUntil(t, conn, TypeChatMessage)
		if chat["message"] != "hi" || chat["from"] != "bob-0002" || chat["username"] != "User_bob-0002" {
			t.Errorf("chat = %v", chat)
		}
	}

	carol := dialWS(t, ts, "carol-0003")
	writeFrame(t, carol, `{"type":"join_room","room_id":"`+roomID+`"}`)
	if msg := readUntil(t, carol, TypeError); msg["message"] != "Room is full" {
		t.Errorf("carol got %v", msg)
	}

	bob.Close()
	if msg := readUntil(t, alice, TypeParticipantLeft); msg["client_id"] != "bob-0002" {
		t.Errorf("alice saw %v", msg)
	}

	deadline := time.Now().Add(2 * time.Second)
	for hub.conns.IsConnected("bob-0002") && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if hub.conns.IsConnected("bob-0002") {
		t.Error("bob still registered after closing")
	}
}

func TestServer_WebSocketIgnoresMalformed(t *testing.T) {
	ts, _ := newTestServer(t, testConfig())

	conn := dialWS(t, ts, "client-1")
	writeFrame(t, conn, `garbage`)
	writeFrame(t, conn, `{"type":"join_room","room_id":"NOPE0000"}`)

	if msg := readUntil(t, conn, TypeError); msg["message"] != "Room not found" {
		t.Errorf("got %v", msg)
	}
}
