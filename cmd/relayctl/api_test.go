package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestAPIClient_WSURL(t *testing.T) {
	tests := []struct {
		base, id, want string
	}{
		{"http://localhost:8001", "abc", "ws://localhost:8001/ws/abc"},
		{"http://localhost:8001/", "abc", "ws://localhost:8001/ws/abc"},
		{"https://relay.example.com", "abc", "wss://relay.example.com/ws/abc"},
		{"https://relay.example.com/signal/", "a b", "wss://relay.example.com/signal/ws/a%20b"},
	}
	for _, tt := range tests {
		got, err := newAPIClient(tt.base).wsURL(tt.id)
		if err != nil {
			t.Errorf("wsURL(%q, %q): %v", tt.base, tt.id, err)
			continue
		}
		if got != tt.want {
			t.Errorf("wsURL(%q, %q) = %q, want %q", tt.base, tt.id, got, tt.want)
		}
	}
}

func TestAPIClient_RoomCalls(t *testing.T) {
	var gotBody map[string]int
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/rooms", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Write([]byte(`{"room_id":"AB12CD34","room":{"id":"AB12CD34","participants":[],"created_at":"2024-05-01T12:30:00Z","max_participants":2}}`))
	})
	mux.HandleFunc("GET /api/rooms", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"rooms":["AB12CD34"]}`))
	})
	mux.HandleFunc("GET /api/rooms/{id}", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("id") != "AB12CD34" {
			w.Write([]byte(`{"error":"Room not found"}`))
			return
		}
		w.Write([]byte(`{"room":{"id":"AB12CD34","participants":["a"],"created_at":"2024-05-01T12:30:00Z","max_participants":2}}`))
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()

	api := newAPIClient(ts.URL)

	room, err := api.CreateRoom(2)
	if err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}
	if room.ID != "AB12CD34" || room.MaxParticipants != 2 || gotBody["max_participants"] != 2 {
		t.Errorf("CreateRoom = %+v, sent %v", room, gotBody)
	}

	ids, err := api.ListRooms()
	if err != nil || len(ids) != 1 || ids[0] != "AB12CD34" {
		t.Errorf("ListRooms = %v, %v", ids, err)
	}

	room, err = api.GetRoom("AB12CD34")
	if err != nil || len(room.Participants) != 1 {
		t.Errorf("GetRoom = %+v, %v", room, err)
	}

	if _, err := api.GetRoom("MISSING0"); !errors.Is(err, errRoomNotFound) {
		t.Errorf("GetRoom(missing) err = %v, want errRoomNotFound", err)
	}
}

func TestAPIClient_ErrorStatus(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/rooms":
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"error":"Rate limit exceeded"}`))
		default:
			w.WriteHeader(http.StatusBadGateway)
		}
	}))
	defer ts.Close()

	api := newAPIClient(ts.URL)

	_, err := api.CreateRoom(0)
	if err == nil || !strings.Contains(err.Error(), "Rate limit exceeded") {
		t.Errorf("CreateRoom err = %v, want the server's error text", err)
	}

	_, err = api.GetRoom("AB12CD34")
	if err == nil || !strings.Contains(err.Error(), "502 Bad Gateway") {
		t.Errorf("GetRoom err = %v, want the HTTP status", err)
	}
}
