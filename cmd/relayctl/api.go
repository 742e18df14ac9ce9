package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

var errRoomNotFound = errors.New("room not found")

type roomInfo struct {
	ID              string    `json:"id"`
	Participants    []string  `json:"participants"`
	CreatedAt       time.Time `json:"created_at"`
	MaxParticipants int       `json:"max_participants"`
}

// apiClient speaks the relay's HTTP room API.
type apiClient struct {
	base string
	http *http.Client
}

func newAPIClient(base string) *apiClient {
	return &apiClient{
		base: strings.TrimRight(base, "/"),
		http: &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *apiClient) CreateRoom(maxParticipants int) (roomInfo, error) {
	var body []byte
	if maxParticipants > 0 {
		body, _ = json.Marshal(map[string]int{"max_participants": maxParticipants})
	}

	var resp struct {
		RoomID string   `json:"room_id"`
		Room   roomInfo `json:"room"`
		Error  string   `json:"error"`
	}
	if err := c.do(http.MethodPost, "/api/rooms", body, &resp); err != nil {
		return roomInfo{}, err
	}
	return resp.Room, nil
}

func (c *apiClient) GetRoom(id string) (roomInfo, error) {
	var resp struct {
		Room  *roomInfo `json:"room"`
		Error string    `json:"error"`
	}
	if err := c.do(http.MethodGet, "/api/rooms/"+url.PathEscape(id), nil, &resp); err != nil {
		return roomInfo{}, err
	}
	if resp.Room == nil {
		return roomInfo{}, fmt.Errorf("%w: %s", errRoomNotFound, id)
	}
	return *resp.Room, nil
}

func (c *apiClient) ListRooms() ([]string, error) {
	var resp struct {
		Rooms []string `json:"rooms"`
	}
	if err := c.do(http.MethodGet, "/api/rooms", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Rooms, nil
}

// wsURL maps the API base onto the websocket endpoint for clientID.
func (c *apiClient) wsURL(clientID string) (string, error) {
	u, err := url.Parse(c.base)
	if err != nil {
		return "", fmt.Errorf("parse server url: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	// Path is the unescaped form; String escapes it.
	u.Path = strings.TrimRight(u.Path, "/") + "/ws/" + clientID
	u.RawPath = ""
	return u.String(), nil
}

func (c *apiClient) do(method, path string, body []byte, out any) error {
	req, err := http.NewRequest(method, c.base+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var apiErr struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		if apiErr.Error == "" {
			apiErr.Error = resp.Status
		}
		return fmt.Errorf("%s %s: %s", method, path, apiErr.Error)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}
