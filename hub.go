package main

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"slices"
	"sync"
	"time"
)

var (
	ErrRoomNotFound = errors.New("room not found")
	ErrRoomFull     = errors.New("room is full")
	ErrTooManyRooms = errors.New("max rooms reached")
)

// chatTimeLayout is a zone-less ISO-8601 timestamp in UTC.
const chatTimeLayout = "2006-01-02T15:04:05.000000"

// Hub routes signaling messages between clients. Its lock serializes every
// mutation of the room registry and the membership index; sends happen only
// after the lock is released, on a copied member list.
type Hub struct {
	cfg *Config

	mu      sync.Mutex
	rooms   *RoomRegistry
	members *MembershipIndex
	conns   *ConnectionRegistry

	now func() time.Time
}

func NewHub(cfg *Config) *Hub {
	return newHub(cfg, nil)
}

func newHub(cfg *Config, newID IDGenerator) *Hub {
	return &Hub{
		cfg:     cfg,
		rooms:   NewRoomRegistry(cfg.DefaultRoomCapacity, newID),
		members: NewMembershipIndex(),
		conns:   NewConnectionRegistry(),
		now:     time.Now,
	}
}

// Run blocks until ctx is cancelled, then closes every client transport.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()
	h.conns.CloseAll()
}

// CreateRoom adds an empty room. A non-positive capacity selects the default.
func (h *Hub) CreateRoom(capacity int) (Room, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.cfg.MaxRooms > 0 && h.rooms.Len() >= h.cfg.MaxRooms {
		return Room{}, ErrTooManyRooms
	}
	room := h.rooms.Create(capacity)
	roomsActive.Set(float64(h.rooms.Len()))
	log.Printf("room %s created (max_participants=%d)", room.ID, room.MaxParticipants)
	return room.snapshot(), nil
}

func (h *Hub) GetRoom(id string) (Room, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	room, ok := h.rooms.Get(id)
	if !ok {
		return Room{}, false
	}
	return room.snapshot(), true
}

func (h *Hub) ListRooms() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.rooms.List()
}

func (h *Hub) RoomCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.rooms.Len()
}

func (h *Hub) ConnectionCount() int {
	return h.conns.Len()
}

// Connect registers the transport for clientID.
func (h *Hub) Connect(clientID string, conn Conn) {
	h.mu.Lock()
	h.conns.Register(clientID, conn)
	h.mu.Unlock()
	connectionsActive.Set(float64(h.conns.Len()))
}

// HandleMessage decodes one frame from clientID and dispatches it. Frames
// that cannot be decoded are logged and dropped.
func (h *Hub) HandleMessage(clientID string, data []byte) {
	msg, err := DecodeInbound(data)
	if err != nil {
		reason := "malformed"
		if errors.Is(err, ErrUnknownType) {
			reason = "unknown_type"
		}
		messagesDropped.WithLabelValues(reason).Inc()
		log.Printf("dropping message from %s: %v", clientID, err)
		return
	}
	h.Dispatch(clientID, msg)
}

func (h *Hub) Dispatch(clientID string, msg Inbound) {
	switch m := msg.(type) {
	case JoinRoom:
		messagesReceived.WithLabelValues(TypeJoinRoom).Inc()
		if err := h.Join(clientID, m.RoomID, m.Username); err != nil {
			h.replyError(clientID, err)
		}
	case LeaveRoom:
		messagesReceived.WithLabelValues(TypeLeaveRoom).Inc()
		h.Leave(clientID, m.RoomID)
	case ChatMessage:
		messagesReceived.WithLabelValues(TypeChatMessage).Inc()
		h.Chat(clientID, m.RoomID, m.Text, m.Username)
	case Relay:
		messagesReceived.WithLabelValues(m.Kind).Inc()
		if err := h.Relay(clientID, m); err != nil {
			log.Printf("%s from %s to %s dropped: %v", m.Kind, clientID, m.Target, err)
		}
	}
}

// Join adds clientID to roomID and notifies the room. Joining a room the
// client is already in does nothing and sends nothing.
func (h *Hub) Join(clientID, roomID, username string) error {
	if username == "" {
		username = defaultUsername(clientID)
	}

	h.mu.Lock()
	room, ok := h.rooms.Get(roomID)
	if !ok {
		h.mu.Unlock()
		log.Printf("%s (%s) join failed: room %s not found", username, clientID, roomID)
		return ErrRoomNotFound
	}
	if room.full() {
		h.mu.Unlock()
		log.Printf("%s (%s) join failed: room %s is full", username, clientID, roomID)
		return ErrRoomFull
	}
	if room.has(clientID) {
		h.mu.Unlock()
		return nil
	}
	room.Participants = append(room.Participants, clientID)
	h.members.Add(roomID, clientID)
	participants := slices.Clone(room.Participants)
	fanout := h.members.Members(roomID)
	h.mu.Unlock()

	log.Printf("%s (%s) joined room %s", username, clientID, roomID)

	h.broadcast(fanout, participantJoinedMessage{
		Type:         TypeParticipantJoined,
		ClientID:     clientID,
		Username:     username,
		Participants: participants,
	})
	h.send(clientID, roomJoinedMessage{
		Type:         TypeRoomJoined,
		RoomID:       roomID,
		Participants: participants,
		Username:     username,
	})
	if len(participants) == 1 {
		h.send(clientID, roomReadyMessage{
			Type:         TypeRoomReady,
			RoomID:       roomID,
			YouAreSender: true,
		})
	}
	return nil
}

// Leave removes clientID from roomID. It reports false, and sends nothing,
// when the client was not a participant.
func (h *Hub) Leave(clientID, roomID string) bool {
	h.mu.Lock()
	remaining, ok := h.removeLocked(clientID, roomID)
	h.mu.Unlock()

	if !ok {
		return false
	}
	log.Printf("client %s left room %s", clientID, roomID)
	h.broadcast(remaining, participantLeftMessage{Type: TypeParticipantLeft, ClientID: clientID})
	return true
}

// Chat broadcasts text to every member of roomID, sender included. Messages
// from non-participants are dropped and Chat reports false.
func (h *Hub) Chat(clientID, roomID, text, username string) bool {
	if username == "" {
		username = defaultUsername(clientID)
	}

	h.mu.Lock()
	room, ok := h.rooms.Get(roomID)
	if !ok || !room.has(clientID) {
		h.mu.Unlock()
		return false
	}
	fanout := h.members.Members(roomID)
	h.mu.Unlock()

	h.broadcast(fanout, chatBroadcastMessage{
		Type:      TypeChatMessage,
		Message:   text,
		Username:  username,
		Timestamp: h.now().UTC().Format(chatTimeLayout),
		From:      clientID,
	})
	return true
}

// Relay forwards an offer, answer or candidate to its target, payload bytes
// untouched. Room membership of either side is not checked.
func (h *Hub) Relay(clientID string, r Relay) error {
	data, err := encodeRelay(r, clientID)
	if err != nil {
		return err
	}
	return h.conns.deliver(r.Target, data)
}

// Disconnect removes clientID from every room it is in, notifies the
// remaining members, and drops its connection.
func (h *Hub) Disconnect(clientID string) {
	h.mu.Lock()
	left := h.removeAllLocked(clientID)
	h.mu.Unlock()

	h.notifyLeft(clientID, left)
	h.conns.Unregister(clientID)
	connectionsActive.Set(float64(h.conns.Len()))
	log.Printf("client %s disconnected", clientID)
}

// DisconnectConn is Disconnect for a transport that is going away. When
// clientID has since been registered to a different transport, the newer
// session keeps its rooms and connection.
func (h *Hub) DisconnectConn(clientID string, conn Conn) {
	h.mu.Lock()
	if !h.conns.Owns(clientID, conn) {
		h.mu.Unlock()
		log.Printf("client %s: stale connection closed, newer session kept", clientID)
		return
	}
	left := h.removeAllLocked(clientID)
	h.mu.Unlock()

	h.notifyLeft(clientID, left)
	h.conns.UnregisterConn(clientID, conn)
	connectionsActive.Set(float64(h.conns.Len()))
	log.Printf("client %s disconnected", clientID)
}

// roomLeave is a pending participant_left fan-out.
type roomLeave struct {
	roomID    string
	remaining []string
}

func (h *Hub) removeAllLocked(clientID string) []roomLeave {
	var left []roomLeave
	for _, roomID := range h.members.RoomsOf(clientID) {
		if remaining, ok := h.removeLocked(clientID, roomID); ok {
			left = append(left, roomLeave{roomID: roomID, remaining: remaining})
		}
	}
	return left
}

// removeLocked drops clientID from the room and its index entry together,
// then collects the room if it became empty. h.mu must be held.
func (h *Hub) removeLocked(clientID, roomID string) ([]string, bool) {
	room, ok := h.rooms.Get(roomID)
	if !ok || !room.remove(clientID) {
		return nil, false
	}
	h.members.Remove(roomID, clientID)
	remaining := h.members.Members(roomID)

	if h.rooms.RemoveIfEmpty(roomID) {
		h.members.Drop(roomID)
		roomsActive.Set(float64(h.rooms.Len()))
		log.Printf("room %s destroyed (no participants)", roomID)
	}
	return remaining, true
}

func (h *Hub) notifyLeft(clientID string, left []roomLeave) {
	for _, l := range left {
		log.Printf("client %s left room %s", clientID, l.roomID)
		h.broadcast(l.remaining, participantLeftMessage{Type: TypeParticipantLeft, ClientID: clientID})
	}
}

// broadcast encodes msg once and offers it to each recipient. A failed
// recipient is skipped.
func (h *Hub) broadcast(recipients []string, msg any) {
	if len(recipients) == 0 {
		return
	}
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("encode broadcast: %v", err)
		return
	}
	for _, id := range recipients {
		if err := h.conns.deliver(id, data); err != nil {
			deliveryFailures.Inc()
			log.Printf("broadcast to %s failed: %v", id, err)
		}
	}
}

func (h *Hub) send(clientID string, msg any) {
	if err := h.conns.Send(clientID, msg); err != nil {
		deliveryFailures.Inc()
		log.Printf("send to %s failed: %v", clientID, err)
	}
}

func (h *Hub) replyError(clientID string, err error) {
	var text string
	switch {
	case errors.Is(err, ErrRoomNotFound):
		text = "Room not found"
	case errors.Is(err, ErrRoomFull):
		text = "Room is full"
	default:
		text = err.Error()
	}
	h.send(clientID, errorMessage{Type: TypeError, Message: text})
}

func defaultUsername(clientID string) string {
	if len(clientID) > 8 {
		clientID = clientID[:8]
	}
	return "User_" + clientID
}
