package main

import (
	"slices"
	"time"
)

// Room is a named group of participants with bounded membership.
type Room struct {
	ID              string    `json:"id"`
	Participants    []string  `json:"participants"`
	CreatedAt       time.Time `json:"created_at"`
	MaxParticipants int       `json:"max_participants"`
}

func (r *Room) has(clientID string) bool {
	return slices.Contains(r.Participants, clientID)
}

func (r *Room) full() bool {
	return len(r.Participants) >= r.MaxParticipants
}

func (r *Room) remove(clientID string) bool {
	i := slices.Index(r.Participants, clientID)
	if i < 0 {
		return false
	}
	r.Participants = slices.Delete(r.Participants, i, i+1)
	return true
}

// snapshot returns a copy that is safe to hand out after the lock is released.
func (r *Room) snapshot() Room {
	cp := *r
	cp.Participants = slices.Clone(r.Participants)
	if cp.Participants == nil {
		cp.Participants = []string{}
	}
	return cp
}

// RoomRegistry owns the set of live rooms. It is not safe for concurrent
// use; the Hub serializes every call under its lock.
type RoomRegistry struct {
	rooms           map[string]*Room
	defaultCapacity int
	newID           IDGenerator
	now             func() time.Time
}

func NewRoomRegistry(defaultCapacity int, newID IDGenerator) *RoomRegistry {
	if defaultCapacity <= 0 {
		defaultCapacity = defaultRoomCapacity
	}
	if newID == nil {
		newID = shortRoomID
	}
	return &RoomRegistry{
		rooms:           make(map[string]*Room),
		defaultCapacity: defaultCapacity,
		newID:           newID,
		now:             time.Now,
	}
}

// Create inserts an empty room. A non-positive capacity selects the default.
func (rr *RoomRegistry) Create(capacity int) *Room {
	if capacity <= 0 {
		capacity = rr.defaultCapacity
	}

	id := rr.newID()
	for {
		if _, taken := rr.rooms[id]; !taken {
			break
		}
		id = rr.newID()
	}

	room := &Room{
		ID:              id,
		Participants:    []string{},
		CreatedAt:       rr.now().UTC(),
		MaxParticipants: capacity,
	}
	rr.rooms[id] = room
	return room
}

func (rr *RoomRegistry) Get(id string) (*Room, bool) {
	room, ok := rr.rooms[id]
	return room, ok
}

func (rr *RoomRegistry) List() []string {
	ids := make([]string, 0, len(rr.rooms))
	for id := range rr.rooms {
		ids = append(ids, id)
	}
	return ids
}

// RemoveIfEmpty deletes the room only when it has no participants.
func (rr *RoomRegistry) RemoveIfEmpty(id string) bool {
	room, ok := rr.rooms[id]
	if !ok || len(room.Participants) > 0 {
		return false
	}
	delete(rr.rooms, id)
	return true
}

func (rr *RoomRegistry) Len() int {
	return len(rr.rooms)
}
