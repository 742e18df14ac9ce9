package main

import "slices"

// MembershipIndex maps a room to the clients that receive its broadcasts.
// An entry must always mirror the room's participant list; the Hub updates
// both in the same critical section. Not safe for concurrent use.
type MembershipIndex struct {
	members map[string][]string
}

func NewMembershipIndex() *MembershipIndex {
	return &MembershipIndex{members: make(map[string][]string)}
}

func (m *MembershipIndex) Add(roomID, clientID string) {
	if slices.Contains(m.members[roomID], clientID) {
		return
	}
	m.members[roomID] = append(m.members[roomID], clientID)
}

// Remove reports whether clientID was a member. Empty entries are dropped.
func (m *MembershipIndex) Remove(roomID, clientID string) bool {
	list := m.members[roomID]
	i := slices.Index(list, clientID)
	if i < 0 {
		return false
	}
	list = slices.Delete(list, i, i+1)
	if len(list) == 0 {
		delete(m.members, roomID)
	} else {
		m.members[roomID] = list
	}
	return true
}

// Members returns a copy of the fan-out list for roomID.
func (m *MembershipIndex) Members(roomID string) []string {
	return slices.Clone(m.members[roomID])
}

// RoomsOf returns every room that lists clientID.
func (m *MembershipIndex) RoomsOf(clientID string) []string {
	var rooms []string
	for roomID, list := range m.members {
		if slices.Contains(list, clientID) {
			rooms = append(rooms, roomID)
		}
	}
	return rooms
}

func (m *MembershipIndex) Drop(roomID string) {
	delete(m.members, roomID)
}
