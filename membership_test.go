package main

import (
	"slices"
	"testing"
)

func TestMembershipIndex_AddRemove(t *testing.T) {
	m := NewMembershipIndex()
	m.Add("R1", "a")
	m.Add("R1", "b")
	m.Add("R1", "a")

	if got := m.Members("R1"); !slices.Equal(got, []string{"a", "b"}) {
		t.Errorf("Members = %v, want [a b]", got)
	}

	if !m.Remove("R1", "a") {
		t.Error("Remove(a) = false")
	}
	if m.Remove("R1", "a") {
		t.Error("second Remove(a) = true")
	}
	if m.Remove("R2", "b") {
		t.Error("Remove from unknown room = true")
	}

	m.Remove("R1", "b")
	if _, ok := m.members["R1"]; ok {
		t.Error("empty entry was not dropped")
	}
}

func TestMembershipIndex_MembersIsCopy(t *testing.T) {
	m := NewMembershipIndex()
	m.Add("R1", "a")

	got := m.Members("R1")
	got[0] = "mutated"

	if m.Members("R1")[0] != "a" {
		t.Error("Members returned the internal slice")
	}
	if m.Members("nope") != nil {
		t.Error("unknown room should have no members")
	}
}

func TestMembershipIndex_RoomsOf(t *testing.T) {
	m := NewMembershipIndex()
	m.Add("R1", "a")
	m.Add("R2", "a")
	m.Add("R2", "b")
	m.Add("R3", "c")

	got := m.RoomsOf("a")
	slices.Sort(got)
	if !slices.Equal(got, []string{"R1", "R2"}) {
		t.Errorf("RoomsOf(a) = %v, want [R1 R2]", got)
	}

	m.Drop("R2")
	if got := m.RoomsOf("b"); len(got) != 0 {
		t.Errorf("RoomsOf(b) after Drop = %v", got)
	}
}
