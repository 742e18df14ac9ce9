package main

import (
	"strings"

	"github.com/google/uuid"
)

// IDGenerator returns a fresh opaque room identifier.
type IDGenerator func() string

// shortRoomID returns an 8 character, upper-cased room code taken from a
// random UUID, e.g. "3F2A9C1B".
func shortRoomID() string {
	return strings.ToUpper(uuid.NewString()[:8])
}
