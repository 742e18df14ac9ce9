package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
)

var ErrNotConnected = errors.New("client not connected")

// Conn is the outbound half of a client transport. Send must not block:
// it either queues data for the single writer or returns an error.
type Conn interface {
	Send(data []byte) error
	Close()
}

// ConnectionRegistry maps client ids to their live transport.
type ConnectionRegistry struct {
	mu    sync.RWMutex
	conns map[string]Conn
}

func NewConnectionRegistry() *ConnectionRegistry {
	return &ConnectionRegistry{conns: make(map[string]Conn)}
}

// Register records conn for clientID. A previous handle is replaced
// without being closed.
func (cr *ConnectionRegistry) Register(clientID string, conn Conn) {
	cr.mu.Lock()
	defer cr.mu.Unlock()
	if _, exists := cr.conns[clientID]; exists {
		log.Printf("client %s re-registered, replacing previous connection", clientID)
	}
	cr.conns[clientID] = conn
}

func (cr *ConnectionRegistry) Unregister(clientID string) {
	cr.mu.Lock()
	defer cr.mu.Unlock()
	delete(cr.conns, clientID)
}

// UnregisterConn removes clientID only while it still maps to conn.
func (cr *ConnectionRegistry) UnregisterConn(clientID string, conn Conn) bool {
	cr.mu.Lock()
	defer cr.mu.Unlock()
	if cur, ok := cr.conns[clientID]; ok && cur == conn {
		delete(cr.conns, clientID)
		return true
	}
	return false
}

// Owns reports whether clientID is currently registered to conn.
func (cr *ConnectionRegistry) Owns(clientID string, conn Conn) bool {
	cr.mu.RLock()
	defer cr.mu.RUnlock()
	cur, ok := cr.conns[clientID]
	return ok && cur == conn
}

// CloseAll closes every registered transport. Entries are removed as each
// transport's worker exits.
func (cr *ConnectionRegistry) CloseAll() {
	cr.mu.RLock()
	conns := make([]Conn, 0, len(cr.conns))
	for _, c := range cr.conns {
		conns = append(conns, c)
	}
	cr.mu.RUnlock()

	for _, c := range conns {
		c.Close()
	}
}

func (cr *ConnectionRegistry) IsConnected(clientID string) bool {
	cr.mu.RLock()
	defer cr.mu.RUnlock()
	_, ok := cr.conns[clientID]
	return ok
}

func (cr *ConnectionRegistry) Len() int {
	cr.mu.RLock()
	defer cr.mu.RUnlock()
	return len(cr.conns)
}

// Send encodes msg as JSON and hands it to the client's transport.
func (cr *ConnectionRegistry) Send(clientID string, msg any) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}
	return cr.deliver(clientID, data)
}

func (cr *ConnectionRegistry) deliver(clientID string, data []byte) error {
	cr.mu.RLock()
	conn, ok := cr.conns[clientID]
	cr.mu.RUnlock()

	if !ok {
		return ErrNotConnected
	}
	if err := conn.Send(data); err != nil {
		return fmt.Errorf("%w: %v", ErrNotConnected, err)
	}
	return nil
}
