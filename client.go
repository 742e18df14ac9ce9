package main

import (
	"errors"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

var (
	errSendBufferFull = errors.New("send buffer full")
	errClientClosed   = errors.New("client closed")
)

// Client is one websocket connection. ReadPump is its only reader and
// WritePump its only writer.
type Client struct {
	hub       *Hub
	conn      *websocket.Conn
	clientID  string
	ip        string
	send      chan []byte
	done      chan struct{}
	writeWait time.Duration
	readLimit int64

	closeOnce sync.Once
}

func NewClient(hub *Hub, conn *websocket.Conn, clientID, ip string, cfg *Config) *Client {
	return &Client{
		hub:       hub,
		conn:      conn,
		clientID:  clientID,
		ip:        ip,
		send:      make(chan []byte, cfg.SendBufferSize),
		done:      make(chan struct{}),
		writeWait: cfg.WriteWait,
		readLimit: cfg.MaxMessageSize,
	}
}

// Send queues data for the write pump. It never blocks: a full buffer or a
// closed client is reported as an error.
func (c *Client) Send(data []byte) error {
	select {
	case <-c.done:
		return errClientClosed
	default:
	}

	select {
	case c.send <- data:
		return nil
	case <-c.done:
		return errClientClosed
	default:
		return errSendBufferFull
	}
}

func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

func (c *Client) ReadPump() {
	defer func() {
		c.hub.DisconnectConn(c.clientID, c)
		c.Close()
		c.conn.Close()
	}()

	if c.readLimit > 0 {
		c.conn.SetReadLimit(c.readLimit)
	}
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		msgType, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("read error client=%s ip=%s: %v", c.clientID, c.ip, err)
			}
			return
		}
		if msgType != websocket.TextMessage {
			log.Printf("client %s sent non-text frame (type %d), skipping", c.clientID, msgType)
			continue
		}

		c.hub.HandleMessage(c.clientID, message)
	}
}

func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
		c.conn.Close()
	}()

	for {
		select {
		case message := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Printf("write error client=%s: %v", c.clientID, err)
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}
