// network/connection.go
package network

import (
	"encoding/json"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const writeWait = 10 * time.Second

var ErrBinaryFrame = errors.New("binary frames are not supported")

type Connection interface {
	// SendJSON writes v as one text frame. Safe for concurrent use.
	SendJSON(v interface{}) error
	// ReadMessage blocks for the next text frame.
	ReadMessage() ([]byte, error)
	CloseWithCode(code int, reason string) error
	Close() error
	RemoteAddr() net.Addr
	SetHeartbeat(interval time.Duration)
}

type WSConnection struct {
	conn      *websocket.Conn
	sendMutex sync.Mutex
	heartbeat time.Duration
	closeOnce sync.Once
	closeErr  error
}

func NewWSConnection(conn *websocket.Conn) *WSConnection {
	return &WSConnection{conn: conn}
}

func (c *WSConnection) SendJSON(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}

	c.sendMutex.Lock()
	defer c.sendMutex.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c *WSConnection) ReadMessage() ([]byte, error) {
	for {
		msgType, data, err := c.conn.ReadMessage()
		if err != nil {
			return nil, err
		}
		if c.heartbeat > 0 {
			c.conn.SetReadDeadline(time.Now().Add(c.heartbeat * 2))
		}
		switch msgType {
		case websocket.TextMessage:
			return data, nil
		case websocket.BinaryMessage:
			return nil, ErrBinaryFrame
		}
	}
}

// SetHeartbeat pings the peer every interval and drops it after two missed
// intervals.
func (c *WSConnection) SetHeartbeat(interval time.Duration) {
	c.heartbeat = interval
	c.conn.SetReadDeadline(time.Now().Add(interval * 2))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(interval * 2))
	})

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for range ticker.C {
			c.sendMutex.Lock()
			err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
			c.sendMutex.Unlock()
			if err != nil {
				return
			}
		}
	}()
}

// CloseWithCode sends a close frame carrying code, then closes the socket.
func (c *WSConnection) CloseWithCode(code int, reason string) error {
	c.sendMutex.Lock()
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(code, reason),
		time.Now().Add(writeWait))
	c.sendMutex.Unlock()
	return c.Close()
}

func (c *WSConnection) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.conn.Close()
	})
	return c.closeErr
}

func (c *WSConnection) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}
