package gateway

import (
	"sync"
	"time"

	"github.com/hertz-contrib/websocket"
	"github.com/mbeoliero/kit/log"
)

// ClientConn represents a WebSocket connection wrapper
type ClientConn interface {
	ReadMessage() ([]byte, error)
	WriteMessage(data []byte) error
	Close() error
}

// hertzClientConn implements ClientConn using hertz-contrib/websocket
type hertzClientConn struct {
	conn       *websocket.Conn
	writeChan  chan []byte
	writeMu    sync.Mutex
	closeOnce  sync.Once
	closed     bool
	pingPeriod time.Duration
	pongWait   time.Duration
	writeWait  time.Duration
}

// NewHertzClientConn creates a new hertz websocket client connection
func NewHertzClientConn(conn *websocket.Conn, maxMsgSize int64, writeChanSize int, pongWait, pingPeriod, writeWait time.Duration) ClientConn {
	if writeChanSize <= 0 {
		writeChanSize = 256
	}
	c := &hertzClientConn{
		conn:       conn,
		writeChan:  make(chan []byte, writeChanSize),
		pingPeriod: pingPeriod,
		pongWait:   pongWait,
		writeWait:  writeWait,
	}

	conn.SetReadLimit(maxMsgSize)

	// Extend read deadline on pong
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	go c.writeLoop()

	return c
}

// writeLoop handles all writes to the connection (single writer pattern)
func (c *hertzClientConn) writeLoop() {
	ticker := time.NewTicker(c.pingPeriod)
	defer func() {
		ticker.Stop()
		// Recover from panic when writing to closed connection
		if r := recover(); r != nil {
			log.Debug("writeLoop recovered from panic: %v", r)
		}
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.writeChan:
			if !ok {
				c.safeWriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.safeWriteMessage(websocket.TextMessage, message); err != nil {
				log.Debug("write message error: %v", err)
				return
			}

		case <-ticker.C:
			if err := c.safeWriteMessage(websocket.PingMessage, nil); err != nil {
				log.Debug("ping error: %v", err)
				return
			}
		}
	}
}

// safeWriteMessage writes a message with proper error handling
func (c *hertzClientConn) safeWriteMessage(messageType int, data []byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Debug("safeWriteMessage recovered from panic: %v", r)
			err = ErrConnClosed
		}
	}()

	c.conn.SetWriteDeadline(time.Now().Add(c.writeWait))
	return c.conn.WriteMessage(messageType, data)
}

// ReadMessage reads a message from the connection
func (c *hertzClientConn) ReadMessage() ([]byte, error) {
	c.conn.SetReadDeadline(time.Now().Add(c.pongWait))
	_, message, err := c.conn.ReadMessage()
	return message, err
}

// WriteMessage queues a message to be written
func (c *hertzClientConn) WriteMessage(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.closed {
		return ErrConnClosed
	}

	select {
	case c.writeChan <- data:
		return nil
	default:
		// Slow consumer
		return ErrWriteChannelFull
	}
}

// Close closes the connection. Queued writes are flushed before the close frame.
func (c *hertzClientConn) Close() error {
	c.closeOnce.Do(func() {
		c.writeMu.Lock()
		c.closed = true
		close(c.writeChan)
		c.writeMu.Unlock()
	})
	return nil
}
