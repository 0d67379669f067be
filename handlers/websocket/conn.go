package websocket

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Conn wraps one authenticated websocket session. The user ID is fixed at
// handshake time; the document ID is set at most once by the bind path. The
// alive flag is owned by the liveness loop, flipped true by pong receipt.
type Conn struct {
	sock *websocket.Conn

	userID string

	// writeMu serializes data frames; gorilla allows at most one
	// concurrent writer. Control frames (ping, close) are exempt.
	writeMu sync.Mutex

	mu         sync.Mutex
	documentID string
	alive      bool

	done     chan struct{}
	shutdown sync.Once
}

func newConn(sock *websocket.Conn, userID string) *Conn {
	return &Conn{
		sock:   sock,
		userID: userID,
		alive:  true,
		done:   make(chan struct{}),
	}
}

// UserID returns the authenticated user this connection belongs to.
func (c *Conn) UserID() string {
	return c.userID
}

// DocumentID returns the bound document, or "" while unbound.
func (c *Conn) DocumentID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.documentID
}

// setDocument records the one-time document binding.
func (c *Conn) setDocument(documentID string) {
	c.mu.Lock()
	c.documentID = documentID
	c.mu.Unlock()
}

// markAlive is the pong handler's half of the heartbeat.
func (c *Conn) markAlive() {
	c.mu.Lock()
	c.alive = true
	c.mu.Unlock()
}

// consumeAlive returns whether the peer answered since the last probe and
// arms the flag for the next interval.
func (c *Conn) consumeAlive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	alive := c.alive
	c.alive = false
	return alive
}

func (c *Conn) writeJSON(v any, timeout time.Duration) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.sock.SetWriteDeadline(time.Now().Add(timeout)); err != nil {
		return err
	}
	return c.sock.WriteJSON(v)
}

func (c *Conn) writeError(msg string, timeout time.Duration) {
	_ = c.writeJSON(errorMessage{Error: msg}, timeout)
}

func (c *Conn) ping(timeout time.Duration) error {
	return c.sock.WriteControl(websocket.PingMessage, nil, time.Now().Add(timeout))
}

// closeWithCode sends a close frame best-effort before tearing the socket
// down. Safe to call multiple times; only the first has any effect.
func (c *Conn) closeWithCode(code int, reason string, timeout time.Duration) {
	c.shutdown.Do(func() {
		close(c.done)
		msg := websocket.FormatCloseMessage(code, reason)
		_ = c.sock.WriteControl(websocket.CloseMessage, msg, time.Now().Add(timeout))
		_ = c.sock.Close()
	})
}

// terminate closes the socket without a close frame, for dead peers.
func (c *Conn) terminate() {
	c.shutdown.Do(func() {
		close(c.done)
		_ = c.sock.Close()
	})
}
