package server

import (
	"net"
	"sync"

	"github.com/personstore/personstore/internal/wire"
)

// clientConn tracks per-connection protocol state: the incremental frame
// decoder for inbound bytes and an outbox of encoded frames awaiting a
// write-pool flush.
type clientConn struct {
	netConn net.Conn
	decoder wire.Decoder

	mu             sync.Mutex
	outbox         [][]byte
	writeScheduled bool
	closed         bool
}

func newClientConn(nc net.Conn) *clientConn {
	return &clientConn{netConn: nc}
}

// enqueue appends an encoded frame to the outbox. It reports whether a
// flush needs to be scheduled; at most one flush is in flight per
// connection so frames go out in order.
func (c *clientConn) enqueue(frame []byte) (scheduleFlush bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	c.outbox = append(c.outbox, frame)
	if c.writeScheduled {
		return false
	}
	c.writeScheduled = true
	return true
}

// takeOutbox drains the pending frames. When empty, the flush slot is
// released and the caller must stop writing.
func (c *clientConn) takeOutbox() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.outbox) == 0 || c.closed {
		c.writeScheduled = false
		return nil
	}
	frames := c.outbox
	c.outbox = nil
	return frames
}

// close shuts the socket down once and drops any queued frames.
func (c *clientConn) close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.outbox = nil
	c.mu.Unlock()
	c.netConn.Close()
}
