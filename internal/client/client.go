// Package client is the framed-protocol transport: it dials the server
// with retry and exchanges one request frame for one response frame.
package client

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/personstore/personstore/internal/model"
	"github.com/personstore/personstore/internal/wire"
)

const (
	dialAttempts = 5
	dialBackoff  = 2 * time.Second
)

// ErrClosed is returned by Do after Close.
var ErrClosed = errors.New("client: connection closed")

// Client is a synchronous protocol client. It is not safe for concurrent
// use; callers hold one client per session.
type Client struct {
	conn    net.Conn
	decoder wire.Decoder
	buf     []byte
	closed  bool
}

// Dial connects to the server, retrying up to five times with a fixed
// backoff between attempts.
func Dial(addr string) (*Client, error) {
	var lastErr error
	for attempt := 1; attempt <= dialAttempts; attempt++ {
		conn, err := net.Dial("tcp", addr)
		if err == nil {
			return &Client{conn: conn, buf: make([]byte, 8192)}, nil
		}
		lastErr = err
		slog.Warn("connect failed", "addr", addr, "attempt", attempt, "err", err)
		if attempt < dialAttempts {
			time.Sleep(dialBackoff)
		}
	}
	return nil, fmt.Errorf("connecting to %s after %d attempts: %w", addr, dialAttempts, lastErr)
}

// Do sends one request and blocks until its response arrives.
func (c *Client) Do(req *model.Request) (*model.Response, error) {
	if c.closed {
		return nil, ErrClosed
	}

	if _, err := c.conn.Write(wire.EncodeFrame(wire.EncodeRequest(req))); err != nil {
		return nil, fmt.Errorf("sending request: %w", err)
	}

	for {
		n, err := c.conn.Read(c.buf)
		if n > 0 {
			frames, ferr := c.decoder.Feed(c.buf[:n])
			if len(frames) > 0 {
				resp, derr := wire.DecodeResponse(frames[0])
				if derr != nil {
					return nil, fmt.Errorf("decoding response: %w", derr)
				}
				return resp, nil
			}
			if ferr != nil {
				return nil, fmt.Errorf("reading response: %w", ferr)
			}
		}
		if err != nil {
			return nil, fmt.Errorf("reading response: %w", err)
		}
	}
}

// Close tears the connection down. Safe to call multiple times.
func (c *Client) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	return c.conn.Close()
}
