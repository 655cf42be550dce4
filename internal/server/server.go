// Package server is the framed TCP front end: it accepts client
// connections, decodes request frames, routes them through two bounded
// worker pools and writes response frames back in request order.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/personstore/personstore/internal/config"
	"github.com/personstore/personstore/internal/metrics"
	"github.com/personstore/personstore/internal/model"
	"github.com/personstore/personstore/internal/router"
	"github.com/personstore/personstore/internal/wire"
)

// MalformedRequestMessage is returned when a frame arrives intact but its
// payload does not decode as a request.
const MalformedRequestMessage = "malformed request"

const stopGrace = 5 * time.Second

// Server owns the client listener and the read/write worker pools.
type Server struct {
	router     *router.Router
	metrics    *metrics.Collector
	bufferSize int

	readPool  *Pool
	writePool *Pool

	listener net.Listener

	connMu sync.Mutex
	conns  map[*clientConn]struct{}

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a server routing requests through r.
func New(r *router.Router, m *metrics.Collector, cfg config.Config) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		router:     r,
		metrics:    m,
		bufferSize: cfg.Listen.BufferSize,
		readPool:   NewPool("read", cfg.Pools.Workers, cfg.Pools.QueueCapacity),
		writePool:  NewPool("write", cfg.Pools.Workers, cfg.Pools.QueueCapacity),
		conns:      make(map[*clientConn]struct{}),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Listen starts accepting client connections on the given port.
func (s *Server) Listen(port int) error {
	addr := fmt.Sprintf("0.0.0.0:%d", port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}
	s.listener = ln
	slog.Info("server listening", "addr", ln.Addr().String())

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.acceptLoop(ln)
	}()

	return nil
}

// Addr returns the bound listener address, for tests using port 0.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

func (s *Server) acceptLoop(ln net.Listener) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-s.ctx.Done():
				return
			default:
				slog.Error("accept error", "err", err)
				continue
			}
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConnection(conn)
		}()
	}
}

func (s *Server) handleConnection(nc net.Conn) {
	c := newClientConn(nc)
	s.trackConn(c)
	defer s.untrackConn(c)
	defer c.close()

	s.metrics.ConnectionOpened()
	defer s.metrics.ConnectionClosed()
	slog.Info("client connected", "remote", nc.RemoteAddr().String())

	s.readLoop(c)
	slog.Info("client disconnected", "remote", nc.RemoteAddr().String())
}

// readLoop blocks on the socket, slices the byte stream into frames and
// hands each frame to the read pool. It waits for a frame to finish
// processing before reading the next one, so responses leave in request
// order even when the client pipelines.
func (s *Server) readLoop(c *clientConn) {
	buf := make([]byte, s.bufferSize)
	for {
		n, err := c.netConn.Read(buf)
		if n > 0 {
			frames, ferr := c.decoder.Feed(buf[:n])
			for _, frame := range frames {
				s.metrics.FrameRead()
				if !s.processFrame(c, frame) {
					return
				}
			}
			if ferr != nil {
				slog.Warn("framing error, closing connection",
					"remote", c.netConn.RemoteAddr().String(), "err", ferr)
				return
			}
		}
		if err != nil {
			if !errors.Is(err, net.ErrClosed) {
				if eofErr := c.decoder.CheckEOF(); eofErr != nil {
					slog.Warn("connection closed mid-frame",
						"remote", c.netConn.RemoteAddr().String(), "err", eofErr)
				}
			}
			return
		}
	}
}

// processFrame schedules one frame on the read pool and waits for it.
// A full queue means the server is saturated; the connection is dropped
// rather than buffering unbounded work.
func (s *Server) processFrame(c *clientConn, frame []byte) bool {
	done := make(chan struct{})
	accepted := s.readPool.TrySubmit(func() {
		defer close(done)
		s.handleFrame(c, frame)
	})
	if !accepted {
		s.metrics.PoolRejected("read")
		slog.Warn("read pool saturated, dropping connection",
			"remote", c.netConn.RemoteAddr().String())
		return false
	}

	select {
	case <-done:
		return true
	case <-s.ctx.Done():
		return false
	}
}

func (s *Server) handleFrame(c *clientConn, frame []byte) {
	req, err := wire.DecodeRequest(frame)
	if err != nil {
		slog.Warn("undecodable request payload", "remote", c.netConn.RemoteAddr().String(), "err", err)
		s.respond(c, "malformed", &model.Response{Message: MalformedRequestMessage})
		return
	}

	start := time.Now()
	resp := s.router.Route(s.ctx, req)
	s.metrics.RequestRouted(req.Command, time.Since(start))

	s.respond(c, req.Command, resp)
}

func (s *Server) respond(c *clientConn, command string, resp *model.Response) {
	frame := wire.EncodeFrame(wire.EncodeResponse(resp))
	if !c.enqueue(frame) {
		return
	}

	accepted := s.writePool.TrySubmit(func() { s.flush(c) })
	if !accepted {
		s.metrics.PoolRejected("write")
		slog.Warn("write pool saturated, dropping connection",
			"remote", c.netConn.RemoteAddr().String(), "command", command)
		c.close()
	}
}

// flush drains the connection's outbox. It loops because responses may be
// enqueued while a previous batch is still being written.
func (s *Server) flush(c *clientConn) {
	for {
		frames := c.takeOutbox()
		if frames == nil {
			return
		}
		for _, frame := range frames {
			if _, err := c.netConn.Write(frame); err != nil {
				slog.Warn("write failed, dropping connection",
					"remote", c.netConn.RemoteAddr().String(), "err", err)
				c.close()
				return
			}
			s.metrics.FrameWritten()
		}
	}
}

func (s *Server) trackConn(c *clientConn) {
	s.connMu.Lock()
	s.conns[c] = struct{}{}
	s.connMu.Unlock()
}

func (s *Server) untrackConn(c *clientConn) {
	s.connMu.Lock()
	delete(s.conns, c)
	s.connMu.Unlock()
}

// Stop gracefully shuts the server down: stop accepting, close live
// connections, then drain the worker pools.
func (s *Server) Stop() {
	s.cancel()

	if s.listener != nil {
		s.listener.Close()
	}

	s.connMu.Lock()
	for c := range s.conns {
		c.close()
	}
	s.connMu.Unlock()

	s.wg.Wait()
	s.readPool.Stop(stopGrace)
	s.writePool.Stop(stopGrace)
	slog.Info("server stopped")
}
