package client

import (
	"net"
	"testing"
	"time"

	"github.com/personstore/personstore/internal/model"
	"github.com/personstore/personstore/internal/wire"
)

// echoServer answers every request with a canned response message.
func echoServer(t *testing.T, message string) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func(conn net.Conn) {
				defer conn.Close()
				var dec wire.Decoder
				buf := make([]byte, 4096)
				for {
					n, err := conn.Read(buf)
					if err != nil {
						return
					}
					frames, ferr := dec.Feed(buf[:n])
					for range frames {
						resp := &model.Response{Message: message}
						if _, err := conn.Write(wire.EncodeFrame(wire.EncodeResponse(resp))); err != nil {
							return
						}
					}
					if ferr != nil {
						return
					}
				}
			}(conn)
		}
	}()
	return ln.Addr().String()
}

func TestClientDo(t *testing.T) {
	addr := echoServer(t, "Person added.")

	c, err := Dial(addr)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer c.Close()

	resp, err := c.Do(&model.Request{Command: "add"})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if resp.Message != "Person added." {
		t.Errorf("unexpected message %q", resp.Message)
	}

	// Second round-trip on the same connection.
	resp, err = c.Do(&model.Request{Command: "show"})
	if err != nil {
		t.Fatalf("second Do: %v", err)
	}
	if resp.Message != "Person added." {
		t.Errorf("unexpected message %q", resp.Message)
	}
}

func TestClientDoAfterClose(t *testing.T) {
	addr := echoServer(t, "ok")

	c, err := Dial(addr)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
	if _, err := c.Do(&model.Request{Command: "show"}); err != ErrClosed {
		t.Errorf("expected ErrClosed, got %v", err)
	}
}

func TestClientDoServerGone(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()

	done := make(chan struct{})
	go func() {
		conn, err := ln.Accept()
		if err == nil {
			conn.Close()
		}
		close(done)
	}()

	c, err := Dial(addr)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer c.Close()
	<-done
	ln.Close()

	c.conn.SetDeadline(time.Now().Add(2 * time.Second))
	if _, err := c.Do(&model.Request{Command: "show"}); err == nil {
		t.Error("expected an error against a closed server")
	}
}
