package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"
)

func frame(payload []byte) []byte {
	return EncodeFrame(payload)
}

func TestDecoderSingleFrame(t *testing.T) {
	var d Decoder
	payload := []byte("hello")

	out, err := d.Feed(frame(payload))
	if err != nil {
		t.Fatalf("Feed failed: %v", err)
	}
	if len(out) != 1 || !bytes.Equal(out[0], payload) {
		t.Fatalf("expected one payload %q, got %v", payload, out)
	}
	if err := d.CheckEOF(); err != nil {
		t.Errorf("clean EOF reported as error: %v", err)
	}
}

func TestDecoderMultipleFramesOneChunk(t *testing.T) {
	var d Decoder
	chunk := append(frame([]byte("one")), frame([]byte("two"))...)
	chunk = append(chunk, frame([]byte("three"))...)

	out, err := d.Feed(chunk)
	if err != nil {
		t.Fatalf("Feed failed: %v", err)
	}
	want := []string{"one", "two", "three"}
	if len(out) != len(want) {
		t.Fatalf("expected %d payloads, got %d", len(want), len(out))
	}
	for i, w := range want {
		if string(out[i]) != w {
			t.Errorf("payload %d: expected %q, got %q", i, w, out[i])
		}
	}
}

// Byte-at-a-time feeding must yield the same payload sequence as one chunk.
func TestDecoderByteAtATime(t *testing.T) {
	stream := append(frame([]byte("first")), frame([]byte{})...)
	stream = append(stream, frame([]byte("second payload"))...)

	var whole Decoder
	wantOut, err := whole.Feed(stream)
	if err != nil {
		t.Fatalf("whole-chunk Feed failed: %v", err)
	}

	var d Decoder
	var out [][]byte
	for _, b := range stream {
		got, err := d.Feed([]byte{b})
		if err != nil {
			t.Fatalf("byte-wise Feed failed: %v", err)
		}
		out = append(out, got...)
	}

	if len(out) != len(wantOut) {
		t.Fatalf("expected %d payloads, got %d", len(wantOut), len(out))
	}
	for i := range out {
		if !bytes.Equal(out[i], wantOut[i]) {
			t.Errorf("payload %d mismatch: %q vs %q", i, out[i], wantOut[i])
		}
	}
	if err := d.CheckEOF(); err != nil {
		t.Errorf("clean EOF reported as error: %v", err)
	}
}

func TestDecoderZeroLengthFrame(t *testing.T) {
	var d Decoder
	out, err := d.Feed(frame(nil))
	if err != nil {
		t.Fatalf("Feed failed: %v", err)
	}
	if len(out) != 1 || len(out[0]) != 0 {
		t.Fatalf("expected one empty payload, got %v", out)
	}
}

func TestDecoderRejectsOversizedFrame(t *testing.T) {
	var d Decoder
	var prefix [4]byte
	binary.BigEndian.PutUint32(prefix[:], MaxFrameSize+1)

	_, err := d.Feed(prefix[:])
	if !errors.Is(err, ErrFrameTooLarge) {
		t.Fatalf("expected ErrFrameTooLarge, got %v", err)
	}
}

func TestDecoderTruncatedEOF(t *testing.T) {
	t.Run("mid prefix", func(t *testing.T) {
		var d Decoder
		if _, err := d.Feed([]byte{0, 0}); err != nil {
			t.Fatalf("Feed failed: %v", err)
		}
		if !errors.Is(d.CheckEOF(), ErrTruncated) {
			t.Error("expected ErrTruncated mid-prefix")
		}
	})
	t.Run("mid body", func(t *testing.T) {
		var d Decoder
		f := frame([]byte("payload"))
		if _, err := d.Feed(f[:len(f)-2]); err != nil {
			t.Fatalf("Feed failed: %v", err)
		}
		if !errors.Is(d.CheckEOF(), ErrTruncated) {
			t.Error("expected ErrTruncated mid-body")
		}
	})
}

func TestEncodeFramePrefix(t *testing.T) {
	f := EncodeFrame([]byte("abc"))
	if len(f) != LenPrefixSize+3 {
		t.Fatalf("unexpected frame length %d", len(f))
	}
	if binary.BigEndian.Uint32(f) != 3 {
		t.Errorf("length prefix = %d, want 3", binary.BigEndian.Uint32(f))
	}
	if string(f[LenPrefixSize:]) != "abc" {
		t.Errorf("payload corrupted: %q", f[LenPrefixSize:])
	}
}
