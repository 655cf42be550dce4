package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/personstore/personstore/internal/model"
)

// ErrDecode reports a payload that fails the schema check. It is a
// per-message fault: the router answers with an error response and the
// connection stays open.
var ErrDecode = errors.New("wire: malformed payload")

// Payload header: a version byte followed by a kind byte, so a peer can
// tell a stray or foreign payload from a schema mismatch.
const (
	payloadVersion byte = 1

	kindRequest  byte = 1
	kindResponse byte = 2
)

// maxSeqLen bounds decoded sequence lengths; MaxFrameSize already bounds
// the bytes, this bounds the element count before allocation.
const maxSeqLen = 1 << 20

// EncodeRequest serialises a request into a payload suitable for framing.
func EncodeRequest(req *model.Request) []byte {
	w := newWriter(kindRequest)
	w.string(req.Command)
	w.stringSeq(req.Args)
	w.personSeq(req.Persons)
	w.string(req.Credentials.Username)
	w.string(req.Credentials.Password)
	return w.bytes()
}

// DecodeRequest parses a request payload. Any schema violation, including
// trailing bytes, yields an error wrapping ErrDecode.
func DecodeRequest(payload []byte) (*model.Request, error) {
	r := newReader(payload, kindRequest)
	var req model.Request
	req.Command = r.string()
	req.Args = r.stringSeq()
	req.Persons = r.personSeq()
	req.Credentials.Username = r.string()
	req.Credentials.Password = r.string()
	if err := r.finish(); err != nil {
		return nil, err
	}
	return &req, nil
}

// EncodeResponse serialises a response into a payload suitable for framing.
func EncodeResponse(resp *model.Response) []byte {
	w := newWriter(kindResponse)
	w.string(resp.Message)
	w.personSeq(resp.Persons)
	w.string(resp.Script)
	return w.bytes()
}

// DecodeResponse parses a response payload.
func DecodeResponse(payload []byte) (*model.Response, error) {
	r := newReader(payload, kindResponse)
	var resp model.Response
	resp.Message = r.string()
	resp.Persons = r.personSeq()
	resp.Script = r.string()
	if err := r.finish(); err != nil {
		return nil, err
	}
	return &resp, nil
}

// writer accumulates big-endian fields. Encoding cannot fail; all inputs
// are well-typed by construction.
type writer struct {
	buf []byte
}

func newWriter(kind byte) *writer {
	return &writer{buf: []byte{payloadVersion, kind}}
}

func (w *writer) bytes() []byte { return w.buf }

func (w *writer) u8(v byte)  { w.buf = append(w.buf, v) }
func (w *writer) u32(v uint32) {
	w.buf = binary.BigEndian.AppendUint32(w.buf, v)
}
func (w *writer) i32(v int32)  { w.u32(uint32(v)) }
func (w *writer) i64(v int64)  { w.buf = binary.BigEndian.AppendUint64(w.buf, uint64(v)) }
func (w *writer) f32(v float32) { w.u32(math.Float32bits(v)) }
func (w *writer) f64(v float64) { w.buf = binary.BigEndian.AppendUint64(w.buf, math.Float64bits(v)) }

func (w *writer) string(s string) {
	w.u32(uint32(len(s)))
	w.buf = append(w.buf, s...)
}

func (w *writer) stringSeq(ss []string) {
	w.u32(uint32(len(ss)))
	for _, s := range ss {
		w.string(s)
	}
}

func (w *writer) optF64(v *float64) {
	if v == nil {
		w.u8(0)
		return
	}
	w.u8(1)
	w.f64(*v)
}

func (w *writer) optString(v *string) {
	if v == nil {
		w.u8(0)
		return
	}
	w.u8(1)
	w.string(*v)
}

func (w *writer) person(p *model.Person) {
	w.i32(p.Id)
	w.i64(p.OwnerId)
	w.string(p.Name)
	w.i32(p.Coordinates.X)
	w.i32(p.Coordinates.Y)
	w.i64(p.CreationDate.UnixMilli())
	w.i32(p.Height)
	w.i32(p.Weight)
	w.string(p.HairColor.String())
	w.string(p.Nationality.String())
	w.f32(p.Location.X)
	w.optF64(p.Location.Y)
	w.optString(p.Location.Name)
}

func (w *writer) personSeq(ps []model.Person) {
	w.u32(uint32(len(ps)))
	for i := range ps {
		w.person(&ps[i])
	}
}

// reader consumes big-endian fields with a sticky error: after the first
// fault every accessor returns a zero value and finish reports the fault.
type reader struct {
	buf []byte
	off int
	err error
}

func newReader(payload []byte, kind byte) *reader {
	r := &reader{buf: payload}
	if len(payload) < 2 {
		r.fail("payload shorter than header")
		return r
	}
	if payload[0] != payloadVersion {
		r.fail(fmt.Sprintf("unsupported payload version %d", payload[0]))
		return r
	}
	if payload[1] != kind {
		r.fail(fmt.Sprintf("unexpected payload kind %d", payload[1]))
		return r
	}
	r.off = 2
	return r
}

func (r *reader) fail(msg string) {
	if r.err == nil {
		r.err = fmt.Errorf("%w: %s", ErrDecode, msg)
	}
}

func (r *reader) take(n int) []byte {
	if r.err != nil {
		return nil
	}
	if n < 0 || len(r.buf)-r.off < n {
		r.fail("field extends past end of payload")
		return nil
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b
}

func (r *reader) u8() byte {
	b := r.take(1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (r *reader) u32() uint32 {
	b := r.take(4)
	if b == nil {
		return 0
	}
	return binary.BigEndian.Uint32(b)
}

func (r *reader) i32() int32 { return int32(r.u32()) }

func (r *reader) i64() int64 {
	b := r.take(8)
	if b == nil {
		return 0
	}
	return int64(binary.BigEndian.Uint64(b))
}

func (r *reader) f32() float32 { return math.Float32frombits(r.u32()) }

func (r *reader) f64() float64 {
	b := r.take(8)
	if b == nil {
		return 0
	}
	return math.Float64frombits(binary.BigEndian.Uint64(b))
}

func (r *reader) string() string {
	n := r.u32()
	if r.err != nil {
		return ""
	}
	return string(r.take(int(n)))
}

func (r *reader) seqLen() int {
	n := r.u32()
	if n > maxSeqLen {
		r.fail(fmt.Sprintf("sequence length %d too large", n))
		return 0
	}
	return int(n)
}

func (r *reader) stringSeq() []string {
	n := r.seqLen()
	if r.err != nil || n == 0 {
		return nil
	}
	ss := make([]string, 0, n)
	for i := 0; i < n && r.err == nil; i++ {
		ss = append(ss, r.string())
	}
	return ss
}

func (r *reader) optF64() *float64 {
	switch r.u8() {
	case 0:
		return nil
	case 1:
		v := r.f64()
		return &v
	default:
		r.fail("invalid presence marker")
		return nil
	}
}

func (r *reader) optString() *string {
	switch r.u8() {
	case 0:
		return nil
	case 1:
		v := r.string()
		return &v
	default:
		r.fail("invalid presence marker")
		return nil
	}
}

func (r *reader) person() model.Person {
	var p model.Person
	p.Id = r.i32()
	p.OwnerId = r.i64()
	p.Name = r.string()
	p.Coordinates.X = r.i32()
	p.Coordinates.Y = r.i32()
	p.CreationDate = time.UnixMilli(r.i64()).UTC()
	p.Height = r.i32()
	p.Weight = r.i32()
	color, err := model.ParseColor(r.string())
	if err != nil && r.err == nil {
		r.fail(err.Error())
	}
	p.HairColor = color
	country, err := model.ParseCountry(r.string())
	if err != nil && r.err == nil {
		r.fail(err.Error())
	}
	p.Nationality = country
	p.Location.X = r.f32()
	p.Location.Y = r.optF64()
	p.Location.Name = r.optString()
	if r.err == nil {
		if err := p.Validate(); err != nil {
			r.fail(err.Error())
		}
	}
	return p
}

func (r *reader) personSeq() []model.Person {
	n := r.seqLen()
	if r.err != nil || n == 0 {
		return nil
	}
	ps := make([]model.Person, 0, n)
	for i := 0; i < n && r.err == nil; i++ {
		ps = append(ps, r.person())
	}
	return ps
}

func (r *reader) finish() error {
	if r.err != nil {
		return r.err
	}
	if r.off != len(r.buf) {
		return fmt.Errorf("%w: %d trailing bytes", ErrDecode, len(r.buf)-r.off)
	}
	return nil
}
