package sdf

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// maxStringLen bounds strings read from untrusted payloads.
const maxStringLen = 1 << 16

// Writer encodes little-endian values. The first error sticks and every
// later call becomes a no-op; check Err once at the end.
type Writer struct {
	w   io.Writer
	buf [8]byte
	err error
}

// NewWriter returns a Writer appending to w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// Err returns the first write error.
func (w *Writer) Err() error {
	return w.err
}

func (w *Writer) write(p []byte) {
	if w.err != nil {
		return
	}
	_, w.err = w.w.Write(p)
}

func (w *Writer) Byte(b byte) {
	w.buf[0] = b
	w.write(w.buf[:1])
}

func (w *Writer) Bool(b bool) {
	if b {
		w.Byte(1)
		return
	}
	w.Byte(0)
}

func (w *Writer) Int32(v int32) {
	binary.LittleEndian.PutUint32(w.buf[:4], uint32(v))
	w.write(w.buf[:4])
}

func (w *Writer) Int64(v int64) {
	binary.LittleEndian.PutUint64(w.buf[:8], uint64(v))
	w.write(w.buf[:8])
}

func (w *Writer) Float32(f float32) {
	binary.LittleEndian.PutUint32(w.buf[:4], math.Float32bits(f))
	w.write(w.buf[:4])
}

func (w *Writer) Vec2(v mgl32.Vec2) {
	w.Float32(v[0])
	w.Float32(v[1])
}

func (w *Writer) Vec3(v mgl32.Vec3) {
	w.Float32(v[0])
	w.Float32(v[1])
	w.Float32(v[2])
}

// Quat writes W followed by the vector part.
func (w *Writer) Quat(q mgl32.Quat) {
	w.Float32(q.W)
	w.Vec3(q.V)
}

// Str writes an int32 byte length followed by the UTF-8 bytes.
func (w *Writer) Str(s string) {
	w.Int32(int32(len(s)))
	w.write([]byte(s))
}

// Bytes writes an int32 length followed by p.
func (w *Writer) Bytes(p []byte) {
	w.Int32(int32(len(p)))
	w.write(p)
}

// Reader decodes values written by Writer. Like Writer it keeps the first
// error; a truncated payload surfaces as ErrShortRead.
type Reader struct {
	r   io.Reader
	buf [8]byte
	err error
}

// NewReader returns a Reader consuming r.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: r}
}

// Err returns the first read error.
func (r *Reader) Err() error {
	return r.err
}

// Fail records err unless an earlier error is already stored. Shape readers
// use it to report semantic problems through the same channel.
func (r *Reader) Fail(err error) {
	if r.err == nil {
		r.err = err
	}
}

func (r *Reader) read(p []byte) bool {
	if r.err != nil {
		return false
	}
	if _, err := io.ReadFull(r.r, p); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			r.err = fmt.Errorf("%w: need %d bytes", ErrShortRead, len(p))
		} else {
			r.err = err
		}
		return false
	}
	return true
}

func (r *Reader) Byte() byte {
	if !r.read(r.buf[:1]) {
		return 0
	}
	return r.buf[0]
}

func (r *Reader) Bool() bool {
	return r.Byte() != 0
}

func (r *Reader) Int32() int32 {
	if !r.read(r.buf[:4]) {
		return 0
	}
	return int32(binary.LittleEndian.Uint32(r.buf[:4]))
}

func (r *Reader) Int64() int64 {
	if !r.read(r.buf[:8]) {
		return 0
	}
	return int64(binary.LittleEndian.Uint64(r.buf[:8]))
}

func (r *Reader) Float32() float32 {
	if !r.read(r.buf[:4]) {
		return 0
	}
	return math.Float32frombits(binary.LittleEndian.Uint32(r.buf[:4]))
}

func (r *Reader) Vec2() mgl32.Vec2 {
	return mgl32.Vec2{r.Float32(), r.Float32()}
}

func (r *Reader) Vec3() mgl32.Vec3 {
	return mgl32.Vec3{r.Float32(), r.Float32(), r.Float32()}
}

func (r *Reader) Quat() mgl32.Quat {
	w := r.Float32()
	return mgl32.Quat{W: w, V: r.Vec3()}
}

func (r *Reader) Str() string {
	return string(r.Bytes())
}

func (r *Reader) Bytes() []byte {
	n := r.Int32()
	if r.err != nil {
		return nil
	}
	if n < 0 || n > maxStringLen {
		r.Fail(fmt.Errorf("sdf: invalid length %d", n))
		return nil
	}
	p := make([]byte, n)
	if !r.read(p) {
		return nil
	}
	return p
}
