// Package iobuf implements the append-at-tail, consume-at-head byte
// buffers used to frame requests and responses on a connection.
package iobuf

import (
	"encoding/binary"
	"errors"
	"io"
	"math"
)

// ErrIO signals a negative return from a read/write syscall.
var ErrIO = errors.New("iobuf: io error")

// ErrEOF signals a zero-length read with bytes still expected.
var ErrEOF = errors.New("iobuf: unexpected eof")

// Buffer is a byte queue: Append grows the tail, Consume shrinks the head.
type Buffer struct {
	data []byte
}

// Len returns the number of unconsumed bytes.
func (b *Buffer) Len() int { return len(b.data) }

// Bytes returns the unconsumed bytes. The slice is invalidated by the next
// Append or Consume call.
func (b *Buffer) Bytes() []byte { return b.data }

// Append copies p onto the tail of the buffer.
func (b *Buffer) Append(p []byte) {
	b.data = append(b.data, p...)
}

// Consume removes n bytes from the head, clamped to the buffer's length.
func (b *Buffer) Consume(n int) {
	if n >= len(b.data) {
		b.data = b.data[:0]
		return
	}
	if n <= 0 {
		return
	}
	copy(b.data, b.data[n:])
	b.data = b.data[:len(b.data)-n]
}

// Reset empties the buffer.
func (b *Buffer) Reset() { b.data = b.data[:0] }

// PatchU32 overwrites the little-endian uint32 at byte offset off. Used
// to backpatch a response frame's length prefix once its payload is
// known.
func (b *Buffer) PatchU32(off int, v uint32) {
	binary.LittleEndian.PutUint32(b.data[off:off+4], v)
}

// Truncate drops everything at or after offset off.
func (b *Buffer) Truncate(off int) {
	b.data = b.data[:off]
}

// AppendU8 appends a single byte.
func (b *Buffer) AppendU8(v uint8) {
	b.data = append(b.data, v)
}

// AppendBool appends a byte, 0 or 1.
func (b *Buffer) AppendBool(v bool) {
	if v {
		b.AppendU8(1)
	} else {
		b.AppendU8(0)
	}
}

// AppendU32 appends a little-endian uint32.
func (b *Buffer) AppendU32(v uint32) {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	b.data = append(b.data, tmp[:]...)
}

// AppendI32 appends a little-endian int32.
func (b *Buffer) AppendI32(v int32) {
	b.AppendU32(uint32(v))
}

// AppendI64 appends a little-endian int64.
func (b *Buffer) AppendI64(v int64) {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], uint64(v))
	b.data = append(b.data, tmp[:]...)
}

// AppendF64 appends the IEEE-754 bit pattern of v, little-endian.
func (b *Buffer) AppendF64(v float64) {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], math.Float64bits(v))
	b.data = append(b.data, tmp[:]...)
}

// AppendString appends a u32 length prefix followed by the payload.
func (b *Buffer) AppendString(s string) {
	b.AppendU32(uint32(len(s)))
	b.data = append(b.data, s...)
}

// DecodeU32 reads a little-endian uint32 from p[0:4].
func DecodeU32(p []byte) uint32 { return binary.LittleEndian.Uint32(p) }

// DecodeI64 reads a little-endian int64 from p[0:8].
func DecodeI64(p []byte) int64 { return int64(binary.LittleEndian.Uint64(p)) }

// DecodeF64 reads an IEEE-754 little-endian float64 from p[0:8].
func DecodeF64(p []byte) float64 { return math.Float64frombits(binary.LittleEndian.Uint64(p)) }

// ReadExact loops over partial reads from r until exactly n bytes have
// been read, or an error / clean EOF occurs.
func ReadExact(r io.Reader, n int) ([]byte, error) {
	buf := make([]byte, n)
	read := 0
	for read < n {
		m, err := r.Read(buf[read:])
		if m < 0 {
			return nil, ErrIO
		}
		read += m
		if m == 0 {
			if err == io.EOF || read == n {
				if read < n {
					return nil, ErrEOF
				}
				break
			}
			if err != nil {
				return nil, err
			}
			return nil, ErrEOF
		}
		if err != nil && err != io.EOF {
			return nil, err
		}
	}
	return buf, nil
}

// WriteExact loops over partial writes to w until exactly len(p) bytes
// have been written, or an error occurs.
func WriteExact(w io.Writer, p []byte) error {
	written := 0
	for written < len(p) {
		n, err := w.Write(p[written:])
		if n < 0 {
			return ErrIO
		}
		written += n
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrEOF
		}
	}
	return nil
}
