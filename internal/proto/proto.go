// Package proto implements the wire protocol: request framing, typed
// response value encoding/decoding, and the request parser. This is
// where partial reads, malformed frames, and oversized payloads are
// resolved, per spec §4.H.
package proto

import (
	"errors"
	"fmt"

	"loopkv/internal/iobuf"
)

// Tag identifies the shape of a typed value on the wire.
type Tag byte

const (
	TagNil  Tag = 0
	TagErr  Tag = 1
	TagStr  Tag = 2
	TagInt  Tag = 3
	TagDbl  Tag = 4
	TagBool Tag = 5
	TagArr  Tag = 6
	TagMap  Tag = 7
)

// ErrCode enumerates the response-level error codes carried inside an
// ERR typed value.
type ErrCode int32

const (
	ErrUnknown ErrCode = 1
	ErrTooBig  ErrCode = 2
	ErrBadTyp  ErrCode = 3
	ErrBadArg  ErrCode = 4
)

// ErrMalformed is returned by ParseRequest when the payload under- or
// over-consumes its declared length, or declares more than MaxArgs
// arguments.
var ErrMalformed = errors.New("proto: malformed request payload")

// Frame-level limits, per spec §6.
const (
	MaxMsg  = 32 * 1024 * 1024
	MaxArgs = 200000
)

// ParseRequest decodes a request payload (the bytes following the u32
// payload_len prefix) into its argument vector: u32 num_args, then
// num_args * (u32 arg_len, arg_len bytes). All little-endian.
func ParseRequest(payload []byte) ([]string, error) {
	if len(payload) < 4 {
		return nil, ErrMalformed
	}
	numArgs := iobuf.DecodeU32(payload[:4])
	if numArgs > MaxArgs {
		return nil, ErrMalformed
	}
	pos := 4
	args := make([]string, 0, numArgs)
	for i := uint32(0); i < numArgs; i++ {
		if pos+4 > len(payload) {
			return nil, ErrMalformed
		}
		argLen := iobuf.DecodeU32(payload[pos : pos+4])
		pos += 4
		if uint64(pos)+uint64(argLen) > uint64(len(payload)) {
			return nil, ErrMalformed
		}
		args = append(args, string(payload[pos:pos+int(argLen)]))
		pos += int(argLen)
	}
	if pos != len(payload) {
		return nil, ErrMalformed
	}
	return args, nil
}

// EncodeRequest frames a request's argument vector the same way a
// client would, for use by tests and any future REPL client.
func EncodeRequest(args []string) []byte {
	var payload iobuf.Buffer
	payload.AppendU32(uint32(len(args)))
	for _, a := range args {
		payload.AppendString(a)
	}
	var frame iobuf.Buffer
	frame.AppendU32(uint32(payload.Len()))
	frame.Append(payload.Bytes())
	return frame.Bytes()
}

// EncodeNil appends a NIL typed value.
func EncodeNil(b *iobuf.Buffer) {
	b.AppendU8(byte(TagNil))
}

// EncodeErr appends an ERR typed value: i32 code, u32 len, len bytes.
func EncodeErr(b *iobuf.Buffer, code ErrCode, msg string) {
	b.AppendU8(byte(TagErr))
	b.AppendI32(int32(code))
	b.AppendString(msg)
}

// EncodeStr appends a STR typed value: u32 len, len bytes.
func EncodeStr(b *iobuf.Buffer, s string) {
	b.AppendU8(byte(TagStr))
	b.AppendString(s)
}

// EncodeInt appends an INT typed value: i64 little-endian.
func EncodeInt(b *iobuf.Buffer, v int64) {
	b.AppendU8(byte(TagInt))
	b.AppendI64(v)
}

// EncodeDbl appends a DBL typed value: f64 little-endian bit pattern.
func EncodeDbl(b *iobuf.Buffer, v float64) {
	b.AppendU8(byte(TagDbl))
	b.AppendF64(v)
}

// EncodeBool appends a BOOL typed value: one byte, 0 or 1.
func EncodeBool(b *iobuf.Buffer, v bool) {
	b.AppendU8(byte(TagBool))
	b.AppendBool(v)
}

// EncodeArrHeader appends an ARR tag and its element count; the caller
// is responsible for appending exactly n typed values immediately after.
func EncodeArrHeader(b *iobuf.Buffer, n int) {
	b.AppendU8(byte(TagArr))
	b.AppendU32(uint32(n))
}

// EncodeMapHeader appends a MAP tag and its pair count; the caller
// appends exactly n (key, value) typed-value pairs immediately after.
func EncodeMapHeader(b *iobuf.Buffer, n int) {
	b.AppendU8(byte(TagMap))
	b.AppendU32(uint32(n))
}

// BeginResponse writes a placeholder u32 length at the tail of b and
// returns its offset, to be passed to FinishResponse once the handler
// has appended the typed response value.
func BeginResponse(b *iobuf.Buffer) int {
	off := b.Len()
	b.AppendU32(0)
	return off
}

// FinishResponse backpatches the length prefix written by BeginResponse
// with the number of payload bytes appended since. If that payload
// exceeds MaxMsg, the payload is discarded and replaced with a single
// ERR TOO_BIG value instead, per spec §4.H.
func FinishResponse(b *iobuf.Buffer, placeholder int) {
	payloadLen := b.Len() - placeholder - 4
	if payloadLen > MaxMsg {
		b.Truncate(placeholder + 4)
		EncodeErr(b, ErrTooBig, "response too big")
		payloadLen = b.Len() - placeholder - 4
	}
	b.PatchU32(placeholder, uint32(payloadLen))
}

// Encode appends a generic Value to b in its typed-value wire form.
// Used by tests exercising round-trip encode/decode.
func Encode(b *iobuf.Buffer, v Value) {
	switch v.Tag {
	case TagNil:
		EncodeNil(b)
	case TagErr:
		EncodeErr(b, v.ErrCode, v.Str)
	case TagStr:
		EncodeStr(b, v.Str)
	case TagInt:
		EncodeInt(b, v.Int)
	case TagDbl:
		EncodeDbl(b, v.Dbl)
	case TagBool:
		EncodeBool(b, v.Bool)
	case TagArr:
		EncodeArrHeader(b, len(v.Arr))
		for _, e := range v.Arr {
			Encode(b, e)
		}
	case TagMap:
		EncodeMapHeader(b, len(v.MapKeys))
		for i := range v.MapKeys {
			Encode(b, v.MapKeys[i])
			Encode(b, v.MapVals[i])
		}
	}
}

// Value is a decoded typed value, used for round-tripping and tests.
type Value struct {
	Tag     Tag
	Str     string
	Int     int64
	Dbl     float64
	Bool    bool
	ErrCode ErrCode
	Arr     []Value
	MapKeys []Value
	MapVals []Value
}

// Decode parses one typed value from the front of p, returning the
// value and the number of bytes consumed.
func Decode(p []byte) (Value, int, error) {
	if len(p) < 1 {
		return Value{}, 0, fmt.Errorf("proto: empty value")
	}
	tag := Tag(p[0])
	pos := 1
	switch tag {
	case TagNil:
		return Value{Tag: tag}, pos, nil
	case TagErr:
		if len(p) < pos+4 {
			return Value{}, 0, fmt.Errorf("proto: truncated ERR")
		}
		code := int32(iobuf.DecodeU32(p[pos : pos+4]))
		pos += 4
		if len(p) < pos+4 {
			return Value{}, 0, fmt.Errorf("proto: truncated ERR length")
		}
		n := int(iobuf.DecodeU32(p[pos : pos+4]))
		pos += 4
		if len(p) < pos+n {
			return Value{}, 0, fmt.Errorf("proto: truncated ERR message")
		}
		msg := string(p[pos : pos+n])
		pos += n
		return Value{Tag: tag, ErrCode: ErrCode(code), Str: msg}, pos, nil
	case TagStr:
		if len(p) < pos+4 {
			return Value{}, 0, fmt.Errorf("proto: truncated STR length")
		}
		n := int(iobuf.DecodeU32(p[pos : pos+4]))
		pos += 4
		if len(p) < pos+n {
			return Value{}, 0, fmt.Errorf("proto: truncated STR")
		}
		s := string(p[pos : pos+n])
		pos += n
		return Value{Tag: tag, Str: s}, pos, nil
	case TagInt:
		if len(p) < pos+8 {
			return Value{}, 0, fmt.Errorf("proto: truncated INT")
		}
		v := iobuf.DecodeI64(p[pos : pos+8])
		pos += 8
		return Value{Tag: tag, Int: v}, pos, nil
	case TagDbl:
		if len(p) < pos+8 {
			return Value{}, 0, fmt.Errorf("proto: truncated DBL")
		}
		v := iobuf.DecodeF64(p[pos : pos+8])
		pos += 8
		return Value{Tag: tag, Dbl: v}, pos, nil
	case TagBool:
		if len(p) < pos+1 {
			return Value{}, 0, fmt.Errorf("proto: truncated BOOL")
		}
		v := p[pos] != 0
		pos += 1
		return Value{Tag: tag, Bool: v}, pos, nil
	case TagArr:
		if len(p) < pos+4 {
			return Value{}, 0, fmt.Errorf("proto: truncated ARR length")
		}
		n := int(iobuf.DecodeU32(p[pos : pos+4]))
		pos += 4
		arr := make([]Value, 0, n)
		for i := 0; i < n; i++ {
			v, used, err := Decode(p[pos:])
			if err != nil {
				return Value{}, 0, err
			}
			arr = append(arr, v)
			pos += used
		}
		return Value{Tag: tag, Arr: arr}, pos, nil
	case TagMap:
		if len(p) < pos+4 {
			return Value{}, 0, fmt.Errorf("proto: truncated MAP length")
		}
		n := int(iobuf.DecodeU32(p[pos : pos+4]))
		pos += 4
		keys := make([]Value, 0, n)
		vals := make([]Value, 0, n)
		for i := 0; i < n; i++ {
			k, used, err := Decode(p[pos:])
			if err != nil {
				return Value{}, 0, err
			}
			pos += used
			v, used2, err := Decode(p[pos:])
			if err != nil {
				return Value{}, 0, err
			}
			pos += used2
			keys = append(keys, k)
			vals = append(vals, v)
		}
		return Value{Tag: tag, MapKeys: keys, MapVals: vals}, pos, nil
	default:
		return Value{}, 0, fmt.Errorf("proto: unknown tag %d", tag)
	}
}
