package proto

import (
	"testing"

	"loopkv/internal/iobuf"
)

func roundTrip(t *testing.T, v Value) Value {
	t.Helper()
	var b iobuf.Buffer
	Encode(&b, v)
	got, n, err := Decode(b.Bytes())
	if err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if n != b.Len() {
		t.Fatalf("consumed %d bytes, want %d", n, b.Len())
	}
	return got
}

func TestRoundTripScalars(t *testing.T) {
	if got := roundTrip(t, Value{Tag: TagNil}); got.Tag != TagNil {
		t.Fatalf("nil round trip failed: %+v", got)
	}
	if got := roundTrip(t, Value{Tag: TagInt, Int: -12345}); got.Int != -12345 {
		t.Fatalf("int round trip failed: %+v", got)
	}
	if got := roundTrip(t, Value{Tag: TagDbl, Dbl: 3.5}); got.Dbl != 3.5 {
		t.Fatalf("dbl round trip failed: %+v", got)
	}
	if got := roundTrip(t, Value{Tag: TagBool, Bool: true}); !got.Bool {
		t.Fatalf("bool round trip failed: %+v", got)
	}
	if got := roundTrip(t, Value{Tag: TagStr, Str: "hello"}); got.Str != "hello" {
		t.Fatalf("str round trip failed: %+v", got)
	}
	if got := roundTrip(t, Value{Tag: TagErr, ErrCode: ErrBadArg, Str: "bad"}); got.ErrCode != ErrBadArg || got.Str != "bad" {
		t.Fatalf("err round trip failed: %+v", got)
	}
}

func TestRoundTripArray(t *testing.T) {
	v := Value{Tag: TagArr, Arr: []Value{
		{Tag: TagStr, Str: "alice"},
		{Tag: TagDbl, Dbl: 1.5},
	}}
	got := roundTrip(t, v)
	if len(got.Arr) != 2 || got.Arr[0].Str != "alice" || got.Arr[1].Dbl != 1.5 {
		t.Fatalf("array round trip failed: %+v", got)
	}
}

func TestRoundTripMap(t *testing.T) {
	v := Value{Tag: TagMap, MapKeys: []Value{{Tag: TagStr, Str: "k"}}, MapVals: []Value{{Tag: TagInt, Int: 7}}}
	got := roundTrip(t, v)
	if len(got.MapKeys) != 1 || got.MapKeys[0].Str != "k" || got.MapVals[0].Int != 7 {
		t.Fatalf("map round trip failed: %+v", got)
	}
}

func TestParseRequestWellFormed(t *testing.T) {
	frame := EncodeRequest([]string{"set", "x", "42"})
	payloadLen := iobuf.DecodeU32(frame[:4])
	args, err := ParseRequest(frame[4 : 4+int(payloadLen)])
	if err != nil {
		t.Fatalf("ParseRequest error: %v", err)
	}
	want := []string{"set", "x", "42"}
	if len(args) != len(want) {
		t.Fatalf("args = %v, want %v", args, want)
	}
	for i := range want {
		if args[i] != want[i] {
			t.Fatalf("args = %v, want %v", args, want)
		}
	}
}

func TestParseRequestTruncatedArg(t *testing.T) {
	var payload iobuf.Buffer
	payload.AppendU32(1)
	payload.AppendU32(10) // claims 10 bytes but supplies none
	_, err := ParseRequest(payload.Bytes())
	if err != ErrMalformed {
		t.Fatalf("err = %v, want ErrMalformed", err)
	}
}

func TestParseRequestTrailingGarbage(t *testing.T) {
	var payload iobuf.Buffer
	payload.AppendU32(1)
	payload.AppendString("ok")
	payload.Append([]byte{0xFF}) // trailing byte not consumed
	_, err := ParseRequest(payload.Bytes())
	if err != ErrMalformed {
		t.Fatalf("err = %v, want ErrMalformed", err)
	}
}

func TestParseRequestTooManyArgs(t *testing.T) {
	var payload iobuf.Buffer
	payload.AppendU32(MaxArgs + 1)
	_, err := ParseRequest(payload.Bytes())
	if err != ErrMalformed {
		t.Fatalf("err = %v, want ErrMalformed", err)
	}
}

func TestFinishResponsePatchesLength(t *testing.T) {
	var b iobuf.Buffer
	off := BeginResponse(&b)
	EncodeStr(&b, "pong")
	FinishResponse(&b, off)

	payloadLen := iobuf.DecodeU32(b.Bytes()[off : off+4])
	if int(payloadLen) != b.Len()-off-4 {
		t.Fatalf("patched length %d, want %d", payloadLen, b.Len()-off-4)
	}
	v, _, err := Decode(b.Bytes()[off+4:])
	if err != nil || v.Str != "pong" {
		t.Fatalf("decode after finish failed: %+v, %v", v, err)
	}
}

func TestFinishResponseTruncatesOversize(t *testing.T) {
	var b iobuf.Buffer
	off := BeginResponse(&b)
	EncodeStr(&b, string(make([]byte, MaxMsg+1)))
	FinishResponse(&b, off)

	v, _, err := Decode(b.Bytes()[off+4:])
	if err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if v.Tag != TagErr || v.ErrCode != ErrTooBig {
		t.Fatalf("expected ERR TOO_BIG, got %+v", v)
	}
}
