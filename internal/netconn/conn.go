// Package netconn implements one connection's state machine: the
// tri-state intent, the incoming/outgoing byte buffers, the frame
// extraction loop, and the read/write handlers the event loop calls on
// readiness. Grounded on the teacher's Connection/ReadMsg/WriterMsg in
// src/sever.go, adapted from goroutine-per-connection channels to the
// non-blocking single-loop model spec.md requires.
package netconn

import (
	"loopkv/internal/iobuf"
	"loopkv/internal/llist"
	"loopkv/internal/proto"
	"loopkv/internal/store"
)

// scratchSize is the fixed-size buffer one read syscall drains into
// before its bytes are appended to Incoming, per spec §4.I.
const scratchSize = 64 * 1024

// Conn is one client connection's full mutable state.
type Conn struct {
	FD   int
	Incoming iobuf.Buffer
	Outgoing iobuf.Buffer

	WantRead  bool
	WantWrite bool
	WantClose bool

	LastActivityMs int64
	IdleNode       llist.Node[*Conn]

	maxMsg int
}

// New constructs a freshly accepted connection: want_read, not
// want_write, not want_close, per spec §4.I.
func New(fd int, maxMsg int, nowMs int64) *Conn {
	return &Conn{
		FD:             fd,
		WantRead:       true,
		LastActivityMs: nowMs,
		maxMsg:         maxMsg,
	}
}

// scratch is one package-level buffer reused across OnReadable calls,
// since the event loop is single-threaded and never calls two connections'
// handlers concurrently.
var scratch = make([]byte, scratchSize)

// OnReadable is called when the poller reports the fd is read-ready. It
// drains available bytes (the caller supplies the raw read via readFn,
// since the actual syscall lives in the eventloop package next to
// epoll), extracts as many complete frames as are buffered, dispatches
// each to the store, and flips to want_write if any response was
// produced.
//
// readFn must behave like a single non-blocking read(2): n>0 bytes
// read, n==0 clean EOF, or an error (including EAGAIN, surfaced as
// (0, nil) by the caller — see eventloop for the actual translation).
func (c *Conn) OnReadable(s *store.Store, nowMs int64, readFn func([]byte) (int, error)) {
	n, err := readFn(scratch)
	if err != nil {
		c.WantClose = true
		return
	}
	if n == 0 {
		c.WantClose = true
		return
	}
	c.Incoming.Append(scratch[:n])
	c.LastActivityMs = nowMs

	produced := false
	for c.extractOneFrame(s, nowMs) {
		produced = true
	}
	if produced {
		c.WantRead = false
		c.WantWrite = true
	}
}

// extractOneFrame parses and dispatches at most one request frame from
// the front of Incoming. Returns true if a frame was consumed (so the
// caller should try again — there may be more buffered), false if
// nothing could be extracted yet (need more bytes, or want_close was
// set for an oversized frame).
func (c *Conn) extractOneFrame(s *store.Store, nowMs int64) bool {
	buf := c.Incoming.Bytes()
	if len(buf) < 4 {
		return false
	}
	payloadLen := iobuf.DecodeU32(buf[:4])
	if int(payloadLen) > c.maxMsg {
		c.WantClose = true
		return false
	}
	frameLen := 4 + int(payloadLen)
	if len(buf) < frameLen {
		return false
	}

	args, err := proto.ParseRequest(buf[4:frameLen])
	off := proto.BeginResponse(&c.Outgoing)
	if err != nil {
		proto.EncodeErr(&c.Outgoing, proto.ErrUnknown, "malformed request")
	} else {
		store.Dispatch(s, args, nowMs, &c.Outgoing)
	}
	proto.FinishResponse(&c.Outgoing, off)

	c.Incoming.Consume(frameLen)
	return true
}

// OnWritable is called when the poller reports the fd is write-ready.
// writeFn must behave like a single non-blocking write(2): n>=0 bytes
// written, or an error. EAGAIN must be surfaced by the caller as
// (0, nil) (see eventloop), in which case OnWritable simply returns and
// waits for the next readiness notification.
func (c *Conn) OnWritable(writeFn func([]byte) (int, error)) {
	if c.Outgoing.Len() == 0 {
		c.WantWrite = false
		c.WantRead = true
		return
	}
	n, err := writeFn(c.Outgoing.Bytes())
	if err != nil {
		c.WantClose = true
		return
	}
	if n == 0 {
		return
	}
	c.Outgoing.Consume(n)
	if c.Outgoing.Len() == 0 {
		c.WantWrite = false
		c.WantRead = true
	}
}
