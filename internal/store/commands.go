package store

import (
	"strconv"
	"strings"

	"loopkv/internal/iobuf"
	"loopkv/internal/minheap"
	"loopkv/internal/proto"
	"loopkv/internal/zset"
)

// Handler is the shared signature of every command: the parsed
// argument vector (including the command word at index 0), the
// current monotonic millisecond clock reading, and the output buffer
// the handler appends its typed response to. Matches spec §4.G /
// design note "per-command handlers share signature (args, &ServerData, out)".
type Handler func(s *Store, args []string, nowMs int64, out *iobuf.Buffer)

// Command pairs a handler with its required argument count (including
// the command word), mirroring the teacher's saveDBCommand table.
type Command struct {
	Arity   int
	Handler Handler
}

// Commands is the flat, closed dispatch table: command word lookup is
// a single map access, not a polymorphic registry, because the command
// set never grows at runtime (spec design note).
var Commands = map[string]Command{
	"ping":    {Arity: 1, Handler: cmdPing},
	"get":     {Arity: 2, Handler: cmdGet},
	"set":     {Arity: 3, Handler: cmdSet},
	"del":     {Arity: 2, Handler: cmdDel},
	"keys":    {Arity: 1, Handler: cmdKeys},
	"pexpire": {Arity: 3, Handler: cmdPexpire},
	"pttl":    {Arity: 2, Handler: cmdPttl},
	"zadd":    {Arity: 4, Handler: cmdZAdd},
	"zrem":    {Arity: 3, Handler: cmdZRem},
	"zscore":  {Arity: 3, Handler: cmdZScore},
	"zquery":  {Arity: 6, Handler: cmdZQuery},
}

// Dispatch looks up args[0] and runs its handler, or appends ERR
// UNKNOWN if the command word isn't recognized or the arity mismatches
// (the connection layer, component I, is responsible for deciding
// whether the enclosing frame was malformed before ever calling this).
func Dispatch(s *Store, args []string, nowMs int64, out *iobuf.Buffer) {
	if len(args) == 0 {
		proto.EncodeErr(out, proto.ErrUnknown, "empty command")
		return
	}
	cmd, ok := Commands[strings.ToLower(args[0])]
	if !ok {
		proto.EncodeErr(out, proto.ErrUnknown, "unknown command '"+args[0]+"'")
		return
	}
	if cmd.Arity != len(args) {
		proto.EncodeErr(out, proto.ErrUnknown, "wrong number of arguments")
		return
	}
	cmd.Handler(s, args, nowMs, out)
}

func cmdPing(_ *Store, _ []string, _ int64, out *iobuf.Buffer) {
	proto.EncodeStr(out, "pong")
}

func cmdGet(s *Store, args []string, _ int64, out *iobuf.Buffer) {
	e := s.lookup(args[1])
	if e == nil {
		proto.EncodeNil(out)
		return
	}
	if e.Type != TypeString {
		proto.EncodeErr(out, proto.ErrBadTyp, "key holds the wrong value type")
		return
	}
	proto.EncodeStr(out, e.Str)
}

func cmdSet(s *Store, args []string, _ int64, out *iobuf.Buffer) {
	e := s.lookup(args[1])
	if e == nil {
		e = &Entry{Key: args[1], Type: TypeString, Str: args[2]}
		s.insert(e)
		proto.EncodeNil(out)
		return
	}
	if e.Type != TypeString {
		proto.EncodeErr(out, proto.ErrBadTyp, "key holds the wrong value type")
		return
	}
	e.Str = args[2]
	proto.EncodeNil(out)
}

func cmdDel(s *Store, args []string, _ int64, out *iobuf.Buffer) {
	e := s.lookup(args[1])
	if e == nil {
		proto.EncodeInt(out, 0)
		return
	}
	s.remove(e)
	proto.EncodeInt(out, 1)
}

func cmdKeys(s *Store, _ []string, _ int64, out *iobuf.Buffer) {
	keys := s.keysIdx.Items()
	var lines []string
	for _, key := range keys {
		e := s.lookup(key)
		if e == nil {
			continue
		}
		lines = append(lines, key+" : "+entryValueSummary(e))
	}
	proto.EncodeArrHeader(out, len(lines))
	for _, line := range lines {
		proto.EncodeStr(out, line)
	}
}

func entryValueSummary(e *Entry) string {
	switch e.Type {
	case TypeString:
		return e.Str
	case TypeSortedSet:
		return "<sorted-set:" + strconv.Itoa(e.ZSet.Len()) + ">"
	default:
		return ""
	}
}

func cmdPexpire(s *Store, args []string, nowMs int64, out *iobuf.Buffer) {
	ms, err := strconv.ParseInt(args[2], 10, 64)
	if err != nil {
		proto.EncodeErr(out, proto.ErrBadArg, "expected integer milliseconds")
		return
	}
	e := s.lookup(args[1])
	if e == nil {
		proto.EncodeInt(out, 0)
		return
	}
	s.setTTL(e, ms, nowMs)
	proto.EncodeInt(out, 1)
}

func cmdPttl(s *Store, args []string, nowMs int64, out *iobuf.Buffer) {
	e := s.lookup(args[1])
	if e == nil {
		proto.EncodeInt(out, -2)
		return
	}
	if e.heapIdx == minheap.NoIndex {
		proto.EncodeInt(out, -1)
		return
	}
	item := s.ttl.At(e.heapIdx)
	remain := int64(item.Val) - nowMs
	if remain < 0 {
		remain = 0
	}
	proto.EncodeInt(out, remain)
}

func cmdZAdd(s *Store, args []string, _ int64, out *iobuf.Buffer) {
	score, err := strconv.ParseFloat(args[2], 64)
	if err != nil {
		proto.EncodeErr(out, proto.ErrBadArg, "expected numeric score")
		return
	}
	e := s.lookup(args[1])
	if e == nil {
		e = &Entry{Key: args[1], Type: TypeSortedSet, ZSet: zset.New()}
		s.insert(e)
	} else if e.Type != TypeSortedSet {
		proto.EncodeErr(out, proto.ErrBadTyp, "key holds the wrong value type")
		return
	}
	added := e.ZSet.Insert(args[3], score)
	if added {
		proto.EncodeInt(out, 1)
	} else {
		proto.EncodeInt(out, 0)
	}
}

func cmdZRem(s *Store, args []string, _ int64, out *iobuf.Buffer) {
	e := s.lookup(args[1])
	if e == nil {
		proto.EncodeInt(out, 0)
		return
	}
	if e.Type != TypeSortedSet {
		proto.EncodeErr(out, proto.ErrBadTyp, "key holds the wrong value type")
		return
	}
	member := e.ZSet.Lookup(args[2])
	if member == nil {
		proto.EncodeInt(out, 0)
		return
	}
	e.ZSet.Delete(member)
	proto.EncodeInt(out, 1)
}

func cmdZScore(s *Store, args []string, _ int64, out *iobuf.Buffer) {
	e := s.lookup(args[1])
	if e == nil {
		proto.EncodeNil(out)
		return
	}
	if e.Type != TypeSortedSet {
		proto.EncodeErr(out, proto.ErrBadTyp, "key holds the wrong value type")
		return
	}
	member := e.ZSet.Lookup(args[2])
	if member == nil {
		proto.EncodeNil(out)
		return
	}
	proto.EncodeDbl(out, member.Score)
}

func cmdZQuery(s *Store, args []string, _ int64, out *iobuf.Buffer) {
	score, err := strconv.ParseFloat(args[2], 64)
	if err != nil {
		proto.EncodeErr(out, proto.ErrBadArg, "expected numeric score")
		return
	}
	name := args[3]
	offset, err := strconv.ParseInt(args[4], 10, 64)
	if err != nil {
		proto.EncodeErr(out, proto.ErrBadArg, "expected integer offset")
		return
	}
	limit, err := strconv.ParseInt(args[5], 10, 64)
	if err != nil {
		proto.EncodeErr(out, proto.ErrBadArg, "expected integer limit")
		return
	}

	e := s.lookup(args[1])
	if e == nil {
		proto.EncodeArrHeader(out, 0)
		return
	}
	if e.Type != TypeSortedSet {
		proto.EncodeErr(out, proto.ErrBadTyp, "key holds the wrong value type")
		return
	}
	if limit <= 0 {
		proto.EncodeArrHeader(out, 0)
		return
	}

	node := e.ZSet.SeekGE(score, name)
	if offset != 0 {
		node = zset.Offset(node, offset)
	}
	if node == nil {
		proto.EncodeArrHeader(out, 0)
		return
	}

	var names []string
	var scores []float64
	for node != nil && int64(len(names)) < limit {
		names = append(names, node.Name)
		scores = append(scores, node.Score)
		node = zset.Offset(node, 1)
	}

	proto.EncodeArrHeader(out, len(names)*2)
	for i := range names {
		proto.EncodeStr(out, names[i])
		proto.EncodeDbl(out, scores[i])
	}
}
