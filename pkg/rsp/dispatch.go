package rsp

import (
	"encoding/hex"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/kdumptools/vmcore-gdbstub/pkg/regstack"
)

// MemoryReader is the slice of the dump adapter (C1) the dispatcher needs.
type MemoryReader interface {
	ReadVirtual(addr uint64, size int) ([]byte, error)
}

// MemoryFault is an error a MemoryReader may return on a translation
// failure or unavailable page. The dispatcher maps any error from
// ReadVirtual, of this type or another, to "E14".
type MemoryFault struct {
	Addr uint64
}

func (e *MemoryFault) Error() string {
	return fmt.Sprintf("rsp: memory fault at %#x", e.Addr)
}

// RegisterSnapshot is an immutable register-name -> value mapping, as
// produced by the thread model.
type RegisterSnapshot interface {
	Value(name string) (uint64, bool)
}

// ThreadSource is the slice of the thread model (C3) the dispatcher needs.
type ThreadSource interface {
	Threads() []ThreadID
	SetCurrent(id ThreadID)
	IsAlive(id ThreadID) bool
	Current() ThreadID
	Regs(id ThreadID) (RegisterSnapshot, bool)
	Extra(id ThreadID) string
	DefaultPid() uint32
}

// Session carries the mutable flags a dispatched command may flip, plus the
// handful of pieces of state that outlive a single packet (the thread
// enumeration cursor, the register layout for the dump's architecture).
type Session struct {
	Threads ThreadSource
	Memory  MemoryReader
	Layout  regstack.Layout

	NoAckMode    bool
	Multiprocess bool
	BigPackets   bool
	Running      bool

	cursor     []ThreadID
	cursorDone bool
}

// NewSession constructs a Session ready to dispatch packets. Running starts
// true; a D/k/vKill/D;pid command latches it false.
func NewSession(threads ThreadSource, mem MemoryReader, layout regstack.Layout) *Session {
	return &Session{
		Threads: threads,
		Memory:  mem,
		Layout:  layout,
		Running: true,
	}
}

type literalEntry struct {
	packet  string
	handler func(s *Session) []byte
}

type regexEntry struct {
	pattern *regexp.Regexp
	handler func(s *Session, m []string) []byte
}

var literalTable = []literalEntry{
	{"g", handleReadRegisters},
	{"qfThreadInfo", handleFirstThreadInfo},
	{"qsThreadInfo", handleNextThreadInfo},
	{"QStartNoAckMode", handleStartNoAckMode},
	{"vMustReplyEmpty", func(s *Session) []byte { return nil }},
	{"Hc-1", func(s *Session) []byte { return []byte("OK") }},
	{"?", handleStopReason},
	{"D", handleDetach},
	{"k", handleKill},
}

// regexTable is walked in declared order, most-frequent-first per §4.5.
var regexTable = []regexEntry{
	{regexp.MustCompile(`^m([0-9a-f]+),([0-9a-f]+)$`), handleReadMemory},
	{regexp.MustCompile(`^H[a-z](p?[0-9a-f.]+)$`), handleSelectThread},
	{regexp.MustCompile(`^T(p?[0-9a-f.]+)$`), handleThreadAlive},
	{regexp.MustCompile(`^qSupported:(.+)$`), handleQSupported},
	{regexp.MustCompile(`^qThreadExtraInfo,(p?[0-9a-f.]+)$`), handleThreadExtraInfo},
	{regexp.MustCompile(`^D;[0-9a-f]+$`), handleDetachPid},
	{regexp.MustCompile(`^vKill;(p?[0-9a-f.]+)$`), handleKillPid},
	{regexp.MustCompile(`^qAttached:(.+)$`), handleQAttached},
}

// Dispatch maps a received packet payload to its handler and returns the
// reply payload. Unknown packets reply with an empty payload. No handler
// panics out to the caller: a failed memory read is mapped to E14 inline.
func (s *Session) Dispatch(packet []byte) []byte {
	str := string(packet)

	for _, e := range literalTable {
		if str == e.packet {
			return e.handler(s)
		}
	}
	for _, e := range regexTable {
		if m := e.pattern.FindStringSubmatch(str); m != nil {
			return e.handler(s, m[1:])
		}
	}
	return nil
}

func handleReadRegisters(s *Session) []byte {
	snap, ok := s.Threads.Regs(s.Threads.Current())
	var out []byte
	for _, r := range s.Layout {
		if ok {
			if v, present := snap.Value(r.Name); present {
				out = append(out, encodeLittleEndianHex(v, r.Width)...)
				continue
			}
		}
		out = append(out, unavailableMarker(r.Width*2)...)
	}
	return out
}

func unavailableMarker(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = 'x'
	}
	return b
}

// encodeLittleEndianHex renders v's low width bytes, little-endian, as
// lowercase hex -- directly, without the big-endian-then-reinterpret detour
// the original design note warns against.
func encodeLittleEndianHex(v uint64, width int) []byte {
	buf := make([]byte, width)
	for i := 0; i < width; i++ {
		buf[i] = byte(v >> (8 * i))
	}
	return []byte(hex.EncodeToString(buf))
}

func handleFirstThreadInfo(s *Session) []byte {
	s.cursor = s.Threads.Threads()
	s.cursorDone = false

	if s.BigPackets {
		ids := make([]string, len(s.cursor))
		for i, id := range s.cursor {
			ids[i] = formatThreadID(id, s.Multiprocess)
		}
		s.cursor = nil
		s.cursorDone = true
		if len(ids) == 0 {
			return []byte("l")
		}
		return []byte("m" + strings.Join(ids, ","))
	}

	if len(s.cursor) == 0 {
		return []byte("l")
	}
	id := s.cursor[0]
	s.cursor = s.cursor[1:]
	return []byte("m" + formatThreadID(id, s.Multiprocess))
}

func handleNextThreadInfo(s *Session) []byte {
	if s.BigPackets {
		return []byte("l")
	}
	if len(s.cursor) == 0 {
		return []byte("l")
	}
	id := s.cursor[0]
	s.cursor = s.cursor[1:]
	return []byte("m" + formatThreadID(id, s.Multiprocess))
}

func handleStartNoAckMode(s *Session) []byte {
	s.NoAckMode = true
	return []byte("OK")
}

func handleStopReason(s *Session) []byte {
	cur := s.Threads.Current()
	return []byte(fmt.Sprintf("T05thread:%s;", formatThreadID(cur, s.Multiprocess)))
}

func handleDetach(s *Session) []byte {
	s.Running = false
	return []byte("OK")
}

func handleKill(s *Session) []byte {
	s.Running = false
	return nil
}

func handleDetachPid(s *Session, m []string) []byte {
	s.Running = false
	return []byte("OK")
}

func handleKillPid(s *Session, m []string) []byte {
	s.Running = false
	return nil
}

func handleReadMemory(s *Session, m []string) []byte {
	addr, err1 := strconv.ParseUint(m[0], 16, 64)
	size, err2 := strconv.ParseUint(m[1], 16, 64)
	if err1 != nil || err2 != nil {
		return []byte("E14")
	}
	data, err := s.Memory.ReadVirtual(addr, int(size))
	if err != nil {
		return []byte("E14")
	}
	return []byte(hex.EncodeToString(data))
}

func handleSelectThread(s *Session, m []string) []byte {
	id, err := parseThreadID(m[0], s.Threads.DefaultPid())
	if err == nil {
		s.Threads.SetCurrent(id)
	}
	return []byte("OK")
}

func handleThreadAlive(s *Session, m []string) []byte {
	id, err := parseThreadID(m[0], s.Threads.DefaultPid())
	if err != nil || !s.Threads.IsAlive(id) {
		return []byte("E03")
	}
	return []byte("OK")
}

func handleQSupported(s *Session, m []string) []byte {
	for _, feature := range strings.Split(m[0], ";") {
		if feature == "multiprocess+" {
			s.Multiprocess = true
		}
	}
	s.BigPackets = true
	return []byte("multiprocess+;QStartNoAckMode+")
}

func handleThreadExtraInfo(s *Session, m []string) []byte {
	id, err := parseThreadID(m[0], s.Threads.DefaultPid())
	if err != nil {
		return nil
	}
	return []byte(hex.EncodeToString([]byte(s.Threads.Extra(id))))
}

func handleQAttached(s *Session, m []string) []byte {
	return []byte("1")
}
