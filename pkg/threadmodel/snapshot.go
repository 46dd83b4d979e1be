// Package threadmodel builds and owns the synthetic thread table GDB sees:
// one entry per CPU (kernel modes) or per sidecar task (process mode), each
// carrying an immutable register snapshot and an extra-info string.
// Grounded on delve's pkg/proc thread abstraction in shape (a table of
// identities each owning a register source) even though delve's threads are
// live ptrace-backed processes and these are frozen dump-derived records.
package threadmodel

import "github.com/kdumptools/vmcore-gdbstub/pkg/rsp"

// Snapshot is an immutable register-name -> value mapping. It satisfies
// rsp.RegisterSnapshot.
type Snapshot map[string]uint64

func (s Snapshot) Value(name string) (uint64, bool) {
	v, ok := s[name]
	return v, ok
}

var _ rsp.RegisterSnapshot = Snapshot(nil)

// thread is one synthetic thread's identity, register snapshot, and
// extra-info string, as constructed once at startup and never mutated.
type thread struct {
	id    rsp.ThreadID
	regs  Snapshot
	extra string
}
