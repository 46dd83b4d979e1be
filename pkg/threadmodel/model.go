package threadmodel

import (
	"fmt"

	"github.com/kdumptools/vmcore-gdbstub/pkg/rsp"
	"github.com/kdumptools/vmcore-gdbstub/pkg/vmcore"
)

// Model is the synthetic thread table: built once at startup from the
// dump's per-CPU prstatus records and an optional sidecar task table, and
// never mutated afterward except for the current-thread cursor. It
// satisfies rsp.ThreadSource.
type Model struct {
	order   []rsp.ThreadID
	threads map[rsp.ThreadID]thread
	current rsp.ThreadID
	defPid  uint32
}

var _ rsp.ThreadSource = (*Model)(nil)

func newModel(defPid uint32) *Model {
	return &Model{threads: make(map[rsp.ThreadID]thread), defPid: defPid}
}

func (m *Model) append(id rsp.ThreadID, regs Snapshot, extra string) {
	m.threads[id] = thread{id: id, regs: regs, extra: extra}
	m.order = append(m.order, id)
}

func (m *Model) Threads() []rsp.ThreadID {
	out := make([]rsp.ThreadID, len(m.order))
	copy(out, m.order)
	return out
}

func (m *Model) SetCurrent(id rsp.ThreadID) {
	if _, ok := m.threads[id]; ok {
		m.current = id
	}
}

func (m *Model) IsAlive(id rsp.ThreadID) bool {
	_, ok := m.threads[id]
	return ok
}

func (m *Model) Current() rsp.ThreadID {
	return m.current
}

func (m *Model) Regs(id rsp.ThreadID) (rsp.RegisterSnapshot, bool) {
	t, ok := m.threads[id]
	if !ok {
		return nil, false
	}
	return t.regs, true
}

func (m *Model) Extra(id rsp.ThreadID) string {
	return m.threads[id].extra
}

func (m *Model) DefaultPid() uint32 {
	return m.defPid
}

// cpuSnapshot builds a register snapshot from a dump's CPUStatus, already
// passed through regstack.Fixup by the adapter.
func cpuSnapshot(cs vmcore.CPUStatus) Snapshot {
	return Snapshot(cs.Regs)
}

// taskSnapshot builds a register snapshot loaded verbatim from a sidecar
// task entry -- no fixup, the sidecar is expected to already carry the
// aliased register names GDB wants.
func taskSnapshot(t SidecarTask) Snapshot {
	return Snapshot(t.Registers)
}

// NewKernelOnly builds the thread table for kernel-only mode: one thread
// per CPU, (1, c+1), extra-info naming the CPU index and its running pid
// or idle state. The current thread is the first CPU with a nonzero
// prstatus pid, falling back to (1, 1).
func NewKernelOnly(dump vmcore.Adapter) (*Model, error) {
	m := newModel(1)
	n := dump.CPUCount()
	currentSet := false
	for c := 0; c < n; c++ {
		cs, err := dump.CPUPrstatus(c)
		if err != nil {
			return nil, fmt.Errorf("threadmodel: cpu %d prstatus: %w", c, err)
		}
		id := rsp.ThreadID{Pid: 1, Tid: uint32(c + 1)}
		extra := fmt.Sprintf("CPU #%x idle", c)
		if cs.Pid != 0 {
			extra = fmt.Sprintf("CPU #%x pid %d", c, cs.Pid)
		}
		m.append(id, cpuSnapshot(cs), extra)
		if cs.Pid != 0 && !currentSet {
			m.current = id
			currentSet = true
		}
	}
	if !currentSet {
		m.current = rsp.ThreadID{Pid: 1, Tid: 1}
	}
	return m, nil
}

// NewKernelWithTasks builds the thread table for kernel-with-tasks mode:
// the same CPU-indexed threads as kernel-only, with extra-info upgraded to
// name the matching sidecar task where a CPU's prstatus pid equals a
// task's tid (the sidecar encodes a task's PID in its tid field), followed
// by one synthetic thread per sidecar task not already active on a CPU.
func NewKernelWithTasks(dump vmcore.Adapter, sc *Sidecar) (*Model, error) {
	m := newModel(1)
	n := dump.CPUCount()
	currentSet := false
	activeTids := make(map[uint32]bool)

	taskByTid := make(map[uint32]SidecarTask)
	for _, t := range sc.Threads {
		taskByTid[t.Tid] = t
	}

	for c := 0; c < n; c++ {
		cs, err := dump.CPUPrstatus(c)
		if err != nil {
			return nil, fmt.Errorf("threadmodel: cpu %d prstatus: %w", c, err)
		}
		id := rsp.ThreadID{Pid: 1, Tid: uint32(c + 1)}
		extra := fmt.Sprintf("CPU #%x idle", c)
		if cs.Pid != 0 {
			extra = fmt.Sprintf("CPU #%x pid %d", c, cs.Pid)
			if t, ok := taskByTid[cs.Pid]; ok {
				extra = fmt.Sprintf("pid %d LWP %d %q", t.Tid, t.Tid, t.Comm)
				activeTids[t.Tid] = true
			}
		}
		m.append(id, cpuSnapshot(cs), extra)
		if cs.Pid != 0 && !currentSet {
			m.current = id
			currentSet = true
		}
	}
	if !currentSet {
		m.current = rsp.ThreadID{Pid: 1, Tid: 1}
	}

	k := 1
	for _, t := range sc.Threads {
		if activeTids[t.Tid] {
			continue
		}
		id := rsp.ThreadID{Pid: 1, Tid: uint32(n) + uint32(k)}
		k++
		extra := fmt.Sprintf("pid %d LWP %d %q", t.Pid, t.Tid, t.Comm)
		m.append(id, taskSnapshot(t), extra)
	}
	return m, nil
}

// NewProcess builds the thread table for process mode: no CPU-indexed
// threads, one thread (pid, tid) per sidecar task. Before construction, the
// translation context is switched to the process's root page table via
// InstallUserRootPGT so that subsequent memory reads resolve process-
// virtual addresses. The current thread is any thread whose tid equals a
// CPU's prstatus pid, else the last constructed thread.
func NewProcess(dump vmcore.Adapter, sc *Sidecar) (*Model, error) {
	if err := dump.InstallUserRootPGT(sc.RootPGT); err != nil {
		return nil, fmt.Errorf("threadmodel: installing root page table: %w", err)
	}

	runningPids := make(map[uint32]bool)
	for c := 0; c < dump.CPUCount(); c++ {
		cs, err := dump.CPUPrstatus(c)
		if err != nil {
			return nil, fmt.Errorf("threadmodel: cpu %d prstatus: %w", c, err)
		}
		if cs.Pid != 0 {
			runningPids[cs.Pid] = true
		}
	}

	defPid := uint32(0)
	if len(sc.Threads) > 0 {
		defPid = sc.Threads[0].Pid
	}
	m := newModel(defPid)

	var last rsp.ThreadID
	haveCurrent := false
	for _, t := range sc.Threads {
		id := rsp.ThreadID{Pid: t.Pid, Tid: t.Tid}
		extra := fmt.Sprintf("pid %d LWP %d %q", t.Pid, t.Tid, t.Comm)
		m.append(id, taskSnapshot(t), extra)
		last = id
		if runningPids[t.Tid] {
			m.current = id
			haveCurrent = true
		}
	}
	if !haveCurrent {
		m.current = last
	}
	return m, nil
}
