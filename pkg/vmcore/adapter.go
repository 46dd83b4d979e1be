// Package vmcore implements the Dump Adapter: it treats a crash dump as an
// ELF core file, serves kernel-virtual memory reads over the core's PT_LOAD
// segments, decodes per-CPU prstatus notes into register snapshots, and
// walks per-architecture page tables to translate virtual addresses.
//
// Grounded on delve's pkg/proc/core, which parses the same ELF core/prstatus
// shape for userspace core files; this package reuses that approach for
// kernel vmcores, which the retrieved corpus has no dedicated parser for.
package vmcore

import (
	"fmt"

	"github.com/kdumptools/vmcore-gdbstub/pkg/regstack"
)

// MemoryFault is returned by Adapter.Read on any translation failure or
// unavailable page. It implements the rsp.MemoryFault shape structurally
// (same Addr field and Error method) without importing pkg/rsp, keeping the
// dependency direction adapter -> protocol instead of the other way.
type MemoryFault struct {
	Addr uint64
	Err  error
}

func (e *MemoryFault) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("vmcore: fault at %#x: %v", e.Addr, e.Err)
	}
	return fmt.Sprintf("vmcore: fault at %#x", e.Addr)
}

func (e *MemoryFault) Unwrap() error { return e.Err }

// CPUStatus is one CPU's prstatus record: its register snapshot and the pid
// the kernel recorded as running on it at crash time (0 if idle).
type CPUStatus struct {
	Regs map[string]uint64
	Pid  uint32
}

// Adapter is the narrow interface the rest of the stub consumes a dump
// through. No caller outside this package ever touches debug/elf, a
// prstatus struct, or a page-table entry directly.
type Adapter interface {
	// Read returns size bytes at the given kernel- (or, after
	// InstallUserRootPGT, process-) virtual address.
	Read(vaddr uint64, size int) ([]byte, error)
	Arch() regstack.Arch
	CPUCount() int
	CPUPrstatus(c int) (CPUStatus, error)
	// KernelOffset is vmcoreinfo's KERNELOFFSET, or 0 if absent.
	KernelOffset() uint64
	// InstallUserRootPGT switches the translator to a process address
	// space rooted at the physical address virt (itself kernel-virtual)
	// resolves to under the *current* translator.
	InstallUserRootPGT(virt uint64) error
}
