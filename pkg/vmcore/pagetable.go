package vmcore

import (
	"fmt"

	"github.com/kdumptools/vmcore-gdbstub/pkg/regstack"
)

// translator converts a virtual address into a physical one. The dump
// adapter owns exactly one at a time; InstallUserRootPGT swaps it.
//
// This is deliberately minimal -- see the Dump Adapter section (4.1) of
// SPEC_FULL.md.
// Huge pages, 5-level paging, and non-default granules are not walked; a
// page table entry using any of those faults the same as an unmapped one.
type translator interface {
	translate(virt uint64) (uint64, error)
}

// linearTranslator resolves a direct-mapped kernel virtual address by
// subtracting a fixed offset. Used before install_user_rootpgt is ever
// called: kernel-only and kernel-with-tasks modes only ever read CPU
// register values and the directly-mapped regions of kernel memory.
type linearTranslator struct {
	offset uint64
}

func (t linearTranslator) translate(virt uint64) (uint64, error) {
	if virt < t.offset {
		return 0, fmt.Errorf("vmcore: virtual address %#x below kernel offset %#x", virt, t.offset)
	}
	return virt - t.offset, nil
}

// pageTableTranslator walks a real multi-level page table rooted at a
// physical address, read from the dump's own memory. Installed by
// InstallUserRootPGT once a process's root page table has been located.
type pageTableTranslator struct {
	root uint64
	arch regstack.Arch
	mem  *splicedMemory
}

func (t *pageTableTranslator) translate(virt uint64) (uint64, error) {
	switch t.arch {
	case regstack.X86_64:
		return t.walkX86_64(virt)
	case regstack.AArch64:
		return t.walkAArch64(virt)
	case regstack.RISCV64:
		return t.walkRISCV64(virt)
	}
	return 0, fmt.Errorf("vmcore: no page table walker for architecture %q", t.arch)
}

func (t *pageTableTranslator) readEntry(tableAddr uint64, index uint64) (uint64, error) {
	buf := make([]byte, 8)
	if err := t.mem.readAt(buf, tableAddr+index*8); err != nil {
		return 0, err
	}
	var v uint64
	for i := 7; i >= 0; i-- {
		v = v<<8 | uint64(buf[i])
	}
	return v, nil
}

const pteAddrMask = 0x000ffffffffff000

// walkX86_64 walks a standard 4-level (PML4/PDPT/PD/PT) 4KB-page table.
func (t *pageTableTranslator) walkX86_64(virt uint64) (uint64, error) {
	const present = 1 << 0
	const pageSize = 1 << 7
	table := t.root
	shifts := []uint{39, 30, 21, 12}
	for _, shift := range shifts {
		idx := (virt >> shift) & 0x1ff
		entry, err := t.readEntry(table, idx)
		if err != nil {
			return 0, err
		}
		if entry&present == 0 {
			return 0, fmt.Errorf("vmcore: page table entry for %#x not present at level shift %d", virt, shift)
		}
		if shift != 39 && shift != 12 && entry&pageSize != 0 {
			return 0, fmt.Errorf("vmcore: huge page at %#x not supported", virt)
		}
		table = entry & pteAddrMask
	}
	return table | (virt & 0xfff), nil
}

// walkAArch64 walks a standard 4KB-granule, 4-level (L0-L3) table.
func (t *pageTableTranslator) walkAArch64(virt uint64) (uint64, error) {
	const valid = 1 << 0
	table := t.root
	shifts := []uint{39, 30, 21, 12}
	for _, shift := range shifts {
		idx := (virt >> shift) & 0x1ff
		entry, err := t.readEntry(table, idx)
		if err != nil {
			return 0, err
		}
		if entry&valid == 0 {
			return 0, fmt.Errorf("vmcore: page table entry for %#x not valid at level shift %d", virt, shift)
		}
		table = entry & pteAddrMask
	}
	return table | (virt & 0xfff), nil
}

// walkRISCV64 walks a 3-level Sv39 table. A PTE is a leaf once any of its
// R/W/X bits are set; this implementation only resolves leaves found at the
// final (4KB) level, matching the minimal-walker framing above.
func (t *pageTableTranslator) walkRISCV64(virt uint64) (uint64, error) {
	const valid = 1 << 0
	const rwx = 1<<1 | 1<<2 | 1<<3
	table := t.root
	shifts := []uint{30, 21, 12}
	for _, shift := range shifts {
		idx := (virt >> shift) & 0x1ff
		entry, err := t.readEntry(table, idx)
		if err != nil {
			return 0, err
		}
		if entry&valid == 0 {
			return 0, fmt.Errorf("vmcore: page table entry for %#x not valid at level shift %d", virt, shift)
		}
		if entry&rwx != 0 && shift != 12 {
			return 0, fmt.Errorf("vmcore: superpage at %#x not supported", virt)
		}
		ppn := (entry >> 10) & 0xfffffffffff
		table = ppn << 12
	}
	return table | (virt & 0xfff), nil
}
