package vmcore

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/kdumptools/vmcore-gdbstub/pkg/regstack"
)

// newFakeMem builds a splicedMemory serving physical memory from a set of
// page-aligned buffers, standing in for a dump's real PT_LOAD-backed memory
// in page-table walk tests.
func newFakeMem(pages map[uint64][]byte) *splicedMemory {
	m := &splicedMemory{}
	for page, buf := range pages {
		m.add(bytes.NewReader(buf), page, 0x1000)
	}
	return m
}

func putPTE(page []byte, index uint64, value uint64) {
	binary.LittleEndian.PutUint64(page[index*8:], value)
}

func TestWalkX86_64FourLevel(t *testing.T) {
	const root, pdpt, pd, pt, dataPage = 0x1000, 0x2000, 0x3000, 0x4000, 0x5000
	pages := map[uint64][]byte{
		root: make([]byte, 0x1000),
		pdpt: make([]byte, 0x1000),
		pd:   make([]byte, 0x1000),
		pt:   make([]byte, 0x1000),
	}
	virt := uint64(0x0000563412345678)
	putPTE(pages[root], (virt>>39)&0x1ff, pdpt|1)
	putPTE(pages[pdpt], (virt>>30)&0x1ff, pd|1)
	putPTE(pages[pd], (virt>>21)&0x1ff, pt|1)
	putPTE(pages[pt], (virt>>12)&0x1ff, dataPage|1)

	tr := &pageTableTranslator{root: root, arch: regstack.X86_64, mem: newFakeMem(pages)}
	phys, err := tr.translate(virt)
	if err != nil {
		t.Fatalf("translate: %v", err)
	}
	want := dataPage | (virt & 0xfff)
	if phys != want {
		t.Fatalf("phys = %#x, want %#x", phys, want)
	}
}

func TestWalkX86_64NotPresentFaults(t *testing.T) {
	pages := map[uint64][]byte{0x1000: make([]byte, 0x1000)}
	tr := &pageTableTranslator{root: 0x1000, arch: regstack.X86_64, mem: newFakeMem(pages)}
	if _, err := tr.translate(0x400000); err == nil {
		t.Fatal("expected fault on not-present entry, got nil")
	}
}

func TestWalkAArch64FourLevel(t *testing.T) {
	const root, l1, l2, l3, dataPage = 0x10000, 0x20000, 0x30000, 0x40000, 0x50000
	pages := map[uint64][]byte{
		root: make([]byte, 0x1000),
		l1:   make([]byte, 0x1000),
		l2:   make([]byte, 0x1000),
		l3:   make([]byte, 0x1000),
	}
	virt := uint64(0xffff000012345678)
	putPTE(pages[root], (virt>>39)&0x1ff, l1|1)
	putPTE(pages[l1], (virt>>30)&0x1ff, l2|1)
	putPTE(pages[l2], (virt>>21)&0x1ff, l3|1)
	putPTE(pages[l3], (virt>>12)&0x1ff, dataPage|1)

	tr := &pageTableTranslator{root: root, arch: regstack.AArch64, mem: newFakeMem(pages)}
	phys, err := tr.translate(virt)
	if err != nil {
		t.Fatalf("translate: %v", err)
	}
	want := dataPage | (virt & 0xfff)
	if phys != want {
		t.Fatalf("phys = %#x, want %#x", phys, want)
	}
}

func TestWalkRISCV64Sv39(t *testing.T) {
	const root, l1, l0, dataPage = 0x10000, 0x20000, 0x30000, 0x40000
	pages := map[uint64][]byte{
		root: make([]byte, 0x1000),
		l1:   make([]byte, 0x1000),
		l0:   make([]byte, 0x1000),
	}
	virt := uint64(0x0000004012345678)
	const valid = 1
	const leafRWX = 1<<1 | 1<<2 | 1<<3
	putPTE(pages[root], (virt>>30)&0x1ff, (l1>>12)<<10|valid)
	putPTE(pages[l1], (virt>>21)&0x1ff, (l0>>12)<<10|valid)
	putPTE(pages[l0], (virt>>12)&0x1ff, (dataPage>>12)<<10|valid|leafRWX)

	tr := &pageTableTranslator{root: root, arch: regstack.RISCV64, mem: newFakeMem(pages)}
	phys, err := tr.translate(virt)
	if err != nil {
		t.Fatalf("translate: %v", err)
	}
	want := dataPage | (virt & 0xfff)
	if phys != want {
		t.Fatalf("phys = %#x, want %#x", phys, want)
	}
}

// TestDumpReadAcrossNonContiguousPages exercises a read that spans two
// adjacent virtual pages mapped, via a real page-table walk, to two
// physical pages that are far apart. A Read that only translates the
// starting address and then reads size contiguous bytes from that one
// physical base would stitch in the wrong bytes for the second page.
func TestDumpReadAcrossNonContiguousPages(t *testing.T) {
	const root, l1, l2, l3 = 0x10000, 0x20000, 0x30000, 0x40000
	const virtPage0, virtPage1 = uint64(0xffff000012340000), uint64(0xffff000012341000)
	const physPage0, physPage1 = uint64(0x500000), uint64(0x900000)

	page0 := make([]byte, 0x1000)
	page1 := make([]byte, 0x1000)
	for i := range page0 {
		page0[i] = 0xaa
	}
	for i := range page1 {
		page1[i] = 0xbb
	}

	pages := map[uint64][]byte{
		root:      make([]byte, 0x1000),
		l1:        make([]byte, 0x1000),
		l2:        make([]byte, 0x1000),
		l3:        make([]byte, 0x1000),
		physPage0: page0,
		physPage1: page1,
	}
	putPTE(pages[root], (virtPage0>>39)&0x1ff, l1|1)
	putPTE(pages[l1], (virtPage0>>30)&0x1ff, l2|1)
	putPTE(pages[l2], (virtPage0>>21)&0x1ff, l3|1)
	putPTE(pages[l3], (virtPage0>>12)&0x1ff, physPage0|1)
	putPTE(pages[l3], (virtPage1>>12)&0x1ff, physPage1|1)

	mem := newFakeMem(pages)
	d := &Dump{
		arch:      regstack.AArch64,
		mem:       mem,
		translate: &pageTableTranslator{root: root, arch: regstack.AArch64, mem: mem},
		tlb:       newTLB(),
	}

	const readOff = 0xffc
	buf, err := d.Read(virtPage0+readOff, 8)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	want := append(append([]byte{}, page0[readOff:]...), page1[:8-(0x1000-readOff)]...)
	if !bytes.Equal(buf, want) {
		t.Fatalf("Read across page boundary = %x, want %x", buf, want)
	}
}

func TestLinearTranslator(t *testing.T) {
	tr := linearTranslator{offset: 0xffffffff80000000}
	phys, err := tr.translate(0xffffffff80001000)
	if err != nil {
		t.Fatalf("translate: %v", err)
	}
	if phys != 0x1000 {
		t.Fatalf("phys = %#x, want 0x1000", phys)
	}
	if _, err := tr.translate(0); err == nil {
		t.Fatal("expected error translating address below offset")
	}
}
