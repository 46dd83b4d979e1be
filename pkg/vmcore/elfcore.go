package vmcore

import (
	"bytes"
	"debug/elf"
	"encoding/binary"
	"fmt"
	"io"
	"strconv"

	"github.com/kdumptools/vmcore-gdbstub/pkg/regstack"
)

// Dump is the concrete Adapter backed by an ELF core file. Grounded on
// pkg/proc/core/linux_core.go's readLinuxCore: same PT_NOTE/NT_PRSTATUS and
// PT_LOAD walk, adapted from a single userspace process's address space to
// a kernel's physical memory plus a page-table translator.
type Dump struct {
	arch regstack.Arch
	mem  *splicedMemory
	cpus []CPUStatus
	info map[string]string

	kernelOffset uint64

	translate translator
	gen       uint64
	tlb       *tlb
}

var _ Adapter = (*Dump)(nil)

// elfNotesHdr mirrors the SysV note header; identical on 32 and 64-bit.
type elfNotesHdr struct {
	Namesz uint32
	Descsz uint32
	Type   uint32
}

type elfNote struct {
	Type elf.NType
	Name string
	Desc []byte
}

// Open parses corePath as an ELF core file and returns a ready-to-use Dump.
func Open(corePath string) (*Dump, error) {
	f, err := elf.Open(corePath)
	if err != nil {
		return nil, fmt.Errorf("vmcore: opening %s: %w", corePath, err)
	}
	if f.Type != elf.ET_CORE {
		return nil, fmt.Errorf("vmcore: %s is not an ELF core file", corePath)
	}

	arch, err := archFromMachine(f.Machine)
	if err != nil {
		return nil, err
	}

	notes, err := readAllNotes(f)
	if err != nil {
		return nil, fmt.Errorf("vmcore: reading notes: %w", err)
	}

	d := &Dump{arch: arch, mem: &splicedMemory{}, info: map[string]string{}, tlb: newTLB()}

	for _, n := range notes {
		switch {
		case n.Type == elf.NT_PRSTATUS:
			pid, regs, err := decodePrstatus(arch, n.Desc)
			if err != nil {
				return nil, fmt.Errorf("vmcore: decoding prstatus for CPU %d: %w", len(d.cpus), err)
			}
			regstack.Fixup(arch, regs)
			d.cpus = append(d.cpus, CPUStatus{Regs: regs, Pid: pid})
		case n.Name == vmcoreinfoNoteName:
			for k, v := range parseVMCoreInfo(n.Desc) {
				d.info[k] = v
			}
		}
	}

	for _, prog := range f.Progs {
		if prog.Type != elf.PT_LOAD || prog.Filesz == 0 {
			continue
		}
		d.mem.add(prog.ReaderAt, prog.Paddr, prog.Filesz)
	}

	if off, ok := vmcoreinfoHex(d.info, "KERNELOFFSET"); ok {
		d.kernelOffset = off
	}
	d.translate = linearTranslator{offset: d.kernelOffset}

	return d, nil
}

func archFromMachine(m elf.Machine) (regstack.Arch, error) {
	switch m {
	case elf.EM_X86_64:
		return regstack.X86_64, nil
	case elf.EM_AARCH64:
		return regstack.AArch64, nil
	case elf.EM_RISCV:
		return regstack.RISCV64, nil
	default:
		return "", fmt.Errorf("vmcore: unsupported machine type %v", m)
	}
}

func readAllNotes(f *elf.File) ([]elfNote, error) {
	var out []elfNote
	for _, prog := range f.Progs {
		if prog.Type != elf.PT_NOTE {
			continue
		}
		r := prog.Open()
		for {
			n, err := readOneNote(r)
			if err == io.EOF {
				break
			}
			if err != nil {
				return nil, err
			}
			out = append(out, n)
		}
	}
	return out, nil
}

func readOneNote(r io.ReadSeeker) (elfNote, error) {
	var hdr elfNotesHdr
	if err := binary.Read(r, binary.LittleEndian, &hdr); err != nil {
		return elfNote{}, err // unwrapped: callers check for io.EOF
	}
	name := make([]byte, hdr.Namesz)
	if _, err := io.ReadFull(r, name); err != nil {
		return elfNote{}, fmt.Errorf("vmcore: reading note name: %w", err)
	}
	if err := skipToAlignment(r, 4); err != nil {
		return elfNote{}, err
	}
	desc := make([]byte, hdr.Descsz)
	if _, err := io.ReadFull(r, desc); err != nil {
		return elfNote{}, fmt.Errorf("vmcore: reading note desc: %w", err)
	}
	if err := skipToAlignment(r, 4); err != nil {
		return elfNote{}, err
	}
	return elfNote{Type: elf.NType(hdr.Type), Name: string(bytes.TrimRight(name, "\x00")), Desc: desc}, nil
}

func skipToAlignment(r io.ReadSeeker, align int64) error {
	pos, err := r.Seek(0, io.SeekCurrent)
	if err != nil {
		return err
	}
	if rem := pos % align; rem != 0 {
		if _, err := r.Seek(align-rem, io.SeekCurrent); err != nil {
			return err
		}
	}
	return nil
}

// Read implements Adapter. A request spanning more than one page is split
// into per-page translations and spliced together: under a
// pageTableTranslator, consecutive virtual pages need not map to
// consecutive physical ones, so translating only the first page and
// reading size bytes from it would silently return the wrong bytes for
// the remainder of the range.
func (d *Dump) Read(vaddr uint64, size int) ([]byte, error) {
	const pageSize = uint64(1) << tlbPageShift
	buf := make([]byte, size)
	for off := 0; off < size; {
		va := vaddr + uint64(off)
		chunk := int(pageSize - va&(pageSize-1))
		if rem := size - off; chunk > rem {
			chunk = rem
		}

		phys, ok := d.tlb.lookup(d.gen, va)
		if !ok {
			translated, err := d.translate.translate(va)
			if err != nil {
				return nil, &MemoryFault{Addr: va, Err: err}
			}
			phys = translated
			d.tlb.insert(d.gen, va, phys)
		}
		if err := d.mem.readAt(buf[off:off+chunk], phys); err != nil {
			return nil, &MemoryFault{Addr: va, Err: err}
		}
		off += chunk
	}
	return buf, nil
}

// Arch implements Adapter.
func (d *Dump) Arch() regstack.Arch { return d.arch }

// CPUCount implements Adapter.
func (d *Dump) CPUCount() int { return len(d.cpus) }

// CPUPrstatus implements Adapter.
func (d *Dump) CPUPrstatus(c int) (CPUStatus, error) {
	if c < 0 || c >= len(d.cpus) {
		return CPUStatus{}, fmt.Errorf("vmcore: CPU index %d out of range [0,%d)", c, len(d.cpus))
	}
	return d.cpus[c], nil
}

// KernelOffset implements Adapter.
func (d *Dump) KernelOffset() uint64 { return d.kernelOffset }

// PageSize is vmcoreinfo's PAGESIZE, or 4096 if absent or unparseable.
// Surfaced only in the verbose startup banner, never on the wire.
func (d *Dump) PageSize() uint64 {
	if v, ok := d.info["PAGESIZE"]; ok {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			return n
		}
	}
	return 4096
}

// OSRelease is vmcoreinfo's OSRELEASE, or "" if absent. Surfaced only in
// the verbose startup banner, never on the wire.
func (d *Dump) OSRelease() string {
	return d.info["OSRELEASE"]
}

// InstallUserRootPGT implements Adapter.
func (d *Dump) InstallUserRootPGT(virt uint64) error {
	phys, err := d.translate.translate(virt)
	if err != nil {
		return fmt.Errorf("vmcore: resolving root page table address %#x: %w", virt, err)
	}
	d.translate = &pageTableTranslator{root: phys, arch: d.arch, mem: d.mem}
	d.gen++
	return nil
}
