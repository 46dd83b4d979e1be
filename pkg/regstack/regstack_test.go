package regstack

import "testing"

func TestLookupKnownArchitectures(t *testing.T) {
	for _, arch := range []Arch{AArch64, RISCV64, X86_64} {
		l, ok := Lookup(arch)
		if !ok {
			t.Fatalf("Lookup(%s): not found", arch)
		}
		if len(l) == 0 {
			t.Fatalf("Lookup(%s): empty layout", arch)
		}
	}
}

func TestLookupUnknownArchitecture(t *testing.T) {
	if _, ok := Lookup("mips"); ok {
		t.Fatal("Lookup(mips): expected not found")
	}
}

func TestLayoutSizeMatchesSumOfWidths(t *testing.T) {
	for _, arch := range []Arch{AArch64, RISCV64, X86_64} {
		l, _ := Lookup(arch)
		want := 0
		for _, r := range l {
			want += r.Width
		}
		if got := l.Size(); got != want {
			t.Fatalf("%s: Size() = %d, want %d", arch, got, want)
		}
	}
}

func TestX86_64LayoutNoReorder(t *testing.T) {
	l, _ := Lookup(X86_64)
	if l[0].Name != "rax" || l[len(l)-1].Name != "gs" {
		t.Fatalf("unexpected x86_64 layout bounds: first=%s last=%s", l[0].Name, l[len(l)-1].Name)
	}
	ripIdx := -1
	for i, r := range l {
		if r.Name == "rip" {
			ripIdx = i
		}
	}
	if ripIdx != 16 {
		t.Fatalf("rip at index %d, want 16", ripIdx)
	}
}

func TestFixupAArch64(t *testing.T) {
	regs := map[string]uint64{"lr": 0x1234, "pstate": 0x20}
	Fixup(AArch64, regs)
	if regs["x30"] != 0x1234 {
		t.Fatalf("x30 = %#x, want 0x1234", regs["x30"])
	}
	if regs["cpsr"] != 0x20 {
		t.Fatalf("cpsr = %#x, want 0x20", regs["cpsr"])
	}
}

func TestFixupRISCV64(t *testing.T) {
	regs := map[string]uint64{"s0": 0xabc}
	Fixup(RISCV64, regs)
	if regs["zero"] != 0 {
		t.Fatalf("zero = %#x, want 0", regs["zero"])
	}
	if regs["fp"] != 0xabc {
		t.Fatalf("fp = %#x, want 0xabc", regs["fp"])
	}
}

func TestFixupX86_64(t *testing.T) {
	regs := map[string]uint64{"rflags": 0x202}
	Fixup(X86_64, regs)
	if regs["eflags"] != 0x202 {
		t.Fatalf("eflags = %#x, want 0x202", regs["eflags"])
	}
}
