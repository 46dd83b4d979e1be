package regstack

// x86_64Layout is GDB's standard i386:x86-64 register order: the sixteen
// 64-bit general-purpose registers, rip, and the seven 32-bit status/segment
// registers. eflags is produced by Fixup from the dump's "rflags" field;
// every other slot is read straight off the dump's prstatus record.
//
// This is the real gdbserver amd64 layout, not the abbreviated one a naive
// reading of the width formula in the original design note would produce —
// see the x86-64 register layout entry in DESIGN.md for why the two
// disagree and why this layout, not the formula, is authoritative here.
func x86_64Layout() Layout {
	return Layout{
		{Name: "rax", Width: 8},
		{Name: "rbx", Width: 8},
		{Name: "rcx", Width: 8},
		{Name: "rdx", Width: 8},
		{Name: "rsi", Width: 8},
		{Name: "rdi", Width: 8},
		{Name: "rbp", Width: 8},
		{Name: "rsp", Width: 8},
		{Name: "r8", Width: 8},
		{Name: "r9", Width: 8},
		{Name: "r10", Width: 8},
		{Name: "r11", Width: 8},
		{Name: "r12", Width: 8},
		{Name: "r13", Width: 8},
		{Name: "r14", Width: 8},
		{Name: "r15", Width: 8},
		{Name: "rip", Width: 8},
		{Name: "eflags", Width: 4},
		{Name: "cs", Width: 4},
		{Name: "ss", Width: 4},
		{Name: "ds", Width: 4},
		{Name: "es", Width: 4},
		{Name: "fs", Width: 4},
		{Name: "gs", Width: 4},
	}
}
