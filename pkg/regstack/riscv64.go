package regstack

// riscv64Layout uses the RISC-V ABI register names GDB's riscv64 target
// description reports, the same names delve's linutil.RISCV64PtraceRegs
// fields are drawn from (Ra, Sp, Gp, ... A0-A7, S2-S11, T3-T6) lowercased.
// "zero" (x0, hardwired to 0) occupies the first wire slot but is not in the
// prstatus record; its value is produced by Fixup. "fp" (alias of s0) is not
// a separate wire slot; Fixup adds it to the snapshot as a second name for s0.
func riscv64Layout() Layout {
	names := []string{
		"ra", "sp", "gp", "tp",
		"t0", "t1", "t2",
		"s0", "s1",
		"a0", "a1", "a2", "a3", "a4", "a5", "a6", "a7",
		"s2", "s3", "s4", "s5", "s6", "s7", "s8", "s9", "s10", "s11",
		"t3", "t4", "t5", "t6",
	}
	l := make(Layout, 0, len(names)+2)
	l = append(l, RegisterInfo{Name: "zero", Width: 8})
	for _, n := range names {
		l = append(l, RegisterInfo{Name: n, Width: 8})
	}
	l = append(l, RegisterInfo{Name: "pc", Width: 8})
	return l
}
