package regstack

import "fmt"

// aarch64Layout mirrors the general-purpose register block the kernel
// hands back in an AArch64 prstatus record (x0-x30, sp, pc, pstate),
// structurally the same fields as delve's linutil.ARM64PtraceRegs, renamed
// to GDB's aarch64 target-description register names. x30 is GDB's "lr"
// and pstate is GDB's "cpsr"; both are produced by the Fixup in regstack.go
// rather than carried as distinct storage, since they name the same bits.
func aarch64Layout() Layout {
	l := make(Layout, 0, 33)
	for i := 0; i <= 29; i++ {
		l = append(l, RegisterInfo{Name: fmt.Sprintf("x%d", i), Width: 8})
	}
	l = append(l, RegisterInfo{Name: "x30", Width: 8})
	l = append(l, RegisterInfo{Name: "sp", Width: 8})
	l = append(l, RegisterInfo{Name: "pc", Width: 8})
	l = append(l, RegisterInfo{Name: "cpsr", Width: 4})
	return l
}
