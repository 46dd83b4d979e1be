package vmcore

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/kdumptools/vmcore-gdbstub/pkg/regstack"
)

// siginfo/timeval/pid block shared by every arch's prstatus, copied from
// pkg/proc/core/linux_core.go's linuxPrStatusAMD64/ARM64 -- same layout on
// every Linux architecture since it predates the per-arch Reg field.
type prstatusHeader struct {
	SiginfoSigno, SiginfoCode, SiginfoErrno int32
	Cursig                                  uint16
	_                                       [2]uint8
	Sigpend                                 uint64
	Sighold                                 uint64
	Pid, Ppid, Pgrp, Sid                    int32
	UtimeSec, UtimeUsec                     int64
	StimeSec, StimeUsec                     int64
	CUtimeSec, CUtimeUsec                   int64
	CStimeSec, CStimeUsec                   int64
}

type amd64PtraceRegs struct {
	R15, R14, R13, R12               uint64
	Rbp, Rbx                        uint64
	R11, R10, R9, R8                uint64
	Rax, Rcx, Rdx, Rsi, Rdi          uint64
	OrigRax                         uint64
	Rip                             uint64
	Cs                               uint64
	Eflags                          uint64
	Rsp                              uint64
	Ss                               uint64
	FsBase, GsBase                   uint64
	Ds, Es, Fs, Gs                   uint64
}

type arm64PtraceRegs struct {
	Regs   [31]uint64
	Sp     uint64
	Pc     uint64
	Pstate uint64
}

type riscv64PtraceRegs struct {
	Pc                                          uint64
	Ra, Sp, Gp, Tp                              uint64
	T0, T1, T2                                  uint64
	S0, S1                                      uint64
	A0, A1, A2, A3, A4, A5, A6, A7               uint64
	S2, S3, S4, S5, S6, S7, S8, S9, S10, S11     uint64
	T3, T4, T5, T6                               uint64
}

// decodePrstatus reads a kernel NT_PRSTATUS note descriptor for arch and
// returns the pid it ran on and a raw register map using prstatus field
// names (lowercase, e.g. "lr", "pstate", "rflags") -- the form
// regstack.Fixup expects as input, not yet aliased.
func decodePrstatus(arch regstack.Arch, desc []byte) (pid uint32, regs map[string]uint64, err error) {
	r := bytes.NewReader(desc)
	var hdr prstatusHeader
	if err := binary.Read(r, binary.LittleEndian, &hdr); err != nil {
		return 0, nil, fmt.Errorf("vmcore: reading prstatus header: %w", err)
	}

	switch arch {
	case regstack.X86_64:
		var reg amd64PtraceRegs
		if err := binary.Read(r, binary.LittleEndian, &reg); err != nil {
			return 0, nil, fmt.Errorf("vmcore: reading amd64 prstatus regs: %w", err)
		}
		return uint32(hdr.Pid), map[string]uint64{
			"rax": reg.Rax, "rbx": reg.Rbx, "rcx": reg.Rcx, "rdx": reg.Rdx,
			"rsi": reg.Rsi, "rdi": reg.Rdi, "rbp": reg.Rbp, "rsp": reg.Rsp,
			"r8": reg.R8, "r9": reg.R9, "r10": reg.R10, "r11": reg.R11,
			"r12": reg.R12, "r13": reg.R13, "r14": reg.R14, "r15": reg.R15,
			"rip": reg.Rip, "rflags": reg.Eflags,
			"cs": reg.Cs, "ss": reg.Ss, "ds": reg.Ds, "es": reg.Es, "fs": reg.Fs, "gs": reg.Gs,
		}, nil

	case regstack.AArch64:
		var reg arm64PtraceRegs
		if err := binary.Read(r, binary.LittleEndian, &reg); err != nil {
			return 0, nil, fmt.Errorf("vmcore: reading arm64 prstatus regs: %w", err)
		}
		out := make(map[string]uint64, 35)
		for i := 0; i < 30; i++ {
			out[fmt.Sprintf("x%d", i)] = reg.Regs[i]
		}
		out["lr"] = reg.Regs[30]
		out["sp"] = reg.Sp
		out["pc"] = reg.Pc
		out["pstate"] = reg.Pstate
		return uint32(hdr.Pid), out, nil

	case regstack.RISCV64:
		var reg riscv64PtraceRegs
		if err := binary.Read(r, binary.LittleEndian, &reg); err != nil {
			return 0, nil, fmt.Errorf("vmcore: reading riscv64 prstatus regs: %w", err)
		}
		return uint32(hdr.Pid), map[string]uint64{
			"ra": reg.Ra, "sp": reg.Sp, "gp": reg.Gp, "tp": reg.Tp,
			"t0": reg.T0, "t1": reg.T1, "t2": reg.T2,
			"s0": reg.S0, "s1": reg.S1,
			"a0": reg.A0, "a1": reg.A1, "a2": reg.A2, "a3": reg.A3,
			"a4": reg.A4, "a5": reg.A5, "a6": reg.A6, "a7": reg.A7,
			"s2": reg.S2, "s3": reg.S3, "s4": reg.S4, "s5": reg.S5,
			"s6": reg.S6, "s7": reg.S7, "s8": reg.S8, "s9": reg.S9,
			"s10": reg.S10, "s11": reg.S11,
			"t3": reg.T3, "t4": reg.T4, "t5": reg.T5, "t6": reg.T6,
			"pc": reg.Pc,
		}, nil
	}
	return 0, nil, fmt.Errorf("vmcore: unsupported architecture %q", arch)
}
