package vmcore

import (
	"bufio"
	"bytes"
	"strconv"
	"strings"
)

// vmcoreinfo note name as written by the kernel's vmcore_info ELF note
// (see Documentation/admin-guide/kdump/vmcoreinfo.rst); matched by name
// rather than note type since the kernel does not reserve a stable NType
// value for it.
const vmcoreinfoNoteName = "VMCOREINFO"

// parseVMCoreInfo decodes a VMCOREINFO note descriptor's KEY=VALUE lines.
func parseVMCoreInfo(desc []byte) map[string]string {
	out := map[string]string{}
	scanner := bufio.NewScanner(bytes.NewReader(desc))
	for scanner.Scan() {
		line := scanner.Text()
		eq := strings.IndexByte(line, '=')
		if eq < 0 {
			continue
		}
		out[line[:eq]] = line[eq+1:]
	}
	return out
}

func vmcoreinfoHex(info map[string]string, key string) (uint64, bool) {
	v, ok := info[key]
	if !ok {
		return 0, false
	}
	v = strings.TrimPrefix(v, "0x")
	n, err := strconv.ParseUint(v, 16, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}
