package threadmodel

import (
	"encoding/json"
	"fmt"
	"os"
)

// SidecarTask is one task entry from the sidecar JSON's "threads" array.
type SidecarTask struct {
	Pid       uint32            `json:"pid"`
	Tid       uint32            `json:"tid"`
	Comm      string            `json:"comm"`
	Registers map[string]uint64 `json:"registers"`
}

// Sidecar is the task-table JSON loaded alongside a dump for
// kernel-with-tasks or process mode, per the documented schema:
//
//	{ "rootpgt": <uint, kernel-virtual>,  // process mode only
//	  "loadaddr": <uint>,                 // process mode only
//	  "threads": [ { "pid", "tid", "comm", "registers": {...} }, ... ] }
type Sidecar struct {
	RootPGT  uint64        `json:"rootpgt"`
	LoadAddr uint64        `json:"loadaddr"`
	Threads  []SidecarTask `json:"threads"`
}

// LoadSidecar reads and decodes a sidecar JSON file. A malformed file is
// reported as an error; the caller treats this as startup-fatal.
func LoadSidecar(path string) (*Sidecar, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("threadmodel: opening sidecar %s: %w", path, err)
	}
	defer f.Close()

	var sc Sidecar
	dec := json.NewDecoder(f)
	if err := dec.Decode(&sc); err != nil {
		return nil, fmt.Errorf("threadmodel: decoding sidecar %s: %w", path, err)
	}
	return &sc, nil
}
