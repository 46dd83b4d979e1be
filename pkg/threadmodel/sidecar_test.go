package threadmodel

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTempSidecar(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "sidecar.json")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("writing temp sidecar: %v", err)
	}
	return path
}

func TestLoadSidecarParsesProcessFields(t *testing.T) {
	path := writeTempSidecar(t, `{
		"rootpgt": 4096,
		"loadaddr": 65536,
		"threads": [
			{"pid": 5, "tid": 7, "comm": "main", "registers": {"pc": 100}}
		]
	}`)
	sc, err := LoadSidecar(path)
	if err != nil {
		t.Fatalf("LoadSidecar: %v", err)
	}
	if sc.RootPGT != 4096 || sc.LoadAddr != 65536 {
		t.Fatalf("rootpgt/loadaddr = %d/%d", sc.RootPGT, sc.LoadAddr)
	}
	if len(sc.Threads) != 1 || sc.Threads[0].Comm != "main" {
		t.Fatalf("threads = %+v", sc.Threads)
	}
	if sc.Threads[0].Registers["pc"] != 100 {
		t.Fatalf("registers = %v", sc.Threads[0].Registers)
	}
}

func TestLoadSidecarMalformedJSONErrors(t *testing.T) {
	path := writeTempSidecar(t, `{"threads": [`)
	if _, err := LoadSidecar(path); err == nil {
		t.Fatal("expected error decoding malformed sidecar")
	}
}

func TestLoadSidecarMissingFileErrors(t *testing.T) {
	if _, err := LoadSidecar("/nonexistent/sidecar.json"); err == nil {
		t.Fatal("expected error opening missing sidecar")
	}
}
