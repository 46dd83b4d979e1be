package gdbstubconfig

import (
	"os"
	"path/filepath"
	"testing"

	"gopkg.in/yaml.v2"
)

func TestLoadMissingFileReturnsZeroConfig(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	c, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if *c != (Config{}) {
		t.Fatalf("expected zero Config, got %+v", c)
	}
}

func TestLoadParsesExistingFile(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	dir := filepath.Join(home, configDir)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	data, _ := yaml.Marshal(Config{Host: "0.0.0.0", Port: 4321, Verbose: true})
	if err := os.WriteFile(filepath.Join(dir, configFile), data, 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	c, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Host != "0.0.0.0" || c.Port != 4321 || !c.Verbose {
		t.Fatalf("got %+v", c)
	}
}

func TestLoadMalformedFileErrors(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	dir := filepath.Join(home, configDir)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, configFile), []byte("not: [valid"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := Load(); err == nil {
		t.Fatal("expected error for malformed config file")
	}
}
