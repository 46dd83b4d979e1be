package vmcore

import (
	"bytes"
	"testing"
)

func TestSplicedMemoryReadAtSingleRegion(t *testing.T) {
	m := &splicedMemory{}
	m.add(bytes.NewReader([]byte("0123456789")), 0x1000, 10)

	buf := make([]byte, 4)
	if err := m.readAt(buf, 0x1002); err != nil {
		t.Fatalf("readAt: %v", err)
	}
	if string(buf) != "2345" {
		t.Fatalf("got %q, want %q", buf, "2345")
	}
}

func TestSplicedMemoryReadAtUnmappedFaults(t *testing.T) {
	m := &splicedMemory{}
	m.add(bytes.NewReader([]byte("0123456789")), 0x1000, 10)

	buf := make([]byte, 4)
	if err := m.readAt(buf, 0x5000); err == nil {
		t.Fatal("expected error reading unmapped region")
	}
}

func TestSplicedMemoryOverrideTakesPrecedence(t *testing.T) {
	m := &splicedMemory{}
	m.add(bytes.NewReader([]byte("aaaaaaaaaa")), 0x1000, 10)
	m.add(bytes.NewReader([]byte("BB")), 0x1002, 2)

	buf := make([]byte, 10)
	if err := m.readAt(buf, 0x1000); err != nil {
		t.Fatalf("readAt: %v", err)
	}
	if string(buf) != "aaBBaaaaaa" {
		t.Fatalf("got %q, want %q", buf, "aaBBaaaaaa")
	}
}

func TestSplicedMemoryOverrideAtStart(t *testing.T) {
	m := &splicedMemory{}
	m.add(bytes.NewReader([]byte("aaaaaaaaaa")), 0x1000, 10)
	m.add(bytes.NewReader([]byte("BBB")), 0x1000, 3)

	buf := make([]byte, 10)
	if err := m.readAt(buf, 0x1000); err != nil {
		t.Fatalf("readAt: %v", err)
	}
	if string(buf) != "BBBaaaaaaa" {
		t.Fatalf("got %q, want %q", buf, "BBBaaaaaaa")
	}
}
