//go:build linux

package memfd

import (
	"bytes"
	"io"
	"os"
	"testing"
)

func TestNew(t *testing.T) {
	f, err := New("artifact")
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	defer f.Close()

	data := []byte("#!/bin/sh\nexit 0\n")
	n, err := f.Write(data)
	if err != nil {
		t.Fatalf("Write error: %v", err)
	}
	if n != len(data) {
		t.Errorf("Write n = %d, want %d", n, len(data))
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		t.Fatalf("Seek error: %v", err)
	}
	got, err := io.ReadAll(f)
	if err != nil {
		t.Fatalf("ReadAll error: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Errorf("content = %q, want %q", got, data)
	}
}

func TestDupToMemfd_Sealed(t *testing.T) {
	content := []byte("binary image")
	f, err := DupToMemfd("artifact", bytes.NewReader(content))
	if err != nil {
		t.Fatalf("DupToMemfd error: %v", err)
	}
	defer f.Close()

	if _, err := f.Write([]byte("overwrite")); err == nil {
		t.Error("write to sealed memfd succeeded, want failure")
	}

	// rewound by DupToMemfd, readable from offset 0
	got, err := io.ReadAll(f)
	if err != nil {
		t.Fatalf("ReadAll error: %v", err)
	}
	if !bytes.Equal(got, content) {
		t.Errorf("content = %q, want %q", got, content)
	}
}

func TestDupToMemfd_ReadError(t *testing.T) {
	if _, err := DupToMemfd("artifact", failingReader{}); err == nil {
		t.Error("expected error from DupToMemfd, got nil")
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, os.ErrInvalid }
