package wav

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
	"time"
)

var testFormat = Format{SampleRate: 16000, Channels: 1}

func TestWriteHeader(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteHeader(&buf, testFormat, 1000); err != nil {
		t.Fatalf("WriteHeader: %v", err)
	}

	b := buf.Bytes()
	if len(b) != HeaderSize {
		t.Fatalf("expected %d header bytes, got %d", HeaderSize, len(b))
	}

	if string(b[0:4]) != "RIFF" || string(b[8:12]) != "WAVE" {
		t.Error("missing RIFF/WAVE magic")
	}

	if got := binary.LittleEndian.Uint32(b[4:8]); got != 1036 {
		t.Errorf("expected RIFF size 1036, got %d", got)
	}
	if got := binary.LittleEndian.Uint32(b[24:28]); got != 16000 {
		t.Errorf("expected sample rate 16000, got %d", got)
	}
	if got := binary.LittleEndian.Uint32(b[40:44]); got != 1000 {
		t.Errorf("expected data size 1000, got %d", got)
	}
}

func TestPatchSizes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer f.Close()

	if err := WriteHeader(f, testFormat, 0); err != nil {
		t.Fatalf("WriteHeader: %v", err)
	}
	payload := make([]byte, 4096)
	if _, err := f.Write(payload); err != nil {
		t.Fatalf("write payload: %v", err)
	}

	n, err := PatchSizes(f)
	if err != nil {
		t.Fatalf("PatchSizes: %v", err)
	}
	if n != 4096 {
		t.Errorf("expected payload size 4096, got %d", n)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if got := binary.LittleEndian.Uint32(data[40:44]); got != 4096 {
		t.Errorf("expected patched data size 4096, got %d", got)
	}
	if got := binary.LittleEndian.Uint32(data[4:8]); got != 36+4096 {
		t.Errorf("expected patched RIFF size %d, got %d", 36+4096, got)
	}
}

func TestPatchFileTooShort(t *testing.T) {
	path := filepath.Join(t.TempDir(), "short.wav")
	if err := os.WriteFile(path, []byte("tiny"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	if _, err := PatchFile(path); err == nil {
		t.Error("expected error for file shorter than a header")
	}
}

func TestDuration(t *testing.T) {
	// 16kHz mono 16-bit = 32000 bytes/sec
	if got := testFormat.Duration(32000); got != time.Second {
		t.Errorf("expected 1s, got %s", got)
	}
	if got := testFormat.Duration(16000); got != 500*time.Millisecond {
		t.Errorf("expected 500ms, got %s", got)
	}
	if got := testFormat.Duration(0); got != 0 {
		t.Errorf("expected 0, got %s", got)
	}
}
