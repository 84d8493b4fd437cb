package strscan

import (
	"os"
	"path/filepath"
	"testing"
)

func TestScanBytesMinLength(t *testing.T) {
	data := []byte("ab\x00cdef\x00\x00ghij")
	got := ScanBytes(data, 4)

	var values []string
	for _, s := range got {
		values = append(values, s.Value)
	}

	want := []string{"cdef", "ghij"}
	if len(values) != len(want) {
		t.Fatalf("ScanBytes = %v, want %v", values, want)
	}
	for i := range want {
		if values[i] != want[i] {
			t.Errorf("ScanBytes[%d] = %q, want %q", i, values[i], want[i])
		}
	}
}

func TestScanBytesTabIsPrintable(t *testing.T) {
	data := []byte("a\tbcd")
	got := ScanBytes(data, 4)
	if len(got) != 1 || got[0].Value != "a\tbcd" {
		t.Fatalf("ScanBytes with embedded tab = %+v", got)
	}
}

func TestScanBytesOffsets(t *testing.T) {
	data := []byte("\x00\x00hello\x00world!")
	got := ScanBytes(data, 4)
	if len(got) != 2 {
		t.Fatalf("got %d runs, want 2: %+v", len(got), got)
	}
	if got[0].Offset != 2 {
		t.Errorf("first run offset = %d, want 2", got[0].Offset)
	}
	if got[1].Offset != 8 {
		t.Errorf("second run offset = %d, want 8", got[1].Offset)
	}
}

func TestScanFileMatchesScanBytes(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "strscan_test")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(tmpDir)

	data := append([]byte("PADDING_TO_CLEAR_MMAP_THRESHOLD_"), make([]byte, mmapThreshold)...)
	data = append(data, []byte("\x00\x00findme1234\x00")...)

	path := filepath.Join(tmpDir, "blob.bin")
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}

	want := ScanBytes(data, 4)
	got, err := ScanFile(path, 4)
	if err != nil {
		t.Fatalf("ScanFile: %v", err)
	}

	if len(got) != len(want) {
		t.Fatalf("ScanFile found %d runs, ScanBytes found %d", len(got), len(want))
	}
	for i := range want {
		if got[i].Value != want[i].Value || got[i].Offset != want[i].Offset {
			t.Errorf("run %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}
