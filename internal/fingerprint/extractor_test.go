package fingerprint

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/omertheroot/correlf/internal/catalog"
	"github.com/omertheroot/correlf/internal/codec"
	"github.com/omertheroot/correlf/internal/coderec"
	"github.com/omertheroot/correlf/internal/elf"
	"github.com/omertheroot/correlf/internal/minhash"
)

func newTestExtractor() *Extractor {
	mh := minhash.New(128, 50000, 123456789)
	cr := coderec.NewBridge(true, coderec.BuiltinEntropyLocation)
	return NewExtractor(mh, cr, 4)
}

func writeTempFile(t *testing.T, data []byte) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "sample.bin")
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestExtractUnparsedInputStillProducesMandatoryRepresentations(t *testing.T) {
	data := []byte("just some plain text, not an ELF file at all, but long enough\x00\x00findme1234")
	path := writeTempFile(t, data)

	x := newTestExtractor()
	rec, err := x.Extract(context.Background(), "sample.bin", path, data)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if rec.ParsingSuccessful {
		t.Fatal("ParsingSuccessful = true for non-ELF input")
	}
	if rec.SHA256 != codec.SHA256Hex(data) {
		t.Errorf("SHA256 mismatch")
	}

	for _, typ := range []catalog.RepresentationType{catalog.StringMinHash, catalog.CodeRegionList, catalog.ProgramHeaderVector} {
		if _, ok := rec.Representation(typ); !ok {
			t.Errorf("missing mandatory representation %s", typ)
		}
	}
	if _, ok := rec.Representation(catalog.ELFHeaderVector); ok {
		t.Error("ELFHeaderVector present for unparsed input")
	}
	if _, ok := rec.Representation(catalog.SectionSizeVector); ok {
		t.Error("SectionSizeVector present for unparsed input")
	}
}

func TestExtractMinHashSignatureHasConfiguredLength(t *testing.T) {
	data := []byte("busybox applet usage string data padding padding padding\x00")
	path := writeTempFile(t, data)

	x := newTestExtractor()
	rec, err := x.Extract(context.Background(), "b.bin", path, data)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}

	rep, ok := rec.Representation(catalog.StringMinHash)
	if !ok {
		t.Fatal("missing StringMinHash representation")
	}
	sig, err := codec.UnpackInt32(rep.Data)
	if err != nil {
		t.Fatalf("UnpackInt32: %v", err)
	}
	if len(sig) != 128 {
		t.Errorf("signature length = %d, want 128", len(sig))
	}
}

func TestSectionSizeVectorZeroWhenShoffBeyondFile(t *testing.T) {
	ef := &elf.File{
		Header: elf.Header{Shoff: 1000, Shnum: 5, Shentsize: 64},
	}
	got := sectionSizeVector(ef, 100)
	for i, v := range got {
		if v != 0 {
			t.Errorf("vec[%d] = %v, want 0", i, v)
		}
	}
}

func TestPackUnpackRegionsRoundTrip(t *testing.T) {
	regions := []coderec.Region{
		{Start: 0, End: 100, Length: 100, Tag: "code"},
		{Start: 100, End: 250, Length: 150, Tag: "packed"},
	}
	packed := PackRegions(regions)
	got, err := UnpackRegions(packed)
	if err != nil {
		t.Fatalf("UnpackRegions: %v", err)
	}
	if len(got) != len(regions) {
		t.Fatalf("got %d regions, want %d", len(got), len(regions))
	}
	for i := range regions {
		if got[i] != regions[i] {
			t.Errorf("region %d = %+v, want %+v", i, got[i], regions[i])
		}
	}
}

func TestUnpackRegionsEmptyBuffer(t *testing.T) {
	got, err := UnpackRegions(nil)
	if err != nil {
		t.Fatalf("UnpackRegions(nil): %v", err)
	}
	if got != nil {
		t.Errorf("got %v, want nil", got)
	}
}

func TestUnpackRegionsTruncatedFails(t *testing.T) {
	packed := PackRegions([]coderec.Region{{Start: 0, End: 10, Length: 10, Tag: "code"}})
	_, err := UnpackRegions(packed[:len(packed)-1])
	if err == nil {
		t.Fatal("expected error for truncated buffer")
	}
}
