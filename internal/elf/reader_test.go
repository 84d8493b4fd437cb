package elf

import (
	"encoding/binary"
	"testing"
)

// buildMinimalELF64 assembles a tiny but structurally valid
// little-endian ELF64 file: header, one program header, two sections
// (a null section and .shstrtab), with the string table itself
// placed after the section headers.
func buildMinimalELF64(t *testing.T) []byte {
	t.Helper()

	const (
		ehSize = 64
		phSize = 56
		shSize = 64
	)

	phOff := uint64(ehSize)
	shOff := phOff + phSize

	shstrtab := []byte{0x00}
	shstrtab = append(shstrtab, []byte(".shstrtab\x00")...)
	strOff := shOff + 2*shSize

	buf := make([]byte, strOff+uint64(len(shstrtab)))

	copy(buf[0:4], []byte{0x7F, 'E', 'L', 'F'})
	buf[4] = 2 // ELFCLASS64
	buf[5] = 1 // little-endian
	buf[6] = 1 // EI_VERSION

	order := binary.LittleEndian
	order.PutUint16(buf[16:18], 2)     // e_type = ET_EXEC
	order.PutUint16(buf[18:20], 0x3E)  // e_machine = EM_X86_64
	order.PutUint32(buf[20:24], 1)     // e_version
	order.PutUint64(buf[24:32], 0x400080)
	order.PutUint64(buf[32:40], phOff)
	order.PutUint64(buf[40:48], shOff)
	order.PutUint16(buf[52:54], ehSize)
	order.PutUint16(buf[54:56], phSize)
	order.PutUint16(buf[56:58], 1) // phnum
	order.PutUint16(buf[58:60], shSize)
	order.PutUint16(buf[60:62], 2) // shnum
	order.PutUint16(buf[62:64], 1) // shstrndx

	ph := buf[phOff : phOff+phSize]
	order.PutUint32(ph[0:4], 1)    // PT_LOAD
	order.PutUint32(ph[4:8], 0x5) // PF_R | PF_X
	order.PutUint64(ph[8:16], 0)
	order.PutUint64(ph[16:24], 0x400000)
	order.PutUint64(ph[24:32], 0x400000)
	order.PutUint64(ph[32:40], uint64(len(buf)))
	order.PutUint64(ph[40:48], uint64(len(buf)))
	order.PutUint64(ph[48:56], 0x1000)

	sec1 := buf[shOff+shSize : shOff+2*shSize]
	order.PutUint32(sec1[0:4], 1) // name index of ".shstrtab"
	order.PutUint32(sec1[4:8], 3) // SHT_STRTAB
	order.PutUint64(sec1[24:32], strOff)
	order.PutUint64(sec1[32:40], uint64(len(shstrtab)))

	copy(buf[strOff:], shstrtab)

	return buf
}

func TestParseMinimalELF64(t *testing.T) {
	data := buildMinimalELF64(t)

	f, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if !f.Parsed {
		t.Fatal("Parsed = false, want true")
	}
	if f.Header.Ident.Class != 2 {
		t.Errorf("Ident.Class = %d, want 2", f.Header.Ident.Class)
	}
	if f.Header.Machine != 0x3E {
		t.Errorf("Machine = %#x, want 0x3E", f.Header.Machine)
	}
	if len(f.ProgramHeaders) != 1 {
		t.Fatalf("len(ProgramHeaders) = %d, want 1", len(f.ProgramHeaders))
	}
	if got := f.ProgramHeaders[0].FlagString(); got != "R-E" {
		t.Errorf("FlagString = %q, want %q", got, "R-E")
	}
	if len(f.Sections) != 2 {
		t.Fatalf("len(Sections) = %d, want 2", len(f.Sections))
	}

	sec, ok := f.Section(".shstrtab")
	if !ok {
		t.Fatal("Section(\".shstrtab\") not found")
	}
	if sec.Type != 3 {
		t.Errorf("section type = %d, want 3 (SHT_STRTAB)", sec.Type)
	}
}

func TestParseTruncatedHeaderDoesNotPanic(t *testing.T) {
	for _, n := range []int{0, 1, 4, 16, 20, 40, 63} {
		f, err := Parse(make([]byte, n))
		if err != nil {
			t.Fatalf("Parse(%d bytes) returned error: %v", n, err)
		}
		if f.Parsed {
			t.Fatalf("Parse(%d bytes) reported Parsed = true", n)
		}
	}
}

func TestParseNonELFMagic(t *testing.T) {
	data := []byte("#!/bin/sh\necho not an elf file at all, just text\n")
	f, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if f.Parsed {
		t.Fatal("Parsed = true for non-ELF input")
	}
	if f.Size != int64(len(data)) {
		t.Errorf("Size = %d, want %d", f.Size, len(data))
	}
}

func TestParseBadPhoffIsIgnoredNotFatal(t *testing.T) {
	data := buildMinimalELF64(t)
	// Point e_phoff past the end of the buffer; the program header
	// table should come back empty rather than panicking or erroring.
	binary.LittleEndian.PutUint64(data[32:40], uint64(len(data)+1000))

	f, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if !f.Parsed {
		t.Fatal("Parsed = false, want true (header itself is still valid)")
	}
	if len(f.ProgramHeaders) != 0 {
		t.Errorf("len(ProgramHeaders) = %d, want 0 for out-of-range phoff", len(f.ProgramHeaders))
	}
}
