// Package fingerprint orchestrates C2-C6 over a single file's raw
// bytes into the five typed representations spec.md §4.7 describes,
// the way the teacher's main.go sequences CalculateHashes → magic
// detection → entropy/string analysis in a fixed construct-then-call
// order for each input file.
package fingerprint

import (
	"context"

	"github.com/omertheroot/correlf/internal/apperr"
	"github.com/omertheroot/correlf/internal/catalog"
	"github.com/omertheroot/correlf/internal/codec"
	"github.com/omertheroot/correlf/internal/coderec"
	"github.com/omertheroot/correlf/internal/elf"
	"github.com/omertheroot/correlf/internal/minhash"
	"github.com/omertheroot/correlf/internal/strscan"
)

// sectionNames is the fixed .text/.rodata/.data/.bss/.symtab/.shstrtab
// order spec.md §4.7 assigns to SECTION_SIZE_VECTOR.
var sectionNames = [6]string{".text", ".rodata", ".data", ".bss", ".symtab", ".shstrtab"}

// Extractor builds file records from raw bytes. It wraps the MinHash
// engine (C6, stateless and safe to share) and the coderec bridge
// (C5, which may shell out).
type Extractor struct {
	MinHash      *minhash.Engine
	Coderec      *coderec.Bridge
	StringMinLen int
	// ReadelfPath is the external readelf binary (C4's fallback program-
	// header source, spec.md §4.4). Empty uses "readelf" from $PATH.
	ReadelfPath string
}

// NewExtractor constructs an Extractor from its collaborators.
func NewExtractor(mh *minhash.Engine, cr *coderec.Bridge, stringMinLen int) *Extractor {
	if stringMinLen <= 0 {
		stringMinLen = strscan.DefaultMinLength
	}
	return &Extractor{MinHash: mh, Coderec: cr, StringMinLen: stringMinLen}
}

// Extract runs the full C1-C6 pipeline over one file's bytes and
// assembles a catalog.FileRecord, per the 8-step sequence in spec.md
// §4.7. path is used only to drive the coderec bridge and the readelf
// fallback (both operate on a filesystem path, not raw bytes); it may
// be a temp file. It classifies code regions for this file alone;
// callers fingerprinting many files at once (spec.md §4.10's batch
// ingest) should classify in bulk and call ExtractWithRegions instead.
func (x *Extractor) Extract(ctx context.Context, filename, path string, data []byte) (*catalog.FileRecord, error) {
	regions, err := x.Coderec.Classify(ctx, path)
	if err != nil {
		return nil, err
	}
	return x.ExtractWithRegions(ctx, filename, path, data, regions)
}

// ExtractWithRegions runs the C1, C2, C3, C4, C6 steps of the §4.7
// pipeline (everything except C5 classification) over data, setting
// CODE_REGION_LIST from the already-classified regions instead of
// invoking the coderec bridge itself. Used by batch ingest (spec.md
// §4.10), which classifies every extracted path together in
// BatchSize-sized groups before fingerprinting any of them.
func (x *Extractor) ExtractWithRegions(ctx context.Context, filename, path string, data []byte, regions []coderec.Region) (*catalog.FileRecord, error) {
	rec := &catalog.FileRecord{
		Filename: filename,
		SHA256:   codec.SHA256Hex(data),
	}

	ef := &elf.File{Size: int64(len(data))}
	if IsELF(data) {
		parsed, err := elf.Parse(data)
		if err != nil {
			return nil, apperr.Wrap(apperr.ParseFailure, "parsing ELF structure", err)
		}
		ef = parsed
	}
	rec.ParsingSuccessful = ef.Parsed

	strs := strscan.ScanBytes(data, x.StringMinLen)
	values := make([]string, len(strs))
	for i, s := range strs {
		values[i] = s.Value
	}
	tokens := x.MinHash.Tokenize(values)
	sig := x.MinHash.Signature(tokens)
	rec.SetRepresentation(catalog.Representation{
		Type: catalog.StringMinHash,
		Data: codec.PackInt32(sig),
	})

	rec.SetRepresentation(catalog.Representation{
		Type: catalog.CodeRegionList,
		Data: PackRegions(regions),
	})

	programHeaders := ef.ProgramHeaders
	if len(programHeaders) == 0 && path != "" {
		if fallback, ferr := elf.ReadelfProgramHeaders(ctx, x.ReadelfPath, path); ferr == nil {
			programHeaders = fallback
		}
	}
	phVec := elf.ProgramHeaderVector(programHeaders)
	rec.SetRepresentation(catalog.Representation{
		Type: catalog.ProgramHeaderVector,
		Data: codec.PackDoubles(phVec),
	})

	if ef.Parsed {
		rec.SetRepresentation(catalog.Representation{
			Type: catalog.ELFHeaderVector,
			Data: codec.PackDoubles(headerVector(ef.Header)),
		})
		rec.SetRepresentation(catalog.Representation{
			Type: catalog.SectionSizeVector,
			Data: codec.PackDoubles(sectionSizeVector(ef, int64(len(data)))),
		})
	}

	return rec, nil
}

// headerVector builds the 18-double ELF_HEADER_VECTOR in the exact
// field order spec.md §4.7 specifies.
func headerVector(h elf.Header) []float64 {
	return []float64{
		float64(h.Ident.Class),
		float64(h.Ident.Data),
		float64(h.Ident.Version),
		float64(h.Ident.OSABI),
		float64(h.Ident.ABIVersion),
		float64(h.Type),
		float64(h.Machine),
		float64(h.Version),
		float64(h.Entry),
		float64(h.Phoff),
		float64(h.Shoff),
		float64(h.Flags),
		float64(h.Ehsize),
		float64(h.Phentsize),
		float64(h.Phnum),
		float64(h.Shentsize),
		float64(h.Shnum),
		float64(h.Shstrndx),
	}
}

// sectionSizeVector builds the 6-double SECTION_SIZE_VECTOR, each
// entry a section's size normalized by file size, 0 for a missing
// section. If the declared section header table would read past the
// end of the file, the all-zeros vector is returned (spec.md §4.7
// safety rule).
func sectionSizeVector(ef *elf.File, fileSize int64) []float64 {
	var vec [6]float64
	if fileSize <= 0 {
		return vec[:]
	}

	lastEnd := int64(ef.Header.Shoff) + int64(ef.Header.Shnum)*int64(ef.Header.Shentsize)
	if ef.Header.Shnum > 0 && lastEnd > fileSize {
		return vec[:]
	}

	for i, name := range sectionNames {
		if s, ok := ef.Section(name); ok {
			vec[i] = float64(s.Size) / float64(fileSize)
		}
	}
	return vec[:]
}
