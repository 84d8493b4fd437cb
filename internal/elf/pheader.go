package elf

import (
	"bufio"
	"context"
	"fmt"
	"math"
	"os/exec"
	"sort"
	"strconv"
	"strings"

	"github.com/omertheroot/correlf/internal/apperr"
)

// ProgramHeaderVectorLen is the fixed dimensionality of the
// PROGRAM_HEADER_VECTOR representation (spec.md §4.4).
const ProgramHeaderVectorLen = 9

// ProgramHeaderVector builds the 9-dimensional summary vector spec.md
// §4.4 describes from a list of program headers, sourced either from
// Parse or from ReadelfProgramHeaders. An empty input yields a
// zero-length vector, per §4.4's explicit empty-list rule.
func ProgramHeaderVector(headers []ProgramHeader) []float64 {
	if len(headers) == 0 {
		return nil
	}

	n := len(headers)
	memSizes := make([]float64, n)
	var sumMem, sumFile float64
	var eCount, wCount int

	for i, h := range headers {
		memSizes[i] = float64(h.Memsz)
		sumMem += float64(h.Memsz)
		sumFile += float64(h.Filesz)

		flags := h.FlagString()
		if strings.Contains(flags, "E") {
			eCount++
		}
		if strings.Contains(flags, "W") {
			wCount++
		}
	}

	mean := sumMem / float64(n)

	var sumSq float64
	for _, m := range memSizes {
		d := m - mean
		sumSq += d * d
	}
	stddev := math.Sqrt(sumSq / float64(n))

	sorted := append([]float64(nil), memSizes...)
	sort.Float64s(sorted)

	p25 := percentile(sorted, 0.25)
	p50 := percentile(sorted, 0.50)
	p75 := percentile(sorted, 0.75)

	var fileSizeRatio float64
	if sumMem > 0 {
		fileSizeRatio = sumFile / sumMem
	}

	return []float64{
		float64(n),
		mean,
		stddev,
		p25,
		p50,
		p75,
		float64(eCount) / float64(n),
		float64(wCount) / float64(n),
		fileSizeRatio,
	}
}

// percentile implements the nearest-rank rule spec.md §4.4 specifies:
// round(p * (n-1)), on an already-sorted slice.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Round(p * float64(len(sorted)-1)))
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// ReadelfProgramHeaders invokes the external `readelf -lW` binary and
// parses its columnar program-header table, as a fallback source for
// files the in-process parser in reader.go could not handle. Both
// sources feed the same ProgramHeaderVector, per spec.md §4.4's
// same-schema requirement.
func ReadelfProgramHeaders(ctx context.Context, readelfPath, filePath string) ([]ProgramHeader, error) {
	if readelfPath == "" {
		readelfPath = "readelf"
	}

	cmd := exec.CommandContext(ctx, readelfPath, "-lW", filePath)
	out, err := cmd.Output()
	if err != nil {
		return nil, apperr.Wrap(apperr.ExternalToolFailure, fmt.Sprintf("readelf -lW %s", filePath), err)
	}

	return parseReadelfOutput(out)
}

// parseReadelfOutput walks the "Program Headers:" table readelf -lW
// prints. A representative row looks like:
//
//	  LOAD           0x000000 0x0000000000400000 0x0000000000400000 0x001234 0x001234 R E 0x1000
//
// Columns are Type, Offset, VirtAddr, PhysAddr, FileSiz, MemSiz,
// Flg, Align. readelf pads flags as a space-joined set of letters
// rather than the fixed 3-char form the in-process reader produces,
// so they're normalized before being stored.
func parseReadelfOutput(out []byte) ([]ProgramHeader, error) {
	var headers []ProgramHeader

	sc := bufio.NewScanner(strings.NewReader(string(out)))
	inTable := false
	for sc.Scan() {
		line := sc.Text()
		trimmed := strings.TrimSpace(line)

		if strings.HasPrefix(trimmed, "Type") && strings.Contains(trimmed, "Offset") {
			inTable = true
			continue
		}
		if !inTable {
			continue
		}
		if trimmed == "" || strings.HasPrefix(trimmed, "Section to Segment") {
			break
		}

		fields := strings.Fields(trimmed)
		if len(fields) < 7 {
			continue
		}
		ph, ok := parseReadelfRow(fields)
		if !ok {
			continue
		}
		headers = append(headers, ph)
	}

	if err := sc.Err(); err != nil {
		return nil, apperr.Wrap(apperr.ExternalToolFailure, "reading readelf output", err)
	}
	return headers, nil
}

func parseReadelfRow(fields []string) (ProgramHeader, bool) {
	// fields[0] is the segment type name (LOAD, DYNAMIC, INTERP, ...);
	// skip it — §4.4's vector only needs flags/mem_size/file_size, not
	// the numeric segment type, so an approximate non-zero type code is
	// sufficient here.
	offset, ok1 := parseHex(fields[1])
	vaddr, ok2 := parseHex(fields[2])
	paddr, ok3 := parseHex(fields[3])
	filesz, ok4 := parseHex(fields[4])
	memsz, ok5 := parseHex(fields[5])
	if !(ok1 && ok2 && ok3 && ok4 && ok5) {
		return ProgramHeader{}, false
	}

	// Remaining fields up to (but excluding) a trailing alignment value
	// are flag letters (e.g. "R", "E", or "R E" when readelf spaces them).
	var flagLetters string
	for _, f := range fields[6:] {
		if strings.HasPrefix(f, "0x") {
			break
		}
		flagLetters += f
	}

	var flags uint32
	if strings.Contains(flagLetters, "R") {
		flags |= 0x4
	}
	if strings.Contains(flagLetters, "W") {
		flags |= 0x2
	}
	if strings.Contains(flagLetters, "E") {
		flags |= 0x1
	}

	return ProgramHeader{
		Type:   1, // unused by ProgramHeaderVector; a sentinel non-zero value
		Offset: offset,
		Vaddr:  vaddr,
		Paddr:  paddr,
		Filesz: filesz,
		Memsz:  memsz,
		Flags:  flags,
	}, true
}

func parseHex(s string) (uint64, bool) {
	s = strings.TrimPrefix(s, "0x")
	v, err := strconv.ParseUint(s, 16, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
