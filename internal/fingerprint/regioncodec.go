package fingerprint

import (
	"encoding/binary"
	"fmt"

	"github.com/omertheroot/correlf/internal/apperr"
	"github.com/omertheroot/correlf/internal/coderec"
)

// PackRegions serializes a CODE_REGION_LIST representation in the
// self-describing little-endian tagged format spec.md §3 requires:
// a uint32 count, followed per-region by start/end/length (uint64
// each) and a uint16-length-prefixed UTF-8 tag. This extends C1's
// little-endian packing convention (internal/codec) to a
// variable-length record rather than a fixed-width vector.
func PackRegions(regions []coderec.Region) []byte {
	size := 4
	for _, r := range regions {
		size += 8 + 8 + 8 + 2 + len(r.Tag)
	}

	buf := make([]byte, size)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(len(regions)))

	off := 4
	for _, r := range regions {
		binary.LittleEndian.PutUint64(buf[off:off+8], r.Start)
		off += 8
		binary.LittleEndian.PutUint64(buf[off:off+8], r.End)
		off += 8
		binary.LittleEndian.PutUint64(buf[off:off+8], r.Length)
		off += 8
		binary.LittleEndian.PutUint16(buf[off:off+2], uint16(len(r.Tag)))
		off += 2
		copy(buf[off:off+len(r.Tag)], r.Tag)
		off += len(r.Tag)
	}
	return buf
}

// UnpackRegions is PackRegions's inverse. It fails with
// InvalidEncoding if the buffer is truncated mid-record.
func UnpackRegions(data []byte) ([]coderec.Region, error) {
	if len(data) < 4 {
		if len(data) == 0 {
			return nil, nil
		}
		return nil, apperr.New(apperr.InvalidEncoding, "region list buffer shorter than count header")
	}

	count := binary.LittleEndian.Uint32(data[0:4])
	off := 4
	regions := make([]coderec.Region, 0, count)

	for i := uint32(0); i < count; i++ {
		if off+26 > len(data) {
			return nil, apperr.New(apperr.InvalidEncoding, fmt.Sprintf("region list truncated at record %d", i))
		}
		start := binary.LittleEndian.Uint64(data[off : off+8])
		off += 8
		end := binary.LittleEndian.Uint64(data[off : off+8])
		off += 8
		length := binary.LittleEndian.Uint64(data[off : off+8])
		off += 8
		tagLen := int(binary.LittleEndian.Uint16(data[off : off+2]))
		off += 2

		if off+tagLen > len(data) {
			return nil, apperr.New(apperr.InvalidEncoding, fmt.Sprintf("region list tag truncated at record %d", i))
		}
		tag := string(data[off : off+tagLen])
		off += tagLen

		regions = append(regions, coderec.Region{Start: start, End: end, Length: length, Tag: tag})
	}

	return regions, nil
}
