// Package row packs and unpacks a set of column-id/value pairs into a
// self-describing binary blob with null tracking, the on-disk shape of
// one table row.
package row

import (
	"encoding/binary"
	"sort"

	"tablekv/internal/errs"
)

// header is the two-byte format/version tag every row blob starts with.
var header = [2]byte{0x80, 0x00}

// Column is one column-id/payload pair handed to Encoder. Payload is
// nil for a null column; otherwise it is the already plain-encoded
// value (see types.EncodePlain).
type Column struct {
	ID      uint32
	Payload []byte // nil means null
}

// Encode packs cols into the on-disk row format: the header, the
// non-null and null column-id counts, the sorted id lists, the
// cumulative end-offsets of the non-null payloads, and the
// concatenated non-null payloads themselves.
func Encode(cols []Column) []byte {
	var nonNull, null []Column
	for _, c := range cols {
		if c.Payload == nil {
			null = append(null, c)
		} else {
			nonNull = append(nonNull, c)
		}
	}
	sort.Slice(nonNull, func(i, j int) bool { return nonNull[i].ID < nonNull[j].ID })
	sort.Slice(null, func(i, j int) bool { return null[i].ID < null[j].ID })

	out := make([]byte, 0, 64)
	out = append(out, header[:]...)

	var countBuf [2]byte
	binary.LittleEndian.PutUint16(countBuf[:], uint16(len(nonNull)))
	out = append(out, countBuf[:]...)
	binary.LittleEndian.PutUint16(countBuf[:], uint16(len(null)))
	out = append(out, countBuf[:]...)

	var idBuf [4]byte
	for _, c := range nonNull {
		binary.LittleEndian.PutUint32(idBuf[:], c.ID)
		out = append(out, idBuf[:]...)
	}
	for _, c := range null {
		binary.LittleEndian.PutUint32(idBuf[:], c.ID)
		out = append(out, idBuf[:]...)
	}

	var offset uint32
	var offBuf [4]byte
	for _, c := range nonNull {
		offset += uint32(len(c.Payload))
		binary.LittleEndian.PutUint32(offBuf[:], offset)
		out = append(out, offBuf[:]...)
	}

	for _, c := range nonNull {
		out = append(out, c.Payload...)
	}
	return out
}

// Decoder provides O(log N) lookup into a decoded row blob.
type Decoder struct {
	nonNullIDs []uint32
	nullIDs    []uint32
	offsets    []uint32
	payload    []byte
}

// Decode parses a row blob produced by Encode.
func Decode(in []byte) (*Decoder, error) {
	if len(in) < 6 || in[0] != header[0] || in[1] != header[1] {
		return nil, errs.New(errs.KindCorruption, "bad row header")
	}
	in = in[2:]
	nonNullCount := int(binary.LittleEndian.Uint16(in))
	nullCount := int(binary.LittleEndian.Uint16(in[2:]))
	in = in[4:]

	need := (nonNullCount+nullCount)*4 + nonNullCount*4
	if len(in) < need {
		return nil, errs.New(errs.KindCorruption, "truncated row id/offset section")
	}

	nonNullIDs := make([]uint32, nonNullCount)
	for i := range nonNullIDs {
		nonNullIDs[i] = binary.LittleEndian.Uint32(in)
		in = in[4:]
	}
	nullIDs := make([]uint32, nullCount)
	for i := range nullIDs {
		nullIDs[i] = binary.LittleEndian.Uint32(in)
		in = in[4:]
	}
	offsets := make([]uint32, nonNullCount)
	for i := range offsets {
		offsets[i] = binary.LittleEndian.Uint32(in)
		in = in[4:]
	}

	if !sort.SliceIsSorted(nonNullIDs, func(i, j int) bool { return nonNullIDs[i] < nonNullIDs[j] }) {
		return nil, errs.New(errs.KindCorruption, "row non-null id list not sorted")
	}
	if !sort.SliceIsSorted(nullIDs, func(i, j int) bool { return nullIDs[i] < nullIDs[j] }) {
		return nil, errs.New(errs.KindCorruption, "row null id list not sorted")
	}
	var want uint32
	if nonNullCount > 0 {
		want = offsets[nonNullCount-1]
	}
	if uint32(len(in)) < want {
		return nil, errs.New(errs.KindCorruption, "truncated row payload section")
	}

	return &Decoder{nonNullIDs: nonNullIDs, nullIDs: nullIDs, offsets: offsets, payload: in}, nil
}

// Get looks up colID. present is false if the column does not appear
// in this row at all; otherwise null reports whether it is a null
// column, and data (when !null) is its raw plain-encoded payload.
func (d *Decoder) Get(colID uint32) (data []byte, present bool, null bool) {
	if i := search(d.nonNullIDs, colID); i >= 0 {
		start := uint32(0)
		if i > 0 {
			start = d.offsets[i-1]
		}
		end := d.offsets[i]
		return d.payload[start:end], true, false
	}
	if i := search(d.nullIDs, colID); i >= 0 {
		return nil, true, true
	}
	return nil, false, false
}

// ColumnIDs returns every column id present in the row, non-null ids
// first, each group in ascending order, matching the on-disk layout.
func (d *Decoder) ColumnIDs() (nonNull, null []uint32) {
	return d.nonNullIDs, d.nullIDs
}

func search(ids []uint32, target uint32) int {
	i := sort.Search(len(ids), func(i int) bool { return ids[i] >= target })
	if i < len(ids) && ids[i] == target {
		return i
	}
	return -1
}
