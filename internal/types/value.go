// Package types implements the scalar value codec: the plain (compact)
// and comparable (order-preserving) binary encodings used for row
// payloads and key bytes respectively.
package types

import (
	"encoding/binary"
	"fmt"
	"math"

	"tablekv/internal/errs"
)

// Kind tags the concrete variant held by a Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindBytes
	KindInt
	KindFloat32
	KindFloat64
	KindDate
	KindTime
)

// SQLType is the declared column type that governs how a Value is
// encoded. Several SQLType values map onto the same Kind (CHAR,
// VARCHAR, TEXT, and String all carry KindBytes).
type SQLType uint8

const (
	SQLSmallInt SQLType = iota
	SQLInt
	SQLBigInt
	SQLFloat
	SQLDouble
	SQLChar
	SQLVarchar
	SQLText
	SQLString
	SQLDate
	SQLTime
)

func (t SQLType) String() string {
	switch t {
	case SQLSmallInt:
		return "SMALLINT"
	case SQLInt:
		return "INT"
	case SQLBigInt:
		return "BIGINT"
	case SQLFloat:
		return "FLOAT"
	case SQLDouble:
		return "DOUBLE"
	case SQLChar:
		return "CHAR"
	case SQLVarchar:
		return "VARCHAR"
	case SQLText:
		return "TEXT"
	case SQLString:
		return "STRING"
	case SQLDate:
		return "DATE"
	case SQLTime:
		return "TIME"
	default:
		return "UNKNOWN"
	}
}

// Date holds the fields of a DATE/DATETIME value.
type Date struct {
	Year   uint16
	Month  uint8
	Day    uint8
	Hour   uint8
	Minute uint8
	Second uint8
	Micro  uint32
}

// Time holds the fields of a (possibly negative) TIME duration value.
type Time struct {
	Negative bool
	Days     uint32
	Hours    uint8
	Minutes  uint8
	Seconds  uint8
	Micro    uint32
}

// Value is the tagged union over every supported SQL scalar.
type Value struct {
	Kind    Kind
	Bytes   []byte
	Int     int64
	Float32 float32
	Float64 float64
	Date    Date
	Time    Time
}

func Null() Value                { return Value{Kind: KindNull} }
func FromBytes(b []byte) Value   { return Value{Kind: KindBytes, Bytes: b} }
func FromInt(v int64) Value      { return Value{Kind: KindInt, Int: v} }
func FromFloat32(v float32) Value { return Value{Kind: KindFloat32, Float32: v} }
func FromFloat64(v float64) Value { return Value{Kind: KindFloat64, Float64: v} }
func FromDate(d Date) Value       { return Value{Kind: KindDate, Date: d} }
func FromTime(t Time) Value       { return Value{Kind: KindTime, Time: t} }

func (v Value) IsNull() bool { return v.Kind == KindNull }

// Equal implements the source's narrow equality relation: only Null,
// Int, and Bytes compare meaningfully. Float, Date, and Time always
// compare unequal, even against themselves — a known upstream defect
// preserved intentionally.
func (v Value) Equal(o Value) bool {
	switch v.Kind {
	case KindNull:
		return o.Kind == KindNull
	case KindInt:
		return o.Kind == KindInt && v.Int == o.Int
	case KindBytes:
		if o.Kind != KindBytes || len(v.Bytes) != len(o.Bytes) {
			return false
		}
		for i := range v.Bytes {
			if v.Bytes[i] != o.Bytes[i] {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// String renders the decoded scalar as its UTF-8 text form, the shape
// sent to a MySQL wire client.
func (v Value) String() string {
	switch v.Kind {
	case KindNull:
		return "NULL"
	case KindBytes:
		return string(v.Bytes)
	case KindInt:
		return fmt.Sprintf("%d", v.Int)
	case KindFloat32:
		return fmt.Sprintf("%v", v.Float32)
	case KindFloat64:
		return fmt.Sprintf("%v", v.Float64)
	case KindDate:
		d := v.Date
		return fmt.Sprintf("%04d-%02d-%02d %02d:%02d:%02d.%06d", d.Year, d.Month, d.Day, d.Hour, d.Minute, d.Second, d.Micro)
	case KindTime:
		t := v.Time
		sign := ""
		if t.Negative {
			sign = "-"
		}
		return fmt.Sprintf("%s%dd %02d:%02d:%02d.%06d", sign, t.Days, t.Hours, t.Minutes, t.Seconds, t.Micro)
	default:
		return ""
	}
}

// --- plain encoding -------------------------------------------------

// EncodePlain appends v's compact binary form to out, per the declared
// type t, and returns the extended slice.
func EncodePlain(v Value, t SQLType, out []byte) ([]byte, error) {
	if v.IsNull() {
		return out, nil
	}
	switch v.Kind {
	case KindInt:
		return encodePlainInt(v.Int, t, out)
	case KindFloat32:
		if t != SQLFloat {
			return nil, errs.Newf(errs.KindInvalidType, "float32 value not compatible with %s", t)
		}
		var b [4]byte
		binary.LittleEndian.PutUint32(b[:], math.Float32bits(v.Float32))
		return append(out, b[:]...), nil
	case KindFloat64:
		if t != SQLDouble {
			return nil, errs.Newf(errs.KindInvalidType, "float64 value not compatible with %s", t)
		}
		var b [8]byte
		binary.LittleEndian.PutUint64(b[:], math.Float64bits(v.Float64))
		return append(out, b[:]...), nil
	case KindBytes:
		if !isBytesType(t) {
			return nil, errs.Newf(errs.KindInvalidType, "bytes value not compatible with %s", t)
		}
		var lenBuf [4]byte
		binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(v.Bytes)))
		out = append(out, lenBuf[:]...)
		return append(out, v.Bytes...), nil
	case KindDate:
		if t != SQLDate {
			return nil, errs.Newf(errs.KindInvalidType, "date value not compatible with %s", t)
		}
		d := v.Date
		length := byte(7)
		if d.Micro != 0 {
			length = 11
		}
		out = append(out, length)
		var yearBuf [2]byte
		binary.LittleEndian.PutUint16(yearBuf[:], d.Year)
		out = append(out, yearBuf[:]...)
		out = append(out, d.Month, d.Day, d.Hour, d.Minute, d.Second)
		if length == 11 {
			var microBuf [4]byte
			binary.LittleEndian.PutUint32(microBuf[:], d.Micro)
			out = append(out, microBuf[:]...)
		}
		return out, nil
	case KindTime:
		if t != SQLTime {
			return nil, errs.Newf(errs.KindInvalidType, "time value not compatible with %s", t)
		}
		tm := v.Time
		out = append(out, 12)
		neg := byte(0)
		if tm.Negative {
			neg = 1
		}
		out = append(out, neg)
		var daysBuf [4]byte
		binary.LittleEndian.PutUint32(daysBuf[:], tm.Days)
		out = append(out, daysBuf[:]...)
		out = append(out, tm.Hours, tm.Minutes, tm.Seconds)
		var microBuf [4]byte
		binary.LittleEndian.PutUint32(microBuf[:], tm.Micro)
		out = append(out, microBuf[:]...)
		return out, nil
	default:
		return nil, errs.New(errs.KindInvalidType, "unknown value kind")
	}
}

// --- comparable encoding ---------------------------------------------
//
// Payload bytes are chunked into 8-byte groups, each followed by a
// marker. A full group's marker is 255. Bytes values are variable
// length and self-delimiting: every run of full groups is closed by
// one more group, right-padded with zero, whose marker is
// 255-8+remaining (247 when remaining is zero, i.e. an empty value or
// a payload that is an exact multiple of 8). Fixed-width values (Int,
// Float32, Float64, Date, Time) have a statically known payload length
// for their declared type, so they emit exactly ceil(length/8) groups
// with no extra terminator: the decoder already knows how many groups
// to read.
const (
	groupSize  = 8
	markerFull = 255
	// presenceNull and presenceValue are a one-byte tag prefixed to
	// every comparable encoding ahead of the type-specific payload.
	// Payload bytes span the full 0-255 range, so NULL can't be made
	// to sort before every possible payload by choosing a small first
	// payload byte; a dedicated tag byte does it unconditionally.
	presenceNull  = 0x00
	presenceValue = 0x01
)

func appendGroup(out []byte, data []byte) []byte {
	var block [groupSize]byte
	copy(block[:], data)
	out = append(out, block[:]...)
	return append(out, byte(markerFull-groupSize+len(data)))
}

// encodeFixedGroups chunks a payload of statically known length into
// ceil(len/8) groups with no extra terminator group.
func encodeFixedGroups(payload []byte, out []byte) []byte {
	i := 0
	for len(payload)-i >= groupSize {
		out = append(out, payload[i:i+groupSize]...)
		out = append(out, markerFull)
		i += groupSize
	}
	if rem := len(payload) - i; rem > 0 {
		out = appendGroup(out, payload[i:])
	}
	return out
}

// decodeFixedGroups reads ceil(payloadLen/8) groups from the front of
// in and returns the reassembled payload (truncated to payloadLen)
// along with the unconsumed remainder.
func decodeFixedGroups(in []byte, payloadLen int) ([]byte, []byte, error) {
	payload := make([]byte, 0, payloadLen)
	remaining := payloadLen
	for remaining > 0 {
		if len(in) < groupSize+1 {
			return nil, nil, errs.New(errs.KindCorruption, "truncated comparable group")
		}
		take := remaining
		if take > groupSize {
			take = groupSize
		}
		payload = append(payload, in[:take]...)
		in = in[groupSize+1:]
		remaining -= take
	}
	return payload, in, nil
}

// encodeVariableGroups chunks an arbitrary-length payload into full
// groups followed by exactly one terminator group, making the result
// self-delimiting within a longer concatenated key.
func encodeVariableGroups(payload []byte, out []byte) []byte {
	i := 0
	for len(payload)-i >= groupSize {
		out = append(out, payload[i:i+groupSize]...)
		out = append(out, markerFull)
		i += groupSize
	}
	return appendGroup(out, payload[i:])
}

// decodeVariableGroups reads groups from the front of in until it
// finds one whose marker is not 255, returning the reassembled
// payload and the unconsumed remainder.
func decodeVariableGroups(in []byte) ([]byte, []byte, error) {
	var payload []byte
	for {
		if len(in) < groupSize+1 {
			return nil, nil, errs.New(errs.KindCorruption, "truncated comparable group")
		}
		block, marker := in[:groupSize], in[groupSize]
		in = in[groupSize+1:]
		if marker == markerFull {
			payload = append(payload, block...)
			continue
		}
		if marker < markerFull-groupSize || marker > markerFull {
			return nil, nil, errs.Newf(errs.KindCorruption, "invalid comparable marker byte %d", marker)
		}
		remaining := int(marker) - (markerFull - groupSize)
		payload = append(payload, block[:remaining]...)
		return payload, in, nil
	}
}

// float64ComparableBits flips the sign bit of a positive value's IEEE
// representation and inverts all bits of a negative value's, so that
// unsigned big-endian byte comparison of the result agrees with the
// natural ordering of the originals.
func float64ComparableBits(f float64) uint64 {
	bits := math.Float64bits(f)
	if bits&(1<<63) == 0 {
		return bits | (1 << 63)
	}
	return ^bits
}

func float64FromComparableBits(bits uint64) float64 {
	if bits&(1<<63) != 0 {
		return math.Float64frombits(bits &^ (1 << 63))
	}
	return math.Float64frombits(^bits)
}

func float32ComparableBits(f float32) uint32 {
	bits := math.Float32bits(f)
	if bits&(1<<31) == 0 {
		return bits | (1 << 31)
	}
	return ^bits
}

func float32FromComparableBits(bits uint32) float32 {
	if bits&(1<<31) != 0 {
		return math.Float32frombits(bits &^ (1 << 31))
	}
	return math.Float32frombits(^bits)
}

// EncodeComparable appends v's order-preserving binary form to out per
// the declared type t. Bytes, Float32, and Float64 values of the same
// declared type compare in the same order as the lexicographic
// comparison of their encodings. Int, Date, and Time payloads are
// little-endian, so their encodings do not follow numeric order (for
// example, 256 sorts before 1; see DESIGN.md).
func EncodeComparable(v Value, t SQLType, out []byte) ([]byte, error) {
	if v.IsNull() {
		return append(out, presenceNull), nil
	}
	out = append(out, presenceValue)
	switch v.Kind {
	case KindInt:
		var b [8]byte
		binary.LittleEndian.PutUint64(b[:], uint64(v.Int))
		return encodeFixedGroups(b[:], out), nil
	case KindFloat64:
		if t != SQLDouble {
			return nil, errs.Newf(errs.KindInvalidType, "float64 value not compatible with %s", t)
		}
		var b [8]byte
		binary.BigEndian.PutUint64(b[:], float64ComparableBits(v.Float64))
		return encodeFixedGroups(b[:], out), nil
	case KindFloat32:
		if t != SQLFloat {
			return nil, errs.Newf(errs.KindInvalidType, "float32 value not compatible with %s", t)
		}
		var b [4]byte
		binary.BigEndian.PutUint32(b[:], float32ComparableBits(v.Float32))
		return encodeFixedGroups(b[:], out), nil
	case KindBytes:
		if !isBytesType(t) {
			return nil, errs.Newf(errs.KindInvalidType, "bytes value not compatible with %s", t)
		}
		return encodeVariableGroups(v.Bytes, out), nil
	case KindDate:
		if t != SQLDate {
			return nil, errs.Newf(errs.KindInvalidType, "date value not compatible with %s", t)
		}
		d := v.Date
		payload := make([]byte, 0, 11)
		var yearBuf [2]byte
		binary.LittleEndian.PutUint16(yearBuf[:], d.Year)
		payload = append(payload, yearBuf[:]...)
		payload = append(payload, d.Month, d.Day, d.Hour, d.Minute, d.Second)
		var microBuf [4]byte
		binary.LittleEndian.PutUint32(microBuf[:], d.Micro)
		payload = append(payload, microBuf[:]...)
		return encodeFixedGroups(payload, out), nil
	case KindTime:
		if t != SQLTime {
			return nil, errs.Newf(errs.KindInvalidType, "time value not compatible with %s", t)
		}
		tm := v.Time
		payload := make([]byte, 0, 12)
		neg := byte(0)
		if tm.Negative {
			neg = 1
		}
		payload = append(payload, neg)
		var daysBuf [4]byte
		binary.LittleEndian.PutUint32(daysBuf[:], tm.Days)
		payload = append(payload, daysBuf[:]...)
		payload = append(payload, tm.Hours, tm.Minutes, tm.Seconds)
		var microBuf [4]byte
		binary.LittleEndian.PutUint32(microBuf[:], tm.Micro)
		payload = append(payload, microBuf[:]...)
		return encodeFixedGroups(payload, out), nil
	default:
		return nil, errs.New(errs.KindInvalidType, "unknown value kind")
	}
}

// DecodeComparable reads one value of type t from the front of in,
// returning it along with the unconsumed remainder. A leading
// presenceNull tag decodes to Null; an all-zero group with marker 247
// after a presenceValue tag is an empty Bytes value.
func DecodeComparable(in []byte, t SQLType) (Value, []byte, error) {
	if len(in) == 0 {
		return Value{}, nil, errs.New(errs.KindCorruption, "empty comparable value")
	}
	tag := in[0]
	in = in[1:]
	if tag == presenceNull {
		return Null(), in, nil
	}
	if tag != presenceValue {
		return Value{}, nil, errs.Newf(errs.KindCorruption, "invalid comparable presence tag %d", tag)
	}
	switch t {
	case SQLSmallInt, SQLInt, SQLBigInt:
		payload, rest, err := decodeFixedGroups(in, 8)
		if err != nil {
			return Value{}, nil, err
		}
		return FromInt(int64(binary.LittleEndian.Uint64(payload))), rest, nil
	case SQLDouble:
		payload, rest, err := decodeFixedGroups(in, 8)
		if err != nil {
			return Value{}, nil, err
		}
		return FromFloat64(float64FromComparableBits(binary.BigEndian.Uint64(payload))), rest, nil
	case SQLFloat:
		payload, rest, err := decodeFixedGroups(in, 4)
		if err != nil {
			return Value{}, nil, err
		}
		return FromFloat32(float32FromComparableBits(binary.BigEndian.Uint32(payload))), rest, nil
	case SQLChar, SQLVarchar, SQLText, SQLString:
		payload, rest, err := decodeVariableGroups(in)
		if err != nil {
			return Value{}, nil, err
		}
		return FromBytes(payload), rest, nil
	case SQLDate:
		payload, rest, err := decodeFixedGroups(in, 11)
		if err != nil {
			return Value{}, nil, err
		}
		var d Date
		d.Year = binary.LittleEndian.Uint16(payload)
		d.Month, d.Day, d.Hour, d.Minute, d.Second = payload[2], payload[3], payload[4], payload[5], payload[6]
		d.Micro = binary.LittleEndian.Uint32(payload[7:11])
		return FromDate(d), rest, nil
	case SQLTime:
		payload, rest, err := decodeFixedGroups(in, 12)
		if err != nil {
			return Value{}, nil, err
		}
		var tm Time
		tm.Negative = payload[0] == 1
		tm.Days = binary.LittleEndian.Uint32(payload[1:5])
		tm.Hours, tm.Minutes, tm.Seconds = payload[5], payload[6], payload[7]
		tm.Micro = binary.LittleEndian.Uint32(payload[8:12])
		return FromTime(tm), rest, nil
	default:
		return Value{}, nil, errs.New(errs.KindInvalidType, "unknown declared type")
	}
}

func encodePlainInt(v int64, t SQLType, out []byte) ([]byte, error) {
	switch t {
	case SQLSmallInt:
		var b [2]byte
		binary.LittleEndian.PutUint16(b[:], uint16(int16(v)))
		return append(out, b[:]...), nil
	case SQLInt:
		var b [4]byte
		binary.LittleEndian.PutUint32(b[:], uint32(int32(v)))
		return append(out, b[:]...), nil
	case SQLBigInt:
		var b [8]byte
		binary.LittleEndian.PutUint64(b[:], uint64(v))
		return append(out, b[:]...), nil
	default:
		return nil, errs.Newf(errs.KindInvalidType, "int value not compatible with %s", t)
	}
}

func isBytesType(t SQLType) bool {
	switch t {
	case SQLChar, SQLVarchar, SQLText, SQLString:
		return true
	default:
		return false
	}
}

// DecodePlain reads one value of type t from the front of in and
// returns it along with the unconsumed remainder.
func DecodePlain(in []byte, t SQLType) (Value, []byte, error) {
	switch t {
	case SQLSmallInt:
		if len(in) < 2 {
			return Value{}, nil, errs.New(errs.KindCorruption, "truncated smallint")
		}
		return FromInt(int64(int16(binary.LittleEndian.Uint16(in)))), in[2:], nil
	case SQLInt:
		if len(in) < 4 {
			return Value{}, nil, errs.New(errs.KindCorruption, "truncated int")
		}
		return FromInt(int64(int32(binary.LittleEndian.Uint32(in)))), in[4:], nil
	case SQLBigInt:
		if len(in) < 8 {
			return Value{}, nil, errs.New(errs.KindCorruption, "truncated bigint")
		}
		return FromInt(int64(binary.LittleEndian.Uint64(in))), in[8:], nil
	case SQLFloat:
		if len(in) < 4 {
			return Value{}, nil, errs.New(errs.KindCorruption, "truncated float")
		}
		return FromFloat32(math.Float32frombits(binary.LittleEndian.Uint32(in))), in[4:], nil
	case SQLDouble:
		if len(in) < 8 {
			return Value{}, nil, errs.New(errs.KindCorruption, "truncated double")
		}
		return FromFloat64(math.Float64frombits(binary.LittleEndian.Uint64(in))), in[8:], nil
	case SQLChar, SQLVarchar, SQLText, SQLString:
		if len(in) < 4 {
			return Value{}, nil, errs.New(errs.KindCorruption, "truncated length prefix")
		}
		n := binary.LittleEndian.Uint32(in)
		in = in[4:]
		if uint32(len(in)) < n {
			return Value{}, nil, errs.New(errs.KindCorruption, "truncated bytes payload")
		}
		buf := make([]byte, n)
		copy(buf, in[:n])
		return FromBytes(buf), in[n:], nil
	case SQLDate:
		if len(in) < 1 {
			return Value{}, nil, errs.New(errs.KindCorruption, "truncated date length")
		}
		length := in[0]
		in = in[1:]
		var d Date
		if length >= 4 {
			if len(in) < 4 {
				return Value{}, nil, errs.New(errs.KindCorruption, "truncated date")
			}
			d.Year = binary.LittleEndian.Uint16(in)
			d.Month, d.Day = in[2], in[3]
			in = in[4:]
		}
		if length >= 7 {
			if len(in) < 3 {
				return Value{}, nil, errs.New(errs.KindCorruption, "truncated date time-of-day")
			}
			d.Hour, d.Minute, d.Second = in[0], in[1], in[2]
			in = in[3:]
		}
		if length == 11 {
			if len(in) < 4 {
				return Value{}, nil, errs.New(errs.KindCorruption, "truncated date micros")
			}
			d.Micro = binary.LittleEndian.Uint32(in)
			in = in[4:]
		}
		return FromDate(d), in, nil
	case SQLTime:
		if len(in) < 1 {
			return Value{}, nil, errs.New(errs.KindCorruption, "truncated time length")
		}
		length := in[0]
		in = in[1:]
		var tm Time
		if length >= 8 {
			if len(in) < 8 {
				return Value{}, nil, errs.New(errs.KindCorruption, "truncated time")
			}
			tm.Negative = in[0] == 1
			tm.Days = binary.LittleEndian.Uint32(in[1:5])
			tm.Hours, tm.Minutes, tm.Seconds = in[5], in[6], in[7]
			in = in[8:]
		}
		if length == 12 {
			if len(in) < 4 {
				return Value{}, nil, errs.New(errs.KindCorruption, "truncated time micros")
			}
			tm.Micro = binary.LittleEndian.Uint32(in)
			in = in[4:]
		}
		return FromTime(tm), in, nil
	default:
		return Value{}, nil, errs.New(errs.KindInvalidType, "unknown declared type")
	}
}
