// Package buf contains helpers for endian-safe encoding and decoding routines.
//
// The transaction log is written in big-endian (network) byte order, so all
// helpers here are big-endian. Readers return the zero value when the slice
// is too short; writers are no-ops on short slices. Callers that need hard
// bounds guarantees check slice lengths themselves before calling in.
package buf

import "encoding/binary"

// I16BE reads a big-endian int16 from b. Returns 0 when b is too short.
func I16BE(b []byte) int16 {
	if len(b) < 2 {
		return 0
	}
	return int16(binary.BigEndian.Uint16(b))
}

// I32BE reads a big-endian int32 from b. Returns 0 when b is too short.
func I32BE(b []byte) int32 {
	if len(b) < 4 {
		return 0
	}
	return int32(binary.BigEndian.Uint32(b))
}

// U32BE reads a big-endian uint32 from b. Returns 0 when b is too short.
func U32BE(b []byte) uint32 {
	if len(b) < 4 {
		return 0
	}
	return binary.BigEndian.Uint32(b)
}

// I64BE reads a big-endian int64 from b. Returns 0 when b is too short.
func I64BE(b []byte) int64 {
	if len(b) < 8 {
		return 0
	}
	return int64(binary.BigEndian.Uint64(b))
}

// PutI16BE writes a big-endian int16 into b. No-op when b is too short.
func PutI16BE(b []byte, v int16) {
	if len(b) < 2 {
		return
	}
	binary.BigEndian.PutUint16(b, uint16(v))
}

// PutI32BE writes a big-endian int32 into b. No-op when b is too short.
func PutI32BE(b []byte, v int32) {
	if len(b) < 4 {
		return
	}
	binary.BigEndian.PutUint32(b, uint32(v))
}

// PutU32BE writes a big-endian uint32 into b. No-op when b is too short.
func PutU32BE(b []byte, v uint32) {
	if len(b) < 4 {
		return
	}
	binary.BigEndian.PutUint32(b, v)
}

// PutI64BE writes a big-endian int64 into b. No-op when b is too short.
func PutI64BE(b []byte, v int64) {
	if len(b) < 8 {
		return
	}
	binary.BigEndian.PutUint64(b, uint64(v))
}

// AppendI16BE appends a big-endian int16 to dst.
func AppendI16BE(dst []byte, v int16) []byte {
	return binary.BigEndian.AppendUint16(dst, uint16(v))
}

// AppendI32BE appends a big-endian int32 to dst.
func AppendI32BE(dst []byte, v int32) []byte {
	return binary.BigEndian.AppendUint32(dst, uint32(v))
}

// AppendU32BE appends a big-endian uint32 to dst.
func AppendU32BE(dst []byte, v uint32) []byte {
	return binary.BigEndian.AppendUint32(dst, v)
}

// AppendI64BE appends a big-endian int64 to dst.
func AppendI64BE(dst []byte, v int64) []byte {
	return binary.BigEndian.AppendUint64(dst, uint64(v))
}
