// Package uid implements the global transaction identifiers written to the
// transaction journal and carried inside Xids.
//
// A Uid is an opaque byte sequence of 1..64 bytes laid out as:
//
//	Offset        Size  Description
//	------        ----  --------------------------------------------
//	 0            n     server id (US-ASCII, at most 51 bytes)
//	 n            8     creation timestamp, milliseconds (big-endian)
//	 n+8          4     per-process sequence number (big-endian)
//
// Two Uids compare by byte content. The timestamp and sequence number are
// recoverable from the tail of the byte sequence regardless of the server
// id length.
package uid

import (
	"encoding/hex"

	"github.com/ilyalabun/btm/internal/buf"
)

const (
	// MaxLength is the maximum total length of a Uid in bytes. The length
	// is carried in a single signed byte on disk.
	MaxLength = 64

	// MaxServerIDLength is the maximum length of the server id prefix,
	// leaving room for the timestamp and sequence number tail.
	MaxServerIDLength = 51

	timestampLength = 8
	sequenceLength  = 4
)

// Uid is a global transaction identifier. The underlying string holds the
// raw bytes, making Uid usable as a map key and immutable by construction.
type Uid string

// FromBytes builds a Uid from raw bytes.
func FromBytes(b []byte) Uid {
	return Uid(b)
}

// Bytes returns a copy of the raw bytes.
func (u Uid) Bytes() []byte {
	return []byte(u)
}

// Valid reports whether the Uid length is within the on-disk bounds.
func (u Uid) Valid() bool {
	return len(u) >= 1 && len(u) <= MaxLength
}

// Timestamp extracts the creation timestamp in milliseconds. Returns 0 when
// the Uid is too short to carry one.
func (u Uid) Timestamp() int64 {
	if len(u) < timestampLength+sequenceLength {
		return 0
	}
	return buf.I64BE([]byte(u[len(u)-timestampLength-sequenceLength:]))
}

// SequenceNumber extracts the per-process sequence number. Returns 0 when
// the Uid is too short to carry one.
func (u Uid) SequenceNumber() int32 {
	if len(u) < sequenceLength {
		return 0
	}
	return buf.I32BE([]byte(u[len(u)-sequenceLength:]))
}

// ServerID returns the server id prefix, or nil when the Uid is too short.
func (u Uid) ServerID() []byte {
	if len(u) < timestampLength+sequenceLength {
		return nil
	}
	return []byte(u[:len(u)-timestampLength-sequenceLength])
}

// String renders the Uid as lowercase hex.
func (u Uid) String() string {
	return hex.EncodeToString([]byte(u))
}
