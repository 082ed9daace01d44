package format

import (
	"fmt"
	"hash/crc32"
	"math"
	"unicode"

	"github.com/ilyalabun/btm/internal/buf"
	"github.com/ilyalabun/btm/uid"
)

// Record is one transaction status record, both the in-memory and the
// on-disk representation.
type Record struct {
	Status         int32
	RecordLength   int32
	HeaderLength   int32
	Time           int64
	SequenceNumber int32
	CRC32          uint32
	Gtrid          uid.Uid
	UniqueNames    []string
	EndRecord      int32
}

// NewRecord builds a fully populated record for the given status change,
// computing the length fields and the CRC.
func NewRecord(status int32, gtrid uid.Uid, uniqueNames []string, time int64, sequenceNumber int32) *Record {
	r := &Record{
		Status:         status,
		HeaderLength:   RecordHeaderLength,
		Time:           time,
		SequenceNumber: sequenceNumber,
		Gtrid:          gtrid,
		UniqueNames:    append([]string(nil), uniqueNames...),
		EndRecord:      EndRecord,
	}
	r.RecordLength = r.calculateRecordLength()
	r.CRC32 = r.CalculateCRC32()
	return r
}

// calculateRecordLength returns the number of bytes following the record
// length field, end marker included.
func (r *Record) calculateRecordLength() int32 {
	length := fixedAfterLength + len(r.Gtrid) + 4 + EndRecordLength
	for _, name := range r.UniqueNames {
		length += 2 + len(name)
	}
	return int32(length)
}

// WireSize returns the total on-disk size of the record.
func (r *Record) WireSize() int64 {
	return int64(r.RecordLength) + 8
}

// CalculateCRC32 computes the record checksum: CRC-32 (IEEE) of every field
// in on-disk order, with the crc32 field itself left out.
func (r *Record) CalculateCRC32() uint32 {
	fodder := make([]byte, 0, r.WireSize())
	fodder = buf.AppendI32BE(fodder, r.Status)
	fodder = buf.AppendI32BE(fodder, r.RecordLength)
	fodder = buf.AppendI32BE(fodder, r.HeaderLength)
	fodder = buf.AppendI64BE(fodder, r.Time)
	fodder = buf.AppendI32BE(fodder, r.SequenceNumber)
	fodder = append(fodder, byte(len(r.Gtrid)))
	fodder = append(fodder, r.Gtrid...)
	fodder = buf.AppendI32BE(fodder, int32(len(r.UniqueNames)))
	for _, name := range r.UniqueNames {
		fodder = buf.AppendI16BE(fodder, int16(len(name)))
		fodder = append(fodder, name...)
	}
	fodder = buf.AppendI32BE(fodder, r.EndRecord)
	return crc32.ChecksumIEEE(fodder)
}

// CRC32Correct reports whether the stored checksum matches a recomputation
// over the record fields.
func (r *Record) CRC32Correct() bool {
	return r.CRC32 == r.CalculateCRC32()
}

// ContainsName reports whether the record names the given resource.
func (r *Record) ContainsName(name string) bool {
	for _, n := range r.UniqueNames {
		if n == name {
			return true
		}
	}
	return false
}

// Validate checks the constraints every record must satisfy before it is
// written: non-negative status, in-bounds gtrid, and US-ASCII resource
// names short enough for their int16 length prefix.
func (r *Record) Validate() error {
	if r.Status < 0 {
		return fmt.Errorf("invalid status %d: cannot be negative", r.Status)
	}
	if !r.Gtrid.Valid() {
		return fmt.Errorf("invalid gtrid length %d: must be between 1 and %d", len(r.Gtrid), uid.MaxLength)
	}
	for _, name := range r.UniqueNames {
		if len(name) < 1 || len(name) > math.MaxInt16 {
			return fmt.Errorf("invalid unique name length %d", len(name))
		}
		for _, c := range name {
			if c > unicode.MaxASCII {
				return fmt.Errorf("unique name %q is not US-ASCII", name)
			}
		}
	}
	return nil
}

func (r *Record) String() string {
	return fmt.Sprintf("record{status=%d gtrid=%s seq=%d time=%d names=%v}",
		r.Status, r.Gtrid, r.SequenceNumber, r.Time, r.UniqueNames)
}
