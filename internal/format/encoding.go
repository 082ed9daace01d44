package format

import (
	"fmt"
	"math"

	"github.com/ilyalabun/btm/internal/buf"
	"github.com/ilyalabun/btm/uid"
)

// AppendRecord appends the on-disk encoding of r to dst. The stored length
// and CRC fields are written as-is, so a caller deliberately building a bad
// record gets it back byte for byte.
func AppendRecord(dst []byte, r *Record) []byte {
	dst = buf.AppendI32BE(dst, r.Status)
	dst = buf.AppendI32BE(dst, r.RecordLength)
	dst = buf.AppendI32BE(dst, r.HeaderLength)
	dst = buf.AppendI64BE(dst, r.Time)
	dst = buf.AppendI32BE(dst, r.SequenceNumber)
	dst = buf.AppendU32BE(dst, r.CRC32)
	dst = append(dst, byte(len(r.Gtrid)))
	dst = append(dst, r.Gtrid...)
	dst = buf.AppendI32BE(dst, int32(len(r.UniqueNames)))
	for _, name := range r.UniqueNames {
		dst = buf.AppendI16BE(dst, int16(len(name)))
		dst = append(dst, name...)
	}
	dst = buf.AppendI32BE(dst, r.EndRecord)
	return dst
}

// EncodeRecord returns the on-disk encoding of r.
func EncodeRecord(r *Record) []byte {
	return AppendRecord(make([]byte, 0, r.WireSize()), r)
}

// DecodeRecord decodes one record from data at absolute offset off. end is
// the logical end of the record region (the fragment's write cursor).
//
// On success it returns the record and the offset of the next one. On a
// structural or CRC failure it returns a *CorruptedRecordError together
// with the best-effort next offset derived from the claimed record length,
// so a scan configured to skip corrupted records can continue. When the
// record length field itself cannot be trusted the error wraps
// ErrUnreadableLog and the scan must stop.
func DecodeRecord(data []byte, off, end int64, skipCRCCheck bool) (*Record, int64, error) {
	recordPos := off
	if off+8 > end {
		return nil, end, corruptf(recordPos, "truncated record header (%d bytes left)", end-off)
	}

	recStatus := buf.I32BE(data[off:])
	recordLength := buf.I32BE(data[off+4:])
	if recordLength < 0 {
		return nil, off, fmt.Errorf("record length is negative (%d) at position %d: %w", recordLength, recordPos, ErrUnreadableLog)
	}

	recordStart := off + 8
	endOfRecord := recordStart + int64(recordLength)
	if endOfRecord > int64(len(data)) {
		return nil, off, fmt.Errorf("record length %d at position %d runs past the end of the file: %w", recordLength, recordPos, ErrUnreadableLog)
	}
	if recStatus < 0 {
		return nil, endOfRecord, corruptf(recordPos, "status is negative (%d)", recStatus)
	}
	if endOfRecord > end {
		return nil, endOfRecord, corruptf(recordPos,
			"record terminator outside of log bounds: %d of %d (record length %d)", endOfRecord, end, recordLength)
	}

	rd := &recordReader{data: data, pos: recordStart, limit: endOfRecord, recordPos: recordPos}

	headerLength, err := rd.i32("header length", 1, math.MaxInt32)
	if err != nil {
		return nil, endOfRecord, err
	}
	logTime, err := rd.i64("time", 1, math.MaxInt64)
	if err != nil {
		return nil, endOfRecord, err
	}
	sequenceNumber, err := rd.i32("sequence number", 1, math.MaxInt32)
	if err != nil {
		return nil, endOfRecord, err
	}
	crc, err := rd.u32()
	if err != nil {
		return nil, endOfRecord, err
	}
	gtridSize, err := rd.i8("gtrid size", 1, uid.MaxLength)
	if err != nil {
		return nil, endOfRecord, err
	}

	// check for the log terminator before trusting the variable-size part
	if buf.I32BE(data[endOfRecord-EndRecordLength:]) != EndRecord {
		return nil, endOfRecord, corruptf(recordPos, "no record terminator found")
	}

	if fixedAfterLength+int(gtridSize) > int(recordLength) {
		return nil, endOfRecord, corruptf(recordPos, "gtrid size too long (%d of record length %d)", gtridSize, recordLength)
	}

	gtridBytes, err := rd.take(int(gtridSize))
	if err != nil {
		return nil, endOfRecord, err
	}

	namesCount, err := rd.i32("unique names count", 0, math.MaxInt32)
	if err != nil {
		return nil, endOfRecord, err
	}

	names := make([]string, 0, min(int(namesCount), 16))
	readCount := fixedAfterLength + int(gtridSize) + 4
	for i := int32(0); i < namesCount; i++ {
		nameLength, err := rd.i16("unique name length", 1, math.MaxInt16)
		if err != nil {
			return nil, endOfRecord, err
		}
		readCount += 2 + int(nameLength)
		if readCount > int(recordLength) {
			return nil, endOfRecord, corruptf(recordPos,
				"unique names too long (%d out of %d, length %d, read count %d, record length %d)",
				i+1, namesCount, nameLength, readCount, recordLength)
		}
		nameBytes, err := rd.take(int(nameLength))
		if err != nil {
			return nil, endOfRecord, err
		}
		names = append(names, string(nameBytes))
	}

	endMarker, err := rd.i32("end record marker", math.MinInt32, math.MaxInt32)
	if err != nil {
		return nil, endOfRecord, err
	}

	rec := &Record{
		Status:         recStatus,
		RecordLength:   recordLength,
		HeaderLength:   headerLength,
		Time:           logTime,
		SequenceNumber: sequenceNumber,
		CRC32:          crc,
		Gtrid:          uid.FromBytes(gtridBytes),
		UniqueNames:    names,
		EndRecord:      endMarker,
	}

	if !skipCRCCheck && !rec.CRC32Correct() {
		return nil, endOfRecord, corruptf(recordPos,
			"invalid CRC (recorded: %d, calculated: %d)", rec.CRC32, rec.CalculateCRC32())
	}

	return rec, endOfRecord, nil
}

// recordReader reads record fields sequentially, reporting any read that
// crosses the record boundary or any value outside its declared bounds as
// a corrupted record.
type recordReader struct {
	data      []byte
	pos       int64
	limit     int64
	recordPos int64
}

func (r *recordReader) take(n int) ([]byte, *CorruptedRecordError) {
	if r.pos+int64(n) > r.limit {
		return nil, corruptf(r.recordPos, "field of %d bytes at %d crosses the record boundary %d", n, r.pos, r.limit)
	}
	b := r.data[r.pos : r.pos+int64(n)]
	r.pos += int64(n)
	return b, nil
}

func (r *recordReader) outOfBounds(field string, value, lower, upper int64) *CorruptedRecordError {
	return corruptf(r.recordPos, "record field [%s] with value %d is out of its bounds [%d, %d]", field, value, lower, upper)
}

func (r *recordReader) i32(field string, lower, upper int64) (int32, error) {
	b, err := r.take(4)
	if err != nil {
		return 0, err
	}
	v := buf.I32BE(b)
	if int64(v) < lower || int64(v) > upper {
		return 0, r.outOfBounds(field, int64(v), lower, upper)
	}
	return v, nil
}

func (r *recordReader) i64(field string, lower, upper int64) (int64, error) {
	b, err := r.take(8)
	if err != nil {
		return 0, err
	}
	v := buf.I64BE(b)
	if v < lower || v > upper {
		return 0, r.outOfBounds(field, v, lower, upper)
	}
	return v, nil
}

func (r *recordReader) i16(field string, lower, upper int64) (int16, error) {
	b, err := r.take(2)
	if err != nil {
		return 0, err
	}
	v := buf.I16BE(b)
	if int64(v) < lower || int64(v) > upper {
		return 0, r.outOfBounds(field, int64(v), lower, upper)
	}
	return v, nil
}

func (r *recordReader) i8(field string, lower, upper int64) (int8, error) {
	b, err := r.take(1)
	if err != nil {
		return 0, err
	}
	v := int8(b[0])
	if int64(v) < lower || int64(v) > upper {
		return 0, r.outOfBounds(field, int64(v), lower, upper)
	}
	return v, nil
}

func (r *recordReader) u32() (uint32, error) {
	b, err := r.take(4)
	if err != nil {
		return 0, err
	}
	return buf.U32BE(b), nil
}
