// Package format houses the low-level codec for the transaction log file
// format: the fragment file header and the CRC-protected status records.
// The goal is to keep the framing rules in one place, independent from the
// journal orchestration above it, so readers, writers and tooling all agree
// on the same byte layout.
package format

const (
	// FileFormatID is the four-byte magic at the start of every fragment
	// file, "BTM1" as a big-endian int32.
	FileFormatID int32 = 0x42544d31

	// EndRecord is the end-of-record marker terminating every record.
	EndRecord int32 = 0x786e7442

	// File header layout (big-endian):
	//
	//	Offset  Size  Description
	//	------  ----  ------------------------------------------
	//	 0x00    4    format id ("BTM1")
	//	 0x04    8    header timestamp, milliseconds
	//	 0x0C    1    log state (clean / unclean)
	//	 0x0D    8    current write position (cursor)
	FormatIDOffset  = 0x00
	TimestampOffset = 0x04
	StateOffset     = 0x0C
	PositionOffset  = 0x0D

	// HeaderLength is the total size of the file header; records start here.
	HeaderLength = 0x15

	// CleanLogState marks a fragment that was closed cleanly.
	CleanLogState byte = 0x00

	// UncleanLogState marks a fragment with a potentially running journal.
	// It is written at open time and replaced by CleanLogState on close.
	UncleanLogState byte = 0xFF

	// Record layout, offsets relative to the start of a record (big-endian):
	//
	//	Offset  Size  Description
	//	------  ----  ------------------------------------------
	//	 0x00    4    status (>= 0)
	//	 0x04    4    record length: bytes following this field
	//	 0x08    4    header length (fixed record header size)
	//	 0x0C    8    log time, milliseconds (> 0)
	//	 0x14    4    sequence number (> 0)
	//	 0x18    4    CRC-32 of every other field, in order
	//	 0x1C    1    gtrid size (1..64)
	//	 0x1D    n    gtrid bytes
	//	         4    unique names count (>= 0)
	//	         *    names: int16 length + US-ASCII bytes each
	//	         4    end-of-record marker
	StatusOffset       = 0x00
	RecordLengthOffset = 0x04
	HeaderLengthOffset = 0x08
	TimeOffset         = 0x0C
	SequenceOffset     = 0x14
	CRC32Offset        = 0x18
	GtridSizeOffset    = 0x1C
	GtridOffset        = 0x1D

	// RecordHeaderLength is the value stored in the header length field:
	// the size of the fixed part of a record, up to and including the gtrid
	// size byte.
	RecordHeaderLength = GtridOffset

	// fixedAfterLength is the fixed byte count covered by the record length
	// field before the gtrid: header length + time + sequence + crc + gtrid
	// size.
	fixedAfterLength = 4 + 8 + 4 + 4 + 1

	// EndRecordLength is the size of the end-of-record marker.
	EndRecordLength = 4
)
