package format

import (
	"fmt"

	"github.com/ilyalabun/btm/internal/buf"
)

// FileHeader captures the fixed header at the start of every fragment file.
type FileHeader struct {
	FormatID  int32
	Timestamp int64
	State     byte
	Position  int64
}

// ParseFileHeader validates and extracts the fragment file header.
func ParseFileHeader(b []byte) (FileHeader, error) {
	if len(b) < HeaderLength {
		return FileHeader{}, fmt.Errorf("fragment header: %w", ErrTruncated)
	}
	formatID := buf.I32BE(b[FormatIDOffset:])
	if formatID != FileFormatID {
		return FileHeader{}, fmt.Errorf("fragment header: got format id %#x, want %#x: %w",
			formatID, FileFormatID, ErrFormatIDMismatch)
	}
	return FileHeader{
		FormatID:  formatID,
		Timestamp: buf.I64BE(b[TimestampOffset:]),
		State:     b[StateOffset],
		Position:  buf.I64BE(b[PositionOffset:]),
	}, nil
}

// EncodeFileHeader returns the HeaderLength-byte encoding of h.
func EncodeFileHeader(h FileHeader) []byte {
	b := make([]byte, HeaderLength)
	buf.PutI32BE(b[FormatIDOffset:], h.FormatID)
	buf.PutI64BE(b[TimestampOffset:], h.Timestamp)
	b[StateOffset] = h.State
	buf.PutI64BE(b[PositionOffset:], h.Position)
	return b
}
