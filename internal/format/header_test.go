package format

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileHeaderRoundTrip(t *testing.T) {
	h := FileHeader{
		FormatID:  FileFormatID,
		Timestamp: 1700000000000,
		State:     UncleanLogState,
		Position:  12345,
	}
	encoded := EncodeFileHeader(h)
	require.Len(t, encoded, HeaderLength)

	parsed, err := ParseFileHeader(encoded)
	require.NoError(t, err)
	assert.Equal(t, h, parsed)
}

func TestFileHeaderBadMagic(t *testing.T) {
	h := FileHeader{FormatID: FileFormatID, Position: HeaderLength}
	encoded := EncodeFileHeader(h)
	encoded[0] ^= 0xFF

	_, err := ParseFileHeader(encoded)
	assert.ErrorIs(t, err, ErrFormatIDMismatch)
}

func TestFileHeaderTruncated(t *testing.T) {
	_, err := ParseFileHeader(make([]byte, HeaderLength-1))
	assert.ErrorIs(t, err, ErrTruncated)
}
