package buf

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestI32BERoundTrip(t *testing.T) {
	b := make([]byte, 4)
	PutI32BE(b, -559038737)
	assert.Equal(t, int32(-559038737), I32BE(b))
	assert.Equal(t, []byte{0xDE, 0xAD, 0xBE, 0xEF}, b)
}

func TestI64BERoundTrip(t *testing.T) {
	b := make([]byte, 8)
	PutI64BE(b, 1234567890123)
	assert.Equal(t, int64(1234567890123), I64BE(b))
}

func TestI16BERoundTrip(t *testing.T) {
	b := make([]byte, 2)
	PutI16BE(b, -2)
	assert.Equal(t, int16(-2), I16BE(b))
}

func TestShortBuffers(t *testing.T) {
	assert.Equal(t, int16(0), I16BE([]byte{1}))
	assert.Equal(t, int32(0), I32BE([]byte{1, 2, 3}))
	assert.Equal(t, int64(0), I64BE([]byte{1, 2, 3, 4, 5, 6, 7}))
	assert.Equal(t, uint32(0), U32BE(nil))

	// writers must not panic on short slices
	PutI32BE([]byte{0}, 42)
	PutI64BE(nil, 42)
	PutI16BE(nil, 42)
}

func TestAppend(t *testing.T) {
	b := AppendI32BE(nil, 7)
	b = AppendI64BE(b, 8)
	b = AppendI16BE(b, 9)
	b = AppendU32BE(b, 10)
	assert.Len(t, b, 18)
	assert.Equal(t, int32(7), I32BE(b))
	assert.Equal(t, int64(8), I64BE(b[4:]))
	assert.Equal(t, int16(9), I16BE(b[12:]))
	assert.Equal(t, uint32(10), U32BE(b[14:]))
}
