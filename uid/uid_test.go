package uid

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateLayout(t *testing.T) {
	g := NewGenerator("node0", zerolog.Nop())

	before := time.Now().UnixMilli()
	u := g.Generate()
	after := time.Now().UnixMilli()

	require.True(t, u.Valid())
	assert.Equal(t, []byte("node0"), u.ServerID())
	assert.GreaterOrEqual(t, u.Timestamp(), before)
	assert.LessOrEqual(t, u.Timestamp(), after)
	assert.Equal(t, len("node0")+12, len(u))
}

func TestGenerateOrdering(t *testing.T) {
	g := NewGenerator("node0", zerolog.Nop())

	u1 := g.Generate()
	u2 := g.Generate()

	assert.NotEqual(t, u1, u2)
	if u1.Timestamp() == u2.Timestamp() {
		assert.Greater(t, u2.SequenceNumber(), u1.SequenceNumber())
	} else {
		assert.Greater(t, u2.Timestamp(), u1.Timestamp())
	}
}

func TestServerIDSanitized(t *testing.T) {
	g := NewGenerator("nöde-1", zerolog.Nop())
	assert.Equal(t, []byte("nde-1"), g.ServerID())
}

func TestServerIDTruncated(t *testing.T) {
	long := make([]byte, 80)
	for i := range long {
		long[i] = 'a'
	}
	g := NewGenerator(string(long), zerolog.Nop())
	assert.Len(t, g.ServerID(), MaxServerIDLength)
}

func TestEmptyServerIDFallsBackToIP(t *testing.T) {
	g := NewGenerator("", zerolog.Nop())
	assert.NotEmpty(t, g.ServerID())
	assert.LessOrEqual(t, len(g.ServerID()), MaxServerIDLength)
}

func TestUidAsMapKey(t *testing.T) {
	g := NewGenerator("node0", zerolog.Nop())
	u := g.Generate()

	m := map[Uid]int{u: 1}
	assert.Equal(t, 1, m[FromBytes(u.Bytes())])
}

func TestValidBounds(t *testing.T) {
	assert.False(t, Uid("").Valid())
	assert.True(t, Uid("x").Valid())
	assert.True(t, FromBytes(make([]byte, 64)).Valid())
	assert.False(t, FromBytes(make([]byte, 65)).Valid())
}

func TestGenerateXid(t *testing.T) {
	g := NewGenerator("node0", zerolog.Nop())
	gtrid := g.Generate()

	xid := g.GenerateXid(gtrid)
	assert.Equal(t, FormatID, xid.FormatID)
	assert.Equal(t, gtrid, xid.GlobalTransactionID)
	assert.NotEmpty(t, xid.BranchQualifier)
}

func TestMonotonicClockNeverDecreases(t *testing.T) {
	g := NewGenerator("node0", zerolog.Nop())

	last := int64(0)
	for i := 0; i < 1000; i++ {
		u := g.Generate()
		require.GreaterOrEqual(t, u.Timestamp(), last)
		last = u.Timestamp()
	}
}
