package journal

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ilyalabun/btm/status"
)

func TestNullJournalDiscardsEverything(t *testing.T) {
	gen := NewTestUIDGenerator(t)
	j := NewNullJournal()

	require.NoError(t, j.Open())
	require.NoError(t, j.Log(status.Committing, gen.Generate(), []string{"rm"}))
	require.NoError(t, j.Force())

	records, err := j.CollectAllRecords()
	require.NoError(t, err)
	assert.Empty(t, records.DanglingRecords())
	assert.Empty(t, records.CommittedRecords())

	dangling, err := j.CollectDanglingRecords()
	require.NoError(t, err)
	assert.Empty(t, dangling)

	it, err := j.ReadRecords(false)
	require.NoError(t, err)
	_, err = it.Next()
	assert.Equal(t, io.EOF, err)

	require.NoError(t, j.Close())
	j.Shutdown()
}
