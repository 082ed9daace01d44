package journal

import (
	"io"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ilyalabun/btm/status"
	"github.com/ilyalabun/btm/uid"
)

func NewDiskTestConfig(t *testing.T) DiskConfig {
	t.Helper()
	dir := t.TempDir()
	conf := DefaultDiskConfig()
	conf.LogPart1Filename = filepath.Join(dir, "btm1.tlog")
	conf.LogPart2Filename = filepath.Join(dir, "btm2.tlog")
	conf.MaxLogSizeInMb = 1
	return conf
}

func NewTestUIDGenerator(t *testing.T) *uid.Generator {
	t.Helper()
	return uid.NewGenerator("test-node", zerolog.Nop())
}

func OpenTestJournal(t *testing.T, conf DiskConfig) *DiskJournal {
	t.Helper()
	j := NewDiskJournal(conf)
	require.NoError(t, j.Open())
	t.Cleanup(j.Shutdown)
	return j
}

func TestLogAndCollect(t *testing.T) {
	gen := NewTestUIDGenerator(t)
	j := OpenTestJournal(t, NewDiskTestConfig(t))

	gtrid := gen.Generate()
	names := []string{"jdbc/ds1", "jdbc/ds2"}

	require.NoError(t, j.Log(status.Committing, gtrid, names))
	records, err := j.CollectAllRecords()
	require.NoError(t, err)
	require.Len(t, records.DanglingRecords(), 1)
	assert.Empty(t, records.CommittedRecords())
	assert.Equal(t, names, records.DanglingRecords()[gtrid].UniqueNames)

	require.NoError(t, j.Log(status.Committed, gtrid, names))
	records, err = j.CollectAllRecords()
	require.NoError(t, err)
	assert.Empty(t, records.DanglingRecords())
	require.Len(t, records.CommittedRecords(), 1)
	assert.Empty(t, records.CorruptedRecords())
}

func TestCommittedWithoutCommitting(t *testing.T) {
	gen := NewTestUIDGenerator(t)
	j := OpenTestJournal(t, NewDiskTestConfig(t))

	gtrid := gen.Generate()
	require.NoError(t, j.Log(status.Committed, gtrid, []string{"rm"}))

	records, err := j.CollectAllRecords()
	require.NoError(t, err)
	assert.Empty(t, records.DanglingRecords())
	assert.Contains(t, records.CommittedRecords(), gtrid)
}

func TestDuplicateStatusLogsAreIdempotent(t *testing.T) {
	gen := NewTestUIDGenerator(t)
	j := OpenTestJournal(t, NewDiskTestConfig(t))

	gtrid := gen.Generate()
	names := []string{"rm"}
	require.NoError(t, j.Log(status.Committing, gtrid, names))
	require.NoError(t, j.Log(status.Committing, gtrid, names))
	require.NoError(t, j.Log(status.Committed, gtrid, names))

	records, err := j.CollectAllRecords()
	require.NoError(t, err)
	assert.Empty(t, records.DanglingRecords())
	assert.Contains(t, records.CommittedRecords(), gtrid)
}

func TestForceAndReopenKeepsBuckets(t *testing.T) {
	conf := NewDiskTestConfig(t)
	gen := NewTestUIDGenerator(t)

	j := NewDiskJournal(conf)
	require.NoError(t, j.Open())

	committedGtrid := gen.Generate()
	danglingGtrid := gen.Generate()
	names := []string{"rm"}

	require.NoError(t, j.Log(status.Committing, committedGtrid, names))
	require.NoError(t, j.Log(status.Committed, committedGtrid, names))
	require.NoError(t, j.Log(status.Committing, danglingGtrid, names))
	require.NoError(t, j.Force())
	require.NoError(t, j.Close())
	j.Shutdown()

	reopened := OpenTestJournal(t, conf)
	records, err := reopened.CollectAllRecords()
	require.NoError(t, err)
	assert.Contains(t, records.CommittedRecords(), committedGtrid)
	assert.NotContains(t, records.DanglingRecords(), committedGtrid)
	assert.Contains(t, records.DanglingRecords(), danglingGtrid)
}

func TestLogRejectsInvalidArguments(t *testing.T) {
	gen := NewTestUIDGenerator(t)
	j := OpenTestJournal(t, NewDiskTestConfig(t))

	assert.Error(t, j.Log(-1, gen.Generate(), nil))
	assert.Error(t, j.Log(status.Committing, uid.Uid(""), nil))
	assert.Error(t, j.Log(status.Committing, uid.FromBytes(make([]byte, 65)), nil))
	assert.Error(t, j.Log(status.Committing, gen.Generate(), []string{"résource"}))
	assert.Error(t, j.Log(status.Committing, gen.Generate(), []string{""}))
}

func TestOperationsFailBeforeOpen(t *testing.T) {
	gen := NewTestUIDGenerator(t)
	j := NewDiskJournal(NewDiskTestConfig(t))

	assert.Error(t, j.Log(status.Committing, gen.Generate(), nil))
	_, err := j.CollectAllRecords()
	assert.Error(t, err)
	_, err = j.ReadRecords(false)
	assert.Error(t, err)
	assert.Error(t, j.Force())
}

func TestFilterLogStatus(t *testing.T) {
	conf := NewDiskTestConfig(t)
	conf.FilterLogStatus = true
	gen := NewTestUIDGenerator(t)
	j := OpenTestJournal(t, conf)

	gtrid := gen.Generate()
	require.NoError(t, j.Log(status.Active, gtrid, []string{"rm"}))
	require.NoError(t, j.Log(status.Preparing, gtrid, []string{"rm"}))

	it, err := j.ReadRecords(false)
	require.NoError(t, err)
	_, err = it.Next()
	assert.Equal(t, io.EOF, err)

	require.NoError(t, j.Log(status.Committing, gtrid, []string{"rm"}))
	records, err := j.CollectAllRecords()
	require.NoError(t, err)
	assert.Len(t, records.DanglingRecords(), 1)
}

func TestForceDisabledIsNoop(t *testing.T) {
	conf := NewDiskTestConfig(t)
	conf.ForcedWriteEnabled = false
	j := OpenTestJournal(t, conf)
	assert.NoError(t, j.Force())
}

func TestForceWithoutBatching(t *testing.T) {
	conf := NewDiskTestConfig(t)
	conf.ForceBatchingEnabled = false
	gen := NewTestUIDGenerator(t)
	j := OpenTestJournal(t, conf)

	require.NoError(t, j.Log(status.Committing, gen.Generate(), []string{"rm"}))
	assert.NoError(t, j.Force())
}

func TestReadRecordsIterator(t *testing.T) {
	gen := NewTestUIDGenerator(t)
	j := OpenTestJournal(t, NewDiskTestConfig(t))

	g1, g2 := gen.Generate(), gen.Generate()
	require.NoError(t, j.Log(status.Committing, g1, []string{"rm"}))
	require.NoError(t, j.Log(status.Committed, g2, []string{"rm"}))

	it, err := j.ReadRecords(false)
	require.NoError(t, err)

	r1, err := it.Next()
	require.NoError(t, err)
	assert.Equal(t, status.Committing, r1.Status)
	assert.Equal(t, g1, r1.Gtrid)

	r2, err := it.Next()
	require.NoError(t, err)
	assert.Equal(t, status.Committed, r2.Status)
	assert.Equal(t, g2, r2.Gtrid)

	_, err = it.Next()
	assert.Equal(t, io.EOF, err)
}

func TestFragmentRotationMigratesDanglingRecords(t *testing.T) {
	conf := NewDiskTestConfig(t)
	gen := NewTestUIDGenerator(t)

	j := NewDiskJournal(conf)
	j.maxFileLength = 4096
	require.NoError(t, j.Open())
	t.Cleanup(j.Shutdown)

	danglingGtrid := gen.Generate()
	require.NoError(t, j.Log(status.Committing, danglingGtrid, []string{"rm-dangling"}))

	// overflow the 4 KiB fragment several times over
	for i := 0; i < 100; i++ {
		gtrid := gen.Generate()
		names := []string{"rm-0", "rm-1"}
		require.NoError(t, j.Log(status.Committing, gtrid, names))
		require.NoError(t, j.Log(status.Committed, gtrid, names))
	}

	records, err := j.CollectAllRecords()
	require.NoError(t, err)
	assert.Contains(t, records.DanglingRecords(), danglingGtrid,
		"dangling record must survive fragment swaps")
}

func TestLogFailsWhenRecordCannotEverFit(t *testing.T) {
	conf := NewDiskTestConfig(t)
	gen := NewTestUIDGenerator(t)

	j := NewDiskJournal(conf)
	j.maxFileLength = 64 // smaller than any record plus the header
	require.NoError(t, j.Open())
	t.Cleanup(j.Shutdown)

	err := j.Log(status.Committing, gen.Generate(), []string{"rm"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "too small")
}

func TestOpenIsIdempotent(t *testing.T) {
	j := OpenTestJournal(t, NewDiskTestConfig(t))
	assert.NoError(t, j.Open())
}

func TestCloseThenReopen(t *testing.T) {
	conf := NewDiskTestConfig(t)
	gen := NewTestUIDGenerator(t)

	j := NewDiskJournal(conf)
	require.NoError(t, j.Open())
	require.NoError(t, j.Log(status.Committing, gen.Generate(), []string{"rm"}))
	require.NoError(t, j.Close())
	require.NoError(t, j.Close())

	require.NoError(t, j.Open())
	records, err := j.CollectAllRecords()
	require.NoError(t, err)
	assert.Len(t, records.DanglingRecords(), 1)
	j.Shutdown()
}
