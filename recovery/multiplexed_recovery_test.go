package recovery

import (
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ilyalabun/btm/internal/testutil"
	"github.com/ilyalabun/btm/journal"
	"github.com/ilyalabun/btm/resource"
	"github.com/ilyalabun/btm/status"
	"github.com/ilyalabun/btm/uid"
)

type muxRecoveryFixture struct {
	gen           *uid.Generator
	primaryConf   journal.DiskConfig
	secondaryConf journal.DiskConfig
	mux           *journal.MultiplexedJournal
	resources     *resource.Registry
	xaRes         *mockResource
}

func newMuxRecoveryFixture(t *testing.T) *muxRecoveryFixture {
	t.Helper()
	dir := t.TempDir()

	primaryConf := journal.DefaultDiskConfig()
	primaryConf.LogPart1Filename = filepath.Join(dir, "btm1-primary.tlog")
	primaryConf.LogPart2Filename = filepath.Join(dir, "btm2-primary.tlog")
	primaryConf.MaxLogSizeInMb = 1
	primaryConf.SkipCorruptedLogs = true

	secondaryConf := primaryConf
	secondaryConf.LogPart1Filename = filepath.Join(dir, "btm1-secondary.tlog")
	secondaryConf.LogPart2Filename = filepath.Join(dir, "btm2-secondary.tlog")

	f := &muxRecoveryFixture{
		gen:           uid.NewGenerator("test-node", zerolog.Nop()),
		primaryConf:   primaryConf,
		secondaryConf: secondaryConf,
		resources:     resource.NewRegistry(),
		xaRes:         newMockResource("mock-rm"),
	}
	require.NoError(t, f.resources.Register(f.xaRes))
	f.openMux(t)
	return f
}

func (f *muxRecoveryFixture) openMux(t *testing.T) {
	t.Helper()
	f.mux = journal.NewMultiplexedJournal(
		journal.NewDiskJournal(f.primaryConf),
		journal.NewDiskJournal(f.secondaryConf),
		true, zerolog.Nop())
	require.NoError(t, f.mux.Open())
	t.Cleanup(f.mux.Shutdown)
}

func (f *muxRecoveryFixture) newRecoverer() *Recoverer {
	return NewRecoverer(f.mux, f.resources, Config{
		ServerID:                f.gen.ServerID(),
		CurrentNodeOnlyRecovery: true,
		Logger:                  zerolog.Nop(),
	})
}

// A COMMITTED record regressed to COMMITTING on one leg is healed by the
// other leg during recovery: nothing to commit, nothing to roll back.
func TestMuxRecoveryHealsCorruptedCommittedRecord(t *testing.T) {
	f := newMuxRecoveryFixture(t)

	gtrid := f.gen.Generate()
	names := []string{f.xaRes.UniqueName()}
	require.NoError(t, f.mux.Log(status.Committing, gtrid, names))
	require.NoError(t, f.mux.Log(status.Committed, gtrid, names))
	require.NoError(t, f.mux.Force())
	f.mux.Shutdown()

	require.NoError(t, testutil.RewriteJournal(f.primaryConf, func(records *journal.Records, j journal.Journal) error {
		for _, rec := range records.CommittedRecords() {
			if err := j.Log(status.Committing, rec.Gtrid, rec.UniqueNames); err != nil {
				return err
			}
		}
		return nil
	}))

	f.openMux(t)
	rec := f.newRecoverer()
	rec.Run()

	assert.NoError(t, rec.GetCompletionException())
	assert.Equal(t, int64(0), rec.GetCommittedCount())
	assert.Equal(t, int64(0), rec.GetRolledbackCount())
	assert.Equal(t, 0, f.xaRes.inDoubtCount(t))
}

// Losing one leg entirely must not lose the dangling record: the surviving
// leg drives the in-doubt branch to commit.
func TestMuxRecoveryAfterLegDeletion(t *testing.T) {
	for _, deletePrimary := range []bool{true, false} {
		name := "delete_secondary"
		if deletePrimary {
			name = "delete_primary"
		}
		t.Run(name, func(t *testing.T) {
			f := newMuxRecoveryFixture(t)

			gtrid := f.gen.Generate()
			f.xaRes.AddInDoubtXid(branchXid(gtrid, 0))
			require.NoError(t, f.mux.Log(status.Committing, gtrid, []string{f.xaRes.UniqueName()}))
			require.NoError(t, f.mux.Force())
			f.mux.Shutdown()

			conf := f.secondaryConf
			if deletePrimary {
				conf = f.primaryConf
			}
			require.NoError(t, testutil.DeleteJournalFiles(conf))

			f.openMux(t)
			rec := f.newRecoverer()
			rec.Run()

			assert.NoError(t, rec.GetCompletionException())
			assert.Equal(t, int64(1), rec.GetCommittedCount())
			assert.Equal(t, int64(0), rec.GetRolledbackCount())
			assert.Equal(t, 0, f.xaRes.inDoubtCount(t))
		})
	}
}
