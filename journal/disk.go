package journal

import (
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/ilyalabun/btm/internal/format"
	"github.com/ilyalabun/btm/status"
	"github.com/ilyalabun/btm/uid"
)

// DiskJournal logs transaction status records to a pair of pre-allocated
// fragment files. Writes append to the active fragment; when it fills up
// the journal migrates every still-dangling record to the other fragment
// and swaps, so a fragment is never abandoned while it holds unique live
// state.
type DiskJournal struct {
	conf          DiskConfig
	maxFileLength int64
	log           zerolog.Logger

	// mu is the write latch: appends, swaps and lifecycle changes are
	// mutually exclusive. Reads use private cursors and take the latch
	// only long enough to learn the active fragment.
	mu         sync.Mutex
	activeTla  *logAppender
	passiveTla *logAppender

	sequence   atomic.Int32
	forceGroup singleflight.Group
}

// NewDiskJournal creates a journal over the two fragment files named in the
// configuration. The journal must be opened before use.
func NewDiskJournal(conf DiskConfig) *DiskJournal {
	return &DiskJournal{
		conf:          conf,
		maxFileLength: conf.maxFileLength(),
		log:           conf.Logger.With().Str("component", "journal").Logger(),
	}
}

// Open opens both fragment files, creating them when absent, and elects the
// fragment with the later header timestamp as the active one.
func (j *DiskJournal) Open() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.activeTla != nil {
		return nil
	}

	now := time.Now().UnixMilli()
	tla1, err := openAppender(j.conf.LogPart1Filename, j.maxFileLength, now, j.log)
	if err != nil {
		return err
	}
	tla2, err := openAppender(j.conf.LogPart2Filename, j.maxFileLength, now, j.log)
	if err != nil {
		tla1.close()
		return err
	}

	if tla1.timestamp() >= tla2.timestamp() {
		j.activeTla, j.passiveTla = tla1, tla2
	} else {
		j.activeTla, j.passiveTla = tla2, tla1
	}
	j.log.Debug().Str("active", j.activeTla.filename).Msg("disk journal opened")
	return nil
}

// Close persists the cursors, marks both fragments clean and releases the
// file handles.
func (j *DiskJournal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.activeTla == nil {
		return nil
	}

	err := j.activeTla.close()
	if err2 := j.passiveTla.close(); err == nil {
		err = err2
	}
	j.activeTla, j.passiveTla = nil, nil
	return err
}

// Shutdown closes the journal on best effort. Idempotent.
func (j *DiskJournal) Shutdown() {
	if err := j.Close(); err != nil {
		j.log.Error().Err(err).Msg("error shutting down disk journal. Transaction log integrity could be compromised!")
	}
}

// Log appends a status record. When the active fragment is full the
// journal swaps fragments first; a record that does not fit even in a
// freshly rewound fragment is a configuration error.
func (j *DiskJournal) Log(transactionStatus int32, gtrid uid.Uid, uniqueNames []string) error {
	if j.conf.FilterLogStatus && !isLoadBearing(transactionStatus) {
		j.log.Debug().Str("status", status.Name(transactionStatus)).
			Msg("filtered out write of non load-bearing status")
		return nil
	}

	rec := format.NewRecord(transactionStatus, gtrid, uniqueNames, time.Now().UnixMilli(), j.sequence.Add(1))
	if err := rec.Validate(); err != nil {
		return err
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	if j.activeTla == nil {
		return errNotOpen
	}

	ok, err := j.activeTla.writeRecord(rec)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}

	if err := j.swapJournalFiles(); err != nil {
		return err
	}
	ok, err = j.activeTla.writeRecord(rec)
	if err != nil {
		return err
	}
	if !ok {
		return errors.Errorf("transaction log files are too small for transaction %s: %d bytes needed", gtrid, rec.WireSize())
	}
	return nil
}

// Force makes every previously logged record durable. Concurrent calls
// coalesce into shared disk syncs when force batching is enabled.
func (j *DiskJournal) Force() error {
	if !j.conf.ForcedWriteEnabled {
		j.log.Debug().Msg("disk forces are disabled, skipping force")
		return nil
	}

	if !j.conf.ForceBatchingEnabled {
		j.mu.Lock()
		defer j.mu.Unlock()
		if j.activeTla == nil {
			return errNotOpen
		}
		return j.activeTla.force()
	}

	for {
		j.mu.Lock()
		tla := j.activeTla
		j.mu.Unlock()
		if tla == nil {
			return errNotOpen
		}

		// a force in flight may have started before our records were
		// written; re-issue until the synced position covers them
		target := tla.position.Load()
		synced, err, _ := j.forceGroup.Do("force", func() (interface{}, error) {
			pos := tla.position.Load()
			return pos, tla.force()
		})
		if err != nil {
			return err
		}
		if synced.(int64) >= target {
			return nil
		}
	}
}

// CollectDanglingRecords returns the committing records with no matching
// committed record, keyed by gtrid.
func (j *DiskJournal) CollectDanglingRecords() (map[uid.Uid]*Record, error) {
	records, err := j.CollectAllRecords()
	if err != nil {
		return nil, err
	}
	return records.DanglingRecords(), nil
}

// CollectAllRecords scans the active fragment and buckets every record.
// Corrupted records abort the scan unless the journal is configured to
// skip them, in which case their indices are collected; an untrusted
// record length aborts the scan regardless.
func (j *DiskJournal) CollectAllRecords() (*Records, error) {
	j.mu.Lock()
	if j.activeTla == nil {
		j.mu.Unlock()
		return nil, errNotOpen
	}
	filename := j.activeTla.filename
	j.mu.Unlock()

	cur, err := newCursor(filename, false)
	if err != nil {
		return nil, err
	}
	return j.collectFromCursor(cur)
}

func (j *DiskJournal) collectFromCursor(cur *cursor) (*Records, error) {
	records := NewRecords()
	for index := 0; ; index++ {
		rec, err := cur.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return records, nil
			}
			var corrupted *format.CorruptedRecordError
			if errors.As(err, &corrupted) && j.conf.SkipCorruptedLogs {
				j.log.Warn().Err(err).Int("record", index).Msg("skipping corrupted log record")
				records.AddCorrupted(index)
				continue
			}
			return nil, err
		}

		switch rec.Status {
		case status.Committing:
			records.AddDangling(rec)
		case status.Committed:
			records.RemoveDangling(rec.Gtrid)
			records.AddCommitted(rec)
		}
	}
}

// ReadRecords returns an iterator over the active fragment.
func (j *DiskJournal) ReadRecords(includeInvalid bool) (RecordIterator, error) {
	j.mu.Lock()
	if j.activeTla == nil {
		j.mu.Unlock()
		return nil, errNotOpen
	}
	filename := j.activeTla.filename
	j.mu.Unlock()

	return newCursor(filename, includeInvalid)
}

// swapJournalFiles makes the passive fragment the new active one. Every
// dangling record of the vacated fragment is copied over first; the swap
// fails when the passive fragment cannot hold them all. Called with the
// write latch held.
func (j *DiskJournal) swapJournalFiles() error {
	if j.conf.ForcedWriteEnabled {
		if err := j.activeTla.force(); err != nil {
			return err
		}
	}

	cur, err := newCursor(j.activeTla.filename, false)
	if err != nil {
		return err
	}
	records, err := j.collectFromCursor(cur)
	if err != nil {
		return err
	}

	if err := j.passiveTla.rewind(max(time.Now().UnixMilli(), j.activeTla.timestamp()+1)); err != nil {
		return err
	}

	for _, rec := range records.DanglingRecords() {
		ok, err := j.passiveTla.writeRecord(rec)
		if err != nil {
			return err
		}
		if !ok {
			return errors.Errorf(
				"transaction log files are too small: dangling record of transaction %s does not fit in a fresh fragment", rec.Gtrid)
		}
	}

	if j.conf.ForcedWriteEnabled {
		if err := j.passiveTla.force(); err != nil {
			return err
		}
	}

	j.activeTla, j.passiveTla = j.passiveTla, j.activeTla
	j.log.Debug().
		Str("active", j.activeTla.filename).
		Int("migratedDanglingRecords", len(records.DanglingRecords())).
		Msg("swapped journal fragments")
	return nil
}

// isLoadBearing reports whether a status must be journaled even when
// status filtering is enabled. COMMITTING and COMMITTED drive recovery;
// UNKNOWN preserves the only trace of a heuristic completion.
func isLoadBearing(s int32) bool {
	return s == status.Committing || s == status.Committed || s == status.Unknown
}

var errNotOpen = errors.New("cannot access the journal before it has been opened")
