// Package journal implements the durable transaction journal: an
// append-only, force-flushed, CRC-protected log of transaction status
// records used by recovery to decide the fate of in-doubt transaction
// branches.
//
// Three implementations are provided. DiskJournal writes records to a pair
// of fragment files cycled through to bound log size. MultiplexedJournal
// fans every operation out to two underlying journals and reconciles their
// contents on read, surviving corruption or loss of either single leg.
// NullJournal discards everything and is only suitable for setups that can
// afford to lose transactions on a crash.
package journal

import (
	"github.com/ilyalabun/btm/internal/format"
	"github.com/ilyalabun/btm/uid"
)

// Record is one transaction status record.
type Record = format.Record

// ErrCorruptedRecord is matched by errors.Is against any structural or CRC
// record validation failure.
var ErrCorruptedRecord = format.ErrCorruptedRecord

// Journal is the transaction journal contract. Implementations are safe for
// use from multiple goroutines.
type Journal interface {
	// Open acquires the underlying resources and loads the write cursor.
	Open() error

	// Close persists the cursor and releases the file handles.
	Close() error

	// Shutdown releases background resources. Idempotent; errors are logged
	// rather than returned because shutdown runs on best effort.
	Shutdown()

	// Log appends a status record for the given transaction and the unique
	// names of the resources participating in it.
	Log(transactionStatus int32, gtrid uid.Uid, uniqueNames []string) error

	// Force guarantees every previously logged record is durably stored.
	Force() error

	// CollectDanglingRecords returns the committing records not yet closed
	// by a matching committed record, keyed by gtrid.
	CollectDanglingRecords() (map[uid.Uid]*Record, error)

	// CollectAllRecords scans the journal and buckets every record into
	// dangling and committed, reporting corrupted record indices.
	CollectAllRecords() (*Records, error)

	// ReadRecords returns a lazy iterator over the journal's records. The
	// iterator is finite and not restartable. When includeInvalid is set
	// the CRC of each record is neither recalculated nor checked.
	ReadRecords(includeInvalid bool) (RecordIterator, error)
}

// RecordIterator yields records one at a time. Next returns io.EOF once the
// end of the journal is reached.
type RecordIterator interface {
	Next() (*Record, error)
}
