package journal

import (
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/ilyalabun/btm/internal/format"
	"github.com/ilyalabun/btm/uid"
)

// shutdownAwait bounds the wait for outstanding parallel operations during
// shutdown.
const shutdownAwait = 20 * time.Second

// MultiplexedJournal holds two underlying journals and issues every
// mutating operation to both in parallel; an operation succeeds iff both
// legs succeed. On read the two legs are merged, so the journal survives
// corruption or truncation of either single leg.
type MultiplexedJournal struct {
	primary   Journal
	secondary Journal

	failOnRecordCorruption bool
	log                    zerolog.Logger

	// inFlight tracks outstanding parallel operations so shutdown can
	// apply its bounded await.
	inFlight sync.WaitGroup

	mu       sync.Mutex
	shutdown bool
}

// NewMultiplexedJournal builds a journal over the given primary and
// secondary legs. With failOnRecordCorruption set, a record corrupted at
// the same index in both legs makes CollectAllRecords fail instead of
// silently losing the record.
func NewMultiplexedJournal(primary, secondary Journal, failOnRecordCorruption bool, logger zerolog.Logger) *MultiplexedJournal {
	return &MultiplexedJournal{
		primary:                primary,
		secondary:              secondary,
		failOnRecordCorruption: failOnRecordCorruption,
		log:                    logger.With().Str("component", "multiplexed-journal").Logger(),
	}
}

// Open opens both journals in parallel.
func (m *MultiplexedJournal) Open() error {
	m.mu.Lock()
	m.shutdown = false
	m.mu.Unlock()
	return m.executeInParallel(func(j Journal) error { return j.Open() })
}

// Close closes both journals in parallel.
func (m *MultiplexedJournal) Close() error {
	return m.executeInParallel(func(j Journal) error { return j.Close() })
}

// Shutdown shuts down both journals, then waits out outstanding parallel
// operations for a bounded time.
func (m *MultiplexedJournal) Shutdown() {
	m.mu.Lock()
	if m.shutdown {
		m.mu.Unlock()
		return
	}
	m.shutdown = true
	m.mu.Unlock()

	var wg sync.WaitGroup
	for _, j := range []Journal{m.primary, m.secondary} {
		wg.Add(1)
		go func(j Journal) {
			defer wg.Done()
			j.Shutdown()
		}(j)
	}
	wg.Wait()

	done := make(chan struct{})
	go func() {
		m.inFlight.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(shutdownAwait):
		m.log.Error().Dur("waited", shutdownAwait).
			Msg("outstanding journal operations did not finish before shutdown. Transaction log integrity could be compromised!")
	}
}

// Log logs to both journals in parallel.
func (m *MultiplexedJournal) Log(transactionStatus int32, gtrid uid.Uid, uniqueNames []string) error {
	return m.executeInParallel(func(j Journal) error {
		return j.Log(transactionStatus, gtrid, uniqueNames)
	})
}

// Force forces both journals in parallel.
func (m *MultiplexedJournal) Force() error {
	return m.executeInParallel(func(j Journal) error { return j.Force() })
}

// CollectDanglingRecords returns the merged dangling records of both legs.
func (m *MultiplexedJournal) CollectDanglingRecords() (map[uid.Uid]*Record, error) {
	records, err := m.CollectAllRecords()
	if err != nil {
		return nil, err
	}
	return records.DanglingRecords(), nil
}

// CollectAllRecords collects from both legs concurrently and merges.
//
// A leg failure is tolerated as long as the other leg delivers: the journal
// degrades to single-leg mode with a warning. When both legs deliver, a
// record corrupted at the same index on both sides is beyond repair and —
// with failOnRecordCorruption enabled — fails the read.
func (m *MultiplexedJournal) CollectAllRecords() (*Records, error) {
	var (
		wg                       sync.WaitGroup
		primaryResult            *Records
		secondaryResult          *Records
		primaryErr, secondaryErr error
	)
	wg.Add(2)
	m.inFlight.Add(2)
	go func() {
		defer wg.Done()
		defer m.inFlight.Done()
		primaryResult, primaryErr = m.primary.CollectAllRecords()
	}()
	go func() {
		defer wg.Done()
		defer m.inFlight.Done()
		secondaryResult, secondaryErr = m.secondary.CollectAllRecords()
	}()
	wg.Wait()

	if primaryErr != nil && secondaryErr != nil {
		return nil, errors.Errorf(
			"failed to collect dangling records because both journals failed.\nPrimary error:\n%+v\nSecondary error:\n%+v",
			primaryErr, secondaryErr)
	}

	if primaryErr == nil && secondaryErr != nil {
		m.log.Warn().Err(secondaryErr).Msg("failed to collect dangling records from secondary journal")
		return primaryResult, nil
	}
	if primaryErr != nil && secondaryErr == nil {
		m.log.Warn().Err(primaryErr).Msg("failed to collect dangling records from primary journal")
		return secondaryResult, nil
	}

	sharedCorruption := intersectCorrupted(primaryResult.CorruptedRecords(), secondaryResult.CorruptedRecords())
	if len(sharedCorruption) > 0 && m.failOnRecordCorruption {
		return nil, errors.New("Both journals have same corrupted records. " +
			"You can set journal.multiplexed.failOnRecordCorruption=false " +
			"to ignore record corruption entirely.")
	}

	return MergeResults(primaryResult, secondaryResult), nil
}

// ReadRecords iterates the primary leg; per-record repair only happens
// through the merge path of CollectAllRecords.
func (m *MultiplexedJournal) ReadRecords(includeInvalid bool) (RecordIterator, error) {
	return m.primary.ReadRecords(includeInvalid)
}

// executeInParallel runs op against both journals in parallel and waits
// for both; the first error wins.
func (m *MultiplexedJournal) executeInParallel(op func(Journal) error) error {
	m.inFlight.Add(2)
	var g errgroup.Group
	g.Go(func() error {
		defer m.inFlight.Done()
		return op(m.primary)
	})
	g.Go(func() error {
		defer m.inFlight.Done()
		return op(m.secondary)
	})
	return g.Wait()
}

// MergeResults merges the records of both legs. Committed records are the
// union of both sides. A dangling record survives only for the resource
// names the other leg does not positively witness as committed: dropping
// it on anything less would break presumed abort.
func MergeResults(primaryResults, secondaryResults *Records) *Records {
	committed := make(map[uid.Uid]*Record, len(primaryResults.CommittedRecords())+len(secondaryResults.CommittedRecords()))
	for gtrid, rec := range primaryResults.CommittedRecords() {
		committed[gtrid] = rec
	}
	for gtrid, rec := range secondaryResults.CommittedRecords() {
		committed[gtrid] = rec
	}

	dangling := make(map[uid.Uid]*Record)
	for gtrid, rec := range removeCommittedRecords(primaryResults.DanglingRecords(), secondaryResults.CommittedRecords()) {
		dangling[gtrid] = rec
	}
	for gtrid, rec := range removeCommittedRecords(secondaryResults.DanglingRecords(), primaryResults.CommittedRecords()) {
		dangling[gtrid] = rec
	}

	return newRecordsFrom(dangling, committed)
}

// removeCommittedRecords matches dangling records from one leg with
// committed records from the other and subtracts the committed resource
// names. A record whose name set drains empty is no longer dangling; a
// partially covered record is replaced by one carrying the residual names.
func removeCommittedRecords(dangling, committed map[uid.Uid]*Record) map[uid.Uid]*Record {
	reduced := make(map[uid.Uid]*Record, len(dangling))
	for gtrid, danglingRecord := range dangling {
		committedRecord, ok := committed[gtrid]
		if !ok {
			reduced[gtrid] = danglingRecord
			continue
		}

		var residual []string
		for _, name := range danglingRecord.UniqueNames {
			if !committedRecord.ContainsName(name) {
				residual = append(residual, name)
			}
		}
		if len(residual) == 0 {
			continue
		}
		reduced[gtrid] = format.NewRecord(danglingRecord.Status, danglingRecord.Gtrid, residual,
			danglingRecord.Time, danglingRecord.SequenceNumber)
	}
	return reduced
}

func intersectCorrupted(a, b map[int]struct{}) map[int]struct{} {
	out := make(map[int]struct{})
	for idx := range a {
		if _, ok := b[idx]; ok {
			out[idx] = struct{}{}
		}
	}
	return out
}
