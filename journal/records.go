package journal

import "github.com/ilyalabun/btm/uid"

// Records is the result of a full journal scan: dangling and committed
// records keyed by gtrid, plus the scan indices of corrupted records.
type Records struct {
	dangling  map[uid.Uid]*Record
	committed map[uid.Uid]*Record
	corrupted map[int]struct{}
}

// NewRecords creates an empty result set.
func NewRecords() *Records {
	return &Records{
		dangling:  make(map[uid.Uid]*Record, 64),
		committed: make(map[uid.Uid]*Record, 64),
		corrupted: make(map[int]struct{}, 64),
	}
}

func newRecordsFrom(dangling, committed map[uid.Uid]*Record) *Records {
	return &Records{
		dangling:  dangling,
		committed: committed,
		corrupted: make(map[int]struct{}, 64),
	}
}

// AddDangling records a committing record awaiting its committed closure.
func (r *Records) AddDangling(record *Record) {
	r.dangling[record.Gtrid] = record
}

// RemoveDangling drops the dangling record for the given gtrid, if any.
func (r *Records) RemoveDangling(gtrid uid.Uid) {
	delete(r.dangling, gtrid)
}

// AddCommitted records a committed record.
func (r *Records) AddCommitted(record *Record) {
	r.committed[record.Gtrid] = record
}

// AddCorrupted records the scan index of a corrupted record.
func (r *Records) AddCorrupted(recordIndex int) {
	r.corrupted[recordIndex] = struct{}{}
}

// DanglingRecords returns the dangling records keyed by gtrid.
func (r *Records) DanglingRecords() map[uid.Uid]*Record {
	return r.dangling
}

// CommittedRecords returns the committed records keyed by gtrid.
func (r *Records) CommittedRecords() map[uid.Uid]*Record {
	return r.committed
}

// CorruptedRecords returns the set of corrupted record scan indices.
func (r *Records) CorruptedRecords() map[int]struct{} {
	return r.corrupted
}
