// Package resource defines the contract between the recovery engine and
// the resource managers participating in two-phase commits, plus the
// process-wide registry recovery enumerates them from.
package resource

import "github.com/ilyalabun/btm/uid"

// Recovery scan flags, numerically identical to their XA counterparts.
const (
	// TMNoFlags performs no special treatment.
	TMNoFlags = 0x00000000

	// TMStartRScan starts a recovery scan.
	TMStartRScan = 0x01000000

	// TMEndRScan ends a recovery scan.
	TMEndRScan = 0x00800000
)

// Recoverable is the slice of a resource manager the recovery engine needs:
// enumerate in-doubt branches and drive each one to a terminal state.
type Recoverable interface {
	// UniqueName identifies the resource; it is the name written into
	// journal records and must be stable across restarts.
	UniqueName() string

	// Recover returns in-doubt branch identifiers. flags is a combination
	// of TMStartRScan and TMEndRScan; implementations backed by drivers
	// that page their scan results keep returning batches until an
	// invocation returns an empty slice.
	Recover(flags int) ([]uid.Xid, error)

	// Commit commits the branch identified by xid.
	Commit(xid uid.Xid, onePhase bool) error

	// Rollback rolls back the branch identified by xid.
	Rollback(xid uid.Xid) error
}
