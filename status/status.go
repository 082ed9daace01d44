// Package status defines the transaction status codes recorded in the
// journal. The numeric values are part of the on-disk format and must not
// change.
package status

import "strconv"

const (
	// Active means the transaction is running and has not entered 2PC yet.
	Active int32 = 0

	// MarkedRollback means the transaction has been flagged rollback-only.
	MarkedRollback int32 = 1

	// Prepared means every branch voted yes in phase 1.
	Prepared int32 = 2

	// Committed means phase 2 finished on every branch. A Committed record
	// closes the matching Committing record in the journal.
	Committed int32 = 3

	// RolledBack means the transaction has been rolled back on every branch.
	RolledBack int32 = 4

	// Unknown means a branch finished with a heuristic outcome the manager
	// could not classify.
	Unknown int32 = 5

	// NoTransaction means no transaction is bound to the current context.
	NoTransaction int32 = 6

	// Preparing means phase 1 is in progress.
	Preparing int32 = 7

	// Committing means phase 2 has been decided. A Committing record without
	// a matching Committed record is a dangling record: recovery must drive
	// the named resources to commit.
	Committing int32 = 8

	// RollingBack means rollback is in progress.
	RollingBack int32 = 9
)

var names = map[int32]string{
	Active:         "ACTIVE",
	MarkedRollback: "MARKED_ROLLBACK",
	Prepared:       "PREPARED",
	Committed:      "COMMITTED",
	RolledBack:     "ROLLEDBACK",
	Unknown:        "UNKNOWN",
	NoTransaction:  "NO_TRANSACTION",
	Preparing:      "PREPARING",
	Committing:     "COMMITTING",
	RollingBack:    "ROLLING_BACK",
}

// Name returns the symbolic name of a status code, or the decimal value for
// codes outside the known set.
func Name(s int32) string {
	if n, ok := names[s]; ok {
		return n
	}
	return strconv.FormatInt(int64(s), 10)
}
