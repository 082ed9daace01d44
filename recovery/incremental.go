package recovery

import (
	"math"

	"github.com/rs/zerolog"

	"github.com/ilyalabun/btm/journal"
	"github.com/ilyalabun/btm/resource"
	"github.com/ilyalabun/btm/uid"
)

// IncrementalRecoverer recovers a single resource, typically when it
// registers while the transaction manager is already running. The
// algorithm is the full recovery pass restricted to that one resource.
//
// No in-flight check is applied: a resource being registered now cannot be
// enlisted in a two-phase commit that prepared before the resource existed
// in this process.
type IncrementalRecoverer struct {
	journal journal.Journal
	conf    Config
	log     zerolog.Logger
}

// NewIncrementalRecoverer creates an incremental recoverer over the given
// journal.
func NewIncrementalRecoverer(j journal.Journal, conf Config) *IncrementalRecoverer {
	return &IncrementalRecoverer{
		journal: j,
		conf:    conf,
		log:     conf.Logger.With().Str("component", "incremental-recoverer").Logger(),
	}
}

// Recover reconciles the in-doubt branches of res against the journal:
// branches named by a dangling record are committed, every other branch is
// rolled back, and fully drained records are closed with a COMMITTED
// journal entry.
func (ir *IncrementalRecoverer) Recover(res resource.Recoverable) error {
	dangling, err := ir.journal.CollectDanglingRecords()
	if err != nil {
		return err
	}

	committedNames := make(map[uid.Uid]map[string]struct{})
	committed, rolledback, err := recoverResource(res, recoverContext{
		dangling:       dangling,
		committedNames: committedNames,
		oldestInFlight: math.MaxInt64,
		serverID:       ir.conf.ServerID,
		nodeOnly:       ir.conf.CurrentNodeOnlyRecovery,
		log:            ir.log,
	})
	if err != nil {
		return err
	}

	if err := closeDrainedRecords(ir.journal, dangling, committedNames); err != nil {
		return err
	}

	ir.log.Debug().
		Str("resource", res.UniqueName()).
		Int64("committed", committed).
		Int64("rolledback", rolledback).
		Msg("incremental recovery finished")
	return nil
}
