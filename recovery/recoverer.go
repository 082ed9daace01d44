// Package recovery implements the presumed-abort reconciliation engine: it
// intersects journal state with the in-doubt transaction branches reported
// by the registered resources and drives every branch to a terminal state.
//
// The rule is presumed abort: a branch is committed only when the journal
// positively records a COMMITTING for its gtrid naming the branch's
// resource; every other branch is rolled back. Branches belonging to
// transactions still running in this process are skipped.
package recovery

import (
	"bytes"
	"math"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/ilyalabun/btm/journal"
	"github.com/ilyalabun/btm/resource"
	"github.com/ilyalabun/btm/status"
	"github.com/ilyalabun/btm/uid"
)

// Config carries the recoverer's construction parameters.
type Config struct {
	// ServerID is this node's Uid prefix, used by CurrentNodeOnlyRecovery.
	ServerID []byte

	// CurrentNodeOnlyRecovery restricts recovery to Xids whose gtrid
	// carries this node's server id prefix.
	CurrentNodeOnlyRecovery bool

	// InFlight supplies the oldest in-flight transaction timestamp. May be
	// nil when the recoverer never runs concurrently with transactions.
	InFlight *InFlightRegistry

	// Logger receives the recovery log. Defaults to a no-op logger.
	Logger zerolog.Logger
}

// Recoverer performs a full recovery pass over every registered resource.
// It is a one-shot runnable with a reentrancy guard: invocations started
// while a run is in progress return immediately.
type Recoverer struct {
	journal   journal.Journal
	resources *resource.Registry
	conf      Config
	log       zerolog.Logger

	running         atomic.Bool
	executionsCount atomic.Int64
	committedCount  atomic.Int64
	rolledbackCount atomic.Int64

	mu                  sync.Mutex
	completionException error
}

// NewRecoverer creates a recoverer over the given journal and resource
// registry.
func NewRecoverer(j journal.Journal, resources *resource.Registry, conf Config) *Recoverer {
	return &Recoverer{
		journal:   j,
		resources: resources,
		conf:      conf,
		log:       conf.Logger.With().Str("component", "recoverer").Logger(),
	}
}

// Run executes one recovery pass. At most one run executes at a time per
// recoverer; concurrent invocations collapse into the single in-progress
// execution and return immediately.
func (r *Recoverer) Run() {
	if !r.running.CompareAndSwap(false, true) {
		r.log.Debug().Msg("recovery is already running, abandoning this recovery request")
		return
	}
	defer r.running.Store(false)

	r.executionsCount.Add(1)
	r.committedCount.Store(0)
	r.rolledbackCount.Store(0)
	r.setCompletionException(nil)

	dangling, err := r.journal.CollectDanglingRecords()
	if err != nil {
		r.setCompletionException(err)
		r.log.Error().Err(err).Msg("error collecting dangling records, aborting recovery")
		return
	}

	oldestInFlight := int64(math.MaxInt64)
	if r.conf.InFlight != nil {
		oldestInFlight = r.conf.InFlight.OldestTimestamp()
	}

	committedNames := make(map[uid.Uid]map[string]struct{})
	var committed, rolledback int64

	for _, res := range r.resources.All() {
		c, rb, err := recoverResource(res, recoverContext{
			dangling:       dangling,
			committedNames: committedNames,
			oldestInFlight: oldestInFlight,
			serverID:       r.conf.ServerID,
			nodeOnly:       r.conf.CurrentNodeOnlyRecovery,
			log:            r.log,
		})
		committed += c
		rolledback += rb
		if err != nil {
			r.setCompletionException(err)
			r.log.Warn().Err(err).Str("resource", res.UniqueName()).
				Msg("error recovering resource, continuing with the remaining resources")
		}
	}

	if err := closeDrainedRecords(r.journal, dangling, committedNames); err != nil {
		r.setCompletionException(err)
		r.log.Error().Err(err).Msg("error logging committed status of recovered transactions")
	}

	r.committedCount.Store(committed)
	r.rolledbackCount.Store(rolledback)
	r.log.Debug().
		Int64("committed", committed).
		Int64("rolledback", rolledback).
		Int("danglingLeft", len(dangling)).
		Msg("recovery pass finished")
}

// GetCommittedCount returns the number of branches committed by the last run.
func (r *Recoverer) GetCommittedCount() int64 {
	return r.committedCount.Load()
}

// GetRolledbackCount returns the number of branches rolled back by the last run.
func (r *Recoverer) GetRolledbackCount() int64 {
	return r.rolledbackCount.Load()
}

// GetExecutionsCount returns how many recovery passes actually executed.
func (r *Recoverer) GetExecutionsCount() int64 {
	return r.executionsCount.Load()
}

// GetCompletionException returns the last error captured by a run, or nil.
func (r *Recoverer) GetCompletionException() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.completionException
}

func (r *Recoverer) setCompletionException(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.completionException = err
}

// recoverContext carries the shared state of one recovery pass.
type recoverContext struct {
	dangling       map[uid.Uid]*journal.Record
	committedNames map[uid.Uid]map[string]struct{}
	oldestInFlight int64
	serverID       []byte
	nodeOnly       bool
	log            zerolog.Logger
}

// recoverResource reconciles one resource's in-doubt branches against the
// dangling records. Per-branch completion failures are reported but do not
// stop the remaining branches.
func recoverResource(res resource.Recoverable, ctx recoverContext) (committed, rolledback int64, firstErr error) {
	xids, err := res.Recover(resource.TMStartRScan | resource.TMEndRScan)
	if err != nil {
		return 0, 0, errors.Wrapf(err, "cannot recover in-doubt branches of resource %s", res.UniqueName())
	}

	recordErr := func(err error) {
		if firstErr == nil {
			firstErr = err
		}
	}

	for _, xid := range xids {
		if xid.FormatID != uid.FormatID {
			continue
		}
		gtrid := xid.GlobalTransactionID
		if ctx.nodeOnly && !bytes.HasPrefix(gtrid.Bytes(), ctx.serverID) {
			continue
		}
		if gtrid.Timestamp() >= ctx.oldestInFlight {
			ctx.log.Debug().Str("gtrid", gtrid.String()).
				Msg("skipping in-doubt branch of an in-flight transaction")
			continue
		}

		record, isDangling := ctx.dangling[gtrid]
		if isDangling && record.ContainsName(res.UniqueName()) {
			if err := res.Commit(xid, false); err != nil {
				recordErr(errors.Wrapf(err, "cannot commit branch %s on resource %s", xid, res.UniqueName()))
				continue
			}
			committed++
			names := ctx.committedNames[gtrid]
			if names == nil {
				names = make(map[string]struct{})
				ctx.committedNames[gtrid] = names
			}
			names[res.UniqueName()] = struct{}{}
			continue
		}

		// presumed abort
		if err := res.Rollback(xid); err != nil {
			recordErr(errors.Wrapf(err, "cannot rollback branch %s on resource %s", xid, res.UniqueName()))
			continue
		}
		rolledback++
	}

	return committed, rolledback, firstErr
}

// closeDrainedRecords writes a COMMITTED record for every dangling record
// whose full resource name set has been committed, closing it in the
// journal. Records naming resources that never reported in stay dangling
// for a later full or incremental pass.
func closeDrainedRecords(j journal.Journal, dangling map[uid.Uid]*journal.Record,
	committedNames map[uid.Uid]map[string]struct{}) error {

	var firstErr error
	for gtrid, record := range dangling {
		names := committedNames[gtrid]
		if names == nil {
			continue
		}

		drained := true
		for _, name := range record.UniqueNames {
			if _, ok := names[name]; !ok {
				drained = false
				break
			}
		}
		if !drained {
			continue
		}

		if err := j.Log(status.Committed, gtrid, record.UniqueNames); err != nil {
			if firstErr == nil {
				firstErr = errors.Wrapf(err, "cannot log committed status of recovered transaction %s", gtrid)
			}
			continue
		}
		delete(dangling, gtrid)
	}
	return firstErr
}
