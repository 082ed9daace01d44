package recovery

import (
	"math"
	"sync"

	"github.com/ilyalabun/btm/uid"
)

// InFlightRegistry tracks the begin timestamps of transactions currently
// running in this process. The recoverer must not touch an in-doubt branch
// belonging to a transaction that is merely between phase 1 and phase 2:
// any branch whose gtrid timestamp is not older than the oldest in-flight
// transaction is left alone.
type InFlightRegistry struct {
	mu     sync.Mutex
	begins map[uid.Uid]int64
}

// NewInFlightRegistry creates an empty registry.
func NewInFlightRegistry() *InFlightRegistry {
	return &InFlightRegistry{begins: make(map[uid.Uid]int64)}
}

// Register records that the transaction identified by gtrid began at the
// given millisecond timestamp.
func (r *InFlightRegistry) Register(gtrid uid.Uid, beginTimestamp int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.begins[gtrid] = beginTimestamp
}

// Unregister removes the transaction once it reached a terminal state.
func (r *InFlightRegistry) Unregister(gtrid uid.Uid) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.begins, gtrid)
}

// OldestTimestamp returns the begin timestamp of the oldest in-flight
// transaction, or math.MaxInt64 when none is running.
func (r *InFlightRegistry) OldestTimestamp() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	oldest := int64(math.MaxInt64)
	for _, ts := range r.begins {
		if ts < oldest {
			oldest = ts
		}
	}
	return oldest
}
