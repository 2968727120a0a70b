// Package chkrank implements the Rank registry (spec §4.6, C6, Leader
// only): tracks participating ranks, queues rank-death events delivered by
// an upcall from the transport layer, and drives the eviction sequence
// (remove from membership, bump the group version, wake pending
// producers) that the scheduler drains every cycle.
//
// Grounded on the teacher's internal/cluster.Registry: a guarded map of
// live members plus a background-drained event queue, generalized from
// node-health polling to transport-delivered death notification since
// rank liveness here is observed, not polled.
package chkrank

import (
	"sync"

	"github.com/oriys/chk/internal/chkpending"
	"github.com/oriys/chk/internal/chktypes"
	"github.com/oriys/chk/internal/logging"
)

// Record is a rank's leader-side bookkeeping (spec §3 "Rank record").
type Record struct {
	RankID uint32
	Phase  chktypes.Phase
}

// Eviction is the result of draining one dead rank: the new group version
// and the surviving rank set, which the Leader scheduler broadcasts as
// CHK_MARK (spec §4.6 step 4).
type Eviction struct {
	RankID       uint32
	GroupVersion uint64
	Survivors    []uint32
}

// Registry is the leader-only rank registry.
type Registry struct {
	lock    *sync.RWMutex // shared with chkpending.Table, per spec §5
	ranks   map[uint32]*Record
	pending *chkpending.Table

	evictions uint64

	deadMu   sync.Mutex
	dead     []uint32
	deadSeen map[uint32]bool
}

// NewRegistry constructs a rank registry. lock must be the same
// *sync.RWMutex passed to the instance's chkpending.Table, since both
// trees share one instance-level lock (spec §5 "locking discipline").
func NewRegistry(lock *sync.RWMutex, pending *chkpending.Table) *Registry {
	return &Registry{
		lock:     lock,
		ranks:    make(map[uint32]*Record),
		pending:  pending,
		deadSeen: make(map[uint32]bool),
	}
}

// Join registers rankID as a participant, returning its record (existing
// or newly created).
func (r *Registry) Join(rankID uint32) *Record {
	r.lock.Lock()
	defer r.lock.Unlock()

	rec, ok := r.ranks[rankID]
	if !ok {
		rec = &Record{RankID: rankID}
		r.ranks[rankID] = rec
	}
	return rec
}

// SetPhase records rankID's last-reported phase.
func (r *Registry) SetPhase(rankID uint32, phase chktypes.Phase) {
	r.lock.Lock()
	defer r.lock.Unlock()
	if rec, ok := r.ranks[rankID]; ok {
		rec.Phase = phase
	}
}

// Get returns rankID's record, if it is still a member.
func (r *Registry) Get(rankID uint32) (*Record, bool) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	rec, ok := r.ranks[rankID]
	return rec, ok
}

// List returns the current membership, in unspecified order.
func (r *Registry) List() []uint32 {
	r.lock.RLock()
	defer r.lock.RUnlock()
	out := make([]uint32, 0, len(r.ranks))
	for id := range r.ranks {
		out = append(out, id)
	}
	return out
}

// Len reports live rank count, for chkmetrics.
func (r *Registry) Len() int {
	r.lock.RLock()
	defer r.lock.RUnlock()
	return len(r.ranks)
}

// NotifyDeath enqueues a rank-death event. Idempotent: a rank already
// queued or already evicted since the last drain is ignored.
func (r *Registry) NotifyDeath(rankID uint32) {
	r.deadMu.Lock()
	defer r.deadMu.Unlock()
	if r.deadSeen[rankID] {
		return
	}
	r.deadSeen[rankID] = true
	r.dead = append(r.dead, rankID)
}

// DrainDead pops every queued rank death and evicts it, returning the
// eviction results in the order they were queued so the caller
// (chkleader) can broadcast CHK_MARK to the survivors of each. Called once
// per scheduler cycle (spec §4.7 "process the dead-rank queue").
func (r *Registry) DrainDead(gen chktypes.Gen) []Eviction {
	r.deadMu.Lock()
	queued := r.dead
	r.dead = nil
	for _, id := range queued {
		delete(r.deadSeen, id)
	}
	r.deadMu.Unlock()

	out := make([]Eviction, 0, len(queued))
	for _, rankID := range queued {
		out = append(out, r.evict(rankID, gen))
	}
	return out
}

// evict removes rankID from the ranks list, bumps the group version, and
// wakes every pending producer that rank originated (spec §4.6 steps 1-3).
// The group-version arithmetic (gen minus prior evictions minus one)
// preserves monotonicity across rejoins, mirroring the original source's
// chk_leader.c rank-death handling.
func (r *Registry) evict(rankID uint32, gen chktypes.Gen) Eviction {
	r.lock.Lock()
	delete(r.ranks, rankID)
	version := uint64(gen) - r.evictions - 1
	r.evictions++
	survivors := make([]uint32, 0, len(r.ranks))
	for id := range r.ranks {
		survivors = append(survivors, id)
	}
	r.lock.Unlock()

	if r.pending != nil {
		r.pending.WakeupByRank(rankID)
	}

	logging.Op().Info("rank evicted", "rank", rankID, "group_version", version, "survivors", len(survivors))
	return Eviction{RankID: rankID, GroupVersion: version, Survivors: survivors}
}
