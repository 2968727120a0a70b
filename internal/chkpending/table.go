// Package chkpending implements the pending-decision table (spec §4.4,
// C4): a map from report sequence to an awaited operator decision,
// threaded additionally onto per-pool and per-rank lists. It is grounded
// on the teacher's in-memory tracker shape (internal/jobtracker.Tracker) —
// a guarded map plus per-entry synchronization — generalized so that the
// per-entry synchronization is a wait/wake rendezvous instead of a TTL.
//
// Per spec §9 ("the pending-record wait naturally maps to a single-shot
// channel"), each Record carries a channel that is closed exactly once to
// wake a blocked producer; the producer then re-reads Record.Action to
// learn the decision, or chktypes.ErrInterrupted if it was woken by
// shutdown rather than an answer.
package chkpending

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/oriys/chk/internal/chktypes"
)

// Record is one pending decision, keyed by Seq (spec §3 "Pending record").
type Record struct {
	Seq      chktypes.Seq
	PoolUUID uuid.UUID
	Rank     uint32
	HasRank  bool
	Class    chktypes.Class

	mu        sync.Mutex
	action    chktypes.Action
	busy      bool
	exiting   bool
	wake      chan struct{}
	closeOnce sync.Once
}

func (r *Record) Action() chktypes.Action {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.action
}

func (r *Record) Exiting() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.exiting
}

func (r *Record) signal() {
	r.closeOnce.Do(func() { close(r.wake) })
}

// Table is the pending-decision table. The caller supplies a shared
// *sync.RWMutex because spec §5 requires the pending tree and the rank
// tree (chkrank) to be protected by the same instance-level lock; the two
// packages are kept decoupled by dependency injection rather than a shared
// "instance" type.
type Table struct {
	lock *sync.RWMutex

	bySeq  map[chktypes.Seq]*Record
	byPool map[uuid.UUID][]*Record
	byRank map[uint32][]*Record

	// SchedRunning/SchedExiting let a blocked producer observe the owning
	// instance's shutdown state without this package depending on
	// chkinstance (spec §4.4 "producers wait in a loop that checks three
	// exit conditions").
	SchedRunning func() bool
	SchedExiting func() bool
}

func NewTable(lock *sync.RWMutex) *Table {
	return &Table{
		lock:   lock,
		bySeq:  make(map[chktypes.Seq]*Record),
		byPool: make(map[uuid.UUID][]*Record),
		byRank: make(map[uint32][]*Record),
	}
}

// Add inserts a new pending record. Returns chktypes.ErrAgain on a seq
// collision so the caller regenerates and retries (spec §4.4).
func (t *Table) Add(pool uuid.UUID, rank uint32, hasRank bool, seq chktypes.Seq, class chktypes.Class) (*Record, error) {
	t.lock.Lock()
	defer t.lock.Unlock()

	if _, exists := t.bySeq[seq]; exists {
		return nil, chktypes.ErrAgain
	}
	rec := &Record{
		Seq: seq, PoolUUID: pool, Rank: rank, HasRank: hasRank, Class: class,
		action: chktypes.ActionInteract,
		wake:   make(chan struct{}),
	}
	t.bySeq[seq] = rec
	t.byPool[pool] = append(t.byPool[pool], rec)
	if hasRank {
		t.byRank[rank] = append(t.byRank[rank], rec)
	}
	return rec, nil
}

func removeRecord(list []*Record, rec *Record) []*Record {
	out := list[:0]
	for _, r := range list {
		if r != rec {
			out = append(out, r)
		}
	}
	return out
}

// wakeupLocked removes rec from the tree, and signals the producer if it
// is parked and signal is true. Callers must hold t.lock.
func (t *Table) wakeupLocked(rec *Record, signal bool) {
	delete(t.bySeq, rec.Seq)
	t.byPool[rec.PoolUUID] = removeRecord(t.byPool[rec.PoolUUID], rec)
	if len(t.byPool[rec.PoolUUID]) == 0 {
		delete(t.byPool, rec.PoolUUID)
	}
	if rec.HasRank {
		t.byRank[rec.Rank] = removeRecord(t.byRank[rec.Rank], rec)
		if len(t.byRank[rec.Rank]) == 0 {
			delete(t.byRank, rec.Rank)
		}
	}
	if signal {
		rec.signal()
	}
}

// Wakeup removes rec from the tree and signals its producer.
func (t *Table) Wakeup(rec *Record) {
	t.lock.Lock()
	defer t.lock.Unlock()
	t.wakeupLocked(rec, true)
}

// Del removes the record for seq without signalling its producer ("del is
// wakeup without signalling", spec §4.4).
func (t *Table) Del(seq chktypes.Seq) error {
	t.lock.Lock()
	defer t.lock.Unlock()
	rec, ok := t.bySeq[seq]
	if !ok {
		return chktypes.ErrNoHdl
	}
	t.wakeupLocked(rec, false)
	return nil
}

// Act writes action into the pending record for seq and wakes its
// producer (spec §4.5 "act").
func (t *Table) Act(seq chktypes.Seq, action chktypes.Action) (*Record, error) {
	t.lock.Lock()
	defer t.lock.Unlock()

	rec, ok := t.bySeq[seq]
	if !ok {
		return nil, chktypes.ErrNoHdl
	}
	rec.mu.Lock()
	rec.action = action
	rec.mu.Unlock()
	t.wakeupLocked(rec, true)
	return rec, nil
}

// ActForAll rewrites every still-pending record of class to action. The
// caller is responsible for persisting the policy-table change; this
// method only performs the in-memory fan-out (spec §4.5 "act ... for_all").
func (t *Table) ActForAll(class chktypes.Class, action chktypes.Action) []*Record {
	t.lock.Lock()
	defer t.lock.Unlock()

	var matched []*Record
	for _, rec := range t.bySeq {
		rec.mu.Lock()
		if rec.Class == class && rec.action == chktypes.ActionInteract {
			rec.action = action
			matched = append(matched, rec)
		}
		rec.mu.Unlock()
	}
	for _, rec := range matched {
		t.wakeupLocked(rec, true)
	}
	return matched
}

// WakeupByRank wakes and removes every pending record originated by rank.
// Used when a rank record is deleted on rank death (spec §4.6 step 3).
func (t *Table) WakeupByRank(rank uint32) {
	t.lock.Lock()
	recs := append([]*Record(nil), t.byRank[rank]...)
	t.lock.Unlock()

	for _, rec := range recs {
		t.Wakeup(rec)
	}
}

// ShutdownAll marks every pending record as exiting and wakes its
// producer. Called when the instance is torn down.
func (t *Table) ShutdownAll() {
	t.lock.Lock()
	recs := make([]*Record, 0, len(t.bySeq))
	for _, rec := range t.bySeq {
		recs = append(recs, rec)
	}
	t.lock.Unlock()

	for _, rec := range recs {
		rec.mu.Lock()
		rec.exiting = true
		rec.mu.Unlock()
		rec.signal()
	}
}

// Wait blocks the calling producer on rec until an operator answer
// arrives or the instance aborts. Mirrors the three exit conditions of
// spec §4.4: a non-INTERACT action, a sched_running/sched_exiting/exiting
// abort, or a condvar wake to re-check those conditions.
func (t *Table) Wait(ctx context.Context, rec *Record) (chktypes.Action, error) {
	rec.mu.Lock()
	rec.busy = true
	rec.mu.Unlock()

	for {
		if action := rec.Action(); action != chktypes.ActionInteract {
			return action, nil
		}
		if rec.Exiting() {
			return chktypes.ActionDefault, chktypes.ErrInterrupted
		}
		if t.SchedRunning != nil && !t.SchedRunning() {
			return chktypes.ActionDefault, chktypes.ErrInterrupted
		}
		if t.SchedExiting != nil && t.SchedExiting() {
			return chktypes.ActionDefault, chktypes.ErrInterrupted
		}
		select {
		case <-rec.wake:
			// Loop back around and re-evaluate exit conditions; a
			// shutdown wake and an answer wake look identical here.
		case <-ctx.Done():
			return chktypes.ActionDefault, ctx.Err()
		}
	}
}

// Len reports the number of live pending records; exposed for chkmetrics.
func (t *Table) Len() int {
	t.lock.RLock()
	defer t.lock.RUnlock()
	return len(t.bySeq)
}
