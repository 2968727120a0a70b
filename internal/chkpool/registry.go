// Package chkpool implements the Pool registry (spec §4.3, C3): the
// mapping from pool UUID to in-memory pool record, the per-pool worker
// task handle, and the shard list each pool accumulates as ranks report
// in.
//
// Grounded on the teacher's internal/pool.Pool: a sync.Map for the
// read-heavy top-level registry, a per-entry mutex+condvar pair
// serializing mutation against the entry's own worker goroutine. Where
// the teacher pools VMs behind a functionPool, this registry pools check
// state behind a pool UUID; the locking discipline (entry mutex never
// held across an RPC or the registry's own sync.Map operations) is
// carried over unchanged.
package chkpool

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/oriys/chk/internal/chkbookmark"
	"github.com/oriys/chk/internal/chktypes"
	"github.com/oriys/chk/internal/logging"
)

// PSController is the out-of-scope pool-service collaborator (spec §1:
// "the on-disk pool-map mutation layer ... explicitly out of scope,
// interfaces only"). The registry calls it to tear down a pool's local PS
// instance and container on Shutdown.
type PSController interface {
	ShutdownPoolService(ctx context.Context, pool uuid.UUID) error
}

type workerHandle struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Record is the in-memory pool record (spec §3 "Pool record").
type Record struct {
	UUID uuid.UUID

	mu       sync.Mutex
	cond     *sync.Cond
	refCount int
	removed  bool

	shards     []chktypes.Shard
	Bookmark   chktypes.PoolBookmark
	Membership map[uint32][]string // per-rank target-status array, set by the Leader

	worker *workerHandle
}

func newRecord(pool uuid.UUID) *Record {
	r := &Record{UUID: pool}
	r.cond = sync.NewCond(&r.mu)
	return r
}

// Shards returns a snapshot of the pool's shard list.
func (r *Record) Shards() []chktypes.Shard {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]chktypes.Shard, len(r.shards))
	copy(out, r.shards)
	return out
}

// SnapshotBookmark returns a copy of the record's current bookmark.
func (r *Record) SnapshotBookmark() chktypes.PoolBookmark {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.Bookmark
}

// SetMembership installs the Leader-supplied per-rank target-status table
// (spec §3 "pool record ... current membership table").
func (r *Record) SetMembership(m map[uint32][]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Membership = m
}

// MutateBookmark applies fn to the record's bookmark under the record's
// own mutex, the only lock this package ever holds across a caller-
// supplied callback (the callback itself must not block or re-enter the
// registry, since bookmark persistence happens outside the lock).
func (r *Record) MutateBookmark(fn func(*chktypes.PoolBookmark)) chktypes.PoolBookmark {
	r.mu.Lock()
	fn(&r.Bookmark)
	bk := r.Bookmark
	r.mu.Unlock()
	return bk
}

// Wait blocks on the record's condition variable, released while waiting
// and re-acquired on return, exactly like sync.Cond.Wait, so the record's
// mutex must be held on entry.
func (r *Record) Wait() {
	r.cond.Wait()
}

func (r *Record) Broadcast() {
	r.mu.Lock()
	r.cond.Broadcast()
	r.mu.Unlock()
}

// Registry is the pool registry (C3).
type Registry struct {
	pools sync.Map // uuid.UUID -> *Record
	store *chkbookmark.Store
	count atomic.Int64
}

func NewRegistry(store *chkbookmark.Store) *Registry {
	return &Registry{store: store}
}

// AddShard upserts a shard report for pool (spec §4.3 "add_shard"). If the
// pool record does not yet exist, it is allocated and a fresh CHECKING
// bookmark is persisted.
func (r *Registry) AddShard(ctx context.Context, pool uuid.UUID, rank uint32, clue *chktypes.Clue, label string) (*Record, error) {
	v, loaded := r.pools.LoadOrStore(pool, newRecord(pool))
	rec := v.(*Record)

	rec.mu.Lock()
	rec.shards = append(rec.shards, chktypes.Shard{Rank: rank, Clue: clue, Label: label})
	rec.mu.Unlock()

	if !loaded {
		r.count.Add(1)
		bk := chktypes.PoolBookmark{PoolUUID: pool, Status: chktypes.StatusChecking, Phase: chktypes.PhasePrepare}
		rec.mu.Lock()
		rec.Bookmark = bk
		rec.mu.Unlock()
		if r.store != nil {
			if err := r.store.PutPoolBookmark(ctx, &bk); err != nil {
				logging.Op().Warn("failed to persist new pool bookmark", "pool", pool, "error", err)
			}
		}
	}
	return rec, nil
}

// Get looks up pool and increments its reference count. The caller must
// call Put exactly once per successful Get.
func (r *Registry) Get(pool uuid.UUID) (*Record, bool) {
	v, ok := r.pools.Load(pool)
	if !ok {
		return nil, false
	}
	rec := v.(*Record)
	rec.mu.Lock()
	rec.refCount++
	rec.mu.Unlock()
	return rec, true
}

// Put releases a reference obtained via Get (AddShard takes none). The
// final Put (refcount reaches zero) checks that the record is already
// removed from the tree and its worker handle consumed; if either check
// fails it logs an error and leaves the pool counted in Len, otherwise it
// lowers that count.
func (r *Registry) Put(rec *Record) {
	rec.mu.Lock()
	rec.refCount--
	rc := rec.refCount
	removed := rec.removed
	worker := rec.worker
	rec.mu.Unlock()

	if rc > 0 {
		return
	}
	if !removed {
		logging.Op().Error("pool record reached refcount zero while still tracked", "pool", rec.UUID)
		return
	}
	if worker != nil {
		logging.Op().Error("pool record reached refcount zero with an unconsumed worker handle", "pool", rec.UUID)
		return
	}
	r.count.Add(-1)
}

// HasPool reports whether pool is currently tracked. Implements
// chkreport.PoolLookup.
func (r *Registry) HasPool(pool uuid.UUID) bool {
	_, ok := r.pools.Load(pool)
	return ok
}

// MarkPoolPending sets pool's bookmark status to PENDING and persists it.
// Implements chkreport.PoolMarker.
func (r *Registry) MarkPoolPending(ctx context.Context, pool uuid.UUID) error {
	v, ok := r.pools.Load(pool)
	if !ok {
		return chktypes.ErrNoHdl
	}
	rec := v.(*Record)
	bk := rec.MutateBookmark(func(b *chktypes.PoolBookmark) {
		b.Status = chktypes.StatusPending
	})
	if r.store == nil {
		return nil
	}
	return r.store.PutPoolBookmark(ctx, &bk)
}

// SpawnWorker starts the pool's phase-engine goroutine (chkleader's or
// chkengine's per-pool worker, depending on role) and records its handle
// on the record so StopOne can join it.
func (r *Registry) SpawnWorker(ctx context.Context, rec *Record, fn func(context.Context, *Record)) {
	wctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	rec.mu.Lock()
	rec.worker = &workerHandle{cancel: cancel, done: done}
	rec.mu.Unlock()

	go func() {
		defer close(done)
		fn(wctx, rec)
	}()
}

// StopOne removes pool from the tree, cancels and joins its worker task,
// and — if the pool was still CHECKING or PENDING — rewrites its bookmark
// to status/phase (spec §4.3 "stop_one").
func (r *Registry) StopOne(ctx context.Context, pool uuid.UUID, status chktypes.Status, phase chktypes.Phase) error {
	v, ok := r.pools.LoadAndDelete(pool)
	if !ok {
		return chktypes.ErrNoHdl
	}
	rec := v.(*Record)

	rec.mu.Lock()
	rec.removed = true
	w := rec.worker
	rec.worker = nil
	rec.mu.Unlock()

	if w != nil {
		w.cancel()
		<-w.done
	}

	bk := rec.MutateBookmark(func(b *chktypes.PoolBookmark) {
		if b.Status == chktypes.StatusChecking || b.Status == chktypes.StatusPending {
			b.Status = status
			b.Phase = phase
		}
	})
	rec.Broadcast()

	if r.store != nil {
		if err := r.store.PutPoolBookmark(ctx, &bk); err != nil {
			logging.Op().Warn("failed to persist pool bookmark on stop", "pool", pool, "error", err)
		}
	}
	return nil
}

// StopAll snapshots every tracked pool and stops each (spec §4.3
// "stop_all").
func (r *Registry) StopAll(ctx context.Context, status chktypes.Status) {
	var ids []uuid.UUID
	r.pools.Range(func(k, _ any) bool {
		ids = append(ids, k.(uuid.UUID))
		return true
	})
	for _, id := range ids {
		if err := r.StopOne(ctx, id, status, chktypes.PhaseDone); err != nil {
			logging.Op().Warn("stop_all: stop_one failed", "pool", id, "error", err)
		}
	}
}

// Shutdown performs orderly teardown of the local PS instance and pool
// container for pool (spec §4.3 "shutdown"), delegating the actual
// teardown to the out-of-scope PSController collaborator.
func (r *Registry) Shutdown(ctx context.Context, pool uuid.UUID, ps PSController) error {
	if ps == nil {
		return nil
	}
	return ps.ShutdownPoolService(ctx, pool)
}

// List returns every currently tracked pool UUID.
func (r *Registry) List() []uuid.UUID {
	var out []uuid.UUID
	r.pools.Range(func(k, _ any) bool {
		out = append(out, k.(uuid.UUID))
		return true
	})
	return out
}

// MinPhase computes the minimum phase across all tracked pools, or
// PhaseDone if the registry is empty (spec §4.7 step 3).
func (r *Registry) MinPhase() chktypes.Phase {
	min := chktypes.PhaseDone
	any := false
	r.pools.Range(func(_, v any) bool {
		rec := v.(*Record)
		p := rec.SnapshotBookmark().Phase
		if !any || p < min {
			min = p
			any = true
		}
		return true
	})
	return min
}

// Len reports the number of pool records created by AddShard and not yet
// released by a final Put. A pool removed by StopOne still counts until
// that Put, so Len can exceed len(List()).
func (r *Registry) Len() int {
	return int(r.count.Load())
}
