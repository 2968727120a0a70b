package chkpool

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/oriys/chk/internal/chktypes"
)

func TestAddShardCreatesRecordOnce(t *testing.T) {
	reg := NewRegistry(nil)
	pool := uuid.New()
	ctx := context.Background()

	rec1, err := reg.AddShard(ctx, pool, 1, &chktypes.Clue{Rank: 1, HasClue: true}, "alpha")
	if err != nil {
		t.Fatalf("add shard 1: %v", err)
	}
	rec2, err := reg.AddShard(ctx, pool, 2, &chktypes.Clue{Rank: 2, HasClue: true}, "alpha")
	if err != nil {
		t.Fatalf("add shard 2: %v", err)
	}
	if rec1 != rec2 {
		t.Fatalf("expected the same record for repeated shards on one pool")
	}
	if len(rec1.Shards()) != 2 {
		t.Fatalf("shards = %d, want 2", len(rec1.Shards()))
	}
	if reg.Len() != 1 {
		t.Fatalf("registry len = %d, want 1", reg.Len())
	}
}

func TestStopOneJoinsWorkerAndUpdatesBookmark(t *testing.T) {
	reg := NewRegistry(nil)
	pool := uuid.New()
	ctx := context.Background()

	rec, err := reg.AddShard(ctx, pool, 1, nil, "")
	if err != nil {
		t.Fatalf("add shard: %v", err)
	}

	started := make(chan struct{})
	exited := make(chan struct{})
	reg.SpawnWorker(ctx, rec, func(wctx context.Context, r *Record) {
		close(started)
		<-wctx.Done()
		close(exited)
	})

	select {
	case <-started:
	case <-time.After(time.Second):
		t.Fatal("worker did not start")
	}

	if err := reg.StopOne(ctx, pool, chktypes.StatusStopped, chktypes.PhaseDone); err != nil {
		t.Fatalf("stop_one: %v", err)
	}

	select {
	case <-exited:
	default:
		t.Fatal("stop_one returned before the worker exited")
	}

	if reg.HasPool(pool) {
		t.Fatalf("pool must be removed from the registry after stop_one")
	}
	if rec.SnapshotBookmark().Status != chktypes.StatusStopped {
		t.Fatalf("bookmark status = %v, want STOPPED", rec.SnapshotBookmark().Status)
	}
}

func TestPutAssertsRemovedBeforeFinalRelease(t *testing.T) {
	reg := NewRegistry(nil)
	pool := uuid.New()
	ctx := context.Background()

	rec, _ := reg.AddShard(ctx, pool, 1, nil, "")
	got, ok := reg.Get(pool)
	if !ok || got != rec {
		t.Fatalf("get: ok=%v", ok)
	}

	// The record is still tracked in the tree; Put reaching refcount zero
	// here must refuse to decrement the registry's pool count (spec §4.3:
	// a final put must assert the pool is already removed from the tree).
	reg.Put(got)
	if reg.Len() != 1 {
		t.Fatalf("len after premature final put = %d, want 1 (put must have been rejected)", reg.Len())
	}
}

func TestMinPhaseEmptyRegistryIsDone(t *testing.T) {
	reg := NewRegistry(nil)
	if reg.MinPhase() != chktypes.PhaseDone {
		t.Fatalf("empty registry min phase = %v, want DONE", reg.MinPhase())
	}
}
