package chkinstance

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/oriys/chk/internal/chktypes"
)

func TestStartRejectsSecondStartWhileRunning(t *testing.T) {
	inst := New(RoleEngine, 1, nil, nil, func(ctx context.Context, _ *Instance) {
		<-ctx.Done()
	})
	ctx := context.Background()

	if err := inst.Start(ctx, []uint32{1}, nil, nil, 0, 0); err != nil {
		t.Fatalf("first start: %v", err)
	}
	if err := inst.Start(ctx, []uint32{1}, nil, nil, 0, 0); err != chktypes.ErrAlready {
		t.Fatalf("second start = %v, want ErrAlready", err)
	}
	if err := inst.Pause(ctx); err != nil {
		t.Fatalf("pause: %v", err)
	}
}

func TestStartRejectsIncompatibleFlags(t *testing.T) {
	inst := New(RoleEngine, 1, nil, nil, nil)
	err := inst.Start(context.Background(), nil, nil, nil, chktypes.FlagFailout|chktypes.FlagNoFailout, 0)
	if err != chktypes.ErrInval {
		t.Fatalf("start with conflicting flags = %v, want ErrInval", err)
	}
}

func TestStopIsIdempotent(t *testing.T) {
	inst := New(RoleEngine, 1, nil, nil, func(ctx context.Context, _ *Instance) {
		<-ctx.Done()
	})
	ctx := context.Background()
	if err := inst.Start(ctx, nil, nil, nil, 0, 0); err != nil {
		t.Fatalf("start: %v", err)
	}

	pool := uuid.New()
	if _, err := inst.Pools.AddShard(ctx, pool, 1, nil, ""); err != nil {
		t.Fatalf("add shard: %v", err)
	}

	if err := inst.Stop(ctx, 0, nil); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if inst.Pools.HasPool(pool) {
		t.Fatal("pool must be removed after stop")
	}
	if err := inst.Stop(ctx, 0, nil); err != chktypes.ErrAlready {
		t.Fatalf("second stop = %v, want ErrAlready", err)
	}
}

func TestPauseJoinsScheduler(t *testing.T) {
	started := make(chan struct{})
	exited := make(chan struct{})
	inst := New(RoleLeader, 0, nil, nil, func(ctx context.Context, _ *Instance) {
		close(started)
		<-ctx.Done()
		close(exited)
	})

	ctx := context.Background()
	if err := inst.Start(ctx, []uint32{1, 2}, nil, nil, 0, 0); err != nil {
		t.Fatalf("start: %v", err)
	}

	select {
	case <-started:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not start")
	}

	if err := inst.Pause(ctx); err != nil {
		t.Fatalf("pause: %v", err)
	}

	select {
	case <-exited:
	default:
		t.Fatal("pause returned before the scheduler exited")
	}
	if !inst.Paused() {
		t.Fatal("expected Paused() to report true after Pause")
	}
}

func TestRejoinRetriesTransientErrors(t *testing.T) {
	inst := New(RoleEngine, 3, nil, nil, nil)
	attempts := 0
	caller := rejoinFunc(func(ctx context.Context, gen chktypes.Gen, rank uint32, ivUUID uuid.UUID) ([]uuid.UUID, []chktypes.PoolFlags, error) {
		attempts++
		if attempts < 2 {
			return nil, nil, chktypes.ErrAgain
		}
		return []uuid.UUID{uuid.New()}, []chktypes.PoolFlags{chktypes.PoolFlagDone}, nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	pools, flags, err := inst.Rejoin(ctx, caller)
	if err != nil {
		t.Fatalf("rejoin: %v", err)
	}
	if len(pools) != 1 || len(flags) != 1 {
		t.Fatalf("rejoin result = %v %v, want one pool and one flag entry", pools, flags)
	}
	if attempts != 2 {
		t.Fatalf("attempts = %d, want 2", attempts)
	}
}

type rejoinFunc func(ctx context.Context, gen chktypes.Gen, rank uint32, ivUUID uuid.UUID) ([]uuid.UUID, []chktypes.PoolFlags, error)

func (f rejoinFunc) Rejoin(ctx context.Context, gen chktypes.Gen, rank uint32, ivUUID uuid.UUID) ([]uuid.UUID, []chktypes.PoolFlags, error) {
	return f(ctx, gen, rank, ivUUID)
}
