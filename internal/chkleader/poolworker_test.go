package chkleader

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/oriys/chk/internal/chkpool"
	"github.com/oriys/chk/internal/chktypes"
)

func TestSelectAdviceMajorityQuorum(t *testing.T) {
	clues := []chktypes.Clue{
		{Rank: 1, Term: 5, LastApplied: 10},
		{Rank: 2, Term: 5, LastApplied: 10},
		{Rank: 3, Term: 3, LastApplied: 1},
	}
	advice, quorum := selectAdvice(clues)
	if !quorum {
		t.Fatal("expected quorum with 2 of 3 agreeing on the highest term")
	}
	if clues[advice].Term != 5 {
		t.Fatalf("advice picked term %d, want 5", clues[advice].Term)
	}
}

func TestSelectAdviceNoQuorum(t *testing.T) {
	clues := []chktypes.Clue{
		{Rank: 1, Term: 5, LastApplied: 10},
		{Rank: 2, Term: 4, LastApplied: 9},
		{Rank: 3, Term: 3, LastApplied: 1},
	}
	_, quorum := selectAdvice(clues)
	if quorum {
		t.Fatal("expected no quorum when every clue disagrees on term")
	}
}

func TestPrepareFailsWhenEveryShardLacksAClue(t *testing.T) {
	reg := chkpool.NewRegistry(nil)
	pool := uuid.New()
	ctx := context.Background()
	rec, _ := reg.AddShard(ctx, pool, 1, nil, "")
	reg.AddShard(ctx, pool, 2, &chktypes.Clue{Rank: 2, RC: -16, HasClue: true}, "")

	w := &PoolWorker{Pools: reg}
	if err := w.prepare(ctx, rec); err != chktypes.ErrNoHdl {
		t.Fatalf("prepare with no usable clues = %v, want ErrNoHdl", err)
	}
}

func TestHandleOrphanForcesInteractOnZombieEntry(t *testing.T) {
	reg := chkpool.NewRegistry(nil)
	pool := uuid.New()
	ctx := context.Background()
	rec, _ := reg.AddShard(ctx, pool, 1, &chktypes.Clue{Rank: 1, HasClue: true, ZombieDirEntry: true}, "")

	w := &PoolWorker{Pools: reg, Orphan: true}
	if err := w.handleOrphan(ctx, rec); err != nil {
		t.Fatalf("handle orphan: %v", err)
	}
	bk := rec.SnapshotBookmark()
	if !bk.Flags.Has(chktypes.PoolFlagNotExportPS) {
		t.Fatal("zombie directory entry without a reporter must fall back to not-export-ps (INTERACT never resolved)")
	}
}

func TestStartupReconcileClassifiesPools(t *testing.T) {
	reg := chkpool.NewRegistry(nil)
	ctx := context.Background()

	onBoth := uuid.New()
	onlyEngines := uuid.New()
	onlyMS := uuid.New()
	reg.AddShard(ctx, onBoth, 1, nil, "")
	reg.AddShard(ctx, onlyEngines, 1, nil, "")

	s := &Scheduler{MS: msStub{pools: []uuid.UUID{onBoth, onlyMS}}}
	normal, dangling, orphan, err := s.StartupReconcile(ctx, reg)
	if err != nil {
		t.Fatalf("startup reconcile: %v", err)
	}
	if len(normal) != 1 || normal[0] != onBoth {
		t.Fatalf("normal = %v, want [%v]", normal, onBoth)
	}
	if len(dangling) != 1 || dangling[0] != onlyMS {
		t.Fatalf("dangling = %v, want [%v]", dangling, onlyMS)
	}
	if len(orphan) != 1 || orphan[0] != onlyEngines {
		t.Fatalf("orphan = %v, want [%v]", orphan, onlyEngines)
	}
}

type msStub struct {
	pools []uuid.UUID
}

func (m msStub) ListPools(ctx context.Context) ([]uuid.UUID, error) {
	return m.pools, nil
}
