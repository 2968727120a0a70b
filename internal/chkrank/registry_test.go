package chkrank

import (
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/oriys/chk/internal/chkpending"
	"github.com/oriys/chk/internal/chktypes"
)

func TestJoinAndList(t *testing.T) {
	lock := &sync.RWMutex{}
	reg := NewRegistry(lock, chkpending.NewTable(lock))

	reg.Join(1)
	reg.Join(2)
	reg.Join(1) // idempotent

	if reg.Len() != 2 {
		t.Fatalf("len = %d, want 2", reg.Len())
	}
}

func TestDrainDeadEvictsAndWakesPending(t *testing.T) {
	lock := &sync.RWMutex{}
	pending := chkpending.NewTable(lock)
	reg := NewRegistry(lock, pending)

	reg.Join(1)
	reg.Join(2)
	reg.Join(3)

	pool := uuid.New()
	if _, err := pending.Add(pool, 2, true, 99, chktypes.ClassUnknown); err != nil {
		t.Fatalf("seed pending: %v", err)
	}

	reg.NotifyDeath(2)
	reg.NotifyDeath(2) // duplicate, must not double-queue

	evictions := reg.DrainDead(chktypes.Gen(1000))
	if len(evictions) != 1 {
		t.Fatalf("evictions = %d, want 1", len(evictions))
	}
	ev := evictions[0]
	if ev.RankID != 2 {
		t.Fatalf("evicted rank = %d, want 2", ev.RankID)
	}
	if ev.GroupVersion != 999 {
		t.Fatalf("group version = %d, want 999 (gen=1000, no prior evictions)", ev.GroupVersion)
	}
	if len(ev.Survivors) != 2 {
		t.Fatalf("survivors = %v, want 2 entries", ev.Survivors)
	}
	if reg.Len() != 2 {
		t.Fatalf("registry len after eviction = %d, want 2", reg.Len())
	}
	if pending.Len() != 0 {
		t.Fatalf("pending table len = %d, want 0 (rank's pending record must be woken)", pending.Len())
	}

	if _, ok := reg.Get(2); ok {
		t.Fatalf("evicted rank 2 must no longer be a member")
	}
}

func TestDrainDeadMultipleRanksMonotonicVersion(t *testing.T) {
	lock := &sync.RWMutex{}
	reg := NewRegistry(lock, chkpending.NewTable(lock))
	reg.Join(7)
	reg.Join(8)

	reg.NotifyDeath(7)
	first := reg.DrainDead(chktypes.Gen(500))
	reg.NotifyDeath(8)
	second := reg.DrainDead(chktypes.Gen(500))

	if first[0].GroupVersion <= second[0].GroupVersion {
		t.Fatalf("expected monotonically decreasing version as evictions accumulate: first=%d second=%d", first[0].GroupVersion, second[0].GroupVersion)
	}
}
