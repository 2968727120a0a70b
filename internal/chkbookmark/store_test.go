package chkbookmark

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/oriys/chk/internal/chktypes"
)

func TestLeaderBookmarkRoundTrip(t *testing.T) {
	s := New(NewMemKV())
	ctx := context.Background()

	if _, ok, err := s.GetLeaderBookmark(ctx); err != nil || ok {
		t.Fatalf("expected no bookmark, got ok=%v err=%v", ok, err)
	}

	bk := &chktypes.InstanceBookmark{
		Gen:    chktypes.NewGen(),
		IVUUID: uuid.New(),
		Phase:  chktypes.PhasePrepare,
		Status: chktypes.StatusRunning,
	}
	if err := s.PutLeaderBookmark(ctx, bk); err != nil {
		t.Fatalf("put: %v", err)
	}

	got, ok, err := s.GetLeaderBookmark(ctx)
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if got.Magic != chktypes.MagicLeader {
		t.Fatalf("magic = %v, want LEADER", got.Magic)
	}
	if got.Gen != bk.Gen {
		t.Fatalf("gen = %v, want %v", got.Gen, bk.Gen)
	}
}

func TestGetLeaderBookmarkRejectsWrongMagic(t *testing.T) {
	kv := NewMemKV()
	s := New(kv)
	ctx := context.Background()

	// Write an engine bookmark under the leader key directly; the typed
	// wrapper must refuse to hand it back as a leader bookmark.
	engineBk := &chktypes.InstanceBookmark{Status: chktypes.StatusRunning}
	if err := s.PutEngineBookmark(ctx, engineBk); err != nil {
		t.Fatalf("put engine: %v", err)
	}
	raw, ok, err := kv.Fetch(ctx, KeyEngine)
	if err != nil || !ok {
		t.Fatalf("fetch raw engine bookmark: ok=%v err=%v", ok, err)
	}
	if err := kv.Upsert(ctx, KeyLeader, raw); err != nil {
		t.Fatalf("seed leader key: %v", err)
	}

	if _, _, err := s.GetLeaderBookmark(ctx); err == nil {
		t.Fatalf("expected magic mismatch error, got nil")
	}
}

func TestPropertyAndRanksJointExistence(t *testing.T) {
	kv := NewMemKV()
	s := New(kv)
	ctx := context.Background()

	if _, _, ok, err := s.GetPropertyAndRanks(ctx); err != nil || ok {
		t.Fatalf("expected absent, got ok=%v err=%v", ok, err)
	}

	prop := &Property{Policies: chktypes.DefaultPolicyTable()}
	ranks := &Ranks{RankIDs: []uint32{0, 1, 2}, GroupVersion: 1}
	if err := s.PutPropertyAndRanks(ctx, prop, ranks); err != nil {
		t.Fatalf("put: %v", err)
	}

	gotProp, gotRanks, ok, err := s.GetPropertyAndRanks(ctx)
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if len(gotRanks.RankIDs) != 3 {
		t.Fatalf("ranks = %v, want 3 entries", gotRanks.RankIDs)
	}
	if gotProp.Policies.Resolve(chktypes.ClassPoolNonexistOnMS) != chktypes.ActionReadd {
		t.Fatalf("policy for PoolNonexistOnMS = %v, want READD", gotProp.Policies.Resolve(chktypes.ClassPoolNonexistOnMS))
	}

	// Corrupt the pair: delete only "ranks". A reader must now see an error.
	if err := kv.Delete(ctx, KeyRanks); err != nil {
		t.Fatalf("delete ranks: %v", err)
	}
	if _, _, _, err := s.GetPropertyAndRanks(ctx); err == nil {
		t.Fatalf("expected joint-existence error after deleting ranks only")
	}
}

func TestPoolBookmarkTraverseAndDeleteAll(t *testing.T) {
	s := New(NewMemKV())
	ctx := context.Background()

	ids := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
	for _, id := range ids {
		bk := &chktypes.PoolBookmark{PoolUUID: id, Phase: chktypes.PhasePrepare, Status: chktypes.StatusChecking}
		if err := s.PutPoolBookmark(ctx, bk); err != nil {
			t.Fatalf("put pool %s: %v", id, err)
		}
	}

	seen := make(map[uuid.UUID]bool)
	err := s.TraversePools(ctx, func(bk *chktypes.PoolBookmark) error {
		seen[bk.PoolUUID] = true
		return nil
	})
	if err != nil {
		t.Fatalf("traverse: %v", err)
	}
	if len(seen) != len(ids) {
		t.Fatalf("saw %d pools, want %d", len(seen), len(ids))
	}

	if err := s.DeleteAllPools(ctx); err != nil {
		t.Fatalf("delete all: %v", err)
	}
	remaining := 0
	_ = s.TraversePools(ctx, func(*chktypes.PoolBookmark) error {
		remaining++
		return nil
	})
	if remaining != 0 {
		t.Fatalf("remaining = %d, want 0", remaining)
	}
}

func TestBootCorruptStatusNormalized(t *testing.T) {
	bk := &chktypes.InstanceBookmark{Status: chktypes.StatusRunning}
	if !bk.Normalize() {
		t.Fatalf("expected Normalize to rewrite RUNNING status")
	}
	if bk.Status != chktypes.StatusPaused {
		t.Fatalf("status = %v, want PAUSED", bk.Status)
	}
	if bk.Normalize() {
		t.Fatalf("second Normalize should be a no-op")
	}
}
