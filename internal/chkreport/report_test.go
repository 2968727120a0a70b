package chkreport

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/oriys/chk/internal/chkpending"
	"github.com/oriys/chk/internal/chktypes"
)

type fakeSender struct {
	mu        sync.Mutex
	collideOn chktypes.Seq
	collided  bool
	got       []*Report
}

func (f *fakeSender) SendReport(_ context.Context, r *Report) (chktypes.Action, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.got = append(f.got, r)
	if f.collideOn != 0 && r.Seq == f.collideOn && !f.collided {
		f.collided = true
		return chktypes.ActionDefault, chktypes.ErrAgain
	}
	if r.Action != chktypes.ActionInteract {
		return chktypes.ActionDiscard, nil
	}
	return chktypes.ActionDefault, nil
}

type fakeMarker struct{ marked []uuid.UUID }

func (f *fakeMarker) MarkPoolPending(_ context.Context, pool uuid.UUID) error {
	f.marked = append(f.marked, pool)
	return nil
}

type fakeLookup struct{ known map[uuid.UUID]bool }

func (f *fakeLookup) HasPool(pool uuid.UUID) bool { return f.known[pool] }

type fakePolicy struct{ set map[chktypes.Class]chktypes.Action }

func (f *fakePolicy) SetPolicy(_ context.Context, c chktypes.Class, a chktypes.Action) error {
	if f.set == nil {
		f.set = make(map[chktypes.Class]chktypes.Action)
	}
	f.set[c] = a
	return nil
}

func TestReportNonInteractiveReturnsResolvedAction(t *testing.T) {
	sender := &fakeSender{}
	pending := chkpending.NewTable(&sync.RWMutex{})
	rp := &Reporter{Pending: pending, Sender: sender, Rank: 3}

	unit := &Report{Class: chktypes.ClassPoolNonexistOnEngine, Action: chktypes.ActionDiscard, Pool: uuid.New()}
	action, err := rp.Report(context.Background(), unit)
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if action != chktypes.ActionDiscard {
		t.Fatalf("action = %v, want DISCARD", action)
	}
	if unit.Seq == 0 {
		t.Fatalf("expected a seq to be allocated")
	}
	if chktypes.OriginRank(unit.Seq) != 3 {
		t.Fatalf("origin rank = %d, want 3", chktypes.OriginRank(unit.Seq))
	}
}

func TestReportInteractiveParksAndMarksPending(t *testing.T) {
	sender := &fakeSender{}
	marker := &fakeMarker{}
	pool := uuid.New()
	lookup := &fakeLookup{known: map[uuid.UUID]bool{pool: true}}
	pending := chkpending.NewTable(&sync.RWMutex{})
	rp := &Reporter{Pending: pending, Sender: sender, Marker: marker, Lookup: lookup, Rank: 1}

	unit := &Report{Class: chktypes.ClassPoolBadLabel, Action: chktypes.ActionInteract, Pool: pool}

	resultCh := make(chan chktypes.Action, 1)
	errCh := make(chan error, 1)
	go func() {
		a, err := rp.Report(context.Background(), unit)
		resultCh <- a
		errCh <- err
	}()

	time.Sleep(20 * time.Millisecond)
	if len(marker.marked) != 1 || marker.marked[0] != pool {
		t.Fatalf("expected pool %s to be marked pending, got %v", pool, marker.marked)
	}
	if err := rp.Act(context.Background(), unit.Seq, unit.Class, chktypes.ActionTrustPS, false); err != nil {
		t.Fatalf("act: %v", err)
	}

	select {
	case a := <-resultCh:
		if a != chktypes.ActionTrustPS {
			t.Fatalf("resolved action = %v, want TRUST_PS", a)
		}
		if err := <-errCh; err != nil {
			t.Fatalf("report err = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("report did not resolve within timeout")
	}
}

func TestReportRejectsUnknownPool(t *testing.T) {
	sender := &fakeSender{}
	lookup := &fakeLookup{known: map[uuid.UUID]bool{}}
	pending := chkpending.NewTable(&sync.RWMutex{})
	rp := &Reporter{Pending: pending, Sender: sender, Lookup: lookup, Rank: 1}

	unit := &Report{Class: chktypes.ClassPoolBadLabel, Action: chktypes.ActionInteract, Pool: uuid.New()}
	if _, err := rp.Report(context.Background(), unit); err != chktypes.ErrNoHdl {
		t.Fatalf("err = %v, want ErrNoHdl", err)
	}
}

func TestActForAllPersistsPolicy(t *testing.T) {
	pending := chkpending.NewTable(&sync.RWMutex{})
	policy := &fakePolicy{}
	rp := &Reporter{Pending: pending, Policy: policy, Rank: 1}

	pool := uuid.New()
	rec, err := pending.Add(pool, 1, true, 42, chktypes.ClassPoolBadLabel)
	if err != nil {
		t.Fatalf("seed pending: %v", err)
	}

	if err := rp.Act(context.Background(), rec.Seq, chktypes.ClassPoolBadLabel, chktypes.ActionTrustMS, true); err != nil {
		t.Fatalf("act for_all: %v", err)
	}
	if policy.set[chktypes.ClassPoolBadLabel] != chktypes.ActionTrustMS {
		t.Fatalf("policy not persisted: %v", policy.set)
	}
	if rec.Action() != chktypes.ActionTrustMS {
		t.Fatalf("record action = %v, want TRUST_MS", rec.Action())
	}
}
