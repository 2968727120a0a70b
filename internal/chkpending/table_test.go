package chkpending

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/oriys/chk/internal/chktypes"
)

func TestAddSeqCollisionReturnsAgain(t *testing.T) {
	tbl := NewTable(&sync.RWMutex{})
	pool := uuid.New()

	if _, err := tbl.Add(pool, 0, false, 7, chktypes.ClassPoolBadLabel); err != nil {
		t.Fatalf("first add: %v", err)
	}
	if _, err := tbl.Add(pool, 0, false, 7, chktypes.ClassPoolBadLabel); err != chktypes.ErrAgain {
		t.Fatalf("collision add err = %v, want ErrAgain", err)
	}
}

func TestReportActRoundTrip(t *testing.T) {
	tbl := NewTable(&sync.RWMutex{})
	pool := uuid.New()

	rec, err := tbl.Add(pool, 3, true, 100, chktypes.ClassPoolBadLabel)
	if err != nil {
		t.Fatalf("add: %v", err)
	}

	done := make(chan struct{})
	var gotAction chktypes.Action
	var waitErr error
	go func() {
		gotAction, waitErr = tbl.Wait(context.Background(), rec)
		close(done)
	}()

	// Give the waiter a chance to enter the wait loop before acting.
	time.Sleep(10 * time.Millisecond)
	if _, err := tbl.Act(100, chktypes.ActionIgnore); err != nil {
		t.Fatalf("act: %v", err)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("producer did not wake within timeout")
	}

	if waitErr != nil {
		t.Fatalf("wait err = %v, want nil", waitErr)
	}
	if gotAction != chktypes.ActionIgnore {
		t.Fatalf("action = %v, want IGNORE", gotAction)
	}
	if tbl.Len() != 0 {
		t.Fatalf("pending table len = %d, want 0 after act", tbl.Len())
	}
}

func TestActForAllFansOutAndRespectsClass(t *testing.T) {
	tbl := NewTable(&sync.RWMutex{})
	poolA, poolB := uuid.New(), uuid.New()

	recA, _ := tbl.Add(poolA, 1, true, 1, chktypes.ClassPoolBadLabel)
	recB, _ := tbl.Add(poolB, 2, true, 2, chktypes.ClassPoolBadLabel)
	recOther, _ := tbl.Add(poolA, 1, true, 3, chktypes.ClassContBadLabel)

	matched := tbl.ActForAll(chktypes.ClassPoolBadLabel, chktypes.ActionTrustPS)
	if len(matched) != 2 {
		t.Fatalf("matched %d records, want 2", len(matched))
	}
	if recA.Action() != chktypes.ActionTrustPS || recB.Action() != chktypes.ActionTrustPS {
		t.Fatalf("expected both pool-bad-label records to be resolved to TRUST_PS")
	}
	if recOther.Action() != chktypes.ActionInteract {
		t.Fatalf("unrelated class record must be untouched, got %v", recOther.Action())
	}
	if tbl.Len() != 1 {
		t.Fatalf("table len = %d, want 1 (only the untouched record remains)", tbl.Len())
	}
}

func TestShutdownAllInterruptsWaiters(t *testing.T) {
	tbl := NewTable(&sync.RWMutex{})
	rec, _ := tbl.Add(uuid.New(), 0, false, 55, chktypes.ClassUnknown)

	errCh := make(chan error, 1)
	go func() {
		_, err := tbl.Wait(context.Background(), rec)
		errCh <- err
	}()

	time.Sleep(10 * time.Millisecond)
	tbl.ShutdownAll()

	select {
	case err := <-errCh:
		if err != chktypes.ErrInterrupted {
			t.Fatalf("err = %v, want ErrInterrupted", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("waiter not interrupted by shutdown")
	}
}

func TestWakeupByRank(t *testing.T) {
	tbl := NewTable(&sync.RWMutex{})
	pool := uuid.New()
	tbl.Add(pool, 9, true, 10, chktypes.ClassUnknown)
	tbl.Add(pool, 9, true, 11, chktypes.ClassUnknown)
	tbl.Add(pool, 8, true, 12, chktypes.ClassUnknown)

	tbl.WakeupByRank(9)
	if tbl.Len() != 1 {
		t.Fatalf("table len = %d, want 1", tbl.Len())
	}
}
