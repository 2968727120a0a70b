package chkrpc

import (
	"errors"
	"testing"

	"github.com/oriys/chk/internal/chktypes"
)

func TestFirstErrorReturnsEarliest(t *testing.T) {
	errs := []error{nil, nil, chktypes.ErrBusy, chktypes.ErrIO}
	if got := FirstError(errs); !errors.Is(got, chktypes.ErrBusy) {
		t.Fatalf("first error = %v, want ErrBusy", got)
	}
	if FirstError([]error{nil, nil}) != nil {
		t.Fatalf("expected nil when every child succeeds")
	}
}

func TestORBool(t *testing.T) {
	if ORBool([]bool{false, false, false}) {
		t.Fatal("expected false when no child set the flag")
	}
	if !ORBool([]bool{false, true, false}) {
		t.Fatal("expected true when any child set the flag")
	}
}

func TestConcatRanks(t *testing.T) {
	got := ConcatRanks([][]uint32{{1, 2}, nil, {3}})
	want := []uint32{1, 2, 3}
	if len(got) != len(want) {
		t.Fatalf("concat ranks = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("concat ranks = %v, want %v", got, want)
		}
	}
}

func TestMergeInstanceStatusPicksMostSevere(t *testing.T) {
	got := MergeInstanceStatus([]chktypes.Status{
		chktypes.StatusRunning,
		chktypes.StatusFailed,
		chktypes.StatusRunning,
	})
	if got != chktypes.StatusFailed {
		t.Fatalf("merged status = %v, want FAILED", got)
	}
}

func TestRemoteErrorRoundTrip(t *testing.T) {
	wire := NewRemoteError(chktypes.ErrGroupVersion)
	if wire == nil {
		t.Fatal("expected non-nil wire error")
	}
	got := wire.ToError()
	if !errors.Is(got, chktypes.ErrGroupVersion) {
		t.Fatalf("round-tripped error = %v, want ErrGroupVersion", got)
	}
	if NewRemoteError(nil) != nil {
		t.Fatal("expected nil wire error for nil input")
	}
	var nilWire *RemoteError
	if nilWire.ToError() != nil {
		t.Fatal("expected nil error from nil wire error")
	}
}
