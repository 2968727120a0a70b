// Package chkreport implements the report/action protocol (spec §4.5, C5):
// report emission with sequence generation and pending-decision parking,
// and the operator-facing act() that resolves a pending decision and
// optionally rewrites policy for every matching pending record.
//
// Among the checker packages this one depends only on chktypes and
// chkpending (plus logging; dependency order C1 -> C4 -> C5 per spec §2);
// it never imports chkpool or chkrpc directly, instead accepting narrow
// interfaces so the pool registry and the RPC transport can be wired in
// by the daemons without a cycle.
package chkreport

import (
	"context"

	"github.com/google/uuid"
	"github.com/oriys/chk/internal/chkpending"
	"github.com/oriys/chk/internal/chktypes"
	"github.com/oriys/chk/internal/logging"
)

// Report is the wire/in-memory shape of one inconsistency report (spec
// §6.2 REPORT opcode, §6.4 report payload).
type Report struct {
	Seq        chktypes.Seq
	Class      chktypes.Class
	Action     chktypes.Action
	Result     int32
	Rank       uint32
	Target     uint32
	Pool       uuid.UUID
	PoolLabel  string
	Cont       uuid.UUID
	ContLabel  string
	Obj        string
	Dkey       []byte
	Akey       []byte
	Msg        string
	ActChoices []chktypes.Action
	ActDetails []string
	ActMsgs    []string
}

// Sender delivers a report to its destination (the Leader, from an
// Engine's point of view; a local acceptor, from the Leader's point of
// view) and returns the resolved action when the report does not require
// parking. A Sender returning chktypes.ErrAgain signals a seq collision;
// the caller regenerates and retries.
type Sender interface {
	SendReport(ctx context.Context, r *Report) (chktypes.Action, error)
}

// PoolMarker marks a pool's persisted bookmark PENDING while a report
// blocks on an operator decision (spec §4.5 step 4). Implemented by
// chkpool.
type PoolMarker interface {
	MarkPoolPending(ctx context.Context, pool uuid.UUID) error
}

// PoolLookup reports whether a pool UUID is currently tracked, used to
// reject a report against an unknown pool with ErrNoHdl rather than
// silently creating a pending record for nothing.
type PoolLookup interface {
	HasPool(pool uuid.UUID) bool
}

// PolicyUpdater persists a class -> action override when act() is called
// with the FOR_ALL flag. Implemented by chkbookmark-backed instance state.
type PolicyUpdater interface {
	SetPolicy(ctx context.Context, class chktypes.Class, action chktypes.Action) error
}

// Reporter drives the report/action protocol for one role (Leader or
// Engine). The same logic serves both roles; only the Sender differs
// (RPC to the Leader vs. a local acceptor), per spec §4.5 "report on the
// Leader is symmetric".
type Reporter struct {
	Pending *chkpending.Table
	Sender  Sender
	Marker  PoolMarker
	Lookup  PoolLookup
	Policy  PolicyUpdater
	Rank    uint32
}

// Report implements the engine/leader-symmetric report() contract (spec
// §4.5):
//  1. allocate a seq if unit.Seq == 0;
//  2. if the unit requires interaction, park a pending record keyed by the
//     (possibly regenerated) seq;
//  3. hand the unit to the Sender; on a seq collision, free the pending
//     record, regenerate, and retry;
//  4. if interaction is required, mark the pool PENDING and block until an
//     operator answer (or abort) arrives.
func (rp *Reporter) Report(ctx context.Context, unit *Report) (chktypes.Action, error) {
	if unit.Rank == 0 && rp.Rank != 0 {
		unit.Rank = rp.Rank
	}

	for {
		if unit.Seq == 0 {
			unit.Seq = chktypes.NewSeq(rp.Rank)
		}

		var rec *chkpending.Record
		interactive := unit.Action == chktypes.ActionInteract
		if interactive {
			if rp.Lookup != nil && !rp.Lookup.HasPool(unit.Pool) {
				return chktypes.ActionDefault, chktypes.ErrNoHdl
			}
			var err error
			rec, err = rp.Pending.Add(unit.Pool, rp.Rank, true, unit.Seq, unit.Class)
			if err == chktypes.ErrAgain {
				unit.Seq = 0
				continue
			}
			if err != nil {
				return chktypes.ActionDefault, err
			}
		}

		resolved, err := rp.Sender.SendReport(ctx, unit)
		if err == chktypes.ErrAgain {
			if rec != nil {
				_ = rp.Pending.Del(rec.Seq)
			}
			unit.Seq = 0
			continue
		}
		if err != nil {
			if rec != nil {
				_ = rp.Pending.Del(rec.Seq)
			}
			return chktypes.ActionDefault, err
		}

		if !interactive {
			return resolved, nil
		}

		if rp.Marker != nil {
			if err := rp.Marker.MarkPoolPending(ctx, unit.Pool); err != nil {
				logging.Op().Warn("failed to mark pool bookmark pending", "pool", unit.Pool, "error", err)
			}
		}

		action, waitErr := rp.Pending.Wait(ctx, rec)
		if waitErr != nil {
			return chktypes.ActionDefault, waitErr
		}
		return action, nil
	}
}

// Act resolves a pending decision. When forAll is set, the class-to-action
// policy is persisted and every other still-pending record of the same
// class is resolved the same way (spec §4.5 "act").
func (rp *Reporter) Act(ctx context.Context, seq chktypes.Seq, class chktypes.Class, action chktypes.Action, forAll bool) error {
	if forAll {
		if rp.Policy != nil {
			if err := rp.Policy.SetPolicy(ctx, class, action); err != nil {
				return err
			}
		}
		rp.Pending.ActForAll(class, action)
		return nil
	}

	_, err := rp.Pending.Act(seq, action)
	return err
}
