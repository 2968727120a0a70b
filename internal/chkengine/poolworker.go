// Package chkengine implements the Engine scheduler (spec §4.8, C8): the
// shutdown-drain scheduler task and the per-pool worker that runs the
// pool-map classification decision tree, container cleanup, and the final
// DONE/CHECKED handoff.
//
// Grounded on the teacher's internal/executor worker-goroutine pattern
// (one task per unit of work, early-return on cancellation checked between
// every block) generalized from function invocations to pool-map entries.
package chkengine

import (
	"context"

	"github.com/google/uuid"
	"github.com/oriys/chk/internal/chkpool"
	"github.com/oriys/chk/internal/chkreport"
	"github.com/oriys/chk/internal/chktypes"
	"github.com/oriys/chk/internal/logging"
)

// MemberStatus is a pool-map target's reported membership status, the
// values the classification decision tree switches on (spec §4.8 step 2).
type MemberStatus int

const (
	MemberUnknown MemberStatus = iota
	MemberDown
	MemberDownOut
	MemberNormal
	MemberEmpty
	MemberNew
	MemberNonexist
	MemberUp
	MemberUpIn
	MemberDrain
)

// MapEntry pairs a pool-map target with its reported membership status.
type MapEntry struct {
	Target uint32
	Status MemberStatus
}

// IVPublisher announces this pool's completion up the tree (C9).
type IVPublisher interface {
	PublishUpdate(ctx context.Context, pool uuid.UUID, phase chktypes.Phase, status chktypes.Status) error
}

// ContainerLister collects container UUIDs from the pool's shards
// (CONT_LIST phase, out-of-scope container metadata store collaborator).
type ContainerLister interface {
	ListContainers(ctx context.Context, pool uuid.UUID) ([]uuid.UUID, error)
}

// ContainerLabels resolves the PS-side and target-side labels for a
// container, for the CONT_CLEANUP classification table. psExists reports
// whether the container is present in the PS at all, distinct from being
// present with an empty label.
type ContainerLabels interface {
	Labels(ctx context.Context, pool, cont uuid.UUID) (psLabel, targetLabel string, psExists bool, err error)
}

// PoolWorker runs once per pool, woken by CHK_POOL_MBS (spec §4.8).
type PoolWorker struct {
	Reporter  *chkreport.Reporter
	IV        IVPublisher
	Conts     ContainerLister
	Labels    ContainerLabels
	Dryrun    bool
	entries   []MapEntry
}

// Run drives one pool through map classification, container cleanup, and
// the final DONE handoff. Returns early (without completing) if ctx is
// cancelled between any two steps, matching "between every block above,
// the worker checks stop, instance exit, and error" (spec §4.8).
func (w *PoolWorker) Run(ctx context.Context, rec *chkpool.Record, entries []MapEntry) {
	w.entries = entries

	changed, err := w.classifyMap(ctx, rec)
	if err != nil {
		w.finish(ctx, rec, chktypes.StatusFailed)
		return
	}
	if ctx.Err() != nil {
		return
	}

	if changed && !w.Dryrun {
		// flush pool map + propagate: delegated to the out-of-scope
		// pool-map mutation layer (spec §1 non-goal); nothing to do here
		// beyond recording that a flush is owed.
	} else if w.Dryrun {
		rec.MutateBookmark(func(b *chktypes.PoolBookmark) { b.Flags.Set(chktypes.PoolFlagSkip) })
	}

	if rec.SnapshotBookmark().Flags.Has(chktypes.PoolFlagDelayLabel) {
		if err := w.badPoolLabel(ctx, rec); err != nil {
			w.finish(ctx, rec, chktypes.StatusFailed)
			return
		}
	}
	if ctx.Err() != nil {
		return
	}

	rec.MutateBookmark(func(b *chktypes.PoolBookmark) { b.Phase = chktypes.PhaseContList })
	conts, err := w.listContainers(ctx, rec)
	if err != nil {
		w.finish(ctx, rec, chktypes.StatusFailed)
		return
	}
	if ctx.Err() != nil {
		return
	}

	rec.MutateBookmark(func(b *chktypes.PoolBookmark) { b.Phase = chktypes.PhaseContCleanup })
	if err := w.cleanupContainers(ctx, rec, conts); err != nil {
		w.finish(ctx, rec, chktypes.StatusFailed)
		return
	}

	w.finish(ctx, rec, chktypes.StatusChecked)
}

// classifyMap implements the pool_map_entry x member decision tree (spec
// §4.8 step 2-3).
func (w *PoolWorker) classifyMap(ctx context.Context, rec *chkpool.Record) (changed bool, err error) {
	paired := make(map[uint32]bool, len(w.entries))
	for _, e := range w.entries {
		paired[e.Target] = true
		switch {
		case e.Status == MemberDown || e.Status == MemberDownOut:
			action, rerr := w.report(ctx, rec, chktypes.ClassEngineDownInMap, chktypes.ActionDiscard)
			if rerr != nil {
				return changed, rerr
			}
			if action == chktypes.ActionDiscard {
				changed = true
			}
		case e.Status == MemberNew:
			changed = true
		case e.Status == MemberNonexist || e.Status == MemberEmpty:
			action, rerr := w.report(ctx, rec, chktypes.ClassEngineNotInMap, chktypes.ActionIgnore)
			if rerr != nil {
				return changed, rerr
			}
			_ = action
		case e.Status == MemberUnknown:
			if _, rerr := w.report(ctx, rec, chktypes.ClassUnknown, chktypes.ActionIgnore); rerr != nil {
				return changed, rerr
			}
		}
	}
	return changed, nil
}

func (w *PoolWorker) badPoolLabel(ctx context.Context, rec *chkpool.Record) error {
	_, err := w.report(ctx, rec, chktypes.ClassPoolBadLabel, chktypes.ActionTrustMS)
	return err
}

func (w *PoolWorker) listContainers(ctx context.Context, rec *chkpool.Record) ([]uuid.UUID, error) {
	if w.Conts == nil {
		return nil, nil
	}
	return w.Conts.ListContainers(ctx, rec.UUID)
}

// cleanupContainers implements CONT_CLEANUP (spec §4.8 step 8): a
// not-in-PS container is discarded by default, otherwise its label is
// reconciled per the classification table.
func (w *PoolWorker) cleanupContainers(ctx context.Context, rec *chkpool.Record, conts []uuid.UUID) error {
	for _, cont := range conts {
		psLabel, targetLabel, psExists := "", "", false
		var err error
		if w.Labels != nil {
			psLabel, targetLabel, psExists, err = w.Labels.Labels(ctx, rec.UUID, cont)
			if err != nil {
				return err
			}
		}
		if !psExists {
			if _, err := w.report(ctx, rec, chktypes.ClassContNonexistOnPS, chktypes.ActionDiscard); err != nil {
				return err
			}
			continue
		}
		if psLabel == "" && targetLabel == "" {
			continue
		}
		defaultAction := labelDefault(psLabel, targetLabel)
		if _, err := w.report(ctx, rec, chktypes.ClassContBadLabel, defaultAction); err != nil {
			return err
		}
	}
	return nil
}

// labelDefault implements the CONT_CLEANUP classification table (spec
// §4.8 step 8):
//
//	PS label   Target label   Default
//	empty      empty          no-op (caller skips before reaching here)
//	non-empty  empty          TRUST_PS
//	empty      non-empty      TRUST_TARGET
//	mismatched mismatched     INTERACT
func labelDefault(psLabel, targetLabel string) chktypes.Action {
	switch {
	case psLabel != "" && targetLabel == "":
		return chktypes.ActionTrustPS
	case psLabel == "" && targetLabel != "":
		return chktypes.ActionTrustTarget
	case psLabel != targetLabel:
		return chktypes.ActionInteract
	default:
		return chktypes.ActionIgnore
	}
}

func (w *PoolWorker) report(ctx context.Context, rec *chkpool.Record, class chktypes.Class, defaultAction chktypes.Action) (chktypes.Action, error) {
	if w.Reporter == nil {
		return defaultAction, nil
	}
	unit := &chkreport.Report{
		Class:  class,
		Action: defaultAction,
		Pool:   rec.UUID,
	}
	return w.Reporter.Report(ctx, unit)
}

func (w *PoolWorker) finish(ctx context.Context, rec *chkpool.Record, status chktypes.Status) {
	rec.MutateBookmark(func(b *chktypes.PoolBookmark) {
		b.Phase = chktypes.PhaseDone
		b.Status = status
		b.Flags.Set(chktypes.PoolFlagDone)
	})
	if w.IV != nil {
		if err := w.IV.PublishUpdate(ctx, rec.UUID, chktypes.PhaseDone, status); err != nil {
			logging.Op().Warn("pool worker: completion publish failed", "pool", rec.UUID, "error", err)
		}
	}
}
