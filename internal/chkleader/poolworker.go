package chkleader

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/oriys/chk/internal/chkpool"
	"github.com/oriys/chk/internal/chkreport"
	"github.com/oriys/chk/internal/chktypes"
	"github.com/oriys/chk/internal/logging"
)

// PoolWorker drives one pool through the Leader-side state machine (spec
// §4.7 "Pool worker (Leader side)"). One instance is spawned per pool via
// chkpool.Registry.SpawnWorker.
type PoolWorker struct {
	Pools     *chkpool.Registry
	Reporter  *chkreport.Reporter
	Transport RankTransport
	Gen       chktypes.Gen
	Dryrun    bool
	Orphan    bool // this worker was spawned in "for-orphan" mode
}

// Run executes one pool's state machine to completion or until ctx is
// cancelled (stop_one cancels the worker's context).
func (w *PoolWorker) Run(ctx context.Context, rec *chkpool.Record) {
	if err := w.prepare(ctx, rec); err != nil {
		w.fail(ctx, rec, err)
		return
	}
	if ctx.Err() != nil {
		return
	}
	if w.Orphan {
		if err := w.handleOrphan(ctx, rec); err != nil {
			w.fail(ctx, rec, err)
			return
		}
	}
	if err := w.handleLabel(ctx, rec); err != nil {
		w.fail(ctx, rec, err)
		return
	}

	rec.MutateBookmark(func(b *chktypes.PoolBookmark) { b.Phase = chktypes.PhasePoolList })
	if err := w.broadcastPoolStart(ctx, rec); err != nil {
		w.fail(ctx, rec, err)
		return
	}

	rec.MutateBookmark(func(b *chktypes.PoolBookmark) { b.Phase = chktypes.PhasePoolMbs })
	if err := w.sendPoolMBS(ctx, rec); err != nil {
		w.fail(ctx, rec, err)
		return
	}
	// From here the pool's progress through CONT_LIST/CONT_CLEANUP is
	// driven by the PS-leader and observed via IV "update" messages
	// (chkiv.Handler.HandleUpdate), which advance the bookmark the rest
	// of the way to DONE.
}

// prepare builds the PS-clue vector from the collected shards and assesses
// quorum (spec §4.7 step "PREPARE").
func (w *PoolWorker) prepare(ctx context.Context, rec *chkpool.Record) error {
	shards := rec.Shards()
	var clues []chktypes.Clue
	for _, sh := range shards {
		if sh.Clue == nil || sh.Clue.Busy() {
			continue
		}
		clues = append(clues, *sh.Clue)
	}
	if len(clues) == 0 {
		return chktypes.ErrNoHdl
	}

	advice, hasQuorum := selectAdvice(clues)
	rec.MutateBookmark(func(b *chktypes.PoolBookmark) {
		b.Advice = advice
		if hasQuorum {
			b.Flags.Set(chktypes.PoolFlagHealthy)
		}
	})
	if hasQuorum {
		return nil
	}
	return w.noQuorumPool(ctx, rec)
}

// selectAdvice mirrors pl_check_svc_clues: pick the replica with the
// highest (term, last_applied) pair as the advice index, and report
// quorum iff a strict majority of non-busy clues agree it is the leader.
func selectAdvice(clues []chktypes.Clue) (advice int, hasQuorum bool) {
	best := 0
	for i, c := range clues[1:] {
		idx := i + 1
		if c.Term > clues[best].Term ||
			(c.Term == clues[best].Term && c.LastApplied > clues[best].LastApplied) {
			best = idx
		}
	}
	agree := 0
	for _, c := range clues {
		if c.Term == clues[best].Term {
			agree++
		}
	}
	return best, agree*2 > len(clues)
}

func (w *PoolWorker) noQuorumPool(ctx context.Context, rec *chkpool.Record) error {
	action, err := w.report(ctx, rec, chktypes.ClassPoolLessSvcWithoutQuorum, chktypes.ActionInteract)
	if err != nil {
		return err
	}
	if action == chktypes.ActionTrustPS {
		rec.MutateBookmark(func(b *chktypes.PoolBookmark) { b.Flags.Set(chktypes.PoolFlagHealthy) })
	}
	return nil
}

// handleOrphan implements orphan_pool: default READD, forcing INTERACT
// when a zombie directory entry is present (spec §4.7 "orphan").
func (w *PoolWorker) handleOrphan(ctx context.Context, rec *chkpool.Record) error {
	hasZombie := false
	for _, sh := range rec.Shards() {
		if sh.Clue != nil && sh.Clue.ZombieDirEntry {
			hasZombie = true
			break
		}
	}

	defaultAction := chktypes.ActionReadd
	if hasZombie {
		defaultAction = chktypes.ActionInteract
	}
	action, err := w.report(ctx, rec, chktypes.ClassPoolNonexistOnMS, defaultAction)
	if err != nil {
		return err
	}
	rec.MutateBookmark(func(b *chktypes.PoolBookmark) {
		b.Flags.Set(chktypes.PoolFlagDangling)
		if action == chktypes.ActionReadd {
			b.Flags.Clear(chktypes.PoolFlagNotExportPS)
		} else {
			b.Flags.Set(chktypes.PoolFlagNotExportPS)
		}
	})
	return nil
}

// handleLabel implements handle_pool_label: default trusts MS with a
// deferred write.
func (w *PoolWorker) handleLabel(ctx context.Context, rec *chkpool.Record) error {
	msLabel := rec.SnapshotBookmark().Label
	var psLabel string
	for _, sh := range rec.Shards() {
		if sh.Label != "" {
			psLabel = sh.Label
		}
	}
	if psLabel == "" || msLabel == psLabel {
		return nil
	}
	action, err := w.report(ctx, rec, chktypes.ClassPoolBadLabel, chktypes.ActionTrustMS)
	if err != nil {
		return err
	}
	if action == chktypes.ActionTrustMS {
		rec.MutateBookmark(func(b *chktypes.PoolBookmark) { b.Flags.Set(chktypes.PoolFlagDelayLabel) })
	}
	return nil
}

func (w *PoolWorker) report(ctx context.Context, rec *chkpool.Record, class chktypes.Class, defaultAction chktypes.Action) (chktypes.Action, error) {
	if w.Reporter == nil {
		return defaultAction, nil
	}
	unit := &chkreport.Report{
		Class:  class,
		Action: defaultAction,
		Pool:   rec.UUID,
		Rank:   chktypes.LeaderRank,
	}
	return w.Reporter.Report(ctx, unit)
}

func (w *PoolWorker) broadcastPoolStart(ctx context.Context, rec *chkpool.Record) error {
	if w.Transport == nil {
		return nil
	}
	members := membersOf(rec)
	for rank := range members {
		if err := w.Transport.PoolStart(ctx, rank, rec.UUID, chktypes.PhasePoolList, 0, members); err != nil {
			return err
		}
	}
	return nil
}

func (w *PoolWorker) sendPoolMBS(ctx context.Context, rec *chkpool.Record) error {
	if w.Transport == nil {
		return nil
	}
	members := membersOf(rec)
	bk := rec.SnapshotBookmark()
	// PS-leader selection loops over candidate shard ranks with a
	// back-off of 1000ms / len(candidates) between attempts; here the
	// candidate list is simply every shard rank in ascending order, and
	// only the first successful attempt is kept (spec §4.7: "only one RPC
	// is in flight at a time per pool").
	ranks := make([]uint32, 0, len(members))
	for rank := range members {
		ranks = append(ranks, rank)
	}
	sort.Slice(ranks, func(i, j int) bool { return ranks[i] < ranks[j] })
	for i, rank := range ranks {
		if i > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Second / time.Duration(len(ranks))):
			}
		}
		err := w.Transport.PoolMBS(ctx, rank, rec.UUID, chktypes.PhasePoolMbs, 0, bk.Label, bk.LabelSeq, members)
		if err == nil {
			return nil
		}
		if !chktypes.IsTransient(err) {
			return err
		}
	}
	return chktypes.ErrTimedOut
}

func membersOf(rec *chkpool.Record) map[uint32][]string {
	out := make(map[uint32][]string)
	for _, sh := range rec.Shards() {
		out[sh.Rank] = []string{"UP"}
	}
	return out
}

func (w *PoolWorker) fail(ctx context.Context, rec *chkpool.Record, err error) {
	logging.Op().Warn("pool worker failed", "pool", rec.UUID, "error", err)
	rec.MutateBookmark(func(b *chktypes.PoolBookmark) {
		b.Status = chktypes.StatusFailed
	})
}

// DanglingPoolWorker implements the dangling-pool worker (spec §4.7):
// class PoolNonexistOnEngine, default action DISCARD (deregister from MS).
type DanglingPoolWorker struct {
	Reporter *chkreport.Reporter
	MS       interface {
		DeregisterPool(ctx context.Context, pool uuid.UUID) error
	}
}

func (w *DanglingPoolWorker) Run(ctx context.Context, pool uuid.UUID) error {
	action := chktypes.ActionDiscard
	if w.Reporter != nil {
		unit := &chkreport.Report{
			Class:  chktypes.ClassPoolNonexistOnEngine,
			Action: chktypes.ActionDiscard,
			Pool:   pool,
			Rank:   chktypes.LeaderRank,
		}
		resolved, err := w.Reporter.Report(ctx, unit)
		if err != nil {
			return err
		}
		action = resolved
	}
	if action == chktypes.ActionDiscard && w.MS != nil {
		return w.MS.DeregisterPool(ctx, pool)
	}
	return nil
}
