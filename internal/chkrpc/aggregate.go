package chkrpc

import (
	"github.com/google/uuid"
	"github.com/oriys/chk/internal/chktypes"
)

// Aggregators follow one rule (spec §6.2): if any child returns a hard
// error, propagate the first one and bubble up the OR of any flag fields;
// if a child returns a subordinate array, accumulate it. Go's garbage
// collector makes the original's capacity-doubling realloc-and-transfer-
// ownership dance moot — append already amortizes the reallocation, and
// there is no child-owned heap array to nil out before a free.

// FirstError returns the first non-nil error in order, or nil if every
// child succeeded (MARK, ACT, POOL_START, POOL_MBS, REPORT, REJOIN).
func FirstError(errs []error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// ORBool folds a per-child boolean flag with logical OR (STOP's
// any_stopped, e.g.).
func ORBool(flags []bool) bool {
	for _, f := range flags {
		if f {
			return true
		}
	}
	return false
}

// ConcatClues accumulates START's clues[] across engine replies.
func ConcatClues(replies []*StartReply) []chktypes.Clue {
	var out []chktypes.Clue
	for _, r := range replies {
		if r == nil {
			continue
		}
		out = append(out, r.Clues...)
	}
	return out
}

// ConcatRanks accumulates START's cmp_ranks[] / STOP's ranks[].
func ConcatRanks(rankLists [][]uint32) []uint32 {
	var out []uint32
	for _, ranks := range rankLists {
		out = append(out, ranks...)
	}
	return out
}

// ConcatShards accumulates QUERY's shards[].
func ConcatShards(replies []*QueryReply) []chktypes.Shard {
	var out []chktypes.Shard
	for _, r := range replies {
		if r == nil {
			continue
		}
		out = append(out, r.Shards...)
	}
	return out
}

// ConcatConts accumulates CONT_LIST's conts[].
func ConcatConts(replies []*ContListReply) []uuid.UUID {
	var out []uuid.UUID
	for _, r := range replies {
		if r == nil {
			continue
		}
		out = append(out, r.Conts...)
	}
	return out
}

// statusPriority orders instance-scoped statuses from least to most severe
// for merge_info; earlier entries lose ties to later ones.
var statusPriority = []chktypes.Status{
	chktypes.StatusInit,
	chktypes.StatusRunning,
	chktypes.StatusPaused,
	chktypes.StatusStopped,
	chktypes.StatusCompleted,
	chktypes.StatusImplicated,
	chktypes.StatusFailed,
}

func severity(s chktypes.Status) int {
	for i, p := range statusPriority {
		if p == s {
			return i
		}
	}
	return -1
}

// MergeInstanceStatus implements QUERY's merge_info rule: the most severe
// status reported anywhere in the collective wins the whole instance's
// reported status.
func MergeInstanceStatus(statuses []chktypes.Status) chktypes.Status {
	worst := chktypes.StatusInit
	for _, s := range statuses {
		if severity(s) > severity(worst) {
			worst = s
		}
	}
	return worst
}
