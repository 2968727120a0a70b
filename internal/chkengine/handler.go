package chkengine

import (
	"context"

	"github.com/oriys/chk/internal/chkinstance"
	"github.com/oriys/chk/internal/chkpool"
	"github.com/oriys/chk/internal/chkrpc"
	"github.com/oriys/chk/internal/chktypes"
)

// Handler implements the Engine-facing half of chkrpc.Handler: the eight
// opcodes a Leader sends down to engines (spec §6.2). REPORT and REJOIN
// flow the other way (engine -> leader), so this role never serves them;
// it calls them instead, via chkrpc.Client from the scheduler's rejoin
// handshake and the reporter's Sender.
type Handler struct {
	Inst   *chkinstance.Instance
	Worker *PoolWorker
}

func (h *Handler) Start(ctx context.Context, req *chkrpc.StartRequest) (*chkrpc.StartReply, error) {
	err := h.Inst.Start(ctx, req.Ranks, req.Policies, req.Pools, req.Flags, req.LeaderRank)
	if err != nil {
		return &chkrpc.StartReply{Err: chkrpc.NewRemoteError(err)}, nil
	}

	clues := make([]chktypes.Clue, 0, len(req.Pools))
	for _, pool := range req.Pools {
		rec, ok := h.Inst.Pools.Get(pool)
		if !ok {
			continue
		}
		for _, shard := range rec.Shards() {
			if shard.Rank == h.Inst.Rank && shard.Clue != nil {
				clues = append(clues, *shard.Clue)
			}
		}
	}
	return &chkrpc.StartReply{Clues: clues, CmpRanks: []uint32{h.Inst.Rank}}, nil
}

func (h *Handler) Stop(ctx context.Context, req *chkrpc.StopRequest) (*chkrpc.StopReply, error) {
	targets := req.Pools
	if len(targets) == 0 {
		targets = h.Inst.Pools.List()
	}
	anyStopped := false
	for _, p := range targets {
		if h.Inst.Pools.HasPool(p) {
			anyStopped = true
			break
		}
	}
	err := h.Inst.Stop(ctx, req.Gen, req.Pools)
	if err != nil {
		return &chkrpc.StopReply{Err: chkrpc.NewRemoteError(err)}, nil
	}
	return &chkrpc.StopReply{AnyStopped: anyStopped, Ranks: []uint32{h.Inst.Rank}}, nil
}

func (h *Handler) Query(ctx context.Context, req *chkrpc.QueryRequest) (*chkrpc.QueryReply, error) {
	pools := req.Pools
	if len(pools) == 0 {
		pools = h.Inst.Pools.List()
	}

	shards := make([]chktypes.Shard, 0, len(pools))
	statuses := make([]chktypes.Status, 0, len(pools))
	for _, pool := range pools {
		rec, ok := h.Inst.Pools.Get(pool)
		if !ok {
			continue
		}
		shards = append(shards, rec.Shards()...)
		statuses = append(statuses, rec.SnapshotBookmark().Status)
	}

	return &chkrpc.QueryReply{
		InstanceStatus: chkrpc.MergeInstanceStatus(statuses),
		InstancePhase:  h.Inst.Pools.MinPhase(),
		Shards:         shards,
	}, nil
}

// Mark acknowledges a rank eviction notice (spec §4.4 "exclude"). The
// Engine keeps no rank tree of its own; survivors only need to know a
// rejoin is due, which the next REJOIN round-trip already discovers.
func (h *Handler) Mark(ctx context.Context, req *chkrpc.MarkRequest) (*chkrpc.MarkReply, error) {
	return &chkrpc.MarkReply{}, nil
}

func (h *Handler) Act(ctx context.Context, req *chkrpc.ActRequest) (*chkrpc.ActReply, error) {
	if req.Flags.Has(chktypes.ActFlagForAll) {
		if err := h.Inst.SetPolicy(ctx, req.Class, req.Action); err != nil {
			return &chkrpc.ActReply{Err: chkrpc.NewRemoteError(err)}, nil
		}
		h.Inst.Pending.ActForAll(req.Class, req.Action)
		return &chkrpc.ActReply{}, nil
	}

	if _, err := h.Inst.Pending.Act(req.Seq, req.Action); err != nil {
		return &chkrpc.ActReply{Err: chkrpc.NewRemoteError(err)}, nil
	}
	return &chkrpc.ActReply{}, nil
}

func (h *Handler) ContList(ctx context.Context, req *chkrpc.ContListRequest) (*chkrpc.ContListReply, error) {
	if h.Worker == nil || h.Worker.Conts == nil {
		return &chkrpc.ContListReply{}, nil
	}
	conts, err := h.Worker.Conts.ListContainers(ctx, req.Pool)
	if err != nil {
		return &chkrpc.ContListReply{Err: chkrpc.NewRemoteError(err)}, nil
	}
	return &chkrpc.ContListReply{Conts: conts}, nil
}

// PoolStart seeds (or re-seeds) this rank's shard record for pool and
// parks its bookmark at the requested phase, ahead of the CHK_POOL_MBS
// that actually wakes the worker (spec §4.8 step 1).
func (h *Handler) PoolStart(ctx context.Context, req *chkrpc.PoolStartRequest) (*chkrpc.PoolStartReply, error) {
	rec, ok := h.Inst.Pools.Get(req.Pool)
	if !ok {
		var err error
		rec, err = h.Inst.Pools.AddShard(ctx, req.Pool, h.Inst.Rank, nil, "")
		if err != nil {
			return &chkrpc.PoolStartReply{Err: chkrpc.NewRemoteError(err)}, nil
		}
	}
	rec.MutateBookmark(func(b *chktypes.PoolBookmark) { b.Phase = req.Phase })
	return &chkrpc.PoolStartReply{}, nil
}

// PoolMBS spawns this pool's worker against the member map carried in
// req and returns without waiting for it; the worker reports its own
// progress through bookmark updates (spec §4.8).
func (h *Handler) PoolMBS(ctx context.Context, req *chkrpc.PoolMBSRequest) (*chkrpc.PoolMBSReply, error) {
	rec, ok := h.Inst.Pools.Get(req.Pool)
	if !ok {
		var err error
		rec, err = h.Inst.Pools.AddShard(ctx, req.Pool, h.Inst.Rank, nil, req.Label)
		if err != nil {
			return &chkrpc.PoolMBSReply{Err: chkrpc.NewRemoteError(err)}, nil
		}
	}
	if len(req.Members) > 0 {
		rec.SetMembership(req.Members)
	}
	rec.MutateBookmark(func(b *chktypes.PoolBookmark) {
		b.Phase = req.Phase
		b.Flags.Set(chktypes.PoolFlagStarted)
	})

	entries := make([]MapEntry, 0, len(req.Members))
	for target := range req.Members {
		entries = append(entries, MapEntry{Target: target, Status: MemberUnknown})
	}

	if h.Worker != nil {
		h.Inst.Pools.SpawnWorker(ctx, rec, func(wctx context.Context, wrec *chkpool.Record) {
			h.Worker.Run(wctx, wrec, entries)
		})
	}
	return &chkrpc.PoolMBSReply{}, nil
}

func (h *Handler) Report(ctx context.Context, req *chkrpc.ReportRequest) (*chkrpc.ReportReply, error) {
	return &chkrpc.ReportReply{Err: chkrpc.NewRemoteError(chktypes.ErrNotApplicable)}, nil
}

func (h *Handler) Rejoin(ctx context.Context, req *chkrpc.RejoinRequest) (*chkrpc.RejoinReply, error) {
	return &chkrpc.RejoinReply{Err: chkrpc.NewRemoteError(chktypes.ErrNotApplicable)}, nil
}
