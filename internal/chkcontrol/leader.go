package chkcontrol

import (
	"context"

	"github.com/oriys/chk/internal/chkinstance"
	"github.com/oriys/chk/internal/chkrpc"
	"github.com/oriys/chk/internal/chktypes"
)

// LeaderHandler answers the operator's control commands against a running
// Leader instance, translating each into the instance's start/stop/query
// contract (spec §6.1) or the pending-decision table (spec §4.5 "act").
// Start, Stop and Act act on this Leader's own instance and pending table
// only: neither this handler nor Instance.Start/Stop sends CHK_START,
// CHK_STOP or CHK_ACT to the engines.
type LeaderHandler struct {
	Inst *chkinstance.Instance
}

func (h *LeaderHandler) Start(ctx context.Context, req *StartRequest) (*StartReply, error) {
	err := h.Inst.Start(ctx, req.Ranks, req.Policies, req.Pools, req.Flags, req.LeaderRank)
	return &StartReply{Err: NewError(err)}, nil
}

func (h *LeaderHandler) Stop(ctx context.Context, req *StopRequest) (*StopReply, error) {
	err := h.Inst.Stop(ctx, h.Inst.Gen(), req.Pools)
	return &StopReply{Err: NewError(err)}, nil
}

func (h *LeaderHandler) Query(ctx context.Context, req *QueryRequest) (*QueryReply, error) {
	pools := req.Pools
	if len(pools) == 0 {
		pools = h.Inst.Pools.List()
	}

	results := make([]QueryPoolResult, 0, len(pools))
	statuses := make([]chktypes.Status, 0, len(pools))
	for _, pool := range pools {
		rec, ok := h.Inst.Pools.Get(pool)
		if !ok {
			continue
		}
		bk := rec.SnapshotBookmark()
		results = append(results, QueryPoolResult{
			Pool:   pool,
			Phase:  bk.Phase,
			Status: bk.Status,
			Shards: rec.Shards(),
		})
		statuses = append(statuses, bk.Status)
	}

	return &QueryReply{
		InstanceStatus: chkrpc.MergeInstanceStatus(statuses),
		InstancePhase:  h.Inst.Pools.MinPhase(),
		Pools:          results,
	}, nil
}

func (h *LeaderHandler) Act(ctx context.Context, req *ActRequest) (*ActReply, error) {
	if req.ForAll {
		if err := h.Inst.SetPolicy(ctx, req.Class, req.Action); err != nil {
			return &ActReply{Err: NewError(err)}, nil
		}
		h.Inst.Pending.ActForAll(req.Class, req.Action)
		return &ActReply{}, nil
	}

	if _, err := h.Inst.Pending.Act(req.Seq, req.Action); err != nil {
		return &ActReply{Err: NewError(err)}, nil
	}
	return &ActReply{}, nil
}

func (h *LeaderHandler) Prop(ctx context.Context, req *PropRequest) (*PropReply, error) {
	return &PropReply{Policies: h.Inst.Policies()}, nil
}
