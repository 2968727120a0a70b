package chkleader

import (
	"context"

	"github.com/google/uuid"
	"github.com/oriys/chk/internal/chkinstance"
	"github.com/oriys/chk/internal/chkreport"
	"github.com/oriys/chk/internal/chkrpc"
	"github.com/oriys/chk/internal/chktypes"
)

// Handler implements the Leader-facing half of chkrpc.Handler: REPORT and
// REJOIN, the only two opcodes an engine ever sends to the Leader (spec
// §6.2). The other eight flow Leader -> engines, so this role never
// serves them; it calls them instead, via chkrpc.Client from Scheduler and
// PoolWorker (RankTransport).
type Handler struct {
	Inst     *chkinstance.Instance
	Reporter *chkreport.Reporter
}

func (h *Handler) Report(ctx context.Context, req *chkrpc.ReportRequest) (*chkrpc.ReportReply, error) {
	unit := &chkreport.Report{
		Seq:        req.Seq,
		Class:      req.Class,
		Action:     req.Action,
		Result:     req.Result,
		Rank:       req.Rank,
		Target:     req.Target,
		Pool:       req.Pool,
		PoolLabel:  req.PoolLbl,
		Cont:       req.Cont,
		ContLabel:  req.ContLbl,
		Obj:        req.Obj,
		Dkey:       []byte(req.Dkey),
		Akey:       []byte(req.Akey),
		Msg:        req.Msg,
		ActChoices: req.Options,
		ActDetails: req.Details,
	}
	_, err := h.Reporter.Report(ctx, unit)
	return &chkrpc.ReportReply{Err: chkrpc.NewRemoteError(err)}, nil
}

func (h *Handler) Rejoin(ctx context.Context, req *chkrpc.RejoinRequest) (*chkrpc.RejoinReply, error) {
	pools, flags, err := h.rejoin(ctx, req)
	return &chkrpc.RejoinReply{Pools: pools, Flags: flags, Err: chkrpc.NewRemoteError(err)}, nil
}

// rejoin answers an engine's resume request with every pool the Leader
// still tracks and its current flags (spec §4.2); the list is not
// filtered by the requesting rank.
func (h *Handler) rejoin(ctx context.Context, req *chkrpc.RejoinRequest) ([]uuid.UUID, []chktypes.PoolFlags, error) {
	if req.Gen != 0 && req.Gen != h.Inst.Gen() {
		return nil, nil, chktypes.ErrNotApplicable
	}
	pools := h.Inst.Pools.List()
	flags := make([]chktypes.PoolFlags, len(pools))
	for i, pool := range pools {
		if rec, ok := h.Inst.Pools.Get(pool); ok {
			flags[i] = rec.SnapshotBookmark().Flags
		}
	}
	return pools, flags, nil
}

func (h *Handler) Start(ctx context.Context, req *chkrpc.StartRequest) (*chkrpc.StartReply, error) {
	return &chkrpc.StartReply{Err: chkrpc.NewRemoteError(chktypes.ErrNotApplicable)}, nil
}

func (h *Handler) Stop(ctx context.Context, req *chkrpc.StopRequest) (*chkrpc.StopReply, error) {
	return &chkrpc.StopReply{Err: chkrpc.NewRemoteError(chktypes.ErrNotApplicable)}, nil
}

func (h *Handler) Query(ctx context.Context, req *chkrpc.QueryRequest) (*chkrpc.QueryReply, error) {
	return &chkrpc.QueryReply{Err: chkrpc.NewRemoteError(chktypes.ErrNotApplicable)}, nil
}

func (h *Handler) Mark(ctx context.Context, req *chkrpc.MarkRequest) (*chkrpc.MarkReply, error) {
	return &chkrpc.MarkReply{Err: chkrpc.NewRemoteError(chktypes.ErrNotApplicable)}, nil
}

func (h *Handler) Act(ctx context.Context, req *chkrpc.ActRequest) (*chkrpc.ActReply, error) {
	return &chkrpc.ActReply{Err: chkrpc.NewRemoteError(chktypes.ErrNotApplicable)}, nil
}

func (h *Handler) ContList(ctx context.Context, req *chkrpc.ContListRequest) (*chkrpc.ContListReply, error) {
	return &chkrpc.ContListReply{Err: chkrpc.NewRemoteError(chktypes.ErrNotApplicable)}, nil
}

func (h *Handler) PoolStart(ctx context.Context, req *chkrpc.PoolStartRequest) (*chkrpc.PoolStartReply, error) {
	return &chkrpc.PoolStartReply{Err: chkrpc.NewRemoteError(chktypes.ErrNotApplicable)}, nil
}

func (h *Handler) PoolMBS(ctx context.Context, req *chkrpc.PoolMBSRequest) (*chkrpc.PoolMBSReply, error) {
	return &chkrpc.PoolMBSReply{Err: chkrpc.NewRemoteError(chktypes.ErrNotApplicable)}, nil
}
