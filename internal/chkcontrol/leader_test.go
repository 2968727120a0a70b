package chkcontrol

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/oriys/chk/internal/chkinstance"
	"github.com/oriys/chk/internal/chktypes"
)

func TestStartStopQueryRoundTrip(t *testing.T) {
	ctx := context.Background()
	inst := chkinstance.New(chkinstance.RoleLeader, 0, nil, nil, func(ctx context.Context, _ *chkinstance.Instance) {
		<-ctx.Done()
	})
	h := &LeaderHandler{Inst: inst}
	pool := uuid.New()

	startResp, err := h.Start(ctx, &StartRequest{Ranks: []uint32{0, 1}, Pools: []uuid.UUID{pool}})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if startResp.Err.ToError() != nil {
		t.Fatalf("start reply carried error: %v", startResp.Err.ToError())
	}

	queryResp, err := h.Query(ctx, &QueryRequest{})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(queryResp.Pools) != 1 || queryResp.Pools[0].Pool != pool {
		t.Fatalf("query pools = %+v, want one entry for %v", queryResp.Pools, pool)
	}

	stopResp, err := h.Stop(ctx, &StopRequest{Pools: []uuid.UUID{pool}})
	if err != nil {
		t.Fatalf("stop: %v", err)
	}
	if stopResp.Err.ToError() != nil {
		t.Fatalf("stop reply carried error: %v", stopResp.Err.ToError())
	}

	if err := inst.Pause(ctx); err != nil {
		t.Fatalf("pause: %v", err)
	}
}

func TestActForAllPersistsPolicyAndUnblocksPending(t *testing.T) {
	ctx := context.Background()
	inst := chkinstance.New(chkinstance.RoleLeader, 0, nil, nil, nil)
	h := &LeaderHandler{Inst: inst}

	resp, err := h.Act(ctx, &ActRequest{Class: chktypes.ClassContBadLabel, Action: chktypes.ActionTrustPS, ForAll: true})
	if err != nil {
		t.Fatalf("act: %v", err)
	}
	if resp.Err.ToError() != nil {
		t.Fatalf("act reply carried error: %v", resp.Err.ToError())
	}

	prop, err := h.Prop(ctx, &PropRequest{})
	if err != nil {
		t.Fatalf("prop: %v", err)
	}
	if got := prop.Policies.Resolve(chktypes.ClassContBadLabel); got != chktypes.ActionTrustPS {
		t.Fatalf("policy after act for_all = %v, want TRUST_PS", got)
	}
}

func TestActUnknownSeqReturnsNoHdl(t *testing.T) {
	ctx := context.Background()
	inst := chkinstance.New(chkinstance.RoleLeader, 0, nil, nil, nil)
	h := &LeaderHandler{Inst: inst}

	resp, err := h.Act(ctx, &ActRequest{Seq: chktypes.Seq(1234)})
	if err != nil {
		t.Fatalf("act: %v", err)
	}
	if resp.Err.ToError() != chktypes.ErrNoHdl {
		t.Fatalf("act on unknown seq = %v, want ErrNoHdl", resp.Err.ToError())
	}
}
