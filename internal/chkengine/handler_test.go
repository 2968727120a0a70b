package chkengine

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/oriys/chk/internal/chkinstance"
	"github.com/oriys/chk/internal/chkrpc"
	"github.com/oriys/chk/internal/chktypes"
)

func TestStartStopQueryRoundTrip(t *testing.T) {
	ctx := context.Background()
	inst := chkinstance.New(chkinstance.RoleEngine, 3, nil, nil, nil)
	h := &Handler{Inst: inst}
	pool := uuid.New()

	startResp, err := h.Start(ctx, &chkrpc.StartRequest{Pools: []uuid.UUID{pool}})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if startResp.Err.ToError() != nil {
		t.Fatalf("start reply carried error: %v", startResp.Err.ToError())
	}

	queryResp, err := h.Query(ctx, &chkrpc.QueryRequest{})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(queryResp.Shards) != 1 || queryResp.Shards[0].Rank != 3 {
		t.Fatalf("query shards = %+v, want one entry for rank 3", queryResp.Shards)
	}

	stopResp, err := h.Stop(ctx, &chkrpc.StopRequest{Pools: []uuid.UUID{pool}})
	if err != nil {
		t.Fatalf("stop: %v", err)
	}
	if stopResp.Err.ToError() != nil {
		t.Fatalf("stop reply carried error: %v", stopResp.Err.ToError())
	}
}

func TestWrongDirectionOpcodesReturnNotApplicable(t *testing.T) {
	ctx := context.Background()
	inst := chkinstance.New(chkinstance.RoleEngine, 0, nil, nil, nil)
	h := &Handler{Inst: inst}

	reportResp, err := h.Report(ctx, &chkrpc.ReportRequest{})
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if reportResp.Err.ToError() != chktypes.ErrNotApplicable {
		t.Fatalf("report err = %v, want ErrNotApplicable", reportResp.Err.ToError())
	}

	rejoinResp, err := h.Rejoin(ctx, &chkrpc.RejoinRequest{})
	if err != nil {
		t.Fatalf("rejoin: %v", err)
	}
	if rejoinResp.Err.ToError() != chktypes.ErrNotApplicable {
		t.Fatalf("rejoin err = %v, want ErrNotApplicable", rejoinResp.Err.ToError())
	}
}

func TestPoolMBSSpawnsWorker(t *testing.T) {
	ctx := context.Background()
	inst := chkinstance.New(chkinstance.RoleEngine, 0, nil, nil, nil)
	worker := &PoolWorker{}
	h := &Handler{Inst: inst, Worker: worker}
	pool := uuid.New()

	resp, err := h.PoolMBS(ctx, &chkrpc.PoolMBSRequest{
		Pool:    pool,
		Phase:   chktypes.PhasePoolMbs,
		Members: map[uint32][]string{0: {"r0"}},
	})
	if err != nil {
		t.Fatalf("pool mbs: %v", err)
	}
	if resp.Err.ToError() != nil {
		t.Fatalf("pool mbs reply carried error: %v", resp.Err.ToError())
	}

	rec, ok := inst.Pools.Get(pool)
	if !ok {
		t.Fatalf("pool record not seeded")
	}

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if rec.SnapshotBookmark().Status == chktypes.StatusChecked {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("bookmark status = %v, want CHECKED once the spawned worker finishes", rec.SnapshotBookmark().Status)
}
