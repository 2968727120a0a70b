package chkengine

import (
	"context"

	"github.com/google/uuid"
	"github.com/oriys/chk/internal/chkrpc"
	"github.com/oriys/chk/internal/chktypes"
)

// RejoinCaller adapts a chkrpc.Client to chkinstance.RejoinCaller, issuing
// CHK_REJOIN against the Leader on process restart (spec §4.2).
type RejoinCaller struct {
	Client *chkrpc.Client
}

func (c *RejoinCaller) Rejoin(ctx context.Context, gen chktypes.Gen, rank uint32, ivUUID uuid.UUID) ([]uuid.UUID, []chktypes.PoolFlags, error) {
	resp, err := c.Client.Rejoin(ctx, &chkrpc.RejoinRequest{Gen: gen, Rank: rank, IVUUID: ivUUID})
	if err != nil {
		return nil, nil, err
	}
	if rerr := resp.Err.ToError(); rerr != nil {
		return nil, nil, rerr
	}
	return resp.Pools, resp.Flags, nil
}
