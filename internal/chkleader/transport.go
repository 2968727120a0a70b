package chkleader

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/oriys/chk/internal/chkrpc"
	"github.com/oriys/chk/internal/chktypes"
)

// RankAddresser resolves a rank's cluster RPC listen address, populated
// from the MS's rank-to-address map at start time (out of scope per spec
// §1; interface only, same boundary as MSClient above).
type RankAddresser interface {
	AddrOf(rank uint32) (string, bool)
}

// StaticAddresser is a fixed rank -> address table, for single-process
// test clusters and the daemon's static-config deployment mode.
type StaticAddresser map[uint32]string

func (m StaticAddresser) AddrOf(rank uint32) (string, bool) {
	addr, ok := m[rank]
	return addr, ok
}

// ClientTransport is the Leader's concrete RankTransport: one chkrpc.Client
// per rank, dialed lazily and kept open for the life of the process.
type ClientTransport struct {
	Addrs RankAddresser

	mu      sync.Mutex
	clients map[uint32]*chkrpc.Client
}

func (t *ClientTransport) client(ctx context.Context, rank uint32) (*chkrpc.Client, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.clients == nil {
		t.clients = make(map[uint32]*chkrpc.Client)
	}
	if c, ok := t.clients[rank]; ok {
		return c, nil
	}
	addr, ok := t.Addrs.AddrOf(rank)
	if !ok {
		return nil, fmt.Errorf("chkleader: no cluster RPC address for rank %d", rank)
	}
	c, err := chkrpc.Dial(ctx, addr)
	if err != nil {
		return nil, err
	}
	t.clients[rank] = c
	return c, nil
}

func (t *ClientTransport) PoolStart(ctx context.Context, rank uint32, pool uuid.UUID, phase chktypes.Phase, flags chktypes.StartFlags, members map[uint32][]string) error {
	c, err := t.client(ctx, rank)
	if err != nil {
		return err
	}
	resp, err := c.PoolStart(ctx, &chkrpc.PoolStartRequest{Pool: pool, Phase: phase, Flags: flags})
	if err != nil {
		return err
	}
	_ = members
	return resp.Err.ToError()
}

func (t *ClientTransport) PoolMBS(ctx context.Context, rank uint32, pool uuid.UUID, phase chktypes.Phase, flags chktypes.StartFlags, label string, labelSeq uint64, members map[uint32][]string) error {
	c, err := t.client(ctx, rank)
	if err != nil {
		return err
	}
	resp, err := c.PoolMBS(ctx, &chkrpc.PoolMBSRequest{
		Pool:     pool,
		Phase:    phase,
		Flags:    flags,
		Label:    label,
		LabelSeq: labelSeq,
		Members:  members,
	})
	if err != nil {
		return err
	}
	return resp.Err.ToError()
}

func (t *ClientTransport) Mark(ctx context.Context, rank uint32, gen chktypes.Gen, evictedRank uint32, groupVersion uint64) error {
	c, err := t.client(ctx, rank)
	if err != nil {
		return err
	}
	resp, err := c.Mark(ctx, &chkrpc.MarkRequest{Gen: gen, Rank: evictedRank, GroupVersion: groupVersion})
	if err != nil {
		return err
	}
	return resp.Err.ToError()
}

// Close tears down every dialed client, for graceful daemon shutdown.
func (t *ClientTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	var firstErr error
	for _, c := range t.clients {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
