package chkengine

import (
	"context"

	"github.com/google/uuid"
	"github.com/oriys/chk/internal/chkiv"
	"github.com/oriys/chk/internal/chktypes"
)

// HandleRefresh applies a leader-announced phase/status advance to the
// matching pool record (spec §4.9 "refresh"); a nil pool identifies the
// orphan-done broadcast, which carries nothing for a single pool record
// to absorb.
func (h *Handler) HandleRefresh(ctx context.Context, msg chkiv.Message) error {
	if msg.Pool == uuid.Nil {
		return nil
	}
	rec, ok := h.Inst.Pools.Get(msg.Pool)
	if !ok {
		return chktypes.ErrNotApplicable
	}
	rec.MutateBookmark(func(b *chktypes.PoolBookmark) {
		if msg.Phase > b.Phase {
			b.Phase = msg.Phase
		}
		b.Status = msg.Status
	})
	rec.Broadcast()
	return nil
}

// HandleUpdate is a no-op on a plain engine: only a PS-leader forwards
// update messages further up the tree, and that forwarding happens
// inline in the pool worker rather than through the bus subscription.
func (h *Handler) HandleUpdate(ctx context.Context, msg chkiv.Message) error {
	return nil
}
