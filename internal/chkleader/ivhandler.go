package chkleader

import (
	"context"

	"github.com/google/uuid"
	"github.com/oriys/chk/internal/chkiv"
	"github.com/oriys/chk/internal/chktypes"
)

// HandleRefresh is a no-op on the Leader: refresh messages flow leader ->
// engines, never the other way, so the Leader's own bus subscription
// never sees one in a well-formed deployment.
func (h *Handler) HandleRefresh(ctx context.Context, msg chkiv.Message) error {
	return nil
}

// HandleUpdate applies an engine's (or PS-leader's) phase/status advance
// to the matching pool record, the root of the "update" path the pool
// worker's CONT_LIST/CONT_CLEANUP comment describes (spec §4.9).
func (h *Handler) HandleUpdate(ctx context.Context, msg chkiv.Message) error {
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
