package chkleader

import (
	"context"

	"github.com/google/uuid"
	"github.com/oriys/chk/internal/chkiv"
	"github.com/oriys/chk/internal/chktypes"
)

// BusPublisher adapts *chkiv.Bus to the Scheduler's IVPublisher, folding
// the pool/phase/status triple into a chkiv.Message.
type BusPublisher struct {
	Bus *chkiv.Bus
}

func (p *BusPublisher) PublishRefresh(ctx context.Context, pool uuid.UUID, phase chktypes.Phase, status chktypes.Status) error {
	return p.Bus.PublishRefresh(ctx, chkiv.Message{Pool: pool, Phase: phase, Status: status})
}
