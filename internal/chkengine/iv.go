package chkengine

import (
	"context"

	"github.com/google/uuid"
	"github.com/oriys/chk/internal/chkiv"
	"github.com/oriys/chk/internal/chktypes"
)

// BusPublisher adapts *chkiv.Bus to PoolWorker's IVPublisher, folding the
// pool/phase/status triple into a chkiv.Message.
type BusPublisher struct {
	Bus *chkiv.Bus
}

func (p *BusPublisher) PublishUpdate(ctx context.Context, pool uuid.UUID, phase chktypes.Phase, status chktypes.Status) error {
	return p.Bus.PublishUpdate(ctx, chkiv.Message{Pool: pool, Phase: phase, Status: status})
}
