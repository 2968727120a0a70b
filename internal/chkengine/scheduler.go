package chkengine

import (
	"context"
	"time"

	"github.com/oriys/chk/internal/chkinstance"
	"github.com/oriys/chk/internal/chkpool"
)

const tick = 300 * time.Millisecond

// ShutdownDrainer releases a pool's local PS instance and container once
// its worker has reached DONE and it is not to be exported (spec §4.8
// step 10, §4.3 "shutdown").
type ShutdownDrainer interface {
	Drain(ctx context.Context, pools *chkpool.Registry) error
}

// Scheduler is the Engine's cooperative cycle (spec §4.8): a 300ms tick
// that reports phase and drains the pending-shutdown list. Unlike the
// Leader, it owns no rank tree.
type Scheduler struct {
	Drain ShutdownDrainer
}

// Run implements the Engine scheduler task, handed to chkinstance.New as
// its Scheduler func.
func (s *Scheduler) Run(ctx context.Context, inst *chkinstance.Instance) {
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if inst.Paused() || inst.SchedExiting() {
			return
		}

		if s.Drain != nil {
			if err := s.Drain.Drain(ctx, inst.Pools); err != nil {
				return
			}
		}
	}
}
