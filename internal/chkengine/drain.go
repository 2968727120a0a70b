package chkengine

import (
	"context"

	"github.com/oriys/chk/internal/chkpool"
	"github.com/oriys/chk/internal/chktypes"
)

// DoneDrainer releases every pool whose worker reached DONE and is not
// marked for export to a surviving PS-leader, the Scheduler's
// ShutdownDrainer (spec §4.8 step 10, §4.3 "shutdown").
type DoneDrainer struct{}

func (DoneDrainer) Drain(ctx context.Context, pools *chkpool.Registry) error {
	for _, pool := range pools.List() {
		rec, ok := pools.Get(pool)
		if !ok {
			continue
		}
		bk := rec.SnapshotBookmark()
		if !bk.Flags.Has(chktypes.PoolFlagDone) || bk.Flags.Has(chktypes.PoolFlagNotExportPS) {
			continue
		}
		if err := pools.StopOne(ctx, pool, bk.Status, bk.Phase); err != nil {
			return err
		}
	}
	return nil
}
