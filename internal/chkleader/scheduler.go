// Package chkleader implements the Leader scheduler (spec §4.7, C7): the
// single cooperative cycle that drains rank deaths, advances the instance
// phase, and the per-pool and dangling-pool worker state machines that run
// underneath it.
//
// Grounded on the teacher's cmd/comet daemon run-loop shape (a ticker-
// driven cycle with a cooperative shutdown channel) and internal/executor
// for the "one goroutine per unit of work, joined on cancel" pattern that
// both worker kinds reuse.
package chkleader

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/oriys/chk/internal/chkinstance"
	"github.com/oriys/chk/internal/chkpool"
	"github.com/oriys/chk/internal/chkrank"
	"github.com/oriys/chk/internal/chkreport"
	"github.com/oriys/chk/internal/chktypes"
	"github.com/oriys/chk/internal/logging"
)

const tick = 300 * time.Millisecond

// RankTransport is the cluster RPC fan-out collaborator, implemented over
// chkrpc in production. Kept as an interface here so this package never
// imports chkrpc directly (dependency order: C7 depends on C2/C3/C4/C6,
// not on the transport).
type RankTransport interface {
	PoolStart(ctx context.Context, rank uint32, pool uuid.UUID, phase chktypes.Phase, flags chktypes.StartFlags, members map[uint32][]string) error
	PoolMBS(ctx context.Context, rank uint32, pool uuid.UUID, phase chktypes.Phase, flags chktypes.StartFlags, label string, labelSeq uint64, members map[uint32][]string) error
	Mark(ctx context.Context, rank uint32, gen chktypes.Gen, evictedRank uint32, groupVersion uint64) error
}

// IVPublisher announces leader->engines refresh events (C9).
type IVPublisher interface {
	PublishRefresh(ctx context.Context, pool uuid.UUID, phase chktypes.Phase, status chktypes.Status) error
}

// MSClient resolves the MS's known pool list at start time (out of scope
// per spec §1; interface only).
type MSClient interface {
	ListPools(ctx context.Context) ([]uuid.UUID, error)
}

// Scheduler is the Leader's cooperative cycle, constructed once per
// instance and handed to chkinstance.New as the Scheduler func.
type Scheduler struct {
	Transport RankTransport
	IV        IVPublisher
	MS        MSClient
	Reporter  *chkreport.Reporter

	orphanAnnounced bool
}

// Run implements the cycle described in spec §4.7. It is invoked by
// chkinstance as the instance's scheduler task; ctx is cancelled by Pause.
func (s *Scheduler) Run(ctx context.Context, inst *chkinstance.Instance) {
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if inst.Paused() {
			return
		}

		if inst.Ranks != nil {
			for _, ev := range inst.Ranks.DrainDead(inst.Gen()) {
				s.broadcastMark(ctx, inst, ev)
			}
		}

		if inst.SchedExiting() {
			return
		}

		minPhase := inst.Pools.MinPhase()
		if minPhase >= chktypes.PhasePoolMbs && !s.orphanAnnounced {
			s.orphanAnnounced = true
			if s.IV != nil {
				if err := s.IV.PublishRefresh(ctx, uuid.Nil, minPhase, chktypes.StatusRunning); err != nil {
					logging.Op().Warn("leader scheduler: orphan-done publish failed", "error", err)
				}
			}
		}
	}
}

func (s *Scheduler) broadcastMark(ctx context.Context, inst *chkinstance.Instance, ev chkrank.Eviction) {
	if s.Transport == nil {
		return
	}
	for _, rank := range ev.Survivors {
		if err := s.Transport.Mark(ctx, rank, inst.Gen(), ev.RankID, ev.GroupVersion); err != nil {
			logging.Op().Warn("leader scheduler: mark broadcast failed", "rank", rank, "error", err)
		}
	}
}

// StartupReconcile runs the start-time special logic (spec §4.7): query
// the MS for its known pool list, and classify every pool against the
// shards already collected from the engines' Start replies into normal,
// dangling, and for-orphan pool workers.
func (s *Scheduler) StartupReconcile(ctx context.Context, pools *chkpool.Registry) (normal, dangling, orphan []uuid.UUID, err error) {
	known := pools.List()
	knownSet := make(map[uuid.UUID]bool, len(known))
	for _, p := range known {
		knownSet[p] = true
	}

	var msPools []uuid.UUID
	if s.MS != nil {
		msPools, err = s.MS.ListPools(ctx)
		if err != nil {
			return nil, nil, nil, err
		}
	}
	msSet := make(map[uuid.UUID]bool, len(msPools))
	for _, p := range msPools {
		msSet[p] = true
	}

	for _, p := range msPools {
		if !knownSet[p] {
			dangling = append(dangling, p)
		}
	}
	for _, p := range known {
		if msSet[p] {
			normal = append(normal, p)
		} else {
			orphan = append(orphan, p)
		}
	}
	return normal, dangling, orphan, nil
}
