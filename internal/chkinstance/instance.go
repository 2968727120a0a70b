// Package chkinstance implements the Instance skeleton (spec §4.2, C2):
// the per-role struct owning the pool tree, the pending tree, the rank
// tree (leader only), the instance-level read-write lock shared by both,
// and the start/stop/pause/rejoin contracts that drive them.
//
// Grounded on the teacher's internal/jobtracker (start-handshake condvar,
// sched_running/sched_exiting booleans) and internal/cluster.Registry
// (rank tree wiring), generalized to the checker's instance lifecycle.
package chkinstance

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oriys/chk/internal/chkbookmark"
	"github.com/oriys/chk/internal/chkpending"
	"github.com/oriys/chk/internal/chkpool"
	"github.com/oriys/chk/internal/chkrank"
	"github.com/oriys/chk/internal/chktypes"
	"github.com/oriys/chk/internal/logging"
)

// Role distinguishes a Leader instance (one per cluster, owns the rank
// tree) from an Engine instance (one per rank).
type Role int

const (
	RoleEngine Role = iota
	RoleLeader
)

// Scheduler is the phase-advancing task spawned by start (C7 on the
// Leader, C8 on the Engine). It must return promptly when ctx is
// cancelled; Pause cancels ctx and joins the returned goroutine.
type Scheduler func(ctx context.Context, inst *Instance)

// PoolSource resolves the initial pool set for a fresh (non-reset) start:
// the caller's explicit list if given, else every pool this role already
// knows about (on-disk directory sets on the Engine, the MS list on the
// Leader). Out of scope collaborators implement this; see PSController in
// chkpool for the analogous out-of-scope boundary.
type PoolSource interface {
	ResolvePools(ctx context.Context, explicit []uuid.UUID, reset bool) ([]uuid.UUID, error)
}

// Instance is the per-role skeleton (spec §4.2).
type Instance struct {
	Role Role
	Rank uint32

	lock *sync.RWMutex // shared with Pending and Ranks, per spec §5

	Store   *chkbookmark.Store
	Pools   *chkpool.Registry
	Pending *chkpending.Table
	Ranks   *chkrank.Registry // nil on an Engine instance

	scheduler Scheduler
	poolSrc   PoolSource

	mu         sync.Mutex
	handshake  *sync.Cond
	gen        chktypes.Gen
	ivUUID     uuid.UUID
	ranksList  []uint32
	policies   chktypes.PolicyTable

	schedRunning bool
	schedExiting bool
	starting     bool
	stopping     bool
	stopped      bool
	started      bool
	inited       bool
	rejoining    bool
	implicated   bool
	pause        bool

	schedCancel context.CancelFunc
	schedDone   chan struct{}
}

// New constructs an instance skeleton. store and poolSrc may be nil in
// tests that only exercise the handshake/flag logic.
func New(role Role, rank uint32, store *chkbookmark.Store, poolSrc PoolSource, scheduler Scheduler) *Instance {
	lock := &sync.RWMutex{}
	pending := chkpending.NewTable(lock)
	inst := &Instance{
		Role:      role,
		Rank:      rank,
		lock:      lock,
		Store:     store,
		Pools:     chkpool.NewRegistry(store),
		Pending:   pending,
		poolSrc:   poolSrc,
		scheduler: scheduler,
		policies:  chktypes.DefaultPolicyTable(),
	}
	if role == RoleLeader {
		inst.Ranks = chkrank.NewRegistry(lock, pending)
	}
	inst.handshake = sync.NewCond(&inst.mu)
	inst.Pending.SchedRunning = func() bool { inst.mu.Lock(); defer inst.mu.Unlock(); return inst.schedRunning }
	inst.Pending.SchedExiting = func() bool { inst.mu.Lock(); defer inst.mu.Unlock(); return inst.schedExiting }
	return inst
}

// Gen returns the instance's current generation.
func (inst *Instance) Gen() chktypes.Gen {
	inst.mu.Lock()
	defer inst.mu.Unlock()
	return inst.gen
}

// Policies returns a copy of the current class-to-action policy table.
func (inst *Instance) Policies() chktypes.PolicyTable {
	inst.mu.Lock()
	defer inst.mu.Unlock()
	return inst.policies.Clone()
}

// SetPolicy persists a class -> action override (act()'s FOR_ALL path).
// Implements chkreport.PolicyUpdater.
func (inst *Instance) SetPolicy(ctx context.Context, class chktypes.Class, action chktypes.Action) error {
	inst.mu.Lock()
	if inst.policies == nil {
		inst.policies = chktypes.DefaultPolicyTable()
	}
	inst.policies[class] = action
	policies := inst.policies.Clone()
	ranks := append([]uint32(nil), inst.ranksList...)
	inst.mu.Unlock()

	if inst.Store == nil {
		return nil
	}
	_, existingRanks, ok, err := inst.Store.GetPropertyAndRanks(ctx)
	if err != nil {
		return err
	}
	groupVersion := uint64(0)
	if ok {
		groupVersion = existingRanks.GroupVersion
	}
	return inst.Store.PutPropertyAndRanks(ctx,
		&chkbookmark.Property{Policies: policies},
		&chkbookmark.Ranks{RankIDs: ranks, GroupVersion: groupVersion},
	)
}

// Start implements the start contract (spec §4.2).
func (inst *Instance) Start(ctx context.Context, ranks []uint32, policies chktypes.PolicyTable, pools []uuid.UUID, flags chktypes.StartFlags, leaderRank uint32) error {
	inst.mu.Lock()
	if inst.starting || inst.stopping {
		inst.mu.Unlock()
		return chktypes.ErrBusy
	}
	if inst.schedExiting {
		inst.mu.Unlock()
		return chktypes.ErrInProgress
	}
	if inst.schedRunning {
		inst.mu.Unlock()
		return chktypes.ErrAlready
	}
	inst.starting = true
	inst.mu.Unlock()

	defer func() {
		inst.mu.Lock()
		inst.starting = false
		inst.mu.Unlock()
	}()

	if err := flags.Validate(); err != nil {
		return err
	}

	gen := chktypes.NewGen()
	reset := flags.Has(chktypes.FlagReset) || inst.ranksChanged(ranks)

	resolved := pools
	if reset {
		if inst.Store != nil {
			if err := inst.Store.DeleteAllPools(ctx); err != nil {
				return err
			}
		}
		if inst.poolSrc != nil {
			var err error
			resolved, err = inst.poolSrc.ResolvePools(ctx, pools, true)
			if err != nil {
				return err
			}
		}
	} else if len(resolved) == 0 && inst.poolSrc != nil {
		var err error
		resolved, err = inst.poolSrc.ResolvePools(ctx, nil, false)
		if err != nil {
			return err
		}
	}

	ivUUID := uuid.New()

	for _, pool := range resolved {
		if _, err := inst.Pools.AddShard(ctx, pool, inst.Rank, nil, ""); err != nil {
			logging.Op().Warn("start: failed to seed pool record", "pool", pool, "error", err)
		}
	}

	inst.mu.Lock()
	inst.gen = gen
	inst.ivUUID = ivUUID
	inst.ranksList = append([]uint32(nil), ranks...)
	if policies != nil {
		inst.policies = policies.Clone()
	}
	inst.mu.Unlock()

	if inst.Ranks != nil {
		for _, r := range ranks {
			inst.Ranks.Join(r)
		}
	}

	if err := inst.persistPostInit(ctx, resolved); err != nil {
		return err
	}

	inst.mu.Lock()
	inst.inited = true
	inst.started = true
	inst.stopped = false
	inst.schedRunning = true
	inst.schedExiting = false
	inst.pause = false
	schedCtx, cancel := context.WithCancel(context.Background())
	inst.schedCancel = cancel
	done := make(chan struct{})
	inst.schedDone = done
	sched := inst.scheduler
	inst.mu.Unlock()

	if sched != nil {
		go func() {
			defer close(done)
			sched(schedCtx, inst)
			inst.mu.Lock()
			inst.schedRunning = false
			inst.mu.Unlock()
		}()
	} else {
		close(done)
		inst.mu.Lock()
		inst.schedRunning = false
		inst.mu.Unlock()
	}

	inst.mu.Lock()
	inst.handshake.Broadcast()
	inst.mu.Unlock()

	_ = leaderRank
	return nil
}

func (inst *Instance) ranksChanged(newRanks []uint32) bool {
	inst.mu.Lock()
	defer inst.mu.Unlock()
	if len(newRanks) == 0 {
		return false
	}
	if len(newRanks) != len(inst.ranksList) {
		return true
	}
	seen := make(map[uint32]bool, len(inst.ranksList))
	for _, r := range inst.ranksList {
		seen[r] = true
	}
	for _, r := range newRanks {
		if !seen[r] {
			return true
		}
	}
	return false
}

// persistPostInit upserts the instance bookmark to RUNNING at the computed
// min phase (spec §4.2 step 6). It writes no pool bookmark: each pool's
// CHECKING bookmark is persisted by chkpool.Registry.AddShard when the
// pool record is created.
func (inst *Instance) persistPostInit(ctx context.Context, pools []uuid.UUID) error {
	if inst.Store == nil {
		return nil
	}
	minPhase := inst.Pools.MinPhase()
	bk := &chktypes.InstanceBookmark{
		Gen:    inst.Gen(),
		IVUUID: inst.ivUUID,
		Phase:  minPhase,
		Status: chktypes.StatusRunning,
	}
	switch inst.Role {
	case RoleLeader:
		return inst.Store.PutLeaderBookmark(ctx, bk)
	default:
		return inst.Store.PutEngineBookmark(ctx, bk)
	}
}

// WaitStarted blocks until a start's handshake condvar fires, or ctx is
// done.
func (inst *Instance) WaitStarted(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		inst.mu.Lock()
		for !inst.started {
			inst.handshake.Wait()
		}
		inst.mu.Unlock()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop implements the stop contract (spec §4.2): idempotent, accepts
// gen==0 as "whichever is current".
func (inst *Instance) Stop(ctx context.Context, gen chktypes.Gen, pools []uuid.UUID) error {
	inst.mu.Lock()
	if inst.stopping || inst.stopped {
		inst.mu.Unlock()
		return chktypes.ErrAlready
	}
	if gen != 0 && gen != inst.gen {
		inst.mu.Unlock()
		return chktypes.ErrNotApplicable
	}
	inst.stopping = true
	inst.mu.Unlock()
	defer func() {
		inst.mu.Lock()
		inst.stopping = false
		inst.stopped = true
		inst.mu.Unlock()
	}()

	if len(pools) == 0 {
		pools = inst.Pools.List()
	}
	for _, p := range pools {
		if err := inst.Pools.StopOne(ctx, p, chktypes.StatusStopped, chktypes.PhaseDone); err != nil {
			logging.Op().Warn("stop: stop_one failed", "pool", p, "error", err)
		}
	}

	if len(inst.Pools.List()) == 0 {
		inst.wakeScheduler()
	}
	return nil
}

func (inst *Instance) wakeScheduler() {
	inst.mu.Lock()
	inst.schedExiting = true
	inst.mu.Unlock()
	inst.Pending.ShutdownAll()
}

// Pause implements the pause contract (spec §4.2): the process is
// shutting down. It blocks until the scheduler task has exited.
func (inst *Instance) Pause(ctx context.Context) error {
	inst.mu.Lock()
	inst.pause = true
	cancel := inst.schedCancel
	done := inst.schedDone
	inst.handshake.Broadcast()
	inst.mu.Unlock()

	inst.Pending.ShutdownAll()

	if cancel != nil {
		cancel()
	}
	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Paused reports whether pause has been requested; the scheduler must
// observe this at every suspension point (spec §5).
func (inst *Instance) Paused() bool {
	inst.mu.Lock()
	defer inst.mu.Unlock()
	return inst.pause
}

// SchedExiting reports whether the scheduler has been told to exit.
func (inst *Instance) SchedExiting() bool {
	inst.mu.Lock()
	defer inst.mu.Unlock()
	return inst.schedExiting
}

// RejoinCaller is the collaborator that asks the Leader's rejoin RPC for
// instructions (chkrpc.Client.Rejoin), injected so this package does not
// depend on chkrpc.
type RejoinCaller interface {
	Rejoin(ctx context.Context, gen chktypes.Gen, rank uint32, ivUUID uuid.UUID) (pools []uuid.UUID, flags []chktypes.PoolFlags, err error)
}

// Rejoin implements the engine-side rejoin contract (spec §4.2): on
// process restart while a prior bookmark shows RUNNING or PAUSED, ask the
// Leader for the pool-list to resume, retrying transient errors with a
// 1-second back-off until pause is set.
func (inst *Instance) Rejoin(ctx context.Context, caller RejoinCaller) ([]uuid.UUID, []chktypes.PoolFlags, error) {
	inst.mu.Lock()
	inst.rejoining = true
	inst.mu.Unlock()
	defer func() {
		inst.mu.Lock()
		inst.rejoining = false
		inst.mu.Unlock()
	}()

	for {
		if inst.Paused() {
			return nil, nil, chktypes.ErrInterrupted
		}
		pools, flags, err := caller.Rejoin(ctx, inst.Gen(), inst.Rank, inst.ivUUID)
		if err == nil {
			return pools, flags, nil
		}
		if !chktypes.IsTransient(err) {
			return nil, nil, err
		}
		select {
		case <-time.After(time.Second):
		case <-ctx.Done():
			return nil, nil, ctx.Err()
		}
	}
}

func (inst *Instance) String() string {
	return fmt.Sprintf("instance(role=%v rank=%d gen=%d)", inst.Role, inst.Rank, inst.Gen())
}
