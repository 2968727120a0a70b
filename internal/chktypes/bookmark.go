package chktypes

import "github.com/google/uuid"

// InstanceBookmark is the persisted leader-or-engine-scoped state (spec §3
// "Instance bookmark"). It is stored under the literal key "leader" or
// "engine" depending on role.
type InstanceBookmark struct {
	Magic      Magic      `json:"magic"`
	Version    uint32     `json:"version"`
	Gen        Gen        `json:"gen"`
	IVUUID     uuid.UUID  `json:"iv_uuid"`
	Phase      Phase      `json:"phase"`
	Status     Status     `json:"status"`
	Statistics Statistics `json:"statistics"`
	Time       TimeInfo   `json:"time"`
}

// Normalize rewrites a bookmark observed at process boot that is corrupt
// from this process's point of view (RUNNING with nobody alive to have
// driven it) to PAUSED, per spec §3 invariant.
func (b *InstanceBookmark) Normalize() (rewritten bool) {
	if b.Status.BootCorrupt() {
		b.Status = StatusPaused
		return true
	}
	return false
}

// PoolFlags are the mutable boolean flags carried by a pool record (spec §3
// "Pool record"). Several may be set simultaneously, hence a bitmask.
type PoolFlags uint32

const (
	PoolFlagStarted PoolFlags = 1 << iota
	PoolFlagStartPost
	PoolFlagStop
	PoolFlagDone
	PoolFlagSkip
	PoolFlagDangling
	PoolFlagForOrphan
	PoolFlagExistOnMS
	PoolFlagNotExportPS
	PoolFlagMapRefreshed
	PoolFlagDelayLabel
	PoolFlagDestroyed
	PoolFlagHealthy
	PoolFlagNotifiedExit
)

func (f PoolFlags) Has(bit PoolFlags) bool { return f&bit != 0 }
func (f *PoolFlags) Set(bit PoolFlags)     { *f |= bit }
func (f *PoolFlags) Clear(bit PoolFlags)   { *f &^= bit }

// PoolBookmark is the persisted per-pool state, stored under the pool's
// canonical lowercase UUID string (spec §3, §6.3).
type PoolBookmark struct {
	Magic      Magic      `json:"magic"`
	Version    uint32     `json:"version"`
	PoolUUID   uuid.UUID  `json:"pool_uuid"`
	Phase      Phase      `json:"phase"`
	Status     Status     `json:"status"`
	Statistics Statistics `json:"statistics"`
	Time       TimeInfo   `json:"time"`
	Flags      PoolFlags  `json:"flags"`
	Advice     int        `json:"advice"`
	Label      string     `json:"label"`
	LabelSeq   uint64      `json:"label_seq"`
}

// Clue is a PS-state descriptor reported by a rank: the replica's term,
// last-applied index, vote, and visible replica list. The Leader uses the
// collected clues to pick an "advice" replica index (pl_check_svc_clues in
// the original source).
type Clue struct {
	Rank          uint32   `json:"rank"`
	Term          uint64   `json:"term"`
	LastApplied   uint64   `json:"last_applied"`
	Vote          int32    `json:"vote"`
	Replicas      []uint32 `json:"replicas"`
	RC            int32    `json:"rc"` // pc_rc: 0 ok, -EBUSY means PS still shutting down
	HasClue       bool     `json:"has_clue"`
	ZombieDirEntry bool    `json:"zombie_dir_entry"`
}

const rcBusy = -16 // -EBUSY, matching the original source's pc_rc convention

// Busy reports whether the clue indicates the PS instance on this rank is
// still shutting down and should be excluded from quorum assessment.
func (c Clue) Busy() bool { return c.RC == rcBusy }

// Shard is one rank's view of a pool: its opaque clue payload and label, as
// reported via CHK_POOL_START / START replies.
type Shard struct {
	Rank  uint32 `json:"rank"`
	Clue  *Clue  `json:"clue,omitempty"`
	Label string `json:"label,omitempty"`
}
