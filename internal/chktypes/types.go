// Package chktypes defines the shared identifiers, phases, bookmark layout
// and policy tables used by every other checker package. It has no
// dependencies beyond the standard library, golang.org/x/sys and
// github.com/google/uuid, and is
// imported by chkbookmark, chkpending, chkreport, chkpool, chkrank,
// chkleader, chkengine, chkrpc and chkiv.
package chktypes

import "fmt"

// Magic identifies which kind of bookmark a persisted record holds. A
// mismatch between the expected and stored magic is a fatal, non-retryable
// condition (spec error taxonomy: IO).
type Magic uint32

const (
	MagicLeader Magic = 0xe6f703da
	MagicEngine Magic = 0xe6f703db
	MagicPool   Magic = 0xe6f703dc
)

func (m Magic) String() string {
	switch m {
	case MagicLeader:
		return "LEADER"
	case MagicEngine:
		return "ENGINE"
	case MagicPool:
		return "POOL"
	default:
		return fmt.Sprintf("MAGIC(%#x)", uint32(m))
	}
}

// Phase is one element of the ordered check pipeline. Phases are strictly
// non-decreasing for a given pool within one instance generation, except on
// an explicit RESET which mints a new generation.
type Phase int

const (
	PhasePrepare Phase = iota
	PhasePoolList
	PhasePoolMbs
	PhasePoolCleanup
	PhaseContList
	PhaseContCleanup
	PhaseDone
)

var phaseNames = [...]string{
	"PREPARE", "POOL_LIST", "POOL_MBS", "POOL_CLEANUP", "CONT_LIST", "CONT_CLEANUP", "DONE",
}

func (p Phase) String() string {
	if p < PhasePrepare || p > PhaseDone {
		return fmt.Sprintf("PHASE(%d)", int(p))
	}
	return phaseNames[p]
}

// MinPhase returns the lesser of two phases; used by the scheduler to
// derive the instance-wide phase from the set of active pool phases.
func MinPhase(a, b Phase) Phase {
	if a < b {
		return a
	}
	return b
}

// Status is the lifecycle status recorded in a bookmark. The same type
// covers both instance-scoped and pool-scoped bookmarks; not every value
// applies to both scopes (see comments below).
type Status int

const (
	StatusInit Status = iota
	StatusRunning
	StatusCompleted
	StatusStopped
	StatusPaused
	StatusFailed
	StatusImplicated
	// StatusChecking and StatusPending are pool-scoped only: a pool starts
	// CHECKING on post-init and moves to PENDING while a report blocks on
	// an operator decision.
	StatusChecking
	StatusPending
	// StatusChecked and StatusDone are pool-scoped terminal states.
	StatusChecked
	StatusDone
)

var statusNames = [...]string{
	"INIT", "RUNNING", "COMPLETED", "STOPPED", "PAUSED", "FAILED", "IMPLICATED",
	"CHECKING", "PENDING", "CHECKED", "DONE",
}

func (s Status) String() string {
	if int(s) < 0 || int(s) >= len(statusNames) {
		return fmt.Sprintf("STATUS(%d)", int(s))
	}
	return statusNames[s]
}

// BootCorrupt reports whether a status observed at process boot must be
// rewritten before any other action. A bookmark persisted as RUNNING is
// corrupt from the new process's point of view, since nothing was alive to
// have driven it; it is rewritten to PAUSED to unblock the next Start.
func (s Status) BootCorrupt() bool {
	return s == StatusRunning
}

// Statistics is the aggregated per-instance (or per-pool) repair tally.
type Statistics struct {
	Total    int64 `json:"total"`
	Repaired int64 `json:"repaired"`
	Ignored  int64 `json:"ignored"`
	Failed   int64 `json:"failed"`
}

// TimeInfo records wall-clock bookkeeping for a bookmark.
type TimeInfo struct {
	StartUnix        int64 `json:"start_unix"`
	StopUnix         int64 `json:"stop_unix,omitempty"`
	EstRemainingSecs int64 `json:"est_remaining_secs,omitempty"`
}

// StartFlags are the bit flags accepted by the operator-facing start
// command (spec §6.1).
type StartFlags uint32

const (
	FlagReset StartFlags = 1 << iota
	FlagDryrun
	FlagFailout
	FlagNoFailout
	FlagAuto
	FlagNoAuto
	FlagOrphanPool
)

func (f StartFlags) Has(bit StartFlags) bool { return f&bit != 0 }

// Validate rejects mutually exclusive flag combinations (spec §4.2 step 2).
func (f StartFlags) Validate() error {
	if f.Has(FlagFailout) && f.Has(FlagNoFailout) {
		return fmt.Errorf("%w: FAILOUT and NO_FAILOUT are mutually exclusive", ErrInval)
	}
	if f.Has(FlagAuto) && f.Has(FlagNoAuto) {
		return fmt.Errorf("%w: AUTO and NO_AUTO are mutually exclusive", ErrInval)
	}
	return nil
}

// ActFlags are the bit flags accepted by the operator-facing act command.
type ActFlags uint32

const (
	ActFlagForAll ActFlags = 1 << iota
)

func (f ActFlags) Has(bit ActFlags) bool { return f&bit != 0 }
